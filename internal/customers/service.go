package customers

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/referrush/csdash/internal/backend"
	"github.com/referrush/csdash/internal/shared"
)

// Backend is the part of the referral backend the roster needs.
type Backend interface {
	ListCustomers(ctx context.Context) ([]backend.Customer, error)
	UpdateTouchpoint(ctx context.Context, customerID, path string, value bool) error
	SaveNote(ctx context.Context, customerID, note string) error
}

// Invalidator drops derived data after a confirmed write.
type Invalidator interface {
	Invalidate(ctx context.Context) error
}

// Service coordinates roster reads and writes.
type Service struct {
	backend     Backend
	audit       shared.AuditRecorder
	invalidator Invalidator
	logger      *slog.Logger
	locks       *keyedMutex
}

// NewService wires the roster service. audit and invalidator may be nil.
func NewService(b Backend, audit shared.AuditRecorder, invalidator Invalidator, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{backend: b, audit: audit, invalidator: invalidator, logger: logger, locks: newKeyedMutex()}
}

// Roster fetches every customer.
func (s *Service) Roster(ctx context.Context) (*Roster, error) {
	list, err := s.backend.ListCustomers(ctx)
	if err != nil {
		return nil, err
	}
	return NewRoster(list), nil
}

// ToggleResult is the confirmed state of a switch after a toggle.
type ToggleResult struct {
	Checked bool
	Err     error
}

// Toggle sets one touchpoint of a customer. Toggles of the same control are
// applied one at a time in arrival order; the last one to run wins.
func (s *Service) Toggle(ctx context.Context, customerID, path string, next bool) ToggleResult {
	if !ValidPath(path) {
		return ToggleResult{Checked: !next, Err: fmt.Errorf("%w: %q", ErrUnknownTouchpoint, path)}
	}
	unlock := s.locks.Lock(customerID + "|" + path)
	defer unlock()

	sw := &Switch{CustomerID: customerID, Path: path, Checked: !next, Logger: s.logger}
	err := sw.Toggle(ctx, s.backend, next, func(value bool) {
		shared.RecordAudit(ctx, s.audit, s.logger, shared.AuditLog{
			Action:   shared.AuditTouchpointUpdate,
			Entity:   "customer",
			EntityID: customerID,
			Meta:     map[string]any{"path": path, "value": value},
		})
		s.invalidate(ctx)
	})
	return ToggleResult{Checked: sw.Checked, Err: err}
}

// SaveNote persists a note through editor and mirrors it into roster on success.
func (s *Service) SaveNote(ctx context.Context, roster *Roster, customerID, draft string) error {
	current, _ := roster.Find(customerID)
	editor := NewNoteEditor(customerID, current.Note, func(id, note string) {
		roster.ApplyNote(id, note)
	})
	editor.SetDraft(draft)
	if err := editor.Save(ctx, s.backend); err != nil {
		s.logger.Error("save note", slog.String("customer_id", customerID), slog.Any("error", err))
		return err
	}
	shared.RecordAudit(ctx, s.audit, s.logger, shared.AuditLog{
		Action:   shared.AuditNoteSave,
		Entity:   "customer",
		EntityID: customerID,
		Meta:     map[string]any{"length": len(draft)},
	})
	return nil
}

func (s *Service) invalidate(ctx context.Context) {
	if s.invalidator == nil {
		return
	}
	if err := s.invalidator.Invalidate(ctx); err != nil {
		s.logger.Warn("invalidate metrics", slog.Any("error", err))
	}
}
