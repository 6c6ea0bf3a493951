package nudges

import (
	"context"
	"errors"
	"log/slog"

	"github.com/referrush/csdash/internal/backend"
	"github.com/referrush/csdash/internal/shared"
)

// Backend is the part of the referral backend nudging needs.
type Backend interface {
	ContactStore
	Sender
	ListCustomers(ctx context.Context) ([]backend.Customer, error)
	ListNudgeLogs(ctx context.Context, customerID string) ([]backend.NudgeLog, error)
}

// Invalidator drops derived data after a confirmed write.
type Invalidator interface {
	Invalidate(ctx context.Context) error
}

// Service loads customers into composers and records confirmed writes.
type Service struct {
	backend     Backend
	audit       shared.AuditRecorder
	invalidator Invalidator
	logger      *slog.Logger
}

// NewService wires the nudge service. audit and invalidator may be nil.
func NewService(b Backend, audit shared.AuditRecorder, invalidator Invalidator, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{backend: b, audit: audit, invalidator: invalidator, logger: logger}
}

// Customer fetches one customer from the roster. shared.ErrNotFound is
// returned when the backend does not list it.
func (s *Service) Customer(ctx context.Context, customerID string) (backend.Customer, error) {
	list, err := s.backend.ListCustomers(ctx)
	if err != nil {
		return backend.Customer{}, err
	}
	for _, c := range list {
		if c.ID == customerID {
			return c, nil
		}
	}
	return backend.Customer{}, shared.ErrNotFound
}

// Composer opens a composer for the customer.
func (s *Service) Composer(ctx context.Context, customerID string) (*Composer, backend.Customer, error) {
	c, err := s.Customer(ctx, customerID)
	if err != nil {
		return nil, backend.Customer{}, err
	}
	return NewComposer(c), c, nil
}

// Send issues the composed nudge.
func (s *Service) Send(ctx context.Context, comp *Composer) error {
	if err := comp.Send(ctx, s.backend); err != nil {
		if !errors.Is(err, ErrNoRecipients) {
			s.logger.Error("send nudge",
				slog.String("customer_id", comp.CustomerID()),
				slog.String("touchpoint", comp.Touchpoint()),
				slog.String("channel", string(comp.Channel())),
				slog.Any("error", err))
		}
		return err
	}
	shared.RecordAudit(ctx, s.audit, s.logger, shared.AuditLog{
		Action:   shared.AuditNudgeSend,
		Entity:   "customer",
		EntityID: comp.CustomerID(),
		Meta: map[string]any{
			"touchpoint": comp.Touchpoint(),
			"channel":    string(comp.Channel()),
			"recipients": len(comp.Recipients()),
		},
	})
	s.invalidate(ctx)
	return nil
}

// AddContact adds a contact through comp.
func (s *Service) AddContact(ctx context.Context, comp *Composer, kind backend.ContactKind, value string) (Contact, error) {
	ct, err := comp.AddContact(ctx, s.backend, kind, value)
	if err != nil {
		s.logger.Warn("add contact", slog.String("customer_id", comp.CustomerID()), slog.Any("error", err))
		return Contact{}, err
	}
	shared.RecordAudit(ctx, s.audit, s.logger, shared.AuditLog{
		Action:   shared.AuditContactAdd,
		Entity:   "customer",
		EntityID: comp.CustomerID(),
		Meta:     map[string]any{"kind": string(kind), "contact_id": ct.ID},
	})
	return ct, nil
}

// DeleteContact removes a contact through comp.
func (s *Service) DeleteContact(ctx context.Context, comp *Composer, kind backend.ContactKind, value string) error {
	if err := comp.DeleteContact(ctx, s.backend, kind, value); err != nil {
		s.logger.Warn("delete contact", slog.String("customer_id", comp.CustomerID()), slog.Any("error", err))
		return err
	}
	shared.RecordAudit(ctx, s.audit, s.logger, shared.AuditLog{
		Action:   shared.AuditContactDelete,
		Entity:   "customer",
		EntityID: comp.CustomerID(),
		Meta:     map[string]any{"kind": string(kind)},
	})
	return nil
}

// Logs fetches every nudge log of the customer and applies q.
func (s *Service) Logs(ctx context.Context, customerID string, q LogQuery) (all, filtered []backend.NudgeLog, err error) {
	all, err = s.backend.ListNudgeLogs(ctx, customerID)
	if err != nil {
		return nil, nil, err
	}
	return all, q.Apply(all), nil
}

func (s *Service) invalidate(ctx context.Context) {
	if s.invalidator == nil {
		return
	}
	if err := s.invalidator.Invalidate(ctx); err != nil {
		s.logger.Warn("invalidate metrics", slog.Any("error", err))
	}
}
