package audit

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgtype"

	"github.com/referrush/csdash/internal/customers"
	"github.com/referrush/csdash/internal/nudges"
	"github.com/referrush/csdash/internal/shared"
)

// ErrDisabled is returned when the dashboard runs without an audit database.
var ErrDisabled = errors.New("audit trail disabled")

const (
	defaultPageSize = 20
	maxPageSize     = 50
	exportLimit     = 5000
)

// Service coordinates timeline reads.
type Service struct {
	repo Repository
}

// NewService builds the timeline service. A nil repository disables the trail.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Enabled reports whether a repository is configured.
func (s *Service) Enabled() bool {
	return s != nil && s.repo != nil
}

// Timeline loads one page of the activity timeline.
func (s *Service) Timeline(ctx context.Context, filters TimelineFilters) (Result, error) {
	if !s.Enabled() {
		return Result{}, ErrDisabled
	}
	pageSize := filters.PageSize
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	page := filters.Page
	if page <= 0 {
		page = 1
	}
	q := buildQuery(filters)
	q.Offset = int32((page - 1) * pageSize)
	q.Limit = pgtype.Int4{Int32: int32(pageSize + 1), Valid: true}
	entries, err := s.repo.Entries(ctx, q)
	if err != nil {
		return Result{}, err
	}
	hasNext := len(entries) > pageSize
	if hasNext {
		entries = entries[:pageSize]
	}
	paging := PagingInfo{Page: page, PageSize: pageSize, HasNext: hasNext}
	if page > 1 {
		paging.PrevPage = page - 1
	}
	if hasNext {
		paging.NextPage = page + 1
	}
	return Result{Rows: toRows(entries), Paging: paging}, nil
}

// Export loads every matching row up to a fixed cap.
func (s *Service) Export(ctx context.Context, filters TimelineFilters) ([]TimelineRow, error) {
	if !s.Enabled() {
		return nil, ErrDisabled
	}
	q := buildQuery(filters)
	q.Limit = pgtype.Int4{Int32: exportLimit, Valid: true}
	entries, err := s.repo.Entries(ctx, q)
	if err != nil {
		return nil, err
	}
	return toRows(entries), nil
}

func buildQuery(f TimelineFilters) Query {
	return Query{
		Action:   optionalText(f.Action),
		EntityID: optionalText(f.CustomerID),
		From:     toPgTime(f.From),
		To:       toPgTime(f.To),
	}
}

func toRows(entries []Entry) []TimelineRow {
	rows := make([]TimelineRow, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, TimelineRow{
			At:         e.At,
			Actor:      e.Actor,
			Action:     e.Action,
			CustomerID: e.EntityID,
			Summary:    Summarize(e),
		})
	}
	return rows
}

// Summarize renders an entry as a sentence for the timeline.
func Summarize(e Entry) string {
	switch e.Action {
	case shared.AuditTouchpointUpdate:
		state := "off"
		if v, _ := e.Meta["value"].(bool); v {
			state = "on"
		}
		return fmt.Sprintf("%s turned %s", customers.LabelFor(metaString(e.Meta, "path")), state)
	case shared.AuditNoteSave:
		return fmt.Sprintf("Note saved (%d characters)", metaInt(e.Meta, "length"))
	case shared.AuditNudgeSend:
		n := metaInt(e.Meta, "recipients")
		noun := "contacts"
		if n == 1 {
			noun = "contact"
		}
		channel := nudges.Channel(metaString(e.Meta, "channel"))
		return fmt.Sprintf("%s nudge sent via %s to %d %s", nudges.TouchpointLabel(metaString(e.Meta, "touchpoint")), channel.Label(), n, noun)
	case shared.AuditContactAdd:
		return fmt.Sprintf("Added %s contact", metaString(e.Meta, "kind"))
	case shared.AuditContactDelete:
		return fmt.Sprintf("Removed %s contact", metaString(e.Meta, "kind"))
	default:
		return e.Action
	}
}

func metaString(meta map[string]any, key string) string {
	s, _ := meta[key].(string)
	return s
}

// metaInt reads a count. JSONB numbers decode as float64.
func metaInt(meta map[string]any, key string) int {
	switch v := meta[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	case int64:
		return int(v)
	}
	return 0
}

func toPgTime(t time.Time) pgtype.Timestamptz {
	if t.IsZero() {
		return pgtype.Timestamptz{}
	}
	return pgtype.Timestamptz{Time: t, Valid: true}
}

func optionalText(value string) pgtype.Text {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return pgtype.Text{}
	}
	return pgtype.Text{String: trimmed, Valid: true}
}
