package audit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/referrush/csdash/internal/shared"
)

// Entry is a raw audit_logs row.
type Entry struct {
	At       time.Time
	Actor    string
	Action   string
	Entity   string
	EntityID string
	Meta     map[string]any
}

// Query selects audit entries. Invalid fields are not filtered on; an invalid
// Limit returns every matching row.
type Query struct {
	Action   pgtype.Text
	EntityID pgtype.Text
	From     pgtype.Timestamptz
	To       pgtype.Timestamptz
	Offset   int32
	Limit    pgtype.Int4
}

// Repository reads the audit trail.
type Repository interface {
	Entries(ctx context.Context, q Query) ([]Entry, error)
}

// PgRepository reads audit_logs from Postgres.
type PgRepository struct {
	pool *pgxpool.Pool
}

// NewRepository returns a Postgres backed repository.
func NewRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

const entriesSQL = `SELECT occurred_at, actor, action, entity, entity_id, meta
FROM audit_logs
WHERE ($1::text IS NULL OR action = $1)
  AND ($2::text IS NULL OR entity_id = $2)
  AND ($3::timestamptz IS NULL OR occurred_at >= $3)
  AND ($4::timestamptz IS NULL OR occurred_at < $4)
ORDER BY occurred_at DESC, id DESC
OFFSET $5 LIMIT $6`

// Entries returns matching rows, newest first.
func (r *PgRepository) Entries(ctx context.Context, q Query) ([]Entry, error) {
	if r == nil || r.pool == nil {
		return nil, ErrDisabled
	}
	rows, err := r.pool.Query(ctx, entriesSQL, q.Action, q.EntityID, q.From, q.To, q.Offset, q.Limit)
	if err != nil {
		return nil, mapPgError(err)
	}
	entries, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Entry, error) {
		var e Entry
		err := row.Scan(&e.At, &e.Actor, &e.Action, &e.Entity, &e.EntityID, &e.Meta)
		return e, err
	})
	if err != nil {
		return nil, mapPgError(err)
	}
	return entries, nil
}

func mapPgError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "42P01" {
		return fmt.Errorf("%w: %s", shared.ErrAuditUnavailable, pgErr.Message)
	}
	return err
}
