package audit

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore persists audit events. The table is append-only: no update
// or delete paths exist by design.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore constructs a Postgres-backed audit store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Append inserts an event into the trail.
func (s *PostgresStore) Append(ctx context.Context, e Event) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO audit_events
		   (id, ts, category, action, subject, signer, reason, digest, detail, request_id)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		e.ID, e.Timestamp, string(e.Category), e.Action,
		e.Subject, e.Signer, e.Reason, e.Digest, e.Detail, e.RequestID,
	)
	if err != nil {
		return fmt.Errorf("append audit event: %w", err)
	}
	return nil
}

// ListBySubject returns events for a subject in append order.
func (s *PostgresStore) ListBySubject(ctx context.Context, subject string) ([]Event, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, ts, category, action, subject, signer, reason, digest, detail, request_id
		   FROM audit_events WHERE subject = $1 ORDER BY ts ASC`,
		subject,
	)
	if err != nil {
		return nil, fmt.Errorf("list audit events: %w", err)
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var e Event
		var category string
		if err := rows.Scan(&e.ID, &e.Timestamp, &category, &e.Action,
			&e.Subject, &e.Signer, &e.Reason, &e.Digest, &e.Detail, &e.RequestID); err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		e.Category = Category(category)
		out = append(out, e)
	}
	return out, rows.Err()
}
