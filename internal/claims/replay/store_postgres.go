package replay

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kevanbtc/cleargate/pkg/sentinel"
)

// PostgresGuard persists consumed nonces in PostgreSQL. The unique constraint
// on (subject, nonce) makes INSERT .. ON CONFLICT DO NOTHING the atomic
// check-and-set; zero rows affected means the pair was already consumed.
type PostgresGuard struct {
	pool *pgxpool.Pool
}

// NewPostgres constructs a Postgres-backed guard.
func NewPostgres(pool *pgxpool.Pool) *PostgresGuard {
	return &PostgresGuard{pool: pool}
}

// Consume marks (subject, nonce) used, failing with ErrReplay on reuse.
func (g *PostgresGuard) Consume(ctx context.Context, subject string, nonce uint64) error {
	tag, err := g.pool.Exec(ctx,
		`INSERT INTO consumed_nonces (subject, nonce) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
		subject, int64(nonce),
	)
	if err != nil {
		return fmt.Errorf("replay guard: insert nonce: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: nonce %d already consumed for %s", sentinel.ErrReplay, nonce, subject)
	}
	return nil
}
