package settlement

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kevanbtc/cleargate/internal/domain"
)

// PostgresStore persists transfer statuses in PostgreSQL. The NONE ->
// PREPARED transition is an INSERT guarded by the primary key; later
// transitions are conditional UPDATEs, so both are atomic at the database.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore constructs a Postgres-backed status store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) Get(ctx context.Context, id common.Hash) (domain.TransferStatus, error) {
	var status int16
	err := s.pool.QueryRow(ctx,
		`SELECT status FROM transfers WHERE id = $1`, id.Hex(),
	).Scan(&status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.StatusNone, nil
		}
		return domain.StatusNone, fmt.Errorf("get transfer status: %w", err)
	}
	return domain.TransferStatus(status), nil
}

func (s *PostgresStore) CompareAndSwap(ctx context.Context, id common.Hash, from, to domain.TransferStatus) (bool, error) {
	if from == domain.StatusNone {
		tag, err := s.pool.Exec(ctx,
			`INSERT INTO transfers (id, status) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
			id.Hex(), int16(to),
		)
		if err != nil {
			return false, fmt.Errorf("prepare transfer: %w", err)
		}
		return tag.RowsAffected() == 1, nil
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE transfers SET status = $3 WHERE id = $1 AND status = $2`,
		id.Hex(), int16(from), int16(to),
	)
	if err != nil {
		return false, fmt.Errorf("transition transfer: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}
