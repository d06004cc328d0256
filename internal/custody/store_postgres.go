package custody

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kevanbtc/cleargate/pkg/sentinel"
)

// PostgresStore persists NAV records in PostgreSQL. Values are stored as
// NUMERIC text to preserve arbitrary precision.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore constructs a Postgres-backed NAV store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) Get(ctx context.Context, vault common.Address) (NAVRecord, error) {
	var (
		r          NAVRecord
		vaultHex   string
		valueText  string
		signerHex  string
		reportedAt time.Time
	)
	err := s.pool.QueryRow(ctx,
		`SELECT vault, value, reported_at, signer FROM nav_reports WHERE vault = $1`,
		vault.Hex(),
	).Scan(&vaultHex, &valueText, &reportedAt, &signerHex)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return NAVRecord{}, fmt.Errorf("%w: nav for vault %s", sentinel.ErrNotFound, vault.Hex())
		}
		return NAVRecord{}, fmt.Errorf("get nav: %w", err)
	}

	value, ok := new(big.Int).SetString(valueText, 10)
	if !ok {
		return NAVRecord{}, fmt.Errorf("get nav: corrupt value %q", valueText)
	}
	r.Vault = common.HexToAddress(vaultHex)
	r.Value = value
	r.ReportedAt = reportedAt
	r.Signer = common.HexToAddress(signerHex)
	return r, nil
}

func (s *PostgresStore) Put(ctx context.Context, r NAVRecord) error {
	value := r.Value
	if value == nil {
		value = new(big.Int)
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO nav_reports (vault, value, reported_at, signer)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (vault) DO UPDATE SET
		   value = EXCLUDED.value, reported_at = EXCLUDED.reported_at,
		   signer = EXCLUDED.signer`,
		r.Vault.Hex(), value.String(), r.ReportedAt, r.Signer.Hex(),
	)
	if err != nil {
		return fmt.Errorf("put nav: %w", err)
	}
	return nil
}
