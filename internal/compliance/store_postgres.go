package compliance

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kevanbtc/cleargate/internal/domain"
	"github.com/kevanbtc/cleargate/pkg/sentinel"
)

// PostgresStore persists profiles in PostgreSQL.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore constructs a Postgres-backed profile store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) Get(ctx context.Context, subject common.Address) (domain.Profile, error) {
	var (
		p           domain.Profile
		subjectHex  string
		metadataRef []byte
		expiresAt   time.Time
		attestedAt  time.Time
	)
	err := s.pool.QueryRow(ctx,
		`SELECT subject, kyc, kyb, accredited, pep, sanctioned, risk_tier,
		        country_code, expires_at, metadata_ref, frozen, attested_at
		   FROM profiles WHERE subject = $1`,
		subject.Hex(),
	).Scan(&subjectHex, &p.KYC, &p.KYB, &p.Accredited, &p.PEP, &p.Sanctioned,
		&p.RiskTier, &p.CountryCode, &expiresAt, &metadataRef, &p.Frozen, &attestedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Profile{}, fmt.Errorf("%w: profile %s", sentinel.ErrNotFound, subject.Hex())
		}
		return domain.Profile{}, fmt.Errorf("get profile: %w", err)
	}
	p.Subject = common.HexToAddress(subjectHex)
	p.MetadataRef = common.BytesToHash(metadataRef)
	p.ExpiresAt = expiresAt
	p.AttestedAt = attestedAt
	return p, nil
}

// Put upserts the profile. The frozen column is deliberately excluded from
// the update set so an attestation cannot clear an administrative freeze.
func (s *PostgresStore) Put(ctx context.Context, p domain.Profile) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO profiles
		   (subject, kyc, kyb, accredited, pep, sanctioned, risk_tier,
		    country_code, expires_at, metadata_ref, frozen, attested_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		 ON CONFLICT (subject) DO UPDATE SET
		   kyc = EXCLUDED.kyc, kyb = EXCLUDED.kyb,
		   accredited = EXCLUDED.accredited, pep = EXCLUDED.pep,
		   sanctioned = EXCLUDED.sanctioned, risk_tier = EXCLUDED.risk_tier,
		   country_code = EXCLUDED.country_code, expires_at = EXCLUDED.expires_at,
		   metadata_ref = EXCLUDED.metadata_ref, attested_at = EXCLUDED.attested_at`,
		p.Subject.Hex(), p.KYC, p.KYB, p.Accredited, p.PEP, p.Sanctioned,
		int16(p.RiskTier), int32(p.CountryCode), p.ExpiresAt,
		p.MetadataRef.Bytes(), p.Frozen, p.AttestedAt,
	)
	if err != nil {
		return fmt.Errorf("put profile: %w", err)
	}
	return nil
}

func (s *PostgresStore) SetFrozen(ctx context.Context, subject common.Address, frozen bool) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO profiles (subject, frozen, expires_at, attested_at)
		 VALUES ($1, $2, to_timestamp(0), to_timestamp(0))
		 ON CONFLICT (subject) DO UPDATE SET frozen = EXCLUDED.frozen`,
		subject.Hex(), frozen,
	)
	if err != nil {
		return fmt.Errorf("set frozen: %w", err)
	}
	return nil
}
