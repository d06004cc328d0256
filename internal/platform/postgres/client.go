// Package postgres owns the connection pool and schema for the Postgres
// backed stores.
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Connect opens a pgx pool and verifies connectivity.
func Connect(ctx context.Context, url string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres ping: %w", err)
	}
	return pool, nil
}

// Migrate applies the schema. Statements are idempotent so startup can run
// this unconditionally; a real migration tool takes over once the schema
// starts changing between releases.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	for _, stmt := range schema {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("postgres migrate: %w", err)
		}
	}
	return nil
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS profiles (
		subject      TEXT PRIMARY KEY,
		kyc          BOOLEAN NOT NULL DEFAULT FALSE,
		kyb          BOOLEAN NOT NULL DEFAULT FALSE,
		accredited   BOOLEAN NOT NULL DEFAULT FALSE,
		pep          BOOLEAN NOT NULL DEFAULT FALSE,
		sanctioned   BOOLEAN NOT NULL DEFAULT FALSE,
		risk_tier    SMALLINT NOT NULL DEFAULT 0,
		country_code INTEGER NOT NULL DEFAULT 0,
		expires_at   TIMESTAMPTZ NOT NULL,
		metadata_ref BYTEA NOT NULL DEFAULT ''::bytea,
		frozen       BOOLEAN NOT NULL DEFAULT FALSE,
		attested_at  TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS consumed_nonces (
		subject TEXT NOT NULL,
		nonce   BIGINT NOT NULL,
		PRIMARY KEY (subject, nonce)
	)`,
	`CREATE TABLE IF NOT EXISTS nav_reports (
		vault       TEXT PRIMARY KEY,
		value       NUMERIC NOT NULL,
		reported_at TIMESTAMPTZ NOT NULL,
		signer      TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS transfers (
		id     TEXT PRIMARY KEY,
		status SMALLINT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS audit_events (
		id         TEXT PRIMARY KEY,
		ts         TIMESTAMPTZ NOT NULL,
		category   TEXT NOT NULL,
		action     TEXT NOT NULL,
		subject    TEXT NOT NULL DEFAULT '',
		signer     TEXT NOT NULL DEFAULT '',
		reason     TEXT NOT NULL DEFAULT '',
		digest     TEXT NOT NULL DEFAULT '',
		detail     TEXT NOT NULL DEFAULT '',
		request_id TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE INDEX IF NOT EXISTS audit_events_subject_idx ON audit_events (subject, ts)`,
}
