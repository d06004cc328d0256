// Package config builds runtime configuration from environment variables so
// main stays lean. Defaults favor local development; production overrides
// everything via the environment.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config captures the full server configuration.
type Config struct {
	Addr    string
	ChainID int64

	// PostgresURL enables the Postgres-backed stores when set; otherwise
	// the in-memory stores are used.
	PostgresURL string

	// RedisAddr enables the Redis replay guard when set.
	RedisAddr     string
	RedisPassword string

	// KafkaBrokers enables the audit Kafka sink when non-empty.
	KafkaBrokers []string
	KafkaTopic   string

	// JWTSigningKey verifies bearer tokens on role-gated endpoints.
	JWTSigningKey string

	// RoleGrants seeds the authorizer, formatted "principal:ROLE".
	RoleGrants []string

	// Signer allowlists per claim kind, comma-separated hex addresses.
	AttestationSigners []string
	NAVSigners         []string
	ReceiptSigners     []string

	// Rails lists the settlement rail keys to register.
	Rails []string

	ShutdownTimeout time.Duration
}

// FromEnv reads configuration from the environment.
func FromEnv() Config {
	cfg := Config{
		Addr:            envOr("CLEARGATE_ADDR", ":8080"),
		ChainID:         envInt64("CLEARGATE_CHAIN_ID", 1),
		PostgresURL:     os.Getenv("CLEARGATE_POSTGRES_URL"),
		RedisAddr:       os.Getenv("CLEARGATE_REDIS_ADDR"),
		RedisPassword:   os.Getenv("CLEARGATE_REDIS_PASSWORD"),
		KafkaTopic:      envOr("CLEARGATE_KAFKA_TOPIC", "cleargate.audit"),
		JWTSigningKey:   envOr("CLEARGATE_JWT_SIGNING_KEY", "dev-secret-key-change-in-production"),
		ShutdownTimeout: 10 * time.Second,
	}
	if brokers := os.Getenv("CLEARGATE_KAFKA_BROKERS"); brokers != "" {
		cfg.KafkaBrokers = strings.Split(brokers, ",")
	}
	cfg.RoleGrants = envList("CLEARGATE_ROLE_GRANTS")
	cfg.AttestationSigners = envList("CLEARGATE_ATTESTATION_SIGNERS")
	cfg.NAVSigners = envList("CLEARGATE_NAV_SIGNERS")
	cfg.ReceiptSigners = envList("CLEARGATE_RECEIPT_SIGNERS")
	cfg.Rails = envList("CLEARGATE_RAILS")
	if len(cfg.Rails) == 0 {
		cfg.Rails = []string{"internal"}
	}
	return cfg
}

func envList(key string) []string {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt64(key string, fallback int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return fallback
	}
	return n
}
