package replay

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/kevanbtc/cleargate/pkg/sentinel"
)

const consumedKeyPrefix = "replay:consumed:"

// RedisGuard is a Redis-backed nonce ledger for distributed deployments.
// SET NX gives the atomic check-and-set; keys carry no TTL because a
// consumed nonce must stay consumed forever.
type RedisGuard struct {
	client *redis.Client
}

// NewRedis constructs a Redis-backed guard.
func NewRedis(client *redis.Client) *RedisGuard {
	return &RedisGuard{client: client}
}

// Consume marks (subject, nonce) used, failing with ErrReplay on reuse.
func (g *RedisGuard) Consume(ctx context.Context, subject string, nonce uint64) error {
	key := consumedKeyPrefix + nonceKey(subject, nonce)

	// Key existence is the marker; "1" is arbitrary. TTL 0 = no expiry.
	set, err := g.client.SetNX(ctx, key, "1", 0).Result()
	if err != nil {
		return fmt.Errorf("replay guard: redis setnx: %w", err)
	}
	if !set {
		return fmt.Errorf("%w: nonce %d already consumed for %s", sentinel.ErrReplay, nonce, subject)
	}
	return nil
}
