package replay

import (
	"context"
	"fmt"
	"sync"

	"github.com/kevanbtc/cleargate/pkg/sentinel"
)

// InMemoryGuard is a process-local nonce ledger. Suitable for tests and
// single-instance deployments; distributed deployments share state through
// the Redis or Postgres guard.
type InMemoryGuard struct {
	mu       sync.Mutex
	consumed map[string]struct{}
}

// NewInMemory creates an empty in-memory guard.
func NewInMemory() *InMemoryGuard {
	return &InMemoryGuard{consumed: make(map[string]struct{})}
}

// Consume marks (subject, nonce) used, failing with ErrReplay on reuse.
func (g *InMemoryGuard) Consume(_ context.Context, subject string, nonce uint64) error {
	key := nonceKey(subject, nonce)

	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.consumed[key]; ok {
		return fmt.Errorf("%w: nonce %d already consumed for %s", sentinel.ErrReplay, nonce, subject)
	}
	g.consumed[key] = struct{}{}
	return nil
}

func nonceKey(subject string, nonce uint64) string {
	return fmt.Sprintf("%s:%d", subject, nonce)
}
