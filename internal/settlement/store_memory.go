package settlement

import (
	"context"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/kevanbtc/cleargate/internal/domain"
)

// InMemoryStore keeps transfer statuses in a map guarded by a mutex.
type InMemoryStore struct {
	mu       sync.Mutex
	statuses map[common.Hash]domain.TransferStatus
}

// NewInMemoryStore creates an empty in-memory status store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{statuses: make(map[common.Hash]domain.TransferStatus)}
}

func (s *InMemoryStore) Get(_ context.Context, id common.Hash) (domain.TransferStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.statuses[id], nil
}

func (s *InMemoryStore) CompareAndSwap(_ context.Context, id common.Hash, from, to domain.TransferStatus) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.statuses[id] != from {
		return false, nil
	}
	s.statuses[id] = to
	return true, nil
}
