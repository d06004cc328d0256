package custody

import (
	"context"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/kevanbtc/cleargate/pkg/sentinel"
)

// InMemoryStore keeps NAV records in a map guarded by a mutex.
type InMemoryStore struct {
	mu      sync.RWMutex
	records map[common.Address]NAVRecord
}

// NewInMemoryStore creates an empty in-memory NAV store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{records: make(map[common.Address]NAVRecord)}
}

// Get returns the latest record for vault, or ErrNotFound.
func (s *InMemoryStore) Get(_ context.Context, vault common.Address) (NAVRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.records[vault]
	if !ok {
		return NAVRecord{}, fmt.Errorf("%w: nav for vault %s", sentinel.ErrNotFound, vault.Hex())
	}
	return r, nil
}

// Put replaces the record for the vault.
func (s *InMemoryStore) Put(_ context.Context, record NAVRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[record.Vault] = record
	return nil
}
