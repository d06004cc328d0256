package compliance

import (
	"context"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/kevanbtc/cleargate/internal/domain"
	"github.com/kevanbtc/cleargate/pkg/sentinel"
)

// InMemoryStore keeps profiles in a map guarded by a mutex.
type InMemoryStore struct {
	mu       sync.RWMutex
	profiles map[common.Address]domain.Profile
}

// NewInMemoryStore creates an empty in-memory profile store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{profiles: make(map[common.Address]domain.Profile)}
}

// Get returns the profile for subject, or ErrNotFound.
func (s *InMemoryStore) Get(_ context.Context, subject common.Address) (domain.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.profiles[subject]
	if !ok {
		return domain.Profile{}, fmt.Errorf("%w: profile %s", sentinel.ErrNotFound, subject.Hex())
	}
	return p, nil
}

// Put replaces the profile wholesale. The attestation applier is the only
// production caller. An existing administrative freeze survives the update:
// an attestor cannot unfreeze a subject.
func (s *InMemoryStore) Put(_ context.Context, profile domain.Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if prev, ok := s.profiles[profile.Subject]; ok && prev.Frozen {
		profile.Frozen = true
	}
	s.profiles[profile.Subject] = profile
	return nil
}

// SetFrozen flips the administrative freeze flag. Unknown subjects get a
// frozen stub so freezes can precede first attestation.
func (s *InMemoryStore) SetFrozen(_ context.Context, subject common.Address, frozen bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.profiles[subject]
	if !ok {
		p = domain.Profile{Subject: subject}
	}
	p.Frozen = frozen
	s.profiles[subject] = p
	return nil
}
