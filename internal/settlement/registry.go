package settlement

import (
	"fmt"
	"sync"

	"github.com/kevanbtc/cleargate/pkg/sentinel"
)

// Registry maps rail keys to rail instances and routes a requested transfer
// to the correct state machine.
type Registry struct {
	mu    sync.RWMutex
	rails map[string]*Service
}

// NewRegistry creates an empty rail registry.
func NewRegistry() *Registry {
	return &Registry{rails: make(map[string]*Service)}
}

// Register installs a rail under its key. Duplicate keys are a wiring bug.
func (r *Registry) Register(rail *Service) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.rails[rail.Key()]; exists {
		return fmt.Errorf("%w: rail %q", sentinel.ErrAlreadyExists, rail.Key())
	}
	r.rails[rail.Key()] = rail
	return nil
}

// Dispatch resolves the rail for a key.
func (r *Registry) Dispatch(key string) (*Service, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rail, ok := r.rails[key]
	if !ok {
		return nil, fmt.Errorf("%w: %q", sentinel.ErrUnknownRail, key)
	}
	return rail, nil
}

// Keys lists the registered rail keys.
func (r *Registry) Keys() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	keys := make([]string, 0, len(r.rails))
	for k := range r.rails {
		keys = append(keys, k)
	}
	return keys
}
