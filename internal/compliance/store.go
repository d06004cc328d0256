// Package compliance owns the authoritative Profile registry. Profiles are
// mutated only through verified attestation claims; the lone exception is the
// administrative freeze flag, set by the COMPLIANCE role.
package compliance

import (
	"context"

	"github.com/ethereum/go-ethereum/common"

	"github.com/kevanbtc/cleargate/internal/domain"
)

// Store persists profiles keyed by subject address.
type Store interface {
	Get(ctx context.Context, subject common.Address) (domain.Profile, error)
	Put(ctx context.Context, profile domain.Profile) error
	SetFrozen(ctx context.Context, subject common.Address, frozen bool) error
}
