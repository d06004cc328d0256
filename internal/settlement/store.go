// Package settlement tracks cross-venue transfer completion through the
// NONE -> PREPARED -> RELEASED | REVERTED state machine, keyed by the
// deterministic TransferID.
package settlement

import (
	"context"

	"github.com/ethereum/go-ethereum/common"

	"github.com/kevanbtc/cleargate/internal/domain"
)

// StatusStore persists per-transfer status. CompareAndSwap is the only write
// path: every transition is an atomic check-and-set so conflicting claims
// submitted in the same window are rejected by state, not by luck.
type StatusStore interface {
	// Get returns the current status; unknown ids are StatusNone.
	Get(ctx context.Context, id common.Hash) (domain.TransferStatus, error)

	// CompareAndSwap transitions id from `from` to `to`, returning false
	// when the current status differs from `from`.
	CompareAndSwap(ctx context.Context, id common.Hash, from, to domain.TransferStatus) (bool, error)
}
