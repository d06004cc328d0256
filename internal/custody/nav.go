// Package custody tracks custodian-reported net asset values per vault.
// The reported value is mutated only through verified NAV report claims; the
// policy gate consumes the report age for its freshness check on NAV_ATTEST
// guarded operations.
package custody

import (
	"context"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// NAVRecord is the latest accepted NAV report for a vault.
type NAVRecord struct {
	Vault      common.Address
	Value      *big.Int
	ReportedAt time.Time
	Signer     common.Address
}

// Age returns how old the report is at now.
func (r NAVRecord) Age(now time.Time) time.Duration {
	if r.ReportedAt.IsZero() {
		return 0
	}
	return now.Sub(r.ReportedAt)
}

// Store persists the per-vault reported value.
type Store interface {
	Get(ctx context.Context, vault common.Address) (NAVRecord, error)
	Put(ctx context.Context, record NAVRecord) error
}
