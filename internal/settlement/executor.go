package settlement

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/kevanbtc/cleargate/internal/domain"
)

// Executor performs the value movement behind a status transition. Token
// supply mechanics are out of scope; rails delegate to a collaborator and
// only guarantee the transition bookkeeping around it.
type Executor interface {
	// Release finalizes a prepared transfer.
	Release(ctx context.Context, t domain.Transfer) error

	// Revert unwinds a prepared transfer.
	Revert(ctx context.Context, t domain.Transfer) error
}

// ExternalExecutor backs rails whose settlement happens entirely off-chain
// (custodian or bank rails). The signed receipt is the settlement evidence;
// there is nothing to move locally.
type ExternalExecutor struct{}

func (ExternalExecutor) Release(context.Context, domain.Transfer) error { return nil }
func (ExternalExecutor) Revert(context.Context, domain.Transfer) error  { return nil }

// TokenLedger is the token-contract collaborator for on-chain rails.
type TokenLedger interface {
	Transfer(ctx context.Context, asset, from, to common.Address, amount *big.Int) error
}

// LedgerExecutor backs rails that settle against a local token ledger:
// release moves the amount forward, revert returns it to the sender.
type LedgerExecutor struct {
	ledger TokenLedger
}

// NewLedgerExecutor wraps a token ledger.
func NewLedgerExecutor(ledger TokenLedger) (*LedgerExecutor, error) {
	if ledger == nil {
		return nil, fmt.Errorf("settlement: ledger is required")
	}
	return &LedgerExecutor{ledger: ledger}, nil
}

func (e *LedgerExecutor) Release(ctx context.Context, t domain.Transfer) error {
	return e.ledger.Transfer(ctx, t.Asset, t.From, t.To, t.Amount)
}

func (e *LedgerExecutor) Revert(ctx context.Context, t domain.Transfer) error {
	// Nothing moved at prepare time, so revert is pure bookkeeping.
	return nil
}
