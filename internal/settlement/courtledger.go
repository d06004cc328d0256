package settlement

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/kevanbtc/cleargate/internal/domain"
)

// CourtLedger adapts a rail into the movement collaborator the court-order
// controller expects. A forced movement runs the full prepare/release cycle
// on the rail so it leaves the same trail as a voluntary transfer; the
// operator role check is skipped because the COURT check already happened
// upstream and the order registry guarantees at-most-once execution.
type CourtLedger struct {
	rail *Service
}

// NewCourtLedger wraps a rail for forced movements.
func NewCourtLedger(rail *Service) *CourtLedger {
	return &CourtLedger{rail: rail}
}

// ForceTransfer moves amount from the subject to the target.
func (l *CourtLedger) ForceTransfer(ctx context.Context, orderID common.Hash, token, from, to common.Address, amount *big.Int) error {
	return l.settle(ctx, domain.Transfer{
		Asset:    token,
		From:     from,
		To:       to,
		Amount:   amount,
		Metadata: orderMetadata(orderID),
	})
}

// ForceRedeem retires amount from the subject; the zero destination marks
// the redemption.
func (l *CourtLedger) ForceRedeem(ctx context.Context, orderID common.Hash, token, from common.Address, amount *big.Int) error {
	return l.settle(ctx, domain.Transfer{
		Asset:    token,
		From:     from,
		Amount:   amount,
		Metadata: orderMetadata(orderID),
	})
}

// orderMetadata binds the transfer id to the filing order, so two orders with
// identical movement parameters settle as distinct transfers.
func orderMetadata(orderID common.Hash) []byte {
	return append([]byte("court_order:"), orderID.Bytes()...)
}

func (l *CourtLedger) settle(ctx context.Context, t domain.Transfer) error {
	if l.rail == nil {
		return fmt.Errorf("settlement: no rail configured for forced movements")
	}
	if _, err := l.rail.Prepare(ctx, t); err != nil {
		return err
	}
	return l.rail.release(ctx, t)
}
