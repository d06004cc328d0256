package courtorder

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/kevanbtc/cleargate/internal/audit"
	"github.com/kevanbtc/cleargate/internal/domain"
	"github.com/kevanbtc/cleargate/internal/rbac"
	"github.com/kevanbtc/cleargate/pkg/requestcontext"
)

// Ledger is the token-side collaborator that actually moves value. Supply
// mechanics are out of scope here; the controller only guarantees that a
// movement happens at most once per order and only while the order is active.
// The order id disambiguates movements: two orders with identical parameters
// are distinct legal instructions and must settle independently.
type Ledger interface {
	ForceTransfer(ctx context.Context, orderID common.Hash, token, from, to common.Address, amount *big.Int) error
	ForceRedeem(ctx context.Context, orderID common.Hash, token, from common.Address, amount *big.Int) error
}

// Controller executes one-shot court orders against the ledger. The active
// re-check and the executed mark happen atomically with the movement inside
// Registry.Execute.
type Controller struct {
	registry *Registry
	ledger   Ledger
	roles    *rbac.Authorizer
	auditor  *audit.Publisher
	logger   *slog.Logger
}

// NewController wires the forced-action controller.
func NewController(registry *Registry, ledger Ledger, roles *rbac.Authorizer, auditor *audit.Publisher, logger *slog.Logger) (*Controller, error) {
	if registry == nil {
		return nil, fmt.Errorf("courtorder: registry is required")
	}
	if ledger == nil {
		return nil, fmt.Errorf("courtorder: ledger is required")
	}
	return &Controller{
		registry: registry,
		ledger:   ledger,
		roles:    roles,
		auditor:  auditor,
		logger:   logger,
	}, nil
}

// ForceTransfer executes a FORCE_TRANSFER order. COURT role only.
func (c *Controller) ForceTransfer(ctx context.Context, orderID common.Hash) error {
	if err := c.roles.Require(rbac.RoleCourt, requestcontext.Principal(ctx)); err != nil {
		return err
	}
	err := c.registry.Execute(ctx, orderID, func(order domain.CourtOrder) error {
		if order.Action != domain.ActionForceTransfer {
			return fmt.Errorf("order %s is %s, not FORCE_TRANSFER", orderID.Hex(), order.Action)
		}
		return c.ledger.ForceTransfer(ctx, order.ID, order.Token, order.Subject, order.Target, order.Amount)
	})
	if err != nil {
		return err
	}
	return c.recordExecution(ctx, orderID, domain.ActionForceTransfer)
}

// ForceRedeem executes a FORCE_REDEEM order. COURT role only.
func (c *Controller) ForceRedeem(ctx context.Context, orderID common.Hash) error {
	if err := c.roles.Require(rbac.RoleCourt, requestcontext.Principal(ctx)); err != nil {
		return err
	}
	err := c.registry.Execute(ctx, orderID, func(order domain.CourtOrder) error {
		if order.Action != domain.ActionForceRedeem {
			return fmt.Errorf("order %s is %s, not FORCE_REDEEM", orderID.Hex(), order.Action)
		}
		return c.ledger.ForceRedeem(ctx, order.ID, order.Token, order.Subject, order.Amount)
	})
	if err != nil {
		return err
	}
	return c.recordExecution(ctx, orderID, domain.ActionForceRedeem)
}

func (c *Controller) recordExecution(ctx context.Context, orderID common.Hash, action domain.OrderAction) error {
	if c.logger != nil {
		c.logger.InfoContext(ctx, "court order executed",
			"order_id", orderID.Hex(), "action", string(action))
	}
	if c.auditor != nil {
		return c.auditor.Emit(ctx, audit.Event{
			Category: audit.CategoryCompliance,
			Action:   audit.EventOrderExecuted,
			Subject:  orderID.Hex(),
			Detail:   string(action),
		})
	}
	return nil
}
