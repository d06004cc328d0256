package domain

import (
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// OrderAction is the kind of legally-sourced instruction a court order carries.
type OrderAction string

const (
	ActionFreeze        OrderAction = "FREEZE"
	ActionUnfreeze      OrderAction = "UNFREEZE"
	ActionForceTransfer OrderAction = "FORCE_TRANSFER"
	ActionForceRedeem   OrderAction = "FORCE_REDEEM"
)

var validOrderActions = map[OrderAction]bool{
	ActionFreeze:        true,
	ActionUnfreeze:      true,
	ActionForceTransfer: true,
	ActionForceRedeem:   true,
}

// ParseOrderAction constructs an OrderAction from external input.
func ParseOrderAction(s string) (OrderAction, error) {
	a := OrderAction(s)
	if !validOrderActions[a] {
		return "", fmt.Errorf("invalid order action %q", s)
	}
	return a, nil
}

// OneShot reports whether the action is consumed by a single execution.
// FREEZE/UNFREEZE toggle state and stay active until superseded.
func (a OrderAction) OneShot() bool {
	return a == ActionForceTransfer || a == ActionForceRedeem
}

// CourtOrder is a privileged instruction filed by the COURT role.
//
// Lifecycle: filed -> (active | executed | expired). One-shot actions are
// marked executed exactly once; freeze/unfreeze orders stay active until an
// explicit superseding order.
type CourtOrder struct {
	ID      common.Hash
	Subject common.Address
	Token   common.Address
	Action  OrderAction
	Target  common.Address // recipient for FORCE_TRANSFER
	Amount  *big.Int

	CreatedAt  time.Time
	ValidUntil time.Time // zero value = no expiry
	Executed   bool
	Active     bool
}

// Expired reports whether the order's validity window has lapsed at now.
// A zero ValidUntil never expires.
func (o CourtOrder) Expired(now time.Time) bool {
	return !o.ValidUntil.IsZero() && now.After(o.ValidUntil)
}
