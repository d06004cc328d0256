// Package courtorder is the legal-order ledger: freeze, unfreeze, forced
// transfer, and forced redemption instructions filed by the COURT role.
//
// Freeze lookups are indexed per (token, subject) rather than scanned, so
// the policy gate's Frozen check is O(1) regardless of order count.
package courtorder

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/kevanbtc/cleargate/internal/audit"
	"github.com/kevanbtc/cleargate/internal/domain"
	"github.com/kevanbtc/cleargate/internal/rbac"
	"github.com/kevanbtc/cleargate/pkg/requestcontext"
	"github.com/kevanbtc/cleargate/pkg/sentinel"
)

type freezeKey struct {
	token   common.Address
	subject common.Address
}

// Registry is the in-process court-order ledger. All mutations happen under
// one mutex so check-and-set sequences are atomic; no lock is ever held
// across calls into other components except the Execute callback, which is
// the transaction body by design.
type Registry struct {
	mu           sync.Mutex
	orders       map[common.Hash]*domain.CourtOrder
	frozen       map[freezeKey]common.Hash // active freeze order per pair
	globalFreeze map[common.Address]bool

	roles   *rbac.Authorizer
	auditor *audit.Publisher
	logger  *slog.Logger
	now     func() time.Time
}

// NewRegistry creates an empty registry.
func NewRegistry(roles *rbac.Authorizer, auditor *audit.Publisher, logger *slog.Logger) *Registry {
	return &Registry{
		orders:       make(map[common.Hash]*domain.CourtOrder),
		frozen:       make(map[freezeKey]common.Hash),
		globalFreeze: make(map[common.Address]bool),
		roles:        roles,
		auditor:      auditor,
		logger:       logger,
		now:          time.Now,
	}
}

// WithClock overrides the time source; tests use this for expiry windows.
func (r *Registry) WithClock(now func() time.Time) *Registry {
	r.now = now
	return r
}

// FileOrder records a new order. COURT role only. The id must be unique and
// non-zero, and subject and token must be non-zero.
//
// FREEZE orders index the (token, subject) pair immediately; UNFREEZE orders
// clear the index and deactivate the superseded freeze.
func (r *Registry) FileOrder(ctx context.Context, order domain.CourtOrder) error {
	if err := r.roles.Require(rbac.RoleCourt, requestcontext.Principal(ctx)); err != nil {
		return err
	}
	if order.ID == (common.Hash{}) {
		return fmt.Errorf("order id must be non-zero")
	}
	if order.Subject == (common.Address{}) || order.Token == (common.Address{}) {
		return fmt.Errorf("order subject and token must be non-zero")
	}
	if !order.Action.OneShot() && order.Action != domain.ActionFreeze && order.Action != domain.ActionUnfreeze {
		return fmt.Errorf("invalid order action %q", order.Action)
	}

	r.mu.Lock()
	if _, exists := r.orders[order.ID]; exists {
		r.mu.Unlock()
		return fmt.Errorf("%w: order %s", sentinel.ErrAlreadyExists, order.ID.Hex())
	}

	order.CreatedAt = r.now()
	order.Active = true
	order.Executed = false
	r.orders[order.ID] = &order

	key := freezeKey{token: order.Token, subject: order.Subject}
	switch order.Action {
	case domain.ActionFreeze:
		r.frozen[key] = order.ID
	case domain.ActionUnfreeze:
		if prevID, ok := r.frozen[key]; ok {
			if prev := r.orders[prevID]; prev != nil {
				prev.Active = false
			}
			delete(r.frozen, key)
		}
	}
	r.mu.Unlock()

	if r.logger != nil {
		r.logger.InfoContext(ctx, "court order filed",
			"order_id", order.ID.Hex(),
			"action", string(order.Action),
			"subject", order.Subject.Hex(),
			"token", order.Token.Hex(),
		)
	}
	if r.auditor != nil {
		return r.auditor.Emit(ctx, audit.Event{
			Category: audit.CategoryCompliance,
			Action:   audit.EventOrderFiled,
			Subject:  order.Subject.Hex(),
			Detail:   string(order.Action),
		})
	}
	return nil
}

// Get returns a copy of the stored order.
func (r *Registry) Get(_ context.Context, id common.Hash) (domain.CourtOrder, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	order, ok := r.orders[id]
	if !ok {
		return domain.CourtOrder{}, fmt.Errorf("%w: order %s", sentinel.ErrNotFound, id.Hex())
	}
	return *order, nil
}

// IsActive reports whether the order can currently take effect.
//
// FREEZE/UNFREEZE reflect the stored active flag; validUntil is consulted
// only when explicitly set, since freezes are typically indefinite. One-shot
// actions are active iff not yet executed and not expired.
func (r *Registry) IsActive(_ context.Context, id common.Hash) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	order, ok := r.orders[id]
	if !ok {
		return false
	}
	return r.isActiveLocked(order)
}

func (r *Registry) isActiveLocked(order *domain.CourtOrder) bool {
	now := r.now()
	if order.Action.OneShot() {
		return !order.Executed && order.Active && !order.Expired(now)
	}
	if !order.ValidUntil.IsZero() && order.Expired(now) {
		return false
	}
	return order.Active
}

// MarkExecuted consumes a one-shot order. Calling it twice fails with
// ErrAlreadyExecuted: forced movements must never double-apply.
func (r *Registry) MarkExecuted(ctx context.Context, id common.Hash) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.markExecutedLocked(ctx, id)
}

func (r *Registry) markExecutedLocked(_ context.Context, id common.Hash) error {
	order, ok := r.orders[id]
	if !ok {
		return fmt.Errorf("%w: order %s", sentinel.ErrNotFound, id.Hex())
	}
	if !order.Action.OneShot() {
		return fmt.Errorf("order %s is not one-shot", id.Hex())
	}
	if order.Executed {
		return fmt.Errorf("%w: order %s", sentinel.ErrAlreadyExecuted, id.Hex())
	}
	order.Executed = true
	order.Active = false
	return nil
}

// Execute atomically re-validates the order and runs the movement under the
// registry lock, then marks the order executed. The active check and the
// execution mark cannot be separated by another caller, which is the
// time-of-check/time-of-use guarantee the forced-action controller needs.
func (r *Registry) Execute(ctx context.Context, id common.Hash, movement func(domain.CourtOrder) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	order, ok := r.orders[id]
	if !ok {
		return fmt.Errorf("%w: order %s", sentinel.ErrNotFound, id.Hex())
	}
	if order.Executed {
		return fmt.Errorf("%w: order %s", sentinel.ErrAlreadyExecuted, id.Hex())
	}
	if !r.isActiveLocked(order) {
		return fmt.Errorf("%w: order %s", sentinel.ErrOrderNotActive, id.Hex())
	}

	if err := movement(*order); err != nil {
		return err
	}
	return r.markExecutedLocked(ctx, id)
}

// SubjectFrozen reports whether an active FREEZE order names the pair.
func (r *Registry) SubjectFrozen(_ context.Context, token, subject common.Address) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.frozen[freezeKey{token: token, subject: subject}]
	if !ok {
		return false
	}
	order := r.orders[id]
	return order != nil && r.isActiveLocked(order)
}

// GlobalFreeze reports whether the token is frozen for all subjects.
func (r *Registry) GlobalFreeze(_ context.Context, token common.Address) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.globalFreeze[token]
}

// SetGlobalFreeze toggles the token-wide freeze. COURT role only.
func (r *Registry) SetGlobalFreeze(ctx context.Context, token common.Address, frozen bool) error {
	if err := r.roles.Require(rbac.RoleCourt, requestcontext.Principal(ctx)); err != nil {
		return err
	}
	r.mu.Lock()
	r.globalFreeze[token] = frozen
	r.mu.Unlock()

	action := audit.EventSubjectFrozen
	if !frozen {
		action = audit.EventSubjectUnfrozen
	}
	if r.auditor != nil {
		return r.auditor.Emit(ctx, audit.Event{
			Category: audit.CategoryCompliance,
			Action:   action,
			Subject:  token.Hex(),
			Detail:   "global_freeze",
		})
	}
	return nil
}
