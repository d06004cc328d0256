package settlement

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/kevanbtc/cleargate/internal/audit"
	"github.com/kevanbtc/cleargate/internal/claims"
	"github.com/kevanbtc/cleargate/internal/claims/applier"
	"github.com/kevanbtc/cleargate/internal/claims/replay"
	"github.com/kevanbtc/cleargate/internal/domain"
	"github.com/kevanbtc/cleargate/internal/rbac"
	"github.com/kevanbtc/cleargate/pkg/requestcontext"
	"github.com/kevanbtc/cleargate/pkg/sentinel"
)

// Service is one settlement rail's state machine instance. Transitions come
// from two places: the operator role (on-chain party variant) and verified
// settlement receipts (external rail variant). Both funnel through the same
// compare-and-swap, so ordering races between them resolve by state, and the
// loser gets NotPrepared rather than a double-apply.
type Service struct {
	key      string
	store    StatusStore
	executor Executor
	receipts *applier.Applier[claims.ReceiptClaim]
	roles    *rbac.Authorizer
	auditor  *audit.Publisher
	logger   *slog.Logger
	metrics  *Metrics
}

// NewService builds a rail instance. The receipt applier is wired internally
// so markWithReceipt shares the verifier/replay pipeline with the other
// claim kinds.
func NewService(
	key string,
	store StatusStore,
	executor Executor,
	verifier *claims.Verifier,
	guard replay.Guard,
	roles *rbac.Authorizer,
	auditor *audit.Publisher,
	logger *slog.Logger,
	applierMetrics *applier.Metrics,
	opts ...Option,
) (*Service, error) {
	if key == "" {
		return nil, fmt.Errorf("settlement: rail key is required")
	}
	if store == nil {
		return nil, fmt.Errorf("settlement: status store is required")
	}
	if executor == nil {
		return nil, fmt.Errorf("settlement: executor is required")
	}

	s := &Service{
		key:      key,
		store:    store,
		executor: executor,
		roles:    roles,
		auditor:  auditor,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(s)
	}

	// The receipt's apply step holds a pending transfer handed over by
	// MarkWithReceipt; the claim itself carries only the transfer id.
	apply := func(ctx context.Context, claim claims.ReceiptClaim, _ common.Address) error {
		t, ok := pendingFromContext(ctx)
		if !ok || t.ID() != claim.TransferID {
			return fmt.Errorf("receipt transfer id %s does not match submission", claim.TransferID.Hex())
		}
		if claim.Released {
			return s.release(ctx, t)
		}
		return s.revert(ctx, t)
	}

	applierOpts := []applier.Option[claims.ReceiptClaim]{
		applier.WithMetrics[claims.ReceiptClaim](applierMetrics),
	}
	if auditor != nil {
		applierOpts = append(applierOpts, applier.WithAuditor[claims.ReceiptClaim](auditor))
	}
	ap, err := applier.New(claims.KindReceipt, verifier, guard, apply, logger, applierOpts...)
	if err != nil {
		return nil, err
	}
	s.receipts = ap
	return s, nil
}

// Option configures a Service.
type Option func(*Service)

// WithMetrics attaches the settlement metrics collector.
func WithMetrics(m *Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// Key returns the rail key this instance is registered under.
func (s *Service) Key() string { return s.key }

// Status returns the current status for a transfer id.
func (s *Service) Status(ctx context.Context, id common.Hash) (domain.TransferStatus, error) {
	return s.store.Get(ctx, id)
}

// Prepare computes the deterministic transfer id and moves it NONE ->
// PREPARED. The id doubles as a deduplication key: re-submitting an
// identical logical transfer fails AlreadyPrepared instead of
// double-counting.
func (s *Service) Prepare(ctx context.Context, t domain.Transfer) (common.Hash, error) {
	id := t.ID()
	swapped, err := s.store.CompareAndSwap(ctx, id, domain.StatusNone, domain.StatusPrepared)
	if err != nil {
		return common.Hash{}, err
	}
	if !swapped {
		return common.Hash{}, fmt.Errorf("%w: transfer %s", sentinel.ErrAlreadyPrepared, id.Hex())
	}

	s.metrics.ObserveTransition(s.key, domain.StatusPrepared.String())
	if s.logger != nil {
		s.logger.InfoContext(ctx, "transfer prepared",
			"rail", s.key, "transfer_id", id.Hex(), "asset", t.Asset.Hex())
	}
	if s.auditor != nil {
		if err := s.auditor.Emit(ctx, audit.Event{
			Category: audit.CategoryOperations,
			Action:   audit.EventTransferPrepared,
			Subject:  id.Hex(),
			Detail:   s.key,
		}); err != nil {
			return common.Hash{}, err
		}
	}
	return id, nil
}

// Release finalizes a prepared transfer. Operator (ADMIN role) variant of
// the transition; external rails use MarkWithReceipt instead.
func (s *Service) Release(ctx context.Context, t domain.Transfer) error {
	if err := s.roles.Require(rbac.RoleAdmin, requestcontext.Principal(ctx)); err != nil {
		return err
	}
	return s.release(ctx, t)
}

// Revert unwinds a prepared transfer. Operator (ADMIN role) variant.
func (s *Service) Revert(ctx context.Context, t domain.Transfer) error {
	if err := s.roles.Require(rbac.RoleAdmin, requestcontext.Principal(ctx)); err != nil {
		return err
	}
	return s.revert(ctx, t)
}

// MarkWithReceipt applies an off-chain settlement receipt. Authenticity
// comes solely from the recovered signer being allowlisted for receipts;
// the submitting account may be any relayer. Fails with
// ErrUnauthorizedSigner for unknown signers and ErrNotPrepared when invoked
// out of order.
func (s *Service) MarkWithReceipt(ctx context.Context, t domain.Transfer, released bool, settledAt time.Time, env claims.Envelope, sig []byte) error {
	claim := claims.ReceiptClaim{
		TransferID: t.ID(),
		Released:   released,
		SettledAt:  settledAt,
		Env:        env,
	}
	_, err := s.receipts.Submit(withPending(ctx, t), claim, sig)
	return err
}

func (s *Service) release(ctx context.Context, t domain.Transfer) error {
	id := t.ID()
	swapped, err := s.store.CompareAndSwap(ctx, id, domain.StatusPrepared, domain.StatusReleased)
	if err != nil {
		return err
	}
	if !swapped {
		return fmt.Errorf("%w: transfer %s", sentinel.ErrNotPrepared, id.Hex())
	}

	if err := s.executor.Release(ctx, t); err != nil {
		// Roll the status back so the transfer can be retried; the state
		// machine must not report RELEASED for a movement that failed.
		if _, rbErr := s.store.CompareAndSwap(ctx, id, domain.StatusReleased, domain.StatusPrepared); rbErr != nil && s.logger != nil {
			s.logger.ErrorContext(ctx, "release rollback failed",
				"transfer_id", id.Hex(), "error", rbErr)
		}
		return fmt.Errorf("release %s: %w", id.Hex(), err)
	}

	s.metrics.ObserveTransition(s.key, domain.StatusReleased.String())
	return s.recordTransition(ctx, id, audit.EventTransferReleased)
}

func (s *Service) revert(ctx context.Context, t domain.Transfer) error {
	id := t.ID()
	swapped, err := s.store.CompareAndSwap(ctx, id, domain.StatusPrepared, domain.StatusReverted)
	if err != nil {
		return err
	}
	if !swapped {
		return fmt.Errorf("%w: transfer %s", sentinel.ErrNotPrepared, id.Hex())
	}

	if err := s.executor.Revert(ctx, t); err != nil {
		if _, rbErr := s.store.CompareAndSwap(ctx, id, domain.StatusReverted, domain.StatusPrepared); rbErr != nil && s.logger != nil {
			s.logger.ErrorContext(ctx, "revert rollback failed",
				"transfer_id", id.Hex(), "error", rbErr)
		}
		return fmt.Errorf("revert %s: %w", id.Hex(), err)
	}

	s.metrics.ObserveTransition(s.key, domain.StatusReverted.String())
	return s.recordTransition(ctx, id, audit.EventTransferReverted)
}

func (s *Service) recordTransition(ctx context.Context, id common.Hash, action string) error {
	if s.logger != nil {
		s.logger.InfoContext(ctx, "transfer transitioned",
			"rail", s.key, "transfer_id", id.Hex(), "action", action)
	}
	if s.auditor != nil {
		return s.auditor.Emit(ctx, audit.Event{
			Category: audit.CategoryOperations,
			Action:   action,
			Subject:  id.Hex(),
			Detail:   s.key,
		})
	}
	return nil
}

// pendingKey smuggles the full transfer through the receipt applier, whose
// pipeline only sees the claim.
type pendingKey struct{}

func withPending(ctx context.Context, t domain.Transfer) context.Context {
	return context.WithValue(ctx, pendingKey{}, t)
}

func pendingFromContext(ctx context.Context) (domain.Transfer, bool) {
	t, ok := ctx.Value(pendingKey{}).(domain.Transfer)
	return t, ok
}
