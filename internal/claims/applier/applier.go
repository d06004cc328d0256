// Package applier implements the generic ingestion pipeline shared by the
// three claim kinds. The appliers differ only in the target state their apply
// step mutates (profile store, NAV store, transfer status), so the pipeline
// is one parameterized component rather than three copies.
package applier

import (
	"context"
	"encoding/hex"
	"fmt"
	"log/slog"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/kevanbtc/cleargate/internal/audit"
	"github.com/kevanbtc/cleargate/internal/claims"
	"github.com/kevanbtc/cleargate/internal/claims/replay"
	"github.com/kevanbtc/cleargate/pkg/sentinel"
)

// ApplyFunc mutates the target state for a verified, fresh, unreplayed claim.
// It runs last in the pipeline; a failure here aborts the whole submission
// (the consumed nonce stays consumed, matching transaction-boundary
// all-or-nothing semantics).
type ApplyFunc[C claims.Claim] func(ctx context.Context, claim C, signer common.Address) error

// Auditor is the slice of the audit publisher the applier needs.
type Auditor interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Applier runs the ingestion pipeline for one claim kind:
//
//  1. recover signer (domain-separated typed-data digest)
//  2. signer must be allowlisted for the kind
//  3. claim must not be expired
//  4. consume (subject, nonce) in the replay guard
//  5. apply the payload to the target state
//
// Expiry is checked before consumption so an expired-but-never-used nonce is
// rejected without being burned; a corrected, re-signed claim with the same
// nonce but later expiry must still succeed.
type Applier[C claims.Claim] struct {
	kind     claims.Kind
	verifier *claims.Verifier
	guard    replay.Guard
	apply    ApplyFunc[C]
	auditor  Auditor
	logger   *slog.Logger
	metrics  *Metrics
	tracer   trace.Tracer
	now      func() time.Time
}

// Option configures an Applier.
type Option[C claims.Claim] func(*Applier[C])

// WithAuditor attaches the audit publisher. Applied claims emit a compliance
// event carrying signer, subject, and payload digest.
func WithAuditor[C claims.Claim](a Auditor) Option[C] {
	return func(ap *Applier[C]) { ap.auditor = a }
}

// WithMetrics attaches the ingestion metrics collector.
func WithMetrics[C claims.Claim](m *Metrics) Option[C] {
	return func(ap *Applier[C]) { ap.metrics = m }
}

// WithClock overrides the time source; tests use this for expiry windows.
func WithClock[C claims.Claim](now func() time.Time) Option[C] {
	return func(ap *Applier[C]) { ap.now = now }
}

// New builds an applier for one claim kind.
func New[C claims.Claim](
	kind claims.Kind,
	verifier *claims.Verifier,
	guard replay.Guard,
	apply ApplyFunc[C],
	logger *slog.Logger,
	opts ...Option[C],
) (*Applier[C], error) {
	if verifier == nil {
		return nil, fmt.Errorf("applier: verifier is required")
	}
	if guard == nil {
		return nil, fmt.Errorf("applier: replay guard is required")
	}
	if apply == nil {
		return nil, fmt.Errorf("applier: apply func is required")
	}
	ap := &Applier[C]{
		kind:     kind,
		verifier: verifier,
		guard:    guard,
		apply:    apply,
		logger:   logger,
		tracer:   otel.Tracer("cleargate/claims"),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(ap)
	}
	return ap, nil
}

// Submit runs the full pipeline and returns the recovered signer on success.
func (a *Applier[C]) Submit(ctx context.Context, claim C, sig []byte) (common.Address, error) {
	ctx, span := a.tracer.Start(ctx, "claims.submit",
		trace.WithAttributes(attribute.String("claim.kind", string(a.kind))))
	defer span.End()

	start := a.now()

	signer, err := a.verifier.Recover(claim, sig)
	if err != nil {
		a.reject(ctx, claim, "invalid_signature")
		return common.Address{}, err
	}

	if !a.verifier.Authorized(a.kind, signer) {
		a.reject(ctx, claim, "unauthorized_signer")
		return common.Address{}, fmt.Errorf("%w: %s not allowlisted for %s", sentinel.ErrUnauthorizedSigner, signer.Hex(), a.kind)
	}

	env := claim.Envelope()
	if env.ExpiresAt.IsZero() || start.After(env.ExpiresAt) {
		// Checked before replay consumption: the nonce must survive for a
		// re-signed claim with a later expiry.
		a.reject(ctx, claim, "expired")
		return common.Address{}, fmt.Errorf("%w: claim expired at %s", sentinel.ErrExpired, env.ExpiresAt)
	}

	replayKey := string(a.kind) + ":" + claim.Subject()
	if err := a.guard.Consume(ctx, replayKey, env.Nonce); err != nil {
		a.reject(ctx, claim, "replay")
		return common.Address{}, err
	}

	if err := a.apply(ctx, claim, signer); err != nil {
		a.reject(ctx, claim, "apply_failed")
		return common.Address{}, fmt.Errorf("apply %s: %w", a.kind, err)
	}

	payloadDigest := hex.EncodeToString(claim.StructHash())
	if a.logger != nil {
		a.logger.InfoContext(ctx, "claim applied",
			"kind", string(a.kind),
			"subject", claim.Subject(),
			"signer", signer.Hex(),
			"nonce", env.Nonce,
			"digest", payloadDigest,
		)
	}
	a.metrics.ObserveSubmission(string(a.kind), "applied", a.now().Sub(start))

	if a.auditor != nil {
		if err := a.auditor.Emit(ctx, audit.Event{
			Category: audit.CategoryCompliance,
			Action:   audit.EventClaimApplied,
			Subject:  claim.Subject(),
			Signer:   signer.Hex(),
			Digest:   payloadDigest,
			Detail:   string(a.kind),
		}); err != nil {
			// Fail-closed: an applied claim without an audit record would
			// break the decision trail reconstruction guarantee.
			return common.Address{}, fmt.Errorf("audit %s: %w", a.kind, err)
		}
	}

	return signer, nil
}

func (a *Applier[C]) reject(ctx context.Context, claim C, reason string) {
	a.metrics.ObserveSubmission(string(a.kind), reason, 0)
	if a.logger != nil {
		a.logger.WarnContext(ctx, "claim rejected",
			"kind", string(a.kind),
			"subject", claim.Subject(),
			"reason", reason,
		)
	}
}
