package policy

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/kevanbtc/cleargate/internal/audit"
	"github.com/kevanbtc/cleargate/internal/domain"
	"github.com/kevanbtc/cleargate/internal/rbac"
	"github.com/kevanbtc/cleargate/pkg/requestcontext"
)

// ProfileReader is the slice of the compliance store the gate needs.
type ProfileReader interface {
	Get(ctx context.Context, subject common.Address) (domain.Profile, error)
}

// FreezeReader is the slice of the court-order registry the gate needs.
type FreezeReader interface {
	GlobalFreeze(ctx context.Context, token common.Address) bool
	SubjectFrozen(ctx context.Context, token, subject common.Address) bool
}

// Gate evaluates guarded operations. Check is pure with respect to gate
// state: it mutates nothing and is safe to call speculatively; Evaluate
// wraps it with metrics, tracing, and the denial audit event.
//
// Checks run in a fixed order and the first failure wins. The order is part
// of the external contract: downstream audit tooling depends on a stable
// reason precedence, so checks must never be reordered for convenience.
type Gate struct {
	mu     sync.RWMutex
	paused bool
	policy Policy
	limits Limits

	profiles ProfileReader
	orders   FreezeReader
	roles    *rbac.Authorizer
	auditor  *audit.Publisher
	logger   *slog.Logger
	metrics  *Metrics
	tracer   trace.Tracer
	now      func() time.Time
}

// NewGate builds a gate with an empty policy and no limits configured.
func NewGate(profiles ProfileReader, orders FreezeReader, roles *rbac.Authorizer, opts ...GateOption) *Gate {
	g := &Gate{
		profiles: profiles,
		orders:   orders,
		roles:    roles,
		tracer:   otel.Tracer("cleargate/policy"),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// GateOption configures a Gate.
type GateOption func(*Gate)

// WithAuditor attaches the audit publisher for denial events.
func WithAuditor(a *audit.Publisher) GateOption {
	return func(g *Gate) { g.auditor = a }
}

// WithLogger sets the gate's logger.
func WithLogger(l *slog.Logger) GateOption {
	return func(g *Gate) { g.logger = l }
}

// WithMetrics attaches the gate metrics collector.
func WithMetrics(m *Metrics) GateOption {
	return func(g *Gate) { g.metrics = m }
}

// WithClock overrides the time source; tests use this for profile expiry.
func WithClock(now func() time.Time) GateOption {
	return func(g *Gate) { g.now = now }
}

// Check evaluates the gate. Fixed order, first failing check wins:
//
//	1. pause gate          -> PAUSED
//	2. attestation age     -> STALE_ATTESTATION
//	3. class ceiling       -> CLASS_LIMIT_EXCEEDED
//	4. issuer ceiling      -> ISSUER_LIMIT_EXCEEDED
//	5. jurisdiction rule   -> JURISDICTION_NOT_WHITELISTED | JURISDICTION_BLACKLISTED
//	6. identity gate       -> NOT_COMPLIANT
//	7. court-order freeze  -> FROZEN
//
// The freeze check runs last but its denial always wins when everything
// before it passed; a passing freeze check never overrides an earlier denial
// because earlier denials have already returned.
func (g *Gate) Check(ctx context.Context, in CheckInput) Decision {
	g.mu.RLock()
	paused := g.paused
	policy := g.policy
	limits := g.limits
	g.mu.RUnlock()

	if paused {
		return deny(ReasonPaused)
	}

	if window, ok := limits.FreshnessWindows[in.Op]; ok && window > 0 && in.AttestationAge > window {
		return deny(ReasonStaleAttestation)
	}

	// Class check takes priority over the issuer check.
	if ceiling, ok := limits.ClassCeilingsBps[in.AssetClass]; ok && ceiling > 0 && in.ClassAllocationBps > ceiling {
		return deny(ReasonClassLimitExceeded)
	}
	if limits.IssuerCeilingBps > 0 && in.IssuerConcentrationBps > limits.IssuerCeilingBps {
		return deny(ReasonIssuerLimitExceeded)
	}

	profile, profileErr := g.profiles.Get(ctx, in.Subject)

	country := in.Country
	if country == 0 && profileErr == nil {
		country = profile.CountryCode
	}
	listed, whitelistMode := policy.Rule(in.Op, country)
	if whitelistMode && !listed {
		return deny(ReasonJurisdictionNotWhitelisted)
	}
	if !whitelistMode && listed {
		return deny(ReasonJurisdictionBlacklisted)
	}

	if profileErr != nil || profile.Frozen || !profile.KYC ||
		(policy.ProOnly && !profile.Accredited) || !profile.Fresh(g.now()) {
		return deny(ReasonNotCompliant)
	}

	if g.orders.GlobalFreeze(ctx, in.Token) || g.orders.SubjectFrozen(ctx, in.Token, in.Subject) {
		return deny(ReasonFrozen)
	}

	return allow()
}

// Evaluate runs Check and records the outcome: metrics for every decision,
// an audit event for every denial. This is what the transport layer calls.
func (g *Gate) Evaluate(ctx context.Context, in CheckInput) Decision {
	ctx, span := g.tracer.Start(ctx, "policy.check",
		trace.WithAttributes(
			attribute.String("op", in.Op.String()),
			attribute.String("subject", in.Subject.Hex()),
		))
	defer span.End()

	start := g.now()
	decision := g.Check(ctx, in)
	g.metrics.ObserveCheck(in.Op.String(), string(decision.Reason), decision.Allowed, g.now().Sub(start))

	if !decision.Allowed {
		span.SetAttributes(attribute.String("deny_reason", string(decision.Reason)))
		if g.logger != nil {
			g.logger.InfoContext(ctx, "operation denied",
				"op", in.Op.String(),
				"subject", in.Subject.Hex(),
				"reason", string(decision.Reason),
			)
		}
		if g.auditor != nil {
			// Best-effort: a deny is already the safe outcome, so a failed
			// audit write downgrades to a log line instead of masking the
			// decision from the caller.
			if err := g.auditor.Emit(ctx, audit.Event{
				Category: audit.CategoryCompliance,
				Action:   audit.EventPolicyDenied,
				Subject:  in.Subject.Hex(),
				Reason:   string(decision.Reason),
				Detail:   in.Op.String(),
			}); err != nil && g.logger != nil {
				g.logger.ErrorContext(ctx, "denial audit failed", "error", err)
			}
		}
	}
	return decision
}

// Paused reports the pause flag.
func (g *Gate) Paused() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.paused
}

// SetPaused toggles the global pause gate. ADMIN role only.
func (g *Gate) SetPaused(ctx context.Context, paused bool) error {
	if err := g.roles.Require(rbac.RoleAdmin, requestcontext.Principal(ctx)); err != nil {
		return err
	}
	g.mu.Lock()
	g.paused = paused
	g.mu.Unlock()

	action := audit.EventEnginePaused
	if !paused {
		action = audit.EventEngineUnpaused
	}
	if g.auditor != nil {
		return g.auditor.Emit(ctx, audit.Event{
			Category: audit.CategorySecurity,
			Action:   action,
		})
	}
	return nil
}

// ReplacePolicy installs a new policy wholesale. GOVERNOR role only; the
// version must strictly increase so stale governance submissions cannot
// roll the policy back.
func (g *Gate) ReplacePolicy(ctx context.Context, p Policy) error {
	if err := g.roles.Require(rbac.RoleGovernor, requestcontext.Principal(ctx)); err != nil {
		return err
	}

	g.mu.Lock()
	if p.Version <= g.policy.Version {
		g.mu.Unlock()
		return fmt.Errorf("policy version %d must exceed current %d", p.Version, g.policy.Version)
	}
	g.policy = p
	g.mu.Unlock()

	if g.auditor != nil {
		return g.auditor.Emit(ctx, audit.Event{
			Category: audit.CategoryCompliance,
			Action:   audit.EventPolicyReplaced,
		})
	}
	return nil
}

// SetLimits replaces the configured ceilings and windows. GOVERNOR role only.
func (g *Gate) SetLimits(ctx context.Context, limits Limits) error {
	if err := g.roles.Require(rbac.RoleGovernor, requestcontext.Principal(ctx)); err != nil {
		return err
	}
	g.mu.Lock()
	g.limits = limits
	g.mu.Unlock()
	return nil
}

// CurrentPolicy returns the installed policy.
func (g *Gate) CurrentPolicy() Policy {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.policy
}
