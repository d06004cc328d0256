package compliance

import (
	"context"
	"errors"
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

// Service is the compliance registry: attestation ingestion plus the
// isCompliant/canHold views consumed by token and vault contracts.
type Service struct {
	store   Store
	applier *applier.Applier[claims.AttestationClaim]
	roles   *rbac.Authorizer
	auditor *audit.Publisher
	logger  *slog.Logger
	now     func() time.Time
}

// NewService wires the attestation applier over the profile store.
func NewService(
	store Store,
	verifier *claims.Verifier,
	guard replay.Guard,
	roles *rbac.Authorizer,
	auditor *audit.Publisher,
	logger *slog.Logger,
	metrics *applier.Metrics,
) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("compliance: store is required")
	}
	if roles == nil {
		return nil, fmt.Errorf("compliance: authorizer is required")
	}

	s := &Service{
		store:   store,
		roles:   roles,
		auditor: auditor,
		logger:  logger,
		now:     time.Now,
	}

	apply := func(ctx context.Context, claim claims.AttestationClaim, _ common.Address) error {
		profile := claim.Profile
		if profile.Subject == (common.Address{}) {
			return fmt.Errorf("attestation subject must be non-zero")
		}
		if profile.AttestedAt.IsZero() {
			profile.AttestedAt = claim.Env.IssuedAt
		}
		return s.store.Put(ctx, profile)
	}

	opts := []applier.Option[claims.AttestationClaim]{
		applier.WithMetrics[claims.AttestationClaim](metrics),
	}
	if auditor != nil {
		opts = append(opts, applier.WithAuditor[claims.AttestationClaim](auditor))
	}
	ap, err := applier.New(claims.KindAttestation, verifier, guard, apply, logger, opts...)
	if err != nil {
		return nil, err
	}
	s.applier = ap
	return s, nil
}

// SubmitAttestation ingests a signed compliance attestation. Any account may
// relay the claim; authenticity comes from the recovered signer.
func (s *Service) SubmitAttestation(ctx context.Context, claim claims.AttestationClaim, sig []byte) (common.Address, error) {
	return s.applier.Submit(ctx, claim, sig)
}

// Profile returns the stored profile for subject.
func (s *Service) Profile(ctx context.Context, subject common.Address) (domain.Profile, error) {
	return s.store.Get(ctx, subject)
}

// IsCompliant reports whether subject currently passes the baseline identity
// gate: a fresh profile with KYC, not sanctioned, not frozen. Missing
// profiles are simply non-compliant, not an error.
func (s *Service) IsCompliant(ctx context.Context, subject common.Address) (bool, error) {
	p, err := s.store.Get(ctx, subject)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return p.Fresh(s.now()) && p.KYC && !p.Sanctioned && !p.Frozen, nil
}

// CanHold reports whether subject may keep holding an asset. Holding is less
// strict than acquiring: an expired profile blocks new operations through the
// policy gate but does not evict existing holders; sanctions and freezes do.
func (s *Service) CanHold(ctx context.Context, subject common.Address) (bool, error) {
	p, err := s.store.Get(ctx, subject)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return !p.Sanctioned && !p.Frozen, nil
}

// SetFrozen flips the administrative freeze flag. COMPLIANCE role only.
func (s *Service) SetFrozen(ctx context.Context, subject common.Address, frozen bool) error {
	if err := s.roles.Require(rbac.RoleCompliance, requestcontext.Principal(ctx)); err != nil {
		return err
	}
	if err := s.store.SetFrozen(ctx, subject, frozen); err != nil {
		return err
	}

	action := audit.EventSubjectFrozen
	if !frozen {
		action = audit.EventSubjectUnfrozen
	}
	if s.auditor != nil {
		if err := s.auditor.Emit(ctx, audit.Event{
			Category: audit.CategoryCompliance,
			Action:   action,
			Subject:  subject.Hex(),
		}); err != nil {
			return err
		}
	}
	return nil
}
