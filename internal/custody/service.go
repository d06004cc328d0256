package custody

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
)

// Service ingests custodian NAV reports and serves the reported value.
type Service struct {
	store   Store
	applier *applier.Applier[claims.NAVClaim]
	now     func() time.Time
}

// NewService wires the NAV report applier over the NAV store.
func NewService(
	store Store,
	verifier *claims.Verifier,
	guard replay.Guard,
	auditor *audit.Publisher,
	logger *slog.Logger,
	metrics *applier.Metrics,
) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("custody: store is required")
	}

	s := &Service{store: store, now: time.Now}

	apply := func(ctx context.Context, claim claims.NAVClaim, signer common.Address) error {
		if claim.Vault == (common.Address{}) {
			return fmt.Errorf("nav report vault must be non-zero")
		}
		reportedAt := claim.ReportedAt
		if reportedAt.IsZero() {
			reportedAt = claim.Env.IssuedAt
		}
		return s.store.Put(ctx, NAVRecord{
			Vault:      claim.Vault,
			Value:      claim.Value,
			ReportedAt: reportedAt,
			Signer:     signer,
		})
	}

	opts := []applier.Option[claims.NAVClaim]{
		applier.WithMetrics[claims.NAVClaim](metrics),
	}
	if auditor != nil {
		opts = append(opts, applier.WithAuditor[claims.NAVClaim](auditor))
	}
	ap, err := applier.New(claims.KindNAVReport, verifier, guard, apply, logger, opts...)
	if err != nil {
		return nil, err
	}
	s.applier = ap
	return s, nil
}

// SubmitReport ingests a signed NAV report.
func (s *Service) SubmitReport(ctx context.Context, claim claims.NAVClaim, sig []byte) (common.Address, error) {
	return s.applier.Submit(ctx, claim, sig)
}

// NAV returns the latest accepted record for vault.
func (s *Service) NAV(ctx context.Context, vault common.Address) (NAVRecord, error) {
	return s.store.Get(ctx, vault)
}

// ReportAge returns the age of the latest report at now; ErrNotFound when no
// report has been accepted yet.
func (s *Service) ReportAge(ctx context.Context, vault common.Address) (time.Duration, error) {
	r, err := s.store.Get(ctx, vault)
	if err != nil {
		return 0, err
	}
	return r.Age(s.now()), nil
}
