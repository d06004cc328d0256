package courtorder

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/suite"

	"github.com/kevanbtc/cleargate/internal/domain"
	"github.com/kevanbtc/cleargate/internal/rbac"
	"github.com/kevanbtc/cleargate/pkg/requestcontext"
	"github.com/kevanbtc/cleargate/pkg/sentinel"
)

type RegistrySuite struct {
	suite.Suite
	ctx      context.Context
	court    context.Context
	now      time.Time
	registry *Registry
	subject  common.Address
	token    common.Address
}

func (s *RegistrySuite) SetupTest() {
	s.ctx = context.Background()
	s.court = requestcontext.WithPrincipal(s.ctx, "court-1")
	s.now = time.Unix(1800000000, 0)
	s.subject = common.HexToAddress("0x1111111111111111111111111111111111111111")
	s.token = common.HexToAddress("0x2222222222222222222222222222222222222222")

	roles := rbac.NewAuthorizer()
	roles.Grant(rbac.RoleCourt, "court-1")
	s.registry = NewRegistry(roles, nil, nil).WithClock(func() time.Time { return s.now })
}

func TestRegistrySuite(t *testing.T) {
	suite.Run(t, new(RegistrySuite))
}

func (s *RegistrySuite) order(id byte, action domain.OrderAction) domain.CourtOrder {
	return domain.CourtOrder{
		ID:      common.BytesToHash([]byte{id}),
		Subject: s.subject,
		Token:   s.token,
		Action:  action,
		Target:  common.HexToAddress("0x3333333333333333333333333333333333333333"),
		Amount:  big.NewInt(100),
	}
}

func (s *RegistrySuite) TestFileOrder() {
	s.Run("requires COURT role", func() {
		err := s.registry.FileOrder(s.ctx, s.order(1, domain.ActionFreeze))
		s.Require().ErrorIs(err, sentinel.ErrUnauthorized)
	})

	s.Run("files and fetches", func() {
		s.Require().NoError(s.registry.FileOrder(s.court, s.order(1, domain.ActionFreeze)))

		stored, err := s.registry.Get(s.ctx, common.BytesToHash([]byte{1}))
		s.Require().NoError(err)
		s.True(stored.Active)
		s.False(stored.Executed)
		s.Equal(s.now, stored.CreatedAt)
	})

	s.Run("duplicate id rejected", func() {
		err := s.registry.FileOrder(s.court, s.order(1, domain.ActionFreeze))
		s.Require().ErrorIs(err, sentinel.ErrAlreadyExists)
	})

	s.Run("zero id rejected", func() {
		order := s.order(0, domain.ActionFreeze)
		order.ID = common.Hash{}
		s.Require().Error(s.registry.FileOrder(s.court, order))
	})
}

func (s *RegistrySuite) TestFreezeLifecycle() {
	s.Require().NoError(s.registry.FileOrder(s.court, s.order(1, domain.ActionFreeze)))
	s.True(s.registry.SubjectFrozen(s.ctx, s.token, s.subject))

	s.Run("freeze is scoped to the pair", func() {
		other := common.HexToAddress("0x4444444444444444444444444444444444444444")
		s.False(s.registry.SubjectFrozen(s.ctx, s.token, other))
		s.False(s.registry.SubjectFrozen(s.ctx, other, s.subject))
	})

	s.Run("unfreeze deactivates the standing freeze", func() {
		s.Require().NoError(s.registry.FileOrder(s.court, s.order(2, domain.ActionUnfreeze)))
		s.False(s.registry.SubjectFrozen(s.ctx, s.token, s.subject))

		frozen, err := s.registry.Get(s.ctx, common.BytesToHash([]byte{1}))
		s.Require().NoError(err)
		s.False(frozen.Active)
	})
}

func (s *RegistrySuite) TestIndefiniteFreeze() {
	// A zero ValidUntil means the freeze holds until explicitly lifted.
	s.Require().NoError(s.registry.FileOrder(s.court, s.order(1, domain.ActionFreeze)))

	s.now = s.now.Add(10 * 365 * 24 * time.Hour)
	s.True(s.registry.IsActive(s.ctx, common.BytesToHash([]byte{1})))
	s.True(s.registry.SubjectFrozen(s.ctx, s.token, s.subject))
}

func (s *RegistrySuite) TestBoundedFreezeExpires() {
	order := s.order(1, domain.ActionFreeze)
	order.ValidUntil = s.now.Add(time.Hour)
	s.Require().NoError(s.registry.FileOrder(s.court, order))
	s.True(s.registry.SubjectFrozen(s.ctx, s.token, s.subject))

	s.now = s.now.Add(2 * time.Hour)
	s.False(s.registry.IsActive(s.ctx, order.ID))
	s.False(s.registry.SubjectFrozen(s.ctx, s.token, s.subject))
}

func (s *RegistrySuite) TestOneShotExecution() {
	id := common.BytesToHash([]byte{1})
	s.Require().NoError(s.registry.FileOrder(s.court, s.order(1, domain.ActionForceTransfer)))
	s.True(s.registry.IsActive(s.ctx, id))

	s.Run("executes exactly once", func() {
		s.Require().NoError(s.registry.MarkExecuted(s.ctx, id))
		s.Require().ErrorIs(s.registry.MarkExecuted(s.ctx, id), sentinel.ErrAlreadyExecuted)
		s.False(s.registry.IsActive(s.ctx, id))
	})

	s.Run("freeze orders cannot be marked executed", func() {
		s.Require().NoError(s.registry.FileOrder(s.court, s.order(2, domain.ActionFreeze)))
		s.Require().Error(s.registry.MarkExecuted(s.ctx, common.BytesToHash([]byte{2})))
	})
}

func (s *RegistrySuite) TestExpiredOneShotNotExecutable() {
	order := s.order(1, domain.ActionForceRedeem)
	order.ValidUntil = s.now.Add(time.Hour)
	s.Require().NoError(s.registry.FileOrder(s.court, order))

	s.now = s.now.Add(2 * time.Hour)
	err := s.registry.Execute(s.ctx, order.ID, func(domain.CourtOrder) error {
		s.FailNow("movement must not run for an expired order")
		return nil
	})
	s.Require().ErrorIs(err, sentinel.ErrOrderNotActive)
}

func (s *RegistrySuite) TestExecuteAtomicity() {
	id := common.BytesToHash([]byte{1})
	s.Require().NoError(s.registry.FileOrder(s.court, s.order(1, domain.ActionForceTransfer)))

	s.Run("movement failure leaves the order unexecuted", func() {
		err := s.registry.Execute(s.ctx, id, func(domain.CourtOrder) error {
			return context.DeadlineExceeded
		})
		s.Require().Error(err)
		s.True(s.registry.IsActive(s.ctx, id))
	})

	s.Run("successful movement consumes the order", func() {
		moved := false
		s.Require().NoError(s.registry.Execute(s.ctx, id, func(order domain.CourtOrder) error {
			moved = true
			s.Equal(big.NewInt(100), order.Amount)
			return nil
		}))
		s.True(moved)

		err := s.registry.Execute(s.ctx, id, func(domain.CourtOrder) error { return nil })
		s.Require().ErrorIs(err, sentinel.ErrAlreadyExecuted)
	})
}

func (s *RegistrySuite) TestGlobalFreeze() {
	s.Require().ErrorIs(s.registry.SetGlobalFreeze(s.ctx, s.token, true), sentinel.ErrUnauthorized)

	s.Require().NoError(s.registry.SetGlobalFreeze(s.court, s.token, true))
	s.True(s.registry.GlobalFreeze(s.ctx, s.token))

	s.Require().NoError(s.registry.SetGlobalFreeze(s.court, s.token, false))
	s.False(s.registry.GlobalFreeze(s.ctx, s.token))
}
