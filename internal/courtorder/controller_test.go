package courtorder

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/suite"

	"github.com/kevanbtc/cleargate/internal/domain"
	"github.com/kevanbtc/cleargate/internal/rbac"
	"github.com/kevanbtc/cleargate/pkg/requestcontext"
	"github.com/kevanbtc/cleargate/pkg/sentinel"
)

type movement struct {
	orderID         common.Hash
	token, from, to common.Address
	amount          *big.Int
	redeem          bool
}

type fakeLedger struct {
	movements []movement
	fail      error
}

func (f *fakeLedger) ForceTransfer(_ context.Context, orderID common.Hash, token, from, to common.Address, amount *big.Int) error {
	if f.fail != nil {
		return f.fail
	}
	f.movements = append(f.movements, movement{orderID: orderID, token: token, from: from, to: to, amount: amount})
	return nil
}

func (f *fakeLedger) ForceRedeem(_ context.Context, orderID common.Hash, token, from common.Address, amount *big.Int) error {
	if f.fail != nil {
		return f.fail
	}
	f.movements = append(f.movements, movement{orderID: orderID, token: token, from: from, amount: amount, redeem: true})
	return nil
}

type ControllerSuite struct {
	suite.Suite
	ctx        context.Context
	court      context.Context
	registry   *Registry
	ledger     *fakeLedger
	controller *Controller
	subject    common.Address
	token      common.Address
	target     common.Address
}

func (s *ControllerSuite) SetupTest() {
	s.ctx = context.Background()
	s.court = requestcontext.WithPrincipal(s.ctx, "court-1")
	s.subject = common.HexToAddress("0x1111111111111111111111111111111111111111")
	s.token = common.HexToAddress("0x2222222222222222222222222222222222222222")
	s.target = common.HexToAddress("0x3333333333333333333333333333333333333333")

	roles := rbac.NewAuthorizer()
	roles.Grant(rbac.RoleCourt, "court-1")
	s.registry = NewRegistry(roles, nil, nil)
	s.ledger = &fakeLedger{}

	var err error
	s.controller, err = NewController(s.registry, s.ledger, roles, nil, nil)
	s.Require().NoError(err)
}

func TestControllerSuite(t *testing.T) {
	suite.Run(t, new(ControllerSuite))
}

func (s *ControllerSuite) file(id byte, action domain.OrderAction) common.Hash {
	order := domain.CourtOrder{
		ID:      common.BytesToHash([]byte{id}),
		Subject: s.subject,
		Token:   s.token,
		Action:  action,
		Target:  s.target,
		Amount:  big.NewInt(500),
	}
	s.Require().NoError(s.registry.FileOrder(s.court, order))
	return order.ID
}

func (s *ControllerSuite) TestForceTransfer() {
	id := s.file(1, domain.ActionForceTransfer)

	s.Run("requires COURT role", func() {
		s.Require().ErrorIs(s.controller.ForceTransfer(s.ctx, id), sentinel.ErrUnauthorized)
		s.Empty(s.ledger.movements)
	})

	s.Run("moves value per the order", func() {
		s.Require().NoError(s.controller.ForceTransfer(s.court, id))
		s.Require().Len(s.ledger.movements, 1)

		m := s.ledger.movements[0]
		s.Equal(id, m.orderID)
		s.Equal(s.token, m.token)
		s.Equal(s.subject, m.from)
		s.Equal(s.target, m.to)
		s.Equal(big.NewInt(500), m.amount)
	})

	s.Run("second execution fails", func() {
		s.Require().ErrorIs(s.controller.ForceTransfer(s.court, id), sentinel.ErrAlreadyExecuted)
		s.Len(s.ledger.movements, 1)
	})
}

func (s *ControllerSuite) TestForceRedeem() {
	id := s.file(2, domain.ActionForceRedeem)

	s.Require().NoError(s.controller.ForceRedeem(s.court, id))
	s.Require().Len(s.ledger.movements, 1)
	s.True(s.ledger.movements[0].redeem)
}

func (s *ControllerSuite) TestActionMismatch() {
	id := s.file(3, domain.ActionForceRedeem)

	s.Require().Error(s.controller.ForceTransfer(s.court, id))
	s.Empty(s.ledger.movements)

	// The mismatch must not consume the order.
	s.Require().NoError(s.controller.ForceRedeem(s.court, id))
}

func (s *ControllerSuite) TestLedgerFailureKeepsOrderActive() {
	id := s.file(4, domain.ActionForceTransfer)
	s.ledger.fail = context.DeadlineExceeded

	s.Require().Error(s.controller.ForceTransfer(s.court, id))
	s.True(s.registry.IsActive(s.ctx, id))

	s.ledger.fail = nil
	s.Require().NoError(s.controller.ForceTransfer(s.court, id))
}
