package settlement

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/suite"

	"github.com/kevanbtc/cleargate/internal/claims"
	"github.com/kevanbtc/cleargate/internal/claims/replay"
	"github.com/kevanbtc/cleargate/internal/domain"
	"github.com/kevanbtc/cleargate/internal/rbac"
	"github.com/kevanbtc/cleargate/pkg/requestcontext"
	"github.com/kevanbtc/cleargate/pkg/sentinel"
)

const testChainID = 31337

type flakyExecutor struct {
	fail     error
	released []common.Hash
	reverted []common.Hash
}

func (e *flakyExecutor) Release(_ context.Context, t domain.Transfer) error {
	if e.fail != nil {
		return e.fail
	}
	e.released = append(e.released, t.ID())
	return nil
}

func (e *flakyExecutor) Revert(_ context.Context, t domain.Transfer) error {
	if e.fail != nil {
		return e.fail
	}
	e.reverted = append(e.reverted, t.ID())
	return nil
}

type ServiceSuite struct {
	suite.Suite
	ctx      context.Context
	admin    context.Context
	store    *InMemoryStore
	executor *flakyExecutor
	signer   *claims.Signer
	service  *Service
}

func (s *ServiceSuite) SetupTest() {
	s.ctx = context.Background()
	s.admin = requestcontext.WithPrincipal(s.ctx, "operator")
	s.store = NewInMemoryStore()
	s.executor = &flakyExecutor{}

	key, err := ethcrypto.GenerateKey()
	s.Require().NoError(err)
	s.signer = claims.NewSignerFromKey(key, testChainID)

	verifier := claims.NewVerifier(testChainID)
	verifier.AuthorizeSigner(claims.KindReceipt, s.signer.Address())

	roles := rbac.NewAuthorizer()
	roles.Grant(rbac.RoleAdmin, "operator")

	s.service, err = NewService("swift", s.store, s.executor,
		verifier, replay.NewInMemory(), roles, nil, nil, nil)
	s.Require().NoError(err)
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) transfer(nonce byte) domain.Transfer {
	return domain.Transfer{
		Asset:    common.HexToAddress("0x1111111111111111111111111111111111111111"),
		From:     common.HexToAddress("0x2222222222222222222222222222222222222222"),
		To:       common.HexToAddress("0x3333333333333333333333333333333333333333"),
		Amount:   big.NewInt(1000),
		Metadata: []byte{nonce},
	}
}

func (s *ServiceSuite) TestTransferIDDeterminism() {
	t1 := s.transfer(1)

	s.Run("same logical transfer maps to the same id", func() {
		s.Equal(t1.ID(), s.transfer(1).ID())
	})

	s.Run("any field changes the id", func() {
		t2 := s.transfer(1)
		t2.Amount = big.NewInt(1001)
		s.NotEqual(t1.ID(), t2.ID())

		t3 := s.transfer(2)
		s.NotEqual(t1.ID(), t3.ID())
	})
}

func (s *ServiceSuite) TestPrepare() {
	t1 := s.transfer(1)

	id, err := s.service.Prepare(s.ctx, t1)
	s.Require().NoError(err)
	s.Equal(t1.ID(), id)

	status, err := s.service.Status(s.ctx, id)
	s.Require().NoError(err)
	s.Equal(domain.StatusPrepared, status)

	s.Run("duplicate prepare rejected", func() {
		_, err := s.service.Prepare(s.ctx, t1)
		s.Require().ErrorIs(err, sentinel.ErrAlreadyPrepared)
	})
}

func (s *ServiceSuite) TestOperatorRelease() {
	t1 := s.transfer(1)
	_, err := s.service.Prepare(s.ctx, t1)
	s.Require().NoError(err)

	s.Run("requires ADMIN role", func() {
		s.Require().ErrorIs(s.service.Release(s.ctx, t1), sentinel.ErrUnauthorized)
	})

	s.Run("releases a prepared transfer", func() {
		s.Require().NoError(s.service.Release(s.admin, t1))
		s.Len(s.executor.released, 1)

		status, err := s.service.Status(s.ctx, t1.ID())
		s.Require().NoError(err)
		s.Equal(domain.StatusReleased, status)
	})

	s.Run("released is terminal", func() {
		s.Require().ErrorIs(s.service.Release(s.admin, t1), sentinel.ErrNotPrepared)
		s.Require().ErrorIs(s.service.Revert(s.admin, t1), sentinel.ErrNotPrepared)
	})
}

func (s *ServiceSuite) TestReleaseWithoutPrepare() {
	s.Require().ErrorIs(s.service.Release(s.admin, s.transfer(1)), sentinel.ErrNotPrepared)
}

func (s *ServiceSuite) TestRevert() {
	t1 := s.transfer(1)
	_, err := s.service.Prepare(s.ctx, t1)
	s.Require().NoError(err)

	s.Require().NoError(s.service.Revert(s.admin, t1))
	s.Len(s.executor.reverted, 1)

	status, err := s.service.Status(s.ctx, t1.ID())
	s.Require().NoError(err)
	s.Equal(domain.StatusReverted, status)
}

func (s *ServiceSuite) TestExecutorFailureRollsStatusBack() {
	t1 := s.transfer(1)
	_, err := s.service.Prepare(s.ctx, t1)
	s.Require().NoError(err)

	s.executor.fail = errors.New("ledger unavailable")
	s.Require().Error(s.service.Release(s.admin, t1))

	// The transfer must be retryable after the executor recovers.
	status, err := s.service.Status(s.ctx, t1.ID())
	s.Require().NoError(err)
	s.Equal(domain.StatusPrepared, status)

	s.executor.fail = nil
	s.Require().NoError(s.service.Release(s.admin, t1))
}

// testSettledAt is signed into receipts; the same value must be submitted or
// the digest (and so the recovered signer) changes.
var testSettledAt = time.Unix(1_800_000_000, 0)

func (s *ServiceSuite) receipt(t domain.Transfer, released bool, nonce uint64) (claims.Envelope, []byte) {
	env := claims.Envelope{
		Nonce:     nonce,
		IssuedAt:  time.Now(),
		ExpiresAt: time.Now().Add(time.Hour),
	}
	sig, err := s.signer.Sign(claims.ReceiptClaim{
		TransferID: t.ID(),
		Released:   released,
		SettledAt:  testSettledAt,
		Env:        env,
	})
	s.Require().NoError(err)
	return env, sig
}

func (s *ServiceSuite) TestReceiptRelease() {
	t1 := s.transfer(1)
	_, err := s.service.Prepare(s.ctx, t1)
	s.Require().NoError(err)

	env, sig := s.receipt(t1, true, 1)
	// Any principal may relay a receipt; authenticity comes from the signer.
	s.Require().NoError(s.service.MarkWithReceipt(s.ctx, t1, true, testSettledAt, env, sig))

	status, err := s.service.Status(s.ctx, t1.ID())
	s.Require().NoError(err)
	s.Equal(domain.StatusReleased, status)
}

func (s *ServiceSuite) TestReceiptRevert() {
	t1 := s.transfer(1)
	_, err := s.service.Prepare(s.ctx, t1)
	s.Require().NoError(err)

	env, sig := s.receipt(t1, false, 1)
	s.Require().NoError(s.service.MarkWithReceipt(s.ctx, t1, false, testSettledAt, env, sig))

	status, err := s.service.Status(s.ctx, t1.ID())
	s.Require().NoError(err)
	s.Equal(domain.StatusReverted, status)
}

func (s *ServiceSuite) TestReceiptFromUnknownSigner() {
	t1 := s.transfer(1)
	_, err := s.service.Prepare(s.ctx, t1)
	s.Require().NoError(err)

	key, err := ethcrypto.GenerateKey()
	s.Require().NoError(err)
	rogue := claims.NewSignerFromKey(key, testChainID)

	env := claims.Envelope{Nonce: 1, IssuedAt: time.Now(), ExpiresAt: time.Now().Add(time.Hour)}
	sig, err := rogue.Sign(claims.ReceiptClaim{TransferID: t1.ID(), Released: true, Env: env})
	s.Require().NoError(err)

	err = s.service.MarkWithReceipt(s.ctx, t1, true, time.Time{}, env, sig)
	s.Require().ErrorIs(err, sentinel.ErrUnauthorizedSigner)

	status, serr := s.service.Status(s.ctx, t1.ID())
	s.Require().NoError(serr)
	s.Equal(domain.StatusPrepared, status)
}

func (s *ServiceSuite) TestReceiptOutOfOrder() {
	t1 := s.transfer(1)

	env, sig := s.receipt(t1, true, 1)
	err := s.service.MarkWithReceipt(s.ctx, t1, true, testSettledAt, env, sig)
	s.Require().ErrorIs(err, sentinel.ErrNotPrepared)
}

func (s *ServiceSuite) TestReceiptExecutorFailureRequiresFreshReceipt() {
	t1 := s.transfer(1)
	_, err := s.service.Prepare(s.ctx, t1)
	s.Require().NoError(err)

	s.executor.fail = errors.New("ledger unavailable")
	env, sig := s.receipt(t1, true, 1)
	s.Require().Error(s.service.MarkWithReceipt(s.ctx, t1, true, testSettledAt, env, sig))

	// The transition rolled back, but the receipt's nonce is spent: the
	// failed receipt cannot be resubmitted as-is.
	status, serr := s.service.Status(s.ctx, t1.ID())
	s.Require().NoError(serr)
	s.Equal(domain.StatusPrepared, status)

	s.executor.fail = nil
	err = s.service.MarkWithReceipt(s.ctx, t1, true, testSettledAt, env, sig)
	s.Require().ErrorIs(err, sentinel.ErrReplay)

	// Recovery is a re-signed receipt with a fresh nonce.
	env2, sig2 := s.receipt(t1, true, 2)
	s.Require().NoError(s.service.MarkWithReceipt(s.ctx, t1, true, testSettledAt, env2, sig2))

	status, serr = s.service.Status(s.ctx, t1.ID())
	s.Require().NoError(serr)
	s.Equal(domain.StatusReleased, status)
}

func (s *ServiceSuite) TestReceiptReplay() {
	t1 := s.transfer(1)
	_, err := s.service.Prepare(s.ctx, t1)
	s.Require().NoError(err)

	env, sig := s.receipt(t1, true, 7)
	s.Require().NoError(s.service.MarkWithReceipt(s.ctx, t1, true, testSettledAt, env, sig))

	err = s.service.MarkWithReceipt(s.ctx, t1, true, testSettledAt, env, sig)
	s.Require().ErrorIs(err, sentinel.ErrReplay)
}

type RegistryDispatchSuite struct {
	suite.Suite
	registry *Registry
}

func (s *RegistryDispatchSuite) SetupTest() {
	s.registry = NewRegistry()
}

func TestRegistryDispatchSuite(t *testing.T) {
	suite.Run(t, new(RegistryDispatchSuite))
}

func (s *RegistryDispatchSuite) newRail(key string) *Service {
	verifier := claims.NewVerifier(testChainID)
	rail, err := NewService(key, NewInMemoryStore(), ExternalExecutor{},
		verifier, replay.NewInMemory(), rbac.NewAuthorizer(), nil, nil, nil)
	s.Require().NoError(err)
	return rail
}

func (s *RegistryDispatchSuite) TestRegisterAndDispatch() {
	s.Require().NoError(s.registry.Register(s.newRail("swift")))
	s.Require().NoError(s.registry.Register(s.newRail("onchain")))

	rail, err := s.registry.Dispatch("swift")
	s.Require().NoError(err)
	s.Equal("swift", rail.Key())

	s.ElementsMatch([]string{"swift", "onchain"}, s.registry.Keys())

	s.Run("unknown rail", func() {
		_, err := s.registry.Dispatch("sepa")
		s.Require().ErrorIs(err, sentinel.ErrUnknownRail)
	})

	s.Run("duplicate key", func() {
		s.Require().ErrorIs(s.registry.Register(s.newRail("swift")), sentinel.ErrAlreadyExists)
	})
}
