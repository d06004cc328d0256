package custody

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/suite"

	"github.com/kevanbtc/cleargate/internal/claims"
	"github.com/kevanbtc/cleargate/internal/claims/replay"
	"github.com/kevanbtc/cleargate/pkg/sentinel"
)

const testChainID = 31337

type CustodyServiceSuite struct {
	suite.Suite
	ctx     context.Context
	signer  *claims.Signer
	service *Service
	vault   common.Address
}

func (s *CustodyServiceSuite) SetupTest() {
	s.ctx = context.Background()
	s.vault = common.HexToAddress("0x1111111111111111111111111111111111111111")

	key, err := ethcrypto.GenerateKey()
	s.Require().NoError(err)
	s.signer = claims.NewSignerFromKey(key, testChainID)

	verifier := claims.NewVerifier(testChainID)
	verifier.AuthorizeSigner(claims.KindNAVReport, s.signer.Address())

	s.service, err = NewService(NewInMemoryStore(), verifier, replay.NewInMemory(), nil, nil, nil)
	s.Require().NoError(err)
}

func TestCustodyServiceSuite(t *testing.T) {
	suite.Run(t, new(CustodyServiceSuite))
}

func (s *CustodyServiceSuite) claim(nonce uint64, value int64) claims.NAVClaim {
	return claims.NAVClaim{
		Vault:      s.vault,
		Value:      big.NewInt(value),
		ReportedAt: time.Now().Add(-time.Minute),
		Env: claims.Envelope{
			Nonce:     nonce,
			IssuedAt:  time.Now(),
			ExpiresAt: time.Now().Add(time.Hour),
		},
	}
}

func (s *CustodyServiceSuite) submit(claim claims.NAVClaim) error {
	sig, err := s.signer.Sign(claim)
	s.Require().NoError(err)
	_, err = s.service.SubmitReport(s.ctx, claim, sig)
	return err
}

func (s *CustodyServiceSuite) TestSubmitReport() {
	s.Require().NoError(s.submit(s.claim(1, 1_000_000)))

	record, err := s.service.NAV(s.ctx, s.vault)
	s.Require().NoError(err)
	s.Equal(big.NewInt(1_000_000), record.Value)
	s.Equal(s.signer.Address(), record.Signer)

	s.Run("newer report supersedes", func() {
		s.Require().NoError(s.submit(s.claim(2, 1_050_000)))
		record, err := s.service.NAV(s.ctx, s.vault)
		s.Require().NoError(err)
		s.Equal(big.NewInt(1_050_000), record.Value)
	})

	s.Run("nonce reuse rejected", func() {
		s.Require().ErrorIs(s.submit(s.claim(2, 1_100_000)), sentinel.ErrReplay)
	})
}

func (s *CustodyServiceSuite) TestReportAge() {
	s.Run("no report yet", func() {
		_, err := s.service.ReportAge(s.ctx, s.vault)
		s.Require().ErrorIs(err, sentinel.ErrNotFound)
	})

	s.Require().NoError(s.submit(s.claim(1, 500)))

	age, err := s.service.ReportAge(s.ctx, s.vault)
	s.Require().NoError(err)
	s.Greater(age, time.Duration(0))
}
