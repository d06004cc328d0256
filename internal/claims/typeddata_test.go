package claims

import (
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/suite"

	"github.com/kevanbtc/cleargate/internal/domain"
)

type TypedDataSuite struct {
	suite.Suite
}

func TestTypedDataSuite(t *testing.T) {
	suite.Run(t, new(TypedDataSuite))
}

func (s *TypedDataSuite) profile() domain.Profile {
	return domain.Profile{
		Subject:     common.HexToAddress("0x1111111111111111111111111111111111111111"),
		KYC:         true,
		Accredited:  true,
		RiskTier:    2,
		CountryCode: 840,
		ExpiresAt:   time.Unix(1900000000, 0),
		MetadataRef: common.HexToHash("0xdeadbeef"),
	}
}

func (s *TypedDataSuite) TestStructHashDeterminism() {
	claim := AttestationClaim{
		Profile: s.profile(),
		Env:     Envelope{Nonce: 7, IssuedAt: time.Unix(1800000000, 0), ExpiresAt: time.Unix(1800003600, 0)},
	}

	s.Run("identical claims hash identically", func() {
		s.Equal(claim.StructHash(), claim.StructHash())
	})

	s.Run("any profile field changes the hash", func() {
		modified := claim
		modified.Profile.KYC = false
		s.NotEqual(claim.StructHash(), modified.StructHash())

		modified = claim
		modified.Profile.CountryCode = 826
		s.NotEqual(claim.StructHash(), modified.StructHash())
	})

	s.Run("envelope fields change the hash", func() {
		modified := claim
		modified.Env.Nonce = 8
		s.NotEqual(claim.StructHash(), modified.StructHash())
	})
}

func (s *TypedDataSuite) TestNestedProfileHashing() {
	// The attestation encoding must substitute the profile's hashStruct, not
	// its raw fields.
	claim := AttestationClaim{Profile: s.profile(), Env: Envelope{Nonce: 1}}

	profileHash := hashProfile(claim.Profile)
	expected := ethcrypto.Keccak256(concat(
		attestationTypeHash,
		addrWord(claim.Profile.Subject),
		profileHash,
		u64Word(1),
		make([]byte, 32),
		make([]byte, 32),
	))
	s.Equal(expected, claim.StructHash())
}

func (s *TypedDataSuite) TestDomainSeparatorBindsChainID() {
	s.NotEqual(domainSeparator(1), domainSeparator(137))
	s.Equal(domainSeparator(1), domainSeparator(1))
}

func (s *TypedDataSuite) TestNAVClaimNilValue() {
	claim := NAVClaim{Vault: common.HexToAddress("0x22"), Env: Envelope{Nonce: 1}}
	zero := claim
	zero.Value = new(big.Int)
	s.Equal(zero.StructHash(), claim.StructHash())
}

func (s *TypedDataSuite) TestReplaySubjects() {
	s.Run("attestation subject is the account", func() {
		c := AttestationClaim{Profile: s.profile()}
		s.Equal(c.Profile.Subject.Hex(), c.Subject())
	})
	s.Run("receipt subject is the transfer id", func() {
		c := ReceiptClaim{TransferID: common.HexToHash("0xabc")}
		s.Equal(c.TransferID.Hex(), c.Subject())
	})
}
