package claims

import (
	"crypto/ecdsa"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

// Signer produces claim signatures on the off-chain side (attestor, custodian,
// rail operator). It mirrors the Verifier's digest construction exactly so a
// signature round-trips through Recover to the signer's address.
type Signer struct {
	key       *ecdsa.PrivateKey
	address   common.Address
	domainSep []byte
}

// NewSigner creates a Signer from a hex-encoded secp256k1 private key bound
// to the given chain id.
func NewSigner(privateKeyHex string, chainID int64) (*Signer, error) {
	key, err := ethcrypto.HexToECDSA(strings.TrimPrefix(privateKeyHex, "0x"))
	if err != nil {
		return nil, fmt.Errorf("claims: invalid private key: %w", err)
	}
	return &Signer{
		key:       key,
		address:   ethcrypto.PubkeyToAddress(key.PublicKey),
		domainSep: domainSeparator(chainID),
	}, nil
}

// NewSignerFromKey wraps an existing private key; used by tests that generate
// throwaway keys.
func NewSignerFromKey(key *ecdsa.PrivateKey, chainID int64) *Signer {
	return &Signer{
		key:       key,
		address:   ethcrypto.PubkeyToAddress(key.PublicKey),
		domainSep: domainSeparator(chainID),
	}
}

// Address returns the address derived from the signer's private key.
func (s *Signer) Address() common.Address {
	return s.address
}

// Sign returns a 65-byte (r || s || v) signature over the claim digest,
// with v in {27,28} per typed-data convention.
func (s *Signer) Sign(c Claim) ([]byte, error) {
	sig, err := ethcrypto.Sign(digest(s.domainSep, c.StructHash()), s.key)
	if err != nil {
		return nil, fmt.Errorf("claims: signing: %w", err)
	}
	if sig[64] < 27 {
		sig[64] += 27
	}
	return sig, nil
}
