package claims

import (
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"github.com/kevanbtc/cleargate/pkg/sentinel"
)

// Verifier recovers claim signers and checks them against per-kind
// allowlists. Recovery itself is pure; the only state is the allowlist,
// which the ADMIN role mutates through the governance surface.
type Verifier struct {
	domainSep []byte

	mu      sync.RWMutex
	signers map[Kind]map[common.Address]bool
}

// NewVerifier builds a verifier bound to the given chain id. Claims signed
// against any other chain id produce a different digest and recover to the
// wrong signer.
func NewVerifier(chainID int64) *Verifier {
	return &Verifier{
		domainSep: domainSeparator(chainID),
		signers:   make(map[Kind]map[common.Address]bool),
	}
}

// Digest returns the domain-separated signing hash for a claim.
func (v *Verifier) Digest(c Claim) []byte {
	return digest(v.domainSep, c.StructHash())
}

// Recover returns the address that signed the claim.
//
// The signature must be 65 bytes (r || s || v) with v in {0,1} or {27,28}.
// Returns sentinel.ErrInvalidSignature when the bytes are malformed or
// recovery fails; authorization is a separate concern (see Authorized).
func (v *Verifier) Recover(c Claim, sig []byte) (common.Address, error) {
	if len(sig) != 65 {
		return common.Address{}, fmt.Errorf("%w: signature must be 65 bytes, got %d", sentinel.ErrInvalidSignature, len(sig))
	}

	// go-ethereum expects the recovery id in {0,1}.
	normalized := make([]byte, 65)
	copy(normalized, sig)
	if normalized[64] >= 27 {
		normalized[64] -= 27
	}
	if normalized[64] > 1 {
		return common.Address{}, fmt.Errorf("%w: invalid recovery id %d", sentinel.ErrInvalidSignature, sig[64])
	}

	pub, err := ethcrypto.SigToPub(v.Digest(c), normalized)
	if err != nil {
		return common.Address{}, fmt.Errorf("%w: %v", sentinel.ErrInvalidSignature, err)
	}
	return ethcrypto.PubkeyToAddress(*pub), nil
}

// Authorized reports whether signer is allowlisted for the given claim kind.
func (v *Verifier) Authorized(kind Kind, signer common.Address) bool {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.signers[kind][signer]
}

// AuthorizeSigner adds a signer to the allowlist for a claim kind.
func (v *Verifier) AuthorizeSigner(kind Kind, signer common.Address) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.signers[kind] == nil {
		v.signers[kind] = make(map[common.Address]bool)
	}
	v.signers[kind][signer] = true
}

// RevokeSigner removes a signer from the allowlist for a claim kind.
// Already-applied claims are unaffected; revocation only blocks new ones.
func (v *Verifier) RevokeSigner(kind Kind, signer common.Address) {
	v.mu.Lock()
	defer v.mu.Unlock()
	delete(v.signers[kind], signer)
}
