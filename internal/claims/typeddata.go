// Package claims implements domain-separated typed-data hashing and signature
// recovery for off-chain-signed claims (compliance attestations, custodian NAV
// reports, settlement receipts).
//
// The digest scheme follows EIP-712 composition exactly: nested structs are
// hashed first and their hash substituted into the parent encoding, and the
// canonical type string of a struct with references appends the referenced
// type definitions. Any change to field order or types changes the domain and
// invalidates all previously-valid signatures; version bumps are explicit via
// the domain version string.
package claims

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"github.com/kevanbtc/cleargate/internal/domain"
)

// Domain constants. Bump protocolVersion whenever any type string below
// changes; old signatures must not verify against the new layout.
const (
	protocolName    = "ClearGate"
	protocolVersion = "1"
)

// Canonical EIP-712 type strings.
const (
	eip712DomainType = "EIP712Domain(string name,string version,uint256 chainId)"

	profileType = "ComplianceProfile(address subject,bool kyc,bool kyb,bool accredited,bool pep,bool sanctioned,uint8 riskTier,uint16 countryCode,uint64 expiresAt,bytes32 metadataRef)"

	// Referenced struct definitions are appended to the parent type string,
	// per the EIP-712 composition rule.
	attestationType = "ComplianceAttestation(address subject,ComplianceProfile profile,uint64 nonce,uint64 issuedAt,uint64 expiresAt)" + profileType

	navReportType = "NAVReport(address vault,uint256 value,uint64 reportedAt,uint64 nonce,uint64 issuedAt,uint64 expiresAt)"

	receiptType = "SettlementReceipt(bytes32 transferId,bool released,uint64 settledAt,uint64 nonce,uint64 issuedAt,uint64 expiresAt)"
)

var (
	eip712DomainTypeHash = ethcrypto.Keccak256([]byte(eip712DomainType))
	profileTypeHash      = ethcrypto.Keccak256([]byte(profileType))
	attestationTypeHash  = ethcrypto.Keccak256([]byte(attestationType))
	navReportTypeHash    = ethcrypto.Keccak256([]byte(navReportType))
	receiptTypeHash      = ethcrypto.Keccak256([]byte(receiptType))
)

// Kind discriminates claim types. Each kind has its own signer allowlist and
// its own replay namespace.
type Kind string

const (
	KindAttestation Kind = "compliance_attestation"
	KindNAVReport   Kind = "nav_report"
	KindReceipt     Kind = "settlement_receipt"
)

// Envelope carries the anti-replay and freshness fields shared by every claim.
type Envelope struct {
	Nonce     uint64
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Claim is a typed, signable assertion. StructHash returns the EIP-712
// hashStruct of the claim; the verifier combines it with the domain separator
// to produce the signing digest.
type Claim interface {
	Kind() Kind
	// Subject returns the replay-protection subject: an account for
	// attestations, a vault for NAV reports, a transfer id for receipts.
	Subject() string
	Envelope() Envelope
	StructHash() []byte
}

// AttestationClaim wraps a full compliance Profile signed by an attestor.
type AttestationClaim struct {
	Profile domain.Profile
	Env     Envelope
}

func (c AttestationClaim) Kind() Kind         { return KindAttestation }
func (c AttestationClaim) Subject() string    { return c.Profile.Subject.Hex() }
func (c AttestationClaim) Envelope() Envelope { return c.Env }

// StructHash hashes the nested profile first, then the attestation.
func (c AttestationClaim) StructHash() []byte {
	profileHash := hashProfile(c.Profile)
	return ethcrypto.Keccak256(concat(
		attestationTypeHash,
		addrWord(c.Profile.Subject),
		profileHash,
		u64Word(c.Env.Nonce),
		timeWord(c.Env.IssuedAt),
		timeWord(c.Env.ExpiresAt),
	))
}

// NAVClaim is a custodian's report of a vault's net asset value.
type NAVClaim struct {
	Vault      common.Address
	Value      *big.Int
	ReportedAt time.Time
	Env        Envelope
}

func (c NAVClaim) Kind() Kind         { return KindNAVReport }
func (c NAVClaim) Subject() string    { return c.Vault.Hex() }
func (c NAVClaim) Envelope() Envelope { return c.Env }

func (c NAVClaim) StructHash() []byte {
	value := c.Value
	if value == nil {
		value = new(big.Int)
	}
	return ethcrypto.Keccak256(concat(
		navReportTypeHash,
		addrWord(c.Vault),
		bigWord(value),
		timeWord(c.ReportedAt),
		u64Word(c.Env.Nonce),
		timeWord(c.Env.IssuedAt),
		timeWord(c.Env.ExpiresAt),
	))
}

// ReceiptClaim is a rail operator's statement of a transfer's outcome.
type ReceiptClaim struct {
	TransferID common.Hash
	Released   bool
	SettledAt  time.Time
	Env        Envelope
}

func (c ReceiptClaim) Kind() Kind         { return KindReceipt }
func (c ReceiptClaim) Subject() string    { return c.TransferID.Hex() }
func (c ReceiptClaim) Envelope() Envelope { return c.Env }

func (c ReceiptClaim) StructHash() []byte {
	return ethcrypto.Keccak256(concat(
		receiptTypeHash,
		c.TransferID.Bytes(),
		boolWord(c.Released),
		timeWord(c.SettledAt),
		u64Word(c.Env.Nonce),
		timeWord(c.Env.IssuedAt),
		timeWord(c.Env.ExpiresAt),
	))
}

// hashProfile computes the EIP-712 hashStruct of the nested profile.
func hashProfile(p domain.Profile) []byte {
	return ethcrypto.Keccak256(concat(
		profileTypeHash,
		addrWord(p.Subject),
		boolWord(p.KYC),
		boolWord(p.KYB),
		boolWord(p.Accredited),
		boolWord(p.PEP),
		boolWord(p.Sanctioned),
		u64Word(uint64(p.RiskTier)),
		u64Word(uint64(p.CountryCode)),
		timeWord(p.ExpiresAt),
		p.MetadataRef.Bytes(),
	))
}

// domainSeparator returns keccak256(abi.encode(typeHash, nameHash, versionHash, chainId)).
func domainSeparator(chainID int64) []byte {
	return ethcrypto.Keccak256(concat(
		eip712DomainTypeHash,
		ethcrypto.Keccak256([]byte(protocolName)),
		ethcrypto.Keccak256([]byte(protocolVersion)),
		bigWord(big.NewInt(chainID)),
	))
}

// digest computes the final signing hash:
//
//	keccak256("\x19\x01" || domainSeparator || structHash)
func digest(domainSep, structHash []byte) []byte {
	return ethcrypto.Keccak256(concat([]byte{0x19, 0x01}, domainSep, structHash))
}

// ---------------------------------------------------------------------------
// 32-byte word encoding helpers
// ---------------------------------------------------------------------------

func addrWord(a common.Address) []byte {
	return common.LeftPadBytes(a.Bytes(), 32)
}

func boolWord(b bool) []byte {
	w := make([]byte, 32)
	if b {
		w[31] = 1
	}
	return w
}

func u64Word(v uint64) []byte {
	return bigWord(new(big.Int).SetUint64(v))
}

// timeWord encodes a timestamp as uint64 unix seconds; the zero time encodes
// as zero.
func timeWord(t time.Time) []byte {
	if t.IsZero() {
		return make([]byte, 32)
	}
	return u64Word(uint64(t.Unix()))
}

func bigWord(n *big.Int) []byte {
	b := n.Bytes()
	if len(b) >= 32 {
		return b[:32]
	}
	return common.LeftPadBytes(b, 32)
}

func concat(slices ...[]byte) []byte {
	total := 0
	for _, s := range slices {
		total += len(s)
	}
	buf := make([]byte, 0, total)
	for _, s := range slices {
		buf = append(buf, s...)
	}
	return buf
}
