package domain

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Profile is the authoritative compliance record for a subject. It is owned
// by the compliance registry and mutated only through a verified attestation
// claim; direct writes bypass the audit trail and are not exposed.
//
// Invariant: a Profile is authoritative only while now <= ExpiresAt.
type Profile struct {
	Subject     common.Address
	KYC         bool
	KYB         bool
	Accredited  bool
	PEP         bool
	Sanctioned  bool
	RiskTier    uint8
	CountryCode uint16 // ISO 3166-1 numeric
	ExpiresAt   time.Time
	MetadataRef common.Hash // content hash of the off-chain evidence bundle

	// Frozen is an administrative flag set by the COMPLIANCE role. It is
	// distinct from court-order freezes, which live in the court-order
	// registry and are checked separately by the policy gate.
	Frozen bool

	// AttestedAt is the issuance time of the attestation that produced this
	// record. The policy gate derives attestation age from it.
	AttestedAt time.Time
}

// Fresh reports whether the profile is still authoritative at now.
func (p Profile) Fresh(now time.Time) bool {
	return !p.ExpiresAt.IsZero() && !now.After(p.ExpiresAt)
}

// AttestationAge returns how old the backing attestation is at now.
func (p Profile) AttestationAge(now time.Time) time.Duration {
	if p.AttestedAt.IsZero() {
		return 0
	}
	return now.Sub(p.AttestedAt)
}
