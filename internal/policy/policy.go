// Package policy implements the gate evaluator that approves or denies a
// guarded operation from the subject's profile, the active policy, portfolio
// limits, and the court-order registry.
package policy

import (
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/kevanbtc/cleargate/internal/domain"
)

// Reason is the stable denial code surfaced to callers and the audit trail.
// Off-chain tooling distinguishes "retry later" (STALE_ATTESTATION) from
// "permanently blocked" (NOT_COMPLIANT, FROZEN) on these values, so they
// must never be renamed.
type Reason string

const (
	ReasonNone                      Reason = ""
	ReasonPaused                    Reason = "PAUSED"
	ReasonStaleAttestation          Reason = "STALE_ATTESTATION"
	ReasonClassLimitExceeded        Reason = "CLASS_LIMIT_EXCEEDED"
	ReasonIssuerLimitExceeded       Reason = "ISSUER_LIMIT_EXCEEDED"
	ReasonJurisdictionNotWhitelisted Reason = "JURISDICTION_NOT_WHITELISTED"
	ReasonJurisdictionBlacklisted   Reason = "JURISDICTION_BLACKLISTED"
	ReasonNotCompliant              Reason = "NOT_COMPLIANT"
	ReasonFrozen                    Reason = "FROZEN"
)

// Decision is the structured allow/deny result. Policy evaluation is the one
// place in the engine that returns a result instead of aborting, so callers
// can log and branch on the reason.
type Decision struct {
	Allowed bool   `json:"allowed"`
	Reason  Reason `json:"reason,omitempty"`
}

func deny(reason Reason) Decision { return Decision{Allowed: false, Reason: reason} }

func allow() Decision { return Decision{Allowed: true} }

// JurisdictionPolicy is the per-operation country rule: a listed set plus the
// mode deciding what listing means. Under whitelist mode only listed
// countries pass; otherwise listed countries are blocked. A country absent
// from the set is treated as not listed, i.e. permitted with whitelist off
// and rejected with whitelist on.
type JurisdictionPolicy struct {
	WhitelistMode bool            `json:"whitelist_mode"`
	Countries     map[uint16]bool `json:"countries"`
}

// Policy is a named, versioned rule set. Instances are immutable once
// installed; governance replaces the whole policy rather than patching it.
type Policy struct {
	Version            uint64                                    `json:"version"`
	ProOnly            bool                                      `json:"pro_only"`
	TravelRuleRequired bool                                      `json:"travel_rule_required"`
	Jurisdiction       map[domain.Operation]JurisdictionPolicy   `json:"jurisdiction"`
}

// Rule resolves the (listed, whitelistMode) pair for an operation and
// country. No rule for the operation means (false, false).
func (p Policy) Rule(op domain.Operation, country uint16) (listed, whitelistMode bool) {
	jp, ok := p.Jurisdiction[op]
	if !ok {
		return false, false
	}
	return jp.Countries[country], jp.WhitelistMode
}

// Limits are the portfolio-level ceilings and freshness windows. Zero values
// mean "not configured" and skip the corresponding check.
type Limits struct {
	// FreshnessWindows caps attestation age per operation.
	FreshnessWindows map[domain.Operation]time.Duration `json:"freshness_windows"`

	// ClassCeilingsBps caps post-operation allocation per asset class.
	ClassCeilingsBps map[string]uint32 `json:"class_ceilings_bps"`

	// IssuerCeilingBps caps post-operation issuer concentration.
	IssuerCeilingBps uint32 `json:"issuer_ceiling_bps"`
}

// CheckInput carries everything the gate needs for one evaluation. The
// post-operation allocation figures are computed by the caller (the token or
// vault contract) because only it knows the operation's size.
type CheckInput struct {
	Op      domain.Operation
	Subject common.Address
	Token   common.Address

	// Country overrides the profile country when non-zero; tokens use this
	// for travel-rule destination checks.
	Country uint16

	// AttestationAge is the age of the freshest relevant attestation.
	AttestationAge time.Duration

	// ClassAllocationBps is the asset-class allocation after the operation.
	ClassAllocationBps uint32

	// IssuerConcentrationBps is the issuer concentration after the operation.
	IssuerConcentrationBps uint32

	AssetClass string
}
