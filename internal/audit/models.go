// Package audit is the structured, append-only decision trail. Every applied
// claim, policy denial, transfer-status transition, and court-order lifecycle
// step lands here with enough data to reconstruct the decision off-chain.
// This is deliberately separate from application logging: log lines are for
// operators, audit events are for compliance reporting.
package audit

import "time"

// Category classifies audit events for retention and routing.
type Category string

const (
	// CategoryCompliance covers events with regulatory significance: applied
	// claims, policy denials, forced actions. Long retention, fail-closed.
	CategoryCompliance Category = "compliance"

	// CategorySecurity covers rejected signatures, role violations, and
	// other events that feed security monitoring.
	CategorySecurity Category = "security"

	// CategoryOperations covers routine transitions useful for debugging.
	CategoryOperations Category = "operations"
)

// Action constants. Keep these stable: downstream reporting keys on them.
const (
	EventClaimApplied       = "claim_applied"
	EventPolicyDenied       = "policy_denied"
	EventTransferPrepared   = "transfer_prepared"
	EventTransferReleased   = "transfer_released"
	EventTransferReverted   = "transfer_reverted"
	EventOrderFiled         = "court_order_filed"
	EventOrderExecuted      = "court_order_executed"
	EventSubjectFrozen      = "subject_frozen"
	EventSubjectUnfrozen    = "subject_unfrozen"
	EventPolicyReplaced     = "policy_replaced"
	EventSignerAuthorized   = "signer_authorized"
	EventSignerRevoked      = "signer_revoked"
	EventEnginePaused       = "engine_paused"
	EventEngineUnpaused     = "engine_unpaused"
)

// Event is one entry in the decision trail.
type Event struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Category  Category  `json:"category"`
	Action    string    `json:"action"`

	// Subject is the entity acted on: an account, vault, transfer id, or
	// court order id depending on the action.
	Subject string `json:"subject,omitempty"`

	// Signer is the recovered off-chain signer for claim events.
	Signer string `json:"signer,omitempty"`

	// Reason carries the stable reason code for denials.
	Reason string `json:"reason,omitempty"`

	// Digest is the typed-data payload hash for claim events.
	Digest string `json:"digest,omitempty"`

	// Detail is free-form context: claim kind, rail key, order action.
	Detail string `json:"detail,omitempty"`

	RequestID string `json:"request_id,omitempty"`
}
