package sentinel

import "errors"

// Sentinel errors for the claim-ingestion and settlement state machines.
// Stores and verifiers return these (optionally wrapped) so services and the
// HTTP layer can translate them into stable reason codes. Every check is a
// hard fail: an operation either fully applies or aborts with one of these.
//
// Policy-gate denials are NOT errors; they are structured allow/deny results
// (see internal/policy) so callers can log and branch.
var (
	// ErrNotFound: entity does not exist in a store.
	ErrNotFound = errors.New("not found")

	// ErrUnauthorized: caller lacks the role required by the entry point.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrInvalidSignature: signature bytes malformed or recovery failed.
	ErrInvalidSignature = errors.New("invalid signature")

	// ErrUnauthorizedSigner: signature valid but signer not in the allowlist
	// for this claim kind.
	ErrUnauthorizedSigner = errors.New("unauthorized signer")

	// ErrExpired: claim or profile past its validity window.
	ErrExpired = errors.New("expired")

	// ErrReplay: (subject, nonce) pair already consumed.
	ErrReplay = errors.New("replay")

	// ErrAlreadyExists: duplicate court order id.
	ErrAlreadyExists = errors.New("already exists")

	// ErrAlreadyExecuted: one-shot court order executed twice.
	ErrAlreadyExecuted = errors.New("already executed")

	// ErrOrderNotActive: court order expired, executed, or deactivated.
	ErrOrderNotActive = errors.New("order not active")

	// ErrAlreadyPrepared: transfer id already moved past NONE.
	ErrAlreadyPrepared = errors.New("already prepared")

	// ErrNotPrepared: release/revert attempted on a transfer not in PREPARED.
	ErrNotPrepared = errors.New("not prepared")

	// ErrUnknownRail: no rail registered under the requested key.
	ErrUnknownRail = errors.New("unknown rail")
)
