// Package replay implements the per-subject nonce consumption ledger that
// protects claim ingestion against replay.
//
// A (subject, nonce) pair is consumed at most once, globally across the
// claim's lifetime: a consumed nonce is never reused, even after the claim
// that carried it has expired. Expiry is the caller's check and happens
// strictly before Consume, so an expired-but-never-used nonce is rejected
// without being burned.
package replay

import "context"

// Guard atomically checks-and-marks a (subject, nonce) pair as used.
//
// Consume returns sentinel.ErrReplay when the pair was already consumed.
// Implementations must make the check-and-set atomic; there is no separate
// read path because time-of-check/time-of-use races would reintroduce the
// replay window the guard exists to close.
type Guard interface {
	Consume(ctx context.Context, subject string, nonce uint64) error
}
