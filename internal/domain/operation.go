package domain

import "fmt"

// Operation identifies a value-moving action guarded by the policy gate.
// Invariant: construct via ParseOperation at trust boundaries to enforce the
// allowlist; direct casting bypasses validation.
type Operation string

const (
	OpMint      Operation = "MINT"
	OpBurn      Operation = "BURN"
	OpTransfer  Operation = "TRANSFER"
	OpRedeem    Operation = "REDEEM"
	OpRebase    Operation = "REBASE"
	OpNAVAttest Operation = "NAV_ATTEST"
)

var validOperations = map[Operation]bool{
	OpMint:      true,
	OpBurn:      true,
	OpTransfer:  true,
	OpRedeem:    true,
	OpRebase:    true,
	OpNAVAttest: true,
}

// ParseOperation constructs an Operation from external input.
func ParseOperation(s string) (Operation, error) {
	op := Operation(s)
	if !validOperations[op] {
		return "", fmt.Errorf("invalid operation %q", s)
	}
	return op, nil
}

func (o Operation) String() string { return string(o) }
