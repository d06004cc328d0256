package domain

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

// TransferStatus tracks a transfer through the settlement rail state machine.
//
// Transitions are one-directional: NONE -> PREPARED -> RELEASED, or
// PREPARED -> REVERTED. REVERTED and RELEASED are terminal. A transfer whose
// status is NONE has never been prepared.
type TransferStatus uint8

const (
	StatusNone TransferStatus = iota
	StatusPrepared
	StatusReleased
	StatusReverted
)

func (s TransferStatus) String() string {
	switch s {
	case StatusNone:
		return "NONE"
	case StatusPrepared:
		return "PREPARED"
	case StatusReleased:
		return "RELEASED"
	case StatusReverted:
		return "REVERTED"
	}
	return "UNKNOWN"
}

// Transfer is the logical description of a cross-venue movement. Its identity
// is derived from its content, so re-submitting the same logical transfer
// maps to the same TransferID and is rejected by the PREPARED status guard.
type Transfer struct {
	Asset    common.Address
	From     common.Address
	To       common.Address
	Amount   *big.Int
	Metadata []byte
}

// ID computes the deterministic transfer id:
//
//	keccak256(asset || from || to || amount_32 || keccak256(metadata))
//
// Metadata is hashed first so arbitrary-length payloads cannot collide with
// the fixed-width fields.
func (t Transfer) ID() common.Hash {
	amount := t.Amount
	if amount == nil {
		amount = new(big.Int)
	}
	metaHash := ethcrypto.Keccak256(t.Metadata)

	buf := make([]byte, 0, 20*3+32+32)
	buf = append(buf, t.Asset.Bytes()...)
	buf = append(buf, t.From.Bytes()...)
	buf = append(buf, t.To.Bytes()...)
	buf = append(buf, common.LeftPadBytes(amount.Bytes(), 32)...)
	buf = append(buf, metaHash...)

	return common.BytesToHash(ethcrypto.Keccak256(buf))
}
