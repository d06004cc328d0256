package httptransport

import (
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Wire conventions: addresses and hashes are 0x-hex, amounts are decimal
// strings to preserve precision across JSON, timestamps are unix seconds to
// match the typed-data encoding the signatures commit to.

func parseAddress(field, s string) (common.Address, error) {
	if !common.IsHexAddress(s) {
		return common.Address{}, fmt.Errorf("%s must be a hex address", field)
	}
	return common.HexToAddress(s), nil
}

func parseHash(field, s string) (common.Hash, error) {
	raw, err := parseHexBytes(field, s)
	if err != nil {
		return common.Hash{}, err
	}
	if len(raw) != common.HashLength {
		return common.Hash{}, fmt.Errorf("%s must be 32 bytes", field)
	}
	return common.BytesToHash(raw), nil
}

func parseBig(field, s string) (*big.Int, error) {
	if s == "" {
		return new(big.Int), nil
	}
	n, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("%s must be a decimal integer", field)
	}
	return n, nil
}

func parseHexBytes(field, s string) ([]byte, error) {
	raw, err := hex.DecodeString(strings.TrimPrefix(s, "0x"))
	if err != nil {
		return nil, fmt.Errorf("%s must be hex encoded", field)
	}
	return raw, nil
}

func parseUnix(ts int64) time.Time {
	if ts == 0 {
		return time.Time{}
	}
	return time.Unix(ts, 0).UTC()
}

// envelopeRequest is embedded in every claim submission.
type envelopeRequest struct {
	Nonce     uint64 `json:"nonce"`
	IssuedAt  int64  `json:"issued_at"`
	ExpiresAt int64  `json:"expires_at"`
	Signature string `json:"signature"`
}

// transferRequest is the logical transfer description shared by prepare and
// receipt submissions.
type transferRequest struct {
	Rail     string `json:"rail"`
	Asset    string `json:"asset"`
	From     string `json:"from"`
	To       string `json:"to"`
	Amount   string `json:"amount"`
	Metadata string `json:"metadata"`
}
