package httptransport

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/kevanbtc/cleargate/pkg/sentinel"
)

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// writeError translates sentinel errors into stable reason codes. Off-chain
// tooling branches on these codes, so the mapping must not change casually.
func writeError(w http.ResponseWriter, err error) {
	status, code := http.StatusInternalServerError, "INTERNAL"

	switch {
	case errors.Is(err, sentinel.ErrUnauthorized):
		status, code = http.StatusForbidden, "UNAUTHORIZED"
	case errors.Is(err, sentinel.ErrInvalidSignature):
		status, code = http.StatusBadRequest, "INVALID_SIGNATURE"
	case errors.Is(err, sentinel.ErrUnauthorizedSigner):
		status, code = http.StatusForbidden, "UNAUTHORIZED_SIGNER"
	case errors.Is(err, sentinel.ErrExpired):
		status, code = http.StatusUnprocessableEntity, "EXPIRED"
	case errors.Is(err, sentinel.ErrReplay):
		status, code = http.StatusConflict, "REPLAY"
	case errors.Is(err, sentinel.ErrAlreadyExists):
		status, code = http.StatusConflict, "ALREADY_EXISTS"
	case errors.Is(err, sentinel.ErrAlreadyExecuted):
		status, code = http.StatusConflict, "ALREADY_EXECUTED"
	case errors.Is(err, sentinel.ErrAlreadyPrepared):
		status, code = http.StatusConflict, "ALREADY_PREPARED"
	case errors.Is(err, sentinel.ErrNotPrepared):
		status, code = http.StatusConflict, "NOT_PREPARED"
	case errors.Is(err, sentinel.ErrOrderNotActive):
		status, code = http.StatusConflict, "ORDER_NOT_ACTIVE"
	case errors.Is(err, sentinel.ErrUnknownRail):
		status, code = http.StatusNotFound, "UNKNOWN_RAIL"
	case errors.Is(err, sentinel.ErrNotFound):
		status, code = http.StatusNotFound, "NOT_FOUND"
	}

	writeJSON(w, status, errorResponse{Error: code})
}

func badRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, errorResponse{Error: msg})
}
