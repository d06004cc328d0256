package httptransport

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/kevanbtc/cleargate/internal/claims"
	"github.com/kevanbtc/cleargate/internal/domain"
)

func (h *Handler) parseTransfer(req transferRequest) (domain.Transfer, error) {
	asset, err := parseAddress("asset", req.Asset)
	if err != nil {
		return domain.Transfer{}, err
	}
	from, err := parseAddress("from", req.From)
	if err != nil {
		return domain.Transfer{}, err
	}
	to, err := parseAddress("to", req.To)
	if err != nil {
		return domain.Transfer{}, err
	}
	amount, err := parseBig("amount", req.Amount)
	if err != nil {
		return domain.Transfer{}, err
	}
	return domain.Transfer{
		Asset:    asset,
		From:     from,
		To:       to,
		Amount:   amount,
		Metadata: []byte(req.Metadata),
	}, nil
}

type prepareResponse struct {
	TransferID string `json:"transfer_id"`
	Status     string `json:"status"`
}

func (h *Handler) handlePrepare(w http.ResponseWriter, r *http.Request) {
	var req transferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "MALFORMED_BODY")
		return
	}
	rail, err := h.rails.Dispatch(req.Rail)
	if err != nil {
		writeError(w, err)
		return
	}
	transfer, err := h.parseTransfer(req)
	if err != nil {
		badRequest(w, err.Error())
		return
	}

	id, err := rail.Prepare(r.Context(), transfer)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, prepareResponse{
		TransferID: id.Hex(),
		Status:     domain.StatusPrepared.String(),
	})
}

func (h *Handler) handleRelease(w http.ResponseWriter, r *http.Request) {
	h.handleOperatorTransition(w, r, true)
}

func (h *Handler) handleRevert(w http.ResponseWriter, r *http.Request) {
	h.handleOperatorTransition(w, r, false)
}

func (h *Handler) handleOperatorTransition(w http.ResponseWriter, r *http.Request, release bool) {
	var req transferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "MALFORMED_BODY")
		return
	}
	rail, err := h.rails.Dispatch(req.Rail)
	if err != nil {
		writeError(w, err)
		return
	}
	transfer, err := h.parseTransfer(req)
	if err != nil {
		badRequest(w, err.Error())
		return
	}

	if release {
		err = rail.Release(r.Context(), transfer)
	} else {
		err = rail.Revert(r.Context(), transfer)
	}
	if err != nil {
		writeError(w, err)
		return
	}

	status := domain.StatusReleased
	if !release {
		status = domain.StatusReverted
	}
	writeJSON(w, http.StatusOK, prepareResponse{
		TransferID: transfer.ID().Hex(),
		Status:     status.String(),
	})
}

type receiptRequest struct {
	transferRequest
	Released  bool  `json:"released"`
	SettledAt int64 `json:"settled_at"`
	envelopeRequest
}

func (h *Handler) handleReceipt(w http.ResponseWriter, r *http.Request) {
	var req receiptRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "MALFORMED_BODY")
		return
	}
	rail, err := h.rails.Dispatch(req.Rail)
	if err != nil {
		writeError(w, err)
		return
	}
	transfer, err := h.parseTransfer(req.transferRequest)
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	sig, err := parseHexBytes("signature", req.Signature)
	if err != nil {
		badRequest(w, err.Error())
		return
	}

	env := claims.Envelope{
		Nonce:     req.Nonce,
		IssuedAt:  parseUnix(req.IssuedAt),
		ExpiresAt: parseUnix(req.ExpiresAt),
	}
	if err := rail.MarkWithReceipt(r.Context(), transfer, req.Released, parseUnix(req.SettledAt), env, sig); err != nil {
		writeError(w, err)
		return
	}

	status := domain.StatusReleased
	if !req.Released {
		status = domain.StatusReverted
	}
	writeJSON(w, http.StatusOK, prepareResponse{
		TransferID: transfer.ID().Hex(),
		Status:     status.String(),
	})
}

func (h *Handler) handleTransferStatus(w http.ResponseWriter, r *http.Request) {
	rail, err := h.rails.Dispatch(chi.URLParam(r, "rail"))
	if err != nil {
		writeError(w, err)
		return
	}
	id, err := parseHash("id", chi.URLParam(r, "id"))
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	status, err := rail.Status(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, prepareResponse{
		TransferID: id.Hex(),
		Status:     status.String(),
	})
}

func (h *Handler) handleListRails(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string][]string{"rails": h.rails.Keys()})
}
