package httptransport

import (
	"encoding/json"
	"net/http"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"

	"github.com/kevanbtc/cleargate/internal/domain"
)

type fileOrderRequest struct {
	ID         string `json:"id"`
	Subject    string `json:"subject"`
	Token      string `json:"token"`
	Action     string `json:"action"`
	Target     string `json:"target"`
	Amount     string `json:"amount"`
	ValidUntil int64  `json:"valid_until"`
}

func (h *Handler) handleFileOrder(w http.ResponseWriter, r *http.Request) {
	var req fileOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "MALFORMED_BODY")
		return
	}

	id, err := parseHash("id", req.ID)
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	subject, err := parseAddress("subject", req.Subject)
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	token, err := parseAddress("token", req.Token)
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	action, err := domain.ParseOrderAction(req.Action)
	if err != nil {
		badRequest(w, err.Error())
		return
	}

	order := domain.CourtOrder{
		ID:         id,
		Subject:    subject,
		Token:      token,
		Action:     action,
		ValidUntil: parseUnix(req.ValidUntil),
	}
	if req.Target != "" {
		if order.Target, err = parseAddress("target", req.Target); err != nil {
			badRequest(w, err.Error())
			return
		}
	}
	if req.Amount != "" {
		if order.Amount, err = parseBig("amount", req.Amount); err != nil {
			badRequest(w, err.Error())
			return
		}
	}

	if err := h.orders.FileOrder(r.Context(), order); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"id": id.Hex()})
}

type orderResponse struct {
	ID         string `json:"id"`
	Subject    string `json:"subject"`
	Token      string `json:"token"`
	Action     string `json:"action"`
	Target     string `json:"target,omitempty"`
	Amount     string `json:"amount,omitempty"`
	CreatedAt  int64  `json:"created_at"`
	ValidUntil int64  `json:"valid_until,omitempty"`
	Executed   bool   `json:"executed"`
	Active     bool   `json:"active"`
}

func (h *Handler) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	id, err := parseHash("id", chi.URLParam(r, "id"))
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	order, err := h.orders.Get(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	resp := orderResponse{
		ID:        order.ID.Hex(),
		Subject:   order.Subject.Hex(),
		Token:     order.Token.Hex(),
		Action:    string(order.Action),
		CreatedAt: order.CreatedAt.Unix(),
		Executed:  order.Executed,
		Active:    h.orders.IsActive(r.Context(), order.ID),
	}
	if order.Target != (common.Address{}) {
		resp.Target = order.Target.Hex()
	}
	if order.Amount != nil {
		resp.Amount = order.Amount.String()
	}
	if !order.ValidUntil.IsZero() {
		resp.ValidUntil = order.ValidUntil.Unix()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleExecuteOrder(w http.ResponseWriter, r *http.Request) {
	id, err := parseHash("id", chi.URLParam(r, "id"))
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	order, err := h.orders.Get(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	switch order.Action {
	case domain.ActionForceTransfer:
		err = h.controller.ForceTransfer(r.Context(), id)
	case domain.ActionForceRedeem:
		err = h.controller.ForceRedeem(r.Context(), id)
	default:
		badRequest(w, "order action is not executable")
		return
	}
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"id": id.Hex(), "status": "EXECUTED"})
}

type globalFreezeRequest struct {
	Token  string `json:"token"`
	Frozen bool   `json:"frozen"`
}

func (h *Handler) handleGlobalFreeze(w http.ResponseWriter, r *http.Request) {
	var req globalFreezeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "MALFORMED_BODY")
		return
	}
	token, err := parseAddress("token", req.Token)
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	if err := h.orders.SetGlobalFreeze(r.Context(), token, req.Frozen); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"frozen": req.Frozen})
}
