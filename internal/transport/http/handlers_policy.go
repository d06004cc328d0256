package httptransport

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/kevanbtc/cleargate/internal/domain"
	"github.com/kevanbtc/cleargate/internal/policy"
)

type checkRequest struct {
	Op      string `json:"op"`
	Subject string `json:"subject"`
	Token   string `json:"token"`
	Country uint16 `json:"country"`

	// AttestationAgeSeconds overrides the profile-derived age when present;
	// token contracts pass it when they track their own attestation feed.
	AttestationAgeSeconds *int64 `json:"attestation_age_seconds"`

	ClassAllocationBps     uint32 `json:"class_allocation_bps"`
	IssuerConcentrationBps uint32 `json:"issuer_concentration_bps"`
	AssetClass             string `json:"asset_class"`
}

// handleCheck evaluates the policy gate. Denials are 200 responses with
// allowed=false: a deny is a successful evaluation, not a transport error.
func (h *Handler) handleCheck(w http.ResponseWriter, r *http.Request) {
	var req checkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "MALFORMED_BODY")
		return
	}

	op, err := domain.ParseOperation(req.Op)
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

	var age time.Duration
	if req.AttestationAgeSeconds != nil {
		age = time.Duration(*req.AttestationAgeSeconds) * time.Second
	} else if profile, perr := h.compliance.Profile(r.Context(), subject); perr == nil {
		age = profile.AttestationAge(time.Now())
	}

	decision := h.gate.Evaluate(r.Context(), policy.CheckInput{
		Op:                     op,
		Subject:                subject,
		Token:                  token,
		Country:                req.Country,
		AttestationAge:         age,
		ClassAllocationBps:     req.ClassAllocationBps,
		IssuerConcentrationBps: req.IssuerConcentrationBps,
		AssetClass:             req.AssetClass,
	})
	writeJSON(w, http.StatusOK, decision)
}

type complianceResponse struct {
	Subject   string `json:"subject"`
	Compliant bool   `json:"compliant"`
	CanHold   bool   `json:"can_hold"`
}

func (h *Handler) handleComplianceView(w http.ResponseWriter, r *http.Request) {
	subject, err := parseAddress("subject", chi.URLParam(r, "subject"))
	if err != nil {
		badRequest(w, err.Error())
		return
	}

	compliant, err := h.compliance.IsCompliant(r.Context(), subject)
	if err != nil {
		writeError(w, err)
		return
	}
	canHold, err := h.compliance.CanHold(r.Context(), subject)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, complianceResponse{
		Subject:   subject.Hex(),
		Compliant: compliant,
		CanHold:   canHold,
	})
}

func (h *Handler) handleAuditTrail(w http.ResponseWriter, r *http.Request) {
	events, err := h.auditor.List(r.Context(), chi.URLParam(r, "subject"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, events)
}
