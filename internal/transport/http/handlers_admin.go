package httptransport

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/kevanbtc/cleargate/internal/audit"
	"github.com/kevanbtc/cleargate/internal/claims"
	"github.com/kevanbtc/cleargate/internal/domain"
	"github.com/kevanbtc/cleargate/internal/policy"
	"github.com/kevanbtc/cleargate/internal/rbac"
	"github.com/kevanbtc/cleargate/pkg/requestcontext"
)

type pauseRequest struct {
	Paused bool `json:"paused"`
}

func (h *Handler) handlePause(w http.ResponseWriter, r *http.Request) {
	var req pauseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "MALFORMED_BODY")
		return
	}
	if err := h.gate.SetPaused(r.Context(), req.Paused); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"paused": req.Paused})
}

// Wire shapes for policy and limits. Operations and countries arrive as JSON
// strings and get parsed into their domain representations, since JSON object
// keys cannot be typed directly.
type jurisdictionRuleRequest struct {
	WhitelistMode bool     `json:"whitelist_mode"`
	Countries     []uint16 `json:"countries"`
}

type policyRequest struct {
	Version            uint64                             `json:"version"`
	ProOnly            bool                               `json:"pro_only"`
	TravelRuleRequired bool                               `json:"travel_rule_required"`
	Jurisdiction       map[string]jurisdictionRuleRequest `json:"jurisdiction"`
}

func (h *Handler) handleReplacePolicy(w http.ResponseWriter, r *http.Request) {
	var req policyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "MALFORMED_BODY")
		return
	}

	p := policy.Policy{
		Version:            req.Version,
		ProOnly:            req.ProOnly,
		TravelRuleRequired: req.TravelRuleRequired,
		Jurisdiction:       make(map[domain.Operation]policy.JurisdictionPolicy, len(req.Jurisdiction)),
	}
	for opName, rule := range req.Jurisdiction {
		op, err := domain.ParseOperation(opName)
		if err != nil {
			badRequest(w, err.Error())
			return
		}
		countries := make(map[uint16]bool, len(rule.Countries))
		for _, c := range rule.Countries {
			countries[c] = true
		}
		p.Jurisdiction[op] = policy.JurisdictionPolicy{
			WhitelistMode: rule.WhitelistMode,
			Countries:     countries,
		}
	}

	if err := h.gate.ReplacePolicy(r.Context(), p); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]uint64{"version": p.Version})
}

type limitsRequest struct {
	FreshnessWindowsSeconds map[string]int64  `json:"freshness_windows_seconds"`
	ClassCeilingsBps        map[string]uint32 `json:"class_ceilings_bps"`
	IssuerCeilingBps        uint32            `json:"issuer_ceiling_bps"`
}

func (h *Handler) handleSetLimits(w http.ResponseWriter, r *http.Request) {
	var req limitsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "MALFORMED_BODY")
		return
	}

	limits := policy.Limits{
		FreshnessWindows: make(map[domain.Operation]time.Duration, len(req.FreshnessWindowsSeconds)),
		ClassCeilingsBps: req.ClassCeilingsBps,
		IssuerCeilingBps: req.IssuerCeilingBps,
	}
	for opName, secs := range req.FreshnessWindowsSeconds {
		op, err := domain.ParseOperation(opName)
		if err != nil {
			badRequest(w, err.Error())
			return
		}
		limits.FreshnessWindows[op] = time.Duration(secs) * time.Second
	}

	if err := h.gate.SetLimits(r.Context(), limits); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type signerRequest struct {
	Kind   string `json:"kind"`
	Signer string `json:"signer"`
}

var knownKinds = map[claims.Kind]bool{
	claims.KindAttestation: true,
	claims.KindNAVReport:   true,
	claims.KindReceipt:     true,
}

func (h *Handler) handleAuthorizeSigner(w http.ResponseWriter, r *http.Request) {
	h.handleSignerChange(w, r, true)
}

func (h *Handler) handleRevokeSigner(w http.ResponseWriter, r *http.Request) {
	h.handleSignerChange(w, r, false)
}

// handleSignerChange mutates the per-kind signer allowlist. The verifier has
// no role awareness of its own, so the ADMIN check and the audit write live
// here at the governance surface.
func (h *Handler) handleSignerChange(w http.ResponseWriter, r *http.Request, authorize bool) {
	if err := h.roles.Require(rbac.RoleAdmin, requestcontext.Principal(r.Context())); err != nil {
		writeError(w, err)
		return
	}

	var req signerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "MALFORMED_BODY")
		return
	}
	kind := claims.Kind(req.Kind)
	if !knownKinds[kind] {
		badRequest(w, "unknown claim kind")
		return
	}
	signer, err := parseAddress("signer", req.Signer)
	if err != nil {
		badRequest(w, err.Error())
		return
	}

	action := audit.EventSignerAuthorized
	if authorize {
		h.verifier.AuthorizeSigner(kind, signer)
	} else {
		h.verifier.RevokeSigner(kind, signer)
		action = audit.EventSignerRevoked
	}

	if err := h.auditor.Emit(r.Context(), audit.Event{
		Category: audit.CategorySecurity,
		Action:   action,
		Subject:  signer.Hex(),
		Detail:   string(kind),
	}); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type freezeSubjectRequest struct {
	Subject string `json:"subject"`
	Frozen  bool   `json:"frozen"`
}

func (h *Handler) handleFreezeSubject(w http.ResponseWriter, r *http.Request) {
	var req freezeSubjectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "MALFORMED_BODY")
		return
	}
	subject, err := parseAddress("subject", req.Subject)
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	if err := h.compliance.SetFrozen(r.Context(), subject, req.Frozen); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"frozen": req.Frozen})
}
