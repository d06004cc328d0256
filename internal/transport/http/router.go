// Package httptransport is the thin HTTP layer over the engine. Handlers
// decode, delegate to domain services, and encode; no business logic lives
// here, so the services stay independently testable.
package httptransport

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kevanbtc/cleargate/internal/audit"
	"github.com/kevanbtc/cleargate/internal/claims"
	"github.com/kevanbtc/cleargate/internal/compliance"
	"github.com/kevanbtc/cleargate/internal/courtorder"
	"github.com/kevanbtc/cleargate/internal/custody"
	"github.com/kevanbtc/cleargate/internal/policy"
	"github.com/kevanbtc/cleargate/internal/rbac"
	"github.com/kevanbtc/cleargate/internal/settlement"
)

// Handler bundles the domain services the transport delegates to.
type Handler struct {
	compliance *compliance.Service
	custody    *custody.Service
	gate       *policy.Gate
	orders     *courtorder.Registry
	controller *courtorder.Controller
	rails      *settlement.Registry
	verifier   *claims.Verifier
	roles      *rbac.Authorizer
	auditor    *audit.Publisher
	logger     *slog.Logger
}

// NewHandler wires the transport layer.
func NewHandler(
	complianceSvc *compliance.Service,
	custodySvc *custody.Service,
	gate *policy.Gate,
	orders *courtorder.Registry,
	controller *courtorder.Controller,
	rails *settlement.Registry,
	verifier *claims.Verifier,
	roles *rbac.Authorizer,
	auditor *audit.Publisher,
	logger *slog.Logger,
) *Handler {
	return &Handler{
		compliance: complianceSvc,
		custody:    custodySvc,
		gate:       gate,
		orders:     orders,
		controller: controller,
		rails:      rails,
		verifier:   verifier,
		roles:      roles,
		auditor:    auditor,
		logger:     logger,
	}
}

// NewRouter mounts all endpoints. Every request carries a request id; bearer
// tokens establish the principal and the services enforce roles themselves.
func NewRouter(h *Handler, jwtSigningKey string) http.Handler {
	r := chi.NewRouter()
	r.Use(RequestID)
	r.Use(Authenticate(jwtSigningKey))

	r.Get("/healthz", handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Route("/claims", func(r chi.Router) {
			r.Post("/attestation", h.handleSubmitAttestation)
			r.Post("/nav", h.handleSubmitNAV)
		})

		r.Post("/policy/check", h.handleCheck)
		r.Get("/compliance/{subject}", h.handleComplianceView)
		r.Get("/audit/{subject}", h.handleAuditTrail)

		r.Route("/transfers", func(r chi.Router) {
			r.Post("/prepare", h.handlePrepare)
			r.Post("/release", h.handleRelease)
			r.Post("/revert", h.handleRevert)
			r.Post("/receipt", h.handleReceipt)
			r.Get("/{rail}/{id}", h.handleTransferStatus)
		})
		r.Get("/rails", h.handleListRails)

		r.Route("/orders", func(r chi.Router) {
			r.Post("/", h.handleFileOrder)
			r.Get("/{id}", h.handleGetOrder)
			r.Post("/{id}/execute", h.handleExecuteOrder)
			r.Post("/global-freeze", h.handleGlobalFreeze)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Post("/pause", h.handlePause)
			r.Put("/policy", h.handleReplacePolicy)
			r.Put("/limits", h.handleSetLimits)
			r.Post("/signers", h.handleAuthorizeSigner)
			r.Delete("/signers", h.handleRevokeSigner)
			r.Post("/freeze", h.handleFreezeSubject)
		})
	})

	return r
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
