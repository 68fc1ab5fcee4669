// Package httpapi exposes the kiosk and staff operations over HTTP.
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/thoknuts/nda-sm-platform/internal/core/ports"
	"github.com/thoknuts/nda-sm-platform/internal/core/services"
)

// maxBodyBytes bounds request bodies. Signature PNGs travel base64-encoded.
const maxBodyBytes = 4 << 20

// Services are the operations the API serves.
type Services struct {
	Sessions    *services.KioskSessionService
	Lookup      *services.LookupService
	Submission  *services.SubmissionService
	Attestation *services.AttestationService
	Admin       *services.SignatureAdminService
	Identity    ports.StaffIdentityProvider
	// Limiter throttles kiosk lookups per client address. Nil disables it.
	Limiter ports.RateLimiter
	// Health reports backend reachability for GET /health. Nil always passes.
	Health func(ctx context.Context) error
}

type handler struct {
	log         zerolog.Logger
	sessions    *services.KioskSessionService
	lookup      *services.LookupService
	submission  *services.SubmissionService
	attestation *services.AttestationService
	admin       *services.SignatureAdminService
	identity    ports.StaffIdentityProvider
	limiter     ports.RateLimiter
	health      func(ctx context.Context) error
}

// NewRouter builds the chi router for every route.
func NewRouter(svc Services, baseLogger *zerolog.Logger) http.Handler {
	h := &handler{
		log:         baseLogger.With().Str("component", "http_api").Logger(),
		sessions:    svc.Sessions,
		lookup:      svc.Lookup,
		submission:  svc.Submission,
		attestation: svc.Attestation,
		admin:       svc.Admin,
		identity:    svc.Identity,
		limiter:     svc.Limiter,
		health:      svc.Health,
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(h.requestContext)

	r.Get("/health", h.handleHealth)

	r.Route("/api/v1", func(api chi.Router) {
		api.Post("/kiosk/lookup", h.handleKioskLookup)
		api.Post("/kiosk/signatures", h.handleKioskSubmit)

		api.Group(func(staff chi.Router) {
			staff.Use(h.requireStaff)

			staff.Post("/kiosk/sessions", h.handleIssueSession)
			staff.Delete("/kiosk/sessions/{session_id}", h.handleRevokeSession)
			staff.Get("/events/{event_id}/kiosk/sessions", h.handleListSessions)

			staff.Get("/signatures/pending", h.handleListPending)
			staff.Post("/signatures/{signature_id}/verify", h.handleVerify)
			staff.Delete("/signatures/{signature_id}", h.handleDeleteSignature)
			staff.Get("/signatures/{signature_id}/pdf-source", h.handlePDFSource)
			staff.Put("/signatures/{signature_id}/pdf", h.handleRecordPDF)

			staff.Get("/events/{event_id}/signatures", h.handleListSignatures)
			staff.Get("/events/{event_id}/signatures.xlsx", h.handleExportSignatures)

			staff.Post("/storage/signed-url", h.handleSignedURL)
		})
	})

	return r
}

func (h *handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	if h.health != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.health(ctx); err != nil {
			zerolog.Ctx(r.Context()).Warn().Err(err).Msg("Health check failed")
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
