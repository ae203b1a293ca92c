package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// buildRouter assembles the chi router. Middleware order matters: the
// request ID must exist before logging, and recovery wraps everything
// that can panic.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(bodySizeLimitMiddleware)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/version", s.handleVersion)
		r.Post("/auth/login", s.handleLogin)

		// Browsers cannot set headers on a WebSocket dial, so /ws sits
		// outside the bearer group; the handler checks a ticket instead.
		wsPath := s.cfg.WebSocket.Path
		if wsPath == "" {
			wsPath = "/ws"
		}
		r.Get(wsPath, s.handleWebSocket)

		r.Group(func(r chi.Router) {
			r.Use(s.authMiddleware)

			r.Post("/auth/ws-ticket", s.handleWSTicket)

			r.Route("/profiles", func(r chi.Router) {
				r.Get("/", s.handleListProfiles)
				r.Route("/{name}", func(r chi.Router) {
					r.Get("/", s.handleGetProfile)
					r.Put("/", s.handleSaveProfile)
					r.Post("/apply", s.handleApplyProfile)
				})
			})

			r.Route("/ec", func(r chi.Router) {
				r.Get("/snapshot", s.handleSnapshot)
				r.Get("/realtime", s.handleRealtime)
				r.Get("/dump", s.handleDump)
				r.Post("/boost", s.handleBoost)
				r.Post("/backlight", s.handleBacklight)
				r.Post("/battery", s.handleBattery)
				r.Post("/register", s.handleRegisterWrite)
			})

			r.Get("/telemetry/history", s.handleTelemetryHistory)
			r.Get("/audit", s.handleListAudit)
		})
	})

	return r
}

// handleHealth reports liveness plus whether the EC interface is
// reachable, so a dashboard can tell "daemon down" from "module not
// loaded" with one call.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":       "ok",
		"version":      s.version,
		"ec_available": s.engine.Transport().Available(),
	})
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"service": "wyvernd",
		"version": s.version,
	})
}
