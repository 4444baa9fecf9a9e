package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// conditionalHTTPLogger only logs HTTP requests when HTTP logging is enabled
func (h *Handlers) conditionalHTTPLogger(next http.Handler) http.Handler {
	logger := middleware.Logger(next)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h.Log != nil && h.Log.IsHTTPLoggingEnabled() {
			logger.ServeHTTP(w, r)
		} else {
			next.ServeHTTP(w, r)
		}
	})
}

// Router returns a configured chi router with all routes
func (h *Handlers) Router() chi.Router {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(h.conditionalHTTPLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RedirectSlashes)
	r.Use(middleware.Timeout(60 * time.Second))

	// WebSocket for venue displays
	r.Get("/ws", h.Hub.ServeWs)

	// Health
	r.Get("/api/health", h.handleHealth)

	// Schedule queries (public, real-time displays)
	r.Get("/api/schedule/{planID}/now", h.handleScheduleNow)
	r.Get("/api/schedule/{planID}/next", h.handleScheduleNext)
	r.Get("/api/schedule/{planID}/qr", h.handleScheduleQR)

	// Plan generation
	r.Post("/api/plans/{eventID}/generate", h.handleGeneratePlan)
	r.Get("/api/plans/{eventID}/status", h.handlePlanStatus)

	// Extra blocks
	r.Post("/api/events/{eventID}/extra-blocks", h.handleCreateExtraBlock)
	r.Get("/api/events/{eventID}/extra-blocks", h.handleListExtraBlocks)
	r.Post("/api/events/{eventID}/extra-blocks/flush", h.handleFlushExtraBlocks)
	r.Put("/api/extra-blocks/{id}/active", h.handleToggleExtraBlock)

	return r
}
