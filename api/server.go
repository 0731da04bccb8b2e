/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route
  definitions. This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for internal tooling

ROUTE GROUPS:
  /api/cases/*     Case computation
  /api/orders/*    Order lifecycle and history
  /api/policy      Active statutory parameters

SECURITY NOTE:
  No authentication middleware. The service is meant to sit behind the
  platform gateway, which terminates auth.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8080"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Route("/api", func(r chi.Router) {
		// Case computation
		r.Route("/cases", func(r chi.Router) {
			r.Post("/{id}/compute", h.Compute)
		})

		// Order lifecycle and history
		r.Route("/orders", func(r chi.Router) {
			r.Get("/{correlationId}", h.GetOrder)
			r.Get("/{correlationId}/revisions", h.GetRevisions)
			r.Post("/{correlationId}/approve", h.Approve)
			r.Post("/{correlationId}/reject", h.Reject)
			r.Post("/{correlationId}/simulate", h.Simulate)
			r.Post("/{correlationId}/transmit", h.Transmit)
			r.Post("/{correlationId}/confirmations", h.Confirm)
			r.Post("/{correlationId}/reminders", h.Remind)
			r.Post("/{correlationId}/annul", h.Annul)
			r.Post("/{correlationId}/discard", h.Discard)
		})

		// Statutory parameters
		r.Get("/policy", h.GetPolicy)
	})

	return r
}
