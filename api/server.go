/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:  Unique ID per request for tracing
  2. RealIP:     Client IP behind proxies
  3. Recoverer:  Panic recovery (500 instead of crash)
  4. CORS:       Cross-origin requests for frontend

ROUTE GROUPS:
  /api/cogs/*        COGS rules, coverage, resolution
  /api/packaging/*   Packaging tariffs and summaries
  /api/costs/*       Additional cost entries and summaries
  /api/scenarios/*   Demo scenarios (dev only)
  /healthz           Liveness probe

SECURITY NOTE:
  No authentication middleware currently. All endpoints are public.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8080"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	// API routes
	r.Route("/api", func(r chi.Router) {
		// COGS rule routes
		r.Route("/cogs", func(r chi.Router) {
			r.Route("/rules", func(r chi.Router) {
				r.Get("/", h.ListRules)
				r.Post("/", h.UpsertRule)
				r.Post("/bulk", h.BulkUpsertRules)
				r.Put("/{id}", h.UpdateRule)
				r.Delete("/{id}", h.DeleteRule)
			})
			r.Get("/coverage", h.GetCoverage)
			r.Get("/missing-skus", h.GetMissingSKUs)
			r.Get("/resolve", h.ResolveCost)
		})

		// Packaging tariff routes
		r.Route("/packaging", func(r chi.Router) {
			r.Route("/tariffs", func(r chi.Router) {
				r.Get("/", h.ListTariffs)
				r.Post("/", h.UpsertTariff)
				r.Post("/bulk", h.BulkAssignTariffs)
				r.Delete("/{id}", h.DeleteTariff)
			})
			r.Get("/summary", h.GetPackagingSummary)
		})

		// Cost entry routes
		r.Route("/costs", func(r chi.Router) {
			r.Get("/", h.ListCosts)
			r.Post("/", h.CreateCost)
			r.Get("/summary", h.GetCostSummary)
			r.Put("/{id}", h.UpdateCost)
			r.Delete("/{id}", h.DeleteCost)
		})

		// Scenario routes
		r.Route("/scenarios", func(r chi.Router) {
			r.Get("/", h.ListScenarios)
			r.Get("/current", h.GetCurrentScenario)
			r.Post("/load", h.LoadScenario)
			r.Post("/reset", h.ResetStore)
		})
	})

	return r
}
