/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:  Unique ID per request for tracing
  2. Logger:     Request logging
  3. Recoverer:  Panic recovery (500 instead of crash)
  4. CORS:       Cross-origin requests for the dashboard

ROUTE GROUPS:
  /healthz               Liveness
  /metrics               Prometheus metrics (optional)
  /api/access/*          Entitlement matrix and checks
  /api/holidays          Holiday catalog
  /api/leave/*           Leave quotes, requests and reviews
  /api/employees/*       Balances, days off, adjustments
  /api/timesheets/*      Timesheet entries
  /api/audit             Audit trail
  /api/scenarios/*       Demo scenarios

SECURITY NOTE:
  No authentication middleware. The caller's role header is trusted; put
  the service behind an identity-aware proxy.

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
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RouterOptions carries the deployment knobs of the router.
type RouterOptions struct {
	CORSOrigins []string
	Metrics     bool
}

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, opts RouterOptions) *chi.Mux {
	r := chi.NewRouter()

	origins := opts.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"http://localhost:5173", "http://localhost:8080"}
	}

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", RoleHeader, ActorHeader},
		AllowCredentials: true,
	}))

	r.Get("/healthz", h.Healthz)
	if opts.Metrics {
		r.Method(http.MethodGet, "/metrics", promhttp.Handler())
	}

	// API routes
	r.Route("/api", func(r chi.Router) {
		// Entitlement routes
		r.Route("/access", func(r chi.Router) {
			r.Get("/matrix", h.AccessMatrix)
			r.Get("/me", h.AccessMe)
			r.Get("/check", h.AccessCheck)
			r.Put("/policy", h.ReplacePolicy)
		})

		r.Get("/holidays", h.ListHolidays)

		// Leave routes
		r.Route("/leave", func(r chi.Router) {
			r.Post("/quote", h.QuoteLeave)
			r.Get("/requests", h.ListLeave)
			r.Post("/requests", h.SubmitLeave)
			r.Get("/requests/{id}", h.GetLeave)
			r.Post("/requests/{id}/review", h.ReviewLeave)
		})

		// Employee routes
		r.Route("/employees/{id}", func(r chi.Router) {
			r.Get("/balances", h.GetBalances)
			r.Get("/days-off", h.GetDaysOff)
			r.Post("/adjustments", h.CreateAdjustment)
		})

		// Timesheet routes
		r.Route("/timesheets", func(r chi.Router) {
			r.Get("/", h.ListTimesheets)
			r.Post("/", h.LogTimesheet)
			r.Post("/{id}/submit", h.SubmitTimesheet)
			r.Post("/{id}/review", h.ReviewTimesheet)
		})

		r.Get("/audit", h.ListAudit)

		// Scenario routes
		r.Route("/scenarios", func(r chi.Router) {
			r.Get("/", h.ListScenarios)
			r.Get("/current", h.GetCurrentScenario)
			r.Post("/load", h.LoadScenario)
		})
	})

	return r
}
