/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for the frontend

ROUTE GROUPS:
  /api/health                Liveness probe
  /api/users/{userID}/*      Pools and entries of one user

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

// NewRouter creates a new router with all routes configured. An empty
// allowedOrigins list keeps the local frontend defaults.
func NewRouter(h *Handler, allowedOrigins []string) *chi.Mux {
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"http://localhost:3000", "http://localhost:5173"}
	}

	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		})

		r.Route("/users/{userID}", func(r chi.Router) {
			// Pool routes
			r.Get("/summary", h.GetSummary)
			r.Get("/coverage", h.GetCoverage)
			r.Post("/envelopes", h.CreateEnvelope)
			r.Post("/accounts", h.CreateBankAccount)

			// Kind-specific create/update
			r.Post("/expenses", h.CreateExpense)
			r.Put("/expenses/{id}", h.UpdateExpense)
			r.Post("/incomes", h.CreateIncome)
			r.Put("/incomes/{id}", h.UpdateIncome)
			r.Post("/transfers", h.CreateTransfer)
			r.Put("/transfers/{id}", h.UpdateTransfer)

			// Any kind
			r.Route("/entries/{kind}", func(r chi.Router) {
				r.Get("/", h.ListEntries)
				r.Get("/{id}", h.GetEntry)
				r.Delete("/{id}", h.DeleteEntry)
				r.Post("/{id}/realize", h.RealizeEntry)
				r.Post("/{id}/unrealize", h.UnrealizeEntry)
			})
		})
	})

	return r
}
