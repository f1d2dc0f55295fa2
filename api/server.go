/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the chi router, middleware stack, and route definitions. This is
  the wiring layer connecting URLs to handlers; everything interesting lives
  behind the ledger service.

MIDDLEWARE STACK:
  1. RequestID:  Unique ID per request for tracing
  2. Logger:     Request logging
  3. Recoverer:  Panic recovery (500 instead of crash)
  4. Timeout:    Per-request deadline
  5. CORS:       Cross-origin requests for frontends

ROUTE GROUPS:
  /api/health           Liveness
  /api/accounts/*       Accounts, balances, account histories
  /api/categories/*     Categories
  /api/transactions/*   Transactions and reversals
  /api/transfers        Transfer pairs
  /api/identities/*     Third-party identity links

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter creates a router with all routes configured.
func NewRouter(h *Handler, requestTimeout time.Duration) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	if requestTimeout > 0 {
		r.Use(middleware.Timeout(requestTimeout))
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
	}))

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", h.Health)

		r.Route("/accounts", func(r chi.Router) {
			r.Get("/", h.ListAccounts)
			r.Post("/", h.CreateAccount)
			r.Get("/{id}", h.GetAccount)
			r.Delete("/{id}", h.DeleteAccount)
			r.Get("/{id}/balance", h.GetBalance)
			r.Get("/{id}/summary", h.GetBalanceSummary)
			r.Get("/{id}/transactions", h.ListTransactions)
		})

		r.Route("/categories", func(r chi.Router) {
			r.Get("/", h.ListCategories)
			r.Post("/", h.CreateCategory)
			r.Delete("/{id}", h.DeleteCategory)
		})

		r.Route("/transactions", func(r chi.Router) {
			r.Post("/", h.CreateTransaction)
			r.Get("/{id}", h.GetTransaction)
			r.Delete("/{id}", h.DeleteTransaction)
			r.Post("/{id}/reverse", h.ReverseTransaction)
		})

		r.Post("/transfers", h.CreateTransfer)

		r.Route("/identities", func(r chi.Router) {
			r.Put("/", h.SaveIdentity)
			r.Get("/{provider}/{providerUserID}", h.GetIdentity)
		})
	})

	return r
}
