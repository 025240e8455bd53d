/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

ROUTER: chi
  Chi was chosen for:
  - Lightweight and fast
  - Context-based
  - Middleware support
  - RESTful route patterns

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for the back-office frontend

ROUTE GROUPS:
  /api/purchase-orders/*        Purchase order CRUD + CSV validation
  /api/sales-reconciliations/*  Sales reconciliation CRUD + CSV validation
  /api/buyback-orders/*         Buyback order CRUD + CSV validation
  /api/books/*                  Catalog
  /api/vendors/*                Counterparties

SECURITY NOTE:
  No authentication middleware currently. The X-User header is trusted;
  a gateway in front of this service is expected to set it.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/quarto/inventory-engine/inventory"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, allowedOrigins []string) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-User"},
		AllowCredentials: true,
	}))

	// API routes
	r.Route("/api", func(r chi.Router) {
		// One identical route group per transaction kind
		r.Route("/purchase-orders", groupRoutes(h, inventory.KindPurchase))
		r.Route("/sales-reconciliations", groupRoutes(h, inventory.KindSale))
		r.Route("/buyback-orders", groupRoutes(h, inventory.KindBuyback))

		// Catalog routes
		r.Route("/books", func(r chi.Router) {
			r.Get("/", h.ListBooks)
			r.Post("/", h.CreateBook)
			r.Get("/{id}", h.GetBook)
			r.Delete("/{id}", h.RetireBook)
		})

		// Vendor routes
		r.Route("/vendors", func(r chi.Router) {
			r.Get("/", h.ListVendors)
			r.Post("/", h.CreateVendor)
			r.Get("/{id}", h.GetVendor)
		})
	})

	return r
}

func groupRoutes(h *Handler, kind inventory.GroupKind) func(chi.Router) {
	return func(r chi.Router) {
		r.Get("/", h.ListGroups(kind))
		r.Post("/", h.CreateGroup(kind))
		r.Get("/{id}", h.GetGroup(kind))
		r.Put("/{id}", h.UpdateGroup(kind))
		r.Delete("/{id}", h.DeleteGroup(kind))
		r.Post("/csv/validate", h.ValidateCSV(kind))
	}
}
