package server

import (
	"github.com/go-chi/chi/v5"

	"github.com/chainlink-analytics/shelfgap/internal/server/handlers"
)

func (s *Server) registerRoutes(r chi.Router) {
	h := handlers.New(s.deps)

	r.Route("/api", func(r chi.Router) {
		// Health
		r.Get("/health", h.Health)

		r.Route("/tenants/{tenantID}", func(r chi.Router) {
			// Publishing
			r.Post("/publish", h.Publish)
			r.Get("/runs", h.ListRuns)

			// Streaks
			r.Get("/streaks", h.Streaks)

			// Exports
			r.Post("/exports/{week}", h.Export)
		})
	})
}
