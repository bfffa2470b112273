// Package server implements the Shelfgap HTTP API server.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/chainlink-analytics/shelfgap/internal/server/handlers"
	"github.com/chainlink-analytics/shelfgap/pkg/types"
)

const defaultMaxRequestBody = 1 << 20 // 1 MiB

// Server is the Shelfgap HTTP API server.
type Server struct {
	deps   handlers.Deps
	cfg    types.ServerConfig
	router chi.Router
	srv    *http.Server
}

// New creates a new HTTP server.
func New(cfg types.ServerConfig, deps handlers.Deps) *Server {
	s := &Server{
		deps: deps,
		cfg:  cfg,
	}

	maxBody := cfg.MaxRequestBody
	if maxBody <= 0 {
		maxBody = defaultMaxRequestBody
	}

	r := chi.NewRouter()
	r.Use(RequestIDMiddleware)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.SetHeader("Content-Type", "application/json"))
	r.Use(APIKeyMiddleware(cfg.APIKey))
	r.Use(MaxBodyMiddleware(maxBody))

	s.router = r
	s.registerRoutes(r)
	return s
}

// Handler exposes the router, primarily for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start begins serving HTTP requests.
func (s *Server) Start() error {
	s.srv = &http.Server{
		Addr:         s.cfg.Addr,
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
	fmt.Printf("Shelfgap server listening on %s\n", s.cfg.Addr)
	return s.srv.ListenAndServe()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.srv != nil {
		return s.srv.Shutdown(ctx)
	}
	return nil
}
