// Package server exposes the Quarry REST API: tree inspection and
// mutation, live stats, and health.
package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/me/quarry/internal/config"
	"github.com/me/quarry/internal/store"
	"github.com/me/quarry/internal/tree"
)

// Server is the Quarry REST API server.
type Server struct {
	router    chi.Router
	logger    *slog.Logger
	config    config.ServerConfig
	startTime time.Time
	tree      *tree.Manager
	store     store.Store
}

// New creates a new Server with all routes registered.
func New(cfg config.ServerConfig, tm *tree.Manager, st store.Store, logger *slog.Logger) *Server {
	s := &Server{
		router:    chi.NewRouter(),
		logger:    logger.With("component", "server"),
		config:    cfg,
		startTime: time.Now(),
		tree:      tm,
		store:     st,
	}
	s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Handler returns the http.Handler for this server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() {
	r := s.router

	// Global middleware
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(s.logger))

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		r.Get("/tree", s.handleGetTree)
		r.Get("/stats", s.handleGetStats)

		r.Route("/nodes", func(r chi.Router) {
			r.Post("/", s.handleCreateNode)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleGetNode)
				r.Patch("/", s.handleUpdateNode)
				r.Delete("/", s.handleDeleteNode)
				r.Put("/parent", s.handleMoveNode)
			})
		})
	})
}

// persistTree saves the current tree shape after a structural change.
// A persistence failure is logged but does not fail the API call; the
// live tree is already updated.
func (s *Server) persistTree(r *http.Request) {
	if err := s.store.SaveTree(r.Context(), s.tree.Deflate()); err != nil {
		s.logger.Error("persist tree", "error", err)
	}
}
