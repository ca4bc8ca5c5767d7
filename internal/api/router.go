package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(middleware.RequestSize(maxRequestBodySize))

	// Plugin and property inspector socket
	r.Get(s.wsCfg.Path, s.handlePluginSocket)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/metrics", s.handleMetrics)
		r.Get("/actions", s.handleListActions)

		r.Route("/devices", func(r chi.Router) {
			r.Get("/", s.handleListDevices)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/profile", s.handleGetSelectedProfile)
				r.Put("/profile", s.handleSwitchProfile)
				r.Get("/profiles", s.handleListProfiles)
				r.Post("/profiles/rename", s.handleRenameProfile)
				// Profile ids may contain '/', so they take the rest of the path.
				r.Get("/profiles/*", s.handleGetProfile)
				r.Delete("/profiles/*", s.handleDeleteProfile)
			})
		})

		r.Route("/instances", func(r chi.Router) {
			r.Post("/", s.handleCreateInstance)
			r.Post("/move", s.handleMoveInstance)
			r.Get("/{context}", s.handleGetInstance)
			r.Delete("/{context}", s.handleDeleteInstance)
		})

		r.Get("/audit", s.handleListAuditLogs)

		r.Get("/ws", s.handleUISocket)
	})

	return r
}

// handleHealth returns the server health status.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": s.version,
	})
}

// handleListActions returns the action catalog grouped by category.
func (s *Server) handleListActions(w http.ResponseWriter, _ *http.Request) {
	categories := s.catalog.Categories()
	writeJSON(w, http.StatusOK, map[string]any{
		"categories": categories,
		"count":      len(categories),
	})
}
