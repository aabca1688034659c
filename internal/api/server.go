// SPDX-License-Identifier: MIT

// Package api serves the transform, jobs and basis-management endpoints.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/photonlab/abel/internal/basis"
	"github.com/photonlab/abel/internal/config"
	"github.com/photonlab/abel/internal/health"
	"github.com/photonlab/abel/internal/jobs"
	"github.com/photonlab/abel/internal/transform"
)

// maxBodyBytes bounds transform payloads; a 2001x2001 float64 image in JSON
// stays well below this.
const maxBodyBytes = 256 << 20

// Server is the HTTP API of the abel daemon.
type Server struct {
	cfg     config.AppConfig
	reg     *transform.Registry
	store   basis.Store
	manager *jobs.Manager
	history jobs.History
	healthM *health.Manager
}

// New assembles the server. history may be nil when job persistence is
// disabled.
func New(cfg config.AppConfig, reg *transform.Registry, store basis.Store, manager *jobs.Manager, history jobs.History, healthM *health.Manager) *Server {
	return &Server{
		cfg:     cfg,
		reg:     reg,
		store:   store,
		manager: manager,
		history: history,
		healthM: healthM,
	}
}

// Handler builds the router with the canonical middleware stack.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(Recoverer)
	r.Use(RequestID)
	r.Use(Metrics)
	r.Use(RequestLogger)

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(BearerAuth(s.cfg.APIToken))
		r.Use(RateLimit(s.cfg.RateLimitRPM))

		r.Post("/transform", s.handleTransform)
		r.Post("/speeds", s.handleSpeeds)

		r.Post("/jobs", s.handleSubmitJob)
		r.Get("/jobs", s.handleListJobs)
		r.Get("/jobs/{id}", s.handleGetJob)
		r.Get("/history", s.handleHistory)

		r.Get("/basis", s.handleListBasis)
		r.Post("/basis", s.handleGenerateBasis)
		r.Delete("/basis/{key}", s.handleDeleteBasis)
	})

	return r
}
