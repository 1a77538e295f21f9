// Package api exposes the queue over HTTP: submit, query, cancel, and a
// few operational endpoints. It is a thin JSON layer over engine.Engine;
// all semantics live below it.
package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/execq/execq/engine"
)

// API wires the HTTP handlers for the execq gateway.
type API struct {
	eng    *engine.Engine
	logger *slog.Logger
}

// Option configures the API.
type Option func(*API)

// WithLogger sets the API's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(a *API) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// New creates an API from an Engine.
func New(eng *engine.Engine, opts ...Option) *API {
	a := &API{eng: eng, logger: slog.Default()}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Handler returns the fully assembled http.Handler with all routes.
func (a *API) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)

	a.RegisterRoutes(r)
	return r
}

// RegisterRoutes registers all execq routes into the given chi router.
func (a *API) RegisterRoutes(r chi.Router) {
	r.Route("/v1", func(r chi.Router) {
		r.Post("/jobs", a.submitJob)
		r.Get("/jobs", a.listJobs)
		r.Get("/jobs/counts", a.jobCounts)
		r.Get("/jobs/{jobID}", a.getJob)
		r.Post("/jobs/{jobID}/cancel", a.cancelJob)
	})
	r.Get("/healthz", a.healthz)
}

// writeJSON serializes v with the given status. Encoding failures are
// logged; headers are already gone at that point.
func (a *API) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		a.logger.Error("encode response", slog.String("error", err.Error()))
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

func (a *API) writeError(w http.ResponseWriter, status int, msg string) {
	a.writeJSON(w, status, errorResponse{Error: msg})
}
