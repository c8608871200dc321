// Package httpapi exposes the aggregated survey data and the operational
// endpoints over HTTP.
package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tlaxclima/acciones-service/internal/dataset"
)

// SnapshotProvider is implemented by the dataset manager.
type SnapshotProvider interface {
	Snapshot(ctx context.Context) (dataset.Result, error)
	Refresh(ctx context.Context) (dataset.Result, error)
	CheckReadiness(ctx context.Context) error
}

// Server exposes the data API, the GeoServer proxy, and the
// health/readiness/metrics endpoints.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer builds the chi router. geoProxy may be nil when no GeoServer
// is configured; the route is simply not mounted.
func NewServer(addr string, provider SnapshotProvider, geoProxy http.Handler, allowedOrigins []string, logger *slog.Logger) *Server {
	s := &Server{logger: logger}

	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(requestLogger(logger))
	r.Use(corsMiddleware(allowedOrigins))

	h := &handlers{provider: provider, logger: logger}
	r.Route("/api", func(r chi.Router) {
		r.Get("/markers", h.handleMarkers)
		r.Get("/proyectos", h.handleProjects)
		r.Get("/metadata", h.handleMetadata)
		r.Post("/refresh", h.handleRefresh)
	})

	if geoProxy != nil {
		r.Handle("/geoserver", geoProxy)
	}

	r.Get("/healthz", handleHealth)
	r.Get("/readyz", handleReady(provider))
	r.Handle("/metrics", promhttp.Handler())

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 45 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func handleReady(provider SnapshotProvider) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := provider.CheckReadiness(ctx); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "not ready",
				"error":  err.Error(),
			})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}
