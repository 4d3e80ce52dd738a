// Package server exposes the analysis service over HTTP: one JSON endpoint
// per analysis, a composite report endpoint, a basemap tile proxy for map
// rendering clients, and a health probe.
package server

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/parcelworks/siteatlas/internal/analysis"
	"github.com/parcelworks/siteatlas/internal/config"
)

// Server holds the HTTP surface's collaborators.
type Server struct {
	svc   *analysis.Service
	tiles *TileProxy
	log   *zap.Logger
}

// New wires a Server around an analysis service. The basemap proxy is only
// mounted when an upstream tile URL is configured.
func New(cfg *config.Config, svc *analysis.Service) *Server {
	var tiles *TileProxy
	if cfg.Upstream.BasemapURL != "" {
		tiles = NewTileProxy(
			cfg.Upstream.BasemapURL,
			cfg.Upstream.BasemapFormat,
			cfg.Upstream.UserAgent,
			newTileCache(512, time.Hour),
		)
	}
	return &Server{
		svc:   svc,
		tiles: tiles,
		log:   zap.L().With(zap.String("component", "server")),
	}
}

// Handler builds the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("POST /v1/walking", s.handleAnalysis(walkingRunner(s.svc)))
	mux.HandleFunc("POST /v1/driving", s.handleAnalysis(drivingRunner(s.svc)))
	mux.HandleFunc("POST /v1/transport", s.handleAnalysis(transportRunner(s.svc)))
	mux.HandleFunc("POST /v1/context", s.handleAnalysis(contextRunner(s.svc)))
	mux.HandleFunc("POST /v1/view", s.handleAnalysis(viewRunner(s.svc)))
	mux.HandleFunc("POST /v1/noise", s.handleAnalysis(noiseRunner(s.svc)))
	mux.HandleFunc("POST /v1/report", s.handleAnalysis(reportRunner(s.svc)))

	if s.tiles != nil {
		mux.Handle("GET /basemap/", http.StripPrefix("/basemap", s.tiles))
	}

	return s.withRequestLog(mux)
}

// statusRecorder captures the response status for the request log.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// withRequestLog assigns each request an id, echoes it in the response, and
// logs method, path, status, and duration.
func (s *Server) withRequestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := uuid.NewString()
		w.Header().Set("X-Request-ID", requestID)

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(rec, r)

		s.log.Info("request",
			zap.String("request_id", requestID),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.Duration("duration", time.Since(start)),
		)
	})
}
