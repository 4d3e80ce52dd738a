package server

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/parcelworks/siteatlas/internal/analysis"
	"github.com/parcelworks/siteatlas/internal/identifier"
	"github.com/parcelworks/siteatlas/internal/refdata"
)

// analysisRequest is the shared body of every analysis endpoint.
type analysisRequest struct {
	DataType string `json:"data_type"`
	Value    string `json:"value"`
}

// runner executes one analysis and returns its JSON-serializable artifact.
type runner func(ctx context.Context, dataType, value string) (any, error)

func walkingRunner(svc *analysis.Service) runner {
	return func(ctx context.Context, dt, v string) (any, error) { return svc.Walking(ctx, dt, v) }
}

func drivingRunner(svc *analysis.Service) runner {
	return func(ctx context.Context, dt, v string) (any, error) { return svc.Driving(ctx, dt, v) }
}

func transportRunner(svc *analysis.Service) runner {
	return func(ctx context.Context, dt, v string) (any, error) { return svc.Transport(ctx, dt, v) }
}

func contextRunner(svc *analysis.Service) runner {
	return func(ctx context.Context, dt, v string) (any, error) { return svc.Context(ctx, dt, v) }
}

func viewRunner(svc *analysis.Service) runner {
	return func(ctx context.Context, dt, v string) (any, error) { return svc.View(ctx, dt, v) }
}

func noiseRunner(svc *analysis.Service) runner {
	return func(ctx context.Context, dt, v string) (any, error) { return svc.Noise(ctx, dt, v) }
}

func reportRunner(svc *analysis.Service) runner {
	return func(ctx context.Context, dt, v string) (any, error) { return svc.Report(ctx, dt, v) }
}

// handleAnalysis decodes the shared request body, runs the analysis, and
// renders the artifact or the mapped error.
func (s *Server) handleAnalysis(run runner) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req analysisRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if req.Value == "" {
			writeError(w, http.StatusBadRequest, "value is required")
			return
		}

		result, err := run(r.Context(), req.DataType, req.Value)
		if err != nil {
			s.log.Warn("analysis failed",
				zap.String("data_type", req.DataType),
				zap.String("value", req.Value),
				zap.Error(err),
			)
			writeError(w, statusFor(err), err.Error())
			return
		}
		writeJSON(w, http.StatusOK, result)
	}
}

// handleHealth reports liveness plus cache counters.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	body := map[string]any{
		"status":         "ok",
		"boundary_cache": s.svc.BoundaryCacheStats(),
	}
	if s.tiles != nil {
		body["tile_cache"] = s.tiles.CacheStats()
	}
	writeJSON(w, http.StatusOK, body)
}

// statusFor maps the analysis error taxonomy onto HTTP status codes.
// Client-input errors are 4xx, missing-context errors 422, upstream faults
// 502; everything else is a plain 500.
func statusFor(err error) int {
	switch {
	case eris.Is(err, identifier.ErrInvalidIdentifierType):
		return http.StatusBadRequest
	case eris.Is(err, identifier.ErrNoMatchFound):
		return http.StatusNotFound
	case eris.Is(err, refdata.ErrZoningNotFound),
		eris.Is(err, analysis.ErrInsufficientData):
		return http.StatusUnprocessableEntity
	case eris.Is(err, identifier.ErrUpstreamUnavailable):
		return http.StatusBadGateway
	case eris.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
