// Package api exposes the HTTP interface for the analysis service.
package api

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sort"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/designscore/designscore/internal/analysis"
	"github.com/designscore/designscore/internal/config"
	"github.com/designscore/designscore/internal/metrics"
	"github.com/designscore/designscore/internal/orchestrator"
	"github.com/designscore/designscore/internal/prompt"
)

// requestTimeout bounds one analysis request end to end. Vision models can
// be slow, so this is generous.
const requestTimeout = 5 * time.Minute

// HealthCheck probes one downstream dependency. A nil check marks the
// dependency as not configured.
type HealthCheck func(ctx context.Context) error

// Server wires HTTP handlers to the analysis orchestrator.
type Server struct {
	router chi.Router
	orch   *orchestrator.Orchestrator
	checks map[string]HealthCheck
	cfg    config.Config
	logger *zap.Logger
}

// NewServer constructs a Server with middleware and routes.
func NewServer(orch *orchestrator.Orchestrator, checks map[string]HealthCheck, cfg config.Config, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		orch:   orch,
		checks: checks,
		cfg:    cfg,
		logger: logger.Named("api"),
	}

	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoverMiddleware)
	r.Use(metrics.Middleware)
	r.Use(timeoutMiddleware(requestTimeout))

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Get("/health", s.health)
	r.Handle("/metrics", metrics.Handler())

	r.Route("/v1", func(r chi.Router) {
		if cfg.Auth.Enabled {
			r.Use(apiKeyMiddleware(cfg.Auth.APIKey))
		}
		r.Post("/analyses", s.submitAnalysis)
		r.Post("/screenshots", s.captureScreenshots)
	})

	s.router = r
	return s
}

// Handler returns the Router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

type analyzeRequest struct {
	URL             string `json:"url"`
	IncludeMobile   bool   `json:"include_mobile"`
	AutoLogToSheets bool   `json:"auto_log_to_sheets"`
	AnalysisType    string `json:"analysis_type"`
}

type screenshotRequest struct {
	URL      string `json:"url"`
	Viewport string `json:"viewport"`
	Upload   bool   `json:"upload"`
}

type failureResponse struct {
	Status string `json:"status"`
	Error  string `json:"error"`
	Stage  string `json:"stage"`
}

func (s *Server) submitAnalysis(w http.ResponseWriter, r *http.Request) {
	var req analyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.URL == "" {
		writeError(w, http.StatusBadRequest, "url is required")
		return
	}

	result, err := s.orch.Analyze(r.Context(), req.URL, orchestrator.Options{
		IncludeMobile:   req.IncludeMobile,
		LogToSheets:     req.AutoLogToSheets,
		AnalysisType:    prompt.AnalysisType(req.AnalysisType),
		UploadArtifacts: true,
	})
	if err != nil {
		s.writeAnalysisFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) captureScreenshots(w http.ResponseWriter, r *http.Request) {
	var req screenshotRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.URL == "" {
		writeError(w, http.StatusBadRequest, "url is required")
		return
	}

	viewports, err := viewportsFor(req.Viewport)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	shots, err := s.orch.CaptureOnly(r.Context(), req.URL, viewports, req.Upload)
	if err != nil {
		s.writeAnalysisFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"screenshots": shots})
}

func viewportsFor(name string) ([]analysis.Viewport, error) {
	switch name {
	case "", "desktop":
		return []analysis.Viewport{analysis.ViewportDesktop}, nil
	case "mobile":
		return []analysis.Viewport{analysis.ViewportMobile}, nil
	case "all":
		return []analysis.Viewport{analysis.ViewportDesktop, analysis.ViewportMobile}, nil
	default:
		return nil, fmt.Errorf("unknown viewport %q", name)
	}
}

// writeAnalysisFailure maps pipeline errors to HTTP responses. Input errors
// surface their reason; everything else gets the generic public message so
// internal failure detail stays in the logs.
func (s *Server) writeAnalysisFailure(w http.ResponseWriter, err error) {
	stage := analysis.StageOf(err)
	if analysis.IsInputError(err) {
		var se *analysis.StageError
		msg := "invalid request"
		if errors.As(err, &se) && se.Reason != "" {
			msg = se.Reason
		}
		writeJSON(w, http.StatusBadRequest, failureResponse{
			Status: string(analysis.StatusFailed),
			Error:  msg,
			Stage:  string(stage),
		})
		return
	}
	writeJSON(w, http.StatusBadGateway, failureResponse{
		Status: string(analysis.StatusFailed),
		Error:  analysis.PublicFailureMessage,
		Stage:  string(stage),
	})
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, r *http.Request) {
	// Readiness hinges on the vision model only; the other sinks degrade
	// gracefully.
	check, ok := s.checks["vision"]
	if ok && check != nil {
		if err := check(r.Context()); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not ready"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

type dependencyHealth struct {
	Name   string `json:"name"`
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	names := make([]string, 0, len(s.checks))
	for name := range s.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	// Overall state: degraded when the vision model is down (analyses
	// cannot complete), partial when only an optional sink is unhealthy.
	overall := "healthy"
	deps := make([]dependencyHealth, 0, len(names))
	for _, name := range names {
		check := s.checks[name]
		if check == nil {
			deps = append(deps, dependencyHealth{Name: name, Status: "not_configured"})
			continue
		}
		if err := check(ctx); err != nil {
			deps = append(deps, dependencyHealth{Name: name, Status: "unhealthy", Error: err.Error()})
			if name == "vision" {
				overall = "degraded"
			} else if overall == "healthy" {
				overall = "partial"
			}
			continue
		}
		deps = append(deps, dependencyHealth{Name: name, Status: "healthy"})
	}

	status := http.StatusOK
	if overall == "degraded" {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, map[string]any{
		"status":       overall,
		"dependencies": deps,
	})
}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := uuid.NewString()
		ctx := context.WithValue(r.Context(), requestIDKey{}, reqID)
		w.Header().Set("X-Request-ID", reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(ww, r)
		s.logger.Info("request completed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.status),
			zap.Int64("duration_ms", time.Since(start).Milliseconds()),
		)
	})
}

func (s *Server) recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.logger.Error("panic recovered", zap.Any("error", rec))
				writeError(w, http.StatusInternalServerError, "internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func timeoutMiddleware(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.TimeoutHandler(next, d, "request timed out")
	}
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	if err != nil {
		return n, fmt.Errorf("write response: %w", err)
	}
	return n, nil
}

func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (rw *responseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if h, ok := rw.ResponseWriter.(http.Hijacker); ok {
		conn, buf, err := h.Hijack()
		if err != nil {
			return nil, nil, fmt.Errorf("hijack connection: %w", err)
		}
		return conn, buf, nil
	}
	return nil, nil, errors.New("hijacker not supported")
}

type requestIDKey struct{}

func apiKeyMiddleware(expected string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get("X-API-Key")
			if key == "" {
				key = r.URL.Query().Get("api_key")
			}
			if key != expected {
				writeError(w, http.StatusForbidden, "unauthorized")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		zap.L().Error("write JSON failed", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
