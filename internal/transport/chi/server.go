// Package chi serves the operational HTTP endpoints of a long-running
// flowdex command: health probes under /healthz and Prometheus metrics
// under /metrics.
package chi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/flowdex/internal/logger"
	"github.com/kailas-cloud/flowdex/internal/metrics"
)

const (
	checkTimeout    = 2 * time.Second
	shutdownTimeout = 5 * time.Second
)

// HealthCheck probes one dependency of the daemon.
type HealthCheck func(ctx context.Context) error

// Server exposes the operational endpoints on one listener. Build it
// with NewServer, register checks, then Start.
type Server struct {
	addr   string
	log    *zap.Logger
	keys   []string
	checks map[string]HealthCheck
	srv    *http.Server
}

// NewServer creates an operational endpoint server on addr.
func NewServer(addr string, log *zap.Logger) *Server {
	return &Server{addr: addr, log: log, checks: map[string]HealthCheck{}}
}

// WithCheck registers a named probe reported under /healthz.
func (s *Server) WithCheck(name string, check HealthCheck) *Server {
	s.checks[name] = check
	return s
}

// WithAuth protects /metrics with bearer tokens. Empty keys leave the
// endpoint open.
func (s *Server) WithAuth(keys []string) *Server {
	s.keys = keys
	return s
}

// Router assembles the endpoint routes.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(chiMiddleware.RequestID)
	r.Use(s.requestLog)
	r.Use(metrics.Middleware())
	r.Use(BearerAuthMiddleware(s.keys))
	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())
	return r
}

// requestLog scopes the logger to the request and emits one debug line
// per call. Scrapes arrive every few seconds, so the line stays below
// info.
func (s *Server) requestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		reqLog := s.log.With(zap.String("request_id", chiMiddleware.GetReqID(r.Context())))
		ctx := logger.WithContext(r.Context(), reqLog)

		ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r.WithContext(ctx))

		reqLog.Debug("ops request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("latency", time.Since(start)))
	})
}

// Start serves in the background until Shutdown.
func (s *Server) Start() {
	s.srv = &http.Server{
		Addr:         s.addr,
		Handler:      s.Router(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	go func() {
		s.log.Info("observability listener started", zap.String("addr", s.addr))
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("observability listener failed", zap.Error(err))
		}
	}()
}

// Shutdown drains the listener.
func (s *Server) Shutdown() {
	if s.srv == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.srv.Shutdown(ctx); err != nil {
		s.log.Warn("observability listener shutdown", zap.Error(err))
	}
}

// handleHealth runs every registered probe and reports per-check status.
// Any failed probe degrades the response to 503.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), checkTimeout)
	defer cancel()
	log := logger.FromContext(ctx)

	status := "ok"
	checks := make(map[string]string, len(s.checks))
	for name, check := range s.checks {
		if err := check(ctx); err != nil {
			log.Warn("health check failed", zap.String("check", name), zap.Error(err))
			checks[name] = "down"
			status = "degraded"
			continue
		}
		checks[name] = "ok"
	}

	code := http.StatusOK
	if status != "ok" {
		code = http.StatusServiceUnavailable
	}
	resp := map[string]any{"status": status}
	if len(checks) > 0 {
		resp["checks"] = checks
	}
	writeJSON(w, code, resp)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
