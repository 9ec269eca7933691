// Package core provides the HTTP chassis for the weather proxy. It builds a
// chi router, enforces cross-cutting concerns (panic recovery, request IDs,
// logging, CORS, metrics, rate limiting, compression) and hands requests to
// the domain handlers registered by the entry point.
package core

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"weatherproxy/internal/config"
)

// MetricsCollector defines the interface for recording API telemetry.
// Implementations record request latency and count metrics to CloudWatch
// or equivalent backends.
type MetricsCollector interface {
	// RecordRequest records API request metrics including latency and count.
	// Uses metric constants MetricAPILatency and MetricAPIRequestCount
	// from the types package.
	RecordRequest(method, endpoint, status string, duration time.Duration)
}

// RouteRegistrar mounts a group of domain routes on r.
type RouteRegistrar func(r chi.Router)

// Server encapsulates all dependencies of the HTTP API, allowing for easy
// injection during testing and distinct configuration per environment.
type Server struct {
	Config         *config.Config
	Logger         *slog.Logger
	Validator      *Validator
	Metrics        MetricsCollector
	RateLimitStore RateLimitStore
	HealthChecks   []HealthCheck

	// RouteRegistrars are mounted at the root and again under /api.
	RouteRegistrars []RouteRegistrar

	// Internal router
	router *chi.Mux
}

// NewServer initializes dependencies and prepares the server for route
// mounting. It performs a "fail-fast" check on critical configuration.
//
// The caller is responsible for calling MountRoutes after populating the
// optional fields.
func NewServer(cfg *config.Config, logger *slog.Logger) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config must not be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger must not be nil")
	}

	s := &Server{
		Config:    cfg,
		Logger:    logger,
		Validator: NewValidator(logger),
		router:    chi.NewRouter(),
	}

	if rps := cfg.Security.ClientRateLimitRPS; rps > 0 {
		s.RateLimitStore = NewIPRateLimiter(rps, cfg.Security.ClientRateLimitBurst)
	}

	return s, nil
}

// Handler returns the http.Handler interface for the router.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Router returns the underlying chi.Mux for route registration.
// This is used internally by route-mounting methods and tests.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Shutdown releases server-owned resources. The HTTP listener itself is
// drained by the caller.
func (s *Server) Shutdown(_ context.Context) error {
	s.Logger.Info("server shutdown initiated")

	if limiter, ok := s.RateLimitStore.(*IPRateLimiter); ok {
		s.Logger.Info("rate limiter state at shutdown", "tracked_clients", limiter.Len())
	}

	s.Logger.Info("server shutdown complete")
	return nil
}
