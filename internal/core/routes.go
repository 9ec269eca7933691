package core

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/klauspost/compress/gzhttp"

	"weatherproxy/internal/types"
)

// defaultRequestTimeout is the soft timeout applied to request contexts when
// no explicit RequestTimeout is configured.
const defaultRequestTimeout = 15 * time.Second

// apiPrefix is the legacy mount point kept for existing clients.
const apiPrefix = "/api"

// defaultRedactedHeaders lists header names whose values are masked in request
// logs to prevent accidental leakage of credentials or session tokens.
var defaultRedactedHeaders = []string{
	"Authorization",
	"Cookie",
	"X-Api-Key",
}

// MountRoutes defines the top-level routing hierarchy.
// It registers the global middleware chain, the health check and the domain
// routes (at the root and under /api).
func (s *Server) MountRoutes() {
	// Global Middleware Registration (strict order matters).
	s.registerGlobalMiddleware()

	s.router.NotFound(s.handleNotFound)
	s.router.MethodNotAllowed(s.handleMethodNotAllowed)

	s.router.Get("/health", s.HandleHealth)

	s.mountDomainRoutes(s.router)
	s.router.Route(apiPrefix, s.mountDomainRoutes)
}

// registerGlobalMiddleware applies middleware in strict order.
//
// Ordering Rationale:
//  1. Recoverer          - Catches panics; outermost to catch all failures.
//  2. ContextTimeout     - Bounds the whole request, upstream calls included.
//  3. RequestID          - Generates/propagates correlation ID for tracing.
//  4. SecurityHeaders    - Ensures all responses include security headers.
//  5. RequestLogger      - Structured logging (redacted headers).
//  6. CORS               - Browser security headers.
//  7. Metrics            - Request latency and count recording.
//  8. RateLimit          - Per-client token buckets.
//  9. Compress           - gzip for clients that accept it.
func (s *Server) registerGlobalMiddleware() {
	s.router.Use(s.Recoverer)
	s.router.Use(ContextTimeoutMiddleware(s.requestTimeout()))
	s.router.Use(RequestIDMiddleware)
	s.router.Use(s.SecurityHeadersMiddleware)
	s.router.Use(RequestLogger(s.Logger, defaultRedactedHeaders))
	s.router.Use(NewCORSMiddleware(s.corsAllowedOrigins()))
	s.router.Use(s.MetricsMiddleware)
	s.router.Use(s.RateLimit)
	s.router.Use(CompressMiddleware)
}

// mountDomainRoutes registers the domain handler routes. Registrars are
// populated by the application entry point (main.go); this indirection avoids
// import cycles between core and handler packages.
func (s *Server) mountDomainRoutes(r chi.Router) {
	for _, registrar := range s.RouteRegistrars {
		registrar(r)
	}
}

// requestTimeout returns the configured request timeout, falling back to the
// default if the config does not specify one.
func (s *Server) requestTimeout() time.Duration {
	if s.Config != nil && s.Config.Server.RequestTimeout > 0 {
		return s.Config.Server.RequestTimeout
	}
	return defaultRequestTimeout
}

// corsAllowedOrigins returns the CORS allowed origins from configuration.
func (s *Server) corsAllowedOrigins() []string {
	if s.Config != nil && len(s.Config.Security.CorsAllowedOrigins) > 0 {
		return s.Config.Security.CorsAllowedOrigins
	}
	return []string{"*"}
}

func (s *Server) handleNotFound(w http.ResponseWriter, r *http.Request) {
	Error(w, r, types.NewAppError(types.ErrCodeNotFoundRoute, "route not found", nil))
}

func (s *Server) handleMethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Allow", "GET, OPTIONS")
	JSON(w, r, http.StatusMethodNotAllowed, APIErrorResponse{
		Error: ErrorDetail{
			Code:      string(errCodeMethodNotAllowed),
			Message:   "method not allowed",
			RequestID: types.GetRequestID(r.Context()),
		},
	})
}

// errCodeMethodNotAllowed is local to the chassis; no handler returns it.
const errCodeMethodNotAllowed types.ErrorCode = "method_not_allowed"

// ContextTimeoutMiddleware sets a deadline on the request context.
// If the context deadline is exceeded, downstream handlers receive a
// cancelled context; the response is controlled by the handler's behavior
// on context cancellation.
func ContextTimeoutMiddleware(duration time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), duration)
			defer cancel()
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequestIDMiddleware generates or propagates a unique request ID for
// correlation across logs and upstream calls. If the incoming request contains
// an X-Request-Id header, that value is reused; otherwise a UUIDv4 is
// generated.
//
// The request ID is stored in the context via types.WithRequestID and set as
// the X-Request-Id response header for client correlation.
func RequestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-Id")
		if requestID == "" || len(requestID) > maxRequestIDLength {
			requestID = uuid.NewString()
		}

		ctx := types.WithRequestID(r.Context(), requestID)
		w.Header().Set("X-Request-Id", requestID)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// maxRequestIDLength caps client-supplied request IDs before they reach logs.
const maxRequestIDLength = 128

// CompressMiddleware gzips responses for clients that send
// Accept-Encoding: gzip. Small bodies are passed through uncompressed.
func CompressMiddleware(next http.Handler) http.Handler {
	return gzhttp.GzipHandler(next)
}
