package core

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"weatherproxy/internal/config"
)

type recordedRequest struct {
	method, endpoint, status string
}

// mockMetricsCollector records RecordRequest calls for verification.
type mockMetricsCollector struct {
	mu    sync.Mutex
	calls []recordedRequest
}

func (m *mockMetricsCollector) RecordRequest(method, endpoint, status string, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, recordedRequest{method, endpoint, status})
}

func (m *mockMetricsCollector) recorded() []recordedRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]recordedRequest(nil), m.calls...)
}

// mockRateLimitStore returns a fixed result and records keys.
type mockRateLimitStore struct {
	mu     sync.Mutex
	result RateLimitResult
	err    error
	keys   []string
}

func (m *mockRateLimitStore) IncrementAndCheck(_ context.Context, key string) (RateLimitResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.keys = append(m.keys, key)
	return m.result, m.err
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTestServer builds a Server with rate limiting disabled; callers adjust
// fields before MountRoutes.
func newTestServer(t *testing.T) *Server {
	t.Helper()
	cfg := &config.Config{
		Environment: "local",
		Server:      config.ServerConfig{RequestTimeout: time.Second},
		Security:    config.SecurityConfig{CorsAllowedOrigins: []string{"*"}},
		Build:       config.BuildInfo{Version: "test"},
	}
	srv, err := NewServer(cfg, discardLogger())
	if err != nil {
		t.Fatalf("NewServer failed: %v", err)
	}
	return srv
}

// pingRoutes registers a trivial domain route and one that panics.
func pingRoutes(r chi.Router) {
	r.Get("/ping/", func(w http.ResponseWriter, r *http.Request) {
		JSON(w, r, http.StatusOK, map[string]string{"pong": "ok"})
	})
	r.Get("/boom", func(w http.ResponseWriter, r *http.Request) {
		panic("kaboom")
	})
	r.Get("/fail", func(w http.ResponseWriter, r *http.Request) {
		Error(w, r, errors.New("secret internal detail"))
	})
}
