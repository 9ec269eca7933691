// Package main is the entry point for the weather proxy API server.
//
// It loads the configuration, builds the upstream provider (or the canned
// stub in local/test mode), the weather service and the HTTP server with the
// core chassis (middleware, routing, health checks), and starts listening.
//
// Graceful shutdown is handled via OS signal interception (SIGINT, SIGTERM).
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"weatherproxy/internal/api/handlers"
	"weatherproxy/internal/config"
	"weatherproxy/internal/core"
	"weatherproxy/internal/external"
	"weatherproxy/internal/metrics"
	"weatherproxy/internal/weather"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

// run encapsulates the startup lifecycle so that main() can cleanly exit on error.
func run() error {
	// The SSM client is only built when a *_SSM_PARAM variable needs it.
	cfg, err := config.LoadConfig(config.NewSSMProvider(os.Getenv("AWS_REGION")))
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logger := newLogger(cfg.LogLevel)
	logger.Info("weatherproxy API starting",
		"environment", cfg.Environment,
		"version", cfg.Build.Version,
		"commit", cfg.Build.Commit,
		"port", cfg.Server.Port,
		"stub_provider", cfg.UseStubProvider(),
	)

	srv, err := buildServer(context.Background(), cfg, logger)
	if err != nil {
		return err
	}

	return runHTTPServer(srv, cfg, logger)
}

// buildServer wires the provider, the weather service and the handlers into
// a server with all routes mounted.
func buildServer(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*core.Server, error) {
	collector, err := metrics.New(ctx, cfg.Observability, logger)
	if err != nil {
		return nil, fmt.Errorf("creating metrics collector: %w", err)
	}

	registry, err := external.NewClientRegistry(cfg, logger, external.WithFailureRecorder(collector))
	if err != nil {
		return nil, fmt.Errorf("creating client registry: %w", err)
	}

	svc := weather.NewService(registry.Weather, weather.Options{
		ForecastTTL: cfg.Cache.ForecastTTL,
		CurrentTTL:  cfg.Cache.CurrentTTL,
		Metrics:     collector,
		Logger:      logger.With("component", "weather"),
	})

	srv, err := core.NewServer(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("creating server: %w", err)
	}
	srv.Metrics = collector
	srv.HealthChecks = append(srv.HealthChecks, core.CheckFunc{
		CheckName: external.ProviderAccuWeather,
		Fn:        registry.Weather.Healthy,
	})

	weatherHandler := handlers.NewWeatherHandler(svc, srv.Validator, logger)
	srv.RouteRegistrars = append(srv.RouteRegistrars, weatherHandler.RegisterRoutes)

	// Mount all routes (middleware chain + domain endpoints + health).
	srv.MountRoutes()
	return srv, nil
}

// runHTTPServer starts the HTTP server and blocks until a shutdown signal is
// received or the listener fails.
func runHTTPServer(srv *core.Server, cfg *config.Config, logger *slog.Logger) error {
	addr := ":" + cfg.Server.Port

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	// Channel to capture server errors from ListenAndServe.
	serverErr := make(chan error, 1)

	go func() {
		logger.Info("HTTP server listening", "addr", addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-shutdown:
		logger.Info("shutdown signal received", "signal", sig.String())
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	logger.Info("initiating graceful shutdown", "timeout", cfg.Server.ShutdownTimeout)
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error("HTTP server shutdown error", "error", err)
	}

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server resource shutdown error", "error", err)
		return fmt.Errorf("server shutdown: %w", err)
	}

	logger.Info("server stopped cleanly")
	return nil
}

// newLogger creates a structured JSON logger at the specified level.
func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "info":
		lvl = slog.LevelInfo
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level:     lvl,
		AddSource: false,
	})
	return slog.New(handler)
}
