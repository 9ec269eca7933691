package external

import (
	"log/slog"
	"net/http"

	"weatherproxy/internal/config"
)

// ClientRegistry holds the external service clients. It is the single point
// of access for the rest of the application to third-party services.
type ClientRegistry struct {
	Weather WeatherProvider
}

// RegistryOption is a functional option for configuring a ClientRegistry.
type RegistryOption func(*registryConfig)

type registryConfig struct {
	failures   FailureRecorder
	httpClient *http.Client
}

// WithFailureRecorder routes upstream failure signals to rec.
func WithFailureRecorder(rec FailureRecorder) RegistryOption {
	return func(rc *registryConfig) {
		rc.failures = rec
	}
}

// WithHTTPClient overrides the outbound HTTP client (tests point it at
// httptest servers).
func WithHTTPClient(client *http.Client) RegistryOption {
	return func(rc *registryConfig) {
		rc.httpClient = client
	}
}

// NewClientRegistry initializes the external clients. When
// cfg.UseStubProvider() is true the registry serves canned data; otherwise
// the real AccuWeather client is built with the configured timeout, retry
// budget and rate limit.
func NewClientRegistry(cfg *config.Config, logger *slog.Logger, opts ...RegistryOption) (*ClientRegistry, error) {
	if logger == nil {
		logger = slog.Default()
	}

	rc := &registryConfig{}
	for _, opt := range opts {
		opt(rc)
	}

	if cfg.UseStubProvider() {
		logger.Info("initializing external clients in STUB mode",
			"is_test_mode", cfg.IsTestMode,
			"environment", cfg.Environment,
		)
		return &ClientRegistry{
			Weather: NewStubWeatherProvider(logger.With("mode", "stub")),
		}, nil
	}

	logger.Info("initializing external clients in PRODUCTION mode",
		"environment", cfg.Environment,
		"provider", ProviderAccuWeather,
	)

	httpClient := rc.httpClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Provider.Timeout}
	}

	policy := DefaultRetryPolicy()
	policy.MaxRetries = cfg.Provider.MaxRetries

	weather := NewBaseClient(httpClient, ProviderAccuWeather, policy, cfg.Provider.UserAgent)
	countries := NewBaseClient(httpClient, ProviderRestCountries, policy, cfg.Provider.UserAgent)

	return &ClientRegistry{
		Weather: NewAccuWeatherClient(weather, countries, AccuWeatherConfig{
			APIKey:       cfg.Provider.APIKey,
			BaseURL:      cfg.Provider.BaseURL,
			CountriesURL: cfg.Provider.CountriesURL,
			RateLimitRPS: cfg.Provider.RateLimitRPS,
			RateBurst:    cfg.Provider.RateBurst,
			Metrics:      rc.failures,
			Logger:       logger.With("client", ProviderAccuWeather),
		}),
	}, nil
}
