// Package config defines the global configuration structure for the weather
// proxy. Configuration is loaded once at process start and is immutable
// thereafter. It follows 12-Factor App principles by strictly separating code
// from configuration.
//
// Values are resolved via a priority chain:
//
//	OS Environment (Highest) -> Dotenv File -> struct tag defaults (Lowest)
//
// Any invalid value causes LoadConfig to fail and the process to exit (fail fast).
package config

import (
	"time"

	"weatherproxy/internal/types"
)

// SecretString is an alias for types.SecretString, the redacted secret type used
// throughout configuration to prevent accidental logging of sensitive values.
type SecretString = types.SecretString

// Config is the top-level configuration struct. Sub-components receive only
// the specific config subsets they require.
type Config struct {
	// System Metadata
	Environment string `envconfig:"APP_ENV" default:"local" validate:"required,oneof=local dev staging prod"`
	Service     string `envconfig:"SERVICE_NAME" default:"weatherproxy"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info" validate:"oneof=debug info warn error"`
	IsTestMode  bool   `envconfig:"IS_TEST_MODE" default:"false"`

	// Domain Configurations
	Server        ServerConfig
	Provider      ProviderConfig
	Cache         CacheConfig
	Security      SecurityConfig
	Observability ObservabilityConfig

	// Build Metadata (Injected via ldflags, not Env)
	Build BuildInfo
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port            string        `envconfig:"PORT" default:"8080" validate:"required,numeric"`
	RequestTimeout  time.Duration `envconfig:"REQUEST_TIMEOUT" default:"15s" validate:"gt=0"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"10s" validate:"gt=0"`
}

// ProviderConfig holds the upstream weather provider endpoints and the
// limits applied to outbound calls.
type ProviderConfig struct {
	APIKey       SecretString  `envconfig:"ACCUWEATHER_API_KEY"`
	BaseURL      string        `envconfig:"ACCUWEATHER_BASE_URL" default:"http://dataservice.accuweather.com" validate:"required,url"`
	CountriesURL string        `envconfig:"COUNTRIES_BASE_URL" default:"https://restcountries.com/v2" validate:"required,url"`
	Timeout      time.Duration `envconfig:"UPSTREAM_TIMEOUT" default:"5s" validate:"gt=0"`
	MaxRetries   int           `envconfig:"UPSTREAM_MAX_RETRIES" default:"0" validate:"gte=0,lte=5"`
	RateLimitRPS float64       `envconfig:"UPSTREAM_RATE_LIMIT_RPS" default:"5" validate:"gt=0"`
	RateBurst    int           `envconfig:"UPSTREAM_RATE_LIMIT_BURST" default:"5" validate:"gte=1"`
	UserAgent    string        `envconfig:"UPSTREAM_USER_AGENT" default:"WeatherProxy/1.0"`
}

// CacheConfig holds response cache lifetimes. A zero TTL disables the cache
// for that endpoint.
type CacheConfig struct {
	ForecastTTL time.Duration `envconfig:"FORECAST_CACHE_TTL" default:"1h" validate:"gte=0"`
	CurrentTTL  time.Duration `envconfig:"CURRENT_CACHE_TTL" default:"0s" validate:"gte=0"`
}

// SecurityConfig holds CORS and inbound rate limit settings.
type SecurityConfig struct {
	CorsAllowedOrigins []string `envconfig:"CORS_ALLOWED_ORIGINS" default:"*"`
	// ClientRateLimitRPS of zero disables per-client rate limiting.
	ClientRateLimitRPS   float64 `envconfig:"CLIENT_RATE_LIMIT_RPS" default:"10" validate:"gte=0"`
	ClientRateLimitBurst int     `envconfig:"CLIENT_RATE_LIMIT_BURST" default:"20" validate:"gte=1"`
}

// ObservabilityConfig holds telemetry and monitoring settings.
type ObservabilityConfig struct {
	EnableMetrics   bool   `envconfig:"ENABLE_METRICS" default:"false"`
	MetricNamespace string `envconfig:"METRIC_NAMESPACE" default:"WeatherProxy"`
	AWSRegion       string `envconfig:"AWS_REGION" default:"us-east-1"`
}

// BuildInfo holds build-time metadata injected via ldflags.
// These values are NOT populated from environment variables.
type BuildInfo struct {
	Version   string
	Commit    string
	BuildTime string
}

// UseStubProvider reports whether the application should serve canned
// weather data instead of calling the real provider. Test mode always uses
// stubs; local runs fall back to them when no API key is configured.
func (c *Config) UseStubProvider() bool {
	if c.IsTestMode {
		return true
	}
	return c.Environment == localEnv && c.Provider.APIKey.IsEmpty()
}

// ConfigErrorType categorizes configuration loading failures to aid debugging.
type ConfigErrorType string

const (
	// ErrValidation indicates the configuration failed struct validation rules.
	ErrValidation ConfigErrorType = "VALIDATION_FAILED"
	// ErrParsing indicates a failure when parsing environment variable values
	// into their target types.
	ErrParsing ConfigErrorType = "PARSING_FAILED"
	// ErrSSMResolution indicates a secret pointed to by a *_SSM_PARAM variable
	// could not be fetched.
	ErrSSMResolution ConfigErrorType = "SSM_RESOLUTION_FAILED"
)
