// loader.go implements the configuration loading lifecycle.
//
// The loading sequence is:
//  1. Enforce UTC timezone so upstream local timestamps are re-rendered consistently.
//  2. Load .env file via godotenv (non-fatal if absent).
//  3. Outside APP_ENV=local, resolve *_SSM_PARAM pointers through the
//     SecretProvider and inject the values into the environment.
//  4. Use envconfig to process struct tags and populate the Config struct.
//  5. Populate BuildInfo from ldflags, falling back to the embedded VCS stamp.
//  6. Validate the struct using go-playground/validator.
//  7. Enforce cross-field rules (API key outside local/test).
package config

import (
	"context"
	"fmt"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// ConfigError is a diagnostic error type returned by LoadConfig to aid debugging.
type ConfigError struct {
	Type    ConfigErrorType
	Message string
	Err     error
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Type, e.Message)
}

// Unwrap returns the underlying error for use with errors.Is/errors.As.
func (e *ConfigError) Unwrap() error {
	return e.Err
}

// localEnv is the APP_ENV value that allows running without a provider key
// and skips SSM resolution.
const localEnv = "local"

// ssmParamSuffix marks a variable holding the SSM path of another variable:
// ACCUWEATHER_API_KEY_SSM_PARAM=/prod/weatherproxy/accuweather/api_key
// resolves into ACCUWEATHER_API_KEY.
const ssmParamSuffix = "_SSM_PARAM"

// ssmResolveTimeout bounds the secret lookup at startup.
const ssmResolveTimeout = 10 * time.Second

// loaderDeps holds the process environment accessors so tests can run the
// loader without touching real state.
type loaderDeps struct {
	lookupEnv func(key string) (string, bool)
	setEnv    func(key, value string) error
	environ   func() []string
}

func defaultDeps() loaderDeps {
	return loaderDeps{
		lookupEnv: os.LookupEnv,
		setEnv:    os.Setenv,
		environ:   os.Environ,
	}
}

// LoadConfig loads and validates the service configuration from the
// environment, optionally seeded by the given dotenv files (".env" when none
// are passed). Missing dotenv files are ignored.
//
// Outside APP_ENV=local, variables ending in _SSM_PARAM are resolved through
// provider before the struct is populated. provider may be nil when no such
// variables are set.
func LoadConfig(provider SecretProvider, dotenvFiles ...string) (*Config, error) {
	return loadConfigWithDeps(provider, defaultDeps(), dotenvFiles...)
}

func loadConfigWithDeps(provider SecretProvider, deps loaderDeps, dotenvFiles ...string) (*Config, error) {
	time.Local = time.UTC

	// godotenv does NOT override variables already present in the environment.
	_ = godotenv.Load(dotenvFiles...)

	appEnv, _ := deps.lookupEnv("APP_ENV")
	if appEnv == "" {
		appEnv = localEnv
	}
	if appEnv != localEnv {
		if err := resolveSSMParams(provider, deps); err != nil {
			return nil, err
		}
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, &ConfigError{
			Type:    ErrParsing,
			Message: "failed to process environment configuration",
			Err:     err,
		}
	}

	cfg.Build = NewBuildInfo()

	if err := validator.New().Struct(cfg); err != nil {
		return nil, &ConfigError{
			Type:    ErrValidation,
			Message: "configuration validation failed",
			Err:     err,
		}
	}

	if !cfg.IsTestMode && cfg.Environment != localEnv && cfg.Provider.APIKey.IsEmpty() {
		return nil, &ConfigError{
			Type:    ErrValidation,
			Message: fmt.Sprintf("ACCUWEATHER_API_KEY is required when APP_ENV=%s", cfg.Environment),
		}
	}

	return &cfg, nil
}

// resolveSSMParams fetches every *_SSM_PARAM target that is not already set
// and writes the values back into the environment. A non-empty variable wins
// over its SSM pointer.
func resolveSSMParams(provider SecretProvider, deps loaderDeps) error {
	pathToTarget := make(map[string]string)
	var targets []string

	for _, entry := range deps.environ() {
		key, path, ok := strings.Cut(entry, "=")
		if !ok || !strings.HasSuffix(key, ssmParamSuffix) || path == "" {
			continue
		}
		target := strings.TrimSuffix(key, ssmParamSuffix)
		if v, set := deps.lookupEnv(target); set && v != "" {
			continue
		}
		pathToTarget[path] = target
		targets = append(targets, target)
	}

	if len(targets) == 0 {
		return nil
	}
	if provider == nil {
		return &ConfigError{
			Type:    ErrSSMResolution,
			Message: fmt.Sprintf("a SecretProvider is required to resolve %s", strings.Join(targets, ", ")),
		}
	}

	paths := make([]string, 0, len(pathToTarget))
	for path := range pathToTarget {
		paths = append(paths, path)
	}
	slices.Sort(paths)

	ctx, cancel := context.WithTimeout(context.Background(), ssmResolveTimeout)
	defer cancel()

	resolved, err := provider.GetParametersBatch(ctx, paths)
	if err != nil {
		return &ConfigError{
			Type:    ErrSSMResolution,
			Message: fmt.Sprintf("failed to resolve SSM parameters for %s", strings.Join(targets, ", ")),
			Err:     err,
		}
	}

	var missing []string
	for _, path := range paths {
		target := pathToTarget[path]
		value, ok := resolved[path]
		if !ok {
			missing = append(missing, target)
			continue
		}
		if err := deps.setEnv(target, value); err != nil {
			return &ConfigError{
				Type:    ErrSSMResolution,
				Message: fmt.Sprintf("failed to set resolved value for %s", target),
				Err:     err,
			}
		}
	}
	if len(missing) > 0 {
		return &ConfigError{
			Type:    ErrSSMResolution,
			Message: fmt.Sprintf("SSM parameters not found for: %s", strings.Join(missing, ", ")),
		}
	}

	return nil
}
