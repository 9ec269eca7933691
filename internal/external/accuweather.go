package external

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"weatherproxy/internal/types"
)

// Provider names used for breakers, logs and metrics.
const (
	ProviderAccuWeather   = "accuweather"
	ProviderRestCountries = "restcountries"
)

// Messages returned when the provider answers successfully but with nothing
// usable. They mirror the shapes API callers have always received.
const (
	msgNoLocation = "No location found for the city"
)

var (
	msgNoCountryCode = map[string]any{"detail": "Can't find country code"}
	msgNoForecast    = map[string]any{"detail": "Can't get forecast data"}
	msgNoCurrent     = map[string]any{"detail": "Can't get current weather data"}
)

// Upstream endpoint labels used for logging and metric dimensions.
const (
	endpointLocations = "locations"
	endpointCountries = "countries"
	endpointCurrent   = "currentconditions"
	endpointForecast  = "forecasts"
)

// AccuWeatherConfig holds the settings for an AccuWeatherClient.
type AccuWeatherConfig struct {
	APIKey       types.SecretString
	BaseURL      string // e.g. http://dataservice.accuweather.com
	CountriesURL string // e.g. https://restcountries.com/v2
	RateLimitRPS float64
	RateBurst    int
	Metrics      FailureRecorder
	Logger       *slog.Logger
}

// upstream is one remote API with its own breaker. A nil limiter means calls
// are not paced.
type upstream struct {
	name    string
	base    *BaseClient
	limiter *rate.Limiter
}

// AccuWeatherClient resolves cities to AccuWeather location keys and fetches
// current conditions and 5-day daily forecasts for them. Country lookups go to
// restcountries through a separate BaseClient, so its failures never trip the
// AccuWeather breaker.
type AccuWeatherClient struct {
	weather      upstream
	countries    upstream
	apiKey       types.SecretString
	baseURL      string
	countriesURL string
	metrics      FailureRecorder
	logger       *slog.Logger
}

var _ WeatherProvider = (*AccuWeatherClient)(nil)

// NewAccuWeatherClient creates a client that sends AccuWeather calls through
// weather and restcountries calls through countries. A zero RateLimitRPS
// disables pacing of AccuWeather calls.
func NewAccuWeatherClient(weather, countries *BaseClient, cfg AccuWeatherConfig) *AccuWeatherClient {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	limit := rate.Inf
	if cfg.RateLimitRPS > 0 {
		limit = rate.Limit(cfg.RateLimitRPS)
	}
	burst := cfg.RateBurst
	if burst < 1 {
		burst = 1
	}
	return &AccuWeatherClient{
		weather:      upstream{name: ProviderAccuWeather, base: weather, limiter: rate.NewLimiter(limit, burst)},
		countries:    upstream{name: ProviderRestCountries, base: countries},
		apiKey:       cfg.APIKey,
		baseURL:      strings.TrimRight(cfg.BaseURL, "/"),
		countriesURL: strings.TrimRight(cfg.CountriesURL, "/"),
		metrics:      cfg.Metrics,
		logger:       logger,
	}
}

// LocationKey searches for city and returns the key of the first match.
// When country is given and resolves to an ISO code, the search is scoped to
// that country; an unknown country falls back to the global search.
func (c *AccuWeatherClient) LocationKey(ctx context.Context, city, country string) (string, error) {
	searchURL := c.baseURL + "/locations/v1/cities/search"

	if country != "" {
		code, err := c.CountryCode(ctx, country)
		switch {
		case err == nil:
			searchURL = fmt.Sprintf("%s/locations/v1/cities/%s/search", c.baseURL, url.PathEscape(code))
		case isNotFound(err):
			c.log(ctx).Warn("country not resolved, searching globally", "country", country)
		default:
			return "", err
		}
	}

	var results []locationResult
	query := url.Values{"q": {city}, "apikey": {c.apiKey.Unmask()}}
	if err := c.getJSON(ctx, c.weather, endpointLocations, searchURL, query, &results); err != nil {
		return "", err
	}
	if len(results) == 0 || results[0].Key == "" {
		return "", types.NewUpstreamError(http.StatusNotFound, msgNoLocation, nil)
	}
	return results[0].Key, nil
}

// CountryCode resolves a country name to its ISO 3166-1 alpha-2 code.
func (c *AccuWeatherClient) CountryCode(ctx context.Context, country string) (string, error) {
	var results []countryResult
	endpoint := c.countriesURL + "/name/" + url.PathEscape(country)
	if err := c.getJSON(ctx, c.countries, endpointCountries, endpoint, nil, &results); err != nil {
		return "", err
	}
	if len(results) == 0 || results[0].Alpha2Code == "" {
		return "", types.NewUpstreamError(http.StatusNotFound, msgNoCountryCode, nil)
	}
	return results[0].Alpha2Code, nil
}

// CurrentConditionsByKey fetches the current conditions for a location key.
func (c *AccuWeatherClient) CurrentConditionsByKey(ctx context.Context, key string) ([]CurrentConditions, error) {
	var records []CurrentConditions
	endpoint := c.baseURL + "/currentconditions/v1/" + url.PathEscape(key)
	if err := c.getJSON(ctx, c.weather, endpointCurrent, endpoint, c.keyQuery(), &records); err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, types.NewUpstreamError(http.StatusNotFound, msgNoCurrent, nil)
	}
	return records, nil
}

// DailyForecastByKey fetches the 5-day daily forecast for a location key.
func (c *AccuWeatherClient) DailyForecastByKey(ctx context.Context, key string) (*DailyForecastResponse, error) {
	var forecast DailyForecastResponse
	endpoint := c.baseURL + "/forecasts/v1/daily/5day/" + url.PathEscape(key)
	if err := c.getJSON(ctx, c.weather, endpointForecast, endpoint, c.keyQuery(), &forecast); err != nil {
		return nil, err
	}
	if len(forecast.DailyForecasts) == 0 {
		return nil, types.NewUpstreamError(http.StatusNotFound, msgNoForecast, nil)
	}
	return &forecast, nil
}

// FetchCurrent resolves the location and returns the raw current conditions.
func (c *AccuWeatherClient) FetchCurrent(ctx context.Context, city, country string) ([]CurrentConditions, error) {
	key, err := c.LocationKey(ctx, city, country)
	if err != nil {
		return nil, err
	}
	return c.CurrentConditionsByKey(ctx, key)
}

// FetchForecast resolves the location and returns the raw daily forecast.
func (c *AccuWeatherClient) FetchForecast(ctx context.Context, city, country string) (*DailyForecastResponse, error) {
	key, err := c.LocationKey(ctx, city, country)
	if err != nil {
		return nil, err
	}
	return c.DailyForecastByKey(ctx, key)
}

// CurrentWeather implements WeatherProvider.
func (c *AccuWeatherClient) CurrentWeather(ctx context.Context, city, country string) (*types.CurrentWeather, error) {
	records, err := c.FetchCurrent(ctx, city, country)
	if err != nil {
		return nil, err
	}
	return CurrentToModel(records), nil
}

// DailyForecast implements WeatherProvider.
func (c *AccuWeatherClient) DailyForecast(ctx context.Context, city, country string) ([]types.DailyForecast, error) {
	forecast, err := c.FetchForecast(ctx, city, country)
	if err != nil {
		return nil, err
	}
	return ForecastToModel(forecast.DailyForecasts), nil
}

// Healthy reports an error while the AccuWeather circuit breaker is open.
// restcountries is optional for a lookup and does not count.
func (c *AccuWeatherClient) Healthy(_ context.Context) error {
	if c.weather.base.BreakerState() == gobreaker.StateOpen {
		return fmt.Errorf("%s circuit breaker is open", ProviderAccuWeather)
	}
	return nil
}

func (c *AccuWeatherClient) keyQuery() url.Values {
	return url.Values{"apikey": {c.apiKey.Unmask()}}
}

// getJSON performs a GET against rawURL on up and decodes a 200 body into
// dst. Every failure is returned as a *types.UpstreamError.
func (c *AccuWeatherClient) getJSON(ctx context.Context, up upstream, endpoint, rawURL string, query url.Values, dst any) error {
	if up.limiter != nil {
		if err := up.limiter.Wait(ctx); err != nil {
			return c.fail(ctx, up.name, endpoint, types.NewUpstreamError(
				http.StatusServiceUnavailable, "upstream request budget exhausted", err))
		}
	}

	if len(query) > 0 {
		rawURL += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return c.fail(ctx, up.name, endpoint, types.NewUpstreamError(
			http.StatusBadRequest, "invalid upstream request", err))
	}
	req.Header.Set("Accept", "application/json")

	resp, err := up.base.Do(req)
	if err != nil {
		return c.fail(ctx, up.name, endpoint, fromAppError(err))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return c.fail(ctx, up.name, endpoint, types.NewUpstreamError(
			http.StatusBadGateway, "failed to read upstream response", err))
	}

	if resp.StatusCode >= http.StatusBadRequest {
		return c.fail(ctx, up.name, endpoint, types.NewUpstreamError(resp.StatusCode, decodeMessage(body), nil))
	}

	if err := json.Unmarshal(body, dst); err != nil {
		return c.fail(ctx, up.name, endpoint, types.NewUpstreamError(
			http.StatusBadGateway, "malformed response from upstream", err))
	}
	return nil
}

// fail logs and records an upstream failure before returning it. Empty
// results are not failures of the upstream and never reach here.
func (c *AccuWeatherClient) fail(ctx context.Context, provider, endpoint string, upErr *types.UpstreamError) error {
	c.log(ctx).Warn("upstream call failed",
		"provider", provider,
		"endpoint", endpoint,
		"status", upErr.Status,
		"message", upErr.Text(),
	)
	if c.metrics != nil {
		c.metrics.RecordUpstreamFailure(ctx, provider, endpoint, upErr.Status)
	}
	return upErr
}

func (c *AccuWeatherClient) log(ctx context.Context) *slog.Logger {
	if id := types.GetRequestID(ctx); id != "" {
		return c.logger.With("request_id", id)
	}
	return c.logger
}

// fromAppError converts a BaseClient failure into an UpstreamError, keeping
// the upstream status and body when the provider did answer.
func fromAppError(err error) *types.UpstreamError {
	var appErr *types.AppError
	if !errors.As(err, &appErr) {
		return types.NewUpstreamError(http.StatusBadGateway, "upstream request failed", err)
	}

	if status, ok := appErr.Details["upstream_status"].(int); ok {
		body, _ := appErr.Details["upstream_body"].(string)
		var message any = appErr.Message
		if body != "" {
			message = decodeMessage([]byte(body))
		}
		return types.NewUpstreamError(status, message, appErr)
	}

	status := http.StatusBadGateway
	if appErr.Code == types.ErrCodeUpstreamRateLimited {
		status = http.StatusServiceUnavailable
	}
	return types.NewUpstreamError(status, appErr.Message, appErr)
}

// decodeMessage returns the JSON-decoded body when possible and the trimmed
// raw text otherwise.
func decodeMessage(body []byte) any {
	var decoded any
	if err := json.Unmarshal(body, &decoded); err == nil && decoded != nil {
		return decoded
	}
	return strings.TrimSpace(string(body))
}

func isNotFound(err error) bool {
	var upErr *types.UpstreamError
	return errors.As(err, &upErr) && upErr.IsNotFound()
}
