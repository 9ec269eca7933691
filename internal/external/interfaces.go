package external

import (
	"context"

	"weatherproxy/internal/types"
)

// WeatherProvider abstracts the upstream weather data source. Implementations
// resolve a city (optionally scoped by country name) and return domain
// records. Failures are reported as *types.UpstreamError.
type WeatherProvider interface {
	// CurrentWeather returns the latest observation for the first location
	// matching city.
	CurrentWeather(ctx context.Context, city, country string) (*types.CurrentWeather, error)

	// DailyForecast returns the 5-day daily forecast for the first location
	// matching city, in upstream order.
	DailyForecast(ctx context.Context, city, country string) ([]types.DailyForecast, error)

	// Healthy returns an error when the provider is known to be unavailable.
	Healthy(ctx context.Context) error
}

// FailureRecorder receives a signal for every failed upstream call.
type FailureRecorder interface {
	RecordUpstreamFailure(ctx context.Context, provider, endpoint string, status int)
}
