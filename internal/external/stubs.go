package external

import (
	"context"
	"log/slog"
	"time"

	"weatherproxy/internal/types"
)

// StubWeatherProvider implements WeatherProvider with deterministic canned
// data. It lets the service boot in local/test mode without an API key.
type StubWeatherProvider struct {
	logger *slog.Logger
	now    func() time.Time
}

var _ WeatherProvider = (*StubWeatherProvider)(nil)

// NewStubWeatherProvider creates a new StubWeatherProvider.
func NewStubWeatherProvider(logger *slog.Logger) *StubWeatherProvider {
	return &StubWeatherProvider{logger: logger, now: time.Now}
}

func (s *StubWeatherProvider) CurrentWeather(ctx context.Context, city, country string) (*types.CurrentWeather, error) {
	s.logger.InfoContext(ctx, "stub: CurrentWeather called", "city", city, "country", country)
	return &types.CurrentWeather{
		Date:         s.now().UTC().Truncate(time.Minute),
		TemperatureC: 18.3,
		TemperatureF: 65,
		WeatherText:  "Partly sunny",
		IsDayTime:    true,
	}, nil
}

func (s *StubWeatherProvider) DailyForecast(ctx context.Context, city, country string) ([]types.DailyForecast, error) {
	s.logger.InfoContext(ctx, "stub: DailyForecast called", "city", city, "country", country)

	rain, light := "Rain", "Light"
	start := s.now().UTC().Truncate(24 * time.Hour).Add(7 * time.Hour)
	days := make([]types.DailyForecast, 0, 5)
	for i := range 5 {
		day := types.DailyForecast{
			Date:           start.AddDate(0, 0, i),
			MinTemp:        50 + float64(i),
			MaxTemp:        64 + float64(2*i),
			DayCondition:   types.WeatherCondition{IconPhrase: "Mostly sunny"},
			NightCondition: types.WeatherCondition{IconPhrase: "Clear"},
		}
		if i%2 == 1 {
			day.NightCondition = types.WeatherCondition{
				IconPhrase:             "Showers",
				HasPrecipitation:       true,
				PrecipitationType:      &rain,
				PrecipitationIntensity: &light,
			}
		}
		days = append(days, day)
	}
	return days, nil
}

func (s *StubWeatherProvider) Healthy(_ context.Context) error {
	return nil
}
