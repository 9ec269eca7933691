package external

import "weatherproxy/internal/types"

// ForecastToModel maps AccuWeather daily forecast records onto the proxy's
// DailyForecast shape, preserving upstream order.
func ForecastToModel(records []DailyForecastRecord) []types.DailyForecast {
	mapped := make([]types.DailyForecast, 0, len(records))
	for _, r := range records {
		mapped = append(mapped, types.DailyForecast{
			Date:           r.Date,
			MinTemp:        r.Temperature.Minimum.Value,
			MaxTemp:        r.Temperature.Maximum.Value,
			DayCondition:   conditionToModel(r.Day),
			NightCondition: conditionToModel(r.Night),
		})
	}
	return mapped
}

// CurrentToModel maps the first current-conditions record. It returns nil
// when there is nothing to map.
func CurrentToModel(records []CurrentConditions) *types.CurrentWeather {
	if len(records) == 0 {
		return nil
	}
	r := records[0]

	// AccuWeather omits IsDayTime for some stations; treat it as daytime.
	isDay := true
	if r.IsDayTime != nil {
		isDay = *r.IsDayTime
	}

	return &types.CurrentWeather{
		Date:                   r.LocalObservationDateTime,
		TemperatureC:           r.Temperature.Metric.Value,
		TemperatureF:           r.Temperature.Imperial.Value,
		WeatherText:            r.WeatherText,
		IsDayTime:              isDay,
		HasPrecipitation:       r.HasPrecipitation,
		PrecipitationType:      r.PrecipitationType,
		PrecipitationIntensity: r.PrecipitationIntensity,
	}
}

func conditionToModel(p DayPartForecast) types.WeatherCondition {
	return types.WeatherCondition{
		IconPhrase:             p.IconPhrase,
		HasPrecipitation:       p.HasPrecipitation,
		PrecipitationType:      p.PrecipitationType,
		PrecipitationIntensity: p.PrecipitationIntensity,
	}
}
