package types

import "time"

// WeatherCondition describes the sky and precipitation for half a day or
// for the current observation.
type WeatherCondition struct {
	IconPhrase             string  `json:"icon_phrase"`
	HasPrecipitation       bool    `json:"has_precipitation"`
	PrecipitationType      *string `json:"precipitation_type"`
	PrecipitationIntensity *string `json:"precipitation_intensity"`
}

// DailyForecast is one day of the 5-day forecast.
type DailyForecast struct {
	Date           time.Time        `json:"date"`
	MinTemp        float64          `json:"min_temp"`
	MaxTemp        float64          `json:"max_temp"`
	DayCondition   WeatherCondition `json:"day_condition"`
	NightCondition WeatherCondition `json:"night_condition"`
}

// CurrentWeather is the latest observation for a location.
type CurrentWeather struct {
	Date                   time.Time `json:"date"`
	TemperatureC           float64   `json:"temperature_c"`
	TemperatureF           float64   `json:"temperature_f"`
	WeatherText            string    `json:"weather_text"`
	IsDayTime              bool      `json:"is_day_time"`
	HasPrecipitation       bool      `json:"has_precipitation"`
	PrecipitationType      *string   `json:"precipitation_type"`
	PrecipitationIntensity *string   `json:"precipitation_intensity"`
}

// Forecast sort keys accepted by the forecast endpoint.
const (
	SortByDate    = "date"
	SortByMinTemp = "min_temp"
	SortByMaxTemp = "max_temp"
)

// IsSortableForecastField reports whether field names a DailyForecast field
// with a natural ordering.
func IsSortableForecastField(field string) bool {
	switch field {
	case SortByDate, SortByMinTemp, SortByMaxTemp:
		return true
	}
	return false
}
