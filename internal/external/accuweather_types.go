package external

import "time"

// Wire shapes of the AccuWeather and restcountries responses. Only the
// fields the proxy maps are declared; everything else is ignored on decode.

// locationResult is one entry of the city search response.
type locationResult struct {
	Key           string `json:"Key"`
	LocalizedName string `json:"LocalizedName"`
	Country       struct {
		ID            string `json:"ID"`
		LocalizedName string `json:"LocalizedName"`
	} `json:"Country"`
}

// countryResult is one entry of the restcountries v2 name search.
type countryResult struct {
	Name       string `json:"name"`
	Alpha2Code string `json:"alpha2Code"`
}

// measurement is AccuWeather's value/unit pair.
type measurement struct {
	Value    float64 `json:"Value"`
	Unit     string  `json:"Unit"`
	UnitType int     `json:"UnitType"`
}

// CurrentConditions is one record of /currentconditions/v1/{key}.
type CurrentConditions struct {
	LocalObservationDateTime time.Time `json:"LocalObservationDateTime"`
	EpochTime                int64     `json:"EpochTime"`
	WeatherText              string    `json:"WeatherText"`
	WeatherIcon              int       `json:"WeatherIcon"`
	HasPrecipitation         bool      `json:"HasPrecipitation"`
	PrecipitationType        *string   `json:"PrecipitationType"`
	PrecipitationIntensity   *string   `json:"PrecipitationIntensity"`
	IsDayTime                *bool     `json:"IsDayTime"`
	Temperature              struct {
		Metric   measurement `json:"Metric"`
		Imperial measurement `json:"Imperial"`
	} `json:"Temperature"`
}

// DayPartForecast is the Day or Night block of a daily forecast.
type DayPartForecast struct {
	Icon                   int     `json:"Icon"`
	IconPhrase             string  `json:"IconPhrase"`
	HasPrecipitation       bool    `json:"HasPrecipitation"`
	PrecipitationType      *string `json:"PrecipitationType"`
	PrecipitationIntensity *string `json:"PrecipitationIntensity"`
}

// DailyForecastRecord is one entry of DailyForecasts.
type DailyForecastRecord struct {
	Date        time.Time `json:"Date"`
	EpochDate   int64     `json:"EpochDate"`
	Temperature struct {
		Minimum measurement `json:"Minimum"`
		Maximum measurement `json:"Maximum"`
	} `json:"Temperature"`
	Day   DayPartForecast `json:"Day"`
	Night DayPartForecast `json:"Night"`
}

// DailyForecastResponse is the body of /forecasts/v1/daily/5day/{key}.
type DailyForecastResponse struct {
	Headline struct {
		EffectiveDate time.Time `json:"EffectiveDate"`
		Text          string    `json:"Text"`
		Category      string    `json:"Category"`
	} `json:"Headline"`
	DailyForecasts []DailyForecastRecord `json:"DailyForecasts"`
}
