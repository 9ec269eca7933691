package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"weatherproxy/internal/core"
	"weatherproxy/internal/types"
	"weatherproxy/internal/weather"
)

// --- Mock Service ---

type mockWeatherService struct {
	forecastResult []types.DailyForecast
	forecastErr    error
	currentResult  *types.CurrentWeather
	currentErr     error

	lastForecast weather.ForecastQuery
	lastCurrent  weather.CurrentQuery
}

func (m *mockWeatherService) Forecast(_ context.Context, q weather.ForecastQuery) ([]types.DailyForecast, error) {
	m.lastForecast = q
	return m.forecastResult, m.forecastErr
}

func (m *mockWeatherService) Current(_ context.Context, q weather.CurrentQuery) (*types.CurrentWeather, error) {
	m.lastCurrent = q
	return m.currentResult, m.currentErr
}

// --- Helpers ---

func newTestWeatherHandler(svc WeatherServiceInterface) *WeatherHandler {
	logger := slogDiscard()
	return NewWeatherHandler(svc, core.NewValidator(logger), logger)
}

func makeWeatherRouter(h *WeatherHandler) http.Handler {
	r := chi.NewRouter()
	h.RegisterRoutes(r)
	r.Route("/api", h.RegisterRoutes)
	return r
}

func fiveDays() []types.DailyForecast {
	start := time.Date(2024, 5, 1, 7, 0, 0, 0, time.UTC)
	out := make([]types.DailyForecast, 5)
	for i := range out {
		out[i] = types.DailyForecast{
			Date:           start.AddDate(0, 0, i),
			MinTemp:        40 + float64(i),
			MaxTemp:        60 + float64(i),
			DayCondition:   types.WeatherCondition{IconPhrase: "Sunny"},
			NightCondition: types.WeatherCondition{IconPhrase: "Clear"},
		}
	}
	return out
}

func doGet(t *testing.T, h http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func decodeAPIError(t *testing.T, rec *httptest.ResponseRecorder) core.ErrorDetail {
	t.Helper()
	var resp core.APIErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	return resp.Error
}

// --- HandleForecast Tests ---

func TestHandleForecast_ReturnsFiveEntries(t *testing.T) {
	svc := &mockWeatherService{forecastResult: fiveDays()}
	router := makeWeatherRouter(newTestWeatherHandler(svc))

	for _, target := range []string{"/forecast/?city=London", "/forecast?city=London", "/api/forecast/?city=London"} {
		rec := doGet(t, router, target)

		require.Equal(t, http.StatusOK, rec.Code, target)
		var body []map[string]any
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
		assert.Len(t, body, 5, target)
		assert.ElementsMatch(t,
			[]string{"date", "min_temp", "max_temp", "day_condition", "night_condition"},
			keys(body[0]))
		day := body[0]["day_condition"].(map[string]any)
		assert.ElementsMatch(t,
			[]string{"icon_phrase", "has_precipitation", "precipitation_type", "precipitation_intensity"},
			keys(day))
	}
}

func TestHandleForecast_MissingCity(t *testing.T) {
	svc := &mockWeatherService{}
	router := makeWeatherRouter(newTestWeatherHandler(svc))

	for _, target := range []string{"/forecast/", "/forecast/?city=", "/forecast/?city=%20%20"} {
		rec := doGet(t, router, target)

		require.Equal(t, http.StatusBadRequest, rec.Code, target)
		apiErr := decodeAPIError(t, rec)
		assert.Equal(t, string(types.ErrCodeValidationMissingCity), apiErr.Code)
		assert.Equal(t, "No city defined", apiErr.Message)
	}
	assert.Empty(t, svc.lastForecast.City, "service must not be called")
}

func TestHandleForecast_PassesQueryToService(t *testing.T) {
	svc := &mockWeatherService{forecastResult: fiveDays()}
	router := makeWeatherRouter(newTestWeatherHandler(svc))

	rec := doGet(t, router, "/forecast/?city=Berlin&country=Germany&sort_by=max_temp&descending=true")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, weather.ForecastQuery{
		City:       "Berlin",
		Country:    "Germany",
		SortBy:     "max_temp",
		Descending: true,
	}, svc.lastForecast)
}

func TestHandleForecast_InvalidDescending(t *testing.T) {
	svc := &mockWeatherService{forecastResult: fiveDays()}
	router := makeWeatherRouter(newTestWeatherHandler(svc))

	rec := doGet(t, router, "/forecast/?city=Berlin&sort_by=date&descending=maybe")

	require.Equal(t, http.StatusBadRequest, rec.Code)
	apiErr := decodeAPIError(t, rec)
	assert.Equal(t, string(types.ErrCodeValidationInvalidBoolean), apiErr.Code)
	assert.Equal(t, "maybe", apiErr.Details["value"])
}

func TestHandleForecast_UpstreamErrorIs400(t *testing.T) {
	svc := &mockWeatherService{
		forecastErr: types.NewUpstreamError(http.StatusNotFound, "No location found for the city", nil),
	}
	router := makeWeatherRouter(newTestWeatherHandler(svc))

	rec := doGet(t, router, "/forecast/?city=AxAzAy")

	require.Equal(t, http.StatusBadRequest, rec.Code)
	apiErr := decodeAPIError(t, rec)
	assert.Equal(t, string(types.ErrCodeValidationUpstream), apiErr.Code)
	assert.Equal(t, "No location found for the city", apiErr.Message)
	assert.EqualValues(t, http.StatusNotFound, apiErr.Details["upstream_status"])
}

// --- HandleCurrent Tests ---

func TestHandleCurrent_ReturnsFieldSet(t *testing.T) {
	rain := "Rain"
	svc := &mockWeatherService{currentResult: &types.CurrentWeather{
		Date:              time.Date(2024, 5, 1, 14, 5, 0, 0, time.UTC),
		TemperatureC:      12.2,
		TemperatureF:      54,
		WeatherText:       "Light rain",
		IsDayTime:         true,
		HasPrecipitation:  true,
		PrecipitationType: &rain,
	}}
	router := makeWeatherRouter(newTestWeatherHandler(svc))

	rec := doGet(t, router, "/current/?city=Oslo&country=Norway")

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.ElementsMatch(t, []string{
		"date", "temperature_c", "temperature_f", "weather_text", "is_day_time",
		"has_precipitation", "precipitation_type", "precipitation_intensity",
	}, keys(body))
	assert.Equal(t, "Light rain", body["weather_text"])
	assert.Equal(t, "Rain", body["precipitation_type"])
	assert.Nil(t, body["precipitation_intensity"])
	assert.Equal(t, weather.CurrentQuery{City: "Oslo", Country: "Norway"}, svc.lastCurrent)
}

func TestHandleCurrent_MissingCity(t *testing.T) {
	router := makeWeatherRouter(newTestWeatherHandler(&mockWeatherService{}))

	rec := doGet(t, router, "/current")

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "No city defined", decodeAPIError(t, rec).Message)
}

func TestHandleCurrent_NilResultServesEmptyRecord(t *testing.T) {
	router := makeWeatherRouter(newTestWeatherHandler(&mockWeatherService{}))

	rec := doGet(t, router, "/current/?city=Oslo")

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "", body["weather_text"])
}

func TestHandleCurrent_UpstreamErrorCarriesProviderMessage(t *testing.T) {
	svc := &mockWeatherService{currentErr: types.NewUpstreamError(http.StatusUnauthorized,
		map[string]any{"Code": "Unauthorized", "Message": "Api Authorization failed"}, nil)}
	router := makeWeatherRouter(newTestWeatherHandler(svc))

	rec := doGet(t, router, "/api/current/?city=Oslo")

	require.Equal(t, http.StatusBadRequest, rec.Code)
	apiErr := decodeAPIError(t, rec)
	assert.Equal(t, "Api Authorization failed", apiErr.Message)
	assert.EqualValues(t, http.StatusUnauthorized, apiErr.Details["upstream_status"])
}

func TestParseBool(t *testing.T) {
	for raw, want := range map[string]bool{"": false, "true": true, "1": true, "False": false, "0": false} {
		got, err := parseBool("descending", raw)
		require.NoError(t, err, raw)
		assert.Equal(t, want, got, raw)
	}
}

func TestHandleForecast_UnexpectedErrorIs500(t *testing.T) {
	svc := &mockWeatherService{forecastErr: errors.New("boom")}
	router := makeWeatherRouter(newTestWeatherHandler(svc))

	rec := doGet(t, router, "/forecast/?city=London")

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	apiErr := decodeAPIError(t, rec)
	assert.Equal(t, string(types.ErrCodeInternalUnexpected), apiErr.Code)
	assert.NotContains(t, apiErr.Message, "boom")
}
