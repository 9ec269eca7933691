// Package handlers contains the HTTP handler implementations for the weather
// proxy API:
//   - 5-day forecast (GET /forecast/)
//   - current conditions (GET /current/)
package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"weatherproxy/internal/core"
	"weatherproxy/internal/types"
	"weatherproxy/internal/weather"
)

// WeatherServiceInterface defines the service contract for the weather
// handler. It is defined locally so tests can inject a mock.
type WeatherServiceInterface interface {
	Forecast(ctx context.Context, q weather.ForecastQuery) ([]types.DailyForecast, error)
	Current(ctx context.Context, q weather.CurrentQuery) (*types.CurrentWeather, error)
}

// WeatherHandler maps HTTP requests to weather.Service methods.
type WeatherHandler struct {
	service   WeatherServiceInterface
	validator *core.Validator
	logger    *slog.Logger
}

// NewWeatherHandler creates a new WeatherHandler with the provided dependencies.
func NewWeatherHandler(
	svc WeatherServiceInterface,
	val *core.Validator,
	logger *slog.Logger,
) *WeatherHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &WeatherHandler{
		service:   svc,
		validator: val,
		logger:    logger,
	}
}

// RegisterRoutes mounts the weather endpoints onto the router, with and
// without the trailing slash.
func (h *WeatherHandler) RegisterRoutes(r chi.Router) {
	r.Get("/forecast/", h.HandleForecast)
	r.Get("/forecast", h.HandleForecast)
	r.Get("/current/", h.HandleCurrent)
	r.Get("/current", h.HandleCurrent)
}

type forecastParams struct {
	City       string `query:"city" validate:"notblank"`
	Country    string `query:"country"`
	SortBy     string `query:"sort_by"`
	Descending string `query:"descending"`
}

type currentParams struct {
	City    string `query:"city" validate:"notblank"`
	Country string `query:"country"`
}

// HandleForecast handles GET /forecast/?city=&country=&sort_by=&descending=.
// It responds with a JSON array of daily forecasts.
func (h *WeatherHandler) HandleForecast(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	params := forecastParams{
		City:       q.Get("city"),
		Country:    q.Get("country"),
		SortBy:     q.Get("sort_by"),
		Descending: q.Get("descending"),
	}
	if err := h.validator.ValidateStruct(params); err != nil {
		core.Error(w, r, err)
		return
	}

	descending, err := parseBool("descending", params.Descending)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	days, err := h.service.Forecast(r.Context(), weather.ForecastQuery{
		City:       params.City,
		Country:    params.Country,
		SortBy:     params.SortBy,
		Descending: descending,
	})
	if err != nil {
		h.fail(w, r, "forecast", params.City, err)
		return
	}

	core.JSON(w, r, http.StatusOK, days)
}

// HandleCurrent handles GET /current/?city=&country=.
// It responds with a single current-conditions object.
func (h *WeatherHandler) HandleCurrent(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	params := currentParams{
		City:    q.Get("city"),
		Country: q.Get("country"),
	}
	if err := h.validator.ValidateStruct(params); err != nil {
		core.Error(w, r, err)
		return
	}

	current, err := h.service.Current(r.Context(), weather.CurrentQuery{
		City:    params.City,
		Country: params.Country,
	})
	if err != nil {
		h.fail(w, r, "current", params.City, err)
		return
	}
	if current == nil {
		h.logger.DebugContext(r.Context(), "no current conditions, serving empty record", "city", params.City)
		current = &types.CurrentWeather{}
	}

	core.JSON(w, r, http.StatusOK, current)
}

// fail logs the failed lookup and writes the error. Upstream failures are
// turned into 400 responses by core.Error.
func (h *WeatherHandler) fail(w http.ResponseWriter, r *http.Request, op, city string, err error) {
	logger := types.LoggerFromContext(r.Context())
	var upErr *types.UpstreamError
	if errors.As(err, &upErr) {
		logger.Warn("weather lookup failed",
			"op", op,
			"city", city,
			"upstream_status", upErr.Status,
			"upstream_message", upErr.Text(),
		)
	} else {
		logger.Error("weather lookup failed", "op", op, "city", city, "error", err)
	}
	core.Error(w, r, err)
}

// parseBool accepts the literals understood by strconv.ParseBool. An empty
// value means false.
func parseBool(field, raw string) (bool, error) {
	if raw == "" {
		return false, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, types.NewAppErrorWithDetails(
			types.ErrCodeValidationInvalidBoolean,
			field+" must be a boolean",
			err,
			map[string]any{"field": field, "value": raw},
		)
	}
	return v, nil
}
