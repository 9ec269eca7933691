// Package weather holds the application service behind the HTTP handlers:
// it asks the configured provider for data, caches results per location and
// applies the caller's ordering.
package weather

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"weatherproxy/internal/types"
)

// Cache names used in logs and metric dimensions.
const (
	CacheForecast = "forecast"
	CacheCurrent  = "current"
)

// Provider is the upstream weather source the service reads from.
type Provider interface {
	CurrentWeather(ctx context.Context, city, country string) (*types.CurrentWeather, error)
	DailyForecast(ctx context.Context, city, country string) ([]types.DailyForecast, error)
}

// CacheRecorder receives a signal for every cache lookup.
type CacheRecorder interface {
	RecordCacheResult(ctx context.Context, cache string, hit bool)
}

// ForecastQuery selects a location and an optional ordering for the 5-day
// forecast.
type ForecastQuery struct {
	City       string
	Country    string
	SortBy     string
	Descending bool
}

// CurrentQuery selects a location for current conditions.
type CurrentQuery struct {
	City    string
	Country string
}

// Options configures a Service. A zero TTL disables that cache.
type Options struct {
	ForecastTTL time.Duration
	CurrentTTL  time.Duration
	Metrics     CacheRecorder
	Logger      *slog.Logger
}

type Service struct {
	provider      Provider
	forecastCache *Cache[[]types.DailyForecast]
	currentCache  *Cache[*types.CurrentWeather]
	group         singleflight.Group
	metrics       CacheRecorder
	logger        *slog.Logger
}

func NewService(provider Provider, opts Options) *Service {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{
		provider: provider,
		metrics:  opts.Metrics,
		logger:   logger,
	}
	if opts.ForecastTTL > 0 {
		s.forecastCache = NewCache[[]types.DailyForecast](opts.ForecastTTL)
	}
	if opts.CurrentTTL > 0 {
		s.currentCache = NewCache[*types.CurrentWeather](opts.CurrentTTL)
	}
	return s
}

// Forecast returns the 5-day forecast for q.City, ordered by q.SortBy when it
// names a sortable field.
func (s *Service) Forecast(ctx context.Context, q ForecastQuery) ([]types.DailyForecast, error) {
	if strings.TrimSpace(q.City) == "" {
		return nil, types.NewAppError(types.ErrCodeValidationMissingCity, "No city defined", nil)
	}

	key := locationKey(q.City, q.Country)
	days, err := cached(ctx, s, s.forecastCache, CacheForecast, key, func(ctx context.Context) ([]types.DailyForecast, error) {
		return s.provider.DailyForecast(ctx, q.City, q.Country)
	})
	if err != nil {
		return nil, err
	}
	return sortForecast(days, q.SortBy, q.Descending), nil
}

// Current returns the latest observation for q.City.
func (s *Service) Current(ctx context.Context, q CurrentQuery) (*types.CurrentWeather, error) {
	if strings.TrimSpace(q.City) == "" {
		return nil, types.NewAppError(types.ErrCodeValidationMissingCity, "No city defined", nil)
	}

	key := locationKey(q.City, q.Country)
	return cached(ctx, s, s.currentCache, CacheCurrent, key, func(ctx context.Context) (*types.CurrentWeather, error) {
		return s.provider.CurrentWeather(ctx, q.City, q.Country)
	})
}

// cached serves key from cache when possible. Concurrent misses for the same
// key share one provider call, which runs detached from any single caller's
// cancellation; each caller still stops waiting when its own ctx is done,
// getting a 504 UpstreamError that wraps ctx.Err().
// Errors are never cached.
func cached[V any](
	ctx context.Context,
	s *Service,
	cache *Cache[V],
	name, key string,
	fetch func(context.Context) (V, error),
) (V, error) {
	var zero V

	if cache != nil {
		if v, ok := cache.Get(key); ok {
			s.recordCache(ctx, name, true)
			return v, nil
		}
		s.recordCache(ctx, name, false)
	}

	ch := s.group.DoChan(name+":"+key, func() (any, error) {
		v, err := fetch(context.WithoutCancel(ctx))
		if err != nil {
			return nil, err
		}
		if cache != nil {
			cache.Set(key, v)
		}
		return v, nil
	})

	select {
	case <-ctx.Done():
		return zero, types.NewUpstreamError(http.StatusGatewayTimeout, "upstream request timed out", ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return zero, res.Err
		}
		if res.Shared {
			s.logger.DebugContext(ctx, "shared upstream result", "cache", name, "key", key)
		}
		return res.Val.(V), nil
	}
}

func (s *Service) recordCache(ctx context.Context, name string, hit bool) {
	s.logger.DebugContext(ctx, "cache lookup", "cache", name, "hit", hit)
	if s.metrics != nil {
		s.metrics.RecordCacheResult(ctx, name, hit)
	}
}

// locationKey normalizes a (city, country) pair into a cache key.
func locationKey(city, country string) string {
	return strings.ToLower(strings.TrimSpace(city)) + "|" + strings.ToLower(strings.TrimSpace(country))
}
