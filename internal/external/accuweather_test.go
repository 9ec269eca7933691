package external

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"weatherproxy/internal/types"
)

const testAPIKey = "test-key"

// fakeUpstream serves the subset of AccuWeather and restcountries used by the
// client. Cities and countries not registered answer with empty arrays, the
// way the real APIs do.
type fakeUpstream struct {
	mu        sync.Mutex
	paths     []string
	locations map[string]string // "CC/city" or "city" -> key
	countries map[string]string // name -> alpha2
	status    int
	body      string

	countriesStatus int
}

func newFakeUpstream() *fakeUpstream {
	return &fakeUpstream{
		locations: map[string]string{
			"london":    "328328",
			"DE/berlin": "178087",
			"berlin":    "999999",
			"vostok":    "000000",
		},
		countries: map[string]string{"Germany": "DE"},
	}
}

func (f *fakeUpstream) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	f.paths = append(f.paths, r.URL.Path)
	status, body := f.status, f.body
	f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	if status != 0 {
		w.WriteHeader(status)
		w.Write([]byte(body))
		return
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /countries/name/{name}", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		countriesStatus := f.countriesStatus
		f.mu.Unlock()
		if countriesStatus != 0 {
			w.WriteHeader(countriesStatus)
			w.Write([]byte(`{"message":"unavailable"}`))
			return
		}
		code, ok := f.countries[r.PathValue("name")]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`{"status":404,"message":"Not Found"}`))
			return
		}
		json.NewEncoder(w).Encode([]map[string]string{{"name": r.PathValue("name"), "alpha2Code": code}})
	})
	mux.HandleFunc("GET /locations/v1/cities/search", func(w http.ResponseWriter, r *http.Request) {
		f.writeLocation(w, r, r.URL.Query().Get("q"))
	})
	mux.HandleFunc("GET /locations/v1/cities/{cc}/search", func(w http.ResponseWriter, r *http.Request) {
		f.writeLocation(w, r, r.PathValue("cc")+"/"+r.URL.Query().Get("q"))
	})
	mux.HandleFunc("GET /currentconditions/v1/{key}", func(w http.ResponseWriter, r *http.Request) {
		if r.PathValue("key") == "000000" {
			w.Write([]byte(`[]`))
			return
		}
		w.Write([]byte(`[{
			"LocalObservationDateTime": "2024-05-01T14:05:00+01:00",
			"WeatherText": "Light rain",
			"HasPrecipitation": true,
			"PrecipitationType": "Rain",
			"IsDayTime": false,
			"Temperature": {
				"Metric": {"Value": 12.2, "Unit": "C", "UnitType": 17},
				"Imperial": {"Value": 54, "Unit": "F", "UnitType": 18}
			}
		}]`))
	})
	mux.HandleFunc("GET /forecasts/v1/daily/5day/{key}", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(forecastBody(5)))
	})
	mux.ServeHTTP(w, r)
}

func (f *fakeUpstream) writeLocation(w http.ResponseWriter, r *http.Request, lookup string) {
	if r.URL.Query().Get("apikey") != testAPIKey {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"Code":"Unauthorized","Message":"Api Authorization failed"}`))
		return
	}
	key, ok := f.locations[lookup]
	if !ok {
		w.Write([]byte(`[]`))
		return
	}
	json.NewEncoder(w).Encode([]map[string]string{{"Key": key}})
}

func (f *fakeUpstream) fail(status int, body string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.status, f.body = status, body
}

// failCountries makes only the restcountries endpoint answer with status.
func (f *fakeUpstream) failCountries(status int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.countriesStatus = status
}

func (f *fakeUpstream) requested() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.paths...)
}

func forecastBody(days int) string {
	type dayPart struct {
		IconPhrase        string  `json:"IconPhrase"`
		HasPrecipitation  bool    `json:"HasPrecipitation"`
		PrecipitationType *string `json:"PrecipitationType,omitempty"`
	}
	type value struct {
		Value float64 `json:"Value"`
	}
	type record struct {
		Date        string `json:"Date"`
		Temperature struct {
			Minimum value `json:"Minimum"`
			Maximum value `json:"Maximum"`
		} `json:"Temperature"`
		Day   dayPart `json:"Day"`
		Night dayPart `json:"Night"`
	}

	snow := "Snow"
	start := time.Date(2024, 5, 1, 7, 0, 0, 0, time.UTC)
	records := make([]record, 0, days)
	for i := range days {
		var r record
		r.Date = start.AddDate(0, 0, i).Format(time.RFC3339)
		r.Temperature.Minimum.Value = float64(40 + i)
		r.Temperature.Maximum.Value = float64(60 - i)
		r.Day = dayPart{IconPhrase: "Sunny"}
		r.Night = dayPart{IconPhrase: "Snow", HasPrecipitation: true, PrecipitationType: &snow}
		records = append(records, r)
	}
	b, _ := json.Marshal(map[string]any{"DailyForecasts": records})
	return string(b)
}

type recordedFailure struct {
	provider string
	endpoint string
	status   int
}

type failureSpy struct {
	mu       sync.Mutex
	failures []recordedFailure
}

func (s *failureSpy) RecordUpstreamFailure(_ context.Context, provider, endpoint string, status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures = append(s.failures, recordedFailure{provider: provider, endpoint: endpoint, status: status})
}

func newAccuWeatherTestClient(t *testing.T, serverURL string, spy FailureRecorder) *AccuWeatherClient {
	t.Helper()
	return NewAccuWeatherClient(newTestClient(t, DefaultRetryPolicy()), newTestClient(t, DefaultRetryPolicy()), AccuWeatherConfig{
		APIKey:       types.SecretString(testAPIKey),
		BaseURL:      serverURL + "/",
		CountriesURL: serverURL + "/countries",
		Metrics:      spy,
		Logger:       testLogger(),
	})
}

func requireUpstreamError(t *testing.T, err error) *types.UpstreamError {
	t.Helper()
	require.Error(t, err)
	upErr, ok := err.(*types.UpstreamError)
	require.True(t, ok, "expected *types.UpstreamError, got %T", err)
	return upErr
}

func TestCountryCode_ResolvesAlpha2(t *testing.T) {
	server := httptest.NewServer(newFakeUpstream())
	defer server.Close()
	client := newAccuWeatherTestClient(t, server.URL, nil)

	code, err := client.CountryCode(context.Background(), "Germany")

	require.NoError(t, err)
	assert.Equal(t, "DE", code)
}

func TestCountryCode_UnknownCountryIsNotFound(t *testing.T) {
	server := httptest.NewServer(newFakeUpstream())
	defer server.Close()
	client := newAccuWeatherTestClient(t, server.URL, nil)

	_, err := client.CountryCode(context.Background(), "Atlantis")

	upErr := requireUpstreamError(t, err)
	assert.Equal(t, http.StatusNotFound, upErr.Status)
}

func TestLocationKey(t *testing.T) {
	tests := []struct {
		name    string
		city    string
		country string
		wantKey string
		wantURL string
	}{
		{name: "global search", city: "london", wantKey: "328328", wantURL: "/locations/v1/cities/search"},
		{name: "country scoped search", city: "berlin", country: "Germany", wantKey: "178087", wantURL: "/locations/v1/cities/DE/search"},
		{name: "unknown country falls back to global search", city: "berlin", country: "Atlantis", wantKey: "999999", wantURL: "/locations/v1/cities/search"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := newFakeUpstream()
			server := httptest.NewServer(fake)
			defer server.Close()
			client := newAccuWeatherTestClient(t, server.URL, nil)

			key, err := client.LocationKey(context.Background(), tt.city, tt.country)

			require.NoError(t, err)
			assert.Equal(t, tt.wantKey, key)
			paths := fake.requested()
			assert.Equal(t, tt.wantURL, paths[len(paths)-1])
		})
	}
}

func TestLocationKey_CountryLookupFailureAborts(t *testing.T) {
	fake := newFakeUpstream()
	fake.failCountries(http.StatusInternalServerError)
	server := httptest.NewServer(fake)
	defer server.Close()
	spy := &failureSpy{}
	client := newAccuWeatherTestClient(t, server.URL, spy)

	_, err := client.LocationKey(context.Background(), "berlin", "Germany")

	upErr := requireUpstreamError(t, err)
	assert.Equal(t, http.StatusInternalServerError, upErr.Status)
	assert.Equal(t, []string{"/countries/name/Germany"}, fake.requested(), "no location search after a failed country lookup")
	require.Len(t, spy.failures, 1)
	assert.Equal(t, recordedFailure{provider: ProviderRestCountries, endpoint: endpointCountries, status: http.StatusInternalServerError}, spy.failures[0])
}

func TestLocationKey_CountryFailuresDoNotTripWeatherBreaker(t *testing.T) {
	fake := newFakeUpstream()
	fake.failCountries(http.StatusServiceUnavailable)
	server := httptest.NewServer(fake)
	defer server.Close()
	client := newAccuWeatherTestClient(t, server.URL, nil)

	for i := 0; i < 8; i++ {
		_, err := client.LocationKey(context.Background(), "london", "Narnia")
		require.Error(t, err)
	}

	key, err := client.LocationKey(context.Background(), "london", "")
	require.NoError(t, err)
	assert.Equal(t, "328328", key)
	assert.NoError(t, client.Healthy(context.Background()))

	_, err = client.CountryCode(context.Background(), "Germany")
	upErr := requireUpstreamError(t, err)
	assert.Contains(t, upErr.Text(), "circuit breaker is open")
}

func TestLocationKey_UnknownCityIsNotFound(t *testing.T) {
	server := httptest.NewServer(newFakeUpstream())
	defer server.Close()
	spy := &failureSpy{}
	client := newAccuWeatherTestClient(t, server.URL, spy)

	_, err := client.LocationKey(context.Background(), "AxAzAy", "")

	upErr := requireUpstreamError(t, err)
	assert.Equal(t, http.StatusNotFound, upErr.Status)
	assert.Equal(t, "No location found for the city", upErr.Message)
	assert.Empty(t, spy.failures, "empty results are not upstream failures")
}

func TestLocationKey_UpstreamErrorBodyPropagates(t *testing.T) {
	server := httptest.NewServer(newFakeUpstream())
	defer server.Close()
	spy := &failureSpy{}
	client := NewAccuWeatherClient(newTestClient(t, DefaultRetryPolicy()), newTestClient(t, DefaultRetryPolicy()), AccuWeatherConfig{
		APIKey:       types.SecretString("wrong-key"),
		BaseURL:      server.URL,
		CountriesURL: server.URL + "/countries",
		Metrics:      spy,
		Logger:       testLogger(),
	})

	_, err := client.LocationKey(context.Background(), "london", "")

	upErr := requireUpstreamError(t, err)
	assert.Equal(t, http.StatusUnauthorized, upErr.Status)
	assert.Equal(t, "Api Authorization failed", upErr.Text())
	require.Len(t, spy.failures, 1)
	assert.Equal(t, recordedFailure{provider: ProviderAccuWeather, endpoint: endpointLocations, status: http.StatusUnauthorized}, spy.failures[0])
}

func TestDailyForecast_ReturnsFiveDays(t *testing.T) {
	server := httptest.NewServer(newFakeUpstream())
	defer server.Close()
	client := newAccuWeatherTestClient(t, server.URL, nil)

	days, err := client.DailyForecast(context.Background(), "london", "")

	require.NoError(t, err)
	require.Len(t, days, 5)
	assert.Equal(t, 40.0, days[0].MinTemp)
	assert.Equal(t, 60.0, days[0].MaxTemp)
	assert.Equal(t, "Sunny", days[0].DayCondition.IconPhrase)
	assert.True(t, days[0].NightCondition.HasPrecipitation)
	require.NotNil(t, days[0].NightCondition.PrecipitationType)
	assert.Equal(t, "Snow", *days[0].NightCondition.PrecipitationType)
	assert.True(t, days[0].Date.Before(days[4].Date))
}

func TestCurrentWeather_MapsFields(t *testing.T) {
	server := httptest.NewServer(newFakeUpstream())
	defer server.Close()
	client := newAccuWeatherTestClient(t, server.URL, nil)

	current, err := client.CurrentWeather(context.Background(), "berlin", "Germany")

	require.NoError(t, err)
	require.NotNil(t, current)
	assert.Equal(t, "Light rain", current.WeatherText)
	assert.Equal(t, 12.2, current.TemperatureC)
	assert.Equal(t, 54.0, current.TemperatureF)
	assert.False(t, current.IsDayTime)
	assert.True(t, current.HasPrecipitation)
	assert.Nil(t, current.PrecipitationIntensity)
	assert.Equal(t, 2024, current.Date.Year())
}

func TestCurrentWeather_EmptyConditionsIsNotFound(t *testing.T) {
	server := httptest.NewServer(newFakeUpstream())
	defer server.Close()
	spy := &failureSpy{}
	client := newAccuWeatherTestClient(t, server.URL, spy)

	current, err := client.CurrentWeather(context.Background(), "vostok", "")

	assert.Nil(t, current)
	upErr := requireUpstreamError(t, err)
	assert.Equal(t, http.StatusNotFound, upErr.Status)
	assert.Equal(t, "Can't get current weather data", upErr.Text())
	assert.Empty(t, spy.failures)
}

func TestFetchForecast_LookupFailureShortCircuits(t *testing.T) {
	fake := newFakeUpstream()
	server := httptest.NewServer(fake)
	defer server.Close()
	client := newAccuWeatherTestClient(t, server.URL, nil)

	_, err := client.FetchForecast(context.Background(), "nowhere", "")

	requireUpstreamError(t, err)
	for _, p := range fake.requested() {
		assert.NotContains(t, p, "/forecasts/", "forecast must not be requested without a location key")
	}
}

func TestDailyForecast_ServerErrorNormalized(t *testing.T) {
	fake := newFakeUpstream()
	fake.fail(http.StatusServiceUnavailable, `{"Message":"Service temporarily unavailable"}`)
	server := httptest.NewServer(fake)
	defer server.Close()
	spy := &failureSpy{}
	client := newAccuWeatherTestClient(t, server.URL, spy)

	_, err := client.DailyForecast(context.Background(), "london", "")

	upErr := requireUpstreamError(t, err)
	assert.Equal(t, http.StatusServiceUnavailable, upErr.Status)
	assert.Equal(t, "Service temporarily unavailable", upErr.Text())
	assert.Len(t, spy.failures, 1)
}

func TestDailyForecast_MalformedBody(t *testing.T) {
	fake := newFakeUpstream()
	fake.fail(http.StatusOK, `not json`)
	server := httptest.NewServer(fake)
	defer server.Close()
	client := newAccuWeatherTestClient(t, server.URL, nil)

	_, err := client.DailyForecast(context.Background(), "london", "")

	upErr := requireUpstreamError(t, err)
	assert.Equal(t, http.StatusBadGateway, upErr.Status)
}

func TestHealthy_ReportsOpenBreaker(t *testing.T) {
	fake := newFakeUpstream()
	fake.fail(http.StatusInternalServerError, `{}`)
	server := httptest.NewServer(fake)
	defer server.Close()
	client := newAccuWeatherTestClient(t, server.URL, nil)

	require.NoError(t, client.Healthy(context.Background()))

	for i := 0; i < 6; i++ {
		_, _ = client.DailyForecast(context.Background(), "london", "")
	}

	assert.Error(t, client.Healthy(context.Background()))
}

func TestDecodeMessage(t *testing.T) {
	assert.Equal(t, map[string]any{"Message": "x"}, decodeMessage([]byte(`{"Message":"x"}`)))
	assert.Equal(t, "plain text", decodeMessage([]byte(" plain text\n")))
}
