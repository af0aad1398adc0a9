package openmeteo

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/couchcryptid/weather-station-api/internal/adapter/upstream"
	"github.com/couchcryptid/weather-station-api/internal/domain"
	"github.com/couchcryptid/weather-station-api/internal/observability"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var catanduva = Site{Latitude: -21.1383, Longitude: -48.9738, Timezone: "America/Sao_Paulo"}

func testClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	fetcher := upstream.NewClient("open-meteo", 5*time.Second,
		observability.NewMetricsForTesting(), slog.New(slog.NewTextHandler(io.Discard, nil)))
	return NewClient(fetcher, srv.URL+"/", catanduva)
}

func day(t *testing.T) domain.CivilDate {
	t.Helper()
	d, err := domain.ParseCivilDate("2025-08-23")
	require.NoError(t, err)
	return d
}

func TestClient_SunTimes(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "/v1/forecast", r.URL.Path)
		assert.Equal(t, "sunrise,sunset", q.Get("daily"))
		assert.Equal(t, "2025-08-23", q.Get("start_date"))
		assert.Equal(t, "2025-08-23", q.Get("end_date"))
		assert.Equal(t, "America/Sao_Paulo", q.Get("timezone"))
		assert.Equal(t, "-21.1383", q.Get("latitude"))
		_, _ = w.Write([]byte(`{"daily":{"time":["2025-08-23"],"sunrise":["2025-08-23T06:31"],"sunset":["2025-08-23T18:02"]}}`))
	})

	sun, err := c.SunTimes(context.Background(), day(t))
	require.NoError(t, err)
	assert.Equal(t, domain.SunTimes{Sunrise: "06:31", Sunset: "18:02"}, sun)
}

func TestClient_SunTimes_Empty(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"daily":{"time":[],"sunrise":[],"sunset":[]}}`))
	})

	_, err := c.SunTimes(context.Background(), day(t))
	assert.ErrorIs(t, err, domain.ErrUpstreamError)
}

func TestClient_SunTimes_APIError(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	})

	_, err := c.SunTimes(context.Background(), day(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")
}

func TestClient_Hourly(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "temperature_2m,relative_humidity_2m", r.URL.Query().Get("hourly"))
		_, _ = w.Write([]byte(`{"hourly":{
			"time":["2025-08-23T00:00","2025-08-23T01:00"],
			"temperature_2m":[18.4,null],
			"relative_humidity_2m":[71]}}`))
	})

	hours, err := c.Hourly(context.Background(), day(t))
	require.NoError(t, err)
	require.Len(t, hours, 2)

	assert.Equal(t, "00:00", hours[0].HourLabel)
	assert.Equal(t, "2025-08-23T00:00", hours[0].ISO)
	assert.Equal(t, 18.4, *hours[0].Temperature)
	assert.Equal(t, 71.0, *hours[0].Humidity)

	assert.Equal(t, "01:00", hours[1].HourLabel)
	assert.Nil(t, hours[1].Temperature)
	assert.Nil(t, hours[1].Humidity)
}

func TestClient_Daily(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "3", q.Get("forecast_days"))
		assert.Equal(t, "temperature_2m_max,temperature_2m_min,weathercode", q.Get("daily"))
		_, _ = w.Write([]byte(`{"daily":{
			"time":["2025-08-23","2025-08-24","2025-08-25"],
			"temperature_2m_max":[29.1,30.2,31.0],
			"temperature_2m_min":[15.0,16.1,null],
			"weathercode":[0,3,null]}}`))
	})

	days, err := c.Daily(context.Background(), 3)
	require.NoError(t, err)
	require.Len(t, days, 3)

	assert.Equal(t, "2025-08-24", days[1].Date)
	assert.Equal(t, 30.2, *days[1].TMax)
	assert.Equal(t, 3, *days[1].WeatherCode)
	assert.Nil(t, days[2].TMin)
	assert.Nil(t, days[2].WeatherCode)
}

func TestClient_MalformedJSON(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`<html>`))
	})

	_, err := c.Daily(context.Background(), 7)
	assert.ErrorIs(t, err, domain.ErrUpstreamError)
}

func TestClockLabel(t *testing.T) {
	l, ok := clockLabel("2025-08-23T06:31")
	assert.True(t, ok)
	assert.Equal(t, "06:31", l)

	_, ok = clockLabel("06:31")
	assert.False(t, ok)
}
