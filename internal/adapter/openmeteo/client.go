// Package openmeteo reads sunrise, sunset and forecast data for the station
// site from the Open-Meteo forecast API.
package openmeteo

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/couchcryptid/weather-station-api/internal/adapter/upstream"
	"github.com/couchcryptid/weather-station-api/internal/domain"
)

// Site locates the forecast. Timezone is an IANA name; Open-Meteo returns
// local wall-clock strings in it.
type Site struct {
	Latitude  float64
	Longitude float64
	Timezone  string
}

// Client implements domain.Forecaster.
type Client struct {
	fetcher upstream.Fetcher
	baseURL string
	site    Site
}

// NewClient creates an Open-Meteo client for site.
func NewClient(fetcher upstream.Fetcher, baseURL string, site Site) *Client {
	return &Client{
		fetcher: fetcher,
		baseURL: strings.TrimRight(baseURL, "/"),
		site:    site,
	}
}

// SunTimes returns local "HH:MM" sunrise and sunset labels for date.
func (c *Client) SunTimes(ctx context.Context, date domain.CivilDate) (domain.SunTimes, error) {
	params := c.params()
	params.Set("daily", "sunrise,sunset")
	params.Set("start_date", date.String())
	params.Set("end_date", date.String())

	var resp response
	if err := c.get(ctx, params, &resp); err != nil {
		return domain.SunTimes{}, err
	}
	if len(resp.Daily.Sunrise) == 0 || len(resp.Daily.Sunset) == 0 {
		return domain.SunTimes{}, fmt.Errorf("open-meteo: no sun data for %s: %w", date, domain.ErrUpstreamError)
	}

	rise, ok1 := clockLabel(resp.Daily.Sunrise[0])
	set, ok2 := clockLabel(resp.Daily.Sunset[0])
	if !ok1 || !ok2 {
		return domain.SunTimes{}, fmt.Errorf("open-meteo: malformed sun times %q %q: %w",
			resp.Daily.Sunrise[0], resp.Daily.Sunset[0], domain.ErrUpstreamError)
	}
	return domain.SunTimes{Sunrise: rise, Sunset: set}, nil
}

// Hourly returns the hourly temperature and humidity forecast for date.
func (c *Client) Hourly(ctx context.Context, date domain.CivilDate) ([]domain.ForecastHour, error) {
	params := c.params()
	params.Set("hourly", "temperature_2m,relative_humidity_2m")
	params.Set("start_date", date.String())
	params.Set("end_date", date.String())

	var resp response
	if err := c.get(ctx, params, &resp); err != nil {
		return nil, err
	}

	h := resp.Hourly
	hours := make([]domain.ForecastHour, 0, len(h.Time))
	for i, iso := range h.Time {
		label := ""
		if len(iso) >= 13 {
			label = iso[11:13] + ":00"
		}
		hours = append(hours, domain.ForecastHour{
			ISO:         iso,
			HourLabel:   label,
			Temperature: at(h.Temperature, i),
			Humidity:    at(h.Humidity, i),
		})
	}
	return hours, nil
}

// Daily returns the outlook for the next days days, today included.
func (c *Client) Daily(ctx context.Context, days int) ([]domain.ForecastDay, error) {
	params := c.params()
	params.Set("daily", "temperature_2m_max,temperature_2m_min,weathercode")
	params.Set("forecast_days", strconv.Itoa(days))

	var resp response
	if err := c.get(ctx, params, &resp); err != nil {
		return nil, err
	}

	d := resp.Daily
	out := make([]domain.ForecastDay, 0, len(d.Time))
	for i, date := range d.Time {
		day := domain.ForecastDay{
			Date: date,
			TMax: at(d.TempMax, i),
			TMin: at(d.TempMin, i),
		}
		if i < len(d.WeatherCode) {
			day.WeatherCode = d.WeatherCode[i]
		}
		out = append(out, day)
	}
	return out, nil
}

func (c *Client) params() url.Values {
	return url.Values{
		"latitude":  {strconv.FormatFloat(c.site.Latitude, 'f', -1, 64)},
		"longitude": {strconv.FormatFloat(c.site.Longitude, 'f', -1, 64)},
		"timezone":  {c.site.Timezone},
	}
}

func (c *Client) get(ctx context.Context, params url.Values, out any) error {
	body, err := c.fetcher.Get(ctx, c.baseURL+"/v1/forecast?"+params.Encode())
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode open-meteo response: %w: %w", domain.ErrUpstreamError, err)
	}
	return nil
}

// clockLabel extracts "HH:MM" from a local "YYYY-MM-DDTHH:MM" string.
func clockLabel(iso string) (string, bool) {
	if len(iso) < 16 || iso[10] != 'T' {
		return "", false
	}
	return iso[11:16], true
}

func at(values []*float64, i int) *float64 {
	if i < len(values) {
		return values[i]
	}
	return nil
}

// Open-Meteo API response types.

type response struct {
	Daily  daily  `json:"daily"`
	Hourly hourly `json:"hourly"`
}

type daily struct {
	Time        []string   `json:"time"`
	Sunrise     []string   `json:"sunrise"`
	Sunset      []string   `json:"sunset"`
	TempMax     []*float64 `json:"temperature_2m_max"`
	TempMin     []*float64 `json:"temperature_2m_min"`
	WeatherCode []*int     `json:"weathercode"`
}

type hourly struct {
	Time        []string   `json:"time"`
	Temperature []*float64 `json:"temperature_2m"`
	Humidity    []*float64 `json:"relative_humidity_2m"`
}
