package domain

import "context"

// ForecastHour is one hourly forecast point in station-local time.
type ForecastHour struct {
	ISO         string   `json:"iso"`
	HourLabel   string   `json:"hourLabel"`
	Temperature *float64 `json:"temperature"`
	Humidity    *float64 `json:"humidity"`
}

// ForecastDay is one day of the weekly outlook.
type ForecastDay struct {
	Date        string   `json:"date"`
	TMax        *float64 `json:"tMax"`
	TMin        *float64 `json:"tMin"`
	WeatherCode *int     `json:"weathercode"`
}

// CompareRow pairs the forecast temperature for a local hour with the
// average measured by the station during that hour.
type CompareRow struct {
	Hour     int      `json:"hour"`
	Label    string   `json:"label"`
	Forecast *float64 `json:"forecast"`
	Measured *float64 `json:"measured"`
}

// Forecaster provides forecast and astronomical data for the station site.
type Forecaster interface {
	SunTimes(ctx context.Context, date CivilDate) (SunTimes, error)
	Hourly(ctx context.Context, date CivilDate) ([]ForecastHour, error)
	Daily(ctx context.Context, days int) ([]ForecastDay, error)
}
