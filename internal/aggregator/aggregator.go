// Package aggregator derives the day, home and forecast comparison views from
// stored readings and the forecast source, anchored on the station's civil
// timezone.
package aggregator

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/couchcryptid/weather-station-api/internal/domain"
	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/errgroup"
)

// Aggregator answers the read-side summary queries.
type Aggregator struct {
	store      domain.ReadingStore
	forecaster domain.Forecaster
	clock      clockwork.Clock
	loc        *time.Location
	logger     *slog.Logger
}

// New creates an Aggregator. loc is the station's civil timezone.
func New(store domain.ReadingStore, forecaster domain.Forecaster, clock clockwork.Clock, loc *time.Location, logger *slog.Logger) *Aggregator {
	return &Aggregator{
		store:      store,
		forecaster: forecaster,
		clock:      clock,
		loc:        loc,
		logger:     logger,
	}
}

// Today returns the current civil date at the station.
func (a *Aggregator) Today() domain.CivilDate {
	return domain.TodayInZone(a.clock.Now(), a.loc)
}

// DaySummary aggregates every device's readings for one civil day. A sun
// lookup failure degrades to placeholder labels.
func (a *Aggregator) DaySummary(ctx context.Context, date domain.CivilDate) (domain.DaySummary, error) {
	var (
		agg domain.Aggregate
		sun domain.SunTimes
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		agg, err = a.store.Aggregate(gctx, domain.CivilDayRange(date, a.loc), "")
		if err != nil {
			return fmt.Errorf("aggregate day %s: %w", date, err)
		}
		return nil
	})
	g.Go(func() error {
		sun, _ = a.sunTimes(gctx, date)
		return nil
	})
	if err := g.Wait(); err != nil {
		return domain.DaySummary{}, err
	}

	return domain.DaySummary{
		Day:     date.String(),
		Weekday: domain.WeekdayName(date),
		Sunrise: sun.Sunrise,
		Sunset:  sun.Sunset,
		Stats:   domain.NewDayStats(agg),
	}, nil
}

// HomeSummary builds the landing snapshot: latest reading, today's bounds,
// rolling 24h wind and rain, and whether it is currently daylight.
func (a *Aggregator) HomeSummary(ctx context.Context) (domain.HomeSummary, error) {
	now := a.clock.Now()
	today := domain.TodayInZone(now, a.loc)

	var (
		last     []domain.Reading
		todayAgg domain.Aggregate
		rolling  domain.Aggregate
		sun      domain.SunTimes
		sunOK    bool
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		last, err = a.store.List(gctx, domain.ReadingFilter{Limit: 1, Order: domain.SortDesc})
		if err != nil {
			return fmt.Errorf("latest reading: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		todayAgg, err = a.store.Aggregate(gctx, domain.CivilDayRange(today, a.loc), "")
		if err != nil {
			return fmt.Errorf("aggregate today: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		rolling, err = a.store.Aggregate(gctx, domain.RollingWindow(now, 24), "")
		if err != nil {
			return fmt.Errorf("aggregate last 24h: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		sun, sunOK = a.sunTimes(gctx, today)
		return nil
	})
	if err := g.Wait(); err != nil {
		return domain.HomeSummary{}, err
	}

	temp := todayAgg.Field(domain.FieldTemperature)
	hum := todayAgg.Field(domain.FieldHumidity)
	wind := rolling.Field(domain.FieldWindMS)

	out := domain.HomeSummary{
		Today: domain.TodayStats{
			Count: todayAgg.Count,
			TMin:  temp.Min,
			TMax:  temp.Max,
			HMin:  hum.Min,
			HMax:  hum.Max,
		},
		Wind24h: domain.WindTotals{
			Total: wind.Sum,
			Count: wind.Count,
			Avg:   wind.Avg,
		},
		Rain24h: domain.RainTotals{Sum: rolling.Field(domain.FieldRainMM).Sum},
		Sunrise: sun.Sunrise,
		Sunset:  sun.Sunset,
	}
	if len(last) > 0 {
		out.Last = &last[0]
	}
	if sunOK {
		if daylight, ok := sun.IsDaylight(domain.MinuteOfDay(now, a.loc)); ok {
			out.IsDaylight = &daylight
		}
	}
	return out, nil
}

// ListReadings returns readings matching filter. A zero limit takes the
// default; any other limit is clamped to [1, MaxListLimit].
func (a *Aggregator) ListReadings(ctx context.Context, filter domain.ReadingFilter) ([]domain.Reading, error) {
	if filter.Limit == 0 {
		filter.Limit = domain.DefaultListLimit
	}
	filter.Limit = domain.ClampLimit(filter.Limit)

	readings, err := a.store.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list readings: %w", err)
	}
	return readings, nil
}

// DayReadings returns every reading of one civil day in ascending order,
// up to MaxListLimit.
func (a *Aggregator) DayReadings(ctx context.Context, date domain.CivilDate) ([]domain.Reading, error) {
	tr := domain.CivilDayRange(date, a.loc)
	to := tr.End.Add(-time.Nanosecond)
	readings, err := a.store.List(ctx, domain.ReadingFilter{
		From:  &tr.Start,
		To:    &to,
		Limit: domain.MaxListLimit,
		Order: domain.SortAsc,
	})
	if err != nil {
		return nil, fmt.Errorf("readings for %s: %w", date, err)
	}
	return readings, nil
}

// Forecast returns the hourly forecast for date.
func (a *Aggregator) Forecast(ctx context.Context, date domain.CivilDate) ([]domain.ForecastHour, error) {
	hours, err := a.forecaster.Hourly(ctx, date)
	if err != nil {
		return nil, fmt.Errorf("hourly forecast %s: %w", date, err)
	}
	return hours, nil
}

// WeeklyForecast returns the daily outlook for the next days days.
func (a *Aggregator) WeeklyForecast(ctx context.Context, days int) ([]domain.ForecastDay, error) {
	out, err := a.forecaster.Daily(ctx, days)
	if err != nil {
		return nil, fmt.Errorf("daily forecast: %w", err)
	}
	return out, nil
}

// ForecastComparison pairs each local hour's forecast temperature with the
// average temperature measured in that hour. A forecast failure leaves the
// forecast column empty.
func (a *Aggregator) ForecastComparison(ctx context.Context, date domain.CivilDate) ([]domain.CompareRow, error) {
	var (
		readings []domain.Reading
		hours    []domain.ForecastHour
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		readings, err = a.DayReadings(gctx, date)
		return err
	})
	g.Go(func() error {
		var err error
		hours, err = a.forecaster.Hourly(gctx, date)
		if err != nil {
			a.logger.Warn("forecast unavailable for comparison", "date", date.String(), "error", err)
			hours = nil
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var forecast [24]*float64
	for _, h := range hours {
		if hour, ok := forecastHour(h.ISO); ok {
			forecast[hour] = h.Temperature
		}
	}

	var sums [24]float64
	var counts [24]int
	for _, r := range readings {
		if r.Temperature == nil {
			continue
		}
		hour := r.Timestamp.In(a.loc).Hour()
		sums[hour] += *r.Temperature
		counts[hour]++
	}

	rows := make([]domain.CompareRow, 24)
	for h := range rows {
		rows[h] = domain.CompareRow{
			Hour:     h,
			Label:    fmt.Sprintf("%02d:00", h),
			Forecast: forecast[h],
		}
		if counts[h] > 0 {
			avg := sums[h] / float64(counts[h])
			rows[h].Measured = &avg
		}
	}
	return rows, nil
}

// sunTimes looks up sunrise and sunset, logging and substituting the
// placeholder on failure.
func (a *Aggregator) sunTimes(ctx context.Context, date domain.CivilDate) (domain.SunTimes, bool) {
	sun, err := a.forecaster.SunTimes(ctx, date)
	if err != nil {
		a.logger.Warn("sun times unavailable, using placeholder", "date", date.String(), "error", err)
		return domain.PlaceholderSunTimes(), false
	}
	return sun, true
}

// forecastHour reads HH from a local "YYYY-MM-DDTHH:MM" string.
func forecastHour(iso string) (int, bool) {
	if len(iso) < 13 {
		return 0, false
	}
	h, err := strconv.Atoi(iso[11:13])
	if err != nil || h < 0 || h > 23 {
		return 0, false
	}
	return h, true
}
