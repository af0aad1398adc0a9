// Package alerts selects the CAP weather alerts relevant to a state or city.
package alerts

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/couchcryptid/weather-station-api/internal/domain"
	"github.com/couchcryptid/weather-station-api/internal/observability"
	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/errgroup"
)

// DefaultFanoutLimit bounds concurrent CAP detail fetches.
const DefaultFanoutLimit = 4

// Query narrows the alert list. Both fields are optional.
type Query struct {
	State string
	City  string
}

// Options configure a Filter.
type Options struct {
	// FanoutLimit is the maximum number of detail documents fetched at once.
	FanoutLimit int
	// DefaultState is assumed for city matching when Query.State is empty.
	DefaultState string
}

// Filter turns the raw alert feed into a sorted, filtered list.
type Filter struct {
	feed         domain.AlertFeed
	details      domain.AlertDetails
	clock        clockwork.Clock
	loc          *time.Location
	fanout       int
	defaultState string
	metrics      *observability.Metrics
	logger       *slog.Logger
}

// New creates a Filter. loc is the civil timezone the recency window is
// anchored on.
func New(feed domain.AlertFeed, details domain.AlertDetails, clock clockwork.Clock, loc *time.Location, opts Options, metrics *observability.Metrics, logger *slog.Logger) *Filter {
	fanout := opts.FanoutLimit
	if fanout < 1 {
		fanout = DefaultFanoutLimit
	}
	return &Filter{
		feed:         feed,
		details:      details,
		clock:        clock,
		loc:          loc,
		fanout:       fanout,
		defaultState: strings.ToUpper(strings.TrimSpace(opts.DefaultState)),
		metrics:      metrics,
		logger:       logger,
	}
}

// Alerts returns the alerts matching q, most severe and most recent first.
// Only a failure to read the feed itself fails the call; a detail document
// that cannot be read drops its alert.
func (f *Filter) Alerts(ctx context.Context, q Query) ([]domain.AlertRecord, error) {
	entries, err := f.feed.FetchFeed(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch alert feed: %w", err)
	}

	records := make([]domain.AlertRecord, 0, len(entries))
	skipped := 0
	for _, e := range entries {
		rec, ok := domain.ToAlertRecord(e)
		if !ok {
			skipped++
			continue
		}
		records = append(records, rec)
	}
	if skipped > 0 {
		f.logger.Debug("skipped malformed feed entries", "count", skipped)
	}

	state := strings.ToUpper(strings.TrimSpace(q.State))
	if state != "" {
		records = keep(records, func(r domain.AlertRecord) bool { return r.HasState(state) })
	}

	if city := strings.TrimSpace(q.City); city != "" {
		placeState := state
		if placeState == "" {
			placeState = f.defaultState
		}
		records = f.filterByCity(ctx, records, city, placeState)
	}

	window := domain.RecencyRange(f.clock.Now(), f.loc)
	records = keep(records, func(r domain.AlertRecord) bool {
		return !r.EffectiveAt.IsZero() && window.Contains(r.EffectiveAt)
	})

	domain.SortAlerts(records)
	f.metrics.AlertsReturned.Observe(float64(len(records)))
	return records, nil
}

// filterByCity keeps the records whose CAP place list names the city. Each
// record's detail document is fetched with bounded concurrency.
func (f *Filter) filterByCity(ctx context.Context, records []domain.AlertRecord, city, state string) []domain.AlertRecord {
	matched := make([]bool, len(records))

	var g errgroup.Group
	g.SetLimit(f.fanout)
	for i, rec := range records {
		g.Go(func() error {
			if rec.Link == "" {
				return nil
			}
			places, err := f.details.FetchPlaces(ctx, rec.Link)
			if err != nil {
				f.logger.Warn("alert detail unavailable, dropping alert", "link", rec.Link, "error", err)
				return nil
			}
			matched[i] = domain.MatchesPlace(places, city, state)
			return nil
		})
	}
	_ = g.Wait()

	out := records[:0]
	for i, rec := range records {
		if matched[i] {
			out = append(out, rec)
		}
	}
	return out
}

func keep(records []domain.AlertRecord, pred func(domain.AlertRecord) bool) []domain.AlertRecord {
	out := records[:0]
	for _, r := range records {
		if pred(r) {
			out = append(out, r)
		}
	}
	return out
}
