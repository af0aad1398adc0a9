package alerts

import (
	"context"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/couchcryptid/weather-station-api/internal/domain"
	"github.com/couchcryptid/weather-station-api/internal/observability"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- mocks ---

type fakeFeed struct {
	entries []domain.FeedEntry
	err     error
}

func (f *fakeFeed) FetchFeed(context.Context) ([]domain.FeedEntry, error) {
	return f.entries, f.err
}

type fakeDetails struct {
	places   map[string]string
	failing  map[string]bool
	delay    time.Duration
	calls    atomic.Int32
	inFlight atomic.Int32
	maxSeen  atomic.Int32
}

func (f *fakeDetails) FetchPlaces(_ context.Context, link string) (string, error) {
	f.calls.Add(1)
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		seen := f.maxSeen.Load()
		if n <= seen || f.maxSeen.CompareAndSwap(seen, n) {
			break
		}
	}
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if f.failing[link] {
		return "", domain.ErrUpstreamTimeout
	}
	return f.places[link], nil
}

// 15:00 in São Paulo.
var now = time.Date(2025, time.August, 23, 18, 0, 0, 0, time.UTC)

func feedEntries() []domain.FeedEntry {
	return []domain.FeedEntry{
		{Title: "Chuvas Intensas", Link: "cap/1", Severity: "Moderate", AreaDesc: "São Paulo, Minas Gerais", Effective: "2025-08-23T10:15:00-03:00"},
		{Title: "Tempestade", Link: "cap/2", Severity: "Extreme", AreaDesc: "Estado de São Paulo", Effective: "2025-08-22T08:00:00-03:00"},
		{Title: "Ventos Costeiros", Link: "cap/3", Severity: "Severe", AreaDesc: "São Paulo", Effective: "2025-08-21T23:59:00-03:00"},
		{Title: "Acumulado de Chuva", Link: "cap/4", Severity: "Severe", AreaDesc: "Rio de Janeiro", Effective: "2025-08-23T06:00:00-03:00"},
		{},
		{Title: "Baixa Umidade", Link: "cap/6", Severity: "Minor", AreaDesc: "Nordeste", PubDate: "Sat, 23 Aug 2025 09:00:00 -0300"},
		{Title: "Geada", Link: "cap/7", Severity: "Severe", AreaDesc: "SP", Effective: "ontem"},
	}
}

func newFilter(t *testing.T, feed domain.AlertFeed, details domain.AlertDetails, fanout int) *Filter {
	t.Helper()
	loc, err := time.LoadLocation("America/Sao_Paulo")
	require.NoError(t, err)
	return New(feed, details, clockwork.NewFakeClockAt(now), loc,
		Options{FanoutLimit: fanout, DefaultState: "SP"},
		observability.NewMetricsForTesting(),
		slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func links(records []domain.AlertRecord) []string {
	out := make([]string, 0, len(records))
	for _, r := range records {
		out = append(out, r.Link)
	}
	return out
}

func TestAlerts_NoFilterAppliesRecencyAndSort(t *testing.T) {
	f := newFilter(t, &fakeFeed{entries: feedEntries()}, &fakeDetails{}, 4)

	got, err := f.Alerts(context.Background(), Query{})
	require.NoError(t, err)
	assert.Equal(t, []string{"cap/2", "cap/4", "cap/1", "cap/6"}, links(got))
	assert.Equal(t, domain.SeverityExtreme, got[0].Severity)
	assert.Equal(t, "Sat, 23 Aug 2025 09:00:00 -0300", got[3].Effective, "pubDate stands in for effective")
}

func TestAlerts_StateFilter(t *testing.T) {
	f := newFilter(t, &fakeFeed{entries: feedEntries()}, &fakeDetails{}, 4)

	got, err := f.Alerts(context.Background(), Query{State: " sp "})
	require.NoError(t, err)
	assert.Equal(t, []string{"cap/2", "cap/1"}, links(got))
	for _, r := range got {
		assert.Contains(t, r.States, "SP")
	}
}

func TestAlerts_RegionExpandsToStates(t *testing.T) {
	f := newFilter(t, &fakeFeed{entries: feedEntries()}, &fakeDetails{}, 4)

	got, err := f.Alerts(context.Background(), Query{State: "CE"})
	require.NoError(t, err)
	assert.Equal(t, []string{"cap/6"}, links(got))
}

func TestAlerts_CityFilterUsesDetailPlaces(t *testing.T) {
	details := &fakeDetails{
		places: map[string]string{
			"cap/1": "Catanduva - SP (3511102), Novo Horizonte - SP (3533502)",
			"cap/2": "Campinas - SP (3509502)",
			"cap/6": "Fortaleza - CE (2304400)",
		},
		failing: map[string]bool{"cap/4": true},
	}
	f := newFilter(t, &fakeFeed{entries: feedEntries()}, details, 4)

	got, err := f.Alerts(context.Background(), Query{City: "Catanduva"})
	require.NoError(t, err)
	assert.Equal(t, []string{"cap/1"}, links(got))
}

func TestAlerts_DetailFailureDropsOnlyThatAlert(t *testing.T) {
	details := &fakeDetails{
		places: map[string]string{
			"cap/1": "Catanduva - SP",
			"cap/2": "Catanduva - SP",
		},
		failing: map[string]bool{"cap/2": true},
	}
	f := newFilter(t, &fakeFeed{entries: feedEntries()}, details, 4)

	got, err := f.Alerts(context.Background(), Query{State: "SP", City: "catanduva"})
	require.NoError(t, err)
	assert.Equal(t, []string{"cap/1"}, links(got))
}

func TestAlerts_FanoutIsBounded(t *testing.T) {
	entries := make([]domain.FeedEntry, 0, 12)
	for i := range 12 {
		entries = append(entries, domain.FeedEntry{
			Title:     "Chuvas",
			Link:      "cap/" + string(rune('a'+i)),
			Severity:  "Minor",
			AreaDesc:  "São Paulo",
			Effective: "2025-08-23T10:00:00-03:00",
		})
	}
	details := &fakeDetails{delay: 10 * time.Millisecond}
	f := newFilter(t, &fakeFeed{entries: entries}, details, 2)

	_, err := f.Alerts(context.Background(), Query{City: "Catanduva"})
	require.NoError(t, err)
	assert.Equal(t, int32(12), details.calls.Load())
	assert.LessOrEqual(t, details.maxSeen.Load(), int32(2))
}

func TestAlerts_FeedFailureFails(t *testing.T) {
	f := newFilter(t, &fakeFeed{err: domain.ErrUpstreamTimeout}, &fakeDetails{}, 4)

	_, err := f.Alerts(context.Background(), Query{})
	assert.ErrorIs(t, err, domain.ErrUpstreamTimeout)
}

func TestAlerts_EmptyFeed(t *testing.T) {
	f := newFilter(t, &fakeFeed{}, &fakeDetails{}, 4)

	got, err := f.Alerts(context.Background(), Query{State: "SP", City: "Catanduva"})
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestNew_DefaultFanout(t *testing.T) {
	f := newFilter(t, &fakeFeed{}, &fakeDetails{}, 0)
	assert.Equal(t, DefaultFanoutLimit, f.fanout)
}
