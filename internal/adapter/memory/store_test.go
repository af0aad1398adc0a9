package memory

import (
	"context"
	"testing"
	"time"

	"github.com/couchcryptid/weather-station-api/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var base = time.Date(2025, time.August, 23, 12, 0, 0, 0, time.UTC)

func f(v float64) *float64 { return &v }

func seed(t *testing.T, s *Store, offsets ...time.Duration) []domain.Reading {
	t.Helper()
	out := make([]domain.Reading, 0, len(offsets))
	for i, off := range offsets {
		r, created, err := s.Insert(context.Background(), domain.Reading{
			DeviceID:    "esp32-001",
			Timestamp:   base.Add(off),
			Temperature: f(20 + float64(i)),
			Humidity:    f(50),
		})
		require.NoError(t, err)
		require.True(t, created)
		out = append(out, r)
	}
	return out
}

func TestStore_ListMostRecentFirst(t *testing.T) {
	s := NewStore()
	// Inserted out of timestamp order.
	seed(t, s, 2*time.Hour, -time.Hour, 5*time.Hour, 0)

	got, err := s.List(context.Background(), domain.ReadingFilter{Limit: 1})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, base.Add(5*time.Hour), got[0].Timestamp)

	asc, err := s.List(context.Background(), domain.ReadingFilter{Limit: 10, Order: domain.SortAsc})
	require.NoError(t, err)
	require.Len(t, asc, 4)
	assert.Equal(t, base.Add(-time.Hour), asc[0].Timestamp)
}

func TestStore_ListInclusiveBounds(t *testing.T) {
	s := NewStore()
	seed(t, s, 0, time.Hour, 2*time.Hour)

	from, to := base, base.Add(time.Hour)
	got, err := s.List(context.Background(), domain.ReadingFilter{From: &from, To: &to, Limit: 10})
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestStore_IdempotentInsert(t *testing.T) {
	s := NewStore()
	r := domain.Reading{DeviceID: "esp32-001", Timestamp: base, Temperature: f(20), Humidity: f(50), IdempotencyKey: "k1"}

	first, created, err := s.Insert(context.Background(), r)
	require.NoError(t, err)
	assert.True(t, created)

	second, created, err := s.Insert(context.Background(), r)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, second.ID)

	all, err := s.List(context.Background(), domain.ReadingFilter{Limit: 10})
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestStore_UpdateAndDelete(t *testing.T) {
	s := NewStore()
	rs := seed(t, s, 0)
	id := rs[0].ID

	n, err := s.Update(context.Background(), id, domain.ReadingPatch{Values: map[domain.Field]*float64{domain.FieldTemperature: f(30)}})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = s.Update(context.Background(), id, domain.ReadingPatch{Values: map[domain.Field]*float64{domain.FieldTemperature: f(30)}})
	require.NoError(t, err)
	assert.Equal(t, int64(0), n, "unchanged values modify nothing")

	n, err = s.Delete(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, err = s.Delete(context.Background(), id)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = s.Update(context.Background(), id, domain.ReadingPatch{Values: map[domain.Field]*float64{domain.FieldTemperature: f(1)}})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestStore_InvalidID(t *testing.T) {
	s := NewStore()
	_, err := s.Delete(context.Background(), "not-an-id")
	assert.ErrorIs(t, err, domain.ErrInvalidID)
}

func TestStore_AggregateExclusiveEnd(t *testing.T) {
	s := NewStore()
	seed(t, s, 0, time.Hour, 24*time.Hour)

	agg, err := s.Aggregate(context.Background(), domain.TimeRange{Start: base, End: base.Add(24 * time.Hour)}, "")
	require.NoError(t, err)
	assert.Equal(t, 2, agg.Count)
	assert.Equal(t, 21.0, *agg.Field(domain.FieldTemperature).Max)
}
