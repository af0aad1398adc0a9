package domain

import (
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func saoPaulo(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("America/Sao_Paulo")
	require.NoError(t, err)
	return loc
}

func TestParseCivilDate(t *testing.T) {
	d, err := ParseCivilDate("2025-08-23")
	require.NoError(t, err)
	assert.Equal(t, CivilDate{Year: 2025, Month: time.August, Day: 23}, d)
	assert.Equal(t, "2025-08-23", d.String())

	for _, bad := range []string{"", "2025-8-23", "23/08/2025", "2025-02-30", "2025-08-23T00:00:00Z"} {
		_, err := ParseCivilDate(bad)
		assert.ErrorIs(t, err, ErrInvalidTimestamp, bad)
	}
}

func TestCivilDate_AddDays(t *testing.T) {
	d := CivilDate{Year: 2024, Month: time.December, Day: 31}
	assert.Equal(t, CivilDate{Year: 2025, Month: time.January, Day: 1}, d.AddDays(1))
	assert.Equal(t, CivilDate{Year: 2024, Month: time.December, Day: 30}, d.AddDays(-1))
	assert.Equal(t, CivilDate{Year: 2024, Month: time.February, Day: 29}, CivilDate{Year: 2024, Month: time.March, Day: 1}.AddDays(-1))
}

func TestCivilMidnight(t *testing.T) {
	loc := saoPaulo(t)
	got := CivilMidnight(CivilDate{Year: 2025, Month: time.August, Day: 23}, loc)
	assert.Equal(t, time.Date(2025, time.August, 23, 3, 0, 0, 0, time.UTC), got)
	assert.Equal(t, time.UTC, got.Location())
}

func TestCivilDayRange(t *testing.T) {
	loc := saoPaulo(t)
	d := CivilDate{Year: 2025, Month: time.August, Day: 23}

	r := CivilDayRange(d, loc)
	next := CivilDayRange(d.AddDays(1), loc)

	assert.Equal(t, 24*time.Hour, next.Start.Sub(r.Start))
	assert.Equal(t, next.Start, r.End)
	assert.False(t, r.EndInclusive)

	t.Run("midnight belongs to exactly one day", func(t *testing.T) {
		assert.False(t, r.Contains(r.End))
		assert.True(t, next.Contains(r.End))
	})

	t.Run("server zone does not matter", func(t *testing.T) {
		// 01:30 UTC on the 24th is still the 23rd in Sao Paulo.
		late := time.Date(2025, time.August, 24, 1, 30, 0, 0, time.UTC)
		assert.True(t, r.Contains(late))
		assert.False(t, next.Contains(late))
	})
}

func TestCivilDayRange_ConsecutiveDaysAre24hApart(t *testing.T) {
	loc := saoPaulo(t)
	d := CivilDate{Year: 2025, Month: time.January, Day: 1}
	for i := 0; i < 365; i++ {
		cur := CivilDayRange(d, loc)
		next := CivilDayRange(d.AddDays(1), loc)
		require.Equal(t, 24*time.Hour, next.Start.Sub(cur.Start), d.String())
		d = d.AddDays(1)
	}
}

func TestTodayInZone(t *testing.T) {
	loc := saoPaulo(t)
	now := time.Date(2025, time.August, 24, 2, 59, 0, 0, time.UTC)
	assert.Equal(t, CivilDate{Year: 2025, Month: time.August, Day: 23}, TodayInZone(now, loc))

	now = time.Date(2025, time.August, 24, 3, 0, 0, 0, time.UTC)
	assert.Equal(t, CivilDate{Year: 2025, Month: time.August, Day: 24}, TodayInZone(now, loc))
}

func TestRollingWindow(t *testing.T) {
	now := time.Date(2025, time.August, 23, 15, 0, 0, 0, time.UTC)
	w := RollingWindow(now, 24)

	assert.True(t, w.Contains(now), "end is inclusive")
	assert.True(t, w.Contains(now.Add(-24*time.Hour+time.Second)))
	assert.True(t, w.Contains(now.Add(-24*time.Hour)))
	assert.False(t, w.Contains(now.Add(-24*time.Hour-time.Second)))
	assert.False(t, w.Contains(now.Add(time.Second)))
}

func TestRecencyRange(t *testing.T) {
	loc := saoPaulo(t)
	now := time.Date(2025, time.August, 23, 15, 0, 0, 0, time.UTC) // 12:00 local
	r := RecencyRange(now, loc)

	assert.Equal(t, time.Date(2025, time.August, 22, 3, 0, 0, 0, time.UTC), r.Start)
	assert.Equal(t, time.Date(2025, time.August, 24, 3, 0, 0, 0, time.UTC), r.End)
	assert.True(t, r.Contains(time.Date(2025, time.August, 24, 2, 59, 59, 0, time.UTC)))
	assert.False(t, r.Contains(time.Date(2025, time.August, 22, 2, 59, 59, 0, time.UTC)))
}

func TestMinuteOfDay(t *testing.T) {
	loc := saoPaulo(t)
	assert.Equal(t, 6*60+15, MinuteOfDay(time.Date(2025, time.August, 23, 9, 15, 0, 0, time.UTC), loc))
}

func TestWeekdayName(t *testing.T) {
	assert.Equal(t, "sábado", WeekdayName(CivilDate{Year: 2025, Month: time.August, Day: 23}))
	assert.Equal(t, "domingo", WeekdayName(CivilDate{Year: 2025, Month: time.August, Day: 24}))
}
