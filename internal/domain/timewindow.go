package domain

import (
	"fmt"
	"time"
)

// CivilDate is a calendar date in the station's civil timezone, independent
// of the server clock or UTC storage.
type CivilDate struct {
	Year  int
	Month time.Month
	Day   int
}

// ParseCivilDate parses a strict YYYY-MM-DD date.
func ParseCivilDate(s string) (CivilDate, error) {
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return CivilDate{}, fmt.Errorf("%w: date %q must be YYYY-MM-DD", ErrInvalidTimestamp, s)
	}
	return CivilDate{Year: t.Year(), Month: t.Month(), Day: t.Day()}, nil
}

func (d CivilDate) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, d.Month, d.Day)
}

// AddDays returns the date n days later (or earlier for negative n).
func (d CivilDate) AddDays(n int) CivilDate {
	t := time.Date(d.Year, d.Month, d.Day+n, 12, 0, 0, 0, time.UTC)
	return CivilDate{Year: t.Year(), Month: t.Month(), Day: t.Day()}
}

// Weekday returns the day of the week of d.
func (d CivilDate) Weekday() time.Weekday {
	return time.Date(d.Year, d.Month, d.Day, 12, 0, 0, 0, time.UTC).Weekday()
}

// TimeRange is a span of instants. Start is always inclusive; End is
// exclusive unless EndInclusive is set.
type TimeRange struct {
	Start        time.Time
	End          time.Time
	EndInclusive bool
}

// Contains reports whether t falls inside the range.
func (r TimeRange) Contains(t time.Time) bool {
	if t.Before(r.Start) {
		return false
	}
	if r.EndInclusive {
		return !t.After(r.End)
	}
	return t.Before(r.End)
}

// CivilMidnight returns the UTC instant of 00:00 local time on date in loc.
func CivilMidnight(date CivilDate, loc *time.Location) time.Time {
	return time.Date(date.Year, date.Month, date.Day, 0, 0, 0, 0, loc).UTC()
}

// CivilDayRange returns [midnight date, midnight date+1) in loc, as UTC.
func CivilDayRange(date CivilDate, loc *time.Location) TimeRange {
	return TimeRange{
		Start: CivilMidnight(date, loc),
		End:   CivilMidnight(date.AddDays(1), loc),
	}
}

// TodayInZone returns the civil date of now as observed in loc.
func TodayInZone(now time.Time, loc *time.Location) CivilDate {
	local := now.In(loc)
	return CivilDate{Year: local.Year(), Month: local.Month(), Day: local.Day()}
}

// RollingWindow returns [now-hours, now], anchored on the wall clock rather
// than on civil boundaries.
func RollingWindow(now time.Time, hours int) TimeRange {
	now = now.UTC()
	return TimeRange{
		Start:        now.Add(-time.Duration(hours) * time.Hour),
		End:          now,
		EndInclusive: true,
	}
}

// RecencyRange is the alert window: from yesterday's local midnight up to
// the end of today, local.
func RecencyRange(now time.Time, loc *time.Location) TimeRange {
	today := TodayInZone(now, loc)
	return TimeRange{
		Start: CivilMidnight(today.AddDays(-1), loc),
		End:   CivilMidnight(today.AddDays(1), loc),
	}
}

// MinuteOfDay returns the minutes elapsed since local midnight for t in loc.
func MinuteOfDay(t time.Time, loc *time.Location) int {
	local := t.In(loc)
	return local.Hour()*60 + local.Minute()
}

var weekdaysPT = [...]string{
	"domingo",
	"segunda-feira",
	"terça-feira",
	"quarta-feira",
	"quinta-feira",
	"sexta-feira",
	"sábado",
}

// WeekdayName returns the pt-BR weekday name used by the dashboard.
func WeekdayName(d CivilDate) string {
	return weekdaysPT[d.Weekday()]
}
