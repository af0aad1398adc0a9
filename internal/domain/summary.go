package domain

import (
	"strconv"
	"strings"
)

// FieldStats summarizes the non-null values of one measurement field. All
// pointers are nil when Count is zero.
type FieldStats struct {
	Count int
	Min   *float64
	Max   *float64
	Avg   *float64
	Sum   *float64
}

// Aggregate is the result of a range aggregation over readings.
type Aggregate struct {
	Count  int
	Fields map[Field]FieldStats
}

// Field returns the stats for f, zero-valued when absent.
func (a Aggregate) Field(f Field) FieldStats {
	return a.Fields[f]
}

// Summarize computes an Aggregate in memory. Stores that cannot push the
// computation down to the database use it, and it defines the expected
// semantics for those that can.
func Summarize(readings []Reading) Aggregate {
	agg := Aggregate{Count: len(readings), Fields: make(map[Field]FieldStats, len(MeasurementFields))}
	for _, f := range MeasurementFields {
		var st FieldStats
		var lo, hi, sum float64
		for _, r := range readings {
			v := r.Get(f)
			if v == nil {
				continue
			}
			if st.Count == 0 || *v < lo {
				lo = *v
			}
			if st.Count == 0 || *v > hi {
				hi = *v
			}
			sum += *v
			st.Count++
		}
		if st.Count > 0 {
			avg := sum / float64(st.Count)
			st.Min, st.Max, st.Avg, st.Sum = &lo, &hi, &avg, &sum
		}
		agg.Fields[f] = st
	}
	return agg
}

// DayStats are the civil-day statistics shown on the calendar view.
type DayStats struct {
	Count   int      `json:"count"`
	TMin    *float64 `json:"tMin"`
	TMax    *float64 `json:"tMax"`
	HAvg    *float64 `json:"hAvg"`
	PAvg    *float64 `json:"pAvg"`
	RainSum *float64 `json:"rainSum"`
	WindAvg *float64 `json:"windAvg"`
	WindMax *float64 `json:"windMax"`
}

// NewDayStats projects an aggregate onto the day summary fields.
func NewDayStats(a Aggregate) DayStats {
	return DayStats{
		Count:   a.Count,
		TMin:    a.Field(FieldTemperature).Min,
		TMax:    a.Field(FieldTemperature).Max,
		HAvg:    a.Field(FieldHumidity).Avg,
		PAvg:    a.Field(FieldPressure).Avg,
		RainSum: a.Field(FieldRainMM).Sum,
		WindAvg: a.Field(FieldWindMS).Avg,
		WindMax: a.Field(FieldWindMS).Max,
	}
}

// DaySummary is the derived view of one civil day.
type DaySummary struct {
	Day     string   `json:"day"`
	Weekday string   `json:"weekday"`
	Sunrise string   `json:"sunrise"`
	Sunset  string   `json:"sunset"`
	Stats   DayStats `json:"stats"`
}

// TodayStats are the bounds shown on the home cards.
type TodayStats struct {
	Count int      `json:"count"`
	TMin  *float64 `json:"tMin"`
	TMax  *float64 `json:"tMax"`
	HMin  *float64 `json:"hMin"`
	HMax  *float64 `json:"hMax"`
}

// WindTotals is the rolling wind aggregate.
type WindTotals struct {
	Total *float64 `json:"total"`
	Count int      `json:"count"`
	Avg   *float64 `json:"avg"`
}

// RainTotals is the rolling rain aggregate.
type RainTotals struct {
	Sum *float64 `json:"sum"`
}

// HomeSummary is the landing page snapshot.
type HomeSummary struct {
	Last       *Reading   `json:"last"`
	Today      TodayStats `json:"today"`
	Wind24h    WindTotals `json:"wind24h"`
	Rain24h    RainTotals `json:"rain24h"`
	Sunrise    string     `json:"sunrise"`
	Sunset     string     `json:"sunset"`
	IsDaylight *bool      `json:"isDaylight"`
}

// SunPlaceholder is shown when sunrise or sunset could not be obtained.
const SunPlaceholder = "—:—"

// SunTimes holds local "HH:MM" labels for one day.
type SunTimes struct {
	Sunrise string `json:"sunrise"`
	Sunset  string `json:"sunset"`
}

// PlaceholderSunTimes is the degraded value used when the lookup fails.
func PlaceholderSunTimes() SunTimes {
	return SunTimes{Sunrise: SunPlaceholder, Sunset: SunPlaceholder}
}

// IsDaylight reports whether nowMinute falls in [sunrise, sunset). ok is
// false when either label is not a valid HH:MM.
func (s SunTimes) IsDaylight(nowMinute int) (daylight, ok bool) {
	rise, ok1 := parseClockLabel(s.Sunrise)
	set, ok2 := parseClockLabel(s.Sunset)
	if !ok1 || !ok2 {
		return false, false
	}
	return rise <= nowMinute && nowMinute < set, true
}

func parseClockLabel(label string) (int, bool) {
	hh, mm, found := strings.Cut(label, ":")
	if !found {
		return 0, false
	}
	h, err := strconv.Atoi(hh)
	if err != nil || h < 0 || h > 23 {
		return 0, false
	}
	m, err := strconv.Atoi(mm)
	if err != nil || m < 0 || m > 59 {
		return 0, false
	}
	return h*60 + m, true
}
