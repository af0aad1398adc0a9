package domain

import (
	"context"
	"sort"
	"strings"
	"time"
)

// FeedEntry is one item of the CAP alert RSS feed, as published.
type FeedEntry struct {
	Title       string
	Link        string
	Description string
	PubDate     string
	Event       string
	Severity    string
	AreaDesc    string
	Effective   string
	Onset       string
	Expires     string
	Headline    string
}

// AlertFeed lists the current alert feed entries.
type AlertFeed interface {
	FetchFeed(ctx context.Context) ([]FeedEntry, error)
}

// AlertDetails resolves an alert detail link to its structured place list
// (the CAP "Municipios" parameter).
type AlertDetails interface {
	FetchPlaces(ctx context.Context, link string) (string, error)
}

// AlertRecord is a feed entry enriched with its severity rank and the UF
// codes its text refers to.
type AlertRecord struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	Event        string    `json:"event"`
	Severity     string    `json:"severity"`
	SeverityRank int       `json:"severityRank"`
	Area         string    `json:"area"`
	Description  string    `json:"description"`
	Headline     string    `json:"headline"`
	Effective    string    `json:"effective"`
	Onset        string    `json:"onset"`
	Expires      string    `json:"expires"`
	Link         string    `json:"link"`
	States       []string  `json:"states"`
	EffectiveAt  time.Time `json:"-"`
}

// Severity levels on the CAP scale, ranked for sorting.
const (
	SeverityExtreme  = "Extreme"
	SeveritySevere   = "Severe"
	SeverityModerate = "Moderate"
	SeverityMinor    = "Minor"

	// SeverityUnknown labels entries with no severity code at all.
	SeverityUnknown = "—"
)

var severityRanks = map[string]int{
	"EXTREME":  4,
	"SEVERE":   3,
	"MODERATE": 2,
	"MINOR":    1,
}

var severityLabels = map[string]string{
	"EXTREME":  SeverityExtreme,
	"SEVERE":   SeveritySevere,
	"MODERATE": SeverityModerate,
	"MINOR":    SeverityMinor,
}

// ClassifySeverity translates a CAP severity code into its display label and
// rank. Unrecognized codes keep their raw text and rank 0.
func ClassifySeverity(code string) (label string, rank int) {
	key := strings.ToUpper(strings.TrimSpace(code))
	if l, ok := severityLabels[key]; ok {
		return l, severityRanks[key]
	}
	if strings.TrimSpace(code) == "" {
		return SeverityUnknown, 0
	}
	return strings.TrimSpace(code), 0
}

// effectiveLayouts covers CAP (RFC 3339) and RSS pubDate (RFC 1123) forms.
var effectiveLayouts = []string{
	time.RFC3339Nano,
	time.RFC1123Z,
	time.RFC1123,
	"2006-01-02T15:04:05-0700",
}

// ParseAlertTime parses a CAP or RSS timestamp.
func ParseAlertTime(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range effectiveLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

// ToAlertRecord maps a feed entry onto an AlertRecord. ok is false for a
// malformed entry that carries no title, event, or area text.
func ToAlertRecord(e FeedEntry) (AlertRecord, bool) {
	if strings.TrimSpace(e.Title) == "" && strings.TrimSpace(e.Event) == "" && strings.TrimSpace(e.AreaDesc) == "" {
		return AlertRecord{}, false
	}

	label, rank := ClassifySeverity(e.Severity)
	effective := e.Effective
	if strings.TrimSpace(effective) == "" {
		effective = e.PubDate
	}
	effectiveAt, _ := ParseAlertTime(effective)

	title := e.Title
	if title == "" {
		title = e.Event
	}

	return AlertRecord{
		ID:           e.Link,
		Title:        title,
		Event:        e.Event,
		Severity:     label,
		SeverityRank: rank,
		Area:         e.AreaDesc,
		Description:  e.Description,
		Headline:     e.Headline,
		Effective:    effective,
		Onset:        e.Onset,
		Expires:      e.Expires,
		Link:         e.Link,
		States:       MatchStates(strings.Join([]string{e.AreaDesc, e.Title, e.Description}, " ")),
		EffectiveAt:  effectiveAt,
	}, true
}

// HasState reports whether the alert was attributed to the UF code.
func (a AlertRecord) HasState(code string) bool {
	for _, s := range a.States {
		if s == code {
			return true
		}
	}
	return false
}

// SortAlerts orders alerts by severity rank, most severe first, then by
// effective instant, newest first.
func SortAlerts(alerts []AlertRecord) {
	sort.SliceStable(alerts, func(i, j int) bool {
		if alerts[i].SeverityRank != alerts[j].SeverityRank {
			return alerts[i].SeverityRank > alerts[j].SeverityRank
		}
		return alerts[i].EffectiveAt.After(alerts[j].EffectiveAt)
	})
}
