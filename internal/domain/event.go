package domain

import "time"

// EventReadingIngested is the type of the event emitted after a reading is
// persisted.
const EventReadingIngested = "reading.ingested"

// ReadingEvent announces a newly stored reading to downstream consumers.
type ReadingEvent struct {
	Type       string    `json:"type"`
	Reading    Reading   `json:"reading"`
	IngestedAt time.Time `json:"ingestedAt"`
}

// NewReadingEvent wraps a stored reading in an ingestion event.
func NewReadingEvent(r Reading, at time.Time) ReadingEvent {
	return ReadingEvent{Type: EventReadingIngested, Reading: r, IngestedAt: at.UTC()}
}
