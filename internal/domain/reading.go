package domain

import (
	"context"
	"time"
)

// Reading is one timestamped sample from a station device. Measurements the
// device did not report are nil, never zero.
type Reading struct {
	ID             string    `json:"_id,omitempty"`
	DeviceID       string    `json:"deviceId"`
	Timestamp      time.Time `json:"ts"`
	Temperature    *float64  `json:"temperature"`
	TemperatureBMP *float64  `json:"temperature_bmp"`
	Humidity       *float64  `json:"humidity"`
	Pressure       *float64  `json:"pressure"`
	RainMM         *float64  `json:"rain_mm2"`
	RainCount      *float64  `json:"rain_count"`
	WindMS         *float64  `json:"wind_ms"`
	IdempotencyKey string    `json:"idempotencyKey,omitempty"`
}

// Field names a numeric measurement. The values double as JSON and BSON keys.
type Field string

const (
	FieldTemperature    Field = "temperature"
	FieldTemperatureBMP Field = "temperature_bmp"
	FieldHumidity       Field = "humidity"
	FieldPressure       Field = "pressure"
	FieldRainMM         Field = "rain_mm2"
	FieldRainCount      Field = "rain_count"
	FieldWindMS         Field = "wind_ms"
)

// MeasurementFields lists every numeric field in storage order.
var MeasurementFields = []Field{
	FieldTemperature,
	FieldTemperatureBMP,
	FieldHumidity,
	FieldPressure,
	FieldRainMM,
	FieldRainCount,
	FieldWindMS,
}

// slot returns the measurement slot for f, or nil for an unknown field.
func (r *Reading) slot(f Field) **float64 {
	switch f {
	case FieldTemperature:
		return &r.Temperature
	case FieldTemperatureBMP:
		return &r.TemperatureBMP
	case FieldHumidity:
		return &r.Humidity
	case FieldPressure:
		return &r.Pressure
	case FieldRainMM:
		return &r.RainMM
	case FieldRainCount:
		return &r.RainCount
	case FieldWindMS:
		return &r.WindMS
	}
	return nil
}

// Get returns the measurement for f.
func (r Reading) Get(f Field) *float64 {
	if s := r.slot(f); s != nil {
		return *s
	}
	return nil
}

// Set replaces the measurement for f. Unknown fields are ignored.
func (r *Reading) Set(f Field, v *float64) {
	if s := r.slot(f); s != nil {
		*s = v
	}
}

// SortOrder selects the timestamp ordering of a listing.
type SortOrder int

const (
	SortDesc SortOrder = iota
	SortAsc
)

const (
	DefaultListLimit = 500
	MaxListLimit     = 5000
)

// ClampLimit bounds a requested listing size to [1, MaxListLimit].
func ClampLimit(n int) int {
	if n < 1 {
		return 1
	}
	if n > MaxListLimit {
		return MaxListLimit
	}
	return n
}

// ReadingFilter selects readings for a listing. From and To are inclusive.
type ReadingFilter struct {
	DeviceID string
	From     *time.Time
	To       *time.Time
	Limit    int
	Order    SortOrder
}

// Matches reports whether r satisfies the device and time bounds of f.
func (f ReadingFilter) Matches(r Reading) bool {
	if f.DeviceID != "" && r.DeviceID != f.DeviceID {
		return false
	}
	if f.From != nil && r.Timestamp.Before(*f.From) {
		return false
	}
	if f.To != nil && r.Timestamp.After(*f.To) {
		return false
	}
	return true
}

// ReadingPatch is a partial replacement of reading fields. A present key in
// Values with a nil value clears that measurement.
type ReadingPatch struct {
	DeviceID  *string
	Timestamp *time.Time
	Values    map[Field]*float64
}

// Empty reports whether the patch changes nothing.
func (p ReadingPatch) Empty() bool {
	return p.DeviceID == nil && p.Timestamp == nil && len(p.Values) == 0
}

// Apply writes the patch onto r.
func (p ReadingPatch) Apply(r *Reading) {
	if p.DeviceID != nil {
		r.DeviceID = *p.DeviceID
	}
	if p.Timestamp != nil {
		r.Timestamp = p.Timestamp.UTC()
	}
	for f, v := range p.Values {
		r.Set(f, v)
	}
}

// ReadingStore persists readings. Implementations translate driver failures
// into ErrStorageUnavailable or ErrUpstreamTimeout.
type ReadingStore interface {
	// Insert stores r and returns it with ID set. When r carries an
	// idempotency key that already exists, the stored reading is returned
	// with created=false and nothing is written.
	Insert(ctx context.Context, r Reading) (stored Reading, created bool, err error)

	// Update applies patch to the reading with the given id and returns the
	// number of modified records. ErrNotFound when no record has that id.
	Update(ctx context.Context, id string, patch ReadingPatch) (int64, error)

	// Delete removes the reading with the given id. ErrNotFound when absent.
	Delete(ctx context.Context, id string) (int64, error)

	// List returns readings matching the filter, sorted by timestamp.
	List(ctx context.Context, filter ReadingFilter) ([]Reading, error)

	// Aggregate computes per-field statistics over readings inside tr,
	// optionally restricted to one device.
	Aggregate(ctx context.Context, tr TimeRange, deviceID string) (Aggregate, error)
}
