package mongo

import (
	"time"

	"github.com/couchcryptid/weather-station-api/internal/domain"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// document is the stored shape of a reading. Measurement pointers are
// written as BSON null when absent so the field is always present.
type document struct {
	ID             primitive.ObjectID `bson:"_id,omitempty"`
	DeviceID       string             `bson:"deviceId"`
	Timestamp      time.Time          `bson:"ts"`
	Temperature    *float64           `bson:"temperature"`
	TemperatureBMP *float64           `bson:"temperature_bmp"`
	Humidity       *float64           `bson:"humidity"`
	Pressure       *float64           `bson:"pressure"`
	RainMM         *float64           `bson:"rain_mm2"`
	RainCount      *float64           `bson:"rain_count"`
	WindMS         *float64           `bson:"wind_ms"`
	IdempotencyKey string             `bson:"idempotencyKey,omitempty"`
}

func toDocument(r domain.Reading) document {
	d := document{
		DeviceID:       r.DeviceID,
		Timestamp:      r.Timestamp.UTC(),
		Temperature:    r.Temperature,
		TemperatureBMP: r.TemperatureBMP,
		Humidity:       r.Humidity,
		Pressure:       r.Pressure,
		RainMM:         r.RainMM,
		RainCount:      r.RainCount,
		WindMS:         r.WindMS,
		IdempotencyKey: r.IdempotencyKey,
	}
	if oid, err := primitive.ObjectIDFromHex(r.ID); err == nil {
		d.ID = oid
	}
	return d
}

func (d document) toReading() domain.Reading {
	return domain.Reading{
		ID:             d.ID.Hex(),
		DeviceID:       d.DeviceID,
		Timestamp:      d.Timestamp.UTC(),
		Temperature:    d.Temperature,
		TemperatureBMP: d.TemperatureBMP,
		Humidity:       d.Humidity,
		Pressure:       d.Pressure,
		RainMM:         d.RainMM,
		RainCount:      d.RainCount,
		WindMS:         d.WindMS,
		IdempotencyKey: d.IdempotencyKey,
	}
}
