package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/weather-station-api/internal/domain"
	kafkago "github.com/segmentio/kafka-go"
)

// Writer publishes reading events to a Kafka topic.
// It implements ingest.Publisher.
type Writer struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewWriter creates a Kafka producer for topic.
func NewWriter(brokers []string, topic string, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireAll,
		BatchTimeout: 10 * time.Millisecond,
	}
	logger.Info("kafka publisher configured", "brokers", brokers, "topic", topic)
	return &Writer{writer: w, logger: logger}
}

// Publish writes one event. Events are keyed by device so a device's
// readings stay ordered within a partition.
func (w *Writer) Publish(ctx context.Context, event domain.ReadingEvent) error {
	msg, err := serializeToMessage(event)
	if err != nil {
		return err
	}
	if err := w.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("write reading event: %w", err)
	}
	return nil
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// serializeToMessage marshals a ReadingEvent into a Kafka message.
func serializeToMessage(event domain.ReadingEvent) (kafkago.Message, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize reading event: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(event.Reading.DeviceID),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "event_type", Value: []byte(event.Type)},
			{Key: "device_id", Value: []byte(event.Reading.DeviceID)},
			{Key: "ingested_at", Value: []byte(event.IngestedAt.Format(time.RFC3339))},
		},
	}, nil
}
