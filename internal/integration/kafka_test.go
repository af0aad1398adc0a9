//go:build integration

package integration_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	kafkaadapter "github.com/couchcryptid/weather-station-api/internal/adapter/kafka"
	"github.com/couchcryptid/weather-station-api/internal/domain"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testTopic = "weather-readings-test"

func TestWriter_PublishReadingEvent(t *testing.T) {
	ctx := testContext(t)
	broker := startKafka(ctx, t)
	createTopic(t, broker, testTopic)

	writer := kafkaadapter.NewWriter([]string{broker}, testTopic, slog.New(slog.NewTextHandler(io.Discard, nil)))
	t.Cleanup(func() { _ = writer.Close() })

	ts := time.Date(2025, time.August, 23, 13, 0, 0, 0, time.UTC)
	event := domain.NewReadingEvent(domain.Reading{
		ID:          "66c8a1f0e4b0a1b2c3d4e5f6",
		DeviceID:    "esp32-001",
		Timestamp:   ts,
		Temperature: ptr(21.5),
		Humidity:    ptr(60),
	}, ts.Add(time.Second))
	require.NoError(t, writer.Publish(ctx, event))

	consumer := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:   []string{broker},
		Topic:     testTopic,
		Partition: 0,
		MinBytes:  1,
		MaxBytes:  1 << 20,
	})
	t.Cleanup(func() { _ = consumer.Close() })

	readCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	msg, err := consumer.ReadMessage(readCtx)
	require.NoError(t, err)

	assert.Equal(t, "esp32-001", string(msg.Key))
	headers := make(map[string]string, len(msg.Headers))
	for _, h := range msg.Headers {
		headers[h.Key] = string(h.Value)
	}
	assert.Equal(t, domain.EventReadingIngested, headers["event_type"])
	assert.Equal(t, "esp32-001", headers["device_id"])

	var got domain.ReadingEvent
	require.NoError(t, json.Unmarshal(msg.Value, &got))
	assert.Equal(t, event.Reading.ID, got.Reading.ID)
	assert.Equal(t, 21.5, *got.Reading.Temperature)
}
