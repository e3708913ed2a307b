package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/couchcryptid/incident-map/internal/config"
	"github.com/couchcryptid/incident-map/internal/domain"
)

// Writer publishes markers to the report topic.
// It implements pipeline.BatchLoader.
type Writer struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewWriter creates a Kafka producer for the configured report topic.
func NewWriter(cfg *config.Config, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:                   kafkago.TCP(cfg.KafkaBrokers...),
		Topic:                  cfg.KafkaTopic,
		Balancer:               &kafkago.Hash{},
		RequiredAcks:           kafkago.RequireAll,
		AllowAutoTopicCreation: true,
	}
	return &Writer{writer: w, logger: logger}
}

// LoadBatch serializes and publishes markers in a single WriteMessages call.
// Markers are keyed by ID so a re-import lands on the same partition.
func (w *Writer) LoadBatch(ctx context.Context, markers []domain.Marker) error {
	if len(markers) == 0 {
		return nil
	}
	msgs := make([]kafkago.Message, len(markers))
	for i := range markers {
		msg, err := serializeToMessage(markers[i], domain.Now())
		if err != nil {
			return err
		}
		msgs[i] = msg
	}
	if err := w.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("write markers: %w", err)
	}
	w.logger.Debug("markers published", "topic", w.writer.Topic, "count", len(msgs))
	return nil
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// serializeToMessage marshals a Marker into a Kafka message.
func serializeToMessage(m domain.Marker, publishedAt time.Time) (kafkago.Message, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize marker: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(m.ID),
		Value: data,
		Headers: []kafkago.Header{
			{Key: headerContentType, Value: []byte("application/json")},
			{Key: headerPublishedAt, Value: []byte(publishedAt.Format(time.RFC3339))},
		},
	}, nil
}
