// Package kafka loads markers from, and publishes markers to, the report topic.
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	sharedretry "github.com/couchcryptid/storm-data-shared/retry"
	kafkago "github.com/segmentio/kafka-go"

	"github.com/couchcryptid/incident-map/internal/config"
	"github.com/couchcryptid/incident-map/internal/domain"
)

const (
	headerContentType = "content_type"
	headerPublishedAt = "published_at"
)

// Reader loads every marker currently on the report topic. It reads each
// partition from its first to its last offset at call time and does not
// commit offsets; the map is rebuilt from the full topic on every start.
type Reader struct {
	brokers     []string
	topic       string
	timeout     time.Duration
	maxAttempts int
	logger      *slog.Logger
}

// NewReader creates a Reader for the configured report topic.
func NewReader(cfg *config.Config, logger *slog.Logger) *Reader {
	return &Reader{
		brokers:     cfg.KafkaBrokers,
		topic:       cfg.KafkaTopic,
		timeout:     cfg.KafkaLoadTimeout,
		maxAttempts: 5,
		logger:      logger,
	}
}

// LoadAll reads the topic end to end. Messages that do not decode are logged
// and skipped.
func (r *Reader) LoadAll(ctx context.Context) ([]domain.Marker, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	partitions, err := r.partitions(ctx)
	if err != nil {
		return nil, err
	}

	markers := []domain.Marker{}
	skipped := 0
	for _, p := range partitions {
		got, bad, err := r.readPartition(ctx, p)
		if err != nil {
			return nil, fmt.Errorf("read partition %d: %w", p.ID, err)
		}
		markers = append(markers, got...)
		skipped += bad
	}

	r.logger.Info("markers loaded from kafka",
		"topic", r.topic,
		"partitions", len(partitions),
		"markers", len(markers),
		"skipped", skipped,
	)
	return markers, nil
}

// partitions lists the topic partitions, retrying while the brokers come up.
// Exponential backoff: start at 200ms, double each retry, cap at 5s.
func (r *Reader) partitions(ctx context.Context) ([]kafkago.Partition, error) {
	backoff := 200 * time.Millisecond
	maxBackoff := 5 * time.Second

	var lastErr error
	for attempt := 1; attempt <= r.maxAttempts; attempt++ {
		for _, broker := range r.brokers {
			conn, err := kafkago.DialContext(ctx, "tcp", broker)
			if err != nil {
				lastErr = err
				continue
			}
			partitions, err := conn.ReadPartitions(r.topic)
			_ = conn.Close()
			if err != nil {
				lastErr = err
				continue
			}
			return partitions, nil
		}
		r.logger.Warn("kafka metadata unavailable", "error", lastErr, "attempt", attempt)
		if attempt == r.maxAttempts || !sharedretry.SleepWithContext(ctx, backoff) {
			break
		}
		backoff = sharedretry.NextBackoff(backoff, maxBackoff)
	}
	if lastErr == nil {
		lastErr = errors.New("no brokers configured")
	}
	return nil, fmt.Errorf("list partitions of %s: %w", r.topic, lastErr)
}

func (r *Reader) readPartition(ctx context.Context, p kafkago.Partition) ([]domain.Marker, int, error) {
	first, last, err := r.offsets(ctx, p.ID)
	if err != nil {
		return nil, 0, err
	}
	if last <= first {
		return nil, 0, nil
	}

	kr := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:   r.brokers,
		Topic:     r.topic,
		Partition: p.ID,
		MinBytes:  1,
		MaxBytes:  10e6,
	})
	defer kr.Close()
	if err := kr.SetOffset(first); err != nil {
		return nil, 0, fmt.Errorf("seek: %w", err)
	}

	markers := make([]domain.Marker, 0, last-first)
	skipped := 0
	for {
		msg, err := kr.ReadMessage(ctx)
		if err != nil {
			return nil, 0, err
		}
		m, err := decodeMarker(msg)
		if err != nil {
			r.logger.Warn("skipping undecodable message",
				"error", err,
				"partition", msg.Partition,
				"offset", msg.Offset,
			)
			skipped++
		} else {
			markers = append(markers, m)
		}
		if msg.Offset >= last-1 {
			return markers, skipped, nil
		}
	}
}

func (r *Reader) offsets(ctx context.Context, partition int) (first, last int64, err error) {
	var lastErr error
	for _, broker := range r.brokers {
		conn, err := kafkago.DialLeader(ctx, "tcp", broker, r.topic, partition)
		if err != nil {
			lastErr = err
			continue
		}
		first, last, err = conn.ReadOffsets()
		_ = conn.Close()
		if err != nil {
			lastErr = err
			continue
		}
		return first, last, nil
	}
	return 0, 0, fmt.Errorf("read offsets: %w", lastErr)
}

// decodeMarker unmarshals a message value into a Marker, falling back to the
// message key for a missing ID.
func decodeMarker(msg kafkago.Message) (domain.Marker, error) {
	var m domain.Marker
	if err := json.Unmarshal(msg.Value, &m); err != nil {
		return domain.Marker{}, fmt.Errorf("decode marker: %w", err)
	}
	if m.Date.IsZero() {
		return domain.Marker{}, errors.New("decode marker: missing date")
	}
	if m.ID == "" {
		m.ID = string(msg.Key)
	}
	if m.Categories == nil {
		m.Categories = map[string]bool{}
	}
	return m, nil
}
