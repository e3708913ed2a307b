// Package pipeline imports report spreadsheets: rows are parsed against the
// deployment schema, positioned by coordinates or geocoding, and loaded in
// batches to a marker sink.
package pipeline

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	sharedretry "github.com/couchcryptid/storm-data-shared/retry"

	"github.com/couchcryptid/incident-map/internal/domain"
)

// BatchLoader writes multiple markers to the destination.
type BatchLoader interface {
	LoadBatch(ctx context.Context, markers []domain.Marker) error
}

// Summary reports what an import run did.
type Summary struct {
	Accepted  int
	Published int
	Errors    []RowError
}

// Pipeline orchestrates the parse-transform-load run of one report file.
type Pipeline struct {
	parser      *Parser
	loader      BatchLoader
	logger      *slog.Logger
	batchSize   int
	maxAttempts int
	backoff     time.Duration
	maxBackoff  time.Duration
}

// New creates a Pipeline. Non-positive batch sizes fall back to 50.
func New(parser *Parser, loader BatchLoader, logger *slog.Logger, batchSize int) *Pipeline {
	if batchSize <= 0 {
		batchSize = 50
	}
	return &Pipeline{
		parser:      parser,
		loader:      loader,
		logger:      logger,
		batchSize:   batchSize,
		maxAttempts: 5,
		backoff:     200 * time.Millisecond,
		maxBackoff:  5 * time.Second,
	}
}

// Run parses r and loads every accepted marker. Rejected rows do not stop the
// run; a batch that still fails after the retry budget does.
func (p *Pipeline) Run(ctx context.Context, r io.Reader) (Summary, error) {
	res, err := p.parser.Parse(ctx, r)
	if err != nil {
		return Summary{}, err
	}

	sum := Summary{Accepted: len(res.Markers), Errors: res.Errors}
	for start := 0; start < len(res.Markers); start += p.batchSize {
		end := min(start+p.batchSize, len(res.Markers))
		batch := res.Markers[start:end]
		for i := range batch {
			if batch[i].ID == "" {
				batch[i].ID = domain.GenerateID(batch[i])
			}
		}
		if err := p.loadWithRetry(ctx, batch); err != nil {
			return sum, fmt.Errorf("load batch at row %d: %w", start, err)
		}
		sum.Published += len(batch)
	}

	p.logger.Info("import complete",
		"accepted", sum.Accepted,
		"published", sum.Published,
		"rejected", len(sum.Errors),
	)
	return sum, nil
}

// loadWithRetry retries a failed batch with exponential backoff: start at
// 200ms, double each retry, cap at 5s.
func (p *Pipeline) loadWithRetry(ctx context.Context, batch []domain.Marker) error {
	backoff := p.backoff

	var err error
	for attempt := 1; attempt <= p.maxAttempts; attempt++ {
		if err = p.loader.LoadBatch(ctx, batch); err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		p.logger.Error("load batch failed", "error", err, "batch_size", len(batch), "attempt", attempt)
		if attempt == p.maxAttempts {
			break
		}
		if !sharedretry.SleepWithContext(ctx, backoff) {
			return ctx.Err()
		}
		backoff = sharedretry.NextBackoff(backoff, p.maxBackoff)
	}
	return err
}
