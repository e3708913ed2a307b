// Command importcsv publishes a reports spreadsheet to the report topic.
// Rows are checked against the deployment schema; rows without coordinates
// are geocoded from their LOCATION cell when Mapbox is enabled. Rejected rows
// are listed with their line numbers and do not stop the import.
//
// Usage:
//
//	KAFKA_BROKERS=localhost:9092 SCHEMA=vehicles \
//	  go run ./cmd/importcsv -file data/mock/reports.csv
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
	sharedobs "github.com/couchcryptid/storm-data-shared/observability"

	kafkaadapter "github.com/couchcryptid/incident-map/internal/adapter/kafka"
	"github.com/couchcryptid/incident-map/internal/adapter/mapbox"
	"github.com/couchcryptid/incident-map/internal/config"
	"github.com/couchcryptid/incident-map/internal/domain"
	"github.com/couchcryptid/incident-map/internal/observability"
	"github.com/couchcryptid/incident-map/internal/pipeline"
)

func main() {
	if err := run(); err != nil {
		slog.Error("import failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	file := flag.String("file", "", "reports CSV to import")
	flag.Parse()
	if *file == "" {
		flag.Usage()
		return fmt.Errorf("missing required flag: -file")
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	batchSize, err := sharedcfg.ParseBatchSize()
	if err != nil {
		return err
	}

	logger := sharedobs.NewLogger(cfg.LogLevel, cfg.LogFormat)
	metrics := observability.NewMetrics()

	schema, err := config.LoadSchema(cfg.Schema, cfg.SchemaPath)
	if err != nil {
		return err
	}

	var geocoder domain.Geocoder
	if cfg.MapboxEnabled {
		client := mapbox.NewClient(cfg.MapboxToken, cfg.MapboxTimeout, logger,
			mapbox.WithProximity(cfg.InitialCenter),
			mapbox.WithMetrics(metrics),
		)
		cached, err := mapbox.NewCachedGeocoder(client, cfg.MapboxCacheSize, metrics)
		if err != nil {
			return err
		}
		geocoder = cached
		logger.Info("mapbox geocoding enabled", "cache_size", cfg.MapboxCacheSize)
	} else {
		logger.Info("mapbox geocoding disabled, rows need coordinates")
	}

	f, err := os.Open(*file)
	if err != nil {
		return fmt.Errorf("open reports: %w", err)
	}
	defer f.Close()

	writer := kafkaadapter.NewWriter(cfg, logger)
	defer func() {
		if err := writer.Close(); err != nil {
			logger.Error("kafka writer close error", "error", err)
		}
	}()

	parser := pipeline.NewParser(schema, pipeline.NewTransformer(geocoder, logger), logger, metrics)
	p := pipeline.New(parser, writer, logger, batchSize)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sum, err := p.Run(ctx, f)
	for _, rowErr := range sum.Errors {
		logger.Warn("row rejected", "file", *file, "line", rowErr.Line, "reason", rowErr.Reason)
	}
	if err != nil {
		return err
	}

	logger.Info("reports published",
		"file", *file,
		"topic", cfg.KafkaTopic,
		"accepted", sum.Accepted,
		"published", sum.Published,
		"rejected", len(sum.Errors),
	)
	return nil
}
