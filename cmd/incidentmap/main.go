package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"

	"github.com/couchcryptid/incident-map/internal/adapter/httpadapter"
	kafkaadapter "github.com/couchcryptid/incident-map/internal/adapter/kafka"
	"github.com/couchcryptid/incident-map/internal/adapter/mapbox"
	"github.com/couchcryptid/incident-map/internal/cluster"
	"github.com/couchcryptid/incident-map/internal/config"
	"github.com/couchcryptid/incident-map/internal/domain"
	"github.com/couchcryptid/incident-map/internal/observability"
	"github.com/couchcryptid/incident-map/internal/pipeline"
	"github.com/couchcryptid/incident-map/internal/session"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := sharedobs.NewLogger(cfg.LogLevel, cfg.LogFormat)
	metrics := observability.NewMetrics()

	schema, err := config.LoadSchema(cfg.Schema, cfg.SchemaPath)
	if err != nil {
		logger.Error("failed to load schema", "error", err)
		os.Exit(1)
	}
	logger.Info("schema loaded", "schema", schema.Name, "categories", len(schema.Categories), "columns", len(schema.Columns))

	geocoder, err := newGeocoder(cfg, logger, metrics)
	if err != nil {
		logger.Error("failed to create geocoder", "error", err)
		os.Exit(1)
	}

	index := cluster.NewIndex(cluster.Options{
		GridSize:       cfg.ClusterGridSize,
		MaxZoom:        cfg.ClusterMaxZoom,
		MinClusterSize: cfg.ClusterMinSize,
	})
	sess := session.New(session.Options{
		Schema:        schema,
		InitialCenter: cfg.InitialCenter,
		Renderer:      index,
		Geocoder:      geocoder,
		Logger:        logger,
		Metrics:       metrics,
	})
	srv := httpadapter.NewServer(sess, index, httpadapter.Options{
		Addr:       cfg.HTTPAddr,
		AdminToken: cfg.AdminToken,
		AccessLog:  os.Stdout,
		Logger:     logger,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Start the session loop.
	sessionDone := make(chan struct{})
	go func() {
		defer close(sessionDone)
		if err := sess.Run(ctx); err != nil {
			logger.Error("session error", "error", err)
		}
	}()

	// Start HTTP server. /readyz reports 503 until markers are loaded.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	// Load markers once.
	go func() {
		markers, err := loadMarkers(ctx, cfg, schema, geocoder, logger, metrics)
		if err != nil {
			logger.Error("failed to load markers", "error", err, "source", cfg.MarkerSource)
			stop()
			return
		}
		if err := sess.Initialize(ctx, markers); err != nil {
			logger.Error("failed to initialize session", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	<-sessionDone

	logger.Info("shutdown complete")
}

// newGeocoder returns the cached Mapbox geocoder, or nil when geocoding is
// disabled (feature-flagged via MAPBOX_ENABLED / MAPBOX_TOKEN).
func newGeocoder(cfg *config.Config, logger *slog.Logger, metrics *observability.Metrics) (domain.Geocoder, error) {
	if !cfg.MapboxEnabled {
		metrics.GeocodeEnabled.Set(0)
		logger.Info("mapbox geocoding disabled")
		return nil, nil
	}
	client := mapbox.NewClient(cfg.MapboxToken, cfg.MapboxTimeout, logger,
		mapbox.WithProximity(cfg.InitialCenter),
		mapbox.WithMetrics(metrics),
	)
	cached, err := mapbox.NewCachedGeocoder(client, cfg.MapboxCacheSize, metrics)
	if err != nil {
		return nil, err
	}
	metrics.GeocodeEnabled.Set(1)
	logger.Info("mapbox geocoding enabled", "cache_size", cfg.MapboxCacheSize, "timeout", cfg.MapboxTimeout)
	return cached, nil
}

// loadMarkers reads the session's markers from the configured source.
func loadMarkers(ctx context.Context, cfg *config.Config, schema domain.Schema, geocoder domain.Geocoder, logger *slog.Logger, metrics *observability.Metrics) ([]domain.Marker, error) {
	var markers []domain.Marker
	switch cfg.MarkerSource {
	case config.SourceKafka:
		reader := kafkaadapter.NewReader(cfg, logger)
		loaded, err := reader.LoadAll(ctx)
		if err != nil {
			return nil, err
		}
		markers = loaded

	default:
		if cfg.ReportsCSV == "" {
			logger.Warn("REPORTS_CSV not set, starting with no markers")
			return nil, nil
		}
		f, err := os.Open(cfg.ReportsCSV)
		if err != nil {
			return nil, fmt.Errorf("open reports: %w", err)
		}
		defer f.Close()

		parser := pipeline.NewParser(schema, pipeline.NewTransformer(geocoder, logger), logger, metrics)
		res, err := parser.Parse(ctx, f)
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", cfg.ReportsCSV, err)
		}
		for _, rowErr := range res.Errors {
			logger.Warn("skipping report row", "file", cfg.ReportsCSV, "line", rowErr.Line, "reason", rowErr.Reason)
		}
		markers = res.Markers
	}

	metrics.MarkersLoaded.WithLabelValues(cfg.MarkerSource).Add(float64(len(markers)))
	logger.Info("markers loaded", "source", cfg.MarkerSource, "markers", len(markers))
	return markers, nil
}
