package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"

	"github.com/couchcryptid/incident-map/internal/domain"
)

// Marker sources accepted by MARKER_SOURCE.
const (
	SourceCSV   = "csv"
	SourceKafka = "kafka"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	// Schema selects a built-in schema; SchemaPath overrides it with a file.
	Schema     string
	SchemaPath string

	MarkerSource string
	ReportsCSV   string

	KafkaBrokers     []string
	KafkaTopic       string
	KafkaLoadTimeout time.Duration

	// Mapbox geocoding configuration.
	MapboxToken     string
	MapboxEnabled   bool
	MapboxTimeout   time.Duration
	MapboxCacheSize int

	AdminToken string

	ClusterGridSize int
	ClusterMaxZoom  int
	ClusterMinSize  int

	InitialCenter domain.Geo
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	mapboxTimeout, err := parsePositiveDuration("MAPBOX_TIMEOUT", "5s")
	if err != nil {
		return nil, err
	}

	kafkaLoadTimeout, err := parsePositiveDuration("KAFKA_LOAD_TIMEOUT", "30s")
	if err != nil {
		return nil, err
	}

	gridSize, err := parsePositiveInt("CLUSTER_GRID_SIZE", 50)
	if err != nil {
		return nil, err
	}
	maxZoom, err := parsePositiveInt("CLUSTER_MAX_ZOOM", 15)
	if err != nil {
		return nil, err
	}
	minSize, err := parsePositiveInt("CLUSTER_MIN_SIZE", 15)
	if err != nil {
		return nil, err
	}

	center, err := ParseGeo(sharedcfg.EnvOrDefault("INITIAL_CENTER", "39.952,-75.195"))
	if err != nil {
		return nil, fmt.Errorf("invalid INITIAL_CENTER: %w", err)
	}

	mapboxToken := os.Getenv("MAPBOX_TOKEN")
	mapboxEnabled := mapboxToken != ""
	if v := os.Getenv("MAPBOX_ENABLED"); v != "" {
		mapboxEnabled = v == "true"
	}

	cfg := &Config{
		HTTPAddr:        sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,

		Schema:     sharedcfg.EnvOrDefault("SCHEMA", "vehicles"),
		SchemaPath: os.Getenv("SCHEMA_PATH"),

		MarkerSource: strings.ToLower(sharedcfg.EnvOrDefault("MARKER_SOURCE", SourceCSV)),
		ReportsCSV:   os.Getenv("REPORTS_CSV"),

		KafkaBrokers:     sharedcfg.ParseBrokers(sharedcfg.EnvOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaTopic:       sharedcfg.EnvOrDefault("KAFKA_TOPIC", "incident-reports"),
		KafkaLoadTimeout: kafkaLoadTimeout,

		MapboxToken:     mapboxToken,
		MapboxEnabled:   mapboxEnabled,
		MapboxTimeout:   mapboxTimeout,
		MapboxCacheSize: parseMapboxCacheSize(),

		AdminToken: os.Getenv("ADMIN_TOKEN"),

		ClusterGridSize: gridSize,
		ClusterMaxZoom:  maxZoom,
		ClusterMinSize:  minSize,

		InitialCenter: center,
	}

	switch cfg.MarkerSource {
	case SourceCSV:
	case SourceKafka:
		if len(cfg.KafkaBrokers) == 0 {
			return nil, errors.New("KAFKA_BROKERS is required")
		}
		if cfg.KafkaTopic == "" {
			return nil, errors.New("KAFKA_TOPIC is required")
		}
	default:
		return nil, fmt.Errorf("invalid MARKER_SOURCE %q: must be csv or kafka", cfg.MarkerSource)
	}
	if cfg.MapboxEnabled && cfg.MapboxToken == "" {
		return nil, errors.New("MAPBOX_ENABLED is true but MAPBOX_TOKEN is not set")
	}

	return cfg, nil
}

// ParseGeo parses a "lat,lon" pair.
func ParseGeo(s string) (domain.Geo, error) {
	latStr, lonStr, ok := strings.Cut(s, ",")
	if !ok {
		return domain.Geo{}, fmt.Errorf("expected lat,lon, got %q", s)
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(latStr), 64)
	if err != nil {
		return domain.Geo{}, fmt.Errorf("latitude: %w", err)
	}
	lon, err := strconv.ParseFloat(strings.TrimSpace(lonStr), 64)
	if err != nil {
		return domain.Geo{}, fmt.Errorf("longitude: %w", err)
	}
	g := domain.Geo{Lat: lat, Lon: lon}
	if !g.Valid() {
		return domain.Geo{}, fmt.Errorf("coordinates out of range: %v,%v", lat, lon)
	}
	return g, nil
}

func parsePositiveDuration(key, def string) (time.Duration, error) {
	d, err := time.ParseDuration(sharedcfg.EnvOrDefault(key, def))
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return d, nil
}

func parsePositiveInt(key string, def int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid %s: must be a positive integer", key)
	}
	return n, nil
}

func parseMapboxCacheSize() int {
	if s := os.Getenv("MAPBOX_CACHE_SIZE"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			return n
		}
	}
	return 1000
}
