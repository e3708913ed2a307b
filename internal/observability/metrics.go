package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "incident_map"

// Metrics holds the Prometheus counters, histograms, and gauges for the map session.
type Metrics struct {
	// Filter metrics.
	FilterRecomputes *prometheus.CounterVec // labels: trigger={load,dates,reset,category,shape}
	FilterDuration   prometheus.Histogram
	VisibleMarkers   prometheus.Gauge
	TotalMarkers     prometheus.Gauge

	// Export metrics.
	Exports    *prometheus.CounterVec // labels: audience={public,admin}
	ExportRows prometheus.Histogram

	// Loading and import metrics.
	MarkersLoaded *prometheus.CounterVec // labels: source={csv,kafka}
	ImportRows    *prometheus.CounterVec // labels: outcome={accepted,rejected}

	// Geocoding metrics.
	GeocodeRequests    *prometheus.CounterVec   // labels: method={forward,reverse}, outcome={success,error,empty}
	GeocodeCache       *prometheus.CounterVec   // labels: method={forward,reverse}, result={hit,miss}
	GeocodeAPIDuration *prometheus.HistogramVec // labels: method={forward,reverse}
	GeocodeEnabled     prometheus.Gauge
}

// NewMetrics creates and registers all session metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(m.collectors()...)
	return m
}

// NewMetricsForTesting creates Metrics without registering them to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		FilterRecomputes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "filter_recomputes_total",
			Help:      "Visible-set recomputations by triggering filter input.",
		}, []string{"trigger"}),
		FilterDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "filter_duration_seconds",
			Help:      "Duration of a visible-set recomputation including the cluster rebuild.",
			Buckets:   []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
		}),
		VisibleMarkers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "visible_markers",
			Help:      "Markers passing all active filters.",
		}),
		TotalMarkers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "markers",
			Help:      "Markers loaded into the session.",
		}),
		Exports: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "exports_total",
			Help:      "CSV exports by audience.",
		}, []string{"audience"}),
		ExportRows: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "export_rows",
			Help:      "Data rows per CSV export.",
			Buckets:   []float64{0, 10, 50, 100, 500, 1000, 5000, 10000},
		}),
		MarkersLoaded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "markers_loaded_total",
			Help:      "Markers read at start-up by source.",
		}, []string{"source"}),
		ImportRows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "import_rows_total",
			Help:      "Report spreadsheet rows by import outcome.",
		}, []string{"outcome"}),
		GeocodeRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "geocode_requests_total",
			Help:      "Geocoding API requests by method and outcome.",
		}, []string{"method", "outcome"}),
		GeocodeCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "geocode_cache_total",
			Help:      "Geocoding cache lookups by method and result.",
		}, []string{"method", "result"}),
		GeocodeAPIDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "geocode_api_duration_seconds",
			Help:      "Mapbox API request duration in seconds.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}, []string{"method"}),
		GeocodeEnabled: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "geocode_enabled",
			Help:      "1 when address search is backed by a geocoder, 0 otherwise.",
		}),
	}
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.FilterRecomputes,
		m.FilterDuration,
		m.VisibleMarkers,
		m.TotalMarkers,
		m.Exports,
		m.ExportRows,
		m.MarkersLoaded,
		m.ImportRows,
		m.GeocodeRequests,
		m.GeocodeCache,
		m.GeocodeAPIDuration,
		m.GeocodeEnabled,
	}
}
