package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "county_map"

// Metrics holds the Prometheus counters, histograms, and gauges for the map service.
type Metrics struct {
	// Load chain metrics.
	DatasetRows      *prometheus.CounterVec // labels: result={indexed,skipped,duplicate}
	GeometryFeatures *prometheus.CounterVec // labels: result={joined,unjoined}
	LoadFailures     *prometheus.CounterVec // labels: resource={dataset,geometry}
	LoadDuration     *prometheus.HistogramVec
	Ready            prometheus.Gauge

	// Interaction metrics.
	StyleRequests  prometheus.Counter
	DetailRequests *prometheus.CounterVec // labels: outcome={hit,miss}

	// Geocoding metrics.
	GeocodeRequests    *prometheus.CounterVec   // labels: outcome={success,error,empty}
	GeocodeCache       *prometheus.CounterVec   // labels: result={hit,miss,shared}
	GeocodeAPIDuration prometheus.Histogram
	GeocodeEnabled     prometheus.Gauge

	// Event publishing metrics.
	EventsPublished *prometheus.CounterVec // labels: type
	EventsFailed    prometheus.Counter
}

func newMetrics() *Metrics {
	return &Metrics{
		DatasetRows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dataset_rows_total",
			Help:      "Dataset rows read, by result.",
		}, []string{"result"}),
		GeometryFeatures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "geometry_features_total",
			Help:      "Geometry features read, by whether a join key was built.",
		}, []string{"result"}),
		LoadFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "load_failures_total",
			Help:      "Failed fetch or parse attempts by resource.",
		}, []string{"resource"}),
		LoadDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "load_duration_seconds",
			Help:      "Duration of a successful fetch and parse, by resource.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"resource"}),
		Ready: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "ready",
			Help:      "1 once dataset and geometry are loaded, 0 otherwise.",
		}),
		StyleRequests: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "style_requests_total",
			Help:      "Full layer re-style computations.",
		}),
		DetailRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "detail_requests_total",
			Help:      "County detail renders by whether a record matched.",
		}, []string{"outcome"}),
		GeocodeRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "geocode_requests_total",
			Help:      "Geocoding API requests by outcome.",
		}, []string{"outcome"}),
		GeocodeCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "geocode_cache_total",
			Help:      "Geocoding cache lookups by result.",
		}, []string{"result"}),
		GeocodeAPIDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "geocode_api_duration_seconds",
			Help:      "Mapbox API request duration in seconds.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}),
		GeocodeEnabled: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "geocode_enabled",
			Help:      "1 when place search is enabled, 0 otherwise.",
		}),
		EventsPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_published_total",
			Help:      "Interaction events written to Kafka, by type.",
		}, []string{"type"}),
		EventsFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_failed_total",
			Help:      "Interaction events that could not be written.",
		}),
	}
}

// NewMetrics creates and registers all service metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(m.collectors()...)
	return m
}

// NewMetricsForTesting creates Metrics that are not registered anywhere, to
// avoid "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.DatasetRows,
		m.GeometryFeatures,
		m.LoadFailures,
		m.LoadDuration,
		m.Ready,
		m.StyleRequests,
		m.DetailRequests,
		m.GeocodeRequests,
		m.GeocodeCache,
		m.GeocodeAPIDuration,
		m.GeocodeEnabled,
		m.EventsPublished,
		m.EventsFailed,
	}
}
