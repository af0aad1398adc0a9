package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "weather_station"

// Metrics holds the Prometheus counters and histograms for the station API.
type Metrics struct {
	ReadingsIngested prometheus.Counter
	IngestRejected   *prometheus.CounterVec // labels: kind
	EventsPublished  *prometheus.CounterVec // labels: outcome={success,error}

	// Upstream (forecast and alert feed) metrics.
	UpstreamRequests *prometheus.CounterVec   // labels: source, outcome={success,error,timeout}
	UpstreamDuration *prometheus.HistogramVec // labels: source
	UpstreamCache    *prometheus.CounterVec   // labels: result={hit,miss}

	StoreDuration  *prometheus.HistogramVec // labels: op
	AlertsReturned prometheus.Histogram
	HTTPRequests   *prometheus.CounterVec // labels: route, status
}

// NewMetrics creates and registers all metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.ReadingsIngested,
		m.IngestRejected,
		m.EventsPublished,
		m.UpstreamRequests,
		m.UpstreamDuration,
		m.UpstreamCache,
		m.StoreDuration,
		m.AlertsReturned,
		m.HTTPRequests,
	)
	return m
}

// NewMetricsForTesting creates Metrics without registering them, so tests
// can build as many as they need without "already registered" panics.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		ReadingsIngested: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "readings_ingested_total",
			Help:      "Readings accepted and persisted.",
		}),
		IngestRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ingest_rejected_total",
			Help:      "Ingestion attempts rejected, by error kind.",
		}, []string{"kind"}),
		EventsPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_published_total",
			Help:      "Reading events published to Kafka, by outcome.",
		}, []string{"outcome"}),
		UpstreamRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upstream_requests_total",
			Help:      "Requests to external forecast and alert sources by outcome.",
		}, []string{"source", "outcome"}),
		UpstreamDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "upstream_request_duration_seconds",
			Help:      "External request duration in seconds.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 8},
		}, []string{"source"}),
		UpstreamCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upstream_cache_total",
			Help:      "Upstream response cache lookups by result.",
		}, []string{"result"}),
		StoreDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "store_operation_duration_seconds",
			Help:      "Reading store operation duration in seconds.",
			Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 5},
		}, []string{"op"}),
		AlertsReturned: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "alerts_returned",
			Help:      "Number of alerts returned per request after filtering.",
			Buckets:   []float64{0, 1, 2, 5, 10, 20, 50},
		}),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests served, by route pattern and status code.",
		}, []string{"route", "status"}),
	}
}
