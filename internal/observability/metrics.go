package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "service_match"

// Metrics holds the Prometheus counters, histograms, and gauges for the
// matching service.
type Metrics struct {
	// Position acquisition metrics.
	PositionRequests    *prometheus.CounterVec // labels: outcome={device,network,cache,failed,abandoned}
	PositionDuration    prometheus.Histogram
	PositionWatchActive prometheus.Gauge
	ListenerPanics      prometheus.Counter

	// Discovery metrics.
	DiscoveryRequests *prometheus.CounterVec // labels: outcome={ok,invalid,no_location}
	DiscoveryDuration prometheus.Histogram
	ResultsReturned   prometheus.Histogram
	ReportsPublished  *prometheus.CounterVec // labels: outcome={success,error}
	SessionRunning    prometheus.Gauge

	// IP geolocation metrics.
	IPGeoRequests *prometheus.CounterVec // labels: outcome={success,error,throttled}

	// Geocoding metrics.
	GeocodeRequests    *prometheus.CounterVec   // labels: method=reverse, outcome={success,error,empty}
	GeocodeCache       *prometheus.CounterVec   // labels: method=reverse, result={hit,miss}
	GeocodeAPIDuration *prometheus.HistogramVec // labels: method=reverse
	GeocodeEnabled     prometheus.Gauge
}

// NewMetrics creates and registers all metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(m.collectors()...)
	return m
}

// NewUnregisteredMetrics creates Metrics attached to no registry, for
// components used outside the service binary.
func NewUnregisteredMetrics() *Metrics {
	return newMetrics()
}

// NewMetricsForTesting creates unregistered Metrics to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		PositionRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "position_requests_total",
			Help:      "Position acquisitions by how they were satisfied.",
		}, []string{"outcome"}),
		PositionDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "position_acquire_duration_seconds",
			Help:      "Duration of a full position acquisition including fallbacks.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 15},
		}),
		PositionWatchActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "position_watch_active",
			Help:      "1 while continuous position watching is active.",
		}),
		ListenerPanics: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "listener_panics_total",
			Help:      "Location or error listeners that panicked during dispatch.",
		}),
		DiscoveryRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "discovery_requests_total",
			Help:      "Discovery requests by outcome.",
		}, []string{"outcome"}),
		DiscoveryDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "discovery_duration_seconds",
			Help:      "Duration of a discovery request from validation to ranked results.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 10},
		}),
		ResultsReturned: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "discovery_results",
			Help:      "Number of ranked results per discovery request.",
			Buckets:   []float64{0, 1, 5, 10, 25, 50, 100, 250},
		}),
		ReportsPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reports_published_total",
			Help:      "Discovery reports handed to the publisher by outcome.",
		}, []string{"outcome"}),
		SessionRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "session_running",
			Help:      "1 when the position refresh loop is active, 0 when shut down.",
		}),
		IPGeoRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ipgeo_requests_total",
			Help:      "IP geolocation lookups by outcome.",
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
			Help:      "1 when reverse geocoding is enabled, 0 otherwise.",
		}),
	}
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.PositionRequests,
		m.PositionDuration,
		m.PositionWatchActive,
		m.ListenerPanics,
		m.DiscoveryRequests,
		m.DiscoveryDuration,
		m.ResultsReturned,
		m.ReportsPublished,
		m.SessionRunning,
		m.IPGeoRequests,
		m.GeocodeRequests,
		m.GeocodeCache,
		m.GeocodeAPIDuration,
		m.GeocodeEnabled,
	}
}
