package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// DashboardMetrics contains Prometheus metrics for the panel HTTP server
// and its background pollers.
type DashboardMetrics struct {
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight *prometheus.GaugeVec
	TemplateRenderTime   *prometheus.HistogramVec
	TemplateRenderErrors *prometheus.CounterVec
	PollCycles           *prometheus.CounterVec
	PollFailures         *prometheus.CounterVec
	PollDuration         *prometheus.HistogramVec
	PollLastSuccess      *prometheus.GaugeVec
	MarkersRendered      *prometheus.GaugeVec
	MarkersSkipped       *prometheus.CounterVec
}

// NewDashboardMetrics creates and registers dashboard service metrics.
func NewDashboardMetrics(namespace string) *DashboardMetrics {
	m := &DashboardMetrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "path", "status_code"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "request_duration_seconds",
				Help:      "Duration of HTTP requests",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		HTTPRequestsInFlight: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "requests_in_flight",
				Help:      "Number of HTTP requests currently being processed",
			},
			[]string{"method", "path"},
		),
		TemplateRenderTime: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "views",
				Name:      "render_duration_seconds",
				Help:      "Duration of view rendering",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"view"},
		),
		TemplateRenderErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "views",
				Name:      "render_errors_total",
				Help:      "Total number of view rendering errors",
			},
			[]string{"view", "reason"},
		),
		PollCycles: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "poller",
				Name:      "cycles_total",
				Help:      "Total number of poll cycles started",
			},
			[]string{"poller"},
		),
		PollFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "poller",
				Name:      "failures_total",
				Help:      "Total number of failed poll cycles",
			},
			[]string{"poller", "reason"},
		),
		PollDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "poller",
				Name:      "cycle_duration_seconds",
				Help:      "Duration of poll cycles",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"poller"},
		),
		PollLastSuccess: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "poller",
				Name:      "last_success_timestamp_seconds",
				Help:      "Unix timestamp of the last successful poll cycle",
			},
			[]string{"poller"},
		),
		MarkersRendered: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "map",
				Name:      "markers_rendered",
				Help:      "Number of markers currently rendered on the map surface",
			},
			[]string{"layer"},
		),
		MarkersSkipped: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "map",
				Name:      "markers_skipped_total",
				Help:      "Total number of entities skipped for invalid coordinates",
			},
			[]string{"layer"},
		),
	}

	MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPRequestsInFlight,
		m.TemplateRenderTime,
		m.TemplateRenderErrors,
		m.PollCycles,
		m.PollFailures,
		m.PollDuration,
		m.PollLastSuccess,
		m.MarkersRendered,
		m.MarkersSkipped,
	)

	return m
}
