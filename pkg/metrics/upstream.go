package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// UpstreamMetrics contains Prometheus metrics for the upstream API client.
type UpstreamMetrics struct {
	Calls        *prometheus.CounterVec
	CallDuration *prometheus.HistogramVec
	AuthFailures prometheus.Counter
	DecodeErrors *prometheus.CounterVec
}

// NewUpstreamMetrics creates and registers upstream client metrics.
func NewUpstreamMetrics(namespace string) *UpstreamMetrics {
	m := &UpstreamMetrics{
		Calls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "upstream",
				Name:      "calls_total",
				Help:      "Total number of upstream API calls",
			},
			[]string{"operation", "status"}, // status: success, auth_failure, transport_failure, data_shape_failure
		),
		CallDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "upstream",
				Name:      "call_duration_seconds",
				Help:      "Duration of upstream API calls",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		AuthFailures: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "upstream",
				Name:      "auth_failures_total",
				Help:      "Total number of unauthorized responses that tore down the session",
			},
		),
		DecodeErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "upstream",
				Name:      "decode_errors_total",
				Help:      "Total number of payloads rejected at the decode boundary",
			},
			[]string{"operation"},
		),
	}

	MustRegister(m.Calls, m.CallDuration, m.AuthFailures, m.DecodeErrors)

	return m
}
