// Package metrics provides Prometheus instrumentation for the panel:
// dashboard request metrics, upstream API client metrics and message
// queue metrics, all registered against a single private registry so
// the /metrics endpoint never picks up default-registry series from
// imported libraries.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// DefaultNamespace prefixes every metric family the panel services
// create.
const DefaultNamespace = "agrovista"

// registry backs all panel collectors. Runtime and process collectors
// are included up front so dashboards get the baseline series without
// extra wiring.
var registry = newRegistry()

func newRegistry() *prometheus.Registry {
	r := prometheus.NewRegistry()
	r.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return r
}

// Handler serves the panel registry over HTTP.
func Handler() http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// MustRegister registers collectors with the panel registry, panicking
// on duplicate or invalid registration.
func MustRegister(cs ...prometheus.Collector) {
	registry.MustRegister(cs...)
}
