// Package metrics exposes the engine's Prometheus instrumentation. A
// Registry owns its own prometheus.Registry (rather than registering
// into the global default) so multiple Proxy instances — one per test,
// for instance — never collide over duplicate collector registration.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry holds every collector the engine publishes.
type Registry struct {
	registry           *prometheus.Registry
	status             *prometheus.GaugeVec
	requestsTotal      *prometheus.CounterVec
	activeConnections  prometheus.Gauge
	tunnelErrorsTotal  prometheus.Counter
}

// NewRegistry constructs and registers all collectors into a fresh,
// private prometheus.Registry.
func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()

	registry := &Registry{
		registry: reg,
		status: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "proxy_status",
			Help: "1 for the Proxy's current lifecycle state, 0 for all others.",
		}, []string{"state"}),
		requestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "proxy_requests_total",
			Help: "Total requests classified by the traffic filter, by outcome.",
		}, []string{"outcome"}),
		activeConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "proxy_active_connections",
			Help: "Number of currently accepted, not-yet-closed connections.",
		}),
		tunnelErrorsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "proxy_tunnel_errors_total",
			Help: "Total errors encountered while dialling or copying a CONNECT tunnel.",
		}),
	}

	reg.MustRegister(
		registry.status,
		registry.requestsTotal,
		registry.activeConnections,
		registry.tunnelErrorsTotal,
	)

	// Every Proxy starts Stopped, so the status gauge reports that
	// state until the first transition.
	registry.SetStatus("stopped")

	return registry
}

// knownStates lists every label value SetStatus ever sets, so the gauge
// always reports a clean single "1" across exactly one label, rather
// than leaving stale "1"s behind from a prior state.
var knownStates = []string{"starting", "running", "stopped", "terminating", "terminated", "error"}

// SetStatus marks state as the current one (gauge value 1) and zeroes
// every other known state.
func (registry *Registry) SetStatus(state string) {
	if registry == nil {
		return
	}
	for _, known := range knownStates {
		if known == state {
			registry.status.WithLabelValues(known).Set(1)
		} else {
			registry.status.WithLabelValues(known).Set(0)
		}
	}
}

// IncRequests increments the request counter for the given outcome,
// either "allowed" or "blocked".
func (registry *Registry) IncRequests(outcome string) {
	if registry == nil {
		return
	}
	registry.requestsTotal.WithLabelValues(outcome).Inc()
}

// IncActiveConnections marks a connection as accepted.
func (registry *Registry) IncActiveConnections() {
	if registry == nil {
		return
	}
	registry.activeConnections.Inc()
}

// DecActiveConnections marks a connection as closed.
func (registry *Registry) DecActiveConnections() {
	if registry == nil {
		return
	}
	registry.activeConnections.Dec()
}

// IncTunnelErrors increments the tunnel error counter.
func (registry *Registry) IncTunnelErrors() {
	if registry == nil {
		return
	}
	registry.tunnelErrorsTotal.Inc()
}

// Handler returns the http.Handler that serves this registry's
// exposition format, wired to GET /metrics by the Control API.
func (registry *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(registry.registry, promhttp.HandlerOpts{})
}
