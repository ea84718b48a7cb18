package gateway

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics is the gateway's Prometheus exposition surface, grounded on the
// teacher's internal/observability.Metrics naming convention.
type Metrics struct {
	// HTTPRequestsTotal is a request counter labelled by method, path
	// pattern, and status. It is registered and exposed, but no gateway
	// middleware or handler increments it.
	HTTPRequestsTotal *prometheus.CounterVec

	// HTTPRequestDuration is a request-latency histogram in seconds. It is
	// registered and exposed, but no gateway middleware or handler
	// observes into it.
	HTTPRequestDuration *prometheus.HistogramVec

	// WSConnections is a gauge of currently open /ws subscriber connections.
	WSConnections prometheus.Gauge

	// EventsBroadcast counts events forwarded onto /ws connections.
	EventsBroadcast *prometheus.CounterVec
}

// NewMetrics registers the gateway's metrics with reg (use
// prometheus.NewRegistry() in tests to avoid collisions with the default
// registry across repeated test runs).
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		HTTPRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agentd_gateway_http_requests_total",
				Help: "Total number of HTTP requests handled by the control plane.",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "agentd_gateway_http_request_duration_seconds",
				Help:    "HTTP request latency in seconds.",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
			},
			[]string{"method", "path"},
		),
		WSConnections: factory.NewGauge(prometheus.GaugeOpts{
			Name: "agentd_gateway_ws_connections",
			Help: "Currently open /ws event-stream connections.",
		}),
		EventsBroadcast: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agentd_gateway_events_broadcast_total",
				Help: "Total number of event-bus events forwarded to /ws subscribers.",
			},
			[]string{"type"},
		),
	}
}
