package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "qr_ordering"

// Metrics groups the collectors shared by the relay and the order flow. Each
// instance owns its registry so tests can build as many as they like.
type Metrics struct {
	Registry *prometheus.Registry

	TokenFallbacks   *prometheus.CounterVec
	TokensAllocated  prometheus.Counter
	EventsPublished  *prometheus.CounterVec
	EventsDelivered  prometheus.Counter
	SlowConsumers    prometheus.Counter
	Connections      prometheus.Gauge
	BridgeForwarded  prometheus.Counter
	BridgeReceived   prometheus.Counter
	RequestsRejected prometheus.Counter
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		Registry: reg,
		TokenFallbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "order_token_fallback_total",
			Help: "Order tokens derived from wall-clock time because the store lookup failed.",
		}, []string{"reason"}),
		TokensAllocated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "order_tokens_allocated_total",
			Help: "Order tokens handed out, including fallbacks.",
		}),
		EventsPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "relay_events_published_total",
			Help: "Events published into the tenant relay.",
		}, []string{"kind"}),
		EventsDelivered: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "relay_events_delivered_total",
			Help: "Per-connection deliveries made by the relay.",
		}),
		SlowConsumers: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "relay_slow_consumers_total",
			Help: "Connections evicted because their send queue was full.",
		}),
		Connections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "relay_connections",
			Help: "Connections currently joined to at least one room.",
		}),
		BridgeForwarded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "relay_bridge_forwarded_total",
			Help: "Events forwarded to other instances over the broker.",
		}),
		BridgeReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "relay_bridge_received_total",
			Help: "Events received from other instances over the broker.",
		}),
		RequestsRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "http_requests_rejected_total",
			Help: "Requests refused by the concurrency limiter.",
		}),
	}
	reg.MustRegister(
		m.TokenFallbacks, m.TokensAllocated,
		m.EventsPublished, m.EventsDelivered, m.SlowConsumers, m.Connections,
		m.BridgeForwarded, m.BridgeReceived, m.RequestsRejected,
		prometheus.NewGoCollector(),
	)
	return m
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}
