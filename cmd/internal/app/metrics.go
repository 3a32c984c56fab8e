package app

import (
	"net/http"
	"strings"

	"wishsync/cmd/internal/wishlist"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics owns the Prometheus registry. It observes wishlist mutations and
// realtime fan-out.
type Metrics struct {
	reg *prometheus.Registry

	mutations   *prometheus.CounterVec
	subscribers prometheus.Gauge
	joins       prometheus.Counter
	signals     *prometheus.CounterVec
	deliveries  *prometheus.CounterVec
}

// NewMetrics registers every collector on a fresh registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		reg: prometheus.NewRegistry(),
		mutations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "wishsync",
			Name:      "mutations_total",
			Help:      "Wishlist item mutations by operation and result.",
		}, []string{"op", "result"}),
		subscribers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "wishsync",
			Name:      "ws_subscribers",
			Help:      "Open realtime subscriptions.",
		}),
		joins: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "wishsync",
			Name:      "ws_subscriptions_total",
			Help:      "Realtime subscriptions accepted.",
		}),
		signals: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "wishsync",
			Name:      "signals_published_total",
			Help:      "Change signals published to local subscribers, by event.",
		}, []string{"event"}),
		deliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "wishsync",
			Name:      "signal_deliveries_total",
			Help:      "Per-subscriber signal deliveries by outcome.",
		}, []string{"outcome"}),
	}

	m.reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.mutations,
		m.subscribers,
		m.joins,
		m.signals,
		m.deliveries,
	)
	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{})
}

// MutationDone implements wishlist.Observer.
func (m *Metrics) MutationDone(op string, err error) {
	m.mutations.WithLabelValues(op, resultLabel(err)).Inc()
}

// SubscriberJoined implements realtime.Observer.
func (m *Metrics) SubscriberJoined() {
	m.subscribers.Inc()
	m.joins.Inc()
}

// SubscriberLeft implements realtime.Observer.
func (m *Metrics) SubscriberLeft() { m.subscribers.Dec() }

// SignalPublished implements realtime.Observer.
func (m *Metrics) SignalPublished(event string, delivered, dropped int) {
	m.signals.WithLabelValues(event).Inc()
	if delivered > 0 {
		m.deliveries.WithLabelValues("delivered").Add(float64(delivered))
	}
	if dropped > 0 {
		m.deliveries.WithLabelValues("dropped").Add(float64(dropped))
	}
}

// resultLabel keeps the label set small: ok, one value per domain error kind, or error.
func resultLabel(err error) string {
	if err == nil {
		return "ok"
	}
	kind := wishlist.KindOf(err)
	if kind == nil {
		return "error"
	}
	return strings.ReplaceAll(kind.Error(), " ", "_")
}
