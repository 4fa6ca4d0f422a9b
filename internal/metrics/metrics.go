// Package metrics exposes gameplay counters to Prometheus.
package metrics

import (
	"net/http"

	"github.com/jwebster45206/papal-schism/internal/engine"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "papal_schism"

// Metrics implements engine.Recorder. Each instance has its own registry.
type Metrics struct {
	registry        *prometheus.Registry
	choicesApplied  *prometheus.CounterVec
	endingsReached  *prometheus.CounterVec
	persistFailures *prometheus.CounterVec
	activeSessions  prometheus.Gauge
	httpRequests    *prometheus.CounterVec
}

var _ engine.Recorder = (*Metrics)(nil)

// New registers the counters on a fresh registry, along with the Go and
// process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	factory := promauto.With(reg)
	return &Metrics{
		registry: reg,
		choicesApplied: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "choices_applied_total",
			Help:      "Choices applied, by node and by what applied them (manual or timeout).",
		}, []string{"node", "source"}),
		endingsReached: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "endings_reached_total",
			Help:      "Completed games, by ending title.",
		}, []string{"ending"}),
		persistFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "persist_failures_total",
			Help:      "Failed save or clear operations.",
		}, []string{"op"}),
		activeSessions: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_sessions",
			Help:      "Game sessions held in memory.",
		}),
		httpRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests, by route and status code.",
		}, []string{"route", "code"}),
	}
}

func (m *Metrics) ChoiceApplied(nodeID, _ string, source engine.Source) {
	m.choicesApplied.WithLabelValues(nodeID, string(source)).Inc()
}

func (m *Metrics) EndingReached(title string) {
	m.endingsReached.WithLabelValues(title).Inc()
}

func (m *Metrics) PersistFailed(op string) {
	m.persistFailures.WithLabelValues(op).Inc()
}

// SessionOpened and SessionClosed track the active session gauge.
func (m *Metrics) SessionOpened() { m.activeSessions.Inc() }
func (m *Metrics) SessionClosed() { m.activeSessions.Dec() }

// RequestServed counts one HTTP response.
func (m *Metrics) RequestServed(route, code string) {
	m.httpRequests.WithLabelValues(route, code).Inc()
}

// Registry returns the registry the metrics live in.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
