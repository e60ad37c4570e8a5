// Package metrics exposes Prometheus counters for drag-and-drop mapping.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "mapper"

// ReasonValid is the verdict label for an accepted column.
const ReasonValid = "valid"

// Metrics holds the mapper's collectors. It satisfies mapping.Recorder.
type Metrics struct {
	registry *prometheus.Registry
	verdicts *prometheus.CounterVec
	drops    *prometheus.CounterVec
	sessions prometheus.Gauge
}

// New creates the collectors on a fresh registry that also carries the
// process and Go runtime collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		verdicts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "validation_verdicts_total",
			Help:      "Drop-time validation verdicts by reason code.",
		}, []string{"reason"}),
		drops: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "drops_total",
			Help:      "Drops by outcome.",
		}, []string{"outcome"}),
		sessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "editor_sessions",
			Help:      "Open editor sessions.",
		}),
	}
	m.registry.MustRegister(
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewGoCollector(),
		m.verdicts,
		m.drops,
		m.sessions,
	)
	return m
}

// ObserveVerdict counts one verdict. An empty reason counts as valid.
func (m *Metrics) ObserveVerdict(reason string) {
	if reason == "" {
		reason = ReasonValid
	}
	m.verdicts.WithLabelValues(reason).Inc()
}

// ObserveDrop counts one drop outcome.
func (m *Metrics) ObserveDrop(outcome string) {
	m.drops.WithLabelValues(outcome).Inc()
}

// SetOpenSessions reports the number of open editor sessions.
func (m *Metrics) SetOpenSessions(n int) {
	m.sessions.Set(float64(n))
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
