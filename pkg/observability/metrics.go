package observability

import (
	"context"
	"net/http"

	"github.com/aretw0/stagehand/pkg/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// DefaultNamespace prefixes every metric name.
const DefaultNamespace = "stagehand"

// Metrics holds the Prometheus collectors fed by the lifecycle hooks.
type Metrics struct {
	registry *prometheus.Registry

	transitions *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	progress    prometheus.Gauge
	state       *prometheus.GaugeVec
	units       *prometheus.CounterVec
}

// NewMetrics creates the collectors under namespace and registers them on a private registry.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		transitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "transitions_total",
				Help:      "Total number of finished transitions by target and outcome",
			},
			[]string{"identifier", "outcome"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "transition_duration_seconds",
				Help:      "Duration of transitions from request to commit or failure",
				Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
			},
			[]string{"identifier"},
		),
		progress: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "loading_progress",
			Help:      "Aggregated loading progress of the transition in flight",
		}),
		state: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "machine_state",
				Help:      "1 for the machine state the orchestrator is in, 0 otherwise",
			},
			[]string{"state"},
		),
		units: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "unit_operations_total",
				Help:      "Total number of unit loads and unloads issued to the host",
			},
			[]string{"operation"},
		),
	}
	m.registry.MustRegister(m.transitions, m.duration, m.progress, m.state, m.units)
	m.state.WithLabelValues(string(domain.StateIdle)).Set(1)
	return m
}

// Registry exposes the private registry, mostly for tests and custom exporters.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the collectors in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Hooks returns lifecycle hooks that record into the collectors.
func (m *Metrics) Hooks() domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnStateEnter: func(_ context.Context, e *domain.StateEvent) {
			m.state.Reset()
			m.state.WithLabelValues(string(e.State)).Set(1)
		},
		OnUnitLoad: func(_ context.Context, e *domain.UnitEvent) {
			m.units.WithLabelValues("load").Inc()
		},
		OnUnitUnload: func(_ context.Context, e *domain.UnitEvent) {
			m.units.WithLabelValues("unload").Inc()
		},
		OnProgress: func(_ context.Context, e *domain.ProgressEvent) {
			m.progress.Set(e.Progress)
		},
		OnCommit: func(_ context.Context, e *domain.OutcomeEvent) {
			m.finish(e, "committed")
		},
		OnFailure: func(_ context.Context, e *domain.OutcomeEvent) {
			m.finish(e, "failed")
		},
	}
}

func (m *Metrics) finish(e *domain.OutcomeEvent, outcome string) {
	m.transitions.WithLabelValues(e.Identifier, outcome).Inc()
	m.duration.WithLabelValues(e.Identifier).Observe(e.Duration.Seconds())
	m.progress.Set(0)
	m.state.Reset()
	m.state.WithLabelValues(string(domain.StateIdle)).Set(1)
}
