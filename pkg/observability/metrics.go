package observability

import (
	"context"
	"net/http"

	"github.com/aretw0/meshwork/pkg/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the mesh collectors and the registry they are exposed from.
type Metrics struct {
	registry *prometheus.Registry

	calls        *prometheus.CounterVec
	callDuration *prometheus.HistogramVec
	ready        *prometheus.GaugeVec
	depFailures  *prometheus.CounterVec
}

// NewMetrics creates the collectors on a private registry, so several meshes
// can coexist in one process. Go runtime collectors are included.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		calls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "meshwork_calls_total",
				Help: "Total number of routed calls by outcome",
			},
			[]string{"node_id", "service", "action", "outcome"},
		),
		callDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "meshwork_call_duration_seconds",
				Help:    "Duration of routed calls seen from the caller",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"node_id", "service", "action", "remote"},
		),
		ready: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "meshwork_service_ready",
				Help: "1 when a local service is ready, 0 otherwise",
			},
			[]string{"node_id", "service"},
		),
		depFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "meshwork_dependency_failures_total",
				Help: "Dependencies that failed after their dependent became ready",
			},
			[]string{"node_id", "service", "dependency"},
		),
	}
	m.registry.MustRegister(
		m.calls,
		m.callDuration,
		m.ready,
		m.depFailures,
		collectors.NewGoCollector(),
	)
	return m
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Hooks returns lifecycle hooks that record into the collectors.
func (m *Metrics) Hooks() domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnReturn: func(ctx context.Context, e *domain.CallEvent) {
			m.calls.WithLabelValues(e.NodeID, e.Service, e.Action, e.Outcome()).Inc()
			m.callDuration.WithLabelValues(e.NodeID, e.Service, e.Action, remoteLabel(e.Remote)).
				Observe(e.Duration.Seconds())
		},
		OnReadiness: func(ctx context.Context, e *domain.ServiceEvent) {
			value := 0.0
			if e.Readiness == domain.ReadinessReady {
				value = 1
			}
			m.ready.WithLabelValues(e.NodeID, e.Service).Set(value)
		},
		OnDependencyFailed: func(ctx context.Context, e *domain.ServiceEvent) {
			m.depFailures.WithLabelValues(e.NodeID, e.Service, e.Dependency).Inc()
		},
	}
}

func remoteLabel(remote bool) string {
	if remote {
		return "true"
	}
	return "false"
}
