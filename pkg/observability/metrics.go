package observability

import (
	"context"

	"github.com/aretw0/teller/pkg/domain"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus collectors fed by engine hooks.
type Metrics struct {
	NodeVisits   *prometheus.CounterVec
	NodeDuration *prometheus.HistogramVec
	NodeErrors   *prometheus.CounterVec
	Runs         *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them with reg.
// A nil registerer leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		NodeVisits: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "teller_node_visits_total",
				Help: "Total number of node visits",
			},
			[]string{"workflow", "node"},
		),
		NodeDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "teller_node_duration_seconds",
				Help:    "Duration of node computations",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"workflow", "node"},
		),
		NodeErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "teller_node_errors_total",
				Help: "Total number of failed node computations",
			},
			[]string{"workflow", "node"},
		),
		Runs: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "teller_workflow_runs_total",
				Help: "Workflow runs by outcome",
			},
			[]string{"workflow", "outcome"},
		),
	}
	if reg != nil {
		reg.MustRegister(m.NodeVisits, m.NodeDuration, m.NodeErrors, m.Runs)
	}
	return m
}

// Hooks returns lifecycle hooks recording into m.
func (m *Metrics) Hooks() domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnNodeEnter: func(_ context.Context, e *domain.NodeEvent) {
			m.NodeVisits.WithLabelValues(e.Workflow, e.Node).Inc()
		},
		OnNodeLeave: func(_ context.Context, e *domain.NodeEvent) {
			m.NodeDuration.WithLabelValues(e.Workflow, e.Node).Observe(e.Duration.Seconds())
			if e.Err != nil {
				m.NodeErrors.WithLabelValues(e.Workflow, e.Node).Inc()
			}
		},
		OnWorkflowEnd: func(_ context.Context, e *domain.WorkflowEvent) {
			m.Runs.WithLabelValues(e.Workflow, e.Outcome()).Inc()
		},
	}
}
