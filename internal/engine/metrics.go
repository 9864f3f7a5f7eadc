package engine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics are the engine's Prometheus collectors. A nil *Metrics records
// nothing.
type Metrics struct {
	steps     *prometheus.CounterVec
	deleted   *prometheus.CounterVec
	absorbed  *prometheus.CounterVec
	missing   *prometheus.CounterVec
	fatal     prometheus.Counter
	collected prometheus.Histogram
}

// NewMetrics registers the engine collectors with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		steps: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cascade_steps_total",
				Help: "Executed plan steps by kind and outcome",
			},
			[]string{"kind", "outcome"},
		),
		deleted: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cascade_rows_deleted_total",
				Help: "Rows deleted and committed to the base ledger frame",
			},
			[]string{"table"},
		),
		absorbed: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cascade_constraints_absorbed_total",
				Help: "Constraint violations absorbed by a SOFT step",
			},
			[]string{"table"},
		),
		missing: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cascade_missing_rows_total",
				Help: "Deletes that affected no row",
			},
			[]string{"table"},
		),
		fatal: f.NewCounter(prometheus.CounterOpts{
			Name: "cascade_constraints_fatal_total",
			Help: "Constraint violations that aborted a request",
		}),
		collected: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "cascade_plan_steps",
			Help:    "Number of steps per planned request",
			Buckets: prometheus.ExponentialBuckets(1, 4, 8),
		}),
	}
}

func (m *Metrics) step(kind StepKind, outcome string) {
	if m != nil {
		m.steps.WithLabelValues(kind.String(), outcome).Inc()
	}
}

func (m *Metrics) rowsDeleted(table string, n int) {
	if m != nil {
		m.deleted.WithLabelValues(table).Add(float64(n))
	}
}

func (m *Metrics) constraintAbsorbed(table string) {
	if m != nil {
		m.absorbed.WithLabelValues(table).Inc()
	}
}

func (m *Metrics) missingRow(table string) {
	if m != nil {
		m.missing.WithLabelValues(table).Inc()
	}
}

func (m *Metrics) constraintFatal() {
	if m != nil {
		m.fatal.Inc()
	}
}

func (m *Metrics) planned(steps int) {
	if m != nil {
		m.collected.Observe(float64(steps))
	}
}
