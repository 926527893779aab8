// Package observability exposes Prometheus metrics for the assessment engine.
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds every collector the engine reports. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	turns          *prometheus.CounterVec
	oracleDuration *prometheus.HistogramVec
	oracleFailures *prometheus.CounterVec
	advances       *prometheus.CounterVec
	completions    prometheus.Counter
	auditFailures  *prometheus.CounterVec
	resets         prometheus.Counter
}

// New registers the engine's collectors on reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		turns: f.NewCounterVec(prometheus.CounterOpts{
			Name: "assessment_turns_total",
			Help: "Handled user turns by inventory and decision",
		}, []string{"inventory", "decision"}),
		oracleDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "assessment_oracle_duration_seconds",
			Help:    "Oracle call latency in seconds",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 10), // 50ms to ~25s
		}, []string{"outcome"}),
		oracleFailures: f.NewCounterVec(prometheus.CounterOpts{
			Name: "assessment_oracle_failures_total",
			Help: "Oracle failures by kind",
		}, []string{"kind"}),
		advances: f.NewCounterVec(prometheus.CounterOpts{
			Name: "assessment_stage_advances_total",
			Help: "Stage transitions by completed inventory",
		}, []string{"from"}),
		completions: f.NewCounter(prometheus.CounterOpts{
			Name: "assessment_completions_total",
			Help: "Users who finished every inventory",
		}),
		auditFailures: f.NewCounterVec(prometheus.CounterOpts{
			Name: "assessment_range_audit_failures_total",
			Help: "Committed assessments with values outside the declared range",
		}, []string{"inventory"}),
		resets: f.NewCounter(prometheus.CounterOpts{
			Name: "assessment_resets_total",
			Help: "Full user resets",
		}),
	}
}

func (m *Metrics) Turn(inventory, decision string) {
	if m == nil {
		return
	}
	m.turns.WithLabelValues(inventory, decision).Inc()
}

func (m *Metrics) OracleCall(d time.Duration, failureKind string) {
	if m == nil {
		return
	}
	outcome := "ok"
	if failureKind != "" {
		outcome = "error"
		m.oracleFailures.WithLabelValues(failureKind).Inc()
	}
	m.oracleDuration.WithLabelValues(outcome).Observe(d.Seconds())
}

func (m *Metrics) Advance(from string) {
	if m == nil {
		return
	}
	m.advances.WithLabelValues(from).Inc()
}

func (m *Metrics) Completed() {
	if m == nil {
		return
	}
	m.completions.Inc()
}

func (m *Metrics) AuditFailure(inventory string) {
	if m == nil {
		return
	}
	m.auditFailures.WithLabelValues(inventory).Inc()
}

func (m *Metrics) Reset() {
	if m == nil {
		return
	}
	m.resets.Inc()
}
