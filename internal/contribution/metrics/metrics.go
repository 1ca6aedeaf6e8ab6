package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the contribution module.
// Tracks limit decisions, settlement outcomes, and save-path latency.
type Metrics struct {
	LimitChecks          *prometheus.CounterVec
	ContributionsSaved   prometheus.Counter
	ContributionsVoided  prometheus.Counter
	SettlementFailures   *prometheus.CounterVec
	AutoCancelProjected  prometheus.Counter
	SaveDuration         prometheus.Histogram
	LimitCheckDuration   prometheus.Histogram
}

// New creates a Metrics instance with all contribution module metrics registered.
func New() *Metrics {
	return &Metrics{
		LimitChecks: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "fecguard_limit_checks_total",
			Help: "Total limit checks by decision",
		}, []string{"decision"}),
		ContributionsSaved: promauto.NewCounter(prometheus.CounterOpts{
			Name: "fecguard_contributions_saved_total",
			Help: "Total contributions settled and appended to the ledger",
		}),
		ContributionsVoided: promauto.NewCounter(prometheus.CounterOpts{
			Name: "fecguard_contributions_voided_total",
			Help: "Total contributions voided",
		}),
		SettlementFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "fecguard_settlement_failures_total",
			Help: "Settlement calls that did not complete, by outcome",
		}, []string{"outcome"}),
		AutoCancelProjected: promauto.NewCounter(prometheus.CounterOpts{
			Name: "fecguard_auto_cancel_projected_total",
			Help: "Recurring projections that derived an auto-cancellation point",
		}),
		SaveDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "fecguard_save_contribution_duration_seconds",
			Help:    "Duration of the full save path including settlement",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),
		LimitCheckDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "fecguard_limit_check_duration_seconds",
			Help:    "Duration of limit check reads against the ledger",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
	}
}

// RecordLimitCheck records one limit decision.
func (m *Metrics) RecordLimitCheck(allowed bool, start time.Time) {
	decision := "denied"
	if allowed {
		decision = "allowed"
	}
	m.LimitChecks.WithLabelValues(decision).Inc()
	m.LimitCheckDuration.Observe(time.Since(start).Seconds())
}

// RecordSave records a completed save path.
func (m *Metrics) RecordSave(start time.Time) {
	m.ContributionsSaved.Inc()
	m.SaveDuration.Observe(time.Since(start).Seconds())
}

// RecordSettlementFailure records a settlement that declared failure or timed out.
func (m *Metrics) RecordSettlementFailure(outcome string) {
	m.SettlementFailures.WithLabelValues(outcome).Inc()
}
