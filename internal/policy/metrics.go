package policy

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the policy gate.
type Metrics struct {
	// Decisions by operation and outcome ("allowed" or the denial reason).
	Decisions *prometheus.CounterVec

	// Evaluation latency including store lookups.
	CheckLatency prometheus.Histogram
}

// NewMetrics creates a gate metrics instance with all collectors registered
// on the default registry.
func NewMetrics() *Metrics {
	return &Metrics{
		Decisions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "cleargate_policy_decisions_total",
			Help: "Policy gate decisions by operation and outcome",
		}, []string{"op", "outcome"}),

		CheckLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "cleargate_policy_check_duration_seconds",
			Help:    "Duration of policy gate evaluation",
			Buckets: []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1},
		}),
	}
}

// ObserveCheck records a gate decision.
func (m *Metrics) ObserveCheck(op, reason string, allowed bool, d time.Duration) {
	if m == nil {
		return
	}
	outcome := reason
	if allowed {
		outcome = "allowed"
	}
	m.Decisions.WithLabelValues(op, outcome).Inc()
	m.CheckLatency.Observe(d.Seconds())
}
