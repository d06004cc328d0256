package applier

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for claim ingestion.
type Metrics struct {
	// Submissions by claim kind and result (applied or rejection reason).
	Submissions *prometheus.CounterVec

	// End-to-end pipeline latency for applied claims.
	SubmitLatency *prometheus.HistogramVec
}

// NewMetrics creates an ingestion metrics instance with all collectors
// registered on the default registry.
func NewMetrics() *Metrics {
	return &Metrics{
		Submissions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "cleargate_claim_submissions_total",
			Help: "Claim submissions by kind and result",
		}, []string{"kind", "result"}),

		SubmitLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "cleargate_claim_submit_duration_seconds",
			Help:    "Duration of the full claim ingestion pipeline",
			Buckets: []float64{0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}, []string{"kind"}),
	}
}

// ObserveSubmission records a submission outcome. A zero duration (rejected
// before apply) skips the latency histogram.
func (m *Metrics) ObserveSubmission(kind, result string, d time.Duration) {
	if m == nil {
		return
	}
	m.Submissions.WithLabelValues(kind, result).Inc()
	if d > 0 {
		m.SubmitLatency.WithLabelValues(kind).Observe(d.Seconds())
	}
}
