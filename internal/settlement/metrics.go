package settlement

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the settlement rails.
type Metrics struct {
	// Transitions by rail key and resulting status.
	Transitions *prometheus.CounterVec
}

// NewMetrics creates a settlement metrics instance with all collectors
// registered on the default registry.
func NewMetrics() *Metrics {
	return &Metrics{
		Transitions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "cleargate_transfer_transitions_total",
			Help: "Transfer status transitions by rail and resulting status",
		}, []string{"rail", "status"}),
	}
}

// ObserveTransition records a status transition.
func (m *Metrics) ObserveTransition(rail, status string) {
	if m == nil {
		return
	}
	m.Transitions.WithLabelValues(rail, status).Inc()
}
