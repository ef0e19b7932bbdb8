package diagnose

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics counts diagnosis outcomes. A nil *Metrics records nothing.
type Metrics struct {
	Diagnoses      *prometheus.CounterVec
	Reversals      prometheus.Counter
	OracleFailures *prometheus.CounterVec
}

// NewMetrics registers the diagnosis counters on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Diagnoses: f.NewCounterVec(prometheus.CounterOpts{
			Name: "plantdiag_diagnoses_total",
			Help: "Diagnosis attempts by final state.",
		}, []string{"state"}),
		Reversals: f.NewCounter(prometheus.CounterOpts{
			Name: "plantdiag_reversals_total",
			Help: "Theories retried with root cause and symptom swapped.",
		}),
		OracleFailures: f.NewCounterVec(prometheus.CounterOpts{
			Name: "plantdiag_oracle_failures_total",
			Help: "Oracle calls that failed during diagnosis.",
		}, []string{"call"}),
	}
}

func (m *Metrics) finished(s State) {
	if m != nil {
		m.Diagnoses.WithLabelValues(string(s)).Inc()
	}
}

func (m *Metrics) reversed() {
	if m != nil {
		m.Reversals.Inc()
	}
}

func (m *Metrics) oracleFailed(call string) {
	if m != nil {
		m.OracleFailures.WithLabelValues(call).Inc()
	}
}
