package hermes

import "github.com/prometheus/client_golang/prometheus"

// Metrics counts reconnects and their outcomes.  A nil *Metrics records nothing.
type Metrics struct {
	// Reconnects tracks connections lost and reopened, per operation
	Reconnects *prometheus.CounterVec

	// Retries tracks the outcome of the call repeated after a reconnect
	Retries *prometheus.CounterVec

	// CommitsAmbiguous tracks commits that lost their connection, so their outcome is unknown
	CommitsAmbiguous prometheus.Counter
}

// NewMetrics creates the metrics and registers them with reg, if reg isn't nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Reconnects: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hermes_reconnects_total",
				Help: "Total number of database connections lost and reopened",
			},
			[]string{"operation"},
		),
		Retries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hermes_retries_total",
				Help: "Total number of database calls repeated after a reconnect",
			},
			[]string{"operation", "outcome"},
		),
		CommitsAmbiguous: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "hermes_commit_ambiguous_total",
				Help: "Total number of commits that lost the connection before acknowledgement",
			},
		),
	}

	if reg != nil {
		reg.MustRegister(m.Reconnects, m.Retries, m.CommitsAmbiguous)
	}

	return m
}

func (m *Metrics) reconnected(op string) {
	if m == nil {
		return
	}

	m.Reconnects.WithLabelValues(op).Inc()
}

func (m *Metrics) retried(op string, err error) {
	if m == nil {
		return
	}

	outcome := "success"
	if err != nil {
		outcome = "failure"
	}

	m.Retries.WithLabelValues(op, outcome).Inc()
}

func (m *Metrics) ambiguous() {
	if m == nil {
		return
	}

	m.CommitsAmbiguous.Inc()
}
