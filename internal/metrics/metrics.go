package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus counters for the service. A nil *Metrics is
// valid and counts nothing, so tests don't have to register collectors.
type Metrics struct {
	verificationsStarted   prometheus.Counter
	verificationsRejected  *prometheus.CounterVec
	verificationsCompleted prometheus.Counter
	emailFailures          prometheus.Counter
	rolesGranted           prometheus.Counter
	reconcileRuns          *prometheus.CounterVec
}

// New creates and registers all Prometheus metrics.
func New() *Metrics {
	return &Metrics{
		verificationsStarted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "lobby7_verifications_started_total",
			Help: "Verification codes issued.",
		}),
		verificationsRejected: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "lobby7_verifications_rejected_total",
			Help: "Issuance attempts rejected by a precondition.",
		}, []string{"reason"}),
		verificationsCompleted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "lobby7_verifications_completed_total",
			Help: "Codes successfully redeemed.",
		}),
		emailFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "lobby7_email_failures_total",
			Help: "Verification emails that could not be delivered.",
		}),
		rolesGranted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "lobby7_roles_granted_total",
			Help: "Roles granted to members.",
		}),
		reconcileRuns: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "lobby7_reconcile_runs_total",
			Help: "Reconciliation passes by trigger.",
		}, []string{"trigger"}),
	}
}

func (m *Metrics) IncVerificationStarted() {
	if m != nil {
		m.verificationsStarted.Inc()
	}
}

func (m *Metrics) IncVerificationRejected(reason string) {
	if m != nil {
		m.verificationsRejected.WithLabelValues(reason).Inc()
	}
}

func (m *Metrics) IncVerificationCompleted() {
	if m != nil {
		m.verificationsCompleted.Inc()
	}
}

func (m *Metrics) IncEmailFailure() {
	if m != nil {
		m.emailFailures.Inc()
	}
}

func (m *Metrics) AddRolesGranted(n int) {
	if m != nil {
		m.rolesGranted.Add(float64(n))
	}
}

func (m *Metrics) IncReconcileRun(trigger string) {
	if m != nil {
		m.reconcileRuns.WithLabelValues(trigger).Inc()
	}
}
