// Package metrics provides observability for the client auth flows.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics counts the auth lifecycle events the session manager emits.
// All methods are nil-safe so instrumentation can be omitted in tests.
type Metrics struct {
	// Credential-exchange outcomes by operation and result.
	LoginOutcome *prometheus.CounterVec

	// Refresh outcomes by trigger ("scheduled", "retry", "manual") and result.
	RefreshOutcome *prometheus.CounterVec

	// Requests replayed after a 401-triggered refresh.
	RetriedRequests prometheus.Counter

	// Session teardowns by cause.
	Teardowns *prometheus.CounterVec

	// Profile fetch latency.
	ProfileFetchLatency prometheus.Histogram
}

// New registers all client auth metrics on the given registerer.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		LoginOutcome: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "paperchat_client_login_outcomes_total",
			Help: "Credential exchange outcomes by operation and result",
		}, []string{"operation", "result"}), // operation: "login", "register"

		RefreshOutcome: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "paperchat_client_refresh_outcomes_total",
			Help: "Token refresh outcomes by trigger and result",
		}, []string{"trigger", "result"}),

		RetriedRequests: factory.NewCounter(prometheus.CounterOpts{
			Name: "paperchat_client_retried_requests_total",
			Help: "Requests replayed once after a 401-triggered refresh",
		}),

		Teardowns: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "paperchat_client_session_teardowns_total",
			Help: "Session teardowns by cause",
		}, []string{"cause"}),

		ProfileFetchLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "paperchat_client_profile_fetch_duration_seconds",
			Help:    "Duration of GET /users/me calls",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),
	}
}

// IncLoginOutcome records a credential-exchange result.
func (m *Metrics) IncLoginOutcome(operation, result string) {
	if m != nil {
		m.LoginOutcome.WithLabelValues(operation, result).Inc()
	}
}

// IncRefreshOutcome records a refresh result for the given trigger.
func (m *Metrics) IncRefreshOutcome(trigger, result string) {
	if m != nil {
		m.RefreshOutcome.WithLabelValues(trigger, result).Inc()
	}
}

// IncRetriedRequest records a request replay after refresh.
func (m *Metrics) IncRetriedRequest() {
	if m != nil {
		m.RetriedRequests.Inc()
	}
}

// IncTeardown records a session teardown with its cause.
func (m *Metrics) IncTeardown(cause string) {
	if m != nil {
		m.Teardowns.WithLabelValues(cause).Inc()
	}
}

// ObserveProfileFetch records the duration of a profile fetch.
func (m *Metrics) ObserveProfileFetch(d time.Duration) {
	if m != nil {
		m.ProfileFetchLatency.Observe(d.Seconds())
	}
}
