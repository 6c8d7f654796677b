package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
)

// Metrics holds the counters of the two-factor flow.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	CodeTokensIssued     prometheus.Counter
	CodeDeliveryFailures prometheus.Counter
	AuthFailures         *prometheus.CounterVec
	Throttled            *prometheus.CounterVec
	LoginsTotal          prometheus.Counter
}

// New creates the counters and registers them with reg.
// Registration failures are logged, the counters stay usable.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		CodeTokensIssued: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "twofa_code_tokens_issued_total",
			Help: "Total number of code tokens issued after a delivered verification code.",
		}),
		CodeDeliveryFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "twofa_code_delivery_failures_total",
			Help: "Total number of verification codes that could not be delivered.",
		}),
		AuthFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "twofa_auth_failures_total",
			Help: "Total number of failed authentication attempts by internal reason.",
		}, []string{"step", "reason"}),
		Throttled: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "twofa_throttled_total",
			Help: "Total number of requests rejected by a throttle.",
		}, []string{"throttle"}),
		LoginsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "twofa_logins_total",
			Help: "Total number of successful two-factor logins.",
		}),
	}

	if reg == nil {
		log.Error().Msg("Prometheus registry is nil, cannot register metrics")
		return m
	}

	for _, c := range []prometheus.Collector{
		m.CodeTokensIssued, m.CodeDeliveryFailures, m.AuthFailures, m.Throttled, m.LoginsTotal,
	} {
		if err := reg.Register(c); err != nil {
			log.Warn().Err(err).Msg("Failed to register metric")
		}
	}

	return m
}

// CodeIssued counts a code token handed out
func (m *Metrics) CodeIssued() {
	if m != nil {
		m.CodeTokensIssued.Inc()
	}
}

// DeliveryFailed counts a verification code that could not be sent
func (m *Metrics) DeliveryFailed() {
	if m != nil {
		m.CodeDeliveryFailures.Inc()
	}
}

// AuthFailed counts a failed attempt at step with its internal reason
func (m *Metrics) AuthFailed(step, reason string) {
	if m != nil {
		m.AuthFailures.WithLabelValues(step, reason).Inc()
	}
}

// ThrottledRequest counts a request rejected by the named throttle
func (m *Metrics) ThrottledRequest(throttle string) {
	if m != nil {
		m.Throttled.WithLabelValues(throttle).Inc()
	}
}

// LoggedIn counts a completed two-factor login
func (m *Metrics) LoggedIn() {
	if m != nil {
		m.LoginsTotal.Inc()
	}
}
