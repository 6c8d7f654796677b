package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.CodeIssued()
	m.CodeIssued()
	m.DeliveryFailed()
	m.AuthFailed("code", "mismatch")
	m.ThrottledRequest("code_request")
	m.LoggedIn()

	assert.Equal(t, 2.0, testutil.ToFloat64(m.CodeTokensIssued))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CodeDeliveryFailures))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.AuthFailures.WithLabelValues("code", "mismatch")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Throttled.WithLabelValues("code_request")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.LoginsTotal))
}

func TestMetrics_Nil(t *testing.T) {
	var m *Metrics

	assert.NotPanics(t, func() {
		m.CodeIssued()
		m.DeliveryFailed()
		m.AuthFailed("password", "mismatch")
		m.ThrottledRequest("code_verification")
		m.LoggedIn()
	})
}

func TestMetrics_DoubleRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	New(reg)

	assert.NotPanics(t, func() { New(reg) })
}
