package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Counters(t *testing.T) {
	m := New()

	m.ObserveCheckout("success", 20*time.Millisecond)
	m.ObserveCheckout("success", 10*time.Millisecond)
	m.ObserveCheckout("insufficient_stock", time.Millisecond)
	m.ObserveVerification("verified")
	m.AddExpired(3)
	m.AddExpired(0)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.checkouts.WithLabelValues("success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.checkouts.WithLabelValues("insufficient_stock")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.verifications.WithLabelValues("verified")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.expired))
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveCheckout("success", time.Second)
		m.ObserveVerification("verified")
		m.AddExpired(1)
		m.ObserveRequest("/healthz", 200, time.Millisecond)
	})
}

func TestMetrics_Handler(t *testing.T) {
	m := New()
	m.ObserveRequest("/carts", http.StatusCreated, 3*time.Millisecond)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `selfcheckout_http_requests_total{handler="/carts",status="201"} 1`)
}
