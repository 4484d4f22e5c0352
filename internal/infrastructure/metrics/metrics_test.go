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

	m.ObserveTransition("approve", "success", 20*time.Millisecond)
	m.ObserveTransition("approve", "success", 10*time.Millisecond)
	m.ObserveTransition("approve", "conflict", time.Millisecond)
	m.ObserveGeneration("generated", 3)
	m.ObserveGeneration("skipped", 0)
	m.ObserveWebhook("accepted")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.transitions.WithLabelValues("approve", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.transitions.WithLabelValues("approve", "conflict")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.generations.WithLabelValues("generated")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.generations))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.webhooks.WithLabelValues("accepted")))
}

func TestMetrics_Handler(t *testing.T) {
	m := New()
	m.ObserveWebhook("failed")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `payables_webhook_requests_total{status="failed"} 1`)
}
