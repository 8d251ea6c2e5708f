package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raaihank/ai-shield/internal/config"
)

func testCollector(enabled bool) *Collector {
	return NewCollector(config.MetricsConfig{Enabled: enabled, Namespace: "test"}, prometheus.NewRegistry())
}

func TestCollectorRecordEvaluation(t *testing.T) {
	c := testCollector(true)

	c.RecordEvaluation("block", "restricted", 60, 2*time.Millisecond)
	c.RecordEvaluation("block", "restricted", 90, time.Millisecond)
	c.RecordEvaluation("allow", "public", 0, time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(c.evaluationsTotal.WithLabelValues("block", "restricted")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.evaluationsTotal.WithLabelValues("allow", "public")))
	assert.Equal(t, 1, testutil.CollectAndCount(c.riskScore))
}

func TestCollectorCounters(t *testing.T) {
	c := testCollector(true)

	c.RecordDetections([]string{"Email Address", "Email Address", "IP Address"})
	c.RecordRateLimited()
	c.RecordAccessDenied("employee", "code-assist")
	c.RecordStoreError("audit")
	c.RecordHTTPRequest(http.MethodPost, "/v1/detect", http.StatusOK, 3*time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(c.detectionsTotal.WithLabelValues("Email Address")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.detectionsTotal.WithLabelValues("IP Address")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.rateLimitedTotal))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.accessDeniedTotal.WithLabelValues("employee", "code-assist")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.storeErrorsTotal.WithLabelValues("audit")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.httpRequestsTotal.WithLabelValues("POST", "/v1/detect", "200")))
}

func TestCollectorDisabled(t *testing.T) {
	c := testCollector(false)

	c.RecordEvaluation("mask", "internal", 10, time.Millisecond)
	c.RecordRateLimited()

	assert.Equal(t, 0.0, testutil.ToFloat64(c.evaluationsTotal.WithLabelValues("mask", "internal")))
	assert.Equal(t, 0.0, testutil.ToFloat64(c.rateLimitedTotal))

	var nilCollector *Collector
	assert.False(t, nilCollector.Enabled())
	assert.NotPanics(t, func() { nilCollector.RecordRateLimited() })
}

func TestCollectorHandler(t *testing.T) {
	c := testCollector(true)
	c.RecordRateLimited()

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "test_rate_limited_total 1")
}
