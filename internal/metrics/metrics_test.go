package metrics_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lambda-feedback/respawn/internal/metrics"
)

func TestMetrics_Handler_ServesCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	m.Restarts.Inc()
	m.WorkerStarts.WithLabelValues(metrics.StartOK).Inc()
	m.WorkerUp.Set(1)

	rec := httptest.NewRecorder()
	metrics.Handler(reg).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "respawn_restarts_total 1")
	assert.Contains(t, rec.Body.String(), `respawn_worker_starts_total{result="ok"} 1`)
	assert.Contains(t, rec.Body.String(), "respawn_worker_up 1")
}

func TestMetrics_New_RegistersOncePerRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics.New(reg)

	assert.Panics(t, func() {
		metrics.New(reg)
	})

	// a nop instance uses its own registry
	m := metrics.NewNop()
	m.Restarts.Inc()
	assert.Equal(t, float64(1), testutil.ToFloat64(m.Restarts))
}
