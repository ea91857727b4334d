package observability

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Record(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics("test", reg)

	m.RecordTick("ok", 0.2, 1_750_000_000)
	m.RecordTick("error", 0.4, 1_750_000_010)
	m.RecordVeto("TREND", "REGIME_CHOP")
	m.RecordClose("TARGET", 1.5, 2.0)
	m.RecordClose("STOP", -1, -1)
	m.UpdateAccount(101, 102, 0.01, true, 2, 3)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.TicksTotal.WithLabelValues("ok")))
	assert.Equal(t, 1_750_000_000.0, testutil.ToFloat64(m.LastSuccessfulTick))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.GateVetoes.WithLabelValues("TREND", "REGIME_CHOP")))
	assert.Equal(t, 1.5, testutil.ToFloat64(m.RealizedNetUSD))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.PositionsClosed.WithLabelValues("STOP")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Locked))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.PendingSize))
}

func TestHandlerFor(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics("test", reg)
	m.TicksSkipped.Inc()

	rec := httptest.NewRecorder()
	HandlerFor(reg).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "test_live_ticks_skipped_total 1")
}
