package metrics

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics_Counters(t *testing.T) {
	m := New()

	m.AllocationRun("model", 20*time.Millisecond)
	m.AllocationRun("plan", 0)
	m.AllocationRun("plan", 0)
	m.PredictionFallback("severity")
	m.TrainingRun(true, 0.42)
	m.TrainingRun(false, 0)
	m.SchedulerTick("skipped_volume")

	assert.Equal(t, 1.0, testutil.ToFloat64(m.allocationRuns.WithLabelValues("model")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.allocationRuns.WithLabelValues("plan")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.predictionFallbacks.WithLabelValues("severity")))
	assert.Equal(t, 0.42, testutil.ToFloat64(m.modelAccuracy))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.trainingRuns.WithLabelValues("failed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.schedulerTicks.WithLabelValues("skipped_volume")))
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.AllocationRun("model", time.Second)
		m.PredictionFallback("default")
		m.StreamClients("ws", 1)
		m.HTTPRequest("GET", 200, time.Millisecond)
	})
}

func TestMetrics_Handler(t *testing.T) {
	m := New()
	m.IntelligenceReported("Crime")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	assert.Equal(t, 200, rec.Code)
	assert.Contains(t, rec.Body.String(), `patrolplan_intelligence_reports_total{type="Crime"} 1`)
}
