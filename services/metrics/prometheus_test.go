package metricsvc

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/trezcool/stipend/core/valuation"
)

func TestRecorder(t *testing.T) {
	rec := NewRecorder(prometheus.NewRegistry())

	rec.RecordFallback(valuation.FallbackRate, "TA")
	rec.RecordFallback(valuation.FallbackRate, "TA")
	rec.RecordFallback(valuation.FallbackCostCenter, "IA")
	assert.Equal(t, float64(2), testutil.ToFloat64(rec.fallbacks.WithLabelValues(valuation.FallbackRate, "TA")))
	assert.Equal(t, float64(1), testutil.ToFloat64(rec.fallbacks.WithLabelValues(valuation.FallbackCostCenter, "IA")))

	rec.RecordUpload("five_field", 12, nil)
	rec.RecordUpload("legacy", 0, errors.New("bad row"))
	assert.Equal(t, float64(1), testutil.ToFloat64(rec.uploads.WithLabelValues("five_field", "success")))
	assert.Equal(t, float64(1), testutil.ToFloat64(rec.uploads.WithLabelValues("legacy", "failure")))
	assert.Equal(t, 1, testutil.CollectAndCount(rec.uploadRows))

	rec.RecordRequest("GET", "/v1/assignments", 200)
	assert.Equal(t, float64(1), testutil.ToFloat64(rec.httpRequests.WithLabelValues("GET", "/v1/assignments", "200")))
}

func TestRecorder_EngineWiring(t *testing.T) {
	rec := NewRecorder(prometheus.NewRegistry())
	engine := valuation.NewEngine(valuation.DefaultRules(), valuation.WithFallbackRecorder(rec))

	hours := 7
	engine.Compensation(valuation.Inputs{Position: "TA", WeeklyHours: &hours, EducationLevel: "MS", FultonFellow: "No"})
	assert.Equal(t, float64(1), testutil.ToFloat64(rec.fallbacks.WithLabelValues(valuation.FallbackRate, "TA")))
}
