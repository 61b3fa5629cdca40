package metricsvc

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/trezcool/stipend/core/valuation"
)

const namespace = "stipend"

// Recorder counts the events the engine and the ingestion pipeline surface for review.
type Recorder struct {
	fallbacks    *prometheus.CounterVec
	uploads      *prometheus.CounterVec
	uploadRows   *prometheus.HistogramVec
	httpRequests *prometheus.CounterVec
}

var _ valuation.FallbackRecorder = (*Recorder)(nil) // interface compliance check

// NewRecorder registers the collectors on `reg` (prometheus.DefaultRegisterer if nil).
func NewRecorder(reg prometheus.Registerer) *Recorder {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Recorder{
		fallbacks: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "valuation",
			Name:      "fallbacks_total",
			Help:      "Total number of values derived through a fallback (zero rate or UNKNOWN cost center).",
		}, []string{"kind", "position"}),
		uploads: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "uploads_total",
			Help:      "Total number of bulk uploads by format and result.",
		}, []string{"format", "result"}),
		uploadRows: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "upload_rows",
			Help:      "Number of records committed per successful upload.",
			Buckets:   []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000},
		}, []string{"format"}),
		httpRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests by route and status code.",
		}, []string{"method", "route", "code"}),
	}
}

func (r *Recorder) RecordFallback(kind, position string) {
	r.fallbacks.WithLabelValues(kind, position).Inc()
}

func (r *Recorder) RecordUpload(format string, committed int, err error) {
	result := "success"
	if err != nil {
		result = "failure"
	}
	r.uploads.WithLabelValues(format, result).Inc()
	if err == nil {
		r.uploadRows.WithLabelValues(format).Observe(float64(committed))
	}
}

func (r *Recorder) RecordRequest(method, route string, code int) {
	r.httpRequests.WithLabelValues(method, route, strconv.Itoa(code)).Inc()
}
