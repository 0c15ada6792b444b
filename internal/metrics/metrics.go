package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	SourceRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "source_requests_total", Help: "Bar source requests by outcome"},
		[]string{"source", "outcome"},
	)
	PipelineRows = prometheus.NewGauge(
		prometheus.GaugeOpts{Name: "pipeline_feature_rows", Help: "Feature rows produced by the last pipeline pass"},
	)
	PipelineFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "pipeline_instrument_failures_total", Help: "Instruments excluded from a pipeline pass"},
		[]string{"symbol"},
	)
	PipelineDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{Name: "pipeline_duration_seconds", Help: "Pipeline pass duration", Buckets: prometheus.DefBuckets},
	)
	SignalsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "signals_total", Help: "Signals emitted"},
		[]string{"signal"},
	)
	ModelsTrained = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "models_trained_total", Help: "Classifiers trained"},
		[]string{"target"},
	)
	RefreshTimestamp = prometheus.NewGauge(
		prometheus.GaugeOpts{Name: "signals_last_refresh_timestamp_seconds", Help: "Unix time of the last signal refresh"},
	)
)

func init() {
	prometheus.MustRegister(SourceRequests, PipelineRows, PipelineFailures, PipelineDuration, SignalsTotal, ModelsTrained, RefreshTimestamp)
}
