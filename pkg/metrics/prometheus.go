package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements repository.Metrics and query.Metrics using Prometheus.
type Recorder struct {
	upstreamTotal *prometheus.CounterVec
	upstreamTime  *prometheus.HistogramVec
	errorsTotal   *prometheus.CounterVec
	queryEvents   *prometheus.CounterVec
	latency       *prometheus.HistogramVec
}

// New creates a new Prometheus metrics recorder registered on reg.
// A nil reg uses the default registerer.
func New(reg prometheus.Registerer) *Recorder {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Recorder{
		upstreamTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "chartdash_upstream_requests_total",
				Help: "Total number of requests sent to the chart backend and FRED",
			},
			[]string{"operation", "status"},
		),
		upstreamTime: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "chartdash_upstream_duration_seconds",
				Help:    "Duration of upstream requests in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		errorsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "chartdash_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		queryEvents: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "chartdash_query_events_total",
				Help: "Query cache events by kind (fetch, dedup, hit, retry, rollback, cancel)",
			},
			[]string{"event", "scope"},
		),
		latency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "chartdash_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}
}

// RecordUpstream records one upstream call and its outcome.
func (r *Recorder) RecordUpstream(op, status string, seconds float64) {
	r.upstreamTotal.WithLabelValues(op, status).Inc()
	r.upstreamTime.WithLabelValues(op).Observe(seconds)
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordQueryEvent counts a query cache event for the given key scope.
func (r *Recorder) RecordQueryEvent(event, scope string) {
	r.queryEvents.WithLabelValues(event, scope).Inc()
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}
