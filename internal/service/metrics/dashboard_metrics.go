package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	DashboardLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "chartdash",
			Subsystem: "dashboard",
			Name:      "latency_seconds",
			Help:      "Latency of dashboard endpoints",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"endpoint"},
	)

	DashboardErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "chartdash",
			Subsystem: "dashboard",
			Name:      "errors_total",
			Help:      "Errors by dashboard endpoint and kind",
		},
		[]string{"endpoint", "kind"},
	)

	WebsocketClients = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "chartdash",
			Subsystem: "ws",
			Name:      "clients",
			Help:      "Connected websocket clients",
		},
	)
)

func Register() {
	once.Do(func() {
		prometheus.MustRegister(DashboardLatency, DashboardErrors, WebsocketClients)
	})
}
