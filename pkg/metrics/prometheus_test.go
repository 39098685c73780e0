package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecorder_CountsQueryEvents(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := New(reg)

	r.RecordQueryEvent("fetch", "charts")
	r.RecordQueryEvent("fetch", "charts")
	r.RecordQueryEvent("dedup", "chartData")

	if got := testutil.ToFloat64(r.queryEvents.WithLabelValues("fetch", "charts")); got != 2 {
		t.Errorf("expected 2 fetch events, got %v", got)
	}
	if got := testutil.ToFloat64(r.queryEvents.WithLabelValues("dedup", "chartData")); got != 1 {
		t.Errorf("expected 1 dedup event, got %v", got)
	}
}

func TestRecorder_UpstreamAndErrors(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := New(reg)

	r.RecordUpstream("charts.list", "ok", 0.01)
	r.RecordError("network")

	if got := testutil.ToFloat64(r.upstreamTotal.WithLabelValues("charts.list", "ok")); got != 1 {
		t.Errorf("expected 1 upstream request, got %v", got)
	}
	if got := testutil.ToFloat64(r.errorsTotal.WithLabelValues("network")); got != 1 {
		t.Errorf("expected 1 network error, got %v", got)
	}
}
