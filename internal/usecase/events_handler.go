package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"ChartDash/internal/domain/models"
	drepo "ChartDash/internal/domain/repository"
	"ChartDash/pkg/logger"
	"ChartDash/pkg/query"
)

// ChartEventsHandler consumes chart events from other dashboard instances
// and marks the local chart list stale.
type ChartEventsHandler struct {
	topic      string
	instanceID string
	qc         *query.Client
	metrics    drepo.Metrics
	log        *logger.Logger
}

func NewChartEventsHandler(topic, instanceID string, qc *query.Client, metrics drepo.Metrics, l *logger.Logger) *ChartEventsHandler {
	if l == nil {
		l = logger.Nop()
	}
	return &ChartEventsHandler{
		topic:      topic,
		instanceID: instanceID,
		qc:         qc,
		metrics:    metrics,
		log:        l.With("chart_events"),
	}
}

func (h *ChartEventsHandler) Topic() string { return h.topic }

func (h *ChartEventsHandler) Handle(_ context.Context, b []byte) error {
	var ev models.ChartEvent
	if err := json.Unmarshal(b, &ev); err != nil {
		if h.metrics != nil {
			h.metrics.RecordError("chart_event_unmarshal")
		}
		return fmt.Errorf("decode chart event: %w", err)
	}
	if ev.Source == h.instanceID {
		return nil
	}

	if h.metrics != nil && !ev.At.IsZero() {
		h.metrics.RecordLatency("chart_event.lag", time.Since(ev.At).Seconds())
	}

	n := h.qc.Invalidate(ChartsKey)
	h.log.Info("chart list invalidated by remote event",
		logger.String("source", ev.Source),
		logger.String("action", string(ev.Action)),
		logger.Int("chart_id", ev.ChartID),
		logger.Int("entries", n))
	return nil
}
