package repository

import (
	"context"

	"ChartDash/internal/domain/models"
)

// ChartRepository is the external chart-config backend.
type ChartRepository interface {
	List(ctx context.Context, page, limit int) (models.Page, error)
	Create(ctx context.Context, cfg models.ChartConfig) ([]models.ChartConfig, error)
	Update(ctx context.Context, id int, cfg models.ChartConfig) error
	Delete(ctx context.Context, id int) ([]models.ChartConfig, error)
}

// SeriesSource is the third-party time-series provider.
type SeriesSource interface {
	// SearchSeries never fails; transport errors yield an empty result.
	SearchSeries(ctx context.Context, query string, offset, limit int) models.SearchResult
	FetchObservations(ctx context.Context, seriesID string, frequency Frequency) ([]models.Observation, error)
}

// EventPublisher announces chart mutations to other dashboard instances.
type EventPublisher interface {
	PublishChartEvent(ctx context.Context, ev models.ChartEvent) error
	Close() error
}

// Notifier delivers toasts to connected views.
type Notifier interface {
	Notify(t models.Toast)
}

type Metrics interface {
	RecordUpstream(op string, status string, seconds float64)
	RecordError(kind string)
	RecordLatency(op string, seconds float64)
}
