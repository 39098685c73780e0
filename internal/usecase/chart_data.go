package usecase

import (
	"context"
	"errors"
	"time"

	"golang.org/x/sync/errgroup"

	"ChartDash/internal/domain/models"
	drepo "ChartDash/internal/domain/repository"
	"ChartDash/pkg/logger"
	"ChartDash/pkg/query"
)

// ViewState is what a chart card renders.
type ViewState string

const (
	ViewLoading ViewState = "loading"
	ViewSuccess ViewState = "success"
	ViewNoData  ViewState = "no_data"
	ViewError   ViewState = "error"
)

// ChartDataView is the data state of one chart card.
type ChartDataView struct {
	SeriesID     string               `json:"seriesId"`
	Frequency    string               `json:"frequency"`
	State        ViewState            `json:"state"`
	Observations []models.Observation `json:"observations"`
	Error        string               `json:"error,omitempty"`
	// Retryable is set when the card should offer a retry action.
	Retryable bool      `json:"retryable"`
	UpdatedAt time.Time `json:"updatedAt,omitempty"`
	Err       error     `json:"-"`
}

// ChartDataKey is the query key of a series at a frequency.
func ChartDataKey(seriesID string, freq drepo.Frequency) query.Key {
	return query.Key{"chartData", seriesID, string(freq)}
}

// ChartDataUseCase loads observations for chart cards.
type ChartDataUseCase struct {
	qc          *query.Client
	source      drepo.SeriesSource
	concurrency int
	log         *logger.Logger
}

func NewChartDataUseCase(qc *query.Client, source drepo.SeriesSource, concurrency int, l *logger.Logger) *ChartDataUseCase {
	if concurrency <= 0 {
		concurrency = 4
	}
	if l == nil {
		l = logger.Nop()
	}
	return &ChartDataUseCase{qc: qc, source: source, concurrency: concurrency, log: l.With("chart_data")}
}

// Get returns the observations of seriesID. An empty frequency means 1m.
// Failed loads are not retried; missing data is reported as ViewNoData.
func (uc *ChartDataUseCase) Get(ctx context.Context, seriesID, frequency string) ChartDataView {
	freq := frequencyOf(frequency)

	res := query.Query(ctx, uc.qc, ChartDataKey(seriesID, freq),
		func(ctx context.Context) ([]models.Observation, error) {
			return uc.source.FetchObservations(ctx, seriesID, freq)
		},
		query.WithoutRetry())

	view := ChartDataView{
		SeriesID:     seriesID,
		Frequency:    string(freq),
		Observations: []models.Observation{},
		UpdatedAt:    res.UpdatedAt,
		Err:          res.Err,
	}
	switch {
	case res.Err != nil && errors.Is(res.Err, drepo.ErrDataUnavailable):
		view.State = ViewNoData
		uc.log.Warn("no data available", logger.String("series_id", seriesID), logger.String("frequency", string(freq)))
	case res.Err != nil:
		view.State = ViewError
		view.Error = res.Err.Error()
		view.Retryable = !errors.Is(res.Err, drepo.ErrValidation)
		uc.log.Error("fetch chart data failed", logger.String("series_id", seriesID), logger.Error(res.Err))
	case res.Status == query.StatusSuccess:
		view.State = ViewSuccess
		view.Observations = res.Data
	default:
		view.State = ViewLoading
	}
	return view
}

func frequencyOf(s string) drepo.Frequency {
	if s == "" {
		return drepo.DefaultFrequency()
	}
	return drepo.Frequency(s)
}

// Prefetch warms the data of every chart in charts, a few at a time.
// Individual failures stay in their cache entries and are not returned.
func (uc *ChartDataUseCase) Prefetch(ctx context.Context, charts []models.ChartConfig) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(uc.concurrency)

	seen := make(map[string]struct{}, len(charts))
	for _, c := range charts {
		if c.DataSource == nil || c.DataSource.Value == "" {
			continue
		}
		seriesID, freq := c.DataSource.Value, c.TimeFrequency
		k := ChartDataKey(seriesID, frequencyOf(freq)).String()
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}

		g.Go(func() error {
			uc.Get(gctx, seriesID, freq)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}
