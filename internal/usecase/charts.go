package usecase

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"ChartDash/internal/domain/models"
	drepo "ChartDash/internal/domain/repository"
	apphttp "ChartDash/pkg/http"
	"ChartDash/pkg/logger"
	"ChartDash/pkg/query"
)

// ChartsKey is the query key of the paginated chart list.
var ChartsKey = query.Key{"charts"}

const fallbackErrorDescription = "Something went wrong!"

// ChartList is the flattened state of the chart list.
type ChartList struct {
	Charts   []models.ChartConfig `json:"charts"`
	HasMore  bool                 `json:"hasMore"`
	Status   query.Status         `json:"status"`
	Fetching bool                 `json:"fetching"`
	Pages    int                  `json:"pages"`
	Error    string               `json:"error,omitempty"`
	Err      error                `json:"-"`
}

// InvalidChartError lists the fields of a chart config that failed validation.
type InvalidChartError struct {
	Fields []apphttp.ValidationError
}

func (e *InvalidChartError) Error() string {
	msgs := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		msgs = append(msgs, f.Message)
	}
	return "invalid chart: " + strings.Join(msgs, "; ")
}

func (e *InvalidChartError) Is(target error) bool { return target == drepo.ErrValidation }

// ChartsUseCase manages the chart list with optimistic mutations.
type ChartsUseCase struct {
	repo       drepo.ChartRepository
	qc         *query.Client
	list       *query.Infinite[models.Page]
	publisher  drepo.EventPublisher
	notifier   drepo.Notifier
	instanceID string
	log        *logger.Logger
	now        func() time.Time
}

func NewChartsUseCase(
	repo drepo.ChartRepository,
	qc *query.Client,
	publisher drepo.EventPublisher,
	notifier drepo.Notifier,
	pageSize int,
	instanceID string,
	l *logger.Logger,
) *ChartsUseCase {
	if pageSize <= 0 {
		pageSize = 10
	}
	if l == nil {
		l = logger.Nop()
	}
	uc := &ChartsUseCase{
		repo:       repo,
		qc:         qc,
		publisher:  publisher,
		notifier:   notifier,
		instanceID: instanceID,
		log:        l.With("charts"),
		now:        time.Now,
	}
	uc.list = query.NewInfinite(qc, ChartsKey,
		func(ctx context.Context, page int) (models.Page, error) {
			return repo.List(ctx, page, pageSize)
		},
		query.InfiniteOptions[models.Page]{
			InitialPageParam: 1,
			GetNextPageParam: nextPageParam,
		})
	return uc
}

func nextPageParam(last models.Page) (int, bool) {
	if last.HasMore {
		return last.CurrentPage + 1, true
	}
	return 0, false
}

// List returns the loaded charts, fetching the first page when needed.
func (uc *ChartsUseCase) List(ctx context.Context) ChartList {
	return listOf(uc.list.Fetch(ctx))
}

// LoadMore fetches the next page. It is a no-op once hasMore is false.
func (uc *ChartsUseCase) LoadMore(ctx context.Context) ChartList {
	return listOf(uc.list.FetchNextPage(ctx))
}

func listOf(res query.InfiniteResult[models.Page]) ChartList {
	out := ChartList{
		Charts:   []models.ChartConfig{},
		HasMore:  res.HasNextPage,
		Status:   res.Status,
		Fetching: res.Fetching,
		Pages:    len(res.Data.Pages),
		Err:      res.Err,
	}
	for _, p := range res.Data.Pages {
		out.Charts = append(out.Charts, p.Charts...)
	}
	if res.Err != nil {
		out.Error = res.Err.Error()
	}
	return out
}

// Add validates cfg and creates it on the backend.
func (uc *ChartsUseCase) Add(ctx context.Context, cfg models.ChartConfig) ([]models.ChartConfig, error) {
	cfg = cfg.WithoutID()
	if errs := apphttp.ValidateStruct(ctx, &cfg); len(errs) > 0 {
		return nil, &InvalidChartError{Fields: errs}
	}

	return query.Mutate(ctx, uc.qc, cfg, uc.repo.Create, query.MutationOptions[models.ChartConfig, []models.ChartConfig]{
		OnSuccess: func(charts []models.ChartConfig, cfg models.ChartConfig) {
			uc.notify(models.ToastDefault, "Chart added successfully!", "")
			uc.publish(ctx, models.ChartCreated, createdID(charts, cfg), cfg.Title)
		},
		OnError: func(err error, _ models.ChartConfig) {
			uc.notify(models.ToastDestructive, "Failed to add the chart", describe(err))
		},
		Invalidate: []query.Key{ChartsKey},
	})
}

// Update replaces chart id. The cached list shows the new config until the
// backend answers; a failure restores it exactly.
func (uc *ChartsUseCase) Update(ctx context.Context, id int, cfg models.ChartConfig) error {
	cfg = cfg.WithID(id)
	if errs := apphttp.ValidateStruct(ctx, &cfg); len(errs) > 0 {
		return &InvalidChartError{Fields: errs}
	}

	_, err := query.Mutate(ctx, uc.qc, cfg,
		func(ctx context.Context, cfg models.ChartConfig) (struct{}, error) {
			return struct{}{}, uc.repo.Update(ctx, id, cfg)
		},
		query.MutationOptions[models.ChartConfig, struct{}]{
			OnMutate: func(tx *query.Tx, cfg models.ChartConfig) error {
				tx.CancelQueries(ChartsKey)
				tx.UpdateQueryData(ChartsKey, patchPages(func(charts []models.ChartConfig) []models.ChartConfig {
					out := make([]models.ChartConfig, len(charts))
					for i, c := range charts {
						if c.IDValue() == id {
							c = cfg
						}
						out[i] = c
					}
					return out
				}))
				return nil
			},
			OnSuccess: func(_ struct{}, cfg models.ChartConfig) {
				uc.notify(models.ToastDefault, "Chart updated successfully!", "")
				uc.publish(ctx, models.ChartUpdated, id, cfg.Title)
			},
			OnError: func(error, models.ChartConfig) {
				uc.notify(models.ToastDestructive, "Error", "Failed to update the chart. Please try again.")
			},
			Invalidate: []query.Key{ChartsKey},
		})
	return err
}

// Delete removes chart id, hiding it from the cached list right away.
func (uc *ChartsUseCase) Delete(ctx context.Context, id int) ([]models.ChartConfig, error) {
	return query.Mutate(ctx, uc.qc, id, uc.repo.Delete, query.MutationOptions[int, []models.ChartConfig]{
		OnMutate: func(tx *query.Tx, id int) error {
			tx.CancelQueries(ChartsKey)
			tx.UpdateQueryData(ChartsKey, patchPages(func(charts []models.ChartConfig) []models.ChartConfig {
				out := make([]models.ChartConfig, 0, len(charts))
				for _, c := range charts {
					if c.IDValue() != id {
						out = append(out, c)
					}
				}
				return out
			}))
			return nil
		},
		OnSuccess: func(_ []models.ChartConfig, id int) {
			uc.notify(models.ToastDefault, "Chart deleted successfully!", "")
			uc.publish(ctx, models.ChartDeleted, id, "")
		},
		OnError: func(err error, _ int) {
			uc.notify(models.ToastDestructive, "Failed to delete chart.", describe(err))
		},
		Invalidate: []query.Key{ChartsKey},
	})
}

// patchPages adapts fn to the cached InfiniteData of the chart list.
func patchPages(fn func([]models.ChartConfig) []models.ChartConfig) func(old any) any {
	return func(old any) any {
		d, ok := old.(query.InfiniteData[models.Page])
		if !ok {
			return old
		}
		return d.MapPages(func(p models.Page) models.Page {
			p.Charts = fn(p.Charts)
			return p
		})
	}
}

// createdID picks the id the backend assigned to cfg, matching by title
// among the returned charts and preferring the highest id.
func createdID(charts []models.ChartConfig, cfg models.ChartConfig) int {
	id := 0
	for _, c := range charts {
		if c.Title == cfg.Title && c.IDValue() > id {
			id = c.IDValue()
		}
	}
	return id
}

func describe(err error) string {
	var reqErr *drepo.RequestError
	if errors.As(err, &reqErr) && reqErr.Message != "" {
		return reqErr.Message
	}
	if err != nil && err.Error() != "" {
		return err.Error()
	}
	return fallbackErrorDescription
}

func (uc *ChartsUseCase) notify(variant models.ToastVariant, title, description string) {
	if uc.notifier == nil {
		return
	}
	uc.notifier.Notify(models.Toast{Variant: variant, Title: title, Description: description})
}

func (uc *ChartsUseCase) publish(ctx context.Context, action models.ChartAction, chartID int, title string) {
	if uc.publisher == nil {
		return
	}
	ev := models.ChartEvent{
		ID:      uuid.NewString(),
		Source:  uc.instanceID,
		Action:  action,
		ChartID: chartID,
		Title:   title,
		At:      uc.now().UTC(),
	}
	if err := uc.publisher.PublishChartEvent(ctx, ev); err != nil {
		uc.log.Warn("publish chart event failed",
			logger.String("action", string(action)),
			logger.Int("chart_id", chartID),
			logger.Error(err))
	}
}
