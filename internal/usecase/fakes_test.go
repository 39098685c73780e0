package usecase

import (
	"context"
	"sync"
	"time"

	"ChartDash/internal/domain/models"
	drepo "ChartDash/internal/domain/repository"
	"ChartDash/pkg/query"
)

type fakeRepo struct {
	mu        sync.Mutex
	charts    []models.ChartConfig
	nextID    int
	listCalls int
	created   int

	failUpdate error
	failDelete error
	// during runs inside Update and Delete before they answer.
	during func()
}

func (r *fakeRepo) List(_ context.Context, page, limit int) (models.Page, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listCalls++
	start := (page - 1) * limit
	end := start + limit
	if start > len(r.charts) {
		start = len(r.charts)
	}
	if end > len(r.charts) {
		end = len(r.charts)
	}
	return models.Page{
		Charts:      append([]models.ChartConfig{}, r.charts[start:end]...),
		CurrentPage: page,
		HasMore:     end < len(r.charts),
	}, nil
}

func (r *fakeRepo) Create(_ context.Context, cfg models.ChartConfig) ([]models.ChartConfig, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.created++
	r.nextID++
	r.charts = append(r.charts, cfg.WithID(r.nextID))
	return append([]models.ChartConfig{}, r.charts...), nil
}

func (r *fakeRepo) Update(_ context.Context, id int, cfg models.ChartConfig) error {
	if r.during != nil {
		r.during()
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failUpdate != nil {
		return r.failUpdate
	}
	for i, c := range r.charts {
		if c.IDValue() == id {
			r.charts[i] = cfg.WithID(id)
		}
	}
	return nil
}

func (r *fakeRepo) Delete(_ context.Context, id int) ([]models.ChartConfig, error) {
	if r.during != nil {
		r.during()
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failDelete != nil {
		return nil, r.failDelete
	}
	kept := r.charts[:0:0]
	for _, c := range r.charts {
		if c.IDValue() != id {
			kept = append(kept, c)
		}
	}
	r.charts = kept
	return append([]models.ChartConfig{}, r.charts...), nil
}

func (r *fakeRepo) lists() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.listCalls
}

type fakeNotifier struct {
	mu     sync.Mutex
	toasts []models.Toast
}

func (n *fakeNotifier) Notify(t models.Toast) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.toasts = append(n.toasts, t)
}

func (n *fakeNotifier) all() []models.Toast {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]models.Toast(nil), n.toasts...)
}

type fakePublisher struct {
	mu     sync.Mutex
	events []models.ChartEvent
}

func (p *fakePublisher) PublishChartEvent(_ context.Context, ev models.ChartEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return nil
}

func (p *fakePublisher) Close() error { return nil }

func (p *fakePublisher) all() []models.ChartEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]models.ChartEvent(nil), p.events...)
}

type fakeSource struct {
	mu    sync.Mutex
	obs   map[string][]models.Observation
	err   error
	calls []string
}

func (s *fakeSource) SearchSeries(_ context.Context, q string, offset, limit int) models.SearchResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, "search:"+q)
	if q == "" {
		return models.EmptySearch()
	}
	return models.SearchResult{Options: []models.SeriesOption{{Label: q, Value: q}}, HasMore: offset+1 < limit}
}

func (s *fakeSource) FetchObservations(_ context.Context, seriesID string, freq drepo.Frequency) ([]models.Observation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, seriesID+":"+string(freq))
	if s.err != nil {
		return nil, s.err
	}
	obs, ok := s.obs[seriesID]
	if !ok || len(obs) == 0 {
		return nil, drepo.NewRequestError(drepo.ErrDataUnavailable, "fred.observations", nil)
	}
	return obs, nil
}

func (s *fakeSource) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

func newTestQueryClient() *query.Client {
	return query.New(query.WithDefaults(query.Defaults{StaleTime: time.Minute}))
}

func cpiChart() models.ChartConfig {
	return models.ChartConfig{
		Title:         "CPI",
		Type:          models.ChartLine,
		Color:         "#4b8dff",
		DataSource:    &models.DataSource{Label: "Consumer Price Index", Value: "CPIAUCSL"},
		TimeFrequency: "1m",
		LineStyle:     "solid",
		BarStyle:      "medium",
	}
}
