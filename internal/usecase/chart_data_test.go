package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"ChartDash/internal/domain/models"
	drepo "ChartDash/internal/domain/repository"
	"ChartDash/pkg/query"
)

func TestChartData_EmptyObservationsIsNoData(t *testing.T) {
	qc := newTestQueryClient()
	defer qc.Close()
	src := &fakeSource{obs: map[string][]models.Observation{"CPIAUCSL": {}}}
	uc := NewChartDataUseCase(qc, src, 2, nil)

	view := uc.Get(context.Background(), "CPIAUCSL", "1y")
	if view.State != ViewNoData {
		t.Fatalf("expected no_data, got %s (%v)", view.State, view.Err)
	}
	if view.Retryable || len(view.Observations) != 0 {
		t.Errorf("unexpected view %+v", view)
	}
}

func TestChartData_DefaultsFrequencyAndCaches(t *testing.T) {
	qc := newTestQueryClient()
	defer qc.Close()
	obs := []models.Observation{{Date: "2024-03-01", Value: 310.3}}
	src := &fakeSource{obs: map[string][]models.Observation{"CPIAUCSL": obs}}
	uc := NewChartDataUseCase(qc, src, 2, nil)

	view := uc.Get(context.Background(), "CPIAUCSL", "")
	if view.State != ViewSuccess || view.Frequency != "1m" {
		t.Fatalf("unexpected view %+v", view)
	}
	if diff := cmp.Diff(obs, view.Observations); diff != "" {
		t.Errorf("observations mismatch (-want +got):\n%s", diff)
	}

	uc.Get(context.Background(), "CPIAUCSL", "1m")
	if n := src.callCount(); n != 1 {
		t.Errorf("expected the second read to hit the cache, got %d fetches", n)
	}
	if _, ok := qc.Entry(query.Key{"chartData", "CPIAUCSL", "1m"}); !ok {
		t.Error("expected entry under the chartData key")
	}
}

func TestChartData_ErrorsAreNotRetried(t *testing.T) {
	qc := query.New(query.WithRetryPolicy(drepo.IsTransient))
	defer qc.Close()
	src := &fakeSource{err: drepo.NewRequestError(drepo.ErrServer, "fred.observations", errors.New("502"))}
	uc := NewChartDataUseCase(qc, src, 2, nil)

	view := uc.Get(context.Background(), "GDP", "1w")
	if view.State != ViewError || !view.Retryable || view.Error == "" {
		t.Fatalf("unexpected view %+v", view)
	}
	if n := src.callCount(); n != 1 {
		t.Errorf("chart data must not be retried, got %d fetches", n)
	}
}

func TestChartData_InvalidFrequencyIsNotRetryable(t *testing.T) {
	qc := newTestQueryClient()
	defer qc.Close()
	src := &fakeSource{err: drepo.NewRequestError(drepo.ErrValidation, "fred.observations", errors.New("bad frequency"))}
	uc := NewChartDataUseCase(qc, src, 2, nil)

	view := uc.Get(context.Background(), "GDP", "5y")
	if view.State != ViewError || view.Retryable {
		t.Fatalf("unexpected view %+v", view)
	}
}

func TestChartData_PrefetchDedupesSeries(t *testing.T) {
	qc := newTestQueryClient()
	defer qc.Close()
	src := &fakeSource{obs: map[string][]models.Observation{
		"CPIAUCSL": {{Date: "2024-03-01", Value: 1}},
		"GDP":      {{Date: "2024-01-01", Value: 2}},
	}}
	uc := NewChartDataUseCase(qc, src, 2, nil)

	a := cpiChart().WithID(1)
	b := cpiChart().WithID(2)
	b.TimeFrequency = ""
	c := cpiChart().WithID(3)
	c.DataSource = &models.DataSource{Label: "GDP", Value: "GDP"}
	noSource := cpiChart().WithID(4)
	noSource.DataSource = nil

	if err := uc.Prefetch(context.Background(), []models.ChartConfig{a, b, c, noSource}); err != nil {
		t.Fatalf("Prefetch failed: %v", err)
	}
	if n := src.callCount(); n != 2 {
		t.Errorf("expected 2 fetches, got %d", n)
	}
	for _, k := range []query.Key{ChartDataKey("CPIAUCSL", "1m"), ChartDataKey("GDP", "1m")} {
		if e, ok := qc.Entry(k); !ok || e.Status != query.StatusSuccess {
			t.Errorf("expected %s prefetched, got %+v", k, e)
		}
	}
}

func TestSeries_SearchDelegates(t *testing.T) {
	src := &fakeSource{}
	uc := NewSeriesUseCase(src, 20)

	got := uc.Search(context.Background(), "gdp", -5)
	if len(got.Options) != 1 || got.Options[0].Value != "gdp" {
		t.Errorf("unexpected result %+v", got)
	}
}
