package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ChartDash/internal/domain/models"
	drepo "ChartDash/internal/domain/repository"
	"ChartDash/internal/service/ratelimit"
	"ChartDash/internal/usecase"
	"ChartDash/pkg/query"
)

type memRepo struct {
	mu        sync.Mutex
	charts    []models.ChartConfig
	nextID    int
	createErr error
	updateErr error
}

func (r *memRepo) List(_ context.Context, page, limit int) (models.Page, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return models.Page{Charts: append([]models.ChartConfig{}, r.charts...), CurrentPage: page}, nil
}

func (r *memRepo) Create(_ context.Context, cfg models.ChartConfig) ([]models.ChartConfig, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createErr != nil {
		return nil, r.createErr
	}
	r.nextID++
	r.charts = append(r.charts, cfg.WithID(r.nextID))
	return append([]models.ChartConfig{}, r.charts...), nil
}

func (r *memRepo) Update(context.Context, int, models.ChartConfig) error { return r.updateErr }

func (r *memRepo) Delete(_ context.Context, id int) ([]models.ChartConfig, error) {
	return nil, nil
}

type emptySource struct{}

func (emptySource) SearchSeries(_ context.Context, q string, _, _ int) models.SearchResult {
	return models.SearchResult{Options: []models.SeriesOption{{Label: "Gross Domestic Product", Value: "GDP"}}}
}

func (emptySource) FetchObservations(context.Context, string, drepo.Frequency) ([]models.Observation, error) {
	return nil, drepo.NewRequestError(drepo.ErrDataUnavailable, "fred.observations", nil)
}

type envelope struct {
	Status  int             `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func newTestServer(t *testing.T, repo *memRepo, limiter *ratelimit.Limiter) *echo.Echo {
	t.Helper()
	qc := query.New(query.WithDefaults(query.Defaults{}))
	t.Cleanup(func() { qc.Close() })

	charts := usecase.NewChartsUseCase(repo, qc, nil, nil, 10, "test", nil)
	data := usecase.NewChartDataUseCase(qc, emptySource{}, 2, nil)
	series := usecase.NewSeriesUseCase(emptySource{}, 20)

	e := echo.New()
	NewDashboardHandler(nil, charts, data, series, limiter).RegisterRoutes(e)
	return e
}

func do(t *testing.T, e *echo.Echo, method, target, body string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	var env envelope
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	}
	return rec, env
}

const cpiBody = `{"title":"CPI","type":"line","color":"#4b8dff","dataSource":{"label":"Consumer Price Index","value":"CPIAUCSL"},"timeFrequency":"1m"}`

func TestDashboard_AddThenList(t *testing.T) {
	e := newTestServer(t, &memRepo{}, nil)

	rec, env := do(t, e, http.MethodPost, "/api/dashboard/charts", cpiBody)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var created models.ChartsEnvelope
	require.NoError(t, json.Unmarshal(env.Data, &created))
	require.Len(t, created.Charts, 1)
	assert.Equal(t, 1, created.Charts[0].IDValue())

	rec, env = do(t, e, http.MethodGet, "/api/dashboard/charts", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var list usecase.ChartList
	require.NoError(t, json.Unmarshal(env.Data, &list))
	require.Len(t, list.Charts, 1)
	assert.Equal(t, "CPI", list.Charts[0].Title)
	assert.True(t, list.Charts[0].HasID())
	assert.False(t, list.HasMore)
}

func TestDashboard_AddInvalidChartIsBadRequest(t *testing.T) {
	e := newTestServer(t, &memRepo{}, nil)

	rec, env := do(t, e, http.MethodPost, "/api/dashboard/charts", `{"type":"pie"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var fields []map[string]interface{}
	require.NoError(t, json.Unmarshal(env.Data, &fields))
	var names []string
	for _, f := range fields {
		names = append(names, f["field"].(string))
	}
	assert.Contains(t, names, "title")
	assert.Contains(t, names, "type")
}

func TestDashboard_UpdateUpstreamFailureIsBadGateway(t *testing.T) {
	repo := &memRepo{updateErr: drepo.NewRequestError(drepo.ErrNetwork, "charts.update", context.DeadlineExceeded)}
	e := newTestServer(t, repo, nil)

	rec, _ := do(t, e, http.MethodPut, "/api/dashboard/charts/1", cpiBody)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

type appErrorBody struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Params  map[string]interface{} `json:"params"`
}

func TestDashboard_BackendRejectionIsUnprocessable(t *testing.T) {
	repo := &memRepo{createErr: &drepo.RequestError{
		Kind:    drepo.ErrValidation,
		Op:      "charts.create",
		Status:  http.StatusUnprocessableEntity,
		Message: "title already used",
	}}
	e := newTestServer(t, repo, nil)

	rec, env := do(t, e, http.MethodPost, "/api/dashboard/charts", cpiBody)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code, rec.Body.String())

	var errs []appErrorBody
	require.NoError(t, json.Unmarshal(env.Data, &errs))
	require.Len(t, errs, 1)
	assert.Equal(t, "ERR_UNPROCESSABLE", errs[0].Code)
	assert.Equal(t, "title already used", errs[0].Message)
	assert.Equal(t, "charts.create", errs[0].Params["op"])
	assert.EqualValues(t, http.StatusUnprocessableEntity, errs[0].Params["upstream_status"])
}

func TestDashboard_UnclassifiedErrorIsInternal(t *testing.T) {
	repo := &memRepo{createErr: errors.New("boom")}
	e := newTestServer(t, repo, nil)

	rec, env := do(t, e, http.MethodPost, "/api/dashboard/charts", cpiBody)
	require.Equal(t, http.StatusInternalServerError, rec.Code)

	var errs []appErrorBody
	require.NoError(t, json.Unmarshal(env.Data, &errs))
	require.Len(t, errs, 1)
	assert.Equal(t, "ERR_INTERNAL", errs[0].Code)
	assert.Equal(t, "internal", errs[0].Params["kind"])
	assert.NotContains(t, rec.Body.String(), "boom")
}

func TestDashboard_RejectsBadChartID(t *testing.T) {
	e := newTestServer(t, &memRepo{}, nil)

	rec, _ := do(t, e, http.MethodDelete, "/api/dashboard/charts/abc", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDashboard_ChartDataNoDataIsNotFound(t *testing.T) {
	e := newTestServer(t, &memRepo{}, nil)

	rec, env := do(t, e, http.MethodGet, "/api/dashboard/charts/data?series_id=CPIAUCSL&frequency=1y", "")
	require.Equal(t, http.StatusNotFound, rec.Code)

	var view usecase.ChartDataView
	require.NoError(t, json.Unmarshal(env.Data, &view))
	assert.Equal(t, usecase.ViewNoData, view.State)
	assert.Equal(t, "1y", view.Frequency)
}

func TestDashboard_ChartDataValidatesFrequency(t *testing.T) {
	e := newTestServer(t, &memRepo{}, nil)

	rec, _ := do(t, e, http.MethodGet, "/api/dashboard/charts/data?series_id=GDP&frequency=5y", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDashboard_SeriesSearchIsRateLimited(t *testing.T) {
	e := newTestServer(t, &memRepo{}, ratelimit.New(0, 1))

	rec, env := do(t, e, http.MethodGet, "/api/dashboard/series?q=gdp", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var res models.SearchResult
	require.NoError(t, json.Unmarshal(env.Data, &res))
	assert.Equal(t, "GDP", res.Options[0].Value)

	rec, _ = do(t, e, http.MethodGet, "/api/dashboard/series?q=gdp", "")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("Retry-After"))
}
