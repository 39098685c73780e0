package repository

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"ChartDash/internal/domain/models"
	drepo "ChartDash/internal/domain/repository"
	apphttp "ChartDash/pkg/http"
)

// ChartClient implements ChartRepository over the chart-config REST backend.
type ChartClient struct {
	http    *apphttp.Client
	baseURL string
	metrics drepo.Metrics
}

// NewChartClient creates a client for the backend at baseURL.
// metrics may be nil.
func NewChartClient(httpClient *apphttp.Client, baseURL string, metrics drepo.Metrics) *ChartClient {
	return &ChartClient{
		http:    httpClient,
		baseURL: strings.TrimRight(baseURL, "/"),
		metrics: metrics,
	}
}

func (c *ChartClient) chartsURL(id ...int) string {
	if len(id) == 0 {
		return c.baseURL + "/charts"
	}
	return c.baseURL + "/charts/" + url.PathEscape(strconv.Itoa(id[0]))
}

// List fetches one page of chart configurations.
func (c *ChartClient) List(ctx context.Context, page, limit int) (models.Page, error) {
	var out models.Page
	err := c.do(ctx, "charts.list", &apphttp.RequestOptions{
		Method: apphttp.MethodGet,
		URL:    c.chartsURL(),
		QueryParams: map[string][]string{
			"page":  {strconv.Itoa(page)},
			"limit": {strconv.Itoa(limit)},
		},
	}, &out)
	if err != nil {
		return models.Page{}, err
	}
	if out.Charts == nil {
		out.Charts = []models.ChartConfig{}
	}
	return out, nil
}

// Create posts cfg without its id and returns the backend's chart list.
func (c *ChartClient) Create(ctx context.Context, cfg models.ChartConfig) ([]models.ChartConfig, error) {
	var out models.ChartsEnvelope
	err := c.do(ctx, "charts.create", &apphttp.RequestOptions{
		Method: apphttp.MethodPost,
		URL:    c.chartsURL(),
		Body:   cfg.WithoutID(),
	}, &out)
	if err != nil {
		return nil, err
	}
	return out.Charts, nil
}

// Update replaces the chart with id. The response body is ignored.
func (c *ChartClient) Update(ctx context.Context, id int, cfg models.ChartConfig) error {
	return c.do(ctx, "charts.update", &apphttp.RequestOptions{
		Method: apphttp.MethodPut,
		URL:    c.chartsURL(id),
		Body:   cfg,
	}, nil)
}

// Delete removes the chart with id and returns the backend's chart list.
func (c *ChartClient) Delete(ctx context.Context, id int) ([]models.ChartConfig, error) {
	var out models.ChartsEnvelope
	err := c.do(ctx, "charts.delete", &apphttp.RequestOptions{
		Method: apphttp.MethodDelete,
		URL:    c.chartsURL(id),
	}, &out)
	if err != nil {
		return nil, err
	}
	return out.Charts, nil
}

func (c *ChartClient) do(ctx context.Context, op string, opts *apphttp.RequestOptions, dest interface{}) error {
	start := time.Now()
	err := ClassifyError(op, c.http.SendAndParse(ctx, opts, dest))
	if c.metrics != nil {
		c.metrics.RecordUpstream(op, Outcome(err), time.Since(start).Seconds())
	}
	if err != nil {
		return fmt.Errorf("chart backend: %w", err)
	}
	return nil
}
