package fred

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"ChartDash/internal/domain/models"
	drepo "ChartDash/internal/domain/repository"
	"ChartDash/internal/repository"
	"ChartDash/pkg/cache"
	apphttp "ChartDash/pkg/http"
	"ChartDash/pkg/logger"
	"ChartDash/pkg/util"
)

const (
	defaultSearchLimit = 20
	defaultSearchTerm  = "economy"
	unknownTitle       = "Unknown Title"
	missingValue       = "."
)

// Client implements SeriesSource against the FRED proxy.
type Client struct {
	http        *apphttp.Client
	baseURL     string
	apiKey      string
	searchLimit int
	searchTerm  string

	cache    cache.Service
	cacheTTL time.Duration

	metrics drepo.Metrics
	log     *logger.Logger
	now     func() time.Time
}

// Option configures a Client.
type Option func(*Client)

// WithCache stores observation responses in c for ttl.
func WithCache(c cache.Service, ttl time.Duration) Option {
	return func(cl *Client) {
		cl.cache = c
		cl.cacheTTL = ttl
	}
}

// WithSearchDefaults sets the page size and the term used for empty queries.
func WithSearchDefaults(limit int, fallback string) Option {
	return func(cl *Client) {
		if limit > 0 {
			cl.searchLimit = limit
		}
		if strings.TrimSpace(fallback) != "" {
			cl.searchTerm = fallback
		}
	}
}

func WithMetrics(m drepo.Metrics) Option {
	return func(cl *Client) { cl.metrics = m }
}

func WithLogger(l *logger.Logger) Option {
	return func(cl *Client) {
		if l != nil {
			cl.log = l
		}
	}
}

// WithClock overrides the time source used for observation windows.
func WithClock(now func() time.Time) Option {
	return func(cl *Client) { cl.now = now }
}

// New creates a FRED client rooted at baseURL.
func New(httpClient *apphttp.Client, baseURL, apiKey string, opts ...Option) *Client {
	c := &Client{
		http:        httpClient,
		baseURL:     strings.TrimRight(baseURL, "/"),
		apiKey:      apiKey,
		searchLimit: defaultSearchLimit,
		searchTerm:  defaultSearchTerm,
		log:         logger.Nop(),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type searchResponse struct {
	Seriess []struct {
		ID    string `json:"id"`
		Title string `json:"title"`
	} `json:"seriess"`
	Count int `json:"count"`
}

type observationsResponse struct {
	Observations []struct {
		Date  string `json:"date"`
		Value string `json:"value"`
	} `json:"observations"`
}

// SearchSeries returns one page of series matching query.
// It never fails: errors are logged and an empty result is returned.
func (c *Client) SearchSeries(ctx context.Context, query string, offset, limit int) models.SearchResult {
	term := strings.TrimSpace(query)
	if term == "" {
		term = c.searchTerm
	}
	if limit <= 0 {
		limit = c.searchLimit
	}
	if offset < 0 {
		offset = 0
	}

	var resp searchResponse
	err := c.do(ctx, "fred.search", &apphttp.RequestOptions{
		Method: apphttp.MethodGet,
		URL:    c.baseURL + "/api/fred/series/search",
		QueryParams: map[string][]string{
			"search_text": {term},
			"api_key":     {c.apiKey},
			"file_type":   {"json"},
			"limit":       {strconv.Itoa(limit)},
			"offset":      {strconv.Itoa(offset)},
		},
	}, &resp)
	if err != nil {
		c.log.Warn("series search failed",
			logger.String("search_text", term),
			logger.Int("offset", offset),
			logger.Error(err))
		return models.EmptySearch()
	}

	options := make([]models.SeriesOption, 0, len(resp.Seriess))
	for _, s := range resp.Seriess {
		options = append(options, models.SeriesOption{
			Label: util.FirstNonEmpty(s.Title, unknownTitle),
			Value: s.ID,
		})
	}
	return models.SearchResult{
		Options: options,
		HasMore: offset+len(options) < resp.Count,
	}
}

// FetchObservations loads the observations of seriesID over the window
// implied by frequency.
func (c *Client) FetchObservations(ctx context.Context, seriesID string, frequency drepo.Frequency) ([]models.Observation, error) {
	const op = "fred.observations"

	seriesID = strings.TrimSpace(seriesID)
	if seriesID == "" {
		return nil, &drepo.RequestError{Kind: drepo.ErrValidation, Op: op, Message: "series id is required"}
	}
	if !drepo.IsValidFrequency(frequency) {
		return nil, &drepo.RequestError{Kind: drepo.ErrValidation, Op: op, Message: fmt.Sprintf("unsupported frequency %q", frequency)}
	}
	start, end, err := util.DateRange(string(frequency), c.now())
	if err != nil {
		return nil, drepo.NewRequestError(drepo.ErrValidation, op, err)
	}

	key := cache.GenerateKeyWithParams("fred:obs", seriesID, start, end)
	if cached, ok := c.cached(ctx, key); ok {
		return cached, nil
	}

	var resp observationsResponse
	err = c.do(ctx, op, &apphttp.RequestOptions{
		Method: apphttp.MethodGet,
		URL:    c.baseURL + "/api/fred/series/observations",
		QueryParams: map[string][]string{
			"series_id":         {seriesID},
			"api_key":           {c.apiKey},
			"observation_start": {start},
			"observation_end":   {end},
			"file_type":         {"json"},
		},
	}, &resp)
	if err != nil {
		return nil, err
	}

	out := make([]models.Observation, 0, len(resp.Observations))
	for _, o := range resp.Observations {
		if o.Value == missingValue {
			continue
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(o.Value), 64)
		if err != nil {
			c.log.Debug("skipping unparsable observation",
				logger.String("series_id", seriesID),
				logger.String("date", o.Date),
				logger.String("value", o.Value))
			continue
		}
		out = append(out, models.Observation{Date: o.Date, Value: v})
	}
	if len(out) == 0 {
		return nil, &drepo.RequestError{
			Kind:    drepo.ErrDataUnavailable,
			Op:      op,
			Message: fmt.Sprintf("no observations for %s between %s and %s", seriesID, start, end),
		}
	}

	c.store(ctx, key, out)
	return out, nil
}

func (c *Client) cached(ctx context.Context, key string) ([]models.Observation, bool) {
	if c.cache == nil {
		return nil, false
	}
	var out []models.Observation
	err := c.cache.Get(ctx, key, &out)
	switch {
	case err == nil:
		return out, true
	case errors.Is(err, cache.ErrCacheMiss):
	default:
		c.log.Warn("observation cache read failed", logger.String("key", key), logger.Error(err))
	}
	return nil, false
}

func (c *Client) store(ctx context.Context, key string, obs []models.Observation) {
	if c.cache == nil {
		return
	}
	if err := c.cache.Set(ctx, key, obs, c.cacheTTL); err != nil {
		c.log.Warn("observation cache write failed", logger.String("key", key), logger.Error(err))
	}
}

func (c *Client) do(ctx context.Context, op string, opts *apphttp.RequestOptions, dest interface{}) error {
	start := time.Now()
	err := repository.ClassifyError(op, c.http.SendAndParse(ctx, opts, dest))
	if c.metrics != nil {
		c.metrics.RecordUpstream(op, repository.Outcome(err), time.Since(start).Seconds())
	}
	if err != nil {
		return fmt.Errorf("fred: %w", err)
	}
	return nil
}
