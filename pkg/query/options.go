package query

import (
	"time"

	"ChartDash/pkg/logger"
)

// Metrics receives query cache events.
type Metrics interface {
	RecordQueryEvent(event, scope string)
}

const (
	metricFetch    = "fetch"
	metricDedup    = "dedup"
	metricHit      = "hit"
	metricRetry    = "retry"
	metricRollback = "rollback"
	metricCancel   = "cancel"
	metricEvict    = "evict"
)

// Defaults are the per-query settings used when a query passes no option.
type Defaults struct {
	Retry         int
	RetryDelay    time.Duration
	MaxRetryDelay time.Duration
	// StaleTime is how long successful data is served without refetching.
	// Negative means data only goes stale through Invalidate.
	StaleTime time.Duration
}

// DefaultDefaults returns three retries with 1s..30s exponential backoff.
func DefaultDefaults() Defaults {
	return Defaults{
		Retry:         3,
		RetryDelay:    time.Second,
		MaxRetryDelay: 30 * time.Second,
		StaleTime:     0,
	}
}

// Option configures a Client.
type Option func(*Client)

// WithDefaults replaces the client's default query settings.
func WithDefaults(d Defaults) Option {
	return func(c *Client) {
		c.defaults = d
	}
}

// WithRetryPolicy sets the predicate deciding which fetch errors are retried.
// Context errors are never retried regardless of the policy.
func WithRetryPolicy(fn func(error) bool) Option {
	return func(c *Client) {
		c.shouldRetry = fn
	}
}

// WithMetrics sets the metrics sink.
func WithMetrics(m Metrics) Option {
	return func(c *Client) {
		c.metrics = m
	}
}

// WithLogger sets the client logger.
func WithLogger(l *logger.Logger) Option {
	return func(c *Client) {
		c.log = l
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(c *Client) {
		c.now = now
	}
}

// WithSubscriberBuffer sets the event channel size for new subscribers.
func WithSubscriberBuffer(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.subBuffer = n
		}
	}
}

// WithMaxEntries caps the number of cached keys. When a new key would exceed
// it, an entry with no fetch in flight is evicted: error and idle entries
// first, then the least recently used. Zero means no cap.
func WithMaxEntries(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.maxEntries = n
		}
	}
}

// QueryOption overrides a default for a single query.
type QueryOption func(*queryConfig)

type queryConfig struct {
	retry         int
	retryDelay    time.Duration
	maxRetryDelay time.Duration
	staleTime     time.Duration
}

// WithRetry sets how many times a failed fetch is retried.
func WithRetry(n int) QueryOption {
	return func(q *queryConfig) {
		if n >= 0 {
			q.retry = n
		}
	}
}

// WithoutRetry disables retries.
func WithoutRetry() QueryOption {
	return WithRetry(0)
}

// WithRetryDelay sets the base and maximum backoff delay.
func WithRetryDelay(base, maxDelay time.Duration) QueryOption {
	return func(q *queryConfig) {
		q.retryDelay = base
		q.maxRetryDelay = maxDelay
	}
}

// WithStaleTime sets how long fetched data is considered fresh.
func WithStaleTime(d time.Duration) QueryOption {
	return func(q *queryConfig) {
		q.staleTime = d
	}
}

func (c *Client) queryConfig(opts []QueryOption) queryConfig {
	q := queryConfig{
		retry:         c.defaults.Retry,
		retryDelay:    c.defaults.RetryDelay,
		maxRetryDelay: c.defaults.MaxRetryDelay,
		staleTime:     c.defaults.StaleTime,
	}
	for _, opt := range opts {
		opt(&q)
	}
	return q
}
