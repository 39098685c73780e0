package query

import (
	"context"
	"errors"
	"time"
)

// backoff returns min(base*2^attempt, maxDelay).
func backoff(base, maxDelay time.Duration, attempt int) time.Duration {
	if base <= 0 {
		return 0
	}
	d := base
	for i := 0; i < attempt; i++ {
		d *= 2
		if maxDelay > 0 && d >= maxDelay {
			return maxDelay
		}
	}
	if maxDelay > 0 && d > maxDelay {
		return maxDelay
	}
	return d
}

func (c *Client) retryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if c.shouldRetry == nil {
		return true
	}
	return c.shouldRetry(err)
}

// withRetry calls fn until it succeeds, the error is not retryable,
// or cfg.retry retries have been spent.
func (c *Client) withRetry(ctx context.Context, key Key, fn fetchFunc, cfg queryConfig) (any, error) {
	for attempt := 0; ; attempt++ {
		v, err := fn(ctx)
		if err == nil {
			return v, nil
		}
		if attempt >= cfg.retry || ctx.Err() != nil || !c.retryable(err) {
			return nil, err
		}

		c.record(metricRetry, key)
		timer := time.NewTimer(backoff(cfg.retryDelay, cfg.maxRetryDelay, attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
}
