package ratelimit

import (
	"sync"
	"time"

	"github.com/labstack/echo/v4"

	apphttp "ChartDash/pkg/http"
)

type bucket struct {
	tokens     float64
	capacity   float64
	refillRate float64 // tokens per second
	last       time.Time
}

// Limiter is a keyed token bucket.
type Limiter struct {
	mu       sync.Mutex
	m        map[string]*bucket
	capacity float64
	rate     float64
	now      func() time.Time
}

// New returns a limiter allowing burst requests per key, refilled at perSecond.
func New(perSecond, burst float64) *Limiter {
	if burst < 1 {
		burst = 1
	}
	return &Limiter{m: make(map[string]*bucket), capacity: burst, rate: perSecond, now: time.Now}
}

// Allow returns true if one token can be consumed for key.
func (l *Limiter) Allow(key string) bool {
	now := l.now()
	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.m[key]
	if !ok {
		b = &bucket{tokens: l.capacity, capacity: l.capacity, refillRate: l.rate, last: now}
		l.m[key] = b
	}
	// refill
	elapsed := now.Sub(b.last).Seconds()
	if elapsed > 0 {
		b.tokens += elapsed * b.refillRate
		if b.tokens > b.capacity {
			b.tokens = b.capacity
		}
		b.last = now
	}
	if b.tokens >= 1 {
		b.tokens--
		return true
	}
	return false
}

// Middleware rejects requests with 429 once the caller's bucket is empty.
// Callers are keyed by their real IP.
func (l *Limiter) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if !l.Allow(c.RealIP()) {
				c.Response().Header().Set("Retry-After", "1")
				return apphttp.TooManyRequestsResponse(c)
			}
			return next(c)
		}
	}
}
