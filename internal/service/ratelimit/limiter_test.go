package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
)

func TestLimiter_BurstThenRefill(t *testing.T) {
	now := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)
	l := New(1, 2)
	l.now = func() time.Time { return now }

	if !l.Allow("a") || !l.Allow("a") {
		t.Fatal("expected burst of 2 to be allowed")
	}
	if l.Allow("a") {
		t.Fatal("expected third request to be limited")
	}
	if !l.Allow("b") {
		t.Fatal("keys must not share buckets")
	}

	now = now.Add(time.Second)
	if !l.Allow("a") {
		t.Fatal("expected a token after one second")
	}
}

func TestLimiter_Middleware(t *testing.T) {
	l := New(0, 1)
	e := echo.New()
	h := l.Middleware()(func(c echo.Context) error { return c.NoContent(http.StatusOK) })

	codes := make([]int, 0, 2)
	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodGet, "/api/dashboard/series", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		rec := httptest.NewRecorder()
		if err := h(e.NewContext(req, rec)); err != nil {
			t.Fatalf("handler error: %v", err)
		}
		codes = append(codes, rec.Code)
	}

	if codes[0] != http.StatusOK || codes[1] != http.StatusTooManyRequests {
		t.Fatalf("unexpected status sequence %v", codes)
	}
}
