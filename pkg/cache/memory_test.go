package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

type point struct {
	Date  string  `json:"date"`
	Value float64 `json:"value"`
}

func TestMemoryCache_RoundTripsStructs(t *testing.T) {
	mc := NewMemoryCache()
	defer mc.Close()
	ctx := context.Background()

	want := []point{{"2024-01-01", 1.5}, {"2024-02-01", 2}}
	if err := mc.Set(ctx, "fred:obs:CPI", want, time.Minute); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	var got []point
	if err := mc.Get(ctx, "fred:obs:CPI", &got); err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("cached value mismatch (-want +got):\n%s", diff)
	}
}

func TestMemoryCache_ExpiredIsMiss(t *testing.T) {
	mc := NewMemoryCache()
	defer mc.Close()
	ctx := context.Background()

	_ = mc.Set(ctx, "k", "v", time.Millisecond)
	time.Sleep(5 * time.Millisecond)

	var s string
	if err := mc.Get(ctx, "k", &s); !errors.Is(err, ErrCacheMiss) {
		t.Fatalf("expected ErrCacheMiss, got %v", err)
	}
}

func TestMemoryCache_EvictsLeastRecentlyUsed(t *testing.T) {
	mc := NewMemoryCache(WithMemoryMaxSize(2))
	defer mc.Close()
	ctx := context.Background()

	_ = mc.Set(ctx, "a", "1", 0)
	time.Sleep(time.Millisecond)
	_ = mc.Set(ctx, "b", "2", 0)
	time.Sleep(time.Millisecond)

	var s string
	_ = mc.Get(ctx, "a", &s) // touch a so b becomes oldest
	time.Sleep(time.Millisecond)
	_ = mc.Set(ctx, "c", "3", 0)

	if ok, _ := mc.Exists(ctx, "b"); ok {
		t.Error("expected b to be evicted")
	}
	if ok, _ := mc.Exists(ctx, "a", "c"); !ok {
		t.Error("expected a and c to remain")
	}
	if mc.Len() != 2 {
		t.Errorf("expected 2 items, got %d", mc.Len())
	}
}

func TestMemoryCache_DeleteByPattern(t *testing.T) {
	mc := NewMemoryCache()
	defer mc.Close()
	ctx := context.Background()

	_ = mc.Set(ctx, "fred:obs:CPI:2024-01-01:2024-02-01", "x", 0)
	_ = mc.Set(ctx, "fred:obs:GDP:2024-01-01:2024-02-01", "y", 0)
	_ = mc.Set(ctx, "other", "z", 0)

	if err := mc.DeleteByPattern(ctx, BuildPattern("fred:obs:CPI")); err != nil {
		t.Fatalf("DeleteByPattern failed: %v", err)
	}
	if ok, _ := mc.Exists(ctx, "fred:obs:CPI:2024-01-01:2024-02-01"); ok {
		t.Error("expected CPI entry removed")
	}
	if mc.Len() != 2 {
		t.Errorf("expected 2 remaining entries, got %d", mc.Len())
	}
}
