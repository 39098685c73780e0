package query

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type countingMetrics struct {
	mu     sync.Mutex
	events map[string]int
}

func (m *countingMetrics) RecordQueryEvent(event, _ string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.events == nil {
		m.events = make(map[string]int)
	}
	m.events[event]++
}

func (m *countingMetrics) count(event string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.events[event]
}

func TestKey(t *testing.T) {
	k := Key{"chartData", "CPIAUCSL", "1m"}
	if got, want := k.String(), `["chartData","CPIAUCSL","1m"]`; got != want {
		t.Errorf("String() = %s, want %s", got, want)
	}
	if !k.HasPrefix(Key{"chartData"}) {
		t.Error("expected prefix match")
	}
	if !k.HasPrefix(Key{}) {
		t.Error("empty prefix must match")
	}
	if k.HasPrefix(Key{"charts"}) {
		t.Error("unexpected prefix match")
	}
	if (Key{1}).HasPrefix(Key{"1"}) {
		t.Error("number and string elements must differ")
	}
	if k.Scope() != "chartData" {
		t.Errorf("unexpected scope %q", k.Scope())
	}
}

func TestBackoff(t *testing.T) {
	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{0, time.Second},
		{1, 2 * time.Second},
		{2, 4 * time.Second},
		{5, 30 * time.Second},
		{40, 30 * time.Second},
	}
	for _, tt := range tests {
		if got := backoff(time.Second, 30*time.Second, tt.attempt); got != tt.want {
			t.Errorf("backoff(attempt=%d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}
}

func TestQuery_DedupesConcurrentCalls(t *testing.T) {
	m := &countingMetrics{}
	c := New(WithMetrics(m))
	defer c.Close()

	var calls int32
	started := make(chan struct{})
	gate := make(chan struct{})
	fetch := func(ctx context.Context) ([]string, error) {
		if atomic.AddInt32(&calls, 1) == 1 {
			close(started)
		}
		<-gate
		return []string{"CPI", "GDP"}, nil
	}

	const readers = 10
	results := make([]Result[[]string], readers)
	var wg sync.WaitGroup
	for i := 0; i < readers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = Query(context.Background(), c, Key{"charts"}, fetch, WithStaleTime(time.Minute))
		}(i)
	}

	<-started
	time.Sleep(10 * time.Millisecond)
	close(gate)
	wg.Wait()

	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Fatalf("expected exactly 1 fetch, got %d", got)
	}
	for i, res := range results {
		if res.Status != StatusSuccess {
			t.Errorf("reader %d: status %s", i, res.Status)
		}
		if diff := cmp.Diff([]string{"CPI", "GDP"}, res.Data); diff != "" {
			t.Errorf("reader %d data mismatch (-want +got):\n%s", i, diff)
		}
	}
	if m.count(metricFetch) != 1 {
		t.Errorf("expected 1 fetch event, got %d", m.count(metricFetch))
	}
	if m.count(metricDedup)+m.count(metricHit) != readers-1 {
		t.Errorf("expected %d dedup or hit events, got %d", readers-1, m.count(metricDedup)+m.count(metricHit))
	}
}

func TestQuery_InvalidateTriggersRefetch(t *testing.T) {
	c := New()
	defer c.Close()

	var calls int32
	fetch := func(ctx context.Context) (int32, error) {
		return atomic.AddInt32(&calls, 1), nil
	}
	key := Key{"charts"}

	if res := Query(context.Background(), c, key, fetch, WithStaleTime(time.Minute)); res.Data != 1 {
		t.Fatalf("first read: %+v", res)
	}
	if res := Query(context.Background(), c, key, fetch, WithStaleTime(time.Minute)); res.Data != 1 {
		t.Fatalf("fresh read must be served from cache: %+v", res)
	}

	events, unsubscribe := c.Subscribe(Key{"charts"})
	defer unsubscribe()

	if n := c.Invalidate(Key{"charts"}); n != 1 {
		t.Fatalf("expected 1 invalidated entry, got %d", n)
	}
	ev := <-events
	if ev.Type != EventInvalidated || !ev.Stale {
		t.Fatalf("unexpected event %+v", ev)
	}
	if e, _ := c.Entry(key); !e.Stale || e.Status != StatusSuccess {
		t.Fatalf("unexpected entry after invalidate %+v", e)
	}

	res := Query(context.Background(), c, key, fetch, WithStaleTime(time.Minute))
	if res.Data != 2 || res.Stale {
		t.Fatalf("expected refetched fresh data, got %+v", res)
	}

	// success -> loading -> success
	if ev := <-events; ev.Status != StatusLoading || !ev.Fetching {
		t.Errorf("expected loading event, got %+v", ev)
	}
	if ev := <-events; ev.Status != StatusSuccess {
		t.Errorf("expected success event, got %+v", ev)
	}
}

func TestQuery_StaleTimeZeroAlwaysRefetches(t *testing.T) {
	c := New(WithDefaults(Defaults{StaleTime: 0}))
	defer c.Close()

	var calls int32
	fetch := func(ctx context.Context) (int32, error) { return atomic.AddInt32(&calls, 1), nil }

	Query(context.Background(), c, Key{"k"}, fetch)
	res := Query(context.Background(), c, Key{"k"}, fetch)
	if res.Data != 2 {
		t.Fatalf("expected second fetch, got %+v", res)
	}
}

func TestQuery_RetriesOnlyRetryableErrors(t *testing.T) {
	errTransient := errors.New("transient")
	errPermanent := errors.New("permanent")
	c := New(WithRetryPolicy(func(err error) bool { return errors.Is(err, errTransient) }))
	defer c.Close()

	var calls int32
	flaky := func(ctx context.Context) (string, error) {
		if atomic.AddInt32(&calls, 1) < 3 {
			return "", errTransient
		}
		return "ok", nil
	}
	res := Query(context.Background(), c, Key{"flaky"}, flaky, WithRetryDelay(time.Millisecond, 2*time.Millisecond))
	if res.Status != StatusSuccess || res.Data != "ok" {
		t.Fatalf("expected success after retries, got %+v", res)
	}
	if calls != 3 {
		t.Errorf("expected 3 attempts, got %d", calls)
	}

	calls = 0
	broken := func(ctx context.Context) (string, error) {
		atomic.AddInt32(&calls, 1)
		return "", errPermanent
	}
	res = Query(context.Background(), c, Key{"broken"}, broken, WithRetryDelay(time.Millisecond, 2*time.Millisecond))
	if res.Status != StatusError || !errors.Is(res.Err, errPermanent) {
		t.Fatalf("expected permanent error, got %+v", res)
	}
	if calls != 1 {
		t.Errorf("permanent errors must not be retried, got %d attempts", calls)
	}
}

func TestQuery_WithoutRetry(t *testing.T) {
	c := New(WithDefaults(Defaults{Retry: 3, RetryDelay: time.Millisecond}))
	defer c.Close()

	var calls int32
	fetch := func(ctx context.Context) (int, error) {
		atomic.AddInt32(&calls, 1)
		return 0, errors.New("boom")
	}
	res := Query(context.Background(), c, Key{"chartData", "CPI", "1m"}, fetch, WithoutRetry())
	if res.Status != StatusError {
		t.Fatalf("expected error status, got %s", res.Status)
	}
	if calls != 1 {
		t.Errorf("expected 1 attempt, got %d", calls)
	}

	// error -> loading on retry
	calls = 0
	res = res.Refetch(context.Background())
	if calls != 1 || res.Status != StatusError {
		t.Errorf("expected one more attempt, got calls=%d status=%s", calls, res.Status)
	}
}

func TestQuery_LastWaiterCancelsFetch(t *testing.T) {
	c := New()
	defer c.Close()

	started := make(chan struct{})
	fetchCanceled := make(chan struct{})
	fetch := func(ctx context.Context) (string, error) {
		close(started)
		<-ctx.Done()
		close(fetchCanceled)
		return "", ctx.Err()
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan Result[string], 1)
	go func() {
		done <- Query(ctx, c, Key{"chartData", "CPI", "1m"}, fetch)
	}()

	<-started
	cancel()
	res := <-done
	if !errors.Is(res.Err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", res.Err)
	}

	select {
	case <-fetchCanceled:
	case <-time.After(time.Second):
		t.Fatal("fetch was not cancelled after the last waiter left")
	}

	e, _ := c.Entry(Key{"chartData", "CPI", "1m"})
	if e.Status != StatusIdle || e.Fetching {
		t.Errorf("expected entry back to idle, got %+v", e)
	}
}

func TestQuery_DetachedWaiterKeepsSharedFetch(t *testing.T) {
	c := New()
	defer c.Close()

	started := make(chan struct{})
	gate := make(chan struct{})
	fetch := func(ctx context.Context) (string, error) {
		close(started)
		select {
		case <-gate:
			return "data", nil
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}

	key := Key{"chartData", "GDP", "1y"}
	stay := make(chan Result[string], 1)
	go func() { stay <- Query(context.Background(), c, key, fetch) }()
	<-started

	ctx, cancel := context.WithCancel(context.Background())
	leave := make(chan Result[string], 1)
	go func() { leave <- Query(ctx, c, key, fetch) }()
	time.Sleep(10 * time.Millisecond)
	cancel()
	if res := <-leave; !errors.Is(res.Err, context.Canceled) {
		t.Fatalf("expected detached waiter to see context.Canceled, got %v", res.Err)
	}

	close(gate)
	if res := <-stay; res.Status != StatusSuccess || res.Data != "data" {
		t.Fatalf("remaining waiter must get the result, got %+v", res)
	}
}

func TestCancelQueries_DiscardsInFlightResult(t *testing.T) {
	c := New()

	key := Key{"charts"}
	c.SetQueryData(key, "cached")
	c.Invalidate(key)

	started := make(chan struct{})
	gate := make(chan struct{})
	fetch := func(ctx context.Context) (string, error) {
		close(started)
		<-gate
		return "server", nil
	}

	done := make(chan Result[string], 1)
	go func() { done <- Query(context.Background(), c, key, fetch) }()
	<-started

	if n := c.CancelQueries(Key{"charts"}); n != 1 {
		t.Fatalf("expected 1 cancelled query, got %d", n)
	}
	c.SetQueryData(key, "optimistic")
	<-done
	close(gate)

	// Close waits for the fetch goroutine, so its result has been handled.
	c.Close()

	got, _ := c.GetQueryData(key)
	if got != "optimistic" {
		t.Fatalf("cancelled fetch overwrote optimistic data: %v", got)
	}
}

func TestCancelQueries_ColdReaderStartsFreshFetch(t *testing.T) {
	c := New()
	defer c.Close()

	key := Key{"charts"}
	var calls int32
	started := make(chan struct{})
	fetch := func(ctx context.Context) (string, error) {
		if atomic.AddInt32(&calls, 1) == 1 {
			close(started)
			<-ctx.Done()
			return "", ctx.Err()
		}
		return "fresh", nil
	}

	done := make(chan Result[string], 1)
	go func() { done <- Query(context.Background(), c, key, fetch) }()
	<-started

	if n := c.CancelQueries(key); n != 1 {
		t.Fatalf("expected 1 cancelled query, got %d", n)
	}

	select {
	case res := <-done:
		if res.Err != nil || res.Status != StatusSuccess || res.Data != "fresh" {
			t.Fatalf("reader of a cancelled cold fetch must get fresh data, got status=%s err=%v data=%q",
				res.Status, res.Err, res.Data)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("reader did not return after its fetch was cancelled")
	}
	if got := atomic.LoadInt32(&calls); got != 2 {
		t.Errorf("expected 2 fetches, got %d", got)
	}
}

func TestCancelQueries_ReaderKeepsPreviousData(t *testing.T) {
	c := New()
	defer c.Close()

	key := Key{"charts"}
	c.SetQueryData(key, "cached")
	c.Invalidate(key)

	var calls int32
	started := make(chan struct{})
	fetch := func(ctx context.Context) (string, error) {
		atomic.AddInt32(&calls, 1)
		close(started)
		<-ctx.Done()
		return "", ctx.Err()
	}

	done := make(chan Result[string], 1)
	go func() { done <- Query(context.Background(), c, key, fetch) }()
	<-started
	c.CancelQueries(key)

	res := <-done
	if res.Err != nil || res.Status != StatusSuccess || res.Data != "cached" {
		t.Fatalf("expected previous data, got status=%s err=%v data=%q", res.Status, res.Err, res.Data)
	}
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Errorf("no refetch expected while data is shown, got %d fetches", got)
	}
}

func steppingClock() func() time.Time {
	base := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)
	var n int64
	return func() time.Time {
		return base.Add(time.Duration(atomic.AddInt64(&n, 1)) * time.Second)
	}
}

func TestMaxEntries_EvictsErrorsThenLeastRecentlyUsed(t *testing.T) {
	c := New(WithMaxEntries(2), WithClock(steppingClock()))
	defer c.Close()

	failing := func(context.Context) (string, error) { return "", errors.New("unknown series") }

	c.SetQueryData(Key{"charts"}, "list")
	res := Query(context.Background(), c, Key{"chartData", "NOPE", "1m"}, failing, WithoutRetry())
	if res.Status != StatusError {
		t.Fatalf("expected error entry, got %s", res.Status)
	}

	c.SetQueryData(Key{"chartData", "GDP", "1y"}, "gdp")
	if _, ok := c.Entry(Key{"chartData", "NOPE", "1m"}); ok {
		t.Fatal("error entry should be evicted first")
	}

	c.SetQueryData(Key{"charts"}, "list-2")
	c.SetQueryData(Key{"chartData", "CPI", "1m"}, "cpi")
	if _, ok := c.Entry(Key{"chartData", "GDP", "1y"}); ok {
		t.Fatal("least recently used entry should be evicted")
	}
	for _, k := range []Key{{"charts"}, {"chartData", "CPI", "1m"}} {
		if _, ok := c.Entry(k); !ok {
			t.Errorf("expected %s to be kept", k)
		}
	}
}

func TestMaxEntries_KeepsEntriesWithFetchInFlight(t *testing.T) {
	c := New(WithMaxEntries(1))

	key := Key{"chartData", "UNRATE", "1w"}
	started := make(chan struct{})
	gate := make(chan struct{})
	fetch := func(ctx context.Context) (string, error) {
		close(started)
		select {
		case <-gate:
			return "unrate", nil
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	done := make(chan Result[string], 1)
	go func() { done <- Query(context.Background(), c, key, fetch) }()
	<-started

	c.SetQueryData(Key{"charts"}, "list")
	if e, ok := c.Entry(key); !ok || !e.Fetching {
		t.Fatalf("entry with a fetch in flight must not be evicted, got %+v ok=%v", e, ok)
	}

	close(gate)
	if res := <-done; res.Data != "unrate" {
		t.Errorf("unexpected result %+v", res)
	}
	c.Close()
}

func TestSubscribe_DropsWhenFullAndCloses(t *testing.T) {
	c := New(WithSubscriberBuffer(1))
	defer c.Close()

	events, unsubscribe := c.Subscribe(Key{"charts"})
	c.SetQueryData(Key{"charts"}, 1)
	c.SetQueryData(Key{"charts"}, 2)
	c.SetQueryData(Key{"chartData", "CPI", "1m"}, 3)

	if len(events) != 1 {
		t.Fatalf("expected 1 buffered event, got %d", len(events))
	}
	unsubscribe()
	unsubscribe()

	n := 0
	for range events {
		n++
	}
	if n != 1 {
		t.Errorf("expected to drain 1 event before close, got %d", n)
	}
}

func TestRemove(t *testing.T) {
	c := New()
	defer c.Close()

	c.SetQueryData(Key{"charts"}, "x")
	events, unsubscribe := c.Subscribe(nil)
	defer unsubscribe()

	c.Remove(Key{"charts"})
	if _, ok := c.Entry(Key{"charts"}); ok {
		t.Fatal("expected entry removed")
	}
	if ev := <-events; ev.Type != EventRemoved {
		t.Errorf("expected removed event, got %+v", ev)
	}
}

func TestClose_CancelsInFlightFetches(t *testing.T) {
	c := New()

	started := make(chan struct{})
	fetch := func(ctx context.Context) (string, error) {
		close(started)
		<-ctx.Done()
		return "", ctx.Err()
	}

	done := make(chan Result[string], 1)
	go func() { done <- Query(context.Background(), c, Key{"charts"}, fetch) }()
	<-started

	if err := c.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if res := <-done; !errors.Is(res.Err, ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", res.Err)
	}
	if res := Query(context.Background(), c, Key{"charts"}, fetch); !errors.Is(res.Err, ErrClosed) {
		t.Fatalf("expected ErrClosed after close, got %v", res.Err)
	}
}
