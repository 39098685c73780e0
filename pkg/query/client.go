package query

import (
	"context"
	"errors"
	"sync"
	"time"

	"ChartDash/pkg/logger"
)

// ErrClosed is returned by reads on a closed client.
var ErrClosed = errors.New("query: client closed")

type fetchFunc func(ctx context.Context) (any, error)

// mergeFunc folds a fetched value into the entry's current data.
type mergeFunc func(old, val any) any

// call is one in-flight fetch shared by every waiter of a key.
type call struct {
	done     chan struct{}
	once     sync.Once
	cancel   context.CancelFunc
	waiters  int
	canceled bool
	prev     state
}

func (cl *call) finish() {
	cl.once.Do(func() { close(cl.done) })
}

type subscriber struct {
	prefix Key
	ch     chan Event
}

// Client is a process-wide keyed cache of server state.
// It deduplicates concurrent fetches per key, retries transient failures
// and notifies subscribers of every entry change.
type Client struct {
	mu          sync.Mutex
	entries     map[string]*entry
	subs        map[uint64]*subscriber
	nextSub     uint64
	subBuffer   int
	maxEntries  int
	defaults    Defaults
	shouldRetry func(error) bool
	metrics     Metrics
	log         *logger.Logger
	now         func() time.Time

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	closed bool
}

// New creates a query client. Close must be called to stop in-flight fetches.
func New(opts ...Option) *Client {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Client{
		entries:   make(map[string]*entry),
		subs:      make(map[uint64]*subscriber),
		subBuffer: 64,
		defaults:  DefaultDefaults(),
		log:       logger.Nop(),
		now:       time.Now,
		ctx:       ctx,
		cancel:    cancel,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Result is the state of a query as seen by one reader.
type Result[T any] struct {
	Status    Status
	Data      T
	Err       error
	UpdatedAt time.Time
	Stale     bool
	Fetching  bool
	// Refetch forces a new fetch of the same key, joining one already in flight.
	Refetch func(ctx context.Context) Result[T]
}

// Query returns the cached value for key when it is fresh, otherwise it
// fetches it. Concurrent calls for the same key share a single fetch.
//
// The fetch runs on the client's context, not ctx: when ctx ends the caller
// stops waiting, and the fetch is cancelled once no caller waits for it.
func Query[T any](ctx context.Context, c *Client, key Key, fetch func(context.Context) (T, error), opts ...QueryOption) Result[T] {
	cfg := c.queryConfig(opts)
	run := func(ctx context.Context) (any, error) { return fetch(ctx) }

	var read func(ctx context.Context, force bool) Result[T]
	read = func(ctx context.Context, force bool) Result[T] {
		e, err := c.ensure(ctx, key, run, nil, cfg, force)
		res := resultOf[T](e, err)
		res.Refetch = func(ctx context.Context) Result[T] { return read(ctx, true) }
		return res
	}
	return read(ctx, false)
}

func resultOf[T any](e Entry, err error) Result[T] {
	res := Result[T]{
		Status:    e.Status,
		Err:       e.Err,
		UpdatedAt: e.UpdatedAt,
		Stale:     e.Stale,
		Fetching:  e.Fetching,
	}
	if v, ok := e.Data.(T); ok {
		res.Data = v
	}
	if err != nil {
		res.Err = err
	}
	return res
}

// ensure serves key from cache or starts (or joins) a fetch and waits for it.
// force skips the freshness check.
//
// A fetch cancelled by CancelQueries leaves the entry in its previous state.
// When that state has nothing to show (idle) or another fetch is already
// running, the reader starts or joins a fresh one instead of returning empty.
func (c *Client) ensure(ctx context.Context, key Key, fn fetchFunc, merge mergeFunc, cfg queryConfig, force bool) (Entry, error) {
	for {
		e, again, err := c.ensureOnce(ctx, key, fn, merge, cfg, force)
		if !again {
			return e, err
		}
		force = false
	}
}

func (c *Client) ensureOnce(ctx context.Context, key Key, fn fetchFunc, merge mergeFunc, cfg queryConfig, force bool) (Entry, bool, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return Entry{Key: key, Status: StatusIdle}, false, ErrClosed
	}

	e := c.entryLocked(key)
	cl := e.call
	switch {
	case cl != nil:
		c.record(metricDedup, key)
	case !force && e.status == StatusSuccess && !c.staleLocked(e, cfg):
		c.record(metricHit, key)
		snap := e.snapshot()
		c.mu.Unlock()
		return snap, false, nil
	default:
		cl = c.startLocked(e, fn, merge, cfg)
	}
	cl.waiters++
	c.mu.Unlock()

	select {
	case <-cl.done:
		c.mu.Lock()
		defer c.mu.Unlock()
		cl.waiters--
		if cl.canceled && c.closed {
			return e.snapshot(), false, ErrClosed
		}
		if cl.canceled && (e.call != nil || e.status == StatusIdle) {
			if err := ctx.Err(); err != nil {
				return e.snapshot(), false, err
			}
			return Entry{}, true, nil
		}
		return e.snapshot(), false, nil

	case <-ctx.Done():
		c.mu.Lock()
		defer c.mu.Unlock()
		cl.waiters--
		if cl.waiters == 0 && e.call == cl {
			c.cancelCallLocked(e)
		}
		return e.snapshot(), false, ctx.Err()
	}
}

func (c *Client) startLocked(e *entry, fn fetchFunc, merge mergeFunc, cfg queryConfig) *call {
	fctx, cancel := context.WithCancel(c.ctx)
	cl := &call{
		done:   make(chan struct{}),
		cancel: cancel,
		prev:   e.state(),
	}
	e.call = cl
	e.status = StatusLoading
	c.record(metricFetch, e.key)
	c.notifyLocked(EventUpdated, e)

	c.wg.Add(1)
	go c.run(fctx, e, cl, fn, merge, cfg)
	return cl
}

func (c *Client) run(ctx context.Context, e *entry, cl *call, fn fetchFunc, merge mergeFunc, cfg queryConfig) {
	defer c.wg.Done()
	defer cl.cancel()

	val, err := c.withRetry(ctx, e.key, fn, cfg)

	c.mu.Lock()
	defer c.mu.Unlock()
	defer cl.finish()

	// Cancelled or superseded: the result must not touch the entry.
	if cl.canceled || e.call != cl {
		return
	}
	if err != nil && ctx.Err() != nil {
		c.cancelCallLocked(e)
		return
	}

	e.call = nil
	if err != nil {
		e.status = StatusError
		e.err = err
		c.log.Debug("query fetch failed",
			logger.String("key", e.key.String()),
			logger.Error(err),
		)
	} else {
		if merge != nil {
			val = merge(e.data, val)
		}
		e.status = StatusSuccess
		e.data = val
		e.err = nil
		e.updatedAt = c.now()
		e.stale = false
	}
	c.notifyLocked(EventUpdated, e)
}

// cancelCallLocked detaches the in-flight call of e and discards its result.
// An entry still loading returns to the state it had before the fetch.
func (c *Client) cancelCallLocked(e *entry) {
	cl := e.call
	if cl == nil {
		return
	}
	cl.canceled = true
	cl.cancel()
	e.call = nil
	if e.status == StatusLoading {
		e.status = cl.prev.status
		e.err = cl.prev.err
	}
	c.record(metricCancel, e.key)
	cl.finish()
	c.notifyLocked(EventUpdated, e)
}

func (c *Client) entryLocked(key Key) *entry {
	k := key.String()
	e, ok := c.entries[k]
	if !ok {
		if c.maxEntries > 0 && len(c.entries) >= c.maxEntries {
			c.evictLocked()
		}
		e = &entry{key: key.clone(), status: StatusIdle}
		c.entries[k] = e
	}
	e.usedAt = c.now()
	return e
}

// evictLocked drops one entry that has no fetch in flight, preferring
// entries without data to show, then the least recently used.
func (c *Client) evictLocked() {
	var (
		victim string
		best   *entry
	)
	for k, e := range c.entries {
		if e.call != nil {
			continue
		}
		if best == nil || evictBefore(e, best) {
			victim, best = k, e
		}
	}
	if best == nil {
		return
	}
	c.record(metricEvict, best.key)
	c.removeLocked(victim)
}

func evictBefore(a, b *entry) bool {
	aEmpty := a.status != StatusSuccess
	bEmpty := b.status != StatusSuccess
	if aEmpty != bEmpty {
		return aEmpty
	}
	return a.usedAt.Before(b.usedAt)
}

func (c *Client) staleLocked(e *entry, cfg queryConfig) bool {
	if e.stale {
		return true
	}
	if cfg.staleTime < 0 {
		return false
	}
	return c.now().Sub(e.updatedAt) >= cfg.staleTime
}

func (c *Client) setLocked(key Key, data any) {
	e := c.entryLocked(key)
	e.data = data
	e.status = StatusSuccess
	e.err = nil
	e.updatedAt = c.now()
	e.stale = false
	c.notifyLocked(EventUpdated, e)
}

// Invalidate marks every entry under prefix stale; the next read refetches.
// It returns the number of entries marked.
func (c *Client) Invalidate(prefix Key) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := 0
	for _, e := range c.entries {
		if !e.key.HasPrefix(prefix) {
			continue
		}
		e.stale = true
		n++
		c.notifyLocked(EventInvalidated, e)
	}
	return n
}

// CancelQueries cancels in-flight fetches under prefix. Their results are
// discarded so they cannot overwrite data written afterwards.
func (c *Client) CancelQueries(prefix Key) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := 0
	for _, e := range c.entries {
		if e.call != nil && e.key.HasPrefix(prefix) {
			c.cancelCallLocked(e)
			n++
		}
	}
	return n
}

// GetQueryData returns the data cached for key.
func (c *Client) GetQueryData(key Key) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key.String()]
	if !ok || e.data == nil {
		return nil, false
	}
	return e.data, true
}

// SetQueryData writes data for key as a successful, fresh result.
// An in-flight fetch for key is not cancelled; use CancelQueries first.
func (c *Client) SetQueryData(key Key, data any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.setLocked(key, data)
}

// UpdateQueryData replaces the data of key with fn(old). It does nothing and
// returns false when key has no data. fn runs with the client locked and must
// not call back into it, nor modify old in place.
func (c *Client) UpdateQueryData(key Key, fn func(old any) any) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key.String()]
	if !ok || e.data == nil {
		return false
	}
	c.setLocked(key, fn(e.data))
	return true
}

// Entry returns a snapshot of the entry for key.
func (c *Client) Entry(key Key) (Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key.String()]
	if !ok {
		return Entry{Key: key, Status: StatusIdle}, false
	}
	return e.snapshot(), true
}

// Entries returns snapshots of every entry under prefix.
func (c *Client) Entries(prefix Key) []Entry {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]Entry, 0, len(c.entries))
	for _, e := range c.entries {
		if e.key.HasPrefix(prefix) {
			out = append(out, e.snapshot())
		}
	}
	return out
}

// Remove drops key from the cache, cancelling its fetch if any.
func (c *Client) Remove(key Key) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.removeLocked(key.String())
}

func (c *Client) removeLocked(k string) {
	e, ok := c.entries[k]
	if !ok {
		return
	}
	if e.call != nil {
		c.cancelCallLocked(e)
	}
	delete(c.entries, k)
	c.notifyLocked(EventRemoved, e)
}

// Subscribe streams events for entries under prefix. Delivery never blocks
// the client: when the channel is full the event is dropped.
// The returned function unsubscribes and closes the channel.
func (c *Client) Subscribe(prefix Key) (<-chan Event, func()) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		ch := make(chan Event)
		close(ch)
		return ch, func() {}
	}

	id := c.nextSub
	c.nextSub++
	s := &subscriber{prefix: prefix.clone(), ch: make(chan Event, c.subBuffer)}
	c.subs[id] = s

	var once sync.Once
	return s.ch, func() {
		once.Do(func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			if _, ok := c.subs[id]; ok {
				delete(c.subs, id)
				close(s.ch)
			}
		})
	}
}

func (c *Client) notifyLocked(t EventType, e *entry) {
	if len(c.subs) == 0 {
		return
	}
	ev := Event{
		Type:     t,
		Key:      e.key.clone(),
		Status:   e.status,
		Stale:    e.stale,
		Fetching: e.call != nil,
		Err:      e.err,
		At:       c.now(),
	}
	for _, s := range c.subs {
		if !e.key.HasPrefix(s.prefix) {
			continue
		}
		select {
		case s.ch <- ev:
		default:
		}
	}
}

func (c *Client) record(event string, key Key) {
	if c.metrics != nil {
		c.metrics.RecordQueryEvent(event, key.Scope())
	}
}

// Close cancels every in-flight fetch, waits for their goroutines and closes
// all subscriber channels. Entries are kept but no further reads are served.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	for _, e := range c.entries {
		if e.call != nil {
			c.cancelCallLocked(e)
		}
	}
	c.cancel()
	c.mu.Unlock()

	c.wg.Wait()

	c.mu.Lock()
	defer c.mu.Unlock()
	for id, s := range c.subs {
		close(s.ch)
		delete(c.subs, id)
	}
	return nil
}
