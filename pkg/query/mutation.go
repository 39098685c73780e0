package query

import "context"

// MutationOptions are the lifecycle callbacks of a mutation.
type MutationOptions[V, R any] struct {
	// OnMutate runs before fn. Writes made through tx are rolled back if the
	// mutation fails. An error aborts the mutation as a failure.
	OnMutate  func(tx *Tx, vars V) error
	OnSuccess func(result R, vars V)
	OnError   func(err error, vars V)
	// OnSettled runs after OnSuccess or OnError.
	OnSettled func(result R, err error, vars V)
	// Invalidate lists key prefixes marked stale once the mutation settles.
	Invalidate []Key
}

// Mutate runs fn with optimistic cache writes recorded on a transaction.
func Mutate[V, R any](ctx context.Context, c *Client, vars V, fn func(context.Context, V) (R, error), opts MutationOptions[V, R]) (R, error) {
	tx := c.begin()

	var (
		res R
		err error
	)
	if opts.OnMutate != nil {
		err = opts.OnMutate(tx, vars)
	}
	if err == nil {
		res, err = fn(ctx, vars)
	}

	if err != nil {
		tx.Rollback()
		if opts.OnError != nil {
			opts.OnError(err, vars)
		}
	} else if opts.OnSuccess != nil {
		opts.OnSuccess(res, vars)
	}
	if opts.OnSettled != nil {
		opts.OnSettled(res, err, vars)
	}
	for _, k := range opts.Invalidate {
		c.Invalidate(k)
	}
	return res, err
}

type txSnapshot struct {
	key     Key
	present bool
	st      state
}

// Tx records the state of every key it writes so the writes can be undone.
type Tx struct {
	c     *Client
	snaps []txSnapshot
	seen  map[string]struct{}
	done  bool
}

func (c *Client) begin() *Tx {
	return &Tx{c: c, seen: make(map[string]struct{})}
}

// Begin starts a transaction outside of Mutate.
func (c *Client) Begin() *Tx {
	return c.begin()
}

func (tx *Tx) recordLocked(key Key) {
	k := key.String()
	if _, ok := tx.seen[k]; ok {
		return
	}
	tx.seen[k] = struct{}{}

	snap := txSnapshot{key: key.clone()}
	if e, ok := tx.c.entries[k]; ok {
		snap.present = true
		snap.st = e.state()
		if e.status == StatusLoading && e.call != nil {
			snap.st.status = e.call.prev.status
			snap.st.err = e.call.prev.err
		}
	}
	tx.snaps = append(tx.snaps, snap)
}

// GetQueryData returns the data cached for key.
func (tx *Tx) GetQueryData(key Key) (any, bool) {
	return tx.c.GetQueryData(key)
}

// SetQueryData writes data for key after recording its current state.
func (tx *Tx) SetQueryData(key Key, data any) {
	tx.c.mu.Lock()
	defer tx.c.mu.Unlock()

	tx.recordLocked(key)
	tx.c.setLocked(key, data)
}

// UpdateQueryData replaces the data of key with fn(old) after recording its
// current state. Keys without data are left untouched. fn must not modify
// old in place.
func (tx *Tx) UpdateQueryData(key Key, fn func(old any) any) bool {
	tx.c.mu.Lock()
	defer tx.c.mu.Unlock()

	e, ok := tx.c.entries[key.String()]
	if !ok || e.data == nil {
		return false
	}
	tx.recordLocked(key)
	tx.c.setLocked(key, fn(e.data))
	return true
}

// CancelQueries cancels in-flight fetches under prefix.
func (tx *Tx) CancelQueries(prefix Key) int {
	return tx.c.CancelQueries(prefix)
}

// Rollback restores every recorded key to its state before the first write.
// Keys that did not exist are removed. It returns the number of keys restored
// and is a no-op after the first call.
func (tx *Tx) Rollback() int {
	c := tx.c
	c.mu.Lock()
	defer c.mu.Unlock()

	if tx.done {
		return 0
	}
	tx.done = true

	for i := len(tx.snaps) - 1; i >= 0; i-- {
		snap := tx.snaps[i]
		k := snap.key.String()
		if !snap.present {
			c.removeLocked(k)
			c.record(metricRollback, snap.key)
			continue
		}

		e := c.entryLocked(snap.key)
		e.restore(snap.st)
		if e.call != nil {
			e.status = StatusLoading
		}
		c.record(metricRollback, snap.key)
		c.notifyLocked(EventUpdated, e)
	}
	return len(tx.snaps)
}
