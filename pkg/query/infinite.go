package query

import (
	"context"
	"time"
)

// InfiniteData is the cached value of a paginated query: pages in fetch
// order and the page param each was fetched with.
type InfiniteData[P any] struct {
	Pages      []P
	PageParams []int
}

// MapPages returns a copy of d with fn applied to each page.
func (d InfiniteData[P]) MapPages(fn func(P) P) InfiniteData[P] {
	out := InfiniteData[P]{
		Pages:      make([]P, len(d.Pages)),
		PageParams: append([]int(nil), d.PageParams...),
	}
	for i, p := range d.Pages {
		out.Pages[i] = fn(p)
	}
	return out
}

// InfiniteOptions configure page params.
type InfiniteOptions[P any] struct {
	InitialPageParam int
	// GetNextPageParam returns the param of the page after last, or false
	// when there is none.
	GetNextPageParam func(last P) (int, bool)
}

// Infinite is a paginated query stored under a single key.
type Infinite[P any] struct {
	c         *Client
	key       Key
	fetchPage func(ctx context.Context, param int) (P, error)
	opts      InfiniteOptions[P]
	qopts     []QueryOption
}

// InfiniteResult is the state of a paginated query.
type InfiniteResult[P any] struct {
	Status      Status
	Data        InfiniteData[P]
	Err         error
	UpdatedAt   time.Time
	Fetching    bool
	HasNextPage bool
}

type nextPage[P any] struct {
	param int
	page  P
	ok    bool
}

// NewInfinite binds a paginated query to key.
func NewInfinite[P any](c *Client, key Key, fetchPage func(ctx context.Context, param int) (P, error), opts InfiniteOptions[P], qopts ...QueryOption) *Infinite[P] {
	return &Infinite[P]{c: c, key: key.clone(), fetchPage: fetchPage, opts: opts, qopts: qopts}
}

// Key returns the cache key of the query.
func (q *Infinite[P]) Key() Key {
	return q.key.clone()
}

// Fetch loads the first page, or refetches every loaded page in order when
// the cached data is stale.
func (q *Infinite[P]) Fetch(ctx context.Context) InfiniteResult[P] {
	e, err := q.c.ensure(ctx, q.key, q.refetchAll, nil, q.c.queryConfig(q.qopts), false)
	return q.result(e, err)
}

// FetchNextPage appends the next page when there is one. A call made while
// any fetch of the query is in flight joins that fetch instead.
func (q *Infinite[P]) FetchNextPage(ctx context.Context) InfiniteResult[P] {
	if e, _ := q.c.Entry(q.key); !e.Fetching && !q.HasNextPage() {
		return q.result(e, nil)
	}
	e, err := q.c.ensure(ctx, q.key, q.fetchNext, q.appendPage, q.c.queryConfig(q.qopts), true)
	return q.result(e, err)
}

// HasNextPage reports whether the last loaded page has a successor.
func (q *Infinite[P]) HasNextPage() bool {
	d, ok := q.data()
	if !ok {
		return false
	}
	return q.hasNext(d)
}

func (q *Infinite[P]) hasNext(d InfiniteData[P]) bool {
	if len(d.Pages) == 0 || q.opts.GetNextPageParam == nil {
		return false
	}
	_, ok := q.opts.GetNextPageParam(d.Pages[len(d.Pages)-1])
	return ok
}

func (q *Infinite[P]) data() (InfiniteData[P], bool) {
	v, ok := q.c.GetQueryData(q.key)
	if !ok {
		return InfiniteData[P]{}, false
	}
	d, ok := v.(InfiniteData[P])
	return d, ok
}

func (q *Infinite[P]) refetchAll(ctx context.Context) (any, error) {
	old, _ := q.data()
	n := len(old.Pages)
	if n == 0 {
		n = 1
	}

	out := InfiniteData[P]{
		Pages:      make([]P, 0, n),
		PageParams: make([]int, 0, n),
	}
	param := q.opts.InitialPageParam
	for i := 0; i < n; i++ {
		page, err := q.fetchPage(ctx, param)
		if err != nil {
			return nil, err
		}
		out.Pages = append(out.Pages, page)
		out.PageParams = append(out.PageParams, param)

		if i == n-1 || q.opts.GetNextPageParam == nil {
			break
		}
		next, ok := q.opts.GetNextPageParam(page)
		if !ok {
			break
		}
		param = next
	}
	return out, nil
}

func (q *Infinite[P]) fetchNext(ctx context.Context) (any, error) {
	d, _ := q.data()
	if !q.hasNext(d) {
		return nextPage[P]{}, nil
	}
	param, _ := q.opts.GetNextPageParam(d.Pages[len(d.Pages)-1])
	page, err := q.fetchPage(ctx, param)
	if err != nil {
		return nil, err
	}
	return nextPage[P]{param: param, page: page, ok: true}, nil
}

func (q *Infinite[P]) appendPage(old, val any) any {
	d, _ := old.(InfiniteData[P])
	np, _ := val.(nextPage[P])
	if !np.ok {
		return d
	}
	return InfiniteData[P]{
		Pages:      append(append(make([]P, 0, len(d.Pages)+1), d.Pages...), np.page),
		PageParams: append(append(make([]int, 0, len(d.PageParams)+1), d.PageParams...), np.param),
	}
}

func (q *Infinite[P]) result(e Entry, err error) InfiniteResult[P] {
	d, _ := e.Data.(InfiniteData[P])
	res := InfiniteResult[P]{
		Status:      e.Status,
		Data:        d,
		Err:         e.Err,
		UpdatedAt:   e.UpdatedAt,
		Fetching:    e.Fetching,
		HasNextPage: q.hasNext(d),
	}
	if err != nil {
		res.Err = err
	}
	return res
}
