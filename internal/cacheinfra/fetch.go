package cacheinfra

import (
	"context"
	"fmt"
	"time"

	"github.com/goliatone/go-query-cache/cache"
	"go.uber.org/zap"
)

func paramsFromOptions(fetcher cache.FetchFn, opts cache.FetchOptions, behavior *cache.InfiniteBehavior) fetchParams {
	return fetchParams{
		fetcher:    fetcher,
		behavior:   behavior,
		retry:      opts.Retry,
		retryDelay: opts.RetryDelay,
		meta:       opts.Meta,
	}
}

func infiniteBehavior(cfg cache.FetchConfig) *cache.InfiniteBehavior {
	if cfg.Behavior != nil {
		b := *cfg.Behavior
		return &b
	}
	return &cache.InfiniteBehavior{
		InitialPageParam: cfg.Options.InitialPageParam,
		GetNextPageParam: cfg.Options.GetNextPageParam,
		Pages:            cfg.Options.Pages,
	}
}

// FetchQuery returns the cached value when it is fresh and otherwise fetches
// it, joining a fetch already in flight for the same key.
func (c *QueryClient) FetchQuery(ctx context.Context, cfg cache.FetchConfig) (any, error) {
	q := c.build(cfg.Key, cfg.Options.InitialData, cfg.Options.CacheTime)
	st := c.snapshot(q)
	if !st.IsStale(c.resolveStaleTime(cfg.Options.StaleTime), c.now()) {
		return st.Data, nil
	}
	return c.fetch(ctx, q, paramsFromOptions(cfg.Fetcher, cfg.Options, cfg.Behavior))
}

// PrefetchQuery is FetchQuery without a result. Errors are logged.
func (c *QueryClient) PrefetchQuery(ctx context.Context, cfg cache.FetchConfig) {
	if _, err := c.FetchQuery(ctx, cfg); err != nil {
		c.logger.Debug("prefetch failed", zap.String("key", cfg.Key.String()), zap.Error(err))
	}
}

// FetchInfiniteQuery is FetchQuery for a paginated entry.
func (c *QueryClient) FetchInfiniteQuery(ctx context.Context, cfg cache.FetchConfig) (cache.InfiniteData, error) {
	cfg.Behavior = infiniteBehavior(cfg)
	v, err := c.FetchQuery(ctx, cfg)
	if err != nil {
		return cache.InfiniteData{}, err
	}
	data, ok := cache.AsInfiniteData(v)
	if !ok {
		return cache.InfiniteData{}, fmt.Errorf("%w: %T is not infinite data", cache.ErrInvalidResultType, v)
	}
	return data, nil
}

// PrefetchInfiniteQuery is FetchInfiniteQuery without a result.
func (c *QueryClient) PrefetchInfiniteQuery(ctx context.Context, cfg cache.FetchConfig) {
	if _, err := c.FetchInfiniteQuery(ctx, cfg); err != nil {
		c.logger.Debug("infinite prefetch failed", zap.String("key", cfg.Key.String()), zap.Error(err))
	}
}

// fetch starts or joins the fetch of q and waits for it, or for ctx.
func (c *QueryClient) fetch(ctx context.Context, q *query, p fetchParams) (any, error) {
	call := c.startFetch(q, p)
	select {
	case <-call.done:
		return call.val, call.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// startFetch returns the in-flight call of q, starting one when none runs.
// Fetches run on the client context so that one caller giving up does not
// abort the fetch for the others.
func (c *QueryClient) startFetch(q *query, p fetchParams) *fetchCall {
	q.mu.Lock()
	q.params = &p
	if q.inflight != nil {
		call := q.inflight
		q.mu.Unlock()
		return call
	}
	if q.gcTimer != nil {
		q.gcTimer.Stop()
		q.gcTimer = nil
	}

	ctx, cancel := context.WithCancel(c.baseCtx)
	call := &fetchCall{
		cancel: cancel,
		done:   make(chan struct{}),
		prev:   q.state,
	}
	q.inflight = call
	q.state.IsFetching = true
	q.state.FetchFailureCount = 0
	if !q.state.HasData {
		q.state.Status = cache.StatusLoading
	}
	q.mu.Unlock()

	c.metrics.inFlight.Inc()
	c.logger.Debug("fetch started", zap.String("key", q.keyStr), zap.String("hash", q.hash))
	c.notify(q)

	go c.execute(ctx, q, call, p)
	return call
}

func (c *QueryClient) execute(ctx context.Context, q *query, call *fetchCall, p fetchParams) {
	defer call.cancel()
	val, err := c.runWithRetry(ctx, q, call, p)

	q.mu.Lock()
	if q.inflight != call {
		// cancelled, reset or removed while running; waiters are released
		q.mu.Unlock()
		return
	}
	q.inflight = nil
	if err != nil {
		c.setErrorLocked(q, err)
	} else {
		c.setDataLocked(q, val, time.Time{})
	}
	q.mu.Unlock()

	if err != nil {
		c.logger.Warn("fetch failed", zap.String("key", q.keyStr), zap.Error(err))
		c.finishCall(call, nil, err, "error")
	} else {
		c.logger.Debug("fetch finished", zap.String("key", q.keyStr))
		c.finishCall(call, val, nil, "success")
	}
	c.notify(q)
	c.scheduleGC(q)
}

func (c *QueryClient) runWithRetry(ctx context.Context, q *query, call *fetchCall, p fetchParams) (any, error) {
	for attempt := 0; ; attempt++ {
		val, err := c.runFetcher(ctx, q, p)
		if err == nil {
			return val, nil
		}
		if ctx.Err() != nil {
			return nil, err
		}

		q.mu.Lock()
		current := q.inflight == call
		if current {
			q.state.FetchFailureCount++
		}
		q.mu.Unlock()
		if !current {
			return nil, err
		}
		if attempt >= p.retry {
			return nil, err
		}
		c.notify(q)

		timer := time.NewTimer(p.retryDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
}

func (c *QueryClient) runFetcher(ctx context.Context, q *query, p fetchParams) (val any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("fetcher panicked: %v", r)
		}
	}()

	fc := cache.FetchContext{Key: q.key.Clone(), Meta: p.meta}
	if p.behavior == nil {
		return p.fetcher(ctx, fc)
	}
	return c.fetchPages(ctx, q, p, fc)
}

// fetchPages loads the pages of an infinite query. A first load fetches from
// the initial page param, a refetch re-fetches every stored page, and
// PagesNext appends one page.
func (c *QueryClient) fetchPages(ctx context.Context, q *query, p fetchParams, fc cache.FetchContext) (any, error) {
	b := p.behavior
	fetchPage := func(param any) (any, error) {
		fc.PageParam = param
		return p.fetcher(ctx, fc)
	}

	var prev cache.InfiniteData
	if st := c.snapshot(q); st.HasData {
		prev, _ = cache.AsInfiniteData(st.Data)
	}

	if len(prev.Pages) == 0 {
		count := b.Pages
		if count < 1 {
			count = 1
		}
		return loadPages(fetchPage, b, b.InitialPageParam, count, nil)
	}

	if b.Direction == cache.PagesNext {
		if b.GetNextPageParam == nil {
			return prev, nil
		}
		param, ok := b.GetNextPageParam(prev.Pages[len(prev.Pages)-1], prev.Pages)
		if !ok {
			return prev, nil
		}
		page, err := fetchPage(param)
		if err != nil {
			return nil, err
		}
		return cache.InfiniteData{
			Pages:      append(append([]any{}, prev.Pages...), page),
			PageParams: append(append([]any{}, prev.PageParams...), param),
		}, nil
	}

	first := b.InitialPageParam
	if len(prev.PageParams) > 0 {
		first = prev.PageParams[0]
	}
	return loadPages(fetchPage, b, first, len(prev.Pages), prev.PageParams)
}

// loadPages fetches up to count pages starting at first. Later params come
// from GetNextPageParam, or from known when no such function is set.
func loadPages(fetchPage func(any) (any, error), b *cache.InfiniteBehavior, first any, count int, known []any) (cache.InfiniteData, error) {
	out := cache.InfiniteData{}
	param := first
	for i := 0; i < count; i++ {
		if i > 0 {
			switch {
			case b.GetNextPageParam != nil:
				next, ok := b.GetNextPageParam(out.Pages[i-1], out.Pages)
				if !ok {
					return out, nil
				}
				param = next
			case i < len(known):
				param = known[i]
			default:
				return out, nil
			}
		}
		page, err := fetchPage(param)
		if err != nil {
			return cache.InfiniteData{}, err
		}
		out.Pages = append(out.Pages, page)
		out.PageParams = append(out.PageParams, param)
	}
	return out, nil
}

// awaitIdle waits for the fetch in flight on q, if any.
func (c *QueryClient) awaitIdle(ctx context.Context, q *query) error {
	q.mu.Lock()
	call := q.inflight
	q.mu.Unlock()
	if call == nil {
		return nil
	}
	select {
	case <-call.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// refetch runs the last fetch of q again. Queries never fetched are skipped.
func (c *QueryClient) refetch(ctx context.Context, q *query) error {
	q.mu.Lock()
	p := q.params
	q.mu.Unlock()
	if p == nil {
		return nil
	}
	params := *p
	if params.behavior != nil {
		b := *params.behavior
		b.Direction = cache.PagesRefetch
		params.behavior = &b
	}
	_, err := c.fetch(ctx, q, params)
	return err
}

// cancelQuery aborts the fetch in flight on q and restores the state it had
// before the fetch started.
func (c *QueryClient) cancelQuery(q *query, silent bool) bool {
	q.mu.Lock()
	call := c.detachLocked(q)
	st := c.snapshotLocked(q)
	q.mu.Unlock()
	if call == nil {
		return false
	}

	call.cancel()
	if silent {
		c.finishCall(call, st.Data, nil, "cancelled")
	} else {
		c.finishCall(call, nil, cache.ErrFetchCancelled, "cancelled")
	}
	c.metrics.cancelled.Inc()
	c.logger.Debug("fetch cancelled", zap.String("key", q.keyStr), zap.Bool("silent", silent))

	c.notify(q)
	c.scheduleGC(q)
	return true
}
