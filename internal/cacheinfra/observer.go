package cacheinfra

import (
	"context"
	"sync"
	"time"

	"github.com/goliatone/go-query-cache/cache"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type listener struct {
	match func(q *query) bool
	fire  func(q *query)
	close func()
}

// notify fans a change of q out to listeners. It must be called without
// holding q.mu.
func (c *QueryClient) notify(q *query) {
	c.listeners.Range(func(_ string, l *listener) bool {
		if l.match(q) {
			l.fire(q)
		}
		return true
	})
}

// scheduleGC arms the removal timer of an unobserved, idle query.
func (c *QueryClient) scheduleGC(q *query) {
	if c.observerCount(q.keyStr) > 0 {
		return
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	if q.removed || q.inflight != nil || q.cacheTime <= 0 {
		return
	}
	if q.gcTimer != nil {
		q.gcTimer.Stop()
	}
	q.gcTimer = time.AfterFunc(q.cacheTime, func() {
		c.collect(q)
	})
}

func (c *QueryClient) collect(q *query) {
	if c.observerCount(q.keyStr) > 0 {
		return
	}
	q.mu.Lock()
	busy := q.inflight != nil
	q.mu.Unlock()
	if busy {
		return
	}
	c.logger.Debug("query collected", zap.String("key", q.keyStr))
	c.removeQuery(q, true)
}

func (c *QueryClient) attach(keyStr string) {
	c.observers.Compute(keyStr, func(n int, _ bool) (int, bool) {
		return n + 1, false
	})
	if q, ok := c.queries.Load(keyStr); ok {
		q.mu.Lock()
		if q.gcTimer != nil {
			q.gcTimer.Stop()
			q.gcTimer = nil
		}
		q.mu.Unlock()
	}
}

func (c *QueryClient) detach(keyStr string) {
	c.observers.Compute(keyStr, func(n int, _ bool) (int, bool) {
		if n <= 1 {
			return 0, true
		}
		return n - 1, false
	})
	if q, ok := c.queries.Load(keyStr); ok {
		c.scheduleGC(q)
	}
}

// queryObserver follows one key. It survives removal of its query: the next
// refetch rebuilds it under the same key.
type queryObserver struct {
	id     string
	client *QueryClient
	cfg    cache.QueryConfig
	keyStr string
	ch     chan cache.State

	mu      sync.Mutex
	current cache.State
	closed  bool
	stop    func() bool
}

// Watch observes the query of cfg.Key. An enabled query with missing or
// stale data starts a background fetch. The observer closes when ctx ends.
func (c *QueryClient) Watch(ctx context.Context, cfg cache.QueryConfig) cache.Observer {
	q := c.build(cfg.Key, cfg.Options.InitialData, cfg.Options.CacheTime)

	o := &queryObserver{
		id:     uuid.NewString(),
		client: c,
		cfg:    cfg,
		keyStr: q.keyStr,
		ch:     make(chan cache.State, 1),
	}
	c.attach(o.keyStr)
	c.listeners.Store(o.id, &listener{
		match: func(x *query) bool { return x.keyStr == o.keyStr },
		fire:  func(x *query) { o.push(c.snapshot(x)) },
		close: o.Close,
	})

	st := c.snapshot(q)
	o.push(st)

	if cfg.Options.IsEnabled() && st.IsStale(c.resolveStaleTime(cfg.Options.StaleTime), c.now()) {
		c.startFetch(q, o.params(cache.PagesRefetch))
	}

	o.setStop(context.AfterFunc(ctx, o.Close))
	return o
}

func (o *queryObserver) setStop(stop func() bool) {
	o.mu.Lock()
	o.stop = stop
	o.mu.Unlock()
}

func (o *queryObserver) params(dir cache.PageDirection) fetchParams {
	opts := o.cfg.Options.FetchOptions()
	var behavior *cache.InfiniteBehavior
	if o.cfg.Behavior != nil {
		b := *o.cfg.Behavior
		b.Direction = dir
		behavior = &b
	}
	return paramsFromOptions(o.cfg.Fetcher, opts, behavior)
}

// push replaces any undelivered state with st.
func (o *queryObserver) push(st cache.State) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return
	}
	o.current = st
	select {
	case <-o.ch:
	default:
	}
	o.ch <- st
}

func (o *queryObserver) Updates() <-chan cache.State {
	return o.ch
}

func (o *queryObserver) Current() cache.State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.current
}

func (o *queryObserver) query() *query {
	opts := o.cfg.Options
	return o.client.build(o.cfg.Key, opts.InitialData, opts.CacheTime)
}

// Refetch fetches the observed query regardless of freshness.
func (o *queryObserver) Refetch(ctx context.Context) (cache.State, error) {
	q := o.query()
	if err := o.client.awaitIdle(ctx, q); err != nil {
		return o.client.snapshot(q), err
	}
	_, err := o.client.fetch(ctx, q, o.params(cache.PagesRefetch))
	return o.client.snapshot(q), err
}

// FetchNextPage appends the next page of an infinite query.
func (o *queryObserver) FetchNextPage(ctx context.Context) (cache.State, error) {
	q := o.query()
	if err := o.client.awaitIdle(ctx, q); err != nil {
		return o.client.snapshot(q), err
	}
	_, err := o.client.fetch(ctx, q, o.params(cache.PagesNext))
	return o.client.snapshot(q), err
}

func (o *queryObserver) Close() {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return
	}
	o.closed = true
	close(o.ch)
	stop := o.stop
	o.mu.Unlock()

	if stop != nil {
		stop()
	}
	o.client.listeners.Delete(o.id)
	o.client.detach(o.keyStr)
}

// fetchingObserver follows the number of matching queries in flight.
type fetchingObserver struct {
	id     string
	client *QueryClient
	ch     chan int

	mu      sync.Mutex
	current int
	closed  bool
	stop    func() bool
}

// WatchFetching observes IsFetching(filters). Only changes of the count are
// delivered.
func (c *QueryClient) WatchFetching(ctx context.Context, filters cache.Filters) cache.FetchingObserver {
	o := &fetchingObserver{
		id:     uuid.NewString(),
		client: c,
		ch:     make(chan int, 1),
	}
	o.current = c.IsFetching(filters)
	o.ch <- o.current

	c.listeners.Store(o.id, &listener{
		match: func(*query) bool { return true },
		fire:  func(*query) { o.push(c.IsFetching(filters)) },
		close: o.Close,
	})
	stop := context.AfterFunc(ctx, o.Close)
	o.mu.Lock()
	o.stop = stop
	o.mu.Unlock()
	return o
}

func (o *fetchingObserver) push(n int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed || n == o.current {
		return
	}
	o.current = n
	select {
	case <-o.ch:
	default:
	}
	o.ch <- n
}

func (o *fetchingObserver) Updates() <-chan int {
	return o.ch
}

func (o *fetchingObserver) Current() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.current
}

func (o *fetchingObserver) Close() {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return
	}
	o.closed = true
	close(o.ch)
	stop := o.stop
	o.mu.Unlock()

	if stop != nil {
		stop()
	}
	o.client.listeners.Delete(o.id)
}
