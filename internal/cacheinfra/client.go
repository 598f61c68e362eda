package cacheinfra

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/goliatone/go-query-cache/cache"
	"github.com/puzpuzpuz/xsync/v3"
	"go.uber.org/zap"
)

// QueryClient is the cache engine. Values live in a sturdyc store keyed by
// query hash; lifecycle state, in-flight fetches and observers are tracked
// per query.
type QueryClient struct {
	cfg        cache.Config
	store      *sturdycStore
	serializer cache.KeySerializer
	logger     *zap.Logger
	metrics    *metrics
	now        func() time.Time

	queries   *xsync.MapOf[string, *query]
	observers *xsync.MapOf[string, int]
	listeners *xsync.MapOf[string, *listener]

	baseCtx context.Context
	stop    context.CancelFunc
}

var _ cache.Client = (*QueryClient)(nil)

// New validates cfg and creates an engine.
func New(cfg cache.Config, opts ...cache.ClientOption) (*QueryClient, error) {
	store, err := newSturdycStore(cfg)
	if err != nil {
		return nil, err
	}

	o := cache.ApplyClientOptions(opts...)
	ctx, cancel := context.WithCancel(context.Background())

	return &QueryClient{
		cfg:        cfg,
		store:      store,
		serializer: o.Serializer,
		logger:     o.Logger.Named("querycache"),
		metrics:    newMetrics(o.Registerer),
		now:        o.Now,
		queries:    xsync.NewMapOf[string, *query](),
		observers:  xsync.NewMapOf[string, int](),
		listeners:  xsync.NewMapOf[string, *listener](),
		baseCtx:    ctx,
		stop:       cancel,
	}, nil
}

// Close cancels every in-flight fetch, closes observers and drops all
// queries. The client must not be used afterwards.
func (c *QueryClient) Close() {
	c.listeners.Range(func(_ string, l *listener) bool {
		l.close()
		return true
	})
	c.Clear()
	c.stop()
}

// Clear removes every query without notifying observers of each removal.
func (c *QueryClient) Clear() {
	c.queries.Range(func(_ string, q *query) bool {
		c.removeQuery(q, false)
		return true
	})
	c.store.purge()
}

// Size is the number of tracked queries.
func (c *QueryClient) Size() int {
	return c.queries.Size()
}

func (c *QueryClient) serialize(key cache.Key) ([]string, string) {
	segments := c.serializer.Segments(key)
	return segments, strings.Join(segments, cache.KeySeparator)
}

func (c *QueryClient) lookup(key cache.Key) (*query, bool) {
	_, keyStr := c.serialize(key)
	return c.queries.Load(keyStr)
}

// build returns the query for key, creating it when missing. initialData
// seeds a new query and is what reset restores. A query keeps the longest
// cache time any call asked for; stale time is never stored per query.
func (c *QueryClient) build(key cache.Key, initialData any, cacheTime time.Duration) *query {
	segments, keyStr := c.serialize(key)

	q, loaded := c.queries.LoadOrCompute(keyStr, func() *query {
		nq := &query{
			key:       key.Clone(),
			segments:  segments,
			keyStr:    keyStr,
			hash:      cache.HashKey(keyStr),
			cacheTime: c.cfg.CacheTime,
		}
		if cacheTime > 0 {
			nq.cacheTime = cacheTime
		}
		if initialData != nil {
			nq.initial = initialState{data: initialData, hasData: true, updatedAt: c.now()}
			c.store.set(nq.hash, initialData)
		}
		nq.state = initialQueryState(nq.initial)
		return nq
	})
	if !loaded {
		c.metrics.queries.Inc()
		c.logger.Debug("query created", zap.String("key", keyStr), zap.String("hash", q.hash))
		return q
	}

	if cacheTime > 0 {
		q.mu.Lock()
		if cacheTime > q.cacheTime {
			q.cacheTime = cacheTime
		}
		q.mu.Unlock()
	}
	return q
}

func (c *QueryClient) removeQuery(q *query, notify bool) {
	q.mu.Lock()
	if q.removed {
		q.mu.Unlock()
		return
	}
	q.removed = true
	if q.gcTimer != nil {
		q.gcTimer.Stop()
		q.gcTimer = nil
	}
	call := c.detachLocked(q)
	q.state = cache.State{Status: cache.StatusIdle}
	q.mu.Unlock()

	if call != nil {
		call.cancel()
		c.finishCall(call, nil, cache.ErrFetchCancelled, "cancelled")
	}
	c.queries.Compute(q.keyStr, func(cur *query, loaded bool) (*query, bool) {
		if !loaded || cur != q {
			return cur, !loaded
		}
		return nil, true
	})
	c.store.delete(q.hash)
	c.metrics.queries.Dec()
	c.metrics.removed.Inc()
	c.logger.Debug("query removed", zap.String("key", q.keyStr))

	if notify {
		c.notify(q)
	}
}

func (c *QueryClient) observerCount(keyStr string) int {
	n, _ := c.observers.Load(keyStr)
	return n
}

// resolveStaleTime returns the stale time of one call: its own option, or
// the configured default.
func (c *QueryClient) resolveStaleTime(opt time.Duration) time.Duration {
	if opt > 0 {
		return opt
	}
	return c.cfg.StaleTime
}

// GetQueryData returns the cached value of key without creating a query.
func (c *QueryClient) GetQueryData(key cache.Key) (any, bool) {
	q, ok := c.lookup(key)
	if !ok {
		return nil, false
	}
	st := c.snapshot(q)
	return st.Data, st.HasData
}

// GetQueryState returns the lifecycle state of key without creating a query.
func (c *QueryClient) GetQueryState(key cache.Key) (cache.State, bool) {
	q, ok := c.lookup(key)
	if !ok {
		return cache.State{}, false
	}
	return c.snapshot(q), true
}

// SetQueryData writes the value updater computes from the current one. A nil
// result leaves the entry untouched and is returned as is.
func (c *QueryClient) SetQueryData(key cache.Key, updater cache.Updater, opts cache.SetDataOptions) any {
	q := c.build(key, nil, 0)
	return c.setQueryData(q, updater, opts)
}

func (c *QueryClient) setQueryData(q *query, updater cache.Updater, opts cache.SetDataOptions) any {
	q.mu.Lock()
	cur := c.snapshotLocked(q)
	next := updater(cur.Data, cur.HasData)
	if next == nil {
		q.mu.Unlock()
		c.scheduleGC(q)
		return nil
	}
	c.setDataLocked(q, next, opts.UpdatedAt)
	q.mu.Unlock()

	c.notify(q)
	c.scheduleGC(q)
	return next
}

// GetQueriesData lists the cached values of every matching query that holds
// data.
func (c *QueryClient) GetQueriesData(filters cache.Filters) []cache.Entry {
	var out []cache.Entry
	for _, m := range c.findAll(filters) {
		if !m.state.HasData {
			continue
		}
		out = append(out, cache.Entry{Key: m.q.key.Clone(), Data: m.state.Data})
	}
	return out
}

// SetQueriesData applies updater to every matching query and returns what
// was written.
func (c *QueryClient) SetQueriesData(filters cache.Filters, updater cache.Updater, opts cache.SetDataOptions) []cache.Entry {
	var out []cache.Entry
	for _, m := range c.findAll(filters) {
		out = append(out, cache.Entry{
			Key:  m.q.key.Clone(),
			Data: c.setQueryData(m.q, updater, opts),
		})
	}
	return out
}

type match struct {
	q     *query
	state cache.State
}

// findAll returns the queries selected by filters, ordered by key.
func (c *QueryClient) findAll(filters cache.Filters) []match {
	var prefix []string
	if len(filters.Key) > 0 {
		prefix = c.serializer.Segments(filters.Key)
	}

	var out []match
	c.queries.Range(func(_ string, q *query) bool {
		st := c.snapshot(q)
		if c.matches(q, st, prefix, filters) {
			out = append(out, match{q: q, state: st})
		}
		return true
	})
	sort.Slice(out, func(i, j int) bool { return out[i].q.keyStr < out[j].q.keyStr })
	return out
}

func (c *QueryClient) matches(q *query, st cache.State, prefix []string, f cache.Filters) bool {
	if prefix != nil {
		if f.Exact {
			if len(prefix) != len(q.segments) || !cache.SegmentsHavePrefix(q.segments, prefix) {
				return false
			}
		} else if !cache.SegmentsHavePrefix(q.segments, prefix) {
			return false
		}
	}

	observers := c.observerCount(q.keyStr)
	switch f.Type {
	case cache.QueryTypeActive:
		if observers == 0 {
			return false
		}
	case cache.QueryTypeInactive:
		if observers > 0 {
			return false
		}
	}

	if f.Stale != nil && st.IsStale(c.resolveStaleTime(0), c.now()) != *f.Stale {
		return false
	}
	if f.Fetching != nil && st.IsFetching != *f.Fetching {
		return false
	}
	if f.Predicate != nil {
		return f.Predicate(cache.QueryInfo{
			Key:       q.key.Clone(),
			Hash:      q.hash,
			State:     st,
			Observers: observers,
		})
	}
	return true
}
