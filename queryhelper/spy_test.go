package queryhelper

import (
	"context"
	"sync"

	"github.com/goliatone/go-query-cache/cache"
)

// spyClient records every engine call. With a delegate it forwards to it,
// otherwise it answers with empty results and runs fetchers inline.
type spyClient struct {
	next cache.Client

	mu       sync.Mutex
	calls    []string
	fetches  []cache.FetchConfig
	queries  []cache.QueryConfig
	filters  []cache.Filters
	dataKeys []cache.Key
	lastOpts any
}

var _ cache.Client = (*spyClient)(nil)

func (s *spyClient) record(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, name)
}

func (s *spyClient) recordFilters(name string, f cache.Filters, opts any) {
	s.mu.Lock()
	s.filters = append(s.filters, f)
	s.lastOpts = opts
	s.mu.Unlock()
	s.record(name)
}

func (s *spyClient) recordKey(name string, key cache.Key) {
	s.mu.Lock()
	s.dataKeys = append(s.dataKeys, key)
	s.mu.Unlock()
	s.record(name)
}

func (s *spyClient) recordFetch(name string, cfg cache.FetchConfig) {
	s.mu.Lock()
	s.fetches = append(s.fetches, cfg)
	s.mu.Unlock()
	s.record(name)
}

func (s *spyClient) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

func (s *spyClient) GetQueryData(key cache.Key) (any, bool) {
	s.recordKey("GetQueryData", key)
	if s.next != nil {
		return s.next.GetQueryData(key)
	}
	return nil, false
}

func (s *spyClient) SetQueryData(key cache.Key, updater cache.Updater, opts cache.SetDataOptions) any {
	s.recordKey("SetQueryData", key)
	if s.next != nil {
		return s.next.SetQueryData(key, updater, opts)
	}
	return updater(nil, false)
}

func (s *spyClient) GetQueriesData(filters cache.Filters) []cache.Entry {
	s.recordFilters("GetQueriesData", filters, nil)
	if s.next != nil {
		return s.next.GetQueriesData(filters)
	}
	return nil
}

func (s *spyClient) SetQueriesData(filters cache.Filters, updater cache.Updater, opts cache.SetDataOptions) []cache.Entry {
	s.recordFilters("SetQueriesData", filters, opts)
	if s.next != nil {
		return s.next.SetQueriesData(filters, updater, opts)
	}
	return nil
}

func (s *spyClient) GetQueryState(key cache.Key) (cache.State, bool) {
	s.recordKey("GetQueryState", key)
	if s.next != nil {
		return s.next.GetQueryState(key)
	}
	return cache.State{}, false
}

func (s *spyClient) FetchQuery(ctx context.Context, cfg cache.FetchConfig) (any, error) {
	s.recordFetch("FetchQuery", cfg)
	if s.next != nil {
		return s.next.FetchQuery(ctx, cfg)
	}
	return cfg.Fetcher(ctx, cache.FetchContext{Key: cfg.Key, Meta: cfg.Options.Meta})
}

func (s *spyClient) PrefetchQuery(ctx context.Context, cfg cache.FetchConfig) {
	s.recordFetch("PrefetchQuery", cfg)
	if s.next != nil {
		s.next.PrefetchQuery(ctx, cfg)
	}
}

func (s *spyClient) FetchInfiniteQuery(ctx context.Context, cfg cache.FetchConfig) (cache.InfiniteData, error) {
	s.recordFetch("FetchInfiniteQuery", cfg)
	if s.next != nil {
		return s.next.FetchInfiniteQuery(ctx, cfg)
	}
	return cache.InfiniteData{}, nil
}

func (s *spyClient) PrefetchInfiniteQuery(ctx context.Context, cfg cache.FetchConfig) {
	s.recordFetch("PrefetchInfiniteQuery", cfg)
	if s.next != nil {
		s.next.PrefetchInfiniteQuery(ctx, cfg)
	}
}

func (s *spyClient) InvalidateQueries(ctx context.Context, filters cache.Filters, opts cache.InvalidateOptions) error {
	s.recordFilters("InvalidateQueries", filters, opts)
	if s.next != nil {
		return s.next.InvalidateQueries(ctx, filters, opts)
	}
	return nil
}

func (s *spyClient) RefetchQueries(ctx context.Context, filters cache.Filters, opts cache.RefetchOptions) error {
	s.recordFilters("RefetchQueries", filters, opts)
	if s.next != nil {
		return s.next.RefetchQueries(ctx, filters, opts)
	}
	return nil
}

func (s *spyClient) CancelQueries(ctx context.Context, filters cache.Filters, opts cache.CancelOptions) error {
	s.recordFilters("CancelQueries", filters, opts)
	if s.next != nil {
		return s.next.CancelQueries(ctx, filters, opts)
	}
	return nil
}

func (s *spyClient) RemoveQueries(filters cache.Filters) {
	s.recordFilters("RemoveQueries", filters, nil)
	if s.next != nil {
		s.next.RemoveQueries(filters)
	}
}

func (s *spyClient) ResetQueries(ctx context.Context, filters cache.Filters, opts cache.ResetOptions) error {
	s.recordFilters("ResetQueries", filters, opts)
	if s.next != nil {
		return s.next.ResetQueries(ctx, filters, opts)
	}
	return nil
}

func (s *spyClient) IsFetching(filters cache.Filters) int {
	s.recordFilters("IsFetching", filters, nil)
	if s.next != nil {
		return s.next.IsFetching(filters)
	}
	return 0
}

func (s *spyClient) Watch(ctx context.Context, cfg cache.QueryConfig) cache.Observer {
	s.mu.Lock()
	s.queries = append(s.queries, cfg)
	s.mu.Unlock()
	s.record("Watch")
	if s.next != nil {
		return s.next.Watch(ctx, cfg)
	}
	return newStubObserver()
}

func (s *spyClient) WatchFetching(ctx context.Context, filters cache.Filters) cache.FetchingObserver {
	s.recordFilters("WatchFetching", filters, nil)
	if s.next != nil {
		return s.next.WatchFetching(ctx, filters)
	}
	return nil
}

type stubObserver struct {
	ch   chan cache.State
	once sync.Once
}

func newStubObserver() *stubObserver {
	return &stubObserver{ch: make(chan cache.State)}
}

func (o *stubObserver) Updates() <-chan cache.State { return o.ch }
func (o *stubObserver) Current() cache.State { return cache.State{Status: cache.StatusIdle} }
func (o *stubObserver) Refetch(context.Context) (cache.State, error) {
	return o.Current(), nil
}
func (o *stubObserver) FetchNextPage(context.Context) (cache.State, error) {
	return o.Current(), nil
}
func (o *stubObserver) Close() { o.once.Do(func() { close(o.ch) }) }
