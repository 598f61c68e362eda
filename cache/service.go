package cache

import (
	"context"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

// FetchContext is handed to a fetcher by the engine at fetch time.
type FetchContext struct {
	Key       Key
	PageParam any
	Meta      map[string]any
}

// FetchFn produces the value of a query. It is called by the engine inside
// its fetch lifecycle, never by the helpers directly.
type FetchFn func(ctx context.Context, fc FetchContext) (any, error)

// Updater computes the next cached value from the previous one. ok is false
// when nothing was cached. Returning nil leaves the entry untouched.
type Updater func(old any, ok bool) any

// ReplaceWith returns an Updater that ignores the previous value.
func ReplaceWith(v any) Updater {
	return func(any, bool) any { return v }
}

// PageDirection tells an infinite fetch what to do with existing pages.
type PageDirection int

const (
	// PagesRefetch loads the first page, or re-fetches every stored page.
	PagesRefetch PageDirection = iota
	// PagesNext appends the page after the last stored one.
	PagesNext
)

// InfiniteBehavior marks a fetch as a paginated (infinite) entry.
type InfiniteBehavior struct {
	InitialPageParam any
	GetNextPageParam NextPageParamFn
	Pages            int
	Direction        PageDirection
}

// FetchConfig is the engine call of an imperative fetch.
type FetchConfig struct {
	Key      Key
	Fetcher  FetchFn
	Options  FetchOptions
	Behavior *InfiniteBehavior
}

// QueryConfig is the engine call of a watched query.
type QueryConfig struct {
	Key      Key
	Fetcher  FetchFn
	Options  QueryOptions
	Behavior *InfiniteBehavior
}

// Observer delivers the latest state of one query. Updates coalesce: a slow
// reader only ever sees the most recent state. The channel is closed by Close
// or when the watch context ends.
type Observer interface {
	Updates() <-chan State
	Current() State
	Refetch(ctx context.Context) (State, error)
	FetchNextPage(ctx context.Context) (State, error)
	Close()
}

// FetchingObserver delivers the number of matching queries in flight.
type FetchingObserver interface {
	Updates() <-chan int
	Current() int
	Close()
}

// Client is the cache engine contract the query helpers dispatch into.
type Client interface {
	GetQueryData(key Key) (any, bool)
	SetQueryData(key Key, updater Updater, opts SetDataOptions) any
	GetQueriesData(filters Filters) []Entry
	SetQueriesData(filters Filters, updater Updater, opts SetDataOptions) []Entry
	GetQueryState(key Key) (State, bool)

	FetchQuery(ctx context.Context, cfg FetchConfig) (any, error)
	PrefetchQuery(ctx context.Context, cfg FetchConfig)
	FetchInfiniteQuery(ctx context.Context, cfg FetchConfig) (InfiniteData, error)
	PrefetchInfiniteQuery(ctx context.Context, cfg FetchConfig)

	InvalidateQueries(ctx context.Context, filters Filters, opts InvalidateOptions) error
	RefetchQueries(ctx context.Context, filters Filters, opts RefetchOptions) error
	CancelQueries(ctx context.Context, filters Filters, opts CancelOptions) error
	RemoveQueries(filters Filters)
	ResetQueries(ctx context.Context, filters Filters, opts ResetOptions) error
	IsFetching(filters Filters) int

	Watch(ctx context.Context, cfg QueryConfig) Observer
	WatchFetching(ctx context.Context, filters Filters) FetchingObserver
}

// Decode is a type-safe conversion of a cached value. Values of another
// type (for example maps restored by hydration) are re-encoded with msgpack
// into T.
func Decode[T any](v any) (T, error) {
	var zero T
	if v == nil {
		return zero, nil
	}
	if typed, ok := v.(T); ok {
		return typed, nil
	}

	raw, ok := v.(msgpack.RawMessage)
	if !ok {
		b, err := msgpack.Marshal(v)
		if err != nil {
			return zero, fmt.Errorf("%w: %T: %v", ErrInvalidResultType, v, err)
		}
		raw = b
	}

	var out T
	if err := msgpack.Unmarshal(raw, &out); err != nil {
		return zero, fmt.Errorf("%w: want %T: %v", ErrInvalidResultType, zero, err)
	}
	return out, nil
}
