package queryhelper

import (
	"context"

	"github.com/goliatone/go-query-cache/cache"
	"go.uber.org/zap"
)

// Watch delivers the typed state of one observed key. Updates coalesce like
// the underlying observer: a slow reader sees only the latest state. The
// channel closes after Close or when the watch context ends.
type Watch[D any] struct {
	obs     cache.Observer
	decode  func(any) (D, error)
	updates chan State[D]
	logger  *zap.Logger
}

func newWatch[D any](obs cache.Observer, decode func(any) (D, error), logger *zap.Logger) *Watch[D] {
	w := &Watch[D]{
		obs:     obs,
		decode:  decode,
		updates: make(chan State[D], 1),
		logger:  logger,
	}
	go w.forward()
	return w
}

func (w *Watch[D]) forward() {
	defer close(w.updates)
	for st := range w.obs.Updates() {
		typed := w.convert(st)
		select {
		case <-w.updates:
		default:
		}
		w.updates <- typed
	}
}

// convert reports decode failures through the state's Error.
func (w *Watch[D]) convert(st cache.State) State[D] {
	typed, err := decodeState(st, w.decode)
	if err != nil {
		w.logger.Warn("watched value has unexpected type", zap.String("hash", st.Hash), zap.Error(err))
		typed.Error = err
		typed.Status = cache.StatusError
	}
	return typed
}

// Updates returns the channel of state changes.
func (w *Watch[D]) Updates() <-chan State[D] {
	return w.updates
}

// Current returns the latest state.
func (w *Watch[D]) Current() State[D] {
	return w.convert(w.obs.Current())
}

// Refetch fetches the observed key regardless of freshness.
func (w *Watch[D]) Refetch(ctx context.Context) (State[D], error) {
	st, err := w.obs.Refetch(ctx)
	return w.convert(st), err
}

// Close stops the watch.
func (w *Watch[D]) Close() {
	w.obs.Close()
}

// InfiniteWatch is a Watch over a paginated entry.
type InfiniteWatch[T any] struct {
	*Watch[InfiniteData[T]]
}

// FetchNextPage appends the page after the last loaded one.
func (w *InfiniteWatch[T]) FetchNextPage(ctx context.Context) (State[InfiniteData[T]], error) {
	st, err := w.obs.FetchNextPage(ctx)
	return w.convert(st), err
}

// WatchFunc starts a typed watch for one call. Trailing argument:
// cache.QueryOptions, merged over the watcher defaults.
type WatchFunc[T any] func(ctx context.Context, args ...any) (*Watch[T], error)

// InfiniteWatchFunc is WatchFunc for paginated entries.
type InfiniteWatchFunc[T any] func(ctx context.Context, args ...any) (*InfiniteWatch[T], error)

// FetchingWatchFunc observes the number of in-flight fetches under the
// call's key. Trailing argument: cache.Filters, merged over the defaults.
type FetchingWatchFunc func(ctx context.Context, args ...any) (cache.FetchingObserver, error)

// Watcher returns a WatchFunc whose calls merge their options over defaults,
// key by key, call options winning. As in cache.QueryOptions.Merge, a zero
// field is unset, so a call cannot lower a default back to zero.
func (r *Resource[T]) Watcher(defaults cache.QueryOptions) WatchFunc[T] {
	return func(ctx context.Context, args ...any) (*Watch[T], error) {
		c, err := r.resolve()
		if err != nil {
			return nil, err
		}

		domain, trailing, err := r.split("Watch", args)
		if err != nil {
			return nil, err
		}
		var opts cache.QueryOptions
		if err := parseTrailing("Watch", trailing, into(&opts)); err != nil {
			return nil, err
		}

		key := buildKey(r.baseKey, domain)
		r.logger.Debug("watch", zap.Stringer("key", key))
		obs := c.Watch(ctx, cache.QueryConfig{
			Key:     key,
			Fetcher: r.fetcher(domain),
			Options: defaults.Merge(opts),
		})
		return newWatch(obs, cache.Decode[T], r.logger), nil
	}
}

// InfiniteWatcher is Watcher for paginated entries. InitialPageParam and
// GetNextPageParam come from the merged options.
func (r *Resource[T]) InfiniteWatcher(defaults cache.QueryOptions) InfiniteWatchFunc[T] {
	return func(ctx context.Context, args ...any) (*InfiniteWatch[T], error) {
		c, err := r.resolve()
		if err != nil {
			return nil, err
		}

		domain, trailing, err := r.split("InfiniteWatch", args)
		if err != nil {
			return nil, err
		}
		var opts cache.QueryOptions
		if err := parseTrailing("InfiniteWatch", trailing, into(&opts)); err != nil {
			return nil, err
		}

		merged := defaults.Merge(opts)
		obs := c.Watch(ctx, cache.QueryConfig{
			Key:     buildKey(r.baseKey, domain),
			Fetcher: r.fetcher(domain),
			Options: merged,
			Behavior: &cache.InfiniteBehavior{
				InitialPageParam: merged.InitialPageParam,
				GetNextPageParam: merged.GetNextPageParam,
			},
		})
		return &InfiniteWatch[T]{Watch: newWatch(obs, decodeInfinite[T], r.logger)}, nil
	}
}

// FetchingWatcher returns a FetchingWatchFunc. The call's key becomes the
// filter key unless the merged filters set one under the base key; Exact
// narrows it to that single entry.
func (r *Resource[T]) FetchingWatcher(defaults cache.Filters) FetchingWatchFunc {
	return func(ctx context.Context, args ...any) (cache.FetchingObserver, error) {
		c, err := r.resolve()
		if err != nil {
			return nil, err
		}

		domain, trailing, err := r.split("FetchingWatch", args)
		if err != nil {
			return nil, err
		}
		var filters cache.Filters
		if err := parseTrailing("FetchingWatch", trailing, into(&filters)); err != nil {
			return nil, err
		}

		merged := defaults.Merge(filters)
		if merged.Key == nil {
			merged.Key = buildKey(r.baseKey, domain)
		}
		if merged, err = r.scope("FetchingWatch", merged); err != nil {
			return nil, err
		}
		return c.WatchFetching(ctx, merged), nil
	}
}
