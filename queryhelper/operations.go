package queryhelper

import (
	"context"
	"fmt"

	"github.com/goliatone/go-query-cache/cache"
	"go.uber.org/zap"
)

// Fetch returns the value of the call's key, fetching it through the bound
// client when it is missing or stale. Trailing argument: cache.FetchOptions.
func (r *Resource[T]) Fetch(ctx context.Context, args ...any) (T, error) {
	var zero T
	c, err := r.resolve()
	if err != nil {
		return zero, err
	}

	domain, trailing, err := r.split("Fetch", args)
	if err != nil {
		return zero, err
	}
	var opts cache.FetchOptions
	if err := parseTrailing("Fetch", trailing, into(&opts)); err != nil {
		return zero, err
	}

	key := buildKey(r.baseKey, domain)
	r.logger.Debug("fetch", zap.Stringer("key", key))
	v, err := c.FetchQuery(ctx, cache.FetchConfig{
		Key:     key,
		Fetcher: r.fetcher(domain),
		Options: opts,
	})
	if err != nil {
		return zero, err
	}
	return cache.Decode[T](v)
}

// Prefetch warms the call's key. Fetch errors are not reported; only a
// missing client or a malformed call is.
func (r *Resource[T]) Prefetch(ctx context.Context, args ...any) error {
	c, err := r.resolve()
	if err != nil {
		return err
	}

	domain, trailing, err := r.split("Prefetch", args)
	if err != nil {
		return err
	}
	var opts cache.FetchOptions
	if err := parseTrailing("Prefetch", trailing, into(&opts)); err != nil {
		return err
	}

	c.PrefetchQuery(ctx, cache.FetchConfig{
		Key:     buildKey(r.baseKey, domain),
		Fetcher: r.fetcher(domain),
		Options: opts,
	})
	return nil
}

func infiniteBehavior(opts cache.FetchOptions) *cache.InfiniteBehavior {
	return &cache.InfiniteBehavior{
		InitialPageParam: opts.InitialPageParam,
		GetNextPageParam: opts.GetNextPageParam,
		Pages:            opts.Pages,
	}
}

// FetchInfinite is Fetch for a paginated entry. The resource function is
// called once per page; NewWithContext resources read the page param from
// the FetchContext.
func (r *Resource[T]) FetchInfinite(ctx context.Context, args ...any) (InfiniteData[T], error) {
	c, err := r.resolve()
	if err != nil {
		return InfiniteData[T]{}, err
	}

	domain, trailing, err := r.split("FetchInfinite", args)
	if err != nil {
		return InfiniteData[T]{}, err
	}
	var opts cache.FetchOptions
	if err := parseTrailing("FetchInfinite", trailing, into(&opts)); err != nil {
		return InfiniteData[T]{}, err
	}

	data, err := c.FetchInfiniteQuery(ctx, cache.FetchConfig{
		Key:      buildKey(r.baseKey, domain),
		Fetcher:  r.fetcher(domain),
		Options:  opts,
		Behavior: infiniteBehavior(opts),
	})
	if err != nil {
		return InfiniteData[T]{}, err
	}
	return typedInfinite[T](data)
}

// PrefetchInfinite is Prefetch for a paginated entry.
func (r *Resource[T]) PrefetchInfinite(ctx context.Context, args ...any) error {
	c, err := r.resolve()
	if err != nil {
		return err
	}

	domain, trailing, err := r.split("PrefetchInfinite", args)
	if err != nil {
		return err
	}
	var opts cache.FetchOptions
	if err := parseTrailing("PrefetchInfinite", trailing, into(&opts)); err != nil {
		return err
	}

	c.PrefetchInfiniteQuery(ctx, cache.FetchConfig{
		Key:      buildKey(r.baseKey, domain),
		Fetcher:  r.fetcher(domain),
		Options:  opts,
		Behavior: infiniteBehavior(opts),
	})
	return nil
}

// GetData reads the cached value of the call's key without fetching.
// Trailing argument: cache.Filters, accepted for symmetry and not used.
func (r *Resource[T]) GetData(args ...any) (T, bool, error) {
	var zero T
	c, err := r.resolve()
	if err != nil {
		return zero, false, err
	}

	domain, trailing, err := r.split("GetData", args)
	if err != nil {
		return zero, false, err
	}
	var filters cache.Filters
	if err := parseTrailing("GetData", trailing, into(&filters)); err != nil {
		return zero, false, err
	}

	v, ok := c.GetQueryData(buildKey(r.baseKey, domain))
	if !ok {
		return zero, false, nil
	}
	data, err := cache.Decode[T](v)
	if err != nil {
		return zero, false, err
	}
	return data, true, nil
}

// GetInfiniteData reads the cached pages of the call's key.
func (r *Resource[T]) GetInfiniteData(args ...any) (InfiniteData[T], bool, error) {
	c, err := r.resolve()
	if err != nil {
		return InfiniteData[T]{}, false, err
	}

	domain, trailing, err := r.split("GetInfiniteData", args)
	if err != nil {
		return InfiniteData[T]{}, false, err
	}
	var filters cache.Filters
	if err := parseTrailing("GetInfiniteData", trailing, into(&filters)); err != nil {
		return InfiniteData[T]{}, false, err
	}

	v, ok := c.GetQueryData(buildKey(r.baseKey, domain))
	if !ok {
		return InfiniteData[T]{}, false, nil
	}
	data, err := decodeInfinite[T](v)
	if err != nil {
		return InfiniteData[T]{}, false, err
	}
	return data, true, nil
}

// SetData writes the cached value of the call's key. The first trailing
// argument is required: a T, an Updater[T], a func(T, bool) T or a
// func(T) T. An optional cache.SetDataOptions may follow.
func (r *Resource[T]) SetData(args ...any) (T, error) {
	var zero T
	c, err := r.resolve()
	if err != nil {
		return zero, err
	}

	domain, trailing, err := r.split("SetData", args)
	if err != nil {
		return zero, err
	}
	update, opts, err := splitSetArgs[T]("SetData", trailing)
	if err != nil {
		return zero, err
	}

	v := c.SetQueryData(buildKey(r.baseKey, domain), r.untypedUpdater(update), opts)
	return cache.Decode[T](v)
}

// SetInfiniteData writes the cached pages of the call's key. The value or
// updater works on InfiniteData[T].
func (r *Resource[T]) SetInfiniteData(args ...any) (InfiniteData[T], error) {
	c, err := r.resolve()
	if err != nil {
		return InfiniteData[T]{}, err
	}

	domain, trailing, err := r.split("SetInfiniteData", args)
	if err != nil {
		return InfiniteData[T]{}, err
	}
	update, opts, err := splitSetArgs[InfiniteData[T]]("SetInfiniteData", trailing)
	if err != nil {
		return InfiniteData[T]{}, err
	}

	v := c.SetQueryData(buildKey(r.baseKey, domain), r.untypedInfiniteUpdater(update), opts)
	return decodeInfinite[T](v)
}

// GetAllData lists the cached values under the resource base key. Trailing
// argument: cache.Filters; a Filters.Key must lie under the base key.
func (r *Resource[T]) GetAllData(trailing ...any) ([]Entry[T], error) {
	c, err := r.resolve()
	if err != nil {
		return nil, err
	}

	var filters cache.Filters
	if err := parseTrailing("GetAllData", trailing, into(&filters)); err != nil {
		return nil, err
	}
	filters, err = r.scope("GetAllData", filters)
	if err != nil {
		return nil, err
	}
	return decodeEntries(c.GetQueriesData(filters), cache.Decode[T])
}

// GetAllInfiniteData lists the cached pages under the resource base key.
func (r *Resource[T]) GetAllInfiniteData(trailing ...any) ([]Entry[InfiniteData[T]], error) {
	c, err := r.resolve()
	if err != nil {
		return nil, err
	}

	var filters cache.Filters
	if err := parseTrailing("GetAllInfiniteData", trailing, into(&filters)); err != nil {
		return nil, err
	}
	filters, err = r.scope("GetAllInfiniteData", filters)
	if err != nil {
		return nil, err
	}
	return decodeEntries(c.GetQueriesData(filters), decodeInfinite[T])
}

// SetAllData applies update (a value or updater, as in SetData) to every
// matching entry. Trailing arguments: cache.Filters, cache.SetDataOptions.
func (r *Resource[T]) SetAllData(update any, trailing ...any) ([]Entry[T], error) {
	c, err := r.resolve()
	if err != nil {
		return nil, err
	}

	fn, err := updaterOf[T]("SetAllData", update)
	if err != nil {
		return nil, err
	}
	var filters cache.Filters
	var opts cache.SetDataOptions
	if err := parseTrailing("SetAllData", trailing, into(&filters), into(&opts)); err != nil {
		return nil, err
	}

	filters, err = r.scope("SetAllData", filters)
	if err != nil {
		return nil, err
	}
	entries := c.SetQueriesData(filters, r.untypedUpdater(fn), opts)
	return decodeEntries(entries, cache.Decode[T])
}

// SetAllInfiniteData is SetAllData for paginated entries.
func (r *Resource[T]) SetAllInfiniteData(update any, trailing ...any) ([]Entry[InfiniteData[T]], error) {
	c, err := r.resolve()
	if err != nil {
		return nil, err
	}

	fn, err := updaterOf[InfiniteData[T]]("SetAllInfiniteData", update)
	if err != nil {
		return nil, err
	}
	var filters cache.Filters
	var opts cache.SetDataOptions
	if err := parseTrailing("SetAllInfiniteData", trailing, into(&filters), into(&opts)); err != nil {
		return nil, err
	}

	filters, err = r.scope("SetAllInfiniteData", filters)
	if err != nil {
		return nil, err
	}
	entries := c.SetQueriesData(filters, r.untypedInfiniteUpdater(fn), opts)
	return decodeEntries(entries, decodeInfinite[T])
}

// GetState returns the lifecycle state of the call's key.
func (r *Resource[T]) GetState(args ...any) (State[T], bool, error) {
	c, err := r.resolve()
	if err != nil {
		return State[T]{}, false, err
	}

	domain, trailing, err := r.split("GetState", args)
	if err != nil {
		return State[T]{}, false, err
	}
	var filters cache.Filters
	if err := parseTrailing("GetState", trailing, into(&filters)); err != nil {
		return State[T]{}, false, err
	}

	st, ok := c.GetQueryState(buildKey(r.baseKey, domain))
	if !ok {
		return State[T]{}, false, nil
	}
	typed, err := decodeState(st, cache.Decode[T])
	if err != nil {
		return typed, true, err
	}
	return typed, true, nil
}

// Invalidate marks matching entries stale and refetches them per
// InvalidateOptions.RefetchType. Trailing arguments: cache.Filters,
// cache.InvalidateOptions.
func (r *Resource[T]) Invalidate(ctx context.Context, trailing ...any) error {
	c, err := r.resolve()
	if err != nil {
		return err
	}

	var filters cache.Filters
	var opts cache.InvalidateOptions
	if err := parseTrailing("Invalidate", trailing, into(&filters), into(&opts)); err != nil {
		return err
	}
	filters, err = r.scope("Invalidate", filters)
	if err != nil {
		return err
	}
	return c.InvalidateQueries(ctx, filters, opts)
}

// Refetch refetches matching entries. Trailing arguments: cache.Filters,
// cache.RefetchOptions.
func (r *Resource[T]) Refetch(ctx context.Context, trailing ...any) error {
	c, err := r.resolve()
	if err != nil {
		return err
	}

	var filters cache.Filters
	var opts cache.RefetchOptions
	if err := parseTrailing("Refetch", trailing, into(&filters), into(&opts)); err != nil {
		return err
	}
	filters, err = r.scope("Refetch", filters)
	if err != nil {
		return err
	}
	return c.RefetchQueries(ctx, filters, opts)
}

// Cancel cancels in-flight fetches of matching entries. Trailing arguments:
// cache.Filters, cache.CancelOptions.
func (r *Resource[T]) Cancel(ctx context.Context, trailing ...any) error {
	c, err := r.resolve()
	if err != nil {
		return err
	}

	var filters cache.Filters
	var opts cache.CancelOptions
	if err := parseTrailing("Cancel", trailing, into(&filters), into(&opts)); err != nil {
		return err
	}
	filters, err = r.scope("Cancel", filters)
	if err != nil {
		return err
	}
	return c.CancelQueries(ctx, filters, opts)
}

// Remove drops matching entries. Trailing argument: cache.Filters.
func (r *Resource[T]) Remove(trailing ...any) error {
	c, err := r.resolve()
	if err != nil {
		return err
	}

	var filters cache.Filters
	if err := parseTrailing("Remove", trailing, into(&filters)); err != nil {
		return err
	}
	filters, err = r.scope("Remove", filters)
	if err != nil {
		return err
	}
	c.RemoveQueries(filters)
	return nil
}

// Reset restores matching entries to their initial state. Trailing
// arguments: cache.Filters, cache.ResetOptions.
func (r *Resource[T]) Reset(ctx context.Context, trailing ...any) error {
	c, err := r.resolve()
	if err != nil {
		return err
	}

	var filters cache.Filters
	var opts cache.ResetOptions
	if err := parseTrailing("Reset", trailing, into(&filters), into(&opts)); err != nil {
		return err
	}
	filters, err = r.scope("Reset", filters)
	if err != nil {
		return err
	}
	return c.ResetQueries(ctx, filters, opts)
}

// IsFetching counts matching entries with a fetch in flight. Trailing
// argument: cache.Filters.
func (r *Resource[T]) IsFetching(trailing ...any) (int, error) {
	c, err := r.resolve()
	if err != nil {
		return 0, err
	}

	var filters cache.Filters
	if err := parseTrailing("IsFetching", trailing, into(&filters)); err != nil {
		return 0, err
	}
	filters, err = r.scope("IsFetching", filters)
	if err != nil {
		return 0, err
	}
	return c.IsFetching(filters), nil
}

// splitSetArgs reads the required value-or-updater and the optional
// SetDataOptions of a set call.
func splitSetArgs[D any](op string, trailing []any) (Updater[D], cache.SetDataOptions, error) {
	var opts cache.SetDataOptions
	if len(trailing) == 0 || trailing[0] == nil {
		return nil, opts, fmt.Errorf("%w: %s requires a value or updater", cache.ErrInvalidArgument, op)
	}
	update, err := updaterOf[D](op, trailing[0])
	if err != nil {
		return nil, opts, err
	}
	if err := parseTrailing(op, trailing[1:], into(&opts)); err != nil {
		return nil, opts, err
	}
	return update, opts, nil
}

func (r *Resource[T]) untypedUpdater(update Updater[T]) cache.Updater {
	return func(old any, ok bool) any {
		var prev T
		if ok {
			decoded, err := cache.Decode[T](old)
			if err != nil {
				r.logger.Warn("discarding cached value of unexpected type", zap.Error(err))
				ok = false
			} else {
				prev = decoded
			}
		}
		return update(prev, ok)
	}
}

func (r *Resource[T]) untypedInfiniteUpdater(update Updater[InfiniteData[T]]) cache.Updater {
	return func(old any, ok bool) any {
		var prev InfiniteData[T]
		if ok {
			decoded, err := decodeInfinite[T](old)
			if err != nil {
				r.logger.Warn("discarding cached pages of unexpected type", zap.Error(err))
				ok = false
			} else {
				prev = decoded
			}
		}
		return update(prev, ok).untyped()
	}
}

func decodeEntries[D any](entries []cache.Entry, decode func(any) (D, error)) ([]Entry[D], error) {
	out := make([]Entry[D], 0, len(entries))
	for _, e := range entries {
		data, err := decode(e.Data)
		if err != nil {
			return nil, fmt.Errorf("entry %s: %w", e.Key, err)
		}
		out = append(out, Entry[D]{Key: e.Key, Data: data})
	}
	return out, nil
}
