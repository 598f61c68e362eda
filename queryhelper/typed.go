package queryhelper

import (
	"fmt"
	"time"

	"github.com/goliatone/go-query-cache/cache"
)

// State is cache.State with the data decoded into T.
type State[T any] struct {
	Hash              string
	Data              T
	HasData           bool
	DataUpdatedAt     time.Time
	DataUpdateCount   int
	Error             error
	ErrorUpdatedAt    time.Time
	ErrorUpdateCount  int
	FetchFailureCount int
	IsFetching        bool
	IsInvalidated     bool
	Status            cache.Status
}

// InfiniteData is a paginated value with typed pages.
type InfiniteData[T any] struct {
	Pages      []T
	PageParams []any
}

// Entry pairs a key with its typed value.
type Entry[T any] struct {
	Key  cache.Key
	Data T
}

// Updater computes the next value from the cached one. ok is false when
// nothing is cached and old is the zero value.
type Updater[T any] func(old T, ok bool) T

// NextPage returns the param of the page after last, or false at the end.
type NextPage[T any] func(last T, all []T) (any, bool)

// NextPageParam adapts a typed NextPage to the engine's untyped callback.
func NextPageParam[T any](fn NextPage[T]) cache.NextPageParamFn {
	return func(last any, all []any) (any, bool) {
		typedLast, err := cache.Decode[T](last)
		if err != nil {
			return nil, false
		}
		typedAll, err := decodeSlice[T](all)
		if err != nil {
			return nil, false
		}
		return fn(typedLast, typedAll)
	}
}

func decodeSlice[T any](values []any) ([]T, error) {
	out := make([]T, 0, len(values))
	for _, v := range values {
		typed, err := cache.Decode[T](v)
		if err != nil {
			return nil, err
		}
		out = append(out, typed)
	}
	return out, nil
}

// decodeInfinite converts an engine value into typed pages.
func decodeInfinite[T any](v any) (InfiniteData[T], error) {
	if v == nil {
		return InfiniteData[T]{}, nil
	}
	raw, ok := cache.AsInfiniteData(v)
	if !ok {
		return InfiniteData[T]{}, fmt.Errorf("%w: %T is not infinite data", cache.ErrInvalidResultType, v)
	}
	return typedInfinite[T](raw)
}

func typedInfinite[T any](raw cache.InfiniteData) (InfiniteData[T], error) {
	pages, err := decodeSlice[T](raw.Pages)
	if err != nil {
		return InfiniteData[T]{}, err
	}
	return InfiniteData[T]{Pages: pages, PageParams: raw.PageParams}, nil
}

func (d InfiniteData[T]) untyped() cache.InfiniteData {
	pages := make([]any, len(d.Pages))
	for i, p := range d.Pages {
		pages[i] = p
	}
	params := make([]any, len(d.PageParams))
	copy(params, d.PageParams)
	return cache.InfiniteData{Pages: pages, PageParams: params}
}

// decodeState converts an engine state with decode. A value that does not
// decode is reported through the returned error; the lifecycle fields are
// still filled.
func decodeState[D any](st cache.State, decode func(any) (D, error)) (State[D], error) {
	out := State[D]{
		Hash:              st.Hash,
		HasData:           st.HasData,
		DataUpdatedAt:     st.DataUpdatedAt,
		DataUpdateCount:   st.DataUpdateCount,
		Error:             st.Error,
		ErrorUpdatedAt:    st.ErrorUpdatedAt,
		ErrorUpdateCount:  st.ErrorUpdateCount,
		FetchFailureCount: st.FetchFailureCount,
		IsFetching:        st.IsFetching,
		IsInvalidated:     st.IsInvalidated,
		Status:            st.Status,
	}
	if !st.HasData {
		return out, nil
	}
	data, err := decode(st.Data)
	if err != nil {
		return out, err
	}
	out.Data = data
	return out, nil
}

// updaterOf turns the value-or-updater argument of a set operation into an
// Updater. Updater functions are checked before the value so that T = any
// does not swallow them.
func updaterOf[T any](op string, v any) (Updater[T], error) {
	switch u := v.(type) {
	case Updater[T]:
		if u == nil {
			break
		}
		return u, nil
	case func(T, bool) T:
		if u == nil {
			break
		}
		return u, nil
	case func(T) T:
		if u == nil {
			break
		}
		return func(old T, _ bool) T { return u(old) }, nil
	}
	if value, ok := v.(T); ok {
		return func(T, bool) T { return value }, nil
	}
	return nil, fmt.Errorf("%w: %s expects a %s value or updater, got %T",
		cache.ErrInvalidArgument, op, typeName[T](), v)
}

func typeName[T any]() string {
	var zero T
	return fmt.Sprintf("%T", &zero)[1:]
}
