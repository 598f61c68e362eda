package cache

import (
	"math"
	"time"
)

// StaleForever marks data that never becomes stale on its own.
const StaleForever = time.Duration(math.MaxInt64)

// NextPageParamFn returns the parameter of the page following lastPage, or
// false when there is no further page.
type NextPageParamFn func(lastPage any, allPages []any) (any, bool)

// QueryOptions configure a watched query. Zero values mean "not set" so that
// two records can be merged key by key.
type QueryOptions struct {
	Enabled          *bool
	StaleTime        time.Duration
	CacheTime        time.Duration
	Retry            int
	RetryDelay       time.Duration
	InitialData      any
	Meta             map[string]any
	InitialPageParam any
	GetNextPageParam NextPageParamFn
}

// Merge returns o with every field set in over replacing the matching field.
// The merge is shallow: Meta is replaced, not combined. A zero duration,
// count or page param counts as unset, so over cannot lower a default back
// to zero; Enabled is the only field with an explicit unset state.
func (o QueryOptions) Merge(over QueryOptions) QueryOptions {
	if over.Enabled != nil {
		o.Enabled = over.Enabled
	}
	if over.StaleTime != 0 {
		o.StaleTime = over.StaleTime
	}
	if over.CacheTime != 0 {
		o.CacheTime = over.CacheTime
	}
	if over.Retry != 0 {
		o.Retry = over.Retry
	}
	if over.RetryDelay != 0 {
		o.RetryDelay = over.RetryDelay
	}
	if over.InitialData != nil {
		o.InitialData = over.InitialData
	}
	if over.Meta != nil {
		o.Meta = over.Meta
	}
	if over.InitialPageParam != nil {
		o.InitialPageParam = over.InitialPageParam
	}
	if over.GetNextPageParam != nil {
		o.GetNextPageParam = over.GetNextPageParam
	}
	return o
}

// IsEnabled reports whether the query may fetch on its own. Default true.
func (o QueryOptions) IsEnabled() bool {
	return o.Enabled == nil || *o.Enabled
}

// FetchOptions returns the subset of o that drives a fetch.
func (o QueryOptions) FetchOptions() FetchOptions {
	return FetchOptions{
		StaleTime:        o.StaleTime,
		CacheTime:        o.CacheTime,
		Retry:            o.Retry,
		RetryDelay:       o.RetryDelay,
		InitialData:      o.InitialData,
		Meta:             o.Meta,
		InitialPageParam: o.InitialPageParam,
		GetNextPageParam: o.GetNextPageParam,
	}
}

// FetchOptions configure an imperative fetch or prefetch.
type FetchOptions struct {
	StaleTime        time.Duration
	CacheTime        time.Duration
	Retry            int
	RetryDelay       time.Duration
	InitialData      any
	Meta             map[string]any
	InitialPageParam any
	GetNextPageParam NextPageParamFn
	// Pages is how many pages a first infinite load fetches. Zero means one.
	Pages int
}

// QueryType narrows filters by observation.
type QueryType int

const (
	QueryTypeAll QueryType = iota
	QueryTypeActive
	QueryTypeInactive
)

// Filters select queries for bulk operations. An empty Key matches every
// query.
type Filters struct {
	Key       Key
	Exact     bool
	Type      QueryType
	Stale     *bool
	Fetching  *bool
	Predicate func(QueryInfo) bool
}

// Merge returns f with every field set in over replacing the matching field.
func (f Filters) Merge(over Filters) Filters {
	if over.Key != nil {
		f.Key = over.Key
	}
	if over.Exact {
		f.Exact = true
	}
	if over.Type != QueryTypeAll {
		f.Type = over.Type
	}
	if over.Stale != nil {
		f.Stale = over.Stale
	}
	if over.Fetching != nil {
		f.Fetching = over.Fetching
	}
	if over.Predicate != nil {
		f.Predicate = over.Predicate
	}
	return f
}

// SetDataOptions configure a direct cache write.
type SetDataOptions struct {
	UpdatedAt time.Time
}

// RefetchType selects which invalidated queries are refetched.
type RefetchType int

const (
	RefetchActive RefetchType = iota
	RefetchAll
	RefetchInactive
	RefetchNone
)

// InvalidateOptions configure InvalidateQueries.
type InvalidateOptions struct {
	RefetchType  RefetchType
	ThrowOnError bool
}

// RefetchOptions configure RefetchQueries.
type RefetchOptions struct {
	ThrowOnError bool
}

// CancelOptions configure CancelQueries. Silent cancellation resolves waiters
// with the previous data instead of ErrFetchCancelled.
type CancelOptions struct {
	Silent bool
}

// ResetOptions configure ResetQueries.
type ResetOptions struct {
	ThrowOnError bool
}

// Bool returns a pointer to v, for the tri-state option fields.
func Bool(v bool) *bool {
	return &v
}
