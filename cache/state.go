package cache

import (
	"time"

	"github.com/vmihailenco/msgpack/v5"
)

// Status is the lifecycle status of a query.
type Status string

const (
	StatusIdle    Status = "idle"
	StatusLoading Status = "loading"
	StatusSuccess Status = "success"
	StatusError   Status = "error"
)

// State is a snapshot of a query's lifecycle.
type State struct {
	Hash              string
	Data              any
	HasData           bool
	DataUpdatedAt     time.Time
	DataUpdateCount   int
	Error             error
	ErrorUpdatedAt    time.Time
	ErrorUpdateCount  int
	FetchFailureCount int
	IsFetching        bool
	IsInvalidated     bool
	Status            Status
}

// IsStale reports whether the data is older than staleTime, missing or
// invalidated, measured at now.
func (s State) IsStale(staleTime time.Duration, now time.Time) bool {
	if !s.HasData || s.IsInvalidated {
		return true
	}
	if staleTime == StaleForever {
		return false
	}
	return now.Sub(s.DataUpdatedAt) >= staleTime
}

// Entry pairs a key with the data cached under it.
type Entry struct {
	Key  Key
	Data any
}

// QueryInfo is what a filter predicate sees of a query.
type QueryInfo struct {
	Key       Key
	Hash      string
	State     State
	Observers int
}

// InfiniteData is the value of a paginated entry.
type InfiniteData struct {
	Pages      []any `msgpack:"pages"`
	PageParams []any `msgpack:"page_params"`
}

// AsInfiniteData converts a cached value into InfiniteData. Values restored by
// hydration arrive as msgpack.RawMessage and are decoded here.
func AsInfiniteData(v any) (InfiniteData, bool) {
	switch data := v.(type) {
	case InfiniteData:
		return data, true
	case *InfiniteData:
		if data == nil {
			return InfiniteData{}, false
		}
		return *data, true
	case msgpack.RawMessage:
		var out InfiniteData
		if err := msgpack.Unmarshal(data, &out); err != nil {
			return InfiniteData{}, false
		}
		return out, true
	}
	return InfiniteData{}, false
}
