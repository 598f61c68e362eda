package cacheinfra

import (
	"context"
	"sync"
	"time"

	"github.com/goliatone/go-query-cache/cache"
)

// fetchParams is what a query remembers of its last fetch so that refetch,
// invalidate and reset can run it again.
type fetchParams struct {
	fetcher    cache.FetchFn
	behavior   *cache.InfiniteBehavior
	retry      int
	retryDelay time.Duration
	meta       map[string]any
}

// fetchCall is one in-flight fetch. Every caller of the same key waits on the
// same call until it finishes or is cancelled.
type fetchCall struct {
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
	prev   cache.State
	val    any
	err    error
}

type initialState struct {
	data      any
	hasData   bool
	updatedAt time.Time
}

type query struct {
	key      cache.Key
	segments []string
	keyStr   string
	hash     string

	mu        sync.Mutex
	state     cache.State
	initial   initialState
	params    *fetchParams
	inflight  *fetchCall
	cacheTime time.Duration
	gcTimer   *time.Timer
	removed   bool
}

func initialQueryState(init initialState) cache.State {
	if !init.hasData {
		return cache.State{Status: cache.StatusIdle}
	}
	return cache.State{
		HasData:       true,
		DataUpdatedAt: init.updatedAt,
		Status:        cache.StatusSuccess,
	}
}

// snapshotLocked returns the state with data read from the store. A value the
// store evicted turns the query back into an empty one.
func (c *QueryClient) snapshotLocked(q *query) cache.State {
	if q.state.HasData {
		if v, ok := c.store.get(q.hash); ok {
			st := q.state
			st.Hash = q.hash
			st.Data = v
			return st
		}
		q.state.HasData = false
		q.state.DataUpdatedAt = time.Time{}
		if q.state.Status == cache.StatusSuccess {
			q.state.Status = cache.StatusIdle
			if q.inflight != nil {
				q.state.Status = cache.StatusLoading
			}
		}
	}
	st := q.state
	st.Hash = q.hash
	return st
}

func (c *QueryClient) snapshot(q *query) cache.State {
	q.mu.Lock()
	defer q.mu.Unlock()
	return c.snapshotLocked(q)
}

func (c *QueryClient) setDataLocked(q *query, value any, updatedAt time.Time) {
	if updatedAt.IsZero() {
		updatedAt = c.now()
	}
	c.store.set(q.hash, value)
	q.state.HasData = true
	q.state.DataUpdatedAt = updatedAt
	q.state.DataUpdateCount++
	q.state.Error = nil
	q.state.Status = cache.StatusSuccess
	q.state.IsInvalidated = false
	q.state.IsFetching = q.inflight != nil
	q.state.FetchFailureCount = 0
}

func (c *QueryClient) setErrorLocked(q *query, err error) {
	q.state.Error = err
	q.state.ErrorUpdatedAt = c.now()
	q.state.ErrorUpdateCount++
	q.state.Status = cache.StatusError
	q.state.IsFetching = false
}

// revertLocked undoes the lifecycle part of a fetch that was cancelled. Data
// written while the fetch ran is kept.
func (c *QueryClient) revertLocked(q *query, prev cache.State) {
	q.state.IsFetching = false
	q.state.FetchFailureCount = prev.FetchFailureCount
	if q.state.Status == cache.StatusLoading {
		q.state.Status = prev.Status
		if q.state.HasData {
			q.state.Status = cache.StatusSuccess
		}
	}
}

// resetLocked puts the query back into the state it was created with.
func (c *QueryClient) resetLocked(q *query) {
	q.state = initialQueryState(q.initial)
	if q.initial.hasData {
		c.store.set(q.hash, q.initial.data)
		return
	}
	c.store.delete(q.hash)
}

func (c *QueryClient) finishCall(call *fetchCall, val any, err error, result string) {
	call.once.Do(func() {
		call.val, call.err = val, err
		close(call.done)
		c.metrics.inFlight.Dec()
		c.metrics.fetches.WithLabelValues(result).Inc()
	})
}

// detachLocked releases the in-flight call of q, if any, and returns it so
// the caller can finish it outside the lock.
func (c *QueryClient) detachLocked(q *query) *fetchCall {
	call := q.inflight
	if call == nil {
		return nil
	}
	q.inflight = nil
	c.revertLocked(q, call.prev)
	return call
}
