package cacheinfra

import (
	"context"

	"github.com/goliatone/go-query-cache/cache"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// InvalidateQueries marks matching queries stale and refetches the ones
// selected by opts.RefetchType (observed queries by default).
func (c *QueryClient) InvalidateQueries(ctx context.Context, filters cache.Filters, opts cache.InvalidateOptions) error {
	matches := c.findAll(filters)
	for _, m := range matches {
		m.q.mu.Lock()
		m.q.state.IsInvalidated = true
		m.q.mu.Unlock()
		c.notify(m.q)
	}

	var targets []*query
	for _, m := range matches {
		observed := c.observerCount(m.q.keyStr) > 0
		switch opts.RefetchType {
		case cache.RefetchNone:
			continue
		case cache.RefetchActive:
			if !observed {
				continue
			}
		case cache.RefetchInactive:
			if observed {
				continue
			}
		}
		targets = append(targets, m.q)
	}
	c.logger.Debug("queries invalidated", zap.Int("matched", len(matches)), zap.Int("refetching", len(targets)))
	return c.refetchAll(ctx, targets, opts.ThrowOnError)
}

// RefetchQueries refetches every matching query that was fetched before.
func (c *QueryClient) RefetchQueries(ctx context.Context, filters cache.Filters, opts cache.RefetchOptions) error {
	matches := c.findAll(filters)
	targets := make([]*query, 0, len(matches))
	for _, m := range matches {
		targets = append(targets, m.q)
	}
	return c.refetchAll(ctx, targets, opts.ThrowOnError)
}

func (c *QueryClient) refetchAll(ctx context.Context, targets []*query, throwOnError bool) error {
	var g errgroup.Group
	for _, q := range targets {
		g.Go(func() error {
			err := c.refetch(ctx, q)
			if err != nil && throwOnError {
				return err
			}
			return nil
		})
	}
	return g.Wait()
}

// CancelQueries cancels the in-flight fetches of matching queries.
func (c *QueryClient) CancelQueries(_ context.Context, filters cache.Filters, opts cache.CancelOptions) error {
	for _, m := range c.findAll(filters) {
		c.cancelQuery(m.q, opts.Silent)
	}
	return nil
}

// RemoveQueries drops matching queries and their data.
func (c *QueryClient) RemoveQueries(filters cache.Filters) {
	for _, m := range c.findAll(filters) {
		c.removeQuery(m.q, true)
	}
}

// ResetQueries restores matching queries to their initial state and
// refetches the observed ones.
func (c *QueryClient) ResetQueries(ctx context.Context, filters cache.Filters, opts cache.ResetOptions) error {
	var targets []*query
	for _, m := range c.findAll(filters) {
		q := m.q
		q.mu.Lock()
		call := q.inflight
		q.inflight = nil
		c.resetLocked(q)
		q.mu.Unlock()

		if call != nil {
			call.cancel()
			c.finishCall(call, nil, cache.ErrFetchCancelled, "cancelled")
		}
		c.notify(q)

		if c.observerCount(q.keyStr) > 0 {
			targets = append(targets, q)
		}
	}
	return c.refetchAll(ctx, targets, opts.ThrowOnError)
}

// IsFetching counts matching queries with a fetch in flight.
func (c *QueryClient) IsFetching(filters cache.Filters) int {
	filters.Fetching = cache.Bool(true)
	return len(c.findAll(filters))
}
