package cacheinfra

import (
	"fmt"
	"time"

	"github.com/goliatone/go-query-cache/cache"
	"github.com/vmihailenco/msgpack/v5"
	"go.uber.org/zap"
)

const dehydrateVersion = 1

type dehydratedQuery struct {
	Key           []any              `msgpack:"key"`
	Hash          string             `msgpack:"hash"`
	Data          msgpack.RawMessage `msgpack:"data"`
	DataUpdatedAt time.Time          `msgpack:"data_updated_at"`
}

type dehydratedState struct {
	Version int               `msgpack:"version"`
	Queries []dehydratedQuery `msgpack:"queries"`
}

// Dehydrate serializes the successful queries matching filters with msgpack.
func (c *QueryClient) Dehydrate(filters cache.Filters) ([]byte, error) {
	state := dehydratedState{Version: dehydrateVersion}
	for _, m := range c.findAll(filters) {
		if m.state.Status != cache.StatusSuccess || !m.state.HasData {
			continue
		}
		data, err := msgpack.Marshal(m.state.Data)
		if err != nil {
			return nil, fmt.Errorf("failed to encode query %s: %w", m.q.keyStr, err)
		}
		state.Queries = append(state.Queries, dehydratedQuery{
			Key:           m.q.key.Clone(),
			Hash:          m.q.hash,
			Data:          data,
			DataUpdatedAt: m.state.DataUpdatedAt,
		})
	}
	return msgpack.Marshal(state)
}

// Hydrate restores queries produced by Dehydrate and returns how many were
// written. Data older than what the client already holds is skipped, as are
// keys whose tokens do not survive the round trip (structs become maps).
// Restored values stay encoded until read through cache.Decode.
func (c *QueryClient) Hydrate(data []byte) (int, error) {
	var state dehydratedState
	if err := msgpack.Unmarshal(data, &state); err != nil {
		return 0, fmt.Errorf("failed to decode dehydrated state: %w", err)
	}
	if state.Version != dehydrateVersion {
		return 0, fmt.Errorf("unsupported dehydrated state version %d", state.Version)
	}

	restored := 0
	for _, dq := range state.Queries {
		key := cache.Key(dq.Key)
		_, keyStr := c.serialize(key)
		if cache.HashKey(keyStr) != dq.Hash {
			c.logger.Warn("skipping hydrated query with unstable key", zap.String("key", keyStr))
			continue
		}

		q := c.build(key, nil, 0)
		q.mu.Lock()
		if q.state.HasData && !q.state.DataUpdatedAt.Before(dq.DataUpdatedAt) {
			q.mu.Unlock()
			continue
		}
		c.setDataLocked(q, dq.Data, dq.DataUpdatedAt)
		q.mu.Unlock()

		c.notify(q)
		c.scheduleGC(q)
		restored++
	}
	return restored, nil
}
