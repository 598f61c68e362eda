// Package cache defines the query cache contract shared by the engine and the
// query helpers.
//
// # Overview
//
// This package exports the pieces every other package agrees on:
//
//   - Client: the cache engine contract (fetch, read/write, bulk lifecycle, watch)
//   - Key and KeySerializer: structural cache keys and their stable rendering
//   - State, Entry, QueryInfo, InfiniteData: what the engine reports back
//   - QueryOptions, FetchOptions, Filters and the per-operation option records
//   - Config: engine configuration, validated with ozzo-validation and loadable from viper
//
// The engine implementation lives in internal/cacheinfra and is constructed
// through pkg/di. The queryhelper package derives typed operations from a
// single resource definition and dispatches them into any Client.
//
// # Keys
//
// A Key is an ordered list of tokens. Identity is structural and decided by
// the KeySerializer, not by Go equality:
//
//	cache.Key{"post", 1}.Equal(cache.Key{"post", int64(1)}) // true
//	cache.Key{"post", 1}.Equal(cache.Key{"post", "1"})      // false, strings are quoted
//	cache.Key{"post", 1}.HasPrefix(cache.Key{"post"})       // true, segment-wise
//
// The default serializer handles:
//
//   - Function pointers and channels: %p formatting, stable within a process only
//   - Strings: quoted
//   - Other basic types: direct string representation
//   - Slices/arrays: recursive serialization of elements
//   - Maps: sorted key-value pairs for deterministic output
//   - Structs: type name followed by exported fields as name:value pairs
//   - Anything else: JSON fallback
//
// # Options
//
// Option records use zero values for "not set", so a per-resource default and
// a per-call record merge key by key:
//
//	defaults := cache.QueryOptions{CacheTime: time.Second}
//	merged := defaults.Merge(cache.QueryOptions{Meta: map[string]any{"type": "test"}})
//	// merged.CacheTime == time.Second, merged.Meta["type"] == "test"
//
// # Errors
//
// Sentinel errors are go-errors values; match them with errors.Is. Errors
// returned by fetch functions travel through the engine unchanged.
package cache
