package cacheinfra

import (
	"github.com/goliatone/go-query-cache/cache"
	"github.com/viccon/sturdyc"
)

// sturdycStore keeps query values in a sturdyc client. Lifecycle state lives
// on the query itself; the store only holds data, keyed by query hash.
type sturdycStore struct {
	client *sturdyc.Client[any]
}

// ToSturdycOptions converts the Config to sturdyc.Option slice.
// Capacity, NumShards, TTL, and EvictionPercentage are passed directly
// to sturdyc.New() and are not included in the options.
func ToSturdycOptions(cfg cache.Config) []sturdyc.Option {
	var options []sturdyc.Option
	if cfg.EvictionInterval > 0 {
		options = append(options, sturdyc.WithEvictionInterval(cfg.EvictionInterval))
	}
	return options
}

// newSturdycStore validates the configuration and initializes a sturdyc
// client with the provided settings.
//
// Version compatibility note: This implementation assumes sturdyc v1.x API.
func newSturdycStore(cfg cache.Config) (*sturdycStore, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	client := sturdyc.New[any](
		cfg.Capacity,
		cfg.NumShards,
		cfg.TTL,
		cfg.EvictionPercentage,
		ToSturdycOptions(cfg)...,
	)

	return &sturdycStore{client: client}, nil
}

func (s *sturdycStore) get(hash string) (any, bool) {
	return s.client.Get(hash)
}

func (s *sturdycStore) set(hash string, value any) {
	s.client.Set(hash, value)
}

func (s *sturdycStore) delete(hash string) {
	s.client.Delete(hash)
}

func (s *sturdycStore) size() int {
	return s.client.Size()
}

// purge drops every stored value.
func (s *sturdycStore) purge() {
	for _, key := range s.client.ScanKeys() {
		s.client.Delete(key)
	}
}
