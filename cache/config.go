package cache

import (
	"fmt"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/spf13/viper"
)

// Config exposes the engine configuration.
type Config struct {
	// Capacity is the maximum number of values the store keeps.
	Capacity int `mapstructure:"capacity"`

	// NumShards determines the number of store shards for concurrent access.
	NumShards int `mapstructure:"num_shards"`

	// TTL is the hard upper bound a value is retained, observed or not.
	TTL time.Duration `mapstructure:"ttl"`

	// EvictionPercentage specifies what percentage of entries to evict
	// when the store reaches its capacity. Must be between 1-100.
	EvictionPercentage int `mapstructure:"eviction_percentage"`

	// EvictionInterval sets how often the store checks for expired entries.
	// Zero value uses the default interval.
	EvictionInterval time.Duration `mapstructure:"eviction_interval"`

	// CacheTime is how long an unobserved query is kept before it is
	// garbage collected, unless a call sets its own.
	CacheTime time.Duration `mapstructure:"cache_time"`

	// StaleTime is the default freshness window of fetched data.
	StaleTime time.Duration `mapstructure:"stale_time"`
}

// DefaultConfig returns a Config populated with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Capacity:           10000,
		NumShards:          256,
		TTL:                24 * time.Hour,
		EvictionPercentage: 10,
		CacheTime:          5 * time.Minute,
	}
}

// Validate checks whether the configuration values are valid.
func (c Config) Validate() error {
	err := validation.ValidateStruct(&c,
		validation.Field(&c.Capacity, validation.Required, validation.Min(1)),
		validation.Field(&c.NumShards, validation.Required, validation.Min(1)),
		validation.Field(&c.TTL, validation.Required, validation.Min(time.Duration(1))),
		validation.Field(&c.EvictionPercentage, validation.Required, validation.Min(1), validation.Max(100)),
		validation.Field(&c.EvictionInterval, validation.Min(time.Duration(0))),
		validation.Field(&c.CacheTime, validation.Min(time.Duration(0))),
		validation.Field(&c.StaleTime, validation.Min(time.Duration(0))),
	)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}

// LoadConfig reads the engine configuration from v. Keys missing from v fall
// back to DefaultConfig.
func LoadConfig(v *viper.Viper) (Config, error) {
	def := DefaultConfig()
	v.SetDefault("capacity", def.Capacity)
	v.SetDefault("num_shards", def.NumShards)
	v.SetDefault("ttl", def.TTL)
	v.SetDefault("eviction_percentage", def.EvictionPercentage)
	v.SetDefault("eviction_interval", def.EvictionInterval)
	v.SetDefault("cache_time", def.CacheTime)
	v.SetDefault("stale_time", def.StaleTime)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to unmarshal cache config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
