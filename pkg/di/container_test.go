package di

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/goliatone/go-query-cache/cache"
	"github.com/goliatone/go-query-cache/queryhelper"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/viper"
)

func TestNewContainer(t *testing.T) {
	config := cache.Config{
		Capacity:           1000,
		NumShards:          256,
		TTL:                5 * time.Minute,
		EvictionPercentage: 10,
		EvictionInterval:   0,
		CacheTime:          time.Minute,
		StaleTime:          10 * time.Second,
	}

	container, err := NewContainer(config)
	if err != nil {
		t.Fatalf("NewContainer() failed: %v", err)
	}
	defer container.Close()

	if container == nil {
		t.Fatal("NewContainer() returned nil container")
	}

	// Verify that dependencies are properly initialized
	if container.Client() == nil {
		t.Error("Container should have a non-nil client")
	}

	if container.KeySerializer() == nil {
		t.Error("Container should have a non-nil key serializer")
	}

	// Verify config is stored correctly
	storedConfig := container.Config()
	if storedConfig.Capacity != config.Capacity {
		t.Errorf("Expected capacity %d, got %d", config.Capacity, storedConfig.Capacity)
	}

	if storedConfig.StaleTime != config.StaleTime {
		t.Errorf("Expected stale time %v, got %v", config.StaleTime, storedConfig.StaleTime)
	}
}

func TestNewContainerWithDefaults(t *testing.T) {
	container, err := NewContainerWithDefaults()
	if err != nil {
		t.Fatalf("NewContainerWithDefaults() failed: %v", err)
	}
	defer container.Close()

	// Verify that default configuration is used
	config := container.Config()
	defaultConfig := cache.DefaultConfig()

	if config.Capacity != defaultConfig.Capacity {
		t.Errorf("Expected default capacity %d, got %d", defaultConfig.Capacity, config.Capacity)
	}

	if config.CacheTime != defaultConfig.CacheTime {
		t.Errorf("Expected default cache time %v, got %v", defaultConfig.CacheTime, config.CacheTime)
	}
}

func TestNewContainer_InvalidConfig(t *testing.T) {
	invalidConfig := cache.Config{
		Capacity:           0, // Invalid: must be > 0
		NumShards:          256,
		TTL:                5 * time.Minute,
		EvictionPercentage: 10,
	}

	_, err := NewContainer(invalidConfig)
	if err == nil {
		t.Fatal("NewContainer() should fail with invalid config")
	}
	if !errors.Is(err, cache.ErrInvalidConfig) {
		t.Errorf("Expected ErrInvalidConfig, got %v", err)
	}
}

func TestLoadContainer(t *testing.T) {
	v := viper.New()
	v.Set("capacity", 50)
	v.Set("stale_time", "1m")

	container, err := LoadContainer(v)
	if err != nil {
		t.Fatalf("LoadContainer() failed: %v", err)
	}
	defer container.Close()

	config := container.Config()
	if config.Capacity != 50 {
		t.Errorf("Expected capacity 50, got %d", config.Capacity)
	}
	if config.StaleTime != time.Minute {
		t.Errorf("Expected stale time 1m, got %v", config.StaleTime)
	}
	if config.NumShards != cache.DefaultConfig().NumShards {
		t.Errorf("Expected default shards, got %d", config.NumShards)
	}

	v.Set("eviction_percentage", 500)
	if _, err := LoadContainer(v); !errors.Is(err, cache.ErrInvalidConfig) {
		t.Errorf("Expected ErrInvalidConfig, got %v", err)
	}
}

func TestContainerSingletonBehavior(t *testing.T) {
	container, err := NewContainerWithDefaults()
	if err != nil {
		t.Fatalf("NewContainerWithDefaults() failed: %v", err)
	}
	defer container.Close()

	// Call getters multiple times to ensure they return the same instances
	if container.Client() != container.Client() {
		t.Error("Client() should return the same instance (singleton behavior)")
	}

	if container.KeySerializer() != container.KeySerializer() {
		t.Error("KeySerializer() should return the same instance (singleton behavior)")
	}
}

func TestKeySerializerIntegration(t *testing.T) {
	container, err := NewContainerWithDefaults()
	if err != nil {
		t.Fatalf("NewContainerWithDefaults() failed: %v", err)
	}
	defer container.Close()

	keySerializer := container.KeySerializer()

	testCases := []struct {
		name     string
		key      cache.Key
		expected string
	}{
		{
			name:     "single segment",
			key:      cache.Key{"user"},
			expected: `"user"`,
		},
		{
			name:     "string id",
			key:      cache.Key{"user", "by_id", "123"},
			expected: `"user"::"by_id"::"123"`,
		},
		{
			name:     "mixed tokens",
			key:      cache.Key{"list", "user", 10, true},
			expected: `"list"::"user"::10::true`,
		},
		{
			name:     "nil token",
			key:      cache.Key{"count", nil},
			expected: `"count"::nil`,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			result := keySerializer.SerializeKey(tc.key)
			if result != tc.expected {
				t.Errorf("Expected key %q, got %q", tc.expected, result)
			}
		})
	}
}

func TestClientIntegration(t *testing.T) {
	container, err := NewContainerWithDefaults()
	if err != nil {
		t.Fatalf("NewContainerWithDefaults() failed: %v", err)
	}
	defer container.Close()

	client := container.Client()
	ctx := context.Background()
	key := cache.Key{"test-key"}

	result, err := client.FetchQuery(ctx, cache.FetchConfig{
		Key: key,
		Fetcher: func(context.Context, cache.FetchContext) (any, error) {
			return "test-value", nil
		},
	})
	if err != nil {
		t.Fatalf("FetchQuery() failed: %v", err)
	}
	if result != "test-value" {
		t.Errorf("Expected value %q, got %v", "test-value", result)
	}

	client.RemoveQueries(cache.Filters{Key: key, Exact: true})
	if _, ok := client.GetQueryData(key); ok {
		t.Error("Expected query to be removed")
	}
}

func TestContainerMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	container, err := NewContainerWithDefaults(cache.WithRegisterer(reg))
	if err != nil {
		t.Fatalf("NewContainerWithDefaults() failed: %v", err)
	}
	defer container.Close()

	_, err = container.Client().FetchQuery(context.Background(), cache.FetchConfig{
		Key: cache.Key{"metrics"},
		Fetcher: func(context.Context, cache.FetchContext) (any, error) {
			return 1, nil
		},
	})
	if err != nil {
		t.Fatalf("FetchQuery() failed: %v", err)
	}

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather() failed: %v", err)
	}
	series := 0
	for _, mf := range families {
		if mf.GetName() == "querycache_fetches_total" {
			series = len(mf.GetMetric())
		}
	}
	if series != 1 {
		t.Errorf("Expected one fetch series, got %d", series)
	}
}

func TestBindAndClose(t *testing.T) {
	t.Cleanup(func() { queryhelper.SetClient(nil) })

	container, err := NewContainerWithDefaults()
	if err != nil {
		t.Fatalf("NewContainerWithDefaults() failed: %v", err)
	}

	container.Bind()
	bound, err := queryhelper.DefaultClient()
	if err != nil {
		t.Fatalf("DefaultClient() failed: %v", err)
	}
	if bound != container.Client() {
		t.Error("Bind() should make the container client the default")
	}

	greeting := queryhelper.MustNew(cache.Key{"greeting"}, 1, func(_ context.Context, args ...any) (string, error) {
		return "hello " + args[0].(string), nil
	})
	got, err := greeting.Fetch(context.Background(), "gopher")
	if err != nil {
		t.Fatalf("Fetch() through the default binding failed: %v", err)
	}
	if got != "hello gopher" {
		t.Errorf("Unexpected greeting %q", got)
	}

	container.Close()
	if _, err := queryhelper.DefaultClient(); !errors.Is(err, cache.ErrClientNotSet) {
		t.Errorf("Close() should release the default binding, got %v", err)
	}
}

func TestCloseKeepsForeignBinding(t *testing.T) {
	t.Cleanup(func() { queryhelper.SetClient(nil) })

	bound, err := NewContainerWithDefaults()
	if err != nil {
		t.Fatalf("NewContainerWithDefaults() failed: %v", err)
	}
	defer bound.Close()
	other, err := NewContainerWithDefaults()
	if err != nil {
		t.Fatalf("NewContainerWithDefaults() failed: %v", err)
	}

	bound.Bind()
	other.Close()

	if _, err := queryhelper.DefaultClient(); err != nil {
		t.Errorf("Closing another container should keep the binding, got %v", err)
	}
}

func TestNewResource(t *testing.T) {
	queryhelper.SetClient(nil)
	container, err := NewContainerWithDefaults()
	if err != nil {
		t.Fatalf("NewContainerWithDefaults() failed: %v", err)
	}
	defer container.Close()

	double, err := NewResource(container, cache.Key{"double"}, 1, func(_ context.Context, args ...any) (int, error) {
		return args[0].(int) * 2, nil
	})
	if err != nil {
		t.Fatalf("NewResource() failed: %v", err)
	}

	got, err := double.Fetch(context.Background(), 21)
	if err != nil {
		t.Fatalf("Fetch() failed: %v", err)
	}
	if got != 42 {
		t.Errorf("Expected 42, got %d", got)
	}
	if _, ok := container.Client().GetQueryData(cache.Key{"double", 21}); !ok {
		t.Error("Expected the value to be cached on the container engine")
	}

	if _, err := NewResource[int](container, nil, 0, nil); !errors.Is(err, cache.ErrInvalidResource) {
		t.Errorf("Expected ErrInvalidResource, got %v", err)
	}

	paged, err := NewResourceWithContext(container, cache.Key{"paged"}, 0, func(fc cache.FetchContext) queryhelper.Fn[int] {
		return func(context.Context, ...any) (int, error) {
			return fc.PageParam.(int), nil
		}
	})
	if err != nil {
		t.Fatalf("NewResourceWithContext() failed: %v", err)
	}
	pages, err := paged.FetchInfinite(context.Background(), cache.FetchOptions{InitialPageParam: 7})
	if err != nil {
		t.Fatalf("FetchInfinite() failed: %v", err)
	}
	if len(pages.Pages) != 1 || pages.Pages[0] != 7 {
		t.Errorf("Unexpected pages %+v", pages.Pages)
	}
}
