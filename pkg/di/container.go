package di

import (
	"github.com/goliatone/go-query-cache/cache"
	"github.com/goliatone/go-query-cache/internal/cacheinfra"
	"github.com/goliatone/go-query-cache/queryhelper"
	"github.com/goliatone/go-query-cache/repositoryquery"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// Container provides dependency injection for query cache components.
// It owns one engine and the key serializer it uses, and builds resources
// bound to that engine.
type Container struct {
	client        *cacheinfra.QueryClient
	keySerializer cache.KeySerializer
	config        cache.Config
	logger        *zap.Logger
}

// NewContainer creates a new DI container with the provided cache configuration.
// Options supply the logger, metrics registerer, key serializer and clock of
// the engine.
func NewContainer(config cache.Config, opts ...cache.ClientOption) (*Container, error) {
	resolved := cache.ApplyClientOptions(opts...)

	client, err := cacheinfra.New(config,
		cache.WithLogger(resolved.Logger),
		cache.WithRegisterer(resolved.Registerer),
		cache.WithKeySerializer(resolved.Serializer),
		cache.WithClock(resolved.Now),
	)
	if err != nil {
		return nil, err
	}

	return &Container{
		client:        client,
		keySerializer: resolved.Serializer,
		config:        config,
		logger:        resolved.Logger,
	}, nil
}

// NewContainerWithDefaults creates a new DI container using default configuration.
func NewContainerWithDefaults(opts ...cache.ClientOption) (*Container, error) {
	return NewContainer(cache.DefaultConfig(), opts...)
}

// LoadContainer reads the configuration from v and creates a container.
func LoadContainer(v *viper.Viper, opts ...cache.ClientOption) (*Container, error) {
	config, err := cache.LoadConfig(v)
	if err != nil {
		return nil, err
	}
	return NewContainer(config, opts...)
}

// Client returns the engine. It is the same instance on every call.
func (c *Container) Client() cache.Client {
	return c.client
}

// KeySerializer returns the serializer the engine keys entries with.
func (c *Container) KeySerializer() cache.KeySerializer {
	return c.keySerializer
}

// Config returns a copy of the cache configuration used by this container.
func (c *Container) Config() cache.Config {
	return c.config
}

// Bind makes the engine the process-wide client of the query helpers.
func (c *Container) Bind() {
	queryhelper.SetClient(c.client)
}

// Dehydrate serializes the successful queries matching filters.
func (c *Container) Dehydrate(filters cache.Filters) ([]byte, error) {
	return c.client.Dehydrate(filters)
}

// Hydrate restores queries written by Dehydrate and reports how many were
// applied.
func (c *Container) Hydrate(data []byte) (int, error) {
	return c.client.Hydrate(data)
}

// Close stops the engine. A process-wide binding to it is released.
func (c *Container) Close() {
	if bound, err := queryhelper.DefaultClient(); err == nil && bound == cache.Client(c.client) {
		queryhelper.SetClient(nil)
	}
	c.client.Close()
}

// NewResource creates a resource bound to the container's engine.
//
// Since Go methods cannot have type parameters, this is provided as a package-level function.
// Example: NewResource[Post](container, cache.Key{"post"}, 1, fetchPost)
func NewResource[T any](container *Container, baseKey cache.Key, arity int, fn queryhelper.Fn[T], opts ...queryhelper.Option) (*queryhelper.Resource[T], error) {
	return queryhelper.New(baseKey, arity, fn, container.resourceOptions(opts)...)
}

// NewResourceWithContext is NewResource for context-aware resource functions.
func NewResourceWithContext[T any](container *Container, baseKey cache.Key, arity int, fn queryhelper.ContextFn[T], opts ...queryhelper.Option) (*queryhelper.Resource[T], error) {
	return queryhelper.NewWithContext(baseKey, arity, fn, container.resourceOptions(opts)...)
}

func (c *Container) resourceOptions(opts []queryhelper.Option) []queryhelper.Option {
	out := []queryhelper.Option{
		queryhelper.UseClient(c.client),
		queryhelper.WithLogger(c.logger),
	}
	return append(out, opts...)
}

// NewRepositoryQueries builds the read resources of a go-repository-bun
// repository on the container's engine.
// Example: NewRepositoryQueries[User](container, userRepo, 20)
func NewRepositoryQueries[T any](container *Container, repo repositoryquery.Reader[T], pageSize int, opts ...repositoryquery.Option) *repositoryquery.Queries[T] {
	all := []repositoryquery.Option{
		repositoryquery.WithClient(container.client),
		repositoryquery.WithLogger(container.logger),
	}
	return repositoryquery.NewQueries(repo, pageSize, append(all, opts...)...)
}
