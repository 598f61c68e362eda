package repositoryquery

import (
	"context"
	"fmt"

	"github.com/goliatone/go-query-cache/cache"
	"github.com/goliatone/go-query-cache/queryhelper"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"
	"go.uber.org/zap"
)

// Reader is the read side of a go-repository-bun repository.
type Reader[T any] interface {
	GetByID(ctx context.Context, id string, criteria ...repository.SelectCriteria) (T, error)
	GetByIdentifier(ctx context.Context, identifier string, criteria ...repository.SelectCriteria) (T, error)
	List(ctx context.Context, criteria ...repository.SelectCriteria) ([]T, int, error)
	Count(ctx context.Context, criteria ...repository.SelectCriteria) (int, error)
}

var _ Reader[any] = (repository.Repository[any])(nil)

// Page is one page of a list resource.
type Page[T any] struct {
	Records []T `msgpack:"records"`
	Total   int `msgpack:"total"`
	Offset  int `msgpack:"offset"`
}

// Option configures the resources built for a repository.
type Option func(*options)

type options struct {
	namespace string
	criteria  []repository.SelectCriteria
	client    cache.Client
	logger    *zap.Logger
}

// WithNamespace replaces the key namespace derived from the record type.
func WithNamespace(ns string) Option {
	return func(o *options) {
		o.namespace = ns
	}
}

// WithCriteria adds select criteria applied to every read.
func WithCriteria(criteria ...repository.SelectCriteria) Option {
	return func(o *options) {
		o.criteria = append(o.criteria, criteria...)
	}
}

// WithClient binds the resources to c instead of the process-wide client.
func WithClient(c cache.Client) Option {
	return func(o *options) {
		o.client = c
	}
}

// WithLogger sets the logger of the resources and mutations.
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

func buildOptions[T any](opts []Option) options {
	o := options{namespace: namespaceOf[T]()}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	if o.logger == nil {
		o.logger = zap.NewNop()
	}
	return o
}

func (o options) resourceOptions() []queryhelper.Option {
	out := []queryhelper.Option{queryhelper.WithLogger(o.logger)}
	if o.client != nil {
		out = append(out, queryhelper.UseClient(o.client))
	}
	return out
}

// idOptions renders the id argument as a string before the key is built, so
// reads and the entries Mutations writes share one key.
func (o options) idOptions(name string) []queryhelper.Option {
	return append(o.resourceOptions(), queryhelper.WithArgNormalizer(func(v any) (any, error) {
		return stringArg(name, v)
	}))
}

func (o options) with(extra ...repository.SelectCriteria) []repository.SelectCriteria {
	out := make([]repository.SelectCriteria, 0, len(o.criteria)+len(extra))
	out = append(out, o.criteria...)
	return append(out, extra...)
}

// ByID is a resource of arity 1 keyed [namespace, "by_id", id] that reads
// through repo.GetByID. The id is keyed in its string form: 7, "7" and a
// Stringer rendering "7" address the same entry.
func ByID[T any](repo Reader[T], opts ...Option) *queryhelper.Resource[T] {
	return byID(repo, buildOptions[T](opts))
}

func byID[T any](repo Reader[T], o options) *queryhelper.Resource[T] {
	return queryhelper.MustNew(cache.Key{o.namespace, "by_id"}, 1, func(ctx context.Context, args ...any) (T, error) {
		var zero T
		id, err := stringArg("id", args[0])
		if err != nil {
			return zero, err
		}
		return repo.GetByID(ctx, id, o.criteria...)
	}, o.idOptions("id")...)
}

// ByIdentifier is ByID over repo.GetByIdentifier.
func ByIdentifier[T any](repo Reader[T], opts ...Option) *queryhelper.Resource[T] {
	return byIdentifier(repo, buildOptions[T](opts))
}

func byIdentifier[T any](repo Reader[T], o options) *queryhelper.Resource[T] {
	return queryhelper.MustNew(cache.Key{o.namespace, "by_identifier"}, 1, func(ctx context.Context, args ...any) (T, error) {
		var zero T
		identifier, err := stringArg("identifier", args[0])
		if err != nil {
			return zero, err
		}
		return repo.GetByIdentifier(ctx, identifier, o.criteria...)
	}, o.idOptions("identifier")...)
}

// Count is a resource of arity 0 keyed [namespace, "count"].
func Count[T any](repo Reader[T], opts ...Option) *queryhelper.Resource[int] {
	return count(repo, buildOptions[T](opts))
}

func count[T any](repo Reader[T], o options) *queryhelper.Resource[int] {
	return queryhelper.MustNew(cache.Key{o.namespace, "count"}, 0, func(ctx context.Context, _ ...any) (int, error) {
		return repo.Count(ctx, o.criteria...)
	}, o.resourceOptions()...)
}

// List is a paginated resource keyed [namespace, "list"]. The page param is
// the row offset; use it with FetchInfinite and ListOptions.
func List[T any](repo Reader[T], pageSize int, opts ...Option) *queryhelper.Resource[Page[T]] {
	return list(repo, pageSize, buildOptions[T](opts))
}

func list[T any](repo Reader[T], pageSize int, o options) *queryhelper.Resource[Page[T]] {
	if pageSize < 1 {
		panic(fmt.Sprintf("repositoryquery: page size must be positive, got %d", pageSize))
	}
	return queryhelper.MustNewWithContext(cache.Key{o.namespace, "list"}, 0, func(fc cache.FetchContext) queryhelper.Fn[Page[T]] {
		return func(ctx context.Context, _ ...any) (Page[T], error) {
			offset, err := offsetOf(fc.PageParam)
			if err != nil {
				return Page[T]{}, err
			}
			records, total, err := repo.List(ctx, o.with(paginate(pageSize, offset))...)
			if err != nil {
				return Page[T]{}, err
			}
			return Page[T]{Records: records, Total: total, Offset: offset}, nil
		}
	}, o.resourceOptions()...)
}

func paginate(limit, offset int) repository.SelectCriteria {
	return func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.Limit(limit).Offset(offset)
	}
}

// NextOffset computes the offset of the page after last, stopping once the
// total is reached or a page comes back empty.
func NextOffset[T any](last Page[T], _ []Page[T]) (any, bool) {
	next := last.Offset + len(last.Records)
	if len(last.Records) == 0 || next >= last.Total {
		return nil, false
	}
	return next, true
}

// ListOptions returns the fetch options that page a List resource from the
// first row.
func ListOptions[T any]() cache.FetchOptions {
	return cache.FetchOptions{
		InitialPageParam: 0,
		GetNextPageParam: queryhelper.NextPageParam(NextOffset[T]),
	}
}

// offsetOf accepts the integer kinds a page param may come back as after a
// dehydrate round trip.
func offsetOf(v any) (int, error) {
	switch n := v.(type) {
	case nil:
		return 0, nil
	case int:
		return n, nil
	case int8:
		return int(n), nil
	case int16:
		return int(n), nil
	case int32:
		return int(n), nil
	case int64:
		return int(n), nil
	case uint8:
		return int(n), nil
	case uint16:
		return int(n), nil
	case uint32:
		return int(n), nil
	case uint64:
		return int(n), nil
	}
	return 0, fmt.Errorf("%w: page offset must be an integer, got %T", cache.ErrInvalidArgument, v)
}

func stringArg(name string, v any) (string, error) {
	switch s := v.(type) {
	case nil:
		return "", fmt.Errorf("%w: %s is required", cache.ErrInvalidArgument, name)
	case string:
		return s, nil
	case fmt.Stringer:
		return s.String(), nil
	}
	return fmt.Sprint(v), nil
}

// Queries groups the read resources of one repository under a shared
// namespace.
type Queries[T any] struct {
	ByID         *queryhelper.Resource[T]
	ByIdentifier *queryhelper.Resource[T]
	Count        *queryhelper.Resource[int]
	List         *queryhelper.Resource[Page[T]]

	namespace string
	opts      options
}

// NewQueries builds every read resource of repo.
func NewQueries[T any](repo Reader[T], pageSize int, opts ...Option) *Queries[T] {
	o := buildOptions[T](opts)
	return &Queries[T]{
		ByID:         byID(repo, o),
		ByIdentifier: byIdentifier(repo, o),
		Count:        count(repo, o),
		List:         list(repo, pageSize, o),
		namespace:    o.namespace,
		opts:         o,
	}
}

// Namespace is the key prefix shared by every resource of q.
func (q *Queries[T]) Namespace() cache.Key {
	return cache.Key{q.namespace}
}
