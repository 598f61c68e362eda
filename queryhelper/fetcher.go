package queryhelper

import (
	"context"

	"github.com/goliatone/go-query-cache/cache"
)

// fetcher binds the domain arguments of one call to the resource function.
// Missing arguments are passed as nil so fn always sees arity values.
func (r *Resource[T]) fetcher(domain []any) cache.FetchFn {
	args := make([]any, r.arity)
	copy(args, domain)
	fn := r.fn

	return func(ctx context.Context, fc cache.FetchContext) (any, error) {
		v, err := fn(fc)(ctx, args...)
		if err != nil {
			return nil, err
		}
		return v, nil
	}
}
