// Package queryhelper derives a family of typed cache operations from one
// resource definition.
//
// A Resource couples a base key, a declared domain arity and the function
// that produces the value. Every operation takes the domain arguments first,
// followed by per-call options; the arity decides where the split happens:
//
//	posts := queryhelper.MustNew(cache.Key{"post"}, 1,
//		func(ctx context.Context, args ...any) (Post, error) {
//			return repo.Get(ctx, args[0].(int))
//		})
//
//	queryhelper.SetClient(client)
//
//	p, err := posts.Fetch(ctx, 1, cache.FetchOptions{StaleTime: time.Minute})
//	_, err = posts.SetData(1, func(old Post, ok bool) Post { old.Title = "edited"; return old })
//	err = posts.Invalidate(ctx, cache.Filters{Predicate: skipFirst})
//
// The key of a call is the base key followed by its domain arguments, with
// trailing nil arguments dropped. Bulk operations (GetAllData, Invalidate,
// Refetch, Cancel, Remove, Reset, IsFetching) are scoped to the base key. A
// filter key may narrow the scope to keys under the base key; any other key
// is rejected with cache.ErrInvalidArgument.
//
// Operations dispatch into the client bound with WithClient, or else the
// process-wide client set with SetClient. With neither, every operation
// returns cache.ErrClientNotSet before touching any engine.
package queryhelper
