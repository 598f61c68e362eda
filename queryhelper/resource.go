package queryhelper

import (
	"context"
	"errors"
	"fmt"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/goliatone/go-query-cache/cache"
	"go.uber.org/zap"
)

// Fn produces the value of a resource from its domain arguments. args always
// holds exactly arity values; arguments the caller omitted are nil.
type Fn[T any] func(ctx context.Context, args ...any) (T, error)

// ContextFn is the context-aware variant: the engine's FetchContext (key,
// page param, meta) is threaded in before the domain arguments are applied.
type ContextFn[T any] func(fc cache.FetchContext) Fn[T]

// Resource is a typed resource definition: a base key, a declared domain
// arity and the function that produces the value. It is immutable and safe
// for concurrent use; every operation derives its key from the same
// definition.
type Resource[T any] struct {
	baseKey cache.Key
	arity   int
	fn      ContextFn[T]
	client  cache.Client
	logger  *zap.Logger
	norm    ArgNormalizer
}

type resourceOptions struct {
	client cache.Client
	logger *zap.Logger
	norm   ArgNormalizer
}

// ArgNormalizer maps a present domain argument to the value used in the key
// and passed to the resource function.
type ArgNormalizer func(v any) (any, error)

// Option configures a Resource.
type Option func(*resourceOptions)

// UseClient binds the resource to c instead of the process-wide client.
func UseClient(c cache.Client) Option {
	return func(o *resourceOptions) {
		o.client = c
	}
}

// WithArgNormalizer rewrites every present domain argument before the key is
// built, so equivalent arguments such as 7 and "7" address one entry. Absent
// arguments are left nil.
func WithArgNormalizer(fn ArgNormalizer) Option {
	return func(o *resourceOptions) {
		o.norm = fn
	}
}

// WithLogger sets the logger used for dispatch and decode diagnostics.
func WithLogger(logger *zap.Logger) Option {
	return func(o *resourceOptions) {
		o.logger = logger
	}
}

type definition struct {
	BaseKey cache.Key
	Arity   int
	HasFn   bool
}

func (d *definition) validate() error {
	return validation.ValidateStruct(d,
		validation.Field(&d.BaseKey, validation.Required),
		validation.Field(&d.Arity, validation.Min(0)),
		validation.Field(&d.HasFn, validation.Required.Error("resource function is required")),
	)
}

// New defines a resource whose function only needs its domain arguments.
func New[T any](baseKey cache.Key, arity int, fn Fn[T], opts ...Option) (*Resource[T], error) {
	var ctxFn ContextFn[T]
	if fn != nil {
		ctxFn = func(cache.FetchContext) Fn[T] { return fn }
	}
	return NewWithContext(baseKey, arity, ctxFn, opts...)
}

// NewWithContext defines a resource whose function receives the engine's
// FetchContext, for example to read the page param of an infinite query.
func NewWithContext[T any](baseKey cache.Key, arity int, fn ContextFn[T], opts ...Option) (*Resource[T], error) {
	d := definition{BaseKey: baseKey, Arity: arity, HasFn: fn != nil}
	if err := d.validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", cache.ErrInvalidResource, err)
	}

	o := resourceOptions{}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	if o.logger == nil {
		o.logger = zap.NewNop()
	}

	return &Resource[T]{
		baseKey: baseKey.Clone(),
		arity:   arity,
		fn:      fn,
		client:  o.client,
		logger:  o.logger,
		norm:    o.norm,
	}, nil
}

// MustNew is New that panics on an invalid definition, for package-level
// resource variables.
func MustNew[T any](baseKey cache.Key, arity int, fn Fn[T], opts ...Option) *Resource[T] {
	r, err := New(baseKey, arity, fn, opts...)
	if err != nil {
		panic(err)
	}
	return r
}

// MustNewWithContext is NewWithContext that panics on an invalid definition.
func MustNewWithContext[T any](baseKey cache.Key, arity int, fn ContextFn[T], opts ...Option) *Resource[T] {
	r, err := NewWithContext(baseKey, arity, fn, opts...)
	if err != nil {
		panic(err)
	}
	return r
}

// BaseKey returns a copy of the resource base key.
func (r *Resource[T]) BaseKey() cache.Key {
	return r.baseKey.Clone()
}

// Arity is the declared number of domain arguments.
func (r *Resource[T]) Arity() int {
	return r.arity
}

// Key builds the cache key of a call with the given domain arguments. An
// argument the normalizer rejects is kept as given.
func (r *Resource[T]) Key(args ...any) cache.Key {
	domain, _, err := r.split("Key", args)
	if err != nil {
		domain, _ = splitArgs(args, r.arity)
	}
	return buildKey(r.baseKey, domain)
}

// split is splitArgs followed by argument normalization.
func (r *Resource[T]) split(op string, args []any) (domain, trailing []any, err error) {
	domain, trailing = splitArgs(args, r.arity)
	if r.norm == nil {
		return domain, trailing, nil
	}

	out := make([]any, len(domain))
	for i, v := range domain {
		if isAbsent(v) {
			out[i] = v
			continue
		}
		if out[i], err = r.norm(v); err != nil {
			if errors.Is(err, cache.ErrInvalidArgument) {
				return nil, nil, fmt.Errorf("%s argument %d: %w", op, i, err)
			}
			return nil, nil, fmt.Errorf("%w: %s argument %d: %v", cache.ErrInvalidArgument, op, i, err)
		}
	}
	return out, trailing, nil
}

// WithClient returns a copy of the resource permanently bound to c. The
// receiver is left unchanged and later SetClient calls do not affect the
// copy.
func (r *Resource[T]) WithClient(c cache.Client) *Resource[T] {
	cp := *r
	cp.client = c
	return &cp
}

// resolve returns the client the resource dispatches into. It runs before
// any argument handling so an unbound call has no side effects.
func (r *Resource[T]) resolve() (cache.Client, error) {
	if r.client != nil {
		return r.client, nil
	}
	return DefaultClient()
}

// scope pins bulk filters to the resource base key. A caller key may narrow
// the scope but never leave it.
func (r *Resource[T]) scope(op string, f cache.Filters) (cache.Filters, error) {
	if f.Key == nil {
		f.Key = r.baseKey.Clone()
		return f, nil
	}
	if !f.Key.HasPrefix(r.baseKey) {
		return f, fmt.Errorf("%w: %s: filter key %s is outside %s",
			cache.ErrInvalidArgument, op, f.Key, r.baseKey)
	}
	return f, nil
}
