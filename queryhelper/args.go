package queryhelper

import (
	"fmt"
	"reflect"

	"github.com/goliatone/go-query-cache/cache"
)

// splitArgs splits a call into the first arity domain arguments and the
// trailing arguments. The split is positional only.
func splitArgs(all []any, arity int) (domain, trailing []any) {
	n := min(arity, len(all))
	return all[:n:n], all[n:]
}

// slot receives one trailing argument. It reports false when v has a type it
// does not take.
type slot func(v any) bool

// into returns a slot that accepts an O or a *O.
func into[O any](dst *O) slot {
	return func(v any) bool {
		switch o := v.(type) {
		case O:
			*dst = o
			return true
		case *O:
			if o != nil {
				*dst = *o
			}
			return true
		}
		return false
	}
}

// parseTrailing assigns each trailing argument to the first free slot that
// accepts its type. A nil argument is absent and fills nothing.
func parseTrailing(op string, trailing []any, slots ...slot) error {
	if len(trailing) > len(slots) {
		return fmt.Errorf("%w: %s accepts at most %d trailing arguments, got %d",
			cache.ErrInvalidArgument, op, len(slots), len(trailing))
	}

	filled := make([]bool, len(slots))
	for i, v := range trailing {
		if isAbsent(v) {
			continue
		}
		taken := false
		for j, s := range slots {
			if filled[j] {
				continue
			}
			if s(v) {
				filled[j] = true
				taken = true
				break
			}
		}
		if !taken {
			return fmt.Errorf("%w: %s: unexpected trailing argument %T at position %d",
				cache.ErrInvalidArgument, op, v, i)
		}
	}
	return nil
}

// isAbsent reports whether v is an untyped nil or a nil pointer.
func isAbsent(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	return rv.Kind() == reflect.Pointer && rv.IsNil()
}
