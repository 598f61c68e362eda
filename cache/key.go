package cache

import (
	"strconv"

	"github.com/cespare/xxhash/v2"
)

// Key identifies a cache entry. It is an ordered sequence of tokens: the
// resource base key followed by the domain arguments of a call. Tokens keep
// their structure (maps, slices, structs are not flattened); identity is
// decided by the KeySerializer, not by Go equality.
type Key []any

// Clone returns a copy of the key that shares no backing array with k.
func (k Key) Clone() Key {
	if k == nil {
		return nil
	}
	out := make(Key, len(k))
	copy(out, k)
	return out
}

// Append returns a new key with tokens appended to a copy of k.
func (k Key) Append(tokens ...any) Key {
	out := make(Key, 0, len(k)+len(tokens))
	out = append(out, k...)
	return append(out, tokens...)
}

// Equal reports whether both keys serialize to the same segments.
func (k Key) Equal(other Key) bool {
	return defaultSerializer.SerializeKey(k) == defaultSerializer.SerializeKey(other)
}

// HasPrefix reports whether prefix matches the leading segments of k.
func (k Key) HasPrefix(prefix Key) bool {
	return SegmentsHavePrefix(defaultSerializer.Segments(k), defaultSerializer.Segments(prefix))
}

// String renders the key with the default serializer.
func (k Key) String() string {
	return defaultSerializer.SerializeKey(k)
}

// SegmentsHavePrefix compares serialized segments one by one.
func SegmentsHavePrefix(segments, prefix []string) bool {
	if len(prefix) > len(segments) {
		return false
	}
	for i := range prefix {
		if segments[i] != prefix[i] {
			return false
		}
	}
	return true
}

// HashKey returns the short, stable hash of a serialized key. Engines use it
// as the storage key and expose it on State and QueryInfo.
func HashKey(serialized string) string {
	return strconv.FormatUint(xxhash.Sum64String(serialized), 16)
}
