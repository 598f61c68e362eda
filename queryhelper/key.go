package queryhelper

import "github.com/goliatone/go-query-cache/cache"

// buildKey returns a new key made of base followed by the domain arguments.
// Trailing absent arguments are dropped, so a call that omits an optional
// argument and one that passes nil address the same entry. Interior absent
// arguments are kept to preserve positions.
func buildKey(base cache.Key, domain []any) cache.Key {
	n := len(domain)
	for n > 0 && isAbsent(domain[n-1]) {
		n--
	}
	return base.Append(domain[:n]...)
}
