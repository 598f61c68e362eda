package queryhelper

import (
	"sync/atomic"

	"github.com/goliatone/go-query-cache/cache"
)

type binding struct {
	client cache.Client
}

var defaultBinding atomic.Pointer[binding]

// SetClient binds the process-wide client used by resources without their
// own. Calling it again replaces the client, which is how tests isolate
// state; SetClient(nil) unbinds.
func SetClient(c cache.Client) {
	if c == nil {
		defaultBinding.Store(nil)
		return
	}
	defaultBinding.Store(&binding{client: c})
}

// DefaultClient returns the process-wide client or cache.ErrClientNotSet.
func DefaultClient() (cache.Client, error) {
	b := defaultBinding.Load()
	if b == nil {
		return nil, cache.ErrClientNotSet
	}
	return b.client, nil
}
