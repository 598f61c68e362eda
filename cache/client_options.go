package cache

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// ClientOptions carry the ambient dependencies of an engine.
type ClientOptions struct {
	Logger     *zap.Logger
	Registerer prometheus.Registerer
	Serializer KeySerializer
	Now        func() time.Time
}

// ClientOption mutates ClientOptions.
type ClientOption func(*ClientOptions)

// WithLogger sets the engine logger. Default is a no-op logger.
func WithLogger(logger *zap.Logger) ClientOption {
	return func(o *ClientOptions) {
		o.Logger = logger
	}
}

// WithRegisterer registers the engine metrics on reg.
func WithRegisterer(reg prometheus.Registerer) ClientOption {
	return func(o *ClientOptions) {
		o.Registerer = reg
	}
}

// WithKeySerializer replaces the default key serializer.
func WithKeySerializer(s KeySerializer) ClientOption {
	return func(o *ClientOptions) {
		o.Serializer = s
	}
}

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) ClientOption {
	return func(o *ClientOptions) {
		o.Now = now
	}
}

// ApplyClientOptions resolves opts over the defaults.
func ApplyClientOptions(opts ...ClientOption) ClientOptions {
	o := ClientOptions{}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	if o.Serializer == nil {
		o.Serializer = NewDefaultKeySerializer()
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}
