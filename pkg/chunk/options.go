package chunk

import (
	"log/slog"
	"time"

	"github.com/vango-dev/chunk/pkg/storage"
)

// DefaultEngineTimeout bounds each engine call made by a store.
const DefaultEngineTimeout = 10 * time.Second

// Option configures a Store.
type Option func(*options)

type options struct {
	engine        storage.Engine
	logger        *slog.Logger
	interceptors  *Interceptors
	engineTimeout time.Duration
}

// WithEngine sets the storage engine for this store, overriding the
// process-wide engine set with ConfigureEngine.
func WithEngine(e storage.Engine) Option {
	return func(o *options) {
		o.engine = e
	}
}

// WithLogger sets the logger used for persistence and hydration problems.
// Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// WithInterceptors sets the interceptor registry the store's actions run
// through. Default: DefaultInterceptors.
func WithInterceptors(i *Interceptors) Option {
	return func(o *options) {
		o.interceptors = i
	}
}

// WithEngineTimeout bounds each engine Get and Set.
// Default: DefaultEngineTimeout.
func WithEngineTimeout(d time.Duration) Option {
	return func(o *options) {
		o.engineTimeout = d
	}
}

func buildOptions(opts []Option) options {
	o := options{
		engineTimeout: DefaultEngineTimeout,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.engine == nil {
		o.engine = Engine()
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	if o.interceptors == nil {
		o.interceptors = DefaultInterceptors
	}
	if o.engineTimeout <= 0 {
		o.engineTimeout = DefaultEngineTimeout
	}
	return o
}
