package middleware

import (
	"context"
	"log/slog"
	"time"

	"github.com/vango-dev/chunk/pkg/chunk"
)

// LoggingOption configures the logging interceptor.
type LoggingOption func(*loggingConfig)

type loggingConfig struct {
	level   slog.Level
	logArgs bool
}

// WithLogLevel sets the level for successful calls. Failed calls are
// always logged at error level. Default: slog.LevelDebug.
func WithLogLevel(level slog.Level) LoggingOption {
	return func(c *loggingConfig) {
		c.level = level
	}
}

// WithLogArgs includes the call's arguments in each record.
// Arguments may contain sensitive information - disabled by default.
func WithLogArgs(include bool) LoggingOption {
	return func(c *loggingConfig) {
		c.logArgs = include
	}
}

// Logging creates an interceptor that logs every action call once it
// returns, with its duration and error.
func Logging(logger *slog.Logger, opts ...LoggingOption) chunk.Interceptor {
	if logger == nil {
		logger = slog.Default()
	}
	config := loggingConfig{level: slog.LevelDebug}
	for _, opt := range opts {
		opt(&config)
	}

	return func(ac *chunk.ActionContext, next func() (any, error)) (any, error) {
		start := time.Now()
		result, err := next()

		attrs := []slog.Attr{
			slog.String("chunk", ac.Chunk),
			slog.String("action", ac.Action),
			slog.String("call_id", ac.CallID),
			slog.Bool("async", ac.Async),
			slog.Duration("duration", time.Since(start)),
		}
		if config.logArgs {
			attrs = append(attrs, slog.Any("args", ac.Args))
		}

		ctx := ac.Context
		if ctx == nil {
			ctx = context.Background()
		}
		if err != nil {
			attrs = append(attrs, slog.Any("error", err))
			logger.LogAttrs(ctx, slog.LevelError, "action failed", attrs...)
		} else {
			logger.LogAttrs(ctx, config.level, "action completed", attrs...)
		}
		return result, err
	}
}
