package middleware

import (
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/vango-dev/chunk/pkg/chunk"
)

// Default tracer name for chunk stores.
const defaultTracerName = "chunk"

// TracingConfig configures the OpenTelemetry interceptor.
type TracingConfig struct {
	// TracerName is the name of the tracer (default: "chunk").
	TracerName string

	// TracerProvider supplies the tracer.
	// Default: the global provider from otel.GetTracerProvider.
	TracerProvider trace.TracerProvider

	// IncludeArgs records the argument count as an attribute.
	// Enabled by default.
	IncludeArgs bool

	// Filter determines which calls to trace.
	// If nil, all calls are traced.
	Filter func(ac *chunk.ActionContext) bool

	// AttributeExtractor adds custom attributes to each span.
	AttributeExtractor func(ac *chunk.ActionContext) []attribute.KeyValue
}

// TracingOption configures the OpenTelemetry interceptor.
type TracingOption func(*TracingConfig)

// WithTracerName sets the tracer name.
func WithTracerName(name string) TracingOption {
	return func(c *TracingConfig) {
		c.TracerName = name
	}
}

// WithTracerProvider sets the tracer provider.
func WithTracerProvider(tp trace.TracerProvider) TracingOption {
	return func(c *TracingConfig) {
		c.TracerProvider = tp
	}
}

// WithIncludeArgs enables/disables the argument count attribute.
func WithIncludeArgs(include bool) TracingOption {
	return func(c *TracingConfig) {
		c.IncludeArgs = include
	}
}

// WithActionFilter sets a filter function for calls.
func WithActionFilter(filter func(ac *chunk.ActionContext) bool) TracingOption {
	return func(c *TracingConfig) {
		c.Filter = filter
	}
}

// WithAttributeExtractor sets a custom attribute extractor.
func WithAttributeExtractor(extractor func(ac *chunk.ActionContext) []attribute.KeyValue) TracingOption {
	return func(c *TracingConfig) {
		c.AttributeExtractor = extractor
	}
}

func defaultTracingConfig() TracingConfig {
	return TracingConfig{
		TracerName:  defaultTracerName,
		IncludeArgs: true,
	}
}

// Tracing creates an interceptor that traces every action call.
//
// The interceptor:
//   - Starts a span named "chunk <store>.<action>" with the call ID
//   - Replaces ac.Context with the span's context for later interceptors
//     and async bodies
//   - Records errors and sets span status
//
// The tracer comes from the global OpenTelemetry tracer provider unless
// WithTracerProvider is given. Configure it in main():
//
//	tp := sdktrace.NewTracerProvider(sdktrace.WithBatcher(exporter))
//	otel.SetTracerProvider(tp)
func Tracing(opts ...TracingOption) chunk.Interceptor {
	config := defaultTracingConfig()
	for _, opt := range opts {
		opt(&config)
	}

	provider := config.TracerProvider
	if provider == nil {
		provider = otel.GetTracerProvider()
	}
	tracer := provider.Tracer(config.TracerName)

	return func(ac *chunk.ActionContext, next func() (any, error)) (any, error) {
		if config.Filter != nil && !config.Filter(ac) {
			return next()
		}

		attrs := []attribute.KeyValue{
			attribute.String("chunk.name", ac.Chunk),
			attribute.String("chunk.action", ac.Action),
			attribute.String("chunk.call_id", ac.CallID),
			attribute.Bool("chunk.async", ac.Async),
		}
		if config.IncludeArgs {
			attrs = append(attrs, attribute.Int("chunk.arg_count", len(ac.Args)))
		}
		if config.AttributeExtractor != nil {
			attrs = append(attrs, config.AttributeExtractor(ac)...)
		}

		spanCtx, span := tracer.Start(
			ac.Context,
			spanName(ac),
			trace.WithSpanKind(trace.SpanKindInternal),
			trace.WithAttributes(attrs...),
		)
		defer span.End()

		ac.Context = spanCtx

		result, err := next()
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetStatus(codes.Ok, "")
		}
		return result, err
	}
}

// SpanFromAction returns the span of the current call, or a no-op span if
// the call is not traced.
//
// Example:
//
//	"load": chunk.Async(func(ctx context.Context, args ...any) (any, error) {
//	    trace.SpanFromContext(ctx).AddEvent("fetching")
//	    ...
//	}),
func SpanFromAction(ac *chunk.ActionContext) trace.Span {
	return trace.SpanFromContext(ac.Context)
}

func spanName(ac *chunk.ActionContext) string {
	return fmt.Sprintf("chunk %s.%s", ac.Chunk, ac.Action)
}
