// Package middleware provides ready-made chunk interceptors.
//
// This package includes:
//   - Structured logging of action calls (log/slog)
//   - Prometheus metrics
//   - OpenTelemetry tracing
//   - Expression guards that reject calls (expr-lang/expr)
//
// Register them on a chunk.Interceptors registry. The first registered
// interceptor runs outermost:
//
//	chunk.AddInterceptor(middleware.Tracing())
//	chunk.AddInterceptor(middleware.Metrics(middleware.WithNamespace("myapp")))
//	chunk.AddInterceptor(middleware.Logging(slog.Default()))
//
// # Prometheus Metrics
//
// The metrics interceptor collects:
//   - chunk_actions_total: Counter of calls by chunk, action and status
//   - chunk_action_duration_seconds: Histogram of call duration
//   - chunk_action_errors_total: Counter of failed calls by error type
//   - chunk_actions_in_flight: Gauge of calls currently running
//
// Expose them with promhttp as usual:
//
//	http.Handle("/metrics", promhttp.Handler())
//
// # OpenTelemetry
//
// The tracing interceptor starts one span per call and replaces the call's
// context with the span's, so async bodies see it:
//
//	middleware.Tracing(
//	    middleware.WithTracerName("my-app"),
//	    middleware.WithActionFilter(func(ac *chunk.ActionContext) bool {
//	        return ac.Async
//	    }),
//	)
//
// # Guards
//
// Guards evaluate boolean expressions against the call and reject it when
// the expression is false:
//
//	guard := middleware.MustGuard(middleware.GuardRule{
//	    Chunk:      "cart",
//	    Action:     "checkout",
//	    Expression: `len(state.items) > 0`,
//	    Message:    "cart is empty",
//	})
package middleware
