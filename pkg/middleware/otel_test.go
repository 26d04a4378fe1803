package middleware

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"

	"github.com/vango-dev/chunk/pkg/chunk"
)

func newRecorder() (*tracetest.SpanRecorder, *sdktrace.TracerProvider) {
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	return sr, tp
}

func attrValue(attrs []attribute.KeyValue, key string) (attribute.Value, bool) {
	for _, kv := range attrs {
		if string(kv.Key) == key {
			return kv.Value, true
		}
	}
	return attribute.Value{}, false
}

func TestTracing_RecordsSpans(t *testing.T) {
	sr, tp := newRecorder()
	s := newCartStore(t, Tracing(
		WithTracerProvider(tp),
		WithAttributeExtractor(func(ac *chunk.ActionContext) []attribute.KeyValue {
			return []attribute.KeyValue{attribute.String("test.attr", "ok")}
		}),
	))

	_, _ = s.Call("add", "milk")
	_, _ = s.Call("remove", "milk")

	spans := sr.Ended()
	if len(spans) != 2 {
		t.Fatalf("recorded %d spans, want 2", len(spans))
	}

	add := spans[0]
	if add.Name() != "chunk cart.add" {
		t.Errorf("span name = %q", add.Name())
	}
	if add.Status().Code != codes.Ok {
		t.Errorf("add status = %v, want Ok", add.Status().Code)
	}
	if v, ok := attrValue(add.Attributes(), "chunk.action"); !ok || v.AsString() != "add" {
		t.Errorf("chunk.action attribute = %v", v)
	}
	if v, ok := attrValue(add.Attributes(), "chunk.arg_count"); !ok || v.AsInt64() != 1 {
		t.Errorf("chunk.arg_count attribute = %v", v)
	}
	if v, ok := attrValue(add.Attributes(), "test.attr"); !ok || v.AsString() != "ok" {
		t.Errorf("custom attribute = %v", v)
	}
	if v, ok := attrValue(add.Attributes(), "chunk.call_id"); !ok || v.AsString() == "" {
		t.Error("missing call id attribute")
	}

	remove := spans[1]
	if remove.Status().Code != codes.Error {
		t.Errorf("remove status = %v, want Error", remove.Status().Code)
	}
	if len(remove.Events()) == 0 {
		t.Error("error should be recorded as a span event")
	}
}

func TestTracing_AsyncBodySeesSpan(t *testing.T) {
	sr, tp := newRecorder()
	registry := chunk.NewInterceptors(Tracing(WithTracerProvider(tp)))

	var bodySpan trace.SpanContext
	s := chunk.New(chunk.Config{
		Name:         "jobs",
		InitialState: map[string]any{},
		Actions: func(s *chunk.Store) map[string]chunk.Action {
			return map[string]chunk.Action{
				"run": chunk.Async(func(ctx context.Context, args ...any) (any, error) {
					bodySpan = trace.SpanContextFromContext(ctx)
					return nil, nil
				}),
			}
		},
	}, chunk.WithInterceptors(registry))
	t.Cleanup(s.Dispose)

	if _, err := s.Call("run"); err != nil {
		t.Fatalf("run: %v", err)
	}

	spans := sr.Ended()
	if len(spans) != 1 {
		t.Fatalf("recorded %d spans, want 1", len(spans))
	}
	if !bodySpan.IsValid() || bodySpan.SpanID() != spans[0].SpanContext().SpanID() {
		t.Fatal("async body should run inside the action span")
	}
	if v, ok := attrValue(spans[0].Attributes(), "chunk.async"); !ok || !v.AsBool() {
		t.Error("chunk.async attribute should be true")
	}
}

func TestTracing_Filter(t *testing.T) {
	sr, tp := newRecorder()
	s := newCartStore(t, Tracing(
		WithTracerProvider(tp),
		WithIncludeArgs(false),
		WithActionFilter(func(ac *chunk.ActionContext) bool { return ac.Action != "add" }),
	))

	_, _ = s.Call("add", "milk")
	_, _ = s.Call("setTotal", 3)

	spans := sr.Ended()
	if len(spans) != 1 || spans[0].Name() != "chunk cart.setTotal" {
		t.Fatalf("spans = %v, want only setTotal", spans)
	}
	if _, ok := attrValue(spans[0].Attributes(), "chunk.arg_count"); ok {
		t.Error("arg count should be omitted")
	}
}

func TestSpanFromAction(t *testing.T) {
	_, tp := newRecorder()
	mw := Tracing(WithTracerProvider(tp))

	ac := &chunk.ActionContext{Chunk: "c", Action: "a", Context: context.Background()}
	var inside trace.Span
	_, _ = mw(ac, func() (any, error) {
		inside = SpanFromAction(ac)
		return nil, nil
	})
	if !inside.SpanContext().IsValid() {
		t.Fatal("SpanFromAction should return the active span inside the call")
	}
}
