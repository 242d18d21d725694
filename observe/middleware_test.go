package observe

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestMiddleware_Wrap(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	reader, mp := newTestMeter()
	metrics, err := NewMetrics(mp.Meter("test"))
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	var buf bytes.Buffer

	mw := NewMiddleware(NewTracer(tp.Tracer("test")), metrics, NewLoggerWithWriter("info", &buf))
	errBoom := errors.New("boom")
	fn := mw.Wrap(func(ctx context.Context, tool ToolMeta, input any) (any, error) {
		if input == "fail" {
			return nil, errBoom
		}
		return "ok:" + tool.Name, nil
	})

	meta := ToolMeta{Namespace: "weather", Name: "get_weather"}
	out, err := fn(context.Background(), meta, "london")
	if err != nil || out != "ok:get_weather" {
		t.Fatalf("got (%v, %v)", out, err)
	}
	if _, err := fn(context.Background(), meta, "fail"); !errors.Is(err, errBoom) {
		t.Fatalf("expected error to pass through unchanged, got %v", err)
	}

	spans := recorder.Ended()
	if len(spans) != 2 {
		t.Fatalf("expected 2 spans, got %d", len(spans))
	}
	if spans[0].Name() != "tool.call.weather.get_weather" {
		t.Errorf("span name = %q", spans[0].Name())
	}
	if spans[1].Status().Code != codes.Error {
		t.Errorf("failed call span status = %v, want Error", spans[1].Status().Code)
	}

	rm := collect(t, reader)
	if got := sumFor(t, rm, "tool.call.errors", attribute.String("tool.id", "weather.get_weather")); got != 1 {
		t.Errorf("tool.call.errors = %d, want 1", got)
	}

	entries := decodeLines(t, &buf)
	if len(entries) != 2 {
		t.Fatalf("expected 2 log entries, got %d", len(entries))
	}
	if entries[1]["level"] != "error" || entries[1]["error"] != "boom" {
		t.Errorf("unexpected failure entry: %v", entries[1])
	}
	if _, ok := entries[0]["input"]; ok {
		t.Error("input must never be logged")
	}
}

func TestNewMiddleware_NilComponents(t *testing.T) {
	fn := NewMiddleware(nil, nil, nil).Wrap(func(context.Context, ToolMeta, any) (any, error) {
		return 1, nil
	})
	if out, err := fn(context.Background(), ToolMeta{Name: "x"}, nil); err != nil || out != 1 {
		t.Fatalf("got (%v, %v)", out, err)
	}
}

func TestMiddlewareFromObserver(t *testing.T) {
	obs, err := NewObserver(context.Background(), Config{ServiceName: "toolgate"})
	if err != nil {
		t.Fatalf("NewObserver: %v", err)
	}
	defer obs.Shutdown(context.Background())

	if _, err := MiddlewareFromObserver(obs); err != nil {
		t.Fatalf("MiddlewareFromObserver: %v", err)
	}
}

func TestMiddleware_CallerAttributes(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	reader, mp := newTestMeter()
	metrics, err := NewMetrics(mp.Meter("test"))
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	var buf bytes.Buffer
	mw := NewMiddleware(NewTracer(tp.Tracer("test")), metrics, NewLoggerWithWriter("info", &buf))
	fn := mw.Wrap(func(context.Context, ToolMeta, any) (any, error) { return nil, nil })

	ctx := ContextWithCaller(context.Background(), Caller{Subject: "user-7", Provider: "corp", Method: "jwt"})
	if _, err := fn(ctx, ToolMeta{Name: "get_weather"}, nil); err != nil {
		t.Fatal(err)
	}

	span := recorder.Ended()[0]
	want := map[attribute.Key]string{"enduser.id": "user-7", "auth.provider": "corp", "auth.method": "jwt"}
	for _, kv := range span.Attributes() {
		if v, ok := want[kv.Key]; ok && kv.Value.AsString() == v {
			delete(want, kv.Key)
		}
	}
	if len(want) != 0 {
		t.Fatalf("span missing attributes %v", want)
	}

	rm := collect(t, reader)
	if got := sumFor(t, rm, "tool.call.total", attribute.String("auth.provider", "corp")); got != 1 {
		t.Fatalf("tool.call.total{auth.provider=corp} = %d", got)
	}
	if got := sumFor(t, rm, "tool.call.total", attribute.String("enduser.id", "user-7")); got != 0 {
		t.Fatal("subject must not label metrics")
	}

	entries := decodeLines(t, &buf)
	if entries[0]["auth_method"] != "jwt" {
		t.Fatalf("log entry = %v", entries[0])
	}
}

func TestMiddleware_Rejections(t *testing.T) {
	var buf bytes.Buffer
	errBadArgs := errors.New("bad args")
	mw := NewMiddleware(nil, nil, NewLoggerWithWriter("info", &buf)).
		WithRejections(func(err error) bool { return errors.Is(err, errBadArgs) })
	fn := mw.Wrap(func(_ context.Context, _ ToolMeta, input any) (any, error) {
		return nil, input.(error)
	})

	_, _ = fn(context.Background(), ToolMeta{Name: "x"}, errBadArgs)
	_, _ = fn(context.Background(), ToolMeta{Name: "x"}, errors.New("crash"))

	entries := decodeLines(t, &buf)
	if entries[0]["level"] != "warn" || entries[0]["msg"] != "tool call rejected" {
		t.Errorf("rejection entry = %v", entries[0])
	}
	if entries[1]["level"] != "error" || entries[1]["msg"] != "tool call failed" {
		t.Errorf("failure entry = %v", entries[1])
	}
}

func TestMiddleware_InvalidMeta(t *testing.T) {
	called := false
	fn := NewMiddleware(nil, nil, nil).Wrap(func(context.Context, ToolMeta, any) (any, error) {
		called = true
		return nil, nil
	})
	if _, err := fn(context.Background(), ToolMeta{}, nil); !errors.Is(err, ErrMissingToolName) || called {
		t.Fatalf("err = %v, called = %v", err, called)
	}
}
