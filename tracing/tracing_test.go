package tracing

import (
	"context"
	"net/http"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"

	"github.com/Keksclan/rawrcache/transport"
)

// newTestConfig returns a Config backed by an in-memory span recorder.
func newTestConfig(t *testing.T) (*Config, *tracetest.SpanRecorder) {
	t.Helper()
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })
	return &Config{
		TracerProvider: tp,
		Propagators:    propagation.TraceContext{},
	}, rec
}

func TestMiddleware_CreatesClientSpan(t *testing.T) {
	cfg, rec := newTestConfig(t)

	var gotHeader http.Header
	base := transport.Func(func(_ context.Context, req transport.Request) ([]byte, error) {
		gotHeader = req.Header
		return []byte("{}"), nil
	})
	tr := transport.Wrap(base, Middleware(cfg))

	if _, err := tr.Do(t.Context(), transport.Get("/posts/9", nil)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	spans := rec.Ended()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	span := spans[0]
	if span.Name() != "GET /posts/9" {
		t.Fatalf("span name = %q", span.Name())
	}
	if span.SpanKind() != trace.SpanKindClient {
		t.Fatalf("expected SpanKindClient, got %v", span.SpanKind())
	}
	if span.Status().Code != codes.Ok {
		t.Fatalf("expected Ok status, got %v", span.Status().Code)
	}
	assertAttr(t, span.Attributes(), "http.request.method", "GET")
	assertAttr(t, span.Attributes(), "url.path", "/posts/9")

	if gotHeader.Get("Traceparent") == "" {
		t.Fatal("trace context not injected into request headers")
	}
}

func TestMiddleware_RecordsError(t *testing.T) {
	cfg, rec := newTestConfig(t)

	base := transport.Func(func(_ context.Context, req transport.Request) ([]byte, error) {
		return nil, &transport.Error{Kind: transport.KindStatus, Method: "GET", URL: req.URL, Status: 503}
	})
	tr := transport.Wrap(base, Middleware(cfg))

	if _, err := tr.Do(t.Context(), transport.Get("/posts", nil)); err == nil {
		t.Fatal("expected error")
	}

	spans := rec.Ended()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	span := spans[0]
	if span.Status().Code != codes.Error {
		t.Fatalf("expected Error status, got %v", span.Status().Code)
	}
	assertAttr(t, span.Attributes(), "error.type", "status")

	var found bool
	for _, kv := range span.Attributes() {
		if kv.Key == "http.response.status_code" && kv.Value.AsInt64() == 503 {
			found = true
		}
	}
	if !found {
		t.Fatal("status code attribute missing")
	}
}

func TestMiddleware_NilConfigPassthrough(t *testing.T) {
	base := transport.Func(func(_ context.Context, req transport.Request) ([]byte, error) {
		if req.Header != nil {
			t.Error("nil config must not touch headers")
		}
		return []byte("ok"), nil
	})
	tr := transport.Wrap(base, Middleware(nil))

	body, err := tr.Do(t.Context(), transport.Get("/", nil))
	if err != nil || string(body) != "ok" {
		t.Fatalf("got %q, %v", body, err)
	}
}

func TestMiddleware_DoesNotMutateCallerHeader(t *testing.T) {
	cfg, _ := newTestConfig(t)
	base := transport.Func(func(context.Context, transport.Request) ([]byte, error) { return nil, nil })
	tr := transport.Wrap(base, Middleware(cfg))

	req := transport.Get("/", nil)
	req.Header = http.Header{"X-Custom": {"1"}}
	_, _ = tr.Do(t.Context(), req)

	if req.Header.Get("Traceparent") != "" {
		t.Fatal("caller header was mutated")
	}
}

func assertAttr(t *testing.T, attrs []attribute.KeyValue, key, want string) {
	t.Helper()
	for _, kv := range attrs {
		if string(kv.Key) == key {
			if got := kv.Value.AsString(); got != want {
				t.Fatalf("attribute %q = %q, want %q", key, got, want)
			}
			return
		}
	}
	t.Fatalf("attribute %q not found", key)
}
