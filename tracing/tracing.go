// Package tracing creates OpenTelemetry client spans for outbound API calls.
// It is entirely optional; spans are only produced when the middleware is
// installed with a [Config].
package tracing

import (
	"context"
	"net/http"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/Keksclan/rawrcache/transport"
)

const instrumentationName = "github.com/Keksclan/rawrcache/tracing"

// Config holds the OpenTelemetry configuration used by [Middleware].
type Config struct {
	// TracerProvider supplies the Tracer used to create spans. When nil the
	// global otel.GetTracerProvider() is used.
	TracerProvider trace.TracerProvider

	// Propagators injects the trace context into outgoing request headers.
	// When nil the global otel.GetTextMapPropagator() is used.
	Propagators propagation.TextMapPropagator
}

func (c *Config) tracer() trace.Tracer {
	tp := c.TracerProvider
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	return tp.Tracer(instrumentationName)
}

func (c *Config) propagators() propagation.TextMapPropagator {
	if c.Propagators != nil {
		return c.Propagators
	}
	return otel.GetTextMapPropagator()
}

// Middleware returns a transport middleware that wraps every request in a
// client span named "<METHOD> <URL>" and injects the span context into the
// request headers. If cfg is nil the middleware is a passthrough.
func Middleware(cfg *Config) transport.Middleware {
	return func(next transport.Transport) transport.Transport {
		if cfg == nil {
			return next
		}
		return transport.Func(func(ctx context.Context, req transport.Request) ([]byte, error) {
			method := strings.ToUpper(req.Method)
			if method == "" {
				method = http.MethodGet
			}
			ctx, span := cfg.tracer().Start(ctx, method+" "+req.URL, trace.WithSpanKind(trace.SpanKindClient))
			defer span.End()

			span.SetAttributes(
				attribute.String("http.request.method", method),
				attribute.String("url.path", req.URL),
			)

			header := make(http.Header, len(req.Header)+1)
			for k, vs := range req.Header {
				header[k] = append([]string(nil), vs...)
			}
			cfg.propagators().Inject(ctx, propagation.HeaderCarrier(header))
			req.Header = header

			body, err := next.Do(ctx, req)
			recordResult(span, err)
			return body, err
		})
	}
}

// recordResult sets the span status from the transport outcome.
func recordResult(span trace.Span, err error) {
	if code := transport.StatusCode(err); code != 0 {
		span.SetAttributes(attribute.Int("http.response.status_code", code))
	}
	if err == nil {
		span.SetStatus(codes.Ok, "")
		return
	}
	if kind := transport.KindOf(err); kind != 0 {
		span.SetAttributes(attribute.String("error.type", kind.String()))
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
