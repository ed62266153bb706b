package tracer

import (
	"context"
	"fmt"

	"github.com/Maximumsoft-Co-LTD/taskstracker-frontend/eto"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Start starts an internal span and returns a function that ends it.
//
//	ctx, end := tracer.Start(ctx, "tasks.list", "tasks.created_by", email)
//	defer end()
func Start(ctx context.Context, name string, attrs ...any) (context.Context, func()) {
	ctx, span := withAttrs(eto.Trace().Name(name).FromContext(ctx), attrs).Start()
	return ctx, func() { span.End() }
}

// Run executes fn inside a span; a returned error marks the span failed.
func Run(ctx context.Context, name string, fn func(ctx context.Context) error, attrs ...any) error {
	return withAttrs(eto.Trace().Name(name).FromContext(ctx), attrs).Run(fn)
}

// StartClient starts a client span for an outbound call. The span is returned so
// the caller can set the response status on it.
//
//	ctx, span := tracer.StartClient(ctx, "GET api/tasks", "http.method", "GET")
//	defer span.End()
func StartClient(ctx context.Context, name string, attrs ...any) (context.Context, trace.Span) {
	return withAttrs(eto.Trace().Name(name).FromContext(ctx).Kind(trace.SpanKindClient), attrs).Start()
}

func withAttrs(builder *eto.TraceBuilder, attrs []any) *eto.TraceBuilder {
	for i := 0; i+1 < len(attrs); i += 2 {
		if key, ok := attrs[i].(string); ok {
			builder = builder.Attr(key, attrs[i+1])
		}
	}
	return builder
}

// Attr builds a typed span attribute from an arbitrary value.
func Attr(key string, val any) attribute.KeyValue {
	switch v := val.(type) {
	case string:
		return attribute.String(key, v)
	case int:
		return attribute.Int(key, v)
	case int64:
		return attribute.Int64(key, v)
	case float64:
		return attribute.Float64(key, v)
	case bool:
		return attribute.Bool(key, v)
	default:
		return attribute.String(key, fmt.Sprintf("%v", v))
	}
}
