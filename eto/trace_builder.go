package eto

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

type TraceBuilder struct {
	name       string
	ctx        context.Context
	attrs      []attribute.KeyValue
	kind       trace.SpanKind
	tracerName string
}

func Trace() *TraceBuilder {
	return &TraceBuilder{
		ctx:        context.Background(),
		kind:       trace.SpanKindInternal,
		tracerName: instrumentationName,
	}
}

func (b *TraceBuilder) Name(name string) *TraceBuilder {
	b.name = name
	return b
}

func (b *TraceBuilder) FromContext(ctx context.Context) *TraceBuilder {
	if ctx != nil {
		b.ctx = ctx
	}
	return b
}

func (b *TraceBuilder) Kind(kind trace.SpanKind) *TraceBuilder {
	b.kind = kind
	return b
}

func (b *TraceBuilder) TracerName(name string) *TraceBuilder {
	if name != "" {
		b.tracerName = name
	}
	return b
}

func (b *TraceBuilder) Attr(key string, val any) *TraceBuilder {
	b.attrs = append(b.attrs, anyToAttr(key, val))
	return b
}

// Start opens the span. Attributes are passed as start options so span processors
// (and telemetry initializers) already see them in OnStart.
func (b *TraceBuilder) Start() (context.Context, trace.Span) {
	if b.name == "" {
		b.name = "unnamed-span"
	}
	tr := otel.Tracer(b.tracerName)
	return tr.Start(b.ctx, b.name,
		trace.WithSpanKind(b.kind),
		trace.WithAttributes(b.attrs...),
	)
}

func (b *TraceBuilder) Run(fn func(ctx context.Context) error) error {
	if fn == nil {
		return errors.New("eto.Trace().Run: fn is nil")
	}

	ctx, span := b.Start()
	defer span.End()

	err := fn(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}
