package eto

import (
	"context"
	"net/http"

	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

const (
	HeaderTraceID = "x-trace-id"
	HeaderSpanID  = "x-span-id"
)

type PropagationBuilder struct {
	ctx       context.Context
	useLegacy bool
}

// Propagate starts a fluent builder for injecting / extracting trace context.
func Propagate() *PropagationBuilder {
	return &PropagationBuilder{
		ctx: context.Background(),
	}
}

func (p *PropagationBuilder) FromContext(ctx context.Context) *PropagationBuilder {
	if ctx != nil {
		p.ctx = ctx
	}
	return p
}

// WithLegacyHeaders additionally writes x-trace-id / x-span-id on outbound requests.
func (p *PropagationBuilder) WithLegacyHeaders(enable bool) *PropagationBuilder {
	p.useLegacy = enable
	return p
}

// FromHTTPRequest extracts the caller's trace context from inbound headers.
func (p *PropagationBuilder) FromHTTPRequest(r *http.Request) context.Context {
	if globalPropagator == nil {
		return r.Context()
	}
	return globalPropagator.Extract(r.Context(), propagation.HeaderCarrier(r.Header))
}

// ToHTTPRequest injects the builder's context into outbound request headers.
func (p *PropagationBuilder) ToHTTPRequest(r *http.Request) {
	if globalPropagator == nil {
		return
	}
	globalPropagator.Inject(p.ctx, propagation.HeaderCarrier(r.Header))

	if !p.useLegacy {
		return
	}
	if sc := trace.SpanContextFromContext(p.ctx); sc.IsValid() {
		r.Header.Set(HeaderTraceID, sc.TraceID().String())
		r.Header.Set(HeaderSpanID, sc.SpanID().String())
	}
}

// ToHTTPResponse exposes the trace and span id to the client.
func (p *PropagationBuilder) ToHTTPResponse(w http.ResponseWriter) {
	sc := trace.SpanContextFromContext(p.ctx)
	if !sc.IsValid() {
		return
	}
	w.Header().Set(HeaderTraceID, sc.TraceID().String())
	w.Header().Set(HeaderSpanID, sc.SpanID().String())
}

// TraceID returns the active trace id, or "" when the context carries none.
func TraceID(ctx context.Context) string {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.IsValid() {
		return ""
	}
	return sc.TraceID().String()
}
