package eto

import (
	"context"
	"os"

	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

const (
	CloudRoleKey         = attribute.Key("ai.cloud.role")
	CloudRoleInstanceKey = attribute.Key("ai.cloud.roleInstance")
)

// Initializer enriches a span when it starts, before any exporter sees it.
type Initializer interface {
	Initialize(ctx context.Context, span sdktrace.ReadWriteSpan)
}

// InitializerFunc adapts a plain function to Initializer.
type InitializerFunc func(ctx context.Context, span sdktrace.ReadWriteSpan)

func (f InitializerFunc) Initialize(ctx context.Context, span sdktrace.ReadWriteSpan) {
	f(ctx, span)
}

// CloudRoleInitializer stamps the cloud role name (and instance) on every span so
// the monitoring backend can group telemetry per service on its application map.
// Values already present on the span are left alone.
type CloudRoleInitializer struct {
	RoleName     string
	RoleInstance string // filled with the host name at Init when empty
}

var hostname = os.Hostname

func (i CloudRoleInitializer) Initialize(_ context.Context, span sdktrace.ReadWriteSpan) {
	if i.RoleName != "" && !hasAttr(span, CloudRoleKey) {
		span.SetAttributes(CloudRoleKey.String(i.RoleName))
	}

	if i.RoleInstance != "" && !hasAttr(span, CloudRoleInstanceKey) {
		span.SetAttributes(CloudRoleInstanceKey.String(i.RoleInstance))
	}
}

func hasAttr(span sdktrace.ReadOnlySpan, key attribute.Key) bool {
	for _, kv := range span.Attributes() {
		if kv.Key == key {
			return true
		}
	}
	return false
}

// initializerProcessor runs the registered initializers on span start.
type initializerProcessor struct {
	initializers []Initializer
}

func newInitializerProcessor(initializers []Initializer) *initializerProcessor {
	list := make([]Initializer, 0, len(initializers))
	host := ""
	for _, in := range initializers {
		if in == nil {
			continue
		}
		if cr, ok := in.(CloudRoleInitializer); ok && cr.RoleInstance == "" {
			if host == "" {
				host, _ = hostname()
			}
			cr.RoleInstance = host
			in = cr
		}
		list = append(list, in)
	}
	return &initializerProcessor{initializers: list}
}

func (p *initializerProcessor) OnStart(ctx context.Context, span sdktrace.ReadWriteSpan) {
	for _, in := range p.initializers {
		in.Initialize(ctx, span)
	}
}

func (p *initializerProcessor) OnEnd(sdktrace.ReadOnlySpan)      {}
func (p *initializerProcessor) Shutdown(context.Context) error   { return nil }
func (p *initializerProcessor) ForceFlush(context.Context) error { return nil }
