package eto

import (
	"strings"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

const (
	MetricsExporterPrometheus = "prometheus"
	MetricsExporterOTLP       = "otlp"
)

type Config struct {
	ServiceName     string // resource service.name, e.g. "tasksmanager-frontend-webapp"
	Environment     string // Development / Staging / Production
	OtelEndpoint    string // OTLP gRPC endpoint, e.g. "otel-collector:4317"; empty disables OTLP export
	EnableMetrics   bool
	MetricsExporter string // "prometheus" (default) or "otlp"

	// Initializers enrich every span before it is exported. They are fixed at Init.
	Initializers []Initializer

	// SpanProcessors are appended after the exporter pipeline (tests plug a recorder here).
	SpanProcessors []sdktrace.SpanProcessor
}

func (c Config) metricsExporter() string {
	if c.MetricsExporter == "" {
		return MetricsExporterPrometheus
	}
	return c.MetricsExporter
}

func (c Config) isDevelopment() bool {
	return strings.EqualFold(c.Environment, "Development")
}
