package eto

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	otlploggrpc "go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploggrpc"
	otlpmetricgrpc "go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	otlpgrpc "go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	otellog "go.opentelemetry.io/otel/log"
	logglobal "go.opentelemetry.io/otel/log/global"

	sdklog "go.opentelemetry.io/otel/sdk/log"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"

	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"
	"google.golang.org/grpc"
)

const instrumentationName = "taskstracker-frontend"

var (
	globalCfg         Config
	globalTP          *sdktrace.TracerProvider
	globalMP          *sdkmetric.MeterProvider
	globalLogProvider *sdklog.LoggerProvider
	globalOtelLogger  otellog.Logger
	globalLogger      *zap.Logger
	globalPropagator  propagation.TextMapPropagator
	globalMeter       metric.Meter
	globalMetrics     http.Handler
)

// Init installs the process-wide tracer, meter and logger providers. The returned
// shutdown flushes and releases all of them.
func Init(ctx context.Context, cfg Config) (func(context.Context) error, error) {
	globalCfg = cfg
	resetInstruments()

	res, err := resource.New(
		ctx,
		resource.WithAttributes(
			semconv.ServiceName(cfg.ServiceName),
			semconv.DeploymentEnvironment(cfg.Environment),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("eto: resource: %w", err)
	}

	dialOpt := otlpgrpc.WithDialOption(grpc.WithUserAgent(instrumentationName))

	tpOpts := []sdktrace.TracerProviderOption{
		sdktrace.WithResource(res),
		sdktrace.WithSpanProcessor(newInitializerProcessor(cfg.Initializers)),
	}
	if cfg.OtelEndpoint != "" {
		traceExp, err := otlpgrpc.New(
			ctx,
			otlpgrpc.WithEndpoint(cfg.OtelEndpoint),
			otlpgrpc.WithInsecure(),
			dialOpt,
		)
		if err != nil {
			return nil, fmt.Errorf("eto: trace exporter: %w", err)
		}
		tpOpts = append(tpOpts, sdktrace.WithBatcher(traceExp))
	}
	for _, sp := range cfg.SpanProcessors {
		tpOpts = append(tpOpts, sdktrace.WithSpanProcessor(sp))
	}
	globalTP = sdktrace.NewTracerProvider(tpOpts...)
	otel.SetTracerProvider(globalTP)

	// Providers installed so far are released again when a later step fails.
	abort := func(err error) (func(context.Context) error, error) {
		if globalTP != nil {
			_ = globalTP.Shutdown(ctx)
			globalTP = nil
			otel.SetTracerProvider(tracenoop.NewTracerProvider())
		}
		if globalMP != nil {
			_ = globalMP.Shutdown(ctx)
			globalMP, globalMeter, globalMetrics = nil, nil, nil
			otel.SetMeterProvider(metricnoop.NewMeterProvider())
		}
		return nil, err
	}

	globalMP, globalMeter, globalMetrics = nil, nil, nil
	if cfg.EnableMetrics {
		reader, handler, err := newMetricReader(ctx, cfg)
		if err != nil {
			return abort(err)
		}
		globalMP = sdkmetric.NewMeterProvider(
			sdkmetric.WithReader(reader),
			sdkmetric.WithResource(res),
		)
		otel.SetMeterProvider(globalMP)
		globalMeter = globalMP.Meter(instrumentationName)
		globalMetrics = handler
	}

	globalLogProvider, globalOtelLogger = nil, nil
	if cfg.OtelEndpoint != "" {
		logExp, err := otlploggrpc.New(
			ctx,
			otlploggrpc.WithEndpoint(cfg.OtelEndpoint),
			otlploggrpc.WithInsecure(),
			otlploggrpc.WithDialOption(grpc.WithUserAgent(instrumentationName)),
		)
		if err != nil {
			return abort(fmt.Errorf("eto: log exporter: %w", err))
		}

		globalLogProvider = sdklog.NewLoggerProvider(
			sdklog.WithProcessor(sdklog.NewBatchProcessor(logExp)),
			sdklog.WithResource(res),
		)
		logglobal.SetLoggerProvider(globalLogProvider)
		globalOtelLogger = globalLogProvider.Logger(instrumentationName)
	}

	propagator := propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	)
	otel.SetTextMapPropagator(propagator)
	globalPropagator = propagator

	logger, err := newZapLogger(cfg)
	if err != nil {
		if globalLogProvider != nil {
			_ = globalLogProvider.Shutdown(ctx)
			globalLogProvider, globalOtelLogger = nil, nil
		}
		return abort(fmt.Errorf("eto: logger: %w", err))
	}
	globalLogger = logger

	shutdown := func(ctx context.Context) error {
		var errs []error
		if globalTP != nil {
			errs = append(errs, globalTP.Shutdown(ctx))
		}
		if globalMP != nil {
			errs = append(errs, globalMP.Shutdown(ctx))
		}
		if globalLogProvider != nil {
			errs = append(errs, globalLogProvider.Shutdown(ctx))
		}
		if globalLogger != nil {
			// Sync on stderr returns EINVAL on some platforms; not worth reporting.
			_ = globalLogger.Sync()
		}
		return errors.Join(errs...)
	}

	return shutdown, nil
}

func newMetricReader(ctx context.Context, cfg Config) (sdkmetric.Reader, http.Handler, error) {
	switch cfg.metricsExporter() {
	case MetricsExporterOTLP:
		if cfg.OtelEndpoint == "" {
			return nil, nil, errors.New("eto: otlp metrics exporter requires an endpoint")
		}
		metricExp, err := otlpmetricgrpc.New(
			ctx,
			otlpmetricgrpc.WithEndpoint(cfg.OtelEndpoint),
			otlpmetricgrpc.WithInsecure(),
			otlpmetricgrpc.WithDialOption(grpc.WithUserAgent(instrumentationName)),
		)
		if err != nil {
			return nil, nil, fmt.Errorf("eto: metric exporter: %w", err)
		}
		return sdkmetric.NewPeriodicReader(metricExp), nil, nil
	case MetricsExporterPrometheus:
		registry := prometheus.NewRegistry()
		exporter, err := otelprom.New(otelprom.WithRegisterer(registry))
		if err != nil {
			return nil, nil, fmt.Errorf("eto: prometheus exporter: %w", err)
		}
		return exporter, promhttp.HandlerFor(registry, promhttp.HandlerOpts{}), nil
	default:
		return nil, nil, fmt.Errorf("eto: unknown metrics exporter %q", cfg.MetricsExporter)
	}
}

func newZapLogger(cfg Config) (*zap.Logger, error) {
	if cfg.isDevelopment() {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

// MetricsHandler serves the Prometheus scrape endpoint. It is nil unless metrics are
// enabled with the prometheus exporter.
func MetricsHandler() http.Handler {
	return globalMetrics
}
