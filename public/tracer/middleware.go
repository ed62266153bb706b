package tracer

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/Maximumsoft-Co-LTD/taskstracker-frontend/eto"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// MiddlewareOption configures MiddlewareConfig.
type MiddlewareOption func(*MiddlewareConfig)

// MiddlewareConfig holds configuration for the Gin middleware.
type MiddlewareConfig struct {
	// TracerName is the instrumentation scope of server spans (default: "gin-otel").
	TracerName string

	// ServiceName is added to request metrics when set.
	ServiceName string

	// SkipPaths are neither traced nor measured (e.g. "/healthz", "/metrics").
	SkipPaths []string

	EnableMetrics bool
}

func WithTracerName(name string) MiddlewareOption {
	return func(c *MiddlewareConfig) { c.TracerName = name }
}

func WithServiceName(name string) MiddlewareOption {
	return func(c *MiddlewareConfig) { c.ServiceName = name }
}

func WithSkipPaths(paths ...string) MiddlewareOption {
	return func(c *MiddlewareConfig) { c.SkipPaths = append(c.SkipPaths, paths...) }
}

// WithoutMetrics disables the request counter and duration histogram.
func WithoutMetrics() MiddlewareOption {
	return func(c *MiddlewareConfig) { c.EnableMetrics = false }
}

func defaultConfig() *MiddlewareConfig {
	return &MiddlewareConfig{
		TracerName:    "gin-otel",
		EnableMetrics: true,
	}
}

// GinMiddleware returns a Gin middleware that opens a server span per request,
// continuing the caller's trace when traceparent headers are present.
//
//	r := gin.New()
//	r.Use(tracer.GinMiddleware(
//	    tracer.WithServiceName("tasksmanager-frontend-webapp"),
//	    tracer.WithSkipPaths("/healthz", "/metrics"),
//	))
func GinMiddleware(opts ...MiddlewareOption) gin.HandlerFunc {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	skipPaths := make(map[string]bool, len(cfg.SkipPaths))
	for _, path := range cfg.SkipPaths {
		skipPaths[path] = true
	}

	return func(c *gin.Context) {
		if skipPaths[c.Request.URL.Path] || skipPaths[c.FullPath()] {
			c.Next()
			return
		}

		start := time.Now()
		ctx := eto.Propagate().FromHTTPRequest(c.Request)

		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}

		builder := eto.Trace().
			Name(c.Request.Method+" "+route).
			FromContext(ctx).
			Kind(trace.SpanKindServer).
			TracerName(cfg.TracerName).
			Attr("http.method", c.Request.Method).
			Attr("http.scheme", Scheme(c.Request)).
			Attr("http.target", c.Request.URL.Path).
			Attr("http.route", route).
			Attr("http.user_agent", c.Request.UserAgent()).
			Attr("net.host.name", c.Request.Host).
			Attr("net.peer.ip", c.ClientIP())
		if c.Request.URL.RawQuery != "" {
			builder = builder.Attr("http.url", c.Request.URL.String())
		}

		ctx, span := builder.Start()
		defer span.End()
		c.Request = c.Request.WithContext(ctx)

		// Headers must be set before the handler starts writing the body.
		eto.Propagate().FromContext(ctx).ToHTTPResponse(c.Writer)

		c.Next()

		status := c.Writer.Status()
		span.SetAttributes(
			Attr("http.status_code", status),
			Attr("http.response_content_length", c.Writer.Size()),
		)

		switch {
		case status >= http.StatusInternalServerError:
			span.SetStatus(codes.Error, fmt.Sprintf("HTTP %d", status))
		case status >= http.StatusBadRequest:
			span.SetAttributes(Attr("http.error", true))
		default:
			span.SetStatus(codes.Ok, "")
		}
		// Errors reported by handlers are recorded even when the exception handler
		// turned them into a redirect.
		for _, err := range c.Errors {
			span.RecordError(err.Err)
		}

		if !cfg.EnableMetrics {
			return
		}

		counter := eto.MetricCounter("http_server_requests_total").
			Attr("method", c.Request.Method).
			Attr("route", route).
			Attr("status_class", statusClass(status))
		hist := eto.MetricHistogram("http_server_request_duration_ms").
			Attr("method", c.Request.Method).
			Attr("route", route).
			Attr("status_class", statusClass(status))
		if cfg.ServiceName != "" {
			counter = counter.Attr("service", cfg.ServiceName)
			hist = hist.Attr("service", cfg.ServiceName)
		}
		counter.Add(ctx, 1)
		hist.Record(ctx, float64(time.Since(start).Milliseconds()))
	}
}

// Scheme returns "https" for TLS requests or requests forwarded by a TLS-terminating
// proxy, "http" otherwise.
func Scheme(r *http.Request) string {
	if r.TLS != nil {
		return "https"
	}
	// Proxies may append their own hop: "https, http". The first entry is the client's.
	proto := r.Header.Get("X-Forwarded-Proto")
	if i := strings.IndexByte(proto, ','); i >= 0 {
		proto = proto[:i]
	}
	if strings.EqualFold(strings.TrimSpace(proto), "https") {
		return "https"
	}
	return "http"
}

func statusClass(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	case status >= 200:
		return "2xx"
	default:
		return "1xx"
	}
}
