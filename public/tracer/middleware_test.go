package tracer

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Maximumsoft-Co-LTD/taskstracker-frontend/eto"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
)

func setup(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	gin.SetMode(gin.TestMode)
	rec := tracetest.NewSpanRecorder()
	shutdown, err := eto.Init(context.Background(), eto.Config{
		ServiceName:    "tracer-test",
		SpanProcessors: []sdktrace.SpanProcessor{rec},
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = shutdown(context.Background()) })
	return rec
}

func TestGinMiddlewareOpensServerSpan(t *testing.T) {
	rec := setup(t)

	r := gin.New()
	r.Use(GinMiddleware(WithSkipPaths("/healthz")))
	r.GET("/Tasks/Edit/:id", func(c *gin.Context) { c.String(http.StatusOK, "ok") })
	r.GET("/healthz", func(c *gin.Context) { c.String(http.StatusOK, "ok") })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/Tasks/Edit/42", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get(eto.HeaderTraceID))

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Empty(t, w.Header().Get(eto.HeaderTraceID))

	ended := rec.Ended()
	require.Len(t, ended, 1)
	assert.Equal(t, "GET /Tasks/Edit/:id", ended[0].Name())
	assert.Equal(t, trace.SpanKindServer, ended[0].SpanKind())
	assert.Equal(t, codes.Ok, ended[0].Status().Code)
}

func TestGinMiddlewareContinuesIncomingTrace(t *testing.T) {
	rec := setup(t)

	r := gin.New()
	r.Use(GinMiddleware())
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("traceparent", "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01")
	r.ServeHTTP(httptest.NewRecorder(), req)

	ended := rec.Ended()
	require.Len(t, ended, 1)
	assert.Equal(t, "4bf92f3577b34da6a3ce929d0e0e4736", ended[0].SpanContext().TraceID().String())
	assert.Equal(t, "00f067aa0ba902b7", ended[0].Parent().SpanID().String())
}

func TestGinMiddlewareMarksServerErrors(t *testing.T) {
	rec := setup(t)

	r := gin.New()
	r.Use(GinMiddleware(WithoutMetrics()))
	r.GET("/fail", func(c *gin.Context) {
		_ = c.Error(errors.New("backend down"))
		c.Status(http.StatusInternalServerError)
	})

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/fail", nil))

	ended := rec.Ended()
	require.Len(t, ended, 1)
	assert.Equal(t, codes.Error, ended[0].Status().Code)
	require.Len(t, ended[0].Events(), 1)
	assert.Equal(t, "exception", ended[0].Events()[0].Name)
}

func TestScheme(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	assert.Equal(t, "http", Scheme(req))

	for proto, want := range map[string]string{
		"https":       "https",
		"HTTPS":       "https",
		" https ":     "https",
		"https,http":  "https",
		"https, http": "https",
		"http, https": "http",
		"http":        "http",
		"ws":          "http",
	} {
		req.Header.Set("X-Forwarded-Proto", proto)
		assert.Equal(t, want, Scheme(req), proto)
	}
}

func TestRunAndStartClient(t *testing.T) {
	rec := setup(t)

	err := Run(context.Background(), "tasks.load", func(ctx context.Context) error {
		_, span := StartClient(ctx, "GET api/tasks", "http.method", "GET")
		span.End()
		return nil
	}, "tasks.created_by", "someone@example.com")
	require.NoError(t, err)

	ended := rec.Ended()
	require.Len(t, ended, 2)
	assert.Equal(t, trace.SpanKindClient, ended[0].SpanKind())
	assert.Equal(t, ended[1].SpanContext().SpanID(), ended[0].Parent().SpanID())
}

func TestStartEndsInternalSpan(t *testing.T) {
	rec := setup(t)

	_, end := Start(context.Background(), "render index.tmpl", "template", "index.tmpl")
	assert.Empty(t, rec.Ended())
	end()

	ended := rec.Ended()
	require.Len(t, ended, 1)
	assert.Equal(t, "render index.tmpl", ended[0].Name())
	assert.Equal(t, trace.SpanKindInternal, ended[0].SpanKind())
	assert.Contains(t, ended[0].Attributes(), Attr("template", "index.tmpl"))
}
