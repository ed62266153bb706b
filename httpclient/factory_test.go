package httpclient

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Maximumsoft-Co-LTD/taskstracker-frontend/eto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

func baseAddress(raw string) ConfigureFunc {
	return func(b *Builder) error { return b.SetBaseAddress(raw) }
}

func TestRegisterKeepsBaseAddressVerbatim(t *testing.T) {
	f := NewFactory()
	for _, raw := range []string{
		"https://tasksmanager-backend-api.example.com",
		"https://tasksmanager-backend-api.example.com/",
		"http://localhost:7088/v1/",
	} {
		require.NoError(t, f.Register(raw, baseAddress(raw)))
		c, err := f.Client(raw)
		require.NoError(t, err)
		assert.Equal(t, raw, c.BaseAddress())
	}
}

func TestRegisterRejectsMissingBaseAddress(t *testing.T) {
	f := NewFactory()

	err := f.Register("BackEndApiExternal", baseAddress(""))
	require.ErrorIs(t, err, ErrMissingBaseAddress)

	err = f.Register("BackEndApiExternal", func(*Builder) error { return nil })
	require.ErrorIs(t, err, ErrMissingBaseAddress)

	err = f.Register("BackEndApiExternal", nil)
	require.ErrorIs(t, err, ErrMissingBaseAddress)

	_, err = f.Client("BackEndApiExternal")
	assert.ErrorIs(t, err, ErrClientNotRegistered)
	assert.Empty(t, f.Names())
}

func TestRegisterRejectsRelativeOrMalformedAddress(t *testing.T) {
	f := NewFactory()
	for _, raw := range []string{"api/tasks", "/api", "://nope", "mailto:someone@example.com"} {
		err := f.Register("c", baseAddress(raw))
		assert.ErrorIs(t, err, ErrInvalidBaseAddress, raw)
	}
}

func TestRegisterRejectsDuplicates(t *testing.T) {
	f := NewFactory()
	require.NoError(t, f.Register("backend", baseAddress("https://a.example.com")))
	err := f.Register("backend", baseAddress("https://b.example.com"))
	assert.ErrorIs(t, err, ErrDuplicateClient)

	c, err := f.Client("backend")
	require.NoError(t, err)
	assert.Equal(t, "https://a.example.com", c.BaseAddress())
}

func TestClientIsSharedAcrossCallers(t *testing.T) {
	f := NewFactory()
	require.NoError(t, f.Register("backend", baseAddress("https://a.example.com")))

	first, err := f.Client("backend")
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c, err := f.Client("backend")
			assert.NoError(t, err)
			assert.Same(t, first, c)
		}()
	}
	wg.Wait()
}

func TestResolveAgainstBaseAddress(t *testing.T) {
	f := NewFactory()
	require.NoError(t, f.Register("backend", baseAddress("https://host.example.com/v1/")))
	c, _ := f.Client("backend")

	u, err := c.Resolve("api/tasks?createdBy=a@b.c")
	require.NoError(t, err)
	assert.Equal(t, "https://host.example.com/v1/api/tasks?createdBy=a@b.c", u.String())

	u, err = c.Resolve("/api/tasks")
	require.NoError(t, err)
	assert.Equal(t, "https://host.example.com/api/tasks", u.String())
}

func TestJSONRoundTripAndHeaders(t *testing.T) {
	var gotHeader, gotType string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotHeader = r.Header.Get("X-Caller")
		gotType = r.Header.Get("Content-Type")
		body, _ := io.ReadAll(r.Body)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"echo":` + string(body) + `}`))
	}))
	defer srv.Close()

	f := NewFactory()
	require.NoError(t, f.Register("backend", func(b *Builder) error {
		b.SetHeader("X-Caller", "frontend")
		b.SetTimeout(5 * time.Second)
		return b.SetBaseAddress(srv.URL)
	}))
	c, _ := f.Client("backend")
	assert.Equal(t, 5*time.Second, c.HTTP().Timeout)

	var out struct {
		Echo map[string]string `json:"echo"`
	}
	require.NoError(t, c.JSON(context.Background(), http.MethodPost, "api/echo", map[string]string{"a": "b"}, &out))
	assert.Equal(t, "b", out.Echo["a"])
	assert.Equal(t, "frontend", gotHeader)
	assert.Equal(t, "application/json", gotType)
}

func TestJSONReturnsStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "no such task", http.StatusNotFound)
	}))
	defer srv.Close()

	f := NewFactory(WithoutInstrumentation())
	require.NoError(t, f.Register("backend", baseAddress(srv.URL)))
	c, _ := f.Client("backend")

	err := c.JSON(context.Background(), http.MethodGet, "api/tasks/1", nil, &struct{}{})
	require.Error(t, err)
	assert.True(t, IsStatus(err, http.StatusNotFound))
	se, ok := AsStatusError(err)
	require.True(t, ok)
	assert.Equal(t, "no such task", se.Body)
	assert.False(t, IsStatus(nil, http.StatusNotFound))
}

func TestInstrumentedTransportPropagatesTrace(t *testing.T) {
	rec := tracetest.NewSpanRecorder()
	shutdown, err := eto.Init(context.Background(), eto.Config{
		ServiceName:    "httpclient-test",
		SpanProcessors: []sdktrace.SpanProcessor{rec},
	})
	require.NoError(t, err)
	defer shutdown(context.Background())

	var traceparent string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		traceparent = r.Header.Get("traceparent")
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	f := NewFactory()
	require.NoError(t, f.Register("backend", baseAddress(srv.URL)))
	c, _ := f.Client("backend")

	req, err := c.NewRequest(context.Background(), http.MethodDelete, "api/tasks/1", nil)
	require.NoError(t, err)
	resp, err := c.Do(req)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Empty(t, req.Header.Get("traceparent"), "caller's request must not be mutated")
	require.NotEmpty(t, traceparent)

	ended := rec.Ended()
	require.Len(t, ended, 1)
	assert.Equal(t, trace.SpanKindClient, ended[0].SpanKind())
	assert.Equal(t, "DELETE /api/tasks/1", ended[0].Name())
	assert.Contains(t, traceparent, ended[0].SpanContext().TraceID().String())
}

func TestWithTransportIsSharedByAllClients(t *testing.T) {
	var mu sync.Mutex
	var seen []string
	rt := roundTripFunc(func(r *http.Request) (*http.Response, error) {
		mu.Lock()
		seen = append(seen, r.Method+" "+r.URL.String())
		mu.Unlock()
		return &http.Response{
			StatusCode: http.StatusOK,
			Header:     http.Header{"Content-Type": {"application/json"}},
			Body:       io.NopCloser(strings.NewReader(`{"ok":true}`)),
			Request:    r,
		}, nil
	})

	f := NewFactory(WithTransport(rt))
	require.NoError(t, f.Register("backend", baseAddress("http://backend.internal/")))
	require.NoError(t, f.Register("dapr", baseAddress("http://localhost:3500")))

	backend, err := f.Client("backend")
	require.NoError(t, err)
	sidecar, err := f.Client("dapr")
	require.NoError(t, err)

	var out struct{ OK bool }
	require.NoError(t, backend.JSON(context.Background(), http.MethodGet, "api/tasks", nil, &out))
	assert.True(t, out.OK)
	require.NoError(t, sidecar.JSON(context.Background(), http.MethodPost, "/v1.0/invoke/a/method/b", nil, nil))

	assert.Equal(t, []string{
		"GET http://backend.internal/api/tasks",
		"POST http://localhost:3500/v1.0/invoke/a/method/b",
	}, seen)
}
