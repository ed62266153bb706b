package metricer

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Maximumsoft-Co-LTD/taskstracker-frontend/eto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCounterAndHistogramReachPrometheus(t *testing.T) {
	shutdown, err := eto.Init(context.Background(), eto.Config{ServiceName: "metricer-test", EnableMetrics: true})
	require.NoError(t, err)
	t.Cleanup(func() { _ = shutdown(context.Background()) })

	ctx := context.Background()
	Counter(ctx, "tasks_backend_calls_total", 2, "op", "list", "outcome", "ok", "dangling")
	Histogram(ctx, "tasks_backend_call_duration_ms", 12.5, "op", "list")

	w := httptest.NewRecorder()
	eto.MetricsHandler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := w.Body.String()
	assert.Contains(t, body, "tasks_backend_calls_total")
	assert.Contains(t, body, `op="list"`)
	assert.Contains(t, body, "tasks_backend_call_duration_ms")
	assert.NotContains(t, body, "dangling")
}

func TestEachPairSkipsNonStringKeys(t *testing.T) {
	var keys []string
	eachPair([]any{"a", 1, 2, "b", "c", true}, func(key string, _ any) { keys = append(keys, key) })
	assert.Equal(t, []string{"a", "c"}, keys)
}
