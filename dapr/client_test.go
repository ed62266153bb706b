package dapr

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Maximumsoft-Co-LTD/taskstracker-frontend/httpclient"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInvokeGoesThroughSidecar(t *testing.T) {
	var gotPath, gotQuery, gotToken, gotMethod string
	sidecar := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.RawQuery
		gotToken = r.Header.Get("dapr-api-token")
		gotMethod = r.Method
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"taskName":"write report"}]`))
	}))
	defer sidecar.Close()

	f := httpclient.NewFactory()
	c, err := New(f, Config{HTTPEndpoint: sidecar.URL, APIToken: "s3cret"})
	require.NoError(t, err)
	assert.Equal(t, sidecar.URL, c.Endpoint())

	var out []map[string]string
	err = c.Invoke(context.Background(), "tasksmanager-backend-api", "api/tasks?createdBy=a@b.c", http.MethodGet, nil, &out)
	require.NoError(t, err)

	assert.Equal(t, http.MethodGet, gotMethod)
	assert.Equal(t, "/v1.0/invoke/tasksmanager-backend-api/method/api/tasks", gotPath)
	assert.Equal(t, "createdBy=a@b.c", gotQuery)
	assert.Equal(t, "s3cret", gotToken)
	require.Len(t, out, 1)
	assert.Equal(t, "write report", out[0]["taskName"])
}

func TestInvokeDefaultsAndErrors(t *testing.T) {
	sidecar := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Empty(t, r.Header.Get("dapr-api-token"))
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer sidecar.Close()

	c, err := New(httpclient.NewFactory(), Config{HTTPEndpoint: sidecar.URL})
	require.NoError(t, err)

	err = c.Invoke(context.Background(), "", "api/tasks", "", nil, nil)
	assert.ErrorIs(t, err, ErrMissingAppID)

	err = c.Invoke(context.Background(), "backend", "/api/tasks", "", map[string]string{}, nil)
	assert.True(t, httpclient.IsStatus(err, http.StatusInternalServerError))
}

func TestNewRequiresEndpoint(t *testing.T) {
	_, err := New(httpclient.NewFactory(), Config{})
	assert.ErrorIs(t, err, httpclient.ErrMissingBaseAddress)
}
