package app

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Maximumsoft-Co-LTD/taskstracker-frontend/config"
	"github.com/Maximumsoft-Co-LTD/taskstracker-frontend/httpclient"
	"github.com/Maximumsoft-Co-LTD/taskstracker-frontend/web"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loadSettings(t *testing.T, baseURL string) *config.Settings {
	t.Helper()
	settings, err := config.Load(config.Options{Dir: t.TempDir(), Environment: config.EnvironmentProduction})
	require.NoError(t, err)
	settings.BackendAPI.BaseURLExternalHTTP = baseURL
	settings.Dapr.HTTPEndpoint = "http://localhost:3500"
	return settings
}

func buildApp(t *testing.T, settings *config.Settings) (*App, error) {
	t.Helper()
	a, err := Build(context.Background(), settings)
	if a != nil {
		t.Cleanup(func() { _ = a.Shutdown(context.Background()) })
	}
	return a, err
}

func TestBuildFailsWithoutBackendBaseURL(t *testing.T) {
	a, err := buildApp(t, loadSettings(t, ""))
	require.Error(t, err)
	assert.Nil(t, a)
	assert.ErrorIs(t, err, ErrMissingBackendBaseURL)
	assert.ErrorIs(t, err, httpclient.ErrMissingBaseAddress)
	assert.Equal(t, "BackendApiConfig:BaseUrlExternalHttp is not defined in App Settings.", err.Error())
}

func TestBuildRejectsMalformedBackendBaseURL(t *testing.T) {
	for _, raw := range []string{"tasks-backend/api", "http://[::1", "/relative/"} {
		a, err := buildApp(t, loadSettings(t, raw))
		require.Error(t, err, raw)
		assert.Nil(t, a)
		assert.ErrorIs(t, err, httpclient.ErrInvalidBaseAddress, raw)
		assert.False(t, errors.Is(err, ErrMissingBackendBaseURL))
	}
}

func TestBuildKeepsBackendBaseURLVerbatim(t *testing.T) {
	const raw = "https://tasksmanager-backend-api.example.io/"
	a, err := buildApp(t, loadSettings(t, raw))
	require.NoError(t, err)

	c, err := a.Clients().Client(BackendClientName)
	require.NoError(t, err)
	assert.Equal(t, raw, c.BaseAddress())
	assert.ElementsMatch(t, []string{BackendClientName, "dapr"}, a.Clients().Names())
}

func TestBuildRejectsUnknownInvocationMode(t *testing.T) {
	settings := loadSettings(t, "http://localhost:5000/")
	settings.BackendAPI.InvocationMode = "grpc"
	_, err := buildApp(t, settings)
	assert.ErrorContains(t, err, "grpc")
}

func TestBuiltServerRedirectsFailuresToErrorPage(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	t.Cleanup(backend.Close)

	a, err := buildApp(t, loadSettings(t, backend.URL+"/"))
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/Tasks", nil)
	req.AddCookie(&http.Cookie{Name: web.CreatedByCookie, Value: "owner@example.com"})
	w := httptest.NewRecorder()
	a.Server().Handler().ServeHTTP(w, req)

	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, web.ErrorPath, w.Header().Get("Location"))
}

func TestBuiltServerExposesMetrics(t *testing.T) {
	a, err := buildApp(t, loadSettings(t, "http://localhost:5000/"))
	require.NoError(t, err)

	w := httptest.NewRecorder()
	a.Server().Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	a.Server().Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, web.MetricsPath, nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "http_server_request")
}
