// Package app wires the frontend together: telemetry, outbound clients, the backend
// gateway and the web server. Build fails before any listener exists when a required
// setting is missing.
package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/Maximumsoft-Co-LTD/taskstracker-frontend/config"
	"github.com/Maximumsoft-Co-LTD/taskstracker-frontend/dapr"
	"github.com/Maximumsoft-Co-LTD/taskstracker-frontend/eto"
	"github.com/Maximumsoft-Co-LTD/taskstracker-frontend/httpclient"
	"github.com/Maximumsoft-Co-LTD/taskstracker-frontend/public/logger"
	"github.com/Maximumsoft-Co-LTD/taskstracker-frontend/tasks"
	"github.com/Maximumsoft-Co-LTD/taskstracker-frontend/web"
	"github.com/gin-gonic/gin"
)

// BackendClientName is the named client that reaches the backend API directly.
const BackendClientName = "BackEndApiExternal"

type missingSettingError struct {
	key string
}

func (e *missingSettingError) Error() string {
	return e.key + " is not defined in App Settings."
}

func (e *missingSettingError) Unwrap() error {
	return httpclient.ErrMissingBaseAddress
}

// ErrMissingBackendBaseURL is returned by Build when BackendApiConfig:BaseUrlExternalHttp
// is absent or empty.
var ErrMissingBackendBaseURL error = &missingSettingError{key: config.KeyBackendBaseURLExternalHTTP}

type App struct {
	settings *config.Settings
	clients  *httpclient.Factory
	server   *web.Server
	shutdown func(context.Context) error
}

// Build runs the startup sequence up to, but not including, listening.
func Build(ctx context.Context, settings *config.Settings) (*App, error) {
	if settings == nil {
		return nil, errors.New("app: settings are required")
	}
	if settings.IsDevelopment() {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	shutdown, err := eto.Init(ctx, eto.Config{
		ServiceName:     settings.Telemetry.ServiceName,
		Environment:     settings.Environment,
		OtelEndpoint:    settings.Telemetry.OtelEndpoint,
		EnableMetrics:   settings.Telemetry.EnableMetrics,
		MetricsExporter: settings.Telemetry.MetricsExporter,
		Initializers: []eto.Initializer{
			eto.CloudRoleInitializer{RoleName: settings.Telemetry.CloudRoleName},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("app: telemetry: %w", err)
	}

	a, err := build(settings)
	if err != nil {
		_ = shutdown(ctx)
		return nil, err
	}
	a.shutdown = shutdown
	logger.Debug(ctx, "settings resolved",
		"addr", settings.Server.Addr,
		"https_port", settings.Server.HTTPSPort,
		"static_dir", settings.Server.StaticDir,
		"backend_app_id", settings.BackendAPI.AppID,
		"dapr_endpoint", settings.Dapr.HTTPEndpoint,
		"otel_endpoint", settings.Telemetry.OtelEndpoint,
		"metrics_exporter", settings.Telemetry.MetricsExporter,
	)
	logger.Info(ctx, "frontend built",
		"environment", settings.Environment,
		"invocation_mode", settings.BackendAPI.InvocationMode,
		"backend", settings.BackendAPI.BaseURLExternalHTTP,
	)
	return a, nil
}

func build(settings *config.Settings) (*App, error) {
	clients := httpclient.NewFactory()

	sidecar, err := dapr.New(clients, dapr.Config{
		HTTPEndpoint: settings.Dapr.HTTPEndpoint,
		APIToken:     settings.Dapr.APIToken,
	})
	if err != nil {
		return nil, fmt.Errorf("app: %w", err)
	}

	backend, err := registerBackend(clients, settings.BackendAPI.BaseURLExternalHTTP)
	if err != nil {
		return nil, err
	}

	var gateway tasks.Gateway
	switch settings.BackendAPI.InvocationMode {
	case "", config.InvocationExternal:
		gateway = tasks.NewExternalGateway(backend)
	case config.InvocationDapr:
		gateway = tasks.NewDaprGateway(sidecar, settings.BackendAPI.AppID)
	default:
		return nil, fmt.Errorf("app: unknown %s %q", config.KeyBackendInvocationMode, settings.BackendAPI.InvocationMode)
	}

	server, err := web.NewServer(web.Options{
		Settings: settings,
		Tasks:    gateway,
		Metrics:  eto.MetricsHandler(),
	})
	if err != nil {
		return nil, fmt.Errorf("app: %w", err)
	}

	return &App{settings: settings, clients: clients, server: server}, nil
}

// registerBackend binds the backend client to the configured base address as given.
func registerBackend(clients *httpclient.Factory, baseURL string) (*httpclient.Client, error) {
	err := clients.Register(BackendClientName, func(b *httpclient.Builder) error {
		if baseURL == "" {
			return ErrMissingBackendBaseURL
		}
		return b.SetBaseAddress(baseURL)
	})
	switch {
	case errors.Is(err, ErrMissingBackendBaseURL):
		return nil, ErrMissingBackendBaseURL
	case err != nil:
		return nil, fmt.Errorf("app: %s: %w", config.KeyBackendBaseURLExternalHTTP, err)
	}
	return clients.Client(BackendClientName)
}

// Clients is the named client factory; every registered client has a base address.
func (a *App) Clients() *httpclient.Factory { return a.clients }

func (a *App) Server() *web.Server { return a.server }

// Run serves until ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	return a.server.Run(ctx)
}

// Shutdown flushes telemetry.
func (a *App) Shutdown(ctx context.Context) error {
	if a.shutdown == nil {
		return nil
	}
	return a.shutdown(ctx)
}
