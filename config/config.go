// Package config loads frontend settings from layered sources: built-in defaults,
// appsettings.json, appsettings.{Environment}.json, environment variables and
// command-line flags, later sources winning. Keys are hierarchical and use ':' as the
// section separator, e.g. "BackendApiConfig:BaseUrlExternalHttp". The matching
// environment variable replaces ':' with "__" (BackendApiConfig__BaseUrlExternalHttp);
// the all-uppercase spelling is accepted too.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	KeyEnvironment = "Environment"

	KeyServerAddr            = "Server:Addr"
	KeyServerHTTPSPort       = "Server:HttpsPort"
	KeyServerHTTPSAddr       = "Server:HttpsAddr"
	KeyServerTLSCertFile     = "Server:TlsCertFile"
	KeyServerTLSKeyFile      = "Server:TlsKeyFile"
	KeyServerStaticDir       = "Server:StaticDir"
	KeyServerHSTSMaxAge      = "Server:HstsMaxAge"
	KeyServerReadTimeout     = "Server:ReadTimeout"
	KeyServerWriteTimeout    = "Server:WriteTimeout"
	KeyServerShutdownTimeout = "Server:ShutdownTimeout"

	KeyBackendBaseURLExternalHTTP = "BackendApiConfig:BaseUrlExternalHttp"
	KeyBackendAppID               = "BackendApiConfig:AppId"
	KeyBackendInvocationMode      = "BackendApiConfig:InvocationMode"

	KeyDaprHTTPEndpoint = "Dapr:HttpEndpoint"
	KeyDaprAPIToken     = "Dapr:ApiToken"

	KeyTelemetryServiceName     = "Telemetry:ServiceName"
	KeyTelemetryCloudRoleName   = "Telemetry:CloudRoleName"
	KeyTelemetryOtelEndpoint    = "Telemetry:OtelEndpoint"
	KeyTelemetryEnableMetrics   = "Telemetry:EnableMetrics"
	KeyTelemetryMetricsExporter = "Telemetry:MetricsExporter"
)

const (
	EnvironmentDevelopment = "Development"
	EnvironmentProduction  = "Production"

	InvocationExternal = "external"
	InvocationDapr     = "dapr"

	settingsFileName = "appsettings"
	keyDelimiter     = ":"
)

// Flag names understood by Load when a flag set is supplied.
const (
	FlagConfigDir   = "config-dir"
	FlagEnvironment = "environment"
	FlagAddr        = "addr"
)

type Settings struct {
	Environment string
	Server      ServerSettings
	BackendAPI  BackendAPISettings
	Dapr        DaprSettings
	Telemetry   TelemetrySettings
}

type ServerSettings struct {
	Addr            string
	HTTPSPort       int
	HTTPSAddr       string
	TLSCertFile     string
	TLSKeyFile      string
	StaticDir       string
	HSTSMaxAge      time.Duration
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

type BackendAPISettings struct {
	// BaseURLExternalHTTP is kept exactly as configured; empty means not configured.
	BaseURLExternalHTTP string
	AppID               string
	InvocationMode      string
}

type DaprSettings struct {
	HTTPEndpoint string
	APIToken     string
}

type TelemetrySettings struct {
	ServiceName     string
	CloudRoleName   string
	OtelEndpoint    string
	EnableMetrics   bool
	MetricsExporter string
}

// IsDevelopment matches the environment name case-insensitively.
func (s *Settings) IsDevelopment() bool {
	return strings.EqualFold(s.Environment, EnvironmentDevelopment)
}

type Options struct {
	// Dir holds appsettings*.json; defaults to the working directory.
	Dir string
	// Environment overrides the configured environment name.
	Environment string
	// Flags, when set, may carry --config-dir, --environment and --addr.
	Flags *pflag.FlagSet
}

var envAliases = map[string][]string{
	KeyEnvironment:  {"APP_ENVIRONMENT"},
	KeyDaprAPIToken: {"DAPR_API_TOKEN"},
}

func defaults() map[string]any {
	return map[string]any{
		KeyEnvironment:                EnvironmentProduction,
		KeyServerAddr:                 ":8080",
		KeyServerHTTPSPort:            0,
		KeyServerHTTPSAddr:            "",
		KeyServerTLSCertFile:          "",
		KeyServerTLSKeyFile:           "",
		KeyServerStaticDir:            "",
		KeyServerHSTSMaxAge:           "720h",
		KeyServerReadTimeout:          "30s",
		KeyServerWriteTimeout:         "30s",
		KeyServerShutdownTimeout:      "10s",
		KeyBackendBaseURLExternalHTTP: "",
		KeyBackendAppID:               "tasksmanager-backend-api",
		KeyBackendInvocationMode:      InvocationExternal,
		KeyDaprHTTPEndpoint:           defaultDaprEndpoint(),
		KeyDaprAPIToken:               "",
		KeyTelemetryServiceName:       "tasksmanager-frontend-webapp",
		KeyTelemetryCloudRoleName:     "tasksmanager-frontend-webapp",
		KeyTelemetryOtelEndpoint:      "",
		KeyTelemetryEnableMetrics:     true,
		KeyTelemetryMetricsExporter:   "prometheus",
	}
}

// defaultDaprEndpoint follows the sidecar convention of publishing its port in
// DAPR_HTTP_PORT.
func defaultDaprEndpoint() string {
	if port := os.Getenv("DAPR_HTTP_PORT"); port != "" {
		return "http://localhost:" + port
	}
	return "http://localhost:3500"
}

// Load builds Settings. A missing appsettings file is not an error; a malformed one is.
// Required values are not validated here: the consumer of each value owns that check.
func Load(opts Options) (*Settings, error) {
	v := viper.NewWithOptions(viper.KeyDelimiter(keyDelimiter))
	for key, val := range defaults() {
		v.SetDefault(key, val)
	}
	if err := bindEnv(v); err != nil {
		return nil, err
	}

	dir := opts.Dir
	env := opts.Environment
	if opts.Flags != nil {
		if f := opts.Flags.Lookup(FlagConfigDir); f != nil && f.Changed {
			dir = f.Value.String()
		}
		if f := opts.Flags.Lookup(FlagEnvironment); f != nil && f.Changed {
			env = f.Value.String()
		}
		if f := opts.Flags.Lookup(FlagAddr); f != nil {
			if err := v.BindPFlag(KeyServerAddr, f); err != nil {
				return nil, fmt.Errorf("config: bind flag %s: %w", FlagAddr, err)
			}
		}
	}
	if dir == "" {
		dir = "."
	}

	if err := readFile(v, filepath.Join(dir, settingsFileName+".json"), false); err != nil {
		return nil, err
	}

	// The environment decides which overlay file applies, so resolve it first.
	if env == "" {
		env = v.GetString(KeyEnvironment)
	}
	v.Set(KeyEnvironment, env)
	if err := readFile(v, filepath.Join(dir, settingsFileName+"."+env+".json"), true); err != nil {
		return nil, err
	}

	return &Settings{
		Environment: env,
		Server: ServerSettings{
			Addr:            v.GetString(KeyServerAddr),
			HTTPSPort:       v.GetInt(KeyServerHTTPSPort),
			HTTPSAddr:       v.GetString(KeyServerHTTPSAddr),
			TLSCertFile:     v.GetString(KeyServerTLSCertFile),
			TLSKeyFile:      v.GetString(KeyServerTLSKeyFile),
			StaticDir:       v.GetString(KeyServerStaticDir),
			HSTSMaxAge:      v.GetDuration(KeyServerHSTSMaxAge),
			ReadTimeout:     v.GetDuration(KeyServerReadTimeout),
			WriteTimeout:    v.GetDuration(KeyServerWriteTimeout),
			ShutdownTimeout: v.GetDuration(KeyServerShutdownTimeout),
		},
		BackendAPI: BackendAPISettings{
			BaseURLExternalHTTP: v.GetString(KeyBackendBaseURLExternalHTTP),
			AppID:               v.GetString(KeyBackendAppID),
			InvocationMode:      strings.ToLower(v.GetString(KeyBackendInvocationMode)),
		},
		Dapr: DaprSettings{
			HTTPEndpoint: v.GetString(KeyDaprHTTPEndpoint),
			APIToken:     v.GetString(KeyDaprAPIToken),
		},
		Telemetry: TelemetrySettings{
			ServiceName:     v.GetString(KeyTelemetryServiceName),
			CloudRoleName:   v.GetString(KeyTelemetryCloudRoleName),
			OtelEndpoint:    v.GetString(KeyTelemetryOtelEndpoint),
			EnableMetrics:   v.GetBool(KeyTelemetryEnableMetrics),
			MetricsExporter: v.GetString(KeyTelemetryMetricsExporter),
		},
	}, nil
}

func readFile(v *viper.Viper, path string, merge bool) error {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	v.SetConfigFile(path)
	v.SetConfigType("json")

	var err error
	if merge {
		err = v.MergeInConfig()
	} else {
		err = v.ReadInConfig()
	}
	if err != nil {
		return fmt.Errorf("config: read %s: %w", path, err)
	}
	return nil
}

// bindEnv maps every known key to Section__Key, its upper-case form and any alias.
func bindEnv(v *viper.Viper) error {
	for key := range defaults() {
		name := strings.ReplaceAll(key, keyDelimiter, "__")
		names := []string{key, name, strings.ToUpper(name)}
		names = append(names, envAliases[key]...)
		if err := v.BindEnv(names...); err != nil {
			return fmt.Errorf("config: bind env %s: %w", key, err)
		}
	}
	return nil
}

// RegisterFlags adds the flags Load understands to fs.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.String(FlagConfigDir, ".", "directory holding appsettings.json")
	fs.String(FlagEnvironment, "", "environment name (Development, Staging, Production)")
	fs.String(FlagAddr, ":8080", "HTTP listen address")
}
