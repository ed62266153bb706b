// Package web serves the Tasks Tracker pages. The request pipeline is fixed:
// request id, telemetry, exception handling (+ HSTS outside Development), HTTPS
// redirection, static files, routing, authorization, pages.
package web

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"os"
	"time"

	"github.com/Maximumsoft-Co-LTD/taskstracker-frontend/config"
	"github.com/Maximumsoft-Co-LTD/taskstracker-frontend/public/logger"
	"github.com/Maximumsoft-Co-LTD/taskstracker-frontend/public/tracer"
	"github.com/Maximumsoft-Co-LTD/taskstracker-frontend/tasks"
	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"
)

const (
	ErrorPath   = "/Error"
	HealthPath  = "/healthz"
	MetricsPath = "/metrics"
)

//go:embed templates/*.tmpl
var templatesFS embed.FS

//go:embed wwwroot
var wwwrootFS embed.FS

type Options struct {
	Settings *config.Settings
	Tasks    tasks.Gateway
	// Metrics is mounted at /metrics when non-nil.
	Metrics http.Handler
	// Static overrides the static file root (Server:StaticDir, then the embedded wwwroot).
	Static fs.FS
}

type Server struct {
	settings *config.Settings
	tasks    tasks.Gateway
	engine   *gin.Engine
}

func NewServer(opts Options) (*Server, error) {
	if opts.Settings == nil {
		return nil, errors.New("web: settings are required")
	}
	if opts.Tasks == nil {
		return nil, errors.New("web: tasks gateway is required")
	}

	static, err := staticRoot(opts)
	if err != nil {
		return nil, err
	}
	tmpl, err := template.New("pages").Funcs(templateFuncs).ParseFS(templatesFS, "templates/*.tmpl")
	if err != nil {
		return nil, fmt.Errorf("web: parse templates: %w", err)
	}

	s := &Server{
		settings: opts.Settings,
		tasks:    opts.Tasks,
		engine:   gin.New(),
	}
	s.engine.SetHTMLTemplate(tmpl)
	s.configurePipeline(static)
	s.mapRoutes(opts.Metrics)
	return s, nil
}

func staticRoot(opts Options) (fs.FS, error) {
	switch {
	case opts.Static != nil:
		return opts.Static, nil
	case opts.Settings.Server.StaticDir != "":
		dir := opts.Settings.Server.StaticDir
		if info, err := os.Stat(dir); err != nil || !info.IsDir() {
			return nil, fmt.Errorf("web: static dir %q is not a directory", dir)
		}
		return os.DirFS(dir), nil
	default:
		return fs.Sub(wwwrootFS, "wwwroot")
	}
}

func (s *Server) configurePipeline(static fs.FS) {
	e := s.engine
	cfg := s.settings

	e.Use(requestID())
	e.Use(tracer.GinMiddleware(
		tracer.WithTracerName(cfg.Telemetry.ServiceName),
		tracer.WithServiceName(cfg.Telemetry.ServiceName),
		tracer.WithSkipPaths(HealthPath, MetricsPath),
	))
	e.Use(accessLog())

	if cfg.IsDevelopment() {
		e.Use(developerExceptionPage())
	} else {
		e.Use(exceptionHandler(ErrorPath))
		e.Use(hsts(cfg.Server.HSTSMaxAge))
	}

	e.Use(httpsRedirection(cfg.Server.HTTPSPort, HealthPath, MetricsPath))
	e.Use(staticFiles(static))
	e.Use(authorization(Policy{
		Prefix:    "/Tasks",
		Allow:     func(c *gin.Context) bool { return createdBy(c) != "" },
		Challenge: "/",
	}))
}

// Handler exposes the pipeline, mainly for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves until ctx is cancelled or a listener fails. A TLS listener is started
// as well when Server:HttpsAddr and a certificate are configured.
func (s *Server) Run(ctx context.Context) error {
	cfg := s.settings.Server
	servers := []*http.Server{s.newHTTPServer(cfg.Addr)}
	useTLS := cfg.HTTPSAddr != "" && cfg.TLSCertFile != "" && cfg.TLSKeyFile != ""
	if useTLS {
		servers = append(servers, s.newHTTPServer(cfg.HTTPSAddr))
	}

	g, gctx := errgroup.WithContext(ctx)
	for i, srv := range servers {
		tls := useTLS && i == 1
		g.Go(func() error {
			logger.Info(ctx, "frontend listening", "addr", srv.Addr, "tls", tls, "environment", s.settings.Environment)
			var err error
			if tls {
				err = srv.ListenAndServeTLS(cfg.TLSCertFile, cfg.TLSKeyFile)
			} else {
				err = srv.ListenAndServe()
			}
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return fmt.Errorf("web: listen %s: %w", srv.Addr, err)
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		timeout := cfg.ShutdownTimeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		var errs []error
		for _, srv := range servers {
			if err := srv.Shutdown(shutdownCtx); err != nil {
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)
	})
	return g.Wait()
}

func (s *Server) newHTTPServer(addr string) *http.Server {
	cfg := s.settings.Server
	return &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: readHeaderTimeout(cfg.ReadTimeout),
		WriteTimeout:      cfg.WriteTimeout,
	}
}

func readHeaderTimeout(read time.Duration) time.Duration {
	if read <= 0 || read > 10*time.Second {
		return 10 * time.Second
	}
	return read
}
