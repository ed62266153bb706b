package web

import (
	"fmt"
	"io/fs"
	"net"
	"net/http"
	"path"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/Maximumsoft-Co-LTD/taskstracker-frontend/public/logger"
	"github.com/Maximumsoft-Co-LTD/taskstracker-frontend/public/tracer"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	HeaderRequestID = "X-Request-ID"
	HeaderHSTS      = "Strict-Transport-Security"

	requestIDKey = "web.request_id"
)

// requestID reuses the caller's X-Request-ID or assigns a fresh one.
func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(HeaderRequestID)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(requestIDKey, id)
		c.Header(HeaderRequestID, id)
		c.Next()
	}
}

func requestIDFrom(c *gin.Context) string {
	return c.GetString(requestIDKey)
}

func accessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Info(c.Request.Context(), "request served",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"latency_ms", time.Since(start).Milliseconds(),
			"request_id", requestIDFrom(c),
		)
	}
}

// exceptionHandler turns an unhandled request failure into a redirect to errorPath:
// a panic, or an error reported with c.Error that no handler answered. Failures of
// errorPath itself get a bare 500 so the redirect cannot loop.
func exceptionHandler(errorPath string) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if rec == http.ErrAbortHandler {
				panic(rec)
			}
			err := fmt.Errorf("panic: %v", rec)
			_ = c.Error(err)
			logger.Error(c.Request.Context(), "unhandled exception", "path", c.Request.URL.Path, "error", err)
			redirectToError(c, errorPath)
		}()

		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}
		logger.Error(c.Request.Context(), "unhandled request error", "path", c.Request.URL.Path, "error", c.Errors.Last().Err)
		redirectToError(c, errorPath)
	}
}

func redirectToError(c *gin.Context, errorPath string) {
	switch {
	case c.Writer.Written():
		c.Abort()
	case c.Request.URL.Path == errorPath:
		c.AbortWithStatus(http.StatusInternalServerError)
	default:
		c.Redirect(http.StatusFound, errorPath)
		c.Abort()
	}
}

// developerExceptionPage answers unhandled failures with a 500 carrying the error
// detail. It is only installed in Development.
func developerExceptionPage() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if rec == http.ErrAbortHandler {
				panic(rec)
			}
			err := fmt.Errorf("panic: %v", rec)
			_ = c.Error(err)
			writeDeveloperError(c, err)
		}()

		c.Next()

		if len(c.Errors) > 0 && !c.Writer.Written() {
			writeDeveloperError(c, c.Errors.Last().Err)
		}
	}
}

func writeDeveloperError(c *gin.Context, err error) {
	logger.Error(c.Request.Context(), "unhandled exception", "path", c.Request.URL.Path, "error", err)
	if c.Writer.Written() {
		c.Abort()
		return
	}
	c.Header("Content-Type", "text/plain; charset=utf-8")
	c.String(http.StatusInternalServerError, "An unhandled exception occurred while processing the request.\n\n%s %s\n%v\n",
		c.Request.Method, c.Request.URL.Path, err)
	c.Abort()
}

// hsts sets Strict-Transport-Security on HTTPS responses. Loopback hosts are
// excluded so local development over https does not pin the browser.
func hsts(maxAge time.Duration) gin.HandlerFunc {
	value := "max-age=" + strconv.FormatInt(int64(maxAge/time.Second), 10)
	return func(c *gin.Context) {
		if tracer.Scheme(c.Request) == "https" && !isLoopbackHost(c.Request.Host) {
			c.Header(HeaderHSTS, value)
		}
		c.Next()
	}
}

func isLoopbackHost(hostport string) bool {
	host := hostport
	if h, _, err := net.SplitHostPort(hostport); err == nil {
		host = h
	}
	host = strings.Trim(host, "[]")
	return strings.EqualFold(host, "localhost") || host == "127.0.0.1" || host == "::1"
}

// httpsRedirection sends plain-HTTP requests to the same URL on https with 307, so
// the method and body are preserved. Without a known https port it only warns once
// and lets the request through. exempt paths (health checks, scraping) are never redirected.
func httpsRedirection(httpsPort int, exempt ...string) gin.HandlerFunc {
	var warnOnce sync.Once
	skip := make(map[string]bool, len(exempt))
	for _, p := range exempt {
		skip[p] = true
	}

	return func(c *gin.Context) {
		if tracer.Scheme(c.Request) == "https" || skip[c.Request.URL.Path] {
			c.Next()
			return
		}
		if httpsPort <= 0 {
			warnOnce.Do(func() {
				logger.Warn(c.Request.Context(), "failed to determine the https port for redirect")
			})
			c.Next()
			return
		}

		host := c.Request.Host
		if h, _, err := net.SplitHostPort(host); err == nil {
			host = h
		}
		host = strings.Trim(host, "[]")
		if httpsPort != 443 {
			host = net.JoinHostPort(host, strconv.Itoa(httpsPort))
		} else if strings.Contains(host, ":") {
			host = "[" + host + "]"
		}

		c.Redirect(http.StatusTemporaryRedirect, "https://"+host+c.Request.URL.RequestURI())
		c.Abort()
	}
}

// staticFiles serves GET/HEAD requests that name a file in fsys and passes every
// other request on to routing.
func staticFiles(fsys fs.FS) gin.HandlerFunc {
	fileServer := http.FileServer(http.FS(fsys))
	return func(c *gin.Context) {
		if c.Request.Method != http.MethodGet && c.Request.Method != http.MethodHead {
			c.Next()
			return
		}
		name := strings.TrimPrefix(path.Clean("/"+c.Request.URL.Path), "/")
		if name == "" || !fs.ValidPath(name) {
			c.Next()
			return
		}
		info, err := fs.Stat(fsys, name)
		if err != nil || info.IsDir() {
			c.Next()
			return
		}
		fileServer.ServeHTTP(c.Writer, c.Request)
		c.Abort()
	}
}

// Policy guards every route under Prefix. Requests that fail Allow are redirected
// to Challenge.
type Policy struct {
	Prefix    string
	Allow     func(c *gin.Context) bool
	Challenge string
}

func (p Policy) covers(route string) bool {
	return route == p.Prefix || strings.HasPrefix(route, strings.TrimSuffix(p.Prefix, "/")+"/")
}

// authorization evaluates policies against the matched route; unmatched requests
// fall through to the 404 handler.
func authorization(policies ...Policy) gin.HandlerFunc {
	return func(c *gin.Context) {
		route := c.FullPath()
		if route == "" {
			c.Next()
			return
		}
		for _, p := range policies {
			if p.covers(route) && !p.Allow(c) {
				c.Redirect(http.StatusFound, p.Challenge)
				c.Abort()
				return
			}
		}
		c.Next()
	}
}
