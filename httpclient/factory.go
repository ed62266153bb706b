// Package httpclient provides named, long-lived outbound HTTP clients. Each client is
// configured once at registration, bound to a base address, and shared by every
// caller for the life of the process.
package httpclient

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"
)

var (
	ErrMissingBaseAddress  = errors.New("httpclient: base address is not set")
	ErrInvalidBaseAddress  = errors.New("httpclient: base address is not an absolute URI")
	ErrDuplicateClient     = errors.New("httpclient: client already registered")
	ErrClientNotRegistered = errors.New("httpclient: client not registered")
)

// Builder collects the settings of one named client during registration.
type Builder struct {
	baseAddress string
	baseURL     *url.URL
	timeout     time.Duration
	headers     http.Header
}

// SetBaseAddress validates raw as an absolute URI and stores it verbatim.
func (b *Builder) SetBaseAddress(raw string) error {
	if raw == "" {
		return ErrMissingBaseAddress
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%w: %q: %v", ErrInvalidBaseAddress, raw, err)
	}
	if !u.IsAbs() || u.Host == "" {
		return fmt.Errorf("%w: %q", ErrInvalidBaseAddress, raw)
	}
	b.baseAddress = raw
	b.baseURL = u
	return nil
}

// SetTimeout bounds every request of the client; zero means no client-side limit.
func (b *Builder) SetTimeout(d time.Duration) {
	b.timeout = d
}

// SetHeader adds a default header sent with every request.
func (b *Builder) SetHeader(key, value string) {
	b.headers.Set(key, value)
}

// ConfigureFunc configures a client at registration. Returning an error aborts the
// registration.
type ConfigureFunc func(b *Builder) error

type Option func(*Factory)

// WithTransport replaces the base transport shared by all clients.
func WithTransport(rt http.RoundTripper) Option {
	return func(f *Factory) {
		if rt != nil {
			f.transport = rt
		}
	}
}

// WithoutInstrumentation leaves the base transport unwrapped (no spans, no metrics).
func WithoutInstrumentation() Option {
	return func(f *Factory) { f.instrument = false }
}

// Factory owns the named clients. It is safe for concurrent use.
type Factory struct {
	mu         sync.RWMutex
	clients    map[string]*Client
	transport  http.RoundTripper
	instrument bool
}

func NewFactory(opts ...Option) *Factory {
	f := &Factory{
		clients:    make(map[string]*Client),
		transport:  http.DefaultTransport,
		instrument: true,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Register runs configure immediately and stores the resulting client under name.
// A client whose configuration leaves the base address unset is rejected with
// ErrMissingBaseAddress, so no client without a base address ever exists.
func (f *Factory) Register(name string, configure ConfigureFunc) error {
	b := &Builder{headers: make(http.Header)}
	if configure != nil {
		if err := configure(b); err != nil {
			return fmt.Errorf("httpclient %q: %w", name, err)
		}
	}
	if b.baseURL == nil {
		return fmt.Errorf("httpclient %q: %w", name, ErrMissingBaseAddress)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.clients[name]; ok {
		return fmt.Errorf("httpclient %q: %w", name, ErrDuplicateClient)
	}

	rt := f.transport
	if f.instrument {
		rt = newInstrumentedTransport(name, rt)
	}
	f.clients[name] = &Client{
		name:        name,
		baseAddress: b.baseAddress,
		baseURL:     b.baseURL,
		headers:     b.headers.Clone(),
		http: &http.Client{
			Transport: rt,
			Timeout:   b.timeout,
		},
	}
	return nil
}

// Client returns the client registered under name. Every call returns the same
// instance.
func (f *Factory) Client(name string) (*Client, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	c, ok := f.clients[name]
	if !ok {
		return nil, fmt.Errorf("httpclient %q: %w", name, ErrClientNotRegistered)
	}
	return c, nil
}

// Names lists the registered clients.
func (f *Factory) Names() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()

	names := make([]string, 0, len(f.clients))
	for name := range f.clients {
		names = append(names, name)
	}
	return names
}
