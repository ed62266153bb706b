package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// maxErrorBody caps how much of a failed response is kept in StatusError.
const maxErrorBody = 4 << 10

// StatusError reports a non-2xx response.
type StatusError struct {
	Method     string
	URL        string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: unexpected status %d", e.Method, e.URL, e.StatusCode)
}

// IsStatus reports whether err is a StatusError with the given code.
func IsStatus(err error, code int) bool {
	se, ok := AsStatusError(err)
	return ok && se.StatusCode == code
}

func AsStatusError(err error) (*StatusError, bool) {
	var se *StatusError
	if errors.As(err, &se) {
		return se, true
	}
	return nil, false
}

// Client is a named outbound client bound to a base address.
type Client struct {
	name        string
	baseAddress string
	baseURL     *url.URL
	headers     http.Header
	http        *http.Client
}

func (c *Client) Name() string { return c.name }

// BaseAddress returns the base address exactly as it was configured.
func (c *Client) BaseAddress() string { return c.baseAddress }

// HTTP exposes the underlying client for callers that need the raw API.
func (c *Client) HTTP() *http.Client { return c.http }

// Resolve resolves ref against the base address the way a browser resolves a link:
// "api/tasks" under "https://host/v1/" gives "https://host/v1/api/tasks".
func (c *Client) Resolve(ref string) (*url.URL, error) {
	r, err := url.Parse(ref)
	if err != nil {
		return nil, fmt.Errorf("httpclient %q: parse %q: %w", c.name, ref, err)
	}
	return c.baseURL.ResolveReference(r), nil
}

// NewRequest builds a request for ref relative to the base address, carrying the
// client's default headers.
func (c *Client) NewRequest(ctx context.Context, method, ref string, body io.Reader) (*http.Request, error) {
	u, err := c.Resolve(ref)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return nil, fmt.Errorf("httpclient %q: %w", c.name, err)
	}
	for k, vs := range c.headers {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	return req, nil
}

func (c *Client) Do(req *http.Request) (*http.Response, error) {
	return c.http.Do(req)
}

// JSON sends in (when non-nil) as a JSON body and decodes a 2xx response into out
// (when non-nil). Non-2xx responses are returned as *StatusError.
func (c *Client) JSON(ctx context.Context, method, ref string, in, out any) error {
	var body io.Reader
	if in != nil {
		buf, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("httpclient %q: encode request: %w", c.name, err)
		}
		body = bytes.NewReader(buf)
	}

	req, err := c.NewRequest(ctx, method, ref, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.Do(req)
	if err != nil {
		return fmt.Errorf("httpclient %q: %s %s: %w", c.name, method, req.URL.Redacted(), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &StatusError{
			Method:     method,
			URL:        req.URL.Redacted(),
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(msg)),
		}
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	// An empty body (e.g. 201 with only a Location header) leaves out untouched.
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("httpclient %q: decode response: %w", c.name, err)
	}
	return nil
}
