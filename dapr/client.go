// Package dapr talks to the local Dapr sidecar's service-invocation API. The sidecar
// resolves the target app id and forwards the call, so callers never need to know
// where the target service runs.
package dapr

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/Maximumsoft-Co-LTD/taskstracker-frontend/httpclient"
)

// ClientName is the name the sidecar client is registered under in the factory.
const ClientName = "dapr"

const apiTokenHeader = "dapr-api-token"

var ErrMissingAppID = errors.New("dapr: app id is required")

type Config struct {
	// HTTPEndpoint is the sidecar address, e.g. "http://localhost:3500".
	HTTPEndpoint string
	// APIToken is sent as dapr-api-token when the sidecar requires it.
	APIToken string
}

type Client struct {
	http *httpclient.Client
}

// New registers the sidecar client on the factory and returns it.
func New(factory *httpclient.Factory, cfg Config) (*Client, error) {
	err := factory.Register(ClientName, func(b *httpclient.Builder) error {
		if cfg.APIToken != "" {
			b.SetHeader(apiTokenHeader, cfg.APIToken)
		}
		return b.SetBaseAddress(cfg.HTTPEndpoint)
	})
	if err != nil {
		return nil, fmt.Errorf("dapr: %w", err)
	}
	c, err := factory.Client(ClientName)
	if err != nil {
		return nil, err
	}
	return &Client{http: c}, nil
}

// Endpoint is the sidecar base address.
func (c *Client) Endpoint() string {
	return c.http.BaseAddress()
}

// Invoke calls method on appID through the sidecar with the given HTTP verb.
// method may carry a query string ("api/tasks?createdBy=x"). in and out follow
// httpclient.Client.JSON.
func (c *Client) Invoke(ctx context.Context, appID, method, verb string, in, out any) error {
	if appID == "" {
		return ErrMissingAppID
	}
	if verb == "" {
		verb = http.MethodPost
	}
	return c.http.JSON(ctx, verb, invokePath(appID, method), in, out)
}

func invokePath(appID, method string) string {
	return "/v1.0/invoke/" + url.PathEscape(appID) + "/method/" + strings.TrimLeft(method, "/")
}
