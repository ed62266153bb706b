package tasks

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/Maximumsoft-Co-LTD/taskstracker-frontend/dapr"
	"github.com/Maximumsoft-Co-LTD/taskstracker-frontend/httpclient"
	"github.com/Maximumsoft-Co-LTD/taskstracker-frontend/public/metricer"
	"github.com/Maximumsoft-Co-LTD/taskstracker-frontend/public/tracer"
	"github.com/google/uuid"
)

// invoker sends one JSON call to the backend, path relative to the backend root.
type invoker func(ctx context.Context, method, path string, in, out any) error

type gateway struct {
	via    string
	invoke invoker
}

// NewExternalGateway calls the backend directly through its externally reachable
// base address.
func NewExternalGateway(c *httpclient.Client) Gateway {
	return &gateway{
		via:    "external",
		invoke: c.JSON,
	}
}

// NewDaprGateway calls the backend app through the service-invocation sidecar.
func NewDaprGateway(c *dapr.Client, appID string) Gateway {
	return &gateway{
		via: "dapr",
		invoke: func(ctx context.Context, method, path string, in, out any) error {
			return c.Invoke(ctx, appID, path, method, in, out)
		},
	}
}

func (g *gateway) call(ctx context.Context, op, method, path string, in, out any) error {
	start := time.Now()
	err := tracer.Run(ctx, "tasks."+op, func(ctx context.Context) error {
		err := g.invoke(ctx, method, path, in, out)
		if httpclient.IsStatus(err, http.StatusNotFound) {
			return fmt.Errorf("%w: %v", ErrNotFound, err)
		}
		return err
	}, "tasks.via", g.via)

	metricer.Counter(ctx, "tasks_backend_calls_total", 1, "op", op, "via", g.via, "outcome", outcome(err))
	metricer.Histogram(ctx, "tasks_backend_call_duration_ms", float64(time.Since(start).Milliseconds()), "op", op, "via", g.via)
	return err
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	default:
		return "error"
	}
}

func (g *gateway) List(ctx context.Context, createdBy string) ([]Task, error) {
	var out []Task
	path := "api/tasks?createdBy=" + url.QueryEscape(createdBy)
	if err := g.call(ctx, "list", http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (g *gateway) Get(ctx context.Context, id uuid.UUID) (Task, error) {
	var out Task
	if err := g.call(ctx, "get", http.MethodGet, taskPath(id), nil, &out); err != nil {
		return Task{}, err
	}
	return out, nil
}

// Create returns the id the backend assigned, or uuid.Nil when the backend answered
// without a body.
func (g *gateway) Create(ctx context.Context, req AddTaskRequest) (uuid.UUID, error) {
	var out Task
	if err := g.call(ctx, "create", http.MethodPost, "api/tasks", req, &out); err != nil {
		return uuid.Nil, err
	}
	return out.TaskID, nil
}

func (g *gateway) Update(ctx context.Context, req UpdateTaskRequest) error {
	return g.call(ctx, "update", http.MethodPut, taskPath(req.TaskID), req, nil)
}

func (g *gateway) MarkComplete(ctx context.Context, id uuid.UUID) error {
	return g.call(ctx, "complete", http.MethodPut, taskPath(id)+"/markcomplete", nil, nil)
}

func (g *gateway) Delete(ctx context.Context, id uuid.UUID) error {
	return g.call(ctx, "delete", http.MethodDelete, taskPath(id), nil, nil)
}

func taskPath(id uuid.UUID) string {
	return "api/tasks/" + id.String()
}
