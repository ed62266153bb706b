package httpclient

import (
	"fmt"
	"net/http"
	"time"

	"github.com/Maximumsoft-Co-LTD/taskstracker-frontend/eto"
	"github.com/Maximumsoft-Co-LTD/taskstracker-frontend/public/tracer"
	"go.opentelemetry.io/otel/codes"
)

// instrumentedTransport opens a client span per request, injects W3C trace headers
// so the backend joins the same trace, and records request metrics.
type instrumentedTransport struct {
	client string
	base   http.RoundTripper
}

func newInstrumentedTransport(client string, base http.RoundTripper) http.RoundTripper {
	if base == nil {
		base = http.DefaultTransport
	}
	return &instrumentedTransport{client: client, base: base}
}

func (t *instrumentedTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	start := time.Now()

	ctx, span := tracer.StartClient(req.Context(), fmt.Sprintf("%s %s", req.Method, req.URL.Path),
		"http.method", req.Method,
		"http.url", req.URL.Redacted(),
		"net.peer.name", req.URL.Hostname(),
		"http.client", t.client,
	)
	defer span.End()

	// RoundTrippers must not modify the caller's request.
	out := req.Clone(ctx)
	eto.Propagate().FromContext(ctx).ToHTTPRequest(out)

	resp, err := t.base.RoundTrip(out)

	outcome := "error"
	status := 0
	switch {
	case err != nil:
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	default:
		status = resp.StatusCode
		outcome = statusOutcome(status)
		span.SetAttributes(tracer.Attr("http.status_code", status))
		if status >= http.StatusInternalServerError {
			span.SetStatus(codes.Error, fmt.Sprintf("HTTP %d", status))
		}
	}

	eto.MetricCounter("http_client_requests_total").
		Attr("client", t.client).
		Attr("method", req.Method).
		Attr("outcome", outcome).
		Add(ctx, 1)
	eto.MetricHistogram("http_client_request_duration_ms").
		Attr("client", t.client).
		Attr("method", req.Method).
		Attr("outcome", outcome).
		Record(ctx, float64(time.Since(start).Milliseconds()))

	return resp, err
}

func statusOutcome(status int) string {
	switch {
	case status >= 500:
		return "server_error"
	case status >= 400:
		return "client_error"
	default:
		return "success"
	}
}
