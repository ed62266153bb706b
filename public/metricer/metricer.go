// Package metricer records counters and histograms by name. Attributes are given as
// alternating key, value pairs; a trailing key without a value is dropped.
package metricer

import (
	"context"

	"github.com/Maximumsoft-Co-LTD/taskstracker-frontend/eto"
)

// Counter adds value to the named counter.
//
//	metricer.Counter(ctx, "tasks_backend_calls_total", 1, "op", "list", "outcome", "ok")
func Counter(ctx context.Context, name string, value int64, kv ...any) {
	b := eto.MetricCounter(name)
	eachPair(kv, func(key string, val any) { b.Attr(key, val) })
	b.Add(ctx, value)
}

// Histogram records value on the named histogram.
//
//	metricer.Histogram(ctx, "tasks_backend_call_duration_ms", elapsedMs, "op", "list")
func Histogram(ctx context.Context, name string, value float64, kv ...any) {
	b := eto.MetricHistogram(name)
	eachPair(kv, func(key string, val any) { b.Attr(key, val) })
	b.Record(ctx, value)
}

func eachPair(kv []any, fn func(key string, val any)) {
	for i := 0; i+1 < len(kv); i += 2 {
		if key, ok := kv[i].(string); ok {
			fn(key, kv[i+1])
		}
	}
}
