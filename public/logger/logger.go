// Package logger is the application-facing logging facade. Entries carry the
// trace_id and span_id of the context they are logged with.
package logger

import (
	"context"

	"github.com/Maximumsoft-Co-LTD/taskstracker-frontend/eto"
)

// Info logs an info-level message with optional fields.
// Usage: logger.Info(ctx, "task created", "task_id", id, "created_by", email)
func Info(ctx context.Context, msg string, fields ...any) {
	send(eto.Log().FromContext(ctx).Info(), msg, fields)
}

func Debug(ctx context.Context, msg string, fields ...any) {
	send(eto.Log().FromContext(ctx).Debug(), msg, fields)
}

func Warn(ctx context.Context, msg string, fields ...any) {
	send(eto.Log().FromContext(ctx).Warn(), msg, fields)
}

// Error logs an error-level message. An error value may be passed under any key.
func Error(ctx context.Context, msg string, fields ...any) {
	send(eto.Log().FromContext(ctx).Error(), msg, fields)
}

func send(builder *eto.LogBuilder, msg string, fields []any) {
	builder.Msg(msg)
	// A trailing key without a value is dropped.
	for i := 0; i+1 < len(fields); i += 2 {
		key, ok := fields[i].(string)
		if !ok {
			continue
		}
		builder.Field(key, fields[i+1])
	}
	builder.Send()
}
