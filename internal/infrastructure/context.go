package infrastructure

import (
	"context"

	"github.com/google/uuid"
)

type contextKey string

// TraceIDContextKey carries the per-request trace id.
const TraceIDContextKey contextKey = "trace_id"

// NewTraceID mints a fresh trace id.
func NewTraceID() string {
	return uuid.NewString()
}

// WithTraceID attaches a trace id to the context.
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, TraceIDContextKey, traceID)
}

// TraceIDFromContext returns the trace id, or empty when absent.
func TraceIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(TraceIDContextKey).(string); ok {
		return id
	}
	return ""
}
