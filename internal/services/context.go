package services

import "context"

type contextKey string

const (
	contentIDKey contextKey = "content_id"
	processKey   contextKey = "process"
	batchIDKey   contextKey = "batch_id"
	requestIDKey contextKey = "request_id"
)

// WithContentID annotates context with the content item identifier.
func WithContentID(ctx context.Context, id int64) context.Context {
	return context.WithValue(ctx, contentIDKey, id)
}

// ContentIDFromContext extracts the content item identifier if present.
func ContentIDFromContext(ctx context.Context) (int64, bool) {
	v := ctx.Value(contentIDKey)
	if v == nil {
		return 0, false
	}
	switch val := v.(type) {
	case int64:
		return val, true
	case int:
		return int64(val), true
	default:
		return 0, false
	}
}

// WithProcess annotates context with the job queue process name.
func WithProcess(ctx context.Context, process string) context.Context {
	if process == "" {
		return ctx
	}
	return context.WithValue(ctx, processKey, process)
}

// ProcessFromContext returns the process name if present.
func ProcessFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(processKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithBatchID annotates context with the batch currently being processed.
func WithBatchID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, batchIDKey, id)
}

// BatchIDFromContext returns the batch identifier if present.
func BatchIDFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(batchIDKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithRequestID annotates context with a correlation identifier.
func WithRequestID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestIDFromContext extracts the correlation identifier if present.
func RequestIDFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(requestIDKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}
