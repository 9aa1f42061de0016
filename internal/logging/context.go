package logging

import (
	"context"
	"log/slog"

	"pagepreview/internal/services"
)

const (
	// FieldComponent is the standardized structured logging key for component names.
	FieldComponent = "component"
	// FieldContentID is the standardized structured logging key for content item identifiers.
	FieldContentID = "content_id"
	// FieldProcess is the standardized structured logging key for job queue process names.
	FieldProcess = "process"
	// FieldBatchID is the standardized structured logging key for persisted batch identifiers.
	FieldBatchID = "batch_id"
	// FieldEventType classifies log lines for filtering (e.g. "runner_paused").
	FieldEventType = "event_type"
	// FieldErrorHint carries the next step an operator should take.
	FieldErrorHint = "error_hint"
	// FieldErrorKind carries the services.Kind classification of an error.
	FieldErrorKind = "error_kind"
	// FieldCorrelationID is the standardized structured logging key for request correlation identifiers.
	FieldCorrelationID = "correlation_id"
)

// ContextFields extracts standardized slog attributes from the provided context.
func ContextFields(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}
	fields := make([]slog.Attr, 0, 4)
	if id, ok := services.ContentIDFromContext(ctx); ok {
		fields = append(fields, slog.Int64(FieldContentID, id))
	}
	if process, ok := services.ProcessFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldProcess, process))
	}
	if batch, ok := services.BatchIDFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldBatchID, batch))
	}
	if rid, ok := services.RequestIDFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldCorrelationID, rid))
	}
	return fields
}

// WithContext returns a logger augmented with structured fields derived from the supplied context.
func WithContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	fields := ContextFields(ctx)
	if len(fields) == 0 {
		return logger
	}
	return logger.With(attrsToArgs(fields)...)
}
