package errreport

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// Handler is a slog.Handler that reports records at Error level and above.
// Combine it with the console or JSON handler through logging.TeeLogger.
type Handler struct {
	reporter Reporter
	attrs    []slog.Attr
}

// NewHandler returns a handler reporting to reporter.
func NewHandler(reporter Reporter) *Handler {
	return &Handler{reporter: reporter}
}

func (h *Handler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= slog.LevelError
}

func (h *Handler) Handle(ctx context.Context, record slog.Record) error {
	if record.Level < slog.LevelError {
		return nil
	}
	tags := make(map[string]string)
	var cause error
	collect := func(attr slog.Attr) bool {
		if attr.Key == "error" {
			if err, ok := attr.Value.Any().(error); ok {
				cause = err
				return true
			}
		}
		tags[attr.Key] = attr.Value.String()
		return true
	}
	for _, attr := range h.attrs {
		collect(attr)
	}
	record.Attrs(collect)

	var err error
	if cause != nil {
		err = fmt.Errorf("%s: %w", record.Message, cause)
	} else {
		err = errors.New(record.Message)
	}
	h.reporter.Report(ctx, err, tags)
	return nil
}

func (h *Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := *h
	next.attrs = append(append([]slog.Attr(nil), h.attrs...), attrs...)
	return &next
}

// WithGroup is a no-op; grouped attributes are reported flat.
func (h *Handler) WithGroup(string) slog.Handler {
	return h
}
