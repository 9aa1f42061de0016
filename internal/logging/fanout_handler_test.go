package logging

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
)

func TestNewFanoutHandlerCollapses(t *testing.T) {
	if _, ok := newFanoutHandler(nil, nil).(NoopHandler); !ok {
		t.Fatal("expected NoopHandler for all nil handlers")
	}
	var buf bytes.Buffer
	inner := slog.NewJSONHandler(&buf, nil)
	if h := newFanoutHandler(nil, inner, nil); h != inner {
		t.Fatal("expected single non-nil handler to be returned unwrapped")
	}
}

func TestFanoutHandlerRespectsLevels(t *testing.T) {
	var infoBuf, errBuf bytes.Buffer
	info := slog.NewJSONHandler(&infoBuf, &slog.HandlerOptions{Level: slog.LevelInfo})
	errOnly := slog.NewJSONHandler(&errBuf, &slog.HandlerOptions{Level: slog.LevelError})

	logger := slog.New(newFanoutHandler(info, errOnly))
	if logger.Enabled(context.Background(), slog.LevelDebug) {
		t.Fatal("expected debug to be disabled")
	}

	logger.Info("hello")
	if !strings.Contains(infoBuf.String(), "hello") {
		t.Fatalf("expected info handler output, got %q", infoBuf.String())
	}
	if errBuf.Len() != 0 {
		t.Fatalf("expected error handler to skip info record, got %q", errBuf.String())
	}

	logger.With("component", "runner").Error("boom")
	if !strings.Contains(errBuf.String(), "boom") || !strings.Contains(errBuf.String(), "runner") {
		t.Fatalf("expected error handler to receive record with attrs, got %q", errBuf.String())
	}
}

func TestTeeLoggerDuplicatesOutput(t *testing.T) {
	var base, extra bytes.Buffer
	logger := TeeLogger(
		slog.New(slog.NewTextHandler(&base, nil)),
		slog.NewTextHandler(&extra, nil),
	)
	logger.Info("duplicated")
	if !strings.Contains(base.String(), "duplicated") || !strings.Contains(extra.String(), "duplicated") {
		t.Fatalf("expected both outputs, got %q and %q", base.String(), extra.String())
	}
}
