package services_test

import (
	"context"
	"testing"

	"pagepreview/internal/services"
)

func TestContextHelpers(t *testing.T) {
	ctx := context.Background()
	ctx = services.WithContentID(ctx, 42)
	ctx = services.WithProcess(ctx, "page_preview_screenshot")
	ctx = services.WithBatchID(ctx, "batch-1")
	ctx = services.WithRequestID(ctx, "req-123")

	if id, ok := services.ContentIDFromContext(ctx); !ok || id != 42 {
		t.Fatalf("unexpected content id: %v %v", id, ok)
	}
	if process, ok := services.ProcessFromContext(ctx); !ok || process != "page_preview_screenshot" {
		t.Fatalf("unexpected process: %v %v", process, ok)
	}
	if batch, ok := services.BatchIDFromContext(ctx); !ok || batch != "batch-1" {
		t.Fatalf("unexpected batch: %v %v", batch, ok)
	}
	if rid, ok := services.RequestIDFromContext(ctx); !ok || rid != "req-123" {
		t.Fatalf("unexpected request id: %v %v", rid, ok)
	}
}

func TestBlankValuesPreserveContext(t *testing.T) {
	ctx := context.Background()
	ctx = services.WithProcess(ctx, "")
	ctx = services.WithBatchID(ctx, "")
	if _, ok := services.ProcessFromContext(ctx); ok {
		t.Fatal("expected no process value")
	}
	if _, ok := services.BatchIDFromContext(ctx); ok {
		t.Fatal("expected no batch value")
	}
}
