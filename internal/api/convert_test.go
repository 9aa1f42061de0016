package api

import (
	"fmt"
	"net/http"
	"reflect"
	"testing"
	"time"

	"pagepreview/internal/services"
	"pagepreview/internal/settings"
	"pagepreview/internal/workflow"
)

func TestFromStatus(t *testing.T) {
	until := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	status := workflow.Status{
		Process:   "page_preview_screenshot",
		Running:   true,
		LockOwner: "node-a",
		LockUntil: &until,
		Batches:   2,
		Pending:   7,
		LastRun: &workflow.Summary{
			Processed: 5,
			Failed:    1,
			Duration:  1500 * time.Millisecond,
			Reason:    workflow.ReasonTimeBudget,
			Paused:    true,
			StartedAt: until.Add(-time.Minute),
		},
	}

	dto := FromStatus(status)
	if dto.LockUntil != "2026-03-01T12:00:00.000Z" {
		t.Fatalf("unexpected lock until %q", dto.LockUntil)
	}
	if dto.LastRun == nil || dto.LastRun.DurationMs != 1500 || !dto.LastRun.Paused || dto.LastRun.StartedAt != "2026-03-01T11:59:00.000Z" {
		t.Fatalf("unexpected last run %+v", dto.LastRun)
	}
	if dto.Pending != 7 || dto.Batches != 2 || !dto.Running {
		t.Fatalf("unexpected status %+v", dto)
	}
}

func TestErrorStatus(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{services.ErrNotFound, http.StatusNotFound},
		{fmt.Errorf("wrapped: %w", services.ErrNotPublic), http.StatusUnprocessableEntity},
		{services.ErrValidation, http.StatusBadRequest},
		{services.ErrLockContention, http.StatusConflict},
		{services.ErrRenderService, http.StatusBadGateway},
		{services.ErrNoOutput, http.StatusBadGateway},
		{services.ErrPersistence, http.StatusServiceUnavailable},
		{fmt.Errorf("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		if got := ErrorStatus(tc.err); got != tc.want {
			t.Errorf("ErrorStatus(%v) = %d, want %d", tc.err, got, tc.want)
		}
	}
}

func TestSettingsPatchMapsKeys(t *testing.T) {
	got := SettingsPatch(map[string]any{"postTypes": []any{"post"}, "featuredImageFallback": false, "bogus": 1})
	want := map[string]any{"post_types": []any{"post"}, "featured_image_fallback": false}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("unexpected patch %#v", got)
	}
}

func TestFromSettingsNeverReturnsNullTypes(t *testing.T) {
	dto := FromSettings(settings.Settings{}, nil)
	if dto.PostTypes == nil {
		t.Fatal("expected empty slice")
	}
}
