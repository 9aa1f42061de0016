package api

import (
	"errors"
	"net/http"
	"time"

	"pagepreview/internal/preflight"
	"pagepreview/internal/preview"
	"pagepreview/internal/services"
	"pagepreview/internal/settings"
	"pagepreview/internal/workflow"
)

// FromSummary converts a runner summary.
func FromSummary(summary *workflow.Summary) *RunSummary {
	if summary == nil {
		return nil
	}
	dto := &RunSummary{
		Processed:  summary.Processed,
		Failed:     summary.Failed,
		Requeued:   summary.Requeued,
		DurationMs: summary.Duration.Milliseconds(),
		Paused:     summary.Paused,
		Reason:     summary.Reason,
	}
	if !summary.StartedAt.IsZero() {
		dto.StartedAt = formatTime(summary.StartedAt)
	}
	return dto
}

// FromStatus converts a runner status snapshot.
func FromStatus(status workflow.Status) QueueStatus {
	dto := QueueStatus{
		Process:   status.Process,
		Running:   status.Running,
		LockOwner: status.LockOwner,
		Batches:   status.Batches,
		Pending:   status.Pending,
		LastRun:   FromSummary(status.LastRun),
		LastError: status.LastError,
	}
	if status.LockUntil != nil {
		dto.LockUntil = formatTime(*status.LockUntil)
	}
	return dto
}

// FromChecks converts preflight results.
func FromChecks(results []preflight.Result) []CheckResult {
	out := make([]CheckResult, 0, len(results))
	for _, r := range results {
		out = append(out, CheckResult{Name: r.Name, Passed: r.Passed, Warning: r.Warning, Detail: r.Detail})
	}
	return out
}

// FromView converts a preview view.
func FromView(view preview.View) Preview {
	return Preview{
		ContentID:  view.ContentID,
		Link:       view.Link,
		Src:        view.Src,
		Srcset:     view.Srcset,
		ClassName:  view.ClassName(),
		HasPreview: view.HasPreview,
		Sizes:      view.Sizes,
	}
}

// FromRecord converts a preview record.
func FromRecord(record preview.Record) PreviewRecord {
	return PreviewRecord{ContentID: record.ContentID, Sizes: record.Sizes}
}

// FromBulkResult converts a bulk delete result.
func FromBulkResult(result preview.BulkResult) BulkDeleteResponse {
	return BulkDeleteResponse{
		Requested: result.Requested,
		Succeeded: result.Succeeded,
		Failed:    result.Failed,
		Errors:    result.Errors,
	}
}

// FromSettings converts the settings record.
func FromSettings(s settings.Settings, eligible []string) Settings {
	types := s.PostTypes
	if types == nil {
		types = []string{}
	}
	return Settings{
		PostTypes:             types,
		Crop:                  s.Crop,
		Zoom:                  s.Zoom,
		Delay:                 s.Delay,
		FeaturedImageFallback: s.FeaturedImageFallback,
		EligibleTypes:         eligible,
	}
}

// SettingsPatch translates a client patch keyed by DTO field names into the
// stored settings keys. Unknown keys are dropped.
func SettingsPatch(patch map[string]any) map[string]any {
	keys := map[string]string{
		"postTypes":             "post_types",
		"crop":                  "crop",
		"zoom":                  "zoom",
		"delay":                 "delay",
		"featuredImageFallback": "featured_image_fallback",
	}
	out := make(map[string]any, len(patch))
	for k, v := range patch {
		if stored, ok := keys[k]; ok {
			out[stored] = v
		}
	}
	return out
}

// ErrorStatus maps err onto an HTTP status code.
func ErrorStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, services.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, services.ErrInvalidType),
		errors.Is(err, services.ErrNotPublic),
		errors.Is(err, services.ErrExcluded):
		return http.StatusUnprocessableEntity
	case errors.Is(err, services.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, services.ErrLockContention):
		return http.StatusConflict
	case errors.Is(err, services.ErrRenderService),
		errors.Is(err, services.ErrNoOutput):
		return http.StatusBadGateway
	case errors.Is(err, services.ErrPersistence):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// FromError builds the error body for err.
func FromError(err error) ErrorResponse {
	if err == nil {
		return ErrorResponse{}
	}
	return ErrorResponse{Error: err.Error(), Code: services.Kind(err)}
}

func formatTime(t time.Time) string {
	return t.UTC().Format(dateTimeFormat)
}
