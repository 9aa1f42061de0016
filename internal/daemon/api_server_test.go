package daemon

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"pagepreview/internal/api"
	"pagepreview/internal/app"
	"pagepreview/internal/content"
	"pagepreview/internal/errreport"
	"pagepreview/internal/logging"
	"pagepreview/internal/notifications"
	"pagepreview/internal/render"
	"pagepreview/internal/testsupport"
)

const testToken = "secret-token"

type stubRenderer struct {
	images map[string]string
}

func (s *stubRenderer) Render(context.Context, render.Request) (*render.Response, error) {
	return &render.Response{Success: true, Images: s.images}, nil
}

type silentNotifier struct{}

func (silentNotifier) Publish(context.Context, notifications.Event, notifications.Payload) error {
	return nil
}

func newTestDaemon(t *testing.T) *Daemon {
	t.Helper()
	renderSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(renderSrv.Close)

	cfg := testsupport.NewConfig(t, testsupport.WithAPIToken(testToken), testsupport.WithRenderEndpoint(renderSrv.URL))
	png := testsupport.PNGBase64(t)
	a, err := app.New(context.Background(), cfg,
		app.WithLogger(logging.NewNop()),
		app.WithRenderer(&stubRenderer{images: map[string]string{"1920x1080": png, "800x360": png, "320x560": png}}),
		app.WithNotifier(silentNotifier{}),
		app.WithReporter(errreport.Noop{}),
	)
	if err != nil {
		t.Fatalf("app.New: %v", err)
	}
	d, err := New(a)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = d.Close() })
	return d
}

func (d *Daemon) serve(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Authorization", "Bearer "+testToken)
	w := httptest.NewRecorder()
	d.api.router.ServeHTTP(w, req)
	return w
}

func decodeBody[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response %q: %v", w.Body.String(), err)
	}
	return out
}

func addPage(t *testing.T, d *Daemon, itemType, slug string) *content.Item {
	t.Helper()
	return testsupport.AddContent(t, d.app.Content, itemType, content.StatusPublish, slug)
}

func TestAuthRequiredExceptHealth(t *testing.T) {
	d := newTestDaemon(t)

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	w := httptest.NewRecorder()
	d.api.router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("health: expected 200, got %d", w.Code)
	}
	if w.Header().Get("X-Request-ID") == "" {
		t.Fatal("expected request id header")
	}

	req = httptest.NewRequest(http.MethodGet, "/api/queue", nil)
	w = httptest.NewRecorder()
	d.api.router.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("queue without token: expected 401, got %d", w.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/queue", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	w = httptest.NewRecorder()
	d.api.router.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("queue with wrong token: expected 401, got %d", w.Code)
	}

	if w := d.serve(t, http.MethodGet, "/api/queue", nil); w.Code != http.StatusOK {
		t.Fatalf("queue with token: expected 200, got %d", w.Code)
	}
}

func TestGenerateViewAndDeletePreview(t *testing.T) {
	d := newTestDaemon(t)
	item := addPage(t, d, "page", "about")
	base := "/api/previews/" + strconv.FormatInt(item.ID, 10)

	view := decodeBody[api.Preview](t, d.serve(t, http.MethodGet, base, nil))
	if view.HasPreview {
		t.Fatalf("expected no preview yet, got %+v", view)
	}

	w := d.serve(t, http.MethodPost, base+"/generate", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("generate: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	record := decodeBody[api.PreviewRecord](t, w)
	if len(record.Sizes) != 3 {
		t.Fatalf("expected 3 sizes, got %v", record.Sizes)
	}

	view = decodeBody[api.Preview](t, d.serve(t, http.MethodGet, base, nil))
	if !view.HasPreview || view.Src == "" || view.Srcset == "" {
		t.Fatalf("expected rendered preview, got %+v", view)
	}

	if w := d.serve(t, http.MethodDelete, base, nil); w.Code != http.StatusNoContent {
		t.Fatalf("delete: expected 204, got %d", w.Code)
	}
	view = decodeBody[api.Preview](t, d.serve(t, http.MethodGet, base, nil))
	if view.HasPreview {
		t.Fatal("expected preview removed")
	}
}

func TestGenerateErrorsMapToStatus(t *testing.T) {
	d := newTestDaemon(t)
	post := addPage(t, d, "post", "news")

	cases := []struct {
		path string
		code int
		kind string
	}{
		{"/api/previews/99999/generate", http.StatusNotFound, "not_found"},
		{"/api/previews/" + strconv.FormatInt(post.ID, 10) + "/generate", http.StatusUnprocessableEntity, "invalid_post_type"},
	}
	for _, tc := range cases {
		w := d.serve(t, http.MethodPost, tc.path, nil)
		if w.Code != tc.code {
			t.Fatalf("%s: expected %d, got %d", tc.path, tc.code, w.Code)
		}
		body := decodeBody[api.ErrorResponse](t, w)
		if body.Code != tc.kind {
			t.Fatalf("%s: expected code %q, got %q", tc.path, tc.kind, body.Code)
		}
	}

	if w := d.serve(t, http.MethodGet, "/api/previews/abc", nil); w.Code != http.StatusBadRequest {
		t.Fatalf("invalid id: expected 400, got %d", w.Code)
	}
}

func TestBulkRequestsAreValidated(t *testing.T) {
	d := newTestDaemon(t)

	for _, body := range []any{
		map[string]any{"ids": []int64{}},
		map[string]any{"ids": []int64{1, -4}},
		map[string]any{},
	} {
		if w := d.serve(t, http.MethodPost, "/api/previews/bulk-create", body); w.Code != http.StatusBadRequest {
			t.Fatalf("body %v: expected 400, got %d", body, w.Code)
		}
	}

	a := addPage(t, d, "page", "one")
	b := addPage(t, d, "page", "two")
	w := d.serve(t, http.MethodPost, "/api/previews/bulk-create", api.BulkRequest{IDs: []int64{a.ID, b.ID}})
	if w.Code != http.StatusAccepted {
		t.Fatalf("bulk create: expected 202, got %d: %s", w.Code, w.Body.String())
	}
	if got := decodeBody[api.QueuedResponse](t, w); got.Queued != 2 {
		t.Fatalf("expected 2 queued, got %d", got.Queued)
	}

	w = d.serve(t, http.MethodPost, "/api/previews/bulk-delete", api.BulkRequest{IDs: []int64{a.ID, b.ID}})
	if w.Code != http.StatusOK {
		t.Fatalf("bulk delete: expected 200, got %d", w.Code)
	}
	if got := decodeBody[api.BulkDeleteResponse](t, w); got.Requested != 2 || got.Succeeded != 2 {
		t.Fatalf("unexpected bulk delete result %+v", got)
	}
}

func TestContentHooks(t *testing.T) {
	d := newTestDaemon(t)
	page := addPage(t, d, "page", "landing")
	draft := testsupport.AddContent(t, d.app.Content, "page", "draft", "draft")

	w := d.serve(t, http.MethodPost, "/api/hooks/content-saved", api.ContentRequest{ID: draft.ID})
	if got := decodeBody[api.QueuedResponse](t, w); w.Code != http.StatusAccepted || got.Queued != 0 {
		t.Fatalf("draft: expected nothing queued, got %d %+v", w.Code, got)
	}
	w = d.serve(t, http.MethodPost, "/api/hooks/content-saved", api.ContentRequest{ID: page.ID})
	if got := decodeBody[api.QueuedResponse](t, w); got.Queued != 1 {
		t.Fatalf("published page: expected 1 queued, got %+v", got)
	}

	if w := d.serve(t, http.MethodPost, "/api/hooks/content-deleted", api.ContentRequest{ID: page.ID}); w.Code != http.StatusNoContent {
		t.Fatalf("content deleted: expected 204, got %d", w.Code)
	}
	if w := d.serve(t, http.MethodPost, "/api/hooks/content-deleted", map[string]any{"id": 0}); w.Code != http.StatusBadRequest {
		t.Fatalf("missing id: expected 400, got %d", w.Code)
	}
}

func TestSettingsEndpoints(t *testing.T) {
	d := newTestDaemon(t)

	current := decodeBody[api.Settings](t, d.serve(t, http.MethodGet, "/api/settings", nil))
	if len(current.PostTypes) != 1 || current.PostTypes[0] != "page" || current.Delay != 3 {
		t.Fatalf("unexpected defaults %+v", current)
	}

	w := d.serve(t, http.MethodPut, "/api/settings", map[string]any{"postTypes": []string{"page", "post"}, "zoom": false})
	if w.Code != http.StatusOK {
		t.Fatalf("update: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	updated := decodeBody[api.Settings](t, w)
	if len(updated.PostTypes) != 2 || updated.Zoom {
		t.Fatalf("unexpected update %+v", updated)
	}
	if !updated.Crop {
		t.Fatal("expected untouched crop to keep its default")
	}

	w = d.serve(t, http.MethodPut, "/api/settings", map[string]any{"postTypes": []string{"post"}})
	if w.Code != http.StatusOK {
		t.Fatalf("shrink: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	shrunk := decodeBody[api.Settings](t, w)
	if len(shrunk.PostTypes) != 1 || shrunk.PostTypes[0] != "post" {
		t.Fatalf("expected post_types [post], got %v", shrunk.PostTypes)
	}
	if shrunk.Zoom {
		t.Fatal("expected earlier zoom override to survive")
	}

	if w := d.serve(t, http.MethodPut, "/api/settings", map[string]any{"delay": 500}); w.Code != http.StatusBadRequest {
		t.Fatalf("invalid delay: expected 400, got %d", w.Code)
	}

	if w := d.serve(t, http.MethodPost, "/api/settings/reset", nil); w.Code != http.StatusOK {
		t.Fatalf("reset: expected 200, got %d", w.Code)
	}

	types := decodeBody[map[string][]string](t, d.serve(t, http.MethodGet, "/api/types", nil))
	if _, ok := types["types"]; !ok {
		t.Fatalf("unexpected types payload %v", types)
	}
}

func TestQueueCancel(t *testing.T) {
	d := newTestDaemon(t)
	w := d.serve(t, http.MethodPost, "/api/queue/cancel", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("cancel: expected 200, got %d", w.Code)
	}
	if got := decodeBody[api.CancelResponse](t, w); got.Running {
		t.Fatalf("expected no runner after cancel, got %+v", got)
	}
}
