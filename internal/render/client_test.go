package render_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"pagepreview/internal/render"
	"pagepreview/internal/services"
)

func TestRenderPostsJSONRequest(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json; charset=utf-8" {
			t.Errorf("unexpected content type %q", ct)
		}
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &got)
		_, _ = w.Write([]byte(`{"success":true,"images":{"1920x1080":"aGVsbG8="}}`))
	}))
	defer srv.Close()

	client := render.NewClient(srv.URL, time.Second, srv.Client())
	resp, err := client.Render(context.Background(), render.Request{
		URL:       "https://example.test/about/",
		Sizes:     []string{"1920x1080", "800x360"},
		Crop:      true,
		UserAgent: "HandyPlugins Page Previewer",
		Delay:     3,
		Extra:     map[string]any{"full_page": true, "url": "ignored"},
	})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if resp.Images["1920x1080"] != "aGVsbG8=" {
		t.Fatalf("unexpected images %#v", resp.Images)
	}

	if got["url"] != "https://example.test/about/" || got["userAgent"] != "HandyPlugins Page Previewer" {
		t.Fatalf("unexpected request body %#v", got)
	}
	if got["crop"] != true || got["delay"] != float64(3) || got["full_page"] != true {
		t.Fatalf("unexpected request body %#v", got)
	}
	sizes, _ := got["sizes"].([]any)
	if len(sizes) != 2 || sizes[0] != "1920x1080" {
		t.Fatalf("unexpected sizes %#v", got["sizes"])
	}
}

func TestRenderFailures(t *testing.T) {
	cases := []struct {
		name    string
		status  int
		body    string
		message string
	}{
		{"non-2xx", http.StatusBadGateway, "upstream down", "status 502"},
		{"success false", http.StatusOK, `{"success":false,"message":"Invalid URL"}`, "Invalid URL"},
		{"bad json", http.StatusOK, `<html>`, "decode response"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			}))
			defer srv.Close()

			_, err := render.NewClient(srv.URL, time.Second, srv.Client()).Render(context.Background(), render.Request{URL: "https://example.test"})
			if !errors.Is(err, services.ErrRenderService) {
				t.Fatalf("expected ErrRenderService, got %v", err)
			}
			if !strings.Contains(err.Error(), tc.message) {
				t.Fatalf("expected %q in %q", tc.message, err.Error())
			}
		})
	}
}

func TestRenderTimeout(t *testing.T) {
	done := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-done:
		}
	}))
	defer srv.Close()
	defer close(done)

	start := time.Now()
	_, err := render.NewClient(srv.URL, 50*time.Millisecond, srv.Client()).Render(context.Background(), render.Request{URL: "https://example.test"})
	if !errors.Is(err, services.ErrRenderService) {
		t.Fatalf("expected ErrRenderService, got %v", err)
	}
	if time.Since(start) > 2*time.Second {
		t.Fatal("request was not bounded by the timeout")
	}
}
