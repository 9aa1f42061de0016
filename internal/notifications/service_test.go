package notifications_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"pagepreview/internal/notifications"
	"pagepreview/internal/testsupport"
)

func TestNewServiceReturnsNoopWhenTopicMissing(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Notifications.NtfyTopic = ""
	svc := notifications.NewService(cfg)
	if err := svc.Publish(context.Background(), notifications.EventTest, nil); err != nil {
		t.Fatalf("expected noop notifier to return nil, got %v", err)
	}
}

func TestNtfyServiceFormatsPayloads(t *testing.T) {
	tests := []struct {
		name           string
		event          notifications.Event
		payload        notifications.Payload
		expectTitle    string
		expectMessage  string
		expectTags     string
		expectPriority string
	}{
		{
			name:          "queue completed",
			event:         notifications.EventQueueCompleted,
			payload:       notifications.Payload{"processed": 12, "failed": 0, "duration": 95 * time.Second},
			expectTitle:   "Page Preview - Queue Complete",
			expectMessage: "Generated 12 previews in 1m35s",
			expectTags:    "pagepreview,queue,completed",
		},
		{
			name:          "queue completed with errors",
			event:         notifications.EventQueueCompleted,
			payload:       notifications.Payload{"processed": 3, "failed": 2, "duration": 4 * time.Second},
			expectTitle:   "Page Preview - Queue Complete (with errors)",
			expectMessage: "Generated 3 previews, 2 failed in 4s",
			expectTags:    "pagepreview,queue,completed",
		},
		{
			name:           "preview failed",
			event:          notifications.EventPreviewFailed,
			payload:        notifications.Payload{"content_id": int64(42), "error": errors.New("render service error: status 502")},
			expectTitle:    "Page Preview - Preview Failed",
			expectMessage:  "Preview for content 42 failed: render service error: status 502",
			expectTags:     "pagepreview,preview,failed",
			expectPriority: "high",
		},
		{
			name:           "several previews failed",
			event:          notifications.EventPreviewFailed,
			payload:        notifications.Payload{"content_id": "4, 7, 9", "count": 3, "error": "render service error: status 502"},
			expectTitle:    "Page Preview - Previews Failed",
			expectMessage:  "3 previews failed (content 4, 7, 9). Last error: render service error: status 502",
			expectTags:     "pagepreview,preview,failed",
			expectPriority: "high",
		},
		{
			name:           "error",
			event:          notifications.EventError,
			payload:        notifications.Payload{"context": "runner", "error": "lock store unavailable"},
			expectTitle:    "Page Preview - Error",
			expectMessage:  "Error with runner: lock store unavailable",
			expectTags:     "pagepreview,error,alert",
			expectPriority: "high",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var captured struct {
				title    string
				tags     string
				priority string
				body     string
			}

			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.Method != http.MethodPost {
					t.Errorf("unexpected method: %s", r.Method)
				}
				captured.title = r.Header.Get("Title")
				captured.tags = r.Header.Get("Tags")
				captured.priority = r.Header.Get("Priority")
				body, err := io.ReadAll(r.Body)
				if err != nil {
					t.Errorf("read body: %v", err)
				}
				captured.body = string(body)
				w.WriteHeader(http.StatusOK)
			}))
			defer server.Close()

			cfg := testsupport.NewConfig(t)
			cfg.Notifications.NtfyTopic = server.URL
			cfg.Notifications.RequestTimeout = 5

			svc := notifications.NewService(cfg)
			if err := svc.Publish(context.Background(), tc.event, tc.payload); err != nil {
				t.Fatalf("notification returned error: %v", err)
			}

			if captured.title != tc.expectTitle {
				t.Fatalf("expected title %q, got %q", tc.expectTitle, captured.title)
			}
			if captured.body != tc.expectMessage {
				t.Fatalf("expected message %q, got %q", tc.expectMessage, captured.body)
			}
			if captured.tags != tc.expectTags {
				t.Fatalf("expected tags %q, got %q", tc.expectTags, captured.tags)
			}
			if captured.priority != tc.expectPriority {
				t.Fatalf("expected priority %q, got %q", tc.expectPriority, captured.priority)
			}
		})
	}
}

func TestNtfyServiceIgnoresSuppressedEvents(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("unexpected call for suppressed event: %s", r.URL.String())
	}))
	defer server.Close()

	cfg := testsupport.NewConfig(t)
	cfg.Notifications.NtfyTopic = server.URL
	cfg.Notifications.QueueCompleted = false
	cfg.Notifications.Errors = false

	svc := notifications.NewService(cfg)
	events := []notifications.Event{
		notifications.EventQueueCompleted,
		notifications.EventBatchCompleted,
		notifications.EventPreviewFailed,
		notifications.EventError,
		notifications.Event("unknown"),
	}
	for _, event := range events {
		if err := svc.Publish(context.Background(), event, notifications.Payload{"processed": 1}); err != nil {
			t.Fatalf("expected no error for suppressed event %s, got %v", event, err)
		}
	}
}

func TestNtfyServiceReportsHTTPErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "topic not found", http.StatusNotFound)
	}))
	defer server.Close()

	cfg := testsupport.NewConfig(t)
	cfg.Notifications.NtfyTopic = server.URL
	if err := notifications.NewService(cfg).Publish(context.Background(), notifications.EventTest, nil); err == nil {
		t.Fatal("expected error for 404 response")
	}
}
