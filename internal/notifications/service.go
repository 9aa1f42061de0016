package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"pagepreview/internal/config"
)

const userAgent = "pagepreview/0.1.0"

// Event names a notification kind.
type Event string

const (
	EventQueueCompleted Event = "queue_completed"
	EventQueueCancelled Event = "queue_cancelled"
	EventPreviewFailed  Event = "preview_failed"
	EventBatchCompleted Event = "batch_completed"
	EventError          Event = "error"
	EventTest           Event = "test"
)

// Payload carries event fields. Values are formatted with %v.
type Payload map[string]any

// Service publishes events.
type Service interface {
	Publish(ctx context.Context, event Event, payload Payload) error
}

// NewService builds a notifier backed by ntfy when a topic is configured.
func NewService(cfg *config.Config) Service {
	if cfg == nil {
		return noopService{}
	}
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}
	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &ntfyService{
		endpoint:       topic,
		client:         &http.Client{Timeout: timeout},
		queueCompleted: cfg.Notifications.QueueCompleted,
		errors:         cfg.Notifications.Errors,
	}
}

type message struct {
	title    string
	body     string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint       string
	client         *http.Client
	queueCompleted bool
	errors         bool
}

func (n *ntfyService) Publish(ctx context.Context, event Event, payload Payload) error {
	msg, ok := n.format(event, payload)
	if !ok {
		return nil
	}
	return n.send(ctx, msg)
}

func (n *ntfyService) format(event Event, payload Payload) (message, bool) {
	switch event {
	case EventQueueCompleted:
		if !n.queueCompleted {
			return message{}, false
		}
		processed := payload.count("processed")
		failed := payload.count("failed")
		duration := payload.duration("duration")
		if processed+failed == 0 {
			return message{}, false
		}
		msg := message{title: "Page Preview - Queue Complete", tags: []string{"pagepreview", "queue", "completed"}}
		if failed == 0 {
			msg.body = fmt.Sprintf("Generated %d previews in %s", processed, duration)
		} else {
			msg.title = "Page Preview - Queue Complete (with errors)"
			msg.body = fmt.Sprintf("Generated %d previews, %d failed in %s", processed, failed, duration)
		}
		return msg, true
	case EventBatchCompleted:
		if !n.queueCompleted {
			return message{}, false
		}
		return message{
			title: "Page Preview - Batch Complete",
			body: fmt.Sprintf("Batch create finished: %d succeeded, %d failed in %s",
				payload.count("succeeded"), payload.count("failed"), payload.duration("duration")),
			tags: []string{"pagepreview", "batch", "completed"},
		}, true
	case EventQueueCancelled:
		return message{
			title: "Page Preview - Queue Cancelled",
			body:  fmt.Sprintf("Cancelled %d pending batches", payload.count("batches")),
			tags:  []string{"pagepreview", "queue", "cancelled"},
		}, true
	case EventPreviewFailed:
		if !n.errors {
			return message{}, false
		}
		msg := message{
			title:    "Page Preview - Preview Failed",
			body:     fmt.Sprintf("Preview for content %s failed: %s", payload.text("content_id"), payload.text("error")),
			tags:     []string{"pagepreview", "preview", "failed"},
			priority: "high",
		}
		if count := payload.count("count"); count > 1 {
			msg.title = "Page Preview - Previews Failed"
			msg.body = fmt.Sprintf("%d previews failed (content %s). Last error: %s",
				count, payload.text("content_id"), payload.text("error"))
		}
		return msg, true
	case EventError:
		if !n.errors {
			return message{}, false
		}
		var b strings.Builder
		b.WriteString("Error")
		if label := payload.text("context"); label != "" {
			b.WriteString(" with ")
			b.WriteString(label)
		}
		b.WriteString(": ")
		if text := payload.text("error"); text != "" {
			b.WriteString(text)
		} else {
			b.WriteString("unknown")
		}
		return message{
			title:    "Page Preview - Error",
			body:     b.String(),
			tags:     []string{"pagepreview", "error", "alert"},
			priority: "high",
		}, true
	case EventTest:
		return message{
			title:    "Page Preview - Test",
			body:     "Notification system test",
			tags:     []string{"pagepreview", "test"},
			priority: "low",
		}, true
	default:
		return message{}, false
	}
}

func (n *ntfyService) send(ctx context.Context, msg message) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(msg.body))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if msg.title != "" {
		req.Header.Set("Title", msg.title)
	}
	if len(msg.tags) > 0 {
		req.Header.Set("Tags", strings.Join(msg.tags, ","))
	}
	if msg.priority != "" && msg.priority != "default" {
		req.Header.Set("Priority", msg.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

func (p Payload) text(key string) string {
	v, ok := p[key]
	if !ok || v == nil {
		return ""
	}
	if err, ok := v.(error); ok {
		return strings.TrimSpace(err.Error())
	}
	return strings.TrimSpace(fmt.Sprint(v))
}

func (p Payload) count(key string) int {
	switch v := p[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return 0
	}
}

func (p Payload) duration(key string) string {
	d, _ := p[key].(time.Duration)
	d = d.Round(time.Second)
	if d <= 0 {
		return "0s"
	}
	return d.String()
}

type noopService struct{}

func (noopService) Publish(context.Context, Event, Payload) error { return nil }
