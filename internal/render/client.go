package render

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"pagepreview/internal/config"
	"pagepreview/internal/services"
)

const (
	contentType      = "application/json; charset=utf-8"
	maxResponseBytes = 64 << 20
	defaultTimeout   = 15 * time.Second
)

// Request is the body posted to the screenshot service. Extra carries
// additional top-level fields added by request filters.
type Request struct {
	URL       string         `json:"url"`
	Sizes     []string       `json:"sizes"`
	Crop      bool           `json:"crop"`
	UserAgent string         `json:"userAgent"`
	Delay     int            `json:"delay"`
	Extra     map[string]any `json:"-"`
}

// MarshalJSON flattens Extra next to the fixed fields. Fixed fields win on
// key collisions.
func (r Request) MarshalJSON() ([]byte, error) {
	type plain Request
	base, err := json.Marshal(plain(r))
	if err != nil || len(r.Extra) == 0 {
		return base, err
	}
	merged := make(map[string]any, len(r.Extra)+5)
	for k, v := range r.Extra {
		merged[k] = v
	}
	var fixed map[string]any
	if err := json.Unmarshal(base, &fixed); err != nil {
		return nil, err
	}
	for k, v := range fixed {
		merged[k] = v
	}
	return json.Marshal(merged)
}

// Response is the service reply. Images maps size label to base64 PNG data.
type Response struct {
	Success bool              `json:"success"`
	Message string            `json:"message,omitempty"`
	Images  map[string]string `json:"images,omitempty"`
}

// Service renders screenshots.
type Service interface {
	Render(ctx context.Context, req Request) (*Response, error)
}

// HTTPDoer describes the HTTP client used by the render client.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client is the HTTP implementation of Service.
type Client struct {
	endpoint string
	timeout  time.Duration
	client   HTTPDoer
}

var _ Service = (*Client)(nil)

// NewClient constructs a client. A nil doer uses http.DefaultClient and a
// non-positive timeout uses 15 seconds.
func NewClient(endpoint string, timeout time.Duration, client HTTPDoer) *Client {
	if client == nil {
		client = http.DefaultClient
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{endpoint: strings.TrimSpace(endpoint), timeout: timeout, client: client}
}

// NewFromConfig builds a client from the render section.
func NewFromConfig(cfg *config.Config) *Client {
	return NewClient(cfg.Render.Endpoint, cfg.RenderTimeout(), nil)
}

func serviceError(op, message string, err error) error {
	return services.Wrap(services.ErrRenderService, "render", op, message, err)
}

// Render posts req and returns the decoded response. Transport failures,
// non-2xx statuses, undecodable bodies, and success=false replies all return
// an error wrapping services.ErrRenderService.
func (c *Client) Render(ctx context.Context, req Request) (*Response, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encode render request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, serviceError("build request", "", err)
	}
	httpReq.Header.Set("Content-Type", contentType)
	httpReq.Header.Set("Accept", "application/json")
	if req.UserAgent != "" {
		httpReq.Header.Set("User-Agent", req.UserAgent)
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, serviceError("post", "request failed", err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, serviceError("read response", "", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, serviceError("post", fmt.Sprintf("status %d: %s", resp.StatusCode, snippet(payload)), nil)
	}

	var decoded Response
	if err := json.Unmarshal(payload, &decoded); err != nil {
		return nil, serviceError("decode response", "", err)
	}
	if !decoded.Success {
		message := strings.TrimSpace(decoded.Message)
		if message == "" {
			message = "service reported failure"
		}
		return nil, serviceError("post", message, nil)
	}
	return &decoded, nil
}

func snippet(body []byte) string {
	text := strings.TrimSpace(string(body))
	if len(text) > 200 {
		text = text[:200] + "..."
	}
	return text
}
