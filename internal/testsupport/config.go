package testsupport

import (
	"path/filepath"
	"testing"

	"pagepreview/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.DataDir = filepath.Join(base, "data")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.PreviewDir = filepath.Join(base, "page-previews")
	cfgVal.Paths.SiteURL = "https://example.test"
	cfgVal.Paths.PreviewBaseURL = "https://example.test/page-previews"
	cfgVal.Paths.PlaceholderURL = "https://example.test/page-previews/placeholder.png"
	cfgVal.Paths.APIBind = "127.0.0.1:0"
	cfgVal.Runner.HealthCheckInterval = 0

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithRenderEndpoint points the render client at a test server.
func WithRenderEndpoint(endpoint string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Render.Endpoint = endpoint
	}
}

// WithAPIToken sets the bearer token required by the HTTP API.
func WithAPIToken(token string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Paths.APIToken = token
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.DataDir)
}
