package preview

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"

	"pagepreview/internal/config"
	"pagepreview/internal/content"
	"pagepreview/internal/logging"
	"pagepreview/internal/render"
	"pagepreview/internal/services"
	"pagepreview/internal/settings"
	"pagepreview/internal/storage"
	"pagepreview/internal/workflow"
)

// SettingsSource supplies the current preview settings.
type SettingsSource interface {
	Load(ctx context.Context) (settings.Settings, error)
}

// Dependencies are the collaborators a Generator talks to.
type Dependencies struct {
	Content  content.Gateway
	Settings SettingsSource
	Renderer render.Service
	Files    storage.Filesystem
	Logger   *slog.Logger

	// Clock stamps cache-busting URL parameters. Defaults to time.Now.
	Clock func() time.Time
}

// Generator produces and removes previews for content items.
type Generator struct {
	content        content.Gateway
	settings       SettingsSource
	renderer       render.Service
	files          storage.Filesystem
	logger         *slog.Logger
	now            func() time.Time
	ext            Extensions
	baseURL        string
	placeholderURL string
	userAgent      string
	sizes          []string
}

// NewGenerator builds a generator from configuration, collaborators, and
// registered extensions.
func NewGenerator(cfg *config.Config, deps Dependencies, ext Extensions) *Generator {
	now := deps.Clock
	if now == nil {
		now = time.Now
	}
	sizes := cfg.Render.Sizes
	if len(sizes) == 0 {
		sizes = config.DefaultSizes
	}
	return &Generator{
		content:        deps.Content,
		settings:       deps.Settings,
		renderer:       deps.Renderer,
		files:          deps.Files,
		logger:         logging.NewComponentLogger(deps.Logger, "preview"),
		now:            now,
		ext:            ext,
		baseURL:        strings.TrimRight(cfg.Paths.PreviewBaseURL, "/"),
		placeholderURL: cfg.Paths.PlaceholderURL,
		userAgent:      cfg.Render.UserAgent,
		sizes:          append([]string(nil), sizes...),
	}
}

// Sizes returns the configured size labels in request order.
func (g *Generator) Sizes() []string {
	return append([]string(nil), g.sizes...)
}

// Generate renders and records a preview for id. Eligibility failures
// return ErrNotFound, ErrInvalidType, ErrNotPublic, or ErrExcluded in that
// order of precedence. Render failures return ErrRenderService and a reply
// without any storable image returns ErrNoOutput.
func (g *Generator) Generate(ctx context.Context, id int64) (Record, error) {
	ctx = services.WithContentID(ctx, id)
	logger := logging.WithContext(ctx, g.logger)

	current, err := g.settings.Load(ctx)
	if err != nil {
		return Record{}, fmt.Errorf("load settings: %w", err)
	}
	if err := g.checkEligible(ctx, id, current); err != nil {
		return Record{}, err
	}

	permalink, err := g.content.Permalink(ctx, id)
	if err != nil {
		return Record{}, fmt.Errorf("resolve permalink: %w", err)
	}

	req := g.ext.applyRequest(ctx, id, render.Request{
		URL:       permalink,
		Sizes:     g.Sizes(),
		Crop:      current.Crop,
		UserAgent: g.userAgent,
		Delay:     current.Delay,
	})

	logger.Debug("requesting preview render",
		logging.String("url", req.URL),
		logging.Int("sizes", len(req.Sizes)),
	)
	resp, err := g.renderer.Render(ctx, req)
	if err != nil {
		return Record{}, err
	}

	record := Record{ContentID: id, Sizes: g.writeImages(ctx, logger, id, resp.Images)}
	if len(record.Sizes) == 0 {
		return Record{}, services.Wrap(services.ErrNoOutput, "preview", "generate",
			fmt.Sprintf("content %d: %d images returned, none stored", id, len(resp.Images)), nil)
	}

	value, err := encodeRecord(record)
	if err != nil {
		return Record{}, err
	}
	if err := g.content.SetMeta(ctx, id, MetaKey, value); err != nil {
		return Record{}, services.Wrap(services.ErrPersistence, "preview", "save record", "", err)
	}

	logger.Info("preview generated",
		logging.String(logging.FieldEventType, "preview_generated"),
		logging.Int("sizes", len(record.Sizes)),
	)
	return record, nil
}

func (g *Generator) checkEligible(ctx context.Context, id int64, current settings.Settings) error {
	item, err := g.content.Get(ctx, id)
	if err != nil {
		if errors.Is(err, services.ErrNotFound) {
			return err
		}
		return fmt.Errorf("load content %d: %w", id, err)
	}
	if !current.AllowsType(item.Type) {
		return services.Wrap(services.ErrInvalidType, "preview", "eligibility",
			fmt.Sprintf("content %d has type %q", id, item.Type), nil)
	}
	public, err := g.content.IsPubliclyViewable(ctx, id)
	if err != nil {
		return fmt.Errorf("check visibility of %d: %w", id, err)
	}
	if !public {
		return services.Wrap(services.ErrNotPublic, "preview", "eligibility",
			fmt.Sprintf("content %d", id), nil)
	}
	if g.ext.excluded(ctx, id) {
		return services.Wrap(services.ErrExcluded, "preview", "eligibility",
			fmt.Sprintf("content %d", id), nil)
	}
	return nil
}

// writeImages stores every decodable PNG and returns the URLs of the ones
// written. Failures are logged and skipped.
func (g *Generator) writeImages(ctx context.Context, logger *slog.Logger, id int64, images map[string]string) map[string]string {
	if err := g.files.MkdirAll(ctx, ".", 0o755); err != nil {
		logger.Warn("create preview directory failed",
			logging.Error(err),
			logging.String(logging.FieldEventType, "preview_mkdir_failed"),
		)
	}

	stamp := g.now().Unix()
	urls := make(map[string]string, len(images))
	for _, label := range orderLabels(images, g.sizes) {
		key := strings.ToLower(label)
		data, err := decodeImage(images[label])
		if err != nil {
			logger.Warn("discarding preview image",
				logging.String("size", key),
				logging.Error(err),
				logging.String(logging.FieldEventType, "preview_image_invalid"),
			)
			continue
		}
		name := fileName(id, key)
		if err := g.files.PutContents(ctx, name, data); err != nil {
			logger.Warn("write preview image failed",
				logging.String("size", key),
				logging.String("file", name),
				logging.Error(err),
				logging.String(logging.FieldEventType, "preview_write_failed"),
			)
			continue
		}
		urls[key] = fmt.Sprintf("%s/%s?t=%d", g.baseURL, name, stamp)
	}
	return urls
}

func decodeImage(encoded string) ([]byte, error) {
	encoded = strings.TrimSpace(encoded)
	if i := strings.Index(encoded, ";base64,"); i >= 0 && strings.HasPrefix(encoded, "data:") {
		encoded = encoded[i+len(";base64,"):]
	}
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("decode base64: %w", err)
	}
	if len(data) == 0 {
		return nil, errors.New("empty image")
	}
	if mtype := mimetype.Detect(data); !mtype.Is("image/png") {
		return nil, fmt.Errorf("unexpected image type %s", mtype.String())
	}
	return data, nil
}

// Record returns the stored preview record for id, or nil when there is none.
func (g *Generator) Record(ctx context.Context, id int64) (*Record, error) {
	value, ok, err := g.content.GetMeta(ctx, id, MetaKey)
	if err != nil {
		return nil, fmt.Errorf("load preview record: %w", err)
	}
	if !ok {
		return nil, nil
	}
	return decodeRecord(id, value)
}

// EligibleTypes lists the content types that may be configured for previews.
func (g *Generator) EligibleTypes(ctx context.Context) ([]string, error) {
	types, err := g.content.Types(ctx)
	if err != nil {
		return nil, err
	}
	return g.ext.applyPostTypes(ctx, types), nil
}

// Task adapts Generate to the job runner. Every item is dropped after one
// attempt; failures are returned for logging only.
func (g *Generator) Task() workflow.Task[int64] {
	return func(ctx context.Context, id int64) (workflow.Outcome[int64], error) {
		_, err := g.Generate(ctx, id)
		return workflow.Done[int64](), err
	}
}
