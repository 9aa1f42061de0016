package preview

import (
	"context"
	"fmt"

	"pagepreview/internal/logging"
	"pagepreview/internal/services"
)

// Delete removes the images and record of id. An item without a record is
// left untouched.
func (g *Generator) Delete(ctx context.Context, id int64) error {
	ctx = services.WithContentID(ctx, id)
	_, ok, err := g.content.GetMeta(ctx, id, MetaKey)
	if err != nil {
		return fmt.Errorf("load preview record: %w", err)
	}
	if !ok {
		return nil
	}

	names, err := g.files.Glob(ctx, filePattern(id))
	if err != nil {
		return fmt.Errorf("list preview images for %d: %w", id, err)
	}
	for _, name := range names {
		if err := g.files.Delete(ctx, name); err != nil {
			return fmt.Errorf("delete preview image %s: %w", name, err)
		}
	}
	if err := g.content.DeleteMeta(ctx, id, MetaKey); err != nil {
		return services.Wrap(services.ErrPersistence, "preview", "delete record", "", err)
	}

	logging.WithContext(ctx, g.logger).Info("preview deleted",
		logging.String(logging.FieldEventType, "preview_deleted"),
		logging.Int("files", len(names)),
	)
	return nil
}

// DeleteAll removes the whole preview directory and every stored record. It
// returns the number of records removed.
func (g *Generator) DeleteAll(ctx context.Context) (int, error) {
	if err := g.files.RemoveAll(ctx, "."); err != nil {
		return 0, fmt.Errorf("remove preview directory: %w", err)
	}
	removed, err := g.content.DeleteMetaAll(ctx, MetaKey)
	if err != nil {
		return 0, services.Wrap(services.ErrPersistence, "preview", "delete records", "", err)
	}
	g.logger.Info("all preview data deleted",
		logging.String(logging.FieldEventType, "preview_reset"),
		logging.Int("records", removed),
	)
	return removed, nil
}
