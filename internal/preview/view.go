package preview

import (
	"context"
	"strconv"
	"strings"

	"pagepreview/internal/logging"
)

// Image classes used by the preview view.
const (
	ClassImage       = "page-preview-img"
	ClassZoom        = "zoom"
	ClassThumbnail   = "page-preview-fallback-thumbnail"
	ClassPlaceholder = "page-preview-placeholder"
)

// View is what a listing shows for one content item.
type View struct {
	ContentID  int64             `json:"content_id"`
	Link       string            `json:"link"`
	Src        string            `json:"src"`
	Srcset     string            `json:"srcset,omitempty"`
	Classes    []string          `json:"classes"`
	HasPreview bool              `json:"has_preview"`
	Sizes      map[string]string `json:"sizes,omitempty"`
}

// ClassName joins the view classes for an HTML class attribute.
func (v View) ClassName() string {
	return strings.Join(v.Classes, " ")
}

// View builds the listing view for id. Items without a record fall back to
// their thumbnail or the placeholder image depending on settings.
func (g *Generator) View(ctx context.Context, id int64) (View, error) {
	item, err := g.content.Get(ctx, id)
	if err != nil {
		return View{}, err
	}
	current, err := g.settings.Load(ctx)
	if err != nil {
		return View{}, err
	}
	link, err := g.content.Permalink(ctx, id)
	if err != nil {
		return View{}, err
	}

	view := View{
		ContentID: id,
		Link:      link,
		Src:       g.placeholderURL,
		Classes:   []string{ClassImage},
	}

	record, err := g.Record(ctx, id)
	if err != nil {
		g.logger.Warn("ignoring unreadable preview record",
			logging.Int64(logging.FieldContentID, id),
			logging.Error(err),
		)
	}

	if record != nil {
		if current.Zoom {
			view.Classes = append(view.Classes, ClassZoom)
		}
		labels := record.Labels(g.sizes)
		view.Src = record.Sizes[labels[0]]
		view.Srcset = srcset(record.Sizes, labels)
		view.HasPreview = true
		view.Sizes = record.Sizes
		return view, nil
	}

	if current.FeaturedImageFallback {
		if item.ThumbnailURL != "" {
			view.Classes = append(view.Classes, ClassThumbnail)
			view.Src = item.ThumbnailURL
		} else {
			view.Classes = append(view.Classes, ClassPlaceholder)
		}
	}
	return view, nil
}

func srcset(sizes map[string]string, labels []string) string {
	parts := make([]string, 0, len(labels))
	for _, label := range labels {
		width, ok := labelWidth(label)
		if !ok {
			continue
		}
		parts = append(parts, sizes[label]+" "+strconv.Itoa(width)+"w")
	}
	return strings.Join(parts, ", ")
}
