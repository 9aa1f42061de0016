package preview_test

import (
	"context"
	"reflect"
	"testing"

	"pagepreview/internal/content"
	"pagepreview/internal/preview"
	"pagepreview/internal/testsupport"
)

func TestViewWithPreview(t *testing.T) {
	h := newHarness(t, preview.Extensions{})
	ctx := context.Background()
	item := testsupport.AddContent(t, h.store, "page", content.StatusPublish, "pricing")
	record, err := h.gen.Generate(ctx, item.ID)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	view, err := h.gen.View(ctx, item.ID)
	if err != nil {
		t.Fatalf("View: %v", err)
	}
	if !view.HasPreview || view.ClassName() != "page-preview-img zoom" {
		t.Fatalf("unexpected view %+v", view)
	}
	if view.Src != record.Sizes["1920x1080"] {
		t.Fatalf("src should be the first size, got %q", view.Src)
	}
	want := record.Sizes["1920x1080"] + " 1920w, " + record.Sizes["800x360"] + " 800w, " + record.Sizes["320x560"] + " 320w"
	if view.Srcset != want {
		t.Fatalf("unexpected srcset %q", view.Srcset)
	}
	if view.Link != "https://example.test/pricing/" {
		t.Fatalf("unexpected link %q", view.Link)
	}
}

func TestViewFallbacks(t *testing.T) {
	h := newHarness(t, preview.Extensions{})
	ctx := context.Background()

	withThumb, err := h.store.Create(ctx, content.Item{Type: "page", Status: content.StatusPublish, Slug: "thumb", ThumbnailURL: "https://example.test/thumb.jpg"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	bare := testsupport.AddContent(t, h.store, "page", content.StatusPublish, "bare")

	view, err := h.gen.View(ctx, withThumb.ID)
	if err != nil {
		t.Fatalf("View: %v", err)
	}
	if view.HasPreview || view.Src != "https://example.test/thumb.jpg" ||
		!reflect.DeepEqual(view.Classes, []string{preview.ClassImage, preview.ClassThumbnail}) {
		t.Fatalf("unexpected thumbnail view %+v", view)
	}

	view, err = h.gen.View(ctx, bare.ID)
	if err != nil {
		t.Fatalf("View: %v", err)
	}
	if view.Src != h.cfg.Paths.PlaceholderURL ||
		!reflect.DeepEqual(view.Classes, []string{preview.ClassImage, preview.ClassPlaceholder}) {
		t.Fatalf("unexpected placeholder view %+v", view)
	}

	if err := h.settings.Raw(ctx, map[string]any{"featured_image_fallback": false}); err != nil {
		t.Fatalf("Raw: %v", err)
	}
	view, err = h.gen.View(ctx, withThumb.ID)
	if err != nil {
		t.Fatalf("View: %v", err)
	}
	if view.Src != h.cfg.Paths.PlaceholderURL || !reflect.DeepEqual(view.Classes, []string{preview.ClassImage}) {
		t.Fatalf("fallback disabled should show the bare placeholder, got %+v", view)
	}
}

func TestIsLocalSite(t *testing.T) {
	cases := map[string]bool{
		"http://localhost":            true,
		"http://localhost:8080/":      true,
		"http://127.0.0.1":            true,
		"https://mysite.local":        true,
		"https://shop.test/":          true,
		"https://app.docksal.site":    true,
		"https://blog.lndo.site":      true,
		"https://site.dev.cc":         true,
		"https://example.com":         false,
		"https://testing.example.org": false,
		"https://203.0.113.10":        false,
		"":                            false,
	}
	for url, want := range cases {
		if got := preview.IsLocalSite(url); got != want {
			t.Errorf("IsLocalSite(%q) = %v, want %v", url, got, want)
		}
	}
}
