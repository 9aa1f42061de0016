package testsupport

import (
	"context"
	"database/sql"
	"testing"

	"pagepreview/internal/config"
	"pagepreview/internal/content"
	"pagepreview/internal/database"
)

// MustOpenDB opens the migrated application database for tests and registers
// cleanup.
func MustOpenDB(t testing.TB, cfg *config.Config) *sql.DB {
	t.Helper()

	db, err := database.Open(context.Background(), cfg.DatabasePath())
	if err != nil {
		t.Fatalf("database.Open: %v", err)
	}
	t.Cleanup(func() {
		_ = db.Close()
	})
	return db
}

// MustOpenContent returns a content store backed by db.
func MustOpenContent(t testing.TB, db *sql.DB, cfg *config.Config) *content.Store {
	t.Helper()
	return content.NewStore(db, cfg.Paths.SiteURL)
}

// AddContent inserts a content item and fails the test on error.
func AddContent(t testing.TB, store *content.Store, itemType, status, slug string) *content.Item {
	t.Helper()

	item, err := store.Create(context.Background(), content.Item{
		Type:   itemType,
		Status: status,
		Title:  slug,
		Slug:   slug,
	})
	if err != nil {
		t.Fatalf("content.Create: %v", err)
	}
	return item
}
