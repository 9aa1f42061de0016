package content

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"pagepreview/internal/database"
	"pagepreview/internal/services"
)

// Store is the SQLite-backed Gateway.
type Store struct {
	db      *sql.DB
	siteURL string

	mu    sync.RWMutex
	hooks []DeleteHook
}

var _ Gateway = (*Store)(nil)

// NewStore returns a store over a migrated database. siteURL is used for
// permalinks of sites without their own URL.
func NewStore(db *sql.DB, siteURL string) *Store {
	return &Store{db: db, siteURL: strings.TrimRight(siteURL, "/")}
}

// OnDelete registers a hook that runs before every content deletion.
func (s *Store) OnDelete(hook DeleteHook) {
	if hook == nil {
		return
	}
	s.mu.Lock()
	s.hooks = append(s.hooks, hook)
	s.mu.Unlock()
}

func notFound(id int64) error {
	return services.Wrap(services.ErrNotFound, "content", "get", fmt.Sprintf("content item %d", id), nil)
}

const itemColumns = "id, site_id, type, status, title, slug, thumbnail_url, created_at, updated_at"

func scanItem(scanner interface{ Scan(...any) error }) (*Item, error) {
	var (
		item             Item
		created, updated int64
	)
	if err := scanner.Scan(&item.ID, &item.SiteID, &item.Type, &item.Status, &item.Title, &item.Slug, &item.ThumbnailURL, &created, &updated); err != nil {
		return nil, err
	}
	item.CreatedAt = time.Unix(created, 0).UTC()
	item.UpdatedAt = time.Unix(updated, 0).UTC()
	return &item, nil
}

// Create inserts item and returns it with its assigned ID.
func (s *Store) Create(ctx context.Context, item Item) (*Item, error) {
	if strings.TrimSpace(item.Type) == "" {
		return nil, services.Wrap(services.ErrValidation, "content", "create", "type is required", nil)
	}
	if item.SiteID == 0 {
		item.SiteID = 1
	}
	if item.Status == "" {
		item.Status = "draft"
	}
	now := time.Now().UTC().Truncate(time.Second)
	res, err := database.Exec(ctx, s.db,
		"INSERT INTO content_items (site_id, type, status, title, slug, thumbnail_url, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?)",
		item.SiteID, item.Type, item.Status, item.Title, item.Slug, item.ThumbnailURL, now.Unix(), now.Unix())
	if err != nil {
		return nil, fmt.Errorf("insert content item: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("insert content item: %w", err)
	}
	item.ID = id
	item.CreatedAt = now
	item.UpdatedAt = now
	return &item, nil
}

// Update overwrites the mutable fields of an existing item.
func (s *Store) Update(ctx context.Context, item Item) error {
	res, err := database.Exec(ctx, s.db,
		"UPDATE content_items SET type = ?, status = ?, title = ?, slug = ?, thumbnail_url = ?, updated_at = ? WHERE id = ?",
		item.Type, item.Status, item.Title, item.Slug, item.ThumbnailURL, time.Now().Unix(), item.ID)
	if err != nil {
		return fmt.Errorf("update content item %d: %w", item.ID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return notFound(item.ID)
	}
	return nil
}

// Delete runs deletion hooks and removes the item with its metadata. Hook
// failures abort the deletion.
func (s *Store) Delete(ctx context.Context, id int64) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	s.mu.RLock()
	hooks := append([]DeleteHook(nil), s.hooks...)
	s.mu.RUnlock()
	for _, hook := range hooks {
		if err := hook(ctx, id); err != nil {
			return fmt.Errorf("delete hook for content %d: %w", id, err)
		}
	}
	if _, err := database.Exec(ctx, s.db, "DELETE FROM content_items WHERE id = ?", id); err != nil {
		return fmt.Errorf("delete content item %d: %w", id, err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, id int64) (*Item, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+itemColumns+" FROM content_items WHERE id = ?", id)
	item, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound(id)
	}
	if err != nil {
		return nil, fmt.Errorf("get content item %d: %w", id, err)
	}
	return item, nil
}

// Permalink returns {site}/{slug}/, or {site}/?p={id} for items without a
// slug.
func (s *Store) Permalink(ctx context.Context, id int64) (string, error) {
	item, err := s.Get(ctx, id)
	if err != nil {
		return "", err
	}
	base, err := s.siteBase(ctx, item.SiteID)
	if err != nil {
		return "", err
	}
	slug := strings.Trim(item.Slug, "/")
	if slug == "" {
		return base + "/?p=" + strconv.FormatInt(item.ID, 10), nil
	}
	return base + "/" + slug + "/", nil
}

func (s *Store) siteBase(ctx context.Context, siteID int64) (string, error) {
	var url string
	err := s.db.QueryRowContext(ctx, "SELECT url FROM sites WHERE id = ?", siteID).Scan(&url)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("lookup site %d: %w", siteID, err)
	}
	if url = strings.TrimRight(strings.TrimSpace(url), "/"); url != "" {
		return url, nil
	}
	return s.siteURL, nil
}

func (s *Store) IsPubliclyViewable(ctx context.Context, id int64) (bool, error) {
	item, err := s.Get(ctx, id)
	if err != nil {
		return false, err
	}
	return item.Status == StatusPublish, nil
}

func (s *Store) GetMeta(ctx context.Context, id int64, key string) (string, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx,
		"SELECT meta_value FROM content_meta WHERE content_id = ? AND meta_key = ?", id, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get meta %s for %d: %w", key, id, err)
	}
	return value, true, nil
}

func (s *Store) SetMeta(ctx context.Context, id int64, key, value string) error {
	_, err := database.Exec(ctx, s.db, `INSERT INTO content_meta (content_id, meta_key, meta_value) VALUES (?, ?, ?)
		ON CONFLICT(content_id, meta_key) DO UPDATE SET meta_value = excluded.meta_value`, id, key, value)
	if err != nil {
		return fmt.Errorf("set meta %s for %d: %w", key, id, err)
	}
	return nil
}

func (s *Store) DeleteMeta(ctx context.Context, id int64, key string) error {
	if _, err := database.Exec(ctx, s.db, "DELETE FROM content_meta WHERE content_id = ? AND meta_key = ?", id, key); err != nil {
		return fmt.Errorf("delete meta %s for %d: %w", key, id, err)
	}
	return nil
}

func (s *Store) DeleteMetaAll(ctx context.Context, key string) (int, error) {
	res, err := database.Exec(ctx, s.db, "DELETE FROM content_meta WHERE meta_key = ?", key)
	if err != nil {
		return 0, fmt.Errorf("delete meta %s: %w", key, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete meta %s: %w", key, err)
	}
	return int(n), nil
}

func (s *Store) List(ctx context.Context, q Query) ([]Item, error) {
	var (
		where []string
		args  []any
	)
	if q.SiteID > 0 {
		where = append(where, "site_id = ?")
		args = append(args, q.SiteID)
	}
	if len(q.Types) > 0 {
		where = append(where, "type IN ("+strings.TrimSuffix(strings.Repeat("?,", len(q.Types)), ",")+")")
		for _, t := range q.Types {
			args = append(args, t)
		}
	}
	if q.MissingMeta != "" {
		where = append(where, "NOT EXISTS (SELECT 1 FROM content_meta m WHERE m.content_id = content_items.id AND m.meta_key = ?)")
		args = append(args, q.MissingMeta)
	}

	query := "SELECT " + itemColumns + " FROM content_items"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY id"
	if q.PerPage > 0 {
		page := q.Page
		if page < 1 {
			page = 1
		}
		query += " LIMIT ? OFFSET ?"
		args = append(args, q.PerPage, (page-1)*q.PerPage)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list content: %w", err)
	}
	defer rows.Close()

	var items []Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("list content: %w", err)
		}
		items = append(items, *item)
	}
	return items, rows.Err()
}

// AddSite registers another site of a multisite install.
func (s *Store) AddSite(ctx context.Context, name, url string) (*Site, error) {
	res, err := database.Exec(ctx, s.db, "INSERT INTO sites (name, url) VALUES (?, ?)", name, strings.TrimRight(url, "/"))
	if err != nil {
		return nil, fmt.Errorf("insert site: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("insert site: %w", err)
	}
	return &Site{ID: id, Name: name, URL: strings.TrimRight(url, "/")}, nil
}

// Sites returns sites ordered by ID. limit <= 0 returns all of them.
func (s *Store) Sites(ctx context.Context, limit int) ([]Site, error) {
	query := "SELECT id, name, url FROM sites ORDER BY id"
	var args []any
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list sites: %w", err)
	}
	defer rows.Close()
	var sites []Site
	for rows.Next() {
		var site Site
		if err := rows.Scan(&site.ID, &site.Name, &site.URL); err != nil {
			return nil, fmt.Errorf("list sites: %w", err)
		}
		sites = append(sites, site)
	}
	return sites, rows.Err()
}

// Types lists content types that can carry previews: the built-in page and
// post types plus every type in use, minus attachments.
func (s *Store) Types(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT DISTINCT type FROM content_items WHERE type != ? ORDER BY type", TypeAttachment)
	if err != nil {
		return nil, fmt.Errorf("list content types: %w", err)
	}
	defer rows.Close()

	seen := map[string]struct{}{"page": {}, "post": {}}
	types := []string{"page", "post"}
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, fmt.Errorf("list content types: %w", err)
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		types = append(types, t)
	}
	return types, rows.Err()
}
