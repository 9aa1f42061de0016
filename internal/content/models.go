package content

import (
	"context"
	"time"
)

// StatusPublish marks content visible to anonymous visitors.
const StatusPublish = "publish"

// TypeAttachment is never eligible for previews.
const TypeAttachment = "attachment"

// Item is one piece of host content.
type Item struct {
	ID           int64     `json:"id"`
	SiteID       int64     `json:"site_id"`
	Type         string    `json:"type"`
	Status       string    `json:"status"`
	Title        string    `json:"title"`
	Slug         string    `json:"slug"`
	ThumbnailURL string    `json:"thumbnail_url,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Site is one site of a multisite install. Single-site installs have site 1.
type Site struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	URL  string `json:"url"`
}

// Query selects a page of content items.
type Query struct {
	SiteID int64
	Types  []string
	Page   int
	// PerPage <= 0 returns every match.
	PerPage int
	// MissingMeta restricts results to items without this metadata key.
	MissingMeta string
}

// DeleteHook runs before a content item is removed.
type DeleteHook func(ctx context.Context, id int64) error

// Gateway is the view of the content store needed to generate and remove
// previews.
type Gateway interface {
	Get(ctx context.Context, id int64) (*Item, error)
	Permalink(ctx context.Context, id int64) (string, error)
	IsPubliclyViewable(ctx context.Context, id int64) (bool, error)
	GetMeta(ctx context.Context, id int64, key string) (string, bool, error)
	SetMeta(ctx context.Context, id int64, key, value string) error
	DeleteMeta(ctx context.Context, id int64, key string) error
	DeleteMetaAll(ctx context.Context, key string) (int, error)
	List(ctx context.Context, q Query) ([]Item, error)
	Sites(ctx context.Context, limit int) ([]Site, error)
	Types(ctx context.Context) ([]string, error)
}
