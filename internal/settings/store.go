package settings

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"pagepreview/internal/database"
	"pagepreview/internal/services"
)

// NetworkSite is the options scope shared by every site.
const NetworkSite int64 = 0

// Store reads and writes the settings record in the options table.
type Store struct {
	db     *sql.DB
	siteID int64
}

// NewStore returns a store for the options scope siteID. Use NetworkSite for
// network-wide settings.
func NewStore(db *sql.DB, siteID int64) *Store {
	return &Store{db: db, siteID: siteID}
}

func wrapStore(op string, err error) error {
	return services.Wrap(services.ErrPersistence, "settings", op, "", err)
}

// Stored returns the raw overrides as saved, without defaults.
func (s *Store) Stored(ctx context.Context) (map[string]any, error) {
	var value string
	err := s.db.QueryRowContext(ctx,
		"SELECT value FROM options WHERE site_id = ? AND name = ?", s.siteID, OptionName,
	).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return map[string]any{}, nil
	}
	if err != nil {
		return nil, wrapStore("load", err)
	}
	return decodeStored(value)
}

// Load returns the stored overrides merged over the defaults.
func (s *Store) Load(ctx context.Context) (Settings, error) {
	stored, err := s.Stored(ctx)
	if err != nil {
		return Settings{}, err
	}
	return Sanitize(Merge(Defaults(), stored)), nil
}

// Save replaces the stored overrides with settings.
func (s *Store) Save(ctx context.Context, settings Settings) error {
	settings = Sanitize(settings.Map())
	if err := settings.Validate(); err != nil {
		return err
	}
	return s.write(ctx, settings.Map())
}

// Update replaces the stored overrides named in patch, sanitizes the result,
// and saves it. Patch values replace whole keys, so a shorter post_types list
// drops the types it omits. Keys absent from both fall back to the defaults.
func (s *Store) Update(ctx context.Context, patch map[string]any) (Settings, error) {
	stored, err := s.Stored(ctx)
	if err != nil {
		return Settings{}, err
	}
	for k, v := range patch {
		stored[k] = v
	}
	next := Sanitize(Merge(Defaults(), stored))
	if err := next.Validate(); err != nil {
		return Settings{}, err
	}
	if err := s.write(ctx, next.Map()); err != nil {
		return Settings{}, err
	}
	return next, nil
}

// Clear removes the stored overrides so reads return the defaults.
func (s *Store) Clear(ctx context.Context) error {
	if _, err := database.Exec(ctx, s.db,
		"DELETE FROM options WHERE site_id = ? AND name = ?", s.siteID, OptionName); err != nil {
		return wrapStore("clear", err)
	}
	return nil
}

func (s *Store) write(ctx context.Context, values map[string]any) error {
	payload, err := json.Marshal(values)
	if err != nil {
		return fmt.Errorf("encode %s: %w", OptionName, err)
	}
	_, err = database.Exec(ctx, s.db, `INSERT INTO options (site_id, name, value, updated_at) VALUES (?, ?, ?, ?)
ON CONFLICT (site_id, name) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		s.siteID, OptionName, string(payload), time.Now().Unix())
	if err != nil {
		return wrapStore("save", err)
	}
	return nil
}

// Raw writes values verbatim. Intended for seeding and tests.
func (s *Store) Raw(ctx context.Context, values map[string]any) error {
	return s.write(ctx, values)
}
