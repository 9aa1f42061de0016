package preview

import (
	"context"
	"fmt"
	"time"

	"pagepreview/internal/content"
	"pagepreview/internal/logging"
)

// PrimarySite is the site processed when a batch is not network-wide.
const PrimarySite int64 = 1

// rateWindow is the window the batch rate limit is expressed over.
const rateWindow = 10 * time.Minute

// BatchOptions selects the content a Batch generates previews for.
type BatchOptions struct {
	// Types overrides the post types from settings when non-empty.
	Types       []string
	PerPage     int
	OnlyMissing bool
	// RateLimit is the number of renders allowed per ten minutes. Batch
	// sleeps rateWindow/RateLimit between pages. Zero disables the pause.
	RateLimit   int
	NetworkWide bool
	// Sites limits a network-wide batch to the first N sites. Zero means all.
	Sites int
}

// BatchHooks receive progress from a running batch. Nil hooks are skipped.
type BatchHooks struct {
	SiteStarted  func(site content.Site)
	SiteFinished func(site content.Site)
	Item         func(id int64, record Record, err error)
}

// BatchSummary counts the outcome of a batch.
type BatchSummary struct {
	Sites     int
	Succeeded int
	Failed    int
	Elapsed   time.Duration
}

// Batch generates previews synchronously for pages of existing content,
// outside the job runner.
type Batch struct {
	gen   *Generator
	sleep func(ctx context.Context, d time.Duration) error
}

// NewBatch returns a batch driver for gen.
func NewBatch(gen *Generator) *Batch {
	return &Batch{gen: gen, sleep: sleepContext}
}

// WithSleep replaces the pause between pages.
func (b *Batch) WithSleep(sleep func(ctx context.Context, d time.Duration) error) *Batch {
	b.sleep = sleep
	return b
}

// PageDelay returns the pause between pages for a rate limit.
func PageDelay(rateLimit int) time.Duration {
	if rateLimit <= 0 {
		return 0
	}
	return rateWindow / time.Duration(rateLimit)
}

// Run processes every selected item. Per-item failures go to hooks and the
// summary; only context cancellation and content store errors stop the run.
func (b *Batch) Run(ctx context.Context, opts BatchOptions, hooks BatchHooks) (summary BatchSummary, err error) {
	start := b.gen.now()
	defer func() {
		summary.Elapsed = b.gen.now().Sub(start)
	}()

	if opts.PerPage <= 0 {
		opts.PerPage = 100
	}
	types := opts.Types
	if len(types) == 0 {
		current, err := b.gen.settings.Load(ctx)
		if err != nil {
			return summary, fmt.Errorf("load settings: %w", err)
		}
		types = current.PostTypes
	}

	sites := []content.Site{{ID: PrimarySite}}
	if opts.NetworkWide {
		listed, err := b.gen.content.Sites(ctx, opts.Sites)
		if err != nil {
			return summary, err
		}
		sites = listed
	}

	for _, site := range sites {
		if hooks.SiteStarted != nil && opts.NetworkWide {
			hooks.SiteStarted(site)
		}
		if err := b.runSite(ctx, site.ID, types, opts, hooks, &summary); err != nil {
			return summary, err
		}
		summary.Sites++
		if hooks.SiteFinished != nil && opts.NetworkWide {
			hooks.SiteFinished(site)
		}
	}
	b.gen.logger.Info("batch create finished",
		logging.Int("sites", summary.Sites),
		logging.Int("succeeded", summary.Succeeded),
		logging.Int("failed", summary.Failed),
		logging.String(logging.FieldEventType, "batch_completed"))
	return summary, nil
}

func (b *Batch) runSite(ctx context.Context, siteID int64, types []string, opts BatchOptions, hooks BatchHooks, summary *BatchSummary) error {
	pages, err := b.pager(ctx, siteID, types, opts)
	if err != nil {
		return err
	}
	delay := PageDelay(opts.RateLimit)
	for page := 1; ; page++ {
		ids, err := pages(page)
		if err != nil {
			return err
		}
		if len(ids) == 0 {
			return nil
		}
		if page > 1 && delay > 0 {
			if err := b.sleep(ctx, delay); err != nil {
				return err
			}
		}
		for _, id := range ids {
			if err := ctx.Err(); err != nil {
				return err
			}
			record, genErr := b.gen.Generate(ctx, id)
			if genErr != nil {
				summary.Failed++
			} else {
				summary.Succeeded++
			}
			if hooks.Item != nil {
				hooks.Item(id, record, genErr)
			}
		}
	}
}

// pager returns a function yielding the IDs of one page. Items without a
// preview are listed once up front so generating them does not shift later
// pages of the missing-preview query.
func (b *Batch) pager(ctx context.Context, siteID int64, types []string, opts BatchOptions) (func(page int) ([]int64, error), error) {
	query := content.Query{SiteID: siteID, Types: types, PerPage: opts.PerPage}
	if !opts.OnlyMissing {
		return func(page int) ([]int64, error) {
			query.Page = page
			items, err := b.gen.content.List(ctx, query)
			if err != nil {
				return nil, err
			}
			return itemIDs(items), nil
		}, nil
	}

	query.PerPage = 0
	query.MissingMeta = MetaKey
	items, err := b.gen.content.List(ctx, query)
	if err != nil {
		return nil, err
	}
	all := itemIDs(items)
	return func(page int) ([]int64, error) {
		from := (page - 1) * opts.PerPage
		if from >= len(all) {
			return nil, nil
		}
		return all[from:min(from+opts.PerPage, len(all))], nil
	}, nil
}

func itemIDs(items []content.Item) []int64 {
	ids := make([]int64, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.ID)
	}
	return ids
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
