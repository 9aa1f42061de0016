package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"pagepreview/internal/app"
	"pagepreview/internal/content"
	"pagepreview/internal/preview"
)

func newCreateCommand(ctx *commandContext) *cobra.Command {
	var (
		postTypes   string
		perPage     int
		onlyMissing bool
		rateLimit   int
		networkWide string
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Bulk create page previews",
		Long: `Generate previews for existing content, page by page, without going through the queue.

The rate limit is the number of renders allowed per 10 minute window; the
command pauses between pages to stay under it.`,
		Example: "  pagepreview create --post_type=post,page --only-missing --network-wide=5",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := preview.BatchOptions{
				Types:       splitList(postTypes),
				PerPage:     perPage,
				OnlyMissing: onlyMissing,
				RateLimit:   rateLimit,
			}
			if cmd.Flags().Changed("network-wide") {
				opts.NetworkWide = true
				// Non-numeric values process every site.
				if n, err := strconv.Atoi(strings.TrimSpace(networkWide)); err == nil && n > 0 {
					opts.Sites = n
				}
			}
			return ctx.withApp(cmd, func(a *app.App) error {
				return runCreate(cmd, a, opts)
			})
		},
	}

	cmd.Flags().StringVar(&postTypes, "post_type", "", "Comma-separated list of post types (defaults to the configured post types)")
	cmd.Flags().IntVar(&perPage, "per-page", 100, "Number of items to process per page")
	cmd.Flags().BoolVar(&onlyMissing, "only-missing", false, "Only generate previews for items without one")
	cmd.Flags().IntVar(&rateLimit, "rate-limit", 100, "Renders allowed per 10 minute window")
	cmd.Flags().StringVar(&networkWide, "network-wide", "", "Process the first N sites of a multisite network, 0 for all sites")
	cmd.Flags().Lookup("network-wide").NoOptDefVal = "0"
	return cmd
}

func runCreate(cmd *cobra.Command, a *app.App, opts preview.BatchOptions) error {
	p := newPrinter(cmd)
	hooks := preview.BatchHooks{
		SiteStarted: func(site content.Site) {
			p.linef("Processing site: %d", site.ID)
		},
		SiteFinished: func(site content.Site) {
			p.linef("Finished processing site: %d", site.ID)
		},
		Item: func(id int64, record preview.Record, err error) {
			p.linef("Create preview for post: %d", id)
			if err != nil {
				p.status(strconv.FormatInt(id, 10), statusError, err.Error())
				return
			}
			p.status(strconv.FormatInt(id, 10), statusOK, "preview created")
			for _, label := range record.Labels(a.Generator.Sizes()) {
				p.linef("Preview URL: %s", record.Sizes[label])
			}
		},
	}

	summary, err := preview.NewBatch(a.Generator).Run(cmd.Context(), opts, hooks)
	if err != nil {
		return err
	}
	p.linef("Success: All posts have been processed. Time taken: %s.", formatElapsed(summary.Elapsed))
	if summary.Failed > 0 {
		p.linef("%d succeeded, %d failed", summary.Succeeded, summary.Failed)
	}
	return nil
}

// formatElapsed renders d as HH:MM:SS.
func formatElapsed(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	total := int64(d / time.Second)
	return fmt.Sprintf("%02d:%02d:%02d", total/3600, (total/60)%60, total%60)
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
