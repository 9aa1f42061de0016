package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"pagepreview/internal/app"
	"pagepreview/internal/content"
	"pagepreview/internal/preview"
)

func newContentCommand(ctx *commandContext) *cobra.Command {
	contentCmd := &cobra.Command{
		Use:   "content",
		Short: "Manage host content and sites",
	}
	contentCmd.AddCommand(newContentAddCommand(ctx))
	contentCmd.AddCommand(newContentPublishCommand(ctx))
	contentCmd.AddCommand(newContentRemoveCommand(ctx))
	contentCmd.AddCommand(newContentListCommand(ctx))
	contentCmd.AddCommand(newContentSitesCommand(ctx))
	contentCmd.AddCommand(newContentAddSiteCommand(ctx))
	return contentCmd
}

// savedTriggers queues without starting a background runner; the command
// exits before a run could finish.
func savedTriggers(a *app.App) *preview.Triggers {
	return preview.NewTriggers(a.Generator, a.Backend, a.Runner.Process(), nil)
}

func newContentAddCommand(ctx *commandContext) *cobra.Command {
	var item content.Item
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a content item",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withApp(cmd, func(a *app.App) error {
				created, err := a.Content.Create(cmd.Context(), item)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Created %s %d (%s)\n", created.Type, created.ID, created.Status)
				queued, err := savedTriggers(a).OnContentSaved(cmd.Context(), created.ID)
				if err != nil {
					return err
				}
				if queued {
					fmt.Fprintln(out, "Preview queued")
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&item.Type, "type", "page", "Content type")
	cmd.Flags().StringVar(&item.Status, "status", content.StatusPublish, "Content status")
	cmd.Flags().StringVar(&item.Title, "title", "", "Title")
	cmd.Flags().StringVar(&item.Slug, "slug", "", "URL slug")
	cmd.Flags().StringVar(&item.ThumbnailURL, "thumbnail", "", "Featured image URL")
	cmd.Flags().Int64Var(&item.SiteID, "site", 1, "Site ID")
	return cmd
}

func newContentPublishCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "publish <id>",
		Short: "Publish a content item and queue its preview",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil || id <= 0 {
				return fmt.Errorf("invalid id %q", args[0])
			}
			return ctx.withApp(cmd, func(a *app.App) error {
				item, err := a.Content.Get(cmd.Context(), id)
				if err != nil {
					return err
				}
				item.Status = content.StatusPublish
				if err := a.Content.Update(cmd.Context(), *item); err != nil {
					return err
				}
				queued, err := savedTriggers(a).OnContentSaved(cmd.Context(), id)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Published %d (preview queued: %s)\n", id, yesNo(queued))
				return nil
			})
		},
	}
}

func newContentRemoveCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <id>...",
		Short: "Delete content items along with their previews",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseIDs(args)
			if err != nil {
				return err
			}
			return ctx.withApp(cmd, func(a *app.App) error {
				for _, id := range ids {
					if err := a.Content.Delete(cmd.Context(), id); err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "Removed %d\n", id)
				}
				return nil
			})
		},
	}
}

func newContentListCommand(ctx *commandContext) *cobra.Command {
	var (
		postType string
		site     int64
		asJSON   bool
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List content items and their preview state",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withApp(cmd, func(a *app.App) error {
				items, err := a.Content.List(cmd.Context(), content.Query{
					SiteID: site,
					Types:  splitList(postType),
				})
				if err != nil {
					return err
				}
				p := newPrinter(cmd)
				if asJSON {
					return p.json(items)
				}
				rows := make([][]string, 0, len(items))
				for _, item := range items {
					record, err := a.Generator.Record(cmd.Context(), item.ID)
					if err != nil {
						return err
					}
					rows = append(rows, []string{
						strconv.FormatInt(item.ID, 10),
						item.Type,
						item.Status,
						item.Slug,
						yesNo(record != nil),
					})
				}
				p.table([]string{"ID", "Type", "Status", "Slug", "Preview"}, rows, alignRight)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&postType, "post_type", "", "Comma separated content types")
	cmd.Flags().Int64Var(&site, "site", preview.PrimarySite, "Site ID")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output JSON")
	return cmd
}

func newContentSitesCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "sites",
		Short: "List sites",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withApp(cmd, func(a *app.App) error {
				sites, err := a.Content.Sites(cmd.Context(), 0)
				if err != nil {
					return err
				}
				rows := make([][]string, 0, len(sites))
				for _, site := range sites {
					rows = append(rows, []string{strconv.FormatInt(site.ID, 10), site.Name, site.URL})
				}
				newPrinter(cmd).table([]string{"ID", "Name", "URL"}, rows, alignRight)
				return nil
			})
		},
	}
}

func newContentAddSiteCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "add-site <name> <url>",
		Short: "Register another site of a multisite install",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withApp(cmd, func(a *app.App) error {
				site, err := a.Content.AddSite(cmd.Context(), args[0], args[1])
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Added site %d (%s)\n", site.ID, site.URL)
				return nil
			})
		},
	}
}
