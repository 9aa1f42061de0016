package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"pagepreview/internal/api"
	"pagepreview/internal/app"
	"pagepreview/internal/settings"
)

func newSettingsCommand(ctx *commandContext) *cobra.Command {
	settingsCmd := &cobra.Command{
		Use:   "settings",
		Short: "Show and change preview settings",
	}
	settingsCmd.AddCommand(newSettingsGetCommand(ctx))
	settingsCmd.AddCommand(newSettingsSetCommand(ctx))
	settingsCmd.AddCommand(newSettingsClearCommand(ctx))
	return settingsCmd
}

func newSettingsGetCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "get",
		Short: "Show the effective settings",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withApp(cmd, func(a *app.App) error {
				current, err := a.Settings.Load(cmd.Context())
				if err != nil {
					return err
				}
				types, err := a.Generator.EligibleTypes(cmd.Context())
				if err != nil {
					return err
				}
				p := newPrinter(cmd)
				if asJSON {
					return p.json(api.FromSettings(current, types))
				}
				printSettings(p, current, types)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output JSON")
	return cmd
}

func printSettings(p *printer, current settings.Settings, eligible []string) {
	rows := [][]string{
		{"post_types", strings.Join(current.PostTypes, ", ")},
		{"crop", yesNo(current.Crop)},
		{"zoom", yesNo(current.Zoom)},
		{"delay", strconv.Itoa(current.Delay) + "s"},
		{"featured_image_fallback", yesNo(current.FeaturedImageFallback)},
		{"eligible types", strings.Join(eligible, ", ")},
	}
	p.table([]string{"Setting", "Value"}, rows)
}

func newSettingsSetCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "set <key=value>...",
		Short: "Update one or more settings",
		Long: "Update settings by key. Keys: post_types (comma separated), crop, zoom, " +
			"delay (seconds), featured_image_fallback.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			patch, err := parseSettingsArgs(args)
			if err != nil {
				return err
			}
			return ctx.withApp(cmd, func(a *app.App) error {
				next, err := a.Settings.Update(cmd.Context(), patch)
				if err != nil {
					return err
				}
				types, err := a.Generator.EligibleTypes(cmd.Context())
				if err != nil {
					return err
				}
				printSettings(newPrinter(cmd), next, types)
				return nil
			})
		},
	}
}

// parseSettingsArgs accepts stored (snake_case) and API (camelCase) key
// names. Values stay strings; the settings store coerces them.
func parseSettingsArgs(args []string) (map[string]any, error) {
	patch := make(map[string]any, len(args))
	for _, arg := range args {
		key, value, ok := strings.Cut(arg, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid setting %q (want key=value)", arg)
		}
		mapped := api.SettingsPatch(map[string]any{snakeToCamel(key): strings.TrimSpace(value)})
		if len(mapped) == 0 {
			return nil, fmt.Errorf("unknown setting %q", key)
		}
		for k, v := range mapped {
			patch[k] = v
		}
	}
	return patch, nil
}

func snakeToCamel(key string) string {
	parts := strings.Split(key, "_")
	for i := 1; i < len(parts); i++ {
		if parts[i] != "" {
			parts[i] = strings.ToUpper(parts[i][:1]) + parts[i][1:]
		}
	}
	return strings.Join(parts, "")
}

func newSettingsClearCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Discard stored settings and return to the defaults",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withApp(cmd, func(a *app.App) error {
				if err := a.Settings.Clear(cmd.Context()); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Settings reset to defaults")
				return nil
			})
		},
	}
}
