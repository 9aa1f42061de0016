package main

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"pagepreview/internal/app"
)

func newDeleteCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id> [id...]",
		Short: "Delete the previews of content items",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseIDs(args)
			if err != nil {
				return err
			}
			return ctx.withApp(cmd, func(a *app.App) error {
				result := a.Triggers.BulkDelete(cmd.Context(), ids)
				p := newPrinter(cmd)
				failed := make([]int64, 0, len(result.Errors))
				for id := range result.Errors {
					failed = append(failed, id)
				}
				sort.Slice(failed, func(i, j int) bool { return failed[i] < failed[j] })
				for _, id := range failed {
					p.status(strconv.FormatInt(id, 10), statusError, result.Errors[id])
				}
				p.linef("Deleted %d of %d previews", result.Succeeded, result.Requested)
				if result.Failed > 0 {
					return fmt.Errorf("%d previews could not be deleted", result.Failed)
				}
				return nil
			})
		},
	}
}

func newResetCommand(ctx *commandContext) *cobra.Command {
	var confirm bool
	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Delete every stored preview image and record",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !confirm {
				return errors.New("reset removes every preview; re-run with --yes to confirm")
			}
			return ctx.withApp(cmd, func(a *app.App) error {
				removed, err := a.Generator.DeleteAll(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed %d preview records\n", removed)
				return nil
			})
		},
	}
	cmd.Flags().BoolVarP(&confirm, "yes", "y", false, "Confirm the reset")
	return cmd
}

func parseIDs(args []string) ([]int64, error) {
	ids := make([]int64, 0, len(args))
	for _, arg := range args {
		for _, part := range splitList(arg) {
			id, err := strconv.ParseInt(strings.TrimSpace(part), 10, 64)
			if err != nil || id <= 0 {
				return nil, fmt.Errorf("invalid content id %q", part)
			}
			ids = append(ids, id)
		}
	}
	return ids, nil
}
