package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"pagepreview/internal/app"
	"pagepreview/internal/preflight"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show dependency checks and queue state",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withApp(cmd, func(a *app.App) error {
				p := newPrinter(cmd)

				p.section("Dependencies")
				for _, result := range preflight.RunAll(cmd.Context(), a.Config) {
					p.check(result)
				}

				status, err := a.Runner.Status(cmd.Context())
				if err != nil {
					return err
				}
				p.linef("")
				p.section("Queue")
				if status.Running {
					p.status("Runner", statusOK, "Running")
				} else {
					p.status("Runner", statusInfo, "Idle")
				}
				pending := statusInfo
				if status.Batches > 0 {
					pending = statusWarn
				}
				p.status("Pending batches", pending, fmt.Sprintf("%d (%d items)", status.Batches, status.Pending))
				if status.LastError != "" {
					p.status("Last error", statusError, status.LastError)
				}
				p.status("Backend", statusInfo, a.Config.Queue.Backend)
				p.status("Storage", statusInfo, a.Config.Storage.Backend)
				return nil
			})
		},
	}
}
