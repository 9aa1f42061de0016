package main

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"pagepreview/internal/api"
	"pagepreview/internal/app"
	"pagepreview/internal/notifications"
	"pagepreview/internal/preview"
	"pagepreview/internal/services"
	"pagepreview/internal/workflow"
)

// cancelAttempts bounds how often cancel retries while another node keeps
// re-acquiring the lock.
const cancelAttempts = 3

func newQueueCommand(ctx *commandContext) *cobra.Command {
	queueCmd := &cobra.Command{
		Use:   "queue",
		Short: "Inspect and control the preview job queue",
	}
	queueCmd.AddCommand(newQueueStatusCommand(ctx))
	queueCmd.AddCommand(newQueueAddCommand(ctx))
	queueCmd.AddCommand(newQueueRunCommand(ctx))
	queueCmd.AddCommand(newQueueCancelCommand(ctx))
	return queueCmd
}

func newQueueStatusCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show queue depth and lock state",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withApp(cmd, func(a *app.App) error {
				status, err := a.Runner.Status(cmd.Context())
				if err != nil {
					return err
				}
				p := newPrinter(cmd)
				if asJSON {
					return p.json(api.FromStatus(status))
				}
				printQueueStatus(p, status)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output JSON")
	return cmd
}

func printQueueStatus(p *printer, status workflow.Status) {
	rows := [][]string{
		{"Process", status.Process},
		{"Running", yesNo(status.Running)},
		{"Batches", strconv.Itoa(status.Batches)},
		{"Pending items", strconv.Itoa(status.Pending)},
	}
	if status.LockOwner != "" {
		rows = append(rows, []string{"Lock owner", status.LockOwner})
	}
	if status.LockUntil != nil {
		rows = append(rows, []string{"Lock expires", status.LockUntil.Local().Format(time.RFC3339)})
	}
	p.table([]string{"Field", "Value"}, rows)
}

func newQueueAddCommand(ctx *commandContext) *cobra.Command {
	var run bool
	cmd := &cobra.Command{
		Use:   "add <id> [id...]",
		Short: "Queue previews for content items",
		Long:  "Queue previews as one batch. The daemon picks the batch up on its next health tick unless --run drains it here.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseIDs(args)
			if err != nil {
				return err
			}
			return ctx.withApp(cmd, func(a *app.App) error {
				triggers := preview.NewTriggers(a.Generator, a.Backend, a.Config.Queue.Process, nil)
				queued, err := triggers.BulkCreate(cmd.Context(), ids)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Queued %d items\n", queued)
				if !run {
					return nil
				}
				return drainQueue(cmd, a)
			})
		},
	}
	cmd.Flags().BoolVar(&run, "run", false, "Drain the queue in the foreground after queueing")
	return cmd
}

func newQueueRunCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Drain the queue in the foreground",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withApp(cmd, func(a *app.App) error {
				return drainQueue(cmd, a)
			})
		},
	}
}

// drainQueue runs until the queue is empty, continuing through paused runs.
// While another runner holds the lock it waits for that runner to finish.
func drainQueue(cmd *cobra.Command, a *app.App) error {
	out := cmd.OutOrStdout()
	for {
		summary, err := a.Runner.RunOnce(cmd.Context())
		if errors.Is(err, services.ErrLockContention) {
			if err := waitIdle(cmd.Context(), a); err != nil {
				return err
			}
			continue
		}
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Run %s: %d processed, %d failed in %s\n",
			summary.Reason, summary.Processed, summary.Failed, formatElapsed(summary.Duration))
		if !summary.Paused {
			return nil
		}
	}
}

func newQueueCancelCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel",
		Short: "Drop every pending batch and release the queue lock",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withApp(cmd, func(a *app.App) error {
				removed, running, err := cancelQueue(cmd.Context(), a)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Removed %d pending batches\n", removed)
				if running {
					fmt.Fprintln(out, "A runner still holds the lock; it stops after its current item")
				}
				if removed > 0 {
					_ = a.Notifier.Publish(cmd.Context(), notifications.EventQueueCancelled, notifications.Payload{"batches": removed})
				}
				return nil
			})
		},
	}
}

func waitIdle(ctx context.Context, a *app.App) error {
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()
	for {
		running, err := a.Runner.IsRunning(ctx)
		if err != nil || !running {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// cancelQueue cancels and retries while a runner elsewhere still holds the
// lock or has written a batch back. It reports whether the lock was still
// held after the last attempt.
func cancelQueue(ctx context.Context, a *app.App) (int, bool, error) {
	total := 0
	for attempt := 1; ; attempt++ {
		removed, err := a.Runner.Cancel(ctx)
		if err != nil {
			return total, false, err
		}
		total += removed
		status, err := a.Runner.Status(ctx)
		if err != nil {
			return total, false, err
		}
		running := status.Running
		if (!running && status.Batches == 0) || attempt == cancelAttempts {
			return total, running, nil
		}
		select {
		case <-ctx.Done():
			return total, running, ctx.Err()
		case <-time.After(time.Second):
		}
	}
}
