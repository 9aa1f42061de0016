package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"pagepreview/internal/app"
	"pagepreview/internal/notifications"
)

func newTestNotifyCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "test-notify",
		Short: "Send a test notification",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withApp(cmd, func(a *app.App) error {
				if strings.TrimSpace(a.Config.Notifications.NtfyTopic) == "" {
					fmt.Fprintln(cmd.OutOrStdout(), "Notifications not configured (set notifications.ntfy_topic)")
					return nil
				}
				if err := a.Notifier.Publish(cmd.Context(), notifications.EventTest, nil); err != nil {
					return fmt.Errorf("send test notification: %w", err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Test notification sent")
				return nil
			})
		},
	}
}
