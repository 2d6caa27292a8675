package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/finwatch/spendguard/internal/model"
)

func notificationsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "notifications",
		Short: "Inspect transaction alerts",
	}

	cmd.AddCommand(notificationsListCmd())
	cmd.AddCommand(notificationsMarkReadCmd())

	return cmd
}

func notificationsListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list <user-id>",
		Short: "List a user's alerts, newest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			limit, _ := cmd.Flags().GetInt("limit")
			unreadOnly, _ := cmd.Flags().GetBool("unread")

			store, err := initStorage(ctx)
			if err != nil {
				return fmt.Errorf("failed to initialize storage: %w", err)
			}
			defer func() { _ = store.Close() }()

			notifications, err := store.GetNotificationsByUser(ctx, args[0], limit)
			if err != nil {
				return fmt.Errorf("failed to list notifications: %w", err)
			}

			shown := 0
			for _, n := range notifications {
				if unreadOnly && n.Read {
					continue
				}
				printNotification(n)
				shown++
			}

			if shown == 0 {
				slog.Info("No notifications", "user_id", args[0])
			}
			return nil
		},
	}

	cmd.Flags().Int("limit", 20, "maximum notifications to show")
	cmd.Flags().Bool("unread", false, "only show unread notifications")
	return cmd
}

func notificationsMarkReadCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mark-read <notification-id>",
		Short: "Acknowledge a notification",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			store, err := initStorage(ctx)
			if err != nil {
				return fmt.Errorf("failed to initialize storage: %w", err)
			}
			defer func() { _ = store.Close() }()

			if err := store.MarkNotificationRead(ctx, args[0]); err != nil {
				return fmt.Errorf("failed to mark notification read: %w", err)
			}

			slog.Info("Notification acknowledged", "id", args[0])
			return nil
		},
	}
}

func printNotification(n model.Notification) {
	slog.Info(n.Title,
		"id", n.ID,
		"priority", n.Priority,
		"read", n.Read,
		"created_at", n.CreatedAt.Format("2006-01-02 15:04"),
		"merchant", n.Metadata.Merchant,
		"amount", n.Metadata.Amount,
		"alert_type", n.Metadata.AlertType,
		"risk_level", n.Metadata.RiskLevel)
}
