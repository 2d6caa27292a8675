package main

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/finwatch/spendguard/internal/model"
)

func queueCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "queue",
		Short: "Inspect and manage the alert queue",
	}

	cmd.AddCommand(queueStatusCmd())
	cmd.AddCommand(queueRetryCmd())
	cmd.AddCommand(queueReclaimCmd())

	return cmd
}

func queueStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show queue depth by status",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			store, err := initStorage(ctx)
			if err != nil {
				return fmt.Errorf("failed to initialize storage: %w", err)
			}
			defer func() { _ = store.Close() }()

			depth, err := store.GetQueueDepth(ctx)
			if err != nil {
				return fmt.Errorf("failed to read queue depth: %w", err)
			}

			slog.Info("Alert queue depth",
				"pending", depth[model.QueuePending],
				"processing", depth[model.QueueProcessing],
				"completed", depth[model.QueueCompleted],
				"failed", depth[model.QueueFailed])
			return nil
		},
	}
}

func queueRetryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "retry",
		Short: "Reset failed entries to pending",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			store, err := initStorage(ctx)
			if err != nil {
				return fmt.Errorf("failed to initialize storage: %w", err)
			}
			defer func() { _ = store.Close() }()

			n, err := store.RetryFailed(ctx)
			if err != nil {
				return fmt.Errorf("failed to retry entries: %w", err)
			}

			slog.Info("Reset failed entries to pending", "count", n)
			return nil
		},
	}
}

func queueReclaimCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reclaim",
		Short: "Return stale processing entries to pending",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			lease, _ := cmd.Flags().GetDuration("lease")

			store, err := initStorage(ctx)
			if err != nil {
				return fmt.Errorf("failed to initialize storage: %w", err)
			}
			defer func() { _ = store.Close() }()

			n, err := store.ReclaimStale(ctx, lease)
			if err != nil {
				return fmt.Errorf("failed to reclaim entries: %w", err)
			}

			slog.Info("Reclaimed stale entries", "count", n, "lease", lease)
			return nil
		},
	}

	cmd.Flags().Duration("lease", 5*time.Minute, "claims older than this are considered abandoned")
	return cmd
}
