package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/finwatch/spendguard/internal/classifier"
	"github.com/finwatch/spendguard/internal/config"
	"github.com/finwatch/spendguard/internal/history"
)

func classifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "classify <transaction-id>",
		Short: "Score a stored transaction without touching the queue",
		Long: `Run the anomaly classifier against one stored transaction and print
the verdict. Useful for tuning thresholds: nothing is persisted and no
notification is created.`,
		Args: cobra.ExactArgs(1),
		RunE: runClassify,
	}
}

func runClassify(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	store, err := initStorage(ctx)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer func() { _ = store.Close() }()

	txn, err := store.GetTransactionByID(ctx, args[0])
	if err != nil {
		return fmt.Errorf("failed to load transaction: %w", err)
	}

	hist, err := history.NewBuilder(store).SpendingHistory(ctx, txn.UserID)
	if err != nil {
		return fmt.Errorf("failed to build spending history: %w", err)
	}

	result := classifier.New(config.LoadThresholds()).Classify(*txn, hist)

	slog.Info("Classification result",
		"transaction_id", txn.ID,
		"merchant", txn.Merchant,
		"amount", txn.Amount,
		"is_anomaly", result.IsAnomaly,
		"alert_type", result.AlertType,
		"risk_level", result.RiskLevel,
		"confidence", fmt.Sprintf("%.2f", result.Confidence))

	if result.Reason != "" {
		slog.Info("Reason", "detail", result.Reason)
	}

	return nil
}
