package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/finwatch/spendguard/internal/ingest"
	"github.com/finwatch/spendguard/internal/model"
)

func ingestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ingest <file>",
		Short: "Import transactions from a JSON file and queue them for analysis",
		Long: `Read an array of transaction events from a JSON file, persist them,
and create a pending queue entry for each. Re-ingesting a file is safe:
transactions already seen are skipped.`,
		Args: cobra.ExactArgs(1),
		RunE: runIngest,
	}

	return cmd
}

func runIngest(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("failed to read file: %w", err)
	}

	var events []ingest.TransactionEvent
	if err := json.Unmarshal(data, &events); err != nil {
		return fmt.Errorf("failed to parse transactions: %w", err)
	}

	if len(events) == 0 {
		slog.Info("No transactions in file")
		return nil
	}

	txns := make([]model.Transaction, len(events))
	for i, event := range events {
		txns[i] = event.Transaction()
	}

	store, err := initStorage(ctx)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer func() { _ = store.Close() }()

	if err := ingest.NewIngestor(store, store).Ingest(ctx, txns); err != nil {
		return err
	}

	slog.Info("Transactions queued for analysis", "count", len(txns))
	return nil
}
