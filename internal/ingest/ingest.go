// Package ingest feeds transactions into the pipeline: each accepted
// transaction is persisted and a pending alert-queue entry is created
// for it.
package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/finwatch/spendguard/internal/model"
	"github.com/finwatch/spendguard/internal/service"
)

// TransactionEvent is the wire shape of an ingested transaction.
type TransactionEvent struct {
	ID       string    `json:"id"`
	UserID   string    `json:"user_id"`
	Merchant string    `json:"merchant"`
	Category string    `json:"category"`
	Amount   float64   `json:"amount"`
	Date     time.Time `json:"transaction_date"`
}

// Transaction converts the event to the domain model.
func (e TransactionEvent) Transaction() model.Transaction {
	return model.Transaction{
		ID:       e.ID,
		UserID:   e.UserID,
		Merchant: e.Merchant,
		Category: e.Category,
		Amount:   e.Amount,
		Date:     e.Date,
	}
}

// Ingestor persists transactions and enqueues them for analysis.
type Ingestor struct {
	transactions service.TransactionStore
	queue        service.QueueStore
}

// NewIngestor creates an ingestor over the given stores.
func NewIngestor(transactions service.TransactionStore, queue service.QueueStore) *Ingestor {
	return &Ingestor{transactions: transactions, queue: queue}
}

// Ingest stores a batch of transactions and creates a queue entry per
// transaction. Re-ingested transactions keep their single queue entry.
func (i *Ingestor) Ingest(ctx context.Context, txns []model.Transaction) error {
	if len(txns) == 0 {
		return nil
	}

	if err := i.transactions.SaveTransactions(ctx, txns); err != nil {
		return fmt.Errorf("failed to save transactions: %w", err)
	}

	for _, txn := range txns {
		entry := model.QueueEntry{
			TransactionID: txn.ID,
			UserID:        txn.UserID,
		}
		if err := i.queue.Enqueue(ctx, &entry); err != nil {
			return fmt.Errorf("failed to enqueue transaction %s: %w", txn.ID, err)
		}
	}

	slog.Info("Ingested transactions", "count", len(txns))
	return nil
}
