// Package service defines the interfaces for all application services.
package service

import (
	"context"
	"time"

	"github.com/finwatch/spendguard/internal/model"
)

// TransactionStore is the persistence contract for transactions. The
// pipeline only ever reads transactions; writes happen on the ingestion
// path.
type TransactionStore interface {
	SaveTransactions(ctx context.Context, transactions []model.Transaction) error
	GetTransactionByID(ctx context.Context, id string) (*model.Transaction, error)
	GetRecentTransactions(ctx context.Context, userID string, limit int) ([]model.Transaction, error)
	GetSpendingAverages(ctx context.Context, userID string) (overall float64, byCategory map[string]float64, err error)
}

// QueueStore is the persistence contract for the alert queue state machine.
type QueueStore interface {
	Enqueue(ctx context.Context, entry *model.QueueEntry) error
	// ClaimBatch atomically moves up to limit pending entries to processing
	// and returns them. Two concurrent callers never receive the same entry.
	ClaimBatch(ctx context.Context, limit int) ([]model.QueueEntry, error)
	MarkCompleted(ctx context.Context, entryID string) error
	MarkFailed(ctx context.Context, entryID string, cause error) error
	// RetryFailed resets failed entries to pending and returns how many
	// were reset.
	RetryFailed(ctx context.Context) (int, error)
	// ReclaimStale returns processing entries whose claim is older than the
	// lease back to pending, and reports how many were reclaimed.
	ReclaimStale(ctx context.Context, lease time.Duration) (int, error)
	GetQueueDepth(ctx context.Context) (map[model.QueueStatus]int, error)
}

// NotificationStore is the persistence contract for user notifications.
type NotificationStore interface {
	// CreateNotification persists a notification. It is idempotent on
	// (transaction_id, notification_type): a second call for the same
	// transaction returns created=false and performs no write.
	CreateNotification(ctx context.Context, n *model.Notification) (created bool, err error)
	GetNotificationsByUser(ctx context.Context, userID string, limit int) ([]model.Notification, error)
	MarkNotificationRead(ctx context.Context, id string) error
}

// HistorySource computes the spending-history snapshot used as
// classification context.
type HistorySource interface {
	SpendingHistory(ctx context.Context, userID string) (*model.SpendingHistory, error)
}

// Publisher fans a newly created notification out to the owning user's
// subscribers. Delivery is at-least-once.
type Publisher interface {
	Publish(ctx context.Context, n *model.Notification) error
}

// RetryOptions configures retry behavior for operations.
type RetryOptions struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}
