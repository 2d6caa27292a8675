// Package notify turns positive anomaly results into persisted, published
// user notifications.
package notify

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/finwatch/spendguard/internal/model"
	"github.com/finwatch/spendguard/internal/service"
)

// Notifier creates the user-visible notification for a detected anomaly
// and fans it out. Creation is idempotent per transaction; the realtime
// push happens only on first creation.
type Notifier struct {
	store     service.NotificationStore
	publisher service.Publisher
}

// New creates a notifier. publisher may be nil when no realtime delivery
// is wired (e.g. one-shot CLI runs).
func New(store service.NotificationStore, publisher service.Publisher) *Notifier {
	return &Notifier{store: store, publisher: publisher}
}

// Notify persists and publishes a notification for an anomalous result.
// A negative result performs no write and returns nil. Reprocessing a
// transaction that already alerted is silently suppressed.
func (n *Notifier) Notify(ctx context.Context, txn model.Transaction, result model.AnomalyResult) (*model.Notification, error) {
	if !result.IsAnomaly {
		return nil, nil
	}

	notification := &model.Notification{
		UserID:           txn.UserID,
		NotificationType: model.NotificationTypeTransactionAlert,
		Title:            titleFor(result.AlertType),
		Message:          messageFor(txn, result),
		Priority:         model.PriorityForRisk(result.RiskLevel),
		Metadata: model.AlertMetadata{
			TransactionID: txn.ID,
			Merchant:      txn.Merchant,
			Amount:        txn.Amount,
			Category:      txn.Category,
			AlertType:     result.AlertType,
			RiskLevel:     result.RiskLevel,
			Confidence:    result.Confidence,
		},
	}

	created, err := n.store.CreateNotification(ctx, notification)
	if err != nil {
		return nil, fmt.Errorf("failed to persist notification: %w", err)
	}

	if !created {
		slog.Debug("Notification already exists for transaction",
			"transaction_id", txn.ID,
			"user_id", txn.UserID)
		return nil, nil
	}

	if n.publisher != nil {
		// The store is the source of truth; a failed push is not fatal,
		// clients reconcile on their next fetch.
		if err := n.publisher.Publish(ctx, notification); err != nil {
			slog.Warn("Failed to publish notification",
				"notification_id", notification.ID,
				"user_id", txn.UserID,
				"error", err)
		}
	}

	return notification, nil
}

func titleFor(alertType model.AlertType) string {
	switch alertType {
	case model.AlertUnusualAmount:
		return "Unusual transaction amount"
	case model.AlertDuplicateCharge:
		return "Possible duplicate charge"
	case model.AlertSuspiciousMerchant:
		return "Suspicious merchant"
	case model.AlertCategoryOverspend:
		return "Category spending spike"
	default:
		return "Transaction alert"
	}
}

func messageFor(txn model.Transaction, result model.AnomalyResult) string {
	return fmt.Sprintf("$%.2f at %s: %s", txn.AbsAmount(), txn.Merchant, result.Reason)
}
