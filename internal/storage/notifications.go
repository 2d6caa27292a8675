package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/finwatch/spendguard/internal/common"
	"github.com/finwatch/spendguard/internal/model"
)

// CreateNotification persists a notification. The unique index on
// (transaction_id, notification_type) makes this idempotent: a retried
// queue entry cannot alert the user twice.
func (s *SQLiteStorage) CreateNotification(ctx context.Context, n *model.Notification) (bool, error) {
	if err := validateContext(ctx); err != nil {
		return false, err
	}
	if err := validateNotification(n); err != nil {
		return false, err
	}

	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	if n.NotificationType == "" {
		n.NotificationType = model.NotificationTypeTransactionAlert
	}

	metadata, err := json.Marshal(n.Metadata)
	if err != nil {
		return false, fmt.Errorf("failed to marshal metadata: %w", err)
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO wallet_notifications (
			id, user_id, transaction_id, notification_type, title, message,
			priority, read, metadata, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, 0, ?, ?)
	`, n.ID, n.UserID, n.Metadata.TransactionID, n.NotificationType,
		n.Title, n.Message, n.Priority, string(metadata), n.CreatedAt)
	if err != nil {
		return false, fmt.Errorf("failed to create notification: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to check rows affected: %w", err)
	}

	return rows == 1, nil
}

// GetNotificationsByUser returns a user's notifications, newest first.
func (s *SQLiteStorage) GetNotificationsByUser(ctx context.Context, userID string, limit int) ([]model.Notification, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(userID, "userID"); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, notification_type, title, message, priority, read,
			COALESCE(metadata, '{}'), created_at
		FROM wallet_notifications
		WHERE user_id = ?
		ORDER BY created_at DESC
		LIMIT ?
	`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query notifications: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var notifications []model.Notification
	for rows.Next() {
		var n model.Notification
		var metadata string
		if err := rows.Scan(&n.ID, &n.UserID, &n.NotificationType, &n.Title,
			&n.Message, &n.Priority, &n.Read, &metadata, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan notification: %w", err)
		}
		if err := json.Unmarshal([]byte(metadata), &n.Metadata); err != nil {
			return nil, fmt.Errorf("failed to unmarshal metadata for %s: %w", n.ID, err)
		}
		notifications = append(notifications, n)
	}

	return notifications, rows.Err()
}

// MarkNotificationRead acknowledges a notification. This is the only
// mutation allowed after creation.
func (s *SQLiteStorage) MarkNotificationRead(ctx context.Context, id string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(id, "id"); err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE wallet_notifications SET read = 1 WHERE id = ?
	`, id)
	if err != nil {
		return fmt.Errorf("failed to mark notification read: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("notification %s: %w", id, common.ErrNotFound)
	}

	return nil
}
