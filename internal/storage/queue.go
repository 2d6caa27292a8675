package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/finwatch/spendguard/internal/common"
	"github.com/finwatch/spendguard/internal/model"
)

// Enqueue creates a pending queue entry for a transaction. One entry per
// transaction: enqueueing the same transaction twice is a no-op.
func (s *SQLiteStorage) Enqueue(ctx context.Context, entry *model.QueueEntry) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateQueueEntry(entry); err != nil {
		return err
	}

	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	entry.Status = model.QueuePending

	_, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO transaction_alert_queue (
			id, transaction_id, user_id, status, created_at
		) VALUES (?, ?, ?, ?, ?)
	`, entry.ID, entry.TransactionID, entry.UserID, entry.Status, entry.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to enqueue entry: %w", err)
	}

	return nil
}

// ClaimBatch atomically transitions up to limit pending entries to
// processing and returns them. Each row is claimed with a conditional
// update on status, so concurrent dispatchers never claim the same entry.
func (s *SQLiteStorage) ClaimBatch(ctx context.Context, limit int) ([]model.QueueEntry, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 10
	}

	now := time.Now().UTC()
	var claimed []string

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx, `
			SELECT id FROM transaction_alert_queue
			WHERE status = ?
			ORDER BY created_at
			LIMIT ?
		`, model.QueuePending, limit)
		if err != nil {
			return fmt.Errorf("failed to query pending entries: %w", err)
		}

		var candidates []string
		for rows.Next() {
			var id string
			if err := rows.Scan(&id); err != nil {
				_ = rows.Close()
				return fmt.Errorf("failed to scan entry id: %w", err)
			}
			candidates = append(candidates, id)
		}
		if err := rows.Close(); err != nil {
			return fmt.Errorf("failed to close rows: %w", err)
		}
		if err := rows.Err(); err != nil {
			return err
		}

		for _, id := range candidates {
			res, err := tx.ExecContext(ctx, `
				UPDATE transaction_alert_queue
				SET status = ?, claimed_at = ?
				WHERE id = ? AND status = ?
			`, model.QueueProcessing, now, id, model.QueuePending)
			if err != nil {
				return fmt.Errorf("failed to claim entry %s: %w", id, err)
			}

			// A zero row count means another dispatcher won the race.
			if n, err := res.RowsAffected(); err == nil && n == 1 {
				claimed = append(claimed, id)
			}
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	if len(claimed) == 0 {
		return nil, nil
	}

	return s.getEntriesByID(ctx, claimed)
}

// MarkCompleted terminates a processing entry successfully.
func (s *SQLiteStorage) MarkCompleted(ctx context.Context, entryID string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(entryID, "entryID"); err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE transaction_alert_queue
		SET status = ?, processed_at = ?, error_message = NULL
		WHERE id = ? AND status = ?
	`, model.QueueCompleted, time.Now().UTC(), entryID, model.QueueProcessing)
	if err != nil {
		return fmt.Errorf("failed to complete entry: %w", err)
	}

	return requireTransition(res, entryID)
}

// MarkFailed terminates a processing entry with an error. The entry stays
// failed until the retry path resets it; processed_at is left unset.
func (s *SQLiteStorage) MarkFailed(ctx context.Context, entryID string, cause error) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(entryID, "entryID"); err != nil {
		return err
	}

	message := "unknown error"
	if cause != nil {
		message = cause.Error()
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE transaction_alert_queue
		SET status = ?, error_message = ?
		WHERE id = ? AND status = ?
	`, model.QueueFailed, message, entryID, model.QueueProcessing)
	if err != nil {
		return fmt.Errorf("failed to fail entry: %w", err)
	}

	return requireTransition(res, entryID)
}

// RetryFailed resets all failed entries to pending for another attempt.
func (s *SQLiteStorage) RetryFailed(ctx context.Context) (int, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE transaction_alert_queue
		SET status = ?, claimed_at = NULL, error_message = NULL
		WHERE status = ?
	`, model.QueuePending, model.QueueFailed)
	if err != nil {
		return 0, fmt.Errorf("failed to retry failed entries: %w", err)
	}

	n, err := res.RowsAffected()
	return int(n), err
}

// ReclaimStale returns processing entries whose claim exceeded the lease to
// pending, so a crashed dispatcher cannot starve an entry forever.
func (s *SQLiteStorage) ReclaimStale(ctx context.Context, lease time.Duration) (int, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}
	if lease <= 0 {
		return 0, fmt.Errorf("%w: lease must be positive", common.ErrInvalidConfig)
	}

	cutoff := time.Now().UTC().Add(-lease)
	res, err := s.db.ExecContext(ctx, `
		UPDATE transaction_alert_queue
		SET status = ?, claimed_at = NULL
		WHERE status = ? AND claimed_at <= ?
	`, model.QueuePending, model.QueueProcessing, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to reclaim stale entries: %w", err)
	}

	n, err := res.RowsAffected()
	return int(n), err
}

// GetQueueDepth reports how many entries sit in each status.
func (s *SQLiteStorage) GetQueueDepth(ctx context.Context) (map[model.QueueStatus]int, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT status, COUNT(*)
		FROM transaction_alert_queue
		GROUP BY status
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query queue depth: %w", err)
	}
	defer func() { _ = rows.Close() }()

	depth := make(map[model.QueueStatus]int)
	for rows.Next() {
		var status model.QueueStatus
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("failed to scan queue depth: %w", err)
		}
		depth[status] = count
	}

	return depth, rows.Err()
}

// GetQueueEntry retrieves a single entry by ID.
func (s *SQLiteStorage) GetQueueEntry(ctx context.Context, id string) (*model.QueueEntry, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(id, "id"); err != nil {
		return nil, err
	}

	entries, err := s.getEntriesByID(ctx, []string{id})
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("queue entry %s: %w", id, common.ErrNotFound)
	}

	return &entries[0], nil
}

func (s *SQLiteStorage) getEntriesByID(ctx context.Context, ids []string) ([]model.QueueEntry, error) {
	placeholders := strings.Repeat("?,", len(ids))
	placeholders = placeholders[:len(placeholders)-1]

	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT id, transaction_id, user_id, status, created_at, claimed_at, processed_at,
			COALESCE(error_message, '')
		FROM transaction_alert_queue
		WHERE id IN (%s)
		ORDER BY created_at
	`, placeholders), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query entries: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var entries []model.QueueEntry
	for rows.Next() {
		var entry model.QueueEntry
		var claimedAt, processedAt sql.NullTime
		if err := rows.Scan(&entry.ID, &entry.TransactionID, &entry.UserID, &entry.Status,
			&entry.CreatedAt, &claimedAt, &processedAt, &entry.ErrorMessage); err != nil {
			return nil, fmt.Errorf("failed to scan entry: %w", err)
		}
		if claimedAt.Valid {
			entry.ClaimedAt = &claimedAt.Time
		}
		if processedAt.Valid {
			entry.ProcessedAt = &processedAt.Time
		}
		entries = append(entries, entry)
	}

	return entries, rows.Err()
}

func requireTransition(res sql.Result, entryID string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("queue entry %s: %w", entryID, common.ErrInvalidTransition)
	}
	return nil
}
