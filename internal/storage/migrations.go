package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
)

// ExpectedSchemaVersion is the latest schema version that the application expects.
// If the database cannot be migrated to this version, it's a fatal error.
const ExpectedSchemaVersion = 3

// Migration represents a database schema migration.
type Migration struct {
	Up          func(*sql.Tx) error
	Description string
	Version     int
}

var migrations = []Migration{
	{
		Version:     1,
		Description: "Transactions table",
		Up: func(tx *sql.Tx) error {
			queries := []string{
				`CREATE TABLE IF NOT EXISTS transactions (
					id TEXT PRIMARY KEY,
					hash TEXT UNIQUE NOT NULL,
					user_id TEXT NOT NULL,
					merchant TEXT NOT NULL,
					amount REAL NOT NULL,
					category TEXT,
					transaction_date DATETIME NOT NULL,
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP
				)`,
				`CREATE INDEX idx_transactions_user_date ON transactions(user_id, transaction_date)`,
				`CREATE INDEX idx_transactions_merchant ON transactions(merchant)`,
			}

			for _, query := range queries {
				if _, err := tx.Exec(query); err != nil {
					return fmt.Errorf("failed to execute query: %w", err)
				}
			}
			return nil
		},
	},
	{
		Version:     2,
		Description: "Alert queue state machine",
		Up: func(tx *sql.Tx) error {
			queries := []string{
				`CREATE TABLE IF NOT EXISTS transaction_alert_queue (
					id TEXT PRIMARY KEY,
					transaction_id TEXT NOT NULL,
					user_id TEXT NOT NULL,
					status TEXT NOT NULL DEFAULT 'pending',
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
					claimed_at DATETIME,
					processed_at DATETIME,
					error_message TEXT,
					FOREIGN KEY (transaction_id) REFERENCES transactions(id)
				)`,
				`CREATE UNIQUE INDEX idx_alert_queue_transaction ON transaction_alert_queue(transaction_id)`,
				`CREATE INDEX idx_alert_queue_status ON transaction_alert_queue(status, created_at)`,
			}

			for _, query := range queries {
				if _, err := tx.Exec(query); err != nil {
					return fmt.Errorf("failed to execute query: %w", err)
				}
			}
			return nil
		},
	},
	{
		Version:     3,
		Description: "Wallet notifications with idempotency constraint",
		Up: func(tx *sql.Tx) error {
			queries := []string{
				`CREATE TABLE IF NOT EXISTS wallet_notifications (
					id TEXT PRIMARY KEY,
					user_id TEXT NOT NULL,
					transaction_id TEXT NOT NULL,
					notification_type TEXT NOT NULL,
					title TEXT NOT NULL,
					message TEXT NOT NULL,
					priority TEXT NOT NULL,
					read INTEGER NOT NULL DEFAULT 0,
					metadata TEXT,
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP
				)`,
				// Reprocessing a transaction must never create a second alert.
				`CREATE UNIQUE INDEX idx_notifications_txn_type
					ON wallet_notifications(transaction_id, notification_type)`,
				`CREATE INDEX idx_notifications_user ON wallet_notifications(user_id, created_at)`,
			}

			for _, query := range queries {
				if _, err := tx.Exec(query); err != nil {
					return fmt.Errorf("failed to execute query: %w", err)
				}
			}
			return nil
		},
	},
}

// Migrate applies all pending database migrations.
func (s *SQLiteStorage) Migrate(ctx context.Context) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	var currentVersion int
	err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&currentVersion)
	if err != nil {
		return fmt.Errorf("failed to get schema version: %w", err)
	}

	for _, migration := range migrations {
		if migration.Version <= currentVersion {
			continue
		}

		tx, txErr := s.db.BeginTx(ctx, nil)
		if txErr != nil {
			return fmt.Errorf("failed to begin transaction: %w", txErr)
		}

		if upErr := migration.Up(tx); upErr != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %d failed: %w", migration.Version, upErr)
		}

		if _, execErr := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", migration.Version)); execErr != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to update schema version: %w", execErr)
		}

		if commitErr := tx.Commit(); commitErr != nil {
			return fmt.Errorf("failed to commit migration %d: %w", migration.Version, commitErr)
		}

		slog.Info("Applied migration",
			"version", migration.Version,
			"description", migration.Description)
	}

	var finalVersion int
	err = s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&finalVersion)
	if err != nil {
		return fmt.Errorf("failed to verify final schema version: %w", err)
	}

	if finalVersion != ExpectedSchemaVersion {
		return fmt.Errorf("database schema version mismatch: expected %d, got %d", ExpectedSchemaVersion, finalVersion)
	}

	return nil
}
