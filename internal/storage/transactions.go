package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/finwatch/spendguard/internal/common"
	"github.com/finwatch/spendguard/internal/model"
)

// SaveTransactions saves multiple transactions to the database. Re-ingested
// transactions (same hash) are ignored.
func (s *SQLiteStorage) SaveTransactions(ctx context.Context, transactions []model.Transaction) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateTransactions(transactions); err != nil {
		return err
	}

	return s.withTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT OR IGNORE INTO transactions (
				id, hash, user_id, merchant, amount, category, transaction_date
			) VALUES (?, ?, ?, ?, ?, ?, ?)
		`)
		if err != nil {
			return fmt.Errorf("failed to prepare statement: %w", err)
		}
		defer func() { _ = stmt.Close() }()

		for _, txn := range transactions {
			if txn.Hash == "" {
				txn.Hash = txn.GenerateHash()
			}

			if _, err := stmt.ExecContext(ctx,
				txn.ID,
				txn.Hash,
				txn.UserID,
				txn.Merchant,
				txn.Amount,
				txn.Category,
				txn.Date,
			); err != nil {
				return fmt.Errorf("failed to save transaction %s: %w", txn.ID, err)
			}
		}

		return nil
	})
}

// GetTransactionByID retrieves a single transaction.
func (s *SQLiteStorage) GetTransactionByID(ctx context.Context, id string) (*model.Transaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(id, "id"); err != nil {
		return nil, err
	}

	var txn model.Transaction
	err := s.db.QueryRowContext(ctx, `
		SELECT id, hash, user_id, merchant, amount, COALESCE(category, ''), transaction_date
		FROM transactions
		WHERE id = ?
	`, id).Scan(&txn.ID, &txn.Hash, &txn.UserID, &txn.Merchant, &txn.Amount, &txn.Category, &txn.Date)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("transaction %s: %w", id, common.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}

	return &txn, nil
}

// GetRecentTransactions returns a user's most recent transactions, newest
// first. Used for the duplicate-charge window.
func (s *SQLiteStorage) GetRecentTransactions(ctx context.Context, userID string, limit int) ([]model.Transaction, error) {
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
		SELECT id, hash, user_id, merchant, amount, COALESCE(category, ''), transaction_date
		FROM transactions
		WHERE user_id = ?
		ORDER BY transaction_date DESC
		LIMIT ?
	`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent transactions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var transactions []model.Transaction
	for rows.Next() {
		var txn model.Transaction
		if err := rows.Scan(&txn.ID, &txn.Hash, &txn.UserID, &txn.Merchant,
			&txn.Amount, &txn.Category, &txn.Date); err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		transactions = append(transactions, txn)
	}

	return transactions, rows.Err()
}

// GetSpendingAverages computes the overall and per-category average of
// absolute debit amounts for a user.
func (s *SQLiteStorage) GetSpendingAverages(ctx context.Context, userID string) (float64, map[string]float64, error) {
	if err := validateContext(ctx); err != nil {
		return 0, nil, err
	}
	if err := validateString(userID, "userID"); err != nil {
		return 0, nil, err
	}

	var overall sql.NullFloat64
	err := s.db.QueryRowContext(ctx, `
		SELECT AVG(ABS(amount))
		FROM transactions
		WHERE user_id = ? AND amount < 0
	`, userID).Scan(&overall)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to compute average spend: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT COALESCE(category, ''), AVG(ABS(amount))
		FROM transactions
		WHERE user_id = ? AND amount < 0
		GROUP BY category
	`, userID)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to compute category averages: %w", err)
	}
	defer func() { _ = rows.Close() }()

	byCategory := make(map[string]float64)
	for rows.Next() {
		var category string
		var avg float64
		if err := rows.Scan(&category, &avg); err != nil {
			return 0, nil, fmt.Errorf("failed to scan category average: %w", err)
		}
		if category != "" {
			byCategory[category] = avg
		}
	}

	return overall.Float64, byCategory, rows.Err()
}
