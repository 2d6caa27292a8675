// Package storage provides the data persistence layer for the alert pipeline.
package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/finwatch/spendguard/internal/model"
)

// Validation errors.
var (
	ErrNilContext          = errors.New("context cannot be nil")
	ErrEmptyString         = errors.New("string parameter cannot be empty")
	ErrNilParameter        = errors.New("parameter cannot be nil")
	ErrEmptySlice          = errors.New("slice cannot be empty")
	ErrInvalidTransaction  = errors.New("invalid transaction")
	ErrInvalidQueueEntry   = errors.New("invalid queue entry")
	ErrInvalidNotification = errors.New("invalid notification")
)

// validateContext ensures the context is not nil.
func validateContext(ctx context.Context) error {
	if ctx == nil {
		return ErrNilContext
	}
	return nil
}

// validateString ensures a string parameter is not empty.
func validateString(s string, paramName string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("%w: %s", ErrEmptyString, paramName)
	}
	return nil
}

// validateTransactions validates a slice of transactions.
func validateTransactions(transactions []model.Transaction) error {
	if transactions == nil {
		return fmt.Errorf("%w: transactions", ErrNilParameter)
	}
	if len(transactions) == 0 {
		return fmt.Errorf("%w: transactions", ErrEmptySlice)
	}

	for i, txn := range transactions {
		if err := validateTransaction(&txn); err != nil {
			return fmt.Errorf("transaction at index %d: %w", i, err)
		}
	}
	return nil
}

// validateTransaction validates a single transaction.
func validateTransaction(txn *model.Transaction) error {
	if txn == nil {
		return fmt.Errorf("%w: transaction", ErrNilParameter)
	}
	if txn.ID == "" {
		return fmt.Errorf("%w: missing ID", ErrInvalidTransaction)
	}
	if txn.UserID == "" {
		return fmt.Errorf("%w: missing user ID", ErrInvalidTransaction)
	}
	if txn.Merchant == "" {
		return fmt.Errorf("%w: missing merchant", ErrInvalidTransaction)
	}
	if txn.Date.IsZero() {
		return fmt.Errorf("%w: missing date", ErrInvalidTransaction)
	}
	return nil
}

// validateQueueEntry validates a queue entry before insertion.
func validateQueueEntry(entry *model.QueueEntry) error {
	if entry == nil {
		return fmt.Errorf("%w: entry", ErrNilParameter)
	}
	if entry.TransactionID == "" {
		return fmt.Errorf("%w: missing transaction ID", ErrInvalidQueueEntry)
	}
	if entry.UserID == "" {
		return fmt.Errorf("%w: missing user ID", ErrInvalidQueueEntry)
	}
	return nil
}

// validateNotification validates a notification before insertion.
func validateNotification(n *model.Notification) error {
	if n == nil {
		return fmt.Errorf("%w: notification", ErrNilParameter)
	}
	if n.UserID == "" {
		return fmt.Errorf("%w: missing user ID", ErrInvalidNotification)
	}
	if n.Metadata.TransactionID == "" {
		return fmt.Errorf("%w: missing transaction ID", ErrInvalidNotification)
	}
	if n.Title == "" {
		return fmt.Errorf("%w: missing title", ErrInvalidNotification)
	}
	return nil
}
