// Package history computes spending-history snapshots used as
// classification context.
package history

import (
	"context"
	"fmt"

	"github.com/finwatch/spendguard/internal/model"
	"github.com/finwatch/spendguard/internal/service"
)

// DefaultRecentLimit bounds the duplicate-charge lookback window.
const DefaultRecentLimit = 50

// Builder derives a read-only SpendingHistory snapshot from the
// transaction store. Snapshots are computed per classification call and
// never persisted.
type Builder struct {
	transactions service.TransactionStore
	recentLimit  int
}

var _ service.HistorySource = (*Builder)(nil)

// NewBuilder creates a history builder over the given transaction store.
func NewBuilder(transactions service.TransactionStore) *Builder {
	return &Builder{
		transactions: transactions,
		recentLimit:  DefaultRecentLimit,
	}
}

// SpendingHistory aggregates the user's spending baseline and recent
// transactions.
func (b *Builder) SpendingHistory(ctx context.Context, userID string) (*model.SpendingHistory, error) {
	overall, byCategory, err := b.transactions.GetSpendingAverages(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load spending averages: %w", err)
	}

	recent, err := b.transactions.GetRecentTransactions(ctx, userID, b.recentLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to load recent transactions: %w", err)
	}

	return &model.SpendingHistory{
		AverageSpend:       overall,
		Categories:         byCategory,
		RecentTransactions: recent,
	}, nil
}
