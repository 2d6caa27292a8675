package history

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finwatch/spendguard/internal/model"
	"github.com/finwatch/spendguard/internal/storage"
)

func TestBuilder_SpendingHistory(t *testing.T) {
	store, err := storage.NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	ctx := context.Background()
	require.NoError(t, store.Migrate(ctx))

	base := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	txns := []model.Transaction{
		{ID: "txn-1", UserID: "user-1", Merchant: "Cafe", Category: "Dining", Amount: -10, Date: base},
		{ID: "txn-2", UserID: "user-1", Merchant: "Market", Category: "Groceries", Amount: -30, Date: base.Add(time.Hour)},
	}
	require.NoError(t, store.SaveTransactions(ctx, txns))

	builder := NewBuilder(store)
	history, err := builder.SpendingHistory(ctx, "user-1")
	require.NoError(t, err)

	assert.InDelta(t, 20.0, history.AverageSpend, 0.001)
	assert.InDelta(t, 10.0, history.Categories["Dining"], 0.001)
	assert.InDelta(t, 30.0, history.Categories["Groceries"], 0.001)
	require.Len(t, history.RecentTransactions, 2)
	assert.Equal(t, "txn-2", history.RecentTransactions[0].ID)
}

func TestBuilder_EmptyHistory(t *testing.T) {
	store, err := storage.NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	ctx := context.Background()
	require.NoError(t, store.Migrate(ctx))

	builder := NewBuilder(store)
	history, err := builder.SpendingHistory(ctx, "user-1")
	require.NoError(t, err)

	assert.Zero(t, history.AverageSpend)
	assert.Empty(t, history.RecentTransactions)
}
