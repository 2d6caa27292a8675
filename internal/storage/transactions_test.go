package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finwatch/spendguard/internal/common"
	"github.com/finwatch/spendguard/internal/model"
)

func TestTransactions_SaveAndGet(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	txn := seedTransaction(t, store, "txn-1", "user-1", -42.50)

	got, err := store.GetTransactionByID(ctx, "txn-1")
	require.NoError(t, err)
	assert.Equal(t, txn.ID, got.ID)
	assert.Equal(t, txn.UserID, got.UserID)
	assert.Equal(t, txn.Merchant, got.Merchant)
	assert.InDelta(t, txn.Amount, got.Amount, 0.001)
	assert.True(t, txn.Date.Equal(got.Date))
}

func TestTransactions_GetMissing(t *testing.T) {
	store := newTestStorage(t)

	_, err := store.GetTransactionByID(context.Background(), "nope")
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestTransactions_ReingestIsIgnored(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	txn := seedTransaction(t, store, "txn-1", "user-1", -42.50)

	// Same content re-ingested under a new ID hashes identically.
	dup := txn
	dup.ID = "txn-1-replay"
	dup.Hash = ""
	require.NoError(t, store.SaveTransactions(ctx, []model.Transaction{dup}))

	recent, err := store.GetRecentTransactions(ctx, "user-1", 10)
	require.NoError(t, err)
	assert.Len(t, recent, 1)
}

func TestTransactions_RecentOrderedNewestFirst(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	base := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	txns := []model.Transaction{
		{ID: "txn-1", UserID: "user-1", Merchant: "A", Amount: -10, Date: base.Add(-48 * time.Hour)},
		{ID: "txn-2", UserID: "user-1", Merchant: "B", Amount: -20, Date: base},
		{ID: "txn-3", UserID: "user-1", Merchant: "C", Amount: -30, Date: base.Add(-24 * time.Hour)},
		{ID: "txn-4", UserID: "user-2", Merchant: "D", Amount: -40, Date: base},
	}
	require.NoError(t, store.SaveTransactions(ctx, txns))

	recent, err := store.GetRecentTransactions(ctx, "user-1", 10)
	require.NoError(t, err)
	require.Len(t, recent, 3)
	assert.Equal(t, "txn-2", recent[0].ID)
	assert.Equal(t, "txn-3", recent[1].ID)
	assert.Equal(t, "txn-1", recent[2].ID)
}

func TestTransactions_SpendingAverages(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	base := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	txns := []model.Transaction{
		{ID: "txn-1", UserID: "user-1", Merchant: "A", Category: "Dining", Amount: -20, Date: base},
		{ID: "txn-2", UserID: "user-1", Merchant: "B", Category: "Dining", Amount: -40, Date: base.Add(time.Hour)},
		{ID: "txn-3", UserID: "user-1", Merchant: "C", Category: "Groceries", Amount: -60, Date: base.Add(2 * time.Hour)},
		// Credits are excluded from spend baselines.
		{ID: "txn-4", UserID: "user-1", Merchant: "Payroll", Amount: 5000, Date: base.Add(3 * time.Hour)},
		// Other users are excluded.
		{ID: "txn-5", UserID: "user-2", Merchant: "E", Category: "Dining", Amount: -900, Date: base},
	}
	require.NoError(t, store.SaveTransactions(ctx, txns))

	overall, byCategory, err := store.GetSpendingAverages(ctx, "user-1")
	require.NoError(t, err)
	assert.InDelta(t, 40.0, overall, 0.001)
	assert.InDelta(t, 30.0, byCategory["Dining"], 0.001)
	assert.InDelta(t, 60.0, byCategory["Groceries"], 0.001)
}

func TestTransactions_AveragesWithNoHistory(t *testing.T) {
	store := newTestStorage(t)

	overall, byCategory, err := store.GetSpendingAverages(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Zero(t, overall)
	assert.Empty(t, byCategory)
}

func TestTransactions_Validation(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	err := store.SaveTransactions(ctx, nil)
	assert.ErrorIs(t, err, ErrNilParameter)

	err = store.SaveTransactions(ctx, []model.Transaction{})
	assert.ErrorIs(t, err, ErrEmptySlice)

	err = store.SaveTransactions(ctx, []model.Transaction{{UserID: "user-1"}})
	assert.ErrorIs(t, err, ErrInvalidTransaction)
}
