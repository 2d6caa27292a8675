package dispatcher

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finwatch/spendguard/internal/classifier"
	"github.com/finwatch/spendguard/internal/config"
	"github.com/finwatch/spendguard/internal/history"
	"github.com/finwatch/spendguard/internal/model"
	"github.com/finwatch/spendguard/internal/notify"
	"github.com/finwatch/spendguard/internal/realtime"
	"github.com/finwatch/spendguard/internal/storage"
)

type pipeline struct {
	store      *storage.SQLiteStorage
	hub        *realtime.Hub
	dispatcher *Dispatcher
}

func newTestPipeline(t *testing.T) *pipeline {
	t.Helper()

	store, err := storage.NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	require.NoError(t, store.Migrate(context.Background()))

	hub := realtime.NewHub()
	cfg := DefaultConfig()
	cfg.Retry.InitialDelay = time.Millisecond
	cfg.Retry.MaxDelay = 5 * time.Millisecond

	d := New(
		store,
		store,
		history.NewBuilder(store),
		classifier.New(config.DefaultThresholds()),
		notify.New(store, hub),
		nil,
		cfg,
	)

	return &pipeline{store: store, hub: hub, dispatcher: d}
}

// seedBaseline establishes an average spend of 50 across four old
// transactions at distinct merchants.
func seedBaseline(t *testing.T, p *pipeline, userID string) {
	t.Helper()

	base := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	txns := []model.Transaction{
		{ID: userID + "-base-1", UserID: userID, Merchant: "Cafe", Category: "Dining", Amount: -50, Date: base.Add(-10 * 24 * time.Hour)},
		{ID: userID + "-base-2", UserID: userID, Merchant: "Market", Category: "Groceries", Amount: -50, Date: base.Add(-8 * 24 * time.Hour)},
		{ID: userID + "-base-3", UserID: userID, Merchant: "Bookshop", Category: "Shopping", Amount: -50, Date: base.Add(-6 * 24 * time.Hour)},
		{ID: userID + "-base-4", UserID: userID, Merchant: "Bakery", Category: "Dining", Amount: -50, Date: base.Add(-4 * 24 * time.Hour)},
	}
	require.NoError(t, p.store.SaveTransactions(context.Background(), txns))
}

func enqueueTxn(t *testing.T, p *pipeline, txn model.Transaction) model.QueueEntry {
	t.Helper()

	ctx := context.Background()
	require.NoError(t, p.store.SaveTransactions(ctx, []model.Transaction{txn}))
	entry := model.QueueEntry{TransactionID: txn.ID, UserID: txn.UserID}
	require.NoError(t, p.store.Enqueue(ctx, &entry))
	return entry
}

func TestDispatcher_AnomalousTransactionAlerts(t *testing.T) {
	p := newTestPipeline(t)
	ctx := context.Background()

	seedBaseline(t, p, "user-1")
	sub := p.hub.Subscribe("user-1")
	defer sub.Close()

	// Baseline average including this charge is 240, so 1000 sits between
	// the 3x and 5x thresholds.
	entry := enqueueTxn(t, p, model.Transaction{
		ID: "txn-big", UserID: "user-1", Merchant: "Electronics Depot",
		Category: "Shopping", Amount: -1000,
		Date: time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC),
	})

	processed, err := p.dispatcher.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, processed)

	got, err := p.store.GetQueueEntry(ctx, entry.ID)
	require.NoError(t, err)
	assert.Equal(t, model.QueueCompleted, got.Status)
	assert.NotNil(t, got.ProcessedAt)

	notifications, err := p.store.GetNotificationsByUser(ctx, "user-1", 10)
	require.NoError(t, err)
	require.Len(t, notifications, 1)
	assert.Equal(t, model.AlertUnusualAmount, notifications[0].Metadata.AlertType)
	assert.Equal(t, model.RiskMedium, notifications[0].Metadata.RiskLevel)
	assert.Equal(t, "txn-big", notifications[0].Metadata.TransactionID)

	select {
	case pushed := <-sub.C:
		assert.Equal(t, notifications[0].ID, pushed.ID)
	case <-time.After(time.Second):
		t.Fatal("expected realtime push for anomaly")
	}
}

func TestDispatcher_NormalTransactionIsSilent(t *testing.T) {
	p := newTestPipeline(t)
	ctx := context.Background()

	seedBaseline(t, p, "user-1")

	entry := enqueueTxn(t, p, model.Transaction{
		ID: "txn-normal", UserID: "user-1", Merchant: "Cafe",
		Category: "Dining", Amount: -50,
		Date: time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC),
	})

	processed, err := p.dispatcher.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, processed)

	got, err := p.store.GetQueueEntry(ctx, entry.ID)
	require.NoError(t, err)
	assert.Equal(t, model.QueueCompleted, got.Status)

	notifications, err := p.store.GetNotificationsByUser(ctx, "user-1", 10)
	require.NoError(t, err)
	assert.Empty(t, notifications)
}

func TestDispatcher_FailureIsolation(t *testing.T) {
	p := newTestPipeline(t)
	ctx := context.Background()

	seedBaseline(t, p, "user-1")

	// An entry pointing at a transaction that was never ingested.
	orphan := model.QueueEntry{TransactionID: "txn-ghost", UserID: "user-1"}
	require.NoError(t, p.store.Enqueue(ctx, &orphan))

	healthy := enqueueTxn(t, p, model.Transaction{
		ID: "txn-ok", UserID: "user-1", Merchant: "Cafe",
		Category: "Dining", Amount: -50,
		Date: time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC),
	})

	processed, err := p.dispatcher.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, processed)

	got, err := p.store.GetQueueEntry(ctx, orphan.ID)
	require.NoError(t, err)
	assert.Equal(t, model.QueueFailed, got.Status)
	assert.Contains(t, got.ErrorMessage, "missing transaction")
	assert.Nil(t, got.ProcessedAt)

	// The bad entry must not block the good one.
	got, err = p.store.GetQueueEntry(ctx, healthy.ID)
	require.NoError(t, err)
	assert.Equal(t, model.QueueCompleted, got.Status)
}

func TestDispatcher_RetryAfterFailureIsIdempotent(t *testing.T) {
	p := newTestPipeline(t)
	ctx := context.Background()

	seedBaseline(t, p, "user-1")

	// First pass fails: transaction not yet visible.
	entry := model.QueueEntry{TransactionID: "txn-late", UserID: "user-1"}
	require.NoError(t, p.store.Enqueue(ctx, &entry))

	_, err := p.dispatcher.RunOnce(ctx)
	require.NoError(t, err)

	got, err := p.store.GetQueueEntry(ctx, entry.ID)
	require.NoError(t, err)
	require.Equal(t, model.QueueFailed, got.Status)

	// The transaction arrives, the retrier resets the entry.
	require.NoError(t, p.store.SaveTransactions(ctx, []model.Transaction{{
		ID: "txn-late", UserID: "user-1", Merchant: "Electronics Depot",
		Category: "Shopping", Amount: -1000,
		Date: time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC),
	}}))
	n, err := p.store.RetryFailed(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, n)

	_, err = p.dispatcher.RunOnce(ctx)
	require.NoError(t, err)

	got, err = p.store.GetQueueEntry(ctx, entry.ID)
	require.NoError(t, err)
	assert.Equal(t, model.QueueCompleted, got.Status)

	notifications, err := p.store.GetNotificationsByUser(ctx, "user-1", 10)
	require.NoError(t, err)
	assert.Len(t, notifications, 1)
}

func TestDispatcher_ReprocessingDoesNotDuplicateAlerts(t *testing.T) {
	p := newTestPipeline(t)
	ctx := context.Background()

	seedBaseline(t, p, "user-1")

	txn := model.Transaction{
		ID: "txn-big", UserID: "user-1", Merchant: "Electronics Depot",
		Category: "Shopping", Amount: -1000,
		Date: time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC),
	}

	// The alert already exists from an earlier processing attempt.
	notifier := notify.New(p.store, nil)
	result := classifier.New(config.DefaultThresholds()).Classify(txn, &model.SpendingHistory{AverageSpend: 50})
	require.True(t, result.IsAnomaly)
	_, err := notifier.Notify(ctx, txn, result)
	require.NoError(t, err)

	enqueueTxn(t, p, txn)
	_, err = p.dispatcher.RunOnce(ctx)
	require.NoError(t, err)

	notifications, err := p.store.GetNotificationsByUser(ctx, "user-1", 10)
	require.NoError(t, err)
	assert.Len(t, notifications, 1)
}

func TestDispatcher_EmptyQueue(t *testing.T) {
	p := newTestPipeline(t)

	processed, err := p.dispatcher.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Zero(t, processed)
}

func TestDispatcher_BatchLimitRespected(t *testing.T) {
	p := newTestPipeline(t)
	ctx := context.Background()

	seedBaseline(t, p, "user-1")
	base := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	for i, id := range []string{"txn-a", "txn-b", "txn-c"} {
		enqueueTxn(t, p, model.Transaction{
			ID: id, UserID: "user-1", Merchant: "Cafe",
			Category: "Dining", Amount: -50 - float64(i),
			Date: base.Add(time.Duration(i) * time.Hour),
		})
	}

	p.dispatcher.cfg.BatchSize = 2
	processed, err := p.dispatcher.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, processed)

	processed, err = p.dispatcher.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, processed)
}
