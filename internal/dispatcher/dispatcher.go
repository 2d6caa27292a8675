// Package dispatcher drives the alert pipeline: it claims pending queue
// entries, classifies their transactions, and records the outcome.
package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/finwatch/spendguard/internal/classifier"
	"github.com/finwatch/spendguard/internal/common"
	"github.com/finwatch/spendguard/internal/metrics"
	"github.com/finwatch/spendguard/internal/model"
	"github.com/finwatch/spendguard/internal/notify"
	"github.com/finwatch/spendguard/internal/service"
)

// Config holds configuration options for the dispatcher.
type Config struct {
	BatchSize    int
	Workers      int
	PollInterval time.Duration
	Lease        time.Duration
	Retry        service.RetryOptions
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		BatchSize:    10,
		Workers:      4,
		PollInterval: 15 * time.Second,
		Lease:        5 * time.Minute,
		Retry: service.RetryOptions{
			MaxAttempts:  3,
			InitialDelay: 100 * time.Millisecond,
			MaxDelay:     2 * time.Second,
			Multiplier:   2.0,
		},
	}
}

// Dispatcher claims and processes alert-queue entries. Multiple instances
// may run concurrently; the queue store's conditional claim keeps them
// from processing the same entry.
type Dispatcher struct {
	queue        service.QueueStore
	transactions service.TransactionStore
	history      service.HistorySource
	classifier   *classifier.Classifier
	notifier     *notify.Notifier
	collector    *metrics.Collector
	cfg          Config
}

// New creates a dispatcher. collector may be nil.
func New(
	queue service.QueueStore,
	transactions service.TransactionStore,
	history service.HistorySource,
	c *classifier.Classifier,
	notifier *notify.Notifier,
	collector *metrics.Collector,
	cfg Config,
) *Dispatcher {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultConfig().BatchSize
	}
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultConfig().Workers
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultConfig().PollInterval
	}
	if cfg.Lease <= 0 {
		cfg.Lease = DefaultConfig().Lease
	}

	return &Dispatcher{
		queue:        queue,
		transactions: transactions,
		history:      history,
		classifier:   c,
		notifier:     notifier,
		collector:    collector,
		cfg:          cfg,
	}
}

// Run polls the queue on a fixed interval until the context is canceled.
// Each tick reclaims stale claims, then drains the pending backlog.
func (d *Dispatcher) Run(ctx context.Context) error {
	slog.Info("Starting dispatcher",
		"batch_size", d.cfg.BatchSize,
		"workers", d.cfg.Workers,
		"poll_interval", d.cfg.PollInterval,
		"lease", d.cfg.Lease)

	ticker := time.NewTicker(d.cfg.PollInterval)
	defer ticker.Stop()

	for {
		if err := d.tick(ctx); err != nil && !errors.Is(err, context.Canceled) {
			slog.Error("Dispatcher pass failed", "error", err)
		}

		select {
		case <-ctx.Done():
			slog.Info("Dispatcher stopping")
			return nil
		case <-ticker.C:
		}
	}
}

func (d *Dispatcher) tick(ctx context.Context) error {
	reclaimed, err := d.queue.ReclaimStale(ctx, d.cfg.Lease)
	if err != nil {
		return fmt.Errorf("failed to reclaim stale entries: %w", err)
	}
	if reclaimed > 0 {
		slog.Warn("Reclaimed stale queue entries", "count", reclaimed)
	}

	for {
		processed, err := d.RunOnce(ctx)
		if err != nil {
			return err
		}
		if processed == 0 {
			break
		}
	}

	if depth, err := d.queue.GetQueueDepth(ctx); err == nil {
		d.collector.SetQueueDepth(depth)
	}

	return nil
}

// RunOnce claims and processes a single batch, returning how many entries
// it handled. Entry failures are recorded on the entry, never returned:
// one bad entry must not block the rest of the batch.
func (d *Dispatcher) RunOnce(ctx context.Context) (int, error) {
	entries, err := d.queue.ClaimBatch(ctx, d.cfg.BatchSize)
	if err != nil {
		return 0, fmt.Errorf("failed to claim batch: %w", err)
	}
	if len(entries) == 0 {
		return 0, nil
	}

	slog.Debug("Claimed queue entries", "count", len(entries))

	work := make(chan model.QueueEntry)
	var wg sync.WaitGroup

	for i := 0; i < d.cfg.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for entry := range work {
				d.processEntry(ctx, entry)
			}
		}()
	}

	for _, entry := range entries {
		work <- entry
	}
	close(work)
	wg.Wait()

	return len(entries), nil
}

func (d *Dispatcher) processEntry(ctx context.Context, entry model.QueueEntry) {
	start := time.Now()

	if err := d.classifyEntry(ctx, entry); err != nil {
		slog.Error("Queue entry failed",
			"entry_id", entry.ID,
			"transaction_id", entry.TransactionID,
			"error", err)

		if failErr := d.queue.MarkFailed(ctx, entry.ID, err); failErr != nil {
			slog.Error("Failed to record entry failure",
				"entry_id", entry.ID,
				"error", failErr)
		}
		d.collector.ObserveFailed(time.Since(start))
		return
	}

	if err := d.queue.MarkCompleted(ctx, entry.ID); err != nil {
		slog.Error("Failed to complete entry", "entry_id", entry.ID, "error", err)
		return
	}
	d.collector.ObserveProcessed(time.Since(start))
}

func (d *Dispatcher) classifyEntry(ctx context.Context, entry model.QueueEntry) error {
	txn, err := d.loadTransaction(ctx, entry)
	if err != nil {
		return err
	}

	var hist *model.SpendingHistory
	err = common.WithRetry(ctx, func() error {
		h, loadErr := d.history.SpendingHistory(ctx, entry.UserID)
		if loadErr != nil {
			return common.Retryable(loadErr)
		}
		hist = h
		return nil
	}, d.cfg.Retry)
	if err != nil {
		return fmt.Errorf("failed to load spending history: %w", err)
	}

	classifyStart := time.Now()
	result := d.classifier.Classify(*txn, hist)
	d.collector.ObserveClassification(result, time.Since(classifyStart))

	slog.Debug("Classified transaction",
		"transaction_id", txn.ID,
		"is_anomaly", result.IsAnomaly,
		"alert_type", result.AlertType,
		"risk_level", result.RiskLevel,
		"confidence", result.Confidence)

	notification, err := d.notifier.Notify(ctx, *txn, result)
	if err != nil {
		return fmt.Errorf("failed to create notification: %w", err)
	}

	if notification != nil {
		slog.Info("Anomaly alert created",
			"notification_id", notification.ID,
			"transaction_id", txn.ID,
			"user_id", txn.UserID,
			"alert_type", result.AlertType,
			"risk_level", result.RiskLevel)
	}

	return nil
}

func (d *Dispatcher) loadTransaction(ctx context.Context, entry model.QueueEntry) (*model.Transaction, error) {
	var txn *model.Transaction
	err := common.WithRetry(ctx, func() error {
		t, loadErr := d.transactions.GetTransactionByID(ctx, entry.TransactionID)
		if loadErr != nil {
			// A missing transaction is an input error, not a transient one.
			if errors.Is(loadErr, common.ErrNotFound) {
				return fmt.Errorf("%w: %v", common.ErrMissingTransaction, loadErr)
			}
			return common.Retryable(loadErr)
		}
		txn = t
		return nil
	}, d.cfg.Retry)
	if err != nil {
		return nil, err
	}

	return txn, nil
}
