// Package metrics exposes Prometheus instrumentation for the alert
// pipeline.
package metrics

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/finwatch/spendguard/internal/model"
)

// Collector aggregates pipeline metrics. A nil Collector is valid and
// records nothing, so callers don't need to guard every observation.
type Collector struct {
	registry         *prometheus.Registry
	entriesProcessed prometheus.Counter
	entriesFailed    prometheus.Counter
	anomaliesFlagged *prometheus.CounterVec
	classifyDuration prometheus.Histogram
	entryDuration    prometheus.Histogram
	queueDepth       *prometheus.GaugeVec
}

// NewCollector creates a collector with its own registry.
func NewCollector() *Collector {
	registry := prometheus.NewRegistry()

	return &Collector{
		registry: registry,
		entriesProcessed: promauto.With(registry).NewCounter(prometheus.CounterOpts{
			Name: "alert_queue_entries_processed_total",
			Help: "Queue entries classified successfully",
		}),
		entriesFailed: promauto.With(registry).NewCounter(prometheus.CounterOpts{
			Name: "alert_queue_entries_failed_total",
			Help: "Queue entries that terminated in the failed state",
		}),
		anomaliesFlagged: promauto.With(registry).NewCounterVec(prometheus.CounterOpts{
			Name: "transaction_anomalies_total",
			Help: "Anomalies detected, by alert type and risk level",
		}, []string{"alert_type", "risk_level"}),
		classifyDuration: promauto.With(registry).NewHistogram(prometheus.HistogramOpts{
			Name:    "classifier_duration_seconds",
			Help:    "Time spent in the classifier per transaction",
			Buckets: prometheus.ExponentialBuckets(0.000001, 10, 8),
		}),
		entryDuration: promauto.With(registry).NewHistogram(prometheus.HistogramOpts{
			Name:    "alert_queue_entry_duration_seconds",
			Help:    "End-to-end time from claim to terminal status",
			Buckets: prometheus.DefBuckets,
		}),
		queueDepth: promauto.With(registry).NewGaugeVec(prometheus.GaugeOpts{
			Name: "alert_queue_depth",
			Help: "Queue entries by status",
		}, []string{"status"}),
	}
}

// ObserveProcessed records a successfully completed queue entry.
func (c *Collector) ObserveProcessed(elapsed time.Duration) {
	if c == nil {
		return
	}
	c.entriesProcessed.Inc()
	c.entryDuration.Observe(elapsed.Seconds())
}

// ObserveFailed records a queue entry that terminated in failure.
func (c *Collector) ObserveFailed(elapsed time.Duration) {
	if c == nil {
		return
	}
	c.entriesFailed.Inc()
	c.entryDuration.Observe(elapsed.Seconds())
}

// ObserveClassification records a classifier invocation and its verdict.
func (c *Collector) ObserveClassification(result model.AnomalyResult, elapsed time.Duration) {
	if c == nil {
		return
	}
	c.classifyDuration.Observe(elapsed.Seconds())
	if result.IsAnomaly {
		c.anomaliesFlagged.WithLabelValues(string(result.AlertType), string(result.RiskLevel)).Inc()
	}
}

// SetQueueDepth records the current queue depth by status.
func (c *Collector) SetQueueDepth(depth map[model.QueueStatus]int) {
	if c == nil {
		return
	}
	for _, status := range []model.QueueStatus{
		model.QueuePending, model.QueueProcessing, model.QueueCompleted, model.QueueFailed,
	} {
		c.queueDepth.WithLabelValues(string(status)).Set(float64(depth[status]))
	}
}

// Handler returns the /metrics handler for this collector's registry.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// StartServer serves /metrics on addr until the server is shut down.
func (c *Collector) StartServer(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", c.Handler())

	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		slog.Info("Starting metrics server", "addr", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("Metrics server failed", "error", err)
		}
	}()

	return server
}

// Shutdown stops the metrics server.
func Shutdown(ctx context.Context, server *http.Server) {
	if server == nil {
		return
	}
	if err := server.Shutdown(ctx); err != nil {
		slog.Warn("Metrics server shutdown", "error", err)
	}
}
