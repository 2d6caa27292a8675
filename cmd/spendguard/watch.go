package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/finwatch/spendguard/internal/classifier"
	"github.com/finwatch/spendguard/internal/config"
	"github.com/finwatch/spendguard/internal/dispatcher"
	"github.com/finwatch/spendguard/internal/history"
	"github.com/finwatch/spendguard/internal/ingest"
	"github.com/finwatch/spendguard/internal/metrics"
	"github.com/finwatch/spendguard/internal/notify"
	"github.com/finwatch/spendguard/internal/realtime"
	"github.com/finwatch/spendguard/internal/service"
)

func watchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Run the anomaly detection pipeline",
		Long: `Start the dispatcher loop: claim pending queue entries, classify their
transactions against spending history, and push alerts to subscribed
clients. Runs until interrupted.`,
		RunE: runWatch,
	}

	cmd.Flags().Duration("interval", 15*time.Second, "queue poll interval")
	cmd.Flags().Int("batch-size", 10, "entries claimed per pass")
	cmd.Flags().Int("workers", 4, "concurrent classification workers")
	cmd.Flags().Duration("lease", 5*time.Minute, "processing lease before reclaim")
	cmd.Flags().String("metrics-addr", "", "address for the /metrics endpoint (empty disables)")
	cmd.Flags().String("redis-addr", "", "Redis address for cross-process fan-out (empty disables)")
	cmd.Flags().String("amqp-url", "", "AMQP URL for the transaction event consumer (empty disables)")
	cmd.Flags().String("amqp-queue", "transactions", "AMQP queue carrying transaction events")

	_ = viper.BindPFlag("watch.interval", cmd.Flags().Lookup("interval"))
	_ = viper.BindPFlag("watch.batch_size", cmd.Flags().Lookup("batch-size"))
	_ = viper.BindPFlag("watch.workers", cmd.Flags().Lookup("workers"))
	_ = viper.BindPFlag("watch.lease", cmd.Flags().Lookup("lease"))
	_ = viper.BindPFlag("watch.metrics_addr", cmd.Flags().Lookup("metrics-addr"))
	_ = viper.BindPFlag("redis.addr", cmd.Flags().Lookup("redis-addr"))
	_ = viper.BindPFlag("amqp.url", cmd.Flags().Lookup("amqp-url"))
	_ = viper.BindPFlag("amqp.queue", cmd.Flags().Lookup("amqp-queue"))

	return cmd
}

func runWatch(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	store, err := initStorage(ctx)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer func() { _ = store.Close() }()

	// Realtime fan-out: always the in-process hub, plus Redis when
	// configured so other processes see the same per-user channels.
	hub := realtime.NewHub()
	publishers := realtime.Fanout{hub}
	if addr := viper.GetString("redis.addr"); addr != "" {
		redisPub := realtime.NewRedisPublisher(addr,
			viper.GetString("redis.password"),
			viper.GetInt("redis.db"))
		defer func() { _ = redisPub.Close() }()
		publishers = append(publishers, redisPub)
	}

	var publisher service.Publisher = publishers

	collector := metrics.NewCollector()
	if addr := viper.GetString("watch.metrics_addr"); addr != "" {
		server := collector.StartServer(addr)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			metrics.Shutdown(shutdownCtx, server)
		}()
	}

	if url := viper.GetString("amqp.url"); url != "" {
		consumer, err := ingest.NewConsumer(ingest.ConsumerConfig{
			URL:   url,
			Queue: viper.GetString("amqp.queue"),
		}, ingest.NewIngestor(store, store))
		if err != nil {
			return fmt.Errorf("failed to start AMQP consumer: %w", err)
		}
		defer func() { _ = consumer.Close() }()

		if err := consumer.Start(ctx); err != nil {
			return fmt.Errorf("failed to start consuming: %w", err)
		}
	}

	d := dispatcher.New(
		store,
		store,
		history.NewBuilder(store),
		classifier.New(config.LoadThresholds()),
		notify.New(store, publisher),
		collector,
		dispatcher.Config{
			BatchSize:    viper.GetInt("watch.batch_size"),
			Workers:      viper.GetInt("watch.workers"),
			PollInterval: viper.GetDuration("watch.interval"),
			Lease:        viper.GetDuration("watch.lease"),
		},
	)

	return d.Run(ctx)
}
