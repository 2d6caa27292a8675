package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/finwatch/spendguard/internal/model"
)

const (
	reconnectDelay       = 5 * time.Second
	maxReconnectAttempts = 10
)

// ConsumerConfig holds the AMQP connection settings.
type ConsumerConfig struct {
	URL      string
	Queue    string
	Prefetch int
}

// Consumer receives transaction events from an AMQP queue and hands them
// to the ingestor. Malformed messages are rejected without requeue;
// ingest failures are requeued for redelivery.
type Consumer struct {
	cfg      ConsumerConfig
	ingestor *Ingestor

	conn    *amqp.Connection
	channel *amqp.Channel
	mu      sync.RWMutex

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewConsumer connects to AMQP and declares the transaction queue.
func NewConsumer(cfg ConsumerConfig, ingestor *Ingestor) (*Consumer, error) {
	if cfg.Prefetch <= 0 {
		cfg.Prefetch = 10
	}

	c := &Consumer{cfg: cfg, ingestor: ingestor}
	if err := c.connect(); err != nil {
		return nil, fmt.Errorf("failed to connect: %w", err)
	}

	return c, nil
}

func (c *Consumer) connect() error {
	conn, err := amqp.Dial(c.cfg.URL)
	if err != nil {
		return fmt.Errorf("failed to dial AMQP: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("failed to open channel: %w", err)
	}

	if _, err := ch.QueueDeclare(
		c.cfg.Queue,
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,   // arguments
	); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return fmt.Errorf("failed to declare queue: %w", err)
	}

	if err := ch.Qos(c.cfg.Prefetch, 0, false); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return fmt.Errorf("failed to set QoS: %w", err)
	}

	c.mu.Lock()
	c.conn = conn
	c.channel = ch
	c.mu.Unlock()

	slog.Info("Connected to AMQP", "queue", c.cfg.Queue)
	return nil
}

// Start begins consuming until the context is canceled. Lost connections
// are re-dialed with a bounded number of attempts.
func (c *Consumer) Start(ctx context.Context) error {
	ctx, c.cancel = context.WithCancel(ctx)

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.consumeLoop(ctx)
	}()

	return nil
}

func (c *Consumer) consumeLoop(ctx context.Context) {
	attempts := 0

	for {
		if ctx.Err() != nil {
			return
		}

		c.mu.RLock()
		ch := c.channel
		c.mu.RUnlock()

		deliveries, err := ch.Consume(c.cfg.Queue, "", false, false, false, false, nil)
		if err != nil {
			slog.Error("Failed to start consuming", "error", err)
		} else {
			attempts = 0
			c.drain(ctx, deliveries)
		}

		if ctx.Err() != nil {
			return
		}

		attempts++
		if attempts > maxReconnectAttempts {
			slog.Error("Giving up on AMQP reconnect", "attempts", attempts)
			return
		}

		slog.Warn("AMQP connection lost, reconnecting",
			"attempt", attempts,
			"delay", reconnectDelay)

		select {
		case <-ctx.Done():
			return
		case <-time.After(reconnectDelay):
		}

		if err := c.connect(); err != nil {
			slog.Error("Reconnect failed", "error", err)
		}
	}
}

func (c *Consumer) drain(ctx context.Context, deliveries <-chan amqp.Delivery) {
	for {
		select {
		case <-ctx.Done():
			return
		case d, ok := <-deliveries:
			if !ok {
				return
			}
			c.handle(ctx, d)
		}
	}
}

func (c *Consumer) handle(ctx context.Context, d amqp.Delivery) {
	var event TransactionEvent
	if err := json.Unmarshal(d.Body, &event); err != nil {
		slog.Error("Rejecting malformed transaction event", "error", err)
		_ = d.Reject(false)
		return
	}

	if err := c.ingestor.Ingest(ctx, []model.Transaction{event.Transaction()}); err != nil {
		slog.Error("Failed to ingest transaction, requeueing",
			"transaction_id", event.ID,
			"error", err)
		_ = d.Nack(false, true)
		return
	}

	_ = d.Ack(false)
}

// Close stops consuming and tears down the connection.
func (c *Consumer) Close() error {
	if c.cancel != nil {
		c.cancel()
	}
	c.wg.Wait()

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.channel != nil {
		_ = c.channel.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}
