package realtime

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/finwatch/spendguard/internal/model"
	"github.com/finwatch/spendguard/internal/service"
)

// ChannelForUser returns the Redis channel carrying one user's alerts.
func ChannelForUser(userID string) string {
	return "notifications:" + userID
}

// RedisPublisher fans notifications out across processes via Redis
// pub/sub. Each user has a dedicated channel, so a subscriber only ever
// sees its own alerts.
type RedisPublisher struct {
	client *redis.Client
}

var _ service.Publisher = (*RedisPublisher)(nil)

// NewRedisPublisher connects a publisher to the given Redis instance.
func NewRedisPublisher(addr, password string, db int) *RedisPublisher {
	return &RedisPublisher{
		client: redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: password,
			DB:       db,
		}),
	}
}

// Publish implements service.Publisher.
func (p *RedisPublisher) Publish(ctx context.Context, n *model.Notification) error {
	payload, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}

	if err := p.client.Publish(ctx, ChannelForUser(n.UserID), payload).Err(); err != nil {
		return fmt.Errorf("failed to publish to redis: %w", err)
	}

	return nil
}

// Subscribe opens a decoded feed of one user's notifications. The
// returned cancel function closes the underlying subscription.
func (p *RedisPublisher) Subscribe(ctx context.Context, userID string) (<-chan model.Notification, func(), error) {
	pubsub := p.client.Subscribe(ctx, ChannelForUser(userID))

	// Confirm the subscription before handing the channel out.
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, nil, fmt.Errorf("failed to subscribe: %w", err)
	}

	out := make(chan model.Notification, DefaultBuffer)
	go func() {
		defer close(out)
		for msg := range pubsub.Channel() {
			var n model.Notification
			if err := json.Unmarshal([]byte(msg.Payload), &n); err != nil {
				continue
			}
			select {
			case out <- n:
			case <-ctx.Done():
				return
			}
		}
	}()

	cancel := func() { _ = pubsub.Close() }
	return out, cancel, nil
}

// Close releases the Redis connection.
func (p *RedisPublisher) Close() error {
	return p.client.Close()
}
