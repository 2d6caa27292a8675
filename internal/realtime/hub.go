// Package realtime fans newly created notifications out to subscribed
// clients, keyed by user identity.
package realtime

import (
	"context"
	"log/slog"
	"sync"

	"github.com/finwatch/spendguard/internal/model"
	"github.com/finwatch/spendguard/internal/service"
)

// DefaultBuffer is the per-subscription channel buffer.
const DefaultBuffer = 16

// Subscription is one client's feed of its own notifications. Consumers
// must drain C promptly; a full buffer drops events rather than blocking
// the pipeline, so delivery is at-least-once with no slow-subscriber
// back-pressure on the dispatcher.
type Subscription struct {
	C      <-chan model.Notification
	hub    *Hub
	ch     chan model.Notification
	userID string
	once   sync.Once
}

// Close unsubscribes and releases the subscription's channel.
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.hub.remove(s)
		close(s.ch)
	})
}

// Hub is an in-process publish-subscribe broker. Events for a user are
// delivered only to that user's subscriptions; filtering happens here, on
// the server side, never in the client.
type Hub struct {
	subs   map[string]map[*Subscription]struct{}
	buffer int
	mu     sync.RWMutex
}

var _ service.Publisher = (*Hub)(nil)

// NewHub creates a hub with the default subscription buffer.
func NewHub() *Hub {
	return &Hub{
		subs:   make(map[string]map[*Subscription]struct{}),
		buffer: DefaultBuffer,
	}
}

// Subscribe registers a feed for one user's notifications.
func (h *Hub) Subscribe(userID string) *Subscription {
	ch := make(chan model.Notification, h.buffer)
	sub := &Subscription{
		C:      ch,
		ch:     ch,
		hub:    h,
		userID: userID,
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.subs[userID] == nil {
		h.subs[userID] = make(map[*Subscription]struct{})
	}
	h.subs[userID][sub] = struct{}{}

	return sub
}

func (h *Hub) remove(sub *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if set, ok := h.subs[sub.userID]; ok {
		delete(set, sub)
		if len(set) == 0 {
			delete(h.subs, sub.userID)
		}
	}
}

// Publish delivers a notification to every subscription of its owning
// user. It never blocks: subscribers that cannot keep up lose events and
// must reconcile from the notification store.
func (h *Hub) Publish(_ context.Context, n *model.Notification) error {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for sub := range h.subs[n.UserID] {
		select {
		case sub.ch <- *n:
		default:
			slog.Warn("Dropping realtime event for slow subscriber",
				"user_id", n.UserID,
				"notification_id", n.ID)
		}
	}

	return nil
}

// SubscriberCount reports how many subscriptions a user currently holds.
func (h *Hub) SubscriberCount(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[userID])
}

// Fanout publishes to several backends in order, e.g. the in-process hub
// plus Redis for other processes. The first error aborts the chain.
type Fanout []service.Publisher

// Publish implements service.Publisher.
func (f Fanout) Publish(ctx context.Context, n *model.Notification) error {
	for _, p := range f {
		if err := p.Publish(ctx, n); err != nil {
			return err
		}
	}
	return nil
}
