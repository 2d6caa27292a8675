package realtime

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finwatch/spendguard/internal/model"
)

func notificationFor(userID, id string) *model.Notification {
	return &model.Notification{
		ID:               id,
		UserID:           userID,
		NotificationType: model.NotificationTypeTransactionAlert,
		Title:            "Unusual transaction detected",
		Priority:         model.PriorityHigh,
		CreatedAt:        time.Now().UTC(),
	}
}

func TestHub_DeliversToOwningUser(t *testing.T) {
	hub := NewHub()
	sub := hub.Subscribe("user-1")
	defer sub.Close()

	require.NoError(t, hub.Publish(context.Background(), notificationFor("user-1", "n-1")))

	select {
	case got := <-sub.C:
		assert.Equal(t, "n-1", got.ID)
		assert.Equal(t, "user-1", got.UserID)
	case <-time.After(time.Second):
		t.Fatal("expected notification on subscription")
	}
}

func TestHub_FiltersByUser(t *testing.T) {
	hub := NewHub()
	mine := hub.Subscribe("user-1")
	defer mine.Close()
	theirs := hub.Subscribe("user-2")
	defer theirs.Close()

	require.NoError(t, hub.Publish(context.Background(), notificationFor("user-2", "n-1")))

	select {
	case <-mine.C:
		t.Fatal("received another user's notification")
	case <-time.After(50 * time.Millisecond):
	}

	select {
	case got := <-theirs.C:
		assert.Equal(t, "n-1", got.ID)
	case <-time.After(time.Second):
		t.Fatal("expected notification for user-2")
	}
}

func TestHub_MultipleSubscribersFanOut(t *testing.T) {
	hub := NewHub()
	a := hub.Subscribe("user-1")
	defer a.Close()
	b := hub.Subscribe("user-1")
	defer b.Close()

	assert.Equal(t, 2, hub.SubscriberCount("user-1"))

	require.NoError(t, hub.Publish(context.Background(), notificationFor("user-1", "n-1")))

	for _, sub := range []*Subscription{a, b} {
		select {
		case got := <-sub.C:
			assert.Equal(t, "n-1", got.ID)
		case <-time.After(time.Second):
			t.Fatal("expected fan-out to every subscriber")
		}
	}
}

func TestHub_SlowSubscriberDoesNotBlock(t *testing.T) {
	hub := NewHub()
	sub := hub.Subscribe("user-1")
	defer sub.Close()

	// Overfill the buffer without draining; Publish must never block.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < DefaultBuffer*2; i++ {
			_ = hub.Publish(context.Background(), notificationFor("user-1", "n"))
		}
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked on slow subscriber")
	}
}

func TestHub_CloseUnsubscribes(t *testing.T) {
	hub := NewHub()
	sub := hub.Subscribe("user-1")
	sub.Close()
	sub.Close() // idempotent

	assert.Equal(t, 0, hub.SubscriberCount("user-1"))
	require.NoError(t, hub.Publish(context.Background(), notificationFor("user-1", "n-1")))
}

func TestFanout_PublishesToAll(t *testing.T) {
	first := NewHub()
	second := NewHub()
	a := first.Subscribe("user-1")
	defer a.Close()
	b := second.Subscribe("user-1")
	defer b.Close()

	fanout := Fanout{first, second}
	require.NoError(t, fanout.Publish(context.Background(), notificationFor("user-1", "n-1")))

	for _, sub := range []*Subscription{a, b} {
		select {
		case got := <-sub.C:
			assert.Equal(t, "n-1", got.ID)
		case <-time.After(time.Second):
			t.Fatal("expected delivery through fanout")
		}
	}
}

func TestChannelForUser(t *testing.T) {
	assert.Equal(t, "notifications:user-1", ChannelForUser("user-1"))
}
