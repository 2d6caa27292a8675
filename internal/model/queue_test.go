package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestQueueEntry_CanTransitionTo(t *testing.T) {
	tests := []struct {
		name string
		from QueueStatus
		to   QueueStatus
		want bool
	}{
		{"pending can be claimed", QueuePending, QueueProcessing, true},
		{"pending cannot complete directly", QueuePending, QueueCompleted, false},
		{"pending cannot fail directly", QueuePending, QueueFailed, false},
		{"processing can complete", QueueProcessing, QueueCompleted, true},
		{"processing can fail", QueueProcessing, QueueFailed, true},
		{"processing can be reclaimed", QueueProcessing, QueuePending, true},
		{"failed can be retried", QueueFailed, QueuePending, true},
		{"failed cannot complete", QueueFailed, QueueCompleted, false},
		{"completed is terminal", QueueCompleted, QueuePending, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entry := QueueEntry{Status: tt.from}
			assert.Equal(t, tt.want, entry.CanTransitionTo(tt.to))
		})
	}
}
