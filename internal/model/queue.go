package model

import "time"

// QueueStatus is the lifecycle state of an alert-queue entry.
type QueueStatus string

// Queue status constants.
const (
	QueuePending    QueueStatus = "pending"
	QueueProcessing QueueStatus = "processing"
	QueueCompleted  QueueStatus = "completed"
	QueueFailed     QueueStatus = "failed"
)

// QueueEntry is a unit of pending classification work tied to one
// transaction. Entries move pending -> processing -> {completed | failed};
// failed entries may be reset to pending by the retry path.
type QueueEntry struct {
	CreatedAt     time.Time
	ProcessedAt   *time.Time
	ClaimedAt     *time.Time
	ID            string
	TransactionID string
	UserID        string
	Status        QueueStatus
	ErrorMessage  string
}

// CanTransitionTo reports whether moving to the given status is a legal
// state-machine step from the entry's current status.
func (e *QueueEntry) CanTransitionTo(next QueueStatus) bool {
	switch e.Status {
	case QueuePending:
		return next == QueueProcessing
	case QueueProcessing:
		return next == QueueCompleted || next == QueueFailed || next == QueuePending
	case QueueFailed:
		return next == QueuePending
	case QueueCompleted:
		return false
	}
	return false
}
