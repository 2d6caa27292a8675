package model

import "time"

// NotificationTypeTransactionAlert is the only notification type this
// subsystem produces.
const NotificationTypeTransactionAlert = "transaction_alert"

// NotificationPriority drives alert urgency in the delivery layer.
type NotificationPriority string

// Notification priority constants.
const (
	PriorityNormal NotificationPriority = "normal"
	PriorityHigh   NotificationPriority = "high"
	PriorityUrgent NotificationPriority = "urgent"
)

// AlertMetadata is the structured payload attached to a transaction alert.
// LatencyMS and Model are populated only when an external scorer produced
// the result.
type AlertMetadata struct {
	TransactionID string    `json:"transaction_id"`
	Merchant      string    `json:"merchant"`
	Category      string    `json:"category"`
	AlertType     AlertType `json:"alert_type"`
	RiskLevel     RiskLevel `json:"risk_level"`
	Model         string    `json:"model,omitempty"`
	Amount        float64   `json:"amount"`
	Confidence    float64   `json:"confidence"`
	LatencyMS     int64     `json:"latency_ms,omitempty"`
}

// Notification is the user-visible record of a detected anomaly. It is
// written exactly once per transaction; only the read flag is mutated
// afterwards, by the acknowledgement path.
type Notification struct {
	CreatedAt        time.Time
	ID               string
	UserID           string
	NotificationType string
	Title            string
	Message          string
	Priority         NotificationPriority
	Metadata         AlertMetadata
	Read             bool
}

// PriorityForRisk maps a risk level to the notification priority shown to
// the user.
func PriorityForRisk(risk RiskLevel) NotificationPriority {
	switch risk {
	case RiskHigh:
		return PriorityUrgent
	case RiskMedium:
		return PriorityHigh
	default:
		return PriorityNormal
	}
}
