// Package model defines the core domain models used throughout the application.
package model

// RiskLevel is the severity bucket attached to a detected anomaly.
type RiskLevel string

// Risk level constants, ordered from least to most severe.
const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// AlertType identifies which rule flagged a transaction.
type AlertType string

// Alert type constants. AlertNone means no rule fired.
const (
	AlertNone               AlertType = ""
	AlertUnusualAmount      AlertType = "unusual_amount"
	AlertDuplicateCharge    AlertType = "duplicate_charge"
	AlertSuspiciousMerchant AlertType = "suspicious_merchant"
	AlertCategoryOverspend  AlertType = "category_overspend"
)

// AnomalyResult is the classifier's verdict on a single transaction.
//
// When IsAnomaly is false, AlertType is AlertNone and Reason is empty.
type AnomalyResult struct {
	RiskLevel  RiskLevel
	AlertType  AlertType
	Reason     string
	Confidence float64
	IsAnomaly  bool
}
