package model

// SpendingHistory is a read-only snapshot of a user's spending pattern,
// computed on demand and handed to the classifier as context. It is never
// persisted by this subsystem.
type SpendingHistory struct {
	Categories         map[string]float64
	RecentTransactions []Transaction
	AverageSpend       float64
}
