package model

import (
	"crypto/sha256"
	"fmt"
	"time"
)

// Transaction represents a single financial charge as recorded by the
// ingestion process. Amounts are signed: negative values are debits.
type Transaction struct {
	Date     time.Time
	ID       string
	UserID   string
	Merchant string
	Category string
	Hash     string
	Amount   float64
}

// GenerateHash creates a stable hash used to detect re-ingested transactions.
func (t *Transaction) GenerateHash() string {
	data := fmt.Sprintf("%s:%s:%.2f:%s",
		t.Date.Format("2006-01-02"),
		t.Merchant,
		t.Amount,
		t.UserID)
	hash := sha256.Sum256([]byte(data))
	return fmt.Sprintf("%x", hash)
}

// AbsAmount returns the magnitude of the transaction amount.
func (t *Transaction) AbsAmount() float64 {
	if t.Amount < 0 {
		return -t.Amount
	}
	return t.Amount
}
