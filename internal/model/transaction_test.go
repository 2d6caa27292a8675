package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTransaction_GenerateHash(t *testing.T) {
	base := Transaction{
		ID:       "txn-1",
		UserID:   "user-1",
		Merchant: "Coffee Shop",
		Amount:   -5.99,
		Date:     time.Date(2025, 6, 15, 9, 0, 0, 0, time.UTC),
	}

	same := base
	same.ID = "txn-replayed"
	assert.Equal(t, base.GenerateHash(), same.GenerateHash(),
		"hash ignores the ingestion-assigned ID")

	differentAmount := base
	differentAmount.Amount = -6.99
	assert.NotEqual(t, base.GenerateHash(), differentAmount.GenerateHash())

	differentDay := base
	differentDay.Date = base.Date.Add(24 * time.Hour)
	assert.NotEqual(t, base.GenerateHash(), differentDay.GenerateHash())

	differentUser := base
	differentUser.UserID = "user-2"
	assert.NotEqual(t, base.GenerateHash(), differentUser.GenerateHash())
}

func TestTransaction_AbsAmount(t *testing.T) {
	assert.InDelta(t, 5.99, (&Transaction{Amount: -5.99}).AbsAmount(), 0.001)
	assert.InDelta(t, 12.00, (&Transaction{Amount: 12.00}).AbsAmount(), 0.001)
	assert.Zero(t, (&Transaction{}).AbsAmount())
}
