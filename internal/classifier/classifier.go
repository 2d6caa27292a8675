// Package classifier implements the rule-based anomaly classifier for
// financial transactions.
package classifier

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/finwatch/spendguard/internal/config"
	"github.com/finwatch/spendguard/internal/model"
)

// Classifier scores transactions against a user's spending history. It is
// pure and stateless: safe for concurrent use across dispatcher workers.
//
// Rule order is significant and encodes severity-first triage. The first
// matching rule wins:
//
//  1. unusual amount (precise, actionable confidence)
//  2. duplicate charge
//  3. suspicious merchant
//  4. category overspend (weakest signal, only when nothing sharper fired)
type Classifier struct {
	thresholds config.Thresholds
}

// New creates a classifier with the given thresholds.
func New(thresholds config.Thresholds) *Classifier {
	return &Classifier{thresholds: thresholds}
}

// Classify evaluates a transaction against the user's spending history and
// returns the anomaly verdict. Absence of an anomaly is a normal result,
// never an error.
func (c *Classifier) Classify(txn model.Transaction, history *model.SpendingHistory) model.AnomalyResult {
	if history == nil {
		history = &model.SpendingHistory{}
	}

	amount := txn.AbsAmount()
	avg := history.AverageSpend
	if avg <= 0 {
		avg = c.thresholds.DefaultAverage
	}

	if result, ok := c.checkUnusualAmount(amount, avg); ok {
		return result
	}
	if result, ok := c.checkDuplicateCharge(txn, amount, history); ok {
		return result
	}
	if result, ok := c.checkSuspiciousMerchant(txn.Merchant); ok {
		return result
	}
	if result, ok := c.checkCategoryOverspend(txn, amount, avg, history); ok {
		return result
	}

	return model.AnomalyResult{
		IsAnomaly:  false,
		RiskLevel:  model.RiskLow,
		AlertType:  model.AlertNone,
		Confidence: 0.1,
	}
}

func (c *Classifier) checkUnusualAmount(amount, avg float64) (model.AnomalyResult, bool) {
	if amount <= c.thresholds.UnusualMultiplier*avg {
		return model.AnomalyResult{}, false
	}

	risk := model.RiskMedium
	if amount > c.thresholds.HighRiskMultiplier*avg {
		risk = model.RiskHigh
	}

	multiple := amount / avg
	confidence := math.Min(0.95, 0.7+multiple*0.05)

	return model.AnomalyResult{
		IsAnomaly:  true,
		RiskLevel:  risk,
		AlertType:  model.AlertUnusualAmount,
		Confidence: confidence,
		Reason:     fmt.Sprintf("charge is %.1fx your average spend of $%.2f", multiple, avg),
	}, true
}

func (c *Classifier) checkDuplicateCharge(txn model.Transaction, amount float64, history *model.SpendingHistory) (model.AnomalyResult, bool) {
	window := c.thresholds.DuplicateWindow

	for _, prior := range history.RecentTransactions {
		if prior.ID == txn.ID {
			continue
		}
		if prior.Merchant != txn.Merchant {
			continue
		}
		if prior.AbsAmount() != amount {
			continue
		}

		gap := txn.Date.Sub(prior.Date)
		if gap < 0 {
			gap = -gap
		}
		// Boundary is inclusive: a charge exactly one window apart still counts.
		if gap > window {
			continue
		}

		return model.AnomalyResult{
			IsAnomaly:  true,
			RiskLevel:  model.RiskMedium,
			AlertType:  model.AlertDuplicateCharge,
			Confidence: 0.9,
			Reason: fmt.Sprintf("possible duplicate of a $%.2f charge at %s within %s",
				amount, txn.Merchant, formatWindow(window)),
		}, true
	}

	return model.AnomalyResult{}, false
}

func (c *Classifier) checkSuspiciousMerchant(merchant string) (model.AnomalyResult, bool) {
	lowered := strings.ToLower(merchant)

	for _, token := range c.thresholds.SuspiciousTokens {
		if !strings.Contains(lowered, strings.ToLower(token)) {
			continue
		}

		return model.AnomalyResult{
			IsAnomaly:  true,
			RiskLevel:  model.RiskHigh,
			AlertType:  model.AlertSuspiciousMerchant,
			Confidence: 0.85,
			Reason:     fmt.Sprintf("merchant %q matches flagged pattern %q", merchant, token),
		}, true
	}

	return model.AnomalyResult{}, false
}

func (c *Classifier) checkCategoryOverspend(txn model.Transaction, amount, avg float64, history *model.SpendingHistory) (model.AnomalyResult, bool) {
	// New categories fall back to the overall average until an aggregate
	// exists for them.
	categoryAvg, ok := history.Categories[txn.Category]
	if !ok || categoryAvg <= 0 {
		categoryAvg = avg
	}

	if amount <= c.thresholds.OverspendMultiplier*categoryAvg {
		return model.AnomalyResult{}, false
	}

	return model.AnomalyResult{
		IsAnomaly:  true,
		RiskLevel:  model.RiskLow,
		AlertType:  model.AlertCategoryOverspend,
		Confidence: 0.7,
		Reason: fmt.Sprintf("charge is %.1fx your typical %s spend of $%.2f",
			amount/categoryAvg, txn.Category, categoryAvg),
	}, true
}

func formatWindow(w time.Duration) string {
	if w%(24*time.Hour) == 0 {
		return fmt.Sprintf("%dh", int(w.Hours()))
	}
	return w.String()
}
