package matching

import (
	"fmt"

	"bank-reconciliation-engine/internal/models"
)

// ExactAmountMatcher fires when the transaction pays the remaining amount
// within tolerance and lands inside the due-date window.
type ExactAmountMatcher struct {
	cfg Config
}

func NewExactAmountMatcher(cfg Config) *ExactAmountMatcher {
	return &ExactAmountMatcher{cfg: cfg}
}

func (m *ExactAmountMatcher) Kind() Kind { return KindExact }

func (m *ExactAmountMatcher) Evaluate(tx *models.BankTransaction, r *models.Receivable) *Hypothesis {
	remaining := r.Remaining()
	if !remaining.IsPositive() {
		return nil
	}
	diff := tx.Amount.Sub(remaining).Abs()
	if diff.GreaterThan(m.cfg.AmountTolerance) {
		return nil
	}
	days := daysBetween(tx.ValueDate, r.DueDate)
	if days > m.cfg.DateWindowDays {
		return nil
	}

	// an inexact amount counts as half a day further away
	distance := float64(days)
	if !diff.IsZero() {
		distance += 0.5
	}

	confidence := 1.0
	if distance > 0 {
		window := float64(m.cfg.DateWindowDays)
		if window == 0 || distance > window {
			distance, window = 1, 1
		}
		confidence = 1 - (1-m.cfg.ExactFloor)*distance/window
	}

	return newHypothesis(tx, r, KindExact, confidence,
		fmt.Sprintf("amount %s vs remaining %s, %d days from due date", tx.Amount.StringFixed(2), remaining.StringFixed(2), days))
}
