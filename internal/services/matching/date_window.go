package matching

import (
	"fmt"

	"bank-reconciliation-engine/internal/models"

	"github.com/shopspring/decimal"
)

// DateWindowMatcher is the low-weight fallback: any receivable due close to
// the value date whose remaining amount is roughly the transaction amount.
type DateWindowMatcher struct {
	cfg Config
}

func NewDateWindowMatcher(cfg Config) *DateWindowMatcher {
	return &DateWindowMatcher{cfg: cfg}
}

func (m *DateWindowMatcher) Kind() Kind { return KindDateWindow }

func (m *DateWindowMatcher) Evaluate(tx *models.BankTransaction, r *models.Receivable) *Hypothesis {
	remaining := r.Remaining()
	if !remaining.IsPositive() {
		return nil
	}
	days := daysBetween(tx.ValueDate, r.DueDate)
	if days > m.cfg.FallbackWindowDays {
		return nil
	}
	tolerance := remaining.Mul(decimal.NewFromFloat(m.cfg.LooseAmountTolerancePct))
	if tx.Amount.Sub(remaining).Abs().GreaterThan(tolerance) {
		return nil
	}

	confidence := 1 - float64(days)/float64(m.cfg.FallbackWindowDays+1)
	return newHypothesis(tx, r, KindDateWindow, confidence,
		fmt.Sprintf("due %s, %d days from value date", r.DueDate.Format("2006-01-02"), days))
}
