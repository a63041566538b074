// Package matching scores candidate receivables for a bank transaction.
//
// The set of matchers is closed: ExactAmountMatcher, IBANMatcher,
// FuzzyDescriptionMatcher, DateWindowMatcher and the CompositeMatcher that
// combines them. Matchers are pure; Service adds candidate loading,
// filtering and ranking on top.
package matching

import (
	"math"
	"time"

	"bank-reconciliation-engine/internal/models"

	"github.com/google/uuid"
)

type Kind string

const (
	KindExact            Kind = "EXACT"
	KindIBAN             Kind = "IBAN"
	KindFuzzyDescription Kind = "FUZZY_DESCRIPTION"
	KindDateWindow       Kind = "DATE_WINDOW"
	KindComposite        Kind = "COMPOSITE"
)

// Weighted reports whether k can carry a composite weight.
func (k Kind) Weighted() bool {
	switch k {
	case KindExact, KindIBAN, KindFuzzyDescription, KindDateWindow:
		return true
	}
	return false
}

// Hypothesis is a scored guess that a transaction settles a receivable.
// It is never persisted on its own.
type Hypothesis struct {
	TransactionID     uuid.UUID `json:"transaction_id"`
	ReceivableID      uuid.UUID `json:"receivable_id"`
	ReceivableNumber  string    `json:"receivable_number"`
	ReceivableDueDate time.Time `json:"receivable_due_date"`
	ReceivableVersion int64     `json:"receivable_version"`
	Kind              Kind      `json:"kind"`
	Confidence        float64   `json:"confidence"`
	Rationale         string    `json:"rationale"`
}

// Matcher evaluates one (transaction, receivable) pair. A nil result means
// the heuristic does not apply.
type Matcher interface {
	Kind() Kind
	Evaluate(tx *models.BankTransaction, r *models.Receivable) *Hypothesis
}

func newHypothesis(tx *models.BankTransaction, r *models.Receivable, kind Kind, confidence float64, rationale string) *Hypothesis {
	return &Hypothesis{
		TransactionID:     tx.ID,
		ReceivableID:      r.ID,
		ReceivableNumber:  r.Number,
		ReceivableDueDate: r.DueDate,
		ReceivableVersion: r.Version,
		Kind:              kind,
		Confidence:        clamp(confidence),
		Rationale:         rationale,
	}
}

func clamp(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// roundScore keeps four decimals so repeated sums compare stably.
func roundScore(v float64) float64 {
	return math.Round(v*10000) / 10000
}

// daysBetween counts whole calendar days between the UTC dates of a and b.
func daysBetween(a, b time.Time) int {
	ay, am, ad := a.UTC().Date()
	by, bm, bd := b.UTC().Date()
	da := time.Date(ay, am, ad, 0, 0, 0, 0, time.UTC)
	db := time.Date(by, bm, bd, 0, 0, 0, 0, time.UTC)
	days := int(math.Round(da.Sub(db).Hours() / 24))
	if days < 0 {
		return -days
	}
	return days
}
