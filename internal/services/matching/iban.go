package matching

import (
	"fmt"
	"strings"

	"bank-reconciliation-engine/internal/models"
)

const (
	ibanWithAmountConfidence = 0.9
	ibanOnlyConfidence       = 0.6
)

// IBANMatcher fires when the payer's account identifier is the one on file
// for the receivable's counterparty.
type IBANMatcher struct {
	cfg Config
}

func NewIBANMatcher(cfg Config) *IBANMatcher {
	return &IBANMatcher{cfg: cfg}
}

func (m *IBANMatcher) Kind() Kind { return KindIBAN }

func (m *IBANMatcher) Evaluate(tx *models.BankTransaction, r *models.Receivable) *Hypothesis {
	if tx.CounterpartyID == nil {
		return nil
	}
	payer := normalizeIdentifier(*tx.CounterpartyID)
	if payer == "" || payer != normalizeIdentifier(r.CounterpartyID) {
		return nil
	}

	if tx.Amount.Sub(r.Remaining()).Abs().LessThanOrEqual(m.cfg.AmountTolerance) {
		return newHypothesis(tx, r, KindIBAN, ibanWithAmountConfidence,
			fmt.Sprintf("counterparty %s and amount %s match", payer, tx.Amount.StringFixed(2)))
	}
	return newHypothesis(tx, r, KindIBAN, ibanOnlyConfidence,
		fmt.Sprintf("counterparty %s matches", payer))
}

func normalizeIdentifier(s string) string {
	return strings.ToUpper(strings.Join(strings.Fields(s), ""))
}
