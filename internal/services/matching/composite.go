package matching

import (
	"fmt"
	"strings"

	"bank-reconciliation-engine/internal/apperr"
	"bank-reconciliation-engine/internal/models"
)

// CompositeMatcher sums the weighted confidences of its sub-matchers.
type CompositeMatcher struct {
	matchers []Matcher
	cfg      Config
}

// NewCompositeMatcher wires every weighted matcher in a fixed order:
// exact, IBAN, fuzzy description, date window.
func NewCompositeMatcher(cfg Config) *CompositeMatcher {
	return &CompositeMatcher{
		cfg: cfg,
		matchers: []Matcher{
			NewExactAmountMatcher(cfg),
			NewIBANMatcher(cfg),
			NewFuzzyDescriptionMatcher(cfg),
			NewDateWindowMatcher(cfg),
		},
	}
}

func (c *CompositeMatcher) Kind() Kind { return KindComposite }

func (c *CompositeMatcher) Evaluate(tx *models.BankTransaction, r *models.Receivable) *Hypothesis {
	var (
		score float64
		fired bool
		parts []string
	)
	for _, m := range c.matchers {
		h := m.Evaluate(tx, r)
		if h == nil {
			continue
		}
		fired = true
		w := c.cfg.weight(m.Kind())
		score += h.Confidence * w
		parts = append(parts, fmt.Sprintf("%s %.2f x %.2f: %s", m.Kind(), h.Confidence, w, h.Rationale))
	}
	if !fired {
		return nil
	}
	return newHypothesis(tx, r, KindComposite, roundScore(clamp(score)), strings.Join(parts, "; "))
}

// NewMatcher builds one member of the closed matcher set. An empty kind
// selects the composite.
func NewMatcher(kind Kind, cfg Config) (Matcher, error) {
	switch kind {
	case KindExact:
		return NewExactAmountMatcher(cfg), nil
	case KindIBAN:
		return NewIBANMatcher(cfg), nil
	case KindFuzzyDescription:
		return NewFuzzyDescriptionMatcher(cfg), nil
	case KindDateWindow:
		return NewDateWindowMatcher(cfg), nil
	case KindComposite, "":
		return NewCompositeMatcher(cfg), nil
	}
	return nil, apperr.Validation("new matcher", "unknown matcher kind %q", kind)
}
