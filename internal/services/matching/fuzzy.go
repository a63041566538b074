package matching

import (
	"fmt"
	"strings"
	"unicode"

	"bank-reconciliation-engine/internal/models"

	"github.com/texttheater/golang-levenshtein/levenshtein"
)

// FuzzyDescriptionMatcher compares the free-text description with the
// receivable reference (number and counterparty name).
type FuzzyDescriptionMatcher struct {
	cfg Config
}

func NewFuzzyDescriptionMatcher(cfg Config) *FuzzyDescriptionMatcher {
	return &FuzzyDescriptionMatcher{cfg: cfg}
}

func (m *FuzzyDescriptionMatcher) Kind() Kind { return KindFuzzyDescription }

func (m *FuzzyDescriptionMatcher) Evaluate(tx *models.BankTransaction, r *models.Receivable) *Hypothesis {
	ratio := Similarity(tx.Description, r.Reference())
	if ratio < m.cfg.FuzzyFloor || ratio == 0 {
		return nil
	}
	return newHypothesis(tx, r, KindFuzzyDescription, ratio,
		fmt.Sprintf("description similar to %q (%.2f)", r.Reference(), ratio))
}

// editCosts weighs insertions, deletions and substitutions equally, so a
// token distance never exceeds the longer token's length.
var editCosts = levenshtein.Options{
	InsCost: 1,
	DelCost: 1,
	SubCost: 1,
	Matches: levenshtein.IdenticalRunes,
}

// Similarity scores how well description quotes reference, in [0,1]. Each
// reference token takes its best 1 - dist/maxLen against any description
// token; the result is the mean over reference tokens.
func Similarity(description, reference string) float64 {
	refTokens := strings.Fields(normalizeText(reference))
	descTokens := strings.Fields(normalizeText(description))
	if len(refTokens) == 0 || len(descTokens) == 0 {
		return 0
	}

	total := 0.0
	for _, ref := range refTokens {
		best := 0.0
		for _, tok := range descTokens {
			if ref == tok {
				best = 1
				break
			}
			if sim := tokenSimilarity([]rune(ref), []rune(tok)); sim > best {
				best = sim
			}
		}
		total += best
	}
	return roundScore(total / float64(len(refTokens)))
}

func tokenSimilarity(a, b []rune) float64 {
	maxLen := max(len(a), len(b))
	if maxLen == 0 {
		return 1
	}
	dist := levenshtein.DistanceForStrings(a, b, editCosts)
	return 1 - float64(dist)/float64(maxLen)
}

// normalizeText case-folds and turns punctuation into separators.
func normalizeText(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return unicode.ToLower(r)
		}
		return ' '
	}, s)
}
