package matching

import (
	"context"
	"fmt"
	"sort"

	"bank-reconciliation-engine/internal/models"
)

// ReceivableSource is the read side of the invoicing collaborator.
type ReceivableSource interface {
	OpenReceivables(ctx context.Context) ([]models.Receivable, error)
}

// Service ranks the open receivables for one transaction.
type Service struct {
	source       ReceivableSource
	matcher      Matcher
	minimumFloor float64
}

type Option func(*Service)

// WithMatcher replaces the matcher selected by Config.Matcher.
func WithMatcher(m Matcher) Option {
	return func(s *Service) {
		if m != nil {
			s.matcher = m
		}
	}
}

func NewService(source ReceivableSource, cfg Config, opts ...Option) (*Service, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	matcher, err := NewMatcher(cfg.Matcher, cfg)
	if err != nil {
		return nil, err
	}
	s := &Service{
		source:       source,
		matcher:      matcher,
		minimumFloor: cfg.MinimumFloor,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Match loads the open receivables and returns the ranked hypotheses for tx,
// best first.
func (s *Service) Match(ctx context.Context, tx *models.BankTransaction) ([]Hypothesis, error) {
	if !tx.IsCredit() {
		return nil, nil
	}
	candidates, err := s.source.OpenReceivables(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading open receivables: %w", err)
	}
	return s.Evaluate(tx, candidates), nil
}

// Evaluate scores tx against candidates without any I/O. Fully allocated
// receivables and hypotheses under the minimum floor are dropped.
func (s *Service) Evaluate(tx *models.BankTransaction, candidates []models.Receivable) []Hypothesis {
	if !tx.IsCredit() {
		return nil
	}

	var out []Hypothesis
	for i := range candidates {
		r := &candidates[i]
		if r.PaymentStatus == models.PaymentPaid || r.FullyAllocated() {
			continue
		}
		h := s.matcher.Evaluate(tx, r)
		if h == nil || h.Confidence < s.minimumFloor {
			continue
		}
		out = append(out, *h)
	}

	Rank(out)
	return out
}

// Rank orders hypotheses by confidence desc, then oldest due date, then
// receivable id.
func Rank(hs []Hypothesis) {
	sort.SliceStable(hs, func(i, j int) bool {
		a, b := hs[i], hs[j]
		if a.Confidence != b.Confidence {
			return a.Confidence > b.Confidence
		}
		if !a.ReceivableDueDate.Equal(b.ReceivableDueDate) {
			return a.ReceivableDueDate.Before(b.ReceivableDueDate)
		}
		return a.ReceivableID.String() < b.ReceivableID.String()
	})
}
