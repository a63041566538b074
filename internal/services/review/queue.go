// Package review holds medium-confidence hypotheses until a human accepts
// one of them or rejects them all.
package review

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"bank-reconciliation-engine/internal/apperr"
	"bank-reconciliation-engine/internal/models"
	"bank-reconciliation-engine/internal/repository"
	"bank-reconciliation-engine/internal/services/matching"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Queue struct {
	repo *repository.ReviewRepository
	now  func() time.Time
}

func NewQueue(repo *repository.ReviewRepository) *Queue {
	return &Queue{repo: repo, now: func() time.Time { return time.Now().UTC() }}
}

// Item is a review entry with its hypotheses decoded.
type Item struct {
	models.ReviewItem
	Alternatives []matching.Hypothesis `json:"alternatives"`
}

// Enqueue stores the ranked hypotheses for a transaction inside tx. A pending
// item for the same transaction is refreshed instead of duplicated; created
// reports whether a new item was opened.
func (q *Queue) Enqueue(ctx context.Context, tx *gorm.DB, txID uuid.UUID, hyps []matching.Hypothesis) (item *models.ReviewItem, created bool, err error) {
	if len(hyps) == 0 {
		return nil, false, apperr.Validation("enqueue review", "no hypotheses for transaction %s", txID)
	}
	payload, err := json.Marshal(hyps)
	if err != nil {
		return nil, false, fmt.Errorf("encoding hypotheses: %w", err)
	}

	repo := q.repo.WithTx(tx)
	item, err = repo.PendingByTransaction(ctx, txID)
	switch {
	case err == nil:
		item.Hypotheses = payload
		item.BestConfidence = hyps[0].Confidence
		return item, false, repo.Save(ctx, item)
	case apperr.KindOf(err) != apperr.KindNotFound:
		return nil, false, err
	}

	item = &models.ReviewItem{
		ID:             uuid.New(),
		TransactionID:  txID,
		Hypotheses:     payload,
		BestConfidence: hyps[0].Confidence,
		Status:         models.ReviewPending,
		CreatedAt:      q.now(),
	}
	return item, true, repo.Create(ctx, item)
}

func (q *Queue) Get(ctx context.Context, id uuid.UUID) (*Item, error) {
	item, err := q.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return decode(*item)
}

// Pending lists open items, most confident first.
func (q *Queue) Pending(ctx context.Context, limit int) ([]Item, error) {
	rows, err := q.repo.Pending(ctx, limit)
	if err != nil {
		return nil, err
	}
	items := make([]Item, 0, len(rows))
	for _, row := range rows {
		item, err := decode(row)
		if err != nil {
			return nil, err
		}
		items = append(items, *item)
	}
	return items, nil
}

// Resolve closes a pending item inside tx.
func (q *Queue) Resolve(ctx context.Context, tx *gorm.DB, id uuid.UUID, status models.ReviewStatus, actor string) error {
	return q.repo.WithTx(tx).Resolve(ctx, id, status, actor, q.now())
}

// Supersede closes whatever is pending for a transaction inside tx.
func (q *Queue) Supersede(ctx context.Context, tx *gorm.DB, txID uuid.UUID) error {
	return q.repo.WithTx(tx).SupersedeForTransaction(ctx, txID, q.now())
}

// Hypothesis finds the alternative for receivableID in an item.
func (i *Item) Hypothesis(receivableID uuid.UUID) (matching.Hypothesis, bool) {
	for _, h := range i.Alternatives {
		if h.ReceivableID == receivableID {
			return h, true
		}
	}
	return matching.Hypothesis{}, false
}

func decode(row models.ReviewItem) (*Item, error) {
	var hyps []matching.Hypothesis
	if len(row.Hypotheses) > 0 {
		if err := json.Unmarshal(row.Hypotheses, &hyps); err != nil {
			return nil, fmt.Errorf("decoding review item %s: %w", row.ID, err)
		}
	}
	return &Item{ReviewItem: row, Alternatives: hyps}, nil
}
