package reconciliation

import (
	"context"

	"github.com/google/uuid"

	"bank-reconciliation-engine/internal/apperr"
	"bank-reconciliation-engine/internal/models"
	"bank-reconciliation-engine/internal/repository"
	"bank-reconciliation-engine/internal/services/matching"
	"bank-reconciliation-engine/internal/services/review"
)

// queueForReview parks a transaction's ranked hypotheses for a human.
func (s *ReconciliationService) queueForReview(ctx context.Context, txID uuid.UUID, hyps []matching.Hypothesis) error {
	return s.commit(ctx, nil, func(st *store) error {
		bt, err := st.transactions.GetByID(ctx, txID)
		if err != nil {
			return err
		}
		if bt.Status != models.TransactionUnmatched {
			return apperr.StateConflict("queue for review", "transaction %s is %s", txID, bt.Status)
		}

		_, created, err := s.queue.Enqueue(ctx, st.tx, txID, hyps)
		if err != nil || !created {
			return err
		}
		best := hyps[0].Confidence
		return st.trail.record(Event{
			Action:         models.ActionReviewQueued,
			TransactionID:  txID,
			ReceivableID:   &hyps[0].ReceivableID,
			PreviousStatus: models.TransactionUnmatched,
			NewStatus:      models.TransactionUnmatched,
			Confidence:     &best,
			Actor:          SystemActor,
		})
	})
}

// AcceptReview applies the chosen alternative of a pending review item.
func (s *ReconciliationService) AcceptReview(ctx context.Context, itemID, receivableID uuid.UUID, actor string) (*models.PaymentAllocation, error) {
	const op = "accept review"
	item, err := s.queue.Get(ctx, itemID)
	if err != nil {
		return nil, err
	}
	if item.Status != models.ReviewPending {
		return nil, apperr.StateConflict(op, "review item %s is %s", itemID, item.Status)
	}
	h, ok := item.Hypothesis(receivableID)
	if !ok {
		return nil, apperr.Validation(op, "receivable %s is not an alternative of review item %s", receivableID, itemID)
	}

	var alloc *models.PaymentAllocation
	err = s.commit(ctx, []uuid.UUID{receivableID}, func(st *store) error {
		if err := s.queue.Resolve(ctx, st.tx, itemID, models.ReviewAccepted, actor); err != nil {
			return err
		}
		var applyErr error
		alloc, applyErr = s.applyInTx(ctx, st, h, models.AllocationReview, actor)
		return applyErr
	})
	if err != nil {
		s.logFailure(op, item.TransactionID, err)
		return nil, err
	}
	return alloc, nil
}

// RejectReview closes a pending item. With ignore the transaction is also
// moved to IGNORED, otherwise it stays UNMATCHED and may be queued again by
// a later run.
func (s *ReconciliationService) RejectReview(ctx context.Context, itemID uuid.UUID, ignore bool, actor, reason string) error {
	const op = "reject review"
	item, err := s.queue.Get(ctx, itemID)
	if err != nil {
		return err
	}

	err = s.commit(ctx, nil, func(st *store) error {
		if err := s.queue.Resolve(ctx, st.tx, itemID, models.ReviewRejected, actor); err != nil {
			return err
		}
		err := st.trail.record(Event{
			Action:         models.ActionReviewRejected,
			TransactionID:  item.TransactionID,
			PreviousStatus: models.TransactionUnmatched,
			NewStatus:      models.TransactionUnmatched,
			Actor:          actor,
			Reason:         reason,
		})
		if err != nil || !ignore {
			return err
		}

		err = st.transactions.Transition(ctx, item.TransactionID, repository.StatusChange{
			From: []models.TransactionStatus{models.TransactionUnmatched},
			To:   models.TransactionIgnored,
			At:   st.trail.now,
		})
		if err != nil {
			return err
		}
		return st.trail.record(Event{
			Action:         models.ActionTransactionIgnored,
			TransactionID:  item.TransactionID,
			PreviousStatus: models.TransactionUnmatched,
			NewStatus:      models.TransactionIgnored,
			Actor:          actor,
			Reason:         reason,
		})
	})
	if err != nil {
		s.logFailure(op, item.TransactionID, err)
	}
	return err
}

func (s *ReconciliationService) PendingReviews(ctx context.Context, limit int) ([]review.Item, error) {
	return s.queue.Pending(ctx, limit)
}

func (s *ReconciliationService) GetReview(ctx context.Context, id uuid.UUID) (*review.Item, error) {
	return s.queue.Get(ctx, id)
}
