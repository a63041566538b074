package reconciliation

import (
	"context"

	"github.com/google/uuid"

	"bank-reconciliation-engine/internal/apperr"
	"bank-reconciliation-engine/internal/models"
	"bank-reconciliation-engine/internal/repository"
)

// Revert undoes every active allocation of a MATCHED transaction and returns
// it to UNMATCHED.
func (s *ReconciliationService) Revert(ctx context.Context, txID uuid.UUID, actor, reason string) error {
	const op = "revert"
	lockIDs, err := s.allocatedReceivables(ctx, txID)
	if err != nil {
		return err
	}

	err = s.commit(ctx, lockIDs, func(st *store) error {
		bt, err := st.transactions.GetByID(ctx, txID)
		if err != nil {
			return err
		}
		if bt.Status != models.TransactionMatched {
			return apperr.StateConflict(op, "transaction %s is %s, only MATCHED can be reverted", txID, bt.Status)
		}
		if err := s.revertAllocations(ctx, st, bt, models.TransactionUnmatched, actor, reason); err != nil {
			return err
		}
		return st.transactions.Transition(ctx, txID, repository.StatusChange{
			From: []models.TransactionStatus{models.TransactionMatched},
			To:   models.TransactionUnmatched,
			At:   st.trail.now,
		})
	})
	if err != nil {
		s.logFailure(op, txID, err)
	}
	return err
}

// Ignore marks a transaction as not reconcilable. A MATCHED transaction has
// its allocations reverted first.
func (s *ReconciliationService) Ignore(ctx context.Context, txID uuid.UUID, actor, reason string) error {
	const op = "ignore"
	lockIDs, err := s.allocatedReceivables(ctx, txID)
	if err != nil {
		return err
	}

	err = s.commit(ctx, lockIDs, func(st *store) error {
		bt, err := st.transactions.GetByID(ctx, txID)
		if err != nil {
			return err
		}
		switch bt.Status {
		case models.TransactionMatched:
			if err := s.revertAllocations(ctx, st, bt, models.TransactionIgnored, actor, reason); err != nil {
				return err
			}
		case models.TransactionUnmatched:
		default:
			return apperr.StateConflict(op, "transaction %s is already %s", txID, bt.Status)
		}

		err = st.transactions.Transition(ctx, txID, repository.StatusChange{
			From: []models.TransactionStatus{bt.Status},
			To:   models.TransactionIgnored,
			At:   st.trail.now,
		})
		if err != nil {
			return err
		}
		if err := s.queue.Supersede(ctx, st.tx, txID); err != nil {
			return err
		}
		return st.trail.record(Event{
			Action:         models.ActionTransactionIgnored,
			TransactionID:  txID,
			PreviousStatus: bt.Status,
			NewStatus:      models.TransactionIgnored,
			Actor:          actor,
			Reason:         reason,
		})
	})
	if err != nil {
		s.logFailure(op, txID, err)
	}
	return err
}

// Reset returns an IGNORED transaction to UNMATCHED so the next run sees it.
func (s *ReconciliationService) Reset(ctx context.Context, txID uuid.UUID, actor, reason string) error {
	const op = "reset"
	err := s.commit(ctx, nil, func(st *store) error {
		bt, err := st.transactions.GetByID(ctx, txID)
		if err != nil {
			return err
		}
		if bt.Status != models.TransactionIgnored {
			return apperr.StateConflict(op, "transaction %s is %s, only IGNORED can be reset", txID, bt.Status)
		}
		err = st.transactions.Transition(ctx, txID, repository.StatusChange{
			From: []models.TransactionStatus{models.TransactionIgnored},
			To:   models.TransactionUnmatched,
			At:   st.trail.now,
		})
		if err != nil {
			return err
		}
		return st.trail.record(Event{
			Action:         models.ActionTransactionReset,
			TransactionID:  txID,
			PreviousStatus: models.TransactionIgnored,
			NewStatus:      models.TransactionUnmatched,
			Actor:          actor,
			Reason:         reason,
		})
	})
	if err != nil {
		s.logFailure(op, txID, err)
	}
	return err
}

// allocatedReceivables lists the receivables a transaction currently holds
// allocations against, for locking before the commit begins.
func (s *ReconciliationService) allocatedReceivables(ctx context.Context, txID uuid.UUID) ([]uuid.UUID, error) {
	if _, err := s.transactions.GetByID(ctx, txID); err != nil {
		return nil, err
	}
	allocs, err := s.allocations.ActiveByTransaction(ctx, txID)
	if err != nil {
		return nil, err
	}
	ids := make([]uuid.UUID, 0, len(allocs))
	for _, a := range allocs {
		ids = append(ids, a.ReceivableID)
	}
	return ids, nil
}

// revertAllocations releases every active allocation of bt. Each release is
// one match_reverted event carrying the status the transaction ends up in;
// the receivable must never go below zero.
func (s *ReconciliationService) revertAllocations(ctx context.Context, st *store, bt *models.BankTransaction, to models.TransactionStatus, actor, reason string) error {
	const op = "revert allocation"
	allocs, err := st.allocations.ActiveByTransaction(ctx, bt.ID)
	if err != nil {
		return err
	}

	for _, a := range allocs {
		rec, err := st.receivables.GetForUpdate(ctx, a.ReceivableID)
		if err != nil {
			return err
		}
		allocated := rec.AllocatedAmount.Sub(a.Amount)
		if allocated.IsNegative() {
			return apperr.StateConflict(op, "receivable %s would drop to %s", rec.Number, allocated.StringFixed(2))
		}
		if err := st.receivables.UpdateAllocation(ctx, rec, allocated, st.trail.now); err != nil {
			return err
		}
		if err := st.allocations.MarkReverted(ctx, a.ID, st.trail.now); err != nil {
			return err
		}

		receivableID := a.ReceivableID
		confidence := a.Confidence
		err = st.trail.record(Event{
			Action:         models.ActionMatchReverted,
			TransactionID:  bt.ID,
			ReceivableID:   &receivableID,
			PreviousStatus: models.TransactionMatched,
			NewStatus:      to,
			Confidence:     &confidence,
			Actor:          actor,
			Reason:         reason,
		})
		if err != nil {
			return err
		}
	}
	return nil
}
