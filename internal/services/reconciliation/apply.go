package reconciliation

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"

	"bank-reconciliation-engine/internal/apperr"
	"bank-reconciliation-engine/internal/models"
	"bank-reconciliation-engine/internal/repository"
	"bank-reconciliation-engine/internal/services/matching"
)

// Apply allocates the hypothesis' transaction against its receivable in one
// atomic commit. AUTO allocations require the receivable to still be at the
// version the hypothesis was scored against.
func (s *ReconciliationService) Apply(ctx context.Context, h matching.Hypothesis, source models.AllocationSource, actor string) (*models.PaymentAllocation, error) {
	var alloc *models.PaymentAllocation
	err := s.commit(ctx, []uuid.UUID{h.ReceivableID}, func(st *store) error {
		var err error
		alloc, err = s.applyInTx(ctx, st, h, source, actor)
		return err
	})
	if err != nil {
		return nil, err
	}
	return alloc, nil
}

func (s *ReconciliationService) applyInTx(ctx context.Context, st *store, h matching.Hypothesis, source models.AllocationSource, actor string) (*models.PaymentAllocation, error) {
	const op = "apply match"
	now := st.trail.now

	bt, err := st.transactions.GetByID(ctx, h.TransactionID)
	if err != nil {
		return nil, err
	}
	if bt.Status != models.TransactionUnmatched {
		return nil, apperr.StateConflict(op, "transaction %s is %s", bt.ID, bt.Status)
	}
	if !bt.IsCredit() {
		return nil, apperr.Validation(op, "transaction %s is not a credit", bt.ID)
	}

	rec, err := st.receivables.GetForUpdate(ctx, h.ReceivableID)
	if err != nil {
		return nil, err
	}
	if source == models.AllocationAuto && rec.Version != h.ReceivableVersion {
		return nil, apperr.ConcurrencyConflict(op, "receivable %s moved from version %d to %d", rec.ID, h.ReceivableVersion, rec.Version)
	}
	remaining := rec.Remaining()
	if !remaining.IsPositive() {
		return nil, apperr.StateConflict(op, "receivable %s is fully allocated", rec.Number)
	}

	amount := decimal.Min(bt.Amount, remaining)
	active, err := st.allocations.ActiveSum(ctx, rec.ID)
	if err != nil {
		return nil, err
	}
	if active.Add(amount).GreaterThan(rec.TotalAmount) {
		return nil, apperr.OverAllocation(op, "receivable %s: active %s + %s exceeds total %s",
			rec.Number, active.StringFixed(2), amount.StringFixed(2), rec.TotalAmount.StringFixed(2))
	}

	if err := st.receivables.UpdateAllocation(ctx, rec, rec.AllocatedAmount.Add(amount), now); err != nil {
		return nil, err
	}

	alloc := &models.PaymentAllocation{
		ID:            uuid.New(),
		TransactionID: bt.ID,
		ReceivableID:  rec.ID,
		Amount:        amount,
		Confidence:    h.Confidence,
		MatchKind:     string(h.Kind),
		Source:        source,
		CreatedAt:     now,
	}
	if err := st.allocations.Create(ctx, alloc); err != nil {
		return nil, err
	}

	details, err := json.Marshal(map[string]any{
		"receivable_id":     rec.ID.String(),
		"receivable_number": rec.Number,
		"kind":              h.Kind,
		"rationale":         h.Rationale,
		"allocated":         amount.StringFixed(2),
		"source":            source,
		"payment_status":    rec.PaymentStatus,
	})
	if err != nil {
		return nil, fmt.Errorf("encoding match details: %w", err)
	}
	if err := st.transactions.Transition(ctx, bt.ID, matchedChange(now, h.Confidence, details)); err != nil {
		return nil, err
	}
	if err := s.queue.Supersede(ctx, st.tx, bt.ID); err != nil {
		return nil, err
	}

	confidence := h.Confidence
	receivableID := rec.ID
	err = st.trail.record(Event{
		Action:         models.ActionMatchApplied,
		TransactionID:  bt.ID,
		ReceivableID:   &receivableID,
		PreviousStatus: models.TransactionUnmatched,
		NewStatus:      models.TransactionMatched,
		Confidence:     &confidence,
		Actor:          actor,
	})
	if err != nil {
		return nil, err
	}
	return alloc, nil
}

func matchedChange(now time.Time, confidence float64, details []byte) repository.StatusChange {
	return repository.StatusChange{
		From:       []models.TransactionStatus{models.TransactionUnmatched},
		To:         models.TransactionMatched,
		At:         now,
		Confidence: confidence,
		Details:    datatypes.JSON(details),
	}
}
