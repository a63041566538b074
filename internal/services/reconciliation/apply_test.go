package reconciliation

import (
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"bank-reconciliation-engine/internal/apperr"
	"bank-reconciliation-engine/internal/models"
	"bank-reconciliation-engine/internal/services/matching"
)

func hypothesisFor(tx *models.BankTransaction, rec *models.Receivable, confidence float64) matching.Hypothesis {
	return matching.Hypothesis{
		TransactionID:     tx.ID,
		ReceivableID:      rec.ID,
		ReceivableNumber:  rec.Number,
		ReceivableDueDate: rec.DueDate,
		ReceivableVersion: rec.Version,
		Kind:              matching.KindComposite,
		Confidence:        confidence,
	}
}

func TestApplyPartialPayments(t *testing.T) {
	f := newFixture(t)
	acc := f.account("Operating")
	rec := f.receivable("INV-3", "Gialli", "1000.00", date(2025, 2, 1))
	first := f.transaction(acc.ID, "400.00", date(2025, 2, 1), "ACCONTO")
	second := f.transaction(acc.ID, "600.00", date(2025, 2, 20), "SALDO")
	third := f.transaction(acc.ID, "100.00", date(2025, 2, 25), "EXTRA")

	alloc, err := f.svc.Apply(f.ctx, hypothesisFor(first, rec, 0.7), models.AllocationReview, "alice")
	require.NoError(t, err)
	assert.True(t, alloc.Amount.Equal(dec("400.00")))

	view := f.reloadReceivable(rec.ID)
	assert.Equal(t, models.PaymentPartiallyPaid, view.PaymentStatus)
	assert.True(t, view.AllocatedAmount.Equal(dec("400.00")))
	assert.Nil(t, view.PaidAt)

	_, err = f.svc.Apply(f.ctx, hypothesisFor(second, rec, 0.7), models.AllocationReview, "alice")
	require.NoError(t, err)
	view = f.reloadReceivable(rec.ID)
	assert.Equal(t, models.PaymentPaid, view.PaymentStatus)
	assert.True(t, view.AllocatedAmount.Equal(view.TotalAmount))
	assert.NotNil(t, view.PaidAt)
	assert.True(t, activeSum(view.Allocations).Equal(view.AllocatedAmount))

	_, err = f.svc.Apply(f.ctx, hypothesisFor(third, rec, 0.7), models.AllocationReview, "alice")
	assert.ErrorIs(t, err, apperr.ErrStateConflict)
	assert.Equal(t, models.TransactionUnmatched, f.reloadTx(third.ID).Status)
}

func TestApplyCapsAllocationAtRemaining(t *testing.T) {
	f := newFixture(t)
	acc := f.account("Operating")
	rec := f.receivable("INV-4", "Viola", "1000.00", date(2025, 2, 1))
	tx := f.transaction(acc.ID, "1200.00", date(2025, 2, 1), "BONIFICO")

	alloc, err := f.svc.Apply(f.ctx, hypothesisFor(tx, rec, 0.95), models.AllocationAuto, SystemActor)
	require.NoError(t, err)
	assert.True(t, alloc.Amount.Equal(dec("1000.00")))
	assert.Equal(t, models.PaymentPaid, f.reloadReceivable(rec.ID).PaymentStatus)
}

func TestApplyRejectsMatchedTransaction(t *testing.T) {
	f := newFixture(t)
	acc := f.account("Operating")
	rec := f.receivable("INV-5", "Blu", "1000.00", date(2025, 2, 1))
	tx := f.transaction(acc.ID, "100.00", date(2025, 2, 1), "ACCONTO")

	_, err := f.svc.Apply(f.ctx, hypothesisFor(tx, rec, 0.95), models.AllocationReview, "alice")
	require.NoError(t, err)
	_, err = f.svc.Apply(f.ctx, hypothesisFor(tx, rec, 0.95), models.AllocationReview, "alice")
	assert.ErrorIs(t, err, apperr.ErrStateConflict)

	view := f.reloadReceivable(rec.ID)
	assert.Len(t, view.Allocations, 1)
	assert.True(t, view.AllocatedAmount.Equal(dec("100.00")))
}

func TestApplyDetectsStaleSnapshot(t *testing.T) {
	f := newFixture(t)
	a := f.account("Operating")
	b := f.account("Savings")
	rec := f.receivable("INV-500", "Acme", "500.00", date(2025, 6, 1))
	txA := f.transaction(a.ID, "500.00", date(2025, 6, 1), "BONIFICO")
	txB := f.transaction(b.ID, "500.00", date(2025, 6, 1), "BONIFICO")

	hypsA, err := f.svc.matcher.Match(f.ctx, txA)
	require.NoError(t, err)
	hypsB, err := f.svc.matcher.Match(f.ctx, txB)
	require.NoError(t, err)
	require.NotEmpty(t, hypsA)
	require.NotEmpty(t, hypsB)
	assert.GreaterOrEqual(t, hypsB[0].Confidence, f.svc.Policy().AutoApplyThreshold)

	_, err = f.svc.Apply(f.ctx, hypsA[0], models.AllocationAuto, SystemActor)
	require.NoError(t, err)

	_, err = f.svc.Apply(f.ctx, hypsB[0], models.AllocationAuto, SystemActor)
	assert.ErrorIs(t, err, apperr.ErrConcurrencyConflict)

	// starting over sees nothing left to allocate
	result, err := f.svc.processTransaction(f.ctx, txB.ID)
	require.NoError(t, err)
	assert.Equal(t, outcomeUnresolved, result)

	view := f.reloadReceivable(rec.ID)
	assert.True(t, view.AllocatedAmount.Equal(dec("500.00")))
	assert.Len(t, view.Allocations, 1)
	assert.Equal(t, models.TransactionUnmatched, f.reloadTx(txB.ID).Status)
}

func TestConcurrentAccountsNeverOverAllocate(t *testing.T) {
	for i := 0; i < 5; i++ {
		f := newFixture(t)
		a := f.account("Operating")
		b := f.account("Savings")
		rec := f.receivable("INV-500", "Acme", "500.00", date(2025, 6, 1))
		f.transaction(a.ID, "500.00", date(2025, 6, 1), "BONIFICO")
		f.transaction(b.ID, "500.00", date(2025, 6, 1), "BONIFICO")

		summaries, err := f.svc.RunAll(f.ctx)
		require.NoError(t, err)

		var matched, unresolved, failed int
		for _, s := range summaries {
			matched += s.AutoMatched
			unresolved += s.Unresolved
			failed += len(s.Errors)
		}
		assert.Equal(t, 1, matched)
		assert.Equal(t, 1, unresolved)
		assert.Zero(t, failed)

		view := f.reloadReceivable(rec.ID)
		assert.True(t, view.AllocatedAmount.Equal(dec("500.00")))
		assert.True(t, activeSum(view.Allocations).Equal(dec("500.00")))
	}
}

func TestApplyGuardsAgainstOverAllocation(t *testing.T) {
	f := newFixture(t)
	acc := f.account("Operating")
	rec := f.receivable("INV-6", "Rosa", "1000.00", date(2025, 2, 1))
	tx := f.transaction(acc.ID, "1000.00", date(2025, 2, 1), "BONIFICO")

	// an allocation the receivable does not know about
	rogue := &models.PaymentAllocation{
		ID:            uuid.New(),
		TransactionID: uuid.New(),
		ReceivableID:  rec.ID,
		Amount:        dec("800.00"),
		Source:        models.AllocationReview,
		CreatedAt:     fixedNow,
	}
	require.NoError(t, f.db.Create(rogue).Error)

	summary, err := f.svc.RunAccount(f.ctx, acc.ID)
	require.NoError(t, err)
	require.Len(t, summary.Errors, 1)
	assert.Equal(t, apperr.KindOverAllocation, summary.Errors[0].Kind)
	assert.Equal(t, tx.ID, summary.Errors[0].TransactionID)

	assert.Equal(t, models.TransactionUnmatched, f.reloadTx(tx.ID).Status)
	assert.True(t, f.reloadReceivable(rec.ID).AllocatedAmount.IsZero())
	assert.Empty(t, f.auditActions(tx.ID))
}

func TestPublishAfterCommit(t *testing.T) {
	pub := &mockPublisher{}
	pub.On("Publish", mock.Anything, action(models.ActionMatchApplied)).Return(errors.New("broker down")).Once()

	f := newFixture(t, WithPublisher(pub))
	acc := f.account("Operating")
	rec := f.receivable("INV-8", "Oro", "300.00", date(2025, 2, 1))
	tx := f.transaction(acc.ID, "300.00", date(2025, 2, 1), "BONIFICO")

	_, err := f.svc.Apply(f.ctx, hypothesisFor(tx, rec, 0.95), models.AllocationAuto, SystemActor)
	require.NoError(t, err)
	assert.Equal(t, models.TransactionMatched, f.reloadTx(tx.ID).Status)

	// failed commits publish nothing
	_, err = f.svc.Apply(f.ctx, hypothesisFor(tx, rec, 0.95), models.AllocationReview, "alice")
	assert.ErrorIs(t, err, apperr.ErrStateConflict)

	pub.AssertExpectations(t)
	pub.AssertNumberOfCalls(t, "Publish", 1)
}
