package reconciliation

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"bank-reconciliation-engine/internal/models"
	"bank-reconciliation-engine/internal/services/matching"
	"bank-reconciliation-engine/internal/testutil"
)

var fixedNow = time.Date(2025, 4, 1, 9, 0, 0, 0, time.UTC)

type fixture struct {
	t   *testing.T
	db  *gorm.DB
	svc *ReconciliationService
	ctx context.Context
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	db := testutil.NewDB(t)
	return &fixture{t: t, db: db, svc: newServiceOn(t, db, opts...), ctx: context.Background()}
}

func newServiceOn(t *testing.T, db *gorm.DB, opts ...Option) *ReconciliationService {
	t.Helper()
	policy := DefaultPolicy()
	policy.RetryBackoff = 0

	clock := &tickingClock{at: fixedNow}
	base := []Option{WithLogger(quietLogger()), withClock(clock.Now)}
	svc, err := NewReconciliationService(db, matching.DefaultConfig(), policy, append(base, opts...)...)
	require.NoError(t, err)
	return svc
}

// tickingClock advances one second per reading so audit rows written by
// successive commits sort in commit order.
type tickingClock struct {
	mu sync.Mutex
	at time.Time
}

func (c *tickingClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.at = c.at.Add(time.Second)
	return c.at
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func (f *fixture) account(name string) *models.BankAccount {
	f.t.Helper()
	acc, err := f.svc.CreateAccount(f.ctx, AccountInput{
		Name:     name,
		IBAN:     "IT" + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))[:25],
		Currency: "EUR",
	})
	require.NoError(f.t, err)
	return acc
}

func (f *fixture) receivable(number, counterparty, total string, due time.Time) *models.Receivable {
	f.t.Helper()
	rec, created, err := f.svc.RegisterReceivable(f.ctx, ReceivableInput{
		Number:           number,
		CounterpartyName: counterparty,
		TotalAmount:      dec(total),
		DueDate:          due,
	})
	require.NoError(f.t, err)
	require.True(f.t, created)
	return rec
}

func (f *fixture) transaction(accountID uuid.UUID, amount string, valueDate time.Time, description string) *models.BankTransaction {
	f.t.Helper()
	tx := &models.BankTransaction{
		ID:                uuid.New(),
		AccountID:         accountID,
		ValueDate:         valueDate,
		Amount:            dec(amount),
		Description:       description,
		ExternalReference: uuid.NewString(),
		Status:            models.TransactionUnmatched,
		CreatedAt:         fixedNow,
		UpdatedAt:         fixedNow,
	}
	inserted, err := f.svc.transactions.Insert(f.ctx, tx)
	require.NoError(f.t, err)
	require.True(f.t, inserted)
	return tx
}

func (f *fixture) reloadTx(id uuid.UUID) *models.BankTransaction {
	f.t.Helper()
	tx, err := f.svc.GetTransaction(f.ctx, id)
	require.NoError(f.t, err)
	return tx
}

func (f *fixture) reloadReceivable(id uuid.UUID) *ReceivableView {
	f.t.Helper()
	view, err := f.svc.GetReceivable(f.ctx, id)
	require.NoError(f.t, err)
	return view
}

func (f *fixture) auditActions(txID uuid.UUID) []string {
	f.t.Helper()
	entries, err := f.svc.AuditTrail(f.ctx, txID)
	require.NoError(f.t, err)
	actions := make([]string, 0, len(entries))
	for _, e := range entries {
		actions = append(actions, e.Action)
	}
	return actions
}

func activeSum(allocs []models.PaymentAllocation) decimal.Decimal {
	sum := decimal.Zero
	for _, a := range allocs {
		if a.Active() {
			sum = sum.Add(a.Amount)
		}
	}
	return sum
}

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) Publish(ctx context.Context, ev Event) error {
	args := m.Called(ctx, ev)
	return args.Error(0)
}

func action(name string) any {
	return mock.MatchedBy(func(ev Event) bool { return ev.Action == name })
}
