package matching

import (
	"time"

	"bank-reconciliation-engine/internal/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func strPtr(s string) *string {
	return &s
}

func newTx(amount string, valueDate time.Time, description string) *models.BankTransaction {
	return &models.BankTransaction{
		ID:          uuid.New(),
		AccountID:   uuid.New(),
		ValueDate:   valueDate,
		Amount:      dec(amount),
		Description: description,
		Status:      models.TransactionUnmatched,
	}
}

func newReceivable(number, counterparty, total string, due time.Time) models.Receivable {
	return models.Receivable{
		ID:               uuid.New(),
		Number:           number,
		CounterpartyName: counterparty,
		TotalAmount:      dec(total),
		AllocatedAmount:  decimal.Zero,
		PaymentStatus:    models.PaymentUnpaid,
		DueDate:          due,
	}
}
