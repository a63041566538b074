package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type PaymentStatus string

const (
	PaymentUnpaid        PaymentStatus = "UNPAID"
	PaymentPartiallyPaid PaymentStatus = "PARTIALLY_PAID"
	PaymentPaid          PaymentStatus = "PAID"
)

// Receivable is the invoicing side's open amount. Only AllocatedAmount,
// PaymentStatus, PaidAt and Version are written by the reconciliation engine.
type Receivable struct {
	ID               uuid.UUID       `gorm:"type:uuid;primaryKey"`
	Number           string          `gorm:"uniqueIndex"`
	CounterpartyID   string          `gorm:"index"`
	CounterpartyName string          `gorm:"index"`
	TotalAmount      decimal.Decimal `gorm:"type:numeric(18,2)"`
	AllocatedAmount  decimal.Decimal `gorm:"type:numeric(18,2)"`
	PaymentStatus    PaymentStatus   `gorm:"index"`
	DueDate          time.Time       `gorm:"index"`
	Version          int64
	PaidAt           *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

func (r *Receivable) Remaining() decimal.Decimal {
	return r.TotalAmount.Sub(r.AllocatedAmount)
}

func (r *Receivable) FullyAllocated() bool {
	return !r.Remaining().IsPositive()
}

// Reference is the human-readable text a payer is expected to quote.
func (r *Receivable) Reference() string {
	return strings.TrimSpace(r.Number + " " + r.CounterpartyName)
}

// DerivePaymentStatus maps an allocated amount onto the payment status.
func DerivePaymentStatus(total, allocated decimal.Decimal) PaymentStatus {
	switch {
	case !allocated.IsPositive():
		return PaymentUnpaid
	case allocated.GreaterThanOrEqual(total):
		return PaymentPaid
	default:
		return PaymentPartiallyPaid
	}
}
