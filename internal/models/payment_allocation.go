package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type AllocationSource string

const (
	AllocationAuto   AllocationSource = "AUTO"
	AllocationReview AllocationSource = "REVIEW"
)

// PaymentAllocation links a transaction to a receivable. Reverted rows are
// kept for audit; only rows with a nil RevertedAt are active.
type PaymentAllocation struct {
	ID            uuid.UUID       `gorm:"type:uuid;primaryKey"`
	TransactionID uuid.UUID       `gorm:"type:uuid;index"`
	ReceivableID  uuid.UUID       `gorm:"type:uuid;index"`
	Amount        decimal.Decimal `gorm:"type:numeric(18,2)"`
	Confidence    float64
	MatchKind     string
	Source        AllocationSource
	CreatedAt     time.Time
	RevertedAt    *time.Time `gorm:"index"`
}

func (a *PaymentAllocation) Active() bool {
	return a.RevertedAt == nil
}
