package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

type TransactionStatus string

const (
	TransactionUnmatched TransactionStatus = "UNMATCHED"
	TransactionMatched   TransactionStatus = "MATCHED"
	TransactionIgnored   TransactionStatus = "IGNORED"
)

// BankTransaction is one normalized bank-statement line. Rows are never
// deleted; MatchedAt is set exactly while Status is MATCHED.
type BankTransaction struct {
	ID                uuid.UUID       `gorm:"type:uuid;primaryKey"`
	AccountID         uuid.UUID       `gorm:"type:uuid;index;uniqueIndex:idx_account_external_ref"`
	ValueDate         time.Time       `gorm:"column:value_date;index"`
	Amount            decimal.Decimal `gorm:"type:numeric(18,2)"`
	Description       string
	CounterpartyID    *string
	ExternalReference string            `gorm:"uniqueIndex:idx_account_external_ref"`
	Status            TransactionStatus `gorm:"index"`
	MatchedAt         *time.Time
	ConfidenceScore   float64
	MatchDetails      datatypes.JSON
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// IsCredit reports whether money came into the account.
func (t *BankTransaction) IsCredit() bool {
	return t.Amount.IsPositive()
}
