package models

import (
	"time"

	"github.com/google/uuid"
)

type BankAccount struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	Name      string
	IBAN      string `gorm:"uniqueIndex"`
	Currency  string
	CreatedAt time.Time
}
