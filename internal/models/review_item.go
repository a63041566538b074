package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type ReviewStatus string

const (
	ReviewPending    ReviewStatus = "PENDING"
	ReviewAccepted   ReviewStatus = "ACCEPTED"
	ReviewRejected   ReviewStatus = "REJECTED"
	ReviewSuperseded ReviewStatus = "SUPERSEDED"
)

// ReviewItem holds the ranked hypotheses for one transaction awaiting a
// human decision.
type ReviewItem struct {
	ID             uuid.UUID    `gorm:"type:uuid;primaryKey"`
	TransactionID  uuid.UUID    `gorm:"type:uuid;index"`
	Hypotheses     datatypes.JSON
	BestConfidence float64
	Status         ReviewStatus `gorm:"index"`
	ResolvedBy     string
	ResolvedAt     *time.Time
	CreatedAt      time.Time
}
