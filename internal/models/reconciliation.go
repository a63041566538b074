package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

const (
	RunProcessing = "processing"
	RunCompleted  = "completed"
	RunCancelled  = "cancelled"
)

// ReconciliationRun is the persisted summary of one batch run.
type ReconciliationRun struct {
	ID              uuid.UUID  `gorm:"type:uuid;primaryKey"`
	AccountID       *uuid.UUID `gorm:"type:uuid;index"`
	Status          string
	Total           int
	Processed       int
	AutoMatched     int
	QueuedForReview int
	Unresolved      int
	Skipped         int
	NotAttempted    int
	ErrorCount      int
	Errors          datatypes.JSON
	StartedAt       time.Time
	CompletedAt     *time.Time
	CreatedAt       time.Time
}
