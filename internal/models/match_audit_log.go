package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	ActionMatchApplied       = "match_applied"
	ActionMatchReverted      = "match_reverted"
	ActionTransactionIgnored = "transaction_ignored"
	ActionTransactionReset   = "transaction_reset"
	ActionReviewQueued       = "review_queued"
	ActionReviewRejected     = "review_rejected"
)

// MatchAuditLog is one committed state change. Seq orders the rows written by
// a single commit, which share CreatedAt.
type MatchAuditLog struct {
	ID             uuid.UUID  `gorm:"type:uuid;primaryKey"`
	TransactionID  uuid.UUID  `gorm:"type:uuid;index"`
	ReceivableID   *uuid.UUID `gorm:"type:uuid"`
	Action         string
	PreviousStatus TransactionStatus
	NewStatus      TransactionStatus
	Confidence     *float64
	PerformedBy    string
	Reason         string
	CreatedAt      time.Time `gorm:"index:idx_audit_order,priority:1"`
	Seq            int       `gorm:"index:idx_audit_order,priority:2"`
}
