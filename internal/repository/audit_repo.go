package repository

import (
	"context"

	"bank-reconciliation-engine/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type AuditRepository struct {
	db *gorm.DB
}

func NewAuditRepository(db *gorm.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

func (r *AuditRepository) WithTx(tx *gorm.DB) *AuditRepository {
	return &AuditRepository{db: tx}
}

func (r *AuditRepository) Record(ctx context.Context, entry *models.MatchAuditLog) error {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Create(entry).Error
}

// ByTransaction returns the audit trail of a transaction, oldest first.
func (r *AuditRepository) ByTransaction(ctx context.Context, txID uuid.UUID) ([]models.MatchAuditLog, error) {
	var entries []models.MatchAuditLog
	err := r.db.WithContext(ctx).
		Where("transaction_id = ?", txID).
		Order("created_at ASC, seq ASC, id ASC").
		Find(&entries).Error
	return entries, err
}
