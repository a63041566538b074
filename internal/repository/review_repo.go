package repository

import (
	"context"
	"time"

	"bank-reconciliation-engine/internal/apperr"
	"bank-reconciliation-engine/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ReviewRepository struct {
	db *gorm.DB
}

func NewReviewRepository(db *gorm.DB) *ReviewRepository {
	return &ReviewRepository{db: db}
}

func (r *ReviewRepository) WithTx(tx *gorm.DB) *ReviewRepository {
	return &ReviewRepository{db: tx}
}

func (r *ReviewRepository) Create(ctx context.Context, item *models.ReviewItem) error {
	return r.db.WithContext(ctx).Create(item).Error
}

func (r *ReviewRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.ReviewItem, error) {
	var item models.ReviewItem
	if err := r.db.WithContext(ctx).First(&item, "id = ?", id).Error; err != nil {
		return nil, notFound("get review item", err, "review item", id)
	}
	return &item, nil
}

func (r *ReviewRepository) PendingByTransaction(ctx context.Context, txID uuid.UUID) (*models.ReviewItem, error) {
	var item models.ReviewItem
	err := r.db.WithContext(ctx).
		Where("transaction_id = ? AND status = ?", txID, models.ReviewPending).
		First(&item).Error
	if err != nil {
		return nil, notFound("pending review", err, "pending review for transaction", txID)
	}
	return &item, nil
}

// Pending lists open items, most confident first.
func (r *ReviewRepository) Pending(ctx context.Context, limit int) ([]models.ReviewItem, error) {
	var items []models.ReviewItem
	query := r.db.WithContext(ctx).
		Where("status = ?", models.ReviewPending).
		Order("best_confidence DESC, created_at ASC, id ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	err := query.Find(&items).Error
	return items, err
}

func (r *ReviewRepository) Save(ctx context.Context, item *models.ReviewItem) error {
	return r.db.WithContext(ctx).Save(item).Error
}

// Resolve closes a pending item. Items already resolved are a state conflict.
func (r *ReviewRepository) Resolve(ctx context.Context, id uuid.UUID, status models.ReviewStatus, actor string, at time.Time) error {
	res := r.db.WithContext(ctx).Model(&models.ReviewItem{}).
		Where("id = ? AND status = ?", id, models.ReviewPending).
		Updates(map[string]interface{}{
			"status":      status,
			"resolved_by": actor,
			"resolved_at": at,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return apperr.StateConflict("resolve review", "review item %s is not pending", id)
	}
	return nil
}

// SupersedeForTransaction closes any pending item of a transaction.
func (r *ReviewRepository) SupersedeForTransaction(ctx context.Context, txID uuid.UUID, at time.Time) error {
	return r.db.WithContext(ctx).Model(&models.ReviewItem{}).
		Where("transaction_id = ? AND status = ?", txID, models.ReviewPending).
		Updates(map[string]interface{}{
			"status":      models.ReviewSuperseded,
			"resolved_at": at,
		}).Error
}
