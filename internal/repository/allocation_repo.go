package repository

import (
	"context"
	"time"

	"bank-reconciliation-engine/internal/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type AllocationRepository struct {
	db *gorm.DB
}

func NewAllocationRepository(db *gorm.DB) *AllocationRepository {
	return &AllocationRepository{db: db}
}

func (r *AllocationRepository) WithTx(tx *gorm.DB) *AllocationRepository {
	return &AllocationRepository{db: tx}
}

func (r *AllocationRepository) Create(ctx context.Context, a *models.PaymentAllocation) error {
	return r.db.WithContext(ctx).Create(a).Error
}

func (r *AllocationRepository) ActiveByTransaction(ctx context.Context, txID uuid.UUID) ([]models.PaymentAllocation, error) {
	var allocs []models.PaymentAllocation
	err := r.db.WithContext(ctx).
		Where("transaction_id = ? AND reverted_at IS NULL", txID).
		Order("created_at ASC, id ASC").
		Find(&allocs).Error
	return allocs, err
}

// ByReceivable returns every allocation, active or reverted, for a receivable.
func (r *AllocationRepository) ByReceivable(ctx context.Context, receivableID uuid.UUID) ([]models.PaymentAllocation, error) {
	var allocs []models.PaymentAllocation
	err := r.db.WithContext(ctx).
		Where("receivable_id = ?", receivableID).
		Order("created_at ASC, id ASC").
		Find(&allocs).Error
	return allocs, err
}

// ActiveSum adds up the active allocations of a receivable.
func (r *AllocationRepository) ActiveSum(ctx context.Context, receivableID uuid.UUID) (decimal.Decimal, error) {
	var allocs []models.PaymentAllocation
	err := r.db.WithContext(ctx).
		Select("amount").
		Where("receivable_id = ? AND reverted_at IS NULL", receivableID).
		Find(&allocs).Error
	if err != nil {
		return decimal.Zero, err
	}
	sum := decimal.Zero
	for _, a := range allocs {
		sum = sum.Add(a.Amount)
	}
	return sum, nil
}

func (r *AllocationRepository) MarkReverted(ctx context.Context, id uuid.UUID, at time.Time) error {
	return r.db.WithContext(ctx).Model(&models.PaymentAllocation{}).
		Where("id = ? AND reverted_at IS NULL", id).
		Update("reverted_at", at).Error
}
