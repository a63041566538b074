package repository

import (
	"context"
	"strings"
	"time"

	"bank-reconciliation-engine/internal/apperr"
	"bank-reconciliation-engine/internal/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ReceivableRepository is the read/write side of the invoicing collaborator.
type ReceivableRepository struct {
	db *gorm.DB
}

func NewReceivableRepository(db *gorm.DB) *ReceivableRepository {
	return &ReceivableRepository{db: db}
}

// WithTx binds the repository to an open transaction.
func (r *ReceivableRepository) WithTx(tx *gorm.DB) *ReceivableRepository {
	return &ReceivableRepository{db: tx}
}

// Create inserts a receivable, ignoring duplicates on the invoice number.
func (r *ReceivableRepository) Create(ctx context.Context, rec *models.Receivable) (bool, error) {
	res := r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(rec)
	return res.RowsAffected > 0, res.Error
}

func (r *ReceivableRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Receivable, error) {
	var rec models.Receivable
	if err := r.db.WithContext(ctx).First(&rec, "id = ?", id).Error; err != nil {
		return nil, notFound("get receivable", err, "receivable", id)
	}
	return &rec, nil
}

func (r *ReceivableRepository) GetByNumber(ctx context.Context, number string) (*models.Receivable, error) {
	var rec models.Receivable
	if err := r.db.WithContext(ctx).First(&rec, "number = ?", number).Error; err != nil {
		return nil, notFound("get receivable", err, "receivable number", number)
	}
	return &rec, nil
}

// GetForUpdate reads a receivable with a row lock where the dialect has one.
func (r *ReceivableRepository) GetForUpdate(ctx context.Context, id uuid.UUID) (*models.Receivable, error) {
	var rec models.Receivable
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&rec, "id = ?", id).Error
	if err != nil {
		return nil, notFound("lock receivable", err, "receivable", id)
	}
	return &rec, nil
}

// OpenReceivables returns every receivable with something left to allocate.
func (r *ReceivableRepository) OpenReceivables(ctx context.Context) ([]models.Receivable, error) {
	var recs []models.Receivable
	err := r.db.WithContext(ctx).
		Where("payment_status <> ?", models.PaymentPaid).
		Where("allocated_amount < total_amount").
		Order("due_date ASC, id ASC").
		Find(&recs).Error
	return recs, err
}

// Search matches counterparty name or number, optionally limited to statuses.
func (r *ReceivableRepository) Search(ctx context.Context, query string, statuses []models.PaymentStatus) ([]models.Receivable, error) {
	var recs []models.Receivable

	dbQuery := r.db.WithContext(ctx).Model(&models.Receivable{})
	if query != "" {
		like := "%" + strings.ToLower(query) + "%"
		dbQuery = dbQuery.Where("LOWER(counterparty_name) LIKE ? OR LOWER(number) LIKE ?", like, like)
	}
	if len(statuses) > 0 {
		dbQuery = dbQuery.Where("payment_status IN ?", statuses)
	}

	err := dbQuery.Order("due_date ASC, id ASC").Find(&recs).Error
	return recs, err
}

// UpdateAllocation writes a new allocated amount guarded by the version the
// caller read. A moved version means somebody else committed first.
func (r *ReceivableRepository) UpdateAllocation(ctx context.Context, rec *models.Receivable, allocated decimal.Decimal, now time.Time) error {
	status := models.DerivePaymentStatus(rec.TotalAmount, allocated)
	var paidAt *time.Time
	if status == models.PaymentPaid {
		paidAt = &now
	}

	res := r.db.WithContext(ctx).Model(&models.Receivable{}).
		Where("id = ? AND version = ?", rec.ID, rec.Version).
		Updates(map[string]interface{}{
			"allocated_amount": allocated,
			"payment_status":   status,
			"paid_at":          paidAt,
			"version":          gorm.Expr("version + 1"),
			"updated_at":       now,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return apperr.ConcurrencyConflict("update receivable", "receivable %s changed since version %d", rec.ID, rec.Version)
	}

	rec.AllocatedAmount = allocated
	rec.PaymentStatus = status
	rec.PaidAt = paidAt
	rec.Version++
	rec.UpdatedAt = now
	return nil
}
