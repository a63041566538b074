package repository

import (
	"context"
	"time"

	"bank-reconciliation-engine/internal/apperr"
	"bank-reconciliation-engine/internal/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type BankTransactionRepository struct {
	db *gorm.DB
}

func NewBankTransactionRepository(db *gorm.DB) *BankTransactionRepository {
	return &BankTransactionRepository{db: db}
}

func (r *BankTransactionRepository) WithTx(tx *gorm.DB) *BankTransactionRepository {
	return &BankTransactionRepository{db: tx}
}

// Insert stores an imported line; a repeated external reference for the same
// account is skipped and reported as not inserted.
func (r *BankTransactionRepository) Insert(ctx context.Context, tx *models.BankTransaction) (bool, error) {
	res := r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(tx)
	return res.RowsAffected > 0, res.Error
}

func (r *BankTransactionRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.BankTransaction, error) {
	var tx models.BankTransaction
	if err := r.db.WithContext(ctx).First(&tx, "id = ?", id).Error; err != nil {
		return nil, notFound("get transaction", err, "transaction", id)
	}
	return &tx, nil
}

// IDsByStatus lists an account's transactions in processing order.
func (r *BankTransactionRepository) IDsByStatus(ctx context.Context, accountID uuid.UUID, status models.TransactionStatus) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := r.db.WithContext(ctx).Model(&models.BankTransaction{}).
		Where("account_id = ? AND status = ?", accountID, status).
		Order("value_date ASC, id ASC").
		Pluck("id", &ids).Error
	return ids, err
}

// CountByAccount counts every transaction of an account regardless of status.
func (r *BankTransactionRepository) CountByAccount(ctx context.Context, accountID uuid.UUID) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&models.BankTransaction{}).
		Where("account_id = ?", accountID).
		Count(&n).Error
	return n, err
}

// StatusChange describes a guarded status transition.
type StatusChange struct {
	From       []models.TransactionStatus
	To         models.TransactionStatus
	At         time.Time
	Confidence float64
	Details    datatypes.JSON
}

// Transition moves a transaction to a new status only if it is still in one
// of the expected states. matched_at is set exactly when entering MATCHED.
func (r *BankTransactionRepository) Transition(ctx context.Context, id uuid.UUID, change StatusChange) error {
	updates := map[string]interface{}{
		"status":     change.To,
		"updated_at": change.At,
	}
	if change.To == models.TransactionMatched {
		updates["matched_at"] = change.At
		updates["confidence_score"] = change.Confidence
		if change.Details != nil {
			updates["match_details"] = change.Details
		}
	} else {
		updates["matched_at"] = nil
	}

	res := r.db.WithContext(ctx).Model(&models.BankTransaction{}).
		Where("id = ? AND status IN ?", id, change.From).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return apperr.StateConflict("transition transaction", "transaction %s is not in %v", id, change.From)
	}
	return nil
}

// List returns a page of transactions for an account using keyset pagination.
func (r *BankTransactionRepository) List(
	ctx context.Context,
	accountID uuid.UUID,
	status string,
	cursor string,
	limit int,
	search string,
) ([]models.BankTransaction, string, bool, error) {

	var txs []models.BankTransaction
	query := r.db.WithContext(ctx).
		Where("account_id = ?", accountID).
		Order("id ASC").
		Limit(limit + 1)

	if status != "" && status != "all" {
		query = query.Where("status = ?", status)
	}
	if cursor != "" {
		query = query.Where("id > ?", cursor)
	}
	if search != "" {
		like := "%" + search + "%"
		query = query.Where("LOWER(description) LIKE LOWER(?) OR CAST(amount AS TEXT) LIKE ?", like, like)
	}

	if err := query.Find(&txs).Error; err != nil {
		return nil, "", false, err
	}

	hasMore := false
	var nextCursor string
	if len(txs) > limit {
		hasMore = true
		nextCursor = txs[limit-1].ID.String()
		txs = txs[:limit]
	}
	return txs, nextCursor, hasMore, nil
}

type StatusStats struct {
	Status string          `json:"status"`
	Count  int64           `json:"count"`
	Sum    decimal.Decimal `json:"sum"`
}

// Stats groups an account's transactions by status.
func (r *BankTransactionRepository) Stats(ctx context.Context, accountID uuid.UUID) ([]StatusStats, error) {
	var rows []struct {
		Status string
		Count  int64
		Sum    decimal.Decimal
	}
	err := r.db.WithContext(ctx).Model(&models.BankTransaction{}).
		Where("account_id = ?", accountID).
		Select("status, COUNT(*) as count, COALESCE(SUM(amount),0) as sum").
		Group("status").
		Order("status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	stats := make([]StatusStats, 0, len(rows))
	for _, row := range rows {
		stats = append(stats, StatusStats{Status: row.Status, Count: row.Count, Sum: row.Sum})
	}
	return stats, nil
}
