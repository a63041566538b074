package repository

import (
	"context"

	"bank-reconciliation-engine/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type AccountRepository struct {
	db *gorm.DB
}

func NewAccountRepository(db *gorm.DB) *AccountRepository {
	return &AccountRepository{db: db}
}

func (r *AccountRepository) Create(ctx context.Context, account *models.BankAccount) error {
	return r.db.WithContext(ctx).Create(account).Error
}

func (r *AccountRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.BankAccount, error) {
	var account models.BankAccount
	if err := r.db.WithContext(ctx).First(&account, "id = ?", id).Error; err != nil {
		return nil, notFound("get account", err, "account", id)
	}
	return &account, nil
}

func (r *AccountRepository) List(ctx context.Context) ([]models.BankAccount, error) {
	var accounts []models.BankAccount
	err := r.db.WithContext(ctx).Order("created_at ASC, id ASC").Find(&accounts).Error
	return accounts, err
}
