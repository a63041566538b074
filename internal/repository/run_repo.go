package repository

import (
	"context"

	"bank-reconciliation-engine/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type RunRepository struct {
	db *gorm.DB
}

func NewRunRepository(db *gorm.DB) *RunRepository {
	return &RunRepository{db: db}
}

func (r *RunRepository) Create(ctx context.Context, run *models.ReconciliationRun) error {
	return r.db.WithContext(ctx).Create(run).Error
}

// Save persists the final counters of a run.
func (r *RunRepository) Save(ctx context.Context, run *models.ReconciliationRun) error {
	return r.db.WithContext(ctx).Save(run).Error
}

func (r *RunRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.ReconciliationRun, error) {
	var run models.ReconciliationRun
	if err := r.db.WithContext(ctx).First(&run, "id = ?", id).Error; err != nil {
		return nil, notFound("get run", err, "run", id)
	}
	return &run, nil
}
