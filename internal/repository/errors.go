package repository

import (
	"errors"

	"bank-reconciliation-engine/internal/apperr"

	"gorm.io/gorm"
)

// notFound turns gorm's missing-row error into the shared taxonomy.
func notFound(op string, err error, what string, id any) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperr.NotFound(op, "%s %v does not exist", what, id)
	}
	return err
}
