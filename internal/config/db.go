package config

import (
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"bank-reconciliation-engine/internal/models"
)

// InitDB opens the configured database.
func InitDB(s *Settings) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch s.DBDriver {
	case DriverPostgres:
		dialector = postgres.Open(s.DatabaseURL)
	case DriverSQLite:
		dialector = sqlite.Open(s.DatabaseURL)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", s.DBDriver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("opening %s database: %w", s.DBDriver, err)
	}

	if s.DBDriver == DriverSQLite {
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		// one writer at a time; SQLite has no row locks
		sqlDB.SetMaxOpenConns(1)
	}
	return db, nil
}

// Migrate creates or updates every table.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(models.All()...); err != nil {
		return fmt.Errorf("migrating schema: %w", err)
	}
	return nil
}
