package db

import (
	"fmt"
	"log"
	"time"

	"refill-backend/internal/config"
	"refill-backend/internal/models"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Connect opens the ledger database and migrates the schema. The handle is
// returned to the caller for injection; there is no package-level singleton.
//
// TranslateError is enabled so a violated primary-key constraint on
// refill_request_id surfaces as gorm.ErrDuplicatedKey — the orchestrator
// relies on that to detect concurrent duplicate submissions.
func Connect(cfg config.DatabaseConfig) (*gorm.DB, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("database DSN is required")
	}

	gdb, err := gorm.Open(postgres.Open(cfg.DSN), &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
		SkipDefaultTransaction:                   true,
		PrepareStmt:                              true,
		TranslateError:                           true,
		Logger:                                   logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}

	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, fmt.Errorf("get sql.DB handle: %w", err)
	}
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(time.Hour)

	log.Println("✅ Database connected")

	if err := Migrate(gdb); err != nil {
		return nil, err
	}

	return gdb, nil
}

// Migrate runs the GORM schema migration for all ledger entities.
func Migrate(gdb *gorm.DB) error {
	log.Println("🚀 Running database schema migration...")

	if err := gdb.AutoMigrate(
		&models.Blockchain{},
		&models.Wallet{},
		&models.Asset{},
		&models.RefillTransaction{},
	); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}

	log.Println("✅ Database schema migrated")
	return nil
}
