// Package repositories provides the data access layer for payments,
// processors, webhook events and payouts.
package repositories

import (
	"fmt"
	"log"
	"os"
	"time"

	"menupay/internal/config"
	"menupay/internal/logger"
	"menupay/internal/models"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// AllModels lists every table owned by this service, in migration order.
var AllModels = []interface{}{
	&models.Order{},
	&models.PaymentProcessorConfig{},
	&models.Payment{},
	&models.PaymentRefund{},
	&models.WebhookEvent{},
	&models.PayoutSchedule{},
	&models.Payout{},
	&models.SettlementAdjustment{},
}

// InitDB opens the postgres connection, applies the pool settings and runs
// migrations.
func InitDB(cfg *config.Config) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(cfg.DatabaseDSN), &gorm.Config{
		Logger: newGormLogger(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}
	sqlDB.SetMaxIdleConns(cfg.DBMaxIdleConns)
	sqlDB.SetMaxOpenConns(cfg.DBMaxOpenConns)
	sqlDB.SetConnMaxLifetime(cfg.DBConnLifetime)
	sqlDB.SetConnMaxIdleTime(cfg.DBConnIdleTime)

	if err := Migrate(db); err != nil {
		return nil, err
	}

	logger.L().Info("postgres connected & migrations applied")
	return db, nil
}

// Migrate creates or updates every table.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(AllModels...); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}
	return nil
}

// DropAllTables removes every table owned by this service.
func DropAllTables(db *gorm.DB) error {
	return db.Migrator().DropTable(AllModels...)
}

// Only warnings and errors; "record not found" is an expected outcome here.
func newGormLogger() gormlogger.Interface {
	return gormlogger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		gormlogger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)
}
