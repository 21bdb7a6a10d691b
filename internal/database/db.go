package database

import (
	"fmt"

	"compugear/internal/config"
	"compugear/internal/model"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// NewConnection initializes a new connection pool using GORM
func NewConnection(cfg config.DatabaseConfig) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{TranslateError: true})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	return db, nil
}

// Migrate creates or updates every table the service owns.
func Migrate(db *gorm.DB) error {
	err := db.AutoMigrate(
		&model.Role{},
		&model.Company{},
		&model.User{},
		&model.ERPModule{},
		&model.CompanySubscription{},
		&model.CompanyModuleAccess{},
		&model.RoleModuleAccess{},
		&model.PlatformUsageLog{},
		&model.ApprovalRequest{},
		&model.Notification{},
		&model.Product{},
		&model.InventoryTransaction{},
		&model.Order{},
		&model.Invoice{},
		&model.Payment{},
		&model.Refund{},
		&model.AuditLog{},
	)
	if err != nil {
		return fmt.Errorf("failed to auto-migrate models: %w", err)
	}
	return nil
}
