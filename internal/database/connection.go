// internal/database/connection.go
package database

import (
	"fmt"
	"log"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/inkmarket/commission-backend/internal/config"
	"github.com/inkmarket/commission-backend/internal/models"
)

var DB *gorm.DB

func Initialize(cfg config.DatabaseConfig) (*gorm.DB, error) {
	var err error
	var gormConfig *gorm.Config

	// Configure GORM logger
	if cfg.LogLevel == "silent" {
		gormConfig = &gorm.Config{
			Logger: logger.Default.LogMode(logger.Silent),
		}
	} else {
		gormConfig = &gorm.Config{
			Logger: logger.Default.LogMode(logger.Info),
		}
	}

	// Connect to database
	DB, err = gorm.Open(postgres.Open(cfg.DSN()), gormConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Get underlying sql.DB
	sqlDB, err := DB.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	// Configure connection pool
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(time.Duration(cfg.MaxLifetime) * time.Second)

	// Test connection
	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	log.Println("Database connection established successfully")
	return DB, nil
}

func Close(db *gorm.DB) {
	sqlDB, err := db.DB()
	if err != nil {
		log.Printf("Error getting underlying sql.DB: %v", err)
		return
	}

	if err := sqlDB.Close(); err != nil {
		log.Printf("Error closing database connection: %v", err)
	} else {
		log.Println("Database connection closed successfully")
	}
}

func RunMigrations(db *gorm.DB) error {
	log.Println("Running database migrations...")

	// Enable UUID extension
	if err := db.Exec("CREATE EXTENSION IF NOT EXISTS \"uuid-ossp\"").Error; err != nil {
		return fmt.Errorf("failed to create UUID extension: %w", err)
	}

	// Run auto-migrations
	err := db.AutoMigrate(
		&models.User{},
		&models.Listing{},
		&models.Proposal{},
		&models.Contract{},
		&models.ContractTerms{},
		&models.Milestone{},
		&models.Upload{},
		&models.Ticket{},
		&models.Payment{},
		&models.Settlement{},
		&models.AuditLog{},
		&models.Notification{},
		&models.AdminNotification{},
	)

	if err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	// Create indexes
	if err := createIndexes(db); err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}

	log.Println("Database migrations completed successfully")
	return nil
}

func createIndexes(db *gorm.DB) error {
	indexes := []string{
		// User indexes
		"CREATE INDEX IF NOT EXISTS idx_users_email ON users(email)",
		"CREATE INDEX IF NOT EXISTS idx_users_type_status ON users(user_type, status)",

		// Listing indexes
		"CREATE INDEX IF NOT EXISTS idx_listings_artist ON listings(artist_id)",
		"CREATE INDEX IF NOT EXISTS idx_listings_active ON listings(active, created_at DESC)",

		// Proposal indexes
		"CREATE INDEX IF NOT EXISTS idx_proposals_client ON proposals(client_id)",
		"CREATE INDEX IF NOT EXISTS idx_proposals_artist_status ON proposals(artist_id, status)",
		"CREATE INDEX IF NOT EXISTS idx_proposals_expiry ON proposals(status, expires_at)",

		// Contract indexes
		"CREATE INDEX IF NOT EXISTS idx_contracts_client ON contracts(client_id)",
		"CREATE INDEX IF NOT EXISTS idx_contracts_artist_status ON contracts(artist_id, status)",
		"CREATE INDEX IF NOT EXISTS idx_contracts_deadline ON contracts(status, deadline_at)",
		"CREATE INDEX IF NOT EXISTS idx_contract_terms_contract ON contract_terms(contract_id, version DESC)",
		"CREATE INDEX IF NOT EXISTS idx_milestones_contract ON milestones(contract_id, position)",
		"CREATE INDEX IF NOT EXISTS idx_uploads_contract_status ON uploads(contract_id, kind, status)",

		// Ticket indexes
		"CREATE INDEX IF NOT EXISTS idx_tickets_contract_type ON tickets(contract_id, type)",
		"CREATE INDEX IF NOT EXISTS idx_tickets_status_window ON tickets(status, counter_expires_at)",
		"CREATE INDEX IF NOT EXISTS idx_tickets_target ON tickets(target_type, target_id)",

		// Ledger indexes
		"CREATE INDEX IF NOT EXISTS idx_payments_client ON payments(client_id)",
		"CREATE INDEX IF NOT EXISTS idx_payments_status ON payments(status, created_at DESC)",
		"CREATE INDEX IF NOT EXISTS idx_settlements_status ON settlements(terminal_status)",

		// Admin indexes
		"CREATE INDEX IF NOT EXISTS idx_audit_logs_user_action ON audit_logs(user_id, action)",
		"CREATE INDEX IF NOT EXISTS idx_audit_logs_resource ON audit_logs(resource_type, resource_id)",
		"CREATE INDEX IF NOT EXISTS idx_audit_logs_created ON audit_logs(created_at DESC)",
		"CREATE INDEX IF NOT EXISTS idx_notifications_recipient ON notifications(recipient_id, read_at)",
		"CREATE INDEX IF NOT EXISTS idx_admin_notifications_status ON admin_notifications(status, priority)",
	}

	for _, index := range indexes {
		if err := db.Exec(index).Error; err != nil {
			log.Printf("Warning: Failed to create index: %s, Error: %v", index, err)
			// Continue with other indexes instead of failing completely
		}
	}

	return nil
}

// Seed initial data
func SeedInitialData(db *gorm.DB) error {
	log.Println("Seeding initial data...")

	// Create default admin user
	var adminCount int64
	db.Model(&models.User{}).Where("user_type = ?", models.UserTypeAdmin).Count(&adminCount)

	if adminCount == 0 {
		admin := &models.User{
			Username: "admin",
			Email:    "admin@inkmarket.app",
			UserType: models.UserTypeAdmin,
			Status:   models.UserStatusActive,
			ProfileData: models.JSONB{
				"first_name": "System",
				"last_name":  "Administrator",
				"role":       "super_admin",
			},
		}

		if err := admin.SetPassword("admin123!@#"); err != nil {
			return fmt.Errorf("failed to set admin password: %w", err)
		}

		if err := db.Create(admin).Error; err != nil {
			return fmt.Errorf("failed to create admin user: %w", err)
		}

		log.Println("Default admin user created successfully")
	}

	log.Println("Initial data seeding completed")
	return nil
}

// Transaction helper
func WithTransaction(db *gorm.DB, fn func(*gorm.DB) error) error {
	tx := db.Begin()
	if tx.Error != nil {
		return tx.Error
	}

	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
			panic(r)
		}
	}()

	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}

	return tx.Commit().Error
}
