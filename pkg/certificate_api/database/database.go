package database

import (
	"fmt"

	"github.com/developer-overheid-nl/don-certificate-issuer/pkg/certificate_api/models"
	_ "github.com/lib/pq"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Connect opens the postgres record store and makes sure the record table exists.
func Connect(connStr, table string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(connStr), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := Migrate(db, table); err != nil {
		return nil, err
	}
	return db, nil
}

// Migrate creates or updates the record table under the configured name.
func Migrate(db *gorm.DB, table string) error {
	if err := db.Table(table).AutoMigrate(&models.IssuanceRecord{}); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	return nil
}
