package database

import (
	"fmt"
	"time"

	"larder/internal/models"

	"github.com/jinzhu/gorm"
	_ "github.com/jinzhu/gorm/dialects/postgres" // PostgreSQL dialect
	_ "github.com/mattn/go-sqlite3"              // SQLite driver
)

var DB *gorm.DB

// InitDB initializes the database connection for the configured driver
func InitDB(driver, dsn string) error {
	var err error
	DB, err = gorm.Open(driver, dsn)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	// Configure connection pool
	DB.DB().SetMaxIdleConns(10)
	DB.DB().SetMaxOpenConns(100)
	DB.DB().SetConnMaxLifetime(time.Hour)

	return nil
}

// GetDB returns the database instance
func GetDB() *gorm.DB {
	return DB
}

// CloseDB closes the database connection
func CloseDB() error {
	if DB != nil {
		return DB.Close()
	}
	return nil
}

// Migrate creates and updates all tables used by the deduction engine
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.Ingredient{},
		&models.DeductionEntry{},
		&models.DishAvailability{},
	).Error
}

// SeedDefaultInventory ensures a starter set of ingredients exists so a fresh
// install has something to deduct against. Existing data is left alone.
func SeedDefaultInventory(db *gorm.DB) error {
	var count int64
	if err := db.Model(&models.Ingredient{}).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	defaults := []models.Ingredient{
		{DisplayName: "Chicken", CurrentStock: 30, MinStock: 5, MaxStock: 60, Unit: "pc"},
		{DisplayName: "Cooking oil", CurrentStock: 20, MinStock: 4, MaxStock: 40, Unit: "l"},
		{DisplayName: "Salt", CurrentStock: 20, MinStock: 2, MaxStock: 25, Unit: "kg"},
		{DisplayName: "Garlic", CurrentStock: 15, MinStock: 3, MaxStock: 30, Unit: "kg"},
		{DisplayName: "Rice", CurrentStock: 50, MinStock: 10, MaxStock: 100, Unit: "kg"},
		{DisplayName: "Pork", CurrentStock: 25, MinStock: 5, MaxStock: 50, Unit: "kg"},
	}
	for i := range defaults {
		item := &defaults[i]
		item.Name = models.CanonicalName(item.DisplayName)
		item.Active = true
		item.Recompute()
		if err := db.Create(item).Error; err != nil {
			return fmt.Errorf("failed to seed ingredient %s: %w", item.DisplayName, err)
		}
	}
	return nil
}
