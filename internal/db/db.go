package db

import (
	"fmt"

	"passport_studio/internal/config" // Application configuration
	"passport_studio/internal/store"  // Record store

	"github.com/sirupsen/logrus"

	"gorm.io/driver/mysql"    // MySQL driver for GORM
	"gorm.io/driver/postgres" // PostgreSQL driver for GORM
	"gorm.io/gorm"            // GORM ORM library
	"gorm.io/gorm/logger"     // GORM query logger
)

// Open connects to the SQL database named by cfg.StoreDriver
func Open(cfg *config.Config) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch cfg.StoreDriver {
	case config.DriverMySQL:
		dialector = mysql.Open(cfg.MySQLDSN())
	case config.DriverPostgres:
		dialector = postgres.Open(cfg.PostgresDSN())
	default:
		return nil, fmt.Errorf("store driver %q is not a SQL driver", cfg.StoreDriver)
	}

	level := logger.Warn // Quiet in production
	if !cfg.IsProd {
		level = logger.Info
	}
	db, err := gorm.Open(dialector, &gorm.Config{
		TranslateError: true, // Unique violations surface as gorm.ErrDuplicatedKey
		Logger:         logger.Default.LogMode(level),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect database: %w", err)
	}
	return db, nil
}

// Migrate performs automatic migration for the database schema
func Migrate(db *gorm.DB) error {
	// AutoMigrate will create tables, missing foreign keys, constraints, columns and indexes
	if err := db.AutoMigrate(store.Models...); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	logrus.WithField("tables", len(store.Models)).Info("Migration completed.") // Log successful migration
	return nil
}

// OpenStore builds the record store named by cfg.StoreDriver. The returned
// *gorm.DB is nil for the memory driver.
func OpenStore(cfg *config.Config) (store.Store, *gorm.DB, error) {
	if cfg.StoreDriver == config.DriverMemory {
		st, err := store.NewMemStore(cfg.MemoryPath, cfg.GalleryMaxImages)
		if err != nil {
			return nil, nil, err
		}
		return st, nil, nil
	}
	conn, err := Open(cfg)
	if err != nil {
		return nil, nil, err
	}
	return store.NewGormStore(conn, cfg.GalleryMaxImages), conn, nil
}
