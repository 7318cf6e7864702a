// Package database opens the relational store and prepares its schema and
// initial data.
package database

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"productapi/internal/config"
	"productapi/internal/models"
	"productapi/internal/repositories"
)

// Open connects to the configured database. The memory driver has no
// database and is rejected here.
func Open(cfg config.DatabaseConfig) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch cfg.Driver {
	case config.DriverPostgres:
		dialector = postgres.Open(cfg.DSN)
	case config.DriverSQLite:
		dialector = sqlite.Open(cfg.DSN)
	default:
		return nil, fmt.Errorf("driver %q has no database to open", cfg.Driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.Default.LogMode(LogLevel(cfg.LogLevel)),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s database: %w", cfg.Driver, err)
	}

	if cfg.Driver == config.DriverSQLite {
		sqlDB, err := db.DB()
		if err != nil {
			return nil, fmt.Errorf("failed to get sqlite handle: %w", err)
		}
		// SQLite serialises writers; a single connection also keeps
		// ":memory:" databases alive across calls.
		sqlDB.SetMaxOpenConns(1)
	}
	return db, nil
}

// LogLevel maps a config string to a GORM log level. Unknown values mean warn.
func LogLevel(level string) gormlogger.LogLevel {
	switch strings.ToLower(level) {
	case "silent":
		return gormlogger.Silent
	case "error":
		return gormlogger.Error
	case "info":
		return gormlogger.Info
	default:
		return gormlogger.Warn
	}
}

// Migrate creates or updates the users and products tables.
func Migrate(ctx context.Context, db *gorm.DB) error {
	if err := db.WithContext(ctx).AutoMigrate(&models.User{}, &models.Product{}); err != nil {
		return fmt.Errorf("failed to auto-migrate database: %w", err)
	}
	return nil
}

// EnsureSystemUser inserts the user row for the system identity, so rows
// stamped without an authenticated actor satisfy the foreign keys.
func EnsureSystemUser(ctx context.Context, store *repositories.Store) error {
	uow := store.Begin(models.SystemActor)
	uow.AddUser(&models.User{
		ID:       models.SystemActorID,
		Name:     "System",
		IsActive: true,
	})
	if _, err := uow.Commit(ctx); err != nil {
		return fmt.Errorf("ensure system user: %w", err)
	}
	return nil
}

// SeedProducts is the catalogue written into an empty store.
var SeedProducts = []models.Product{
	{Name: "Laptop", Description: "High performance laptop", Price: decimal.RequireFromString("1999.99")},
	{Name: "Smartphone", Description: "Latest model smartphone", Price: decimal.RequireFromString("899.50")},
	{Name: "Headphones", Description: "Noise-cancelling headphones", Price: decimal.RequireFromString("149.95")},
	{Name: "Keyboard", Description: "Mechanical keyboard", Price: decimal.RequireFromString("79.99")},
	{Name: "Monitor", Description: "27-inch 4K monitor", Price: decimal.RequireFromString("499.00")},
}

// Seed writes SeedProducts as the system actor when the store holds no
// products, and returns how many were written.
func Seed(ctx context.Context, store *repositories.Store) (int, error) {
	existing, err := store.Products().GetAll(ctx)
	if err != nil {
		return 0, fmt.Errorf("seed: %w", err)
	}
	if len(existing) > 0 {
		return 0, nil
	}

	uow := store.Begin(models.SystemActor)
	for _, p := range SeedProducts {
		product := p.Clone()
		uow.AddProduct(&product)
	}
	n, err := uow.Commit(ctx)
	if err != nil {
		return 0, fmt.Errorf("seed: %w", err)
	}
	return int(n), nil
}
