package database

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/glefebvre/reelvault/internal/config"
	"github.com/glefebvre/reelvault/internal/logger"
	"github.com/glefebvre/reelvault/internal/models"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

var db *gorm.DB

// Initialize opens the configured database and runs migrations
func Initialize() error {
	cfg := config.Get()
	if err := cfg.ValidateDatabase(); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}

	conn, err := Open(cfg.Database, cfg.GetDatabaseLogLevel())
	if err != nil {
		return err
	}

	if err := Migrate(conn); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	db = conn
	return nil
}

// Open connects to postgres or sqlite according to cfg without migrating
func Open(cfg config.DatabaseConfig, logLevel string) (*gorm.DB, error) {
	dialector, err := dialectorFor(cfg)
	if err != nil {
		return nil, err
	}

	conn, err := gorm.Open(dialector, &gorm.Config{
		Logger:         logger.NewGormAdapter(logger.DatabaseLogger(), logLevel),
		TranslateError: true,
		// cascades are applied by the services
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := conn.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}

	if cfg.Driver == "sqlite" {
		// one writer at a time
		sqlDB.SetMaxOpenConns(1)
	} else {
		if cfg.MaxOpenConns > 0 {
			sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
		}
		if cfg.MaxIdleConns > 0 {
			sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
		}
	}
	sqlDB.SetConnMaxLifetime(time.Hour)

	return conn, nil
}

func dialectorFor(cfg config.DatabaseConfig) (gorm.Dialector, error) {
	switch cfg.Driver {
	case "", "postgres":
		dsn := fmt.Sprintf(
			"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			cfg.Host,
			cfg.Port,
			cfg.User,
			cfg.Password,
			cfg.DBName,
			cfg.SSLMode,
		)
		return postgres.Open(dsn), nil
	case "sqlite":
		if cfg.Path != ":memory:" {
			if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
				return nil, fmt.Errorf("failed to create database directory: %w", err)
			}
		}
		return sqlite.Open(cfg.Path), nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}

// Migrate creates or updates every table
func Migrate(conn *gorm.DB) error {
	if err := conn.AutoMigrate(models.All()...); err != nil {
		return err
	}
	return backfillSearchColumns(conn)
}

// backfillSearchColumns folds rows stored before the search columns existed.
// Titles and request names are never empty, so an empty column marks a stale row.
func backfillSearchColumns(conn *gorm.DB) error {
	var contents []models.Content
	err := conn.Where("search_title = ''").FindInBatches(&contents, 200, func(_ *gorm.DB, _ int) error {
		for _, c := range contents {
			err := conn.Model(&models.Content{}).Where("id = ?", c.ID).UpdateColumns(map[string]interface{}{
				"search_title": models.FoldSearch(c.Title),
				"search_tags":  models.FoldTags(c.Tags),
			}).Error
			if err != nil {
				return err
			}
		}
		return nil
	}).Error
	if err != nil {
		return fmt.Errorf("failed to backfill content search columns: %w", err)
	}

	var requests []models.ContentRequest
	err = conn.Where("search_name = ''").FindInBatches(&requests, 200, func(_ *gorm.DB, _ int) error {
		for _, r := range requests {
			err := conn.Model(&models.ContentRequest{}).Where("id = ?", r.ID).UpdateColumns(map[string]interface{}{
				"search_name": models.FoldSearch(r.ContentName),
				"search_by":   models.FoldSearch(r.RequestedBy),
			}).Error
			if err != nil {
				return err
			}
		}
		return nil
	}).Error
	if err != nil {
		return fmt.Errorf("failed to backfill request search columns: %w", err)
	}
	return nil
}

// Get returns the database instance
func Get() *gorm.DB {
	return db
}

// Set replaces the database instance (primarily for testing)
func Set(conn *gorm.DB) {
	db = conn
}

// HealthCheck verifies database connectivity
func HealthCheck(ctx context.Context) error {
	return Ping(ctx, db)
}

// Ping checks that conn answers within ctx
func Ping(ctx context.Context, conn *gorm.DB) error {
	if conn == nil {
		return fmt.Errorf("database not initialized")
	}

	sqlDB, err := conn.DB()
	if err != nil {
		return fmt.Errorf("failed to get database instance: %w", err)
	}

	if err := sqlDB.PingContext(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}

	return nil
}

// Close closes the database connection
func Close() error {
	if db == nil {
		return nil
	}

	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get database instance: %w", err)
	}

	return sqlDB.Close()
}
