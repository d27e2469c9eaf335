// Package database provides the local dataset store for the fin-nlp pipeline.
//
// This package includes:
//   - Connection management using GORM with a SQLite (default) or PostgreSQL backend
//   - Schema initialization and the submission_performance reporting view
//   - Typed errors shared by the repositories
//
// Key Concepts:
//   - Every write is an upsert keyed by the natural key of the row, so a
//     replayed run overwrites instead of duplicating
//   - Batches are written inside one transaction
//   - Date-only columns are ISO strings (see models.DateLayout)
//
// Data Models:
//
//	All data models (Submission, Security, ReturnRecord, ...) are defined in the
//	models_pkg package so the repository sub-packages can share them.
package database

import (
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"fin-nlp/config"
	models "fin-nlp/database/models_pkg"
)

// Database holds the GORM database connection and provides access to the underlying DB instance.
type Database struct {
	db *gorm.DB
}

// DB returns the underlying GORM database instance for direct access when needed.
func (d *Database) DB() *gorm.DB {
	return d.db
}

// Connect opens the store selected by cfg.Driver
func Connect(cfg config.DatabaseConfig) (*Database, error) {
	var dialector gorm.Dialector
	switch cfg.Driver {
	case "", "sqlite":
		dialector = sqlite.Open(cfg.Path)
	case "postgres":
		dsn := fmt.Sprintf("host=%s port=%d dbname=%s user=%s password=%s sslmode=disable",
			cfg.Host, cfg.Port, cfg.Name, cfg.User, cfg.Password)
		dialector = postgres.Open(dsn)
	default:
		return nil, invalid("driver", "unsupported database driver", cfg.Driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent), // Silent logging, the run log reports outcomes
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}
	if cfg.Driver == "postgres" {
		sqlDB.SetMaxOpenConns(10)
		sqlDB.SetMaxIdleConns(5)
		sqlDB.SetConnMaxLifetime(5 * time.Minute)
	} else {
		// SQLite allows one writer; a single connection also keeps ":memory:" alive
		sqlDB.SetMaxOpenConns(1)
	}

	return &Database{db: db}, nil
}

// Close closes the database connection
func (d *Database) Close() error {
	sqlDB, err := d.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Type aliases so callers can use the models through the database package

type Submission = models.Submission
type Security = models.Security
type ReturnRecord = models.ReturnRecord
type PerformanceSummary = models.PerformanceSummary
type SentimentScore = models.SentimentScore
