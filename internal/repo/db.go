// Package repo is the persistence layer: GORM repositories over SQLite plus
// the aggregate queries built on top of them. This file bootstraps the
// database handle and the schema.
package repo

import (
	"os"
	"path/filepath"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/plugin/opentelemetry/tracing"

	"github.com/tbourn/go-task-backend/internal/domain"
)

// sqlitePragmas runs on every open. WAL plus a busy timeout keeps readers
// from failing immediately while the single writer holds the lock.
var sqlitePragmas = []string{
	"PRAGMA journal_mode=WAL;",
	"PRAGMA synchronous=NORMAL;",
	"PRAGMA foreign_keys=ON;",
	"PRAGMA busy_timeout=5000;",
}

// OpenSQLite opens or creates the database at path, installs query tracing
// and applies the pragmas and pool limits. The parent directory must exist
// already; checking it up front beats the misleading "out of memory (14)"
// sqlite reports for an unreachable path.
func OpenSQLite(path string) (*gorm.DB, error) {
	if dir := filepath.Dir(path); dir != "." {
		if _, err := os.Stat(dir); err != nil {
			return nil, err
		}
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{})
	if err != nil {
		return nil, err
	}

	// Spans stay no-ops until a global tracer provider is installed.
	if err := db.Use(tracing.NewPlugin(tracing.WithoutMetrics(), tracing.WithoutQueryVariables())); err != nil {
		return nil, err
	}

	for _, p := range sqlitePragmas {
		db.Exec(p)
	}

	if sqlDB, err := db.DB(); err == nil {
		sqlDB.SetMaxOpenConns(10)
		sqlDB.SetMaxIdleConns(10)
		sqlDB.SetConnMaxIdleTime(5 * time.Minute)
		sqlDB.SetConnMaxLifetime(30 * time.Minute)
	}

	return db, nil
}

// AutoMigrate creates or updates the tasks schema, including the unique
// name index declared on domain.Task.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&domain.Task{})
}
