// Package testdb opens throwaway in-memory databases for tests.
package testdb

import (
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/videogen-ai/videogen/internal/pkg/database"
)

var counter atomic.Int64

// New returns a migrated sqlite database private to the test. A single
// connection keeps sqlite from returning "database is locked" when goroutines
// write concurrently.
func New(t testing.TB) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:testdb_%d?mode=memory&cache=shared&_busy_timeout=5000", counter.Add(1))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		NowFunc: func() time.Time { return time.Now().UTC() },
		Logger:  logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := db.AutoMigrate(database.Models()...); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

// NewSeeded is New plus the default plan catalog.
func NewSeeded(t testing.TB) *gorm.DB {
	t.Helper()
	db := New(t)
	if err := database.SeedPlans(db); err != nil {
		t.Fatalf("seed plans: %v", err)
	}
	return db
}
