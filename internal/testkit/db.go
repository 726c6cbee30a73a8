// Package testkit holds shared fixtures for package tests.
package testkit

import (
	"fmt"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shinyyama/directchat/internal/db"
	"github.com/shinyyama/directchat/internal/model"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var dbSeq atomic.Int64

// NewDB opens a migrated in-memory SQLite database private to the test.
func NewDB(t testing.TB) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s_%d?mode=memory&cache=shared", name, dbSeq.Add(1))
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:  logger.Default.LogMode(logger.Silent),
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := conn.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	if err := db.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return conn
}

// SeedUsers inserts users whose ids double as their display names.
func SeedUsers(t testing.TB, conn *gorm.DB, ids ...string) {
	t.Helper()
	for _, id := range ids {
		u := model.User{ID: id, FullName: id, Email: id + "@example.test"}
		if err := conn.Create(&u).Error; err != nil {
			t.Fatalf("seed user %s: %v", id, err)
		}
	}
}

func StrPtr(s string) *string {
	return &s
}
