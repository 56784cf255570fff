// Package testutil holds fixtures shared by package tests.
package testutil

import (
	"fmt"
	"io"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"gorm.io/gorm"

	"media-caption-server/internal/platform/config"
	"media-caption-server/internal/platform/logging"
	"media-caption-server/internal/platform/storage"
)

var dbSeq atomic.Int64

// SetupTestConfig returns the defaults with every path under a temp dir and
// an in-memory database.
func SetupTestConfig(t *testing.T) *config.Config {
	t.Helper()

	dir := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.Server.IP = "127.0.0.1"
	cfg.Log.Level = "DEBUG"
	cfg.Log.Dir = filepath.Join(dir, "logs")
	cfg.Log.File = "test.log"
	cfg.Database.DSN = fmt.Sprintf("file:test-%d-%d?mode=memory&cache=shared", time.Now().UnixNano(), dbSeq.Add(1))
	cfg.Files.Root = filepath.Join(dir, "files")
	cfg.EventLog.Driver = "memory"
	return cfg
}

// SetupTestLogger writes to a temp dir and discards console output.
func SetupTestLogger(t *testing.T) *logging.Logger {
	t.Helper()

	logger, err := logging.New(logging.Config{
		Level:    "DEBUG",
		Dir:      filepath.Join(t.TempDir(), "logs"),
		Filename: "test.log",
		Console:  io.Discard,
	})
	if err != nil {
		t.Fatalf("failed to create test logger: %v", err)
	}
	t.Cleanup(func() { logger.Close() })

	return logger
}

// SetupTestDB opens a migrated in-memory database closed at cleanup.
func SetupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:testdb-%d-%d?mode=memory&cache=shared", time.Now().UnixNano(), dbSeq.Add(1))
	db, err := storage.Open(dsn)
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() { storage.Close(db) })
	return db
}
