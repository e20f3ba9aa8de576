// Package testhelpers provides eMISTR test databases: a seeded SQLite file
// for fast tests and a MySQL container for integration tests.
package testhelpers

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/ekaya-inc/emistr-mcp/pkg/adapters/datasource"
	"github.com/ekaya-inc/emistr-mcp/pkg/adapters/datasource/sqlite"
)

// NewSQLiteDB returns a seeded eMISTR database with every optional column.
func NewSQLiteDB(t *testing.T) *datasource.DB {
	t.Helper()
	return NewSQLiteDBWithSchema(t, CurrentSchema)
}

// NewSQLiteDBWithSchema returns a seeded eMISTR database of the given
// generation in a per-test temporary file.
func NewSQLiteDBWithSchema(t *testing.T, schema Schema) *datasource.DB {
	t.Helper()

	cfg := datasource.Config{
		Driver:       "sqlite",
		Path:         filepath.Join(t.TempDir(), "emistr.db"),
		MaxOpenConns: 4,
	}
	dsn, err := sqlite.Dialect{}.DSN(cfg)
	if err != nil {
		t.Fatalf("sqlite dsn: %v", err)
	}

	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := LoadEmistr(ctx, sqlDB, schema, time.Now()); err != nil {
		_ = sqlDB.Close()
		t.Fatalf("seed sqlite: %v", err)
	}

	db := datasource.New(sqlDB, sqlite.Dialect{}, cfg, zaptest.NewLogger(t))
	t.Cleanup(func() { _ = db.Close() })
	return db
}
