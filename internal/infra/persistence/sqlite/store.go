// Package sqlite provides the SQLite-backed validity store.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	msqlite "modernc.org/sqlite" // pure go sqlite driver
	sqlite3lib "modernc.org/sqlite/lib"

	"pepplus/internal/infra/persistence/sqlite/migrations"
	"pepplus/internal/infra/persistence/sqlstore"
	"pepplus/internal/infra/persistence/sqlstore/migrate"
)

const defaultPath = "pepplus.db"

// InMemory opens a private in-memory database when passed as the path.
const InMemory = ":memory:"

// Store is the SQLite validity store.
type Store struct {
	*sqlstore.Store
	path string
}

// Dialect returns the SQLite behaviour used by sqlstore.
func Dialect() sqlstore.Dialect {
	return sqlstore.Dialect{
		Name:              "sqlite",
		IsUniqueViolation: isUniqueViolation,
		SerializeWrites:   true,
	}
}

// Open opens (creating if needed) the database at path and applies the
// embedded migrations. An empty path falls back to pepplus.db.
func Open(ctx context.Context, path string) (*Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		path = defaultPath
	}
	dsn := path
	if path != InMemory {
		path = filepath.Clean(path)
		if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil && !errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("create dirs: %w", err)
		}
		dsn = path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// One connection keeps :memory: databases shared and serializes writers.
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := migrate.Apply(ctx, db, migrations.FS, "", nil); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{Store: sqlstore.New(db, Dialect()), path: path}, nil
}

// Path returns the configured database path.
func (s *Store) Path() string { return s.path }

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3lib.SQLITE_CONSTRAINT_UNIQUE:
			return true
		}
	}
	return strings.Contains(strings.ToLower(err.Error()), "unique constraint failed")
}
