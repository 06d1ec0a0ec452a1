// Package postgres provides the PostgreSQL-backed validity store.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as a database/sql driver

	"pepplus/internal/infra/persistence/postgres/migrations"
	"pepplus/internal/infra/persistence/sqlstore"
	"pepplus/internal/infra/persistence/sqlstore/migrate"
)

const (
	defaultDriver = "pgx"
	defaultDSN    = "postgres://localhost/pepplus?sslmode=disable"

	uniqueViolation = "23505"
)

var (
	sqlOpen = sql.Open
	openMu  sync.Mutex
)

// Store is the PostgreSQL validity store.
type Store struct {
	*sqlstore.Store
}

// Dialect returns the PostgreSQL behaviour used by sqlstore.
func Dialect() sqlstore.Dialect {
	return sqlstore.Dialect{
		Name:              "postgres",
		Rebind:            Rebind,
		IsUniqueViolation: isUniqueViolation,
	}
}

// Open connects using dsn (falling back to a local default) and applies the
// embedded migrations.
func Open(ctx context.Context, dsn string) (*Store, error) {
	if strings.TrimSpace(dsn) == "" {
		dsn = defaultDSN
	}
	openMu.Lock()
	db, err := sqlOpen(defaultDriver, dsn)
	openMu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if err := migrate.Apply(ctx, db, migrations.FS, "", Rebind); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{Store: sqlstore.New(db, Dialect())}, nil
}

// Rebind rewrites ?-placeholders into PostgreSQL's $n form. Question marks
// inside single-quoted literals are left alone.
func Rebind(query string) string {
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	inLiteral := false
	for _, r := range query {
		switch {
		case r == '\'':
			inLiteral = !inLiteral
			b.WriteRune(r)
		case r == '?' && !inLiteral:
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
