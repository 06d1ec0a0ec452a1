// Package sqlstore implements the validity store over database/sql. The SQLite
// and PostgreSQL backends share this code and differ only in their Dialect.
//
// Every entity lives in one versioned_rows table; the attributes travel as a
// JSON payload while the identity and validity columns are authoritative.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"pepplus/pkg/domain"
)

// Compile-time contract assertion.
var _ domain.PersistentStore = (*Store)(nil)

// Dialect captures the driver-specific behaviour of a backend.
type Dialect struct {
	// Name is used in error messages.
	Name string
	// Rebind rewrites ?-placeholders into the driver's syntax.
	Rebind func(query string) string
	// IsUniqueViolation reports whether err is a unique-constraint failure.
	IsUniqueViolation func(err error) bool
	// SerializeWrites guards transactions with a process-wide mutex for
	// backends that allow one writer only.
	SerializeWrites bool
}

// Store persists versioned rows through a *sql.DB.
type Store struct {
	db      *sql.DB
	dialect Dialect
	nowFn   func() time.Time
	writeMu sync.Mutex
}

// New wraps an already migrated database handle.
func New(db *sql.DB, dialect Dialect) *Store {
	if dialect.Rebind == nil {
		dialect.Rebind = func(q string) string { return q }
	}
	if dialect.IsUniqueViolation == nil {
		dialect.IsUniqueViolation = func(error) bool { return false }
	}
	return &Store{
		db:      db,
		dialect: dialect,
		nowFn:   func() time.Time { return time.Now().UTC() },
	}
}

// SetNowFunc overrides the clock used to stamp validity windows.
func (s *Store) SetNowFunc(fn func() time.Time) {
	if fn != nil {
		s.nowFn = fn
	}
}

// DB exposes the underlying handle for integration hooks.
func (s *Store) DB() *sql.DB { return s.db }

// Close closes the underlying handle.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// RunInTransaction executes fn inside one database transaction, committing
// only when fn returns nil. Any other exit, a panic included, rolls back.
func (s *Store) RunInTransaction(ctx context.Context, fn func(domain.Transaction) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.dialect.SerializeWrites {
		s.writeMu.Lock()
		defer s.writeMu.Unlock()
	}
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%s: begin: %w", s.dialect.Name, err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = sqlTx.Rollback()
		}
	}()
	tx := &transaction{ctx: ctx, tx: sqlTx, store: s, now: s.nowFn()}
	if err := fn(tx); err != nil {
		return err
	}
	// A failed Commit releases the connection itself.
	committed = true
	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("%s: commit: %w", s.dialect.Name, err)
	}
	return nil
}

const selectColumns = `row_id, entity, uuid, natural_key, validity_from, validity_to, audit_user_id, payload`

// ListCurrent returns the open rows of entity ordered by row id.
func (s *Store) ListCurrent(ctx context.Context, entity domain.EntityType) ([]domain.StoredRow, error) {
	query := s.dialect.Rebind(`SELECT ` + selectColumns + ` FROM versioned_rows
		WHERE entity = ? AND validity_to IS NULL ORDER BY row_id`)
	return s.queryRows(ctx, s.db, query, string(entity))
}

// History returns every row stored under id, retired rows included.
func (s *Store) History(ctx context.Context, entity domain.EntityType, id string) ([]domain.StoredRow, error) {
	query := s.dialect.Rebind(`SELECT ` + selectColumns + ` FROM versioned_rows
		WHERE entity = ? AND uuid = ? ORDER BY row_id`)
	return s.queryRows(ctx, s.db, query, string(entity), id)
}

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func (s *Store) queryRows(ctx context.Context, q queryer, query string, args ...any) ([]domain.StoredRow, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: query rows: %w", s.dialect.Name, err)
	}
	defer func() { _ = rows.Close() }()
	var out []domain.StoredRow
	for rows.Next() {
		row, err := scanRow(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: scan row: %w", s.dialect.Name, err)
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: iterate rows: %w", s.dialect.Name, err)
	}
	return out, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRow(sc scanner) (domain.StoredRow, error) {
	var (
		row        domain.StoredRow
		entity     string
		naturalKey sql.NullString
		from       int64
		to         sql.NullInt64
		payload    []byte
	)
	if err := sc.Scan(&row.RowID, &entity, &row.UUID, &naturalKey, &from, &to, &row.AuditUserID, &payload); err != nil {
		return domain.StoredRow{}, err
	}
	row.Entity = domain.EntityType(entity)
	row.NaturalKey = naturalKey.String
	row.ValidityFrom = fromNanos(from)
	if to.Valid {
		closed := fromNanos(to.Int64)
		row.ValidityTo = &closed
	}
	row.Payload = append([]byte(nil), payload...)
	return row, nil
}

func toNanos(t time.Time) int64 { return t.UTC().UnixNano() }

func fromNanos(n int64) time.Time { return time.Unix(0, n).UTC() }

func nullableKey(key string) any {
	if strings.TrimSpace(key) == "" {
		return nil
	}
	return key
}

type transaction struct {
	ctx   context.Context
	tx    *sql.Tx
	store *Store
	now   time.Time
}

func (t *transaction) Now() time.Time { return t.now }

func (t *transaction) conflictOr(err error, format string, args ...any) error {
	if t.store.dialect.IsUniqueViolation(err) {
		return fmt.Errorf(format+": %w", append(args, domain.ErrConflict)...)
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}

func (t *transaction) Insert(rec domain.Record) error {
	v := rec.Versioning()
	if v.UUID == "" {
		v.UUID = uuid.NewString()
	}
	v.ValidityFrom = t.now
	v.ValidityTo = nil
	row, err := domain.EncodeRow(rec)
	if err != nil {
		return err
	}
	query := t.store.dialect.Rebind(`INSERT INTO versioned_rows
		(entity, uuid, natural_key, validity_from, validity_to, audit_user_id, payload)
		VALUES (?, ?, ?, ?, NULL, ?, ?) RETURNING row_id`)
	var rowID int64
	err = t.tx.QueryRowContext(t.ctx, query,
		string(row.Entity), row.UUID, nullableKey(row.NaturalKey), toNanos(row.ValidityFrom), row.AuditUserID, string(row.Payload),
	).Scan(&rowID)
	if err != nil {
		return t.conflictOr(err, "insert %s %s", row.Entity, row.UUID)
	}
	v.RowID = rowID
	return nil
}

func (t *transaction) current(entity domain.EntityType, id string) (domain.StoredRow, error) {
	query := t.store.dialect.Rebind(`SELECT ` + selectColumns + ` FROM versioned_rows
		WHERE entity = ? AND uuid = ? AND validity_to IS NULL`)
	row, err := scanRow(t.tx.QueryRowContext(t.ctx, query, string(entity), id))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.StoredRow{}, domain.NotFoundError{Entity: entity, ID: id}
	}
	if err != nil {
		return domain.StoredRow{}, fmt.Errorf("%s: select current %s %s: %w", t.store.dialect.Name, entity, id, err)
	}
	return row, nil
}

func (t *transaction) CurrentByExternalID(entity domain.EntityType, id string, dst domain.Record) error {
	row, err := t.current(entity, id)
	if err != nil {
		return err
	}
	return row.Decode(dst)
}

func (t *transaction) MutateInPlace(rec domain.Record, actor string) error {
	v := rec.Versioning()
	existing, err := t.current(rec.EntityType(), v.UUID)
	if err != nil {
		return err
	}
	v.RowID = existing.RowID
	v.ValidityFrom = existing.ValidityFrom
	v.ValidityTo = nil
	v.AuditUserID = actor
	row, err := domain.EncodeRow(rec)
	if err != nil {
		return err
	}
	query := t.store.dialect.Rebind(`UPDATE versioned_rows
		SET natural_key = ?, audit_user_id = ?, payload = ?
		WHERE row_id = ?`)
	if _, err := t.tx.ExecContext(t.ctx, query, nullableKey(row.NaturalKey), actor, string(row.Payload), row.RowID); err != nil {
		return t.conflictOr(err, "update %s %s", row.Entity, row.UUID)
	}
	return nil
}

func (t *transaction) CloseWindow(rec domain.Record, actor string, at time.Time) error {
	v := rec.Versioning()
	existing, err := t.current(rec.EntityType(), v.UUID)
	if err != nil {
		return err
	}
	query := t.store.dialect.Rebind(`UPDATE versioned_rows
		SET validity_to = ?, audit_user_id = ?
		WHERE row_id = ?`)
	if _, err := t.tx.ExecContext(t.ctx, query, toNanos(at), actor, existing.RowID); err != nil {
		return fmt.Errorf("%s: close window %s %s: %w", t.store.dialect.Name, existing.Entity, v.UUID, err)
	}
	closed := fromNanos(toNanos(at))
	v.RowID = existing.RowID
	v.ValidityFrom = existing.ValidityFrom
	v.ValidityTo = &closed
	v.AuditUserID = actor
	return nil
}
