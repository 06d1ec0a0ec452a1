// Package memory provides an in-memory implementation of the validity store
// used for tests and ephemeral environments.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"pepplus/pkg/domain"
)

// Compile-time contract assertion ensuring memory.Store adheres to the domain persistence interface.
var _ domain.PersistentStore = (*Store)(nil)

type memoryState struct {
	nextRowID int64
	rows      []domain.StoredRow
}

func (s memoryState) clone() memoryState {
	cp := memoryState{nextRowID: s.nextRowID, rows: make([]domain.StoredRow, len(s.rows))}
	for i, row := range s.rows {
		cp.rows[i] = row.Clone()
	}
	return cp
}

// current returns the index of the open row for (entity, id), or -1.
func (s *memoryState) current(entity domain.EntityType, id string) int {
	for i := range s.rows {
		row := &s.rows[i]
		if row.Entity == entity && row.UUID == id && row.Current() {
			return i
		}
	}
	return -1
}

// keyTaken reports whether another open row of entity already holds key.
func (s *memoryState) keyTaken(entity domain.EntityType, key string, except int) bool {
	if key == "" {
		return false
	}
	for i := range s.rows {
		row := &s.rows[i]
		if i != except && row.Entity == entity && row.NaturalKey == key && row.Current() {
			return true
		}
	}
	return false
}

// Store provides an in-memory transactional validity store.
type Store struct {
	mu    sync.RWMutex
	state memoryState
	nowFn func() time.Time
}

// NewStore constructs an empty in-memory store.
func NewStore() *Store {
	return &Store{
		state: memoryState{nextRowID: 1},
		nowFn: func() time.Time { return time.Now().UTC() },
	}
}

// SetNowFunc overrides the clock used to stamp validity windows.
func (s *Store) SetNowFunc(fn func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if fn != nil {
		s.nowFn = fn
	}
}

type transaction struct {
	state memoryState
	now   time.Time
}

// RunInTransaction executes fn within a transactional copy of the store state.
// The copy replaces the live state only when fn returns nil.
func (s *Store) RunInTransaction(ctx context.Context, fn func(tx domain.Transaction) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &transaction{
		state: s.state.clone(),
		now:   s.nowFn(),
	}
	if err := fn(tx); err != nil {
		return err
	}
	s.state = tx.state
	return nil
}

// ListCurrent returns the open rows of entity ordered by row id.
func (s *Store) ListCurrent(ctx context.Context, entity domain.EntityType) ([]domain.StoredRow, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.StoredRow
	for _, row := range s.state.rows {
		if row.Entity == entity && row.Current() {
			out = append(out, row.Clone())
		}
	}
	sortRows(out)
	return out, nil
}

// History returns every row stored under id, retired rows included.
func (s *Store) History(ctx context.Context, entity domain.EntityType, id string) ([]domain.StoredRow, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.StoredRow
	for _, row := range s.state.rows {
		if row.Entity == entity && row.UUID == id {
			out = append(out, row.Clone())
		}
	}
	sortRows(out)
	return out, nil
}

// Close is a no-op for the memory store.
func (s *Store) Close() error { return nil }

func sortRows(rows []domain.StoredRow) {
	sort.Slice(rows, func(i, j int) bool { return rows[i].RowID < rows[j].RowID })
}

func (tx *transaction) Now() time.Time { return tx.now }

func (tx *transaction) Insert(rec domain.Record) error {
	v := rec.Versioning()
	if v.UUID == "" {
		v.UUID = uuid.NewString()
	}
	entity := rec.EntityType()
	if tx.state.current(entity, v.UUID) >= 0 {
		return fmt.Errorf("insert %s %s: %w", entity, v.UUID, domain.ErrConflict)
	}
	if tx.state.keyTaken(entity, rec.NaturalKey(), -1) {
		return fmt.Errorf("insert %s key %q: %w", entity, rec.NaturalKey(), domain.ErrConflict)
	}
	v.RowID = tx.state.nextRowID
	v.ValidityFrom = tx.now
	v.ValidityTo = nil
	row, err := domain.EncodeRow(rec)
	if err != nil {
		return err
	}
	tx.state.nextRowID++
	tx.state.rows = append(tx.state.rows, row)
	return nil
}

func (tx *transaction) CurrentByExternalID(entity domain.EntityType, id string, dst domain.Record) error {
	idx := tx.state.current(entity, id)
	if idx < 0 {
		return domain.NotFoundError{Entity: entity, ID: id}
	}
	return tx.state.rows[idx].Clone().Decode(dst)
}

func (tx *transaction) MutateInPlace(rec domain.Record, actor string) error {
	entity := rec.EntityType()
	v := rec.Versioning()
	idx := tx.state.current(entity, v.UUID)
	if idx < 0 {
		return domain.NotFoundError{Entity: entity, ID: v.UUID}
	}
	if tx.state.keyTaken(entity, rec.NaturalKey(), idx) {
		return fmt.Errorf("update %s key %q: %w", entity, rec.NaturalKey(), domain.ErrConflict)
	}
	existing := tx.state.rows[idx]
	v.RowID = existing.RowID
	v.ValidityFrom = existing.ValidityFrom
	v.ValidityTo = nil
	v.AuditUserID = actor
	row, err := domain.EncodeRow(rec)
	if err != nil {
		return err
	}
	tx.state.rows[idx] = row
	return nil
}

func (tx *transaction) CloseWindow(rec domain.Record, actor string, at time.Time) error {
	entity := rec.EntityType()
	v := rec.Versioning()
	idx := tx.state.current(entity, v.UUID)
	if idx < 0 {
		return domain.NotFoundError{Entity: entity, ID: v.UUID}
	}
	closed := at
	row := &tx.state.rows[idx]
	row.ValidityTo = &closed
	row.AuditUserID = actor
	v.RowID = row.RowID
	v.ValidityFrom = row.ValidityFrom
	v.ValidityTo = &closed
	v.AuditUserID = actor
	return nil
}
