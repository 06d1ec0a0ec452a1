package domain

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// Transaction exposes the validity-store operations available inside one
// atomic unit of work. Every write made through a Transaction commits or rolls
// back together with the others.
type Transaction interface {
	// Now returns the timestamp shared by every write in the transaction.
	Now() time.Time
	// Insert stores rec as a new current row, assigning its row id and
	// opening its validity window at Now.
	Insert(rec Record) error
	// CurrentByExternalID decodes the open row identified by id into dst.
	CurrentByExternalID(entity EntityType, id string, dst Record) error
	// MutateInPlace overwrites the current row with rec and re-stamps the actor.
	MutateInPlace(rec Record, actor string) error
	// CloseWindow retires the current row at the given instant.
	CloseWindow(rec Record, actor string, at time.Time) error
}

// PersistentStore is the minimal abstraction over durable backends used by
// the mutation service and the read gateway.
type PersistentStore interface {
	RunInTransaction(ctx context.Context, fn func(Transaction) error) error
	// ListCurrent returns every row of entity whose validity window is open.
	ListCurrent(ctx context.Context, entity EntityType) ([]StoredRow, error)
	// History returns every stored row of one external identifier, retired
	// rows included, oldest first.
	History(ctx context.Context, entity EntityType, id string) ([]StoredRow, error)
	Close() error
}

// StoredRow is the backend-neutral shape of one persisted row.
type StoredRow struct {
	Version
	Entity     EntityType      `json:"entity"`
	NaturalKey string          `json:"natural_key,omitempty"`
	Payload    json.RawMessage `json:"payload"`
}

// EncodeRow captures rec as a StoredRow.
func EncodeRow(rec Record) (StoredRow, error) {
	payload, err := json.Marshal(rec)
	if err != nil {
		return StoredRow{}, fmt.Errorf("encode %s: %w", rec.EntityType(), err)
	}
	return StoredRow{
		Version:    *rec.Versioning(),
		Entity:     rec.EntityType(),
		NaturalKey: rec.NaturalKey(),
		Payload:    payload,
	}, nil
}

// Decode fills dst from the row payload and the authoritative version columns.
func (r StoredRow) Decode(dst Record) error {
	if dst.EntityType() != r.Entity {
		return fmt.Errorf("decode %s row into %s", r.Entity, dst.EntityType())
	}
	if err := json.Unmarshal(r.Payload, dst); err != nil {
		return fmt.Errorf("decode %s: %w", r.Entity, err)
	}
	*dst.Versioning() = r.Version
	return nil
}

// Clone returns a deep copy so callers never alias store-owned bytes.
func (r StoredRow) Clone() StoredRow {
	cp := r
	cp.Payload = append(json.RawMessage(nil), r.Payload...)
	if r.ValidityTo != nil {
		t := *r.ValidityTo
		cp.ValidityTo = &t
	}
	return cp
}

// RecordPtr constrains generic helpers to pointer types implementing Record.
type RecordPtr[T any] interface {
	*T
	Record
}

// DecodeRows decodes a slice of stored rows into typed records.
func DecodeRows[T any, PT RecordPtr[T]](rows []StoredRow) ([]T, error) {
	out := make([]T, 0, len(rows))
	for _, row := range rows {
		var rec T
		if err := row.Decode(PT(&rec)); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

// ListCurrent is the typed read-gateway helper over PersistentStore.ListCurrent.
func ListCurrent[T any, PT RecordPtr[T]](ctx context.Context, store PersistentStore) ([]T, error) {
	var probe T
	rows, err := store.ListCurrent(ctx, PT(&probe).EntityType())
	if err != nil {
		return nil, err
	}
	return DecodeRows[T, PT](rows)
}
