package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"pepplus/internal/infra/persistence/storetest"
	"pepplus/pkg/domain"
)

func TestStoreContract(t *testing.T) {
	storetest.Run(t, func(t *testing.T) domain.PersistentStore {
		store, err := Open(context.Background(), InMemory)
		if err != nil {
			t.Fatalf("open: %v", err)
		}
		return store
	})
}

func TestOpenPersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "pep.db")
	store, err := Open(ctx, path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if store.Path() != path {
		t.Fatalf("expected path %s, got %s", path, store.Path())
	}
	mod := domain.Module{Code: "P1", Name: "persisted"}
	if err := store.RunInTransaction(ctx, func(tx domain.Transaction) error { return tx.Insert(&mod) }); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	reopened, err := Open(ctx, path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer func() { _ = reopened.Close() }()
	mods, err := domain.ListCurrent[domain.Module](ctx, reopened)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(mods) != 1 || mods[0].UUID != mod.UUID || mods[0].Code != "P1" {
		t.Fatalf("unexpected rows after reopen: %+v", mods)
	}
}

func TestIsUniqueViolation(t *testing.T) {
	if isUniqueViolation(nil) {
		t.Fatalf("nil is not a violation")
	}
	if isUniqueViolation(errors.New("disk full")) {
		t.Fatalf("unrelated error misclassified")
	}
	if !isUniqueViolation(errors.New("constraint failed: UNIQUE constraint failed: versioned_rows.entity")) {
		t.Fatalf("expected message fallback to match")
	}
}
