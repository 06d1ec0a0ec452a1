package core

import (
	"context"
	"path/filepath"
	"testing"

	"pepplus/internal/infra/persistence/memory"
	"pepplus/internal/infra/persistence/sqlite"
)

func TestOpenPersistentStoreMemory(t *testing.T) {
	store, err := OpenPersistentStore(context.Background(), StorageConfig{Driver: StorageMemory})
	if err != nil {
		t.Fatalf("open memory: %v", err)
	}
	if _, ok := store.(*memory.Store); !ok {
		t.Fatalf("expected memory store, got %T", store)
	}
}

func TestOpenPersistentStoreDefaultsToSQLite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pep.db")
	store, err := OpenPersistentStore(context.Background(), StorageConfig{SQLitePath: path})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	s, ok := store.(*sqlite.Store)
	if !ok || s.Path() != path {
		t.Fatalf("expected sqlite store at %s, got %T", path, store)
	}
}

func TestOpenPersistentStoreUnknownDriver(t *testing.T) {
	store, err := OpenPersistentStore(context.Background(), StorageConfig{Driver: "cassandra"})
	if err == nil || store != nil {
		t.Fatalf("expected error and nil store, got %v %v", store, err)
	}
}
