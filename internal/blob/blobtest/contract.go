// Package blobtest holds the behavioural contract every blob backend must pass.
package blobtest

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"pepplus/internal/blob/core"
)

// Factory returns a fresh, empty store for one subtest.
type Factory func(t *testing.T) core.Store

// Run exercises open against the shared blob semantics.
func Run(t *testing.T, open Factory) {
	t.Helper()
	ctx := context.Background()

	t.Run("PutGetRoundTrip", func(t *testing.T) {
		store := open(t)
		info, err := store.Put(ctx, "snap/a.json", strings.NewReader(`[1,2]`), core.PutOptions{
			ContentType: "application/json",
			Metadata:    map[string]string{"entity": "a"},
		})
		if err != nil {
			t.Fatalf("put: %v", err)
		}
		if info.Key != "snap/a.json" || info.Size != 5 {
			t.Fatalf("unexpected info %+v", info)
		}
		got, rc, err := store.Get(ctx, "snap/a.json")
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		defer func() { _ = rc.Close() }()
		body, err := io.ReadAll(rc)
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		if !bytes.Equal(body, []byte(`[1,2]`)) || got.ContentType != "application/json" {
			t.Fatalf("unexpected blob %q %+v", body, got)
		}
		if got.Metadata["entity"] != "a" {
			t.Fatalf("metadata lost: %+v", got.Metadata)
		}
	})

	t.Run("PutIsCreateOnly", func(t *testing.T) {
		store := open(t)
		if _, err := store.Put(ctx, "k", strings.NewReader("one"), core.PutOptions{}); err != nil {
			t.Fatalf("put: %v", err)
		}
		if _, err := store.Put(ctx, "k", strings.NewReader("two"), core.PutOptions{}); !errors.Is(err, core.ErrExists) {
			t.Fatalf("expected ErrExists, got %v", err)
		}
	})

	t.Run("MissingKey", func(t *testing.T) {
		store := open(t)
		if _, _, err := store.Get(ctx, "nope"); !errors.Is(err, core.ErrNotFound) {
			t.Fatalf("expected ErrNotFound on get, got %v", err)
		}
		if _, err := store.Head(ctx, "nope"); !errors.Is(err, core.ErrNotFound) {
			t.Fatalf("expected ErrNotFound on head, got %v", err)
		}
		existed, err := store.Delete(ctx, "nope")
		if err != nil || existed {
			t.Fatalf("expected (false, nil) deleting missing key, got (%v, %v)", existed, err)
		}
	})

	t.Run("ListByPrefixSorted", func(t *testing.T) {
		store := open(t)
		for _, key := range []string{"b/2", "a/1", "b/1"} {
			if _, err := store.Put(ctx, key, strings.NewReader(key), core.PutOptions{}); err != nil {
				t.Fatalf("put %s: %v", key, err)
			}
		}
		infos, err := store.List(ctx, "b/")
		if err != nil {
			t.Fatalf("list: %v", err)
		}
		if len(infos) != 2 || infos[0].Key != "b/1" || infos[1].Key != "b/2" {
			t.Fatalf("unexpected listing %+v", infos)
		}
	})

	t.Run("DeleteRemoves", func(t *testing.T) {
		store := open(t)
		if _, err := store.Put(ctx, "gone", strings.NewReader("x"), core.PutOptions{}); err != nil {
			t.Fatalf("put: %v", err)
		}
		existed, err := store.Delete(ctx, "gone")
		if err != nil || !existed {
			t.Fatalf("expected delete to report existing blob, got (%v, %v)", existed, err)
		}
		if _, err := store.Head(ctx, "gone"); !errors.Is(err, core.ErrNotFound) {
			t.Fatalf("expected ErrNotFound after delete, got %v", err)
		}
	})
}
