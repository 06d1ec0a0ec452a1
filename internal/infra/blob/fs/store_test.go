package fs

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"pepplus/internal/blob/blobtest"
	"pepplus/internal/blob/core"
)

func TestStoreContract(t *testing.T) {
	blobtest.Run(t, func(t *testing.T) core.Store {
		s, err := New(t.TempDir())
		if err != nil {
			t.Fatalf("new: %v", err)
		}
		return s
	})
}

func TestRejectsUnsafeKeys(t *testing.T) {
	s, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	for _, key := range []string{"", "  ", "/abs", "../escape", "a/../../b", "x.meta"} {
		if _, err := s.Put(context.Background(), key, strings.NewReader("x"), core.PutOptions{}); err == nil {
			t.Fatalf("expected key %q to be rejected", key)
		}
	}
}

func TestPutWritesDataAndSidecar(t *testing.T) {
	root := t.TempDir()
	s, err := New(root)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	info, err := s.Put(context.Background(), "snap/rows.json", strings.NewReader("[]"), core.PutOptions{ContentType: "application/json"})
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(root, "snap", "rows.json"))
	if err != nil || string(data) != "[]" {
		t.Fatalf("unexpected data file %q (%v)", data, err)
	}
	if _, err := os.Stat(filepath.Join(root, "snap", "rows.json.meta")); err != nil {
		t.Fatalf("expected sidecar: %v", err)
	}
	if len(info.ETag) != 64 {
		t.Fatalf("expected sha256 etag, got %q", info.ETag)
	}
	entries, err := os.ReadDir(filepath.Join(root, "snap"))
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), ".tmp-") {
			t.Fatalf("temporary file left behind: %s", e.Name())
		}
	}
}

func TestNewDefaultsRoot(t *testing.T) {
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	dir := t.TempDir()
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("chdir: %v", err)
	}
	t.Cleanup(func() { _ = os.Chdir(wd) })
	s, err := New("")
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if s.Root() != DefaultRoot {
		t.Fatalf("expected default root, got %s", s.Root())
	}
	if _, err := os.Stat(filepath.Join(dir, "blobdata")); err != nil {
		t.Fatalf("expected default root created: %v", err)
	}
}
