package memory

import (
	"context"
	"io"
	"strings"
	"testing"

	"pepplus/internal/blob/blobtest"
	"pepplus/internal/blob/core"
)

func TestStoreContract(t *testing.T) {
	blobtest.Run(t, func(*testing.T) core.Store { return New() })
}

func TestGetReturnsPrivateCopy(t *testing.T) {
	s := New()
	ctx := context.Background()
	if _, err := s.Put(ctx, "k", strings.NewReader("abc"), core.PutOptions{Metadata: map[string]string{"a": "1"}}); err != nil {
		t.Fatalf("put: %v", err)
	}
	info, rc, err := s.Get(ctx, "k")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	info.Metadata["a"] = "mutated"
	_, _ = io.ReadAll(rc)

	again, err := s.Head(ctx, "k")
	if err != nil {
		t.Fatalf("head: %v", err)
	}
	if again.Metadata["a"] != "1" {
		t.Fatalf("metadata aliasing detected: %+v", again.Metadata)
	}
	if s.Driver() != core.DriverMemory {
		t.Fatalf("unexpected driver %s", s.Driver())
	}
}

func TestPutHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := New().Put(ctx, "k", strings.NewReader("x"), core.PutOptions{}); err == nil {
		t.Fatalf("expected cancelled context error")
	}
}
