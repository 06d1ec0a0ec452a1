// Package storetest holds the behavioural checks every validity store backend
// must pass. Backends call Run from their own tests.
package storetest

import (
	"context"
	"errors"
	"testing"
	"time"

	"pepplus/pkg/domain"
)

// Factory opens an empty store for one subtest.
type Factory func(t *testing.T) domain.PersistentStore

// Run executes the shared contract against stores produced by open.
func Run(t *testing.T, open Factory) {
	t.Helper()
	cases := []struct {
		name string
		fn   func(t *testing.T, store domain.PersistentStore)
	}{
		{"InsertAssignsIdentity", testInsertAssignsIdentity},
		{"NaturalKeyUniqueAmongCurrent", testNaturalKeyUnique},
		{"ExternalIDUniqueAmongCurrent", testExternalIDUnique},
		{"MutateInPlaceKeepsRow", testMutateInPlace},
		{"CloseWindowRetires", testCloseWindow},
		{"RollbackDiscardsWrites", testRollback},
		{"PanicRollsBack", testPanicRollsBack},
		{"CancelledContext", testCancelledContext},
		{"CompositeNaturalKey", testCompositeKey},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			store := open(t)
			t.Cleanup(func() { _ = store.Close() })
			tc.fn(t, store)
		})
	}
}

func insertModule(t *testing.T, store domain.PersistentStore, code, actor string) domain.Module {
	t.Helper()
	mod := domain.Module{Code: code, Name: "Module " + code, DurationWeeks: 1, Active: true}
	mod.AuditUserID = actor
	err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		return tx.Insert(&mod)
	})
	if err != nil {
		t.Fatalf("insert module %s: %v", code, err)
	}
	return mod
}

func testInsertAssignsIdentity(t *testing.T, store domain.PersistentStore) {
	first := insertModule(t, store, "M1", "u-1")
	second := insertModule(t, store, "M2", "u-1")
	if first.UUID == "" || first.RowID == 0 {
		t.Fatalf("expected assigned identity, got %+v", first.Version)
	}
	if second.RowID <= first.RowID {
		t.Fatalf("expected increasing row ids, got %d then %d", first.RowID, second.RowID)
	}
	if !first.Current() || first.ValidityFrom.IsZero() {
		t.Fatalf("expected open window, got %+v", first.Version)
	}
	mods, err := domain.ListCurrent[domain.Module](context.Background(), store)
	if err != nil {
		t.Fatalf("list current: %v", err)
	}
	if len(mods) != 2 || mods[0].Code != "M1" || mods[1].Code != "M2" {
		t.Fatalf("unexpected current rows %+v", mods)
	}
	if mods[0].AuditUserID != "u-1" || mods[0].UUID != first.UUID {
		t.Fatalf("expected stamped actor and uuid, got %+v", mods[0].Version)
	}
}

func testNaturalKeyUnique(t *testing.T, store domain.PersistentStore) {
	insertModule(t, store, "DUP", "u-1")
	err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		return tx.Insert(&domain.Module{Code: "DUP", Name: "again"})
	})
	if !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
	rows, err := store.ListCurrent(context.Background(), domain.EntityModule)
	if err != nil || len(rows) != 1 {
		t.Fatalf("expected one row after conflict, got %d (%v)", len(rows), err)
	}
	// Retired rows release their natural key.
	err = store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		var cur domain.Module
		if err := tx.CurrentByExternalID(domain.EntityModule, rows[0].UUID, &cur); err != nil {
			return err
		}
		if err := tx.CloseWindow(&cur, "u-2", tx.Now()); err != nil {
			return err
		}
		return tx.Insert(&domain.Module{Code: "DUP", Name: "replacement"})
	})
	if err != nil {
		t.Fatalf("expected reuse after retirement, got %v", err)
	}
}

func testExternalIDUnique(t *testing.T, store domain.PersistentStore) {
	mod := insertModule(t, store, "A", "u-1")
	err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		dup := domain.Module{Code: "B", Name: "b"}
		dup.UUID = mod.UUID
		return tx.Insert(&dup)
	})
	if !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("expected uuid conflict, got %v", err)
	}
	// Other entity types are separate partitions.
	err = store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		g := domain.FamilyGroup{Code: "A", Name: "g", DistrictID: "d"}
		g.UUID = mod.UUID
		return tx.Insert(&g)
	})
	if err != nil {
		t.Fatalf("expected cross-entity insert to succeed, got %v", err)
	}
}

func testMutateInPlace(t *testing.T, store domain.PersistentStore) {
	mod := insertModule(t, store, "MUT", "u-1")
	other := insertModule(t, store, "TAKEN", "u-1")
	ctx := context.Background()
	err := store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		var cur domain.Module
		if err := tx.CurrentByExternalID(domain.EntityModule, mod.UUID, &cur); err != nil {
			return err
		}
		cur.Name = "renamed"
		return tx.MutateInPlace(&cur, "u-9")
	})
	if err != nil {
		t.Fatalf("mutate: %v", err)
	}
	history, err := store.History(ctx, domain.EntityModule, mod.UUID)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != 1 {
		t.Fatalf("expected in-place mutation to keep one row, got %d", len(history))
	}
	var got domain.Module
	if err := history[0].Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Name != "renamed" || got.AuditUserID != "u-9" || got.RowID != mod.RowID {
		t.Fatalf("unexpected mutated row %+v", got)
	}

	err = store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		var cur domain.Module
		if err := tx.CurrentByExternalID(domain.EntityModule, mod.UUID, &cur); err != nil {
			return err
		}
		cur.Code = other.Code
		return tx.MutateInPlace(&cur, "u-9")
	})
	if !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("expected natural key conflict on mutate, got %v", err)
	}
}

func testCloseWindow(t *testing.T, store domain.PersistentStore) {
	mod := insertModule(t, store, "DEL", "u-1")
	ctx := context.Background()
	var closedAt time.Time
	err := store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		var cur domain.Module
		if err := tx.CurrentByExternalID(domain.EntityModule, mod.UUID, &cur); err != nil {
			return err
		}
		closedAt = tx.Now()
		return tx.CloseWindow(&cur, "u-3", closedAt)
	})
	if err != nil {
		t.Fatalf("close window: %v", err)
	}
	rows, err := store.ListCurrent(ctx, domain.EntityModule)
	if err != nil || len(rows) != 0 {
		t.Fatalf("expected no current rows, got %d (%v)", len(rows), err)
	}
	history, err := store.History(ctx, domain.EntityModule, mod.UUID)
	if err != nil || len(history) != 1 {
		t.Fatalf("expected retired row in history, got %d (%v)", len(history), err)
	}
	if history[0].ValidityTo == nil || !history[0].ValidityTo.Equal(closedAt) {
		t.Fatalf("expected closed window at %v, got %v", closedAt, history[0].ValidityTo)
	}
	if history[0].AuditUserID != "u-3" {
		t.Fatalf("expected retiring actor stamp, got %q", history[0].AuditUserID)
	}
	err = store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		var cur domain.Module
		return tx.CurrentByExternalID(domain.EntityModule, mod.UUID, &cur)
	})
	if !domain.IsNotFound(err) {
		t.Fatalf("expected not found after retirement, got %v", err)
	}
}

func testRollback(t *testing.T, store domain.PersistentStore) {
	boom := errors.New("boom")
	err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		if err := tx.Insert(&domain.Module{Code: "R1", Name: "r"}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected callback error, got %v", err)
	}
	rows, err := store.ListCurrent(context.Background(), domain.EntityModule)
	if err != nil || len(rows) != 0 {
		t.Fatalf("expected rollback to discard insert, got %d rows (%v)", len(rows), err)
	}
}

func testPanicRollsBack(t *testing.T, store domain.PersistentStore) {
	func() {
		defer func() {
			if r := recover(); r == nil {
				t.Fatalf("expected panic to propagate")
			}
		}()
		_ = store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
			if err := tx.Insert(&domain.Module{Code: "P1", Name: "p"}); err != nil {
				return err
			}
			panic("boom")
		})
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	rows, err := store.ListCurrent(ctx, domain.EntityModule)
	if err != nil || len(rows) != 0 {
		t.Fatalf("expected panic to discard insert, got %d rows (%v)", len(rows), err)
	}
	err = store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		return tx.Insert(&domain.Module{Code: "P1", Name: "p"})
	})
	if err != nil {
		t.Fatalf("expected store to accept writes after panic, got %v", err)
	}
}

func testCancelledContext(t *testing.T, store domain.PersistentStore) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	called := false
	err := store.RunInTransaction(ctx, func(domain.Transaction) error {
		called = true
		return nil
	})
	if err == nil || called {
		t.Fatalf("expected cancelled context to abort before callback, err=%v called=%v", err, called)
	}
}

func testCompositeKey(t *testing.T, store domain.PersistentStore) {
	ctx := context.Background()
	insert := func(session, family string) error {
		return store.RunInTransaction(ctx, func(tx domain.Transaction) error {
			return tx.Insert(&domain.Attendance{SessionID: session, FamilyID: family, FamilyName: "f", State: domain.AttendancePresent})
		})
	}
	if err := insert("s1", "f1"); err != nil {
		t.Fatalf("first attendance: %v", err)
	}
	if err := insert("s1", "f2"); err != nil {
		t.Fatalf("second family: %v", err)
	}
	if err := insert("s2", "f1"); err != nil {
		t.Fatalf("second session: %v", err)
	}
	if err := insert("s1", "f1"); !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("expected duplicate attendance conflict, got %v", err)
	}
	// Ids containing the separator must not collide.
	if err := insert("a|b", "c"); err != nil {
		t.Fatalf("separator in session id: %v", err)
	}
	if err := insert("a", "b|c"); err != nil {
		t.Fatalf("separator in family id: %v", err)
	}
	// Entities without a natural key never conflict on it.
	for i := 0; i < 2; i++ {
		err := store.RunInTransaction(ctx, func(tx domain.Transaction) error {
			return tx.Insert(&domain.Referral{SessionID: "s1", FamilyID: "f1", Status: domain.ReferralPending})
		})
		if err != nil {
			t.Fatalf("referral %d: %v", i, err)
		}
	}
}
