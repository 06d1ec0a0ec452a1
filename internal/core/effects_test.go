package core

import (
	"context"
	"errors"
	"testing"
	"time"

	"pepplus/internal/infra/persistence/sqlite"
	"pepplus/internal/permission"
	"pepplus/pkg/domain"
)

func sessionStatus(t *testing.T, svc *Service, id string) domain.SessionStatus {
	t.Helper()
	sessions, err := domain.ListCurrent[domain.Session](context.Background(), svc.Store())
	if err != nil {
		t.Fatalf("list sessions: %v", err)
	}
	for _, s := range sessions {
		if s.UUID == id {
			return s.Status
		}
	}
	t.Fatalf("session %s not current", id)
	return ""
}

func TestExecutionMarksSessionExecuted(t *testing.T) {
	svc := newTestService(t)
	sessionID := mustCreate(t, svc, EntitySession, sessionAttrs("S-1"))
	reporter := userWith(svc, permission.MustCodeFor(EntityExecution, permission.OpCreate))

	if _, err := svc.Create(context.Background(), EntityExecution, validAttrs(EntityExecution, sessionID), reporter); err != nil {
		t.Fatalf("create execution: %v", err)
	}
	if got := sessionStatus(t, svc, sessionID); got != domain.SessionExecuted {
		t.Fatalf("expected EXEC, got %s", got)
	}
	history, err := svc.History(context.Background(), EntitySession, sessionID)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != 1 || history[0].AuditUserID != "admin" {
		t.Fatalf("status flip must be in place and keep the session author, got %+v", history)
	}
	executions, err := domain.ListCurrent[domain.Execution](context.Background(), svc.Store())
	if err != nil || len(executions) != 1 {
		t.Fatalf("expected one execution, got %v (%v)", executions, err)
	}
	if !executions[0].ExecutedAt.Equal(fixedNow) {
		t.Fatalf("expected execution stamped at %v, got %v", fixedNow, executions[0].ExecutedAt)
	}
	if !executions[0].ValidityFrom.Equal(fixedNow) || executions[0].AuditUserID != "limited" {
		t.Fatalf("expected validity_from %v by the reporter, got %+v", fixedNow, executions[0].Version)
	}
}

func TestFailedExecutionLeavesSessionPlanned(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	sessionID := mustCreate(t, svc, EntitySession, sessionAttrs("S-1"))

	invalid := validAttrs(EntityExecution, sessionID)
	delete(invalid, "formador_id")
	if _, err := svc.Create(ctx, EntityExecution, invalid, admin(svc)); err == nil {
		t.Fatalf("expected validation failure")
	}
	if got := sessionStatus(t, svc, sessionID); got != domain.SessionPlanned {
		t.Fatalf("validation failure changed session to %s", got)
	}

	if _, err := svc.Create(ctx, EntityExecution, validAttrs(EntityExecution, sessionID), userWith(svc)); err == nil {
		t.Fatalf("expected permission failure")
	}
	if got := sessionStatus(t, svc, sessionID); got != domain.SessionPlanned {
		t.Fatalf("permission failure changed session to %s", got)
	}
	if n := currentCount(t, svc, EntityExecution); n != 0 {
		t.Fatalf("expected no execution rows, got %d", n)
	}
}

func TestExecutionForUnknownSessionRollsBack(t *testing.T) {
	svc := newTestService(t)
	_, err := svc.Create(context.Background(), EntityExecution, validAttrs(EntityExecution, "ghost"), admin(svc))
	if !domain.IsNotFound(err) {
		t.Fatalf("expected not found for missing session, got %v", err)
	}
	if n := currentCount(t, svc, EntityExecution); n != 0 {
		t.Fatalf("execution insert must roll back, got %d rows", n)
	}
}

func TestSecondExecutionForSessionConflicts(t *testing.T) {
	svc := newTestService(t)
	sessionID := mustCreate(t, svc, EntitySession, sessionAttrs("S-1"))
	mustCreate(t, svc, EntityExecution, validAttrs(EntityExecution, sessionID))
	_, err := svc.Create(context.Background(), EntityExecution, validAttrs(EntityExecution, sessionID), admin(svc))
	if !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestReferralCompletionStampedOnce(t *testing.T) {
	now := fixedNow
	svc := NewInMemoryService(WithClock(ClockFunc(func() time.Time { return now })))
	ctx := context.Background()
	id := mustCreate(t, svc, EntityReferral, validAttrs(EntityReferral, "s-1"))

	load := func() domain.Referral {
		t.Helper()
		refs, err := domain.ListCurrent[domain.Referral](ctx, svc.Store())
		if err != nil || len(refs) != 1 {
			t.Fatalf("expected one referral, got %v (%v)", refs, err)
		}
		return refs[0]
	}

	ref := load()
	if ref.Status != domain.ReferralPending || ref.CompletedOn != nil || ref.ReferredOn.String() != "2026-03-02" {
		t.Fatalf("unexpected new referral %+v", ref)
	}
	if got := domain.NewDate(ref.ValidityFrom).String(); got != ref.ReferredOn.String() {
		t.Fatalf("validity_from date %s differs from referral date %s", got, ref.ReferredOn)
	}

	if err := svc.Update(ctx, EntityReferral, id, Attributes{"status": "PROC"}, admin(svc)); err != nil {
		t.Fatalf("update PROC: %v", err)
	}
	if ref = load(); ref.CompletedOn != nil {
		t.Fatalf("PROC must not stamp completion, got %v", ref.CompletedOn)
	}

	if err := svc.Update(ctx, EntityReferral, id, Attributes{"status": "CONC"}, admin(svc)); err != nil {
		t.Fatalf("update CONC: %v", err)
	}
	ref = load()
	if ref.CompletedOn == nil || ref.CompletedOn.String() != "2026-03-02" {
		t.Fatalf("expected completion 2026-03-02, got %v", ref.CompletedOn)
	}

	now = now.AddDate(0, 0, 7)
	if err := svc.Update(ctx, EntityReferral, id, Attributes{"status": "CONC"}, admin(svc)); err != nil {
		t.Fatalf("second CONC: %v", err)
	}
	if ref = load(); ref.CompletedOn.String() != "2026-03-02" {
		t.Fatalf("completion date must not move, got %v", ref.CompletedOn)
	}
	if ref.ReferredOn.String() != "2026-03-02" {
		t.Fatalf("referral date must not move, got %v", ref.ReferredOn)
	}
}

func TestReferralCreateIgnoresCallerDates(t *testing.T) {
	svc := newTestService(t)
	attrs := validAttrs(EntityReferral, "s-1")
	attrs["data_encaminhamento"] = "2020-01-01"
	attrs["data_conclusao"] = "2020-01-02"
	mustCreate(t, svc, EntityReferral, attrs)
	refs, err := domain.ListCurrent[domain.Referral](context.Background(), svc.Store())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if refs[0].ReferredOn.String() != "2026-03-02" || refs[0].CompletedOn != nil {
		t.Fatalf("service-managed dates overridden: %+v", refs[0])
	}
}

func TestExecutionEffectOnSQLite(t *testing.T) {
	store, err := sqlite.Open(context.Background(), sqlite.InMemory)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	svc := NewService(store, WithClock(ClockFunc(func() time.Time { return fixedNow })))

	sessionID := mustCreate(t, svc, EntitySession, sessionAttrs("S-1"))
	if _, err := svc.Create(context.Background(), EntityExecution, validAttrs(EntityExecution, "ghost"), admin(svc)); !domain.IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
	mustCreate(t, svc, EntityExecution, validAttrs(EntityExecution, sessionID))
	if got := sessionStatus(t, svc, sessionID); got != domain.SessionExecuted {
		t.Fatalf("expected EXEC, got %s", got)
	}
	executions, err := domain.ListCurrent[domain.Execution](context.Background(), svc.Store())
	if err != nil || len(executions) != 1 {
		t.Fatalf("expected one execution, got %v (%v)", executions, err)
	}
	if !executions[0].ValidityFrom.Equal(fixedNow) || !executions[0].ExecutedAt.Equal(fixedNow) {
		t.Fatalf("expected service clock on both stamps, got %+v", executions[0])
	}
}
