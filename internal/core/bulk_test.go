package core

import (
	"context"
	"errors"
	"strings"
	"testing"

	"pepplus/internal/permission"
	"pepplus/pkg/domain"
)

func families(ids ...string) []Attributes {
	out := make([]Attributes, 0, len(ids))
	for _, id := range ids {
		out = append(out, Attributes{"familia_id": id, "nome_familia": "Familia " + id})
	}
	return out
}

func TestBulkCreateAttendance(t *testing.T) {
	svc := newTestService(t)
	ids, err := svc.BulkCreateAttendance(context.Background(), "s-1", families("f-1", "f-2", "f-3"), admin(svc))
	if err != nil {
		t.Fatalf("bulk create: %v", err)
	}
	if len(ids) != 3 {
		t.Fatalf("expected 3 ids, got %v", ids)
	}
	rows, err := domain.ListCurrent[domain.Attendance](context.Background(), svc.Store())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	for i, a := range rows {
		if a.SessionID != "s-1" || a.State != domain.AttendancePresent || a.UUID != ids[i] {
			t.Fatalf("unexpected attendance %+v", a)
		}
	}
}

func TestBulkCreateAttendanceSessionOverridesFamily(t *testing.T) {
	svc := newTestService(t)
	batch := families("f-1")
	batch[0]["sessao_id"] = "elsewhere"
	if _, err := svc.BulkCreateAttendance(context.Background(), "s-1", batch, admin(svc)); err != nil {
		t.Fatalf("bulk create: %v", err)
	}
	rows, _ := domain.ListCurrent[domain.Attendance](context.Background(), svc.Store())
	if rows[0].SessionID != "s-1" {
		t.Fatalf("expected session s-1, got %s", rows[0].SessionID)
	}
}

func TestBulkCreateAttendanceAbortsOnInvalidFamily(t *testing.T) {
	svc := newTestService(t)
	batch := families("f-1", "f-2")
	batch[1]["estado"] = "LATE"
	_, err := svc.BulkCreateAttendance(context.Background(), "s-1", batch, admin(svc))
	var verr domain.ValidationError
	if !errors.As(err, &verr) || len(verr.Errors) != 1 || verr.Errors[0].Field != "familias[1].estado" {
		t.Fatalf("expected familias[1].estado violation, got %v", err)
	}
	if n := currentCount(t, svc, EntityAttendance); n != 0 {
		t.Fatalf("batch must be all or nothing, got %d rows", n)
	}
}

func TestBulkCreateAttendanceAbortsOnDuplicateFamily(t *testing.T) {
	svc := newTestService(t)
	_, err := svc.BulkCreateAttendance(context.Background(), "s-1", families("f-1", "f-1"), admin(svc))
	if !errors.Is(err, domain.ErrConflict) || !strings.HasPrefix(err.Error(), "familias[1]:") {
		t.Fatalf("expected conflict on familias[1], got %v", err)
	}
	if n := currentCount(t, svc, EntityAttendance); n != 0 {
		t.Fatalf("batch must be all or nothing, got %d rows", n)
	}
}

func TestBulkCreateAttendanceRequiresFamilies(t *testing.T) {
	svc := newTestService(t)
	_, err := svc.BulkCreateAttendance(context.Background(), "s-1", nil, admin(svc))
	var verr domain.ValidationError
	if !errors.As(err, &verr) || verr.Errors[0].Field != "familias" {
		t.Fatalf("expected familias violation, got %v", err)
	}
}

func TestBulkCreateAttendanceAuthorizesFirst(t *testing.T) {
	svc := newTestService(t)
	reader := userWith(svc, permission.MustCodeFor(EntityAttendance, permission.OpUpdate))
	_, err := svc.BulkCreateAttendance(context.Background(), "s-1", nil, reader)
	var denied domain.PermissionError
	if !errors.As(err, &denied) || denied.Entity != EntityAttendance {
		t.Fatalf("expected permission error, got %v", err)
	}
}
