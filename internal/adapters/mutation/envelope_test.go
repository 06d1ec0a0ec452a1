package mutation

import (
	"context"
	"strings"
	"testing"
	"time"

	"pepplus/internal/core"
	"pepplus/internal/permission"
	"pepplus/pkg/domain"
)

func newService() *core.Service {
	now := time.Date(2026, time.March, 2, 10, 0, 0, 0, time.UTC)
	return core.NewInMemoryService(core.WithClock(core.ClockFunc(func() time.Time { return now })))
}

func adminOf(svc *core.Service) *permission.User {
	return permission.NewUser(svc.Gate().Registry(), "admin", permission.AllCodes()...)
}

func moduleRequest() Request {
	return Request{
		Operation:  OpCreate,
		EntityType: string(domain.EntityModule),
		Attributes: domain.Attributes{"codigo": "M1", "nome": "Nutricao"},
	}
}

func TestEnvelopeCreateSuccess(t *testing.T) {
	svc := newService()
	env := NewEnvelope(svc, nil)
	resp := env.Execute(context.Background(), adminOf(svc), moduleRequest())
	if !resp.OK() || resp.UUID == "" {
		t.Fatalf("expected success with uuid, got %+v", resp)
	}
	if resp.Errors == nil {
		t.Fatalf("success must carry an empty, non-nil error list")
	}
}

func TestEnvelopeValidationEntries(t *testing.T) {
	svc := newService()
	env := NewEnvelope(svc, nil)
	resp := env.Execute(context.Background(), adminOf(svc), Request{
		Operation:  OpCreate,
		EntityType: string(domain.EntityModule),
	})
	if len(resp.Errors) != 2 {
		t.Fatalf("expected two entries, got %+v", resp.Errors)
	}
	if resp.Errors[0] != (ErrorEntry{Message: "is required", Detail: "codigo"}) ||
		resp.Errors[1] != (ErrorEntry{Message: "is required", Detail: "nome"}) {
		t.Fatalf("unexpected entries %+v", resp.Errors)
	}
}

func TestEnvelopeSingleEntryForOtherErrors(t *testing.T) {
	svc := newService()
	env := NewEnvelope(svc, nil)
	ctx := context.Background()
	cases := map[string]struct {
		principal permission.Principal
		req       Request
		contains  string
	}{
		"permission": {
			principal: permission.NewUser(svc.Gate().Registry(), "nobody"),
			req:       moduleRequest(),
			contains:  "permission",
		},
		"not found": {
			principal: adminOf(svc),
			req:       Request{Operation: OpDelete, EntityType: string(domain.EntityModule), ID: "missing"},
			contains:  "not found",
		},
		"unknown entity": {
			principal: adminOf(svc),
			req:       Request{Operation: OpCreate, EntityType: "bogus"},
			contains:  "unknown entity",
		},
		"unknown operation": {
			principal: adminOf(svc),
			req:       Request{Operation: "upsert", EntityType: string(domain.EntityModule)},
			contains:  "unknown mutation operation",
		},
		"generate": {
			principal: adminOf(svc),
			req: Request{Operation: OpGenerate, EntityType: string(domain.EntityDistrictReport), Attributes: domain.Attributes{
				"distrito_id": "d-1", "periodo": "BIM2", "ano": 2026,
			}},
			contains: "not implemented",
		},
	}
	for name, tc := range cases {
		resp := env.Execute(ctx, tc.principal, tc.req)
		if len(resp.Errors) != 1 {
			t.Fatalf("%s: expected one entry, got %+v", name, resp.Errors)
		}
		if e := resp.Errors[0]; !strings.Contains(e.Message, tc.contains) || e.Detail != e.Message {
			t.Fatalf("%s: unexpected entry %+v", name, e)
		}
	}
}

func TestEnvelopeUpdateAndDeleteRequireID(t *testing.T) {
	svc := newService()
	env := NewEnvelope(svc, nil)
	for _, op := range []Operation{OpUpdate, OpDelete} {
		resp := env.Execute(context.Background(), adminOf(svc), Request{Operation: op, EntityType: string(domain.EntityModule)})
		if len(resp.Errors) != 1 || resp.Errors[0].Detail != "id" {
			t.Fatalf("%s: expected id violation, got %+v", op, resp.Errors)
		}
	}
}

func TestEnvelopeUpdateThenDelete(t *testing.T) {
	svc := newService()
	env := NewEnvelope(svc, nil)
	ctx := context.Background()
	created := env.Execute(ctx, adminOf(svc), moduleRequest())
	updated := env.Execute(ctx, adminOf(svc), Request{
		Operation:  OpUpdate,
		EntityType: string(domain.EntityModule),
		ID:         created.UUID,
		Attributes: domain.Attributes{"nome": "Higiene"},
	})
	if !updated.OK() {
		t.Fatalf("update failed: %+v", updated.Errors)
	}
	deleted := env.Execute(ctx, adminOf(svc), Request{Operation: OpDelete, EntityType: string(domain.EntityModule), ID: created.UUID})
	if !deleted.OK() {
		t.Fatalf("delete failed: %+v", deleted.Errors)
	}
	rows, err := svc.ListCurrent(ctx, domain.EntityModule)
	if err != nil || len(rows) != 0 {
		t.Fatalf("expected no current modules, got %d (%v)", len(rows), err)
	}
}

func TestEnvelopeBulkCreate(t *testing.T) {
	svc := newService()
	env := NewEnvelope(svc, nil)
	resp := env.Execute(context.Background(), adminOf(svc), Request{
		Operation:  OpBulkCreate,
		EntityType: string(domain.EntityAttendance),
		ID:         "s-1",
		Families: []domain.Attributes{
			{"familia_id": "f-1", "nome_familia": "Silva"},
			{"familia_id": "f-2", "nome_familia": "Costa"},
		},
	})
	if !resp.OK() || len(resp.UUIDs) != 2 {
		t.Fatalf("expected two uuids, got %+v", resp)
	}

	wrong := env.Execute(context.Background(), adminOf(svc), Request{Operation: OpBulkCreate, EntityType: string(domain.EntityModule), ID: "s-1"})
	if wrong.OK() {
		t.Fatalf("bulk_create outside attendance must fail")
	}
}

func TestEnvelopeGenerateValidatesParameters(t *testing.T) {
	svc := newService()
	env := NewEnvelope(svc, nil)
	resp := env.Execute(context.Background(), adminOf(svc), Request{
		Operation:  OpGenerate,
		EntityType: string(domain.EntityDistrictReport),
		Attributes: domain.Attributes{"periodo": "BIM9"},
	})
	var details []string
	for _, e := range resp.Errors {
		details = append(details, e.Detail)
	}
	if strings.Join(details, ",") != "distrito_id,periodo,ano" {
		t.Fatalf("unexpected violations %v", details)
	}
}

type panickingService struct{ Service }

func (panickingService) Create(context.Context, domain.EntityType, domain.Attributes, permission.Principal) (string, error) {
	panic("boom")
}

type recordingLogger struct{ errors []string }

func (*recordingLogger) Debug(string, ...any) {}
func (*recordingLogger) Info(string, ...any)  {}
func (*recordingLogger) Warn(string, ...any)  {}

func (l *recordingLogger) Error(msg string, _ ...any) { l.errors = append(l.errors, msg) }

func TestEnvelopeRecoversPanics(t *testing.T) {
	logger := &recordingLogger{}
	env := NewEnvelope(panickingService{}, logger)
	resp := env.Execute(context.Background(), nil, moduleRequest())
	if len(resp.Errors) != 1 || resp.Errors[0].Message != "internal error" || resp.Errors[0].Detail != "boom" {
		t.Fatalf("unexpected response %+v", resp)
	}
	if len(logger.errors) != 1 {
		t.Fatalf("expected panic to be logged, got %v", logger.errors)
	}
}

func TestEntriesNil(t *testing.T) {
	if got := Entries(nil); got == nil || len(got) != 0 {
		t.Fatalf("expected empty list, got %v", got)
	}
}
