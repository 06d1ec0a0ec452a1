package permission

import (
	"testing"

	"pepplus/pkg/domain"
)

type codeList struct {
	id    string
	codes []Code
}

func (c codeList) AuditID() string { return c.id }
func (c codeList) Granted() []Code { return c.codes }

func TestCodeForUsesModelNames(t *testing.T) {
	cases := []struct {
		entity domain.EntityType
		op     Operation
		want   Code
	}{
		{domain.EntityModule, OpCreate, "pep_plus.add_moduloeducacional"},
		{domain.EntitySession, OpUpdate, "pep_plus.change_sessaopep"},
		{domain.EntityAttendance, OpDelete, "pep_plus.delete_presencasessao"},
		{domain.EntityReferral, OpUpdate, "pep_plus.change_encaminhamentosessao"},
		{domain.EntityDistrictReport, OpGenerate, "pep_plus.add_relatoriodistritalbimestral"},
	}
	for _, tc := range cases {
		got, err := CodeFor(tc.entity, tc.op)
		if err != nil {
			t.Fatalf("CodeFor(%s,%s): %v", tc.entity, tc.op, err)
		}
		if got != tc.want {
			t.Fatalf("CodeFor(%s,%s) = %s, want %s", tc.entity, tc.op, got, tc.want)
		}
	}
	if _, err := CodeFor("unknown", OpCreate); err == nil {
		t.Fatalf("expected error for unknown entity")
	}
	if _, err := CodeFor(domain.EntityModule, "archive"); err == nil {
		t.Fatalf("expected error for unknown operation")
	}
}

func TestAllCodesDistinct(t *testing.T) {
	seen := map[Code]bool{}
	for _, code := range AllCodes() {
		if seen[code] {
			t.Fatalf("duplicate code %s", code)
		}
		seen[code] = true
	}
	if len(seen) != len(domain.EntityTypes())*3 {
		t.Fatalf("expected %d codes, got %d", len(domain.EntityTypes())*3, len(seen))
	}
}

func TestRegistryFreezeAndLimits(t *testing.T) {
	reg := NewRegistry()
	if _, err := reg.Register(""); err == nil {
		t.Fatalf("expected empty code rejection")
	}
	bit, err := reg.Register("a")
	if err != nil || bit != 0 {
		t.Fatalf("register a: bit=%d err=%v", bit, err)
	}
	if _, err := reg.Register("a"); err == nil {
		t.Fatalf("expected duplicate rejection")
	}
	reg.Freeze()
	if _, err := reg.Register("b"); err == nil {
		t.Fatalf("expected frozen registry rejection")
	}
	if code, ok := reg.Code(0); !ok || code != "a" {
		t.Fatalf("Code(0) = %q %v", code, ok)
	}

	full := NewRegistry()
	for i := 0; i < maxBits; i++ {
		if _, err := full.Register(Code(string(rune('A'+i%26)) + string(rune('0'+i/26)))); err != nil {
			t.Fatalf("register %d: %v", i, err)
		}
	}
	if _, err := full.Register("overflow"); err == nil {
		t.Fatalf("expected limit error")
	}
}

func TestMaskOperations(t *testing.T) {
	var m Mask
	m.Set(3)
	m.Set(63)
	m.Set(64)
	m.Set(-1)
	if !m.Has(3) || !m.Has(63) || m.Has(64) || m.Has(-1) {
		t.Fatalf("unexpected mask %b", m)
	}
	m.Clear(3)
	if m.Has(3) {
		t.Fatalf("expected bit 3 cleared")
	}
	var need Mask
	need.Set(63)
	if !m.Contains(need) {
		t.Fatalf("expected containment")
	}
	need.Set(1)
	if m.Contains(need) {
		t.Fatalf("expected missing bit to fail containment")
	}
}

func TestGateAuthorizeAllOrNothing(t *testing.T) {
	gate := NewGate(nil)
	add := MustCodeFor(domain.EntitySession, OpCreate)
	change := MustCodeFor(domain.EntitySession, OpUpdate)

	user := NewUser(gate.Registry(), "u-1", add)
	if !gate.Authorize(user, add) {
		t.Fatalf("expected grant for held code")
	}
	if gate.Authorize(user, add, change) {
		t.Fatalf("expected denial when one of the codes is missing")
	}
	if gate.Authorize(user) {
		t.Fatalf("expected denial for empty requirement")
	}
	if gate.Authorize(nil, add) {
		t.Fatalf("expected denial for nil principal")
	}
	if gate.Authorize(user, "pep_plus.add_unknown") {
		t.Fatalf("expected denial for unregistered code")
	}
}

func TestGateAuthorizeArbitraryPrincipal(t *testing.T) {
	gate := NewGate(nil)
	add := MustCodeFor(domain.EntityModule, OpCreate)
	p := codeList{id: "u-2", codes: []Code{add, "other_module.view"}}
	if !gate.Authorize(p, add) {
		t.Fatalf("expected grant for principal without a mask")
	}
	if gate.Authorize(p, MustCodeFor(domain.EntityModule, OpDelete)) {
		t.Fatalf("expected denial for code not granted")
	}

	// A user resolved against a different registry is re-resolved by code.
	foreign := NewUser(NewRegistry(), "u-3", add)
	if !gate.Authorize(foreign, add) {
		t.Fatalf("expected foreign-registry user to be resolved by codes")
	}
}
