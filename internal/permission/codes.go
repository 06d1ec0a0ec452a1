package permission

import (
	"fmt"

	"pepplus/pkg/domain"
)

// Operation names a mutation kind that requires authorization.
type Operation string

// Supported operations.
const (
	OpCreate   Operation = "create"
	OpUpdate   Operation = "update"
	OpDelete   Operation = "delete"
	OpGenerate Operation = "generate"
)

const codePrefix = "pep_plus."

// modelNames holds the persisted model name each entity type's codes are built from.
var modelNames = map[domain.EntityType]string{
	domain.EntityModule:         "moduloeducacional",
	domain.EntityFamilyGroup:    "grupofamiliar",
	domain.EntitySession:        "sessaopep",
	domain.EntityAttendance:     "presencasessao",
	domain.EntityExecution:      "execucaosessao",
	domain.EntitySupervision:    "supervisaosessao",
	domain.EntityReferral:       "encaminhamentosessao",
	domain.EntityDistrictReport: "relatoriodistritalbimestral",
}

// Report generation writes a new report and is gated like a create.
var verbs = map[Operation]string{
	OpCreate:   "add",
	OpUpdate:   "change",
	OpDelete:   "delete",
	OpGenerate: "add",
}

// CodeFor returns the code required to perform op on entity.
func CodeFor(entity domain.EntityType, op Operation) (Code, error) {
	model, ok := modelNames[entity]
	if !ok {
		return "", fmt.Errorf("permission: unknown entity type %q", entity)
	}
	verb, ok := verbs[op]
	if !ok {
		return "", fmt.Errorf("permission: unknown operation %q", op)
	}
	return Code(codePrefix + verb + "_" + model), nil
}

// MustCodeFor is CodeFor for static tables.
func MustCodeFor(entity domain.EntityType, op Operation) Code {
	code, err := CodeFor(entity, op)
	if err != nil {
		panic(err)
	}
	return code
}

// AllCodes lists every distinct code in entity registration order.
func AllCodes() []Code {
	out := make([]Code, 0, len(modelNames)*3)
	for _, entity := range domain.EntityTypes() {
		for _, op := range []Operation{OpCreate, OpUpdate, OpDelete} {
			out = append(out, MustCodeFor(entity, op))
		}
	}
	return out
}

// DefaultRegistry returns a frozen registry holding AllCodes.
func DefaultRegistry() *Registry {
	reg := NewRegistry()
	for _, code := range AllCodes() {
		if _, err := reg.Register(code); err != nil {
			panic(err)
		}
	}
	reg.Freeze()
	return reg
}
