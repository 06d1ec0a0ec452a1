package core

import (
	"pepplus/internal/permission"
	"pepplus/pkg/domain"
)

type (
	EntityType      = domain.EntityType
	Attributes      = domain.Attributes
	Transaction     = domain.Transaction
	PersistentStore = domain.PersistentStore
	Principal       = permission.Principal
)

const (
	EntityModule         = domain.EntityModule
	EntityFamilyGroup    = domain.EntityFamilyGroup
	EntitySession        = domain.EntitySession
	EntityAttendance     = domain.EntityAttendance
	EntityExecution      = domain.EntityExecution
	EntitySupervision    = domain.EntitySupervision
	EntityReferral       = domain.EntityReferral
	EntityDistrictReport = domain.EntityDistrictReport
)

// Operation names used for tracing, metrics and logging.
const (
	OpCreate     = "create"
	OpUpdate     = "update"
	OpDelete     = "delete"
	OpBulkCreate = "bulk_create"
	OpGenerate   = "generate"
)
