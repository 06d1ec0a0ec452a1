package domain

const requiredMessage = "is required"

// ModuleSchema validates educational modules.
var ModuleSchema = Schema{
	Entity: EntityModule,
	Rules: []Rule{
		Required("codigo", requiredMessage),
		Required("nome", requiredMessage),
	},
}

// FamilyGroupSchema validates family groups.
var FamilyGroupSchema = Schema{
	Entity: EntityFamilyGroup,
	Rules: []Rule{
		Required("codigo", requiredMessage),
		Required("nome", requiredMessage),
		Required("distrito_id", requiredMessage),
	},
}

// SessionSchema validates session planning.
var SessionSchema = Schema{
	Entity: EntitySession,
	Rules: []Rule{
		Required("codigo_sessao", requiredMessage),
		Required("coordenador_distrital_id", "select a district coordinator"),
		Required("tecnico_social_id", "select a social worker"),
		Required("distrito_id", requiredMessage),
		Required("modulo_id", requiredMessage),
		Required("dia_semana", requiredMessage),
		OneOf("dia_semana", Weekdays),
		Required("data_sessao", requiredMessage),
		DateField("data_sessao"),
		Required("hora_sessao", requiredMessage),
		ClockField("hora_sessao"),
		Required("zona", requiredMessage),
		Positive("numero_familias"),
		Required("grupo_familia_id", requiredMessage),
		Required("feedback_documentacao", requiredMessage),
		OneOf("status", SessionStatuses),
	},
}

// AttendanceSchema validates attendance records.
var AttendanceSchema = Schema{
	Entity: EntityAttendance,
	Rules: []Rule{
		Required("sessao_id", requiredMessage),
		Required("familia_id", requiredMessage),
		Required("nome_familia", requiredMessage),
		OneOf("estado", AttendanceStates),
	},
}

// ExecutionSchema validates session execution reports.
var ExecutionSchema = Schema{
	Entity: EntityExecution,
	Rules: []Rule{
		Required("sessao_id", requiredMessage),
		Required("formador_id", requiredMessage),
		Present("numero_participantes_compromissos", requiredMessage),
	},
}

// SupervisionSchema validates supervision reports.
var SupervisionSchema = Schema{
	Entity: EntitySupervision,
	Rules: []Rule{
		Required("sessao_id", requiredMessage),
		Required("supervisor_id", requiredMessage),
		Required("formador_id", requiredMessage),
		Required("data_supervisao", requiredMessage),
		DateField("data_supervisao"),
		DateField("data_modulo_anterior"),
		Required("identificador_grupo", requiredMessage),
	},
}

// ReferralSchema validates referrals.
var ReferralSchema = Schema{
	Entity: EntityReferral,
	Rules: []Rule{
		Required("sessao_id", requiredMessage),
		Required("familia_id", requiredMessage),
		Required("nome_familia", requiredMessage),
		Required("codigo_encaminhamento", requiredMessage),
		Required("descricao", requiredMessage),
		OneOf("status", ReferralStatuses),
		DateField("data_conclusao"),
	},
}

// DistrictReportSchema validates bimonthly district reports.
var DistrictReportSchema = Schema{
	Entity: EntityDistrictReport,
	Rules: []Rule{
		Required("distrito_id", requiredMessage),
		Required("coordenador_distrital_id", requiredMessage),
		Required("periodo", requiredMessage),
		OneOf("periodo", ReportPeriods),
		Required("ano", requiredMessage),
		Required("periodo_inicio", requiredMessage),
		DateField("periodo_inicio"),
		Required("periodo_fim", requiredMessage),
		DateField("periodo_fim"),
		NotBefore("periodo_fim", "periodo_inicio", "must not precede periodo_inicio"),
	},
}

// SchemaFor returns the validation schema registered for entity.
func SchemaFor(entity EntityType) (Schema, bool) {
	switch entity {
	case EntityModule:
		return ModuleSchema, true
	case EntityFamilyGroup:
		return FamilyGroupSchema, true
	case EntitySession:
		return SessionSchema, true
	case EntityAttendance:
		return AttendanceSchema, true
	case EntityExecution:
		return ExecutionSchema, true
	case EntitySupervision:
		return SupervisionSchema, true
	case EntityReferral:
		return ReferralSchema, true
	case EntityDistrictReport:
		return DistrictReportSchema, true
	}
	return Schema{}, false
}
