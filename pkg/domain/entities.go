// Package domain defines the versioned PEP+ records, their closed
// enumerations, the validation pipeline, and the persistence contracts the
// lifecycle engine is built on.
package domain

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

// EntityType identifies the type of record stored in the validity store.
type EntityType string

// Supported entity type identifiers used as storage partitions and in mutation requests.
const (
	// EntityModule identifies an educational module.
	EntityModule EntityType = "modulo_educacional"
	// EntityFamilyGroup identifies a family group attending sessions together.
	EntityFamilyGroup EntityType = "grupo_familiar"
	// EntitySession identifies a planned PEP session.
	EntitySession EntityType = "sessao_pep"
	// EntityAttendance identifies a family attendance record for a session.
	EntityAttendance EntityType = "presenca_sessao"
	// EntityExecution identifies the execution report of a session.
	EntityExecution EntityType = "execucao_sessao"
	// EntitySupervision identifies a supervision report of a session.
	EntitySupervision EntityType = "supervisao_sessao"
	// EntityReferral identifies a referral raised during a session.
	EntityReferral EntityType = "encaminhamento_sessao"
	// EntityDistrictReport identifies a bimonthly district report.
	EntityDistrictReport EntityType = "relatorio_distrital"
)

// EntityTypes lists every entity type in registration order.
func EntityTypes() []EntityType {
	return []EntityType{
		EntityModule,
		EntityFamilyGroup,
		EntitySession,
		EntityAttendance,
		EntityExecution,
		EntitySupervision,
		EntityReferral,
		EntityDistrictReport,
	}
}

// ParseEntityType resolves a wire name into a known entity type.
func ParseEntityType(raw string) (EntityType, bool) {
	candidate := EntityType(strings.TrimSpace(raw))
	for _, entity := range EntityTypes() {
		if entity == candidate {
			return entity, true
		}
	}
	return "", false
}

// SessionStatus enumerates the planning states of a session.
type SessionStatus string

// Canonical session statuses.
const (
	SessionPlanned   SessionStatus = "PLAN"
	SessionExecuted  SessionStatus = "EXEC"
	SessionCancelled SessionStatus = "CANC"
)

// Weekday enumerates the weekday codes a session can be scheduled on.
type Weekday string

// Canonical weekday codes, Monday first.
const (
	WeekdayMonday    Weekday = "SEG"
	WeekdayTuesday   Weekday = "TER"
	WeekdayWednesday Weekday = "QUA"
	WeekdayThursday  Weekday = "QUI"
	WeekdayFriday    Weekday = "SEX"
	WeekdaySaturday  Weekday = "SAB"
	WeekdaySunday    Weekday = "DOM"
)

// AttendanceState enumerates attendance outcomes.
type AttendanceState string

// Canonical attendance states.
const (
	AttendancePresent   AttendanceState = "PRES"
	AttendanceAbsent    AttendanceState = "AUSE"
	AttendanceJustified AttendanceState = "JUST"
)

// ReferralStatus enumerates referral workflow states.
type ReferralStatus string

// Canonical referral statuses.
const (
	ReferralPending    ReferralStatus = "PEND"
	ReferralInProgress ReferralStatus = "PROC"
	ReferralConcluded  ReferralStatus = "CONC"
	ReferralCancelled  ReferralStatus = "CANC"
)

// ReportPeriod enumerates the six bimonthly reporting periods of a year.
type ReportPeriod string

// Canonical bimonthly periods (BIM1 = Jan-Feb ... BIM6 = Nov-Dec).
const (
	PeriodBIM1 ReportPeriod = "BIM1"
	PeriodBIM2 ReportPeriod = "BIM2"
	PeriodBIM3 ReportPeriod = "BIM3"
	PeriodBIM4 ReportPeriod = "BIM4"
	PeriodBIM5 ReportPeriod = "BIM5"
	PeriodBIM6 ReportPeriod = "BIM6"
)

// Closed value sets referenced by the validation schemas.
var (
	SessionStatuses   = []string{string(SessionPlanned), string(SessionExecuted), string(SessionCancelled)}
	Weekdays          = []string{"SEG", "TER", "QUA", "QUI", "SEX", "SAB", "DOM"}
	AttendanceStates  = []string{string(AttendancePresent), string(AttendanceAbsent), string(AttendanceJustified)}
	ReferralStatuses  = []string{string(ReferralPending), string(ReferralInProgress), string(ReferralConcluded), string(ReferralCancelled)}
	ReportPeriods     = []string{"BIM1", "BIM2", "BIM3", "BIM4", "BIM5", "BIM6"}
	identityAttribute = map[string]struct{}{
		"row_id": {}, "uuid": {}, "validity_from": {}, "validity_to": {}, "audit_user_id": {},
	}
)

// Version carries the row identity and validity window shared by every record.
// ValidityTo == nil marks the current, externally visible row.
type Version struct {
	RowID        int64      `json:"row_id"`
	UUID         string     `json:"uuid"`
	ValidityFrom time.Time  `json:"validity_from"`
	ValidityTo   *time.Time `json:"validity_to"`
	AuditUserID  string     `json:"audit_user_id"`
}

// Versioning exposes the embedded version so stores can stamp it.
func (v *Version) Versioning() *Version { return v }

// Current reports whether the row's validity window is open.
func (v Version) Current() bool { return v.ValidityTo == nil }

// Record is implemented by pointers to every versioned entity.
type Record interface {
	EntityType() EntityType
	// NaturalKey returns the entity-specific uniqueness key, or "" when the
	// entity has none.
	NaturalKey() string
	Versioning() *Version
}

// IsIdentityAttribute reports whether name is managed by the store and must
// never be taken from caller-supplied attributes.
func IsIdentityAttribute(name string) bool {
	_, ok := identityAttribute[name]
	return ok
}

// Module is an educational module of the PEP+ programme.
type Module struct {
	Version
	Code          string  `json:"codigo"`
	Name          string  `json:"nome"`
	Description   *string `json:"descricao"`
	Order         int     `json:"ordem"`
	DurationWeeks int     `json:"duracao_semanas"`
	Active        bool    `json:"ativo"`
}

// EntityType implements Record.
func (*Module) EntityType() EntityType { return EntityModule }

// NaturalKey implements Record.
func (m *Module) NaturalKey() string { return m.Code }

// FamilyGroup is a group of families attending sessions together.
type FamilyGroup struct {
	Version
	Code        string  `json:"codigo"`
	Name        string  `json:"nome"`
	DistrictID  string  `json:"distrito_id"`
	LocalityID  *string `json:"localidade_id"`
	FamilyCount int     `json:"numero_familias"`
	Active      bool    `json:"ativo"`
}

// EntityType implements Record.
func (*FamilyGroup) EntityType() EntityType { return EntityFamilyGroup }

// NaturalKey implements Record.
func (g *FamilyGroup) NaturalKey() string { return g.Code }

// Session is the planning record of an educational session.
type Session struct {
	Version
	Code                  string        `json:"codigo_sessao"`
	CoordinatorID         string        `json:"coordenador_distrital_id"`
	SocialWorkerID        string        `json:"tecnico_social_id"`
	DistrictID            string        `json:"distrito_id"`
	ModuleID              string        `json:"modulo_id"`
	PreviousModuleMonth   *string       `json:"mes_modulo_anterior"`
	Weekday               Weekday       `json:"dia_semana"`
	Date                  Date          `json:"data_sessao"`
	Time                  string        `json:"hora_sessao"`
	Zone                  string        `json:"zona"`
	FamilyCount           int           `json:"numero_familias"`
	FamilyGroupID         string        `json:"grupo_familia_id"`
	TravelMinutes         *int          `json:"tempo_deslocamento"`
	DocumentationFeedback string        `json:"feedback_documentacao"`
	HasSupervision        bool          `json:"tem_supervisao"`
	Notes                 *string       `json:"observacoes"`
	Status                SessionStatus `json:"status"`
}

// EntityType implements Record.
func (*Session) EntityType() EntityType { return EntitySession }

// NaturalKey implements Record.
func (s *Session) NaturalKey() string { return s.Code }

// Attendance records whether a family attended a session. Families live
// outside this module and are referenced by their external identifier.
type Attendance struct {
	Version
	SessionID    string          `json:"sessao_id"`
	FamilyID     string          `json:"familia_id"`
	FamilyName   string          `json:"nome_familia"`
	GroupID      *string         `json:"grupo_id"`
	State        AttendanceState `json:"estado"`
	ReferralCode *string         `json:"codigo_encaminhamento"`
	Notes        *string         `json:"observacoes"`
}

// EntityType implements Record.
func (*Attendance) EntityType() EntityType { return EntityAttendance }

// NaturalKey implements Record.
func (a *Attendance) NaturalKey() string { return compositeKey(a.SessionID, a.FamilyID) }

// Execution is the one-per-session execution report filed by the trainer.
type Execution struct {
	Version
	SessionID              string          `json:"sessao_id"`
	TrainerID              string          `json:"formador_id"`
	SupervisorID           *string         `json:"supervisor_id"`
	LocalityID             *string         `json:"localidade_id"`
	CommittedParticipants  int             `json:"numero_participantes_compromissos"`
	PositivePractices      []string        `json:"praticas_positivas"`
	TransmissionChallenges []string        `json:"desafios_transmissao"`
	NeedsReferral          bool            `json:"necessita_encaminhamento"`
	SelfAssessmentStrong   []string        `json:"auto_avaliacao_pontos_fortes"`
	SelfAssessmentAttend   []string        `json:"auto_avaliacao_pontos_atencao"`
	MethodologyAssessment  json.RawMessage `json:"avaliacao_metodologia"`
	Notes                  *string         `json:"observacoes"`
	ExecutedAt             time.Time       `json:"data_execucao"`
}

// EntityType implements Record.
func (*Execution) EntityType() EntityType { return EntityExecution }

// NaturalKey implements Record; executions are one-to-one with sessions.
func (e *Execution) NaturalKey() string { return e.SessionID }

// Supervision is a supervisor's assessment of a trainer's session.
type Supervision struct {
	Version
	SessionID          string          `json:"sessao_id"`
	SupervisorID       string          `json:"supervisor_id"`
	TrainerID          string          `json:"formador_id"`
	Date               Date            `json:"data_supervisao"`
	PreviousModuleDate *Date           `json:"data_modulo_anterior"`
	GroupIdentifier    string          `json:"identificador_grupo"`
	AssessmentAnswers  json.RawMessage `json:"perguntas_avaliacao"`
	Strengths          *string         `json:"pontos_positivos"`
	Improvements       *string         `json:"pontos_melhorar"`
	Notes              *string         `json:"observacoes"`
}

// EntityType implements Record.
func (*Supervision) EntityType() EntityType { return EntitySupervision }

// NaturalKey implements Record.
func (*Supervision) NaturalKey() string { return "" }

// Referral tracks a family referral raised during a session.
type Referral struct {
	Version
	SessionID     string         `json:"sessao_id"`
	FamilyID      string         `json:"familia_id"`
	FamilyName    string         `json:"nome_familia"`
	ReferralCode  string         `json:"codigo_encaminhamento"`
	Description   string         `json:"descricao"`
	Status        ReferralStatus `json:"status"`
	ResponsibleID *string        `json:"tecnico_responsavel_id"`
	ReferredOn    Date           `json:"data_encaminhamento"`
	CompletedOn   *Date          `json:"data_conclusao"`
	Notes         *string        `json:"observacoes"`
}

// EntityType implements Record.
func (*Referral) EntityType() EntityType { return EntityReferral }

// NaturalKey implements Record.
func (*Referral) NaturalKey() string { return "" }

// DistrictReport consolidates a district's bimonthly programme statistics.
type DistrictReport struct {
	Version
	DistrictID          string          `json:"distrito_id"`
	CoordinatorID       string          `json:"coordenador_distrital_id"`
	AdminTechnicianID   *string         `json:"tecnico_administrativo_id"`
	Period              ReportPeriod    `json:"periodo"`
	Year                int             `json:"ano"`
	PeriodStart         Date            `json:"periodo_inicio"`
	PeriodEnd           Date            `json:"periodo_fim"`
	LocalitiesServed    int             `json:"numero_localidades_atendidas"`
	FamiliesServed      int             `json:"numero_familias_atendidas"`
	Trainers            int             `json:"numero_tecnicos_formadores"`
	SessionsHeld        int             `json:"numero_sessoes_conduzidas"`
	SessionsExpected    int             `json:"numero_sessoes_esperadas"`
	FamiliesPresent     int             `json:"numero_familias_presentes"`
	FamiliesExpected    int             `json:"numero_familias_esperadas"`
	SessionsPercent     float64         `json:"percentual_sessoes"`
	FamiliesPercent     float64         `json:"percentual_familias"`
	FamiliesMigrated    int             `json:"numero_familias_migraram"`
	SessionsMissed      int             `json:"numero_sessoes_perdidas"`
	AvgFamiliesPresent  float64         `json:"media_familia_presente"`
	AvgFamiliesExpected float64         `json:"media_familia_esperada"`
	TrainerData         json.RawMessage `json:"dados_tecnicos"`
	ReferralData        json.RawMessage `json:"dados_encaminhamentos"`
	Notes               *string         `json:"observacoes"`
}

// EntityType implements Record.
func (*DistrictReport) EntityType() EntityType { return EntityDistrictReport }

// NaturalKey implements Record; one report per district, period and year.
func (r *DistrictReport) NaturalKey() string {
	return compositeKey(r.DistrictID, string(r.Period), strconv.Itoa(r.Year))
}

// compositeKey length-prefixes each part so no two part lists share a key.
func compositeKey(parts ...string) string {
	var b strings.Builder
	for _, part := range parts {
		b.WriteString(strconv.Itoa(len(part)))
		b.WriteByte(':')
		b.WriteString(part)
	}
	return b.String()
}
