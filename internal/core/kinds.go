package core

import (
	"time"

	"pepplus/pkg/domain"
)

func defaultKinds() []kindHandler {
	return []kindHandler{
		&Kind[domain.Module, *domain.Module]{
			Schema:   domain.ModuleSchema,
			Mutable:  []string{"nome", "descricao", "ordem", "duracao_semanas", "ativo"},
			Defaults: Attributes{"ordem": 0, "duracao_semanas": 1, "ativo": true},
		},
		&Kind[domain.FamilyGroup, *domain.FamilyGroup]{
			Schema:   domain.FamilyGroupSchema,
			Mutable:  []string{"nome", "distrito_id", "localidade_id", "numero_familias", "ativo"},
			Defaults: Attributes{"numero_familias": 0, "ativo": true},
		},
		&Kind[domain.Session, *domain.Session]{
			Schema: domain.SessionSchema,
			Mutable: []string{
				"coordenador_distrital_id", "tecnico_social_id", "distrito_id", "modulo_id",
				"mes_modulo_anterior", "dia_semana", "data_sessao", "hora_sessao", "zona",
				"numero_familias", "grupo_familia_id", "tempo_deslocamento",
				"feedback_documentacao", "tem_supervisao", "observacoes", "status",
			},
			Defaults: Attributes{"tem_supervisao": false, "status": string(domain.SessionPlanned)},
		},
		attendanceKind(),
		&Kind[domain.Execution, *domain.Execution]{
			Schema: domain.ExecutionSchema,
			Mutable: []string{
				"numero_participantes_compromissos", "praticas_positivas", "desafios_transmissao",
				"necessita_encaminhamento", "auto_avaliacao_pontos_fortes",
				"auto_avaliacao_pontos_atencao", "avaliacao_metodologia", "observacoes",
			},
			Defaults: Attributes{
				"praticas_positivas":            []any{},
				"desafios_transmissao":          []any{},
				"necessita_encaminhamento":      false,
				"auto_avaliacao_pontos_fortes":  []any{},
				"auto_avaliacao_pontos_atencao": []any{},
				"avaliacao_metodologia":         map[string]any{},
			},
			Stamp: func(rec *domain.Execution, now time.Time) {
				rec.ExecutedAt = now.UTC()
			},
			AfterCreate: []Effect[*domain.Execution]{sessionExecuted},
		},
		&Kind[domain.Supervision, *domain.Supervision]{
			Schema:   domain.SupervisionSchema,
			Mutable:  []string{"perguntas_avaliacao", "pontos_positivos", "pontos_melhorar", "observacoes"},
			Defaults: Attributes{"perguntas_avaliacao": map[string]any{}},
		},
		&Kind[domain.Referral, *domain.Referral]{
			Schema:   domain.ReferralSchema,
			Mutable:  []string{"status", "tecnico_responsavel_id", "observacoes"},
			Defaults: Attributes{"status": string(domain.ReferralPending)},
			Stamp: func(rec *domain.Referral, now time.Time) {
				rec.ReferredOn = domain.NewDate(now)
				rec.CompletedOn = nil
			},
			BeforeUpdate: []Effect[*domain.Referral]{referralConcluded},
		},
		&Kind[domain.DistrictReport, *domain.DistrictReport]{
			Schema: domain.DistrictReportSchema,
			Mutable: []string{
				"tecnico_administrativo_id",
				"numero_localidades_atendidas", "numero_familias_atendidas", "numero_tecnicos_formadores",
				"numero_sessoes_conduzidas", "numero_sessoes_esperadas", "numero_familias_presentes",
				"numero_familias_esperadas", "percentual_sessoes", "percentual_familias",
				"numero_familias_migraram", "numero_sessoes_perdidas", "media_familia_presente",
				"media_familia_esperada", "dados_tecnicos", "dados_encaminhamentos", "observacoes",
			},
			Defaults: Attributes{
				"dados_tecnicos":        []any{},
				"dados_encaminhamentos": []any{},
			},
		},
	}
}

func attendanceKind() *Kind[domain.Attendance, *domain.Attendance] {
	return &Kind[domain.Attendance, *domain.Attendance]{
		Schema:   domain.AttendanceSchema,
		Mutable:  []string{"estado", "codigo_encaminhamento", "observacoes"},
		Defaults: Attributes{"estado": string(domain.AttendancePresent)},
	}
}
