package validation

import "github.com/stratix/okrimport/internal/domain"

// header synonyms accepted for each canonical field. Templates circulate in
// English and Spanish, so both are mapped.
var headerSynonyms = map[string][]string{
	domain.FieldObjective:   {"objective", "objetivo", "goal"},
	domain.FieldInitiative:  {"initiative", "iniciativa", "key_result", "title", "titulo"},
	domain.FieldArea:        {"area", "área", "division", "department", "departamento"},
	domain.FieldDescription: {"description", "descripcion", "descripción", "detail"},
	domain.FieldStatus:      {"status", "estado"},
	domain.FieldPriority:    {"priority", "prioridad"},
	domain.FieldProgress:    {"progress", "progreso", "avance", "completion"},
	domain.FieldStartDate:   {"start_date", "fecha_inicio", "start", "inicio"},
	domain.FieldEndDate:     {"end_date", "fecha_fin", "end", "fin", "deadline"},
	domain.FieldBudget:      {"budget", "presupuesto"},
	domain.FieldSpent:       {"spent", "gastado", "actual_spend"},
	domain.FieldActivity:    {"activity", "actividad", "task", "tarea"},
	domain.FieldSubtask:     {"subtask", "subtarea", "checklist"},
	domain.FieldOwner:       {"owner", "responsable", "assignee"},
}

// DeriveMapping binds canonical fields to the sanitized source headers. It is
// computed once per job and reused for every row.
func DeriveMapping(headers []string) domain.ColumnMapping {
	present := make(map[string]bool, len(headers))
	for _, header := range headers {
		present[header] = true
	}

	mapping := make(domain.ColumnMapping)
	for field, synonyms := range headerSynonyms {
		for _, synonym := range synonyms {
			if present[synonym] {
				mapping[field] = synonym
				break
			}
		}
	}
	return mapping
}
