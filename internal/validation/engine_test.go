package validation

import (
	"context"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/stratix/okrimport/internal/auth"
	"github.com/stratix/okrimport/internal/domain"
	"github.com/stratix/okrimport/internal/parser"
)

func testMapping() domain.ColumnMapping {
	return domain.ColumnMapping{
		domain.FieldObjective:  "objective",
		domain.FieldInitiative: "initiative",
		domain.FieldArea:       "area",
		domain.FieldProgress:   "progress",
		domain.FieldStatus:     "status",
		domain.FieldStartDate:  "start_date",
		domain.FieldEndDate:    "end_date",
		domain.FieldBudget:     "budget",
	}
}

func adminScope(tenantID uuid.UUID) auth.Scope {
	return auth.Scope{TenantID: tenantID, UserID: uuid.New(), Role: auth.RoleAdmin}
}

func TestValidateCleanRowScoresFullConfidence(t *testing.T) {
	tenantID := uuid.New()
	areaID := uuid.New()
	dir := &stubAreaDir{areas: map[string]*domain.Area{
		"growth": {ID: areaID, TenantID: tenantID, Name: "Growth"},
	}}
	engine := NewEngine(dir)

	rows := []parser.Row{{Number: 2, Values: map[string]string{
		"objective":  "Expand into LATAM",
		"initiative": "Open Mexico office",
		"area":       "Growth",
		"progress":   "75%",
		"status":     "in_progress",
	}}}

	report, err := engine.Validate(context.Background(), rows, testMapping(), adminScope(tenantID))
	if err != nil {
		t.Fatalf("validate returned error: %v", err)
	}

	row := report.ValidatedRows[0]
	if !row.Valid {
		t.Fatalf("expected row to be valid, results: %+v", row.Results)
	}
	if row.Confidence != 100 {
		t.Fatalf("expected confidence 100, got %.2f", row.Confidence)
	}
	if row.Record.Progress == nil || *row.Record.Progress != 75 {
		t.Fatalf("expected progress 75, got %+v", row.Record.Progress)
	}
	if row.Record.Status != domain.InitiativeStatusInProgress {
		t.Fatalf("unexpected status: %s", row.Record.Status)
	}
	if report.Summary.ValidRows != 1 || report.Summary.InvalidRows != 0 {
		t.Fatalf("unexpected summary: %+v", report.Summary)
	}
}

func TestValidateFlagsOutOfRangeProgress(t *testing.T) {
	tenantID := uuid.New()
	engine := NewEngine(&stubAreaDir{})

	rows := []parser.Row{{Number: 2, Values: map[string]string{
		"objective":  "Expand",
		"initiative": "Hire",
		"area":       "Growth",
		"progress":   "150",
	}}}

	report, err := engine.Validate(context.Background(), rows, testMapping(), adminScope(tenantID))
	if err != nil {
		t.Fatalf("validate returned error: %v", err)
	}

	row := report.ValidatedRows[0]
	if row.Valid {
		t.Fatalf("expected row to be invalid")
	}
	if !hasCode(row.Results, domain.CodeOutOfRange) {
		t.Fatalf("expected OUT_OF_RANGE result, got %+v", row.Results)
	}
	if row.Confidence >= 100 {
		t.Fatalf("expected reduced confidence, got %.2f", row.Confidence)
	}
}

func TestConfidenceDropsWithEachFailure(t *testing.T) {
	tenantID := uuid.New()
	engine := NewEngine(&stubAreaDir{})

	oneFailure := []parser.Row{{Number: 2, Values: map[string]string{
		"objective":  "Expand",
		"initiative": "Hire",
		"area":       "Growth",
		"progress":   "150",
		"status":     "in_progress",
	}}}
	twoFailures := []parser.Row{{Number: 2, Values: map[string]string{
		"objective":  "Expand",
		"initiative": "Hire",
		"area":       "Growth",
		"progress":   "150",
		"status":     "doing great",
	}}}

	scope := adminScope(tenantID)
	first, err := engine.Validate(context.Background(), oneFailure, testMapping(), scope)
	if err != nil {
		t.Fatalf("validate returned error: %v", err)
	}
	second, err := engine.Validate(context.Background(), twoFailures, testMapping(), scope)
	if err != nil {
		t.Fatalf("validate returned error: %v", err)
	}

	if second.ValidatedRows[0].Confidence >= first.ValidatedRows[0].Confidence {
		t.Fatalf("expected confidence to drop with an extra failure: %.2f vs %.2f",
			first.ValidatedRows[0].Confidence, second.ValidatedRows[0].Confidence)
	}
}

func TestValidateFlagsDateOrder(t *testing.T) {
	tenantID := uuid.New()
	engine := NewEngine(&stubAreaDir{})

	rows := []parser.Row{{Number: 2, Values: map[string]string{
		"objective":  "Expand",
		"initiative": "Hire",
		"area":       "Growth",
		"start_date": "2025-06-01",
		"end_date":   "2025-01-01",
	}}}

	report, err := engine.Validate(context.Background(), rows, testMapping(), adminScope(tenantID))
	if err != nil {
		t.Fatalf("validate returned error: %v", err)
	}
	row := report.ValidatedRows[0]
	if row.Valid {
		t.Fatalf("expected row to be invalid")
	}
	if !hasCode(row.Results, domain.CodeDateOrder) {
		t.Fatalf("expected DATE_ORDER result, got %+v", row.Results)
	}
}

func TestValidateAreaRulesForManagers(t *testing.T) {
	tenantID := uuid.New()
	ownAreaID := uuid.New()
	otherAreaID := uuid.New()
	dir := &stubAreaDir{areas: map[string]*domain.Area{
		"finance": {ID: otherAreaID, TenantID: tenantID, Name: "Finance"},
	}}
	engine := NewEngine(dir)

	scope := auth.Scope{
		TenantID: tenantID,
		UserID:   uuid.New(),
		Role:     auth.RoleManager,
		AreaID:   &ownAreaID,
	}

	rows := []parser.Row{
		{Number: 2, Values: map[string]string{
			"objective":  "Expand",
			"initiative": "Hire",
			"area":       "Finance",
		}},
		{Number: 3, Values: map[string]string{
			"objective":  "Expand",
			"initiative": "Train",
			"area":       "Brand New Team",
		}},
	}

	report, err := engine.Validate(context.Background(), rows, testMapping(), scope)
	if err != nil {
		t.Fatalf("validate returned error: %v", err)
	}

	if !hasCode(report.ValidatedRows[0].Results, domain.CodeAreaPermissionDenied) {
		t.Fatalf("expected AREA_PERMISSION_DENIED for foreign area, got %+v", report.ValidatedRows[0].Results)
	}
	// Managers cannot create areas, so an unknown area is an error for them.
	if !hasCode(report.ValidatedRows[1].Results, domain.CodeAreaNotFound) {
		t.Fatalf("expected AREA_NOT_FOUND for unknown area, got %+v", report.ValidatedRows[1].Results)
	}
}

func TestValidateAdminMayReferenceNewAreas(t *testing.T) {
	tenantID := uuid.New()
	engine := NewEngine(&stubAreaDir{})

	rows := []parser.Row{{Number: 2, Values: map[string]string{
		"objective":  "Expand",
		"initiative": "Hire",
		"area":       "Brand New Team",
	}}}

	report, err := engine.Validate(context.Background(), rows, testMapping(), adminScope(tenantID))
	if err != nil {
		t.Fatalf("validate returned error: %v", err)
	}
	if !report.ValidatedRows[0].Valid {
		t.Fatalf("expected row to be valid, results: %+v", report.ValidatedRows[0].Results)
	}
}

func TestValidateWarnsOnDuplicateInitiatives(t *testing.T) {
	tenantID := uuid.New()
	engine := NewEngine(&stubAreaDir{})

	rows := []parser.Row{
		{Number: 2, Values: map[string]string{
			"objective":  "Expand",
			"initiative": "Open Mexico office",
			"area":       "Growth",
		}},
		{Number: 3, Values: map[string]string{
			"objective":  "Expand",
			"initiative": "open mexico office",
			"area":       "growth",
		}},
	}

	report, err := engine.Validate(context.Background(), rows, testMapping(), adminScope(tenantID))
	if err != nil {
		t.Fatalf("validate returned error: %v", err)
	}

	for idx, row := range report.ValidatedRows {
		if !hasCode(row.Results, domain.CodeDuplicateInitiative) {
			t.Fatalf("expected duplicate warning on row %d, got %+v", idx, row.Results)
		}
		// Duplicates are warnings, not exclusions.
		if !row.Valid {
			t.Fatalf("expected row %d to stay valid", idx)
		}
	}
	if !hasCode(report.GlobalValidations, domain.CodeDuplicateInitiative) {
		t.Fatalf("expected job level duplicate entry, got %+v", report.GlobalValidations)
	}
	if report.Summary.WarningRows != 2 {
		t.Fatalf("expected 2 warning rows, got %d", report.Summary.WarningRows)
	}
}

func TestDeriveMappingAcceptsSynonyms(t *testing.T) {
	mapping := DeriveMapping([]string{"objetivo", "iniciativa", "área", "avance", "fecha_inicio"})

	if mapping[domain.FieldObjective] != "objetivo" {
		t.Fatalf("expected objetivo to map to objective, got %+v", mapping)
	}
	if mapping[domain.FieldInitiative] != "iniciativa" {
		t.Fatalf("expected iniciativa to map to initiative, got %+v", mapping)
	}
	if mapping[domain.FieldProgress] != "avance" {
		t.Fatalf("expected avance to map to progress, got %+v", mapping)
	}
	if mapping[domain.FieldStartDate] != "fecha_inicio" {
		t.Fatalf("expected fecha_inicio to map to start_date, got %+v", mapping)
	}
	if _, ok := mapping[domain.FieldBudget]; ok {
		t.Fatalf("did not expect a budget mapping, got %+v", mapping)
	}
}

func hasCode(results []domain.ValidationResult, code string) bool {
	for _, res := range results {
		if res.Code == code {
			return true
		}
	}
	return false
}

type stubAreaDir struct {
	areas map[string]*domain.Area
}

func (s *stubAreaDir) FindAreaByName(ctx context.Context, tenantID uuid.UUID, name string) (*domain.Area, error) {
	if s.areas == nil {
		return nil, nil
	}
	return s.areas[strings.ToLower(strings.TrimSpace(name))], nil
}

var _ AreaDirectory = (*stubAreaDir)(nil)
