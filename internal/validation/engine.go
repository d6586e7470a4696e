// Package validation maps raw spreadsheet rows to typed import records and
// grades them. It never touches storage beyond read-only area lookups, so it
// doubles as the dry-run preview used before committing an import.
package validation

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/google/uuid"

	"github.com/stratix/okrimport/internal/auth"
	"github.com/stratix/okrimport/internal/domain"
	"github.com/stratix/okrimport/internal/parser"
)

// AreaDirectory is a read-only lookup of existing areas.
type AreaDirectory interface {
	FindAreaByName(ctx context.Context, tenantID uuid.UUID, name string) (*domain.Area, error)
}

// Engine validates rows against field and cross-row rules.
type Engine struct {
	areas AreaDirectory
}

// NewEngine creates a validation engine backed by the given area directory.
func NewEngine(areas AreaDirectory) *Engine {
	return &Engine{areas: areas}
}

// Report is the outcome of one validation pass over a full row set.
type Report struct {
	ValidatedRows     []domain.ValidatedRow     `json:"validatedRows"`
	GlobalValidations []domain.ValidationResult `json:"globalValidations,omitempty"`
	Summary           domain.ValidationSummary  `json:"summary"`
}

// Confidence weights: required-field presence dominates, then validator pass
// rate, then cross-field consistency.
const (
	weightRequired    = 0.50
	weightValidators  = 0.35
	weightConsistency = 0.15
)

var requiredFields = []string{domain.FieldObjective, domain.FieldInitiative, domain.FieldArea}

// Validate applies the column mapping once, runs per-row validators, then
// global checks over the full set. Only lookup failures abort; rule
// violations are ordinary results.
func (e *Engine) Validate(ctx context.Context, rows []parser.Row, mapping domain.ColumnMapping, scope auth.Scope) (Report, error) {
	report := Report{ValidatedRows: make([]domain.ValidatedRow, 0, len(rows))}

	areaCache := make(map[string]*domain.Area)
	for _, row := range rows {
		validated, err := e.validateRow(ctx, row, mapping, scope, areaCache)
		if err != nil {
			return Report{}, err
		}
		report.ValidatedRows = append(report.ValidatedRows, validated)
	}

	report.GlobalValidations = runGlobalChecks(report.ValidatedRows)
	report.Summary = summarize(report.ValidatedRows)
	return report, nil
}

func (e *Engine) validateRow(ctx context.Context, row parser.Row, mapping domain.ColumnMapping, scope auth.Scope, areaCache map[string]*domain.Area) (domain.ValidatedRow, error) {
	validated := domain.ValidatedRow{
		RowNumber: row.Number,
		Raw:       row.Values,
	}

	record := domain.ImportRecord{
		Objective:   mappedValue(row, mapping, domain.FieldObjective),
		Initiative:  mappedValue(row, mapping, domain.FieldInitiative),
		Area:        mappedValue(row, mapping, domain.FieldArea),
		Description: mappedValue(row, mapping, domain.FieldDescription),
		Activity:    mappedValue(row, mapping, domain.FieldActivity),
		Subtask:     mappedValue(row, mapping, domain.FieldSubtask),
		Owner:       mappedValue(row, mapping, domain.FieldOwner),
	}

	requiredPresent := 0
	for _, field := range requiredFields {
		if mappedValue(row, mapping, field) == "" {
			validated.Results = append(validated.Results, domain.ValidationResult{
				Field:      field,
				Code:       domain.CodeRequiredFieldMissing,
				Severity:   domain.SeverityError,
				Message:    "required field is empty",
				Suggestion: "fill in the " + field + " column",
			})
		} else {
			requiredPresent++
		}
	}

	validatorsRun := 0
	validatorsFailed := 0
	fail := func(result domain.ValidationResult) {
		validatorsFailed++
		validated.Results = append(validated.Results, result)
	}

	if raw := mappedValue(row, mapping, domain.FieldProgress); raw != "" {
		validatorsRun++
		if value, err := parser.ParseNumber(raw); err != nil {
			fail(domain.ValidationResult{
				Field:    domain.FieldProgress,
				Code:     domain.CodeInvalidNumber,
				Severity: domain.SeverityError,
				Message:  err.Error(),
			})
		} else if value < 0 || value > 100 {
			fail(domain.ValidationResult{
				Field:      domain.FieldProgress,
				Code:       domain.CodeOutOfRange,
				Severity:   domain.SeverityError,
				Message:    fmt.Sprintf("progress %.2f is outside 0-100", value),
				Suggestion: "express progress as a percentage between 0 and 100",
			})
		} else {
			record.Progress = &value
		}
	}

	if raw := mappedValue(row, mapping, domain.FieldStatus); raw != "" {
		validatorsRun++
		normalized := normalizeEnum(raw)
		if !domain.ValidInitiativeStatus(normalized) {
			fail(domain.ValidationResult{
				Field:      domain.FieldStatus,
				Code:       domain.CodeInvalidEnum,
				Severity:   domain.SeverityError,
				Message:    fmt.Sprintf("unknown status %q", raw),
				Suggestion: "use one of: not_started, in_progress, at_risk, completed, cancelled",
			})
		} else {
			record.Status = domain.InitiativeStatus(normalized)
		}
	}

	if raw := mappedValue(row, mapping, domain.FieldPriority); raw != "" {
		validatorsRun++
		normalized := normalizeEnum(raw)
		if !domain.ValidInitiativePriority(normalized) {
			fail(domain.ValidationResult{
				Field:      domain.FieldPriority,
				Code:       domain.CodeInvalidEnum,
				Severity:   domain.SeverityError,
				Message:    fmt.Sprintf("unknown priority %q", raw),
				Suggestion: "use one of: low, medium, high, critical",
			})
		} else {
			record.Priority = domain.InitiativePriority(normalized)
		}
	}

	if raw := mappedValue(row, mapping, domain.FieldStartDate); raw != "" {
		validatorsRun++
		if ts, err := parser.ParseDate(raw); err != nil {
			fail(domain.ValidationResult{
				Field:      domain.FieldStartDate,
				Code:       domain.CodeInvalidDate,
				Severity:   domain.SeverityError,
				Message:    err.Error(),
				Suggestion: "use DD/MM/YYYY or YYYY-MM-DD",
			})
		} else {
			record.StartDate = &ts
		}
	}

	if raw := mappedValue(row, mapping, domain.FieldEndDate); raw != "" {
		validatorsRun++
		if ts, err := parser.ParseDate(raw); err != nil {
			fail(domain.ValidationResult{
				Field:      domain.FieldEndDate,
				Code:       domain.CodeInvalidDate,
				Severity:   domain.SeverityError,
				Message:    err.Error(),
				Suggestion: "use DD/MM/YYYY or YYYY-MM-DD",
			})
		} else {
			record.EndDate = &ts
		}
	}

	if raw := mappedValue(row, mapping, domain.FieldBudget); raw != "" {
		validatorsRun++
		if value, err := parser.ParseNumber(raw); err != nil {
			fail(domain.ValidationResult{
				Field:    domain.FieldBudget,
				Code:     domain.CodeInvalidNumber,
				Severity: domain.SeverityError,
				Message:  err.Error(),
			})
		} else {
			record.Budget = &value
		}
	}

	if raw := mappedValue(row, mapping, domain.FieldSpent); raw != "" {
		validatorsRun++
		if value, err := parser.ParseNumber(raw); err != nil {
			fail(domain.ValidationResult{
				Field:    domain.FieldSpent,
				Code:     domain.CodeInvalidNumber,
				Severity: domain.SeverityError,
				Message:  err.Error(),
			})
		} else {
			record.Spent = &value
		}
	}

	consistent := true
	if record.StartDate != nil && record.EndDate != nil && record.EndDate.Before(*record.StartDate) {
		consistent = false
		validated.Results = append(validated.Results, domain.ValidationResult{
			Field:    domain.FieldEndDate,
			Code:     domain.CodeDateOrder,
			Severity: domain.SeverityError,
			Message:  "end date precedes start date",
		})
	}

	if record.Area != "" {
		validatorsRun++
		area, err := e.lookupArea(ctx, scope.TenantID, record.Area, areaCache)
		if err != nil {
			return domain.ValidatedRow{}, err
		}
		switch {
		case area == nil && !scope.MayCreateAreas():
			fail(domain.ValidationResult{
				Field:      domain.FieldArea,
				Code:       domain.CodeAreaNotFound,
				Severity:   domain.SeverityError,
				Message:    fmt.Sprintf("area %q does not exist", record.Area),
				Suggestion: "ask an administrator to create the area first",
			})
		case area != nil && !scope.MayWriteArea(area.ID):
			fail(domain.ValidationResult{
				Field:      domain.FieldArea,
				Code:       domain.CodeAreaPermissionDenied,
				Severity:   domain.SeverityError,
				Message:    fmt.Sprintf("area %q is outside your assigned area", record.Area),
				Suggestion: "remove the row or import it from an account with access",
			})
		}
	}

	validated.Record = record
	validated.Valid = !hasErrors(validated.Results)
	validated.Confidence = confidence(requiredPresent, len(requiredFields), validatorsRun, validatorsFailed, consistent)
	return validated, nil
}

func (e *Engine) lookupArea(ctx context.Context, tenantID uuid.UUID, name string, cache map[string]*domain.Area) (*domain.Area, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	if area, ok := cache[key]; ok {
		return area, nil
	}
	area, err := e.areas.FindAreaByName(ctx, tenantID, name)
	if err != nil {
		return nil, fmt.Errorf("failed to look up area %q: %w", name, err)
	}
	cache[key] = area
	return area, nil
}

// confidence is a weighted score in [0,100]. Every additional validator
// failure lowers the pass-rate term, so the score is non-increasing in the
// number of failures.
func confidence(requiredPresent, requiredTotal, validatorsRun, validatorsFailed int, consistent bool) float64 {
	requiredScore := 1.0
	if requiredTotal > 0 {
		requiredScore = float64(requiredPresent) / float64(requiredTotal)
	}

	passScore := 1.0
	if validatorsRun > 0 {
		passScore = float64(validatorsRun-validatorsFailed) / float64(validatorsRun)
	}

	consistencyScore := 1.0
	if !consistent {
		consistencyScore = 0
	}

	score := 100 * (weightRequired*requiredScore + weightValidators*passScore + weightConsistency*consistencyScore)
	return math.Max(0, math.Min(100, score))
}

func runGlobalChecks(rows []domain.ValidatedRow) []domain.ValidationResult {
	var global []domain.ValidationResult

	// Duplicate initiatives: same title and area. Both rows are flagged as
	// warnings; neither is excluded from independent validation.
	type dupKey struct{ title, area string }
	seen := make(map[dupKey][]int)
	for idx, row := range rows {
		if row.Record.Initiative == "" {
			continue
		}
		key := dupKey{
			title: strings.ToLower(strings.TrimSpace(row.Record.Initiative)),
			area:  strings.ToLower(strings.TrimSpace(row.Record.Area)),
		}
		seen[key] = append(seen[key], idx)
	}
	for key, indexes := range seen {
		if len(indexes) < 2 {
			continue
		}
		for _, idx := range indexes {
			rows[idx].Results = append(rows[idx].Results, domain.ValidationResult{
				Field:    domain.FieldInitiative,
				Code:     domain.CodeDuplicateInitiative,
				Severity: domain.SeverityWarning,
				Message:  fmt.Sprintf("initiative %q appears %d times in this file", key.title, len(indexes)),
			})
		}
		global = append(global, domain.ValidationResult{
			Field:    domain.FieldInitiative,
			Code:     domain.CodeDuplicateInitiative,
			Severity: domain.SeverityWarning,
			Message:  fmt.Sprintf("initiative %q is duplicated across %d rows", key.title, len(indexes)),
		})
	}

	// Area name consistency: names differing only by case or spacing.
	canonical := make(map[string]map[string]bool)
	for _, row := range rows {
		if row.Record.Area == "" {
			continue
		}
		key := strings.ToLower(strings.Join(strings.Fields(row.Record.Area), " "))
		if canonical[key] == nil {
			canonical[key] = make(map[string]bool)
		}
		canonical[key][row.Record.Area] = true
	}
	for _, variants := range canonical {
		if len(variants) < 2 {
			continue
		}
		names := make([]string, 0, len(variants))
		for name := range variants {
			names = append(names, name)
		}
		global = append(global, domain.ValidationResult{
			Field:    domain.FieldArea,
			Code:     domain.CodeAreaNameInconsistent,
			Severity: domain.SeverityWarning,
			Message:  fmt.Sprintf("area written inconsistently: %s", strings.Join(names, ", ")),
		})
	}

	// Budget variance outliers beyond two standard deviations of the mean.
	var budgets []float64
	for _, row := range rows {
		if row.Record.Budget != nil {
			budgets = append(budgets, *row.Record.Budget)
		}
	}
	if len(budgets) >= 3 {
		mean, stddev := meanStddev(budgets)
		if stddev > 0 {
			for _, row := range rows {
				if row.Record.Budget != nil && math.Abs(*row.Record.Budget-mean) > 2*stddev {
					global = append(global, domain.ValidationResult{
						Field:    domain.FieldBudget,
						Code:     domain.CodeBudgetOutlier,
						Severity: domain.SeverityWarning,
						Message:  fmt.Sprintf("row %d budget %.2f deviates strongly from the file mean %.2f", row.RowNumber, *row.Record.Budget, mean),
					})
				}
			}
		}
	}

	return global
}

func summarize(rows []domain.ValidatedRow) domain.ValidationSummary {
	summary := domain.ValidationSummary{TotalRows: len(rows)}
	var confidenceSum float64
	for _, row := range rows {
		confidenceSum += row.Confidence
		if row.Valid {
			summary.ValidRows++
		} else {
			summary.InvalidRows++
		}
		if row.HasWarnings() {
			summary.WarningRows++
		}
	}
	if len(rows) > 0 {
		summary.AverageConfidence = confidenceSum / float64(len(rows))
	}
	return summary
}

func mappedValue(row parser.Row, mapping domain.ColumnMapping, field string) string {
	column, ok := mapping[field]
	if !ok {
		return ""
	}
	return strings.TrimSpace(row.Values[column])
}

func normalizeEnum(raw string) string {
	value := strings.ToLower(strings.TrimSpace(raw))
	return strings.ReplaceAll(value, " ", "_")
}

func hasErrors(results []domain.ValidationResult) bool {
	for _, res := range results {
		if res.Severity == domain.SeverityError {
			return true
		}
	}
	return false
}

func meanStddev(values []float64) (float64, float64) {
	var sum float64
	for _, v := range values {
		sum += v
	}
	mean := sum / float64(len(values))

	var variance float64
	for _, v := range values {
		variance += (v - mean) * (v - mean)
	}
	variance /= float64(len(values))
	return mean, math.Sqrt(variance)
}
