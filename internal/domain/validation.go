package domain

import "time"

// Severity grades a validation finding.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "info"
)

// Validation codes attached to row and job level findings.
const (
	CodeRequiredFieldMissing = "REQUIRED_FIELD_MISSING"
	CodeOutOfRange           = "OUT_OF_RANGE"
	CodeInvalidEnum          = "INVALID_ENUM"
	CodeInvalidDate          = "INVALID_DATE"
	CodeInvalidNumber        = "INVALID_NUMBER"
	CodeDateOrder            = "DATE_ORDER"
	CodeAreaNotFound         = "AREA_NOT_FOUND"
	CodeAreaPermissionDenied = "AREA_PERMISSION_DENIED"
	CodeDuplicateInitiative  = "DUPLICATE_INITIATIVE"
	CodeAreaNameInconsistent = "AREA_NAME_INCONSISTENT"
	CodeBudgetOutlier        = "BUDGET_OUTLIER"
)

// ValidationResult is one finding for one field of one row. Computed, never
// persisted directly; only its aggregate lands on the job and its items.
type ValidationResult struct {
	Field      string   `json:"field"`
	Code       string   `json:"code"`
	Severity   Severity `json:"severity"`
	Message    string   `json:"message"`
	Suggestion string   `json:"suggestion,omitempty"`
}

// ImportRecord is the typed intermediate a raw spreadsheet row resolves to
// once the column mapping has been applied.
type ImportRecord struct {
	Objective   string
	Initiative  string
	Area        string
	Description string
	Status      InitiativeStatus
	Priority    InitiativePriority
	Progress    *float64
	StartDate   *time.Time
	EndDate     *time.Time
	Budget      *float64
	Spent       *float64
	Activity    string
	Subtask     string
	Owner       string
}

// ValidatedRow pairs a row with its findings and confidence score.
type ValidatedRow struct {
	RowNumber  int                `json:"rowNumber"`
	Raw        map[string]string  `json:"raw,omitempty"`
	Record     ImportRecord       `json:"-"`
	Results    []ValidationResult `json:"results,omitempty"`
	Confidence float64            `json:"confidence"`
	Valid      bool               `json:"valid"`
}

// HasWarnings reports whether the row carries warning level findings.
func (r ValidatedRow) HasWarnings() bool {
	for _, res := range r.Results {
		if res.Severity == SeverityWarning {
			return true
		}
	}
	return false
}

// ErrorMessages joins error level findings for persistence on a job item.
func (r ValidatedRow) ErrorMessages() []string {
	var messages []string
	for _, res := range r.Results {
		if res.Severity == SeverityError {
			messages = append(messages, res.Field+": "+res.Message)
		}
	}
	return messages
}

// ValidationSummary aggregates a full validation pass.
type ValidationSummary struct {
	TotalRows         int     `json:"totalRows"`
	ValidRows         int     `json:"validRows"`
	InvalidRows       int     `json:"invalidRows"`
	WarningRows       int     `json:"warningRows"`
	AverageConfidence float64 `json:"averageConfidence"`
}

// ColumnMapping binds canonical record fields to source column names. It is
// computed once per job, not re-derived per row.
type ColumnMapping map[string]string

// Canonical field names recognized by the column mapping.
const (
	FieldObjective   = "objective"
	FieldInitiative  = "initiative"
	FieldArea        = "area"
	FieldDescription = "description"
	FieldStatus      = "status"
	FieldPriority    = "priority"
	FieldProgress    = "progress"
	FieldStartDate   = "start_date"
	FieldEndDate     = "end_date"
	FieldBudget      = "budget"
	FieldSpent       = "spent"
	FieldActivity    = "activity"
	FieldSubtask     = "subtask"
	FieldOwner       = "owner"
)
