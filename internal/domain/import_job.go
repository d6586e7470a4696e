package domain

import (
	"time"

	"github.com/google/uuid"
)

// ImportJobStatus tracks the lifecycle of an import job.
type ImportJobStatus string

const (
	ImportJobStatusPending    ImportJobStatus = "pending"
	ImportJobStatusProcessing ImportJobStatus = "processing"
	ImportJobStatusCompleted  ImportJobStatus = "completed"
	ImportJobStatusPartial    ImportJobStatus = "partial"
	ImportJobStatusFailed     ImportJobStatus = "failed"
)

// Terminal reports whether the status is final. Terminal jobs are never
// transitioned again.
func (s ImportJobStatus) Terminal() bool {
	switch s {
	case ImportJobStatusCompleted, ImportJobStatusPartial, ImportJobStatusFailed:
		return true
	}
	return false
}

// ProcessingMode records whether a job was handled inline or in the background.
type ProcessingMode string

const (
	ProcessingModeSync  ProcessingMode = "sync"
	ProcessingModeAsync ProcessingMode = "async"
)

// ImportJob is one unit of work processing a single uploaded file end-to-end.
// It is created pending by intake and only ever advanced by the orchestrator.
type ImportJob struct {
	ID          uuid.UUID       `json:"id"`
	TenantID    uuid.UUID       `json:"tenant_id"`
	AreaID      *uuid.UUID      `json:"area_id,omitempty"`
	UserID      uuid.UUID       `json:"user_id"`
	ObjectPath  string          `json:"object_path"`
	Filename    string          `json:"filename"`
	Checksum    string          `json:"checksum"`
	SizeBytes   int64           `json:"size_bytes"`
	ContentType string          `json:"content_type"`
	Status      ImportJobStatus `json:"status"`

	TotalRows     int `json:"total_rows"`
	ProcessedRows int `json:"processed_rows"`
	SuccessRows   int `json:"success_rows"`
	ErrorRows     int `json:"error_rows"`

	Metadata     ImportJobMetadata `json:"metadata"`
	ErrorSummary string            `json:"error_summary,omitempty"`

	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// ImportJobMetadata captures per-job bookkeeping persisted alongside counters.
type ImportJobMetadata struct {
	Mode               ProcessingMode `json:"mode,omitempty"`
	AreasCreated       int            `json:"areas_created,omitempty"`
	ObjectivesCreated  int            `json:"objectives_created,omitempty"`
	InitiativesCreated int            `json:"initiatives_created,omitempty"`
	ActivitiesCreated  int            `json:"activities_created,omitempty"`
	SubtasksCreated    int            `json:"subtasks_created,omitempty"`
}

// Percentage returns processed progress in [0,100].
func (j ImportJob) Percentage() float64 {
	if j.TotalRows <= 0 {
		return 0
	}
	return float64(j.ProcessedRows) / float64(j.TotalRows) * 100
}

// ImportItemStatus is the outcome recorded for a single spreadsheet row.
type ImportItemStatus string

const (
	ImportItemStatusPending ImportItemStatus = "pending"
	ImportItemStatusSuccess ImportItemStatus = "success"
	ImportItemStatusError   ImportItemStatus = "error"
)

// ImportJobItem records the outcome of one row. Written once by the batch
// processor and immutable afterwards.
type ImportJobItem struct {
	ID           uuid.UUID         `json:"id"`
	JobID        uuid.UUID         `json:"job_id"`
	RowNumber    int               `json:"row_number"`
	Status       ImportItemStatus  `json:"status"`
	ErrorMessage string            `json:"error_message,omitempty"`
	RawRow       map[string]string `json:"raw_row,omitempty"`
	ObjectiveID  *uuid.UUID        `json:"objective_id,omitempty"`
	InitiativeID *uuid.UUID        `json:"initiative_id,omitempty"`
	ActivityID   *uuid.UUID        `json:"activity_id,omitempty"`
	CreatedAt    time.Time         `json:"created_at"`
}

// ImportHistoryFilter narrows history listings.
type ImportHistoryFilter struct {
	Status   *ImportJobStatus
	AreaID   *uuid.UUID
	From     *time.Time
	To       *time.Time
	Page     int
	PageSize int
}

// ImportStatistics aggregates job outcomes for a tenant's history view.
type ImportStatistics struct {
	TotalJobs          int     `json:"totalJobs"`
	CompletedJobs      int     `json:"completedJobs"`
	PartialJobs        int     `json:"partialJobs"`
	FailedJobs         int     `json:"failedJobs"`
	TotalRowsProcessed int     `json:"totalRowsProcessed"`
	SuccessRate        float64 `json:"successRate"`
}
