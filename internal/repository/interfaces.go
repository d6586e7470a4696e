package repository

import (
	"context"
	"errors"
	"time"

	"github.com/stratix/okrimport/internal/domain"

	"github.com/google/uuid"
)

// ErrJobNotFound indicates the requested import job does not exist.
var ErrJobNotFound = errors.New("import job not found")

// ErrJobStatusConflict indicates a job cannot transition to the requested state.
var ErrJobStatusConflict = errors.New("import job status conflict")

// ImportJobRepository defines the interface for import job operations.
// Status transitions are guarded in SQL so a job is only ever picked up once
// and terminal states are never overwritten.
type ImportJobRepository interface {
	Create(ctx context.Context, job domain.ImportJob) (domain.ImportJob, error)
	GetByID(ctx context.Context, tenantID, id uuid.UUID) (domain.ImportJob, error)
	FindRecentByChecksum(ctx context.Context, tenantID uuid.UUID, checksum string, window time.Duration) (*domain.ImportJob, error)
	MarkProcessing(ctx context.Context, id uuid.UUID, totalRows int) error
	UpdateCounters(ctx context.Context, id uuid.UUID, processed, success, errored int) error
	Finish(ctx context.Context, id uuid.UUID, status domain.ImportJobStatus, metadata domain.ImportJobMetadata, errorSummary string) error
	ListPending(ctx context.Context, tenantID uuid.UUID, limit int) ([]domain.ImportJob, error)
	List(ctx context.Context, tenantID uuid.UUID, filter domain.ImportHistoryFilter) ([]domain.ImportJob, int, error)
	Statistics(ctx context.Context, tenantID uuid.UUID) (domain.ImportStatistics, error)
	MarkStale(ctx context.Context, olderThan time.Duration, errorSummary string) (int, error)
}

// ImportItemRepository stores per-row outcomes. Items are written once and
// never updated.
type ImportItemRepository interface {
	Insert(ctx context.Context, item domain.ImportJobItem) error
	ListByJob(ctx context.Context, jobID uuid.UUID, status *domain.ImportItemStatus, limit, offset int) ([]domain.ImportJobItem, error)
	ErrorPreview(ctx context.Context, jobID uuid.UUID, limit int) ([]domain.ImportJobItem, error)
}

// OKRRepository resolves and creates the OKR entities referenced by imported
// rows. Lookups are tenant-scoped and title matching is case-insensitive.
type OKRRepository interface {
	FindAreaByName(ctx context.Context, tenantID uuid.UUID, name string) (*domain.Area, error)
	CreateArea(ctx context.Context, area domain.Area) (domain.Area, error)
	FindObjectiveByTitle(ctx context.Context, tenantID uuid.UUID, title string) (*domain.Objective, error)
	CreateObjective(ctx context.Context, objective domain.Objective) (domain.Objective, error)
	FindInitiativeByTitle(ctx context.Context, tenantID, objectiveID uuid.UUID, title string) (*domain.Initiative, error)
	CreateInitiative(ctx context.Context, initiative domain.Initiative) (domain.Initiative, error)
	CreateActivity(ctx context.Context, activity domain.Activity) (domain.Activity, error)
	CreateSubtask(ctx context.Context, subtask domain.Subtask) (domain.Subtask, error)
}
