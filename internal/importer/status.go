package importer

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/stratix/okrimport/internal/auth"
	"github.com/stratix/okrimport/internal/domain"
	"github.com/stratix/okrimport/internal/parser"
	"github.com/stratix/okrimport/internal/validation"
)

const errorPreviewLimit = 5

// StatusProgress is the counter block of a status response.
type StatusProgress struct {
	Percentage float64 `json:"percentage"`
	Total      int     `json:"total"`
	Processed  int     `json:"processed"`
	Successful int     `json:"successful"`
	Failed     int     `json:"failed"`
}

// StatusTiming carries job timestamps.
type StatusTiming struct {
	CreatedAt   string  `json:"createdAt"`
	StartedAt   *string `json:"startedAt,omitempty"`
	CompletedAt *string `json:"completedAt,omitempty"`
}

// ErrorPreviewEntry is one row of the compact error preview. Full per-row
// errors are paged through the items endpoint to bound payload size.
type ErrorPreviewEntry struct {
	RowNumber int    `json:"rowNumber"`
	Message   string `json:"message"`
}

// StatusResponse is the pull-based progress view read from persisted state.
type StatusResponse struct {
	JobID        uuid.UUID                `json:"jobId"`
	Filename     string                   `json:"filename"`
	Status       domain.ImportJobStatus   `json:"status"`
	Progress     StatusProgress           `json:"progress"`
	Timing       StatusTiming             `json:"timing"`
	Summary      string                   `json:"summary,omitempty"`
	Metadata     domain.ImportJobMetadata `json:"metadata"`
	ErrorPreview []ErrorPreviewEntry      `json:"errorPreview,omitempty"`
}

// GetStatus reads job state from storage; it works regardless of which
// process ran the job.
func (s *Service) GetStatus(ctx context.Context, scope auth.Scope, jobID uuid.UUID) (StatusResponse, error) {
	job, err := s.jobs.GetByID(ctx, scope.TenantID, jobID)
	if err != nil {
		return StatusResponse{}, err
	}

	resp := StatusResponse{
		JobID:    job.ID,
		Filename: job.Filename,
		Status:   job.Status,
		Progress: StatusProgress{
			Percentage: job.Percentage(),
			Total:      job.TotalRows,
			Processed:  job.ProcessedRows,
			Successful: job.SuccessRows,
			Failed:     job.ErrorRows,
		},
		Timing:   timing(job),
		Summary:  job.ErrorSummary,
		Metadata: job.Metadata,
	}

	if job.ErrorRows > 0 {
		preview, err := s.items.ErrorPreview(ctx, jobID, errorPreviewLimit)
		if err != nil {
			return StatusResponse{}, fmt.Errorf("failed to load error preview: %w", err)
		}
		for _, item := range preview {
			resp.ErrorPreview = append(resp.ErrorPreview, ErrorPreviewEntry{
				RowNumber: item.RowNumber,
				Message:   item.ErrorMessage,
			})
		}
	}
	return resp, nil
}

func timing(job domain.ImportJob) StatusTiming {
	t := StatusTiming{CreatedAt: job.CreatedAt.Format(time.RFC3339)}
	if job.StartedAt != nil {
		started := job.StartedAt.Format(time.RFC3339)
		t.StartedAt = &started
	}
	if job.CompletedAt != nil {
		completed := job.CompletedAt.Format(time.RFC3339)
		t.CompletedAt = &completed
	}
	return t
}

// HistoryResponse lists jobs with tenant-wide statistics.
type HistoryResponse struct {
	Jobs       []domain.ImportJob      `json:"jobs"`
	Total      int                     `json:"total"`
	Statistics domain.ImportStatistics `json:"statistics"`
}

// History returns the tenant's jobs filtered by status, date, and area.
func (s *Service) History(ctx context.Context, scope auth.Scope, filter domain.ImportHistoryFilter) (HistoryResponse, error) {
	jobs, total, err := s.jobs.List(ctx, scope.TenantID, filter)
	if err != nil {
		return HistoryResponse{}, err
	}
	stats, err := s.jobs.Statistics(ctx, scope.TenantID)
	if err != nil {
		return HistoryResponse{}, err
	}
	return HistoryResponse{Jobs: jobs, Total: total, Statistics: stats}, nil
}

// ListItems pages through a job's per-row outcomes.
func (s *Service) ListItems(ctx context.Context, scope auth.Scope, jobID uuid.UUID, status *domain.ImportItemStatus, limit, offset int) ([]domain.ImportJobItem, error) {
	if _, err := s.jobs.GetByID(ctx, scope.TenantID, jobID); err != nil {
		return nil, err
	}
	return s.items.ListByJob(ctx, jobID, status, limit, offset)
}

// PreviewRequest carries rows for a dry-run validation pass.
type PreviewRequest struct {
	Rows     []map[string]string  `json:"rows"`
	Mappings domain.ColumnMapping `json:"mappings,omitempty"`
}

// PreviewResponse is the dry-run result; nothing is persisted.
type PreviewResponse struct {
	ValidatedRows     []domain.ValidatedRow     `json:"validatedRows"`
	GlobalValidations []domain.ValidationResult `json:"globalValidations,omitempty"`
	Summary           domain.ValidationSummary  `json:"summary"`
	Recommendations   []string                  `json:"recommendations,omitempty"`
}

// Preview validates the supplied rows without creating anything.
func (s *Service) Preview(ctx context.Context, scope auth.Scope, req PreviewRequest) (PreviewResponse, error) {
	rows := make([]parser.Row, 0, len(req.Rows))
	headerSet := make(map[string]bool)
	for idx, raw := range req.Rows {
		rows = append(rows, parser.Row{Number: idx + 2, Values: raw})
		for key := range raw {
			headerSet[key] = true
		}
	}

	mapping := req.Mappings
	if len(mapping) == 0 {
		headers := make([]string, 0, len(headerSet))
		for header := range headerSet {
			headers = append(headers, header)
		}
		mapping = validation.DeriveMapping(headers)
	}

	report, err := s.engine.Validate(ctx, rows, mapping, scope)
	if err != nil {
		return PreviewResponse{}, err
	}

	return PreviewResponse{
		ValidatedRows:     report.ValidatedRows,
		GlobalValidations: report.GlobalValidations,
		Summary:           report.Summary,
		Recommendations:   recommendations(report),
	}, nil
}

func recommendations(report validation.Report) []string {
	var recs []string
	if report.Summary.InvalidRows > 0 {
		recs = append(recs, fmt.Sprintf("fix %d invalid rows before importing", report.Summary.InvalidRows))
	}
	if report.Summary.AverageConfidence < 70 && report.Summary.TotalRows > 0 {
		recs = append(recs, "review low-confidence rows; several columns may be mapped incorrectly")
	}
	for _, global := range report.GlobalValidations {
		recs = append(recs, global.Message)
	}
	return recs
}
