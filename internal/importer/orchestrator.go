package importer

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/stratix/okrimport/internal/auth"
	"github.com/stratix/okrimport/internal/domain"
	"github.com/stratix/okrimport/internal/parser"
	"github.com/stratix/okrimport/internal/repository"
	"github.com/stratix/okrimport/internal/storage"
	"github.com/stratix/okrimport/internal/validation"
)

// ErrJobNotFound mirrors the repository sentinel for handler convenience.
var ErrJobNotFound = repository.ErrJobNotFound

// TriggerResult reports how a trigger call resolved.
type TriggerResult struct {
	Job    domain.ImportJob
	Inline bool
}

type preparedJob struct {
	job     domain.ImportJob
	scope   auth.Scope
	rows    []parser.Row
	mapping domain.ColumnMapping
}

// Trigger advances a pending job. Files at or under the sync threshold are
// awaited inline up to the sync wait; past that the call degrades to the
// async contract while processing continues in the background. Terminal and
// already-processing jobs are returned unchanged.
func (s *Service) Trigger(ctx context.Context, scope auth.Scope, jobID uuid.UUID) (TriggerResult, error) {
	job, err := s.jobs.GetByID(ctx, scope.TenantID, jobID)
	if err != nil {
		return TriggerResult{}, err
	}
	if job.Status != domain.ImportJobStatusPending {
		return TriggerResult{Job: job}, nil
	}

	prep, err := s.prepare(ctx, scope, job)
	if err != nil {
		// Intake faults fail the job through the normal state machine so the
		// durable record explains what happened.
		return s.failBeforeProcessing(ctx, scope, job, err)
	}

	if err := s.jobs.MarkProcessing(ctx, job.ID, len(prep.rows)); err != nil {
		if errors.Is(err, repository.ErrJobStatusConflict) {
			// Another trigger won the race; report its state.
			current, getErr := s.jobs.GetByID(ctx, scope.TenantID, jobID)
			if getErr != nil {
				return TriggerResult{}, getErr
			}
			return TriggerResult{Job: current}, nil
		}
		return TriggerResult{}, err
	}
	job.Status = domain.ImportJobStatusProcessing
	job.TotalRows = len(prep.rows)

	mode := domain.ProcessingModeAsync
	if len(prep.rows) <= s.syncThreshold {
		mode = domain.ProcessingModeSync
	}
	done := s.launchWorker(prep, mode)

	if mode == domain.ProcessingModeSync {
		timer := time.NewTimer(s.syncWait)
		defer timer.Stop()
		select {
		case <-done:
			final, err := s.jobs.GetByID(ctx, scope.TenantID, jobID)
			if err != nil {
				return TriggerResult{}, err
			}
			return TriggerResult{Job: final, Inline: true}, nil
		case <-timer.C:
			// Degrade to async; the worker runs to completion regardless.
		case <-ctx.Done():
		}
	}

	current, err := s.jobs.GetByID(context.WithoutCancel(ctx), scope.TenantID, jobID)
	if err != nil {
		return TriggerResult{}, err
	}
	return TriggerResult{Job: current}, nil
}

// ProcessPending triggers a bounded batch of the tenant's pending jobs
// without waiting on any of them.
func (s *Service) ProcessPending(ctx context.Context, scope auth.Scope, limit int) ([]domain.ImportJob, error) {
	pending, err := s.jobs.ListPending(ctx, scope.TenantID, limit)
	if err != nil {
		return nil, err
	}
	triggered := make([]domain.ImportJob, 0, len(pending))
	for _, job := range pending {
		id := job.ID
		go func() {
			if _, err := s.Trigger(context.Background(), scope, id); err != nil {
				log.Printf("[import] pending sweep trigger for job %s: %v", id, err)
			}
		}()
		triggered = append(triggered, job)
	}
	return triggered, nil
}

// ReapStale fails jobs stuck in processing longer than the stale-job age.
// A crashed worker otherwise leaves its job in processing forever.
func (s *Service) ReapStale(ctx context.Context) (int, error) {
	reaped, err := s.jobs.MarkStale(ctx, s.staleJobAge, "processing timed out and was reaped")
	if err != nil {
		return 0, err
	}
	if reaped > 0 {
		log.Printf("[import] reaped %d stale jobs", reaped)
	}
	return reaped, nil
}

func (s *Service) prepare(ctx context.Context, scope auth.Scope, job domain.ImportJob) (*preparedJob, error) {
	payload, err := s.store.Fetch(ctx, job.ObjectPath)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to fetch upload: %w", err)
	}

	table, err := parser.Parse(job.Filename, job.ContentType, payload, s.limits)
	if err != nil {
		return nil, err
	}

	rows := make([]parser.Row, 0, table.RowCount())
	for {
		row, ok := table.Next()
		if !ok {
			break
		}
		rows = append(rows, row)
	}

	return &preparedJob{
		job:     job,
		scope:   scope,
		rows:    rows,
		mapping: validation.DeriveMapping(table.Headers),
	}, nil
}

func (s *Service) failBeforeProcessing(ctx context.Context, scope auth.Scope, job domain.ImportJob, cause error) (TriggerResult, error) {
	if err := s.jobs.MarkProcessing(ctx, job.ID, 0); err != nil {
		if errors.Is(err, repository.ErrJobStatusConflict) {
			current, getErr := s.jobs.GetByID(ctx, scope.TenantID, job.ID)
			if getErr != nil {
				return TriggerResult{}, getErr
			}
			return TriggerResult{Job: current}, nil
		}
		return TriggerResult{}, err
	}
	if err := s.jobs.Finish(ctx, job.ID, domain.ImportJobStatusFailed, job.Metadata, publicError(cause)); err != nil {
		return TriggerResult{}, err
	}
	log.Printf("[import] job %s failed at intake: %v", job.ID, cause)

	final, err := s.jobs.GetByID(ctx, scope.TenantID, job.ID)
	if err != nil {
		return TriggerResult{}, err
	}
	s.broadcaster.Complete(progressFromJob(final, 0, 0))
	return TriggerResult{Job: final, Inline: true}, nil
}

// publicError keeps parse and limit violations readable for the client while
// redacting internals of unexpected faults.
func publicError(err error) string {
	switch {
	case errors.Is(err, parser.ErrUnsupportedFormat),
		errors.Is(err, parser.ErrFileTooLarge),
		errors.Is(err, parser.ErrTooManyRows),
		errors.Is(err, storage.ErrObjectNotFound):
		return err.Error()
	default:
		return "import failed due to an internal error"
	}
}

func progressFromJob(job domain.ImportJob, currentBatch, totalBatches int) domain.ProgressUpdate {
	return domain.ProgressUpdate{
		JobID:        job.ID,
		Status:       job.Status,
		Percentage:   job.Percentage(),
		Processed:    job.ProcessedRows,
		Total:        job.TotalRows,
		Succeeded:    job.SuccessRows,
		Failed:       job.ErrorRows,
		CurrentBatch: currentBatch,
		TotalBatches: totalBatches,
	}
}

// ProgressSnapshot serves the pull fallback and the stream's opening event
// from the persisted counters. The second return reports a terminal status.
func (s *Service) ProgressSnapshot(ctx context.Context, jobID uuid.UUID) (domain.ProgressUpdate, bool, error) {
	scope, err := auth.RequireScope(ctx)
	if err != nil {
		return domain.ProgressUpdate{}, false, err
	}
	job, err := s.jobs.GetByID(ctx, scope.TenantID, jobID)
	if err != nil {
		return domain.ProgressUpdate{}, false, err
	}
	totalBatches := s.totalBatches(job.TotalRows)
	return progressFromJob(job, s.batchOf(job.ProcessedRows), totalBatches), job.Status.Terminal(), nil
}

func (s *Service) totalBatches(totalRows int) int {
	if totalRows <= 0 {
		return 0
	}
	if totalRows <= s.syncThreshold {
		return 1
	}
	return (totalRows + s.batchSize - 1) / s.batchSize
}

func (s *Service) batchOf(processedRows int) int {
	if processedRows <= 0 {
		return 0
	}
	return (processedRows + s.batchSize - 1) / s.batchSize
}
