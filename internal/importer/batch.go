package importer

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/google/uuid"

	"github.com/stratix/okrimport/internal/auth"
	"github.com/stratix/okrimport/internal/domain"
)

// entityCache memoizes resolve-or-create results within one job run so two
// rows referencing the same new entity share one created record.
type entityCache struct {
	areas       map[string]uuid.UUID
	objectives  map[string]uuid.UUID
	initiatives map[string]uuid.UUID
	activities  map[string]uuid.UUID
}

func newEntityCache() *entityCache {
	return &entityCache{
		areas:       make(map[string]uuid.UUID),
		objectives:  make(map[string]uuid.UUID),
		initiatives: make(map[string]uuid.UUID),
		activities:  make(map[string]uuid.UUID),
	}
}

func cacheKey(parts ...string) string {
	lowered := make([]string, len(parts))
	for i, part := range parts {
		lowered[i] = strings.ToLower(strings.TrimSpace(part))
	}
	return strings.Join(lowered, "\x00")
}

// launchWorker runs the batch pipeline in the background and returns a
// channel closed when the job reaches a terminal state.
func (s *Service) launchWorker(prep *preparedJob, mode domain.ProcessingMode) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		defer func() {
			if rec := recover(); rec != nil {
				log.Printf("[import] panic while processing job %s: %v", prep.job.ID, rec)
				s.abortJob(context.Background(), prep.job, "import failed due to an internal error")
			}
		}()
		s.runJob(context.Background(), prep, mode)
	}()
	return done
}

// runJob validates all rows, persists them in bounded batches, and drives the
// job to its terminal state. Row failures are isolated; batch-level storage
// faults abort the remaining batches but leave committed batches in place.
func (s *Service) runJob(ctx context.Context, prep *preparedJob, mode domain.ProcessingMode) {
	job := prep.job
	metadata := job.Metadata
	metadata.Mode = mode

	report, err := s.engine.Validate(ctx, prep.rows, prep.mapping, prep.scope)
	if err != nil {
		log.Printf("[import] validation pass for job %s: %v", job.ID, err)
		s.abortJob(ctx, job, "import failed due to an internal error")
		return
	}
	for _, global := range report.GlobalValidations {
		log.Printf("[import] job %s %s: %s", job.ID, global.Code, global.Message)
	}

	total := len(report.ValidatedRows)
	batchSize := s.batchSize
	if total <= s.syncThreshold {
		// Small files are committed in a single pass.
		batchSize = total
	}
	if batchSize <= 0 {
		batchSize = 1
	}
	totalBatches := s.totalBatches(total)

	cache := newEntityCache()
	started := s.now()
	processed, succeeded, failed := 0, 0, 0

	for start := 0; start < total; start += batchSize {
		end := start + batchSize
		if end > total {
			end = total
		}
		currentBatch := start/batchSize + 1

		for _, row := range report.ValidatedRows[start:end] {
			item := s.processRow(ctx, prep.scope, job.ID, row, cache, &metadata)
			if err := s.items.Insert(ctx, item); err != nil {
				log.Printf("[import] job %s batch %d: %v", job.ID, currentBatch, err)
				s.persistCounters(ctx, job.ID, processed, succeeded, failed)
				s.abortJob(ctx, job, "import aborted: storage failure while recording rows")
				return
			}
			processed++
			if item.Status == domain.ImportItemStatusSuccess {
				succeeded++
			} else {
				failed++
			}
		}

		if err := s.jobs.UpdateCounters(ctx, job.ID, processed, succeeded, failed); err != nil {
			log.Printf("[import] job %s batch %d counters: %v", job.ID, currentBatch, err)
			s.abortJob(ctx, job, "import aborted: storage failure while persisting progress")
			return
		}

		update := domain.ProgressUpdate{
			JobID:        job.ID,
			Status:       domain.ImportJobStatusProcessing,
			Processed:    processed,
			Total:        total,
			Succeeded:    succeeded,
			Failed:       failed,
			CurrentBatch: currentBatch,
			TotalBatches: totalBatches,
		}
		if total > 0 {
			update.Percentage = float64(processed) / float64(total) * 100
		}
		if processed > 0 && processed < total {
			elapsed := s.now().Sub(started)
			eta := int(elapsed.Seconds() / float64(processed) * float64(total-processed))
			update.ETASeconds = &eta
		}
		s.broadcaster.Publish(update)

		// Deliberate backpressure: batches commit sequentially, paced by the
		// write limiter, to bound load on the storage backend.
		if s.limiter != nil && end < total {
			if err := s.limiter.Wait(ctx); err != nil {
				s.abortJob(ctx, job, "import aborted")
				return
			}
		}
	}

	status := terminalStatus(total, succeeded, failed)
	summary := ""
	switch {
	case failed > 0:
		summary = fmt.Sprintf("%d of %d rows failed validation or persistence", failed, total)
	case total == 0:
		summary = "file contains no data rows"
	}
	if err := s.jobs.Finish(ctx, job.ID, status, metadata, summary); err != nil {
		log.Printf("[import] job %s finish: %v", job.ID, err)
		return
	}

	final := domain.ProgressUpdate{
		JobID:        job.ID,
		Status:       status,
		Percentage:   100,
		Processed:    processed,
		Total:        total,
		Succeeded:    succeeded,
		Failed:       failed,
		CurrentBatch: totalBatches,
		TotalBatches: totalBatches,
	}
	if total == 0 {
		final.Percentage = 0
	}
	s.broadcaster.Complete(final)
}

// terminalStatus applies the state machine's exit rules.
func terminalStatus(total, succeeded, failed int) domain.ImportJobStatus {
	switch {
	case failed == 0 && succeeded == total && total > 0:
		return domain.ImportJobStatusCompleted
	case succeeded > 0 && failed > 0:
		return domain.ImportJobStatusPartial
	default:
		return domain.ImportJobStatusFailed
	}
}

// processRow creates the row's entity chain, resolving references before
// dependents. Failures are captured on the item and never propagate.
func (s *Service) processRow(ctx context.Context, scope auth.Scope, jobID uuid.UUID, row domain.ValidatedRow, cache *entityCache, metadata *domain.ImportJobMetadata) domain.ImportJobItem {
	item := domain.ImportJobItem{
		JobID:     jobID,
		RowNumber: row.RowNumber,
		RawRow:    row.Raw,
	}

	if !row.Valid {
		item.Status = domain.ImportItemStatusError
		item.ErrorMessage = strings.Join(row.ErrorMessages(), "; ")
		return item
	}

	defer func() {
		if rec := recover(); rec != nil {
			item.Status = domain.ImportItemStatusError
			item.ErrorMessage = "row processing failed unexpectedly"
			log.Printf("[import] job %s row %d panic: %v", jobID, row.RowNumber, rec)
		}
	}()

	record := row.Record

	var areaID *uuid.UUID
	if record.Area != "" {
		id, err := s.resolveArea(ctx, scope, record.Area, cache, metadata)
		if err != nil {
			return rowError(item, "area", err)
		}
		areaID = &id
	}

	objectiveID, err := s.resolveObjective(ctx, scope, record, areaID, cache, metadata)
	if err != nil {
		return rowError(item, "objective", err)
	}
	item.ObjectiveID = &objectiveID

	initiativeID, err := s.resolveInitiative(ctx, scope, record, objectiveID, areaID, cache, metadata)
	if err != nil {
		return rowError(item, "initiative", err)
	}
	item.InitiativeID = &initiativeID

	if record.Activity != "" {
		activityID, err := s.resolveActivity(ctx, scope, record, initiativeID, cache, metadata)
		if err != nil {
			return rowError(item, "activity", err)
		}
		item.ActivityID = &activityID

		if record.Subtask != "" {
			if _, err := s.okr.CreateSubtask(ctx, domain.Subtask{
				TenantID:   scope.TenantID,
				ActivityID: activityID,
				Title:      record.Subtask,
			}); err != nil {
				return rowError(item, "subtask", err)
			}
			metadata.SubtasksCreated++
		}
	}

	item.Status = domain.ImportItemStatusSuccess
	return item
}

func rowError(item domain.ImportJobItem, stage string, err error) domain.ImportJobItem {
	item.Status = domain.ImportItemStatusError
	item.ErrorMessage = fmt.Sprintf("failed to persist %s: %v", stage, err)
	return item
}

func (s *Service) resolveArea(ctx context.Context, scope auth.Scope, name string, cache *entityCache, metadata *domain.ImportJobMetadata) (uuid.UUID, error) {
	key := cacheKey(name)
	if id, ok := cache.areas[key]; ok {
		return id, nil
	}

	area, err := s.okr.FindAreaByName(ctx, scope.TenantID, name)
	if err != nil {
		return uuid.Nil, err
	}
	if area == nil {
		created, err := s.okr.CreateArea(ctx, domain.Area{TenantID: scope.TenantID, Name: name})
		if err != nil {
			return uuid.Nil, err
		}
		metadata.AreasCreated++
		area = &created
	}

	cache.areas[key] = area.ID
	return area.ID, nil
}

func (s *Service) resolveObjective(ctx context.Context, scope auth.Scope, record domain.ImportRecord, areaID *uuid.UUID, cache *entityCache, metadata *domain.ImportJobMetadata) (uuid.UUID, error) {
	key := cacheKey(record.Objective)
	if id, ok := cache.objectives[key]; ok {
		return id, nil
	}

	objective, err := s.okr.FindObjectiveByTitle(ctx, scope.TenantID, record.Objective)
	if err != nil {
		return uuid.Nil, err
	}
	if objective == nil {
		created, err := s.okr.CreateObjective(ctx, domain.Objective{
			TenantID: scope.TenantID,
			AreaID:   areaID,
			Title:    record.Objective,
		})
		if err != nil {
			return uuid.Nil, err
		}
		metadata.ObjectivesCreated++
		objective = &created
	}

	cache.objectives[key] = objective.ID
	return objective.ID, nil
}

func (s *Service) resolveInitiative(ctx context.Context, scope auth.Scope, record domain.ImportRecord, objectiveID uuid.UUID, areaID *uuid.UUID, cache *entityCache, metadata *domain.ImportJobMetadata) (uuid.UUID, error) {
	key := cacheKey(objectiveID.String(), record.Initiative)
	if id, ok := cache.initiatives[key]; ok {
		return id, nil
	}

	initiative, err := s.okr.FindInitiativeByTitle(ctx, scope.TenantID, objectiveID, record.Initiative)
	if err != nil {
		return uuid.Nil, err
	}
	if initiative == nil {
		progress := 0.0
		if record.Progress != nil {
			progress = *record.Progress
		}
		created, err := s.okr.CreateInitiative(ctx, domain.Initiative{
			TenantID:    scope.TenantID,
			ObjectiveID: objectiveID,
			AreaID:      areaID,
			Title:       record.Initiative,
			Description: record.Description,
			Status:      record.Status,
			Priority:    record.Priority,
			Progress:    progress,
			Budget:      record.Budget,
			Spent:       record.Spent,
			Owner:       record.Owner,
			StartDate:   record.StartDate,
			EndDate:     record.EndDate,
		})
		if err != nil {
			return uuid.Nil, err
		}
		metadata.InitiativesCreated++
		initiative = &created
	}

	cache.initiatives[key] = initiative.ID
	return initiative.ID, nil
}

func (s *Service) resolveActivity(ctx context.Context, scope auth.Scope, record domain.ImportRecord, initiativeID uuid.UUID, cache *entityCache, metadata *domain.ImportJobMetadata) (uuid.UUID, error) {
	key := cacheKey(initiativeID.String(), record.Activity)
	if id, ok := cache.activities[key]; ok {
		return id, nil
	}

	created, err := s.okr.CreateActivity(ctx, domain.Activity{
		TenantID:     scope.TenantID,
		InitiativeID: initiativeID,
		Title:        record.Activity,
		Status:       record.Status,
	})
	if err != nil {
		return uuid.Nil, err
	}
	metadata.ActivitiesCreated++

	cache.activities[key] = created.ID
	return created.ID, nil
}

// abortJob drives a processing job to failed after a batch-level fault.
// Already committed batches stay committed; there is no cross-batch rollback.
func (s *Service) abortJob(ctx context.Context, job domain.ImportJob, summary string) {
	if err := s.jobs.Finish(ctx, job.ID, domain.ImportJobStatusFailed, job.Metadata, summary); err != nil {
		log.Printf("[import] failed to mark job %s as failed: %v", job.ID, err)
		return
	}
	final, err := s.jobs.GetByID(ctx, job.TenantID, job.ID)
	if err != nil {
		log.Printf("[import] failed to reload aborted job %s: %v", job.ID, err)
		s.broadcaster.Complete(domain.ProgressUpdate{JobID: job.ID, Status: domain.ImportJobStatusFailed})
		return
	}
	s.broadcaster.Complete(progressFromJob(final, s.batchOf(final.ProcessedRows), s.totalBatches(final.TotalRows)))
}

func (s *Service) persistCounters(ctx context.Context, jobID uuid.UUID, processed, succeeded, failed int) {
	if err := s.jobs.UpdateCounters(ctx, jobID, processed, succeeded, failed); err != nil {
		log.Printf("[import] failed to persist counters for job %s: %v", jobID, err)
	}
}
