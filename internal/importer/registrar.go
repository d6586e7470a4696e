package importer

import (
	"context"
	"fmt"
	"log"

	"github.com/stratix/okrimport/internal/auth"
	"github.com/stratix/okrimport/internal/domain"
)

// NotifyResult reports intake outcome. Duplicate marks the idempotent case
// where identical bytes were already registered inside the dedup window.
type NotifyResult struct {
	Job       domain.ImportJob
	Duplicate bool
}

// Notify registers an uploaded object as an import job. Re-notifying the same
// (tenant, checksum) pair inside the dedup window returns the existing job
// untouched; this is a success path, not an error.
func (s *Service) Notify(ctx context.Context, scope auth.Scope, objectPath string) (NotifyResult, error) {
	info, err := s.store.Stat(ctx, objectPath)
	if err != nil {
		return NotifyResult{}, err
	}

	existing, err := s.jobs.FindRecentByChecksum(ctx, scope.TenantID, info.Checksum, s.dedupWindow)
	if err != nil {
		return NotifyResult{}, fmt.Errorf("failed to check for duplicate upload: %w", err)
	}
	if existing != nil {
		return NotifyResult{Job: *existing, Duplicate: true}, nil
	}

	job, err := s.jobs.Create(ctx, domain.ImportJob{
		TenantID:    scope.TenantID,
		AreaID:      scope.AreaID,
		UserID:      scope.UserID,
		ObjectPath:  info.Path,
		Filename:    info.Filename,
		Checksum:    info.Checksum,
		SizeBytes:   info.Size,
		ContentType: info.ContentType,
	})
	if err != nil {
		return NotifyResult{}, fmt.Errorf("failed to register import job: %w", err)
	}

	// Hand off without blocking the intake response. The orchestrator owns
	// the job from here; a lost handoff is recovered by an explicit process
	// call or the pending sweep.
	go func() {
		if _, err := s.Trigger(context.Background(), scope, job.ID); err != nil {
			log.Printf("[import] background trigger for job %s: %v", job.ID, err)
		}
	}()

	return NotifyResult{Job: job}, nil
}
