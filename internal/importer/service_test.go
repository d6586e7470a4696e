package importer

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/stratix/okrimport/internal/auth"
	"github.com/stratix/okrimport/internal/domain"
	"github.com/stratix/okrimport/internal/progress"
	"github.com/stratix/okrimport/internal/repository"
	"github.com/stratix/okrimport/internal/storage"
)

type fixture struct {
	jobs    *stubJobRepo
	items   *stubItemRepo
	okr     *stubOKRRepo
	store   *stubStore
	service *Service
	scope   auth.Scope
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	jobs := newStubJobRepo()
	items := &stubItemRepo{}
	okr := newStubOKRRepo()
	store := &stubStore{objects: map[string]stubObject{}}

	service := NewService(jobs, items, okr, store, progress.NewBroadcaster(), opts...)
	return &fixture{
		jobs:    jobs,
		items:   items,
		okr:     okr,
		store:   store,
		service: service,
		scope:   auth.Scope{TenantID: uuid.New(), UserID: uuid.New(), Role: auth.RoleAdmin},
	}
}

func (f *fixture) addUpload(path, filename, checksum, csv string) {
	f.store.objects[path] = stubObject{
		info: storage.ObjectInfo{
			Path:        path,
			Filename:    filename,
			Checksum:    checksum,
			Size:        int64(len(csv)),
			ContentType: "text/csv",
		},
		payload: []byte(csv),
	}
}

func (f *fixture) addPendingJob(t *testing.T, path string) domain.ImportJob {
	t.Helper()
	obj, ok := f.store.objects[path]
	if !ok {
		t.Fatalf("no upload registered at %s", path)
	}
	job, err := f.jobs.Create(context.Background(), domain.ImportJob{
		TenantID:    f.scope.TenantID,
		UserID:      f.scope.UserID,
		ObjectPath:  path,
		Filename:    obj.info.Filename,
		Checksum:    obj.info.Checksum,
		SizeBytes:   obj.info.Size,
		ContentType: obj.info.ContentType,
	})
	if err != nil {
		t.Fatalf("failed to seed job: %v", err)
	}
	return job
}

func waitForTerminal(t *testing.T, f *fixture, jobID uuid.UUID) domain.ImportJob {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		job, err := f.jobs.GetByID(context.Background(), f.scope.TenantID, jobID)
		if err != nil {
			t.Fatalf("failed to load job: %v", err)
		}
		if job.Status.Terminal() {
			return job
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("job %s never reached a terminal state", jobID)
	return domain.ImportJob{}
}

const cleanCSV = "objective,initiative,area,progress,status\n" +
	"Expand LATAM,Open Mexico office,Growth,50,in_progress\n" +
	"Expand LATAM,Hire country lead,Growth,10,not_started\n" +
	"Expand LATAM,Localize pricing,Growth,0,not_started\n"

func TestNotifyRegistersJobAndDeduplicates(t *testing.T) {
	f := newFixture(t)
	checksum := strings.Repeat("a", 64)
	f.addUpload("imports/t/abc_plan.csv", "plan.csv", checksum, cleanCSV)

	first, err := f.service.Notify(context.Background(), f.scope, "imports/t/abc_plan.csv")
	if err != nil {
		t.Fatalf("notify returned error: %v", err)
	}
	if first.Duplicate {
		t.Fatalf("first notify must not be a duplicate")
	}
	if first.Job.Checksum != checksum {
		t.Fatalf("expected checksum %s, got %s", checksum, first.Job.Checksum)
	}

	second, err := f.service.Notify(context.Background(), f.scope, "imports/t/abc_plan.csv")
	if err != nil {
		t.Fatalf("second notify returned error: %v", err)
	}
	if !second.Duplicate {
		t.Fatalf("expected second notify to report a duplicate")
	}
	if second.Job.ID != first.Job.ID {
		t.Fatalf("duplicate must return the original job")
	}
	if f.jobs.count() != 1 {
		t.Fatalf("expected a single job, got %d", f.jobs.count())
	}
}

func TestNotifyDedupWindowExpires(t *testing.T) {
	f := newFixture(t)
	checksum := strings.Repeat("a", 64)
	f.addUpload("imports/t/abc_plan.csv", "plan.csv", checksum, cleanCSV)

	first, err := f.service.Notify(context.Background(), f.scope, "imports/t/abc_plan.csv")
	if err != nil {
		t.Fatalf("notify returned error: %v", err)
	}
	f.jobs.setCreatedAt(first.Job.ID, time.Now().Add(-25*time.Hour))

	second, err := f.service.Notify(context.Background(), f.scope, "imports/t/abc_plan.csv")
	if err != nil {
		t.Fatalf("second notify returned error: %v", err)
	}
	if second.Duplicate {
		t.Fatalf("expected a fresh job once the window passed")
	}
	if second.Job.ID == first.Job.ID {
		t.Fatalf("expected a new job id, got the original")
	}
	if f.jobs.count() != 2 {
		t.Fatalf("expected 2 jobs, got %d", f.jobs.count())
	}
}

func TestNotifyDedupIsTenantScoped(t *testing.T) {
	f := newFixture(t)
	checksum := strings.Repeat("a", 64)
	f.addUpload("imports/t/abc_plan.csv", "plan.csv", checksum, cleanCSV)

	first, err := f.service.Notify(context.Background(), f.scope, "imports/t/abc_plan.csv")
	if err != nil {
		t.Fatalf("notify returned error: %v", err)
	}

	otherTenant := auth.Scope{TenantID: uuid.New(), UserID: uuid.New(), Role: auth.RoleAdmin}
	second, err := f.service.Notify(context.Background(), otherTenant, "imports/t/abc_plan.csv")
	if err != nil {
		t.Fatalf("notify for second tenant returned error: %v", err)
	}
	if second.Duplicate {
		t.Fatalf("identical bytes under another tenant must not deduplicate")
	}
	if second.Job.ID == first.Job.ID {
		t.Fatalf("expected distinct jobs per tenant")
	}
	if second.Job.TenantID != otherTenant.TenantID {
		t.Fatalf("second job carries the wrong tenant: %s", second.Job.TenantID)
	}
}

func TestNotifyMissingObject(t *testing.T) {
	f := newFixture(t)

	_, err := f.service.Notify(context.Background(), f.scope, "imports/t/missing")
	if err == nil {
		t.Fatalf("expected an error for a missing object")
	}
}

func TestTriggerSmallFileCompletesInline(t *testing.T) {
	f := newFixture(t)
	f.addUpload("imports/t/abc_plan.csv", "plan.csv", strings.Repeat("b", 64), cleanCSV)
	job := f.addPendingJob(t, "imports/t/abc_plan.csv")

	result, err := f.service.Trigger(context.Background(), f.scope, job.ID)
	if err != nil {
		t.Fatalf("trigger returned error: %v", err)
	}
	if !result.Inline {
		t.Fatalf("expected inline completion for a small file")
	}
	if result.Job.Status != domain.ImportJobStatusCompleted {
		t.Fatalf("expected completed, got %s (%s)", result.Job.Status, result.Job.ErrorSummary)
	}
	if result.Job.TotalRows != 3 || result.Job.SuccessRows != 3 || result.Job.ErrorRows != 0 {
		t.Fatalf("unexpected counters: %+v", result.Job)
	}
	if result.Job.ProcessedRows != result.Job.SuccessRows+result.Job.ErrorRows {
		t.Fatalf("counter identity violated: %+v", result.Job)
	}
	if result.Job.Metadata.Mode != domain.ProcessingModeSync {
		t.Fatalf("expected sync mode, got %s", result.Job.Metadata.Mode)
	}
	if len(f.items.inserted()) != 3 {
		t.Fatalf("expected 3 items, got %d", len(f.items.inserted()))
	}
}

func TestTriggerIsolatesRowFailures(t *testing.T) {
	f := newFixture(t)
	data := "objective,initiative,area,progress\n" +
		"Expand,Open office,Growth,50\n" +
		"Expand,Hire lead,Growth,150\n" +
		"Expand,Localize pricing,Growth,10\n"
	f.addUpload("imports/t/abc_plan.csv", "plan.csv", strings.Repeat("c", 64), data)
	job := f.addPendingJob(t, "imports/t/abc_plan.csv")

	result, err := f.service.Trigger(context.Background(), f.scope, job.ID)
	if err != nil {
		t.Fatalf("trigger returned error: %v", err)
	}

	final := result.Job
	if final.Status != domain.ImportJobStatusPartial {
		t.Fatalf("expected partial, got %s", final.Status)
	}
	if final.SuccessRows != 2 || final.ErrorRows != 1 {
		t.Fatalf("unexpected counters: %+v", final)
	}

	var failed *domain.ImportJobItem
	for _, item := range f.items.inserted() {
		if item.Status == domain.ImportItemStatusError {
			copied := item
			failed = &copied
		}
	}
	if failed == nil {
		t.Fatalf("expected one failed item")
	}
	if failed.RowNumber != 3 {
		t.Fatalf("expected file row 3 to fail, got %d", failed.RowNumber)
	}
	if !strings.Contains(failed.ErrorMessage, "progress") {
		t.Fatalf("expected a progress error, got %q", failed.ErrorMessage)
	}
}

func TestTriggerIntakeFaultFailsJob(t *testing.T) {
	f := newFixture(t)
	f.store.objects["imports/t/abc_notes.txt"] = stubObject{
		info: storage.ObjectInfo{
			Path:        "imports/t/abc_notes.txt",
			Filename:    "notes.txt",
			Checksum:    strings.Repeat("d", 64),
			ContentType: "text/plain",
		},
		payload: []byte("not a spreadsheet"),
	}
	job := f.addPendingJob(t, "imports/t/abc_notes.txt")

	result, err := f.service.Trigger(context.Background(), f.scope, job.ID)
	if err != nil {
		t.Fatalf("trigger returned error: %v", err)
	}
	if result.Job.Status != domain.ImportJobStatusFailed {
		t.Fatalf("expected failed, got %s", result.Job.Status)
	}
	if !strings.Contains(result.Job.ErrorSummary, "unsupported") {
		t.Fatalf("expected the parse error to surface, got %q", result.Job.ErrorSummary)
	}
}

func TestTriggerStorageFaultAbortsJob(t *testing.T) {
	f := newFixture(t)
	f.items.failOn = 2
	f.addUpload("imports/t/abc_plan.csv", "plan.csv", strings.Repeat("e", 64), cleanCSV)
	job := f.addPendingJob(t, "imports/t/abc_plan.csv")

	result, err := f.service.Trigger(context.Background(), f.scope, job.ID)
	if err != nil {
		t.Fatalf("trigger returned error: %v", err)
	}
	final := result.Job
	if final.Status != domain.ImportJobStatusFailed {
		t.Fatalf("expected failed, got %s", final.Status)
	}
	if !strings.Contains(final.ErrorSummary, "storage failure") {
		t.Fatalf("unexpected summary: %q", final.ErrorSummary)
	}
	// The committed first row stays committed.
	if final.ProcessedRows != 1 || final.SuccessRows != 1 {
		t.Fatalf("expected committed counters to survive, got %+v", final)
	}
}

func TestTriggerSlowSmallFileDegradesToAsync(t *testing.T) {
	f := newFixture(t, WithSyncWait(30*time.Millisecond))
	f.items.delay = 40 * time.Millisecond
	f.addUpload("imports/t/abc_plan.csv", "plan.csv", strings.Repeat("9", 64), cleanCSV)
	job := f.addPendingJob(t, "imports/t/abc_plan.csv")

	result, err := f.service.Trigger(context.Background(), f.scope, job.ID)
	if err != nil {
		t.Fatalf("trigger returned error: %v", err)
	}
	// The wait window elapsed first: the caller gets the async contract
	// even though the file is under the sync threshold.
	if result.Inline {
		t.Fatalf("expected degradation to async after the sync wait")
	}
	if result.Job.Status.Terminal() {
		t.Fatalf("expected a non-terminal status at hand-off, got %s", result.Job.Status)
	}

	final := waitForTerminal(t, f, job.ID)
	if final.Status != domain.ImportJobStatusCompleted {
		t.Fatalf("expected background completion, got %s (%s)", final.Status, final.ErrorSummary)
	}
	if final.SuccessRows != 3 {
		t.Fatalf("expected all rows persisted, got %+v", final)
	}
}

func TestTriggerEmptyFileFailsWithSummary(t *testing.T) {
	f := newFixture(t)
	f.addUpload("imports/t/abc_plan.csv", "plan.csv", strings.Repeat("8", 64), "objective,initiative,area\n")
	job := f.addPendingJob(t, "imports/t/abc_plan.csv")

	result, err := f.service.Trigger(context.Background(), f.scope, job.ID)
	if err != nil {
		t.Fatalf("trigger returned error: %v", err)
	}
	if result.Job.Status != domain.ImportJobStatusFailed {
		t.Fatalf("expected failed, got %s", result.Job.Status)
	}
	if result.Job.ErrorSummary != "file contains no data rows" {
		t.Fatalf("expected an explicit summary, got %q", result.Job.ErrorSummary)
	}
}

func TestTriggerLargeFileRunsAsync(t *testing.T) {
	f := newFixture(t, WithSyncThreshold(2), WithBatchSize(2))
	f.addUpload("imports/t/abc_plan.csv", "plan.csv", strings.Repeat("f", 64), cleanCSV)
	job := f.addPendingJob(t, "imports/t/abc_plan.csv")

	result, err := f.service.Trigger(context.Background(), f.scope, job.ID)
	if err != nil {
		t.Fatalf("trigger returned error: %v", err)
	}
	if result.Inline {
		t.Fatalf("expected async handling above the sync threshold")
	}

	final := waitForTerminal(t, f, job.ID)
	if final.Status != domain.ImportJobStatusCompleted {
		t.Fatalf("expected completed, got %s (%s)", final.Status, final.ErrorSummary)
	}
	if final.Metadata.Mode != domain.ProcessingModeAsync {
		t.Fatalf("expected async mode, got %s", final.Metadata.Mode)
	}
}

func TestTriggerNonPendingJobIsUntouched(t *testing.T) {
	f := newFixture(t)
	f.addUpload("imports/t/abc_plan.csv", "plan.csv", strings.Repeat("1", 64), cleanCSV)
	job := f.addPendingJob(t, "imports/t/abc_plan.csv")
	f.jobs.setStatus(job.ID, domain.ImportJobStatusCompleted)

	result, err := f.service.Trigger(context.Background(), f.scope, job.ID)
	if err != nil {
		t.Fatalf("trigger returned error: %v", err)
	}
	if result.Job.Status != domain.ImportJobStatusCompleted {
		t.Fatalf("expected status untouched, got %s", result.Job.Status)
	}
	if len(f.items.inserted()) != 0 {
		t.Fatalf("did not expect any processing, got %d items", len(f.items.inserted()))
	}
}

func TestEntityResolutionIsMemoized(t *testing.T) {
	f := newFixture(t)
	f.addUpload("imports/t/abc_plan.csv", "plan.csv", strings.Repeat("2", 64), cleanCSV)
	job := f.addPendingJob(t, "imports/t/abc_plan.csv")

	result, err := f.service.Trigger(context.Background(), f.scope, job.ID)
	if err != nil {
		t.Fatalf("trigger returned error: %v", err)
	}
	if result.Job.Status != domain.ImportJobStatusCompleted {
		t.Fatalf("expected completed, got %s", result.Job.Status)
	}

	// All three rows share one area and one objective; each initiative is new.
	if f.okr.areaCreates != 1 {
		t.Fatalf("expected 1 area create, got %d", f.okr.areaCreates)
	}
	if f.okr.objectiveCreates != 1 {
		t.Fatalf("expected 1 objective create, got %d", f.okr.objectiveCreates)
	}
	if f.okr.initiativeCreates != 3 {
		t.Fatalf("expected 3 initiative creates, got %d", f.okr.initiativeCreates)
	}
	if result.Job.Metadata.AreasCreated != 1 || result.Job.Metadata.InitiativesCreated != 3 {
		t.Fatalf("unexpected metadata: %+v", result.Job.Metadata)
	}
}

func TestGetStatusIncludesErrorPreview(t *testing.T) {
	f := newFixture(t)
	data := "objective,initiative,area,progress\n" +
		"Expand,Open office,Growth,150\n" +
		"Expand,Hire lead,Growth,10\n"
	f.addUpload("imports/t/abc_plan.csv", "plan.csv", strings.Repeat("3", 64), data)
	job := f.addPendingJob(t, "imports/t/abc_plan.csv")

	if _, err := f.service.Trigger(context.Background(), f.scope, job.ID); err != nil {
		t.Fatalf("trigger returned error: %v", err)
	}

	status, err := f.service.GetStatus(context.Background(), f.scope, job.ID)
	if err != nil {
		t.Fatalf("get status returned error: %v", err)
	}
	if status.Status != domain.ImportJobStatusPartial {
		t.Fatalf("expected partial, got %s", status.Status)
	}
	if len(status.ErrorPreview) != 1 {
		t.Fatalf("expected 1 preview entry, got %d", len(status.ErrorPreview))
	}
	if status.ErrorPreview[0].RowNumber != 2 {
		t.Fatalf("expected row 2 in preview, got %d", status.ErrorPreview[0].RowNumber)
	}
}

// --- stubs ---

type stubJobRepo struct {
	mu   sync.Mutex
	byID map[uuid.UUID]domain.ImportJob
}

func newStubJobRepo() *stubJobRepo {
	return &stubJobRepo{byID: map[uuid.UUID]domain.ImportJob{}}
}

func (s *stubJobRepo) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.byID)
}

func (s *stubJobRepo) setStatus(id uuid.UUID, status domain.ImportJobStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job := s.byID[id]
	job.Status = status
	s.byID[id] = job
}

func (s *stubJobRepo) setCreatedAt(id uuid.UUID, createdAt time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job := s.byID[id]
	job.CreatedAt = createdAt
	s.byID[id] = job
}

func (s *stubJobRepo) Create(ctx context.Context, job domain.ImportJob) (domain.ImportJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job.ID = uuid.New()
	job.Status = domain.ImportJobStatusPending
	job.CreatedAt = time.Now()
	s.byID[job.ID] = job
	return job, nil
}

func (s *stubJobRepo) GetByID(ctx context.Context, tenantID, id uuid.UUID) (domain.ImportJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.byID[id]
	if !ok || job.TenantID != tenantID {
		return domain.ImportJob{}, repository.ErrJobNotFound
	}
	return job, nil
}

func (s *stubJobRepo) FindRecentByChecksum(ctx context.Context, tenantID uuid.UUID, checksum string, window time.Duration) (*domain.ImportJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, job := range s.byID {
		if job.TenantID == tenantID && job.Checksum == checksum && time.Since(job.CreatedAt) < window {
			copied := job
			return &copied, nil
		}
	}
	return nil, nil
}

func (s *stubJobRepo) MarkProcessing(ctx context.Context, id uuid.UUID, totalRows int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.byID[id]
	if !ok {
		return repository.ErrJobNotFound
	}
	if job.Status != domain.ImportJobStatusPending {
		return repository.ErrJobStatusConflict
	}
	now := time.Now()
	job.Status = domain.ImportJobStatusProcessing
	job.TotalRows = totalRows
	job.StartedAt = &now
	s.byID[id] = job
	return nil
}

func (s *stubJobRepo) UpdateCounters(ctx context.Context, id uuid.UUID, processed, success, errored int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.byID[id]
	if !ok {
		return repository.ErrJobNotFound
	}
	job.ProcessedRows = processed
	job.SuccessRows = success
	job.ErrorRows = errored
	s.byID[id] = job
	return nil
}

func (s *stubJobRepo) Finish(ctx context.Context, id uuid.UUID, status domain.ImportJobStatus, metadata domain.ImportJobMetadata, errorSummary string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.byID[id]
	if !ok {
		return repository.ErrJobNotFound
	}
	if job.Status != domain.ImportJobStatusProcessing {
		return repository.ErrJobStatusConflict
	}
	now := time.Now()
	job.Status = status
	job.Metadata = metadata
	job.ErrorSummary = errorSummary
	job.CompletedAt = &now
	s.byID[id] = job
	return nil
}

func (s *stubJobRepo) ListPending(ctx context.Context, tenantID uuid.UUID, limit int) ([]domain.ImportJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var pending []domain.ImportJob
	for _, job := range s.byID {
		if job.TenantID == tenantID && job.Status == domain.ImportJobStatusPending {
			pending = append(pending, job)
		}
		if len(pending) == limit {
			break
		}
	}
	return pending, nil
}

func (s *stubJobRepo) List(ctx context.Context, tenantID uuid.UUID, filter domain.ImportHistoryFilter) ([]domain.ImportJob, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var jobs []domain.ImportJob
	for _, job := range s.byID {
		if job.TenantID != tenantID {
			continue
		}
		if filter.Status != nil && job.Status != *filter.Status {
			continue
		}
		jobs = append(jobs, job)
	}
	return jobs, len(jobs), nil
}

func (s *stubJobRepo) Statistics(ctx context.Context, tenantID uuid.UUID) (domain.ImportStatistics, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stats := domain.ImportStatistics{}
	for _, job := range s.byID {
		if job.TenantID != tenantID {
			continue
		}
		stats.TotalJobs++
		stats.TotalRowsProcessed += job.ProcessedRows
		switch job.Status {
		case domain.ImportJobStatusCompleted:
			stats.CompletedJobs++
		case domain.ImportJobStatusPartial:
			stats.PartialJobs++
		case domain.ImportJobStatusFailed:
			stats.FailedJobs++
		}
	}
	return stats, nil
}

func (s *stubJobRepo) MarkStale(ctx context.Context, olderThan time.Duration, errorSummary string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	reaped := 0
	for id, job := range s.byID {
		if job.Status != domain.ImportJobStatusProcessing || job.StartedAt == nil {
			continue
		}
		if time.Since(*job.StartedAt) < olderThan {
			continue
		}
		job.Status = domain.ImportJobStatusFailed
		job.ErrorSummary = errorSummary
		s.byID[id] = job
		reaped++
	}
	return reaped, nil
}

type stubItemRepo struct {
	mu     sync.Mutex
	items  []domain.ImportJobItem
	failOn int           // fail the n-th insert, 1-based; zero disables
	delay  time.Duration // per-insert latency, for slow-storage scenarios
}

func (s *stubItemRepo) inserted() []domain.ImportJobItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.ImportJobItem(nil), s.items...)
}

func (s *stubItemRepo) Insert(ctx context.Context, item domain.ImportJobItem) error {
	if s.delay > 0 {
		time.Sleep(s.delay)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failOn > 0 && len(s.items)+1 == s.failOn {
		return context.DeadlineExceeded
	}
	item.ID = uuid.New()
	item.CreatedAt = time.Now()
	s.items = append(s.items, item)
	return nil
}

func (s *stubItemRepo) ListByJob(ctx context.Context, jobID uuid.UUID, status *domain.ImportItemStatus, limit, offset int) ([]domain.ImportJobItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.ImportJobItem
	for _, item := range s.items {
		if item.JobID != jobID {
			continue
		}
		if status != nil && item.Status != *status {
			continue
		}
		out = append(out, item)
	}
	return out, nil
}

func (s *stubItemRepo) ErrorPreview(ctx context.Context, jobID uuid.UUID, limit int) ([]domain.ImportJobItem, error) {
	errored := domain.ImportItemStatusError
	items, err := s.ListByJob(ctx, jobID, &errored, limit, 0)
	if err != nil {
		return nil, err
	}
	if len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

type stubOKRRepo struct {
	mu sync.Mutex

	areas       map[string]domain.Area
	objectives  map[string]domain.Objective
	initiatives map[string]domain.Initiative

	areaCreates       int
	objectiveCreates  int
	initiativeCreates int
	activityCreates   int
	subtaskCreates    int
}

func newStubOKRRepo() *stubOKRRepo {
	return &stubOKRRepo{
		areas:       map[string]domain.Area{},
		objectives:  map[string]domain.Objective{},
		initiatives: map[string]domain.Initiative{},
	}
}

func lowerKey(parts ...string) string {
	for i, part := range parts {
		parts[i] = strings.ToLower(strings.TrimSpace(part))
	}
	return strings.Join(parts, "|")
}

func (s *stubOKRRepo) FindAreaByName(ctx context.Context, tenantID uuid.UUID, name string) (*domain.Area, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if area, ok := s.areas[lowerKey(tenantID.String(), name)]; ok {
		return &area, nil
	}
	return nil, nil
}

func (s *stubOKRRepo) CreateArea(ctx context.Context, area domain.Area) (domain.Area, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	area.ID = uuid.New()
	s.areas[lowerKey(area.TenantID.String(), area.Name)] = area
	s.areaCreates++
	return area, nil
}

func (s *stubOKRRepo) FindObjectiveByTitle(ctx context.Context, tenantID uuid.UUID, title string) (*domain.Objective, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if objective, ok := s.objectives[lowerKey(tenantID.String(), title)]; ok {
		return &objective, nil
	}
	return nil, nil
}

func (s *stubOKRRepo) CreateObjective(ctx context.Context, objective domain.Objective) (domain.Objective, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	objective.ID = uuid.New()
	s.objectives[lowerKey(objective.TenantID.String(), objective.Title)] = objective
	s.objectiveCreates++
	return objective, nil
}

func (s *stubOKRRepo) FindInitiativeByTitle(ctx context.Context, tenantID, objectiveID uuid.UUID, title string) (*domain.Initiative, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if initiative, ok := s.initiatives[lowerKey(tenantID.String(), objectiveID.String(), title)]; ok {
		return &initiative, nil
	}
	return nil, nil
}

func (s *stubOKRRepo) CreateInitiative(ctx context.Context, initiative domain.Initiative) (domain.Initiative, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	initiative.ID = uuid.New()
	s.initiatives[lowerKey(initiative.TenantID.String(), initiative.ObjectiveID.String(), initiative.Title)] = initiative
	s.initiativeCreates++
	return initiative, nil
}

func (s *stubOKRRepo) CreateActivity(ctx context.Context, activity domain.Activity) (domain.Activity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	activity.ID = uuid.New()
	s.activityCreates++
	return activity, nil
}

func (s *stubOKRRepo) CreateSubtask(ctx context.Context, subtask domain.Subtask) (domain.Subtask, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	subtask.ID = uuid.New()
	s.subtaskCreates++
	return subtask, nil
}

type stubObject struct {
	info    storage.ObjectInfo
	payload []byte
}

type stubStore struct {
	objects map[string]stubObject
}

func (s *stubStore) Stat(ctx context.Context, objectPath string) (storage.ObjectInfo, error) {
	obj, ok := s.objects[objectPath]
	if !ok {
		return storage.ObjectInfo{}, storage.ErrObjectNotFound
	}
	return obj.info, nil
}

func (s *stubStore) Fetch(ctx context.Context, objectPath string) ([]byte, error) {
	obj, ok := s.objects[objectPath]
	if !ok {
		return nil, storage.ErrObjectNotFound
	}
	return obj.payload, nil
}

var _ repository.ImportJobRepository = (*stubJobRepo)(nil)
var _ repository.ImportItemRepository = (*stubItemRepo)(nil)
var _ repository.OKRRepository = (*stubOKRRepo)(nil)
var _ storage.ObjectStore = (*stubStore)(nil)
