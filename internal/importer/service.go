// Package importer owns the import pipeline: job intake, the job state
// machine, batch persistence, and progress publication.
package importer

import (
	"time"

	"golang.org/x/time/rate"

	"github.com/stratix/okrimport/internal/parser"
	"github.com/stratix/okrimport/internal/progress"
	"github.com/stratix/okrimport/internal/repository"
	"github.com/stratix/okrimport/internal/storage"
	"github.com/stratix/okrimport/internal/validation"
)

// Service coordinates the import pipeline end to end.
type Service struct {
	jobs        repository.ImportJobRepository
	items       repository.ImportItemRepository
	okr         repository.OKRRepository
	store       storage.ObjectStore
	engine      *validation.Engine
	broadcaster *progress.Broadcaster

	limits        parser.Limits
	syncThreshold int
	syncWait      time.Duration
	batchSize     int
	dedupWindow   time.Duration
	staleJobAge   time.Duration
	limiter       *rate.Limiter
	now           func() time.Time
}

// Option customizes service tuning.
type Option func(*Service)

// WithSyncThreshold sets the row count at or under which processing is
// attempted inline.
func WithSyncThreshold(rows int) Option {
	return func(s *Service) {
		if rows > 0 {
			s.syncThreshold = rows
		}
	}
}

// WithSyncWait bounds how long an inline attempt blocks the caller.
func WithSyncWait(wait time.Duration) Option {
	return func(s *Service) {
		if wait > 0 {
			s.syncWait = wait
		}
	}
}

// WithBatchSize sets the chunk size for large files.
func WithBatchSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.batchSize = size
		}
	}
}

// WithDedupWindow sets the window in which identical uploads collapse into
// one job.
func WithDedupWindow(window time.Duration) Option {
	return func(s *Service) {
		if window > 0 {
			s.dedupWindow = window
		}
	}
}

// WithStaleJobAge sets how long a job may sit in processing before the
// reaper fails it.
func WithStaleJobAge(age time.Duration) Option {
	return func(s *Service) {
		if age > 0 {
			s.staleJobAge = age
		}
	}
}

// WithLimits overrides parser ceilings.
func WithLimits(limits parser.Limits) Option {
	return func(s *Service) {
		s.limits = limits
	}
}

// WithWriteRate caps how many batch commits run per second. The limiter is
// awaited between batches, not per row, so it paces storage bursts rather
// than individual writes.
func WithWriteRate(perSecond float64) Option {
	return func(s *Service) {
		if perSecond > 0 {
			s.limiter = rate.NewLimiter(rate.Limit(perSecond), 1)
		}
	}
}

// NewService wires the import pipeline.
func NewService(
	jobs repository.ImportJobRepository,
	items repository.ImportItemRepository,
	okr repository.OKRRepository,
	store storage.ObjectStore,
	broadcaster *progress.Broadcaster,
	opts ...Option,
) *Service {
	service := &Service{
		jobs:          jobs,
		items:         items,
		okr:           okr,
		store:         store,
		engine:        validation.NewEngine(okr),
		broadcaster:   broadcaster,
		limits:        parser.DefaultLimits(),
		syncThreshold: 25,
		syncWait:      5 * time.Second,
		batchSize:     100,
		dedupWindow:   24 * time.Hour,
		staleJobAge:   30 * time.Minute,
		limiter:       rate.NewLimiter(rate.Limit(200), 1),
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(service)
	}
	return service
}

// Engine exposes the validation engine for the standalone preview endpoint.
func (s *Service) Engine() *validation.Engine {
	return s.engine
}
