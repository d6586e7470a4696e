package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/stratix/okrimport/internal/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

type importJobRepository struct {
	pool *pgxpool.Pool
}

// NewImportJobRepository wires a repository backed by pgxpool.
func NewImportJobRepository(pool *pgxpool.Pool) ImportJobRepository {
	return &importJobRepository{pool: pool}
}

const importJobColumns = `id, tenant_id, area_id, user_id, object_path, filename, checksum,
	size_bytes, content_type, status, total_rows, processed_rows, success_rows, error_rows,
	metadata, error_summary, created_at, started_at, completed_at`

func (r *importJobRepository) Create(ctx context.Context, job domain.ImportJob) (domain.ImportJob, error) {
	metadata, err := json.Marshal(job.Metadata)
	if err != nil {
		return domain.ImportJob{}, fmt.Errorf("failed to encode job metadata: %w", err)
	}

	row := r.pool.QueryRow(
		ctx,
		`INSERT INTO import_jobs (tenant_id, area_id, user_id, object_path, filename, checksum,
			size_bytes, content_type, status, metadata)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		 RETURNING `+importJobColumns,
		job.TenantID,
		job.AreaID,
		job.UserID,
		job.ObjectPath,
		job.Filename,
		job.Checksum,
		job.SizeBytes,
		job.ContentType,
		string(domain.ImportJobStatusPending),
		metadata,
	)

	created, err := scanImportJob(row)
	if err != nil {
		return domain.ImportJob{}, fmt.Errorf("failed to create import job: %w", err)
	}
	return created, nil
}

func (r *importJobRepository) GetByID(ctx context.Context, tenantID, id uuid.UUID) (domain.ImportJob, error) {
	row := r.pool.QueryRow(
		ctx,
		`SELECT `+importJobColumns+` FROM import_jobs WHERE id = $1 AND tenant_id = $2`,
		id, tenantID,
	)
	job, err := scanImportJob(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ImportJob{}, ErrJobNotFound
		}
		return domain.ImportJob{}, fmt.Errorf("failed to load import job: %w", err)
	}
	return job, nil
}

func (r *importJobRepository) FindRecentByChecksum(ctx context.Context, tenantID uuid.UUID, checksum string, window time.Duration) (*domain.ImportJob, error) {
	row := r.pool.QueryRow(
		ctx,
		`SELECT `+importJobColumns+`
		 FROM import_jobs
		 WHERE tenant_id = $1 AND checksum = $2 AND created_at > now() - $3::interval
		 ORDER BY created_at DESC
		 LIMIT 1`,
		tenantID, checksum, window.String(),
	)
	job, err := scanImportJob(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to look up recent import job: %w", err)
	}
	return &job, nil
}

func (r *importJobRepository) MarkProcessing(ctx context.Context, id uuid.UUID, totalRows int) error {
	tag, err := r.pool.Exec(
		ctx,
		`UPDATE import_jobs
		 SET status = $2, total_rows = $3, started_at = now()
		 WHERE id = $1 AND status = $4`,
		id, string(domain.ImportJobStatusProcessing), totalRows, string(domain.ImportJobStatusPending),
	)
	if err != nil {
		return fmt.Errorf("failed to mark import job processing: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrJobStatusConflict
	}
	return nil
}

func (r *importJobRepository) UpdateCounters(ctx context.Context, id uuid.UUID, processed, success, errored int) error {
	_, err := r.pool.Exec(
		ctx,
		`UPDATE import_jobs
		 SET processed_rows = $2, success_rows = $3, error_rows = $4
		 WHERE id = $1`,
		id, processed, success, errored,
	)
	if err != nil {
		return fmt.Errorf("failed to update import job counters: %w", err)
	}
	return nil
}

func (r *importJobRepository) Finish(ctx context.Context, id uuid.UUID, status domain.ImportJobStatus, metadata domain.ImportJobMetadata, errorSummary string) error {
	encoded, err := json.Marshal(metadata)
	if err != nil {
		return fmt.Errorf("failed to encode job metadata: %w", err)
	}

	tag, err := r.pool.Exec(
		ctx,
		`UPDATE import_jobs
		 SET status = $2, metadata = $3, error_summary = $4, completed_at = now()
		 WHERE id = $1 AND status = $5`,
		id, string(status), encoded, errorSummary, string(domain.ImportJobStatusProcessing),
	)
	if err != nil {
		return fmt.Errorf("failed to finish import job: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrJobStatusConflict
	}
	return nil
}

func (r *importJobRepository) ListPending(ctx context.Context, tenantID uuid.UUID, limit int) ([]domain.ImportJob, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := r.pool.Query(
		ctx,
		`SELECT `+importJobColumns+`
		 FROM import_jobs
		 WHERE tenant_id = $1 AND status = $2
		 ORDER BY created_at ASC
		 LIMIT $3`,
		tenantID, string(domain.ImportJobStatusPending), limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending import jobs: %w", err)
	}
	defer rows.Close()
	return collectImportJobs(rows)
}

func (r *importJobRepository) List(ctx context.Context, tenantID uuid.UUID, filter domain.ImportHistoryFilter) ([]domain.ImportJob, int, error) {
	conditions := []string{"tenant_id = $1"}
	args := []any{tenantID}

	if filter.Status != nil {
		args = append(args, string(*filter.Status))
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)))
	}
	if filter.AreaID != nil {
		args = append(args, *filter.AreaID)
		conditions = append(conditions, fmt.Sprintf("area_id = $%d", len(args)))
	}
	if filter.From != nil {
		args = append(args, *filter.From)
		conditions = append(conditions, fmt.Sprintf("created_at >= $%d", len(args)))
	}
	if filter.To != nil {
		args = append(args, *filter.To)
		conditions = append(conditions, fmt.Sprintf("created_at <= $%d", len(args)))
	}

	where := strings.Join(conditions, " AND ")

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT count(*) FROM import_jobs WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count import jobs: %w", err)
	}

	pageSize := filter.PageSize
	if pageSize <= 0 {
		pageSize = 20
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	args = append(args, pageSize, (page-1)*pageSize)

	rows, err := r.pool.Query(
		ctx,
		fmt.Sprintf(`SELECT %s FROM import_jobs WHERE %s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
			importJobColumns, where, len(args)-1, len(args)),
		args...,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list import jobs: %w", err)
	}
	defer rows.Close()

	jobs, err := collectImportJobs(rows)
	if err != nil {
		return nil, 0, err
	}
	return jobs, total, nil
}

func (r *importJobRepository) Statistics(ctx context.Context, tenantID uuid.UUID) (domain.ImportStatistics, error) {
	var stats domain.ImportStatistics
	err := r.pool.QueryRow(
		ctx,
		`SELECT count(*),
			count(*) FILTER (WHERE status = 'completed'),
			count(*) FILTER (WHERE status = 'partial'),
			count(*) FILTER (WHERE status = 'failed'),
			COALESCE(sum(processed_rows), 0)
		 FROM import_jobs
		 WHERE tenant_id = $1`,
		tenantID,
	).Scan(&stats.TotalJobs, &stats.CompletedJobs, &stats.PartialJobs, &stats.FailedJobs, &stats.TotalRowsProcessed)
	if err != nil {
		return domain.ImportStatistics{}, fmt.Errorf("failed to aggregate import statistics: %w", err)
	}

	terminal := stats.CompletedJobs + stats.PartialJobs + stats.FailedJobs
	if terminal > 0 {
		stats.SuccessRate = float64(stats.CompletedJobs) / float64(terminal) * 100
	}
	return stats, nil
}

func (r *importJobRepository) MarkStale(ctx context.Context, olderThan time.Duration, errorSummary string) (int, error) {
	tag, err := r.pool.Exec(
		ctx,
		`UPDATE import_jobs
		 SET status = $1, error_summary = $2, completed_at = now()
		 WHERE status = $3 AND started_at < now() - $4::interval`,
		string(domain.ImportJobStatusFailed), errorSummary,
		string(domain.ImportJobStatusProcessing), olderThan.String(),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to reap stale import jobs: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func collectImportJobs(rows pgx.Rows) ([]domain.ImportJob, error) {
	jobs := []domain.ImportJob{}
	for rows.Next() {
		job, err := scanImportJob(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan import job: %w", err)
		}
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate import jobs: %w", err)
	}
	return jobs, nil
}

func scanImportJob(row pgx.Row) (domain.ImportJob, error) {
	var (
		job         domain.ImportJob
		areaID      pgtype.UUID
		status      string
		metadata    []byte
		startedAt   pgtype.Timestamptz
		completedAt pgtype.Timestamptz
	)
	if err := row.Scan(
		&job.ID,
		&job.TenantID,
		&areaID,
		&job.UserID,
		&job.ObjectPath,
		&job.Filename,
		&job.Checksum,
		&job.SizeBytes,
		&job.ContentType,
		&status,
		&job.TotalRows,
		&job.ProcessedRows,
		&job.SuccessRows,
		&job.ErrorRows,
		&metadata,
		&job.ErrorSummary,
		&job.CreatedAt,
		&startedAt,
		&completedAt,
	); err != nil {
		return domain.ImportJob{}, err
	}

	job.Status = domain.ImportJobStatus(status)
	if areaID.Valid {
		id := uuid.UUID(areaID.Bytes)
		job.AreaID = &id
	}
	if startedAt.Valid {
		job.StartedAt = &startedAt.Time
	}
	if completedAt.Valid {
		job.CompletedAt = &completedAt.Time
	}
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &job.Metadata); err != nil {
			return domain.ImportJob{}, fmt.Errorf("failed to decode job metadata: %w", err)
		}
	}
	return job, nil
}
