package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/stratix/okrimport/internal/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

type importItemRepository struct {
	pool *pgxpool.Pool
}

// NewImportItemRepository wires a repository backed by pgxpool.
func NewImportItemRepository(pool *pgxpool.Pool) ImportItemRepository {
	return &importItemRepository{pool: pool}
}

func (r *importItemRepository) Insert(ctx context.Context, item domain.ImportJobItem) error {
	rawRow, err := json.Marshal(item.RawRow)
	if err != nil {
		return fmt.Errorf("failed to encode raw row: %w", err)
	}

	_, err = r.pool.Exec(
		ctx,
		`INSERT INTO import_job_items (job_id, row_number, status, error_message, raw_row,
			objective_id, initiative_id, activity_id)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		item.JobID,
		item.RowNumber,
		string(item.Status),
		item.ErrorMessage,
		rawRow,
		item.ObjectiveID,
		item.InitiativeID,
		item.ActivityID,
	)
	if err != nil {
		return fmt.Errorf("failed to insert import job item: %w", err)
	}
	return nil
}

func (r *importItemRepository) ListByJob(ctx context.Context, jobID uuid.UUID, status *domain.ImportItemStatus, limit, offset int) ([]domain.ImportJobItem, error) {
	if limit <= 0 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}

	query := `SELECT id, job_id, row_number, status, error_message, raw_row,
			objective_id, initiative_id, activity_id, created_at
		 FROM import_job_items
		 WHERE job_id = $1`
	args := []any{jobID}
	if status != nil {
		args = append(args, string(*status))
		query += fmt.Sprintf(" AND status = $%d", len(args))
	}
	args = append(args, limit, offset)
	query += fmt.Sprintf(" ORDER BY row_number ASC LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list import job items: %w", err)
	}
	defer rows.Close()
	return collectImportItems(rows)
}

func (r *importItemRepository) ErrorPreview(ctx context.Context, jobID uuid.UUID, limit int) ([]domain.ImportJobItem, error) {
	if limit <= 0 {
		limit = 5
	}
	rows, err := r.pool.Query(
		ctx,
		`SELECT id, job_id, row_number, status, error_message, raw_row,
			objective_id, initiative_id, activity_id, created_at
		 FROM import_job_items
		 WHERE job_id = $1 AND status = $2
		 ORDER BY row_number ASC
		 LIMIT $3`,
		jobID, string(domain.ImportItemStatusError), limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load error preview: %w", err)
	}
	defer rows.Close()
	return collectImportItems(rows)
}

func collectImportItems(rows pgx.Rows) ([]domain.ImportJobItem, error) {
	items := []domain.ImportJobItem{}
	for rows.Next() {
		var (
			item         domain.ImportJobItem
			status       string
			rawRow       []byte
			objectiveID  pgtype.UUID
			initiativeID pgtype.UUID
			activityID   pgtype.UUID
		)
		if err := rows.Scan(
			&item.ID,
			&item.JobID,
			&item.RowNumber,
			&status,
			&item.ErrorMessage,
			&rawRow,
			&objectiveID,
			&initiativeID,
			&activityID,
			&item.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan import job item: %w", err)
		}

		item.Status = domain.ImportItemStatus(status)
		if len(rawRow) > 0 {
			if err := json.Unmarshal(rawRow, &item.RawRow); err != nil {
				return nil, fmt.Errorf("failed to decode raw row: %w", err)
			}
		}
		if objectiveID.Valid {
			id := uuid.UUID(objectiveID.Bytes)
			item.ObjectiveID = &id
		}
		if initiativeID.Valid {
			id := uuid.UUID(initiativeID.Bytes)
			item.InitiativeID = &id
		}
		if activityID.Valid {
			id := uuid.UUID(activityID.Bytes)
			item.ActivityID = &id
		}

		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate import job items: %w", err)
	}
	return items, nil
}
