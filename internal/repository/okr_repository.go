package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/stratix/okrimport/internal/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

type okrRepository struct {
	pool *pgxpool.Pool
}

// NewOKRRepository wires a repository backed by pgxpool.
func NewOKRRepository(pool *pgxpool.Pool) OKRRepository {
	return &okrRepository{pool: pool}
}

func (r *okrRepository) FindAreaByName(ctx context.Context, tenantID uuid.UUID, name string) (*domain.Area, error) {
	var area domain.Area
	err := r.pool.QueryRow(
		ctx,
		`SELECT id, tenant_id, name, created_at
		 FROM areas
		 WHERE tenant_id = $1 AND lower(name) = lower($2)`,
		tenantID, name,
	).Scan(&area.ID, &area.TenantID, &area.Name, &area.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find area: %w", err)
	}
	return &area, nil
}

func (r *okrRepository) CreateArea(ctx context.Context, area domain.Area) (domain.Area, error) {
	err := r.pool.QueryRow(
		ctx,
		`INSERT INTO areas (tenant_id, name)
		 VALUES ($1, $2)
		 RETURNING id, tenant_id, name, created_at`,
		area.TenantID, area.Name,
	).Scan(&area.ID, &area.TenantID, &area.Name, &area.CreatedAt)
	if err != nil {
		return domain.Area{}, fmt.Errorf("failed to create area: %w", err)
	}
	return area, nil
}

func (r *okrRepository) FindObjectiveByTitle(ctx context.Context, tenantID uuid.UUID, title string) (*domain.Objective, error) {
	var (
		objective domain.Objective
		areaID    pgtype.UUID
	)
	err := r.pool.QueryRow(
		ctx,
		`SELECT id, tenant_id, area_id, title, description, created_at
		 FROM objectives
		 WHERE tenant_id = $1 AND lower(title) = lower($2)
		 LIMIT 1`,
		tenantID, title,
	).Scan(&objective.ID, &objective.TenantID, &areaID, &objective.Title, &objective.Description, &objective.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find objective: %w", err)
	}
	if areaID.Valid {
		id := uuid.UUID(areaID.Bytes)
		objective.AreaID = &id
	}
	return &objective, nil
}

func (r *okrRepository) CreateObjective(ctx context.Context, objective domain.Objective) (domain.Objective, error) {
	err := r.pool.QueryRow(
		ctx,
		`INSERT INTO objectives (tenant_id, area_id, title, description)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id, created_at`,
		objective.TenantID, objective.AreaID, objective.Title, objective.Description,
	).Scan(&objective.ID, &objective.CreatedAt)
	if err != nil {
		return domain.Objective{}, fmt.Errorf("failed to create objective: %w", err)
	}
	return objective, nil
}

func (r *okrRepository) FindInitiativeByTitle(ctx context.Context, tenantID, objectiveID uuid.UUID, title string) (*domain.Initiative, error) {
	var (
		initiative domain.Initiative
		areaID     pgtype.UUID
		status     string
		priority   string
		startDate  pgtype.Date
		endDate    pgtype.Date
	)
	err := r.pool.QueryRow(
		ctx,
		`SELECT id, tenant_id, objective_id, area_id, title, description, status, priority,
			progress, budget, spent, owner, start_date, end_date, created_at
		 FROM initiatives
		 WHERE tenant_id = $1 AND objective_id = $2 AND lower(title) = lower($3)
		 LIMIT 1`,
		tenantID, objectiveID, title,
	).Scan(
		&initiative.ID,
		&initiative.TenantID,
		&initiative.ObjectiveID,
		&areaID,
		&initiative.Title,
		&initiative.Description,
		&status,
		&priority,
		&initiative.Progress,
		&initiative.Budget,
		&initiative.Spent,
		&initiative.Owner,
		&startDate,
		&endDate,
		&initiative.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find initiative: %w", err)
	}

	initiative.Status = domain.InitiativeStatus(status)
	initiative.Priority = domain.InitiativePriority(priority)
	if areaID.Valid {
		id := uuid.UUID(areaID.Bytes)
		initiative.AreaID = &id
	}
	if startDate.Valid {
		initiative.StartDate = &startDate.Time
	}
	if endDate.Valid {
		initiative.EndDate = &endDate.Time
	}
	return &initiative, nil
}

func (r *okrRepository) CreateInitiative(ctx context.Context, initiative domain.Initiative) (domain.Initiative, error) {
	if initiative.Status == "" {
		initiative.Status = domain.InitiativeStatusNotStarted
	}
	if initiative.Priority == "" {
		initiative.Priority = domain.PriorityMedium
	}
	err := r.pool.QueryRow(
		ctx,
		`INSERT INTO initiatives (tenant_id, objective_id, area_id, title, description, status,
			priority, progress, budget, spent, owner, start_date, end_date)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		 RETURNING id, created_at`,
		initiative.TenantID,
		initiative.ObjectiveID,
		initiative.AreaID,
		initiative.Title,
		initiative.Description,
		string(initiative.Status),
		string(initiative.Priority),
		initiative.Progress,
		initiative.Budget,
		initiative.Spent,
		initiative.Owner,
		initiative.StartDate,
		initiative.EndDate,
	).Scan(&initiative.ID, &initiative.CreatedAt)
	if err != nil {
		return domain.Initiative{}, fmt.Errorf("failed to create initiative: %w", err)
	}
	return initiative, nil
}

func (r *okrRepository) CreateActivity(ctx context.Context, activity domain.Activity) (domain.Activity, error) {
	if activity.Status == "" {
		activity.Status = domain.InitiativeStatusNotStarted
	}
	err := r.pool.QueryRow(
		ctx,
		`INSERT INTO activities (tenant_id, initiative_id, title, status, due_date)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id, created_at`,
		activity.TenantID,
		activity.InitiativeID,
		activity.Title,
		string(activity.Status),
		activity.DueDate,
	).Scan(&activity.ID, &activity.CreatedAt)
	if err != nil {
		return domain.Activity{}, fmt.Errorf("failed to create activity: %w", err)
	}
	return activity, nil
}

func (r *okrRepository) CreateSubtask(ctx context.Context, subtask domain.Subtask) (domain.Subtask, error) {
	err := r.pool.QueryRow(
		ctx,
		`INSERT INTO subtasks (tenant_id, activity_id, title, done)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id, created_at`,
		subtask.TenantID,
		subtask.ActivityID,
		subtask.Title,
		subtask.Done,
	).Scan(&subtask.ID, &subtask.CreatedAt)
	if err != nil {
		return domain.Subtask{}, fmt.Errorf("failed to create subtask: %w", err)
	}
	return subtask, nil
}
