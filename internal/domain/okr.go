package domain

import (
	"time"

	"github.com/google/uuid"
)

// InitiativeStatus enumerates accepted initiative/activity states.
type InitiativeStatus string

const (
	InitiativeStatusNotStarted InitiativeStatus = "not_started"
	InitiativeStatusInProgress InitiativeStatus = "in_progress"
	InitiativeStatusAtRisk     InitiativeStatus = "at_risk"
	InitiativeStatusCompleted  InitiativeStatus = "completed"
	InitiativeStatusCancelled  InitiativeStatus = "cancelled"
)

// InitiativePriority enumerates accepted priorities.
type InitiativePriority string

const (
	PriorityLow      InitiativePriority = "low"
	PriorityMedium   InitiativePriority = "medium"
	PriorityHigh     InitiativePriority = "high"
	PriorityCritical InitiativePriority = "critical"
)

// Area is an organizational unit owning objectives and initiatives.
type Area struct {
	ID        uuid.UUID `json:"id"`
	TenantID  uuid.UUID `json:"tenant_id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// Objective is a top level OKR goal scoped to an area.
type Objective struct {
	ID          uuid.UUID  `json:"id"`
	TenantID    uuid.UUID  `json:"tenant_id"`
	AreaID      *uuid.UUID `json:"area_id,omitempty"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

// Initiative is a key result / workstream under an objective.
type Initiative struct {
	ID          uuid.UUID          `json:"id"`
	TenantID    uuid.UUID          `json:"tenant_id"`
	ObjectiveID uuid.UUID          `json:"objective_id"`
	AreaID      *uuid.UUID         `json:"area_id,omitempty"`
	Title       string             `json:"title"`
	Description string             `json:"description,omitempty"`
	Status      InitiativeStatus   `json:"status"`
	Priority    InitiativePriority `json:"priority"`
	Progress    float64            `json:"progress"`
	Budget      *float64           `json:"budget,omitempty"`
	Spent       *float64           `json:"spent,omitempty"`
	Owner       string             `json:"owner,omitempty"`
	StartDate   *time.Time         `json:"start_date,omitempty"`
	EndDate     *time.Time         `json:"end_date,omitempty"`
	CreatedAt   time.Time          `json:"created_at"`
}

// Activity is a concrete task under an initiative.
type Activity struct {
	ID           uuid.UUID        `json:"id"`
	TenantID     uuid.UUID        `json:"tenant_id"`
	InitiativeID uuid.UUID        `json:"initiative_id"`
	Title        string           `json:"title"`
	Status       InitiativeStatus `json:"status"`
	DueDate      *time.Time       `json:"due_date,omitempty"`
	CreatedAt    time.Time        `json:"created_at"`
}

// Subtask is a checklist entry under an activity.
type Subtask struct {
	ID         uuid.UUID `json:"id"`
	TenantID   uuid.UUID `json:"tenant_id"`
	ActivityID uuid.UUID `json:"activity_id"`
	Title      string    `json:"title"`
	Done       bool      `json:"done"`
	CreatedAt  time.Time `json:"created_at"`
}

// ValidInitiativeStatus reports whether raw names a known status.
func ValidInitiativeStatus(raw string) bool {
	switch InitiativeStatus(raw) {
	case InitiativeStatusNotStarted, InitiativeStatusInProgress,
		InitiativeStatusAtRisk, InitiativeStatusCompleted, InitiativeStatusCancelled:
		return true
	}
	return false
}

// ValidInitiativePriority reports whether raw names a known priority.
func ValidInitiativePriority(raw string) bool {
	switch InitiativePriority(raw) {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityCritical:
		return true
	}
	return false
}
