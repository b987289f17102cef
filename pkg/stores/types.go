package stores

import (
	"context"
	"time"
)

// RunStatus represents the status of a plan run.
type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
	RunStatusCancelled RunStatus = "cancelled"
)

// Run is one recorded plan execution.
type Run struct {
	// ID is the engine-generated plan ID.
	ID string `json:"id"`

	// Status is the run's current status.
	Status RunStatus `json:"status"`

	// StepCount is the number of steps in the plan.
	StepCount int `json:"step_count"`

	// Summary is the joined step outcomes for a successful run.
	Summary *string `json:"summary,omitempty"`

	// Error is the surfaced failure for an unsuccessful run.
	Error *string `json:"error,omitempty"`

	// StartedAt is when the run began.
	StartedAt time.Time `json:"started_at"`

	// CompletedAt is when the run reached a terminal status.
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// Event is one append-only telemetry event persisted for a run.
type Event struct {
	ID        int64     `json:"id"`
	RunID     string    `json:"run_id"`
	StepIndex int       `json:"step_index"`
	Type      string    `json:"type"`
	Action    *string   `json:"action,omitempty"`
	Level     string    `json:"level"`
	Message   string    `json:"message"`
	Data      *string   `json:"data,omitempty"` // JSON blob
	Timestamp time.Time `json:"timestamp"`
}

// Store defines the persistence layer for run history.
type Store interface {
	// Lifecycle
	Init(ctx context.Context) error
	Close() error
	Migrate(ctx context.Context) error

	// Run operations
	CreateRun(ctx context.Context, run *Run) error
	UpdateRunStatus(ctx context.Context, id string, status RunStatus, summary, errMsg *string) error
	GetRun(ctx context.Context, id string) (*Run, error)
	ListRuns(ctx context.Context, limit, offset int) ([]*Run, error)
	DeleteRun(ctx context.Context, id string) error

	// Event operations
	AppendEvent(ctx context.Context, event *Event) error
	ListEvents(ctx context.Context, runID string, limit, offset int) ([]*Event, error)

	// Utility
	HealthCheck(ctx context.Context) error
}
