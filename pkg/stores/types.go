package stores

import (
	"context"
	"time"
)

// RunStatus represents the status of a playbook run
type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
)

// TaskStatus represents the outcome of one task on one host
type TaskStatus string

const (
	TaskStatusOK      TaskStatus = "ok"
	TaskStatusChanged TaskStatus = "changed"
	TaskStatusFailed  TaskStatus = "failed"
	TaskStatusSkipped TaskStatus = "skipped"
	TaskStatusIgnored TaskStatus = "ignored"
)

// Run represents one playbook execution
type Run struct {
	ID          string     `json:"id"`
	Playbook    string     `json:"playbook"`
	Status      RunStatus  `json:"status"`
	CheckMode   bool       `json:"check_mode"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Error       *string    `json:"error,omitempty"`
	Metadata    string     `json:"metadata"` // JSON blob
}

// TaskRecord is the result of one task on one host
type TaskRecord struct {
	ID         string        `json:"id"`
	RunID      string        `json:"run_id"`
	Seq        int           `json:"seq"`
	Play       string        `json:"play,omitempty"`
	Host       string        `json:"host"`
	Task       string        `json:"task"`
	Module     string        `json:"module"`
	Status     TaskStatus    `json:"status"`
	Changed    bool          `json:"changed"`
	Operations string        `json:"operations"` // JSON array
	Result     string        `json:"result"`     // JSON blob
	Error      *string       `json:"error,omitempty"`
	StartedAt  time.Time     `json:"started_at"`
	Duration   time.Duration `json:"duration"`
}

// Journal defines the persistence of runs and task results
type Journal interface {
	// Lifecycle
	Init(ctx context.Context) error
	Close() error
	Migrate(ctx context.Context) error

	// Run operations
	CreateRun(ctx context.Context, run *Run) error
	GetRun(ctx context.Context, id string) (*Run, error)
	FinishRun(ctx context.Context, id string, status RunStatus, errMsg *string) error
	ListRuns(ctx context.Context, limit, offset int) ([]*Run, error)
	DeleteRunsBefore(ctx context.Context, before time.Time) (int64, error)

	// Task operations
	AppendTask(ctx context.Context, rec *TaskRecord) error
	ListTasks(ctx context.Context, runID string) ([]*TaskRecord, error)

	// Utility
	HealthCheck(ctx context.Context) error
}
