// Package model defines the Scheduler's persistent record types — Task and
// Execution — shared between internal/scheduler and
// internal/scheduler/taskstore. Split out from the scheduler package itself
// so the store can depend on the record shapes without the scheduler
// package depending on the store (it's the other way around).
package model

import "time"

// TaskKind selects which job a Scheduled Task's cron fire dispatches to.
type TaskKind string

const (
	KindBatchImage  TaskKind = "batch-image"
	KindSampleImage TaskKind = "sample-image"
	KindBatchVideo  TaskKind = "batch-video"
)

// ExecutionStatus is a Task Execution's lifecycle state.
type ExecutionStatus string

const (
	StatusPending   ExecutionStatus = "pending"
	StatusRunning   ExecutionStatus = "running"
	StatusCompleted ExecutionStatus = "completed"
	StatusFailed    ExecutionStatus = "failed"
	StatusCancelled ExecutionStatus = "cancelled"
)

// TaskConfig is the input side of a Scheduled Task's kind-specific job: a
// directory to walk, a filename glob, a recursion flag, a profile/level
// pair, and (for sample-image tasks only) a sample rate and cap. Typed per
// §9's redesign note rather than an open config map, while preserving the
// original key names as field names for continuity with the report shape.
type TaskConfig struct {
	InputPath string `yaml:"input_path"`
	Pattern   string `yaml:"pattern"` // filename glob, default "*"
	Recursive bool   `yaml:"recursive"`
	Profile   string `yaml:"profile"`
	Level     string `yaml:"level"`

	SampleRate float64 `yaml:"sample_rate,omitempty"` // sample-image only
	MaxSamples int     `yaml:"max_samples,omitempty"` // sample-image only
}

// TaskOutput is the output side: where and in what formats a job's report
// is written, and how long to retain it.
type TaskOutput struct {
	Path          string   `yaml:"path"`
	Formats       []string `yaml:"formats"` // currently only "json" is implemented
	RetentionDays int      `yaml:"retention_days"`
}

// Task is a persistent Scheduled Task record (§3).
type Task struct {
	ID          string     `yaml:"id"`
	Name        string     `yaml:"name"`
	Description string     `yaml:"description"`
	Kind        TaskKind   `yaml:"kind"`
	CronExpr    string     `yaml:"cron_expr"`
	Enabled     bool       `yaml:"enabled"`
	Config      TaskConfig `yaml:"config"`
	Output      TaskOutput `yaml:"output"`

	CreatedAt time.Time  `yaml:"created_at"`
	UpdatedAt time.Time  `yaml:"updated_at"`
	LastRunAt *time.Time `yaml:"last_run_at,omitempty"`
	NextRunAt *time.Time `yaml:"next_run_at,omitempty"`
}

// Execution is one invocation record of a Task (§3).
type Execution struct {
	ID       string `yaml:"id"`
	TaskID   string `yaml:"task_id"`
	TaskName string `yaml:"task_name"`

	Status ExecutionStatus `yaml:"status"`

	StartedAt  time.Time      `yaml:"started_at"`
	FinishedAt *time.Time     `yaml:"finished_at,omitempty"`
	Duration   *time.Duration `yaml:"duration,omitempty"`

	TotalItems    int `yaml:"total_items"`
	NormalCount   int `yaml:"normal_count"`
	AbnormalCount int `yaml:"abnormal_count"`
	ErrorCount    int `yaml:"error_count"`

	ReportPath   string `yaml:"report_path,omitempty"`
	ErrorMessage string `yaml:"error_message,omitempty"`
}
