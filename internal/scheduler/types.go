// Package scheduler implements the periodic task scheduler (§4.7): a
// process-wide service managing a persisted list of Scheduled Tasks, firing
// batch/sample/video jobs against directories on a cron schedule through a
// bounded worker pool.
package scheduler

import "github.com/rendiffdev/visionguard/internal/scheduler/model"

// Re-exported so callers of this package never need to import the model
// subpackage directly; it exists only to break the scheduler<->taskstore
// import cycle.
type (
	Task            = model.Task
	Execution       = model.Execution
	TaskConfig      = model.TaskConfig
	TaskOutput      = model.TaskOutput
	TaskKind        = model.TaskKind
	ExecutionStatus = model.ExecutionStatus
)

const (
	KindBatchImage  = model.KindBatchImage
	KindSampleImage = model.KindSampleImage
	KindBatchVideo  = model.KindBatchVideo
)

const (
	StatusPending   = model.StatusPending
	StatusRunning   = model.StatusRunning
	StatusCompleted = model.StatusCompleted
	StatusFailed    = model.StatusFailed
	StatusCancelled = model.StatusCancelled
)

// jobResult is what a kind-specific job hands back to the fire loop to
// merge into the Execution record.
type jobResult struct {
	total, normal, abnormal, errored int
	reportPath                       string
}
