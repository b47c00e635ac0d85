package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/rendiffdev/visionguard/internal/apperrors"
	"github.com/rendiffdev/visionguard/internal/frame"
	"github.com/rendiffdev/visionguard/internal/metrics"
	"github.com/rendiffdev/visionguard/internal/pipeline"
	"github.com/rendiffdev/visionguard/internal/scheduler/taskstore"
	"github.com/rendiffdev/visionguard/pkg/logger"
)

const manualFireSuffix = "_manual"

// Scheduler is the process-wide cron-driven batch job runner (§4.7). It
// owns the working copy of every Scheduled Task, mirrors mutations through
// to the task store, and dispatches fires to a bounded worker pool.
type Scheduler struct {
	store *taskstore.Store
	cron  *cron.Cron
	pool  *workerPool
	log   zerolog.Logger

	framePipeline *pipeline.FramePipeline
	videoPipeline *pipeline.VideoPipeline

	mu       sync.Mutex
	entryIDs map[string]cron.EntryID // task id -> registered cron entry
}

// New constructs a Scheduler backed by store, dispatching fires to fp/vp
// through a pool bounded at poolSize (default 3).
func New(store *taskstore.Store, fp *pipeline.FramePipeline, vp *pipeline.VideoPipeline, poolSize int) *Scheduler {
	log := logger.WithComponent(logger.New("info"), "scheduler")
	return &Scheduler{
		store:         store,
		cron:          cron.New(),
		pool:          newWorkerPool(poolSize, log),
		log:           log,
		framePipeline: fp,
		videoPipeline: vp,
		entryIDs:      make(map[string]cron.EntryID),
	}
}

// Start loads every enabled task from the store and registers its cron
// trigger, then starts the cron driver (§4.7 Startup).
func (s *Scheduler) Start() error {
	for _, t := range s.store.ListTasks() {
		if !t.Enabled {
			continue
		}
		if err := s.registerTrigger(t); err != nil {
			s.log.Warn().Str("task_id", t.ID).Err(err).Msg("failed to register cron trigger at startup")
		}
	}
	s.cron.Start()

	// Entry.Next is only computed once the driver is running, so the
	// startup next_run_at stamps happen after Start, not at registration.
	s.mu.Lock()
	ids := make(map[string]cron.EntryID, len(s.entryIDs))
	for taskID, id := range s.entryIDs {
		ids[taskID] = id
	}
	s.mu.Unlock()
	for taskID, id := range ids {
		s.stampNextRun(taskID, id)
	}
	return nil
}

// Stop halts the cron driver and waits for in-flight jobs to finish within
// a bound.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.pool.Stop(30 * time.Second)
}

func (s *Scheduler) registerTrigger(t Task) error {
	id, err := s.cron.AddFunc(t.CronExpr, func() { s.fire(t.ID) })
	if err != nil {
		return fmt.Errorf("invalid cron expression %q: %w", t.CronExpr, err)
	}
	s.mu.Lock()
	s.entryIDs[t.ID] = id
	s.mu.Unlock()
	s.stampNextRun(t.ID, id)
	return nil
}

func (s *Scheduler) unregisterTrigger(taskID string) {
	s.mu.Lock()
	id, ok := s.entryIDs[taskID]
	if ok {
		delete(s.entryIDs, taskID)
	}
	s.mu.Unlock()
	if ok {
		s.cron.Remove(id)
	}
}

func (s *Scheduler) stampNextRun(taskID string, id cron.EntryID) {
	entry := s.cron.Entry(id)
	if entry.ID == 0 {
		return
	}
	next := entry.Next
	if next.IsZero() {
		return
	}
	t, ok := s.store.GetTask(taskID)
	if !ok {
		return
	}
	t.NextRunAt = &next
	_ = s.store.SaveTask(t)
}

// fire is the cron callback: submit the job dispatch to the bounded pool
// so a slow job never blocks the cron driver's other triggers.
func (s *Scheduler) fire(taskID string) {
	s.pool.Submit(taskID, func() { s.runFire(taskID, uuid.NewString()) })
}

// runFire implements the per-fire protocol from §4.7: re-read the task,
// create and persist a running Execution under executionID, dispatch the
// kind-specific job, merge its result, and re-persist both records.
func (s *Scheduler) runFire(taskID, executionID string) {
	task, ok := s.store.GetTask(taskID)
	if !ok {
		s.log.Warn().Str("task_id", taskID).Msg("fired task no longer exists")
		return
	}

	execution := Execution{
		ID:        executionID,
		TaskID:    task.ID,
		TaskName:  task.Name,
		Status:    StatusRunning,
		StartedAt: time.Now(),
	}
	if err := s.store.SaveExecution(execution); err != nil {
		s.log.Error().Err(err).Str("task_id", taskID).Msg("failed to persist running execution")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Hour)
	defer cancel()

	result, err := s.dispatch(ctx, task, execution)

	finished := time.Now()
	execution.FinishedAt = &finished
	dur := finished.Sub(execution.StartedAt)
	execution.Duration = &dur

	if err != nil {
		execution.Status = StatusFailed
		execution.ErrorMessage = err.Error()
		metrics.RecordSchedulerJob(string(task.Kind), "failed")
		s.log.Error().Err(err).Str("task_id", taskID).Str("execution_id", execution.ID).Msg("scheduled job failed")
	} else {
		execution.Status = StatusCompleted
		execution.TotalItems = result.total
		execution.NormalCount = result.normal
		execution.AbnormalCount = result.abnormal
		execution.ErrorCount = result.errored
		execution.ReportPath = result.reportPath
		metrics.RecordSchedulerJob(string(task.Kind), "completed")
	}

	if err := s.store.SaveExecution(execution); err != nil {
		s.log.Error().Err(err).Str("execution_id", execution.ID).Msg("failed to persist finished execution")
	}

	task.LastRunAt = &finished
	if err := s.store.SaveTask(task); err != nil {
		s.log.Error().Err(err).Str("task_id", taskID).Msg("failed to stamp task last_run_at")
	}
	s.mu.Lock()
	id, ok := s.entryIDs[task.ID]
	s.mu.Unlock()
	if ok {
		s.stampNextRun(task.ID, id)
	}
}

func (s *Scheduler) dispatch(ctx context.Context, task Task, execution Execution) (jobResult, error) {
	switch task.Kind {
	case KindBatchImage:
		return runBatchImageJob(ctx, s.framePipeline, task, execution)
	case KindSampleImage:
		return runSampleImageJob(ctx, s.framePipeline, task, execution)
	case KindBatchVideo:
		return runBatchVideoJob(ctx, s.videoPipeline, task, execution)
	default:
		return jobResult{}, fmt.Errorf("unknown task kind %q", task.Kind)
	}
}

// CreateTask assigns a new id and persists t, registering its trigger if
// enabled.
func (s *Scheduler) CreateTask(t Task) (Task, error) {
	t.ID = uuid.NewString()
	t.CreatedAt = time.Now()
	t.UpdatedAt = t.CreatedAt
	if _, ok := frame.ProfileByName(t.Config.Profile); !ok {
		return Task{}, apperrors.UnknownProfile(t.Config.Profile)
	}
	if err := s.store.SaveTask(t); err != nil {
		return Task{}, err
	}
	if t.Enabled {
		if err := s.registerTrigger(t); err != nil {
			return Task{}, err
		}
	}
	return t, nil
}

// GetTask returns the task with id.
func (s *Scheduler) GetTask(id string) (Task, error) {
	t, ok := s.store.GetTask(id)
	if !ok {
		return Task{}, apperrors.NotFound("unknown task", id)
	}
	return t, nil
}

// ListTasks returns every task.
func (s *Scheduler) ListTasks() []Task {
	return s.store.ListTasks()
}

// UpdateTask replaces the stored task's mutable fields from updated,
// stamping UpdatedAt, and re-registers the cron trigger if the enabled
// state or cron expression changed (§4.7 UpdateTask).
func (s *Scheduler) UpdateTask(id string, updated Task) (Task, error) {
	existing, ok := s.store.GetTask(id)
	if !ok {
		return Task{}, apperrors.NotFound("unknown task", id)
	}

	triggerChanged := existing.CronExpr != updated.CronExpr || existing.Enabled != updated.Enabled

	existing.Name = updated.Name
	existing.Description = updated.Description
	existing.Kind = updated.Kind
	existing.CronExpr = updated.CronExpr
	existing.Enabled = updated.Enabled
	existing.Config = updated.Config
	existing.Output = updated.Output
	existing.UpdatedAt = time.Now()

	if err := s.store.SaveTask(existing); err != nil {
		return Task{}, err
	}

	if triggerChanged {
		s.unregisterTrigger(id)
		if existing.Enabled {
			if err := s.registerTrigger(existing); err != nil {
				return Task{}, err
			}
		}
	}
	return existing, nil
}

// DeleteTask unregisters id's trigger (if any) and removes it from the
// store.
func (s *Scheduler) DeleteTask(id string) error {
	ok, err := s.store.DeleteTask(id)
	if err != nil {
		return err
	}
	if !ok {
		return apperrors.NotFound("unknown task", id)
	}
	s.unregisterTrigger(id)
	return nil
}

// EnableTask turns a task on and registers its trigger.
func (s *Scheduler) EnableTask(id string) error {
	t, ok := s.store.GetTask(id)
	if !ok {
		return apperrors.NotFound("unknown task", id)
	}
	if t.Enabled {
		return nil
	}
	t.Enabled = true
	t.UpdatedAt = time.Now()
	if err := s.store.SaveTask(t); err != nil {
		return err
	}
	return s.registerTrigger(t)
}

// DisableTask turns a task off, unregisters its trigger, and clears
// NextRunAt.
func (s *Scheduler) DisableTask(id string) error {
	t, ok := s.store.GetTask(id)
	if !ok {
		return apperrors.NotFound("unknown task", id)
	}
	t.Enabled = false
	t.NextRunAt = nil
	t.UpdatedAt = time.Now()
	if err := s.store.SaveTask(t); err != nil {
		return err
	}
	s.unregisterTrigger(id)
	return nil
}

// RunTaskNow enqueues a one-off fire outside the cron schedule, deduped by
// "<task_id>_manual", and returns the execution id immediately rather than
// blocking for completion (§9/REDESIGN FLAGS: an enhancement over the
// source's synchronous None return). The caller may poll GetExecution with
// the returned id, or block on the returned completion channel.
func (s *Scheduler) RunTaskNow(taskID string) (executionID string, done <-chan struct{}, err error) {
	task, ok := s.store.GetTask(taskID)
	if !ok {
		return "", nil, apperrors.NotFound("unknown task", taskID)
	}

	executionID = fmt.Sprintf("%s%s", taskID, manualFireSuffix)
	execution := Execution{
		ID:        executionID,
		TaskID:    task.ID,
		TaskName:  task.Name,
		Status:    StatusPending,
		StartedAt: time.Now(),
	}
	if err := s.store.SaveExecution(execution); err != nil {
		return "", nil, err
	}

	doneCh := make(chan struct{})
	s.pool.Submit(taskID+manualFireSuffix, func() {
		defer close(doneCh)
		s.runFire(taskID, executionID)
	})
	return executionID, doneCh, nil
}

// GetExecutions returns up to limit executions, optionally filtered to one
// task.
func (s *Scheduler) GetExecutions(taskID string, limit int) []Execution {
	return s.store.ListExecutions(taskID, limit)
}

// GetExecution returns the execution with id.
func (s *Scheduler) GetExecution(id string) (Execution, error) {
	e, ok := s.store.GetExecution(id)
	if !ok {
		return Execution{}, apperrors.NotFound("unknown execution", id)
	}
	return e, nil
}
