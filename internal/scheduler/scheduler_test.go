package scheduler

import (
	"path/filepath"
	"testing"

	"github.com/rendiffdev/visionguard/internal/detectors"
	"github.com/rendiffdev/visionguard/internal/frame"
	"github.com/rendiffdev/visionguard/internal/pipeline"
	"github.com/rendiffdev/visionguard/internal/registry"
	"github.com/rendiffdev/visionguard/internal/scheduler/taskstore"
	"github.com/rendiffdev/visionguard/internal/videodetect"
)

func newTestScheduler(t *testing.T) *Scheduler {
	t.Helper()
	store, err := taskstore.Open(filepath.Join(t.TempDir(), "tasks.yaml"), 100)
	if err != nil {
		t.Fatalf("taskstore.Open: %v", err)
	}

	reg := registry.New()
	detectors.RegisterAll(reg, nil)
	fp := pipeline.NewFramePipeline(reg, frame.DefaultProfile())
	vp := pipeline.NewVideoPipeline(videodetect.New(), frame.DefaultProfile())

	return New(store, fp, vp, 2)
}

func TestSchedulerCreateTaskRejectsUnknownProfile(t *testing.T) {
	s := newTestScheduler(t)
	_, err := s.CreateTask(Task{Name: "bad", Kind: KindBatchImage, CronExpr: "* * * * *", Config: TaskConfig{Profile: "does-not-exist"}})
	if err == nil {
		t.Fatal("CreateTask with an unknown profile should error")
	}
}

func TestSchedulerTaskLifecycle(t *testing.T) {
	s := newTestScheduler(t)

	created, err := s.CreateTask(Task{
		Name:     "nightly batch",
		Kind:     KindBatchImage,
		CronExpr: "0 2 * * *",
		Enabled:  false,
		Config:   TaskConfig{InputPath: t.TempDir(), Profile: "normal", Level: "standard"},
		Output:   TaskOutput{Path: t.TempDir(), Formats: []string{"json"}},
	})
	if err != nil {
		t.Fatalf("CreateTask: %v", err)
	}
	if created.ID == "" {
		t.Fatal("CreateTask should assign a non-empty id")
	}

	got, err := s.GetTask(created.ID)
	if err != nil {
		t.Fatalf("GetTask: %v", err)
	}
	if got.Name != "nightly batch" {
		t.Errorf("Name = %q, want %q", got.Name, "nightly batch")
	}

	if err := s.EnableTask(created.ID); err != nil {
		t.Fatalf("EnableTask: %v", err)
	}
	got, _ = s.GetTask(created.ID)
	if !got.Enabled {
		t.Error("task should be enabled after EnableTask")
	}

	if err := s.DisableTask(created.ID); err != nil {
		t.Fatalf("DisableTask: %v", err)
	}
	got, _ = s.GetTask(created.ID)
	if got.Enabled {
		t.Error("task should be disabled after DisableTask")
	}
	if got.NextRunAt != nil {
		t.Error("NextRunAt should be cleared after DisableTask")
	}

	updated := got
	updated.Name = "renamed"
	if _, err := s.UpdateTask(created.ID, updated); err != nil {
		t.Fatalf("UpdateTask: %v", err)
	}
	got, _ = s.GetTask(created.ID)
	if got.Name != "renamed" {
		t.Errorf("Name after UpdateTask = %q, want %q", got.Name, "renamed")
	}

	if err := s.DeleteTask(created.ID); err != nil {
		t.Fatalf("DeleteTask: %v", err)
	}
	if _, err := s.GetTask(created.ID); err == nil {
		t.Error("GetTask should error after DeleteTask")
	}
}

func TestSchedulerRunTaskNowOnEmptyDirectory(t *testing.T) {
	s := newTestScheduler(t)

	task, err := s.CreateTask(Task{
		Name:     "sample run",
		Kind:     KindBatchImage,
		CronExpr: "0 2 * * *",
		Config:   TaskConfig{InputPath: t.TempDir(), Profile: "normal", Level: "standard"},
		Output:   TaskOutput{Path: t.TempDir(), Formats: []string{"json"}},
	})
	if err != nil {
		t.Fatalf("CreateTask: %v", err)
	}

	executionID, done, err := s.RunTaskNow(task.ID)
	if err != nil {
		t.Fatalf("RunTaskNow: %v", err)
	}
	<-done

	execution, err := s.GetExecution(executionID)
	if err != nil {
		t.Fatalf("GetExecution: %v", err)
	}
	if execution.Status != StatusCompleted {
		t.Errorf("Status = %v, want %v (error: %s)", execution.Status, StatusCompleted, execution.ErrorMessage)
	}
	if execution.TotalItems != 0 {
		t.Errorf("TotalItems = %d, want 0 for an empty input directory", execution.TotalItems)
	}
}

func TestSchedulerRunTaskNowDedupesExecutionID(t *testing.T) {
	s := newTestScheduler(t)
	task, _ := s.CreateTask(Task{
		Name:     "dedup",
		Kind:     KindBatchImage,
		CronExpr: "0 2 * * *",
		Config:   TaskConfig{InputPath: t.TempDir(), Profile: "normal", Level: "standard"},
		Output:   TaskOutput{Path: t.TempDir(), Formats: []string{"json"}},
	})

	id1, done1, err := s.RunTaskNow(task.ID)
	if err != nil {
		t.Fatalf("RunTaskNow: %v", err)
	}
	<-done1

	id2, done2, err := s.RunTaskNow(task.ID)
	if err != nil {
		t.Fatalf("RunTaskNow (second): %v", err)
	}
	<-done2

	if id1 != id2 {
		t.Errorf("manual fire execution ids should be deterministic: got %q then %q", id1, id2)
	}
	if got := len(s.GetExecutions(task.ID, 100)); got != 1 {
		t.Errorf("manual fires should dedup to one execution record, got %d", got)
	}
}
