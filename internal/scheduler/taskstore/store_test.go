package taskstore

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/rendiffdev/visionguard/internal/scheduler/model"
)

func TestStoreSaveAndGetTask(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tasks.yaml")
	s, err := Open(path, 100)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	task := model.Task{ID: "t1", Name: "nightly", Kind: model.KindBatchImage, CronExpr: "0 2 * * *"}
	if err := s.SaveTask(task); err != nil {
		t.Fatalf("SaveTask: %v", err)
	}

	got, ok := s.GetTask("t1")
	if !ok {
		t.Fatal("GetTask: task not found")
	}
	if got.Name != "nightly" {
		t.Errorf("Name = %q, want %q", got.Name, "nightly")
	}
}

func TestStorePersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tasks.yaml")
	s, err := Open(path, 100)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := s.SaveTask(model.Task{ID: "t1", Name: "a"}); err != nil {
		t.Fatalf("SaveTask: %v", err)
	}

	reopened, err := Open(path, 100)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if _, ok := reopened.GetTask("t1"); !ok {
		t.Fatal("task did not survive reopen")
	}
}

func TestStoreSaveTaskReplacesExisting(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tasks.yaml")
	s, _ := Open(path, 100)

	s.SaveTask(model.Task{ID: "t1", Name: "first"})
	s.SaveTask(model.Task{ID: "t1", Name: "second"})

	if got := len(s.ListTasks()); got != 1 {
		t.Fatalf("ListTasks len = %d, want 1", got)
	}
	task, _ := s.GetTask("t1")
	if task.Name != "second" {
		t.Errorf("Name = %q, want %q", task.Name, "second")
	}
}

func TestStoreDeleteTask(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tasks.yaml")
	s, _ := Open(path, 100)
	s.SaveTask(model.Task{ID: "t1"})

	ok, err := s.DeleteTask("t1")
	if err != nil || !ok {
		t.Fatalf("DeleteTask: ok=%v err=%v", ok, err)
	}
	if _, ok := s.GetTask("t1"); ok {
		t.Error("task should be gone after delete")
	}

	ok, err = s.DeleteTask("missing")
	if err != nil || ok {
		t.Errorf("DeleteTask on missing id: ok=%v err=%v, want ok=false err=nil", ok, err)
	}
}

func TestStoreExecutionInsertedAtFront(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tasks.yaml")
	s, _ := Open(path, 100)

	first := model.Execution{ID: "e1", TaskID: "t1", StartedAt: time.Now().Add(-time.Minute)}
	second := model.Execution{ID: "e2", TaskID: "t1", StartedAt: time.Now()}
	s.SaveExecution(first)
	s.SaveExecution(second)

	list := s.ListExecutions("t1", 10)
	if len(list) != 2 {
		t.Fatalf("ListExecutions len = %d, want 2", len(list))
	}
	if list[0].ID != "e2" {
		t.Errorf("newest execution should be first, got %q", list[0].ID)
	}
}

func TestStoreExecutionCapTruncatesOldest(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tasks.yaml")
	s, _ := Open(path, 2)

	s.SaveExecution(model.Execution{ID: "e1", TaskID: "t1"})
	s.SaveExecution(model.Execution{ID: "e2", TaskID: "t1"})
	s.SaveExecution(model.Execution{ID: "e3", TaskID: "t1"})

	list := s.ListExecutions("", 10)
	if len(list) != 2 {
		t.Fatalf("executions len = %d, want 2 after cap truncation", len(list))
	}
	for _, e := range list {
		if e.ID == "e1" {
			t.Error("oldest execution should have been truncated")
		}
	}
}

func TestStoreGetExecution(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tasks.yaml")
	s, _ := Open(path, 100)
	s.SaveExecution(model.Execution{ID: "e1", TaskID: "t1"})

	if _, ok := s.GetExecution("e1"); !ok {
		t.Fatal("GetExecution: not found")
	}
	if _, ok := s.GetExecution("missing"); ok {
		t.Error("GetExecution on missing id should return ok=false")
	}
}
