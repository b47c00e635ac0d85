// Package taskstore persists the Scheduler's Task and Execution records as
// one YAML document (§6: "one YAML-serializable document with top-level
// arrays tasks[] and executions[]"). All mutations are serialized through a
// single mutex-guarded writer (§9's single-writer invariant); writers
// replace the document atomically via write-temp-then-rename.
package taskstore

import (
	"os"
	"path/filepath"
	"sort"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/rendiffdev/visionguard/internal/scheduler/model"
)

// document is the on-disk shape: {tasks: [...], executions: [...]}.
type document struct {
	Tasks      []model.Task      `yaml:"tasks"`
	Executions []model.Execution `yaml:"executions"`
}

// Store is a file-backed, mutex-guarded Task/Execution document. A single
// Store instance must own a given path; the lock it takes is in-process
// only; §6's "writers must present a consistent snapshot on every read" is
// satisfied by holding the lock across the whole read-modify-write.
type Store struct {
	mu   sync.Mutex
	path string
	doc  document

	// executionCap bounds the executions slice; oldest entries are
	// truncated on overflow (§4.7: "Execution history is capped at 1000
	// records; oldest removed on overflow").
	executionCap int
}

// Open loads path if it exists, or starts an empty document if it doesn't.
// executionCap <= 0 defaults to 1000.
func Open(path string, executionCap int) (*Store, error) {
	if executionCap <= 0 {
		executionCap = 1000
	}
	s := &Store{path: path, executionCap: executionCap}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, err
	}
	if err := yaml.Unmarshal(data, &s.doc); err != nil {
		return nil, err
	}
	return s, nil
}

// save writes the current document atomically: marshal, write to a temp
// file in the same directory, then os.Rename into place.
func (s *Store) save() error {
	data, err := yaml.Marshal(s.doc)
	if err != nil {
		return err
	}
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".taskstore-*.tmp")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}
	return os.Rename(tmpPath, s.path)
}

// SaveTask inserts or replaces (by id) a Task and persists the document.
func (s *Store) SaveTask(t model.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, existing := range s.doc.Tasks {
		if existing.ID == t.ID {
			s.doc.Tasks[i] = t
			return s.save()
		}
	}
	s.doc.Tasks = append(s.doc.Tasks, t)
	return s.save()
}

// GetTask returns a copy of the task with id, if present.
func (s *Store) GetTask(id string) (model.Task, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.doc.Tasks {
		if t.ID == id {
			return t, true
		}
	}
	return model.Task{}, false
}

// ListTasks returns a snapshot copy of every task.
func (s *Store) ListTasks() []model.Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Task, len(s.doc.Tasks))
	copy(out, s.doc.Tasks)
	return out
}

// DeleteTask removes the task with id, if present, and persists.
func (s *Store) DeleteTask(id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, t := range s.doc.Tasks {
		if t.ID == id {
			s.doc.Tasks = append(s.doc.Tasks[:i], s.doc.Tasks[i+1:]...)
			return true, s.save()
		}
	}
	return false, nil
}

// SaveExecution inserts or replaces (by id) an Execution. New executions
// are inserted at the front (§'s "newest-execution-first ordering", ported
// from the original source's executions.insert(0, ...)); the list is then
// truncated to executionCap, dropping the oldest (tail) entries.
func (s *Store) SaveExecution(e model.Execution) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, existing := range s.doc.Executions {
		if existing.ID == e.ID {
			s.doc.Executions[i] = e
			return s.save()
		}
	}
	s.doc.Executions = append([]model.Execution{e}, s.doc.Executions...)
	if len(s.doc.Executions) > s.executionCap {
		s.doc.Executions = s.doc.Executions[:s.executionCap]
	}
	return s.save()
}

// GetExecution returns a copy of the execution with id, if present.
func (s *Store) GetExecution(id string) (model.Execution, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.doc.Executions {
		if e.ID == id {
			return e, true
		}
	}
	return model.Execution{}, false
}

// ListExecutions returns up to limit executions (0 means "all"), optionally
// filtered to one task id, newest first.
func (s *Store) ListExecutions(taskID string, limit int) []model.Execution {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []model.Execution
	for _, e := range s.doc.Executions {
		if taskID != "" && e.TaskID != taskID {
			continue
		}
		out = append(out, e)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].StartedAt.After(out[j].StartedAt) })
	return out
}
