package scheduler

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// reportFile is the normative JSON job-output shape from §6.
type reportFile struct {
	TaskID      string          `json:"task_id"`
	TaskName    string          `json:"task_name"`
	ExecutionID string          `json:"execution_id"`
	Timestamp   time.Time       `json:"timestamp"`
	Summary     reportSummary   `json:"summary"`
	Results     []any           `json:"results"`
}

type reportSummary struct {
	Total         int `json:"total"`
	NormalCount   int `json:"normal_count"`
	AbnormalCount int `json:"abnormal_count"`
}

// writeReport serializes results (a mix of frame.Diagnosis / frame.VideoDiagnosis
// values boxed as any) to <dir>/batch_<task_id>_<timestamp>.json and returns
// the path written.
func writeReport(dir string, task Task, execution Execution, results []any, normal, abnormal int) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create report dir: %w", err)
	}

	stamp := execution.StartedAt.UTC().Format("20060102T150405Z")
	name := fmt.Sprintf("batch_%s_%s.json", task.ID, stamp)
	path := filepath.Join(dir, name)

	rf := reportFile{
		TaskID:      task.ID,
		TaskName:    task.Name,
		ExecutionID: execution.ID,
		Timestamp:   time.Now(),
		Summary: reportSummary{
			Total:         len(results),
			NormalCount:   normal,
			AbnormalCount: abnormal,
		},
		Results: results,
	}

	data, err := json.MarshalIndent(rf, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal report: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write report: %w", err)
	}
	return path, nil
}
