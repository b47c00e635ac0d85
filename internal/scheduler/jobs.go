package scheduler

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"os"
	"path/filepath"

	"github.com/rendiffdev/visionguard/internal/frame"
	"github.com/rendiffdev/visionguard/internal/pipeline"
)

// listFiles walks cfg.InputPath (recursively if cfg.Recursive) collecting
// paths whose base name matches cfg.Pattern (default "*" — everything).
func listFiles(cfg TaskConfig) ([]string, error) {
	pattern := cfg.Pattern
	if pattern == "" {
		pattern = "*"
	}

	var out []string
	if !cfg.Recursive {
		entries, err := os.ReadDir(cfg.InputPath)
		if err != nil {
			return nil, fmt.Errorf("read directory %s: %w", cfg.InputPath, err)
		}
		for _, e := range entries {
			if e.IsDir() {
				continue
			}
			if ok, _ := filepath.Match(pattern, e.Name()); ok {
				out = append(out, filepath.Join(cfg.InputPath, e.Name()))
			}
		}
		return out, nil
	}

	err := filepath.Walk(cfg.InputPath, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		if ok, _ := filepath.Match(pattern, filepath.Base(path)); ok {
			out = append(out, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk directory %s: %w", cfg.InputPath, err)
	}
	return out, nil
}

// sampleFiles chooses a uniform random subset of files of size
// min(ceil(sampleRate * |files|), maxSamples), at least 1, per §4.7's
// sample-image job semantics.
func sampleFiles(files []string, sampleRate float64, maxSamples int) []string {
	if len(files) == 0 {
		return nil
	}
	if sampleRate <= 0 {
		sampleRate = 0.1
	}
	if maxSamples <= 0 {
		maxSamples = len(files)
	}

	n := int(math.Ceil(sampleRate * float64(len(files))))
	if n < 1 {
		n = 1
	}
	if n > maxSamples {
		n = maxSamples
	}
	if n > len(files) {
		n = len(files)
	}

	shuffled := make([]string, len(files))
	copy(shuffled, files)
	rand.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })
	return shuffled[:n]
}

// runBatchImageJob runs the Frame Pipeline over every matching file in
// task.Config.InputPath and writes a JSON report.
func runBatchImageJob(ctx context.Context, fp *pipeline.FramePipeline, task Task, execution Execution) (jobResult, error) {
	files, err := listFiles(task.Config)
	if err != nil {
		return jobResult{}, err
	}
	return runImageFiles(ctx, fp, task, execution, files)
}

// runSampleImageJob is runBatchImageJob's sampled variant.
func runSampleImageJob(ctx context.Context, fp *pipeline.FramePipeline, task Task, execution Execution) (jobResult, error) {
	files, err := listFiles(task.Config)
	if err != nil {
		return jobResult{}, err
	}
	sampled := sampleFiles(files, task.Config.SampleRate, task.Config.MaxSamples)
	return runImageFiles(ctx, fp, task, execution, sampled)
}

func runImageFiles(ctx context.Context, fp *pipeline.FramePipeline, task Task, execution Execution, files []string) (jobResult, error) {
	level, ok := frame.LevelFromString(task.Config.Level)
	if !ok {
		level = frame.LevelStandard
	}

	var results []any
	var normal, abnormal, errored int
	for _, path := range files {
		if ctx.Err() != nil {
			// Keep total = normal + abnormal + error even when cut short.
			errored++
			continue
		}
		f, err := frame.LoadFile(path)
		if err != nil {
			errored++
			continue
		}
		diag, err := fp.Diagnose(ctx, f, level, nil, path, path)
		f.Close()
		if err != nil {
			errored++
			continue
		}
		results = append(results, diag)
		if diag.IsAbnormal {
			abnormal++
		} else {
			normal++
		}
	}

	path, err := writeReport(task.Output.Path, task, execution, results, normal, abnormal)
	if err != nil {
		return jobResult{}, err
	}
	return jobResult{total: len(files), normal: normal, abnormal: abnormal, errored: errored, reportPath: path}, nil
}

// runBatchVideoJob runs the Video Pipeline over every matching video file.
func runBatchVideoJob(ctx context.Context, vp *pipeline.VideoPipeline, task Task, execution Execution) (jobResult, error) {
	files, err := listFiles(task.Config)
	if err != nil {
		return jobResult{}, err
	}

	var results []any
	var normal, abnormal, errored int
	for _, path := range files {
		if ctx.Err() != nil {
			errored++
			continue
		}
		diag, err := vp.Diagnose(ctx, path, nil)
		if err != nil {
			errored++
			continue
		}
		results = append(results, diag)
		if diag.IsAbnormal {
			abnormal++
		} else {
			normal++
		}
	}

	reportPath, err := writeReport(task.Output.Path, task, execution, results, normal, abnormal)
	if err != nil {
		return jobResult{}, err
	}
	return jobResult{total: len(files), normal: normal, abnormal: abnormal, errored: errored, reportPath: reportPath}, nil
}
