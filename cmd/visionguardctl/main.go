// Command visionguardctl is the engine's operator CLI: manage Scheduled
// Tasks against the on-disk task store, and run a one-off detection pass
// against a single image file, without needing a running daemon.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rendiffdev/visionguard/internal/baseline"
	"github.com/rendiffdev/visionguard/internal/config"
	"github.com/rendiffdev/visionguard/internal/detectors"
	"github.com/rendiffdev/visionguard/internal/frame"
	"github.com/rendiffdev/visionguard/internal/pipeline"
	"github.com/rendiffdev/visionguard/internal/registry"
	"github.com/rendiffdev/visionguard/internal/scheduler"
	"github.com/rendiffdev/visionguard/internal/scheduler/taskstore"
	"github.com/rendiffdev/visionguard/internal/videodetect"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	var err error
	switch os.Args[1] {
	case "task":
		err = runTask(os.Args[2:])
	case "detect":
		err = runDetect(os.Args[2:])
	default:
		usage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "visionguardctl: %v\n", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `usage:
  visionguardctl task create -name NAME -kind KIND -cron EXPR -input PATH -output PATH [-profile NAME] [-level LEVEL] [-recursive] [-pattern GLOB]
  visionguardctl task list
  visionguardctl task run-now -id TASK_ID
  visionguardctl task enable -id TASK_ID
  visionguardctl task disable -id TASK_ID
  visionguardctl detect -file PATH [-profile NAME] [-level LEVEL]`)
}

func openStore() (*scheduler.Scheduler, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load configuration: %w", err)
	}
	profile, ok := frame.ProfileByName(cfg.DefaultProfile)
	if !ok {
		return nil, fmt.Errorf("unknown default profile %q", cfg.DefaultProfile)
	}

	baselineSvc, err := baseline.NewService(cfg.BaselinesDir)
	if err != nil {
		return nil, fmt.Errorf("open baseline service: %w", err)
	}
	reg := registry.New()
	detectors.RegisterAll(reg, baselineSvc)
	fp := pipeline.NewFramePipeline(reg, profile)
	vp := pipeline.NewVideoPipeline(videodetect.New(), profile)

	storePath := filepath.Join(cfg.TaskStoreDir, "tasks.yaml")
	store, err := taskstore.Open(storePath, cfg.ExecutionHistoryCap)
	if err != nil {
		return nil, fmt.Errorf("open task store at %s: %w", storePath, err)
	}
	// A control-plane Scheduler never starts its cron driver; it only
	// mutates the store and, for run-now, dispatches one fire through a
	// single-slot pool sized for this one-shot invocation.
	return scheduler.New(store, fp, vp, 1), nil
}

func runTask(args []string) error {
	if len(args) == 0 {
		usage()
		return fmt.Errorf("missing task subcommand")
	}

	sched, err := openStore()
	if err != nil {
		return err
	}

	switch args[0] {
	case "create":
		fs := flag.NewFlagSet("task create", flag.ExitOnError)
		name := fs.String("name", "", "task name")
		kind := fs.String("kind", "", "batch-image | sample-image | batch-video")
		cronExpr := fs.String("cron", "", "cron expression")
		input := fs.String("input", "", "input directory")
		output := fs.String("output", "", "report output directory")
		profile := fs.String("profile", "normal", "detection profile")
		level := fs.String("level", "standard", "detection level")
		pattern := fs.String("pattern", "*", "filename glob")
		recursive := fs.Bool("recursive", false, "walk input directory recursively")
		sampleRate := fs.Float64("sample-rate", 0.1, "sample-image: fraction of files sampled")
		maxSamples := fs.Int("max-samples", 50, "sample-image: max sampled files")
		if err := fs.Parse(args[1:]); err != nil {
			return err
		}

		task := scheduler.Task{
			Name:     *name,
			Kind:     scheduler.TaskKind(*kind),
			CronExpr: *cronExpr,
			Enabled:  true,
			Config: scheduler.TaskConfig{
				InputPath:  *input,
				Pattern:    *pattern,
				Recursive:  *recursive,
				Profile:    *profile,
				Level:      *level,
				SampleRate: *sampleRate,
				MaxSamples: *maxSamples,
			},
			Output: scheduler.TaskOutput{
				Path:    *output,
				Formats: []string{"json"},
			},
		}
		created, err := sched.CreateTask(task)
		if err != nil {
			return err
		}
		return printJSON(created)

	case "list":
		return printJSON(sched.ListTasks())

	case "run-now":
		fs := flag.NewFlagSet("task run-now", flag.ExitOnError)
		id := fs.String("id", "", "task id")
		if err := fs.Parse(args[1:]); err != nil {
			return err
		}
		executionID, done, err := sched.RunTaskNow(*id)
		if err != nil {
			return err
		}
		<-done
		execution, err := sched.GetExecution(executionID)
		if err != nil {
			return err
		}
		return printJSON(execution)

	case "enable":
		fs := flag.NewFlagSet("task enable", flag.ExitOnError)
		id := fs.String("id", "", "task id")
		if err := fs.Parse(args[1:]); err != nil {
			return err
		}
		return sched.EnableTask(*id)

	case "disable":
		fs := flag.NewFlagSet("task disable", flag.ExitOnError)
		id := fs.String("id", "", "task id")
		if err := fs.Parse(args[1:]); err != nil {
			return err
		}
		return sched.DisableTask(*id)

	default:
		usage()
		return fmt.Errorf("unknown task subcommand %q", args[0])
	}
}

func runDetect(args []string) error {
	fs := flag.NewFlagSet("detect", flag.ExitOnError)
	path := fs.String("file", "", "image file to analyze")
	profileName := fs.String("profile", "normal", "detection profile")
	levelName := fs.String("level", "standard", "detection level")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *path == "" {
		return fmt.Errorf("-file is required")
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}
	profile, ok := frame.ProfileByName(*profileName)
	if !ok {
		return fmt.Errorf("unknown profile %q", *profileName)
	}
	level, ok := frame.LevelFromString(*levelName)
	if !ok {
		return fmt.Errorf("unknown level %q", *levelName)
	}

	baselineSvc, err := baseline.NewService(cfg.BaselinesDir)
	if err != nil {
		return fmt.Errorf("open baseline service: %w", err)
	}
	reg := registry.New()
	detectors.RegisterAll(reg, baselineSvc)
	fp := pipeline.NewFramePipeline(reg, profile)

	f, err := frame.LoadFile(*path)
	if err != nil {
		return fmt.Errorf("load %s: %w", *path, err)
	}
	defer f.Close()

	id := filepath.Base(*path)
	diag, err := fp.Diagnose(context.Background(), f, level, nil, id, *path)
	if err != nil {
		return err
	}
	return printJSON(diag)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
