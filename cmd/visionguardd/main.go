// Command visionguardd is the VisionGuard engine daemon: it loads process
// configuration, wires the still-frame and video detector registries, the
// Frame and Video pipelines, the Baseline Service, the Stream Ingestor
// service, and the Scheduler, then runs until signaled to stop.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/rendiffdev/visionguard/internal/baseline"
	"github.com/rendiffdev/visionguard/internal/config"
	"github.com/rendiffdev/visionguard/internal/detectors"
	"github.com/rendiffdev/visionguard/internal/frame"
	"github.com/rendiffdev/visionguard/internal/pipeline"
	"github.com/rendiffdev/visionguard/internal/registry"
	"github.com/rendiffdev/visionguard/internal/scheduler"
	"github.com/rendiffdev/visionguard/internal/scheduler/taskstore"
	"github.com/rendiffdev/visionguard/internal/streamingest"
	"github.com/rendiffdev/visionguard/internal/videodetect"
	"github.com/rendiffdev/visionguard/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "visionguardd: configuration error: %v\n", err)
		os.Exit(1)
	}

	log := logger.NewWithConfig(logger.Config{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
		Output: "stderr",
	})
	log = logger.WithComponent(log, "daemon")

	if err := run(cfg, log); err != nil {
		log.Error().Err(err).Msg("daemon exited with error")
		os.Exit(1)
	}
}

func run(cfg *config.Config, log zerolog.Logger) error {
	profile, ok := frame.ProfileByName(cfg.DefaultProfile)
	if !ok {
		return fmt.Errorf("unknown default profile %q", cfg.DefaultProfile)
	}
	profile.MaxWorkers = cfg.MaxWorkers
	profile.ParallelDetection = cfg.ParallelDetection

	baselineSvc, err := baseline.NewService(cfg.BaselinesDir)
	if err != nil {
		return fmt.Errorf("open baseline service: %w", err)
	}

	frameRegistry := registry.New()
	detectors.RegisterAll(frameRegistry, baselineSvc)
	log.Info().Int("baselines", len(baselineSvc.List())).Msg("baseline service ready")

	videoRegistry := videodetect.New()

	framePipeline := pipeline.NewFramePipeline(frameRegistry, profile).WithDetectorDeadline(cfg.DetectorDeadline)
	videoPipeline := pipeline.NewVideoPipeline(videoRegistry, profile)

	streamSvc := streamingest.NewService(framePipeline, videoRegistry, profile)

	storePath := filepath.Join(cfg.TaskStoreDir, "tasks.yaml")
	store, err := taskstore.Open(storePath, cfg.ExecutionHistoryCap)
	if err != nil {
		return fmt.Errorf("open task store at %s: %w", storePath, err)
	}

	sched := scheduler.New(store, framePipeline, videoPipeline, cfg.SchedulerPoolSize)
	if err := sched.Start(); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}
	log.Info().Int("tasks", len(sched.ListTasks())).Msg("scheduler started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	log.Info().
		Str("profile", profile.Name).
		Str("reports_dir", cfg.ReportsDir).
		Str("taskstore", storePath).
		Str("baselines_dir", cfg.BaselinesDir).
		Msg("visionguardd ready")

	<-quit
	log.Info().Msg("shutdown signal received")

	shutdownDeadline := time.NewTimer(30 * time.Second)
	defer shutdownDeadline.Stop()

	done := make(chan struct{})
	go func() {
		streamSvc.StopAll()
		sched.Stop()
		close(done)
	}()

	select {
	case <-done:
		log.Info().Msg("shutdown complete")
	case <-shutdownDeadline.C:
		log.Warn().Msg("shutdown timed out waiting for in-flight work")
	}
	return nil
}
