// Package config loads the engine's process configuration from environment
// variables, following the reference lineage's accumulated-errors
// validation idiom (internal/config/config.go) rescoped away from HTTP,
// database, and cloud-storage fields that have no home in this module.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config is the engine's full process configuration.
type Config struct {
	LogLevel  string
	LogFormat string

	// Frame Pipeline
	MaxWorkers        int
	DetectorDeadline  time.Duration
	DefaultProfile    string
	DefaultLevel      string
	ParallelDetection bool

	// Directories
	ReportsDir   string
	TaskStoreDir string
	BaselinesDir string

	// Stream Ingestor defaults
	StreamBufferSize        int
	StreamSampleInterval    time.Duration
	StreamDetectionInterval time.Duration
	StreamReconnectInterval time.Duration
	StreamMaxReconnects     int
	StreamHistorySize       int

	// Scheduler
	SchedulerPoolSize   int
	ExecutionHistoryCap int
}

// Load builds a Config from environment variables, applying defaults and
// then validating the result. It never panics; all problems are returned as
// a single joined error so a caller can report everything wrong at once.
func Load() (*Config, error) {
	cfg := &Config{
		LogLevel:  getEnv("VG_LOG_LEVEL", "info"),
		LogFormat: getEnv("VG_LOG_FORMAT", "console"),

		MaxWorkers:        getEnvAsInt("VG_MAX_WORKERS", 4),
		DetectorDeadline:  getEnvAsDuration("VG_DETECTOR_DEADLINE", 5*time.Second),
		DefaultProfile:    getEnv("VG_DEFAULT_PROFILE", "normal"),
		DefaultLevel:      getEnv("VG_DEFAULT_LEVEL", "standard"),
		ParallelDetection: getEnvAsBool("VG_PARALLEL_DETECTION", true),

		ReportsDir:   getEnv("VG_REPORTS_DIR", "./data/reports"),
		TaskStoreDir: getEnv("VG_TASKSTORE_DIR", "./data/tasks"),
		BaselinesDir: getEnv("VG_BASELINES_DIR", "./data/baselines"),

		StreamBufferSize:        getEnvAsInt("VG_STREAM_BUFFER_SIZE", 30),
		StreamSampleInterval:    getEnvAsDuration("VG_STREAM_SAMPLE_INTERVAL", 1*time.Second),
		StreamDetectionInterval: getEnvAsDuration("VG_STREAM_DETECTION_INTERVAL", 5*time.Second),
		StreamReconnectInterval: getEnvAsDuration("VG_STREAM_RECONNECT_INTERVAL", 5*time.Second),
		StreamMaxReconnects:     getEnvAsInt("VG_STREAM_MAX_RECONNECTS", 5),
		StreamHistorySize:       getEnvAsInt("VG_STREAM_HISTORY_SIZE", 100),

		SchedulerPoolSize:   getEnvAsInt("VG_SCHEDULER_POOL_SIZE", 3),
		ExecutionHistoryCap: getEnvAsInt("VG_EXECUTION_HISTORY_CAP", 1000),
	}

	if err := validateConfig(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func validateConfig(cfg *Config) error {
	var errs []string

	if cfg.MaxWorkers < 1 {
		errs = append(errs, "VG_MAX_WORKERS must be >= 1")
	}
	if cfg.DetectorDeadline <= 0 {
		errs = append(errs, "VG_DETECTOR_DEADLINE must be positive")
	}
	switch cfg.DefaultLevel {
	case "fast", "standard", "deep":
	default:
		errs = append(errs, fmt.Sprintf("VG_DEFAULT_LEVEL must be one of fast|standard|deep, got %q", cfg.DefaultLevel))
	}
	if cfg.StreamBufferSize < 1 {
		errs = append(errs, "VG_STREAM_BUFFER_SIZE must be >= 1")
	}
	if cfg.StreamMaxReconnects < 0 {
		errs = append(errs, "VG_STREAM_MAX_RECONNECTS must be >= 0")
	}
	if cfg.StreamHistorySize < 1 {
		errs = append(errs, "VG_STREAM_HISTORY_SIZE must be >= 1")
	}
	if cfg.SchedulerPoolSize < 1 {
		errs = append(errs, "VG_SCHEDULER_POOL_SIZE must be >= 1")
	}
	if cfg.ExecutionHistoryCap < 1 {
		errs = append(errs, "VG_EXECUTION_HISTORY_CAP must be >= 1")
	}

	for _, dir := range []struct{ name, path string }{
		{"VG_REPORTS_DIR", cfg.ReportsDir},
		{"VG_TASKSTORE_DIR", cfg.TaskStoreDir},
		{"VG_BASELINES_DIR", cfg.BaselinesDir},
	} {
		if err := validateDirectory(dir.path); err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", dir.name, err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid configuration:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// validateDirectory ensures a directory exists (creating it if missing) and
// is writable.
func validateDirectory(dir string) error {
	if dir == "" {
		return fmt.Errorf("path must not be empty")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("cannot create directory: %w", err)
	}
	probe := dir + "/.write_test"
	f, err := os.Create(probe)
	if err != nil {
		return fmt.Errorf("directory not writable: %w", err)
	}
	f.Close()
	os.Remove(probe)
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvAsBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
