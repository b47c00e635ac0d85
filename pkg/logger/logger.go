package logger

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// ContextKey is a type for context keys to avoid collisions.
type ContextKey string

const (
	RequestIDKey ContextKey = "request_id"
	StreamIDKey  ContextKey = "stream_id"
	TaskIDKey    ContextKey = "task_id"
)

// Config holds logger configuration.
type Config struct {
	Level      string
	Format     string // "json" or "console"
	Output     string // "stdout", "stderr"
	TimeFormat string
}

// New creates a new logger with the specified level and sane defaults.
func New(level string) zerolog.Logger {
	return NewWithConfig(Config{
		Level:      level,
		Format:     "json",
		Output:     "stderr",
		TimeFormat: time.RFC3339,
	})
}

// NewWithConfig creates a new logger with custom configuration.
func NewWithConfig(cfg Config) zerolog.Logger {
	if cfg.TimeFormat != "" {
		zerolog.TimeFieldFormat = cfg.TimeFormat
	} else {
		zerolog.TimeFieldFormat = time.RFC3339
	}

	var output *os.File
	switch cfg.Output {
	case "stdout":
		output = os.Stdout
	default:
		output = os.Stderr
	}

	var log zerolog.Logger
	if cfg.Format == "console" || (strings.ToLower(os.Getenv("GO_ENV")) != "production" && cfg.Format != "json") {
		consoleWriter := zerolog.ConsoleWriter{
			Out:        output,
			TimeFormat: "2006-01-02 15:04:05",
			FormatLevel: func(i interface{}) string {
				return strings.ToUpper(fmt.Sprintf("| %-5s |", i))
			},
		}
		log = zerolog.New(consoleWriter).With().Timestamp().Logger()
	} else {
		log = zerolog.New(output).With().Timestamp().Logger()
	}

	logLevel, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil {
		logLevel = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(logLevel)

	return log.With().
		Str("service", "visionguard").
		Str("version", getVersion()).
		Logger()
}

// WithComponent tags a logger with the subsystem emitting the record. Used
// in place of per-request middleware since the engine has no HTTP surface
// of its own.
func WithComponent(log zerolog.Logger, component string) zerolog.Logger {
	return log.With().Str("component", component).Logger()
}

// WithStreamID tags a logger with the stream it concerns.
func WithStreamID(log zerolog.Logger, streamID string) zerolog.Logger {
	return log.With().Str("stream_id", streamID).Logger()
}

// WithTaskID tags a logger with the scheduled task it concerns.
func WithTaskID(log zerolog.Logger, taskID string) zerolog.Logger {
	return log.With().Str("task_id", taskID).Logger()
}

// WithContext pulls known context values onto the logger, mirroring the
// reference lineage's request-scoped logger without any gin coupling.
func WithContext(log zerolog.Logger, ctx context.Context) zerolog.Logger {
	out := log
	if v := ctx.Value(RequestIDKey); v != nil {
		if s, ok := v.(string); ok {
			out = out.With().Str("request_id", s).Logger()
		}
	}
	if v := ctx.Value(StreamIDKey); v != nil {
		if s, ok := v.(string); ok {
			out = out.With().Str("stream_id", s).Logger()
		}
	}
	if v := ctx.Value(TaskIDKey); v != nil {
		if s, ok := v.(string); ok {
			out = out.With().Str("task_id", s).Logger()
		}
	}
	return out
}

func getVersion() string {
	if v := os.Getenv("APP_VERSION"); v != "" {
		return v
	}
	return "development"
}
