// Package streamingest implements the Stream Ingestor (§4.6): a
// single-stream supervisor running a capture goroutine and an analyze
// goroutine over a bounded frame buffer, with auto-reconnect and a rolling
// result history. A process-wide Service keyed by stream id owns the set of
// running ingestors, mirroring the registry/pipeline construction idiom
// used elsewhere in this engine.
package streamingest

import (
	"time"

	"gocv.io/x/gocv"

	"github.com/rendiffdev/visionguard/internal/frame"
)

// SourceKind distinguishes the two accepted live-stream transports.
type SourceKind string

const (
	SourceRTSP SourceKind = "rtsp"
	SourceRTMP SourceKind = "rtmp"
)

// ConnectionState is the ingestor's observable connection lifecycle.
type ConnectionState string

const (
	StateConnecting   ConnectionState = "connecting"
	StateConnected    ConnectionState = "connected"
	StateReconnecting ConnectionState = "reconnecting"
	StateStopped      ConnectionState = "stopped"
)

// Options configures one Stream Ingestor. Zero values are replaced with
// the engine's defaults by New.
type Options struct {
	SampleInterval       time.Duration // cadence at which capture appends to the buffer, default 1s
	DetectionInterval    time.Duration // cadence at which analyze snapshots the buffer, default 2s
	ReconnectInterval    time.Duration // backoff between reconnect attempts, default 5s
	MaxReconnectAttempts int           // give up and stop after this many consecutive failures, default 5
	BufferSize           int           // bounded frame buffer slot count, default 30
	HistorySize          int           // rolling result history bound, default 100
}

func (o Options) withDefaults() Options {
	if o.SampleInterval <= 0 {
		o.SampleInterval = time.Second
	}
	if o.DetectionInterval <= 0 {
		o.DetectionInterval = 2 * time.Second
	}
	if o.ReconnectInterval <= 0 {
		o.ReconnectInterval = 5 * time.Second
	}
	if o.MaxReconnectAttempts <= 0 {
		o.MaxReconnectAttempts = 5
	}
	if o.BufferSize <= 0 {
		o.BufferSize = 30
	}
	if o.HistorySize <= 0 {
		o.HistorySize = 100
	}
	return o
}

// bufferedFrame is one entry in the capture->analyze frame buffer.
type bufferedFrame struct {
	mat       gocv.Mat
	index     int
	timestamp time.Time
}

// Descriptor is the Stream Descriptor's observable snapshot (§3): identity,
// source, cadence, connection state, and running counters.
type Descriptor struct {
	StreamID string     `json:"stream_id"`
	URL      string     `json:"url"`
	Kind     SourceKind `json:"kind"`

	SampleInterval    time.Duration `json:"-"`
	DetectionInterval time.Duration `json:"-"`

	State ConnectionState `json:"state"`

	FramesReceived   int64 `json:"frames_received"`
	FramesAnalyzed   int64 `json:"frames_analyzed"`
	ConnectionErrors int64 `json:"connection_errors"`
	ReconnectCount   int64 `json:"reconnect_count"`

	FPSEstimate float64   `json:"fps_estimate"`
	StartedAt   time.Time `json:"started_at"`
	IsRunning   bool      `json:"is_running"`
}

// Result is one analyze-tick's merged output (§4.6): the still-image
// diagnosis on the newest frame plus the video-detector pass over the
// snapshot, folded into a single verdict.
type Result struct {
	StreamID   string          `json:"stream_id"`
	Timestamp  time.Time       `json:"timestamp"`
	State      ConnectionState `json:"connection_state"`
	FPS        float64         `json:"fps"`
	IsAbnormal bool            `json:"is_abnormal"`

	FrameDetail map[string]any `json:"frame_detail"`
	VideoDetail map[string]any `json:"video_detail"`

	PrimaryIssue *string        `json:"primary_issue"`
	Severity     frame.Severity `json:"severity"`
}
