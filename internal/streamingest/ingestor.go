package streamingest

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"gocv.io/x/gocv"
	"github.com/rs/zerolog"

	"github.com/rendiffdev/visionguard/internal/frame"
	"github.com/rendiffdev/visionguard/internal/metrics"
	"github.com/rendiffdev/visionguard/internal/pipeline"
	"github.com/rendiffdev/visionguard/internal/videodetect"
	"github.com/rendiffdev/visionguard/pkg/logger"
)

// ResultCallback is invoked after every analyze tick, if configured.
type ResultCallback func(Result)

// Ingestor is the single-stream supervisor described in §4.6: a capture
// goroutine that maintains a reconnecting read loop over a live source, and
// an analyze goroutine that periodically runs detection over the most
// recently buffered frames. The two communicate only through the bounded
// ring and a stop channel, never by touching each other's state directly.
type Ingestor struct {
	streamID string
	url      string
	kind     SourceKind
	opts     Options

	framePipeline *pipeline.FramePipeline
	videoRegistry *videodetect.Registry
	profile       frame.Profile

	log zerolog.Logger

	ring    *frameRing
	history *history
	onResult ResultCallback

	mu        sync.Mutex
	running   bool
	state     ConnectionState
	startedAt time.Time

	framesReceived   int64
	framesAnalyzed   int64
	connectionErrors int64
	reconnectCount   int64

	stopCh chan struct{}
	doneWG sync.WaitGroup

	capMu sync.Mutex
	cap   *gocv.VideoCapture
}

// New constructs an Ingestor for streamID/url, not yet started.
func New(streamID, url string, kind SourceKind, opts Options, fp *pipeline.FramePipeline, vr *videodetect.Registry, profile frame.Profile, onResult ResultCallback) *Ingestor {
	opts = opts.withDefaults()
	return &Ingestor{
		streamID:      streamID,
		url:           url,
		kind:          kind,
		opts:          opts,
		framePipeline: fp,
		videoRegistry: vr,
		profile:       profile,
		log:           logger.WithComponent(logger.New("info"), "stream_ingestor").With().Str("stream_id", streamID).Logger(),
		ring:          newFrameRing(opts.BufferSize),
		history:       newHistory(opts.HistorySize),
		onResult:      onResult,
		state:         StateConnecting,
	}
}

// Start launches the capture and analyze goroutines. Returns false,
// idempotent-false, if the ingestor is already running.
func (ig *Ingestor) Start() bool {
	ig.mu.Lock()
	if ig.running {
		ig.mu.Unlock()
		return false
	}
	ig.running = true
	ig.startedAt = time.Now()
	ig.stopCh = make(chan struct{})
	ig.mu.Unlock()

	ig.doneWG.Add(2)
	go ig.captureLoop()
	go ig.analyzeLoop()
	return true
}

// Stop asks both goroutines to exit and joins them with a short bound,
// releasing the capture handle regardless of whether they exited cleanly.
// Idempotent-true: always succeeds, including on an already-stopped
// ingestor.
func (ig *Ingestor) Stop() {
	ig.mu.Lock()
	if !ig.running {
		ig.mu.Unlock()
		ig.releaseCapture()
		ig.ring.closeAll()
		return
	}
	ig.running = false
	close(ig.stopCh)
	ig.mu.Unlock()

	waited := make(chan struct{})
	go func() {
		ig.doneWG.Wait()
		close(waited)
	}()
	select {
	case <-waited:
	case <-time.After(2 * time.Second):
		ig.log.Warn().Msg("stream ingestor goroutines did not exit within bound, releasing capture anyway")
	}

	ig.releaseCapture()
	ig.ring.closeAll()
	ig.setState(StateStopped)
}

func (ig *Ingestor) releaseCapture() {
	ig.capMu.Lock()
	defer ig.capMu.Unlock()
	if ig.cap != nil {
		ig.cap.Close()
		ig.cap = nil
	}
}

func (ig *Ingestor) setState(s ConnectionState) {
	ig.mu.Lock()
	ig.state = s
	ig.mu.Unlock()
	metrics.StreamConnectionState.WithLabelValues(ig.streamID, string(s)).Set(1)
}

func (ig *Ingestor) isRunning() bool {
	ig.mu.Lock()
	defer ig.mu.Unlock()
	return ig.running
}

// captureLoop owns the capture handle exclusively: it is the ingestor's
// only reader, per §5's shared-resource rule. On read failure it enters the
// reconnect protocol; on exhausting MaxReconnectAttempts it stops both
// goroutines.
func (ig *Ingestor) captureLoop() {
	defer ig.doneWG.Done()
	defer func() {
		if r := recover(); r != nil {
			ig.log.Error().Interface("panic", r).Msg("capture goroutine recovered from panic")
		}
	}()

	gate := &sampleGate{interval: ig.opts.SampleInterval}
	idx := 0

	for {
		select {
		case <-ig.stopCh:
			return
		default:
		}

		cap, err := openCapture(ig.url, ig.kind)
		if err != nil {
			atomic.AddInt64(&ig.connectionErrors, 1)
			if !ig.reconnect() {
				return
			}
			continue
		}
		ig.setState(StateConnected)
		ig.capMu.Lock()
		ig.cap = cap
		ig.capMu.Unlock()

		mat := gocv.NewMat()
		readFailed := false
		for {
			select {
			case <-ig.stopCh:
				mat.Close()
				return
			default:
			}

			if !cap.Read(&mat) || mat.Empty() {
				readFailed = true
				break
			}

			atomic.AddInt64(&ig.framesReceived, 1)
			metrics.StreamFramesReceived.WithLabelValues(ig.streamID).Inc()
			now := time.Now()
			if gate.ready(now) {
				clone := mat.Clone()
				ig.ring.push(bufferedFrame{mat: clone, index: idx, timestamp: now})
				idx++
			}
		}
		mat.Close()
		ig.releaseCapture()

		if readFailed {
			atomic.AddInt64(&ig.connectionErrors, 1)
			if !ig.reconnect() {
				return
			}
		}
	}
}

// reconnect sleeps ReconnectInterval and reports whether the caller should
// keep trying. It gives up (returning false and stopping the ingestor)
// after MaxReconnectAttempts consecutive failures.
func (ig *Ingestor) reconnect() bool {
	ig.setState(StateReconnecting)
	atomic.AddInt64(&ig.reconnectCount, 1)
	metrics.StreamReconnects.WithLabelValues(ig.streamID).Inc()

	if int(atomic.LoadInt64(&ig.reconnectCount)) > ig.opts.MaxReconnectAttempts {
		ig.log.Error().Int64("attempts", atomic.LoadInt64(&ig.reconnectCount)).Msg("max reconnect attempts exhausted, stopping stream")
		ig.mu.Lock()
		ig.running = false
		ig.mu.Unlock()
		select {
		case <-ig.stopCh:
		default:
			close(ig.stopCh)
		}
		ig.setState(StateStopped)
		return false
	}

	select {
	case <-ig.stopCh:
		return false
	case <-time.After(ig.opts.ReconnectInterval):
		return true
	}
}

// analyzeLoop ticks at DetectionInterval, snapshotting the ring and running
// both the still-frame and video detector passes over it.
func (ig *Ingestor) analyzeLoop() {
	defer ig.doneWG.Done()
	defer func() {
		if r := recover(); r != nil {
			ig.log.Error().Interface("panic", r).Msg("analyze goroutine recovered from panic")
		}
	}()

	ticker := time.NewTicker(ig.opts.DetectionInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ig.stopCh:
			return
		case <-ticker.C:
			ig.analyzeTick()
		}
	}
}

func (ig *Ingestor) analyzeTick() {
	snap := ig.ring.snapshot(30)
	if len(snap) == 0 {
		return
	}
	fps := ig.ring.estimatedFPS()

	frames := make([]frame.Frame, len(snap))
	timestamps := make([]time.Duration, len(snap))
	base := snap[0].timestamp
	for i, bf := range snap {
		frames[i] = frame.New(bf.mat, ig.streamID, ig.url)
		timestamps[i] = bf.timestamp.Sub(base)
	}
	defer func() {
		for _, f := range frames {
			f.Close()
		}
	}()

	newest := frames[len(frames)-1]

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	frameDiag, err := ig.framePipeline.Diagnose(ctx, newest, frame.LevelStandard, nil, ig.streamID, ig.url)
	if err != nil {
		ig.log.Warn().Err(err).Msg("still-frame analysis failed on stream snapshot")
	}

	var videoResults []videodetect.Result
	if fps > 0 {
		for _, d := range ig.videoRegistry.Default(ig.profile) {
			res, derr := d.Detect(frames, fps, timestamps)
			if derr != nil {
				ig.log.Warn().Str("detector", d.Name()).Err(derr).Msg("video detector failed on stream snapshot")
				continue
			}
			videoResults = append(videoResults, res)
		}
	}

	atomic.AddInt64(&ig.framesAnalyzed, 1)
	result := ig.mergeResult(frameDiag, videoResults, fps)
	ig.history.append(result)
	metrics.StreamAnalysesTotal.WithLabelValues(ig.streamID, boolLabel(result.IsAbnormal)).Inc()

	if ig.onResult != nil {
		ig.onResult(result)
	}
}

func boolLabel(b bool) string {
	if b {
		return "abnormal"
	}
	return "normal"
}

func (ig *Ingestor) mergeResult(fd frame.Diagnosis, vr []videodetect.Result, fps float64) Result {
	primary := fd.PrimaryIssue
	severity := fd.Severity
	isAbnormal := fd.IsAbnormal

	videoDetail := make(map[string]any, len(vr))
	for _, r := range vr {
		videoDetail[r.DetectorName] = map[string]any{
			"issue_type":  r.IssueType,
			"is_abnormal": r.IsAbnormal,
			"score":       r.Score,
			"segments":    len(r.Segments),
		}
		if r.IsAbnormal {
			isAbnormal = true
			if r.Severity > severity {
				severity = r.Severity
				issue := r.IssueType
				primary = &issue
			}
		}
	}

	frameDetail := make(map[string]any, len(fd.Findings))
	for _, f := range fd.Findings {
		frameDetail[f.DetectorName] = map[string]any{
			"issue_type":  f.IssueType,
			"is_abnormal": f.IsAbnormal,
			"score":       f.Score,
			"severity":    f.Severity.String(),
		}
	}

	return Result{
		StreamID:     ig.streamID,
		Timestamp:    time.Now(),
		State:        ig.Status().State,
		FPS:          fps,
		IsAbnormal:   isAbnormal,
		FrameDetail:  frameDetail,
		VideoDetail:  videoDetail,
		PrimaryIssue: primary,
		Severity:     severity,
	}
}

// Status returns the ingestor's current Descriptor snapshot.
func (ig *Ingestor) Status() Descriptor {
	ig.mu.Lock()
	defer ig.mu.Unlock()
	return Descriptor{
		StreamID:          ig.streamID,
		URL:               ig.url,
		Kind:              ig.kind,
		SampleInterval:    ig.opts.SampleInterval,
		DetectionInterval: ig.opts.DetectionInterval,
		State:             ig.state,
		FramesReceived:    atomic.LoadInt64(&ig.framesReceived),
		FramesAnalyzed:    atomic.LoadInt64(&ig.framesAnalyzed),
		ConnectionErrors:  atomic.LoadInt64(&ig.connectionErrors),
		ReconnectCount:    atomic.LoadInt64(&ig.reconnectCount),
		FPSEstimate:       ig.ring.estimatedFPS(),
		StartedAt:         ig.startedAt,
		IsRunning:         ig.running,
	}
}

// Results returns up to limit of the most recent history entries, optionally
// filtered to those at or after since. An invalid/zero since is treated as
// no lower bound.
func (ig *Ingestor) Results(limit int, since *time.Time) []Result {
	return ig.history.results(limit, since)
}
