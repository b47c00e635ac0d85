package streamingest

import (
	"sync"
	"time"

	"github.com/rendiffdev/visionguard/internal/apperrors"
	"github.com/rendiffdev/visionguard/internal/frame"
	"github.com/rendiffdev/visionguard/internal/metrics"
	"github.com/rendiffdev/visionguard/internal/pipeline"
	"github.com/rendiffdev/visionguard/internal/videodetect"
)

// Service is the process-wide registry of running Stream Ingestors, keyed
// by stream id. Mutations (StartStream/StopStream/StopAll) are serialized
// through the service mutex per §5; queries acquire it only briefly.
type Service struct {
	mu   sync.Mutex
	reg  map[string]*Ingestor

	framePipeline *pipeline.FramePipeline
	videoRegistry *videodetect.Registry
	profile       frame.Profile
}

// NewService constructs an empty Stream Service bound to the shared
// FramePipeline/video registry/profile used to analyze every stream it
// supervises.
func NewService(fp *pipeline.FramePipeline, vr *videodetect.Registry, profile frame.Profile) *Service {
	return &Service{
		reg:           make(map[string]*Ingestor),
		framePipeline: fp,
		videoRegistry: vr,
		profile:       profile,
	}
}

// StartStream creates (if needed) and starts an Ingestor for streamID/url.
// Returns a conflict error if streamID is already registered and running.
func (s *Service) StartStream(streamID, url string, kind SourceKind, opts Options, onResult ResultCallback) (*Ingestor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.reg[streamID]; ok {
		if existing.isRunning() {
			return nil, apperrors.Conflict("stream already running", streamID)
		}
		delete(s.reg, streamID)
	}

	ig := New(streamID, url, kind, opts, s.framePipeline, s.videoRegistry, s.profile, onResult)
	ig.Start()
	s.reg[streamID] = ig
	metrics.ActiveStreams.Set(float64(len(s.reg)))
	return ig, nil
}

// StopStream stops and unregisters streamID's ingestor. Idempotent: a
// missing or already-stopped stream is not an error.
func (s *Service) StopStream(streamID string) error {
	s.mu.Lock()
	ig, ok := s.reg[streamID]
	if ok {
		delete(s.reg, streamID)
	}
	metrics.ActiveStreams.Set(float64(len(s.reg)))
	s.mu.Unlock()

	if ok {
		ig.Stop()
	}
	return nil
}

// Get returns the ingestor registered for streamID, if any.
func (s *Service) Get(streamID string) (*Ingestor, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ig, ok := s.reg[streamID]
	return ig, ok
}

// Status returns streamID's Descriptor, or an error if unknown.
func (s *Service) Status(streamID string) (Descriptor, error) {
	ig, ok := s.Get(streamID)
	if !ok {
		return Descriptor{}, apperrors.NotFound("unknown stream", streamID)
	}
	return ig.Status(), nil
}

// Results returns streamID's rolling result history, or an error if
// unknown.
func (s *Service) Results(streamID string, limit int, since *time.Time) ([]Result, error) {
	ig, ok := s.Get(streamID)
	if !ok {
		return nil, apperrors.NotFound("unknown stream", streamID)
	}
	return ig.Results(limit, since), nil
}

// List returns the Descriptor of every registered stream.
func (s *Service) List() []Descriptor {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Descriptor, 0, len(s.reg))
	for _, ig := range s.reg {
		out = append(out, ig.Status())
	}
	return out
}

// StopAll stops every registered stream, used on process shutdown.
func (s *Service) StopAll() {
	s.mu.Lock()
	igs := make([]*Ingestor, 0, len(s.reg))
	for _, ig := range s.reg {
		igs = append(igs, ig)
	}
	s.reg = make(map[string]*Ingestor)
	metrics.ActiveStreams.Set(0)
	s.mu.Unlock()

	for _, ig := range igs {
		ig.Stop()
	}
}
