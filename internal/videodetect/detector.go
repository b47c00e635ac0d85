package videodetect

import (
	"time"

	"github.com/rendiffdev/visionguard/internal/frame"
)

// Detector is the video-level counterpart to registry.Detector: it operates
// over a whole sampled sequence rather than one frame, since segment
// detection (freeze runs, shake runs) is inherently cross-frame.
type Detector interface {
	Detect(frames []frame.Frame, fps float64, timestamps []time.Duration) (Result, error)
	Name() string
}

// Factory constructs a Detector bound to a given profile.
type Factory func(profile frame.Profile) Detector
