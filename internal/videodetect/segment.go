// Package videodetect implements the video-level Detector variants: Freeze,
// SceneChange, and Shake. Each operates over a sampled sequence of frames
// rather than a single image, producing time-ordered Segments instead of a
// single Finding.
package videodetect

import (
	"github.com/rendiffdev/visionguard/internal/frame"
)

// Segment and Result are the frame package's video result shapes, aliased
// so detector code reads naturally while the Video Pipeline embeds the
// same values directly in a VideoDiagnosis.
type (
	Segment = frame.VideoSegment
	Result  = frame.VideoDetectionResult
)
