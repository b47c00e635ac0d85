package pipeline

import (
	"fmt"

	"gocv.io/x/gocv"
)

// VideoMetadata describes a video's container-level properties, read once
// at open time.
type VideoMetadata struct {
	Path       string
	Width      int
	Height     int
	FPS        float64
	FrameCount int
	Duration   float64 // seconds
	Codec      string
}

// VideoSource reads frames sequentially from an opened video file. It wraps
// gocv.VideoCapture; a single VideoSource is not safe for concurrent
// readers.
type VideoSource struct {
	cap      *gocv.VideoCapture
	metadata VideoMetadata
	nextIdx  int
}

// OpenVideoSource opens path and reads its metadata. Failure is raised to
// the caller, per the Video Pipeline's open-time contract.
func OpenVideoSource(path string) (*VideoSource, error) {
	cap, err := gocv.VideoCaptureFile(path)
	if err != nil {
		return nil, fmt.Errorf("open video %s: %w", path, err)
	}

	fps := cap.Get(gocv.VideoCaptureFPS)
	frameCount := int(cap.Get(gocv.VideoCaptureFrameCount))
	meta := VideoMetadata{
		Path:       path,
		Width:      int(cap.Get(gocv.VideoCaptureFrameWidth)),
		Height:     int(cap.Get(gocv.VideoCaptureFrameHeight)),
		FPS:        fps,
		FrameCount: frameCount,
	}
	if fps > 0 {
		meta.Duration = float64(frameCount) / fps
	}
	return &VideoSource{cap: cap, metadata: meta}, nil
}

func (v *VideoSource) Metadata() VideoMetadata { return v.metadata }

// Close releases the underlying capture handle.
func (v *VideoSource) Close() error { return v.cap.Close() }

// Rewind seeks back to the first frame, used by the scene sampler's
// INTERVAL fallback so the second pass sees the whole video again.
func (v *VideoSource) Rewind() {
	v.cap.Set(gocv.VideoCapturePosFrames, 0)
	v.nextIdx = 0
}

// Next reads the next frame and its index, or ok=false at end of stream.
func (v *VideoSource) Next() (mat gocv.Mat, index int, ok bool) {
	mat = gocv.NewMat()
	if !v.cap.Read(&mat) || mat.Empty() {
		mat.Close()
		return gocv.Mat{}, 0, false
	}
	idx := v.nextIdx
	v.nextIdx++
	return mat, idx, true
}
