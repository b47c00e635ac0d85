// Package frame defines the core value types shared by every detector and
// pipeline in the engine: the Frame itself, Finding, Diagnosis, Severity,
// Level and Profile. Image-processing primitives (FFT, edges, histograms,
// optical flow) are deliberately not implemented here — they belong to the
// computer-vision collaborator (gocv.io/x/gocv) that detectors call into.
package frame

import (
	"fmt"

	"gocv.io/x/gocv"
)

// Frame is a raw 3-channel BGR image, opaque to the engine except where a
// detector interprets it. It wraps a gocv.Mat; callers own the Mat's
// lifetime and must Close() the Frame when done producing it (pipelines
// never retain a Frame beyond the call that produced it, per the
// specification's ownership rule).
type Frame struct {
	Mat gocv.Mat
	// ID is an opaque caller-supplied identifier threaded through to the
	// resulting Diagnosis, not interpreted by the engine.
	ID string
	// Path is an optional source path, also opaque, carried for reporting.
	Path string
}

// New wraps an existing Mat as a Frame.
func New(mat gocv.Mat, id, path string) Frame {
	return Frame{Mat: mat, ID: id, Path: path}
}

// Close releases the underlying Mat. Safe to call on a zero-value Frame.
func (f Frame) Close() error {
	if f.Mat.Ptr() == nil {
		return nil
	}
	return f.Mat.Close()
}

// Valid reports whether the frame satisfies the still-frame detector
// contract: non-empty, at least 2x2, three channels.
func (f Frame) Valid() bool {
	if f.Mat.Ptr() == nil || f.Mat.Empty() {
		return false
	}
	if f.Mat.Rows() < 2 || f.Mat.Cols() < 2 {
		return false
	}
	return f.Mat.Channels() == 3
}

// Size returns (width, height) for the frame, width first, as stored in
// the Diagnosis.ImageWidth and Diagnosis.ImageHeight fields (the order of
// the original source's (width, height) tuple).
func (f Frame) Size() (width, height int) {
	return f.Mat.Cols(), f.Mat.Rows()
}

func (f Frame) String() string {
	w, h := f.Size()
	return fmt.Sprintf("Frame(id=%s, %dx%d)", f.ID, w, h)
}
