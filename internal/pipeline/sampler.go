package pipeline

import (
	"time"

	"gocv.io/x/gocv"

	"github.com/rendiffdev/visionguard/internal/frame"
)

// SampleStrategy selects how a FrameSampler walks a video.
type SampleStrategy int

const (
	SampleAll SampleStrategy = iota
	SampleInterval
	SampleScene
	SampleHybrid
)

// FrameSampler draws a bounded, ordered subset of a video's frames per one
// of four strategies. The returned frames, indices, and timestamps are
// always equal length, strictly increasing, and capped at MaxFrames.
type FrameSampler struct {
	Strategy       SampleStrategy
	IntervalSeconds float64
	SceneThreshold float64
	MaxFrames      int
	MinFrames      int
}

// NewFrameSampler returns a sampler with the engine's defaults: INTERVAL
// strategy, 1s interval, 300-frame cap.
func NewFrameSampler() FrameSampler {
	return FrameSampler{
		Strategy:        SampleInterval,
		IntervalSeconds: 1.0,
		SceneThreshold:  0.3,
		MaxFrames:       300,
		MinFrames:       10,
	}
}

// Sample draws frames from src according to s.Strategy.
func (s FrameSampler) Sample(src *VideoSource) ([]frame.Frame, []int, []time.Duration) {
	switch s.Strategy {
	case SampleAll:
		return s.sampleAll(src)
	case SampleScene:
		return s.sampleScene(src)
	case SampleHybrid:
		return s.sampleHybrid(src)
	default:
		return s.sampleInterval(src)
	}
}

func (s FrameSampler) maxFrames() int {
	if s.MaxFrames > 0 {
		return s.MaxFrames
	}
	return 300
}

func tsFor(idx int, fps float64) time.Duration {
	if fps <= 0 {
		return 0
	}
	return time.Duration(float64(idx) / fps * float64(time.Second))
}

func (s FrameSampler) sampleAll(src *VideoSource) ([]frame.Frame, []int, []time.Duration) {
	fps := src.Metadata().FPS
	var frames []frame.Frame
	var indices []int
	var timestamps []time.Duration

	for len(frames) < s.maxFrames() {
		mat, idx, ok := src.Next()
		if !ok {
			break
		}
		frames = append(frames, frame.New(mat, "", ""))
		indices = append(indices, idx)
		timestamps = append(timestamps, tsFor(idx, fps))
	}
	return frames, indices, timestamps
}

func (s FrameSampler) sampleInterval(src *VideoSource) ([]frame.Frame, []int, []time.Duration) {
	fps := src.Metadata().FPS
	step := 1
	if fps > 0 {
		if computed := int(fps * s.IntervalSeconds); computed > step {
			step = computed
		}
	}

	var frames []frame.Frame
	var indices []int
	var timestamps []time.Duration
	kept := 0

	for len(frames) < s.maxFrames() {
		mat, idx, ok := src.Next()
		if !ok {
			break
		}
		if kept%step == 0 {
			frames = append(frames, frame.New(mat, "", ""))
			indices = append(indices, idx)
			timestamps = append(timestamps, tsFor(idx, fps))
		} else {
			mat.Close()
		}
		kept++
	}
	return frames, indices, timestamps
}

func (s FrameSampler) sampleScene(src *VideoSource) ([]frame.Frame, []int, []time.Duration) {
	fps := src.Metadata().FPS
	var frames []frame.Frame
	var indices []int
	var timestamps []time.Duration

	var prevHist gocv.Mat
	havePrev := false
	defer func() {
		if havePrev {
			prevHist.Close()
		}
	}()

	for len(frames) < s.maxFrames() {
		mat, idx, ok := src.Next()
		if !ok {
			break
		}

		gray := gocv.NewMat()
		gocv.CvtColor(mat, &gray, gocv.ColorBGRToGray)
		hist := gocv.NewMat()
		mask := gocv.NewMat()
		gocv.CalcHist([]gocv.Mat{gray}, []int{0}, mask, &hist, []int{256}, []float64{0, 256}, false)
		gocv.Normalize(hist, &hist, 0, 1, gocv.NormMinMax)
		gray.Close()
		mask.Close()

		shouldSample := !havePrev
		if havePrev {
			diff := gocv.CompareHist(prevHist, hist, gocv.HistCmpBhattacharya)
			shouldSample = diff > s.SceneThreshold
		}

		if shouldSample {
			frames = append(frames, frame.New(mat, "", ""))
			indices = append(indices, idx)
			timestamps = append(timestamps, tsFor(idx, fps))
			if havePrev {
				prevHist.Close()
			}
			prevHist = hist
			havePrev = true
		} else {
			mat.Close()
			hist.Close()
		}
	}

	if len(frames) < s.MinFrames {
		for _, f := range frames {
			f.Close()
		}
		src.Rewind()
		return s.sampleInterval(src)
	}
	return frames, indices, timestamps
}

func (s FrameSampler) sampleHybrid(src *VideoSource) ([]frame.Frame, []int, []time.Duration) {
	fps := src.Metadata().FPS
	step := 1
	if fps > 0 {
		if computed := int(fps * s.IntervalSeconds); computed > step {
			step = computed
		}
	}

	var frames []frame.Frame
	var indices []int
	var timestamps []time.Duration

	var prevHist gocv.Mat
	havePrev := false
	defer func() {
		if havePrev {
			prevHist.Close()
		}
	}()

	kept := 0
	for len(frames) < s.maxFrames() {
		mat, idx, ok := src.Next()
		if !ok {
			break
		}

		gray := gocv.NewMat()
		gocv.CvtColor(mat, &gray, gocv.ColorBGRToGray)
		hist := gocv.NewMat()
		mask := gocv.NewMat()
		gocv.CalcHist([]gocv.Mat{gray}, []int{0}, mask, &hist, []int{256}, []float64{0, 256}, false)
		gocv.Normalize(hist, &hist, 0, 1, gocv.NormMinMax)
		gray.Close()
		mask.Close()

		sceneChange := !havePrev
		if havePrev {
			diff := gocv.CompareHist(prevHist, hist, gocv.HistCmpBhattacharya)
			sceneChange = diff > s.SceneThreshold
		}
		onStep := kept%step == 0
		kept++

		if sceneChange || onStep {
			frames = append(frames, frame.New(mat, "", ""))
			indices = append(indices, idx)
			timestamps = append(timestamps, tsFor(idx, fps))
			if havePrev {
				prevHist.Close()
			}
			prevHist = hist
			havePrev = true
		} else {
			mat.Close()
			hist.Close()
		}
	}
	return frames, indices, timestamps
}
