package videodetect

import (
	"fmt"
	"time"

	"gocv.io/x/gocv"

	"github.com/rendiffdev/visionguard/internal/frame"
)

// freezeDetector finds runs of near-identical consecutive frames: a stuck
// encoder, a frozen upstream source, or a paused camera. Consecutive-frame
// similarity is a histogram correlation on the gray channel; a run
// qualifies as a freeze segment once it spans both MinFreezeFrames and
// MinFreezeDuration.
type freezeDetector struct {
	opts frame.FreezeOptions
}

func newFreezeDetector(profile frame.Profile) Detector {
	return &freezeDetector{opts: profile.Freeze}
}

func (d *freezeDetector) Name() string { return "freeze" }

func (d *freezeDetector) Detect(frames []frame.Frame, fps float64, timestamps []time.Duration) (Result, error) {
	started := time.Now()
	result := Result{
		DetectorName:   d.Name(),
		IssueType:      "freeze_normal",
		Threshold:      float64(d.opts.MinFreezeFrames),
		FramesAnalyzed: len(frames),
	}
	if len(frames) < 2 {
		result.ProcessTime = time.Since(started)
		return result, nil
	}

	similar := make([]bool, len(frames)-1)
	for i := 0; i < len(frames)-1; i++ {
		corr := grayCorrelation(frames[i].Mat, frames[i+1].Mat)
		similar[i] = corr >= d.opts.SimilarityThreshold
		if d.opts.ExcludeBlackFrames && isNearBlack(frames[i].Mat) {
			similar[i] = false
		}
	}

	var segments []Segment
	runStart := -1
	for i := 0; i <= len(similar); i++ {
		ongoing := i < len(similar) && similar[i]
		if ongoing && runStart == -1 {
			runStart = i
		}
		if !ongoing && runStart != -1 {
			runEndFrame := i // inclusive end frame index is i (the frame after the last "similar" pair)
			frameCount := runEndFrame - runStart + 1
			duration := timestamps[runEndFrame] - timestamps[runStart]
			if frameCount >= d.opts.MinFreezeFrames && duration >= d.opts.MinFreezeDuration {
				segments = append(segments, Segment{
					StartFrame: runStart,
					EndFrame:   runEndFrame,
					StartTime:  timestamps[runStart],
					EndTime:    timestamps[runEndFrame],
					Confidence: frame.Confidence(float64(frameCount), float64(d.opts.MinFreezeFrames), true),
					Metadata:   frame.Evidence{"frame_count": frameCount},
				})
			}
			runStart = -1
		}
	}

	result.Segments = segments
	result.IsAbnormal = len(segments) > 0
	result.Score = float64(len(segments))
	if result.IsAbnormal {
		result.IssueType = "freeze"
		result.Severity = frame.SeverityWarning
		result.Confidence = segments[0].Confidence
		result.Explanation = fmt.Sprintf("%d freeze segment(s) found across %d sampled frames", len(segments), len(frames))
		result.PossibleCauses = []string{"stuck encoder", "frozen upstream source", "paused camera"}
		result.Suggestions = []string{"restart the encoder", "check the upstream source feed"}
	}
	result.ProcessTime = time.Since(started)
	return result, nil
}

func grayCorrelation(a, b gocv.Mat) float64 {
	grayA := gocv.NewMat()
	grayB := gocv.NewMat()
	defer grayA.Close()
	defer grayB.Close()
	gocv.CvtColor(a, &grayA, gocv.ColorBGRToGray)
	gocv.CvtColor(b, &grayB, gocv.ColorBGRToGray)

	histA := gocv.NewMat()
	histB := gocv.NewMat()
	defer histA.Close()
	defer histB.Close()
	mask := gocv.NewMat()
	defer mask.Close()

	gocv.CalcHist([]gocv.Mat{grayA}, []int{0}, mask, &histA, []int{256}, []float64{0, 256}, false)
	gocv.CalcHist([]gocv.Mat{grayB}, []int{0}, mask, &histB, []int{256}, []float64{0, 256}, false)
	return gocv.CompareHist(histA, histB, gocv.HistCmpCorrel)
}

func isNearBlack(mat gocv.Mat) bool {
	gray := gocv.NewMat()
	defer gray.Close()
	gocv.CvtColor(mat, &gray, gocv.ColorBGRToGray)
	m := gocv.NewMat()
	s := gocv.NewMat()
	defer m.Close()
	defer s.Close()
	gocv.MeanStdDev(gray, &m, &s)
	return m.GetDoubleAt(0, 0) < 10
}
