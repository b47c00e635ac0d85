package videodetect

import (
	"fmt"
	"time"

	"gocv.io/x/gocv"

	"github.com/rendiffdev/visionguard/internal/frame"
)

// sceneChangeDetector finds adjacent-frame cuts using a Bhattacharyya
// distance between normalized gray histograms. Every crossing is reported
// as a zero-duration segment; the aggregate is abnormal when the rate of
// crossings exceeds MaxChangesPerMinute.
type sceneChangeDetector struct {
	opts frame.SceneChangeOptions
}

func newSceneChangeDetector(profile frame.Profile) Detector {
	return &sceneChangeDetector{opts: profile.SceneChange}
}

func (d *sceneChangeDetector) Name() string { return "scene_change" }

func (d *sceneChangeDetector) Detect(frames []frame.Frame, fps float64, timestamps []time.Duration) (Result, error) {
	started := time.Now()
	result := Result{
		DetectorName:   d.Name(),
		IssueType:      "scene_change_normal",
		Threshold:      d.opts.MaxChangesPerMinute,
		FramesAnalyzed: len(frames),
	}
	if len(frames) < 2 {
		result.ProcessTime = time.Since(started)
		return result, nil
	}

	var segments []Segment
	for i := 0; i < len(frames)-1; i++ {
		dist := grayBhattacharyya(frames[i].Mat, frames[i+1].Mat)
		if dist > d.opts.BhattacharyyaThreshold {
			segments = append(segments, Segment{
				StartFrame: i + 1,
				EndFrame:   i + 1,
				StartTime:  timestamps[i+1],
				EndTime:    timestamps[i+1],
				Confidence: frame.Confidence(dist, d.opts.BhattacharyyaThreshold, true),
				Metadata:   frame.Evidence{"distance": dist},
			})
		}
	}

	result.Segments = segments
	if len(segments) == 0 {
		result.ProcessTime = time.Since(started)
		return result, nil
	}

	spanSeconds := (timestamps[len(timestamps)-1] - timestamps[0]).Seconds()
	changesPerMinute := 0.0
	if spanSeconds > 0 {
		changesPerMinute = float64(len(segments)) / (spanSeconds / 60)
	}
	result.Score = changesPerMinute
	result.IsAbnormal = changesPerMinute > d.opts.MaxChangesPerMinute
	if result.IsAbnormal {
		result.IssueType = "scene_change"
		result.Severity = frame.SeverityWarning
		result.Confidence = frame.Confidence(changesPerMinute, d.opts.MaxChangesPerMinute, false)
		result.Explanation = fmt.Sprintf("%.1f scene changes per minute exceeds the maximum %.1f", changesPerMinute, d.opts.MaxChangesPerMinute)
		result.PossibleCauses = []string{"unstable upstream switching", "corrupted stream", "camera cycling between inputs"}
		result.Suggestions = []string{"check upstream switching equipment", "verify stream integrity"}
	}
	result.ProcessTime = time.Since(started)
	return result, nil
}

func grayBhattacharyya(a, b gocv.Mat) float64 {
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
	gocv.Normalize(histA, &histA, 0, 1, gocv.NormMinMax)
	gocv.Normalize(histB, &histB, 0, 1, gocv.NormMinMax)

	return gocv.CompareHist(histA, histB, gocv.HistCmpBhattacharya)
}
