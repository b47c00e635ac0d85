package videodetect

import (
	"fmt"
	"math"
	"time"

	"gocv.io/x/gocv"

	"github.com/rendiffdev/visionguard/internal/frame"
)

// shakeDetector tracks corner features across consecutive frames with
// Lucas-Kanade optical flow and treats large mean motion magnitude as
// camera shake. Corners are re-seeded periodically or when too few remain
// trackable, matching a typical sparse-flow tracking loop.
type shakeDetector struct {
	opts frame.ShakeOptions
}

func newShakeDetector(profile frame.Profile) Detector {
	return &shakeDetector{opts: profile.Shake}
}

func (d *shakeDetector) Name() string { return "shake" }

func (d *shakeDetector) Detect(frames []frame.Frame, fps float64, timestamps []time.Duration) (Result, error) {
	started := time.Now()
	result := Result{
		DetectorName:   d.Name(),
		IssueType:      "shake_normal",
		Threshold:      d.opts.MotionThreshold,
		FramesAnalyzed: len(frames),
	}
	if len(frames) < 2 {
		result.ProcessTime = time.Since(started)
		return result, nil
	}

	reseed := d.opts.ReseedInterval
	if reseed <= 0 {
		reseed = 30
	}
	minTracked := d.opts.MinTrackedCorners
	if minTracked <= 0 {
		minTracked = 10
	}

	magnitudes := make([]float64, len(frames)-1)

	prevGray := toGray2(frames[0].Mat)
	defer prevGray.Close()
	corners := goodFeatures(prevGray)

	for i := 1; i < len(frames); i++ {
		curGray := toGray2(frames[i].Mat)

		if corners.Rows() == 0 || (i%reseed) == 0 {
			corners.Close()
			corners = goodFeatures(prevGray)
		}

		if corners.Rows() == 0 {
			magnitudes[i-1] = 0
			prevGray.Close()
			prevGray = curGray
			continue
		}

		nextPts := gocv.NewMat()
		status := gocv.NewMat()
		errOut := gocv.NewMat()

		gocv.CalcOpticalFlowPyrLK(prevGray, curGray, corners, nextPts, &status, &errOut)

		sum, tracked := 0.0, 0
		rows := corners.Rows()
		for r := 0; r < rows; r++ {
			if status.GetUCharAt(r, 0) == 0 {
				continue
			}
			dx := float64(nextPts.GetFloatAt(r, 0)) - float64(corners.GetFloatAt(r, 0))
			dy := float64(nextPts.GetFloatAt(r, 1)) - float64(corners.GetFloatAt(r, 1))
			sum += math.Hypot(dx, dy)
			tracked++
		}
		if tracked > 0 {
			magnitudes[i-1] = sum / float64(tracked)
		}

		corners.Close()
		corners = nextPts
		status.Close()
		errOut.Close()

		if tracked < minTracked {
			corners.Close()
			corners = goodFeatures(curGray)
		}

		prevGray.Close()
		prevGray = curGray
	}
	corners.Close()

	_, variance := meanVariance(magnitudes)

	var shaky []bool
	for _, m := range magnitudes {
		shaky = append(shaky, m > d.opts.MotionThreshold)
	}

	segments := contiguousRuns(shaky, timestamps, d.opts.MaxGapFrames, d.opts.MinShakeDuration)

	result.Segments = segments
	result.Score = variance
	result.IsAbnormal = len(segments) > 0
	if result.IsAbnormal {
		result.IssueType = "shake"
		result.Severity = frame.SeverityWarning
		result.Confidence = segments[0].Confidence
		result.Explanation = fmt.Sprintf("%d shake segment(s) with mean motion above %.1f px", len(segments), d.opts.MotionThreshold)
		result.PossibleCauses = []string{"unstable camera mounting", "wind or vibration at the install site"}
		result.Suggestions = []string{"check and tighten the camera mount", "add vibration damping"}
	}
	result.ProcessTime = time.Since(started)
	return result, nil
}

func toGray2(src gocv.Mat) gocv.Mat {
	gray := gocv.NewMat()
	gocv.CvtColor(src, &gray, gocv.ColorBGRToGray)
	return gray
}

func goodFeatures(gray gocv.Mat) gocv.Mat {
	corners := gocv.NewMat()
	gocv.GoodFeaturesToTrack(gray, &corners, 100, 0.01, 10)
	return corners
}

func meanVariance(values []float64) (mean, variance float64) {
	if len(values) == 0 {
		return 0, 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	mean = sum / float64(len(values))
	sq := 0.0
	for _, v := range values {
		d := v - mean
		sq += d * d
	}
	variance = sq / float64(len(values))
	return mean, variance
}

// contiguousRuns finds runs of true values allowing gaps of up to maxGap
// false entries, turning each run spanning at least minDuration into a
// Segment. shaky[i] describes the transition from frame i to frame i+1, so
// a run covers frames [start, end+1].
func contiguousRuns(shaky []bool, timestamps []time.Duration, maxGap int, minDuration time.Duration) []Segment {
	var segments []Segment
	start := -1
	gap := 0
	for i := 0; i <= len(shaky); i++ {
		isShaky := i < len(shaky) && shaky[i]
		if isShaky {
			if start == -1 {
				start = i
			}
			gap = 0
			continue
		}
		if start != -1 {
			gap++
			if gap <= maxGap && i < len(shaky) {
				continue
			}
			endFrame := i - gap + 1
			if endFrame < start {
				endFrame = start
			}
			duration := timestamps[endFrame] - timestamps[start]
			if duration >= minDuration {
				segments = append(segments, Segment{
					StartFrame: start,
					EndFrame:   endFrame,
					StartTime:  timestamps[start],
					EndTime:    timestamps[endFrame],
					Confidence: 0.7,
				})
			}
			start = -1
			gap = 0
		}
	}
	return segments
}
