package detectors

import (
	"context"
	"fmt"
	"image"

	"gocv.io/x/gocv"

	"github.com/rendiffdev/visionguard/internal/frame"
	"github.com/rendiffdev/visionguard/internal/registry"
)

// BaselineSource supplies the reference frame a scene is compared against.
// Implemented by internal/baseline.Service; kept as a narrow interface here
// so the detector package has no dependency on storage concerns.
type BaselineSource interface {
	Reference(sceneID string) (gocv.Mat, bool)
}

// baselineDetector compares a frame against a stored reference for the same
// scene/camera using four signals: histogram correlation, global SSIM-style
// structural similarity, ORB feature-match ratio, and a coarse grid of
// per-cell mean differences. Any similarity score falling below its
// threshold (or the grid's abnormal-cell fraction exceeding its ratio)
// flags a baseline deviation (camera moved, scene changed, tampering).
type baselineDetector struct {
	opts   frame.BaselineOptions
	source BaselineSource
}

// NewBaselineDetector is exported (unlike the other still-frame factories)
// because it needs a BaselineSource wired in by the caller; register.go
// only registers it when a source is available.
func NewBaselineDetector(source BaselineSource, opts frame.BaselineOptions) registry.Detector {
	return &baselineDetector{opts: opts, source: source}
}

func (d *baselineDetector) Metadata() registry.Metadata {
	return registry.Metadata{
		Name:        "baseline_comparison",
		DisplayName: "Baseline Comparison",
		Description: "Compares a frame against a stored reference scene for structural and feature-level deviation.",
		Version:     "1.0.0",
		Priority:    40,
		SupportedLevels: []frame.Level{frame.LevelDeep},
	}
}

func (d *baselineDetector) Detect(_ context.Context, f frame.Frame, level frame.Level) (frame.Finding, error) {
	ref, ok := d.source.Reference(f.ID)
	if !ok {
		return frame.Finding{
			DetectorName: "baseline_comparison",
			IssueType:    "baseline_normal",
			IsAbnormal:   false,
			Level:        level,
			Explanation:  "no reference baseline is stored for this scene",
		}, nil
	}
	defer ref.Close()

	grayCur := toGray(f.Mat)
	defer grayCur.Close()
	grayRef := toGray(ref)
	defer grayRef.Close()

	if grayRef.Rows() != grayCur.Rows() || grayRef.Cols() != grayCur.Cols() {
		resized := gocv.NewMat()
		gocv.Resize(grayRef, &resized, image.Pt(grayCur.Cols(), grayCur.Rows()), 0, 0, gocv.InterpolationLinear)
		grayRef.Close()
		grayRef = resized
		defer grayRef.Close()
	}

	histScore := histogramCorrelation(grayCur, grayRef)
	ssimScore := approxSSIM(grayCur, grayRef)
	matchRatio := featureMatchRatio(grayCur, grayRef)
	gridRatio := gridAbnormalRatio(grayCur, grayRef, d.opts.GridAbnormalRatio)

	isAbnormal := histScore < d.opts.HistogramThreshold ||
		ssimScore < d.opts.SSIMThreshold ||
		matchRatio < d.opts.FeatureMatchRatio ||
		gridRatio > d.opts.GridAbnormalRatio

	minScore := histScore
	if ssimScore < minScore {
		minScore = ssimScore
	}

	finding := frame.Finding{
		DetectorName: "baseline_comparison",
		IssueType:    "baseline_normal",
		IsAbnormal:   isAbnormal,
		Score:        minScore,
		Threshold:    d.opts.SSIMThreshold,
		Confidence:   frame.Confidence(minScore, d.opts.SSIMThreshold, true),
		Level:        level,
		Evidence: frame.Evidence{
			"histogram_correlation": histScore,
			"structural_similarity": ssimScore,
			"feature_match_ratio":   matchRatio,
			"grid_abnormal_ratio":   gridRatio,
		},
	}
	if isAbnormal {
		finding.IssueType = "baseline_mismatch"
		finding.Severity = frame.SeverityWarning
		finding.Explanation = fmt.Sprintf("frame deviates from stored baseline (hist=%.2f ssim=%.2f match=%.2f grid=%.2f)", histScore, ssimScore, matchRatio, gridRatio)
		finding.PossibleCauses = []string{"camera repositioned", "scene changed materially", "tampering or obstruction"}
		finding.Suggestions = []string{"verify camera mounting", "re-capture the baseline if the scene changed intentionally"}
	}
	return finding, nil
}

func histogramCorrelation(a, b gocv.Mat) float64 {
	histA := gocv.NewMat()
	histB := gocv.NewMat()
	defer histA.Close()
	defer histB.Close()

	mask := gocv.NewMat()
	defer mask.Close()

	gocv.CalcHist([]gocv.Mat{a}, []int{0}, mask, &histA, []int{256}, []float64{0, 256}, false)
	gocv.CalcHist([]gocv.Mat{b}, []int{0}, mask, &histB, []int{256}, []float64{0, 256}, false)

	return gocv.CompareHist(histA, histB, gocv.HistCmpCorrel)
}

// approxSSIM computes a simplified single-window structural similarity
// index between two equally sized grayscale Mats, using global mean,
// variance, and covariance rather than the full sliding-window form.
func approxSSIM(a, b gocv.Mat) float64 {
	meanA, stdA := meanStdDev(a)
	meanB, stdB := meanStdDev(b)
	varA, varB := stdA*stdA, stdB*stdB

	diff := gocv.NewMat()
	defer diff.Close()
	aF := toFloat(a)
	bF := toFloat(b)
	defer aF.Close()
	defer bF.Close()
	gocv.Multiply(aF, bF, &diff)
	covMean, _ := meanStdDev(diff)
	covariance := covMean - meanA*meanB

	const c1, c2 = 6.5025, 58.5225
	numerator := (2*meanA*meanB + c1) * (2*covariance + c2)
	denominator := (meanA*meanA + meanB*meanB + c1) * (varA + varB + c2)
	if denominator == 0 {
		return 1
	}
	return clamp01(numerator / denominator)
}

// featureMatchRatio detects ORB keypoints in both frames and matches their
// descriptors with a brute-force Hamming matcher with cross-check; the
// ratio of surviving matches to the smaller keypoint count is the score.
// Frames too featureless to produce descriptors score 1.0 (no evidence of
// deviation) rather than 0, so a flat-but-matching scene doesn't false-flag.
func featureMatchRatio(a, b gocv.Mat) float64 {
	orb := gocv.NewORB()
	defer orb.Close()
	mask := gocv.NewMat()
	defer mask.Close()

	kpA, desA := orb.DetectAndCompute(a, mask)
	defer desA.Close()
	kpB, desB := orb.DetectAndCompute(b, mask)
	defer desB.Close()

	minKP := len(kpA)
	if len(kpB) < minKP {
		minKP = len(kpB)
	}
	if minKP == 0 || desA.Empty() || desB.Empty() {
		return 1.0
	}

	matcher := gocv.NewBFMatcherWithParams(gocv.NormHamming, true)
	defer matcher.Close()
	matches := matcher.Match(desA, desB)
	return float64(len(matches)) / float64(minKP)
}

func toFloat(src gocv.Mat) gocv.Mat {
	dst := gocv.NewMat()
	src.ConvertTo(&dst, gocv.MatTypeCV32F)
	return dst
}

// gridAbnormalRatio tiles both frames into a coarse grid and returns the
// fraction of cells whose per-cell mean differs by more than 10% of the
// full intensity range, as a localized-change complement to the two global
// scores above.
func gridAbnormalRatio(a, b gocv.Mat, _ float64) float64 {
	const cells = 8
	rows, cols := a.Rows(), a.Cols()
	if rows < cells || cols < cells {
		return 0
	}
	cellH, cellW := rows/cells, cols/cells
	abnormal, total := 0, 0
	for gy := 0; gy < cells; gy++ {
		for gx := 0; gx < cells; gx++ {
			rect := image.Rect(gx*cellW, gy*cellH, (gx+1)*cellW, (gy+1)*cellH)
			ra := a.Region(rect)
			rb := b.Region(rect)
			meanA, _ := meanStdDev(ra)
			meanB, _ := meanStdDev(rb)
			ra.Close()
			rb.Close()
			total++
			if absDiff(meanA, meanB) > 25.5 {
				abnormal++
			}
		}
	}
	if total == 0 {
		return 0
	}
	return float64(abnormal) / float64(total)
}
