package detectors

import (
	"context"
	"fmt"
	"image"

	"gocv.io/x/gocv"

	"github.com/rendiffdev/visionguard/internal/frame"
	"github.com/rendiffdev/visionguard/internal/registry"
)

// contrastDetector flags low standard deviation of luminance, i.e. flat,
// washed-out images that are technically not solid (signal_loss handles
// that extreme) but carry little usable dynamic range. FAST stops at the
// global std and dynamic range; STANDARD adds a local-contrast
// blur-residual; DEEP adds RMS, Michelson, and Weber variants to the
// evidence.
type contrastDetector struct {
	opts frame.ContrastOptions
}

func newContrastDetector(profile frame.Profile) registry.Detector {
	return &contrastDetector{opts: profile.Contrast}
}

func (d *contrastDetector) Metadata() registry.Metadata {
	return registry.Metadata{
		Name:        "contrast",
		DisplayName: "Contrast",
		Description: "Detects low dynamic range / washed-out frames.",
		Version:     "1.0.0",
		Priority:    60,
		SupportedLevels: []frame.Level{frame.LevelFast, frame.LevelStandard, frame.LevelDeep},
	}
}

func (d *contrastDetector) Detect(_ context.Context, f frame.Frame, level frame.Level) (frame.Finding, error) {
	gray := toGray(f.Mat)
	defer gray.Close()
	_, std := meanStdDev(gray)

	minVal, maxVal, _, _ := gocv.MinMaxLoc(gray)
	dynamicRange := float64(maxVal - minVal)

	evidence := frame.Evidence{
		"luminance_std": std,
		"dynamic_range": dynamicRange,
	}

	if level >= frame.LevelStandard {
		evidence["local_contrast"] = localContrast(gray, 31)
	}
	if level >= frame.LevelDeep {
		// The global std over a mean-centered frame IS the RMS contrast;
		// record it under its own name alongside the two ratio variants.
		evidence["rms_contrast"] = std
		if maxVal+minVal > 0 {
			evidence["michelson_contrast"] = dynamicRange / float64(maxVal+minVal)
		}
		evidence["weber_contrast_mean"] = weberContrastMean(gray)
	}

	isAbnormal := std < d.opts.MinStdDev
	finding := frame.Finding{
		DetectorName: "contrast",
		IssueType:    "contrast_normal",
		IsAbnormal:   isAbnormal,
		Score:        std,
		Threshold:    d.opts.MinStdDev,
		Confidence:   frame.Confidence(std, d.opts.MinStdDev, true),
		Level:        level,
		Evidence:     evidence,
	}
	if isAbnormal {
		finding.IssueType = "low_contrast"
		finding.Severity = frame.SeverityInfo
		finding.Explanation = fmt.Sprintf("luminance standard deviation %.2f is below threshold %.2f", std, d.opts.MinStdDev)
		finding.PossibleCauses = []string{"fog or haze", "poor lighting contrast", "lens fogging or dirt"}
		finding.Suggestions = []string{"clean the lens", "adjust scene lighting", "check for atmospheric interference"}
	}
	return finding, nil
}

// localContrast is the mean local standard deviation over kernel-sized
// neighborhoods: the residual between each pixel and its box-blurred mean,
// squared, blurred again, and square-rooted.
func localContrast(gray gocv.Mat, kernel int) float64 {
	f32 := gocv.NewMat()
	defer f32.Close()
	gray.ConvertTo(&f32, gocv.MatTypeCV32F)

	localMean := gocv.NewMat()
	defer localMean.Close()
	gocv.Blur(f32, &localMean, image.Pt(kernel, kernel))

	diff := gocv.NewMat()
	defer diff.Close()
	gocv.Subtract(f32, localMean, &diff)

	sq := gocv.NewMat()
	defer sq.Close()
	gocv.Multiply(diff, diff, &sq)

	localVar := gocv.NewMat()
	defer localVar.Close()
	gocv.Blur(sq, &localVar, image.Pt(kernel, kernel))

	localStd := gocv.NewMat()
	defer localStd.Close()
	gocv.Sqrt(localVar, &localStd)

	mean, _ := meanStdDev(localStd)
	return mean
}

// weberContrastMean is the mean |pixel - background| / background ratio,
// with the background taken as the median gray value.
func weberContrastMean(gray gocv.Mat) float64 {
	bg := grayMedian(gray)
	if bg <= 0 {
		return 0
	}

	bgMat := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(bg, 0, 0, 0), gray.Rows(), gray.Cols(), gocv.MatTypeCV8UC1)
	defer bgMat.Close()

	diff := gocv.NewMat()
	defer diff.Close()
	gocv.AbsDiff(gray, bgMat, &diff)

	mean, _ := meanStdDev(diff)
	return mean / bg
}

// grayMedian returns the median intensity of a single-channel 8-bit Mat
// via its cumulative histogram.
func grayMedian(gray gocv.Mat) float64 {
	rows, cols := gray.Rows(), gray.Cols()
	total := rows * cols
	if total == 0 {
		return 0
	}
	var hist [256]int
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			hist[gray.GetUCharAt(r, c)]++
		}
	}
	half := total / 2
	cum := 0
	for v, n := range hist {
		cum += n
		if cum >= half {
			return float64(v)
		}
	}
	return 0
}
