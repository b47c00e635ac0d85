package detectors

import (
	"context"
	"fmt"

	"gocv.io/x/gocv"

	"github.com/rendiffdev/visionguard/internal/frame"
	"github.com/rendiffdev/visionguard/internal/registry"
)

// colorDetector finds color-cast frames (blue/green screen, a dominant tint)
// and low-saturation (near-grayscale) frames. It computes the frame's
// dimensions once at the top of Detect and reuses them throughout, fixing
// the source's latent use-before-assign ordering bug named in the
// specification's redesign notes.
type colorDetector struct {
	opts frame.ColorOptions
}

func newColorDetector(profile frame.Profile) registry.Detector {
	return &colorDetector{opts: profile.Color}
}

func (d *colorDetector) Metadata() registry.Metadata {
	return registry.Metadata{
		Name:        "color",
		DisplayName: "Color Cast",
		Description: "Detects color casts (blue/green screen, dominant tint) and grayscale/desaturated frames.",
		Version:     "1.0.0",
		Priority:    20,
		SupportedLevels: []frame.Level{frame.LevelFast, frame.LevelStandard, frame.LevelDeep},
		Suppresses: []string{"low_contrast", "low_saturation", "grayscale"},
	}
}

func (d *colorDetector) Detect(_ context.Context, f frame.Frame, level frame.Level) (frame.Finding, error) {
	w, h := f.Size()
	total := float64(w * h)

	hsv := gocv.NewMat()
	defer hsv.Close()
	gocv.CvtColor(f.Mat, &hsv, gocv.ColorBGRToHSV)

	channels := gocv.Split(hsv)
	defer func() {
		for _, c := range channels {
			c.Close()
		}
	}()
	hueChan, satChan := channels[0], channels[1]

	satMean, _ := meanStdDev(satChan)

	hueHist := hueHistogram(hueChan)
	bluePixels := hueHist.bandFraction(100, 130)
	greenPixels := hueHist.bandFraction(45, 75)
	screen := bluePixels >= d.opts.PureColorHueFraction || greenPixels >= d.opts.PureColorHueFraction

	if satMean < d.opts.SaturationGrayscale && !screen {
		finding := frame.Finding{
			DetectorName: "color",
			IssueType:    "grayscale",
			IsAbnormal:   true,
			Score:        satMean,
			Threshold:    d.opts.SaturationGrayscale,
			Confidence:   frame.Confidence(satMean, d.opts.SaturationGrayscale, false),
			Severity:     frame.SeverityInfo,
			Level:        level,
			Evidence:     frame.Evidence{"mean_saturation": satMean, "pixel_count": total},
			Explanation:  fmt.Sprintf("mean saturation %.1f is below grayscale threshold %.1f", satMean, d.opts.SaturationGrayscale),
			PossibleCauses: []string{"infrared/night mode active", "camera color processing disabled"},
			Suggestions:    []string{"verify day/night mode setting", "check color processing configuration"},
		}
		return finding, nil
	}

	bgr := gocv.Split(f.Mat)
	defer func() {
		for _, c := range bgr {
			c.Close()
		}
	}()
	bMean, _ := meanStdDev(bgr[0])
	gMean, _ := meanStdDev(bgr[1])
	rMean, _ := meanStdDev(bgr[2])

	maxDev := maxOf3(absDiff(bMean, gMean), absDiff(bMean, rMean), absDiff(gMean, rMean))
	castThreshold := d.opts.ChannelCastThreshold

	// Discount large pure-color regions (likely physical objects, not a
	// camera-wide cast) before deciding color_cast: recompute the channel
	// means over the non-pure area once such regions are large, and
	// suppress color_cast outright once they dominate the frame.
	gray := toGray(f.Mat)
	blocks := classifyPureColorBlocks(gray, satChan, d.opts.PureColorBlockKernel, d.opts.PureColorStabilityStd, d.opts.PureColorMinSaturation)
	gray.Close()
	pureRatio := pureColorAreaRatio(blocks, total)
	suppressCast := false
	if pureRatio > 0 {
		switch {
		case pureRatio >= d.opts.PureColorSuppressRatio:
			suppressCast = true
		case pureRatio >= d.opts.PureColorDiscountRatio:
			bMean = nonPureChannelMean(bgr[0], blocks)
			gMean = nonPureChannelMean(bgr[1], blocks)
			rMean = nonPureChannelMean(bgr[2], blocks)
			maxDev = maxOf3(absDiff(bMean, gMean), absDiff(bMean, rMean), absDiff(gMean, rMean))
			if d.opts.PureColorTightenFactor > 0 {
				castThreshold = d.opts.ChannelCastThreshold * d.opts.PureColorTightenFactor
			}
		}
	}

	isAbnormal := false
	issue := "color_normal"
	var dominantFraction float64
	switch {
	case bluePixels >= d.opts.PureColorHueFraction:
		isAbnormal, issue, dominantFraction = true, "blue_screen", bluePixels
	case greenPixels >= d.opts.PureColorHueFraction:
		isAbnormal, issue, dominantFraction = true, "green_screen", greenPixels
	case !suppressCast && maxDev > castThreshold:
		isAbnormal, issue = true, "color_cast"
	}

	evidence := frame.Evidence{
		"channel_means":     [3]float64{bMean, gMean, rMean},
		"dominant_fraction": dominantFraction,
		"pixel_count":       total,
		"pure_color_ratio":  pureRatio,
	}
	if level >= frame.LevelDeep {
		dominantHue, concentration := hueHist.dominant()
		evidence["dominant_hue"] = dominantHue
		evidence["hue_concentration"] = concentration
		evidence["estimated_color_temp"] = colorTemperature(rMean, bMean)
	}

	finding := frame.Finding{
		DetectorName: "color",
		IssueType:    issue,
		IsAbnormal:   isAbnormal,
		Score:        maxDev,
		Threshold:    castThreshold,
		Confidence:   frame.Confidence(maxDev, castThreshold, false),
		Level:        level,
		Evidence:     evidence,
	}
	if isAbnormal {
		finding.Severity = frame.SeverityWarning
		if issue == "blue_screen" || issue == "green_screen" {
			finding.Severity = frame.SeverityCritical
			finding.Explanation = fmt.Sprintf("%.0f%% of pixels fall in the %s hue band", dominantFraction*100, issue)
			finding.PossibleCauses = []string{"signal loss fallback screen", "test pattern generator active"}
			finding.Suggestions = []string{"check upstream source status"}
		} else {
			finding.Explanation = fmt.Sprintf("max channel mean deviation %.1f exceeds threshold %.1f", maxDev, castThreshold)
			finding.PossibleCauses = []string{"white balance misconfiguration", "colored lighting", "sensor defect"}
			finding.Suggestions = []string{"check white balance settings", "verify lighting conditions"}
		}
	}
	return finding, nil
}

func absDiff(a, b float64) float64 {
	if a > b {
		return a - b
	}
	return b - a
}

func maxOf3(a, b, c float64) float64 {
	m := a
	if b > m {
		m = b
	}
	if c > m {
		m = c
	}
	return m
}

type hueHist struct {
	counts [180]float64
	total  float64
}

func hueHistogram(hueChan gocv.Mat) hueHist {
	var h hueHist
	rows, cols := hueChan.Rows(), hueChan.Cols()
	h.total = float64(rows * cols)
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			v := int(hueChan.GetUCharAt(r, c))
			if v >= 0 && v < 180 {
				h.counts[v]++
			}
		}
	}
	return h
}

func (h hueHist) bandFraction(lo, hi int) float64 {
	if h.total == 0 {
		return 0
	}
	sum := 0.0
	for v := lo; v <= hi && v < 180; v++ {
		sum += h.counts[v]
	}
	return sum / h.total
}

// dominant returns the most common hue bin and the fraction of pixels in
// it.
func (h hueHist) dominant() (hue int, concentration float64) {
	if h.total == 0 {
		return 0, 0
	}
	best := 0
	for v, n := range h.counts {
		if n > h.counts[best] {
			best = v
		}
	}
	return best, h.counts[best] / h.total
}

// colorTemperature is a coarse warm/cool/neutral estimate from the red and
// blue channel balance.
func colorTemperature(rMean, bMean float64) string {
	switch {
	case rMean > bMean*1.2:
		return "warm"
	case bMean > rMean*1.2:
		return "cool"
	default:
		return "neutral"
	}
}
