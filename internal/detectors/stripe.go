package detectors

import (
	"context"
	"fmt"

	"gocv.io/x/gocv"

	"github.com/rendiffdev/visionguard/internal/frame"
	"github.com/rendiffdev/visionguard/internal/registry"
)

// stripeDetector finds periodic banding/stripe artifacts (interference,
// moire, rolling-shutter tearing) by looking for concentrated energy along
// the horizontal and vertical frequency axes of the DFT magnitude spectrum,
// excluding the DC term.
type stripeDetector struct {
	opts frame.StripeOptions
}

func newStripeDetector(profile frame.Profile) registry.Detector {
	return &stripeDetector{opts: profile.Stripe}
}

func (d *stripeDetector) Metadata() registry.Metadata {
	return registry.Metadata{
		Name:        "stripe",
		DisplayName: "Stripe/Banding",
		Description: "Detects periodic banding, interference stripes, or moire patterns.",
		Version:     "1.0.0",
		Priority:    65,
		SupportedLevels: []frame.Level{frame.LevelFast, frame.LevelStandard, frame.LevelDeep},
	}
}

func (d *stripeDetector) Detect(_ context.Context, f frame.Frame, level frame.Level) (frame.Finding, error) {
	gray := toGray(f.Mat)
	defer gray.Close()

	floatGray := gocv.NewMat()
	defer floatGray.Close()
	gray.ConvertTo(&floatGray, gocv.MatTypeCV32F)

	dft := gocv.NewMat()
	defer dft.Close()
	gocv.DFT(floatGray, &dft, gocv.DftScale|gocv.DftComplexOutput)

	planes := gocv.Split(dft)
	defer func() {
		for _, p := range planes {
			p.Close()
		}
	}()
	mag := gocv.NewMat()
	defer mag.Close()
	gocv.Magnitude(planes[0], planes[1], &mag)

	rows, cols := mag.Rows(), mag.Cols()
	// Energy along r==0 is variation across columns (vertical stripes);
	// energy along c==0 is variation across rows (horizontal stripes).
	verticalEnergy := 0.0
	horizontalEnergy := 0.0
	totalEnergy := 0.0
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			if r == 0 && c == 0 {
				continue // DC term
			}
			v := float64(mag.GetFloatAt(r, c))
			totalEnergy += v
			if r == 0 {
				verticalEnergy += v
			} else if c == 0 {
				horizontalEnergy += v
			}
		}
	}

	ratio := 0.0
	vRatio, hRatio := 0.0, 0.0
	if totalEnergy > 0 {
		vRatio = verticalEnergy / totalEnergy
		hRatio = horizontalEnergy / totalEnergy
		ratio = vRatio + hRatio
	}
	score := ratio * 10 // scale to a comparable magnitude to EnergyThreshold

	var direction string
	switch {
	case hRatio > vRatio*1.5:
		direction = "horizontal"
	case vRatio > hRatio*1.5:
		direction = "vertical"
	default:
		direction = "both"
	}

	isAbnormal := score > d.opts.EnergyThreshold
	evidence := frame.Evidence{
		"axis_energy_ratio": ratio,
		"direction":         direction,
	}
	if level >= frame.LevelDeep && isAbnormal {
		// Estimate the stripe period by autocorrelating the mean profile
		// perpendicular to the stripe direction.
		if direction != "vertical" {
			evidence["horizontal_period"] = profilePeriod(gray, true)
		}
		if direction != "horizontal" {
			evidence["vertical_period"] = profilePeriod(gray, false)
		}
	}

	finding := frame.Finding{
		DetectorName: "stripe",
		IssueType:    "stripe_normal",
		IsAbnormal:   isAbnormal,
		Score:        score,
		Threshold:    d.opts.EnergyThreshold,
		Confidence:   frame.Confidence(score, d.opts.EnergyThreshold, false),
		Level:        level,
		Evidence:     evidence,
	}
	if isAbnormal {
		finding.IssueType = "stripe"
		finding.Severity = frame.SeverityWarning
		finding.Explanation = fmt.Sprintf("%s stripe energy %.3f exceeds threshold %.3f", direction, score, d.opts.EnergyThreshold)
		finding.PossibleCauses = []string{"electrical interference", "rolling shutter under flicker lighting", "cable/connector fault"}
		finding.Suggestions = []string{"check cabling and grounding", "verify lighting frequency matches shutter rate"}
	}
	return finding, nil
}

// profilePeriod estimates the dominant stripe period in pixels by
// autocorrelating the mean intensity profile: per-row means for horizontal
// stripes (acrossRows), per-column means otherwise. Returns 0 when no lag
// beats the zero-offset correlation meaningfully.
func profilePeriod(gray gocv.Mat, acrossRows bool) int {
	rows, cols := gray.Rows(), gray.Cols()

	var profile []float64
	if acrossRows {
		profile = make([]float64, rows)
		for r := 0; r < rows; r++ {
			sum := 0.0
			for c := 0; c < cols; c++ {
				sum += float64(gray.GetUCharAt(r, c))
			}
			profile[r] = sum / float64(cols)
		}
	} else {
		profile = make([]float64, cols)
		for c := 0; c < cols; c++ {
			sum := 0.0
			for r := 0; r < rows; r++ {
				sum += float64(gray.GetUCharAt(r, c))
			}
			profile[c] = sum / float64(rows)
		}
	}

	n := len(profile)
	if n < 8 {
		return 0
	}
	mean := 0.0
	for _, v := range profile {
		mean += v
	}
	mean /= float64(n)

	var zero float64
	for _, v := range profile {
		zero += (v - mean) * (v - mean)
	}
	if zero == 0 {
		return 0
	}

	bestLag, bestCorr := 0, 0.0
	for lag := 2; lag <= n/2; lag++ {
		corr := 0.0
		for i := 0; i+lag < n; i++ {
			corr += (profile[i] - mean) * (profile[i+lag] - mean)
		}
		corr /= zero
		if corr > bestCorr {
			bestCorr, bestLag = corr, lag
		}
	}
	if bestCorr < 0.3 {
		return 0
	}
	return bestLag
}
