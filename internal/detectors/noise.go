package detectors

import (
	"context"
	"fmt"

	"gocv.io/x/gocv"

	"github.com/rendiffdev/visionguard/internal/frame"
	"github.com/rendiffdev/visionguard/internal/registry"
)

// noiseDetector estimates sensor/compression noise at three depths. FAST
// uses the median absolute deviation of the Laplacian (a cheap sigma
// estimate), damped by a texture-complexity factor so heavily textured
// frames don't read as noisy. STANDARD blends that with the residual of a
// median filter, which preserves edges but removes impulse-like noise.
// DEEP adds a high-frequency DFT energy ratio plus explicit salt-pepper and
// snow sub-scores that can raise the overall level on their own.
type noiseDetector struct {
	opts frame.NoiseOptions
}

func newNoiseDetector(profile frame.Profile) registry.Detector {
	return &noiseDetector{opts: profile.Noise}
}

func (d *noiseDetector) Metadata() registry.Metadata {
	return registry.Metadata{
		Name:        "noise",
		DisplayName: "Noise",
		Description: "Detects sensor or compression noise, classified as gaussian, salt-pepper, or snow.",
		Version:     "1.0.0",
		Priority:    55,
		SupportedLevels: []frame.Level{frame.LevelFast, frame.LevelStandard, frame.LevelDeep},
	}
}

func (d *noiseDetector) Detect(_ context.Context, f frame.Frame, level frame.Level) (frame.Finding, error) {
	gray := toGray(f.Mat)
	defer gray.Close()

	mad := laplacianMAD(gray)
	evidence := frame.Evidence{"noise_mad_laplacian": mad}

	var score float64
	switch {
	case level <= frame.LevelFast:
		// High-texture scenes legitimately carry second-derivative
		// energy; damp the sigma estimate so they don't read as noisy.
		texture := edgeDensity(gray)
		score = mad / (1 + texture*10)
		evidence["texture_factor"] = texture
	default:
		resid := medianResidualStd(gray)
		score = (mad + resid) / 2
		evidence["residual_std"] = resid
	}

	if level >= frame.LevelDeep {
		highFreq := highFreqEnergyRatio(gray)
		evidence["high_freq_ratio"] = highFreq
	}

	// Sub-scores decide which concrete noise issue to report and, at DEEP,
	// can raise the level on their own: whichever of salt-pepper impulse
	// ratio or bright low-saturation "snow" speckle ratio dominates, else
	// gaussian.
	saltPepperRatio := impulseRatio(gray, d.opts.SaltPepperLow, d.opts.SaltPepperHigh)

	hsv := gocv.NewMat()
	defer hsv.Close()
	gocv.CvtColor(f.Mat, &hsv, gocv.ColorBGRToHSV)
	channels := gocv.Split(hsv)
	defer func() {
		for _, c := range channels {
			c.Close()
		}
	}()
	snowRatio := snowSpeckleRatio(channels[1], channels[2], d.opts.SnowSatThreshold, d.opts.SnowValueThreshold)
	evidence["salt_pepper_ratio"] = saltPepperRatio
	evidence["snow_ratio"] = snowRatio

	if level >= frame.LevelDeep {
		if saltPepperRatio > d.opts.SaltPepperRatio && saltPepperRatio*1000 > score {
			score = saltPepperRatio * 1000
		}
		if snowRatio > d.opts.SnowRatio && snowRatio*1000 > score {
			score = snowRatio * 1000
		}
	}

	isAbnormal := score > d.opts.Threshold
	finding := frame.Finding{
		DetectorName: "noise",
		IssueType:    "noise_normal",
		IsAbnormal:   isAbnormal,
		Score:        score,
		Threshold:    d.opts.Threshold,
		Confidence:   frame.Confidence(score, d.opts.Threshold, false),
		Level:        level,
		Evidence:     evidence,
	}
	if !isAbnormal {
		return finding, nil
	}

	issue := "gaussian_noise"
	switch {
	case saltPepperRatio >= d.opts.SaltPepperRatio && saltPepperRatio >= snowRatio:
		issue = "salt_pepper_noise"
	case snowRatio >= d.opts.SnowRatio:
		issue = "snow_noise"
	}

	finding.IssueType = issue
	finding.Severity = frame.SeverityInfo
	switch issue {
	case "salt_pepper_noise":
		finding.Explanation = fmt.Sprintf("impulse (salt-and-pepper) pixel ratio %.3f dominates (noise level %.2f)", saltPepperRatio, score)
		finding.PossibleCauses = []string{"sensor defect (dead/stuck pixels)", "transmission bit errors", "aggressive lossy compression artifacts"}
		finding.Suggestions = []string{"check sensor health", "verify transmission integrity", "reduce compression aggressiveness"}
	case "snow_noise":
		finding.Explanation = fmt.Sprintf("bright low-saturation speckle ratio %.3f dominates (noise level %.2f)", snowRatio, score)
		finding.PossibleCauses = []string{"weak RF/analog signal", "sensor gain pushed too high in low light"}
		finding.Suggestions = []string{"check signal strength", "reduce sensor gain or improve lighting"}
	default:
		finding.Explanation = fmt.Sprintf("estimated noise level %.2f exceeds threshold %.2f", score, d.opts.Threshold)
		finding.PossibleCauses = []string{"low-light sensor gain", "aggressive compression", "transmission interference"}
		finding.Suggestions = []string{"improve scene lighting", "reduce sensor gain", "check encoder bitrate"}
	}
	return finding, nil
}

// laplacianMAD is the classic fast noise-sigma estimate: the median
// absolute deviation of the second derivative, scaled by 1/0.6745 to match
// a gaussian sigma.
func laplacianMAD(gray gocv.Mat) float64 {
	lap := gocv.NewMat()
	defer lap.Close()
	gocv.Laplacian(gray, &lap, gocv.MatTypeCV64F, 1, 1, 0, gocv.BorderDefault)

	abs8 := gocv.NewMat()
	defer abs8.Close()
	gocv.ConvertScaleAbs(lap, &abs8, 1, 0)

	var hist [256]int
	rows, cols := abs8.Rows(), abs8.Cols()
	total := rows * cols
	if total == 0 {
		return 0
	}
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			hist[abs8.GetUCharAt(r, c)]++
		}
	}
	half := total / 2
	cum := 0
	median := 0
	for v, n := range hist {
		cum += n
		if cum >= half {
			median = v
			break
		}
	}
	return float64(median) / 0.6745
}

// medianResidualStd returns the standard deviation of the residual left by
// a 5x5 median filter, which removes impulse-like noise while preserving
// edges.
func medianResidualStd(gray gocv.Mat) float64 {
	denoised := gocv.NewMat()
	defer denoised.Close()
	gocv.MedianBlur(gray, &denoised, 5)

	residual := gocv.NewMat()
	defer residual.Close()
	gocv.AbsDiff(gray, denoised, &residual)

	_, std := meanStdDev(residual)
	return std
}

// highFreqEnergyRatio returns the mean DFT magnitude outside the low-
// frequency corner regions relative to the overall mean. In the unshifted
// spectrum the low frequencies sit at the four corners, within an eighth of
// each axis.
func highFreqEnergyRatio(gray gocv.Mat) float64 {
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
	if rows == 0 || cols == 0 {
		return 0
	}
	rBand, cBand := rows/8, cols/8

	var totalSum, highSum float64
	highCount := 0
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			v := float64(mag.GetFloatAt(r, c))
			totalSum += v
			lowR := r < rBand || r >= rows-rBand
			lowC := c < cBand || c >= cols-cBand
			if !(lowR && lowC) {
				highSum += v
				highCount++
			}
		}
	}
	totalMean := totalSum / float64(rows*cols)
	if totalMean == 0 || highCount == 0 {
		return 0
	}
	return (highSum / float64(highCount)) / totalMean
}

// impulseRatio returns the fraction of pixels at or below low or at or
// above high, the signature of salt-and-pepper impulse noise.
func impulseRatio(gray gocv.Mat, low, high float64) float64 {
	rows, cols := gray.Rows(), gray.Cols()
	total := rows * cols
	if total == 0 {
		return 0
	}
	count := 0
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			v := float64(gray.GetUCharAt(r, c))
			if v <= low || v >= high {
				count++
			}
		}
	}
	return float64(count) / float64(total)
}

// snowSpeckleRatio returns the fraction of pixels that are bright
// (value >= valueThreshold) yet low-saturation (sat <= satThreshold), the
// signature of "snow" speckle on a weak analog/RF feed.
func snowSpeckleRatio(sat, val gocv.Mat, satThreshold, valueThreshold float64) float64 {
	rows, cols := sat.Rows(), sat.Cols()
	total := rows * cols
	if total == 0 {
		return 0
	}
	count := 0
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			s := float64(sat.GetUCharAt(r, c))
			v := float64(val.GetUCharAt(r, c))
			if v >= valueThreshold && s <= satThreshold {
				count++
			}
		}
	}
	return float64(count) / float64(total)
}
