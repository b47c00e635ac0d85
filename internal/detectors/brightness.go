package detectors

import (
	"context"
	"fmt"

	"github.com/rendiffdev/visionguard/internal/frame"
	"github.com/rendiffdev/visionguard/internal/registry"
)

// brightnessDetector flags frames whose mean luminance sits outside an
// acceptable band: too_dark below MinMean, too_bright above MaxMean.
type brightnessDetector struct {
	opts frame.BrightnessOptions
}

func newBrightnessDetector(profile frame.Profile) registry.Detector {
	return &brightnessDetector{opts: profile.Brightness}
}

func (d *brightnessDetector) Metadata() registry.Metadata {
	return registry.Metadata{
		Name:        "brightness",
		DisplayName: "Brightness",
		Description: "Detects frames that are too dark or too bright.",
		Version:     "1.0.0",
		Priority:    30,
		SupportedLevels: []frame.Level{frame.LevelFast, frame.LevelStandard, frame.LevelDeep},
	}
}

func (d *brightnessDetector) Detect(_ context.Context, f frame.Frame, level frame.Level) (frame.Finding, error) {
	gray := toGray(f.Mat)
	defer gray.Close()
	mean, _ := meanStdDev(gray)

	isAbnormal := false
	issue := "brightness_normal"
	var threshold float64
	var higherIsBetter bool

	switch {
	case mean < d.opts.MinMean:
		isAbnormal = true
		issue = "too_dark"
		threshold = d.opts.MinMean
		higherIsBetter = true
	case mean > d.opts.MaxMean:
		isAbnormal = true
		issue = "too_bright"
		threshold = d.opts.MaxMean
		higherIsBetter = false
	default:
		threshold = d.opts.MinMean
		higherIsBetter = true
	}

	finding := frame.Finding{
		DetectorName: "brightness",
		IssueType:    issue,
		IsAbnormal:   isAbnormal,
		Score:        mean,
		Threshold:    threshold,
		Confidence:   frame.Confidence(mean, threshold, higherIsBetter),
		Level:        level,
		Evidence:     frame.Evidence{"mean_luminance": mean},
	}
	if isAbnormal {
		if issue == "too_dark" {
			finding.Severity = frame.SeverityWarning
			if mean < 5 {
				finding.Severity = frame.SeverityCritical
			}
			finding.Explanation = fmt.Sprintf("mean luminance %.1f is below the minimum %.1f", mean, d.opts.MinMean)
			finding.PossibleCauses = []string{"insufficient lighting", "exposure misconfiguration", "lens obstruction"}
			finding.Suggestions = []string{"increase scene lighting", "check camera exposure settings"}
		} else {
			finding.Severity = frame.SeverityWarning
			if mean > 250 {
				finding.Severity = frame.SeverityCritical
			}
			finding.Explanation = fmt.Sprintf("mean luminance %.1f is above the maximum %.1f", mean, d.opts.MaxMean)
			finding.PossibleCauses = []string{"overexposure", "direct light source in frame", "gain misconfiguration"}
			finding.Suggestions = []string{"reduce exposure or gain", "reposition camera away from direct light"}
		}
	}
	return finding, nil
}
