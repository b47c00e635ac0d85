package detectors

import (
	"context"
	"fmt"

	"github.com/rendiffdev/visionguard/internal/frame"
	"github.com/rendiffdev/visionguard/internal/registry"
)

// signalLossDetector catches the degenerate no-signal frames: solid black,
// solid white, or any other near-uniform solid color. Runs first (priority
// 10) because a dead feed makes much of the other detectors' output
// meaningless; its issues suppress too_dark, blur, low_contrast, no_texture
// and noise.
type signalLossDetector struct {
	opts frame.SignalLossOptions
}

func newSignalLossDetector(profile frame.Profile) registry.Detector {
	return &signalLossDetector{opts: profile.SignalLoss}
}

func (d *signalLossDetector) Metadata() registry.Metadata {
	return registry.Metadata{
		Name:        "signal_loss",
		DisplayName: "Signal Loss",
		Description: "Detects black screen, white screen, or other solid-color no-signal frames.",
		Version:     "1.0.0",
		Priority:    10,
		SupportedLevels: []frame.Level{frame.LevelFast, frame.LevelStandard, frame.LevelDeep},
		Suppresses: []string{"too_dark", "blur", "low_contrast", "no_texture", "noise"},
	}
}

func (d *signalLossDetector) Detect(_ context.Context, f frame.Frame, level frame.Level) (frame.Finding, error) {
	gray := toGray(f.Mat)
	defer gray.Close()

	mean, std := meanStdDev(gray)

	isSolid := std <= d.opts.SolidStdThreshold
	isAbnormal := false
	issue := "signal_normal"
	var kind string
	score := mean
	threshold := d.opts.BlackMeanThreshold

	// Black screen is decided on mean brightness alone: a dark frame is a
	// dead feed whether or not sensor noise keeps its std up. The white
	// and solid-color cases additionally require near-zero variation.
	switch {
	case mean <= d.opts.BlackMeanThreshold:
		isAbnormal = true
		issue = "black_screen"
		kind = "black"
	case isSolid && mean >= d.opts.WhiteMeanThreshold:
		isAbnormal = true
		issue = "white_screen"
		kind = "white"
		score = 255 - mean
		threshold = 255 - d.opts.WhiteMeanThreshold
	case isSolid:
		isAbnormal = true
		issue = "solid_color"
		kind = "solid_color"
		score = std
		threshold = d.opts.SolidStdThreshold
	}

	finding := frame.Finding{
		DetectorName: "signal_loss",
		IssueType:    issue,
		IsAbnormal:   isAbnormal,
		Score:        score,
		Threshold:    threshold,
		Confidence:   frame.Confidence(score, threshold, true),
		Level:        level,
		Evidence: frame.Evidence{
			"mean": mean,
			"std":  std,
		},
	}
	if isAbnormal {
		finding.Severity = frame.SeverityWarning
		if kind == "black" || kind == "white" {
			finding.Severity = frame.SeverityCritical
		}
		finding.Explanation = fmt.Sprintf("frame is a near-uniform %s frame (mean=%.1f, std=%.2f)", kind, mean, std)
		finding.PossibleCauses = []string{"upstream source disconnected", "encoder failure", "camera covered or powered off"}
		finding.Suggestions = []string{"check upstream source connectivity", "check camera power and cabling"}
	}
	return finding, nil
}
