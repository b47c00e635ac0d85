package detectors

import (
	"context"
	"fmt"

	"github.com/rendiffdev/visionguard/internal/frame"
	"github.com/rendiffdev/visionguard/internal/registry"
)

// blurDetector reports low edge / high-frequency energy. FAST uses the
// variance of a second-derivative (Laplacian) operator; STANDARD blends in
// first-order gradient magnitude (Sobel); DEEP additionally blends in Canny
// edge density. No multiscale, Brenner or Tenengrad measure is computed.
type blurDetector struct {
	opts frame.BlurOptions
}

func newBlurDetector(profile frame.Profile) registry.Detector {
	return &blurDetector{opts: profile.Blur}
}

func (d *blurDetector) Metadata() registry.Metadata {
	return registry.Metadata{
		Name:        "blur",
		DisplayName: "Blur",
		Description: "Detects low edge / high-frequency energy indicating an out-of-focus or blurred frame.",
		Version:     "1.0.0",
		Priority:    50,
		SupportedLevels: []frame.Level{frame.LevelFast, frame.LevelStandard, frame.LevelDeep},
	}
}

func (d *blurDetector) Detect(_ context.Context, f frame.Frame, level frame.Level) (frame.Finding, error) {
	gray := toGray(f.Mat)
	defer gray.Close()

	lapScore := laplacianVariance(gray)
	score := lapScore

	if level >= frame.LevelStandard {
		grad := sobelEnergy(gray)
		score = 0.7*lapScore + 0.3*grad*10
	}
	if level >= frame.LevelDeep {
		density := edgeDensity(gray)
		score = 0.5*score + 0.5*(density*1000)
	}

	threshold := d.opts.Threshold
	if threshold == 0 {
		threshold = 100
	}
	isAbnormal := score < threshold
	ratio := score / threshold

	severity := frame.SeverityNormal
	issue := "blur_normal"
	if isAbnormal {
		issue = "blur"
		switch {
		case ratio >= 0.7:
			severity = frame.SeverityInfo
		case ratio >= 0.4:
			severity = frame.SeverityWarning
		default:
			severity = frame.SeverityCritical
		}
	}

	finding := frame.Finding{
		DetectorName: "blur",
		IssueType:    issue,
		IsAbnormal:   isAbnormal,
		Score:        score,
		Threshold:    threshold,
		Confidence:   frame.Confidence(score, threshold, true),
		Severity:     severity,
		Level:        level,
		Evidence: frame.Evidence{
			"laplacian_variance": lapScore,
			"threshold_ratio":    ratio,
		},
	}
	if isAbnormal {
		finding.Explanation = fmt.Sprintf("image sharpness score %.1f is below threshold %.1f", score, threshold)
		finding.PossibleCauses = []string{"out-of-focus lens", "motion blur", "compression artifacting"}
		finding.Suggestions = []string{"check focus", "check for camera or subject motion", "verify encoder bitrate"}
	} else {
		finding.Explanation = fmt.Sprintf("image sharpness score %.1f meets threshold %.1f", score, threshold)
	}
	return finding, nil
}
