package detectors

import (
	"github.com/rendiffdev/visionguard/internal/frame"
	"github.com/rendiffdev/visionguard/internal/registry"
)

// RegisterAll wires every still-frame detector into r. Each factory's
// metadata is read off a throwaway default-profile instance so the
// registry's declared Metadata can never drift from what the detector
// itself reports.
//
// baselineSource is optional: when non-nil, the Baseline Comparison
// detector (§4.2's deep-level-only detector) is registered alongside the
// unconditional eight; when nil (no baseline directory configured), the
// engine runs without it rather than failing startup.
func RegisterAll(r *registry.Registry, baselineSource BaselineSource) {
	factories := []registry.Factory{
		newSignalLossDetector,
		newColorDetector,
		newOcclusionDetector,
		newBrightnessDetector,
		newBlurDetector,
		newNoiseDetector,
		newContrastDetector,
		newStripeDetector,
	}
	def := frame.DefaultProfile()
	for _, f := range factories {
		meta := f(def).Metadata()
		r.Register(meta, f)
	}

	if baselineSource == nil {
		return
	}
	baselineFactory := func(p frame.Profile) registry.Detector {
		return NewBaselineDetector(baselineSource, p.Baseline)
	}
	meta := baselineFactory(def).Metadata()
	r.Register(meta, baselineFactory)
}
