// Package registry holds the Detector interface and the process-wide
// registry of detector factories, keyed by stable name. Detectors register
// themselves explicitly at startup (internal/detectors/register.go)
// rather than through reflective discovery.
package registry

import (
	"context"

	"github.com/rendiffdev/visionguard/internal/frame"
)

// Detector is a pure analytic function from a frame to a Finding. Every
// concrete detector (Blur, Brightness, ...) implements this.
type Detector interface {
	// Detect evaluates the detector against one frame at the given level.
	// Implementations must be reentrant: concurrent calls on disjoint
	// frames never interfere, and no global mutable state is retained
	// between calls.
	Detect(ctx context.Context, f frame.Frame, level frame.Level) (frame.Finding, error)

	// Metadata describes the detector's identity, supported levels,
	// priority, and suppression relationships.
	Metadata() Metadata
}

// Metadata is the detector's declared identity, returned by both the
// detector itself and by registry lookups.
type Metadata struct {
	Name        string
	DisplayName string
	Description string
	Version     string
	Priority    int // smaller is higher priority
	SupportedLevels []frame.Level
	Suppresses  []string
}

func (m Metadata) supportsLevel(l frame.Level) bool {
	for _, lvl := range m.SupportedLevels {
		if lvl == l {
			return true
		}
	}
	return false
}

// Factory constructs a Detector instance bound to a specific profile.
type Factory func(profile frame.Profile) Detector
