package videodetect

import (
	"github.com/rendiffdev/visionguard/internal/apperrors"
	"github.com/rendiffdev/visionguard/internal/frame"
)

// Registry holds video detector factories keyed by name. Much smaller than
// the still-frame registry.Registry: there are only three video detectors,
// there is no per-level filtering, and no memoization is needed since the
// Video Pipeline builds a fresh instance set per call.
type Registry struct {
	factories map[string]Factory
	order     []string
}

// New returns a Registry pre-populated with Freeze, SceneChange, and Shake.
func New() *Registry {
	r := &Registry{factories: make(map[string]Factory)}
	r.register("freeze", newFreezeDetector)
	r.register("scene_change", newSceneChangeDetector)
	r.register("shake", newShakeDetector)
	return r
}

func (r *Registry) register(name string, f Factory) {
	r.factories[name] = f
	r.order = append(r.order, name)
}

// Default returns Freeze, SceneChange, and Shake instances bound to
// profile, in that fixed order — the Video Pipeline's default detector
// list.
func (r *Registry) Default(profile frame.Profile) []Detector {
	return r.byNames(r.order, profile)
}

// ByNames resolves an explicit ordered detector-name list, erroring on the
// first unknown name.
func (r *Registry) ByNames(names []string, profile frame.Profile) ([]Detector, error) {
	for _, name := range names {
		if _, ok := r.factories[name]; !ok {
			return nil, apperrors.UnknownDetector(name)
		}
	}
	return r.byNames(names, profile), nil
}

func (r *Registry) byNames(names []string, profile frame.Profile) []Detector {
	out := make([]Detector, 0, len(names))
	for _, name := range names {
		if f, ok := r.factories[name]; ok {
			out = append(out, f(profile))
		}
	}
	return out
}
