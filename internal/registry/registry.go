package registry

import (
	"fmt"
	"sort"
	"sync"

	"github.com/rendiffdev/visionguard/internal/apperrors"
	"github.com/rendiffdev/visionguard/internal/frame"
)

// Registry is the process-wide mapping from detector name to factory.
// Entries are populated once at startup by Register calls; there is
// no dynamic add/remove during normal operation. Instances are memoized on
// (name, full profile value) so repeated lookups within a run return the same
// detector value, while a fresh Registry (or ClearCache) starts clean
// between runs. Reads take the read lock; writes (Register, ClearCache, and
// Get when it memoizes a new instance) take the write lock.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
	meta      map[string]Metadata
	instances map[string]Detector
}

// New constructs an empty Registry.
func New() *Registry {
	return &Registry{
		factories: make(map[string]Factory),
		meta:      make(map[string]Metadata),
		instances: make(map[string]Detector),
	}
}

// Register adds a detector factory under the given metadata's name. Called
// once per detector at process startup, never concurrently with lookups in
// practice, but safe either way.
func (r *Registry) Register(meta Metadata, factory Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[meta.Name] = factory
	r.meta[meta.Name] = meta
}

func cacheKey(name string, profile frame.Profile) string {
	return fmt.Sprintf("%s::%+v", name, profile)
}

// Get returns a memoized detector instance for name under profile, or
// ok=false if name was never registered.
func (r *Registry) Get(name string, profile frame.Profile) (Detector, bool) {
	key := cacheKey(name, profile)

	r.mu.RLock()
	if d, ok := r.instances[key]; ok {
		r.mu.RUnlock()
		return d, true
	}
	factory, known := r.factories[name]
	r.mu.RUnlock()
	if !known {
		return nil, false
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if d, ok := r.instances[key]; ok {
		return d, true
	}
	d := factory(profile)
	r.instances[key] = d
	return d, true
}

// GetByNames resolves a list of names in order, returning an error naming
// the first unknown detector (the expanded specification's input-error
// tightening of the source's silent-drop behavior).
func (r *Registry) GetByNames(names []string, profile frame.Profile) ([]Detector, error) {
	out := make([]Detector, 0, len(names))
	for _, name := range names {
		d, ok := r.Get(name, profile)
		if !ok {
			return nil, apperrors.UnknownDetector(name)
		}
		out = append(out, d)
	}
	return out, nil
}

// GetByLevel returns every registered detector that declares support for
// level, sorted ascending by priority (ties broken by registration name,
// for a stable deterministic order across runs).
func (r *Registry) GetByLevel(level frame.Level, profile frame.Profile) []Detector {
	r.mu.RLock()
	names := make([]string, 0, len(r.meta))
	for name, m := range r.meta {
		if m.supportsLevel(level) {
			names = append(names, name)
		}
	}
	r.mu.RUnlock()

	sort.Strings(names) // stable tie-break before priority sort below

	out := make([]Detector, 0, len(names))
	for _, name := range names {
		if d, ok := r.Get(name, profile); ok {
			out = append(out, d)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Metadata().Priority < out[j].Metadata().Priority
	})
	return out
}

// ListAll returns metadata for every registered detector.
func (r *Registry) ListAll() []Metadata {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Metadata, 0, len(r.meta))
	for _, m := range r.meta {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Priority < out[j].Priority })
	return out
}

// GetInfo returns metadata for a single detector, or ok=false if unknown.
func (r *Registry) GetInfo(name string) (Metadata, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.meta[name]
	return m, ok
}

// IsRegistered reports whether name has a registered factory.
func (r *Registry) IsRegistered(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.factories[name]
	return ok
}

// Count returns the number of registered detectors.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.factories)
}

// ClearCache drops every memoized instance without unregistering factories.
// Intended for use between test runs or long-lived process profile swaps.
func (r *Registry) ClearCache() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.instances = make(map[string]Detector)
}
