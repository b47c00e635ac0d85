package registry

import (
	"context"
	"testing"

	"github.com/rendiffdev/visionguard/internal/frame"
)

type fakeDetector struct {
	meta Metadata
}

func (f *fakeDetector) Detect(_ context.Context, _ frame.Frame, _ frame.Level) (frame.Finding, error) {
	return frame.Finding{DetectorName: f.meta.Name, IssueType: f.meta.Name + "_normal"}, nil
}

func (f *fakeDetector) Metadata() Metadata { return f.meta }

func registerFake(r *Registry, name string, priority int, levels ...frame.Level) {
	meta := Metadata{Name: name, Priority: priority, SupportedLevels: levels}
	r.Register(meta, func(profile frame.Profile) Detector {
		return &fakeDetector{meta: meta}
	})
}

func TestRegistryGetByLevelOrdersByPriority(t *testing.T) {
	r := New()
	registerFake(r, "slow_one", 60, frame.LevelStandard)
	registerFake(r, "high_prio", 10, frame.LevelStandard)
	registerFake(r, "mid", 30, frame.LevelStandard)
	registerFake(r, "fast_only", 5, frame.LevelFast)

	got := r.GetByLevel(frame.LevelStandard, frame.DefaultProfile())
	if len(got) != 3 {
		t.Fatalf("GetByLevel returned %d detectors, want 3", len(got))
	}
	wantOrder := []string{"high_prio", "mid", "slow_one"}
	for i, d := range got {
		if d.Metadata().Name != wantOrder[i] {
			t.Errorf("position %d = %s, want %s", i, d.Metadata().Name, wantOrder[i])
		}
	}
}

func TestRegistryGetByNamesUnknownErrors(t *testing.T) {
	r := New()
	registerFake(r, "known", 10, frame.LevelStandard)

	if _, err := r.GetByNames([]string{"known", "nonexistent"}, frame.DefaultProfile()); err == nil {
		t.Fatal("GetByNames with an unknown name should return an error")
	}
}

func TestRegistryMemoizesByProfile(t *testing.T) {
	r := New()
	registerFake(r, "memo", 10, frame.LevelStandard)

	d1, _ := r.Get("memo", frame.DefaultProfile())
	d2, _ := r.Get("memo", frame.DefaultProfile())
	if d1 != d2 {
		t.Error("Get() with the same profile should return the memoized instance")
	}

	d3, _ := r.Get("memo", frame.StrictProfile())
	if d3 == d1 {
		t.Error("Get() with a different profile should not reuse the default-profile instance")
	}
}

func TestRegistryClearCache(t *testing.T) {
	r := New()
	registerFake(r, "memo", 10, frame.LevelStandard)
	d1, _ := r.Get("memo", frame.DefaultProfile())
	r.ClearCache()
	d2, _ := r.Get("memo", frame.DefaultProfile())
	if d1 == d2 {
		t.Error("ClearCache should force a new instance on next Get")
	}
}

func TestRegistryCountAndIsRegistered(t *testing.T) {
	r := New()
	if r.Count() != 0 {
		t.Fatalf("Count() on empty registry = %d, want 0", r.Count())
	}
	registerFake(r, "a", 1, frame.LevelStandard)
	registerFake(r, "b", 2, frame.LevelStandard)
	if r.Count() != 2 {
		t.Errorf("Count() = %d, want 2", r.Count())
	}
	if !r.IsRegistered("a") || r.IsRegistered("missing") {
		t.Error("IsRegistered behaved incorrectly")
	}
}
