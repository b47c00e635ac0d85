package videodetect

import (
	"testing"
	"time"

	"gocv.io/x/gocv"

	"github.com/rendiffdev/visionguard/internal/frame"
)

func solidFrames(n int, value float64, w, h int) []frame.Frame {
	frames := make([]frame.Frame, n)
	for i := range frames {
		mat := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(value, value, value, 0), h, w, gocv.MatTypeCV8UC3)
		frames[i] = frame.New(mat, "f", "")
	}
	return frames
}

func timestampsAt(n int, fps float64) []time.Duration {
	out := make([]time.Duration, n)
	for i := range out {
		out[i] = time.Duration(float64(i)/fps*float64(time.Second))
	}
	return out
}

func TestFreezeDetectsIdenticalRun(t *testing.T) {
	frames := solidFrames(40, 128, 64, 64)
	defer func() {
		for _, f := range frames {
			f.Close()
		}
	}()
	d := newFreezeDetector(frame.DefaultProfile())
	result, err := d.Detect(frames, 30, timestampsAt(40, 30))
	if err != nil {
		t.Fatalf("Detect returned error: %v", err)
	}
	if !result.IsAbnormal {
		t.Error("40 identical frames should register as a freeze")
	}
	if len(result.Segments) != 1 {
		t.Errorf("got %d segments, want 1", len(result.Segments))
	}
	if result.FramesAnalyzed != 40 {
		t.Errorf("FramesAnalyzed = %d, want 40", result.FramesAnalyzed)
	}
	if len(result.Segments) == 1 {
		seg := result.Segments[0]
		wantDur := time.Duration(float64(39)/30*float64(time.Second))
		if got := seg.Duration(); got < wantDur-50*time.Millisecond || got > wantDur+50*time.Millisecond {
			t.Errorf("segment duration = %v, want ~%v", got, wantDur)
		}
	}
}

func TestFreezeNormalResultUsesSentinelIssueType(t *testing.T) {
	frames := solidFrames(1, 128, 64, 64)
	defer frames[0].Close()
	d := newFreezeDetector(frame.DefaultProfile())
	result, err := d.Detect(frames, 30, timestampsAt(1, 30))
	if err != nil {
		t.Fatalf("Detect returned error: %v", err)
	}
	if result.IsAbnormal {
		t.Fatal("a single frame cannot freeze")
	}
	if result.IssueType != "freeze_normal" {
		t.Errorf("IssueType = %q, want freeze_normal for a normal result", result.IssueType)
	}
}

func TestSceneChangeDetectsAlternatingFrames(t *testing.T) {
	var frames []frame.Frame
	for i := 0; i < 20; i++ {
		value := 10.0
		if i%2 == 0 {
			value = 240.0
		}
		mat := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(value, value, value, 0), 64, 64, gocv.MatTypeCV8UC3)
		frames = append(frames, frame.New(mat, "f", ""))
	}
	defer func() {
		for _, f := range frames {
			f.Close()
		}
	}()
	d := newSceneChangeDetector(frame.DefaultProfile())
	result, err := d.Detect(frames, 30, timestampsAt(20, 30))
	if err != nil {
		t.Fatalf("Detect returned error: %v", err)
	}
	if !result.IsAbnormal {
		t.Error("rapidly alternating frames should exceed max changes per minute")
	}
}

func TestRegistryDefaultOrder(t *testing.T) {
	r := New()
	dets := r.Default(frame.DefaultProfile())
	if len(dets) != 3 {
		t.Fatalf("Default returned %d detectors, want 3", len(dets))
	}
	wantOrder := []string{"freeze", "scene_change", "shake"}
	for i, d := range dets {
		if d.Name() != wantOrder[i] {
			t.Errorf("position %d = %s, want %s", i, d.Name(), wantOrder[i])
		}
	}
}

func TestRegistryByNamesUnknownErrors(t *testing.T) {
	r := New()
	if _, err := r.ByNames([]string{"freeze", "nonexistent"}, frame.DefaultProfile()); err == nil {
		t.Fatal("ByNames with an unknown name should return an error")
	}
}
