package pipeline

import (
	"context"
	"testing"

	"gocv.io/x/gocv"

	"github.com/rendiffdev/visionguard/internal/detectors"
	"github.com/rendiffdev/visionguard/internal/frame"
	"github.com/rendiffdev/visionguard/internal/registry"
)

func solidFrame(value float64, width, height int) frame.Frame {
	mat := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(value, value, value, 0), height, width, gocv.MatTypeCV8UC3)
	return frame.New(mat, "test-frame", "")
}

func newTestPipeline() *FramePipeline {
	r := registry.New()
	detectors.RegisterAll(r, nil)
	return NewFramePipeline(r, frame.DefaultProfile())
}

// Scenario 1 (§8): an all-black frame is critical and the black_screen
// finding suppresses too_dark rather than letting both surface.
func TestFramePipelineBlackScreenSuppressesTooDark(t *testing.T) {
	p := newTestPipeline()
	f := solidFrame(0, 640, 480)
	defer f.Close()

	diag, err := p.Diagnose(context.Background(), f, frame.LevelStandard, nil, "img-1", "")
	if err != nil {
		t.Fatalf("Diagnose returned error: %v", err)
	}
	if !diag.IsAbnormal {
		t.Fatal("expected an all-black frame to be abnormal")
	}
	if diag.PrimaryIssue == nil || (*diag.PrimaryIssue != "black_screen" && *diag.PrimaryIssue != "signal_loss") {
		t.Errorf("got primary_issue=%v, want black_screen or signal_loss", diag.PrimaryIssue)
	}
	if diag.Severity != frame.SeverityCritical {
		t.Errorf("got severity=%s, want critical", diag.Severity)
	}
	foundSuppressed := false
	for _, issue := range diag.SuppressedIssues {
		if issue == "too_dark" {
			foundSuppressed = true
		}
	}
	for _, issue := range diag.IndependentIssues {
		if issue == "too_dark" {
			t.Error("too_dark should not survive as an independent issue once black_screen fires")
		}
	}
	if !foundSuppressed {
		t.Error("expected too_dark to appear in suppressed_issues")
	}
}

// Scenario 2 (§8): a uniform mid-grey frame is abnormal with solid_color
// or low_contrast as primary, the other suppressed or absent, at warning
// severity.
func TestFramePipelineMidGreySolidColorOrLowContrast(t *testing.T) {
	p := newTestPipeline()
	f := solidFrame(128, 640, 480)
	defer f.Close()

	diag, err := p.Diagnose(context.Background(), f, frame.LevelStandard, nil, "img-2", "")
	if err != nil {
		t.Fatalf("Diagnose returned error: %v", err)
	}
	if !diag.IsAbnormal {
		t.Fatal("expected a uniform mid-grey frame to be abnormal")
	}
	if diag.PrimaryIssue == nil || (*diag.PrimaryIssue != "solid_color" && *diag.PrimaryIssue != "low_contrast") {
		t.Errorf("got primary_issue=%v, want solid_color or low_contrast", diag.PrimaryIssue)
	}
	if diag.Severity != frame.SeverityWarning {
		t.Errorf("got severity=%s, want warning", diag.Severity)
	}
}

// Determinism law (§8): running twice with parallel detection disabled
// produces identical Diagnoses modulo timings/timestamp.
func TestFramePipelineDeterministicWithoutParallelism(t *testing.T) {
	profile := frame.DefaultProfile()
	profile.ParallelDetection = false
	r := registry.New()
	detectors.RegisterAll(r, nil)
	p := NewFramePipeline(r, profile)

	f := solidFrame(40, 320, 240)
	defer f.Close()

	d1, err := p.Diagnose(context.Background(), f, frame.LevelStandard, nil, "img-3", "")
	if err != nil {
		t.Fatalf("Diagnose returned error: %v", err)
	}
	d2, err := p.Diagnose(context.Background(), f, frame.LevelStandard, nil, "img-3", "")
	if err != nil {
		t.Fatalf("Diagnose returned error: %v", err)
	}

	if d1.IsAbnormal != d2.IsAbnormal {
		t.Fatalf("is_abnormal differs across runs: %v vs %v", d1.IsAbnormal, d2.IsAbnormal)
	}
	if len(d1.IndependentIssues) != len(d2.IndependentIssues) {
		t.Fatalf("independent issue count differs: %d vs %d", len(d1.IndependentIssues), len(d2.IndependentIssues))
	}
	for i := range d1.IndependentIssues {
		if d1.IndependentIssues[i] != d2.IndependentIssues[i] {
			t.Errorf("independent issue %d differs: %s vs %s", i, d1.IndependentIssues[i], d2.IndependentIssues[i])
		}
	}
	if len(d1.Findings) != len(d2.Findings) {
		t.Fatalf("finding count differs: %d vs %d", len(d1.Findings), len(d2.Findings))
	}
	for i := range d1.Findings {
		if d1.Findings[i].DetectorName != d2.Findings[i].DetectorName || d1.Findings[i].IssueType != d2.Findings[i].IssueType {
			t.Errorf("finding %d order/content differs: %+v vs %+v", i, d1.Findings[i], d2.Findings[i])
		}
	}
}

// Unknown detector names are an input error, not a silent drop, per the
// specification's redesign-flag resolution of the source's ambiguity.
func TestFramePipelineUnknownDetectorNameIsAnError(t *testing.T) {
	p := newTestPipeline()
	f := solidFrame(128, 64, 64)
	defer f.Close()

	_, err := p.Diagnose(context.Background(), f, frame.LevelStandard, []string{"not_a_real_detector"}, "img-4", "")
	if err == nil {
		t.Fatal("expected an error for an unknown detector name")
	}
}

// An invalid (empty) frame synthesizes an error Diagnosis rather than
// returning an error, per §4.3 step 2.
func TestFramePipelineEmptyFrameProducesErrorDiagnosis(t *testing.T) {
	p := newTestPipeline()
	var f frame.Frame

	diag, err := p.Diagnose(context.Background(), f, frame.LevelStandard, nil, "img-5", "")
	if err != nil {
		t.Fatalf("Diagnose returned error instead of an error Diagnosis: %v", err)
	}
	if diag.PrimaryIssue == nil || *diag.PrimaryIssue != "error" {
		t.Errorf("got primary_issue=%v, want error", diag.PrimaryIssue)
	}
	if diag.Severity != frame.SeverityCritical {
		t.Errorf("got severity=%s, want critical", diag.Severity)
	}
}
