package pipeline

import (
	"testing"
	"time"

	"github.com/rendiffdev/visionguard/internal/frame"
	"github.com/rendiffdev/visionguard/internal/videodetect"
)

func TestAggregateVideoEmptyResultsIsNormal(t *testing.T) {
	diag := aggregateVideo(nil, "clip.mp4", "clip", VideoMetadata{Width: 640, Height: 480, FPS: 30})
	if diag.IsAbnormal {
		t.Error("no detector results should aggregate to a normal diagnosis")
	}
	if diag.OverallScore != 100 {
		t.Errorf("got overall_score=%v, want 100", diag.OverallScore)
	}
	if diag.PrimaryIssue != nil {
		t.Errorf("got primary_issue=%v, want nil", diag.PrimaryIssue)
	}
}

// Scenario 4 (§8): a single freeze segment surfaces as one VideoIssue and
// deducts exactly the critical-severity penalty from overall_score.
func TestAggregateVideoFreezeSegmentPenalizesScore(t *testing.T) {
	results := []videodetect.Result{
		{
			DetectorName: "freeze",
			IssueType:    "freeze",
			IsAbnormal:   true,
			Severity:     frame.SeverityCritical,
			Segments: []videodetect.Segment{
				{StartFrame: 0, EndFrame: 39, StartTime: 0, EndTime: 39 * time.Second / 30, Confidence: 0.9},
			},
		},
	}
	diag := aggregateVideo(results, "clip.mp4", "clip", VideoMetadata{Width: 640, Height: 480, FPS: 30, Duration: 2})

	if !diag.IsAbnormal {
		t.Fatal("expected an abnormal diagnosis")
	}
	if len(diag.Issues) != 1 {
		t.Fatalf("got %d issues, want 1", len(diag.Issues))
	}
	if diag.Issues[0].IssueType != "freeze" {
		t.Errorf("got issue_type=%s, want freeze", diag.Issues[0].IssueType)
	}
	wantScore := 100.0 - 30.0
	if diag.OverallScore != wantScore {
		t.Errorf("got overall_score=%v, want %v", diag.OverallScore, wantScore)
	}
	if len(diag.Results) != 1 {
		t.Errorf("got %d detector results, want the full per-detector list carried through", len(diag.Results))
	}
	if diag.PrimaryIssue == nil || *diag.PrimaryIssue != "freeze" {
		t.Errorf("got primary_issue=%v, want freeze", diag.PrimaryIssue)
	}
	if diag.Severity != frame.SeverityCritical {
		t.Errorf("got severity=%s, want critical", diag.Severity)
	}
}

// Scenario 5 (§8): a barrage of scene-change segments is time-ordered in
// the aggregated Issues list regardless of per-detector output order, and
// overall_score never goes negative no matter how many segments pile up.
func TestAggregateVideoSceneChangeBarrageOrdersByTimeAndFloorsScore(t *testing.T) {
	seg := func(startSec int) videodetect.Segment {
		return videodetect.Segment{
			StartTime: time.Duration(startSec) * time.Second,
			EndTime:   time.Duration(startSec+1) * time.Second,
			Confidence: 0.8,
		}
	}
	results := []videodetect.Result{
		{
			DetectorName: "scene_change",
			IssueType:    "scene_change",
			IsAbnormal:   true,
			Severity:     frame.SeverityWarning,
			Segments:     []videodetect.Segment{seg(5), seg(1), seg(9)},
		},
		{
			DetectorName: "shake",
			IssueType:    "shake",
			IsAbnormal:   true,
			Severity:     frame.SeverityWarning,
			Segments:     []videodetect.Segment{seg(3)},
		},
	}
	diag := aggregateVideo(results, "clip.mp4", "clip", VideoMetadata{Width: 640, Height: 480, FPS: 30})

	if len(diag.Issues) != 4 {
		t.Fatalf("got %d issues, want 4", len(diag.Issues))
	}
	for i := 1; i < len(diag.Issues); i++ {
		if diag.Issues[i].StartTime < diag.Issues[i-1].StartTime {
			t.Fatalf("issues not ordered by start time: %v before %v", diag.Issues[i-1].StartTime, diag.Issues[i].StartTime)
		}
	}
	if diag.OverallScore < 0 {
		t.Errorf("overall_score went negative: %v", diag.OverallScore)
	}
}

func TestAggregateVideoNoFramesDiagnosis(t *testing.T) {
	diag := frame.NewNoFramesVideoDiagnosis("clip.mp4", "clip", 640, 480, 0, 30, 0)
	if !diag.IsAbnormal {
		t.Error("a video with no sampled frames should be reported abnormal")
	}
	if diag.Severity != frame.SeverityCritical {
		t.Errorf("got severity=%s, want critical", diag.Severity)
	}
	if diag.PrimaryIssue == nil || *diag.PrimaryIssue != "no_frames" {
		t.Errorf("got primary_issue=%v, want no_frames", diag.PrimaryIssue)
	}
}
