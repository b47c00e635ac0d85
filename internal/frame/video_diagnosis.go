package frame

import (
	"encoding/json"
	"time"
)

// VideoIssue is one time-ordered entry in a Video Diagnosis's issue list.
type VideoIssue struct {
	IssueType   string        `json:"issue_type"`
	Severity    Severity      `json:"severity"`
	StartTime   time.Duration `json:"-"`
	EndTime     time.Duration `json:"-"`
	Duration    time.Duration `json:"-"`
	Confidence  float64       `json:"confidence"`
	Description string        `json:"description"`
}

// StartTimeSeconds and EndTimeSeconds render the issue's span in seconds
// for report-file output.
func (i VideoIssue) StartTimeSeconds() float64 { return i.StartTime.Seconds() }
func (i VideoIssue) EndTimeSeconds() float64   { return i.EndTime.Seconds() }
func (i VideoIssue) DurationSeconds() float64  { return i.Duration.Seconds() }

// MarshalJSON renders the issue's span as seconds, the unit the report
// file uses for every video timestamp.
func (i VideoIssue) MarshalJSON() ([]byte, error) {
	type alias VideoIssue
	return json.Marshal(struct {
		alias
		StartTime float64 `json:"start_time"`
		EndTime   float64 `json:"end_time"`
		Duration  float64 `json:"duration"`
	}{
		alias:     alias(i),
		StartTime: i.StartTimeSeconds(),
		EndTime:   i.EndTimeSeconds(),
		Duration:  i.DurationSeconds(),
	})
}

// VideoSegment is a contiguous abnormal run within a sampled frame
// sequence. Segments never overlap within one detector's own output, but
// segments from different detectors may.
type VideoSegment struct {
	StartFrame int           `json:"start_frame"`
	EndFrame   int           `json:"end_frame"`
	StartTime  time.Duration `json:"-"`
	EndTime    time.Duration `json:"-"`
	Confidence float64       `json:"confidence"`
	Metadata   Evidence      `json:"metadata,omitempty"`
}

func (s VideoSegment) Duration() time.Duration { return s.EndTime - s.StartTime }

// MarshalJSON renders the segment's span as seconds, matching VideoIssue.
func (s VideoSegment) MarshalJSON() ([]byte, error) {
	type alias VideoSegment
	return json.Marshal(struct {
		alias
		StartTime float64 `json:"start_time"`
		EndTime   float64 `json:"end_time"`
		Duration  float64 `json:"duration"`
	}{
		alias:     alias(s),
		StartTime: s.StartTime.Seconds(),
		EndTime:   s.EndTime.Seconds(),
		Duration:  s.Duration().Seconds(),
	})
}

// VideoDetectionResult is one video detector's full output over a sampled
// sequence: the same verdict atoms a Finding carries, with the segments
// list standing in for per-frame evidence.
type VideoDetectionResult struct {
	DetectorName string   `json:"detector_name"`
	IssueType    string   `json:"issue_type"`
	IsAbnormal   bool     `json:"is_abnormal"`
	Severity     Severity `json:"severity"`
	Score        float64  `json:"score"`
	Threshold    float64  `json:"threshold"`
	Confidence   float64  `json:"confidence"`

	Explanation    string   `json:"explanation,omitempty"`
	PossibleCauses []string `json:"possible_causes,omitempty"`
	Suggestions    []string `json:"suggestions,omitempty"`

	Segments       []VideoSegment `json:"segments"`
	FramesAnalyzed int            `json:"frames_analyzed"`

	ProcessTime time.Duration `json:"-"`
}

// VideoDiagnosis is the per-video aggregate produced by the Video Pipeline.
type VideoDiagnosis struct {
	VideoPath string `json:"video_path"`
	VideoID   string `json:"video_id"`

	Width         int     `json:"width"`
	Height        int     `json:"height"`
	FPS           float64 `json:"fps"`
	Duration      float64 `json:"duration"`
	FrameCount    int     `json:"frame_count"`
	SampledFrames int     `json:"sampled_frames"`

	IsAbnormal   bool     `json:"is_abnormal"`
	OverallScore float64  `json:"overall_score"`
	PrimaryIssue *string  `json:"primary_issue"`
	Severity     Severity `json:"severity"`

	Issues  []VideoIssue           `json:"issues"`
	Results []VideoDetectionResult `json:"detector_results"`

	ProcessTime time.Duration `json:"-"`
}

func (v VideoDiagnosis) ProcessTimeMS() float64 {
	return float64(v.ProcessTime.Microseconds()) / 1000.0
}

// NewNoFramesVideoDiagnosis synthesizes the error diagnosis the Video
// Pipeline returns when the sampler produces nothing (§4.4 step 3).
func NewNoFramesVideoDiagnosis(path, videoID string, width, height, frameCount int, fps, duration float64) VideoDiagnosis {
	issue := "no_frames"
	return VideoDiagnosis{
		VideoPath:    path,
		VideoID:      videoID,
		Width:        width,
		Height:       height,
		FPS:          fps,
		Duration:     duration,
		FrameCount:   frameCount,
		IsAbnormal:   true,
		OverallScore: 0,
		PrimaryIssue: &issue,
		Severity:     SeverityCritical,
	}
}
