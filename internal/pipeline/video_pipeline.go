package pipeline

import (
	"context"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/rendiffdev/visionguard/internal/frame"
	"github.com/rendiffdev/visionguard/internal/metrics"
	"github.com/rendiffdev/visionguard/internal/videodetect"
	"github.com/rendiffdev/visionguard/pkg/logger"
)

// severityPenalty is the fixed per-severity deduction applied to a Video
// Diagnosis's overall_score (§4.4 step 5).
var severityPenalty = map[frame.Severity]float64{
	frame.SeverityInfo:     5,
	frame.SeverityWarning:  15,
	frame.SeverityCritical: 30,
}

// VideoPipeline samples a video and runs the injected video detector set
// over the sample, aggregating their segments into a VideoDiagnosis.
type VideoPipeline struct {
	videoRegistry *videodetect.Registry
	profile       frame.Profile
	sampler       FrameSampler
}

// NewVideoPipeline constructs a pipeline bound to profile, using the
// engine's default INTERVAL sampler.
func NewVideoPipeline(videoRegistry *videodetect.Registry, profile frame.Profile) *VideoPipeline {
	return &VideoPipeline{
		videoRegistry: videoRegistry,
		profile:       profile,
		sampler:       NewFrameSampler(),
	}
}

// WithSampler overrides the pipeline's sampling strategy/bounds.
func (p *VideoPipeline) WithSampler(s FrameSampler) *VideoPipeline {
	p.sampler = s
	return p
}

// Diagnose runs the Video Pipeline protocol against videoPath.
func (p *VideoPipeline) Diagnose(ctx context.Context, videoPath string, detectorNames []string) (frame.VideoDiagnosis, error) {
	start := time.Now()
	log := logger.WithComponent(logger.New("info"), "video_pipeline")

	src, err := OpenVideoSource(videoPath)
	if err != nil {
		return frame.VideoDiagnosis{}, err
	}
	defer src.Close()

	meta := src.Metadata()
	videoID := strings.TrimSuffix(filepath.Base(videoPath), filepath.Ext(videoPath))

	frames, _, timestamps := p.sampler.Sample(src)
	defer func() {
		for _, f := range frames {
			f.Close()
		}
	}()

	if len(frames) == 0 {
		diag := frame.NewNoFramesVideoDiagnosis(videoPath, videoID, meta.Width, meta.Height, meta.FrameCount, meta.FPS, meta.Duration)
		diag.ProcessTime = time.Since(start)
		return diag, nil
	}

	var detectors []videodetect.Detector
	if len(detectorNames) > 0 {
		detectors, err = p.videoRegistry.ByNames(detectorNames, p.profile)
		if err != nil {
			return frame.VideoDiagnosis{}, err
		}
	} else {
		detectors = p.videoRegistry.Default(p.profile)
	}

	var results []videodetect.Result
	for _, d := range detectors {
		if ctx.Err() != nil {
			break
		}
		result, err := d.Detect(frames, meta.FPS, timestamps)
		if err != nil {
			log.Warn().Str("detector", d.Name()).Err(err).Msg("video detector failed, dropping")
			continue
		}
		results = append(results, result)
	}

	diag := aggregateVideo(results, videoPath, videoID, meta)
	diag.SampledFrames = len(frames)
	diag.ProcessTime = time.Since(start)
	return diag, nil
}

func aggregateVideo(results []videodetect.Result, path, videoID string, meta VideoMetadata) frame.VideoDiagnosis {
	type timedIssue struct {
		issue frame.VideoIssue
	}

	var issues []timedIssue
	for _, r := range results {
		if !r.IsAbnormal {
			continue
		}
		for _, seg := range r.Segments {
			issues = append(issues, timedIssue{frame.VideoIssue{
				IssueType:   r.IssueType,
				Severity:    r.Severity,
				StartTime:   seg.StartTime,
				EndTime:     seg.EndTime,
				Duration:    seg.Duration(),
				Confidence:  seg.Confidence,
				Description: r.DetectorName + " flagged " + r.IssueType,
			}})
		}
	}
	sort.SliceStable(issues, func(i, j int) bool { return issues[i].issue.StartTime < issues[j].issue.StartTime })

	out := make([]frame.VideoIssue, len(issues))
	for i, ti := range issues {
		out[i] = ti.issue
	}

	var primaryIssue *string
	maxSeverity := frame.SeverityNormal
	abnormalCount := 0
	score := 100.0

	for _, r := range results {
		if !r.IsAbnormal {
			continue
		}
		abnormalCount++
		score -= severityPenalty[r.Severity]
		if r.Severity >= maxSeverity {
			if primaryIssue == nil || r.Severity > maxSeverity {
				issue := r.IssueType
				primaryIssue = &issue
			}
			maxSeverity = r.Severity
		}
		metrics.VideoDiagnosesTotal.WithLabelValues(r.IssueType).Inc()
	}
	if score < 0 {
		score = 0
	}

	return frame.VideoDiagnosis{
		VideoPath:    path,
		VideoID:      videoID,
		Width:        meta.Width,
		Height:       meta.Height,
		FPS:          meta.FPS,
		Duration:     meta.Duration,
		FrameCount:   meta.FrameCount,
		IsAbnormal:   abnormalCount > 0,
		OverallScore: score,
		PrimaryIssue: primaryIssue,
		Severity:     maxSeverity,
		Issues:       out,
		Results:      results,
	}
}
