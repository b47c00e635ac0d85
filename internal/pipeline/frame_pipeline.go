// Package pipeline orchestrates detector fan-out and result aggregation:
// FramePipeline for single images, VideoPipeline for sampled video
// sequences. Both wrap a registry. FramePipeline applies a
// suppression-resolution strategy modeled on the original diagnosis
// pipeline's priority-sort + active-issue walk; VideoPipeline applies no
// suppression and aggregates its detectors' results by severity.
package pipeline

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/rendiffdev/visionguard/internal/apperrors"
	"github.com/rendiffdev/visionguard/internal/frame"
	"github.com/rendiffdev/visionguard/internal/metrics"
	"github.com/rendiffdev/visionguard/internal/registry"
	"github.com/rendiffdev/visionguard/pkg/logger"
)

const defaultDetectorDeadline = 5 * time.Second

// FramePipeline turns one frame into a Diagnosis. It owns a mutable
// suppression table so AddSuppressionRule/RemoveSuppressionRule can be
// called per-instance without affecting other pipelines.
type FramePipeline struct {
	registry *registry.Registry
	profile  frame.Profile
	log      zerolog.Logger
	deadline time.Duration

	mu          sync.RWMutex
	suppression map[string][]string
}

// defaultSuppressionRules is the engine's built-in global table.
func defaultSuppressionRules() map[string][]string {
	return map[string][]string{
		"signal_loss": {"too_dark", "blur", "low_contrast", "no_texture", "noise"},
		"black_screen": {"too_dark", "blur", "low_contrast", "no_texture", "noise"},
		"white_screen": {"too_dark", "blur", "low_contrast", "no_texture", "noise"},
		"solid_color":  {"too_dark", "blur", "low_contrast", "no_texture", "noise"},
		"blue_screen":  {"color_cast", "low_contrast", "low_saturation", "grayscale"},
		"green_screen": {"color_cast", "low_contrast", "low_saturation", "grayscale"},
		"snow_noise":   {"blur", "noise"},
		"occlusion":    {"partial_blur", "blur"},
	}
}

// NewFramePipeline constructs a pipeline bound to reg and profile, seeded
// with the default suppression table.
func NewFramePipeline(reg *registry.Registry, profile frame.Profile) *FramePipeline {
	return &FramePipeline{
		registry:    reg,
		profile:     profile,
		log:         logger.WithComponent(logger.New("info"), "frame_pipeline"),
		deadline:    defaultDetectorDeadline,
		suppression: defaultSuppressionRules(),
	}
}

// WithDetectorDeadline overrides the per-detector call deadline.
func (p *FramePipeline) WithDetectorDeadline(d time.Duration) *FramePipeline {
	if d > 0 {
		p.deadline = d
	}
	return p
}

// AddSuppressionRule makes suppressor additionally suppress suppressed,
// appending to any existing rule for that key.
func (p *FramePipeline) AddSuppressionRule(suppressor, suppressed string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.suppression[suppressor] = append(p.suppression[suppressor], suppressed)
}

// RemoveSuppressionRule drops suppressed from suppressor's rule, if present.
func (p *FramePipeline) RemoveSuppressionRule(suppressor, suppressed string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	list := p.suppression[suppressor]
	for i, v := range list {
		if v == suppressed {
			p.suppression[suppressor] = append(list[:i], list[i+1:]...)
			return
		}
	}
}

// Diagnose runs the Frame Pipeline protocol: resolve detectors, dispatch,
// sort by priority, resolve suppression, compose the Diagnosis.
func (p *FramePipeline) Diagnose(ctx context.Context, f frame.Frame, level frame.Level, detectorNames []string, imageID, imagePath string) (frame.Diagnosis, error) {
	start := time.Now()

	if !f.Valid() {
		return frame.NewErrorDiagnosis(imageID, imagePath, p.profile.Name, level), nil
	}

	var detectors []registry.Detector
	if len(detectorNames) > 0 {
		var err error
		detectors, err = p.registry.GetByNames(detectorNames, p.profile)
		if err != nil {
			return frame.Diagnosis{}, err
		}
	} else {
		detectors = p.registry.GetByLevel(level, p.profile)
	}

	if len(detectors) == 0 {
		return frame.NewErrorDiagnosis(imageID, imagePath, p.profile.Name, level), nil
	}

	var findings []frame.Finding
	if p.profile.ParallelDetection && len(detectors) > 1 {
		findings = p.parallelDetect(ctx, f, detectors, level)
	} else {
		findings = p.sequentialDetect(ctx, f, detectors, level)
	}

	diag := p.aggregate(findings, detectors, imageID, imagePath, f, level)
	diag.TotalProcessTime = time.Since(start)
	diag.Timestamp = time.Now()
	diag.ConfigProfile = p.profile.Name
	return diag, nil
}

func (p *FramePipeline) sequentialDetect(ctx context.Context, f frame.Frame, detectors []registry.Detector, level frame.Level) []frame.Finding {
	var findings []frame.Finding
	for _, d := range detectors {
		if finding, ok := p.runOne(ctx, d, f, level); ok {
			findings = append(findings, finding)
		}
	}
	return findings
}

func (p *FramePipeline) parallelDetect(ctx context.Context, f frame.Frame, detectors []registry.Detector, level frame.Level) []frame.Finding {
	maxWorkers := p.profile.MaxWorkers
	if maxWorkers <= 0 {
		maxWorkers = 4
	}

	sem := make(chan struct{}, maxWorkers)
	var wg sync.WaitGroup
	var mu sync.Mutex
	var findings []frame.Finding

	for _, d := range detectors {
		d := d
		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()
			if finding, ok := p.runOne(ctx, d, f, level); ok {
				mu.Lock()
				findings = append(findings, finding)
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	return findings
}

// runOne invokes one detector under a per-call deadline, recording metrics
// and dropping (logging) any failure so the run still completes.
func (p *FramePipeline) runOne(ctx context.Context, d registry.Detector, f frame.Frame, level frame.Level) (frame.Finding, bool) {
	name := d.Metadata().Name
	callCtx, cancel := context.WithTimeout(ctx, p.deadline)
	defer cancel()

	type outcome struct {
		finding frame.Finding
		err     error
	}
	done := make(chan outcome, 1)
	started := time.Now()

	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- outcome{err: apperrors.Internal("detector panicked", nil)}
			}
		}()
		finding, err := d.Detect(callCtx, f, level)
		done <- outcome{finding: finding, err: err}
	}()

	select {
	case res := <-done:
		elapsed := time.Since(started).Seconds()
		if res.err != nil || !res.finding.Valid() {
			outcome := "error"
			if res.err == nil {
				outcome = "invalid"
			}
			metrics.RecordDetector(name, outcome, elapsed)
			p.log.Warn().Str("detector", name).Err(res.err).Msg("detector failed, dropping")
			return frame.Finding{}, false
		}
		metrics.RecordDetector(name, "ok", elapsed)
		return res.finding, true
	case <-callCtx.Done():
		metrics.RecordDetector(name, "timeout", time.Since(started).Seconds())
		p.log.Warn().Str("detector", name).Msg("detector exceeded deadline, dropping")
		return frame.Finding{}, false
	}
}

func (p *FramePipeline) aggregate(findings []frame.Finding, detectors []registry.Detector, imageID, imagePath string, f frame.Frame, level frame.Level) frame.Diagnosis {
	priority := make(map[string]int, len(detectors))
	order := make(map[string]int, len(detectors))
	for i, d := range detectors {
		priority[d.Metadata().Name] = d.Metadata().Priority
		order[d.Metadata().Name] = i
	}

	sorted := make([]frame.Finding, len(findings))
	copy(sorted, findings)
	sort.SliceStable(sorted, func(i, j int) bool {
		pi, pj := priority[sorted[i].DetectorName], priority[sorted[j].DetectorName]
		if pi != pj {
			return pi < pj
		}
		return order[sorted[i].DetectorName] < order[sorted[j].DetectorName]
	})

	p.mu.RLock()
	defer p.mu.RUnlock()

	var suppressedIssues, activeIssues []string
	for _, finding := range sorted {
		if !finding.IsAbnormal {
			continue
		}
		issue := finding.IssueType
		suppressed := false
		for _, active := range activeIssues {
			for _, hidden := range p.suppression[active] {
				if hidden == issue {
					suppressedIssues = append(suppressedIssues, issue)
					metrics.RecordSuppression(active, issue)
					suppressed = true
					break
				}
			}
			if suppressed {
				break
			}
		}
		if !suppressed {
			activeIssues = append(activeIssues, issue)
		}
	}

	var primaryIssue *string
	severity := frame.SeverityNormal
	if len(activeIssues) > 0 {
		primaryIssue = &activeIssues[0]
		for _, finding := range sorted {
			if finding.IssueType == *primaryIssue {
				severity = finding.Severity
				break
			}
		}
	}

	scores := make(map[string]float64, len(sorted))
	for _, finding := range sorted {
		scores[finding.DetectorName] = finding.Score
	}

	w, h := f.Size()
	primaryName := ""
	if primaryIssue != nil {
		primaryName = *primaryIssue
	}
	metrics.RecordDiagnosis(primaryName, severity.String())

	return frame.Diagnosis{
		ImageID:           imageID,
		ImagePath:         imagePath,
		ImageWidth:        w,
		ImageHeight:       h,
		IsAbnormal:        len(activeIssues) > 0,
		PrimaryIssue:      primaryIssue,
		Severity:          severity,
		Findings:          sorted,
		SuppressedIssues:  suppressedIssues,
		IndependentIssues: activeIssues,
		Scores:            scores,
		Level:             level,
	}
}
