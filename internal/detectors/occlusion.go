package detectors

import (
	"context"
	"fmt"
	"image"

	"gocv.io/x/gocv"

	"github.com/rendiffdev/visionguard/internal/frame"
	"github.com/rendiffdev/visionguard/internal/registry"
)

// occlusionDetector looks for a physically obstructed lens (a hand, cloth,
// or object pressed against it) by summing six weighted indicators: edge
// sparsity, low global contrast, low hue diversity, a narrow brightness
// range, the ratio of near-uniform blocks, and large pure-color regions.
// Two discounts then pull the score back down when the frame shows clear
// scene structure (plenty of edges and contrast) or rich, well-saturated
// color — both signatures of an unobstructed view that shares some low-
// texture statistics with an occluded one (sky, foliage, plain walls).
type occlusionDetector struct {
	opts frame.OcclusionOptions
}

func newOcclusionDetector(profile frame.Profile) registry.Detector {
	return &occlusionDetector{opts: profile.Occlusion}
}

func (d *occlusionDetector) Metadata() registry.Metadata {
	return registry.Metadata{
		Name:        "occlusion",
		DisplayName: "Occlusion",
		Description: "Detects a physically obstructed lens via weighted uniformity, contrast, and color-diversity indicators.",
		Version:     "1.0.0",
		Priority:    25,
		SupportedLevels: []frame.Level{frame.LevelFast, frame.LevelStandard, frame.LevelDeep},
		Suppresses: []string{"partial_blur", "blur"},
	}
}

func (d *occlusionDetector) Detect(_ context.Context, f frame.Frame, level frame.Level) (frame.Finding, error) {
	gray := toGray(f.Mat)
	defer gray.Close()

	kernel := d.opts.BlockKernelSize
	if kernel <= 0 {
		kernel = 31
	}
	rows, cols := gray.Rows(), gray.Cols()
	totalArea := float64(rows * cols)

	// Global statistics feeding the weighted indicators.
	density := edgeDensity(gray)
	_, globalContrast := meanStdDev(gray)

	minVal, maxVal, _, _ := gocv.MinMaxLoc(gray)
	brightnessRange := float64(maxVal - minVal)

	hsv := gocv.NewMat()
	defer hsv.Close()
	gocv.CvtColor(f.Mat, &hsv, gocv.ColorBGRToHSV)
	channels := gocv.Split(hsv)
	defer func() {
		for _, c := range channels {
			c.Close()
		}
	}()
	_, hueStd := meanStdDev(channels[0])
	satMean, _ := meanStdDev(channels[1])

	// Block-wise uniformity and large pure-color regions.
	uniformBlocks, totalBlocks := 0, 0
	for y := 0; y < rows; y += kernel {
		for x := 0; x < cols; x += kernel {
			h := kernel
			if y+h > rows {
				h = rows - y
			}
			w := kernel
			if x+w > cols {
				w = cols - x
			}
			if h <= 0 || w <= 0 {
				continue
			}
			block := gray.Region(image.Rect(x, y, x+w, y+h))
			_, std := meanStdDev(block)
			block.Close()
			totalBlocks++
			if std < 3 {
				uniformBlocks++
			}
		}
	}
	blockRatio := 0.0
	if totalBlocks > 0 {
		blockRatio = float64(uniformBlocks) / float64(totalBlocks)
	}

	solidColorBlocks := classifyPureColorBlocks(gray, channels[1], kernel, 8, 60)
	solidColorRatio := pureColorAreaRatio(solidColorBlocks, totalArea)

	// Weighted indicator sum. Each sub-score ramps from 0 at the "clearly
	// normal" end of its statistic to 1 at the fully degenerate end.
	edgeScore := clamp01(1 - density*50)
	contrastScore := clamp01(1 - globalContrast/40)
	hueScore := clamp01(1 - hueStd/30)
	brightnessScore := clamp01(1 - brightnessRange/100)
	uniformScore := clamp01(blockRatio)
	solidScore := clamp01(solidColorRatio)

	score := 0.25*edgeScore +
		0.2*contrastScore +
		0.15*hueScore +
		0.1*brightnessScore +
		0.15*uniformScore +
		0.15*solidScore

	// Structured-scene discount: enough edges and contrast mean the view
	// is open even if parts of it are flat.
	if density > 0.03 && globalContrast > 35 {
		score *= 0.3
	}
	// Natural-element discount: rich, saturated color variety (foliage,
	// vegetation) is not how a pressed-on occluder looks.
	if hueStd > 25 && satMean > 20 {
		score *= d.opts.NaturalElementFactor
	}
	score = clamp01(score)

	isAbnormal := score > d.opts.ScoreThreshold
	finding := frame.Finding{
		DetectorName: "occlusion",
		IssueType:    "occlusion_normal",
		IsAbnormal:   isAbnormal,
		Score:        score,
		Threshold:    d.opts.ScoreThreshold,
		Confidence:   frame.Confidence(score, d.opts.ScoreThreshold, false),
		Level:        level,
		Evidence: frame.Evidence{
			"edge_density":        density,
			"global_contrast":     globalContrast,
			"hue_std":             hueStd,
			"brightness_range":    brightnessRange,
			"uniform_block_ratio": blockRatio,
			"solid_color_ratio":   solidColorRatio,
			"sub_scores": map[string]any{
				"edge_score":       edgeScore,
				"contrast_score":   contrastScore,
				"hue_score":        hueScore,
				"brightness_score": brightnessScore,
				"uniform_score":    uniformScore,
				"solid_score":      solidScore,
			},
		},
	}
	if isAbnormal {
		finding.IssueType = "occlusion"
		finding.Severity = frame.SeverityCritical
		finding.Explanation = fmt.Sprintf("combined occlusion score %.3f exceeds threshold %.3f", score, d.opts.ScoreThreshold)
		finding.PossibleCauses = []string{"object or hand covering the lens", "debris or insect on the lens", "housing failure"}
		finding.Suggestions = []string{"physically inspect the camera for obstruction", "clean the lens"}
	}
	return finding, nil
}
