package frame

import "time"

// Profile is a named bundle of detector thresholds. Per §9's redesign note,
// this replaces the source's open config-dict with explicit typed fields
// for every threshold named in the component design; any threshold a
// Profile does not set explicitly falls back to the engine default on that
// field.
type Profile struct {
	Name string

	Blur       BlurOptions
	Brightness BrightnessOptions
	Contrast   ContrastOptions
	Color      ColorOptions
	Noise      NoiseOptions
	Stripe     StripeOptions
	Occlusion  OcclusionOptions
	SignalLoss SignalLossOptions
	Baseline   BaselineOptions
	Freeze       FreezeOptions
	SceneChange  SceneChangeOptions
	Shake        ShakeOptions

	MaxWorkers        int
	ParallelDetection bool
}

type FreezeOptions struct {
	SimilarityThreshold float64       // correlation above this => frames considered identical, default 0.98
	MinFreezeFrames     int           // default 10
	MinFreezeDuration   time.Duration // default 1s
	ExcludeBlackFrames  bool
}

type SceneChangeOptions struct {
	BhattacharyyaThreshold float64 // default 0.4
	MaxChangesPerMinute    float64 // default 5
}

type ShakeOptions struct {
	MotionThreshold   float64       // pixel magnitude above which a frame pair counts as shaky, default 5
	MinShakeDuration  time.Duration // default 0.5s
	MaxGapFrames      int           // contiguous-run gap tolerance, default 5
	ReseedInterval    int           // re-seed corners every N frames, default 30
	MinTrackedCorners int           // re-seed when tracked count falls below this, default 10
}

type BlurOptions struct {
	Threshold float64 // default 100
}

type BrightnessOptions struct {
	MinMean float64 // default 20
	MaxMean float64 // default 235
}

type ContrastOptions struct {
	MinStdDev float64 // default 30
}

type ColorOptions struct {
	SaturationGrayscale  float64 // below this, frame is grayscale
	ChannelCastThreshold float64 // max channel deviation considered a cast
	PureColorHueFraction float64 // fraction of pixels in hue band => blue/green screen, default 0.8

	// Pure-color-region discount (§4.1 Color): large, low-variance,
	// high-saturation blocks read as physical objects/occluders, not a
	// camera-wide cast, so they are excluded from the cast computation
	// before it runs.
	PureColorBlockKernel    int     // block tile size for the discount scan, default 31
	PureColorStabilityStd   float64 // block std-dev below this counts as "pure", default 8
	PureColorMinSaturation  float64 // block HSV saturation mean at/above this counts as "pure", default 60
	PureColorDiscountRatio  float64 // pure-region area fraction above which means are recomputed over the rest, default 0.2
	PureColorSuppressRatio  float64 // pure-region area fraction above which color_cast is suppressed entirely, default 0.5
	PureColorTightenFactor  float64 // multiplier tightening ChannelCastThreshold once recomputed, default 0.7
}

type NoiseOptions struct {
	Threshold float64

	// SaltPepperRatio is the fraction of near-black/near-white impulse
	// pixels (outside [SaltPepperLow, SaltPepperHigh]) above which the
	// salt-and-pepper sub-score dominates.
	SaltPepperRatio float64
	SaltPepperLow   float64
	SaltPepperHigh  float64

	// SnowRatio is the fraction of bright, low-saturation speckle pixels
	// above which the snow sub-score dominates.
	SnowRatio          float64
	SnowValueThreshold float64
	SnowSatThreshold   float64
}

type StripeOptions struct {
	EnergyThreshold float64
}

type OcclusionOptions struct {
	// Weighted indicator sum threshold (default 0.25).
	ScoreThreshold float64
	// Tile size for the uniform-block and pure-color-block indicators.
	BlockKernelSize int
	// Natural-element tempering factor, multiplied into the score when the
	// frame shows varied, saturated hues.
	NaturalElementFactor float64
}

type SignalLossOptions struct {
	BlackMeanThreshold float64 // default ~10
	WhiteMeanThreshold float64 // default 250
	SolidStdThreshold  float64 // default 3
}

type BaselineOptions struct {
	SSIMThreshold       float64
	HistogramThreshold  float64
	FeatureMatchRatio   float64
	GridAbnormalRatio   float64
}

// DefaultProfile returns the engine's built-in "normal" preset.
func DefaultProfile() Profile {
	return Profile{
		Name: "normal",
		Blur: BlurOptions{Threshold: 100},
		Brightness: BrightnessOptions{MinMean: 20, MaxMean: 235},
		Contrast: ContrastOptions{MinStdDev: 30},
		Color: ColorOptions{
			SaturationGrayscale:  15,
			ChannelCastThreshold: 25,
			PureColorHueFraction: 0.8,
			PureColorBlockKernel:   31,
			PureColorStabilityStd:  8,
			PureColorMinSaturation: 60,
			PureColorDiscountRatio: 0.2,
			PureColorSuppressRatio: 0.5,
			PureColorTightenFactor: 0.7,
		},
		Noise: NoiseOptions{
			Threshold:          15,
			SaltPepperRatio:    0.02,
			SaltPepperLow:      5,
			SaltPepperHigh:     250,
			SnowRatio:          0.05,
			SnowValueThreshold: 200,
			SnowSatThreshold:   30,
		},
		Stripe: StripeOptions{EnergyThreshold: 2.5},
		Occlusion: OcclusionOptions{
			ScoreThreshold:       0.25,
			BlockKernelSize:      31,
			NaturalElementFactor: 0.4,
		},
		SignalLoss: SignalLossOptions{
			BlackMeanThreshold: 10,
			WhiteMeanThreshold: 250,
			SolidStdThreshold:  3,
		},
		Baseline: BaselineOptions{
			SSIMThreshold:      0.8,
			HistogramThreshold: 0.8,
			FeatureMatchRatio:  0.3,
			GridAbnormalRatio:  0.3,
		},
		Freeze: FreezeOptions{
			SimilarityThreshold: 0.98,
			MinFreezeFrames:     10,
			MinFreezeDuration:   time.Second,
			ExcludeBlackFrames:  true,
		},
		SceneChange: SceneChangeOptions{
			BhattacharyyaThreshold: 0.4,
			MaxChangesPerMinute:    5,
		},
		Shake: ShakeOptions{
			MotionThreshold:   5,
			MinShakeDuration:  500 * time.Millisecond,
			MaxGapFrames:      5,
			ReseedInterval:    30,
			MinTrackedCorners: 10,
		},
		MaxWorkers:        4,
		ParallelDetection: true,
	}
}

// StrictProfile tightens every threshold, surfacing more issues.
func StrictProfile() Profile {
	p := DefaultProfile()
	p.Name = "strict"
	p.Blur.Threshold = 150
	p.Brightness.MinMean, p.Brightness.MaxMean = 35, 220
	p.Contrast.MinStdDev = 40
	p.Color.ChannelCastThreshold = 18
	p.Noise.Threshold = 10
	p.Occlusion.ScoreThreshold = 0.18
	return p
}

// LooseProfile relaxes every threshold, surfacing fewer issues.
func LooseProfile() Profile {
	p := DefaultProfile()
	p.Name = "loose"
	p.Blur.Threshold = 70
	p.Brightness.MinMean, p.Brightness.MaxMean = 10, 248
	p.Contrast.MinStdDev = 20
	p.Color.ChannelCastThreshold = 35
	p.Noise.Threshold = 22
	p.Occlusion.ScoreThreshold = 0.35
	return p
}

// ProfileByName resolves a profile name, returning ok=false for an unknown
// name per the input-error taxonomy (§7).
func ProfileByName(name string) (Profile, bool) {
	switch name {
	case "", "normal":
		return DefaultProfile(), true
	case "strict":
		return StrictProfile(), true
	case "loose":
		return LooseProfile(), true
	default:
		return Profile{}, false
	}
}
