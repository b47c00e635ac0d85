package detectors

import (
	"context"
	"testing"

	"gocv.io/x/gocv"

	"github.com/rendiffdev/visionguard/internal/frame"
	"github.com/rendiffdev/visionguard/internal/registry"
)

func solidFrame(value float64, width, height int) frame.Frame {
	mat := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(value, value, value, 0), height, width, gocv.MatTypeCV8UC3)
	return frame.New(mat, "test-frame", "")
}

func TestSignalLossDetectsBlackScreen(t *testing.T) {
	d := newSignalLossDetector(frame.DefaultProfile())
	f := solidFrame(2, 64, 64)
	defer f.Close()

	finding, err := d.Detect(context.Background(), f, frame.LevelFast)
	if err != nil {
		t.Fatalf("Detect returned error: %v", err)
	}
	if !finding.IsAbnormal || finding.IssueType != "black_screen" {
		t.Errorf("got issue=%s abnormal=%v, want black_screen/true", finding.IssueType, finding.IsAbnormal)
	}
}

func TestSignalLossDetectsDarkNoisyFrameAsBlackScreen(t *testing.T) {
	d := newSignalLossDetector(frame.DefaultProfile())

	// Mostly black with scattered bright pixels: mean stays ~4 but the
	// std is well above the solid-color bound. Black screen is decided on
	// mean alone, so this is still a dead feed.
	mat := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(0, 0, 0, 0), 64, 64, gocv.MatTypeCV8UC3)
	for r := 0; r < 64; r += 8 {
		for c := 0; c < 64; c += 8 {
			for ch := 0; ch < 3; ch++ {
				mat.SetUCharAt(r, c*3+ch, 255)
			}
		}
	}
	f := frame.New(mat, "dark-noisy", "")
	defer f.Close()

	finding, err := d.Detect(context.Background(), f, frame.LevelFast)
	if err != nil {
		t.Fatalf("Detect returned error: %v", err)
	}
	if !finding.IsAbnormal || finding.IssueType != "black_screen" {
		t.Errorf("got issue=%s abnormal=%v, want black_screen/true regardless of std", finding.IssueType, finding.IsAbnormal)
	}
}

func TestSignalLossFlagsMidGreyAsSolidColor(t *testing.T) {
	d := newSignalLossDetector(frame.DefaultProfile())
	f := solidFrame(128, 64, 64)
	defer f.Close()

	finding, err := d.Detect(context.Background(), f, frame.LevelFast)
	if err != nil {
		t.Fatalf("Detect returned error: %v", err)
	}
	if !finding.IsAbnormal || finding.IssueType != "solid_color" {
		t.Errorf("got issue=%s abnormal=%v, want solid_color/true", finding.IssueType, finding.IsAbnormal)
	}
	if finding.Severity != frame.SeverityWarning {
		t.Errorf("got severity=%s, want warning (only black/white screens are critical)", finding.Severity)
	}
}

func TestBrightnessDetectsTooDark(t *testing.T) {
	d := newBrightnessDetector(frame.DefaultProfile())
	f := solidFrame(5, 64, 64)
	defer f.Close()

	finding, err := d.Detect(context.Background(), f, frame.LevelFast)
	if err != nil {
		t.Fatalf("Detect returned error: %v", err)
	}
	if !finding.IsAbnormal || finding.IssueType != "too_dark" {
		t.Errorf("got issue=%s abnormal=%v, want too_dark/true", finding.IssueType, finding.IsAbnormal)
	}
}

func TestBlurDetectsUniformFrameAsBlurred(t *testing.T) {
	d := newBlurDetector(frame.DefaultProfile())
	f := solidFrame(128, 64, 64)
	defer f.Close()

	finding, err := d.Detect(context.Background(), f, frame.LevelFast)
	if err != nil {
		t.Fatalf("Detect returned error: %v", err)
	}
	if !finding.IsAbnormal {
		t.Error("a perfectly uniform frame has zero edge energy and should read as blurred")
	}
}

func TestContrastDetectsLowStdDev(t *testing.T) {
	d := newContrastDetector(frame.DefaultProfile())
	f := solidFrame(128, 64, 64)
	defer f.Close()

	finding, err := d.Detect(context.Background(), f, frame.LevelStandard)
	if err != nil {
		t.Fatalf("Detect returned error: %v", err)
	}
	if !finding.IsAbnormal || finding.IssueType != "low_contrast" {
		t.Errorf("got issue=%s abnormal=%v, want low_contrast/true", finding.IssueType, finding.IsAbnormal)
	}
}

func TestImpulseRatioFlagsUniformExtremeValue(t *testing.T) {
	black := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(0, 0, 0, 0), 32, 32, gocv.MatTypeCV8UC1)
	defer black.Close()
	if got := impulseRatio(black, 5, 250); got != 1.0 {
		t.Errorf("got impulse ratio %v for a uniform all-zero image, want 1.0", got)
	}

	mid := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(128, 0, 0, 0), 32, 32, gocv.MatTypeCV8UC1)
	defer mid.Close()
	if got := impulseRatio(mid, 5, 250); got != 0.0 {
		t.Errorf("got impulse ratio %v for a uniform mid-grey image, want 0.0", got)
	}
}

func TestSnowSpeckleRatioFlagsBrightLowSaturation(t *testing.T) {
	sat := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(10, 0, 0, 0), 32, 32, gocv.MatTypeCV8UC1)
	defer sat.Close()
	val := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(220, 0, 0, 0), 32, 32, gocv.MatTypeCV8UC1)
	defer val.Close()

	if got := snowSpeckleRatio(sat, val, 30, 200); got != 1.0 {
		t.Errorf("got snow ratio %v for a uniformly bright low-saturation image, want 1.0", got)
	}

	satNormal := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(150, 0, 0, 0), 32, 32, gocv.MatTypeCV8UC1)
	defer satNormal.Close()
	if got := snowSpeckleRatio(satNormal, val, 30, 200); got != 0.0 {
		t.Errorf("got snow ratio %v for a normally saturated image, want 0.0", got)
	}
}

func TestNoiseDetectorClassifiesSaltPepperDominant(t *testing.T) {
	profile := frame.DefaultProfile()
	profile.Noise.Threshold = -1 // force isAbnormal regardless of residual
	d := newNoiseDetector(profile)

	f := solidFrame(0, 64, 64) // all-black: impulseRatio=1.0 under default bounds
	defer f.Close()

	finding, err := d.Detect(context.Background(), f, frame.LevelDeep)
	if err != nil {
		t.Fatalf("Detect returned error: %v", err)
	}
	if !finding.IsAbnormal || finding.IssueType != "salt_pepper_noise" {
		t.Errorf("got issue=%s abnormal=%v, want salt_pepper_noise/true", finding.IssueType, finding.IsAbnormal)
	}
}

func TestStripeDetectsHorizontalBandsAtStandardLevel(t *testing.T) {
	d := newStripeDetector(frame.DefaultProfile())

	// Alternating 4-row bands of black and white: all spectral energy
	// lands on the vertical frequency axis, i.e. horizontal stripes.
	mat := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(0, 0, 0, 0), 64, 64, gocv.MatTypeCV8UC3)
	for r := 0; r < 64; r++ {
		if (r/4)%2 == 0 {
			continue
		}
		for i := 0; i < 64*3; i++ {
			mat.SetUCharAt(r, i, 255)
		}
	}
	f := frame.New(mat, "striped", "")
	defer f.Close()

	finding, err := d.Detect(context.Background(), f, frame.LevelStandard)
	if err != nil {
		t.Fatalf("Detect returned error: %v", err)
	}
	if !finding.IsAbnormal || finding.IssueType != "stripe" {
		t.Errorf("got issue=%s abnormal=%v, want stripe/true", finding.IssueType, finding.IsAbnormal)
	}
	if dir, _ := finding.Evidence["direction"].(string); dir != "horizontal" {
		t.Errorf("got direction=%v, want horizontal", finding.Evidence["direction"])
	}
}

func TestStripeSupportsAllLevels(t *testing.T) {
	meta := newStripeDetector(frame.DefaultProfile()).Metadata()
	if len(meta.SupportedLevels) != 3 {
		t.Errorf("stripe declares %d levels, want fast/standard/deep", len(meta.SupportedLevels))
	}
}

func TestNoiseFastLevelIsQuietOnUniformFrame(t *testing.T) {
	d := newNoiseDetector(frame.DefaultProfile())
	f := solidFrame(128, 64, 64)
	defer f.Close()

	finding, err := d.Detect(context.Background(), f, frame.LevelFast)
	if err != nil {
		t.Fatalf("Detect returned error: %v", err)
	}
	if finding.IsAbnormal {
		t.Error("a uniform frame has no second-derivative energy and should not read as noisy at FAST")
	}
	if finding.IssueType != "noise_normal" {
		t.Errorf("got issue=%s, want noise_normal", finding.IssueType)
	}
}

func TestOcclusionScoresUniformFrameHigh(t *testing.T) {
	d := newOcclusionDetector(frame.DefaultProfile())
	f := solidFrame(128, 64, 64)
	defer f.Close()

	finding, err := d.Detect(context.Background(), f, frame.LevelStandard)
	if err != nil {
		t.Fatalf("Detect returned error: %v", err)
	}
	if !finding.IsAbnormal {
		t.Error("a fully uniform frame trips every occlusion indicator and should score above threshold")
	}
	if ratio, _ := finding.Evidence["uniform_block_ratio"].(float64); ratio != 1.0 {
		t.Errorf("uniform_block_ratio = %v, want 1.0", finding.Evidence["uniform_block_ratio"])
	}
}

func TestRegisterAllPopulatesRegistry(t *testing.T) {
	r := registry.New()
	RegisterAll(r, nil)
	if r.Count() != 8 {
		t.Fatalf("RegisterAll registered %d detectors, want 8", r.Count())
	}
	for _, name := range []string{"signal_loss", "color", "occlusion", "brightness", "blur", "noise", "contrast", "stripe"} {
		if !r.IsRegistered(name) {
			t.Errorf("detector %q was not registered", name)
		}
	}
}
