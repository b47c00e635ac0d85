// Package detectors implements the still-frame Detector variants: Blur,
// Brightness, Contrast, Color, Noise, Stripe, Occlusion, SignalLoss, and
// BaselineComparison. Each wraps gocv.io/x/gocv for the actual image-
// processing primitives (Laplacian, Sobel, histograms, DFT, ORB matching)
// per the specification's boundary: the engine supplies detection policy,
// the computer-vision library supplies the primitives.
package detectors

import (
	"image"

	"gocv.io/x/gocv"
)

// toGray converts a BGR frame to single-channel gray. Caller closes the
// result.
func toGray(src gocv.Mat) gocv.Mat {
	gray := gocv.NewMat()
	gocv.CvtColor(src, &gray, gocv.ColorBGRToGray)
	return gray
}

// meanStdDev returns the scalar mean and standard deviation of a
// single-channel Mat.
func meanStdDev(src gocv.Mat) (mean, std float64) {
	m := gocv.NewMat()
	s := gocv.NewMat()
	defer m.Close()
	defer s.Close()
	gocv.MeanStdDev(src, &m, &s)
	return m.GetDoubleAt(0, 0), s.GetDoubleAt(0, 0)
}

// laplacianVariance is the classic variance-of-Laplacian blur metric: a
// sharp image has high-variance edges, a blurred one doesn't.
func laplacianVariance(gray gocv.Mat) float64 {
	lap := gocv.NewMat()
	defer lap.Close()
	gocv.Laplacian(gray, &lap, gocv.MatTypeCV64F, 1, 1, 0, gocv.BorderDefault)
	_, std := meanStdDev(lap)
	return std * std
}

// sobelEnergy returns the mean gradient magnitude from a combined Sobel
// operator, used as the STANDARD-level blur signal and as a contrast/noise
// ingredient.
func sobelEnergy(gray gocv.Mat) float64 {
	gx := gocv.NewMat()
	gy := gocv.NewMat()
	defer gx.Close()
	defer gy.Close()
	gocv.Sobel(gray, &gx, gocv.MatTypeCV64F, 1, 0, 3, 1, 0, gocv.BorderDefault)
	gocv.Sobel(gray, &gy, gocv.MatTypeCV64F, 0, 1, 3, 1, 0, gocv.BorderDefault)

	mag := gocv.NewMat()
	defer mag.Close()
	gocv.Magnitude(gx, gy, &mag)
	mean, _ := meanStdDev(mag)
	return mean
}

// edgeDensity returns the fraction of pixels Canny marks as edges.
func edgeDensity(gray gocv.Mat) float64 {
	edges := gocv.NewMat()
	defer edges.Close()
	gocv.Canny(gray, &edges, 50, 150)
	total := edges.Rows() * edges.Cols()
	if total == 0 {
		return 0
	}
	return float64(gocv.CountNonZero(edges)) / float64(total)
}

// pureBlock is one tile of the block-wise pure-color scan: a region whose
// local intensity is stable and whose hue is concentrated and saturated,
// the signature of a physical solid-color object/occluder rather than a
// camera-wide fault.
type pureBlock struct {
	rect image.Rectangle
	pure bool
}

// classifyPureColorBlocks tiles gray/sat into kernel x kernel blocks and
// marks each "pure" when its gray std-dev is below stabilityStd and its
// HSV saturation mean is at/above minSaturation. Shared by the color and
// occlusion detectors, which each reduce the block list differently (area
// ratio, or a mask for recomputing non-pure channel means).
func classifyPureColorBlocks(gray, sat gocv.Mat, kernel int, stabilityStd, minSaturation float64) []pureBlock {
	if kernel <= 0 {
		kernel = 31
	}
	rows, cols := gray.Rows(), gray.Cols()
	var blocks []pureBlock
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
			rect := image.Rect(x, y, x+w, y+h)

			grayBlock := gray.Region(rect)
			_, std := meanStdDev(grayBlock)
			grayBlock.Close()

			satBlock := sat.Region(rect)
			satMean, _ := meanStdDev(satBlock)
			satBlock.Close()

			blocks = append(blocks, pureBlock{rect: rect, pure: std < stabilityStd && satMean >= minSaturation})
		}
	}
	return blocks
}

// pureColorAreaRatio returns the fraction of total frame area covered by
// pure blocks.
func pureColorAreaRatio(blocks []pureBlock, totalArea float64) float64 {
	if totalArea == 0 {
		return 0
	}
	var area float64
	for _, b := range blocks {
		if b.pure {
			area += float64(b.rect.Dx() * b.rect.Dy())
		}
	}
	return area / totalArea
}

// nonPureChannelMean averages a single channel's mean over every non-pure
// block, area-weighted, for recomputing color statistics once large
// pure-color regions have been discounted. Falls back to the whole-channel
// mean if every block is pure.
func nonPureChannelMean(channel gocv.Mat, blocks []pureBlock) float64 {
	var weighted, area float64
	for _, b := range blocks {
		if b.pure {
			continue
		}
		region := channel.Region(b.rect)
		mean, _ := meanStdDev(region)
		region.Close()
		a := float64(b.rect.Dx() * b.rect.Dy())
		weighted += mean * a
		area += a
	}
	if area == 0 {
		mean, _ := meanStdDev(channel)
		return mean
	}
	return weighted / area
}

// clamp01 clamps a float64 to [0,1].
func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
