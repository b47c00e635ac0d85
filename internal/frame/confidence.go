package frame

import "math"

// Confidence computes a normalized distance-to-threshold confidence score
// in [0,1], the shared helper every detector in this engine uses instead of
// reimplementing the same formula per detector (ported from the original
// source's BaseDetector._calculate_confidence).
func Confidence(score, threshold float64, higherIsBetter bool) float64 {
	if threshold == 0 {
		return 1.0
	}

	var distanceRatio float64
	if higherIsBetter {
		distanceRatio = math.Abs(score-threshold) / threshold
	} else {
		denom := threshold
		if denom < 1 {
			denom = 1
		}
		distanceRatio = math.Abs(score-threshold) / denom
	}

	if distanceRatio > 1.0 {
		return 1.0
	}
	if distanceRatio < 0 {
		return 0
	}
	return distanceRatio
}
