// Package quad fits a quadratic through three equally-spaced samples to
// estimate a subpixel/subangle peak offset, for both 1D (angle) and
// separable 2D (position) refinement.
package quad

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

const concavityEps = 1e-6

// peakCoeffs holds the [0.5, -0.5] weights applied to (fm, fp) in the
// vertex solve dx = 0.5*(fm-fp)/denom, expressed as a dot product so the
// same scalar formula used throughout this package reads as the
// coefficient/sample contraction it is.
var peakCoeffs = []float64{0.5, -0.5}

// PeakOffset1D fits a parabola through samples taken at x = -1, 0, +1
// (fm, f0, fp) and returns the vertex offset dx, clamped to [-0.5, 0.5].
// It reports ok = false when the fit is not concave or is ill-conditioned,
// in which case offset is 0.
func PeakOffset1D(fm, f0, fp float32) (offset float32, ok bool) {
	if !isFinite32(fm) || !isFinite32(f0) || !isFinite32(fp) {
		return 0, false
	}

	denom := fm - 2*f0 + fp
	if float32(math.Abs(float64(denom))) < concavityEps || denom >= 0 {
		return 0, false
	}

	samples := []float64{float64(fm), float64(fp)}
	dx := float32(floats.Dot(peakCoeffs, samples)) / denom
	if !isFinite32(dx) {
		return 0, false
	}
	return clamp32(dx, -0.5, 0.5), true
}

// SubangleOffset1D is PeakOffset1D scaled into degrees by stepDeg, clamped
// to [-step/2, step/2].
func SubangleOffset1D(fm, f0, fp float32, stepDeg float64) (offsetDeg float64, ok bool) {
	dx, ok := PeakOffset1D(fm, f0, fp)
	if !ok {
		return 0, false
	}
	half := stepDeg / 2
	offsetDeg = clampF64(float64(dx)*stepDeg, -half, half)
	return offsetDeg, true
}

// SubpixelPeak2D refines an integer peak at (centerX, centerY) using
// separable 1D quadratic fits over the 3x3 neighborhood s, indexed
// s[row][col] with s[1][1] the center. The center row drives dx, the
// center column drives dy. A fit axis that is not concave falls back to
// zero offset on that axis rather than failing the whole refinement.
func SubpixelPeak2D(centerX, centerY int, s [3][3]float32) (x, y float32) {
	dx, _ := PeakOffset1D(s[1][0], s[1][1], s[1][2])
	dy, _ := PeakOffset1D(s[0][1], s[1][1], s[2][1])
	return float32(centerX) + dx, float32(centerY) + dy
}

func clamp32(v, lo, hi float32) float32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampF64(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func isFinite32(v float32) bool {
	f := float64(v)
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
