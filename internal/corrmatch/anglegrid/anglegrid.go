// Package anglegrid provides a deterministic discretization of a rotation
// interval at a fixed step, plus circular distance helpers.
package anglegrid

import (
	"math"

	"github.com/VitalyVorobyev/corrmatch/internal/corrmatch/correrr"
)

// Grid is a finite ordered sequence of angles (degrees), starting at MinDeg
// and stepping by StepDeg for Len() entries. Angles are wrapped into
// [-180, 180) on read.
type Grid struct {
	MinDeg  float64
	StepDeg float64
	length  int
}

// NewFull builds a grid covering [-180, 180) at the given step.
func NewFull(stepDeg float64) (*Grid, error) {
	return New(-180, 180, stepDeg)
}

// New builds a grid covering [min, max) at the given step. Length is
// determined algebraically from (max-min)/step, not by repeated float
// accumulation, so it cannot drift.
func New(minDeg, maxDeg, stepDeg float64) (*Grid, error) {
	if !isFinite(minDeg) || !isFinite(maxDeg) || !isFinite(stepDeg) {
		return nil, correrr.New(correrr.InvalidConfig, "angle grid bounds must be finite")
	}
	if stepDeg <= 0 {
		return nil, correrr.Newf(correrr.InvalidConfig, "angle step must be positive, got %g", stepDeg)
	}
	if maxDeg <= minDeg {
		return nil, correrr.Newf(correrr.InvalidConfig, "angle max %g must exceed min %g", maxDeg, minDeg)
	}
	length := int(math.Ceil((maxDeg-minDeg)/stepDeg - 1e-9))
	if length <= 0 {
		return nil, correrr.New(correrr.InvalidConfig, "angle grid has zero length")
	}
	return &Grid{MinDeg: minDeg, StepDeg: stepDeg, length: length}, nil
}

// NewCentered builds a grid of exactly 2*radius+1 angles spanning
// center-radius*step to center+radius*step inclusive.
func NewCentered(centerDeg, stepDeg float64, radius int) (*Grid, error) {
	if !isFinite(centerDeg) || !isFinite(stepDeg) {
		return nil, correrr.New(correrr.InvalidConfig, "angle grid bounds must be finite")
	}
	if stepDeg <= 0 {
		return nil, correrr.Newf(correrr.InvalidConfig, "angle step must be positive, got %g", stepDeg)
	}
	if radius < 0 {
		return nil, correrr.Newf(correrr.InvalidConfig, "angle grid radius must be non-negative, got %d", radius)
	}
	return &Grid{MinDeg: centerDeg - float64(radius)*stepDeg, StepDeg: stepDeg, length: 2*radius + 1}, nil
}

// Len returns the number of angles in the grid.
func (g *Grid) Len() int { return g.length }

// IsEmpty reports whether the grid has no angles.
func (g *Grid) IsEmpty() bool { return g.length == 0 }

// AngleAt returns the wrapped angle at idx.
func (g *Grid) AngleAt(idx int) float64 {
	return WrapDeg(g.MinDeg + float64(idx)*g.StepDeg)
}

// NearestIndex returns the index of the angle closest to deg by circular
// distance.
func (g *Grid) NearestIndex(deg float64) int {
	best := 0
	bestDist := math.Inf(1)
	for i := 0; i < g.length; i++ {
		d := math.Abs(circularDist(deg, g.AngleAt(i)))
		if d < bestDist {
			bestDist = d
			best = i
		}
	}
	return best
}

// IndicesWithin returns the indices of angles within halfRangeDeg circular
// distance of centerDeg, in ascending index order. A negative halfRangeDeg
// yields an empty slice.
func (g *Grid) IndicesWithin(centerDeg, halfRangeDeg float64) []int {
	if halfRangeDeg < 0 {
		return nil
	}
	var out []int
	for i := 0; i < g.length; i++ {
		if math.Abs(circularDist(g.AngleAt(i), centerDeg)) <= halfRangeDeg {
			out = append(out, i)
		}
	}
	return out
}

// WrapDeg wraps an angle in degrees into [-180, 180).
func WrapDeg(deg float64) float64 {
	a := math.Mod(deg, 360)
	if a < -180 {
		a += 360
	}
	if a >= 180 {
		a -= 360
	}
	return a
}

// circularDist returns the signed shortest distance from b to a on the
// circle, in [-180, 180).
func circularDist(a, b float64) float64 {
	return WrapDeg(a - b)
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
