package search

import (
	"github.com/VitalyVorobyev/corrmatch/internal/corrmatch/candidate"
	"github.com/VitalyVorobyev/corrmatch/pkg/geometry"
)

// Candidate is a scored placement at one pyramid level, carrying both the
// angle index (for re-fetching the compiled rotation plan) and its
// resolved degree value (for angle-grid-independent comparisons once the
// surrounding bank has moved on to a finer level's grid).
type Candidate struct {
	Level    int
	X, Y     int
	AngleIdx int
	AngleDeg float64
	Score    float32
}

// ToPeak drops the level/angle-degree bookkeeping Peak doesn't carry.
func (c Candidate) ToPeak() candidate.Peak {
	return candidate.Peak{X: c.X, Y: c.Y, Score: c.Score, AngleIdx: c.AngleIdx}
}

// candidateFromPeak rebuilds a Candidate from a scanner result at a known
// level, using the angle degree the caller resolved from the level's grid
// (the no-rotation path passes 0).
func candidateFromPeak(level int, angleDeg float64, p candidate.Peak) Candidate {
	return Candidate{
		Level:    level,
		X:        p.X,
		Y:        p.Y,
		AngleIdx: p.AngleIdx,
		AngleDeg: angleDeg,
		Score:    p.Score,
	}
}

// upscalePos maps a position at one pyramid level to its corresponding
// position one level finer (2x resolution).
func upscalePos(x, y int) (int, int) {
	return 2 * x, 2 * y
}

// roiBounds clamps a radius-sized box centered at (x, y) to [0, maxX] x
// [0, maxY], using saturating subtraction so a box near the origin is
// clipped rather than wrapping negative. ok is false if the resulting box
// is degenerate (x0 already past maxX, or vice versa for y). The box is
// returned as a geometry.RectInt so callers get a single named value
// instead of four loose corner coordinates.
func roiBounds(x, y, radius, maxX, maxY int) (roi geometry.RectInt, ok bool) {
	x0 := satSub(x, radius)
	y0 := satSub(y, radius)
	x1 := x + radius
	y1 := y + radius
	if x1 > maxX {
		x1 = maxX
	}
	if y1 > maxY {
		y1 = maxY
	}
	if x0 > maxX || y0 > maxY || x0 > x1 || y0 > y1 {
		return geometry.RectInt{}, false
	}
	return geometry.RectInt{X: x0, Y: y0, Width: x1 - x0, Height: y1 - y0}, true
}

func satSub(a, b int) int {
	if b >= a {
		return 0
	}
	return a - b
}
