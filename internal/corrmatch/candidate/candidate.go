// Package candidate manages scored placements: a bounded top-K selection
// and spatial non-maximum suppression, both with a deterministic
// lexicographic tiebreak so results never depend on insertion or merge
// order.
package candidate

import "sort"

// Peak is a scored placement: top-left template position (X, Y) at some
// pyramid level, an index into an AngleGrid (0 for no-rotation), and a
// score.
type Peak struct {
	X, Y     int
	Score    float32
	AngleIdx int
}

// less reports whether a sorts strictly before b under the canonical
// ordering: descending score, then ascending (y, x, angle_idx).
func less(a, b Peak) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	if a.Y != b.Y {
		return a.Y < b.Y
	}
	if a.X != b.X {
		return a.X < b.X
	}
	return a.AngleIdx < b.AngleIdx
}

// TopK is a fixed-capacity selection of the best-scoring peaks seen so
// far, maintained with O(k) insertion.
type TopK struct {
	capacity int
	items    []Peak
}

// NewTopK creates a TopK with the given capacity.
func NewTopK(capacity int) *TopK {
	return &TopK{capacity: capacity}
}

// Push offers a peak for inclusion. If capacity has not been reached, the
// peak is always kept; otherwise it replaces the current worst entry under
// the canonical ordering iff it sorts before that entry (a higher score,
// or an equal score with a smaller (y, x, angle_idx)).
func (t *TopK) Push(p Peak) {
	if t.capacity <= 0 {
		return
	}
	if len(t.items) < t.capacity {
		t.items = append(t.items, p)
		return
	}
	worstIdx := 0
	for i := 1; i < len(t.items); i++ {
		if less(t.items[worstIdx], t.items[i]) {
			worstIdx = i
		}
	}
	if less(p, t.items[worstIdx]) {
		t.items[worstIdx] = p
	}
}

// SortedDesc returns the collected peaks sorted by the canonical ordering.
func (t *TopK) SortedDesc() []Peak {
	out := make([]Peak, len(t.items))
	copy(out, t.items)
	sort.Slice(out, func(i, j int) bool { return less(out[i], out[j]) })
	return out
}

// NMS2D applies spatial non-maximum suppression using Chebyshev distance.
// Peaks are sorted by the canonical ordering, then kept greedily if they
// lie farther than radius (Chebyshev) from every already-kept peak. A
// radius of 0 disables suppression entirely (peaks are only sorted).
func NMS2D(peaks []Peak, radius int) []Peak {
	sorted := make([]Peak, len(peaks))
	copy(sorted, peaks)
	sort.Slice(sorted, func(i, j int) bool { return less(sorted[i], sorted[j]) })

	if radius == 0 {
		return sorted
	}

	kept := make([]Peak, 0, len(sorted))
outer:
	for _, p := range sorted {
		for _, k := range kept {
			dx := abs(p.X - k.X)
			dy := abs(p.Y - k.Y)
			dist := dx
			if dy > dist {
				dist = dy
			}
			if dist <= radius {
				continue outer
			}
		}
		kept = append(kept, p)
	}
	return kept
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
