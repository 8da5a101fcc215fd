package candidate

import "testing"

func TestTopKKeepsHighestScores(t *testing.T) {
	k := NewTopK(3)
	scores := []float32{0.1, 0.9, 0.5, 0.3, 0.95, 0.2}
	for i, s := range scores {
		k.Push(Peak{X: i, Y: 0, Score: s})
	}
	sorted := k.SortedDesc()
	if len(sorted) != 3 {
		t.Fatalf("expected 3 survivors, got %d", len(sorted))
	}
	want := []float32{0.95, 0.9, 0.5}
	for i, s := range want {
		if sorted[i].Score != s {
			t.Errorf("position %d: got score %g, want %g", i, sorted[i].Score, s)
		}
	}
}

func TestTopKDeterministicTiebreak(t *testing.T) {
	k := NewTopK(4)
	k.Push(Peak{X: 5, Y: 2, Score: 1.0, AngleIdx: 1})
	k.Push(Peak{X: 1, Y: 2, Score: 1.0, AngleIdx: 0})
	k.Push(Peak{X: 1, Y: 1, Score: 1.0, AngleIdx: 2})
	k.Push(Peak{X: 1, Y: 1, Score: 1.0, AngleIdx: 0})
	sorted := k.SortedDesc()
	// Same score throughout; order must be by (y, x, angle_idx) ascending.
	want := []Peak{
		{X: 1, Y: 1, Score: 1.0, AngleIdx: 0},
		{X: 1, Y: 1, Score: 1.0, AngleIdx: 2},
		{X: 1, Y: 2, Score: 1.0, AngleIdx: 0},
		{X: 5, Y: 2, Score: 1.0, AngleIdx: 1},
	}
	for i, w := range want {
		if sorted[i] != w {
			t.Errorf("position %d: got %+v, want %+v", i, sorted[i], w)
		}
	}
}

func TestNMS2DSuppressesNearbyLowerScores(t *testing.T) {
	peaks := []Peak{
		{X: 10, Y: 10, Score: 1.0},
		{X: 11, Y: 10, Score: 0.9},
		{X: 50, Y: 50, Score: 0.8},
	}
	kept := NMS2D(peaks, 2)
	if len(kept) != 2 {
		t.Fatalf("expected 2 survivors, got %d: %+v", len(kept), kept)
	}
	if kept[0].X != 10 || kept[0].Y != 10 {
		t.Errorf("expected the stronger nearby peak to win, got %+v", kept[0])
	}
	for _, p := range kept {
		for _, q := range kept {
			if p == q {
				continue
			}
			dx := abs(p.X - q.X)
			dy := abs(p.Y - q.Y)
			dist := dx
			if dy > dist {
				dist = dy
			}
			if dist <= 2 {
				t.Errorf("two kept peaks violate NMS radius: %+v, %+v", p, q)
			}
		}
	}
}

func TestNMS2DZeroRadiusDisablesSuppression(t *testing.T) {
	peaks := []Peak{
		{X: 10, Y: 10, Score: 1.0},
		{X: 10, Y: 10, Score: 0.9},
	}
	kept := NMS2D(peaks, 0)
	if len(kept) != 2 {
		t.Fatalf("expected no suppression with radius 0, got %d survivors", len(kept))
	}
}
