package imageview

import "testing"

func constant(w, h int, v byte) []byte {
	buf := make([]byte, w*h)
	for i := range buf {
		buf[i] = v
	}
	return buf
}

func TestNewRejectsShortBuffer(t *testing.T) {
	if _, err := New(make([]byte, 3), 2, 2); err == nil {
		t.Fatalf("expected error for undersized buffer")
	}
}

func TestRowAndAt(t *testing.T) {
	data := []byte{1, 2, 3, 4, 5, 6}
	v, err := New(data, 3, 2)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	row, err := v.Row(1)
	if err != nil {
		t.Fatalf("Row: %v", err)
	}
	if row[0] != 4 || row[1] != 5 || row[2] != 6 {
		t.Fatalf("unexpected row 1: %v", row)
	}
	px, err := v.At(2, 0)
	if err != nil {
		t.Fatalf("At: %v", err)
	}
	if px != 3 {
		t.Fatalf("expected pixel 3, got %d", px)
	}
}

func TestROIOutOfBounds(t *testing.T) {
	v, _ := New(constant(4, 4, 1), 4, 4)
	if _, err := v.ROI(2, 2, 3, 3); err == nil {
		t.Fatalf("expected out-of-bounds ROI to fail")
	}
	roi, err := v.ROI(1, 1, 2, 2)
	if err != nil {
		t.Fatalf("ROI: %v", err)
	}
	if roi.Width != 2 || roi.Height != 2 {
		t.Fatalf("unexpected ROI dims %dx%d", roi.Width, roi.Height)
	}
}

// TestPyramidSize verifies spec's "level l dimensions equal floor(W/2^l) x
// floor(H/2^l) up to the depth cap" invariant, and the odd-tail-discard rule.
func TestPyramidSize(t *testing.T) {
	v, _ := New(constant(8, 8, 7), 8, 8)
	p, err := Build(v, 4)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	// 8x8 -> 4x4 -> 2x2 -> stop (next would be 1x1, below the min of 2)
	if p.NumLevels() != 3 {
		t.Fatalf("expected 3 levels, got %d", p.NumLevels())
	}
	wantDims := [][2]int{{8, 8}, {4, 4}, {2, 2}}
	for i, want := range wantDims {
		lvl, err := p.Level(i)
		if err != nil {
			t.Fatalf("Level(%d): %v", i, err)
		}
		if lvl.Width != want[0] || lvl.Height != want[1] {
			t.Fatalf("level %d: got %dx%d, want %dx%d", i, lvl.Width, lvl.Height, want[0], want[1])
		}
	}
}

func TestPyramidOddTailDiscarded(t *testing.T) {
	// 5x5 downsamples to 2x2 (odd row/column 4 discarded), then stops
	// because the next level would be 1x1.
	v, _ := New(constant(5, 5, 9), 5, 5)
	p, err := Build(v, 8)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if p.NumLevels() != 2 {
		t.Fatalf("expected 2 levels, got %d", p.NumLevels())
	}
	lvl1, _ := p.Level(1)
	if lvl1.Width != 2 || lvl1.Height != 2 {
		t.Fatalf("expected level 1 to be 2x2, got %dx%d", lvl1.Width, lvl1.Height)
	}
}

func TestPyramidDownsampleRounding(t *testing.T) {
	// Top-left block of {0,1,3,4} averages to (0+1+3+4+2)/4 = 2 with the
	// (sum+2)/4 rounding rule. The image is 4x4 so that level 1 (2x2)
	// exists; a 2x2 image has no level below it.
	data := []byte{
		0, 1, 0, 0,
		3, 4, 0, 0,
		0, 0, 0, 0,
		0, 0, 0, 0,
	}
	v, _ := New(data, 4, 4)
	p, err := Build(v, 2)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	lvl1, err := p.Level(1)
	if err != nil {
		t.Fatalf("Level(1): %v", err)
	}
	if lvl1.Data[0] != 2 {
		t.Fatalf("expected rounded average 2, got %d", lvl1.Data[0])
	}
}

func TestBuildRejectsEmptyView(t *testing.T) {
	if _, err := Build(View{}, 4); err == nil {
		t.Fatalf("expected error for empty view")
	}
}
