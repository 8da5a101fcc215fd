package search

import (
	"testing"

	"github.com/VitalyVorobyev/corrmatch/internal/corrmatch/bank"
	"github.com/VitalyVorobyev/corrmatch/internal/corrmatch/correrr"
	"github.com/VitalyVorobyev/corrmatch/internal/corrmatch/imageview"
	"github.com/VitalyVorobyev/corrmatch/internal/corrmatch/tplplan"
)

func mustView(t *testing.T, data []byte, w, h int) imageview.View {
	t.Helper()
	v, err := imageview.New(data, w, h)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return v
}

// patternBlock fills a w*h buffer with a non-constant, non-periodic
// grayscale pattern so its ZNCC/SSD plans have nonzero variance.
func patternBlock(w, h int) []byte {
	data := make([]byte, w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			data[y*w+x] = byte((x*37 + y*53 + x*y*3) % 256)
		}
	}
	return data
}

// pasteBlock copies a w*h block into a W*H canvas at (ox, oy).
func pasteBlock(canvas []byte, canvasW int, block []byte, w, h, ox, oy int) {
	for y := 0; y < h; y++ {
		copy(canvas[(oy+y)*canvasW+ox:(oy+y)*canvasW+ox+w], block[y*w:(y+1)*w])
	}
}

func TestMatchImageFindsExactBlockNoRotation(t *testing.T) {
	const tplW, tplH = 8, 8
	const imgW, imgH = 40, 40
	const ox, oy = 15, 10

	block := patternBlock(tplW, tplH)
	tpl := mustView(t, block, tplW, tplH)

	canvas := make([]byte, imgW*imgH)
	for i := range canvas {
		canvas[i] = byte((i * 7) % 64)
	}
	pasteBlock(canvas, imgW, block, tplW, tplH, ox, oy)
	image := mustView(t, canvas, imgW, imgH)

	compiled, err := bank.CompileNoRotation(tpl, bank.DefaultCompileConfigNoRot())
	if err != nil {
		t.Fatalf("CompileNoRotation: %v", err)
	}

	m := NewMatcher(compiled)
	match, err := m.MatchImage(image)
	if err != nil {
		t.Fatalf("MatchImage: %v", err)
	}
	if diff := match.X - float32(ox); diff < -1.5 || diff > 1.5 {
		t.Errorf("X = %g, want near %d", match.X, ox)
	}
	if diff := match.Y - float32(oy); diff < -1.5 || diff > 1.5 {
		t.Errorf("Y = %g, want near %d", match.Y, oy)
	}
	if match.Score < 0.9 {
		t.Errorf("score = %g, want close to 1 for an exact match", match.Score)
	}
}

func TestMatchImageDegenerateTemplateFailsAtCompile(t *testing.T) {
	data := make([]byte, 8*8)
	for i := range data {
		data[i] = 42
	}
	tpl := mustView(t, data, 8, 8)

	_, err := bank.CompileNoRotation(tpl, bank.DefaultCompileConfigNoRot())
	if err == nil {
		t.Fatalf("expected a degenerate-variance error for a constant template")
	}
	if !correrr.Is(err, correrr.Degenerate) {
		t.Errorf("expected correrr.Degenerate, got %v", err)
	}
}

func TestMatchImageTopKReturnsDistinctPeaks(t *testing.T) {
	const tplW, tplH = 6, 6
	const imgW, imgH = 48, 24

	block := patternBlock(tplW, tplH)
	tpl := mustView(t, block, tplW, tplH)

	canvas := make([]byte, imgW*imgH)
	for i := range canvas {
		canvas[i] = byte((i * 11) % 32)
	}
	pasteBlock(canvas, imgW, block, tplW, tplH, 4, 4)
	pasteBlock(canvas, imgW, block, tplW, tplH, 34, 12)
	image := mustView(t, canvas, imgW, imgH)

	compiled, err := bank.CompileNoRotation(tpl, bank.DefaultCompileConfigNoRot())
	if err != nil {
		t.Fatalf("CompileNoRotation: %v", err)
	}

	cfg := DefaultMatchConfig()
	cfg.BeamWidth = 4
	cfg.PerAngleTopK = 4
	cfg.NmsRadius = 2
	m, err := NewMatcher(compiled).TryWithConfig(cfg)
	if err != nil {
		t.Fatalf("TryWithConfig: %v", err)
	}

	matches, err := m.MatchImageTopK(image, 2)
	if err != nil {
		t.Fatalf("MatchImageTopK: %v", err)
	}
	if len(matches) != 2 {
		t.Fatalf("expected 2 matches, got %d", len(matches))
	}

	near := func(a, b float32) bool { return a-b < 2 && b-a < 2 }
	foundFirst, foundSecond := false, false
	for _, match := range matches {
		if near(match.X, 4) && near(match.Y, 4) {
			foundFirst = true
		}
		if near(match.X, 34) && near(match.Y, 12) {
			foundSecond = true
		}
	}
	if !foundFirst || !foundSecond {
		t.Errorf("expected matches near both (4,4) and (34,12), got %+v", matches)
	}
}

func TestMatchImageWithRotationFindsEmbeddedAngle(t *testing.T) {
	const tplW, tplH = 12, 12
	const trueAngle = 20.0

	block := patternBlock(tplW, tplH)
	tpl := mustView(t, block, tplW, tplH)

	rotated := tplplan.Rotate(tpl, trueAngle, 30)
	const imgW, imgH = 48, 48
	const ox, oy = 14, 14
	canvas := make([]byte, imgW*imgH)
	for i := range canvas {
		canvas[i] = 30
	}
	pasteBlock(canvas, imgW, rotated.Data, rotated.Width, rotated.Height, ox, oy)
	image := mustView(t, canvas, imgW, imgH)

	cfg := bank.DefaultCompileConfig()
	cfg.MaxLevels = 3
	cfg.CoarseStepDeg = 20
	cfg.MinStepDeg = 5
	cfg.FillValue = 30
	compiled, err := bank.Compile(tpl, cfg)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}

	mcfg := DefaultMatchConfig()
	mcfg.Rotation = RotationEnabled
	mcfg.MaxImageLevels = 3
	m, err := NewMatcher(compiled).TryWithConfig(mcfg)
	if err != nil {
		t.Fatalf("TryWithConfig: %v", err)
	}

	match, err := m.MatchImage(image)
	if err != nil {
		t.Fatalf("MatchImage: %v", err)
	}
	angleDiff := match.AngleDeg - trueAngle
	if angleDiff < -10 || angleDiff > 10 {
		t.Errorf("AngleDeg = %g, want within 10 degrees of %g", match.AngleDeg, trueAngle)
	}
}

func TestMatchConfigValidateRejectsZeroBeamWidth(t *testing.T) {
	cfg := DefaultMatchConfig()
	cfg.BeamWidth = 0
	if err := cfg.Validate(); err == nil {
		t.Errorf("expected an error for beam_width = 0")
	}
}

func TestMatchConfigValidateRejectsNaNMinScore(t *testing.T) {
	cfg := DefaultMatchConfig()
	cfg.MinScore = float32(nan())
	if err := cfg.Validate(); err == nil {
		t.Errorf("expected an error for NaN min_score")
	}
}

func nan() float64 {
	var zero float64
	return zero / zero
}

func TestNewMatcherUsesDefaultConfig(t *testing.T) {
	tpl := mustView(t, patternBlock(6, 6), 6, 6)
	compiled, err := bank.CompileNoRotation(tpl, bank.DefaultCompileConfigNoRot())
	if err != nil {
		t.Fatalf("CompileNoRotation: %v", err)
	}
	m := NewMatcher(compiled)
	if m.cfg.Rotation != RotationDisabled {
		t.Errorf("expected default rotation mode to be disabled")
	}
	if m.cfg.Metric != Zncc {
		t.Errorf("expected default metric to be ZNCC")
	}
}
