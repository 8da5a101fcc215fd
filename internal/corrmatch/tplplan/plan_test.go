package tplplan

import (
	"math"
	"testing"

	"github.com/VitalyVorobyev/corrmatch/internal/corrmatch/imageview"
)

func TestFromViewZeroMeanSumsToZero(t *testing.T) {
	data := []byte{10, 20, 30, 40, 50, 60, 70, 80, 90}
	v, _ := imageview.New(data, 3, 3)
	p, err := FromView(v)
	if err != nil {
		t.Fatalf("FromView: %v", err)
	}
	var sum float64
	var sumSq float64
	for _, z := range p.ZeroMean {
		sum += float64(z)
		sumSq += float64(z) * float64(z)
	}
	if math.Abs(sum) > 1e-3 {
		t.Errorf("expected zero-mean sum ~0, got %g", sum)
	}
	if math.Abs(sumSq-float64(p.VarT)) > 1e-2 {
		t.Errorf("VarT %g does not match accumulated sum of squares %g", p.VarT, sumSq)
	}
}

func TestFromViewRejectsConstantTemplate(t *testing.T) {
	v, _ := imageview.New([]byte{5, 5, 5, 5}, 2, 2)
	if _, err := FromView(v); err == nil {
		t.Fatalf("expected degenerate error for constant template")
	}
}

func TestRotateIdentityPreservesPixels(t *testing.T) {
	data := []byte{10, 20, 30, 40, 50, 60, 70, 80, 90}
	v, _ := imageview.New(data, 3, 3)
	rotated := Rotate(v, 0, 0)
	for i, want := range data {
		if rotated.Data[i] != want {
			t.Errorf("identity rotation at %d: got %d, want %d", i, rotated.Data[i], want)
		}
	}
}

func TestRotateNoNegativeSourceIndex(t *testing.T) {
	// Regression test for the strict boundary check: every rotation angle
	// must agree that out-of-range source coordinates never reach the
	// pixel lookup, for a range of angles including near-boundary ones.
	data := make([]byte, 16)
	for i := range data {
		data[i] = byte(i * 10)
	}
	v, _ := imageview.New(data, 4, 4)
	for _, angle := range []float64{0, 1, 45, 89.999, 90, 135, 179.999, 180, -45, -179.999} {
		rotated, mask := RotateMasked(v, angle)
		if rotated == nil {
			t.Fatalf("angle %g: nil rotated image", angle)
		}
		if len(mask) != 16 {
			t.Fatalf("angle %g: mask length %d != 16", angle, len(mask))
		}
	}
}

func TestRotateMaskedValidity(t *testing.T) {
	data := make([]byte, 25)
	for i := range data {
		data[i] = byte(i * 7 % 256)
	}
	v, _ := imageview.New(data, 5, 5)

	_, identityMask := RotateMasked(v, 0)
	for i, m := range identityMask {
		if m != 1 {
			t.Errorf("identity rotation: pixel %d unexpectedly masked out", i)
		}
	}

	_, skewMask := RotateMasked(v, 37)
	var validCount int
	for _, m := range skewMask {
		if m == 1 {
			validCount++
		}
	}
	if validCount == 0 || validCount == len(skewMask) {
		t.Errorf("expected a 37-degree rotation to mask out some corner pixels but keep most valid, got %d/%d valid", validCount, len(skewMask))
	}
}

func TestMaskedPlanZeroMeanRestrictedToValid(t *testing.T) {
	data := []byte{10, 20, 30, 40, 50, 60, 70, 80, 90}
	v, _ := imageview.New(data, 3, 3)
	mask := []byte{1, 1, 1, 1, 1, 1, 1, 1, 0}
	plan, err := NewMaskedPlan(v, mask, 0)
	if err != nil {
		t.Fatalf("NewMaskedPlan: %v", err)
	}
	if plan.ZeroMean[8] != 0 {
		t.Errorf("expected masked-out entry to be zero, got %g", plan.ZeroMean[8])
	}
	if len(plan.ValidOffsets) != 8 {
		t.Errorf("expected 8 valid offsets, got %d", len(plan.ValidOffsets))
	}
	if plan.SumW != 8 {
		t.Errorf("expected SumW=8, got %g", plan.SumW)
	}
}
