// Package tplplan precomputes the template statistics the ZNCC and SSD
// kernels scan against: zero-mean buffers and norms for the unmasked
// (no-rotation) fast path, and their masked, per-angle counterparts for the
// rotation bank.
package tplplan

import (
	"math"

	"github.com/VitalyVorobyev/corrmatch/internal/corrmatch/correrr"
	"github.com/VitalyVorobyev/corrmatch/internal/corrmatch/imageview"
)

const degenerateVarianceFloor = 1e-8

// Plan holds the unmasked ZNCC statistics for a template: its mean, the
// zero-mean buffer T' = T - mean, and VarT = ||T'||^2.
type Plan struct {
	Width, Height int
	Mean          float32
	VarT          float32
	ZeroMean      []float32
}

// FromView builds an unmasked ZNCC plan from a template view. Fails with
// Degenerate if the template has near-zero variance.
func FromView(tpl imageview.View) (*Plan, error) {
	w, h := tpl.Width, tpl.Height
	count := w * h
	if count == 0 {
		return nil, correrr.New(correrr.InvalidInput, "empty template")
	}

	var sum, sumSq float64
	for y := 0; y < h; y++ {
		row, err := tpl.Row(y)
		if err != nil {
			return nil, err
		}
		for _, v := range row {
			f := float64(v)
			sum += f
			sumSq += f * f
		}
	}

	countF := float64(count)
	meanF64 := sum / countF
	variance := sumSq/countF - meanF64*meanF64
	if variance <= degenerateVarianceFloor {
		return nil, correrr.New(correrr.Degenerate, "template has zero variance")
	}

	mean := float32(meanF64)
	zeroMean := make([]float32, 0, count)
	for y := 0; y < h; y++ {
		row, _ := tpl.Row(y)
		for _, v := range row {
			zeroMean = append(zeroMean, float32(v)-mean)
		}
	}

	return &Plan{
		Width:    w,
		Height:   h,
		Mean:     mean,
		VarT:     float32(variance) * float32(count),
		ZeroMean: zeroMean,
	}, nil
}

// SSDPlan holds the raw template values used by the unmasked SSD kernel.
type SSDPlan struct {
	Width, Height int
	Values        []float32
}

// SSDFromView builds an unmasked SSD plan from a template view.
func SSDFromView(tpl imageview.View) (*SSDPlan, error) {
	w, h := tpl.Width, tpl.Height
	if w*h == 0 {
		return nil, correrr.New(correrr.InvalidInput, "empty template")
	}
	values := make([]float32, 0, w*h)
	for y := 0; y < h; y++ {
		row, err := tpl.Row(y)
		if err != nil {
			return nil, err
		}
		for _, v := range row {
			values = append(values, float32(v))
		}
	}
	return &SSDPlan{Width: w, Height: h, Values: values}, nil
}

// MaskedPlan holds the masked ZNCC statistics for a rotated template: the
// sum of squared deviations from the mean over valid pixels (VarT), the
// valid-pixel count (SumW), the zero-mean buffer (zeroed at
// masked-out positions so a scan may multiply through the full rectangle),
// the validity mask, and a compact list of valid pixel offsets.
type MaskedPlan struct {
	AngleDeg      float64
	Width, Height int
	VarT          float32 // ||T'_M||^2 over valid pixels
	SumW          float32 // count of valid pixels (NM)
	ZeroMean      []float32
	Mask          []byte
	ValidOffsets  []int
}

// NewMaskedPlan builds a masked ZNCC plan from a rotated template view and
// its validity mask.
func NewMaskedPlan(rotated imageview.View, mask []byte, angleDeg float64) (*MaskedPlan, error) {
	w, h := rotated.Width, rotated.Height
	count := w * h
	if len(mask) != count {
		return nil, correrr.Newf(correrr.InvalidInput, "mask length %d != %d", len(mask), count)
	}

	var sum, sumSq float64
	var validCount int
	offsets := make([]int, 0, count)
	for y := 0; y < h; y++ {
		row, err := rotated.Row(y)
		if err != nil {
			return nil, err
		}
		base := y * w
		for x, v := range row {
			idx := base + x
			if mask[idx] == 0 {
				continue
			}
			f := float64(v)
			sum += f
			sumSq += f * f
			validCount++
			offsets = append(offsets, idx)
		}
	}

	if validCount == 0 {
		return nil, correrr.New(correrr.Degenerate, "rotated template has no valid pixels")
	}

	countF := float64(validCount)
	meanF64 := sum / countF
	variance := sumSq/countF - meanF64*meanF64
	if variance <= degenerateVarianceFloor {
		return nil, correrr.New(correrr.Degenerate, "rotated template has zero variance")
	}

	mean := float32(meanF64)
	zeroMean := make([]float32, count)
	for y := 0; y < h; y++ {
		row, _ := rotated.Row(y)
		base := y * w
		for x, v := range row {
			idx := base + x
			if mask[idx] == 0 {
				continue
			}
			zeroMean[idx] = float32(v) - mean
		}
	}

	return &MaskedPlan{
		AngleDeg:     angleDeg,
		Width:        w,
		Height:       h,
		VarT:         float32(variance) * float32(validCount),
		SumW:         float32(validCount),
		ZeroMean:     zeroMean,
		Mask:         mask,
		ValidOffsets: offsets,
	}, nil
}

// MaskedSSDTemplatePlan holds the raw masked template values used by the
// masked SSD kernel.
type MaskedSSDTemplatePlan struct {
	AngleDeg      float64
	Width, Height int
	Values        []float32
	Mask          []byte
	ValidOffsets  []int
}

// NewMaskedSSDPlan builds a masked SSD plan from a rotated template view and
// its validity mask.
func NewMaskedSSDPlan(rotated imageview.View, mask []byte, angleDeg float64) (*MaskedSSDTemplatePlan, error) {
	w, h := rotated.Width, rotated.Height
	count := w * h
	if len(mask) != count {
		return nil, correrr.Newf(correrr.InvalidInput, "mask length %d != %d", len(mask), count)
	}

	values := make([]float32, count)
	offsets := make([]int, 0, count)
	for y := 0; y < h; y++ {
		row, err := rotated.Row(y)
		if err != nil {
			return nil, err
		}
		base := y * w
		for x, v := range row {
			idx := base + x
			if mask[idx] == 0 {
				continue
			}
			values[idx] = float32(v)
			offsets = append(offsets, idx)
		}
	}
	if len(offsets) == 0 {
		return nil, correrr.New(correrr.Degenerate, "rotated template has no valid pixels")
	}

	return &MaskedSSDTemplatePlan{
		AngleDeg:     angleDeg,
		Width:        w,
		Height:       h,
		Values:       values,
		Mask:         mask,
		ValidOffsets: offsets,
	}, nil
}

// NormT returns sqrt(VarT), the L2 norm of the zero-mean buffer.
func (p *Plan) NormT() float32 { return float32(math.Sqrt(float64(p.VarT))) }

// NormT returns sqrt(VarT), the L2 norm of the masked zero-mean buffer.
func (p *MaskedPlan) NormT() float32 { return float32(math.Sqrt(float64(p.VarT))) }
