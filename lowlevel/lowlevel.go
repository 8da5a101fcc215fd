// Package lowlevel re-exports the scan primitives beneath Matcher for
// callers who want to drive a custom search loop instead of the
// high-level coarse-to-fine pipeline: a raw Peak type, a bounded top-K
// selector, the Kernel/Scanner dispatch interface, and the masked ZNCC
// scalar scan functions plus a single-point score lookup.
package lowlevel

import (
	"github.com/VitalyVorobyev/corrmatch/internal/corrmatch/candidate"
	"github.com/VitalyVorobyev/corrmatch/internal/corrmatch/imageview"
	"github.com/VitalyVorobyev/corrmatch/internal/corrmatch/kernel"
	"github.com/VitalyVorobyev/corrmatch/internal/corrmatch/tplplan"
)

// Peak is a scored placement: top-left template position, an angle-grid
// index (0 for no-rotation), and a score.
type Peak = candidate.Peak

// NewTopK creates a bounded top-K selection with O(k) insertion.
func NewTopK(capacity int) *candidate.TopK { return candidate.NewTopK(capacity) }

// NMS2D applies Chebyshev-distance non-maximum suppression to a peak
// list, returning the canonically sorted, suppressed survivors.
func NMS2D(peaks []Peak, radius int) []Peak { return candidate.NMS2D(peaks, radius) }

// ScanParams bounds a scan operation: how many peaks to keep, the image
// variance floor (ZNCC only), and a minimum acceptable score.
type ScanParams = kernel.ScanParams

// Kernel is the scan dispatch boundary a custom search loop implements
// against: ScanFull over the whole image, ScanROI over a sub-rectangle,
// and ScoreAt for a single candidate position.
type Kernel = kernel.Scanner

// MaskedZnccPlan is a masked, rotated ZNCC scan plan, as built by a
// compiled Template's rotation bank.
type MaskedZnccPlan = tplplan.MaskedPlan

// NewMaskedZnccKernel wraps a masked ZNCC plan as a Kernel.
func NewMaskedZnccKernel(plan *MaskedZnccPlan) Kernel {
	return kernel.ZnccMasked{Plan: plan}
}

// ScoreMaskedZnccAt scores a masked, rotated ZNCC plan at one image
// position directly, without building a full Kernel value — the direct
// single-point primitive the reference lowlevel module exposes.
func ScoreMaskedZnccAt(image imageview.View, plan *MaskedZnccPlan, x, y int, minVarI float32) float32 {
	return kernel.ZnccMasked{Plan: plan}.ScoreAt(image, x, y, minVarI)
}

// UnmaskedZnccPlan is an unmasked (no-rotation) ZNCC scan plan.
type UnmaskedZnccPlan = tplplan.Plan

// NewUnmaskedZnccKernel wraps an unmasked ZNCC plan as a Kernel.
func NewUnmaskedZnccKernel(plan *UnmaskedZnccPlan) Kernel {
	return kernel.ZnccUnmasked{Plan: plan}
}
