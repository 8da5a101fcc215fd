// Package kernel implements the scalar ZNCC and SSD scan operations, both
// unmasked (no-rotation fast path) and masked (rotated templates), plus a
// row-parallel variant of the unmasked kernels that merges results in a
// fixed worker order so parallel and sequential scans are bit-identical.
package kernel

import (
	"github.com/VitalyVorobyev/corrmatch/internal/corrmatch/candidate"
	"github.com/VitalyVorobyev/corrmatch/internal/corrmatch/correrr"
	"github.com/VitalyVorobyev/corrmatch/internal/corrmatch/imageview"
	"github.com/VitalyVorobyev/corrmatch/internal/corrmatch/tplplan"
)

// ScanParams bounds a scan operation: how many peaks to keep, the image
// variance floor (ZNCC only), and a minimum acceptable score.
type ScanParams struct {
	TopK     int
	MinVarI  float32
	MinScore float32
}

// Scanner is the small virtual boundary through which the coarse and
// refine search stages dispatch to a concrete metric/masking combination,
// kept at the scan-call level so inner accumulation loops stay monomorphic.
type Scanner interface {
	ScanFull(image imageview.View, angleIdx int, params ScanParams) ([]candidate.Peak, error)
	ScanROI(image imageview.View, angleIdx, x0, y0, x1, y1 int, params ScanParams) ([]candidate.Peak, error)
	ScoreAt(image imageview.View, x, y int, minVarI float32) float32
}

func boundsOK(imgW, imgH, tplW, tplH int) error {
	if imgW < tplW || imgH < tplH {
		return correrr.Newf(correrr.InvalidInput,
			"image %dx%d smaller than template %dx%d", imgW, imgH, tplW, tplH)
	}
	return nil
}

func clampROI(x0, y0, x1, y1, maxX, maxY int) (int, int, int, int, bool) {
	if x0 > maxX || y0 > maxY {
		return 0, 0, 0, 0, false
	}
	if x1 > maxX {
		x1 = maxX
	}
	if y1 > maxY {
		y1 = maxY
	}
	if x0 > x1 || y0 > y1 {
		return 0, 0, 0, 0, false
	}
	return x0, y0, x1, y1, true
}

// --- Unmasked ZNCC ---------------------------------------------------

// ZnccUnmasked scans the unmasked ZNCC plan (no rotation).
type ZnccUnmasked struct {
	Plan *tplplan.Plan
}

func (k ZnccUnmasked) ScanFull(image imageview.View, angleIdx int, params ScanParams) ([]candidate.Peak, error) {
	if err := boundsOK(image.Width, image.Height, k.Plan.Width, k.Plan.Height); err != nil {
		return nil, err
	}
	maxX := image.Width - k.Plan.Width
	maxY := image.Height - k.Plan.Height
	return k.scanRange(image, angleIdx, 0, 0, maxX, maxY, params)
}

func (k ZnccUnmasked) ScanROI(image imageview.View, angleIdx, x0, y0, x1, y1 int, params ScanParams) ([]candidate.Peak, error) {
	if err := boundsOK(image.Width, image.Height, k.Plan.Width, k.Plan.Height); err != nil {
		return nil, err
	}
	return k.scanRange(image, angleIdx, x0, y0, x1, y1, params)
}

func (k ZnccUnmasked) scanRange(image imageview.View, angleIdx, x0, y0, x1, y1 int, params ScanParams) ([]candidate.Peak, error) {
	if params.TopK == 0 {
		return nil, nil
	}
	maxX := image.Width - k.Plan.Width
	maxY := image.Height - k.Plan.Height
	var ok bool
	x0, y0, x1, y1, ok = clampROI(x0, y0, x1, y1, maxX, maxY)
	if !ok {
		return nil, nil
	}
	if k.Plan.VarT <= 1e-8 {
		return nil, nil
	}

	topk := candidate.NewTopK(params.TopK)
	tplW, tplH := k.Plan.Width, k.Plan.Height
	n := float32(tplW * tplH)
	tPrime := k.Plan.ZeroMean
	varT := k.Plan.VarT

	for y := y0; y <= y1; y++ {
		for x := x0; x <= x1; x++ {
			var dot, sumI, sumI2 float32
			for ty := 0; ty < tplH; ty++ {
				row, err := image.Row(y + ty)
				if err != nil {
					return nil, err
				}
				base := ty * tplW
				for tx := 0; tx < tplW; tx++ {
					value := float32(row[x+tx])
					dot += tPrime[base+tx] * value
					sumI += value
					sumI2 += value * value
				}
			}
			varI := sumI2 - sumI*sumI/n
			if varI <= params.MinVarI {
				continue
			}
			score := dot / sqrt32(varT*varI)
			if isFinite32(score) && score >= params.MinScore {
				topk.Push(candidate.Peak{X: x, Y: y, Score: score, AngleIdx: angleIdx})
			}
		}
	}
	return topk.SortedDesc(), nil
}

func (k ZnccUnmasked) ScoreAt(image imageview.View, x, y int, minVarI float32) float32 {
	tplW, tplH := k.Plan.Width, k.Plan.Height
	if image.Width < tplW || image.Height < tplH {
		return negInf
	}
	if x > image.Width-tplW || y > image.Height-tplH {
		return negInf
	}
	if k.Plan.VarT <= 1e-8 {
		return negInf
	}
	n := float32(tplW * tplH)
	tPrime := k.Plan.ZeroMean
	var dot, sumI, sumI2 float32
	for ty := 0; ty < tplH; ty++ {
		row, err := image.Row(y + ty)
		if err != nil {
			return negInf
		}
		base := ty * tplW
		for tx := 0; tx < tplW; tx++ {
			value := float32(row[x+tx])
			dot += tPrime[base+tx] * value
			sumI += value
			sumI2 += value * value
		}
	}
	varI := sumI2 - sumI*sumI/n
	if varI <= minVarI {
		return negInf
	}
	score := dot / sqrt32(k.Plan.VarT*varI)
	if !isFinite32(score) {
		return negInf
	}
	return score
}

// --- Unmasked SSD ------------------------------------------------------

// SsdUnmasked scans the unmasked SSD plan (no rotation).
type SsdUnmasked struct {
	Plan *tplplan.SSDPlan
}

func (k SsdUnmasked) ScanFull(image imageview.View, angleIdx int, params ScanParams) ([]candidate.Peak, error) {
	if err := boundsOK(image.Width, image.Height, k.Plan.Width, k.Plan.Height); err != nil {
		return nil, err
	}
	maxX := image.Width - k.Plan.Width
	maxY := image.Height - k.Plan.Height
	return k.scanRange(image, angleIdx, 0, 0, maxX, maxY, params)
}

func (k SsdUnmasked) ScanROI(image imageview.View, angleIdx, x0, y0, x1, y1 int, params ScanParams) ([]candidate.Peak, error) {
	if err := boundsOK(image.Width, image.Height, k.Plan.Width, k.Plan.Height); err != nil {
		return nil, err
	}
	return k.scanRange(image, angleIdx, x0, y0, x1, y1, params)
}

func (k SsdUnmasked) scanRange(image imageview.View, angleIdx, x0, y0, x1, y1 int, params ScanParams) ([]candidate.Peak, error) {
	if params.TopK == 0 {
		return nil, nil
	}
	maxX := image.Width - k.Plan.Width
	maxY := image.Height - k.Plan.Height
	var ok bool
	x0, y0, x1, y1, ok = clampROI(x0, y0, x1, y1, maxX, maxY)
	if !ok {
		return nil, nil
	}

	topk := candidate.NewTopK(params.TopK)
	tplW, tplH := k.Plan.Width, k.Plan.Height
	values := k.Plan.Values

	for y := y0; y <= y1; y++ {
		for x := x0; x <= x1; x++ {
			var sse float32
			for ty := 0; ty < tplH; ty++ {
				row, err := image.Row(y + ty)
				if err != nil {
					return nil, err
				}
				base := ty * tplW
				for tx := 0; tx < tplW; tx++ {
					diff := float32(row[x+tx]) - values[base+tx]
					sse += diff * diff
				}
			}
			score := -sse
			if isFinite32(score) && score >= params.MinScore {
				topk.Push(candidate.Peak{X: x, Y: y, Score: score, AngleIdx: angleIdx})
			}
		}
	}
	return topk.SortedDesc(), nil
}

func (k SsdUnmasked) ScoreAt(image imageview.View, x, y int, _ float32) float32 {
	tplW, tplH := k.Plan.Width, k.Plan.Height
	if image.Width < tplW || image.Height < tplH {
		return negInf
	}
	if x > image.Width-tplW || y > image.Height-tplH {
		return negInf
	}
	values := k.Plan.Values
	var sse float32
	for ty := 0; ty < tplH; ty++ {
		row, err := image.Row(y + ty)
		if err != nil {
			return negInf
		}
		base := ty * tplW
		for tx := 0; tx < tplW; tx++ {
			diff := float32(row[x+tx]) - values[base+tx]
			sse += diff * diff
		}
	}
	score := -sse
	if !isFinite32(score) {
		return negInf
	}
	return score
}

// --- Masked ZNCC ---------------------------------------------------

// ZnccMasked scans a masked, rotated ZNCC plan.
type ZnccMasked struct {
	Plan *tplplan.MaskedPlan
}

func (k ZnccMasked) ScanFull(image imageview.View, angleIdx int, params ScanParams) ([]candidate.Peak, error) {
	if err := boundsOK(image.Width, image.Height, k.Plan.Width, k.Plan.Height); err != nil {
		return nil, err
	}
	maxX := image.Width - k.Plan.Width
	maxY := image.Height - k.Plan.Height
	return k.scanRange(image, angleIdx, 0, 0, maxX, maxY, params)
}

func (k ZnccMasked) ScanROI(image imageview.View, angleIdx, x0, y0, x1, y1 int, params ScanParams) ([]candidate.Peak, error) {
	if err := boundsOK(image.Width, image.Height, k.Plan.Width, k.Plan.Height); err != nil {
		return nil, err
	}
	return k.scanRange(image, angleIdx, x0, y0, x1, y1, params)
}

func (k ZnccMasked) scanRange(image imageview.View, angleIdx, x0, y0, x1, y1 int, params ScanParams) ([]candidate.Peak, error) {
	if params.TopK == 0 {
		return nil, nil
	}
	maxX := image.Width - k.Plan.Width
	maxY := image.Height - k.Plan.Height
	var ok bool
	x0, y0, x1, y1, ok = clampROI(x0, y0, x1, y1, maxX, maxY)
	if !ok {
		return nil, nil
	}
	if k.Plan.VarT <= 1e-8 {
		return nil, nil
	}

	topk := candidate.NewTopK(params.TopK)
	tplW, tplH := k.Plan.Width, k.Plan.Height
	tPrime := k.Plan.ZeroMean
	mask := k.Plan.Mask
	sumW := k.Plan.SumW
	varT := k.Plan.VarT

	for y := y0; y <= y1; y++ {
		for x := x0; x <= x1; x++ {
			var dot, sumI, sumI2 float32
			for ty := 0; ty < tplH; ty++ {
				row, err := image.Row(y + ty)
				if err != nil {
					return nil, err
				}
				base := ty * tplW
				for tx := 0; tx < tplW; tx++ {
					idx := base + tx
					if mask[idx] == 0 {
						continue
					}
					value := float32(row[x+tx])
					dot += tPrime[idx] * value
					sumI += value
					sumI2 += value * value
				}
			}
			varI := sumI2 - sumI*sumI/sumW
			if varI <= params.MinVarI {
				continue
			}
			score := dot / sqrt32(varT*varI)
			if isFinite32(score) && score >= params.MinScore {
				topk.Push(candidate.Peak{X: x, Y: y, Score: score, AngleIdx: angleIdx})
			}
		}
	}
	return topk.SortedDesc(), nil
}

func (k ZnccMasked) ScoreAt(image imageview.View, x, y int, minVarI float32) float32 {
	tplW, tplH := k.Plan.Width, k.Plan.Height
	if image.Width < tplW || image.Height < tplH {
		return negInf
	}
	if x > image.Width-tplW || y > image.Height-tplH {
		return negInf
	}
	if k.Plan.VarT <= 1e-8 {
		return negInf
	}
	tPrime := k.Plan.ZeroMean
	mask := k.Plan.Mask
	var dot, sumI, sumI2 float32
	for ty := 0; ty < tplH; ty++ {
		row, err := image.Row(y + ty)
		if err != nil {
			return negInf
		}
		base := ty * tplW
		for tx := 0; tx < tplW; tx++ {
			idx := base + tx
			if mask[idx] == 0 {
				continue
			}
			value := float32(row[x+tx])
			dot += tPrime[idx] * value
			sumI += value
			sumI2 += value * value
		}
	}
	varI := sumI2 - sumI*sumI/k.Plan.SumW
	if varI <= minVarI {
		return negInf
	}
	score := dot / sqrt32(k.Plan.VarT*varI)
	if !isFinite32(score) {
		return negInf
	}
	return score
}

// --- Masked SSD ---------------------------------------------------

// SsdMasked scans a masked, rotated SSD plan.
type SsdMasked struct {
	Plan *tplplan.MaskedSSDTemplatePlan
}

func (k SsdMasked) ScanFull(image imageview.View, angleIdx int, params ScanParams) ([]candidate.Peak, error) {
	if err := boundsOK(image.Width, image.Height, k.Plan.Width, k.Plan.Height); err != nil {
		return nil, err
	}
	maxX := image.Width - k.Plan.Width
	maxY := image.Height - k.Plan.Height
	return k.scanRange(image, angleIdx, 0, 0, maxX, maxY, params)
}

func (k SsdMasked) ScanROI(image imageview.View, angleIdx, x0, y0, x1, y1 int, params ScanParams) ([]candidate.Peak, error) {
	if err := boundsOK(image.Width, image.Height, k.Plan.Width, k.Plan.Height); err != nil {
		return nil, err
	}
	return k.scanRange(image, angleIdx, x0, y0, x1, y1, params)
}

func (k SsdMasked) scanRange(image imageview.View, angleIdx, x0, y0, x1, y1 int, params ScanParams) ([]candidate.Peak, error) {
	if params.TopK == 0 {
		return nil, nil
	}
	maxX := image.Width - k.Plan.Width
	maxY := image.Height - k.Plan.Height
	var ok bool
	x0, y0, x1, y1, ok = clampROI(x0, y0, x1, y1, maxX, maxY)
	if !ok {
		return nil, nil
	}

	topk := candidate.NewTopK(params.TopK)
	tplW, tplH := k.Plan.Width, k.Plan.Height
	values := k.Plan.Values
	mask := k.Plan.Mask

	for y := y0; y <= y1; y++ {
		for x := x0; x <= x1; x++ {
			var sse float32
			for ty := 0; ty < tplH; ty++ {
				row, err := image.Row(y + ty)
				if err != nil {
					return nil, err
				}
				base := ty * tplW
				for tx := 0; tx < tplW; tx++ {
					idx := base + tx
					if mask[idx] == 0 {
						continue
					}
					diff := float32(row[x+tx]) - values[idx]
					sse += diff * diff
				}
			}
			score := -sse
			if isFinite32(score) && score >= params.MinScore {
				topk.Push(candidate.Peak{X: x, Y: y, Score: score, AngleIdx: angleIdx})
			}
		}
	}
	return topk.SortedDesc(), nil
}

func (k SsdMasked) ScoreAt(image imageview.View, x, y int, _ float32) float32 {
	tplW, tplH := k.Plan.Width, k.Plan.Height
	if image.Width < tplW || image.Height < tplH {
		return negInf
	}
	if x > image.Width-tplW || y > image.Height-tplH {
		return negInf
	}
	values := k.Plan.Values
	mask := k.Plan.Mask
	var sse float32
	for ty := 0; ty < tplH; ty++ {
		row, err := image.Row(y + ty)
		if err != nil {
			return negInf
		}
		base := ty * tplW
		for tx := 0; tx < tplW; tx++ {
			idx := base + tx
			if mask[idx] == 0 {
				continue
			}
			diff := float32(row[x+tx]) - values[idx]
			sse += diff * diff
		}
	}
	score := -sse
	if !isFinite32(score) {
		return negInf
	}
	return score
}
