package tplplan

import (
	"math"

	"github.com/VitalyVorobyev/corrmatch/internal/corrmatch/imageview"
)

// sinCosDeg returns (sin, cos) of angleDeg in single precision, matching the
// precision contract of the rotation and plan arithmetic.
func sinCosDeg(angleDeg float64) (sin, cos float32) {
	rad := angleDeg * math.Pi / 180
	s, c := math.Sincos(rad)
	return float32(s), float32(c)
}

// sampleRotated computes the inverse-rotated source coordinate for
// destination pixel (xo, yo) in a template of size (w, h) rotated by
// angleDeg about its center, and reports whether that coordinate lies
// within the source bounds [0, w-1] x [0, h-1], edges included (no epsilon
// tolerance: a coordinate
// that is negative, or greater than the last valid index, is rejected
// unconditionally, before any integer conversion).
func sampleRotated(xo, yo, w, h int, sinA, cosA float32) (srcX, srcY float32, valid bool) {
	cx := (float32(w) - 1) * 0.5
	cy := (float32(h) - 1) * 0.5
	maxX := float32(w) - 1
	maxY := float32(h) - 1

	dx := float32(xo) - cx
	dy := float32(yo) - cy
	srcX = cosA*dx + sinA*dy + cx
	srcY = -sinA*dx + cosA*dy + cy

	if math.IsNaN(float64(srcX)) || math.IsNaN(float64(srcY)) ||
		math.IsInf(float64(srcX), 0) || math.IsInf(float64(srcY), 0) {
		return srcX, srcY, false
	}
	if srcX < 0 || srcY < 0 || srcX > maxX || srcY > maxY {
		return srcX, srcY, false
	}
	return srcX, srcY, true
}

// bilinearSample interpolates src at floating coordinates already known to
// lie within [0, w-1] x [0, h-1], clamping the upper neighbor index at the
// image edge.
func bilinearSample(src imageview.View, srcX, srcY float32) float32 {
	w, h := src.Width, src.Height
	x0 := int(srcX)
	y0 := int(srcY)
	x1 := x0 + 1
	if x1 > w-1 {
		x1 = w - 1
	}
	y1 := y0 + 1
	if y1 > h-1 {
		y1 = h - 1
	}
	fx := srcX - float32(x0)
	fy := srcY - float32(y0)

	row0, _ := src.Row(y0)
	row1, _ := src.Row(y1)
	a := float32(row0[x0])
	b := float32(row0[x1])
	c := float32(row1[x0])
	d := float32(row1[x1])

	w00 := (1 - fx) * (1 - fy)
	w10 := fx * (1 - fy)
	w01 := (1 - fx) * fy
	w11 := fx * fy
	return a*w00 + b*w10 + c*w01 + d*w11
}

// Rotate produces a bilinearly-rotated copy of tpl about its center,
// filling out-of-bounds source samples with fill. The boundary check is
// strict: a source coordinate that is negative or beyond the last valid
// index is never used to index the template.
func Rotate(tpl imageview.View, angleDeg float64, fill byte) *imageview.Owned {
	w, h := tpl.Width, tpl.Height
	sinA, cosA := sinCosDeg(angleDeg)
	out := make([]byte, w*h)
	for yo := 0; yo < h; yo++ {
		for xo := 0; xo < w; xo++ {
			srcX, srcY, ok := sampleRotated(xo, yo, w, h, sinA, cosA)
			if !ok {
				out[yo*w+xo] = fill
				continue
			}
			value := bilinearSample(tpl, srcX, srcY)
			rounded := float32(math.Round(float64(value)))
			if rounded < 0 {
				rounded = 0
			} else if rounded > 255 {
				rounded = 255
			}
			out[yo*w+xo] = byte(rounded)
		}
	}
	owned, _ := imageview.NewOwned(out, w, h)
	return owned
}

// RotateMasked produces a bilinearly-rotated copy of tpl about its center
// together with a validity mask: mask[i] == 1 iff the corresponding pixel's
// inverse-rotated source coordinate fell within the source bounds
// [0, w-1] x [0, h-1], edges included.
// Masked-out pixels are written as 0 in both the rotated image and the
// zero-mean buffers built from it. The two rotation variants agree on
// validity classification for identical angles.
func RotateMasked(tpl imageview.View, angleDeg float64) (rotated *imageview.Owned, mask []byte) {
	w, h := tpl.Width, tpl.Height
	sinA, cosA := sinCosDeg(angleDeg)
	out := make([]byte, w*h)
	m := make([]byte, w*h)
	for yo := 0; yo < h; yo++ {
		for xo := 0; xo < w; xo++ {
			idx := yo*w + xo
			srcX, srcY, ok := sampleRotated(xo, yo, w, h, sinA, cosA)
			if !ok {
				continue
			}
			value := bilinearSample(tpl, srcX, srcY)
			rounded := float32(math.Round(float64(value)))
			if rounded < 0 {
				rounded = 0
			} else if rounded > 255 {
				rounded = 255
			}
			out[idx] = byte(rounded)
			m[idx] = 1
		}
	}
	owned, _ := imageview.NewOwned(out, w, h)
	return owned, m
}
