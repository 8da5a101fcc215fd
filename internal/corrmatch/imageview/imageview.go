// Package imageview provides a borrowed grayscale image view and an owned
// image pyramid built from it.
package imageview

import (
	"github.com/VitalyVorobyev/corrmatch/internal/corrmatch/correrr"
)

// View is a borrowed 2D grayscale image: width W, height H, stride S >= W.
// Row y occupies Data[y*Stride : y*Stride+Width].
type View struct {
	Data   []byte
	Width  int
	Height int
	Stride int
}

// New builds a View over data with stride equal to width.
func New(data []byte, width, height int) (View, error) {
	return NewStrided(data, width, height, width)
}

// NewStrided builds a View with an explicit stride.
func NewStrided(data []byte, width, height, stride int) (View, error) {
	if width <= 0 || height <= 0 {
		return View{}, correrr.Newf(correrr.InvalidInput, "invalid dimensions %dx%d", width, height)
	}
	if stride < width {
		return View{}, correrr.Newf(correrr.InvalidInput, "stride %d smaller than width %d", stride, width)
	}
	needed := (height-1)*stride + width
	if len(data) < needed {
		return View{}, correrr.Newf(correrr.InvalidInput, "buffer too small: need %d, got %d", needed, len(data))
	}
	return View{Data: data, Width: width, Height: height, Stride: stride}, nil
}

// Row returns the contiguous slice of pixels for row y.
func (v View) Row(y int) ([]byte, error) {
	if y < 0 || y >= v.Height {
		return nil, correrr.Newf(correrr.InvalidInput, "row %d out of bounds [0,%d)", y, v.Height)
	}
	off := y * v.Stride
	return v.Data[off : off+v.Width], nil
}

// At returns the pixel at (x, y).
func (v View) At(x, y int) (byte, error) {
	if x < 0 || x >= v.Width || y < 0 || y >= v.Height {
		return 0, correrr.Newf(correrr.InvalidInput, "coordinate (%d,%d) out of bounds", x, y)
	}
	return v.Data[y*v.Stride+x], nil
}

// ROI returns a zero-copy sub-view of the rectangle [x,x+w)x[y,y+h).
func (v View) ROI(x, y, w, h int) (View, error) {
	if w <= 0 || h <= 0 || x < 0 || y < 0 || x+w > v.Width || y+h > v.Height {
		return View{}, correrr.Newf(correrr.InvalidInput,
			"roi (%d,%d,%d,%d) out of bounds for %dx%d image", x, y, w, h, v.Width, v.Height)
	}
	off := y*v.Stride + x
	return View{Data: v.Data[off:], Width: w, Height: h, Stride: v.Stride}, nil
}

// Owned is an owned grayscale image, contiguous (stride == width).
type Owned struct {
	Data   []byte
	Width  int
	Height int
}

// NewOwned builds an Owned image from a contiguous buffer.
func NewOwned(data []byte, width, height int) (*Owned, error) {
	if width <= 0 || height <= 0 {
		return nil, correrr.Newf(correrr.InvalidInput, "invalid dimensions %dx%d", width, height)
	}
	if len(data) != width*height {
		return nil, correrr.Newf(correrr.InvalidInput, "data length %d != %d*%d", len(data), width, height)
	}
	return &Owned{Data: data, Width: width, Height: height}, nil
}

// View returns a borrowed view of the owned image.
func (o *Owned) View() View {
	return View{Data: o.Data, Width: o.Width, Height: o.Height, Stride: o.Width}
}

// Pyramid is an ordered sequence of owned image levels, level 0 being the
// original resolution.
type Pyramid struct {
	Levels []*Owned
}

// Build constructs a pyramid from view down to a depth capped by maxLevels
// and by the point at which either dimension drops below 2. Each level is
// produced from the previous one by 2x2 box-averaging with integer
// rounding (sum+2)/4, which rounds halves up; odd tail rows/columns are
// discarded.
func Build(view View, maxLevels int) (*Pyramid, error) {
	if maxLevels < 1 {
		maxLevels = 1
	}
	if view.Width == 0 || view.Height == 0 {
		return nil, correrr.New(correrr.InvalidInput, "empty view")
	}

	base := make([]byte, view.Width*view.Height)
	for y := 0; y < view.Height; y++ {
		row, err := view.Row(y)
		if err != nil {
			return nil, err
		}
		copy(base[y*view.Width:(y+1)*view.Width], row)
	}
	level0, err := NewOwned(base, view.Width, view.Height)
	if err != nil {
		return nil, err
	}

	levels := []*Owned{level0}
	cur := level0
	for len(levels) < maxLevels && cur.Width/2 >= 2 && cur.Height/2 >= 2 {
		next := downsample(cur)
		levels = append(levels, next)
		cur = next
	}
	return &Pyramid{Levels: levels}, nil
}

// downsample halves both dimensions by averaging 2x2 blocks starting at
// even coordinates; odd tail rows/columns are discarded.
func downsample(src *Owned) *Owned {
	dstW := src.Width / 2
	dstH := src.Height / 2
	out := make([]byte, dstW*dstH)
	for yo := 0; yo < dstH; yo++ {
		y0 := 2 * yo
		y1 := y0 + 1
		rowA := src.Data[y0*src.Width : (y0+1)*src.Width]
		rowB := src.Data[y1*src.Width : (y1+1)*src.Width]
		dstRow := out[yo*dstW : (yo+1)*dstW]
		for xo := 0; xo < dstW; xo++ {
			x0 := 2 * xo
			x1 := x0 + 1
			sum := uint16(rowA[x0]) + uint16(rowA[x1]) + uint16(rowB[x0]) + uint16(rowB[x1])
			dstRow[xo] = byte((sum + 2) / 4)
		}
	}
	return &Owned{Data: out, Width: dstW, Height: dstH}
}

// Level returns level index, or an error if out of bounds.
func (p *Pyramid) Level(index int) (*Owned, error) {
	if index < 0 || index >= len(p.Levels) {
		return nil, correrr.Newf(correrr.InvalidInput, "level %d out of bounds [0,%d)", index, len(p.Levels))
	}
	return p.Levels[index], nil
}

// NumLevels returns the number of pyramid levels.
func (p *Pyramid) NumLevels() int {
	return len(p.Levels)
}
