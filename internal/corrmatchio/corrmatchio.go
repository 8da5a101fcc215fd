// Package corrmatchio converts between gocv.Mat / image.Image and the
// plain grayscale []byte buffers corrmatch's deterministic kernels
// operate on. It is an edge concern, not part of the scoring core: gocv's
// own numerics never touch the scan loops themselves.
package corrmatchio

import (
	"image"
	"runtime"
	"sync"

	"gocv.io/x/gocv"

	"github.com/VitalyVorobyev/corrmatch/internal/corrmatch/correrr"
)

// MatToGray converts a gocv.Mat to a contiguous grayscale []byte buffer,
// striped across a worker pool by row range. The Mat is converted to
// single-channel grayscale first if it isn't already.
func MatToGray(mat gocv.Mat) ([]byte, int, int, error) {
	if mat.Empty() {
		return nil, 0, 0, correrr.New(correrr.InvalidInput, "empty Mat")
	}

	gray := mat
	if mat.Channels() != 1 {
		gray = gocv.NewMat()
		defer gray.Close()
		gocv.CvtColor(mat, &gray, gocv.ColorBGRToGray)
	}

	h := gray.Rows()
	w := gray.Cols()
	out := make([]byte, w*h)

	numWorkers := runtime.NumCPU()
	rowsPerWorker := (h + numWorkers - 1) / numWorkers

	var wg sync.WaitGroup
	for worker := 0; worker < numWorkers; worker++ {
		startY := worker * rowsPerWorker
		endY := startY + rowsPerWorker
		if endY > h {
			endY = h
		}
		if startY >= h {
			break
		}
		wg.Add(1)
		go func(yStart, yEnd int) {
			defer wg.Done()
			for y := yStart; y < yEnd; y++ {
				rowOff := y * w
				for x := 0; x < w; x++ {
					out[rowOff+x] = gray.GetUCharAt(y, x)
				}
			}
		}(startY, endY)
	}
	wg.Wait()

	return out, w, h, nil
}

// GrayToMat converts a contiguous grayscale []byte buffer to a
// single-channel gocv.Mat, striped the same way as MatToGray. The caller
// owns the returned Mat and must Close it.
func GrayToMat(data []byte, width, height int) (gocv.Mat, error) {
	if width <= 0 || height <= 0 || len(data) != width*height {
		return gocv.NewMat(), correrr.Newf(correrr.InvalidInput,
			"invalid buffer for %dx%d grayscale image", width, height)
	}

	mat := gocv.NewMatWithSize(height, width, gocv.MatTypeCV8UC1)
	numWorkers := runtime.NumCPU()
	rowsPerWorker := (height + numWorkers - 1) / numWorkers

	var wg sync.WaitGroup
	for worker := 0; worker < numWorkers; worker++ {
		startY := worker * rowsPerWorker
		endY := startY + rowsPerWorker
		if endY > height {
			endY = height
		}
		if startY >= height {
			break
		}
		wg.Add(1)
		go func(yStart, yEnd int) {
			defer wg.Done()
			for y := yStart; y < yEnd; y++ {
				rowOff := y * width
				for x := 0; x < width; x++ {
					mat.SetUCharAt(y, x, data[rowOff+x])
				}
			}
		}(startY, endY)
	}
	wg.Wait()

	return mat, nil
}

// ImageToGray converts a Go image.Image to a contiguous grayscale
// []byte buffer using the luminance-weighted RGBA-to-gray reduction,
// striped across a worker pool by row range.
func ImageToGray(img image.Image) ([]byte, int, int) {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	out := make([]byte, w*h)

	numWorkers := runtime.NumCPU()
	rowsPerWorker := (h + numWorkers - 1) / numWorkers

	var wg sync.WaitGroup
	for worker := 0; worker < numWorkers; worker++ {
		startY := worker * rowsPerWorker
		endY := startY + rowsPerWorker
		if endY > h {
			endY = h
		}
		if startY >= h {
			break
		}
		wg.Add(1)
		go func(yStart, yEnd int) {
			defer wg.Done()
			for y := yStart; y < yEnd; y++ {
				rowOff := y * w
				for x := 0; x < w; x++ {
					r, g, b, _ := img.At(x+bounds.Min.X, y+bounds.Min.Y).RGBA()
					lum := (299*uint32(r>>8) + 587*uint32(g>>8) + 114*uint32(b>>8)) / 1000
					out[rowOff+x] = byte(lum)
				}
			}
		}(startY, endY)
	}
	wg.Wait()

	return out, w, h
}
