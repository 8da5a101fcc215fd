// Command corrmatchdemo runs the coarse-to-fine matcher against a
// synthetic image and template generated in-process, and prints the
// result. It exercises the library end to end without any file I/O.
package main

import (
	"fmt"
	"image"
	"image/color"
	"math/rand"
	"os"

	"golang.org/x/image/draw"

	"github.com/VitalyVorobyev/corrmatch"
)

const (
	canvasW, canvasH = 160, 120
	tplW, tplH       = 24, 24
	embedX, embedY   = 58, 41
)

func main() {
	fmt.Println("=== Generating synthetic background ===")
	canvas := image.NewGray(image.Rect(0, 0, canvasW, canvasH))
	fillNoise(canvas, rand.New(rand.NewSource(1)))

	fmt.Println("=== Generating synthetic template ===")
	tplImg := image.NewGray(image.Rect(0, 0, tplW, tplH))
	fillPattern(tplImg)

	// Scale the template up slightly and back down through x/image/draw's
	// bilinear scaler before embedding, so the embedded copy isn't a bare
	// memcpy of the source pattern.
	scaled := image.NewGray(image.Rect(0, 0, tplW+4, tplH+4))
	draw.BiLinear.Scale(scaled, scaled.Bounds(), tplImg, tplImg.Bounds(), draw.Over, nil)
	resampled := image.NewGray(image.Rect(0, 0, tplW, tplH))
	draw.BiLinear.Scale(resampled, resampled.Bounds(), scaled, scaled.Bounds(), draw.Over, nil)

	fmt.Printf("=== Embedding template at (%d,%d) ===\n", embedX, embedY)
	tplView, err := corrmatch.NewImage(resampled.Pix, tplW, tplH)
	if err != nil {
		fmt.Fprintf(os.Stderr, "NewImage(template): %v\n", err)
		os.Exit(1)
	}
	embedPatch(canvas, tplView, embedX, embedY)

	imageView, err := corrmatch.NewImage(canvas.Pix, canvasW, canvasH)
	if err != nil {
		fmt.Fprintf(os.Stderr, "NewImage(canvas): %v\n", err)
		os.Exit(1)
	}

	fmt.Println("=== Compiling template (rotation enabled) ===")
	cfg := corrmatch.DefaultCompileConfig()
	cfg.MaxLevels = 4
	cfg.CoarseStepDeg = 15
	cfg.MinStepDeg = 2
	template, err := corrmatch.Compile(tplView, cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Compile: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("compiled %d pyramid levels\n", template.NumLevels())

	fmt.Println("=== Matching ===")
	mcfg := corrmatch.DefaultMatchConfig()
	mcfg.Rotation = corrmatch.RotationEnabled
	mcfg.MaxImageLevels = 4
	matcher, err := corrmatch.NewMatcher(template).TryWithConfig(mcfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "TryWithConfig: %v\n", err)
		os.Exit(1)
	}

	match, err := matcher.MatchImage(imageView)
	if err != nil {
		fmt.Fprintf(os.Stderr, "MatchImage: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("=== Result ===\nposition=(%.2f, %.2f) angle=%.2f deg score=%.4f\n",
		match.X, match.Y, match.AngleDeg, match.Score)
}

// fillNoise fills img with deterministic pseudo-random grayscale noise.
func fillNoise(img *image.Gray, rng *rand.Rand) {
	for i := range img.Pix {
		img.Pix[i] = byte(rng.Intn(96))
	}
}

// fillPattern fills img with a deterministic, non-periodic pattern so
// its ZNCC/SSD plans have nonzero variance.
func fillPattern(img *image.Gray) {
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			v := byte((x*41 + y*67 + x*y*5) % 256)
			img.SetGray(x, y, color.Gray{Y: v})
		}
	}
}

// embedPatch pastes tpl into canvas at (ox, oy).
func embedPatch(canvas *image.Gray, tpl corrmatch.Image, ox, oy int) {
	for y := 0; y < tpl.Height; y++ {
		row, err := tpl.Row(y)
		if err != nil {
			continue
		}
		copy(canvas.Pix[(oy+y)*canvas.Stride+ox:(oy+y)*canvas.Stride+ox+tpl.Width], row)
	}
}
