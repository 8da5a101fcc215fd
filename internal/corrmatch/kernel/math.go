package kernel

import "math"

var negInf = float32(math.Inf(-1))

func sqrt32(v float32) float32 {
	return float32(math.Sqrt(float64(v)))
}

func isFinite32(v float32) bool {
	f := float64(v)
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
