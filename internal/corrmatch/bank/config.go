package bank

import (
	"math"

	"github.com/VitalyVorobyev/corrmatch/internal/corrmatch/correrr"
)

// CompileConfig configures CompileRotated: pyramid depth, the per-level
// angle step schedule, the rotation fill value, and whether the coarsest
// level's rotation bank is populated eagerly at compile time.
type CompileConfig struct {
	MaxLevels          int
	CoarseStepDeg      float64
	MinStepDeg         float64
	FillValue          byte
	PrecomputeCoarsest bool
}

// DefaultCompileConfig mirrors the reference defaults: 6 pyramid levels, a
// 10 degree step at the coarsest level halving per finer level down to a
// 0.5 degree floor, and eager precomputation of the coarsest bank.
func DefaultCompileConfig() CompileConfig {
	return CompileConfig{
		MaxLevels:          6,
		CoarseStepDeg:      10,
		MinStepDeg:         0.5,
		FillValue:          0,
		PrecomputeCoarsest: true,
	}
}

// Validate checks the configuration for internal consistency.
func (c CompileConfig) Validate() error {
	if c.MaxLevels < 1 {
		return correrr.New(correrr.InvalidConfig, "max_levels must be at least 1")
	}
	if !isFinite(c.CoarseStepDeg) || c.CoarseStepDeg <= 0 {
		return correrr.New(correrr.InvalidConfig, "coarse_step_deg must be a positive finite value")
	}
	if !isFinite(c.MinStepDeg) || c.MinStepDeg <= 0 {
		return correrr.New(correrr.InvalidConfig, "min_step_deg must be a positive finite value")
	}
	if c.MinStepDeg > c.CoarseStepDeg {
		return correrr.New(correrr.InvalidConfig, "min_step_deg must not exceed coarse_step_deg")
	}
	return nil
}

// CompileConfigNoRot configures CompileUnrotated: pyramid depth only.
type CompileConfigNoRot struct {
	MaxLevels int
}

// DefaultCompileConfigNoRot mirrors the rotation-enabled default depth.
func DefaultCompileConfigNoRot() CompileConfigNoRot {
	return CompileConfigNoRot{MaxLevels: 6}
}

// Validate checks the configuration for internal consistency.
func (c CompileConfigNoRot) Validate() error {
	if c.MaxLevels < 1 {
		return correrr.New(correrr.InvalidConfig, "max_levels must be at least 1")
	}
	return nil
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
