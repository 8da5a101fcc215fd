// Package search implements the coarse-to-fine matcher: pyramid-level
// coarse candidate discovery, per-level refinement toward finer levels,
// and a final subpixel/subangle fit at full resolution.
package search

import (
	"math"

	"github.com/VitalyVorobyev/corrmatch/internal/corrmatch/correrr"
)

// Metric selects the scoring function used throughout a match.
type Metric int

const (
	Zncc Metric = iota
	Ssd
)

// RotationMode selects whether the search includes an angle dimension.
type RotationMode int

const (
	RotationDisabled RotationMode = iota
	RotationEnabled
)

// MatchConfig configures a Matcher's coarse-to-fine search.
type MatchConfig struct {
	Metric   Metric
	Rotation RotationMode
	Parallel bool

	MaxImageLevels      int
	BeamWidth           int
	PerAngleTopK        int
	NmsRadius           int
	RoiRadius           int
	AngleHalfRangeSteps int

	MinVarI  float32
	MinScore float32
}

// DefaultMatchConfig mirrors the reference defaults.
func DefaultMatchConfig() MatchConfig {
	return MatchConfig{
		Metric:              Zncc,
		Rotation:            RotationDisabled,
		Parallel:            false,
		MaxImageLevels:      6,
		BeamWidth:           8,
		PerAngleTopK:        3,
		NmsRadius:           6,
		RoiRadius:           8,
		AngleHalfRangeSteps: 1,
		MinVarI:             1e-8,
		MinScore:            float32(math.Inf(-1)),
	}
}

// maxReasonableRadius bounds nms_radius/roi_radius: well beyond any image
// dimension a CPU scan could cover in practice, so a larger value is a
// misconfiguration (e.g. a sign error or unit mixup) rather than an
// intentional search parameter.
const maxReasonableRadius = 1 << 20

// Validate checks the configuration for internal consistency.
func (c MatchConfig) Validate() error {
	if c.BeamWidth < 1 {
		return correrr.New(correrr.InvalidConfig, "beam_width must be at least 1")
	}
	if c.PerAngleTopK < 1 {
		return correrr.New(correrr.InvalidConfig, "per_angle_topk must be at least 1")
	}
	if c.MaxImageLevels < 1 {
		return correrr.New(correrr.InvalidConfig, "max_image_levels must be at least 1")
	}
	if c.NmsRadius < 0 || c.NmsRadius > maxReasonableRadius {
		return correrr.New(correrr.InvalidConfig, "nms_radius must be non-negative and not absurdly large")
	}
	if c.RoiRadius < 0 || c.RoiRadius > maxReasonableRadius {
		return correrr.New(correrr.InvalidConfig, "roi_radius must be non-negative and not absurdly large")
	}
	if math.IsNaN(float64(c.MinVarI)) || math.IsInf(float64(c.MinVarI), 0) || c.MinVarI < 0 {
		return correrr.New(correrr.InvalidConfig, "min_var_i must be a non-negative finite value")
	}
	if math.IsNaN(float64(c.MinScore)) {
		return correrr.New(correrr.InvalidConfig, "min_score must not be NaN")
	}
	if math.IsInf(float64(c.MinScore), 0) && !math.IsInf(float64(c.MinScore), -1) {
		return correrr.New(correrr.InvalidConfig, "min_score must be finite or negative infinity")
	}
	return nil
}
