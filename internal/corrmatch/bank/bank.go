// Package bank compiles a template into reusable search assets: an image
// pyramid, per-level unmasked ZNCC/SSD plans for the no-rotation fast path,
// and, when rotation search is enabled, a per-level angle grid backed by
// write-once lazily-initialized masked plan slots.
package bank

import (
	"sync"

	"github.com/VitalyVorobyev/corrmatch/internal/corrmatch/anglegrid"
	"github.com/VitalyVorobyev/corrmatch/internal/corrmatch/correrr"
	"github.com/VitalyVorobyev/corrmatch/internal/corrmatch/imageview"
	"github.com/VitalyVorobyev/corrmatch/internal/corrmatch/tplplan"
)

// rotatedTemplate bundles the masked ZNCC and SSD plans for one rotated
// instance of a template at one pyramid level.
type rotatedTemplate struct {
	angleDeg float64
	zncc     *tplplan.MaskedPlan
	ssd      *tplplan.MaskedSSDTemplatePlan
}

// rotSlot is a write-once cache cell: the first caller to reach it through
// getOrCompute pays the rotation and plan-fitting cost, every later caller
// (including concurrent ones) observes the same cached result.
type rotSlot struct {
	once sync.Once
	val  *rotatedTemplate
	err  error
}

func (s *rotSlot) getOrCompute(compute func() (*rotatedTemplate, error)) (*rotatedTemplate, error) {
	s.once.Do(func() {
		s.val, s.err = compute()
	})
	return s.val, s.err
}

// levelBank holds one pyramid level's angle grid and its rotation slots.
type levelBank struct {
	grid  *anglegrid.Grid
	slots []rotSlot
}

// CompiledRot is the rotation-enabled compiled template.
type CompiledRot struct {
	pyramid      *imageview.Pyramid
	banks        []*levelBank
	unmaskedZncc []*tplplan.Plan
	unmaskedSsd  []*tplplan.SSDPlan
	cfg          CompileConfig
}

// CompileRotated builds pyramid levels, unmasked plans, and per-level angle
// grids for a template, eagerly populating the coarsest level's rotation
// bank when cfg.PrecomputeCoarsest is set. An angle whose rotated plan is
// degenerate does not fail the compile; its slot keeps the Degenerate
// error and returns it when that plan is requested.
func CompileRotated(tpl imageview.View, cfg CompileConfig) (*CompiledRot, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	pyramid, err := imageview.Build(tpl, cfg.MaxLevels)
	if err != nil {
		return nil, err
	}

	numLevels := pyramid.NumLevels()
	unmaskedZncc := make([]*tplplan.Plan, numLevels)
	unmaskedSsd := make([]*tplplan.SSDPlan, numLevels)
	for i, level := range pyramid.Levels {
		znccPlan, err := tplplan.FromView(level.View())
		if err != nil {
			return nil, err
		}
		ssdPlan, err := tplplan.SSDFromView(level.View())
		if err != nil {
			return nil, err
		}
		unmaskedZncc[i] = znccPlan
		unmaskedSsd[i] = ssdPlan
	}

	coarsestIdx := numLevels - 1
	banks := make([]*levelBank, numLevels)
	for levelIdx := 0; levelIdx < numLevels; levelIdx++ {
		shift := coarsestIdx - levelIdx
		factor := float64(uint64(1) << uint(shift))
		step := cfg.CoarseStepDeg / factor
		if step < cfg.MinStepDeg {
			step = cfg.MinStepDeg
		}
		grid, err := anglegrid.NewFull(step)
		if err != nil {
			return nil, err
		}
		banks[levelIdx] = &levelBank{grid: grid, slots: make([]rotSlot, grid.Len())}
	}

	c := &CompiledRot{
		pyramid:      pyramid,
		banks:        banks,
		unmaskedZncc: unmaskedZncc,
		unmaskedSsd:  unmaskedSsd,
		cfg:          cfg,
	}

	if cfg.PrecomputeCoarsest && coarsestIdx >= 0 {
		bank := banks[coarsestIdx]
		levelView := pyramid.Levels[coarsestIdx].View()
		for idx := 0; idx < bank.grid.Len(); idx++ {
			angle := bank.grid.AngleAt(idx)
			if _, err := bank.slots[idx].getOrCompute(func() (*rotatedTemplate, error) {
				return buildRotated(levelView, angle)
			}); err != nil && !correrr.Is(err, correrr.Degenerate) {
				return nil, err
			}
		}
	}

	return c, nil
}

// buildRotated rotates levelView by angleDeg and fits both masked plans.
// The masked path always zero-fills invalid pixels (tplplan.RotateMasked);
// a compiled template's FillValue only affects an unmasked Rotate call, so
// it plays no part here.
func buildRotated(levelView imageview.View, angleDeg float64) (*rotatedTemplate, error) {
	rotatedImg, mask := tplplan.RotateMasked(levelView, angleDeg)
	znccPlan, err := tplplan.NewMaskedPlan(rotatedImg.View(), mask, angleDeg)
	if err != nil {
		return nil, err
	}
	ssdPlan, err := tplplan.NewMaskedSSDPlan(rotatedImg.View(), mask, angleDeg)
	if err != nil {
		return nil, err
	}
	return &rotatedTemplate{angleDeg: angleDeg, zncc: znccPlan, ssd: ssdPlan}, nil
}

// NumLevels returns the number of pyramid levels.
func (c *CompiledRot) NumLevels() int { return c.pyramid.NumLevels() }

// LevelSize returns the width and height of a pyramid level.
func (c *CompiledRot) LevelSize(level int) (width, height int, err error) {
	lvl, err := c.pyramid.Level(level)
	if err != nil {
		return 0, 0, err
	}
	return lvl.Width, lvl.Height, nil
}

// AngleGrid returns the angle grid for a pyramid level.
func (c *CompiledRot) AngleGrid(level int) (*anglegrid.Grid, error) {
	if level < 0 || level >= len(c.banks) {
		return nil, correrr.Newf(correrr.InvalidInput, "level %d out of bounds [0,%d)", level, len(c.banks))
	}
	return c.banks[level].grid, nil
}

// UnmaskedZnccPlan returns the unmasked ZNCC plan for a pyramid level.
func (c *CompiledRot) UnmaskedZnccPlan(level int) (*tplplan.Plan, error) {
	if level < 0 || level >= len(c.unmaskedZncc) {
		return nil, correrr.Newf(correrr.InvalidInput, "level %d out of bounds [0,%d)", level, len(c.unmaskedZncc))
	}
	return c.unmaskedZncc[level], nil
}

// UnmaskedSsdPlan returns the unmasked SSD plan for a pyramid level.
func (c *CompiledRot) UnmaskedSsdPlan(level int) (*tplplan.SSDPlan, error) {
	if level < 0 || level >= len(c.unmaskedSsd) {
		return nil, correrr.Newf(correrr.InvalidInput, "level %d out of bounds [0,%d)", level, len(c.unmaskedSsd))
	}
	return c.unmaskedSsd[level], nil
}

func (c *CompiledRot) rotated(level, angleIdx int) (*rotatedTemplate, error) {
	if level < 0 || level >= len(c.banks) {
		return nil, correrr.Newf(correrr.InvalidInput, "level %d out of bounds [0,%d)", level, len(c.banks))
	}
	bank := c.banks[level]
	if angleIdx < 0 || angleIdx >= len(bank.slots) {
		return nil, correrr.Newf(correrr.InvalidInput, "angle_idx %d out of bounds [0,%d)", angleIdx, len(bank.slots))
	}
	levelImg, err := c.pyramid.Level(level)
	if err != nil {
		return nil, err
	}
	angle := bank.grid.AngleAt(angleIdx)
	return bank.slots[angleIdx].getOrCompute(func() (*rotatedTemplate, error) {
		return buildRotated(levelImg.View(), angle)
	})
}

// RotatedZnccPlan returns the masked ZNCC plan for a level and angle index,
// computing and caching it on first access.
func (c *CompiledRot) RotatedZnccPlan(level, angleIdx int) (*tplplan.MaskedPlan, error) {
	rt, err := c.rotated(level, angleIdx)
	if err != nil {
		return nil, err
	}
	return rt.zncc, nil
}

// RotatedSsdPlan returns the masked SSD plan for a level and angle index,
// computing and caching it on first access.
func (c *CompiledRot) RotatedSsdPlan(level, angleIdx int) (*tplplan.MaskedSSDTemplatePlan, error) {
	rt, err := c.rotated(level, angleIdx)
	if err != nil {
		return nil, err
	}
	return rt.ssd, nil
}

// CompiledNoRot is the rotation-disabled compiled template: pyramid plus
// per-level unmasked plans only.
type CompiledNoRot struct {
	pyramid      *imageview.Pyramid
	unmaskedZncc []*tplplan.Plan
	unmaskedSsd  []*tplplan.SSDPlan
}

// CompileUnrotated builds pyramid levels and unmasked plans only.
func CompileUnrotated(tpl imageview.View, cfg CompileConfigNoRot) (*CompiledNoRot, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	pyramid, err := imageview.Build(tpl, cfg.MaxLevels)
	if err != nil {
		return nil, err
	}
	numLevels := pyramid.NumLevels()
	unmaskedZncc := make([]*tplplan.Plan, numLevels)
	unmaskedSsd := make([]*tplplan.SSDPlan, numLevels)
	for i, level := range pyramid.Levels {
		znccPlan, err := tplplan.FromView(level.View())
		if err != nil {
			return nil, err
		}
		ssdPlan, err := tplplan.SSDFromView(level.View())
		if err != nil {
			return nil, err
		}
		unmaskedZncc[i] = znccPlan
		unmaskedSsd[i] = ssdPlan
	}
	return &CompiledNoRot{pyramid: pyramid, unmaskedZncc: unmaskedZncc, unmaskedSsd: unmaskedSsd}, nil
}

// NumLevels returns the number of pyramid levels.
func (c *CompiledNoRot) NumLevels() int { return c.pyramid.NumLevels() }

// LevelSize returns the width and height of a pyramid level.
func (c *CompiledNoRot) LevelSize(level int) (width, height int, err error) {
	lvl, err := c.pyramid.Level(level)
	if err != nil {
		return 0, 0, err
	}
	return lvl.Width, lvl.Height, nil
}

// UnmaskedZnccPlan returns the unmasked ZNCC plan for a pyramid level.
func (c *CompiledNoRot) UnmaskedZnccPlan(level int) (*tplplan.Plan, error) {
	if level < 0 || level >= len(c.unmaskedZncc) {
		return nil, correrr.Newf(correrr.InvalidInput, "level %d out of bounds [0,%d)", level, len(c.unmaskedZncc))
	}
	return c.unmaskedZncc[level], nil
}

// UnmaskedSsdPlan returns the unmasked SSD plan for a pyramid level.
func (c *CompiledNoRot) UnmaskedSsdPlan(level int) (*tplplan.SSDPlan, error) {
	if level < 0 || level >= len(c.unmaskedSsd) {
		return nil, correrr.Newf(correrr.InvalidInput, "level %d out of bounds [0,%d)", level, len(c.unmaskedSsd))
	}
	return c.unmaskedSsd[level], nil
}

// CompiledTemplate is a rotation-enabled or rotation-disabled compiled
// template. Exactly one of the two fields is non-nil.
type CompiledTemplate struct {
	Rot   *CompiledRot
	NoRot *CompiledNoRot
}

// Compile compiles a rotation-enabled compiled template.
func Compile(tpl imageview.View, cfg CompileConfig) (*CompiledTemplate, error) {
	rot, err := CompileRotated(tpl, cfg)
	if err != nil {
		return nil, err
	}
	return &CompiledTemplate{Rot: rot}, nil
}

// CompileNoRotation compiles a rotation-disabled compiled template.
func CompileNoRotation(tpl imageview.View, cfg CompileConfigNoRot) (*CompiledTemplate, error) {
	noRot, err := CompileUnrotated(tpl, cfg)
	if err != nil {
		return nil, err
	}
	return &CompiledTemplate{NoRot: noRot}, nil
}

// HasRotation reports whether this compiled template supports rotation
// search.
func (c *CompiledTemplate) HasRotation() bool { return c.Rot != nil }

// NumLevels returns the number of pyramid levels.
func (c *CompiledTemplate) NumLevels() int {
	if c.Rot != nil {
		return c.Rot.NumLevels()
	}
	return c.NoRot.NumLevels()
}

// LevelSize returns the width and height of a pyramid level.
func (c *CompiledTemplate) LevelSize(level int) (int, int, error) {
	if c.Rot != nil {
		return c.Rot.LevelSize(level)
	}
	return c.NoRot.LevelSize(level)
}

// AngleGrid returns the angle grid for a pyramid level, or an error if
// this compiled template was built without rotation support.
func (c *CompiledTemplate) AngleGrid(level int) (*anglegrid.Grid, error) {
	if c.Rot == nil {
		return nil, correrr.New(correrr.InvalidConfig, "compiled without rotation support")
	}
	return c.Rot.AngleGrid(level)
}

// UnmaskedZnccPlan returns the unmasked ZNCC plan for a pyramid level.
func (c *CompiledTemplate) UnmaskedZnccPlan(level int) (*tplplan.Plan, error) {
	if c.Rot != nil {
		return c.Rot.UnmaskedZnccPlan(level)
	}
	return c.NoRot.UnmaskedZnccPlan(level)
}

// UnmaskedSsdPlan returns the unmasked SSD plan for a pyramid level.
func (c *CompiledTemplate) UnmaskedSsdPlan(level int) (*tplplan.SSDPlan, error) {
	if c.Rot != nil {
		return c.Rot.UnmaskedSsdPlan(level)
	}
	return c.NoRot.UnmaskedSsdPlan(level)
}

// RotatedZnccPlan returns the masked ZNCC plan for a level and angle index.
func (c *CompiledTemplate) RotatedZnccPlan(level, angleIdx int) (*tplplan.MaskedPlan, error) {
	if c.Rot == nil {
		return nil, correrr.New(correrr.InvalidConfig, "compiled without rotation support")
	}
	return c.Rot.RotatedZnccPlan(level, angleIdx)
}

// RotatedSsdPlan returns the masked SSD plan for a level and angle index.
func (c *CompiledTemplate) RotatedSsdPlan(level, angleIdx int) (*tplplan.MaskedSSDTemplatePlan, error) {
	if c.Rot == nil {
		return nil, correrr.New(correrr.InvalidConfig, "compiled without rotation support")
	}
	return c.Rot.RotatedSsdPlan(level, angleIdx)
}
