package search

import (
	"math"

	"github.com/VitalyVorobyev/corrmatch/internal/corrmatch/anglegrid"
	"github.com/VitalyVorobyev/corrmatch/internal/corrmatch/bank"
	"github.com/VitalyVorobyev/corrmatch/internal/corrmatch/candidate"
	"github.com/VitalyVorobyev/corrmatch/internal/corrmatch/correrr"
	"github.com/VitalyVorobyev/corrmatch/internal/corrmatch/imageview"
	"github.com/VitalyVorobyev/corrmatch/internal/corrmatch/quad"
)

// refineToFinerLevel upscales each candidate from the previous (coarser)
// level into this level's coordinates, scans a small ROI around it across
// the angle indices near the candidate's angle, and merges everything
// into a single beam-truncated candidate list. ROI-limited scans are
// cheap enough that this always runs sequentially, even under
// cfg.Parallel; parallel dispatch only pays off at the full-image coarse
// scan (see coarseSearchLevelParallel).
func refineToFinerLevel(image imageview.View, compiled *bank.CompiledTemplate, level int, prev []Candidate, cfg MatchConfig) ([]Candidate, error) {
	grid, err := compiled.AngleGrid(level)
	if err != nil {
		return nil, err
	}
	tplW, tplH, err := compiled.LevelSize(level)
	if err != nil {
		return nil, err
	}
	if image.Width < tplW || image.Height < tplH {
		return nil, correrr.Newf(correrr.InvalidInput,
			"image %dx%d smaller than template %dx%d at level %d", image.Width, image.Height, tplW, tplH, level)
	}
	maxX := image.Width - tplW
	maxY := image.Height - tplH
	params := scanParamsForCoarse(cfg)
	halfRange := float64(cfg.AngleHalfRangeSteps) * grid.StepDeg

	var all []candidate.Peak
	for _, cand := range prev {
		xUp, yUp := upscalePos(cand.X, cand.Y)
		roi, ok := roiBounds(xUp, yUp, cfg.RoiRadius, maxX, maxY)
		if !ok {
			continue
		}
		for _, angleIdx := range grid.IndicesWithin(cand.AngleDeg, halfRange) {
			scanner, err := scannerForRotated(compiled, level, angleIdx, cfg.Metric)
			if err != nil {
				return nil, err
			}
			peaks, err := scanner.ScanROI(image, angleIdx, roi.X, roi.Y, roi.X+roi.Width, roi.Y+roi.Height, params)
			if err != nil {
				return nil, err
			}
			all = append(all, peaks...)
		}
	}
	kept := mergeAndBeam(all, cfg)
	out := make([]Candidate, len(kept))
	for i, p := range kept {
		out[i] = candidateFromPeak(level, grid.AngleAt(p.AngleIdx), p)
	}
	return out, nil
}

// refineToFinerLevelUnmasked is refineToFinerLevel for the no-rotation
// fast path: every candidate's ROI is scanned once with the unmasked
// kernel, angle index always 0.
func refineToFinerLevelUnmasked(image imageview.View, compiled *bank.CompiledTemplate, level int, prev []Candidate, cfg MatchConfig) ([]Candidate, error) {
	tplW, tplH, err := compiled.LevelSize(level)
	if err != nil {
		return nil, err
	}
	if image.Width < tplW || image.Height < tplH {
		return nil, correrr.Newf(correrr.InvalidInput,
			"image %dx%d smaller than template %dx%d at level %d", image.Width, image.Height, tplW, tplH, level)
	}
	maxX := image.Width - tplW
	maxY := image.Height - tplH
	scanner, err := scannerForUnmasked(compiled, level, cfg.Metric)
	if err != nil {
		return nil, err
	}
	params := scanParamsForCoarse(cfg)

	var all []candidate.Peak
	for _, cand := range prev {
		xUp, yUp := upscalePos(cand.X, cand.Y)
		roi, ok := roiBounds(xUp, yUp, cfg.RoiRadius, maxX, maxY)
		if !ok {
			continue
		}
		peaks, err := scanner.ScanROI(image, 0, roi.X, roi.Y, roi.X+roi.Width, roi.Y+roi.Height, params)
		if err != nil {
			return nil, err
		}
		all = append(all, peaks...)
	}
	kept := mergeAndBeam(all, cfg)
	out := make([]Candidate, len(kept))
	for i, p := range kept {
		out[i] = candidateFromPeak(level, 0, p)
	}
	return out, nil
}

// scoreNeighborhood3x3 fills a 3x3 window of scores around (x, y) using
// scanner.ScoreAt, leaving negInf in any cell that falls outside the
// image bounds.
func scoreNeighborhood3x3(scanner interface {
	ScoreAt(image imageview.View, x, y int, minVarI float32) float32
}, image imageview.View, x, y int, minVarI float32) [3][3]float32 {
	var s [3][3]float32
	for iy := -1; iy <= 1; iy++ {
		for ix := -1; ix <= 1; ix++ {
			if x+ix < 0 || y+iy < 0 {
				s[iy+1][ix+1] = float32(math.Inf(-1))
				continue
			}
			s[iy+1][ix+1] = scanner.ScoreAt(image, x+ix, y+iy, minVarI)
		}
	}
	return s
}

func isFiniteScore(v float32) bool {
	f := float64(v)
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// refineFinalMatch performs the full-resolution fit: a 3x3 positional
// neighborhood feeds quad.SubpixelPeak2D, and the previous/current/next
// angle index's scores at the same position feed quad.SubangleOffset1D.
func refineFinalMatch(image imageview.View, compiled *bank.CompiledTemplate, level int, best Candidate, cfg MatchConfig) (Match, error) {
	grid, err := compiled.AngleGrid(level)
	if err != nil {
		return Match{}, err
	}
	scanner, err := scannerForRotated(compiled, level, best.AngleIdx, cfg.Metric)
	if err != nil {
		return Match{}, err
	}

	s := scoreNeighborhood3x3(scanner, image, best.X, best.Y, cfg.MinVarI)
	centerScore := s[1][1]
	if !isFiniteScore(centerScore) {
		centerScore = best.Score
	}
	xRef, yRef := quad.SubpixelPeak2D(best.X, best.Y, s)

	length := grid.Len()
	im := (best.AngleIdx - 1 + length) % length
	ip := (best.AngleIdx + 1) % length
	scannerM, err := scannerForRotated(compiled, level, im, cfg.Metric)
	if err != nil {
		return Match{}, err
	}
	scannerP, err := scannerForRotated(compiled, level, ip, cfg.Metric)
	if err != nil {
		return Match{}, err
	}
	sm := scannerM.ScoreAt(image, best.X, best.Y, cfg.MinVarI)
	sp := scannerP.ScoreAt(image, best.X, best.Y, cfg.MinVarI)

	angleDeg := grid.AngleAt(best.AngleIdx)
	if offsetDeg, ok := quad.SubangleOffset1D(sm, centerScore, sp, grid.StepDeg); ok {
		angleDeg = anglegrid.WrapDeg(angleDeg + offsetDeg)
	}

	return Match{X: xRef, Y: yRef, AngleDeg: float32(angleDeg), Score: centerScore}, nil
}

// refineFinalMatchUnmasked is refineFinalMatch for the no-rotation fast
// path: positional subpixel fit only, angle is always 0.
func refineFinalMatchUnmasked(image imageview.View, compiled *bank.CompiledTemplate, level int, best Candidate, cfg MatchConfig) (Match, error) {
	scanner, err := scannerForUnmasked(compiled, level, cfg.Metric)
	if err != nil {
		return Match{}, err
	}
	s := scoreNeighborhood3x3(scanner, image, best.X, best.Y, cfg.MinVarI)
	centerScore := s[1][1]
	if !isFiniteScore(centerScore) {
		centerScore = best.Score
	}
	xRef, yRef := quad.SubpixelPeak2D(best.X, best.Y, s)
	return Match{X: xRef, Y: yRef, AngleDeg: 0, Score: centerScore}, nil
}
