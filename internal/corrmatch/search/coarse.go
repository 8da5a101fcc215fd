package search

import (
	"runtime"
	"sync"

	"github.com/VitalyVorobyev/corrmatch/internal/corrmatch/bank"
	"github.com/VitalyVorobyev/corrmatch/internal/corrmatch/candidate"
	"github.com/VitalyVorobyev/corrmatch/internal/corrmatch/correrr"
	"github.com/VitalyVorobyev/corrmatch/internal/corrmatch/imageview"
	"github.com/VitalyVorobyev/corrmatch/internal/corrmatch/kernel"
)

// scannerForRotated builds the masked Scanner for one level/angle/metric
// combination, dispatching to the compiled rotation bank.
func scannerForRotated(compiled *bank.CompiledTemplate, level, angleIdx int, metric Metric) (kernel.Scanner, error) {
	switch metric {
	case Ssd:
		plan, err := compiled.RotatedSsdPlan(level, angleIdx)
		if err != nil {
			return nil, err
		}
		return kernel.SsdMasked{Plan: plan}, nil
	default:
		plan, err := compiled.RotatedZnccPlan(level, angleIdx)
		if err != nil {
			return nil, err
		}
		return kernel.ZnccMasked{Plan: plan}, nil
	}
}

// scannerForUnmasked builds the unmasked Scanner for one level/metric
// combination, dispatching to the compiled no-rotation bank.
func scannerForUnmasked(compiled *bank.CompiledTemplate, level int, metric Metric) (kernel.Scanner, error) {
	switch metric {
	case Ssd:
		plan, err := compiled.UnmaskedSsdPlan(level)
		if err != nil {
			return nil, err
		}
		return kernel.SsdUnmasked{Plan: plan}, nil
	default:
		plan, err := compiled.UnmaskedZnccPlan(level)
		if err != nil {
			return nil, err
		}
		return kernel.ZnccUnmasked{Plan: plan}, nil
	}
}

func scanParamsForCoarse(cfg MatchConfig) kernel.ScanParams {
	return kernel.ScanParams{TopK: cfg.PerAngleTopK, MinVarI: cfg.MinVarI, MinScore: cfg.MinScore}
}

// mergeAndBeam runs the merge-then-beam-truncate reduction shared by
// every coarse/refine variant: a single candidate.NMS2D pass over the
// already-merged, cross-angle peak list at a constant cfg.NmsRadius,
// then keep only the BeamWidth best survivors.
func mergeAndBeam(peaks []candidate.Peak, cfg MatchConfig) []candidate.Peak {
	kept := candidate.NMS2D(peaks, cfg.NmsRadius)
	if len(kept) > cfg.BeamWidth {
		kept = kept[:cfg.BeamWidth]
	}
	return kept
}

// coarseSearchLevel scans every angle index at level with the masked
// kernel, merges all angles' peaks, and keeps the BeamWidth best after
// NMS.
func coarseSearchLevel(image imageview.View, compiled *bank.CompiledTemplate, level int, cfg MatchConfig) ([]Candidate, error) {
	grid, err := compiled.AngleGrid(level)
	if err != nil {
		return nil, err
	}
	params := scanParamsForCoarse(cfg)
	var all []candidate.Peak
	for angleIdx := 0; angleIdx < grid.Len(); angleIdx++ {
		scanner, err := scannerForRotated(compiled, level, angleIdx, cfg.Metric)
		if err != nil {
			return nil, err
		}
		peaks, err := scanner.ScanFull(image, angleIdx, params)
		if err != nil {
			return nil, err
		}
		all = append(all, peaks...)
	}
	kept := mergeAndBeam(all, cfg)
	out := make([]Candidate, len(kept))
	for i, p := range kept {
		out[i] = candidateFromPeak(level, grid.AngleAt(p.AngleIdx), p)
	}
	return out, nil
}

// coarseSearchLevelParallel is coarseSearchLevel with angle indices
// distributed across a bounded worker pool; results are merged in
// ascending angle-index order, so the output is identical to the
// sequential path regardless of goroutine completion order.
func coarseSearchLevelParallel(image imageview.View, compiled *bank.CompiledTemplate, level int, cfg MatchConfig) ([]Candidate, error) {
	grid, err := compiled.AngleGrid(level)
	if err != nil {
		return nil, err
	}
	params := scanParamsForCoarse(cfg)
	numAngles := grid.Len()
	perAngle := make([][]candidate.Peak, numAngles)
	errs := make([]error, numAngles)

	workers := runtime.GOMAXPROCS(0)
	if workers > numAngles {
		workers = numAngles
	}
	if workers < 1 {
		workers = 1
	}
	sem := make(chan struct{}, workers)
	var wg sync.WaitGroup
	for angleIdx := 0; angleIdx < numAngles; angleIdx++ {
		angleIdx := angleIdx
		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()
			scanner, err := scannerForRotated(compiled, level, angleIdx, cfg.Metric)
			if err != nil {
				errs[angleIdx] = err
				return
			}
			perAngle[angleIdx], errs[angleIdx] = scanner.ScanFull(image, angleIdx, params)
		}()
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, correrr.Wrap(correrr.Internal, "parallel coarse angle scan failed", err)
		}
	}

	var all []candidate.Peak
	for _, peaks := range perAngle {
		all = append(all, peaks...)
	}
	kept := mergeAndBeam(all, cfg)
	out := make([]Candidate, len(kept))
	for i, p := range kept {
		out[i] = candidateFromPeak(level, grid.AngleAt(p.AngleIdx), p)
	}
	return out, nil
}

// coarseSearchLevelUnmasked is the no-rotation fast path: a single
// unmasked scan over the whole level.
func coarseSearchLevelUnmasked(image imageview.View, compiled *bank.CompiledTemplate, level int, cfg MatchConfig) ([]Candidate, error) {
	scanner, err := scannerForUnmasked(compiled, level, cfg.Metric)
	if err != nil {
		return nil, err
	}
	params := scanParamsForCoarse(cfg)
	peaks, err := scanner.ScanFull(image, 0, params)
	if err != nil {
		return nil, err
	}
	kept := mergeAndBeam(peaks, cfg)
	out := make([]Candidate, len(kept))
	for i, p := range kept {
		out[i] = candidateFromPeak(level, 0, p)
	}
	return out, nil
}

// coarseSearchLevelUnmaskedParallel is coarseSearchLevelUnmasked using the
// existing row-parallel unmasked scan kernels.
func coarseSearchLevelUnmaskedParallel(image imageview.View, compiled *bank.CompiledTemplate, level int, cfg MatchConfig) ([]Candidate, error) {
	params := scanParamsForCoarse(cfg)
	var peaks []candidate.Peak
	var err error
	switch cfg.Metric {
	case Ssd:
		plan, perr := compiled.UnmaskedSsdPlan(level)
		if perr != nil {
			return nil, perr
		}
		peaks, err = kernel.SsdUnmaskedScanFullParallel(image, plan, 0, params)
	default:
		plan, perr := compiled.UnmaskedZnccPlan(level)
		if perr != nil {
			return nil, perr
		}
		peaks, err = kernel.ZnccUnmaskedScanFullParallel(image, plan, 0, params)
	}
	if err != nil {
		return nil, err
	}
	kept := mergeAndBeam(peaks, cfg)
	out := make([]Candidate, len(kept))
	for i, p := range kept {
		out[i] = candidateFromPeak(level, 0, p)
	}
	return out, nil
}
