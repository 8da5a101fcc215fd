package kernel

import (
	"runtime"
	"sync"

	"github.com/VitalyVorobyev/corrmatch/internal/corrmatch/candidate"
	"github.com/VitalyVorobyev/corrmatch/internal/corrmatch/correrr"
	"github.com/VitalyVorobyev/corrmatch/internal/corrmatch/imageview"
	"github.com/VitalyVorobyev/corrmatch/internal/corrmatch/tplplan"
)

// ZnccUnmaskedScanFullParallel row-parallelizes the unmasked ZNCC full
// scan across a bounded worker pool, then merges each row's local peaks
// in ascending row order into a single top-K selection. Because the
// merge order is fixed regardless of goroutine completion order and each
// row's own accumulation is unchanged, the result is bit-identical to
// ZnccUnmasked.ScanFull.
func ZnccUnmaskedScanFullParallel(image imageview.View, plan *tplplan.Plan, angleIdx int, params ScanParams) ([]candidate.Peak, error) {
	k := ZnccUnmasked{Plan: plan}
	if err := boundsOK(image.Width, image.Height, plan.Width, plan.Height); err != nil {
		return nil, err
	}
	if params.TopK == 0 {
		return nil, nil
	}
	maxY := image.Height - plan.Height
	maxX := image.Width - plan.Width
	rowPeaks, err := scanRowsParallel(maxY, func(y int) ([]candidate.Peak, error) {
		peaks, err := k.scanRange(image, angleIdx, 0, y, maxX, y, params)
		return peaks, err
	})
	if err != nil {
		return nil, err
	}
	return mergeRows(rowPeaks, params.TopK), nil
}

// SsdUnmaskedScanFullParallel is the SSD counterpart of
// ZnccUnmaskedScanFullParallel.
func SsdUnmaskedScanFullParallel(image imageview.View, plan *tplplan.SSDPlan, angleIdx int, params ScanParams) ([]candidate.Peak, error) {
	k := SsdUnmasked{Plan: plan}
	if err := boundsOK(image.Width, image.Height, plan.Width, plan.Height); err != nil {
		return nil, err
	}
	if params.TopK == 0 {
		return nil, nil
	}
	maxY := image.Height - plan.Height
	maxX := image.Width - plan.Width
	rowPeaks, err := scanRowsParallel(maxY, func(y int) ([]candidate.Peak, error) {
		return k.scanRange(image, angleIdx, 0, y, maxX, y, params)
	})
	if err != nil {
		return nil, err
	}
	return mergeRows(rowPeaks, params.TopK), nil
}

// scanRowsParallel runs scanRow(y) for y in [0, maxY] across a pool of
// goroutines bounded by GOMAXPROCS, and returns the per-row results
// ordered by row index regardless of completion order.
func scanRowsParallel(maxY int, scanRow func(y int) ([]candidate.Peak, error)) ([][]candidate.Peak, error) {
	numRows := maxY + 1
	results := make([][]candidate.Peak, numRows)
	errs := make([]error, numRows)

	workers := runtime.GOMAXPROCS(0)
	if workers > numRows {
		workers = numRows
	}
	if workers < 1 {
		workers = 1
	}

	sem := make(chan struct{}, workers)
	var wg sync.WaitGroup
	for y := 0; y < numRows; y++ {
		y := y
		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()
			results[y], errs[y] = scanRow(y)
		}()
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, correrr.Wrap(correrr.Internal, "parallel row scan failed", err)
		}
	}
	return results, nil
}

// mergeRows merges per-row peak lists, in row order, into a single top-K
// selection — the fixed merge order §4.4/§5 require for determinism.
func mergeRows(rows [][]candidate.Peak, topK int) []candidate.Peak {
	merged := candidate.NewTopK(topK)
	for _, row := range rows {
		for _, p := range row {
			merged.Push(p)
		}
	}
	return merged.SortedDesc()
}
