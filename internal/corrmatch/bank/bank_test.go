package bank

import (
	"sync"
	"testing"

	"github.com/VitalyVorobyev/corrmatch/internal/corrmatch/imageview"
)

func syntheticTemplate(t *testing.T, w, h int) imageview.View {
	t.Helper()
	data := make([]byte, w*h)
	for i := range data {
		data[i] = byte((i*29 + 11) % 256)
	}
	v, err := imageview.New(data, w, h)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return v
}

func TestCompileRotatedBuildsPyramidAndAngleGrids(t *testing.T) {
	tpl := syntheticTemplate(t, 16, 16)
	cfg := DefaultCompileConfig()
	compiled, err := CompileRotated(tpl, cfg)
	if err != nil {
		t.Fatalf("CompileRotated: %v", err)
	}
	if compiled.NumLevels() < 2 {
		t.Fatalf("expected multiple pyramid levels, got %d", compiled.NumLevels())
	}
	for level := 0; level < compiled.NumLevels(); level++ {
		grid, err := compiled.AngleGrid(level)
		if err != nil {
			t.Fatalf("AngleGrid(%d): %v", level, err)
		}
		if grid.Len() == 0 {
			t.Errorf("level %d: expected non-empty angle grid", level)
		}
	}
}

func TestCompilePrecomputesCoarsestBank(t *testing.T) {
	tpl := syntheticTemplate(t, 16, 16)
	cfg := DefaultCompileConfig()
	// Keep the coarsest level at 4x4 so its rotations retain nonzero
	// variance; a 2x2 coarsest level (reached with the default MaxLevels
	// for this size) has no valid pixels at most rotation angles.
	cfg.MaxLevels = 3
	cfg.PrecomputeCoarsest = true
	compiled, err := CompileRotated(tpl, cfg)
	if err != nil {
		t.Fatalf("CompileRotated: %v", err)
	}
	coarsest := compiled.NumLevels() - 1
	grid, err := compiled.AngleGrid(coarsest)
	if err != nil {
		t.Fatalf("AngleGrid: %v", err)
	}
	for idx := 0; idx < grid.Len(); idx++ {
		if _, err := compiled.RotatedZnccPlan(coarsest, idx); err != nil {
			t.Errorf("angle %d: expected precomputed slot, got error %v", idx, err)
		}
	}
}

func TestRotatedPlanIsCachedAcrossCalls(t *testing.T) {
	tpl := syntheticTemplate(t, 16, 16)
	cfg := DefaultCompileConfig()
	cfg.PrecomputeCoarsest = false
	compiled, err := CompileRotated(tpl, cfg)
	if err != nil {
		t.Fatalf("CompileRotated: %v", err)
	}
	first, err := compiled.RotatedZnccPlan(0, 0)
	if err != nil {
		t.Fatalf("RotatedZnccPlan: %v", err)
	}
	second, err := compiled.RotatedZnccPlan(0, 0)
	if err != nil {
		t.Fatalf("RotatedZnccPlan: %v", err)
	}
	if first != second {
		t.Errorf("expected the same cached plan pointer across calls")
	}
}

func TestRotatedPlanConcurrentAccessComputesOnce(t *testing.T) {
	tpl := syntheticTemplate(t, 16, 16)
	cfg := DefaultCompileConfig()
	cfg.PrecomputeCoarsest = false
	compiled, err := CompileRotated(tpl, cfg)
	if err != nil {
		t.Fatalf("CompileRotated: %v", err)
	}

	const workers = 16
	results := make([]interface{}, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			plan, err := compiled.RotatedZnccPlan(0, 3)
			if err != nil {
				t.Errorf("worker %d: RotatedZnccPlan: %v", i, err)
				return
			}
			results[i] = plan
		}()
	}
	wg.Wait()

	first := results[0]
	for i, r := range results {
		if r != first {
			t.Errorf("worker %d observed a different plan pointer than worker 0", i)
		}
	}
}

func TestCompileUnrotatedHasNoAngleGrid(t *testing.T) {
	tpl := syntheticTemplate(t, 16, 16)
	compiled, err := CompileNoRotation(tpl, DefaultCompileConfigNoRot())
	if err != nil {
		t.Fatalf("CompileNoRotation: %v", err)
	}
	if compiled.HasRotation() {
		t.Errorf("expected HasRotation() == false")
	}
	if _, err := compiled.AngleGrid(0); err == nil {
		t.Errorf("expected an error requesting an angle grid from a rotation-disabled template")
	}
	if _, err := compiled.UnmaskedZnccPlan(0); err != nil {
		t.Errorf("UnmaskedZnccPlan(0): %v", err)
	}
}

func TestCompileRotatedRejectsInvalidConfig(t *testing.T) {
	tpl := syntheticTemplate(t, 16, 16)
	cfg := DefaultCompileConfig()
	cfg.MinStepDeg = cfg.CoarseStepDeg + 1
	if _, err := CompileRotated(tpl, cfg); err == nil {
		t.Errorf("expected an error when min_step_deg exceeds coarse_step_deg")
	}
}

func TestAngleStepHalvesTowardFinerLevels(t *testing.T) {
	tpl := syntheticTemplate(t, 32, 32)
	cfg := DefaultCompileConfig()
	cfg.CoarseStepDeg = 8
	cfg.MinStepDeg = 0.01
	cfg.PrecomputeCoarsest = false
	compiled, err := CompileRotated(tpl, cfg)
	if err != nil {
		t.Fatalf("CompileRotated: %v", err)
	}
	coarsest := compiled.NumLevels() - 1
	coarseGrid, err := compiled.AngleGrid(coarsest)
	if err != nil {
		t.Fatalf("AngleGrid: %v", err)
	}
	fineGrid, err := compiled.AngleGrid(0)
	if err != nil {
		t.Fatalf("AngleGrid: %v", err)
	}
	if fineGrid.StepDeg >= coarseGrid.StepDeg {
		t.Errorf("expected finer level step (%g) < coarsest level step (%g)", fineGrid.StepDeg, coarseGrid.StepDeg)
	}
}
