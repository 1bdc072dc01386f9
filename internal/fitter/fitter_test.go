package fitter

import "testing"

func TestBest3PieceFitSelectsExactBreakpoints(t *testing.T) {
	// Three exact line segments meeting at indices 3 and 6: slope 2 on
	// [0,3], flat on [3,6], slope 10 on [6,9]. Every other (i1, i2)
	// candidate mixes points from two segments and can't fit a line
	// through all of them, so this is the unique mean-R²=1 winner.
	counts := []int{0, 2, 4, 6, 6, 6, 6, 16, 26, 36}

	score, i1, i2 := best3PieceFit(counts)

	if i1 != 3 || i2 != 6 {
		t.Errorf("best3PieceFit breakpoints = (%d, %d), want (3, 6)", i1, i2)
	}
	if score < 0.999 {
		t.Errorf("best3PieceFit score = %v, want ~1.0", score)
	}
}

func TestBest3PieceFitNeverDegeneratesToTwoPointSegment(t *testing.T) {
	// A wildly different first two points would, under a loop starting
	// at i1=1, always score a spurious perfect R² for segment one (any
	// 2 points lie exactly on a line) and could win outright. With the
	// loop correctly starting at i1=2, that degenerate candidate is
	// never considered.
	counts := []int{1000, -1000, 5, 5, 5, 6, 7, 50, 51, 52}

	_, i1, i2 := best3PieceFit(counts)

	if i1 < 2 {
		t.Errorf("best3PieceFit returned i1=%d, want i1 >= 2 (no 2-point first segment)", i1)
	}
	if i2 > len(counts)-2 {
		t.Errorf("best3PieceFit returned i2=%d, want i2 <= %d", i2, len(counts)-2)
	}
	if i1+2 > i2 {
		t.Errorf("best3PieceFit returned i1=%d, i2=%d, want i2 - i1 >= 2", i1, i2)
	}
}

func TestBest3PieceFitMinimumLength(t *testing.T) {
	// n=6 is the smallest length admitting any candidate at all
	// (i1=2, i2=4 is the only valid pair).
	counts := []int{0, 0, 0, 0, 0, 0}

	_, i1, i2 := best3PieceFit(counts)

	if i1 != 2 || i2 != 4 {
		t.Errorf("best3PieceFit(n=6) = (%d, %d), want (2, 4)", i1, i2)
	}
}

func TestSelectFittedValueUsesSelectiveIndex(t *testing.T) {
	g := grid{name: "max_nb_peaks", values: []float64{10, 20, 30, 40, 50}, selectiveIndex: 0}
	if v := selectFittedValue(g, 1, 3); v != 20 {
		t.Errorf("selectiveIndex=0 should pick values[i1]=20, got %v", v)
	}

	g.selectiveIndex = 1
	if v := selectFittedValue(g, 1, 3); v != 40 {
		t.Errorf("selectiveIndex=1 should pick values[i2]=40, got %v", v)
	}
}

func TestSelectFittedValuePercentStdOverridesSelectiveIndex(t *testing.T) {
	// percent_std declares selectiveIndex=0 (see grids()) but must
	// always resolve from i2, per get_best_param_value's explicit
	// bypass in the reference implementation.
	g := grid{name: "percent_std", values: []float64{0.1, 0.2, 0.3, 0.4, 0.5}, selectiveIndex: 0}

	if v := selectFittedValue(g, 1, 4); v != 0.5 {
		t.Errorf("percent_std should pick values[i2]=0.5 regardless of selectiveIndex=0, got %v", v)
	}
}

func TestGridsPercentStdDeclaresSelectiveIndexZero(t *testing.T) {
	// Document the precondition TestSelectFittedValuePercentStdOverridesSelectiveIndex
	// relies on: percent_std's own grid entry really does declare
	// selectiveIndex=0, so the override in selectFittedValue is load-bearing,
	// not a no-op.
	for _, g := range grids() {
		if g.name == "percent_std" {
			if g.selectiveIndex != 0 {
				t.Fatalf("percent_std selectiveIndex = %d, want 0 (override must be load-bearing)", g.selectiveIndex)
			}
			return
		}
	}
	t.Fatal("percent_std grid not found")
}
