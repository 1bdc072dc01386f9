// Package fitter implements the Parameter Fitter of spec.md §4.E:
// sweeping a grid per parameter (holding the others at a neutral
// baseline), fitting three-segment piecewise-linear regressions to the
// "leak count vs. parameter value" curve, and choosing the scalar value
// that the curve's breakpoints imply. Grounded on ParamValue and its
// five subclasses in original_source/.../detect_route_leaks.py.
package fitter

import (
	"fmt"
	"runtime"
	"sync"

	"github.com/google/uuid"

	"github.com/ANSSI-FR/route-leaks/internal/detect"
	"github.com/ANSSI-FR/route-leaks/internal/enginelog"
	"github.com/ANSSI-FR/route-leaks/pkg/models"
)

// grid holds the name, the swept values, and whether the first (0) or
// second (1) breakpoint is "selective" for a parameter, per spec.md
// §4.E point 2. percent_std's entry is unused — it always takes the
// second breakpoint regardless, handled as a special case below.
type grid struct {
	name           string
	values         []float64
	selectiveIndex int
}

func grids() []grid {
	pctGrid := make([]float64, 10)
	for i := range pctGrid {
		pctGrid[i] = float64(i+1) / 10
	}
	intGrid := func(n int) []float64 {
		out := make([]float64, n)
		for i := range out {
			out[i] = float64(i)
		}
		return out
	}
	nbPeaksGrid := make([]float64, 50)
	for i := range nbPeaksGrid {
		nbPeaksGrid[i] = float64(i + 1)
	}

	return []grid{
		{name: "pfx_peak_min_value", values: intGrid(50), selectiveIndex: 1},
		{name: "cfl_peak_min_value", values: intGrid(50), selectiveIndex: 1},
		{name: "max_nb_peaks", values: nbPeaksGrid, selectiveIndex: 0},
		{name: "percent_similarity", values: pctGrid, selectiveIndex: 1},
		{name: "percent_std", values: pctGrid, selectiveIndex: 0},
	}
}

// lowR2Warning is the threshold below which a fit's best mean R² is
// logged as suspect, per spec.md §4.E point 3.
const lowR2Warning = 0.75

// RunID identifies one fit sweep, for persistence and log correlation.
type RunID string

// NewRunID mints a fresh run identifier.
func NewRunID() RunID { return RunID(uuid.NewString()) }

// Sweep fits all five parameters against pfx/cfl and returns one
// models.FitResult per parameter. workerCount <= 0 selects
// max(1, NumCPU()/2), mirroring Pool(cpu_count()/2 or 1) in the
// reference implementation.
func Sweep(pfx, cfl models.Store, workerCount int) ([]models.FitResult, error) {
	if workerCount <= 0 {
		workerCount = runtime.NumCPU() / 2
		if workerCount < 1 {
			workerCount = 1
		}
	}

	results := make([]models.FitResult, 0, 5)
	for _, g := range grids() {
		counts, err := sweepGrid(pfx, cfl, g, workerCount)
		if err != nil {
			return nil, fmt.Errorf("fitter: sweeping %s: %w", g.name, err)
		}
		bestScore, i1, i2 := best3PieceFit(counts)
		if bestScore < lowR2Warning {
			enginelog.Warn("fitter: low R2 score %.3f for parameter %s", bestScore, g.name)
		}

		value := selectFittedValue(g, i1, i2)
		results = append(results, models.FitResult{Param: g.name, Value: value, R2Score: bestScore})
	}
	return results, nil
}

// selectFittedValue maps a grid's winning breakpoints to the parameter
// value the reference implementation would choose: the first (i1) or
// second (i2) breakpoint's mapped value per g.selectiveIndex, except
// percent_std, which FittedFindRouteLeaks.get_best_param_value always
// maps from i2 regardless of its own declared selectiveIndex (0).
func selectFittedValue(g grid, i1, i2 int) float64 {
	switch {
	case g.name == "percent_std":
		return g.values[i2]
	case g.selectiveIndex == 0:
		return g.values[i1]
	default:
		return g.values[i2]
	}
}

// sweepGrid runs Leak Detector once per grid point, holding every other
// parameter at its neutral value, and returns the detected-AS count at
// each point in grid order. Grid points are independent and are
// dispatched across a worker pool, per spec.md §4.E's parallelisation
// note and §5's concurrency model.
func sweepGrid(pfx, cfl models.Store, g grid, workerCount int) ([]int, error) {
	counts := make([]int, len(g.values))
	errs := make([]error, len(g.values))

	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < workerCount; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				params := models.NeutralParams()
				params.Apply(g.name, g.values[i])
				leaks, err := detect.Detect(pfx, cfl, params, "")
				if err != nil {
					errs[i] = err
					continue
				}
				counts[i] = len(leaks)
			}
		}()
	}
	for i := range g.values {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	return counts, nil
}

// best3PieceFit implements spec.md §4.E point 1: for every
// (i1, i2) with 2 <= i1 < i2 <= len-2 (2 units apart minimum, matching
// the reference's i0+2 lower bound on i1, i0=1), fit three line segments
// and score by the mean of per-segment R². A first segment of only 2
// points (i1=1) always scores a spurious perfect R² since a line
// through 2 points is exact, so i1 must start at 2. Returns the best
// mean score and the winning (i1, i2) pair as indices into counts.
func best3PieceFit(counts []int) (bestScore float64, bestI1, bestI2 int) {
	n := len(counts)
	ys := make([]float64, n)
	for i, c := range counts {
		ys[i] = float64(c)
	}

	bestScore = -1
	bestI1, bestI2 = 2, 4
	for i1 := 2; i1 <= n-4; i1++ {
		for i2 := i1 + 2; i2 <= n-2; i2++ {
			score1 := segmentR2(ys[0 : i1+1])
			score2 := segmentR2(ys[i1 : i2+1])
			score3 := segmentR2(ys[i2:n])
			mean := (score1 + score2 + score3) / 3
			if mean > bestScore {
				bestScore, bestI1, bestI2 = mean, i1, i2
			}
		}
	}
	return bestScore, bestI1, bestI2
}

// segmentR2 fits a simple linear regression y = a + b*x over the points
// x = 0..len(ys)-1 (the grid index within the segment) and returns its
// coefficient of determination.
func segmentR2(ys []float64) float64 {
	n := float64(len(ys))
	if n < 2 {
		return 1
	}

	var sumX, sumY float64
	for i, y := range ys {
		sumX += float64(i)
		sumY += y
	}
	meanX, meanY := sumX/n, sumY/n

	var sxy, sxx float64
	for i, y := range ys {
		dx := float64(i) - meanX
		sxy += dx * (y - meanY)
		sxx += dx * dx
	}

	var slope, intercept float64
	if sxx != 0 {
		slope = sxy / sxx
		intercept = meanY - slope*meanX
	} else {
		intercept = meanY
	}

	var ssRes, ssTot float64
	for i, y := range ys {
		pred := intercept + slope*float64(i)
		ssRes += (y - pred) * (y - pred)
		ssTot += (y - meanY) * (y - meanY)
	}
	if ssTot == 0 {
		return 1
	}
	return 1 - ssRes/ssTot
}
