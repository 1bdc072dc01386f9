// Package peaks implements the Peak Finder from spec.md §4.B: given a
// daily series and a small set of scalar thresholds, decide which
// indices are "big peaks" — candidates for a route-leak day. Grounded
// on FindPeaks in original_source/.../detect_route_leaks.py.
package peaks

import "math"

// RejectionCause is the closed set of reasons an index fails to be
// accepted as a peak, or the "accepted" verdict, per spec.md §4.B's
// diagnostic contract. Grounded on FindPeaks.get_rejection_cause.
type RejectionCause string

const (
	CauseNotLocalMax   RejectionCause = "not-a-local-max"
	CausePeakMinValue  RejectionCause = "peak_min_value"
	CausePercentSim    RejectionCause = "percent_sim"
	CauseMaxNbPeaks    RejectionCause = "max_nb_peaks"
	CausePercentStd    RejectionCause = "percent_std"
	CauseAccepted      RejectionCause = "accepted"
)

// CheckInfo is the fuller per-index diagnostic dump supplementing the
// closed-set rejection cause, grounded on
// FindPeaks.get_check_info_by_param. Operands holds the numeric values
// that were compared so a caller can audit the decision.
type CheckInfo struct {
	Cause    RejectionCause
	Operands []float64
}

// Finder evaluates the five acceptance rules of spec.md §4.B against a
// fixed series and threshold set. It is stateless after construction
// and safe to share by reference across goroutines, per spec.md §5 and
// §9's "process-pool sharing of read-only state" note.
type Finder struct {
	data              []float64
	maxValue          float64
	peakMinValue      float64
	maxNbPeaks        float64
	percentSimilarity float64
	percentStd        float64
}

// New builds a Finder over data with the given thresholds.
// peakMinValue is whichever of pfx_peak_min_value / cfl_peak_min_value
// applies to this series, passed as a single scalar per spec.md §4.B.
func New(data []float64, peakMinValue, maxNbPeaks, percentSimilarity, percentStd float64) *Finder {
	f := &Finder{
		data:              data,
		peakMinValue:      peakMinValue,
		maxNbPeaks:        maxNbPeaks,
		percentSimilarity: percentSimilarity,
		percentStd:        percentStd,
	}
	if len(data) > 0 {
		f.maxValue = max(data)
	}
	return f
}

// BigMaxes returns the sorted set of accepted peak indices, applying
// rules 1-5 of spec.md §4.B in order.
func (f *Finder) BigMaxes() []int {
	if len(f.data) < 3 {
		return nil
	}
	if f.maxValue < f.peakMinValue {
		return nil
	}

	candidates := f.localMaxesPassingMagnitudeAndCloseness()
	accepted := f.applyCrowding(candidates)

	if len(accepted) == 0 || f.stdDevImpactPasses(accepted) {
		return accepted
	}
	return nil
}

// localMaxesPassingMagnitudeAndCloseness applies rules 1-3, left to
// right over i ∈ [1, len-2].
//
// Note on the reference implementation's index-1 handling: the
// original carries a running "prev_variation" initialized to
// data[1]-data[0] before the loop rather than recomputing it fresh at
// i=1. That running value equals data[i]-data[i-1] at every iteration,
// identical to computing it directly here — there is no behavioral
// difference to preserve, just a different way of writing the same
// arithmetic.
func (f *Finder) localMaxesPassingMagnitudeAndCloseness() []int {
	var out []int
	for i := 1; i < len(f.data)-1; i++ {
		prevVal, curVal, nextVal := f.data[i-1], f.data[i], f.data[i+1]
		if !(curVal > prevVal && curVal > nextVal) {
			continue
		}
		up := curVal - prevVal
		down := curVal - nextVal
		if !f.isBigEnough(up, down) {
			continue
		}
		if !f.isCloseToAbsMax(curVal) {
			continue
		}
		out = append(out, i)
	}
	return out
}

func (f *Finder) isBigEnough(up, down float64) bool {
	return up > f.peakMinValue && down > f.peakMinValue
}

func (f *Finder) isCloseToAbsMax(value float64) bool {
	return value >= f.percentSimilarity*f.maxValue
}

// applyCrowding keeps only indices with at most maxNbPeaks other kept
// indices whose value is >= its own (rule 4).
func (f *Finder) applyCrowding(candidates []int) []int {
	var out []int
	for _, i := range candidates {
		if f.hasFewEnoughPeaks(i, candidates) {
			out = append(out, i)
		}
	}
	return out
}

func (f *Finder) hasFewEnoughPeaks(index int, candidates []int) bool {
	count := 0
	for _, j := range candidates {
		if j != index && f.data[j] >= f.data[index] {
			count++
		}
	}
	return float64(count) <= f.maxNbPeaks
}

// stdDevImpactPasses implements rule 5: remove the accepted indices
// from the series and require the resulting std-dev to drop by more
// than (1 - percentStd) relative to the full series.
func (f *Finder) stdDevImpactPasses(accepted []int) bool {
	full := stdDev(f.data)
	smoothed := removeIndices(f.data, accepted)
	return stdDev(smoothed) < f.percentStd*full
}

// GetRejectionCause explains why idx in the series is, or isn't, a
// peak, grounded on FindPeaks.get_rejection_cause.
func (f *Finder) GetRejectionCause(idx int) CheckInfo {
	prevVal, curVal, nextVal := f.data[idx-1], f.data[idx], f.data[idx+1]

	if !(curVal > prevVal && curVal > nextVal) {
		return CheckInfo{Cause: CauseNotLocalMax, Operands: []float64{prevVal, curVal, nextVal}}
	}
	if !f.isBigEnough(curVal-prevVal, curVal-nextVal) {
		return CheckInfo{Cause: CausePeakMinValue, Operands: []float64{prevVal, curVal, nextVal}}
	}
	if !f.isCloseToAbsMax(curVal) {
		return CheckInfo{Cause: CausePercentSim, Operands: []float64{curVal, f.percentSimilarity * f.maxValue}}
	}

	candidates := f.localMaxesPassingMagnitudeAndCloseness()
	if !f.hasFewEnoughPeaks(idx, candidates) {
		similar := make([]float64, 0)
		for _, j := range candidates {
			if f.data[j] >= curVal {
				similar = append(similar, float64(j))
			}
		}
		return CheckInfo{Cause: CauseMaxNbPeaks, Operands: append([]float64{curVal}, similar...)}
	}

	accepted := f.applyCrowding(candidates)
	if !f.stdDevImpactPasses(accepted) {
		full := stdDev(f.data)
		smoothed := removeIndices(f.data, accepted)
		smoothedStd := stdDev(smoothed)
		return CheckInfo{Cause: CausePercentStd, Operands: []float64{full, smoothedStd, full / smoothedStd, float64(len(smoothed))}}
	}

	return CheckInfo{Cause: CauseAccepted}
}

func removeIndices(data []float64, indices []int) []float64 {
	skip := make(map[int]struct{}, len(indices))
	for _, i := range indices {
		skip[i] = struct{}{}
	}
	out := make([]float64, 0, len(data))
	for i, v := range data {
		if _, ok := skip[i]; ok {
			continue
		}
		out = append(out, v)
	}
	return out
}

// stdDev is the population standard deviation (divisor = N), per
// spec.md §4.B's numeric semantics.
func stdDev(data []float64) float64 {
	if len(data) == 0 {
		return 0
	}
	var sum float64
	for _, v := range data {
		sum += v
	}
	mean := sum / float64(len(data))

	var sqDiff float64
	for _, v := range data {
		d := v - mean
		sqDiff += d * d
	}
	return math.Sqrt(sqDiff / float64(len(data)))
}

func max(data []float64) float64 {
	m := data[0]
	for _, v := range data[1:] {
		if v > m {
			m = v
		}
	}
	return m
}
