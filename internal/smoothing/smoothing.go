// Package smoothing implements the Series Smoother from spec.md §4.A:
// isolated zero values (a proxy for missing data) are replaced by an
// average of their de-peaked neighbors. Grounded on
// FindPeaks.speculate_missing_values in original_source/.../
// detect_route_leaks.py.
package smoothing

import "github.com/ANSSI-FR/route-leaks/pkg/models"

// MaxZeroesToSmooth is the zero-count ceiling above which smoothing is
// skipped entirely — too many zeros means the series is genuinely
// sparse, not missing isolated points (MAX_NB_ZERO_TO_RM in the
// original).
const MaxZeroesToSmooth = 5

// Smooth returns a copy of s with isolated zero values replaced, or s
// unchanged (cloned) if the zero count is 0 or >= MaxZeroesToSmooth.
// peakMinValue is the detector's peak_min_value for this series (the
// prefix or conflict one, as appropriate) — it governs the "is this
// neighbor itself a peak" test in mockValue, per spec.md §4.A.
func Smooth(s models.Series, peakMinValue float64) models.Series {
	out := s.Clone()

	zeroCount := 0
	for _, v := range out {
		if v == 0 {
			zeroCount++
		}
	}
	if zeroCount == 0 || zeroCount >= MaxZeroesToSmooth {
		return out
	}

	avg := averageNonZero(out)
	for i, v := range out {
		if v != 0 {
			continue
		}
		switch {
		case i == 0:
			out[i] = mockValue(out[i+1], avg, peakMinValue)
		case i == len(out)-1:
			out[i] = mockValue(out[i-1], avg, peakMinValue)
		default:
			next := mockValue(out[i+1], avg, peakMinValue)
			prev := mockValue(out[i-1], avg, peakMinValue)
			out[i] = (prev + next) / 2
		}
	}
	return out
}

func averageNonZero(s models.Series) float64 {
	var sum float64
	var n int
	for _, v := range s {
		if v != 0 {
			sum += v
			n++
		}
	}
	return sum / float64(n)
}

// mockValue picks hint if it isn't itself a peak relative to avg,
// otherwise falls back to avg — a peak-sized neighbor shouldn't drag
// the replacement value up with it.
func mockValue(hint, avg, peakMinValue float64) float64 {
	if abs(hint-avg) < peakMinValue/2 {
		return hint
	}
	return avg
}

func abs(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}
