// Package features implements the Feature Extractor of spec.md §4.F:
// a deterministic 35-entry numeric encoding of an AS's (prefix,
// conflict) series pair, consumed by the SVM classifier. Grounded on
// AttributeMakers, AsnData, _AsnPrefOrConfData and _AsnCorrData in
// original_source/.../classification/classification.py.
package features

import (
	"math"
	"sort"

	"github.com/ANSSI-FR/route-leaks/pkg/models"
)

// NumFeatures is the fixed feature-vector length: 13 bilateral features
// times two sides, plus 9 correlation features (spec.md §4.F, §9 open
// question preserving "13×2 + 9 = 35" verbatim).
const NumFeatures = 35

// side holds the per-series intermediaries computed once per AS per
// side (prefixes or conflicts).
type side struct {
	raw        models.Series
	variation  []float64
	normVar    []float64
	maxIndexes []int
	maxIndex   int
}

// Extract computes the feature vector for one AS given its smoothed
// prefix and conflict series. ok is false when the AS should be
// skipped per spec.md §4.F's skip conditions (caller omits it from the
// training/prediction set entirely).
func Extract(pfxRaw, cflRaw models.Series) (vec models.FeatureVector, ok bool) {
	pfxSide, ok1 := buildSide(pfxRaw)
	cflSide, ok2 := buildSide(cflRaw)
	if !ok1 || !ok2 {
		return nil, false
	}
	if stdDev(pfxSide.normVar) == 0 || stdDev(cflSide.normVar) == 0 {
		return nil, false
	}

	resolveMaxIndex(&pfxSide, cflSide.raw)
	resolveMaxIndex(&cflSide, pfxSide.raw)

	normCorr := make([]float64, len(pfxSide.normVar))
	valueCorr := make([]float64, len(pfxSide.variation))
	for i := range normCorr {
		normCorr[i] = pfxSide.normVar[i] * cflSide.normVar[i]
		valueCorr[i] = pfxSide.variation[i] * cflSide.variation[i]
	}
	corrMaxIndexes := indexesOfMax(normCorr)
	corrMaxIndex := tieBreakByNextValue(corrMaxIndexes, normCorr)

	vec = make(models.FeatureVector, 0, NumFeatures)
	vec = append(vec, bilateralFeatures(pfxSide, cflSide)...)
	vec = append(vec, bilateralFeatures(cflSide, pfxSide)...)
	vec = append(vec, correlationFeatures(pfxSide, normCorr, valueCorr, corrMaxIndexes, corrMaxIndex)...)

	return vec, true
}

func buildSide(raw models.Series) (side, bool) {
	if len(raw) < 3 {
		return side{}, false
	}
	variation := make([]float64, len(raw)-1)
	for i := range variation {
		variation[i] = raw[i+1] - raw[i]
	}
	normVar := normalize(variation)

	inner := raw[1 : len(raw)-1]
	maxVal := inner[0]
	for _, v := range inner {
		if v > maxVal {
			maxVal = v
		}
	}
	var maxIndexes []int
	for i, v := range inner {
		if v == maxVal {
			maxIndexes = append(maxIndexes, i+1) // offset back into raw's index space
		}
	}

	return side{raw: raw, variation: variation, normVar: normVar, maxIndexes: maxIndexes}, true
}

// resolveMaxIndex picks, among s.maxIndexes, the index whose value in
// the opposite series' raw is largest, ties broken by smallest index,
// per spec.md §4.F.
func resolveMaxIndex(s *side, otherRaw models.Series) {
	best := s.maxIndexes[0]
	bestVal := otherRaw[best]
	for _, idx := range s.maxIndexes[1:] {
		if otherRaw[idx] > bestVal {
			best, bestVal = idx, otherRaw[idx]
		}
	}
	s.maxIndex = best
}

func normalize(variation []float64) []float64 {
	maxAbs := 0.0
	for _, v := range variation {
		if a := math.Abs(v); a > maxAbs {
			maxAbs = a
		}
	}
	out := make([]float64, len(variation))
	if maxAbs == 0 {
		return out
	}
	for i, v := range variation {
		out[i] = v / maxAbs
	}
	return out
}

func indexesOfMax(xs []float64) []int {
	if len(xs) == 0 {
		return nil
	}
	max := xs[0]
	for _, v := range xs {
		if v > max {
			max = v
		}
	}
	var out []int
	for i, v := range xs {
		if v == max {
			out = append(out, i)
		}
	}
	return out
}

func tieBreakByNextValue(indexes []int, values []float64) int {
	best := indexes[0]
	bestVal := math.Inf(-1)
	hasBest := false
	for _, i := range indexes {
		if i+1 >= len(values) {
			continue
		}
		v := values[i+1]
		if !hasBest || v > bestVal {
			best, bestVal, hasBest = i, v, true
		}
	}
	if !hasBest {
		return indexes[0]
	}
	return best
}

// bilateralFeatures computes the 13 features of spec.md §4.F for one
// side, given the other side's intermediaries for the cross-side
// lookups (features 3, 4, 7).
func bilateralFeatures(s, other side) []float64 {
	mi := s.maxIndex
	nv, onv := s.normVar, other.normVar

	out := make([]float64, 0, 13)
	out = append(out, nv[mi-1])
	out = append(out, nv[mi])
	out = append(out, onv[mi-1])
	out = append(out, onv[mi])
	out = append(out, ratioAboveThreshold(s.raw, 0.9*s.raw[s.maxIndexes[0]]))
	out = append(out, stdRatio(nv, mi))
	out = append(out, stdRatio(onv, mi))

	decile := percentile(nv, 90)
	quartile := percentile(nv, 75)
	out = append(out, decile)
	out = append(out, spread(nv, decile))
	out = append(out, quartile)
	out = append(out, spread(nv, quartile))
	out = append(out, ratioAtOrAboveMean(nv))
	out = append(out, logIfPositive(s.variation[mi-1]))

	return out
}

// correlationFeatures computes the 9 correlation features of spec.md
// §4.F.
func correlationFeatures(pfx side, normCorr, valueCorr []float64, corrMaxIndexes []int, corrMaxIndex int) []float64 {
	out := make([]float64, 0, 9)

	maxNext := math.Inf(-1)
	hasNext := false
	for _, i := range corrMaxIndexes {
		if i+1 < len(normCorr) {
			if v := normCorr[i+1]; !hasNext || v > maxNext {
				maxNext, hasNext = v, true
			}
		}
	}
	if !hasNext {
		maxNext = 0
	}
	out = append(out, maxNext)

	out = append(out, float64(len(corrMaxIndexes))/float64(len(pfx.normVar)))

	maxValueCorr := math.Inf(-1)
	for _, v := range valueCorr {
		if v > maxValueCorr {
			maxValueCorr = v
		}
	}
	out = append(out, logIfPositive(maxValueCorr))

	out = append(out, stdRatio(pfx.normVar, corrMaxIndex))

	decile := percentile(normCorr, 90)
	quartile := percentile(normCorr, 75)
	out = append(out, decile)
	out = append(out, spread(normCorr, decile))
	out = append(out, quartile)
	out = append(out, spread(normCorr, quartile))
	out = append(out, ratioAtOrAboveMean(normCorr))

	return out
}

func ratioAboveThreshold(raw models.Series, threshold float64) float64 {
	count := 0
	for _, v := range raw {
		if v >= threshold {
			count++
		}
	}
	return float64(count) / float64(len(raw))
}

// stdRatio is std_ratio(x, k) from spec.md §4.F: the ratio of the
// std-dev of x with element k removed to the std-dev of x, or 1 if
// std(x) == 0.
func stdRatio(x []float64, k int) float64 {
	full := stdDev(x)
	if full == 0 {
		return 1
	}
	without := make([]float64, 0, len(x)-1)
	for i, v := range x {
		if i != k {
			without = append(without, v)
		}
	}
	return stdDev(without) / full
}

func stdDev(x []float64) float64 {
	if len(x) == 0 {
		return 0
	}
	var sum float64
	for _, v := range x {
		sum += v
	}
	mean := sum / float64(len(x))
	var sq float64
	for _, v := range x {
		d := v - mean
		sq += d * d
	}
	return math.Sqrt(sq / float64(len(x)))
}

// percentile computes the p-th percentile of x using linear
// interpolation between closest ranks, matching numpy.percentile's
// default ("linear") method, which np.percentile(nv, 90) relies on in
// the reference implementation.
func percentile(x []float64, p float64) float64 {
	if len(x) == 0 {
		return 0
	}
	sorted := append([]float64(nil), x...)
	sort.Float64s(sorted)

	rank := p / 100 * float64(len(sorted)-1)
	lo := int(math.Floor(rank))
	hi := int(math.Ceil(rank))
	if lo == hi {
		return sorted[lo]
	}
	frac := rank - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}

// spread is the fraction of the series' length spanned by the
// contiguous-index range of entries at or above (threshold - 1e-10),
// per spec.md §4.F's spread(nv, last_decile) definition.
func spread(x []float64, threshold float64) float64 {
	const eps = 1e-10
	minI, maxI := -1, -1
	for i, v := range x {
		if v >= threshold-eps {
			if minI == -1 {
				minI = i
			}
			maxI = i
		}
	}
	if minI == -1 {
		return 0
	}
	return float64(maxI-minI+1) / float64(len(x))
}

func ratioAtOrAboveMean(x []float64) float64 {
	if len(x) == 0 {
		return 0
	}
	var sum float64
	for _, v := range x {
		sum += v
	}
	mean := sum / float64(len(x))
	count := 0
	for _, v := range x {
		if v >= mean {
			count++
		}
	}
	return float64(count) / float64(len(x))
}

func logIfPositive(v float64) float64 {
	if v > 0 {
		return math.Log(v)
	}
	return 0
}
