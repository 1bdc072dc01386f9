// Package detect implements the Leak Detector (spec.md §4.C) and
// Duplicate Coalescer (spec.md §4.D): combining per-series Peak Finder
// results into per-AS leak records across two parallel time series.
// Grounded on FindRouteLeaks in
// original_source/.../detect_route_leaks.py.
package detect

import (
	"encoding/binary"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/ANSSI-FR/route-leaks/internal/peaks"
	"github.com/ANSSI-FR/route-leaks/pkg/models"
)

// MinNbDays is the shortest common series length the detector will
// run on (MIN_NB_DAYS in the reference implementation).
const MinNbDays = 31

const dateLayout = "2006-01-02"

// Detect runs the Leak Detector over the intersection of pfx and cfl's
// AS keys, per spec.md §4.C. startDate, if non-empty, is used to
// render leak indices as calendar dates.
func Detect(pfx, cfl models.Store, params models.Params, startDate string) (map[uint32]models.LeakRecord, error) {
	pfxLen, pfxOK := pfx.CommonLength()
	cflLen, cflOK := cfl.CommonLength()
	if pfxOK && cflOK && pfxLen != cflLen {
		return nil, fmt.Errorf("detect: prefix series length %d does not match conflict series length %d", pfxLen, cflLen)
	}

	commonLen := pfxLen
	if !pfxOK {
		commonLen = cflLen
	}
	if commonLen < MinNbDays {
		return map[uint32]models.LeakRecord{}, nil
	}

	var start time.Time
	hasStart := false
	if startDate != "" {
		t, err := time.Parse(dateLayout, startDate)
		if err != nil {
			return nil, fmt.Errorf("detect: invalid start_date %q: %w", startDate, err)
		}
		start, hasStart = t, true
	}

	pfxPeaks := coalescedPeaks(pfx, params.PfxPeakMinValue, params.MaxNbPeaks, params.PercentSimilarity, params.PercentStd)
	cflPeaks := coalescedPeaks(cfl, params.CflPeakMinValue, params.MaxNbPeaks, params.PercentSimilarity, params.PercentStd)

	out := map[uint32]models.LeakRecord{}
	for _, asn := range models.Intersect(pfx, cfl) {
		leaks := intersectSorted(pfxPeaks[asn], cflPeaks[asn])
		if len(leaks) == 0 {
			continue
		}
		record := models.LeakRecord{
			ASN:       asn,
			Leaks:     leaks,
			Prefixes:  pfx[asn],
			Conflicts: cfl[asn],
		}
		if hasStart {
			record.LeakDates = make([]string, len(leaks))
			for i, idx := range leaks {
				record.LeakDates[i] = start.AddDate(0, 0, idx).Format(dateLayout)
			}
		}
		out[asn] = record
	}
	return out, nil
}

// coalescedPeaks implements the Duplicate Coalescer of spec.md §4.D:
// group ASes by identical series so Peak Finder runs once per distinct
// series, then replicate the result back to every AS sharing it.
func coalescedPeaks(store models.Store, peakMinValue, maxNbPeaks, percentSimilarity, percentStd float64) map[uint32][]int {
	groups := map[string][]uint32{}
	for asn, series := range store {
		key := seriesKey(series)
		groups[key] = append(groups[key], asn)
	}

	out := make(map[uint32][]int, len(store))
	for _, members := range groups {
		series := store[members[0]]
		finder := peaks.New(series, peakMinValue, maxNbPeaks, percentSimilarity, percentStd)
		result := finder.BigMaxes()
		for _, asn := range members {
			out[asn] = result
		}
	}
	return out
}

func seriesKey(s models.Series) string {
	key := make([]byte, len(s)*8)
	for i, v := range s {
		binary.LittleEndian.PutUint64(key[i*8:], math.Float64bits(v))
	}
	return string(key)
}

func intersectSorted(a, b []int) []int {
	set := make(map[int]struct{}, len(b))
	for _, v := range b {
		set[v] = struct{}{}
	}
	var out []int
	for _, v := range a {
		if _, ok := set[v]; ok {
			out = append(out, v)
		}
	}
	sort.Ints(out)
	return out
}
