package peaks

import "testing"

func ints(xs ...int) []int { return xs }

func floats(xs ...float64) []float64 { return xs }

func TestBigMaxesBoundaryScenarios(t *testing.T) {
	cases := []struct {
		name              string
		data              []float64
		peakMinValue      float64
		maxNbPeaks        float64
		percentSimilarity float64
		percentStd        float64
		want              []int
	}{
		{
			name:              "single clear peak",
			data:              floats(5, 5, 25, 5, 5, 5),
			peakMinValue:      10,
			maxNbPeaks:        2,
			percentSimilarity: 0.9,
			percentStd:        0.9,
			want:              ints(2),
		},
		{
			name:              "two equal peaks both detected",
			data:              floats(5, 5, 50, 5, 50, 5),
			peakMinValue:      10,
			maxNbPeaks:        2,
			percentSimilarity: 0.9,
			percentStd:        0.9,
			want:              ints(2, 4),
		},
		{
			name:              "raising peak_min_value rejects everything",
			data:              floats(5, 5, 50, 5, 50, 5),
			peakMinValue:      100,
			maxNbPeaks:        2,
			percentSimilarity: 0.9,
			percentStd:        0.9,
			want:              nil,
		},
		{
			name:              "too short",
			data:              floats(1, 2),
			peakMinValue:      10,
			maxNbPeaks:        2,
			percentSimilarity: 0.9,
			percentStd:        0.9,
			want:              nil,
		},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			f := New(c.data, c.peakMinValue, c.maxNbPeaks, c.percentSimilarity, c.percentStd)
			got := f.BigMaxes()
			if !intSliceEqual(got, c.want) {
				t.Errorf("BigMaxes() = %v, want %v", got, c.want)
			}
		})
	}
}

func TestMaxBelowPeakMinValueShortCircuits(t *testing.T) {
	f := New(floats(1, 2, 1), 10, 2, 0.9, 0.9)
	if got := f.BigMaxes(); got != nil {
		t.Errorf("expected nil, got %v", got)
	}
}

func TestGetRejectionCauseAccepted(t *testing.T) {
	f := New(floats(5, 5, 25, 5, 5, 5), 10, 2, 0.9, 0.9)
	info := f.GetRejectionCause(2)
	if info.Cause != CauseAccepted {
		t.Errorf("expected accepted, got %v (%v)", info.Cause, info.Operands)
	}
}

func TestGetRejectionCauseNotLocalMax(t *testing.T) {
	f := New(floats(5, 5, 5, 5, 5, 5), 10, 2, 0.9, 0.9)
	info := f.GetRejectionCause(2)
	if info.Cause != CauseNotLocalMax {
		t.Errorf("expected not-a-local-max, got %v", info.Cause)
	}
}

func intSliceEqual(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
