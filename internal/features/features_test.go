package features

import (
	"testing"

	"github.com/ANSSI-FR/route-leaks/pkg/models"
)

func TestExtractProducesFixedLengthVector(t *testing.T) {
	pfx := models.Series{5, 5, 25, 5, 5, 5, 5, 5, 5, 5}
	cfl := models.Series{5, 5, 25, 5, 5, 5, 5, 5, 5, 5}

	vec, ok := Extract(pfx, cfl)
	if !ok {
		t.Fatal("expected extraction to succeed")
	}
	if len(vec) != NumFeatures {
		t.Errorf("len(vec) = %d, want %d", len(vec), NumFeatures)
	}
}

func TestExtractSkipsFlatSeries(t *testing.T) {
	pfx := models.Series{5, 5, 5, 5, 5}
	cfl := models.Series{5, 5, 25, 5, 5}

	if _, ok := Extract(pfx, cfl); ok {
		t.Error("expected skip for flat normalized-variation series")
	}
}

func TestExtractSkipsShortSeries(t *testing.T) {
	if _, ok := Extract(models.Series{1, 2}, models.Series{1, 2, 3}); ok {
		t.Error("expected skip for series shorter than 3")
	}
}

func TestStdRatioIdenticalValues(t *testing.T) {
	if r := stdRatio([]float64{5, 5, 5}, 1); r != 1 {
		t.Errorf("stdRatio with zero std = %v, want 1", r)
	}
}

func TestPercentileMatchesLinearInterpolation(t *testing.T) {
	x := []float64{1, 2, 3, 4, 5}
	if got := percentile(x, 50); got != 3 {
		t.Errorf("percentile(x, 50) = %v, want 3", got)
	}
}
