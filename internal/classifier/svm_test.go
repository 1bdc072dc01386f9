package classifier

import (
	"testing"

	"github.com/ANSSI-FR/route-leaks/pkg/models"
)

func TestFitLinearlySeparableData(t *testing.T) {
	x := []models.FeatureVector{
		{0, 0}, {0, 1}, {1, 0},
		{5, 5}, {5, 6}, {6, 5},
	}
	y := []models.Label{
		models.LabelNormal, models.LabelNormal, models.LabelNormal,
		models.LabelPeak, models.LabelPeak, models.LabelPeak,
	}

	m, err := Fit(x, y, 1, Kernel{Name: "linear"}, 50)
	if err != nil {
		t.Fatal(err)
	}

	for i, vec := range x {
		if got := m.Predict(vec); got != y[i] {
			t.Errorf("Predict(%v) = %v, want %v", vec, got, y[i])
		}
	}
}

func TestFitRejectsMismatchedLengths(t *testing.T) {
	_, err := Fit([]models.FeatureVector{{1, 2}}, nil, 1, Kernel{Name: "linear"}, 10)
	if err == nil {
		t.Error("expected error on mismatched X/y lengths")
	}
}

func TestClassifyEmptyWhenAllSkipped(t *testing.T) {
	m := &Model{Kernel: Kernel{Name: "linear"}}
	pfx := models.Store{1: models.Series{1, 2}} // too short, always skipped
	cfl := models.Store{1: models.Series{1, 2}}

	got := Classify(m, pfx, cfl)
	if peaks, ok := got[models.LabelPeak]; !ok || len(peaks) != 0 {
		t.Errorf("expected empty PEAK map, got %v", got)
	}
	if _, ok := got[models.LabelNormal]; ok {
		t.Errorf("expected no NORMAL key when all ASes skipped, got %v", got)
	}
}
