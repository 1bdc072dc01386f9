package detect

import (
	"reflect"
	"testing"

	"github.com/ANSSI-FR/route-leaks/pkg/models"
)

// pad extends a short fixture series up to MinNbDays with trailing
// zeros so the length guard (invariant 4, spec.md §8) doesn't reject
// the literal boundary scenarios, which are written as short examples.
func pad(values ...float64) models.Series {
	out := make(models.Series, MinNbDays)
	copy(out, values)
	return out
}

func TestDetectBoundaryScenarios(t *testing.T) {
	defaults := models.DefaultParams()

	t.Run("scenario 1: single coincident peak", func(t *testing.T) {
		pfx := models.Store{1: pad(5, 5, 25, 5, 5, 5)}
		cfl := models.Store{1: pad(5, 5, 25, 5, 5, 5)}
		got, err := Detect(pfx, cfl, defaults, "")
		if err != nil {
			t.Fatal(err)
		}
		if leaks := got[1].Leaks; !reflect.DeepEqual(leaks, []int{2}) {
			t.Errorf("leaks = %v, want [2]", leaks)
		}
	})

	t.Run("scenario 2: non-coincident pfx peak excluded", func(t *testing.T) {
		pfx := models.Store{1: pad(5, 5, 25, 5, 25, 5)}
		cfl := models.Store{1: pad(5, 5, 25, 5, 5, 5)}
		got, err := Detect(pfx, cfl, defaults, "")
		if err != nil {
			t.Fatal(err)
		}
		if leaks := got[1].Leaks; !reflect.DeepEqual(leaks, []int{2}) {
			t.Errorf("leaks = %v, want [2] (pfx-only peak at index 4 excluded)", leaks)
		}
	})

	t.Run("scenario 5: pfx-only candidate against an all-zero cfl series yields no leak", func(t *testing.T) {
		pfx := models.Store{1: pad(15, 5, 16, 5, 15, 5)}
		cfl := models.Store{1: pad(0, 0, 0, 0, 0, 0)}
		got, err := Detect(pfx, cfl, defaults, "")
		if err != nil {
			t.Fatal(err)
		}
		if len(got) != 0 {
			t.Errorf("expected no leaks, got %v", got)
		}
	})

	t.Run("scenario 3: two coincident peaks", func(t *testing.T) {
		pfx := models.Store{1: pad(5, 5, 50, 5, 50, 5)}
		cfl := models.Store{1: pad(5, 5, 50, 5, 50, 5)}
		got, err := Detect(pfx, cfl, defaults, "")
		if err != nil {
			t.Fatal(err)
		}
		if leaks := got[1].Leaks; !reflect.DeepEqual(leaks, []int{2, 4}) {
			t.Errorf("leaks = %v, want [2 4]", leaks)
		}
	})

	t.Run("scenario 4: raised pfx_peak_min_value suppresses detection", func(t *testing.T) {
		pfx := models.Store{1: pad(5, 5, 50, 5, 50, 5)}
		cfl := models.Store{1: pad(5, 5, 50, 5, 50, 5)}
		params := defaults
		params.PfxPeakMinValue = 100
		got, err := Detect(pfx, cfl, params, "")
		if err != nil {
			t.Fatal(err)
		}
		if len(got) != 0 {
			t.Errorf("expected no leaks, got %v", got)
		}
	})

	t.Run("scenario 6: length below MIN_NB_DAYS returns empty", func(t *testing.T) {
		pfx := models.Store{1: models.Series{5, 5}}
		cfl := models.Store{1: models.Series{5, 5}}
		got, err := Detect(pfx, cfl, defaults, "")
		if err != nil {
			t.Fatal(err)
		}
		if len(got) != 0 {
			t.Errorf("expected no leaks for short series, got %v", got)
		}
	})
}

func TestDetectExcludesASOnlyInOneStore(t *testing.T) {
	pfx := models.Store{1: pad(5, 5, 25, 5, 5, 5), 2: pad(5, 5, 25, 5, 5, 5)}
	cfl := models.Store{1: pad(5, 5, 25, 5, 5, 5)}
	got, err := Detect(pfx, cfl, models.DefaultParams(), "")
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := got[2]; ok {
		t.Errorf("AS 2 present in pfx only should be excluded, got %v", got[2])
	}
}

func TestDetectLengthMismatchIsFatal(t *testing.T) {
	pfx := models.Store{1: make(models.Series, 40)}
	cfl := models.Store{1: make(models.Series, 35)}
	if _, err := Detect(pfx, cfl, models.DefaultParams(), ""); err == nil {
		t.Error("expected error on length mismatch")
	}
}

func TestDetectStartDateFormatsLeakDates(t *testing.T) {
	pfx := models.Store{1: pad(5, 5, 25, 5, 5, 5)}
	cfl := models.Store{1: pad(5, 5, 25, 5, 5, 5)}
	got, err := Detect(pfx, cfl, models.DefaultParams(), "2016-01-01")
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"2016-01-03"}
	if !reflect.DeepEqual(got[1].LeakDates, want) {
		t.Errorf("LeakDates = %v, want %v", got[1].LeakDates, want)
	}
}

func TestCoalescingPreservesPerASResult(t *testing.T) {
	// K copies of the same series (here K=3, ASes 1,2,3 share AS 1's
	// series) must yield the same leak verdict for each copy.
	series := pad(5, 5, 25, 5, 5, 5)
	pfx := models.Store{1: series.Clone(), 2: series.Clone(), 3: series.Clone()}
	cfl := models.Store{1: series.Clone(), 2: series.Clone(), 3: series.Clone()}
	got, err := Detect(pfx, cfl, models.DefaultParams(), "")
	if err != nil {
		t.Fatal(err)
	}
	want := got[1].Leaks
	for _, asn := range []uint32{2, 3} {
		if !reflect.DeepEqual(got[asn].Leaks, want) {
			t.Errorf("AS %d leaks = %v, want %v (same as AS 1)", asn, got[asn].Leaks, want)
		}
	}
}
