package smoothing

import (
	"reflect"
	"testing"

	"github.com/ANSSI-FR/route-leaks/pkg/models"
)

func TestSmooth(t *testing.T) {
	cases := []struct {
		name         string
		input        models.Series
		peakMinValue float64
		want         models.Series
	}{
		{
			name:         "isolated zero replaced by average",
			input:        models.Series{5, 5, 5, 0, 5, 5},
			peakMinValue: 10,
			want:         models.Series{5, 5, 5, 5, 5, 5},
		},
		{
			name:         "neighbor within peak_min_value/2 of the average kept as-is",
			input:        models.Series{5, 5, 25, 0, 5, 5},
			peakMinValue: 100,
			want:         models.Series{5, 5, 25, 15, 5, 5},
		},
		{
			name:         "multiple isolated zeros",
			input:        models.Series{0, 5, 5, 0, 5, 0},
			peakMinValue: 10,
			want:         models.Series{5, 5, 5, 5, 5, 5},
		},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got := Smooth(c.input, c.peakMinValue)
			if !reflect.DeepEqual(got, c.want) {
				t.Errorf("Smooth(%v, %v) = %v, want %v", c.input, c.peakMinValue, got, c.want)
			}
		})
	}
}

func TestSmoothNoOpBoundaries(t *testing.T) {
	t.Run("zero count is zero", func(t *testing.T) {
		s := models.Series{1, 2, 3, 4, 5}
		got := Smooth(s, 10)
		if !reflect.DeepEqual(got, s) {
			t.Errorf("expected no-op, got %v", got)
		}
	})

	t.Run("zero count at ceiling is a no-op", func(t *testing.T) {
		s := models.Series{0, 0, 0, 0, 0, 1}
		got := Smooth(s, 10)
		if !reflect.DeepEqual(got, s) {
			t.Errorf("expected no-op at MaxZeroesToSmooth, got %v", got)
		}
	})
}

func TestSmoothDoesNotMutateInput(t *testing.T) {
	s := models.Series{5, 5, 5, 0, 5, 5}
	orig := s.Clone()
	_ = Smooth(s, 10)
	if !reflect.DeepEqual(s, orig) {
		t.Errorf("Smooth mutated its input: got %v, want %v", s, orig)
	}
}
