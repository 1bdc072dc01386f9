// Package classifier implements the Model Runner of spec.md §4.G: a
// binary SVM classifying an AS's feature vector as PEAK or NORMAL.
// No SVM or general ML library appears anywhere in the retrieved
// example corpus, so the solver itself is necessarily hand-written on
// top of the standard library (justified in DESIGN.md); everything
// around it — artefact load paths, serialization, grid search
// structure — follows the teacher's error-wrapping and "try the next
// thing" idioms.
//
// The solver is a simplified sequential minimal optimization (SMO)
// dual-form trainer supporting linear and RBF kernels, sufficient for
// the soft-margin two-class problem spec.md §4.G describes. It is not
// a general-purpose SVM implementation: no multi-class support, no
// sparse inputs, fixed numeric tolerances tuned for feature vectors of
// this one shape.
package classifier

import (
	"fmt"
	"math"

	"github.com/ANSSI-FR/route-leaks/pkg/models"
)

// Kernel is the SVM kernel function.
type Kernel struct {
	Name  string // "linear" or "rbf"
	Gamma float64
}

func (k Kernel) apply(a, b []float64) float64 {
	switch k.Name {
	case "rbf":
		var sq float64
		for i := range a {
			d := a[i] - b[i]
			sq += d * d
		}
		return math.Exp(-k.Gamma * sq)
	default: // linear
		var dot float64
		for i := range a {
			dot += a[i] * b[i]
		}
		return dot
	}
}

// Model is a fitted soft-margin binary SVM: support vectors, their dual
// coefficients (alpha_i * y_i), and a bias term.
type Model struct {
	Kernel          Kernel
	C               float64
	SupportVectors  []models.FeatureVector
	Coefficients    []float64 // alpha_i * y_i, one per support vector
	Bias            float64
}

// Predict returns models.LabelPeak if the decision function is
// positive, models.LabelNormal otherwise.
func (m *Model) Predict(x models.FeatureVector) models.Label {
	if m.decide(x) > 0 {
		return models.LabelPeak
	}
	return models.LabelNormal
}

func (m *Model) decide(x []float64) float64 {
	sum := m.Bias
	for i, sv := range m.SupportVectors {
		sum += m.Coefficients[i] * m.Kernel.apply(sv, x)
	}
	return sum
}

// labelSign maps models.Label to the +1/-1 SVM convention.
func labelSign(l models.Label) float64 {
	if l == models.LabelPeak {
		return 1
	}
	return -1
}

// Fit trains a binary SVM via a simplified SMO dual solver. X is the
// training set, y their labels (PEAK/NORMAL), C the soft-margin
// penalty, k the kernel, maxPasses the number of consecutive full
// passes with no alpha change after which the solver stops (a pass
// that changes any alpha resets that count).
func Fit(x []models.FeatureVector, y []models.Label, c float64, k Kernel, maxPasses int) (*Model, error) {
	n := len(x)
	if n == 0 || n != len(y) {
		return nil, fmt.Errorf("classifier: Fit requires matching non-empty X and y, got %d vectors and %d labels", n, len(y))
	}

	signs := make([]float64, n)
	for i, label := range y {
		signs[i] = labelSign(label)
	}

	kMatrix := make([][]float64, n)
	for i := range kMatrix {
		kMatrix[i] = make([]float64, n)
		for j := range kMatrix[i] {
			kMatrix[i][j] = k.apply(x[i], x[j])
		}
	}

	alpha := make([]float64, n)
	var b float64
	const tol = 1e-3

	passes := 0
	for passes < maxPasses {
		changed := 0
		for i := 0; i < n; i++ {
			ei := decisionFromAlpha(alpha, signs, kMatrix, i, b) - signs[i]
			if (signs[i]*ei < -tol && alpha[i] < c) || (signs[i]*ei > tol && alpha[i] > 0) {
				j := (i + 1 + pseudoRand(i, n)) % n
				if j == i {
					continue
				}
				ej := decisionFromAlpha(alpha, signs, kMatrix, j, b) - signs[j]

				oldAI, oldAJ := alpha[i], alpha[j]
				var lo, hi float64
				if signs[i] != signs[j] {
					lo = math.Max(0, alpha[j]-alpha[i])
					hi = math.Min(c, c+alpha[j]-alpha[i])
				} else {
					lo = math.Max(0, alpha[i]+alpha[j]-c)
					hi = math.Min(c, alpha[i]+alpha[j])
				}
				if lo == hi {
					continue
				}

				eta := 2*kMatrix[i][j] - kMatrix[i][i] - kMatrix[j][j]
				if eta >= 0 {
					continue
				}
				alpha[j] -= signs[j] * (ei - ej) / eta
				alpha[j] = clamp(alpha[j], lo, hi)
				if math.Abs(alpha[j]-oldAJ) < 1e-5 {
					continue
				}
				alpha[i] += signs[i] * signs[j] * (oldAJ - alpha[j])

				b1 := b - ei - signs[i]*(alpha[i]-oldAI)*kMatrix[i][i] - signs[j]*(alpha[j]-oldAJ)*kMatrix[i][j]
				b2 := b - ej - signs[i]*(alpha[i]-oldAI)*kMatrix[i][j] - signs[j]*(alpha[j]-oldAJ)*kMatrix[j][j]
				switch {
				case alpha[i] > 0 && alpha[i] < c:
					b = b1
				case alpha[j] > 0 && alpha[j] < c:
					b = b2
				default:
					b = (b1 + b2) / 2
				}
				changed++
			}
		}
		if changed == 0 {
			passes++
		} else {
			passes = 0
		}
	}

	model := &Model{Kernel: k, C: c, Bias: b}
	for i, a := range alpha {
		if a > 1e-6 {
			model.SupportVectors = append(model.SupportVectors, x[i])
			model.Coefficients = append(model.Coefficients, a*signs[i])
		}
	}
	return model, nil
}

func decisionFromAlpha(alpha, signs []float64, kMatrix [][]float64, idx int, b float64) float64 {
	sum := b
	for i, a := range alpha {
		if a == 0 {
			continue
		}
		sum += a * signs[i] * kMatrix[i][idx]
	}
	return sum
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// pseudoRand deterministically varies the second SMO pivot without
// pulling in math/rand, keeping Fit reproducible run to run (spec.md
// §8's round-trip/idempotence invariant extends naturally to training).
func pseudoRand(seed, n int) int {
	if n <= 1 {
		return 0
	}
	h := uint32(seed*2654435761 + 1)
	return int(h % uint32(n-1))
}
