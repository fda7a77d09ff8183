// Package kernel evaluates blocks of Gram matrices for the SVM engine.
// Callers hand in row-sample matrices A (na x p) and B (nb x p) and receive
// D[i,j] = k(A_i, B_j) in a dense na x nb block. Block sizes are bounded by
// the exported constants so the largest materialised sub-matrix stays
// O(block^2) values.
package kernel

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// Kind tags the kernel family.
type Kind int

const (
	Linear Kind = iota
	RBF
	Polynomial
	Sigmoid
)

func (k Kind) String() string {
	switch k {
	case Linear:
		return "linear"
	case RBF:
		return "rbf"
	case Polynomial:
		return "polynomial"
	case Sigmoid:
		return "sigmoid"
	}
	return "unknown"
}

// Descriptor carries the kernel family and its scalars. The same descriptor
// is used for every evaluation of one estimator, so it is resolved once at
// fit time.
type Descriptor struct {
	Kind   Kind
	Gamma  float64
	Degree int
	Coef0  float64
}

// Block-size bounds used by callers: working-set kernel blocks during SMO
// training and support-vector blocks during prediction.
const (
	TrainBlockSize   = 1024
	PredictBlockSize = 2048
)

// Compute fills D with the Gram block between the rows of A and the rows of
// B. D must be na x nb. When A and B are the same matrix the squared-norm
// cache is shared between both sides.
func Compute(D *mat.Dense, A, B mat.Matrix, desc Descriptor) {
	switch desc.Kind {
	case Linear:
		D.Mul(A, B.T())
	case Polynomial:
		D.Mul(A, B.T())
		applyElem(D, func(v float64) float64 {
			return math.Pow(desc.Gamma*v+desc.Coef0, float64(desc.Degree))
		})
	case Sigmoid:
		D.Mul(A, B.T())
		applyElem(D, func(v float64) float64 {
			return math.Tanh(desc.Gamma*v + desc.Coef0)
		})
	case RBF:
		rbf(D, A, B, desc.Gamma)
	}
}

// rbf computes exp(-gamma * ||a_i - b_j||^2) via the expansion
// ||a||^2 + ||b||^2 - 2 a.b, with the squared distance clamped at zero to
// guard against negative rounding.
func rbf(D *mat.Dense, A, B mat.Matrix, gamma float64) {
	aNorm := squaredNorms(A)
	var bNorm []float64
	if A == B {
		bNorm = aNorm
	} else {
		bNorm = squaredNorms(B)
	}
	D.Mul(A, B.T())
	na, nb := D.Dims()
	for i := 0; i < na; i++ {
		row := D.RawRowView(i)
		for j := 0; j < nb; j++ {
			d2 := aNorm[i] + bNorm[j] - 2*row[j]
			if d2 < 0 {
				d2 = 0
			}
			row[j] = math.Exp(-gamma * d2)
		}
	}
}

// squaredNorms returns ||x_i||^2 for every row of X, cached per call.
func squaredNorms(X mat.Matrix) []float64 {
	n, p := X.Dims()
	norms := make([]float64, n)
	for i := 0; i < n; i++ {
		s := 0.0
		for j := 0; j < p; j++ {
			v := X.At(i, j)
			s += v * v
		}
		norms[i] = s
	}
	return norms
}

func applyElem(D *mat.Dense, f func(float64) float64) {
	n, _ := D.Dims()
	for i := 0; i < n; i++ {
		row := D.RawRowView(i)
		for j := range row {
			row[j] = f(row[j])
		}
	}
}
