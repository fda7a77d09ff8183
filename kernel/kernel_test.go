package kernel

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func toy() (*mat.Dense, *mat.Dense) {
	A := mat.NewDense(2, 2, []float64{1, 0, 0, 1})
	B := mat.NewDense(3, 2, []float64{1, 0, 1, 1, 2, 0})
	return A, B
}

func TestLinearKernel(t *testing.T) {
	A, B := toy()
	D := mat.NewDense(2, 3, nil)
	Compute(D, A, B, Descriptor{Kind: Linear})
	assert.InDelta(t, 1, D.At(0, 0), 1e-12)
	assert.InDelta(t, 1, D.At(0, 1), 1e-12)
	assert.InDelta(t, 2, D.At(0, 2), 1e-12)
	assert.InDelta(t, 0, D.At(1, 0), 1e-12)
	assert.InDelta(t, 1, D.At(1, 1), 1e-12)
}

func TestPolynomialKernel(t *testing.T) {
	A, B := toy()
	D := mat.NewDense(2, 3, nil)
	Compute(D, A, B, Descriptor{Kind: Polynomial, Gamma: 1, Degree: 2, Coef0: 1})
	// (1*<a,b> + 1)^2
	assert.InDelta(t, 4, D.At(0, 0), 1e-12)
	assert.InDelta(t, 9, D.At(0, 2), 1e-12)
}

func TestSigmoidKernel(t *testing.T) {
	A, B := toy()
	D := mat.NewDense(2, 3, nil)
	Compute(D, A, B, Descriptor{Kind: Sigmoid, Gamma: 0.5, Coef0: -1})
	assert.InDelta(t, math.Tanh(0.5*1-1), D.At(0, 0), 1e-12)
}

func TestRBFKernelMatchesDirectDistance(t *testing.T) {
	A, B := toy()
	D := mat.NewDense(2, 3, nil)
	gamma := 0.7
	Compute(D, A, B, Descriptor{Kind: RBF, Gamma: gamma})
	for i := 0; i < 2; i++ {
		for j := 0; j < 3; j++ {
			d2 := 0.0
			for k := 0; k < 2; k++ {
				diff := A.At(i, k) - B.At(j, k)
				d2 += diff * diff
			}
			assert.InDelta(t, math.Exp(-gamma*d2), D.At(i, j), 1e-12)
		}
	}
}

func TestRBFSymmetricSelfKernel(t *testing.T) {
	A, _ := toy()
	D := mat.NewDense(2, 2, nil)
	Compute(D, A, A, Descriptor{Kind: RBF, Gamma: 1})
	// Diagonal of a self Gram matrix is exactly one.
	require.InDelta(t, 1, D.At(0, 0), 1e-12)
	require.InDelta(t, 1, D.At(1, 1), 1e-12)
	assert.InDelta(t, D.At(0, 1), D.At(1, 0), 1e-12)
}
