package svm

import (
	"math"
	"testing"

	"github.com/HazelnutParadise/mlearn"
	"github.com/HazelnutParadise/mlearn/kernel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"
)

// twoBlobs draws n points per class from two Gaussian clusters centred at
// (-d, -d) and (d, d).
func twoBlobs(n int, d, sigma float64, seed uint64) (*mlearn.Matrix, []float64) {
	norm := distuv.Normal{Mu: 0, Sigma: sigma, Src: rand.NewSource(seed)}
	data := make([]float64, 0, 4*n)
	y := make([]float64, 0, 2*n)
	for i := 0; i < n; i++ {
		data = append(data, -d+norm.Rand(), -d+norm.Rand())
		y = append(y, 0)
	}
	for i := 0; i < n; i++ {
		data = append(data, d+norm.Rand(), d+norm.Rand())
		y = append(y, 1)
	}
	X, _ := mlearn.NewMatrix(2*n, 2, data)
	return X, y
}

func TestSVCKKTFeasibility(t *testing.T) {
	X, y := twoBlobs(25, 1, 0.8, 11)
	params := DefaultParams()
	params.Kernel = kernel.RBF
	params.Gamma = 0.5
	params.C = 1
	m := New(SVC, params)
	require.NoError(t, m.SetData(X, y))
	require.NoError(t, m.Fit())

	// Stored coefficients are alpha*y, so |coef| recovers alpha.
	coefs := m.DualCoefs()
	require.NotNil(t, coefs)
	sumSigned, sumAbs := 0.0, 0.0
	for j := 0; j < m.NSupport(); j++ {
		c := coefs.At(0, j)
		alpha := math.Abs(c)
		assert.LessOrEqual(t, alpha, params.C+1e-9)
		sumSigned += c
		sumAbs += alpha
	}
	assert.LessOrEqual(t, math.Abs(sumSigned), 1e-6*math.Max(1, sumAbs))
}

func TestSVCSeparableBlobsAllKernels(t *testing.T) {
	X, y := twoBlobs(50, 2, 0.3, 7)
	for _, kind := range []kernel.Kind{kernel.Linear, kernel.RBF, kernel.Polynomial, kernel.Sigmoid} {
		params := DefaultParams()
		params.Kernel = kind
		params.C = 1
		if kind == kernel.RBF {
			params.Gamma = 0.5
		}
		m := New(SVC, params)
		require.NoError(t, m.SetData(X, y))
		require.NoError(t, m.Fit(), "kernel %v", kind)
		score, err := m.Score(X, y)
		require.NoError(t, err)
		want := 0.95
		if kind == kernel.Sigmoid {
			// The sigmoid Gram matrix is not positive semi-definite, so the
			// dual optimum is a weaker separator.
			want = 0.9
		}
		assert.GreaterOrEqual(t, score, want, "kernel %v", kind)
	}
}

func TestSVCRBFWellSeparatedFewSupportVectors(t *testing.T) {
	// 50+50 samples, RBF, C=1, gamma=0.5: near-perfect accuracy and a
	// small support set.
	X, y := twoBlobs(50, 2, 0.3, 42)
	params := DefaultParams()
	params.Kernel = kernel.RBF
	params.Gamma = 0.5
	params.C = 1
	m := New(SVC, params)
	require.NoError(t, m.SetData(X, y))
	require.NoError(t, m.Fit())
	score, err := m.Score(X, y)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, score, 0.99)
	assert.LessOrEqual(t, m.NSupport(), 20)
}

func TestSVRFitsLinearTrend(t *testing.T) {
	n := 30
	data := make([]float64, n)
	y := make([]float64, n)
	for i := 0; i < n; i++ {
		x := float64(i) / float64(n)
		data[i] = x
		y[i] = 2 * x
	}
	X, _ := mlearn.NewMatrix(n, 1, data)
	params := DefaultParams()
	params.Kernel = kernel.Linear
	params.C = 10
	params.Epsilon = 0.05
	m := New(SVR, params)
	require.NoError(t, m.SetData(X, y))
	require.NoError(t, m.Fit())
	pred, err := m.Predict(X)
	require.NoError(t, err)
	for i := range pred {
		assert.InDelta(t, y[i], pred[i], 0.15)
	}
}

func TestNuSVCBalancedSupportVectors(t *testing.T) {
	X, y := twoBlobs(10, 1, 0.7, 5)
	params := DefaultParams()
	params.Kernel = kernel.RBF
	params.Gamma = 0.5
	params.Nu = 0.5
	m := New(NuSVC, params)
	require.NoError(t, m.SetData(X, y))
	require.NoError(t, m.Fit())
	perClass := m.NSupportPerClass()
	require.Len(t, perClass, 2)
	// nu*n/2 = 5 support vectors per class, within 20 percent plus one.
	for _, c := range perClass {
		assert.InDelta(t, 5, float64(c), 2)
	}
}

func TestNuSVRRuns(t *testing.T) {
	n := 24
	data := make([]float64, n)
	y := make([]float64, n)
	for i := 0; i < n; i++ {
		x := float64(i) / float64(n)
		data[i] = x
		y[i] = 1 - x
	}
	X, _ := mlearn.NewMatrix(n, 1, data)
	params := DefaultParams()
	params.Kernel = kernel.Linear
	params.C = 10
	params.Nu = 0.5
	m := New(NuSVR, params)
	require.NoError(t, m.SetData(X, y))
	require.NoError(t, m.Fit())
	score, err := m.Score(X, y)
	require.NoError(t, err)
	assert.Greater(t, score, 0.8)
}

func threeBlobs(nPer int, seed uint64) (*mlearn.Matrix, []float64) {
	norm := distuv.Normal{Mu: 0, Sigma: 0.3, Src: rand.NewSource(seed)}
	centers := [][2]float64{{0, 0}, {4, 0}, {0, 4}}
	data := make([]float64, 0, nPer*6)
	y := make([]float64, 0, nPer*3)
	for c, ctr := range centers {
		for i := 0; i < nPer; i++ {
			data = append(data, ctr[0]+norm.Rand(), ctr[1]+norm.Rand())
			y = append(y, float64(c))
		}
	}
	X, _ := mlearn.NewMatrix(nPer*3, 2, data)
	return X, y
}

func TestMulticlassOneVersusOne(t *testing.T) {
	X, y := threeBlobs(20, 3)
	params := DefaultParams()
	params.Kernel = kernel.Linear
	params.C = 1
	m := New(SVC, params)
	require.NoError(t, m.SetData(X, y))
	require.NoError(t, m.Fit())

	score, err := m.Score(X, y)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, score, 0.95)

	// LibSVM layout: (K-1) x n_sv coefficients, per-class counts summing
	// to the global count, one bias per pair.
	r, c := m.DualCoefs().Dims()
	assert.Equal(t, 2, r)
	assert.Equal(t, m.NSupport(), c)
	total := 0
	for _, n := range m.NSupportPerClass() {
		total += n
	}
	assert.Equal(t, m.NSupport(), total)
	assert.Len(t, m.Bias(), 3)

	ovo, err := m.DecisionFunction(X, OVO)
	require.NoError(t, err)
	_, cols := ovo.Dims()
	assert.Equal(t, 3, cols)

	ovr, err := m.DecisionFunction(X, OVR)
	require.NoError(t, err)
	_, cols = ovr.Dims()
	assert.Equal(t, 3, cols)
}

func TestDeterministicRefit(t *testing.T) {
	X, y := twoBlobs(20, 1.5, 0.5, 9)
	params := DefaultParams()
	params.Kernel = kernel.RBF
	params.Gamma = 0.7
	fit := func() ([]int, []float64, []float64) {
		m := New(SVC, params)
		require.NoError(t, m.SetData(X, y))
		require.NoError(t, m.Fit())
		coefs := make([]float64, m.NSupport())
		for j := range coefs {
			coefs[j] = m.DualCoefs().At(0, j)
		}
		return m.SupportIndices(), coefs, m.Bias()
	}
	idx1, coef1, bias1 := fit()
	idx2, coef2, bias2 := fit()
	assert.Equal(t, idx1, idx2)
	assert.Equal(t, coef1, coef2)
	assert.Equal(t, bias1, bias2)
}

func TestSetDataRejectsFractionalLabels(t *testing.T) {
	X, _ := mlearn.NewMatrix(2, 1, []float64{0, 1})
	m := New(SVC, DefaultParams())
	err := m.SetData(X, []float64{0, 1.5})
	assert.Error(t, err)
}

func TestFitRejectsZeroVarianceDefaultGamma(t *testing.T) {
	X, _ := mlearn.NewMatrix(4, 1, []float64{1, 1, 1, 1})
	params := DefaultParams() // gamma < 0 triggers the 1/(p*Var) default
	m := New(SVC, params)
	require.NoError(t, m.SetData(X, []float64{0, 1, 0, 1}))
	assert.Error(t, m.Fit())
}

func TestPredictBeforeFitIsOutOfDate(t *testing.T) {
	X, _ := mlearn.NewMatrix(2, 1, []float64{0, 1})
	m := New(SVC, DefaultParams())
	require.NoError(t, m.SetData(X, []float64{0, 1}))
	_, err := m.Predict(X)
	assert.Error(t, err)
}
