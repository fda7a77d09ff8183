package stats

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

func sampleMatrix() *mat.Dense {
	return mat.NewDense(3, 2, []float64{
		1, 10,
		2, 20,
		3, 30,
	})
}

func TestMeanByAxis(t *testing.T) {
	X := sampleMatrix()

	col, err := Mean(AxisColumn, X)
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{2, 20}, col, 1e-12)

	row, err := Mean(AxisRow, X)
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{5.5, 11, 16.5}, row, 1e-12)

	all, err := Mean(AxisAll, X)
	require.NoError(t, err)
	assert.InDelta(t, 11, all[0], 1e-12)
}

func TestVarianceDofConvention(t *testing.T) {
	X := sampleMatrix()

	// dof < 0: divide by n
	_, vPop, err := Variance(AxisColumn, X, -1, nil)
	require.NoError(t, err)
	assert.InDelta(t, 2.0/3.0, vPop[0], 1e-12)

	// dof == 0: divide by n-1, matches gonum's sample variance
	_, vSample, err := Variance(AxisColumn, X, 0, nil)
	require.NoError(t, err)
	col0 := []float64{1, 2, 3}
	assert.InDelta(t, stat.Variance(col0, nil), vSample[0], 1e-12)

	// dof > 0: explicit divisor
	_, vCustom, err := Variance(AxisColumn, X, 4, nil)
	require.NoError(t, err)
	assert.InDelta(t, 0.5, vCustom[0], 1e-12)
}

func TestVariancePrecomputedMean(t *testing.T) {
	X := sampleMatrix()
	mean := []float64{2, 20}
	gotMean, v, err := Variance(AxisColumn, X, -1, mean)
	require.NoError(t, err)
	assert.Equal(t, mean, gotMean)
	assert.InDelta(t, 200.0/3.0, v[1], 1e-9)
}

func TestGeometricMeanEdgeCases(t *testing.T) {
	X := mat.NewDense(2, 2, []float64{1, 0, 4, 8})
	g, err := GeometricMean(AxisColumn, X)
	require.NoError(t, err)
	assert.InDelta(t, 2, g[0], 1e-12)
	assert.True(t, math.IsInf(g[1], -1))

	neg := mat.NewDense(1, 2, []float64{-1, 2})
	_, err = GeometricMean(AxisColumn, neg)
	assert.Error(t, err)
}

func TestHarmonicMeanZeroContribution(t *testing.T) {
	X := mat.NewDense(2, 1, []float64{2, 0})
	h, err := HarmonicMean(AxisColumn, X)
	require.NoError(t, err)
	// The zero entry contributes nothing to the reciprocal sum.
	assert.InDelta(t, 4, h[0], 1e-12)
}

func TestSkewnessSymmetricIsZero(t *testing.T) {
	X := mat.NewDense(5, 1, []float64{-2, -1, 0, 1, 2})
	_, _, skew, err := Skewness(AxisColumn, X)
	require.NoError(t, err)
	assert.InDelta(t, 0, skew[0], 1e-12)
}

func TestKurtosisUniformLike(t *testing.T) {
	X := mat.NewDense(4, 1, []float64{-1, -1, 1, 1})
	_, _, kurt, err := Kurtosis(AxisColumn, X)
	require.NoError(t, err)
	// Two-point symmetric distribution has kurtosis 1, excess -2.
	assert.InDelta(t, -2, kurt[0], 1e-12)
}

func TestMomentMatchesVariance(t *testing.T) {
	X := sampleMatrix()
	m2, err := Moment(AxisColumn, X, 2, -1, true)
	require.NoError(t, err)
	_, v, err := Variance(AxisColumn, X, -1, nil)
	require.NoError(t, err)
	assert.InDeltaSlice(t, v, m2, 1e-12)
}

func TestStandardizeIdempotence(t *testing.T) {
	X := mat.NewDense(4, 2, []float64{
		1, 5,
		2, 7,
		3, 9,
		4, 11,
	})
	require.NoError(t, Standardize(AxisColumn, X, nil, nil, -1))
	snapshot := mat.DenseCopyOf(X)
	require.NoError(t, Standardize(AxisColumn, X, nil, nil, -1))
	n, p := X.Dims()
	for i := 0; i < n; i++ {
		for j := 0; j < p; j++ {
			assert.InDelta(t, snapshot.At(i, j), X.At(i, j), 1e-10)
		}
	}
}

func TestStandardizeZeroScaleReplaced(t *testing.T) {
	X := mat.NewDense(3, 1, []float64{5, 5, 5})
	require.NoError(t, Standardize(AxisColumn, X, nil, nil, -1))
	for i := 0; i < 3; i++ {
		assert.InDelta(t, 0, X.At(i, 0), 1e-12)
	}
}

func TestStandardizeExplicitShiftScale(t *testing.T) {
	X := mat.NewDense(2, 2, []float64{2, 4, 6, 8})
	require.NoError(t, Standardize(AxisColumn, X, []float64{2, 4}, []float64{2, 2}, -1))
	assert.InDelta(t, 0, X.At(0, 0), 1e-12)
	assert.InDelta(t, 2, X.At(1, 0), 1e-12)
}

func TestSkewnessKurtosisMatchSerialMoments(t *testing.T) {
	// The concurrent m2/m3/m4 passes must agree with the serial Moment path.
	X := mat.NewDense(6, 3, []float64{
		0.3, 1.2, -4,
		-0.7, 2.2, 5,
		1.9, 0.1, 2,
		0.4, -1.8, -3,
		-2.2, 0.9, 7,
		1.1, 3.0, -1,
	})
	_, variance, skew, err := Skewness(AxisColumn, X)
	require.NoError(t, err)
	_, _, kurt, err := Kurtosis(AxisColumn, X)
	require.NoError(t, err)

	m2, err := Moment(AxisColumn, X, 2, -1, true)
	require.NoError(t, err)
	m3, err := Moment(AxisColumn, X, 3, -1, true)
	require.NoError(t, err)
	m4, err := Moment(AxisColumn, X, 4, -1, true)
	require.NoError(t, err)
	for j := 0; j < 3; j++ {
		assert.InDelta(t, m2[j], variance[j], 1e-12)
		assert.InDelta(t, m3[j]/(m2[j]*math.Sqrt(m2[j])), skew[j], 1e-12)
		assert.InDelta(t, m4[j]/(m2[j]*m2[j])-3, kurt[j], 1e-12)
	}
}
