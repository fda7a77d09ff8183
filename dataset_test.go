package mlearn

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMatrixBorrowsRowMajor(t *testing.T) {
	data := []float64{1, 2, 3, 4, 5, 6}
	X, err := NewMatrix(3, 2, data)
	require.NoError(t, err)
	n, p := X.Dims()
	assert.Equal(t, 3, n)
	assert.Equal(t, 2, p)
	assert.Equal(t, 1.0, X.At(0, 0))
	assert.Equal(t, 6.0, X.At(2, 1))
	assert.False(t, X.Owned())
}

func TestNewMatrixColMajorAdaptsLayout(t *testing.T) {
	// Column-major 3x2 with leading dimension 4: column j starts at j*4.
	data := []float64{1, 2, 3, -1, 4, 5, 6, -1}
	X, err := NewMatrixColMajor(3, 2, data, 4)
	require.NoError(t, err)
	assert.Equal(t, 1.0, X.At(0, 0))
	assert.Equal(t, 4.0, X.At(0, 1))
	assert.Equal(t, 3.0, X.At(2, 0))
	assert.Equal(t, 6.0, X.At(2, 1))
	assert.True(t, X.Owned())
}

func TestNewMatrixColMajorRejectsShortLeadingDimension(t *testing.T) {
	_, err := NewMatrixColMajor(3, 2, make([]float64, 6), 2)
	assert.ErrorIs(t, err, StatusInvalidLeadingDimension)
}

func TestNewMatrixFromRowsMixedTypes(t *testing.T) {
	X, err := NewMatrixFromRows([][]any{{1, 2.5}, {"3", 4}})
	require.NoError(t, err)
	assert.Equal(t, 1.0, X.At(0, 0))
	assert.Equal(t, 2.5, X.At(0, 1))
	assert.Equal(t, 3.0, X.At(1, 0))
}

func TestNewMatrixFromRowsRaggedRejected(t *testing.T) {
	_, err := NewMatrixFromRows([][]float64{{1, 2}, {3}})
	assert.Error(t, err)
}

func TestSubsetRows(t *testing.T) {
	X, _ := NewMatrix(3, 2, []float64{1, 2, 3, 4, 5, 6})
	sub := X.SubsetRows([]int{2, 0})
	assert.Equal(t, 5.0, sub.At(0, 0))
	assert.Equal(t, 1.0, sub.At(1, 0))
	assert.True(t, sub.Owned())
}

func TestValidateLabels(t *testing.T) {
	labels, k, err := ValidateLabels([]float64{0, 2, 1, 2})
	require.NoError(t, err)
	assert.Equal(t, []int{0, 2, 1, 2}, labels)
	assert.Equal(t, 3, k)

	_, _, err = ValidateLabels([]float64{0, 1.5})
	assert.ErrorIs(t, err, StatusInvalidInput)

	_, _, err = ValidateLabels([]float64{0, -1})
	assert.ErrorIs(t, err, StatusInvalidInput)

	_, _, err = ValidateLabels(nil)
	assert.ErrorIs(t, err, StatusNoData)
}
