package mlearn

import (
	"math"

	"github.com/HazelnutParadise/Go-Utils/conv"
	"gonum.org/v1/gonum/mat"
)

// Matrix is the canonical dense sample matrix consumed by every estimator:
// n sample rows by p feature columns, backed by a gonum mat.Dense. Inputs
// already in that layout are borrowed; column-major inputs are converted by
// the storage-order adapter and the copy is owned by the Matrix. The owned
// flag is the discriminant that records which case applies.
type Matrix struct {
	dense *mat.Dense
	rows  int
	cols  int
	owned bool
}

// NewMatrix borrows a row-major []float64 of length n*p (tight stride).
// The caller keeps ownership of data and must not mutate it while any
// estimator holds the Matrix.
func NewMatrix(n, p int, data []float64) (*Matrix, error) {
	if n <= 0 || p <= 0 {
		LogWarning("mlearn.NewMatrix: n = %d, p = %d, both must be greater than 0.", n, p)
		return nil, StatusInvalidArrayDimension
	}
	if data == nil {
		LogWarning("mlearn.NewMatrix: data is nil.")
		return nil, StatusInvalidPointer
	}
	if len(data) < n*p {
		LogWarning("mlearn.NewMatrix: data has length %d, need at least %d.", len(data), n*p)
		return nil, StatusInvalidArrayDimension
	}
	return &Matrix{dense: mat.NewDense(n, p, data[:n*p]), rows: n, cols: p}, nil
}

// NewMatrixColMajor adapts a column-major array with leading dimension
// ld >= n into the canonical layout. The transposed copy is owned by the
// returned Matrix and released with it.
func NewMatrixColMajor(n, p int, data []float64, ld int) (*Matrix, error) {
	if n <= 0 || p <= 0 {
		LogWarning("mlearn.NewMatrixColMajor: n = %d, p = %d, both must be greater than 0.", n, p)
		return nil, StatusInvalidArrayDimension
	}
	if ld < n {
		LogWarning("mlearn.NewMatrixColMajor: ld = %d must be at least n = %d.", ld, n)
		return nil, StatusInvalidLeadingDimension
	}
	if data == nil {
		LogWarning("mlearn.NewMatrixColMajor: data is nil.")
		return nil, StatusInvalidPointer
	}
	if len(data) < ld*(p-1)+n {
		LogWarning("mlearn.NewMatrixColMajor: data has length %d, need at least %d.", len(data), ld*(p-1)+n)
		return nil, StatusInvalidArrayDimension
	}
	d := mat.NewDense(n, p, nil)
	for j := 0; j < p; j++ {
		col := data[j*ld : j*ld+n]
		for i := 0; i < n; i++ {
			d.Set(i, j, col[i])
		}
	}
	return &Matrix{dense: d, rows: n, cols: p, owned: true}, nil
}

// NewMatrixFromRows converts loosely typed row data ([][]float64, [][]int,
// [][]any...) into an owned Matrix.
func NewMatrixFromRows(rows any) (*Matrix, error) {
	var parsed [][]float64
	switch v := rows.(type) {
	case [][]float64:
		parsed = v
	case [][]int:
		parsed = make([][]float64, len(v))
		for i, row := range v {
			parsed[i] = make([]float64, len(row))
			for j, x := range row {
				parsed[i][j] = float64(x)
			}
		}
	case [][]any:
		parsed = make([][]float64, len(v))
		for i, row := range v {
			parsed[i] = make([]float64, len(row))
			for j, x := range row {
				parsed[i][j] = conv.ParseF64(x)
			}
		}
	default:
		LogWarning("mlearn.NewMatrixFromRows: unsupported input type %T.", rows)
		return nil, StatusInvalidInput
	}
	if len(parsed) == 0 || len(parsed[0]) == 0 {
		LogWarning("mlearn.NewMatrixFromRows: input is empty.")
		return nil, StatusNoData
	}
	n, p := len(parsed), len(parsed[0])
	d := mat.NewDense(n, p, nil)
	for i, row := range parsed {
		if len(row) != p {
			LogWarning("mlearn.NewMatrixFromRows: row %d has %d values, expected %d.", i, len(row), p)
			return nil, StatusInvalidArrayDimension
		}
		for j, x := range row {
			d.Set(i, j, x)
		}
	}
	return &Matrix{dense: d, rows: n, cols: p, owned: true}, nil
}

// Dims returns (n_samples, n_features).
func (m *Matrix) Dims() (int, int) { return m.rows, m.cols }

// At returns the value of sample i, feature j.
func (m *Matrix) At(i, j int) float64 { return m.dense.At(i, j) }

// Dense exposes the backing gonum matrix. Estimators treat it as read-only.
func (m *Matrix) Dense() *mat.Dense { return m.dense }

// RawRow returns sample i as a slice view when possible.
func (m *Matrix) RawRow(i int) []float64 { return m.dense.RawRowView(i) }

// Owned reports whether the Matrix holds a layout-conversion copy.
func (m *Matrix) Owned() bool { return m.owned }

// SubsetRows materialises the selected sample rows into a new owned Matrix.
func (m *Matrix) SubsetRows(idx []int) *Matrix {
	d := mat.NewDense(len(idx), m.cols, nil)
	for i, r := range idx {
		d.SetRow(i, m.dense.RawRowView(r))
	}
	return &Matrix{dense: d, rows: len(idx), cols: m.cols, owned: true}
}

// ValidateLabels checks a classification target: every value must be a whole
// number in {0, ..., K-1}. It returns the integer labels and K.
func ValidateLabels(y []float64) ([]int, int, error) {
	if len(y) == 0 {
		LogWarning("mlearn.ValidateLabels: empty target.")
		return nil, 0, StatusNoData
	}
	labels := make([]int, len(y))
	maxLabel := 0
	for i, v := range y {
		if v != math.Round(v) || math.IsNaN(v) {
			LogWarning("mlearn.ValidateLabels: labels must be whole numbers from 0 to K-1, got %g.", v)
			return nil, 0, StatusInvalidInput
		}
		c := int(math.Round(v))
		if c < 0 {
			LogWarning("mlearn.ValidateLabels: labels must be non-negative, got %d.", c)
			return nil, 0, StatusInvalidInput
		}
		labels[i] = c
		if c > maxLabel {
			maxLabel = c
		}
	}
	return labels, maxLabel + 1, nil
}

// IntLabels converts an already-integer target without validation.
func IntLabels(y []int) ([]int, int) {
	maxLabel := 0
	for _, c := range y {
		if c > maxLabel {
			maxLabel = c
		}
	}
	return y, maxLabel + 1
}
