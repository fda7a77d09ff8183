// moments.go - axis-parametric moment statistics over dense matrices

package stats

import (
	"math"

	"github.com/HazelnutParadise/mlearn"
	"gonum.org/v1/gonum/mat"
)

// Axis selects the reduction direction for the moment statistics: one value
// per column, one per row, or a single value over the whole matrix.
type Axis int

const (
	AxisColumn Axis = iota
	AxisRow
	AxisAll
)

// resultLen returns the number of reduced values for the axis.
func resultLen(axis Axis, n, p int) int {
	switch axis {
	case AxisColumn:
		return p
	case AxisRow:
		return n
	default:
		return 1
	}
}

// divisor implements the degrees-of-freedom convention shared by Variance
// and Moment: negative dof divides by the number of aggregated values, zero
// by that number minus one, positive by dof itself. Skewness and Kurtosis
// take no dof and always divide by the number of aggregated values.
func divisor(dof, count int) float64 {
	switch {
	case dof < 0:
		return float64(count)
	case dof == 0:
		return float64(count - 1)
	default:
		return float64(dof)
	}
}

func checkMatrix(fn string, X *mat.Dense) (int, int, error) {
	if X == nil {
		mlearn.LogWarning("stats.%s: matrix is nil.", fn)
		return 0, 0, mlearn.StatusInvalidPointer
	}
	n, p := X.Dims()
	if n == 0 || p == 0 {
		mlearn.LogWarning("stats.%s: matrix is empty.", fn)
		return 0, 0, mlearn.StatusInvalidArrayDimension
	}
	return n, p, nil
}

// reduce walks the matrix accumulating acc(slot, value) with one slot per
// reduced group. It factors the axis handling out of every statistic.
func reduce(axis Axis, X *mat.Dense, acc func(slot int, v float64)) {
	n, p := X.Dims()
	for i := 0; i < n; i++ {
		row := X.RawRowView(i)
		for j := 0; j < p; j++ {
			switch axis {
			case AxisColumn:
				acc(j, row[j])
			case AxisRow:
				acc(i, row[j])
			default:
				acc(0, row[j])
			}
		}
	}
}

func groupCount(axis Axis, n, p int) int {
	switch axis {
	case AxisColumn:
		return n
	case AxisRow:
		return p
	default:
		return n * p
	}
}

// Mean computes the arithmetic mean along the requested axis.
func Mean(axis Axis, X *mat.Dense) ([]float64, error) {
	n, p, err := checkMatrix("Mean", X)
	if err != nil {
		return nil, err
	}
	out := make([]float64, resultLen(axis, n, p))
	reduce(axis, X, func(slot int, v float64) { out[slot] += v })
	count := float64(groupCount(axis, n, p))
	for i := range out {
		out[i] /= count
	}
	return out, nil
}

// GeometricMean computes the geometric mean along the requested axis using
// logarithms to avoid overflow. Any zero entry forces the corresponding
// result to -Inf; any negative entry fails with a negative-data status.
func GeometricMean(axis Axis, X *mat.Dense) ([]float64, error) {
	n, p, err := checkMatrix("GeometricMean", X)
	if err != nil {
		return nil, err
	}
	out := make([]float64, resultLen(axis, n, p))
	hasZero := make([]bool, len(out))
	negative := false
	reduce(axis, X, func(slot int, v float64) {
		switch {
		case v < 0:
			negative = true
		case v == 0:
			hasZero[slot] = true
		default:
			out[slot] += math.Log(v)
		}
	})
	if negative {
		mlearn.LogWarning("stats.GeometricMean: negative entries are not allowed.")
		return nil, mlearn.StatusNegativeData
	}
	count := float64(groupCount(axis, n, p))
	for i := range out {
		if hasZero[i] {
			out[i] = math.Inf(-1)
		} else {
			out[i] = math.Exp(out[i] / count)
		}
	}
	return out, nil
}

// HarmonicMean computes the harmonic mean along the requested axis. Zero
// entries contribute zero to the sum of reciprocals.
func HarmonicMean(axis Axis, X *mat.Dense) ([]float64, error) {
	n, p, err := checkMatrix("HarmonicMean", X)
	if err != nil {
		return nil, err
	}
	out := make([]float64, resultLen(axis, n, p))
	reduce(axis, X, func(slot int, v float64) {
		if v != 0 {
			out[slot] += 1 / v
		}
	})
	count := float64(groupCount(axis, n, p))
	for i := range out {
		if out[i] == 0 {
			out[i] = 0
		} else {
			out[i] = count / out[i]
		}
	}
	return out, nil
}

// Variance computes mean and variance along the requested axis, honouring
// the dof convention. A precomputed mean of the right length may be passed
// to skip the first pass.
func Variance(axis Axis, X *mat.Dense, dof int, precomputedMean []float64) (mean, variance []float64, err error) {
	n, p, err := checkMatrix("Variance", X)
	if err != nil {
		return nil, nil, err
	}
	if precomputedMean != nil {
		if len(precomputedMean) != resultLen(axis, n, p) {
			mlearn.LogWarning("stats.Variance: precomputed mean has length %d, expected %d.", len(precomputedMean), resultLen(axis, n, p))
			return nil, nil, mlearn.StatusInvalidArrayDimension
		}
		mean = precomputedMean
	} else {
		mean, err = Mean(axis, X)
		if err != nil {
			return nil, nil, err
		}
	}
	variance = make([]float64, len(mean))
	reduce(axis, X, func(slot int, v float64) {
		d := v - mean[slot]
		variance[slot] += d * d
	})
	div := divisor(dof, groupCount(axis, n, p))
	for i := range variance {
		variance[i] /= div
	}
	return mean, variance, nil
}

// centralMoment accumulates sum (v - mean)^k per reduced group, without
// dividing. Skewness and Kurtosis run several of these concurrently, so the
// accumulation must not share state beyond the read-only inputs.
func centralMoment(axis Axis, X *mat.Dense, mean []float64, k int) []float64 {
	out := make([]float64, len(mean))
	switch k {
	case 2:
		reduce(axis, X, func(slot int, v float64) {
			d := v - mean[slot]
			out[slot] += d * d
		})
	case 3:
		reduce(axis, X, func(slot int, v float64) {
			d := v - mean[slot]
			out[slot] += d * d * d
		})
	case 4:
		reduce(axis, X, func(slot int, v float64) {
			d := v - mean[slot]
			d2 := d * d
			out[slot] += d2 * d2
		})
	default:
		reduce(axis, X, func(slot int, v float64) {
			out[slot] += math.Pow(v-mean[slot], float64(k))
		})
	}
	return out
}

// Moment computes the k-th central moment along the requested axis (divided
// by the dof-convention divisor). When central is false the raw moment about
// zero is returned instead.
func Moment(axis Axis, X *mat.Dense, k int, dof int, central bool) ([]float64, error) {
	n, p, err := checkMatrix("Moment", X)
	if err != nil {
		return nil, err
	}
	if k < 1 {
		mlearn.LogWarning("stats.Moment: order k = %d must be at least 1.", k)
		return nil, mlearn.StatusInvalidInput
	}
	var mean []float64
	if central {
		mean, err = Mean(axis, X)
		if err != nil {
			return nil, err
		}
	} else {
		mean = make([]float64, resultLen(axis, n, p))
	}
	out := centralMoment(axis, X, mean, k)
	div := divisor(dof, groupCount(axis, n, p))
	for i := range out {
		out[i] /= div
	}
	return out, nil
}
