package stats

import (
	"math"

	"github.com/HazelnutParadise/mlearn"
	"gonum.org/v1/gonum/mat"
)

// Standardize shifts and scales X in place: x <- (x - shift) / scale along
// the requested axis. A nil shift is interpreted as zero and a nil scale as
// one; when both are nil the mean and standard deviation (dof convention as
// in Variance) are computed and used. Any scale entry that is exactly zero
// is replaced by one so constant columns pass through unchanged.
func Standardize(axis Axis, X *mat.Dense, shift, scale []float64, dof int) error {
	n, p, err := checkMatrix("Standardize", X)
	if err != nil {
		return err
	}
	want := resultLen(axis, n, p)
	if shift != nil && len(shift) != want {
		mlearn.LogWarning("stats.Standardize: shift has length %d, expected %d.", len(shift), want)
		return mlearn.StatusInvalidArrayDimension
	}
	if scale != nil && len(scale) != want {
		mlearn.LogWarning("stats.Standardize: scale has length %d, expected %d.", len(scale), want)
		return mlearn.StatusInvalidArrayDimension
	}
	if shift == nil && scale == nil {
		mean, variance, verr := Variance(axis, X, dof, nil)
		if verr != nil {
			return verr
		}
		shift = mean
		scale = make([]float64, len(variance))
		for i, v := range variance {
			scale[i] = math.Sqrt(v)
		}
	}
	get := func(vals []float64, slot int, def float64) float64 {
		if vals == nil {
			return def
		}
		return vals[slot]
	}
	for i := 0; i < n; i++ {
		row := X.RawRowView(i)
		for j := 0; j < p; j++ {
			slot := 0
			switch axis {
			case AxisColumn:
				slot = j
			case AxisRow:
				slot = i
			}
			s := get(scale, slot, 1)
			if s == 0 {
				s = 1
			}
			row[j] = (row[j] - get(shift, slot, 0)) / s
		}
	}
	return nil
}
