package stats

import (
	"github.com/HazelnutParadise/mlearn/parallel"
	"gonum.org/v1/gonum/mat"
)

// Skewness computes mean, variance and skewness along the requested axis.
// The second and third central moments are accumulated concurrently. The
// returned skewness is the population statistic m3 / m2^1.5; groups with
// zero variance report zero skewness.
func Skewness(axis Axis, X *mat.Dense) (mean, variance, skew []float64, err error) {
	n, p, err := checkMatrix("Skewness", X)
	if err != nil {
		return nil, nil, nil, err
	}
	mean, err = Mean(axis, X)
	if err != nil {
		return nil, nil, nil, err
	}
	var m2, m3 []float64
	parallel.GroupUp(func() {
		m2 = centralMoment(axis, X, mean, 2)
	}, func() {
		m3 = centralMoment(axis, X, mean, 3)
	}).Run().AwaitNoResult()

	count := float64(groupCount(axis, n, p))
	variance = make([]float64, len(mean))
	skew = make([]float64, len(mean))
	for i := range m2 {
		variance[i] = m2[i] / count
		m3[i] /= count
		if variance[i] == 0 {
			skew[i] = 0
		} else {
			skew[i] = m3[i] / (variance[i] * sqrtOf(variance[i]))
		}
	}
	return mean, variance, skew, nil
}
