package stats

import (
	"math"

	"github.com/HazelnutParadise/mlearn/parallel"
	"gonum.org/v1/gonum/mat"
)

func sqrtOf(v float64) float64 { return math.Sqrt(v) }

// Kurtosis computes mean, variance and excess kurtosis (m4 / m2^2 - 3) along
// the requested axis. The second and fourth central moments are accumulated
// concurrently. Groups with zero variance report zero kurtosis.
func Kurtosis(axis Axis, X *mat.Dense) (mean, variance, kurt []float64, err error) {
	n, p, err := checkMatrix("Kurtosis", X)
	if err != nil {
		return nil, nil, nil, err
	}
	mean, err = Mean(axis, X)
	if err != nil {
		return nil, nil, nil, err
	}
	var m2, m4 []float64
	parallel.GroupUp(func() {
		m2 = centralMoment(axis, X, mean, 2)
	}, func() {
		m4 = centralMoment(axis, X, mean, 4)
	}).Run().AwaitNoResult()

	count := float64(groupCount(axis, n, p))
	variance = make([]float64, len(mean))
	kurt = make([]float64, len(mean))
	for i := range m2 {
		variance[i] = m2[i] / count
		m4[i] /= count
		if variance[i] == 0 {
			kurt[i] = 0
		} else {
			kurt[i] = m4[i]/(variance[i]*variance[i]) - 3
		}
	}
	return mean, variance, kurt, nil
}
