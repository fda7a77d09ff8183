// Package knn implements brute-force k-nearest-neighbour classification
// with uniform or inverse-distance vote weighting.
package knn

import (
	"math"

	"github.com/HazelnutParadise/mlearn"
	"github.com/HazelnutParadise/mlearn/internal/algorithms"
	"gonum.org/v1/gonum/mat"
)

// Weights selects the vote weighting.
type Weights int

const (
	Uniform Weights = iota
	Distance
)

// Metric selects the pairwise distance.
type Metric int

const (
	Euclidean Metric = iota
	SqEuclidean
)

// Algorithm selects the neighbour search; only brute force is available.
type Algorithm int

const (
	Brute Algorithm = iota
)

// Params holds the k-NN controls.
type Params struct {
	K         int
	Weights   Weights
	Metric    Metric
	Algorithm Algorithm
}

// DefaultParams mirrors the registry defaults.
func DefaultParams() Params {
	return Params{K: 5, Weights: Uniform, Metric: Euclidean, Algorithm: Brute}
}

// KNN is the fitted estimator; fitting stores the training set.
type KNN struct {
	params Params
	trace  mlearn.ErrorTrace

	X      *mlearn.Matrix
	labels []int
	nClass int
	n, p   int
}

// New returns a k-NN classifier.
func New(params Params) *KNN {
	return &KNN{params: params}
}

// SetData validates and stores the training set.
func (k *KNN) SetData(X *mlearn.Matrix, y []int) error {
	k.trace.Reset()
	if X == nil || y == nil {
		return k.trace.Errorf(mlearn.StatusInvalidPointer, "knn.SetData: X and y must not be nil.")
	}
	n, p := X.Dims()
	if len(y) != n {
		return k.trace.Errorf(mlearn.StatusInvalidArrayDimension, "knn.SetData: y has length %d, expected %d.", len(y), n)
	}
	if k.params.K < 1 || k.params.K > n {
		return k.trace.Errorf(mlearn.StatusInvalidOption, "knn.SetData: k = %d must be between 1 and %d.", k.params.K, n)
	}
	k.X = X
	k.labels = y
	_, k.nClass = mlearn.IntLabels(y)
	k.n, k.p = n, p
	return nil
}

// pairwiseSq fills D[i][j] with the squared distance between query i and
// training sample j via the Gram expansion.
func (k *KNN) pairwiseSq(Q *mat.Dense) *mat.Dense {
	m, _ := Q.Dims()
	D := mat.NewDense(m, k.n, nil)
	D.Mul(Q, k.X.Dense().T())
	qNorm := rowNorms(Q)
	xNorm := rowNorms(k.X.Dense())
	for i := 0; i < m; i++ {
		row := D.RawRowView(i)
		for j := 0; j < k.n; j++ {
			d2 := qNorm[i] + xNorm[j] - 2*row[j]
			if d2 < 0 {
				d2 = 0
			}
			row[j] = d2
		}
	}
	return D
}

func rowNorms(X *mat.Dense) []float64 {
	n, p := X.Dims()
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		row := X.RawRowView(i)
		s := 0.0
		for j := 0; j < p; j++ {
			s += row[j] * row[j]
		}
		out[i] = s
	}
	return out
}

func (k *KNN) checkQuery(Xq *mlearn.Matrix) error {
	if k.X == nil {
		return k.trace.Errorf(mlearn.StatusNoData, "knn: no data has been passed, call SetData first.")
	}
	if Xq == nil {
		return k.trace.Errorf(mlearn.StatusInvalidPointer, "knn: query matrix is nil.")
	}
	if _, p := Xq.Dims(); p != k.p {
		return k.trace.Errorf(mlearn.StatusInvalidArrayDimension,
			"knn: query data has %d features, expected %d.", p, k.p)
	}
	return nil
}

// Kneighbors returns the indices of the k nearest training samples per
// query, and the distance matrix when returnDistance is set. Ties resolve
// towards the smaller training index.
func (k *KNN) Kneighbors(Xq *mlearn.Matrix, returnDistance bool) ([][]int, [][]float64, error) {
	if err := k.checkQuery(Xq); err != nil {
		return nil, nil, err
	}
	m, _ := Xq.Dims()
	D := k.pairwiseSq(Xq.Dense())
	indices := make([][]int, m)
	var distances [][]float64
	if returnDistance {
		distances = make([][]float64, m)
	}
	for i := 0; i < m; i++ {
		row := D.RawRowView(i)
		order := make([]int, k.n)
		for j := range order {
			order[j] = j
		}
		algorithms.SortIndicesByKey(order, func(j int) float64 { return row[j] })
		nearest := append([]int(nil), order[:k.params.K]...)
		indices[i] = nearest
		if returnDistance {
			dist := make([]float64, k.params.K)
			for t, j := range nearest {
				if k.params.Metric == Euclidean {
					dist[t] = math.Sqrt(row[j])
				} else {
					dist[t] = row[j]
				}
			}
			distances[i] = dist
		}
	}
	return indices, distances, nil
}

// PredictProba reduces the neighbourhood to a weighted class histogram.
// Under distance weighting, any zero-distance neighbour collapses the mass
// uniformly onto the tied zero-distance neighbours.
func (k *KNN) PredictProba(Xq *mlearn.Matrix) ([][]float64, error) {
	indices, distances, err := k.Kneighbors(Xq, true)
	if err != nil {
		return nil, err
	}
	out := make([][]float64, len(indices))
	for i, nearest := range indices {
		probs := make([]float64, k.nClass)
		dist := distances[i]
		switch k.params.Weights {
		case Distance:
			zeroCount := 0
			for _, d := range dist {
				if d == 0 {
					zeroCount++
				}
			}
			if zeroCount > 0 {
				for t, j := range nearest {
					if dist[t] == 0 {
						probs[k.labels[j]] += 1 / float64(zeroCount)
					}
				}
			} else {
				total := 0.0
				for t := range nearest {
					total += 1 / dist[t]
				}
				for t, j := range nearest {
					probs[k.labels[j]] += (1 / dist[t]) / total
				}
			}
		default:
			for _, j := range nearest {
				probs[k.labels[j]] += 1 / float64(len(nearest))
			}
		}
		out[i] = probs
	}
	return out, nil
}

// Predict takes the argmax of PredictProba; ties break towards the smaller
// class index.
func (k *KNN) Predict(Xq *mlearn.Matrix) ([]int, error) {
	probs, err := k.PredictProba(Xq)
	if err != nil {
		return nil, err
	}
	out := make([]int, len(probs))
	for i, row := range probs {
		best, bestClass := -1.0, 0
		for c, p := range row {
			if p > best {
				best = p
				bestClass = c
			}
		}
		out[i] = bestClass
	}
	return out, nil
}

// Score returns the mean accuracy on the given test set.
func (k *KNN) Score(Xq *mlearn.Matrix, y []int) (float64, error) {
	pred, err := k.Predict(Xq)
	if err != nil {
		return 0, err
	}
	if len(y) != len(pred) {
		return 0, k.trace.Errorf(mlearn.StatusInvalidArrayDimension,
			"knn.Score: y has length %d, expected %d.", len(y), len(pred))
	}
	correct := 0
	for i := range pred {
		if pred[i] == y[i] {
			correct++
		}
	}
	return float64(correct) / float64(len(pred)), nil
}

// Trace exposes the estimator's error trace.
func (k *KNN) Trace() *mlearn.ErrorTrace { return &k.trace }
