package cluster

import (
	"math"
	"math/rand"

	"github.com/HazelnutParadise/mlearn"
	"github.com/HazelnutParadise/mlearn/parallel"
	"gonum.org/v1/gonum/mat"
)

// KMeansInit selects the centre initialisation.
type KMeansInit int

const (
	// KMeansPlusPlus spreads the initial centres by squared-distance
	// sampling.
	KMeansPlusPlus KMeansInit = iota
	// KMeansRandom picks uniform random samples as initial centres.
	KMeansRandom
)

// KMeansParams holds the Lloyd-iteration controls.
type KMeansParams struct {
	NClusters int
	MaxIter   int
	// Tol stops iterating once the total centre shift drops below it.
	Tol  float64
	Init KMeansInit
	Seed int64
	// BlockSize partitions the assignment pass; zero picks the default.
	BlockSize int
}

// DefaultKMeansParams mirrors the registry defaults.
func DefaultKMeansParams() KMeansParams {
	return KMeansParams{NClusters: 8, MaxIter: 300, Tol: 1e-4, Init: KMeansPlusPlus, Seed: -1}
}

const kmeansDefaultBlockSize = 256

// KMeans is the Lloyd-iteration clusterer.
type KMeans struct {
	params KMeansParams
	trace  mlearn.ErrorTrace

	X    *mlearn.Matrix
	n, p int

	centres  *mat.Dense
	labels   []int
	inertia  float64
	nIter    int
	seed     int64
	computed bool
}

// NewKMeans returns a k-means clusterer.
func NewKMeans(params KMeansParams) *KMeans {
	return &KMeans{params: params}
}

// SetData validates and stores the input matrix.
func (k *KMeans) SetData(X *mlearn.Matrix) error {
	k.trace.Reset()
	if X == nil {
		return k.trace.Errorf(mlearn.StatusInvalidPointer, "cluster.KMeans.SetData: X must not be nil.")
	}
	k.X = X
	k.n, k.p = X.Dims()
	k.computed = false
	return nil
}

func sqDist(a, b []float64) float64 {
	sum := 0.0
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return sum
}

// initCentres seeds the centre matrix.
func (k *KMeans) initCentres(rng *rand.Rand) {
	k.centres = mat.NewDense(k.params.NClusters, k.p, nil)
	switch k.params.Init {
	case KMeansRandom:
		for c := 0; c < k.params.NClusters; c++ {
			k.centres.SetRow(c, k.X.RawRow(rng.Intn(k.n)))
		}
	default:
		// k-means++: each next centre is drawn proportionally to the squared
		// distance from the nearest chosen centre.
		first := rng.Intn(k.n)
		k.centres.SetRow(0, k.X.RawRow(first))
		minDist := make([]float64, k.n)
		for i := range minDist {
			minDist[i] = sqDist(k.X.RawRow(i), k.centres.RawRowView(0))
		}
		for c := 1; c < k.params.NClusters; c++ {
			total := 0.0
			for _, d := range minDist {
				total += d
			}
			var chosen int
			if total == 0 {
				chosen = rng.Intn(k.n)
			} else {
				target := rng.Float64() * total
				acc := 0.0
				chosen = k.n - 1
				for i, d := range minDist {
					acc += d
					if acc >= target {
						chosen = i
						break
					}
				}
			}
			k.centres.SetRow(c, k.X.RawRow(chosen))
			for i := range minDist {
				if d := sqDist(k.X.RawRow(i), k.centres.RawRowView(c)); d < minDist[i] {
					minDist[i] = d
				}
			}
		}
	}
}

// assignBlocks runs the assignment pass over sample blocks in parallel;
// each task owns a disjoint slice of the label array.
func (k *KMeans) assignBlocks(labels []int, dist []float64) {
	blockSize := k.params.BlockSize
	if blockSize <= 0 {
		blockSize = kmeansDefaultBlockSize
	}
	if blockSize > k.n {
		blockSize = k.n
	}
	nBlocks := (k.n + blockSize - 1) / blockSize
	parallel.ForEach(nBlocks, mlearn.Config.GetNumWorkers(), func(b int) {
		start := b * blockSize
		end := start + blockSize
		if end > k.n {
			end = k.n
		}
		for i := start; i < end; i++ {
			row := k.X.RawRow(i)
			best, bestC := math.MaxFloat64, 0
			for c := 0; c < k.params.NClusters; c++ {
				if d := sqDist(row, k.centres.RawRowView(c)); d < best {
					best = d
					bestC = c
				}
			}
			labels[i] = bestC
			dist[i] = best
		}
	})
}

// Compute runs Lloyd iterations to convergence or the iteration cap.
func (k *KMeans) Compute() error {
	if k.X == nil {
		return k.trace.Errorf(mlearn.StatusNoData, "cluster.KMeans.Compute: no data has been passed, call SetData first.")
	}
	if k.params.NClusters < 1 || k.params.NClusters > k.n {
		return k.trace.Errorf(mlearn.StatusInvalidOption,
			"cluster.KMeans.Compute: n clusters = %d must be between 1 and %d.", k.params.NClusters, k.n)
	}
	k.seed = mlearn.ResolveSeed(k.params.Seed)
	rng := rand.New(rand.NewSource(k.seed))
	k.initCentres(rng)

	k.labels = make([]int, k.n)
	dist := make([]float64, k.n)
	sums := mat.NewDense(k.params.NClusters, k.p, nil)
	counts := make([]int, k.params.NClusters)
	for k.nIter = 0; k.nIter < k.params.MaxIter; k.nIter++ {
		k.assignBlocks(k.labels, dist)

		sums.Zero()
		for c := range counts {
			counts[c] = 0
		}
		for i := 0; i < k.n; i++ {
			c := k.labels[i]
			counts[c]++
			row := k.X.RawRow(i)
			dst := sums.RawRowView(c)
			for j := range dst {
				dst[j] += row[j]
			}
		}
		shift := 0.0
		for c := 0; c < k.params.NClusters; c++ {
			if counts[c] == 0 {
				// An emptied cluster re-seeds from the worst-assigned sample.
				worst, worstIdx := -1.0, 0
				for i, d := range dist {
					if d > worst {
						worst = d
						worstIdx = i
					}
				}
				k.centres.SetRow(c, k.X.RawRow(worstIdx))
				continue
			}
			dst := sums.RawRowView(c)
			old := k.centres.RawRowView(c)
			for j := range dst {
				dst[j] /= float64(counts[c])
				diff := dst[j] - old[j]
				shift += diff * diff
			}
			k.centres.SetRow(c, dst)
		}
		if shift < k.params.Tol*k.params.Tol {
			k.nIter++
			break
		}
	}
	k.assignBlocks(k.labels, dist)
	k.inertia = 0
	for _, d := range dist {
		k.inertia += d
	}
	k.computed = true
	return nil
}

// Predict assigns new samples to the nearest centre.
func (k *KMeans) Predict(Xq *mlearn.Matrix) ([]int, error) {
	if !k.computed {
		return nil, k.trace.Errorf(mlearn.StatusOutOfDate, "cluster.KMeans: the model has not been computed yet.")
	}
	m, p := Xq.Dims()
	if p != k.p {
		return nil, k.trace.Errorf(mlearn.StatusInvalidArrayDimension,
			"cluster.KMeans.Predict: data has %d features, expected %d.", p, k.p)
	}
	out := make([]int, m)
	for i := 0; i < m; i++ {
		row := Xq.RawRow(i)
		best, bestC := math.MaxFloat64, 0
		for c := 0; c < k.params.NClusters; c++ {
			if d := sqDist(row, k.centres.RawRowView(c)); d < best {
				best = d
				bestC = c
			}
		}
		out[i] = bestC
	}
	return out, nil
}

// Transform returns the distance of every sample to every centre.
func (k *KMeans) Transform(Xq *mlearn.Matrix) (*mat.Dense, error) {
	if !k.computed {
		return nil, k.trace.Errorf(mlearn.StatusOutOfDate, "cluster.KMeans: the model has not been computed yet.")
	}
	m, p := Xq.Dims()
	if p != k.p {
		return nil, k.trace.Errorf(mlearn.StatusInvalidArrayDimension,
			"cluster.KMeans.Transform: data has %d features, expected %d.", p, k.p)
	}
	out := mat.NewDense(m, k.params.NClusters, nil)
	for i := 0; i < m; i++ {
		row := Xq.RawRow(i)
		for c := 0; c < k.params.NClusters; c++ {
			out.Set(i, c, math.Sqrt(sqDist(row, k.centres.RawRowView(c))))
		}
	}
	return out, nil
}

// Labels returns the per-sample cluster assignment.
func (k *KMeans) Labels() []int { return append([]int(nil), k.labels...) }

// Centres returns the fitted cluster centres.
func (k *KMeans) Centres() *mat.Dense { return k.centres }

// Inertia returns the within-cluster sum of squared distances.
func (k *KMeans) Inertia() float64 { return k.inertia }

// NIter returns the number of Lloyd iterations run.
func (k *KMeans) NIter() int { return k.nIter }

// Trace exposes the estimator's error trace.
func (k *KMeans) Trace() *mlearn.ErrorTrace { return &k.trace }
