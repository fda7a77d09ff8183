// Package forest trains ensembles of decision trees in parallel and
// aggregates their votes through blocked, atomically accumulated class
// counts.
package forest

import (
	"math"
	"math/rand"
	"sync/atomic"

	"github.com/HazelnutParadise/mlearn"
	"github.com/HazelnutParadise/mlearn/parallel"
	"github.com/HazelnutParadise/mlearn/tree"
)

// FeatureSelection picks how many features each node considers.
type FeatureSelection int

const (
	FeaturesAll FeatureSelection = iota
	FeaturesSqrt
	FeaturesLog2
	FeaturesCustom
)

// Params holds the forest controls on top of the per-tree growth controls.
type Params struct {
	Tree   tree.Params
	NTrees int
	// Bootstrap resamples each tree's training set with replacement.
	Bootstrap bool
	// BootstrapFactor rho scales the effective per-tree sample count to
	// max(1, round(rho*n)) when below one.
	BootstrapFactor float64
	Features        FeatureSelection
	// CustomFeatures is the per-node feature count under FeaturesCustom.
	CustomFeatures int
	// BlockSize partitions prediction samples; zero picks the default.
	BlockSize int
	// Seed feeds the deterministic per-tree seed generator; -1 draws from
	// the entropy source.
	Seed int64
}

// DefaultParams mirrors the registry defaults of the driver.
func DefaultParams() Params {
	p := Params{
		Tree:            tree.DefaultParams(),
		NTrees:          100,
		Bootstrap:       true,
		BootstrapFactor: 0.8,
		Features:        FeaturesSqrt,
		BlockSize:       0,
		Seed:            -1,
	}
	return p
}

// defaultBlockSize bounds one prediction work unit.
const defaultBlockSize = 256

// Forest is a random-forest classifier.
type Forest struct {
	params Params
	trace  mlearn.ErrorTrace

	X         *mlearn.Matrix
	y         []int
	nSamples  int
	nFeatures int
	nClass    int
	nObs      int

	seed    int64
	trees   []*tree.Tree
	trained bool
}

// New returns a forest configured with the given parameters.
func New(params Params) *Forest {
	return &Forest{params: params}
}

// SetData validates and stores the training set.
func (f *Forest) SetData(X *mlearn.Matrix, y []int) error {
	f.trace.Reset()
	if X == nil || y == nil {
		return f.trace.Errorf(mlearn.StatusInvalidPointer, "forest.SetData: X and y must not be nil.")
	}
	n, p := X.Dims()
	if len(y) != n {
		return f.trace.Errorf(mlearn.StatusInvalidArrayDimension, "forest.SetData: y has length %d, expected %d.", len(y), n)
	}
	f.X = X
	f.y = y
	f.nSamples = n
	f.nFeatures = p
	_, f.nClass = mlearn.IntLabels(y)
	f.trained = false
	return nil
}

func (f *Forest) featuresPerNode() int {
	switch f.params.Features {
	case FeaturesSqrt:
		return int(math.Max(1, math.Round(math.Sqrt(float64(f.nFeatures)))))
	case FeaturesLog2:
		return int(math.Max(1, math.Round(math.Log2(float64(f.nFeatures)))))
	case FeaturesCustom:
		if f.params.CustomFeatures > 0 {
			return f.params.CustomFeatures
		}
		return f.nFeatures
	default:
		return f.nFeatures
	}
}

// Fit seeds every tree deterministically before the parallel region starts,
// so the result does not depend on how many workers run, then trains the
// trees over the bounded pool. Per-tree allocation failures are counted
// atomically and reported as one aggregate internal error.
func (f *Forest) Fit() error {
	if f.X == nil {
		return f.trace.Errorf(mlearn.StatusNoData, "forest.Fit: no data has been passed, call SetData first.")
	}
	if f.params.NTrees < 1 {
		return f.trace.Errorf(mlearn.StatusInvalidOption, "forest.Fit: number of trees must be at least 1.")
	}
	f.seed = mlearn.ResolveSeed(f.params.Seed)
	rng := rand.New(rand.NewSource(f.seed))
	seedTree := make([]int64, f.params.NTrees)
	for i := range seedTree {
		seedTree[i] = rng.Int63()
	}

	f.nObs = f.nSamples
	if f.params.Bootstrap && f.params.BootstrapFactor > 0 && f.params.BootstrapFactor < 1 {
		f.nObs = int(math.Max(1, math.Round(f.params.BootstrapFactor*float64(f.nSamples))))
	}

	treeParams := f.params.Tree
	treeParams.Bootstrap = f.params.Bootstrap
	treeParams.MaxFeatures = f.featuresPerNode()

	f.trees = make([]*tree.Tree, f.params.NTrees)
	var nFailures int64
	parallel.ForEach(f.params.NTrees, mlearn.Config.GetNumWorkers(), func(i int) {
		defer func() {
			if r := recover(); r != nil {
				atomic.AddInt64(&nFailures, 1)
			}
		}()
		p := treeParams
		p.Seed = seedTree[i]
		tr := tree.New(p)
		if err := tr.SetData(f.X, f.y, f.nClass, f.nObs); err != nil {
			atomic.AddInt64(&nFailures, 1)
			return
		}
		if err := tr.Fit(); err != nil {
			atomic.AddInt64(&nFailures, 1)
			return
		}
		f.trees[i] = tr
	})
	if nFailures > 0 {
		return f.trace.Errorf(mlearn.StatusInternalError,
			"forest.Fit: %d trees failed to train.", nFailures)
	}
	f.trained = true
	return nil
}

// countVotes runs the blocked parallel aggregation: every (block, tree)
// pair is one task predicting its block into a task-private buffer, then
// adding into the shared class-count matrix with per-cell atomic adds.
func (f *Forest) countVotes(Xtest *mlearn.Matrix) []int64 {
	m, _ := Xtest.Dims()
	blockSize := f.params.BlockSize
	if blockSize <= 0 {
		blockSize = defaultBlockSize
	}
	if blockSize > m {
		blockSize = m
	}
	nBlocks := (m + blockSize - 1) / blockSize

	counts := make([]int64, f.nClass*m)
	nTrees := len(f.trees)
	parallel.ForEach(nBlocks*nTrees, mlearn.Config.GetNumWorkers(), func(task int) {
		iBlock := task / nTrees
		iTree := task % nTrees
		start := iBlock * blockSize
		nElem := blockSize
		if start+nElem > m {
			nElem = m - start
		}
		yPredTree := make([]int, nElem)
		f.trees[iTree].PredictInto(Xtest, start, yPredTree)
		for i, c := range yPredTree {
			atomic.AddInt64(&counts[(start+i)*f.nClass+c], 1)
		}
	})
	return counts
}

func (f *Forest) checkPredict(Xtest *mlearn.Matrix) error {
	if !f.trained {
		return f.trace.Errorf(mlearn.StatusOutOfDate, "forest: the model has not been trained or is out of date.")
	}
	if Xtest == nil {
		return f.trace.Errorf(mlearn.StatusInvalidPointer, "forest: test matrix is nil.")
	}
	if _, p := Xtest.Dims(); p != f.nFeatures {
		return f.trace.Errorf(mlearn.StatusInvalidArrayDimension,
			"forest: test data has %d features, expected %d.", p, f.nFeatures)
	}
	return nil
}

// Predict returns the majority vote per sample; ties break towards the
// smallest class index.
func (f *Forest) Predict(Xtest *mlearn.Matrix) ([]int, error) {
	if err := f.checkPredict(Xtest); err != nil {
		return nil, err
	}
	counts := f.countVotes(Xtest)
	m, _ := Xtest.Dims()
	out := make([]int, m)
	for i := 0; i < m; i++ {
		best, bestClass := int64(-1), 0
		for c := 0; c < f.nClass; c++ {
			if counts[i*f.nClass+c] > best {
				best = counts[i*f.nClass+c]
				bestClass = c
			}
		}
		out[i] = bestClass
	}
	return out, nil
}

// PredictProba returns per-class vote fractions, renormalised so every row
// sums to one.
func (f *Forest) PredictProba(Xtest *mlearn.Matrix) ([][]float64, error) {
	if err := f.checkPredict(Xtest); err != nil {
		return nil, err
	}
	counts := f.countVotes(Xtest)
	m, _ := Xtest.Dims()
	nTrees := float64(len(f.trees))
	out := make([][]float64, m)
	for i := 0; i < m; i++ {
		row := make([]float64, f.nClass)
		sum := 0.0
		for c := 0; c < f.nClass; c++ {
			row[c] = float64(counts[i*f.nClass+c]) / nTrees
			sum += row[c]
		}
		if sum > 0 {
			for c := range row {
				row[c] /= sum
			}
		}
		out[i] = row
	}
	return out, nil
}

// PredictLogProba is the elementwise logarithm of PredictProba.
func (f *Forest) PredictLogProba(Xtest *mlearn.Matrix) ([][]float64, error) {
	probs, err := f.PredictProba(Xtest)
	if err != nil {
		return nil, err
	}
	for _, row := range probs {
		for j, p := range row {
			row[j] = math.Log(p)
		}
	}
	return probs, nil
}

// Score returns the mean accuracy on the given test set.
func (f *Forest) Score(Xtest *mlearn.Matrix, yTest []int) (float64, error) {
	pred, err := f.Predict(Xtest)
	if err != nil {
		return 0, err
	}
	if len(yTest) != len(pred) {
		return 0, f.trace.Errorf(mlearn.StatusInvalidArrayDimension,
			"forest.Score: y has length %d, expected %d.", len(yTest), len(pred))
	}
	correct := 0
	for i := range pred {
		if pred[i] == yTest[i] {
			correct++
		}
	}
	return float64(correct) / float64(len(pred)), nil
}

// NTrees returns the number of trained trees.
func (f *Forest) NTrees() int { return len(f.trees) }

// Seed returns the forest seed actually used.
func (f *Forest) Seed() int64 { return f.seed }

// NObs returns the effective per-tree sample count.
func (f *Forest) NObs() int { return f.nObs }

// Tree returns the i-th trained tree.
func (f *Forest) Tree(i int) *tree.Tree { return f.trees[i] }

// Trace exposes the estimator's error trace.
func (f *Forest) Trace() *mlearn.ErrorTrace { return &f.trace }

// Info returns the estimator info vector.
func (f *Forest) Info() map[string]any {
	return map[string]any{
		"n_features": f.nFeatures,
		"n_samples":  f.nSamples,
		"n_obs":      f.nObs,
		"seed":       f.seed,
		"n_trees":    len(f.trees),
	}
}
