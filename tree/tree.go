// Package tree grows binary classification trees by impurity-minimising
// splits over sorted feature slices. Nodes live in a single growing arena and
// address their children by index, so the structure has no pointer cycles
// and a node's sample range is a contiguous slice of the shared permutation
// buffer.
package tree

import (
	"math"
	"math/rand"

	"github.com/HazelnutParadise/mlearn"
	"github.com/HazelnutParadise/mlearn/internal/algorithms"
)

// BuildOrder selects the node-expansion order.
type BuildOrder int

const (
	// DepthFirst pops the newest enqueued node (LIFO).
	DepthFirst BuildOrder = iota
	// BreadthFirst pops the oldest enqueued node (FIFO).
	BreadthFirst
)

// Params holds the tree growth controls.
type Params struct {
	Criterion Criterion
	// MaxDepth counts split levels below the root: 1 allows a single split.
	MaxDepth int
	// MinNodeSample is the smallest child worth enqueuing for further splits.
	MinNodeSample int
	// MinSplitScore: children at or below this impurity become leaves.
	MinSplitScore float64
	// MinImprovement is the least weighted-impurity gain a split must bring.
	MinImprovement float64
	// FeatThresh skips candidate split points whose feature-value gap is
	// below this threshold.
	FeatThresh float64
	// MaxFeatures caps the features considered per node; zero means all.
	MaxFeatures int
	Order       BuildOrder
	// Seed of the per-tree generator; -1 draws from the entropy source.
	Seed int64
	// Bootstrap resamples the training set with replacement.
	Bootstrap bool
}

// DefaultParams mirrors the registry defaults of the learner.
func DefaultParams() Params {
	return Params{
		Criterion:      Gini,
		MaxDepth:       29,
		MinNodeSample:  2,
		MinSplitScore:  0,
		MinImprovement: 0.03,
		FeatThresh:     1e-6,
		MaxFeatures:    0,
		Order:          DepthFirst,
		Seed:           -1,
	}
}

// node is one arena entry. start/end are inclusive bounds into samplesIdx.
type node struct {
	isLeaf    bool
	feature   int
	threshold float64
	left      int
	right     int
	depth     int
	score     float64
	yPred     int
	start     int
	end       int
	nSamples  int
	counts    []int
}

type split struct {
	score      float64
	featIdx    int
	sampIdx    int
	threshold  float64
	leftScore  float64
	rightScore float64
}

// Tree is a single decision-tree classifier.
type Tree struct {
	params Params
	trace  mlearn.ErrorTrace

	X         *mlearn.Matrix
	y         []int
	nSamples  int
	nFeatures int
	nClass    int
	// nObs is the effective sample count; under a forest bootstrap factor it
	// can be smaller than nSamples.
	nObs int

	seed    int64
	rng     *rand.Rand
	trained bool
	depth   int

	nodes  []node
	nNodes int

	samplesIdx    []int
	featureValues []float64
	featuresIdx   []int
	countClasses  []int
	countLeft     []int
	countRight    []int
	nodesToTreat  []int

	scoreFn scoreFunc
}

// New returns a tree configured with the given parameters.
func New(params Params) *Tree {
	return &Tree{params: params}
}

// SetData validates and stores the training set. nClass of zero means
// derive it from the labels; nObs of zero means use every sample.
func (t *Tree) SetData(X *mlearn.Matrix, y []int, nClass, nObs int) error {
	t.trace.Reset()
	if X == nil || y == nil {
		return t.trace.Errorf(mlearn.StatusInvalidPointer, "tree.SetData: X and y must not be nil.")
	}
	n, p := X.Dims()
	if len(y) != n {
		return t.trace.Errorf(mlearn.StatusInvalidArrayDimension, "tree.SetData: y has length %d, expected %d.", len(y), n)
	}
	if nObs > n || nObs < 0 {
		return t.trace.Errorf(mlearn.StatusInvalidInput, "tree.SetData: nObs = %d must be between 0 and %d.", nObs, n)
	}
	t.X = X
	t.y = y
	t.nSamples = n
	t.nFeatures = p
	t.nClass = nClass
	if t.nClass <= 0 {
		_, t.nClass = mlearn.IntLabels(y)
	}
	t.nObs = nObs
	if t.nObs == 0 {
		t.nObs = n
	}
	t.trained = false
	t.nodes = nil

	t.samplesIdx = make([]int, t.nObs)
	t.featureValues = make([]float64, t.nObs)
	t.countClasses = make([]int, t.nClass)
	t.countLeft = make([]int, t.nClass)
	t.countRight = make([]int, t.nClass)
	t.featuresIdx = make([]int, t.nFeatures)
	for i := range t.featuresIdx {
		t.featuresIdx[i] = i
	}
	return nil
}

func (t *Tree) countClassOccurrences(counts []int, start, end int) {
	for i := range counts {
		counts[i] = 0
	}
	for i := start; i <= end; i++ {
		counts[t.y[t.samplesIdx[i]]]++
	}
}

// sortSamples orders the node's slice of samplesIdx by one feature and
// mirrors the sorted values into featureValues.
func (t *Tree) sortSamples(nd *node, featIdx int) {
	slice := t.samplesIdx[nd.start : nd.end+1]
	algorithms.SortIndicesByKey(slice, func(i int) float64 {
		return t.X.At(i, featIdx)
	})
	for i := nd.start; i <= nd.end; i++ {
		t.featureValues[i] = t.X.At(t.samplesIdx[i], featIdx)
	}
}

// addNode appends a child covering one side of the parent's split point and
// stamps its majority class.
func (t *Tree) addNode(parentIdx int, isLeft bool, score float64, splitIdx int) {
	if len(t.nodes) <= t.nNodes {
		grown := make([]node, 2*len(t.nodes)+1)
		copy(grown, t.nodes)
		t.nodes = grown
	}
	nd := &t.nodes[t.nNodes]
	parent := &t.nodes[parentIdx]
	if isLeft {
		parent.left = t.nNodes
		nd.start = parent.start
		nd.end = splitIdx
	} else {
		parent.right = t.nNodes
		nd.start = splitIdx + 1
		nd.end = parent.end
	}
	nd.isLeaf = true
	nd.depth = parent.depth + 1
	if nd.depth > t.depth {
		t.depth = nd.depth
	}
	nd.score = score
	nd.nSamples = nd.end - nd.start + 1
	t.countClassOccurrences(t.countClasses, nd.start, nd.end)
	nd.counts = append([]int(nil), t.countClasses...)
	nd.yPred = argmaxCounts(t.countClasses)
	t.nNodes++
}

func argmaxCounts(counts []int) int {
	best, bestIdx := counts[0], 0
	for c := 1; c < len(counts); c++ {
		if counts[c] > best {
			best = counts[c]
			bestIdx = c
		}
	}
	return bestIdx
}

func (t *Tree) nextNodeIdx() int {
	var idx int
	switch t.params.Order {
	case BreadthFirst:
		idx = t.nodesToTreat[0]
		t.nodesToTreat = t.nodesToTreat[1:]
	default:
		idx = t.nodesToTreat[len(t.nodesToTreat)-1]
		t.nodesToTreat = t.nodesToTreat[:len(t.nodesToTreat)-1]
	}
	return idx
}

// findBestSplit walks the sorted slice left to right, moving samples across
// the class-count triplet and scoring each admissible split point. Split
// points whose feature-value gap is below FeatThresh are skipped, and a
// split is kept only when its weighted score beats both the parent and the
// improvement bound.
func (t *Tree) findBestSplit(nd *node, maximumSplitScore float64, sp *split) {
	copy(t.countRight, t.countClasses)
	for i := range t.countLeft {
		t.countLeft[i] = 0
	}
	nsLeft, nsRight := 0, nd.nSamples
	sp.score = nd.score
	sp.sampIdx = -1

	sidx := nd.start
	for sidx <= nd.end-1 {
		c := t.y[t.samplesIdx[sidx]]
		t.countLeft[c]++
		t.countRight[c]--
		nsLeft++
		nsRight--

		for sidx+1 <= nd.end && math.Abs(t.featureValues[sidx+1]-t.featureValues[sidx]) < t.params.FeatThresh {
			c = t.y[t.samplesIdx[sidx+1]]
			t.countLeft[c]++
			t.countRight[c]--
			nsLeft++
			nsRight--
			sidx++
		}
		if sidx == nd.end {
			// All samples fell into the left child; not a split.
			break
		}

		leftScore := t.scoreFn(nsLeft, t.countLeft)
		rightScore := t.scoreFn(nsRight, t.countRight)
		splitScore := (leftScore*float64(nsLeft) + rightScore*float64(nsRight)) / float64(nd.nSamples)
		if splitScore < sp.score && splitScore < maximumSplitScore {
			sp.score = splitScore
			sp.sampIdx = sidx
			sp.threshold = (t.featureValues[sidx] + t.featureValues[sidx+1]) / 2
			sp.leftScore = leftScore
			sp.rightScore = rightScore
		}
		sidx++
	}
}

// Fit grows the tree. The expansion loop pops nodes off the deque, samples
// candidate features, sorts the node's slice per feature and keeps the best
// admissible split.
func (t *Tree) Fit() error {
	if t.X == nil {
		return t.trace.Errorf(mlearn.StatusNoData, "tree.Fit: no data has been passed, call SetData first.")
	}
	if t.trained {
		return nil
	}
	t.scoreFn = t.params.Criterion.fn()
	nfeatSplit := t.params.MaxFeatures
	if nfeatSplit <= 0 || nfeatSplit > t.nFeatures {
		nfeatSplit = t.nFeatures
	}
	t.seed = mlearn.ResolveSeed(t.params.Seed)
	t.rng = rand.New(rand.NewSource(t.seed))

	// Initial arena capacity is 2^min(MaxDepth, 9) + 1 nodes; addNode grows
	// it on demand.
	initDepth := t.params.MaxDepth
	if initDepth > 9 {
		initDepth = 9
	}
	t.nodes = make([]node, (1<<uint(initDepth))+1)
	t.depth = 0

	if !t.params.Bootstrap {
		for i := range t.samplesIdx {
			t.samplesIdx[i] = i
		}
	} else {
		for i := range t.samplesIdx {
			t.samplesIdx[i] = t.rng.Intn(t.nSamples)
		}
	}

	t.nNodes = 1
	root := &t.nodes[0]
	root.isLeaf = true
	root.start = 0
	root.end = t.nObs - 1
	root.depth = 0
	root.nSamples = t.nObs
	t.countClassOccurrences(t.countClasses, 0, t.nObs-1)
	root.counts = append([]int(nil), t.countClasses...)
	root.score = t.scoreFn(t.nObs, t.countClasses)
	root.yPred = argmaxCounts(t.countClasses)

	t.nodesToTreat = t.nodesToTreat[:0]
	if t.params.MaxDepth >= 1 && root.nSamples >= t.params.MinNodeSample && root.score > t.params.MinSplitScore {
		t.nodesToTreat = append(t.nodesToTreat, 0)
	}

	var sp, best split
	for len(t.nodesToTreat) > 0 {
		nodeIdx := t.nextNodeIdx()
		current := &t.nodes[nodeIdx]
		maximumSplitScore := current.score - t.params.MinImprovement

		if nfeatSplit < t.nFeatures {
			t.rng.Shuffle(len(t.featuresIdx), func(i, j int) {
				t.featuresIdx[i], t.featuresIdx[j] = t.featuresIdx[j], t.featuresIdx[i]
			})
		}
		best.score = current.score
		best.featIdx = -1
		t.countClassOccurrences(t.countClasses, current.start, current.end)
		for j := 0; j < nfeatSplit; j++ {
			featIdx := t.featuresIdx[j]
			t.sortSamples(current, featIdx)
			sp.featIdx = featIdx
			t.findBestSplit(current, maximumSplitScore, &sp)
			if sp.sampIdx >= 0 && sp.score < best.score {
				best = sp
			}
		}

		if best.featIdx != -1 {
			current.isLeaf = false
			current.feature = best.featIdx
			current.threshold = best.threshold
			// Re-sort by the winning feature so the children's slice bounds
			// line up with the recorded split point.
			t.sortSamples(current, current.feature)

			t.addNode(nodeIdx, false, best.rightScore, best.sampIdx)
			if best.rightScore > t.params.MinSplitScore &&
				t.nodes[t.nNodes-1].nSamples >= t.params.MinNodeSample &&
				t.nodes[t.nNodes-1].depth < t.params.MaxDepth {
				t.nodesToTreat = append(t.nodesToTreat, t.nNodes-1)
			}
			t.addNode(nodeIdx, true, best.leftScore, best.sampIdx)
			if best.leftScore > t.params.MinSplitScore &&
				t.nodes[t.nNodes-1].nSamples >= t.params.MinNodeSample &&
				t.nodes[t.nNodes-1].depth < t.params.MaxDepth {
				t.nodesToTreat = append(t.nodesToTreat, t.nNodes-1)
			}
		}
	}

	t.trained = true
	return nil
}

// walk descends from the root until a leaf: strict less-than goes left.
func (t *Tree) walk(x func(feature int) float64) *node {
	nd := &t.nodes[0]
	for !nd.isLeaf {
		if x(nd.feature) < nd.threshold {
			nd = &t.nodes[nd.left]
		} else {
			nd = &t.nodes[nd.right]
		}
	}
	return nd
}

func (t *Tree) checkPredict(Xtest *mlearn.Matrix) error {
	if !t.trained {
		return t.trace.Errorf(mlearn.StatusOutOfDate, "tree: the model has not been trained or is out of date.")
	}
	if Xtest == nil {
		return t.trace.Errorf(mlearn.StatusInvalidPointer, "tree: test matrix is nil.")
	}
	if _, p := Xtest.Dims(); p != t.nFeatures {
		return t.trace.Errorf(mlearn.StatusInvalidArrayDimension,
			"tree: test data has %d features, expected %d.", p, t.nFeatures)
	}
	return nil
}

// Predict returns the majority class stored at the reached leaf for every
// test sample.
func (t *Tree) Predict(Xtest *mlearn.Matrix) ([]int, error) {
	if err := t.checkPredict(Xtest); err != nil {
		return nil, err
	}
	m, _ := Xtest.Dims()
	out := make([]int, m)
	for i := 0; i < m; i++ {
		row := Xtest.RawRow(i)
		out[i] = t.walk(func(f int) float64 { return row[f] }).yPred
	}
	return out, nil
}

// PredictInto writes predictions for the samples Xtest[offset:offset+len(out)]
// into out. It is the allocation-free path used by the forest's blocked
// prediction.
func (t *Tree) PredictInto(Xtest *mlearn.Matrix, offset int, out []int) {
	for i := range out {
		row := Xtest.RawRow(offset + i)
		out[i] = t.walk(func(f int) float64 { return row[f] }).yPred
	}
}

// PredictProba returns the normalised class counts of the reached leaf.
func (t *Tree) PredictProba(Xtest *mlearn.Matrix) ([][]float64, error) {
	if err := t.checkPredict(Xtest); err != nil {
		return nil, err
	}
	m, _ := Xtest.Dims()
	out := make([][]float64, m)
	for i := 0; i < m; i++ {
		row := Xtest.RawRow(i)
		nd := t.walk(func(f int) float64 { return row[f] })
		probs := make([]float64, t.nClass)
		for c, count := range nd.counts {
			probs[c] = float64(count) / float64(nd.nSamples)
		}
		out[i] = probs
	}
	return out, nil
}

// PredictLogProba is the elementwise logarithm of PredictProba, with -Inf
// for zero probabilities.
func (t *Tree) PredictLogProba(Xtest *mlearn.Matrix) ([][]float64, error) {
	probs, err := t.PredictProba(Xtest)
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
func (t *Tree) Score(Xtest *mlearn.Matrix, yTest []int) (float64, error) {
	pred, err := t.Predict(Xtest)
	if err != nil {
		return 0, err
	}
	if len(yTest) != len(pred) {
		return 0, t.trace.Errorf(mlearn.StatusInvalidArrayDimension,
			"tree.Score: y has length %d, expected %d.", len(yTest), len(pred))
	}
	correct := 0
	for i := range pred {
		if pred[i] == yTest[i] {
			correct++
		}
	}
	return float64(correct) / float64(len(pred)), nil
}

// Depth returns the maximum node depth reached (root is depth zero).
func (t *Tree) Depth() int { return t.depth }

// NNodes returns the number of allocated nodes.
func (t *Tree) NNodes() int { return t.nNodes }

// Seed returns the seed actually used by the per-tree generator.
func (t *Tree) Seed() int64 { return t.seed }

// Trained reports whether Fit has completed.
func (t *Tree) Trained() bool { return t.trained }

// NClass returns the number of classes.
func (t *Tree) NClass() int { return t.nClass }

// Trace exposes the estimator's error trace.
func (t *Tree) Trace() *mlearn.ErrorTrace { return &t.trace }

// Info returns the estimator info vector.
func (t *Tree) Info() map[string]any {
	return map[string]any{
		"n_features": t.nFeatures,
		"n_samples":  t.nSamples,
		"n_obs":      t.nObs,
		"seed":       t.seed,
		"depth":      t.depth,
	}
}

// root accessors used by the invariant tests.

// SamplesIdx exposes the sample permutation buffer.
func (t *Tree) SamplesIdx() []int { return t.samplesIdx }

// NodeRange returns (start, end, left, right, leaf) for node i.
func (t *Tree) NodeRange(i int) (start, end, left, right int, leaf bool) {
	nd := &t.nodes[i]
	return nd.start, nd.end, nd.left, nd.right, nd.isLeaf
}

// RootSplit returns the root's split feature and threshold.
func (t *Tree) RootSplit() (feature int, threshold float64) {
	return t.nodes[0].feature, t.nodes[0].threshold
}
