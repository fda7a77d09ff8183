package svm

import (
	"math"

	"github.com/HazelnutParadise/mlearn"
	"github.com/HazelnutParadise/mlearn/kernel"
	"github.com/HazelnutParadise/mlearn/stats"
	"gonum.org/v1/gonum/mat"
)

// SVM is the user-facing estimator. For K > 2 classes it trains
// K(K-1)/2 one-versus-one binary sub-problems in lexicographic order and
// reconciles their support vectors into the LibSVM result layout.
type SVM struct {
	model  Model
	params Params
	trace  mlearn.ErrorTrace

	X      *mlearn.Matrix
	y      []float64
	labels []int
	n, p   int

	nClass       int
	nClassifiers int
	multiclass   bool
	classifiers  []*solver

	loaded   bool
	computed bool

	gammaUsed   float64
	nSV         int
	nSVPerClass []int
	supportIdx  []int
	dualCoef    *mat.Dense
	biases      []float64
	iterations  []int
}

// New returns an estimator for the given formulation.
func New(model Model, params Params) *SVM {
	return &SVM{model: model, params: params}
}

// SetData validates and stores the training data. Classification targets
// must be whole numbers 0..K-1; the multiclass sub-problem slices are
// materialised here so Fit can run each pair independently.
func (m *SVM) SetData(X *mlearn.Matrix, y []float64) error {
	m.trace.Reset()
	if X == nil || y == nil {
		return m.trace.Errorf(mlearn.StatusInvalidPointer, "svm.SetData: X and y must not be nil.")
	}
	n, p := X.Dims()
	if len(y) != n {
		return m.trace.Errorf(mlearn.StatusInvalidArrayDimension, "svm.SetData: y has length %d, expected %d.", len(y), n)
	}
	m.X = X
	m.y = y
	m.n, m.p = n, p
	m.computed = false
	m.classifiers = nil
	m.multiclass = false

	if m.model.isClassifier() {
		labels, k, err := mlearn.ValidateLabels(y)
		if err != nil {
			return m.trace.Errorf(mlearn.StatusInvalidInput, "svm.SetData: labels must be whole numbers from 0 to K-1.")
		}
		if k < 2 {
			return m.trace.Errorf(mlearn.StatusInvalidInput, "svm.SetData: number of classes must be at least 2.")
		}
		m.labels = labels
		m.nClass = k
		m.nClassifiers = k * (k - 1) / 2
		m.multiclass = k > 2
	} else {
		m.nClass = 2
		m.nClassifiers = 1
	}

	if m.multiclass {
		// Sub-problem layout is 0v1, 0v2, ..., 0v(K-1), 1v2, 1v3, ...
		for i := 0; i < m.nClass; i++ {
			for j := i + 1; j < m.nClass; j++ {
				var idxClass []int
				var idxIsPos []bool
				var ySub []float64
				for row := 0; row < n; row++ {
					switch m.labels[row] {
					case i:
						idxClass = append(idxClass, row)
						idxIsPos = append(idxIsPos, true)
						ySub = append(ySub, 1)
					case j:
						idxClass = append(idxClass, row)
						idxIsPos = append(idxIsPos, false)
						ySub = append(ySub, 0)
					}
				}
				nPos := 0
				for _, pos := range idxIsPos {
					if pos {
						nPos++
					}
				}
				if nPos == 0 || nPos == len(idxClass) {
					return m.trace.Errorf(mlearn.StatusInvalidInput,
						"svm.SetData: one of the classes has no samples; labels must cover 0 to K-1.")
				}
				sub := newSolver(m.model, m.params, kernel.Descriptor{}, m.X.SubsetRows(idxClass).Dense(), ySub)
				sub.multiclass = true
				sub.idxClass = idxClass
				sub.idxIsPos = idxIsPos
				sub.posClass = i
				sub.negClass = j
				m.classifiers = append(m.classifiers, sub)
			}
		}
	} else {
		m.classifiers = []*solver{newSolver(m.model, m.params, kernel.Descriptor{}, X.Dense(), y)}
	}
	m.loaded = true
	return nil
}

// resolveGamma implements the default gamma = 1/(p*Var(X)) for the kernels
// that use it. Zero variance is rejected.
func (m *SVM) resolveGamma() (float64, error) {
	g := m.params.Gamma
	k := m.params.Kernel
	if k != kernel.RBF && k != kernel.Polynomial && k != kernel.Sigmoid {
		return g, nil
	}
	if g >= 0 {
		return g, nil
	}
	_, variance, err := stats.Variance(stats.AxisAll, m.X.Dense(), -1, nil)
	if err != nil {
		return 0, err
	}
	if variance[0] == 0 {
		return 0, m.trace.Errorf(mlearn.StatusInvalidInput,
			"svm.Fit: variance of the input data is zero, use a different gamma.")
	}
	return 1 / (float64(m.p) * variance[0]), nil
}

// Fit trains every sub-problem and aggregates support vectors, coefficients
// and biases.
func (m *SVM) Fit() error {
	if !m.loaded {
		return m.trace.Errorf(mlearn.StatusNoData, "svm.Fit: no data has been passed, call SetData first.")
	}
	gamma, err := m.resolveGamma()
	if err != nil {
		return err
	}
	m.gammaUsed = gamma
	desc := kernel.Descriptor{Kind: m.params.Kernel, Gamma: gamma, Degree: m.params.Degree, Coef0: m.params.Coef0}

	m.biases = make([]float64, m.nClassifiers)
	m.iterations = make([]int, m.nClassifiers)
	m.nSV = 0
	m.nSVPerClass = make([]int, m.nClass)
	isSV := make([]bool, m.n)

	for i, sub := range m.classifiers {
		sub.p = m.params
		sub.desc = desc
		if err := sub.compute(&m.trace); err != nil {
			return err
		}
		m.biases[i] = sub.bias
		m.iterations[i] = sub.iter

		if m.multiclass {
			for _, supportIndex := range sub.supportIdxPos {
				if !isSV[sub.idxClass[supportIndex]] {
					isSV[sub.idxClass[supportIndex]] = true
					m.nSV++
					m.nSVPerClass[sub.posClass]++
				}
			}
			for _, supportIndex := range sub.supportIdxNeg {
				if !isSV[sub.idxClass[supportIndex]] {
					isSV[sub.idxClass[supportIndex]] = true
					m.nSV++
					m.nSVPerClass[sub.negClass]++
				}
			}
		}
	}
	if !m.multiclass {
		first := m.classifiers[0]
		m.nSV = first.nSupport
		if m.model.isClassifier() {
			m.nSVPerClass = []int{first.nSupportPerClass[0], first.nSupportPerClass[1]}
		} else {
			m.nSVPerClass = []int{first.nSupport}
		}
		m.supportIdx = append([]int(nil), first.supportIdx...)
		if m.nSV > 0 {
			m.dualCoef = mat.NewDense(1, m.nSV, append([]float64(nil), first.supportCoef...))
		} else {
			m.dualCoef = nil
		}
	} else {
		m.aggregateMulticlass(isSV)
	}

	m.computed = true
	if m.nSV == 0 {
		return m.trace.Warnf(mlearn.StatusNumericalDifficulties,
			"svm.Fit: no support vectors found, check if your data is in the right format.")
	}
	return nil
}

// aggregateMulticlass builds the (n_class-1) x n_sv dual-coefficient matrix
// in the LibSVM convention: columns are filled class by class, and within a
// class pair (i, j) classifier k contributes one row on each side.
func (m *SVM) aggregateMulticlass(isSV []bool) {
	startingColIdx := make([]int, m.nClass)
	startingRowIdx := make([]int, m.nClass)
	for c := 1; c < m.nClass; c++ {
		startingColIdx[c] = startingColIdx[c-1] + m.nSVPerClass[c-1]
	}
	if m.nSV == 0 {
		m.dualCoef = nil
		m.supportIdx = nil
		return
	}
	m.dualCoef = mat.NewDense(m.nClass-1, m.nSV, nil)

	k := 0
	for i := 0; i < m.nClass; i++ {
		for j := i + 1; j < m.nClass; j++ {
			sub := m.classifiers[k]
			colI := startingColIdx[i]
			colJ := startingColIdx[j]
			for l := 0; l < sub.n; l++ {
				if !isSV[sub.idxClass[l]] {
					continue
				}
				if sub.idxIsPos[l] {
					m.dualCoef.Set(startingRowIdx[i], colI, sub.alpha[l])
					colI++
				} else {
					m.dualCoef.Set(startingRowIdx[j], colJ, sub.alpha[l])
					colJ++
				}
			}
			k++
			startingRowIdx[i]++
			startingRowIdx[j]++
		}
	}

	// Support indices are listed class by class, in row order within each.
	m.supportIdx = make([]int, m.nSV)
	fill := append([]int(nil), startingColIdx...)
	for row := 0; row < m.n; row++ {
		if isSV[row] {
			class := m.labels[row]
			m.supportIdx[fill[class]] = row
			fill[class]++
		}
	}
}

// Predict returns predicted labels (classification) or regressed values.
func (m *SVM) Predict(Xtest *mlearn.Matrix) ([]float64, error) {
	if err := m.checkPredict(Xtest); err != nil {
		return nil, err
	}
	nsamples, _ := Xtest.Dims()
	out := make([]float64, nsamples)
	if !m.multiclass {
		m.classifiers[0].predict(Xtest.Dense(), out)
		return out, nil
	}

	votes := make([]int, m.nClass*nsamples)
	tmp := make([]float64, nsamples)
	for _, sub := range m.classifiers {
		sub.predict(Xtest.Dense(), tmp)
		for j := 0; j < nsamples; j++ {
			if tmp[j] == 1 {
				votes[j*m.nClass+sub.posClass]++
			} else {
				votes[j*m.nClass+sub.negClass]++
			}
		}
	}
	for i := 0; i < nsamples; i++ {
		maxVotes, maxIdx := 0, 0
		for c := 0; c < m.nClass; c++ {
			if votes[i*m.nClass+c] > maxVotes {
				maxVotes = votes[i*m.nClass+c]
				maxIdx = c
			}
		}
		out[i] = float64(maxIdx)
	}
	return out, nil
}

// DecisionFunction returns raw decision values: one column per binary
// classifier for the OVO shape, or per class for OVR with pairwise
// confidences folded into the class scores.
func (m *SVM) DecisionFunction(Xtest *mlearn.Matrix, shape Shape) (*mat.Dense, error) {
	if err := m.checkPredict(Xtest); err != nil {
		return nil, err
	}
	if !m.model.isClassifier() {
		return nil, m.trace.Errorf(mlearn.StatusInvalidInput,
			"svm.DecisionFunction: not defined for regression, use Predict instead.")
	}
	nsamples, _ := Xtest.Dims()
	ovo := mat.NewDense(nsamples, m.nClassifiers, nil)
	col := make([]float64, nsamples)
	for i, sub := range m.classifiers {
		sub.decisionFunction(Xtest.Dense(), col)
		ovo.SetCol(i, col)
	}
	if shape == OVO || !m.multiclass {
		return ovo, nil
	}

	// Fold the pairwise confidences: a vote per positive decision plus a
	// bounded confidence term that cannot flip a vote difference.
	ovr := mat.NewDense(nsamples, m.nClass, nil)
	confidence := mat.NewDense(nsamples, m.nClass, nil)
	for i, sub := range m.classifiers {
		for j := 0; j < nsamples; j++ {
			dv := ovo.At(j, i)
			confidence.Set(j, sub.posClass, confidence.At(j, sub.posClass)+dv)
			confidence.Set(j, sub.negClass, confidence.At(j, sub.negClass)-dv)
			if dv > 0 {
				ovr.Set(j, sub.posClass, ovr.At(j, sub.posClass)+1)
			} else {
				ovr.Set(j, sub.negClass, ovr.At(j, sub.negClass)+1)
			}
		}
	}
	for c := 0; c < m.nClass; c++ {
		for j := 0; j < nsamples; j++ {
			conf := confidence.At(j, c)
			ovr.Set(j, c, ovr.At(j, c)+conf/(3*(math.Abs(conf)+1)))
		}
	}
	return ovr, nil
}

// Score returns mean accuracy for classifiers and the coefficient of
// determination R^2 for regressors.
func (m *SVM) Score(Xtest *mlearn.Matrix, y []float64) (float64, error) {
	pred, err := m.Predict(Xtest)
	if err != nil {
		return 0, err
	}
	if len(y) != len(pred) {
		return 0, m.trace.Errorf(mlearn.StatusInvalidArrayDimension,
			"svm.Score: y has length %d, expected %d.", len(y), len(pred))
	}
	if m.model.isClassifier() {
		correct := 0
		for i := range pred {
			if pred[i] == y[i] {
				correct++
			}
		}
		return float64(correct) / float64(len(pred)), nil
	}
	meanY := 0.0
	for _, v := range y {
		meanY += v
	}
	meanY /= float64(len(y))
	ssRes, ssTot := 0.0, 0.0
	for i := range y {
		ssRes += (y[i] - pred[i]) * (y[i] - pred[i])
		ssTot += (y[i] - meanY) * (y[i] - meanY)
	}
	if ssTot == 0 {
		return 0, nil
	}
	return 1 - ssRes/ssTot, nil
}

func (m *SVM) checkPredict(Xtest *mlearn.Matrix) error {
	if !m.computed {
		return m.trace.Errorf(mlearn.StatusOutOfDate, "svm: the model has not been fitted yet.")
	}
	if Xtest == nil {
		return m.trace.Errorf(mlearn.StatusInvalidPointer, "svm: test matrix is nil.")
	}
	if _, p := Xtest.Dims(); p != m.p {
		return m.trace.Errorf(mlearn.StatusInvalidArrayDimension,
			"svm: test data has %d features, expected %d.", p, m.p)
	}
	return nil
}

// NSupport returns the number of global support vectors.
func (m *SVM) NSupport() int { return m.nSV }

// NSupportPerClass returns the per-class support-vector counts.
func (m *SVM) NSupportPerClass() []int { return append([]int(nil), m.nSVPerClass...) }

// SupportIndices returns the training-row indices of the support vectors.
func (m *SVM) SupportIndices() []int { return append([]int(nil), m.supportIdx...) }

// DualCoefs returns the (n_class-1) x n_sv dual-coefficient matrix.
func (m *SVM) DualCoefs() *mat.Dense { return m.dualCoef }

// Bias returns the bias of each binary sub-problem.
func (m *SVM) Bias() []float64 { return append([]float64(nil), m.biases...) }

// Iterations returns the outer iteration count of each sub-problem.
func (m *SVM) Iterations() []int { return append([]int(nil), m.iterations...) }

// GammaUsed returns the gamma actually used, after the 1/(p*Var(X)) default.
func (m *SVM) GammaUsed() float64 { return m.gammaUsed }

// SupportVectors materialises the support-vector rows of the training data.
func (m *SVM) SupportVectors() *mat.Dense {
	if m.nSV == 0 {
		return nil
	}
	sv := mat.NewDense(m.nSV, m.p, nil)
	for i, idx := range m.supportIdx {
		sv.SetRow(i, m.X.RawRow(idx))
	}
	return sv
}

// Trace exposes the estimator's error trace.
func (m *SVM) Trace() *mlearn.ErrorTrace { return &m.trace }

// Info returns the estimator info vector.
func (m *SVM) Info() map[string]any {
	info := map[string]any{
		"model":      m.model.String(),
		"n_samples":  m.n,
		"n_features": m.p,
		"n_class":    m.nClass,
		"n_sv":       m.nSV,
		"gamma":      m.gammaUsed,
	}
	if m.computed {
		info["iterations"] = append([]int(nil), m.iterations...)
	}
	return info
}
