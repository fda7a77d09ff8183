package svm

import (
	"math"

	"github.com/HazelnutParadise/mlearn"
	"github.com/HazelnutParadise/mlearn/kernel"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// machEps is the double-precision machine epsilon used as the support-vector
// threshold in the nu formulations.
var machEps = math.Nextafter(1, 2) - 1

// formulation is the table of variant-specific hooks. Dispatching through a
// small function table keeps the hot loop free of interface calls and
// mirrors the C/nu split of the dual forms.
type formulation struct {
	initialise func(s *solver) error
	outerWSS   func(s *solver, nSelected int)
	localSMO   func(s *solver)
	setBias    func(s *solver) error
	setSV      func(s *solver) error
}

var formulations = map[Model]formulation{
	SVC:   {initialise: svcInit, outerWSS: cOuterWSS, localSMO: cLocalSMO, setBias: cSetBias, setSV: svcSetSV},
	SVR:   {initialise: svrInit, outerWSS: cOuterWSS, localSMO: cLocalSMO, setBias: cSetBias, setSV: svrSetSV},
	NuSVC: {initialise: nuSVCInit, outerWSS: nuOuterWSS, localSMO: nuLocalSMO, setBias: nuSetBias, setSV: nuSVCSetSV},
	NuSVR: {initialise: nuSVRInit, outerWSS: nuOuterWSS, localSMO: nuLocalSMO, setBias: nuSetBias, setSV: nuSVRSetSV},
}

// solver owns one binary sub-problem: the full problem for regression and
// two-class data, or one class pair under the one-versus-one driver.
type solver struct {
	model Model
	p     Params
	desc  kernel.Descriptor

	// X holds the sub-problem's samples (a materialised row subset for
	// multiclass pairs, the caller's matrix otherwise) and y the sub-problem
	// target: {0,1} for classification, real values for regression.
	X *mat.Dense
	y []float64
	n int

	// multiclass bookkeeping: original row index per sub-problem row, and
	// whether the row belongs to the positive class of the pair.
	multiclass bool
	idxClass   []int
	idxIsPos   []bool
	posClass   int
	negClass   int

	// dual state; length actualSize (2n for regression)
	actualSize int
	wsSize     int
	alpha      []float64
	grad       []float64
	resp       []float64

	// working-set state, preserved across outer iterations for warm starts
	wsIdx       []int
	wsIndicator []bool
	indexAux    []int

	// local SMO scratch
	localAlpha []float64
	localGrad  []float64
	localResp  []float64
	iUpP       []bool
	iLowP      []bool
	iUpN       []bool
	iLowN      []bool
	alphaDiff  []float64
	localK     *mat.Dense

	// kt is the ws x n kernel block for the current working set; row t holds
	// k(x_ws[t], x_m) for all m, which is exactly the column the global
	// gradient update consumes.
	kt  *mat.Dense
	xWS *mat.Dense

	bias      float64
	iter      int
	firstDiff float64

	nSupport         int
	nSupportPerClass [2]int
	supportIdx       []int
	supportIdxPos    []int
	supportIdxNeg    []int
	supportCoef      []float64
}

func newSolver(model Model, p Params, desc kernel.Descriptor, X *mat.Dense, y []float64) *solver {
	n, _ := X.Dims()
	return &solver{model: model, p: p, desc: desc, X: X, y: y, n: n}
}

// maxPowTwo returns the largest power of two not exceeding n.
func maxPowTwo(n int) int {
	power := 1
	for power*2 <= n {
		power *= 2
	}
	return power
}

func (s *solver) computeWSSize() {
	s.wsSize = maxPowTwo(s.actualSize)
	if s.wsSize > maxWorkingSetSize {
		s.wsSize = maxWorkingSetSize
	}
}

// compute runs the decomposition loop: outer working-set selection, local
// SMO on the ws x ws sub-problem, then a global gradient update, until the
// first-iteration gap of the local solve stalls or drops under tolerance.
func (s *solver) compute(trace *mlearn.ErrorTrace) error {
	if s.model == SVR || s.model == NuSVR {
		s.actualSize = 2 * s.n
	} else {
		s.actualSize = s.n
	}
	s.iter = 0
	maxIter := s.p.MaxIter
	if maxIter == 0 {
		maxIter = math.MaxInt
	}
	s.computeWSSize()

	_, p := s.X.Dims()
	s.wsIdx = make([]int, s.wsSize)
	s.wsIndicator = make([]bool, s.actualSize)
	s.indexAux = make([]int, s.actualSize)
	s.alpha = make([]float64, s.actualSize)
	s.grad = make([]float64, s.actualSize)
	s.resp = make([]float64, s.actualSize)
	s.localAlpha = make([]float64, s.wsSize)
	s.localGrad = make([]float64, s.wsSize)
	s.localResp = make([]float64, s.wsSize)
	s.iUpP = make([]bool, s.wsSize)
	s.iLowP = make([]bool, s.wsSize)
	s.iUpN = make([]bool, s.wsSize)
	s.iLowN = make([]bool, s.wsSize)
	s.alphaDiff = make([]float64, s.wsSize)
	s.localK = mat.NewDense(s.wsSize, s.wsSize, nil)
	s.kt = mat.NewDense(s.wsSize, s.n, nil)
	s.xWS = mat.NewDense(s.wsSize, p, nil)

	hooks := formulations[s.model]
	if err := hooks.initialise(s); err != nil {
		return err
	}

	var previousFirstDiff float64
	noDiffCounter := 0
	for ; s.iter < maxIter; s.iter++ {
		// Outer working-set selection. After the first iteration the upper
		// half of the previous working set is copied into the lower half
		// before the scan refills the rest (warm start).
		for i := range s.wsIndicator {
			s.wsIndicator[i] = false
		}
		nSelected := 0
		if s.iter > 0 {
			nSelected = s.wsSize / 2
			for i := 0; i < nSelected; i++ {
				s.wsIdx[i] = s.wsIdx[i+nSelected]
				s.wsIndicator[s.wsIdx[i]] = true
			}
		}
		hooks.outerWSS(s, nSelected)

		s.kernelCompute(s.wsIdx, s.wsSize, s.kt)
		hooks.localSMO(s)
		s.updateGradient(s.grad, s.alphaDiff, s.wsSize, s.kt)

		// Stop when first_diff has stalled for five iterations or dropped
		// below tolerance, but always run at least five iterations.
		if math.Abs(s.firstDiff-previousFirstDiff) < s.p.Tol*1e-3 {
			noDiffCounter++
		} else {
			noDiffCounter = 0
		}
		previousFirstDiff = s.firstDiff
		if (noDiffCounter > 4 || s.firstDiff < s.p.Tol) && s.iter > 4 {
			break
		}
	}

	if err := hooks.setBias(s); err != nil {
		if trace != nil {
			return trace.Errorf(mlearn.StatusNumericalDifficulties, "svm: %v", err)
		}
		return err
	}
	return hooks.setSV(s)
}

// kernelCompute fills kt (rows = working-set entries, columns = all samples)
// for the given dual indices. Dual indices beyond n map back onto samples
// through idx mod n (the two half-vectors of the regression forms share
// kernel rows).
func (s *solver) kernelCompute(idx []int, size int, kt *mat.Dense) {
	for t := 0; t < size; t++ {
		s.xWS.SetRow(t, s.X.RawRowView(idx[t]%s.n))
	}
	xv := s.xWS
	if size != s.wsSize {
		xv = denseRows(s.xWS, size)
	}
	kernel.Compute(kt, xv, s.X, s.desc)
}

// denseRows returns the first r rows of d as a Dense view.
func denseRows(d *mat.Dense, r int) *mat.Dense {
	_, c := d.Dims()
	return d.Slice(0, r, 0, c).(*mat.Dense)
}

// gatherLocal extracts the ws x ws kernel sub-block and the local copies of
// alpha, gradient and response for the current working set.
func (s *solver) gatherLocal() {
	for t := 0; t < s.wsSize; t++ {
		dual := s.wsIdx[t]
		s.localAlpha[t] = s.alpha[dual]
		s.localGrad[t] = s.grad[dual]
		s.localResp[t] = s.resp[dual]
		row := s.localK.RawRowView(t)
		ktRow := s.kt.RawRowView(t)
		for j := 0; j < s.wsSize; j++ {
			row[j] = ktRow[s.wsIdx[j]%s.n]
		}
	}
}

// scatterLocal writes updated local alphas back into the global vector and
// records the signed differences consumed by the global gradient update.
func (s *solver) scatterLocal() {
	for t := 0; t < s.wsSize; t++ {
		dual := s.wsIdx[t]
		s.alphaDiff[t] = (s.localAlpha[t] - s.alpha[dual]) * s.localResp[t]
		s.alpha[dual] = s.localAlpha[t]
	}
}

// updateGradient applies g <- g + sum_t alphaDiff[t] * K[:,t] using one AXPY
// per working-set column. Regression gradients have 2n entries fed from the
// same n kernel values.
func (s *solver) updateGradient(grad, alphaDiff []float64, ncol int, kt *mat.Dense) {
	if s.model == SVR || s.model == NuSVR {
		add := make([]float64, s.n)
		for t := 0; t < ncol; t++ {
			floats.AddScaled(add, alphaDiff[t], kt.RawRowView(t))
		}
		for i := 0; i < s.n; i++ {
			grad[i] += add[i]
			grad[i+s.n] += add[i]
		}
		return
	}
	for t := 0; t < ncol; t++ {
		floats.AddScaled(grad[:s.n], alphaDiff[t], kt.RawRowView(t))
	}
}

// wssi picks i = argmin of the local gradient over iUp.
func (s *solver) wssi(iUp []bool) (i int, minGrad float64) {
	minGrad = math.MaxFloat64
	i = -1
	for t := 0; t < s.wsSize; t++ {
		if iUp[t] && s.localGrad[t] < minGrad {
			minGrad = s.localGrad[t]
			i = t
		}
	}
	return i, minGrad
}

// wssj picks j = argmax of b^2/a over iLow, where b = g_t - g_i and
// a = Q_ii + Q_tt - 2 Q_it clipped below by tau. It also tracks the maximum
// gradient in iLow for the convergence gap, and the step delta = b/a of the
// winner.
func (s *solver) wssj(iLow []bool, i int, minGrad float64) (j int, maxGrad, delta, maxFun float64) {
	maxGrad = -math.MaxFloat64
	maxFun = -math.MaxFloat64
	j = -1
	for t := 0; t < s.wsSize; t++ {
		if !iLow[t] {
			continue
		}
		g := s.localGrad[t]
		if g > maxGrad {
			maxGrad = g
		}
		b := g - minGrad
		if b < 0 {
			continue
		}
		a := s.localK.At(i, i) + s.localK.At(t, t) - 2*s.localK.At(i, t)
		if a < s.p.Tau {
			a = s.p.Tau
		}
		ratio := b / a
		if fun := ratio * b; fun > maxFun {
			maxFun = fun
			j = t
			delta = ratio
		}
	}
	return j, maxGrad, delta, maxFun
}

// twoVariableStep applies the clipped update to the pair (i, j) and refreshes
// the local gradient with the two touched kernel columns.
func (s *solver) twoVariableStep(i, j int, delta float64) float64 {
	alphaIDiff := s.localAlpha[i]
	if s.localResp[i] > 0 {
		alphaIDiff = s.boxC() - s.localAlpha[i]
	}
	alphaJDiff := s.boxC() - s.localAlpha[j]
	if s.localResp[j] > 0 {
		alphaJDiff = s.localAlpha[j]
	}
	if alphaJDiff > delta {
		alphaJDiff = delta
	}
	step := math.Min(alphaIDiff, alphaJDiff)
	s.localAlpha[i] += step * s.localResp[i]
	s.localAlpha[j] -= step * s.localResp[j]

	ki := s.localK.RawRowView(i)
	kj := s.localK.RawRowView(j)
	for t := 0; t < s.wsSize; t++ {
		s.localGrad[t] += step * (ki[t] - kj[t])
	}
	return step
}

// boxC is the active box constraint; the nu classification dual is solved in
// a normalised box of height one.
func (s *solver) boxC() float64 {
	if s.model == NuSVC {
		return 1
	}
	return s.p.C
}

// decisionFunction evaluates sum_s coef_s k(x_s, x) + b over support-vector
// blocks so the largest kernel block stays maxBlockSize x m.
func (s *solver) decisionFunction(Xtest *mat.Dense, out []float64) {
	m, p := Xtest.Dims()
	for i := range out[:m] {
		out[i] = s.bias
	}
	if s.nSupport == 0 {
		return
	}
	blockSize := s.nSupport
	if blockSize > maxBlockSize {
		blockSize = maxBlockSize
	}
	block := mat.NewDense(blockSize, p, nil)
	kb := mat.NewDense(blockSize, m, nil)
	for offset := 0; offset < s.nSupport; offset += blockSize {
		cur := blockSize
		if offset+cur > s.nSupport {
			cur = s.nSupport - offset
		}
		for t := 0; t < cur; t++ {
			block.SetRow(t, s.X.RawRowView(s.supportIdx[offset+t]))
		}
		bv, kv := block, kb
		if cur != blockSize {
			bv = denseRows(block, cur)
			kv = denseRows(kb, cur)
		}
		kernel.Compute(kv, bv, Xtest, s.desc)
		for t := 0; t < cur; t++ {
			floats.AddScaled(out[:m], s.supportCoef[offset+t], kv.RawRowView(t))
		}
	}
}

// predict maps decision values onto labels for the classification models and
// returns raw decision values for regression.
func (s *solver) predict(Xtest *mat.Dense, out []float64) {
	s.decisionFunction(Xtest, out)
	if s.model.isClassifier() {
		for i := range out {
			if out[i] > 0 {
				out[i] = 1
			} else {
				out[i] = 0
			}
		}
	}
}

// materialiseSupportVectors copies the rows of the surviving support vectors.
func (s *solver) materialiseSupportVectors() *mat.Dense {
	_, p := s.X.Dims()
	sv := mat.NewDense(s.nSupport, p, nil)
	for i, idx := range s.supportIdx {
		sv.SetRow(i, s.X.RawRowView(idx))
	}
	return sv
}
