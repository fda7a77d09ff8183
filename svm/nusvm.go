package svm

import (
	"errors"
	"math"

	"github.com/HazelnutParadise/mlearn/internal/algorithms"
	"github.com/HazelnutParadise/mlearn/kernel"
	"gonum.org/v1/gonum/mat"
)

// The nu equality constraint couples only same-sign variables, so the
// feasibility sets split per sign side.
func isUpperPos(alpha, y, c float64) bool { return alpha < c && y > 0 }
func isUpperNeg(alpha, y float64) bool    { return alpha > 0 && y < 0 }
func isLowerPos(alpha, y float64) bool    { return alpha > 0 && y > 0 }
func isLowerNeg(alpha, y, c float64) bool { return alpha < c && y < 0 }

// nuOuterWSS interleaves four scan streams over the argsorted gradient:
// positive and negative I_up from the left, positive and negative I_low from
// the right.
func nuOuterWSS(s *solver, nSelected int) {
	size := s.actualSize
	for i := range s.indexAux {
		s.indexAux[i] = i
	}
	algorithms.ArgsortInto(s.grad, s.indexAux)

	posLeftP, posRightP := 0, size-1
	posLeftN, posRightN := 0, size-1
	c := s.boxC()
	for nSelected < s.wsSize && (posRightP >= 0 || posLeftP < size) && (posRightN >= 0 || posLeftN < size) {
		if posLeftP < size {
			cur := s.indexAux[posLeftP]
			for s.wsIndicator[cur] || !isUpperPos(s.alpha[cur], s.resp[cur], c) {
				posLeftP++
				if posLeftP == size {
					break
				}
				cur = s.indexAux[posLeftP]
			}
			if posLeftP < size {
				s.wsIdx[nSelected] = cur
				nSelected++
				s.wsIndicator[cur] = true
			}
		}
		if nSelected >= s.wsSize {
			break
		}
		if posLeftN < size {
			cur := s.indexAux[posLeftN]
			for s.wsIndicator[cur] || !isUpperNeg(s.alpha[cur], s.resp[cur]) {
				posLeftN++
				if posLeftN == size {
					break
				}
				cur = s.indexAux[posLeftN]
			}
			if posLeftN < size {
				s.wsIdx[nSelected] = cur
				nSelected++
				s.wsIndicator[cur] = true
			}
		}
		if nSelected >= s.wsSize {
			break
		}
		if posRightP >= 0 {
			cur := s.indexAux[posRightP]
			for s.wsIndicator[cur] || !isLowerPos(s.alpha[cur], s.resp[cur]) {
				posRightP--
				if posRightP == -1 {
					break
				}
				cur = s.indexAux[posRightP]
			}
			if posRightP >= 0 {
				s.wsIdx[nSelected] = cur
				nSelected++
				s.wsIndicator[cur] = true
			}
		}
		if nSelected >= s.wsSize {
			break
		}
		if posRightN >= 0 {
			cur := s.indexAux[posRightN]
			for s.wsIndicator[cur] || !isLowerNeg(s.alpha[cur], s.resp[cur], c) {
				posRightN--
				if posRightN == -1 {
					break
				}
				cur = s.indexAux[posRightN]
			}
			if posRightN >= 0 {
				s.wsIdx[nSelected] = cur
				nSelected++
				s.wsIndicator[cur] = true
			}
		}
	}
}

// nuLocalSMO keeps two independent gaps, one per sign side, and applies the
// update pair from whichever side offers the larger objective gain.
func nuLocalSMO(s *solver) {
	s.gatherLocal()
	c := s.boxC()
	for t := 0; t < s.wsSize; t++ {
		s.iUpP[t] = isUpperPos(s.localAlpha[t], s.localResp[t], c)
		s.iLowP[t] = isLowerPos(s.localAlpha[t], s.localResp[t])
		s.iUpN[t] = isUpperNeg(s.localAlpha[t], s.localResp[t])
		s.iLowN[t] = isLowerNeg(s.localAlpha[t], s.localResp[t], c)
	}
	maxIterInner := 100 * s.wsSize
	epsilon := 1.0
	for iter := 0; iter < maxIterInner; iter++ {
		iP, minGradP := s.wssi(s.iUpP)
		iN, minGradN := s.wssi(s.iUpN)
		var jP, jN int
		var maxGradP, maxGradN, deltaP, deltaN, maxFunP, maxFunN float64
		jP, jN = -1, -1
		maxFunP, maxFunN = -math.MaxFloat64, -math.MaxFloat64
		maxGradP, maxGradN = -math.MaxFloat64, -math.MaxFloat64
		if iP >= 0 {
			jP, maxGradP, deltaP, maxFunP = s.wssj(s.iLowP, iP, minGradP)
		}
		if iN >= 0 {
			jN, maxGradN, deltaN, maxFunN = s.wssj(s.iLowN, iN, minGradN)
		}
		if jP < 0 && jN < 0 {
			if iter == 0 {
				s.firstDiff = 0
			}
			break
		}
		diffP, diffN := math.Inf(-1), math.Inf(-1)
		if iP >= 0 && jP >= 0 {
			diffP = maxGradP - minGradP
		}
		if iN >= 0 && jN >= 0 {
			diffN = maxGradN - minGradN
		}
		diff := math.Max(diffP, diffN)
		if iter == 0 {
			s.firstDiff = diff
			epsilon = math.Max(s.p.Tol, 0.1*diff)
		}
		if diff < epsilon {
			break
		}
		var i, j int
		var delta float64
		if maxFunP > maxFunN {
			i, j, delta = iP, jP, deltaP
		} else {
			i, j, delta = iN, jN, deltaN
		}
		s.twoVariableStep(i, j, delta)
		for _, t := range [2]int{i, j} {
			s.iUpP[t] = isUpperPos(s.localAlpha[t], s.localResp[t], c)
			s.iLowP[t] = isLowerPos(s.localAlpha[t], s.localResp[t])
			s.iUpN[t] = isUpperNeg(s.localAlpha[t], s.localResp[t])
			s.iLowN[t] = isLowerNeg(s.localAlpha[t], s.localResp[t], c)
		}
	}
	s.scatterLocal()
}

// nuSetBias computes the per-sign biases independently. The returned bias is
// (b_n - b_p)/2 and, for nu-SVC, the alpha vector and bias are divided by
// the scale (b_p + b_n)/2; a zero scale is a numerical failure.
func nuSetBias(s *solver) error {
	gradientSumP, gradientSumN := 0.0, 0.0
	nFreeP, nFreeN := 0, 0
	minValueP, minValueN := math.MaxFloat64, math.MaxFloat64
	maxValueP, maxValueN := -math.MaxFloat64, -math.MaxFloat64
	c := s.boxC()
	for i := 0; i < s.actualSize; i++ {
		if s.alpha[i] > 0 && s.alpha[i] < c && s.resp[i] > 0 {
			gradientSumP += s.grad[i]
			nFreeP++
		}
		if s.alpha[i] > 0 && s.alpha[i] < c && s.resp[i] < 0 {
			gradientSumN -= s.grad[i]
			nFreeN++
		}
		if isUpperPos(s.alpha[i], s.resp[i], c) && s.grad[i] < minValueP {
			minValueP = s.grad[i]
		}
		if isLowerPos(s.alpha[i], s.resp[i]) && s.grad[i] > maxValueP {
			maxValueP = s.grad[i]
		}
		if isUpperNeg(s.alpha[i], s.resp[i]) && s.grad[i] < minValueN {
			minValueN = s.grad[i]
		}
		if isLowerNeg(s.alpha[i], s.resp[i], c) && s.grad[i] > maxValueN {
			maxValueN = s.grad[i]
		}
	}
	biasP := gradientSumP / float64(max(nFreeP, 1))
	if nFreeP == 0 {
		biasP = (minValueP + maxValueP) / 2
	}
	biasN := gradientSumN / float64(max(nFreeN, 1))
	if nFreeN == 0 {
		biasN = -(minValueN + maxValueN) / 2
	}
	s.bias = (biasN - biasP) / 2
	if s.model == NuSVC {
		scale := (biasP + biasN) / 2
		if scale == 0 {
			return errors.New("cannot divide by zero in bias calculation")
		}
		for i := 0; i < s.actualSize; i++ {
			s.alpha[i] /= scale
		}
		s.bias /= scale
	}
	return nil
}

// initialiseGradient computes the gradient implied by a non-trivial starting
// alpha by walking the non-zero entries in kernel blocks of bounded size.
func (s *solver) initialiseGradient(alphaDiff []float64, counter int) {
	if counter == 0 {
		return
	}
	blockSize := counter
	if blockSize > maxBlockSize {
		blockSize = maxBlockSize
	}
	_, p := s.X.Dims()
	xBlock := mat.NewDense(blockSize, p, nil)
	ktBlock := mat.NewDense(blockSize, s.n, nil)
	for offset := 0; offset < counter; offset += blockSize {
		cur := blockSize
		if offset+cur > counter {
			cur = counter - offset
		}
		for t := 0; t < cur; t++ {
			xBlock.SetRow(t, s.X.RawRowView(s.indexAux[offset+t]%s.n))
		}
		xv, kv := xBlock, ktBlock
		if cur != blockSize {
			xv = denseRows(xBlock, cur)
			kv = denseRows(ktBlock, cur)
		}
		kernel.Compute(kv, xv, s.X, s.desc)
		diff := alphaDiff[offset : offset+cur]
		s.updateGradient(s.grad, diff, cur, kv)
		if s.model == NuSVR {
			// The second half of the regression alpha is the first half
			// negated, so flip the signs and accumulate again.
			neg := make([]float64, cur)
			for t := range neg {
				neg[t] = -diff[t]
			}
			s.updateGradient(s.grad, neg, cur, kv)
		}
	}
}

// nuSVCInit spreads nu*n/2 units of alpha down each sign side and derives
// the matching gradient.
func nuSVCInit(s *solver) error {
	alphaDiff := make([]float64, s.actualSize)
	for i := 0; i < s.actualSize; i++ {
		if s.y[i] == 0 {
			s.resp[i] = -1
		} else {
			s.resp[i] = s.y[i]
		}
		s.grad[i] = 0
	}
	sumPos := s.p.Nu * float64(s.n) / 2
	sumNeg := sumPos
	for i := 0; i < s.actualSize; i++ {
		if s.resp[i] > 0 {
			s.alpha[i] = math.Min(1, sumPos)
			sumPos -= s.alpha[i]
		} else {
			s.alpha[i] = math.Min(1, sumNeg)
			sumNeg -= s.alpha[i]
		}
	}
	counter := 0
	for i := 0; i < s.actualSize; i++ {
		if s.alpha[i] != 0 {
			s.indexAux[counter] = i
			alphaDiff[counter] = s.alpha[i] * s.resp[i]
			counter++
		}
	}
	s.initialiseGradient(alphaDiff, counter)
	return nil
}

// nuSVRInit fills both tube half-vectors with C*nu*n/2 units of alpha.
func nuSVRInit(s *solver) error {
	alphaDiff := make([]float64, s.n)
	sum := s.p.C * s.p.Nu * float64(s.n) / 2
	for i := 0; i < s.n; i++ {
		s.grad[i] = -s.y[i]
		s.grad[i+s.n] = -s.y[i]
		s.resp[i] = 1
		s.resp[i+s.n] = -1
		s.alpha[i] = math.Min(s.p.C, sum)
		s.alpha[i+s.n] = s.alpha[i]
		sum -= s.alpha[i]
	}
	counter := 0
	for i := 0; i < s.n; i++ {
		if s.alpha[i] != 0 {
			s.indexAux[counter] = i
			alphaDiff[counter] = s.alpha[i]
			counter++
		}
	}
	s.initialiseGradient(alphaDiff, counter)
	return nil
}

// nuSVCSetSV keeps alphas above machine epsilon in magnitude.
func nuSVCSetSV(s *solver) error {
	s.nSupport = 0
	s.nSupportPerClass = [2]int{}
	for i := 0; i < s.n; i++ {
		if math.Abs(s.alpha[i]) > machEps {
			s.nSupport++
			s.alpha[i] *= s.resp[i]
			if s.resp[i] < 0 {
				s.nSupportPerClass[0]++
			} else {
				s.nSupportPerClass[1]++
			}
		}
	}
	s.collectClassifierSV(func(a float64) bool { return math.Abs(a) > machEps })
	return nil
}

func nuSVRSetSV(s *solver) error {
	s.nSupport = 0
	for i := 0; i < s.n; i++ {
		s.alpha[i] -= s.alpha[i+s.n]
		if math.Abs(s.alpha[i]) > machEps {
			s.nSupport++
		}
	}
	s.supportIdx = make([]int, 0, s.nSupport)
	s.supportCoef = make([]float64, 0, s.nSupport)
	for i := 0; i < s.n; i++ {
		if math.Abs(s.alpha[i]) > machEps {
			s.supportIdx = append(s.supportIdx, i)
			s.supportCoef = append(s.supportCoef, s.alpha[i])
		}
	}
	return nil
}
