package svm

import (
	"math"

	"github.com/HazelnutParadise/mlearn/internal/algorithms"
)

// Feasibility-direction sets for the C formulations.
func isUpper(alpha, y, c float64) bool { return (alpha < c && y > 0) || (alpha > 0 && y < 0) }
func isLower(alpha, y, c float64) bool { return (alpha < c && y < 0) || (alpha > 0 && y > 0) }

func svcInit(s *solver) error {
	for i := 0; i < s.actualSize; i++ {
		if s.y[i] == 0 {
			s.grad[i] = 1
			s.resp[i] = -1
		} else {
			s.grad[i] = -s.y[i]
			s.resp[i] = s.y[i]
		}
		s.alpha[i] = 0
	}
	return nil
}

func svrInit(s *solver) error {
	for i := 0; i < s.n; i++ {
		s.grad[i] = s.p.Epsilon - s.y[i]
		s.grad[i+s.n] = -s.p.Epsilon - s.y[i]
		s.resp[i] = 1
		s.resp[i+s.n] = -1
		s.alpha[i] = 0
		s.alpha[i+s.n] = 0
	}
	return nil
}

// cOuterWSS selects the working set by scanning the argsorted gradient from
// the left for I_up members and from the right for I_low members,
// interleaving the two streams.
func cOuterWSS(s *solver, nSelected int) {
	size := s.actualSize
	for i := range s.indexAux {
		s.indexAux[i] = i
	}
	algorithms.ArgsortInto(s.grad, s.indexAux)

	posLeft, posRight := 0, size-1
	c := s.boxC()
	for nSelected < s.wsSize && (posRight >= 0 || posLeft < size) {
		if posLeft < size {
			cur := s.indexAux[posLeft]
			for s.wsIndicator[cur] || !isUpper(s.alpha[cur], s.resp[cur], c) {
				posLeft++
				if posLeft == size {
					break
				}
				cur = s.indexAux[posLeft]
			}
			if posLeft < size {
				s.wsIdx[nSelected] = cur
				nSelected++
				s.wsIndicator[cur] = true
			}
		}
		if nSelected >= s.wsSize {
			break
		}
		if posRight >= 0 {
			cur := s.indexAux[posRight]
			for s.wsIndicator[cur] || !isLower(s.alpha[cur], s.resp[cur], c) {
				posRight--
				if posRight == -1 {
					break
				}
				cur = s.indexAux[posRight]
			}
			if posRight >= 0 {
				s.wsIdx[nSelected] = cur
				nSelected++
				s.wsIndicator[cur] = true
			}
		}
	}
}

// cLocalSMO runs up to 100*ws two-variable updates on the working set. The
// inner tolerance is derived from the first gap: max(tol, 0.1*diff0).
func cLocalSMO(s *solver) {
	s.gatherLocal()
	c := s.boxC()
	for t := 0; t < s.wsSize; t++ {
		s.iUpP[t] = isUpper(s.localAlpha[t], s.localResp[t], c)
		s.iLowP[t] = isLower(s.localAlpha[t], s.localResp[t], c)
	}
	maxIterInner := 100 * s.wsSize
	epsilon := 1.0
	for iter := 0; iter < maxIterInner; iter++ {
		i, minGrad := s.wssi(s.iUpP)
		if i < 0 {
			if iter == 0 {
				s.firstDiff = 0
			}
			break
		}
		j, maxGrad, delta, _ := s.wssj(s.iLowP, i, minGrad)
		if j < 0 {
			if iter == 0 {
				s.firstDiff = 0
			}
			break
		}
		diff := maxGrad - minGrad
		if iter == 0 {
			s.firstDiff = diff
			epsilon = math.Max(s.p.Tol, 0.1*diff)
		}
		if diff < epsilon {
			break
		}
		s.twoVariableStep(i, j, delta)
		s.iUpP[i] = isUpper(s.localAlpha[i], s.localResp[i], c)
		s.iLowP[i] = isLower(s.localAlpha[i], s.localResp[i], c)
		s.iUpP[j] = isUpper(s.localAlpha[j], s.localResp[j], c)
		s.iLowP[j] = isLower(s.localAlpha[j], s.localResp[j], c)
	}
	s.scatterLocal()
}

// cSetBias partitions the surviving duals by feasibility: the average
// gradient over free vectors when any exist, otherwise the midpoint of the
// I_up/I_low extremes.
func cSetBias(s *solver) error {
	gradientSum := 0.0
	nFree := 0
	minValue := math.MaxFloat64
	maxValue := -math.MaxFloat64
	c := s.boxC()
	for i := 0; i < s.actualSize; i++ {
		if s.alpha[i] > 0 && s.alpha[i] < c {
			gradientSum += s.grad[i]
			nFree++
		}
		if isUpper(s.alpha[i], s.resp[i], c) && s.grad[i] < minValue {
			minValue = s.grad[i]
		}
		if isLower(s.alpha[i], s.resp[i], c) && s.grad[i] > maxValue {
			maxValue = s.grad[i]
		}
	}
	if nFree == 0 {
		s.bias = -(minValue + maxValue) / 2
	} else {
		s.bias = -gradientSum / float64(nFree)
	}
	return nil
}

// svcSetSV collects indices with non-zero alpha, folding the dual sign into
// the stored coefficient.
func svcSetSV(s *solver) error {
	s.nSupport = 0
	s.nSupportPerClass = [2]int{}
	for i := 0; i < s.n; i++ {
		if s.alpha[i] != 0 {
			s.nSupport++
			s.alpha[i] *= s.resp[i]
			if s.resp[i] < 0 {
				s.nSupportPerClass[0]++
			} else {
				s.nSupportPerClass[1]++
			}
		}
	}
	s.collectClassifierSV(func(a float64) bool { return a != 0 })
	return nil
}

// svrSetSV folds the up/down tube slacks into a single coefficient per
// sample before collecting survivors.
func svrSetSV(s *solver) error {
	s.nSupport = 0
	for i := 0; i < s.n; i++ {
		s.alpha[i] -= s.alpha[i+s.n]
		if s.alpha[i] != 0 {
			s.nSupport++
		}
	}
	s.supportIdx = make([]int, 0, s.nSupport)
	s.supportCoef = make([]float64, 0, s.nSupport)
	for i := 0; i < s.n; i++ {
		if s.alpha[i] != 0 {
			s.supportIdx = append(s.supportIdx, i)
			s.supportCoef = append(s.supportCoef, s.alpha[i])
		}
	}
	return nil
}

// collectClassifierSV gathers support indices and coefficients, splitting
// them per class side when running under the multiclass driver.
func (s *solver) collectClassifierSV(keep func(float64) bool) {
	s.supportIdx = make([]int, 0, s.nSupport)
	s.supportCoef = make([]float64, 0, s.nSupport)
	s.supportIdxPos = s.supportIdxPos[:0]
	s.supportIdxNeg = s.supportIdxNeg[:0]
	for i := 0; i < s.n; i++ {
		if !keep(s.alpha[i]) {
			continue
		}
		if s.multiclass {
			if s.idxIsPos[i] {
				s.supportIdxPos = append(s.supportIdxPos, i)
			} else {
				s.supportIdxNeg = append(s.supportIdxNeg, i)
			}
		}
		s.supportIdx = append(s.supportIdx, i)
		s.supportCoef = append(s.supportCoef, s.alpha[i])
	}
}
