// Package svm implements the decomposition-based SMO training engine for the
// C-SVC, eps-SVR, nu-SVC and nu-SVR formulations, wrapped by a one-versus-one
// multiclass driver.
package svm

import (
	"github.com/HazelnutParadise/mlearn/kernel"
)

// Model selects the SVM formulation.
type Model int

const (
	SVC Model = iota
	SVR
	NuSVC
	NuSVR
)

func (m Model) String() string {
	switch m {
	case SVC:
		return "svc"
	case SVR:
		return "svr"
	case NuSVC:
		return "nusvc"
	case NuSVR:
		return "nusvr"
	}
	return "unknown"
}

func (m Model) isClassifier() bool { return m == SVC || m == NuSVC }
func (m Model) isNu() bool         { return m == NuSVC || m == NuSVR }

// Shape selects the decision-function layout for classifiers.
type Shape int

const (
	// OVO returns one column per binary classifier.
	OVO Shape = iota
	// OVR folds the pairwise confidences into one column per class.
	OVR
)

// Params holds the SVM hyper-parameters and solver controls. Zero values are
// not meaningful defaults; start from DefaultParams.
type Params struct {
	Kernel kernel.Kind
	// C is the box constraint for the C formulations and eps-SVR.
	C float64
	// Gamma below zero is replaced at fit time by 1/(p*Var(X)).
	Gamma  float64
	Degree int
	Coef0  float64
	// Nu bounds the support-vector fraction in the nu formulations.
	Nu float64
	// Epsilon is the eps-SVR tube half-width.
	Epsilon float64
	// Tau clips the curvature term in the two-variable update from below.
	Tau float64
	// Tol is the outer convergence tolerance.
	Tol float64
	// MaxIter caps outer iterations; zero means effectively unbounded.
	MaxIter int
}

// DefaultParams mirrors the registry defaults of the solver.
func DefaultParams() Params {
	return Params{
		Kernel:  kernel.RBF,
		C:       1,
		Gamma:   -1,
		Degree:  3,
		Coef0:   0,
		Nu:      0.5,
		Epsilon: 0.1,
		Tau:     1e-12,
		Tol:     1e-3,
		MaxIter: 0,
	}
}

// maxWorkingSetSize caps the outer working set; the effective size is the
// largest power of two not exceeding the number of dual variables.
const maxWorkingSetSize = kernel.TrainBlockSize

// maxBlockSize bounds support-vector blocks during prediction and gradient
// initialisation.
const maxBlockSize = kernel.PredictBlockSize
