// `mlearn` main package provides the shared configuration, status codes and
// data-matrix plumbing used by the estimator subpackages.
package mlearn

func init() {
	SetDefaultConfig()
}
