// Package sim provides a ground-truth world simulation used to exercise
// the estimator: a robot pose driven by the same additive kinematics the
// filter assumes, a static landmark map and a range-limited tag detector.
package sim

import (
	"gonum.org/v1/gonum/mat"
)

// InitCond implements vslam.InitCond.
type InitCond struct {
	state *mat.VecDense
	cov   *mat.SymDense
}

// NewInitCond creates a new initial condition from state and cov.
func NewInitCond(state mat.Vector, cov mat.Symmetric) *InitCond {
	s := &mat.VecDense{}
	s.CloneFromVec(state)

	c := mat.NewSymDense(cov.SymmetricDim(), nil)
	c.CopySym(cov)

	return &InitCond{
		state: s,
		cov:   c,
	}
}

// NewPoseInitCond creates an initial condition for pose (x, y, theta) with
// zero initial covariance.
func NewPoseInitCond(x, y, theta float64) *InitCond {
	return NewInitCond(
		mat.NewVecDense(3, []float64{x, y, theta}),
		mat.NewSymDense(3, nil),
	)
}

// State returns the initial state.
func (c *InitCond) State() mat.Vector {
	s := &mat.VecDense{}
	s.CloneFromVec(c.state)

	return s
}

// Cov returns the initial state covariance.
func (c *InitCond) Cov() mat.Symmetric {
	cov := mat.NewSymDense(c.cov.SymmetricDim(), nil)
	cov.CopySym(c.cov)

	return cov
}
