package estimate

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// Belief is an immutable belief snapshot: a mean vector together with its
// covariance matrix. It stores its own copies of both so later filter
// mutations never leak into an estimate handed to the caller.
type Belief struct {
	// mean is estimated mean vector
	mean *mat.VecDense
	// cov is estimate covariance
	cov *mat.SymDense
}

// New returns a belief snapshot of mean and cov.
// It returns error if the dimensions of mean and cov do not agree.
func New(mean mat.Vector, cov mat.Symmetric) (*Belief, error) {
	if mean == nil || cov == nil {
		return nil, fmt.Errorf("invalid belief: mean and covariance must be set")
	}

	if mean.Len() != cov.SymmetricDim() {
		return nil, fmt.Errorf("belief dimension mismatch: mean %d, cov %d x %d",
			mean.Len(), cov.SymmetricDim(), cov.SymmetricDim())
	}

	m := &mat.VecDense{}
	m.CloneFromVec(mean)

	c := mat.NewSymDense(cov.SymmetricDim(), nil)
	c.CopySym(cov)

	return &Belief{
		mean: m,
		cov:  c,
	}, nil
}

// Val returns a copy of the estimated mean vector.
func (b *Belief) Val() mat.Vector {
	m := &mat.VecDense{}
	m.CloneFromVec(b.mean)

	return m
}

// Cov returns a copy of the estimate covariance.
func (b *Belief) Cov() mat.Symmetric {
	c := mat.NewSymDense(b.cov.SymmetricDim(), nil)
	c.CopySym(b.cov)

	return c
}

// Dim returns the dimension of the estimated state.
func (b *Belief) Dim() int {
	return b.mean.Len()
}
