package noise

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// Zero is the absence of noise: zero mean and zero covariance.
type Zero struct {
	dim int
}

// NewZero creates new zero noise of the given dimension.
// It returns error if dim is not positive.
func NewZero(dim int) (*Zero, error) {
	if dim <= 0 {
		return nil, fmt.Errorf("invalid noise dimension: %d", dim)
	}

	return &Zero{dim: dim}, nil
}

// Sample returns a zero vector.
func (z *Zero) Sample() mat.Vector {
	return mat.NewVecDense(z.dim, nil)
}

// Cov returns a zero covariance matrix.
func (z *Zero) Cov() mat.Symmetric {
	return mat.NewSymDense(z.dim, nil)
}

// Mean returns a zero mean.
func (z *Zero) Mean() []float64 {
	return make([]float64, z.dim)
}

// String implements the Stringer interface.
func (z *Zero) String() string {
	return fmt.Sprintf("Zero{Dim=%d}", z.dim)
}
