package noise

import (
	"fmt"
	"time"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distmv"
)

// Gaussian is additive white Gaussian noise.
type Gaussian struct {
	// dist is a multivariate normal distribution
	dist *distmv.Normal
	// mean is Gaussian mean
	mean []float64
	// cov is Gaussian covariance
	cov mat.Symmetric
}

// NewGaussian creates new Gaussian noise with the given mean and covariance.
// It returns error if the covariance is not positive semi-definite or if
// the dimensions of mean and cov do not agree.
func NewGaussian(mean []float64, cov mat.Symmetric) (*Gaussian, error) {
	return newGaussian(mean, cov, uint64(time.Now().UnixNano()))
}

// NewGaussianSeeded is like NewGaussian but with a fixed random seed.
// It is meant for tests and reproducible simulations.
func NewGaussianSeeded(mean []float64, cov mat.Symmetric, seed uint64) (*Gaussian, error) {
	return newGaussian(mean, cov, seed)
}

// NewDiagonal creates zero-mean Gaussian noise with a diagonal covariance
// built from the supplied variances.
// It returns error if any variance is negative.
func NewDiagonal(variances ...float64) (*Gaussian, error) {
	cov := mat.NewSymDense(len(variances), nil)
	for i, v := range variances {
		if v < 0 {
			return nil, fmt.Errorf("invalid variance: %f", v)
		}
		cov.SetSym(i, i, v)
	}

	return NewGaussian(make([]float64, len(variances)), cov)
}

func newGaussian(mean []float64, cov mat.Symmetric, seed uint64) (*Gaussian, error) {
	if cov == nil || len(mean) != cov.SymmetricDim() {
		return nil, fmt.Errorf("gaussian dimension mismatch: mean %d", len(mean))
	}

	src := rand.New(rand.NewSource(seed))
	dist, ok := distmv.NewNormal(mean, cov, src)
	if !ok {
		return nil, fmt.Errorf("failed to create gaussian noise")
	}

	return &Gaussian{
		dist: dist,
		mean: mean,
		cov:  cov,
	}, nil
}

// Sample draws a sample of the noise and returns it.
func (g *Gaussian) Sample() mat.Vector {
	s := g.dist.Rand(nil)
	return mat.NewVecDense(len(s), s)
}

// Cov returns the noise covariance matrix.
func (g *Gaussian) Cov() mat.Symmetric {
	return g.cov
}

// Mean returns the noise mean.
func (g *Gaussian) Mean() []float64 {
	return g.mean
}

// String implements the Stringer interface.
func (g *Gaussian) String() string {
	return fmt.Sprintf("Gaussian{\nMean=%v\nCov=%v\n}",
		g.mean, mat.Formatted(g.cov, mat.Prefix("    "), mat.Squeeze()))
}
