// Package noise provides noise sources for simulation and filter tuning.
package noise

import "gonum.org/v1/gonum/mat"

// Noise is a random disturbance with known statistics.
type Noise interface {
	// Mean returns noise mean
	Mean() []float64
	// Cov returns covariance matrix of the noise
	Cov() mat.Symmetric
	// Sample returns a sample of the noise
	Sample() mat.Vector
}
