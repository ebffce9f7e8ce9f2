package vslam

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// Observation is a single landmark detection expressed in the sensor's
// local frame: an offset (DX, DZ) to the tag plus its unique identifier.
// Range and bearing are derived as r = hypot(DX, DZ), phi = atan2(DX, DZ).
type Observation struct {
	// DX is the lateral offset to the landmark
	DX float64
	// DZ is the forward offset to the landmark
	DZ float64
	// ID is the unique tag identifier of the landmark
	ID int
}

// Range returns the distance to the observed landmark.
func (o Observation) Range() float64 {
	return math.Hypot(o.DX, o.DZ)
}

// Bearing returns the angle to the observed landmark in the sensor frame.
func (o Observation) Bearing() float64 {
	return math.Atan2(o.DX, o.DZ)
}

// ObservationError reports a failed correction for one observation.
// The remaining observations of the same batch are unaffected.
type ObservationError struct {
	// ID is the tag identifier of the failed observation
	ID int
	// Err is the underlying failure
	Err error
}

// Error implements the error interface.
func (e ObservationError) Error() string {
	return fmt.Sprintf("observation %d: %v", e.ID, e.Err)
}

// Unwrap returns the underlying failure.
func (e ObservationError) Unwrap() error { return e.Err }

// Estimate is a belief estimate: a mean vector and its covariance.
type Estimate interface {
	// Val returns estimate value
	Val() mat.Vector
	// Cov returns estimate covariance
	Cov() mat.Symmetric
}

// InitCond is the initial condition of a filter.
type InitCond interface {
	// State returns initial filter state
	State() mat.Vector
	// Cov returns initial state covariance
	Cov() mat.Symmetric
}

// Filter is a landmark-fusing state estimator driven by a control loop:
// Predict once per control cycle, Update with the observation batch that
// arrived since the previous cycle.
type Filter interface {
	// Predict estimates the next state of the system given control input u
	Predict(u mat.Vector) (Estimate, error)
	// Update corrects the state with a batch of landmark observations.
	// It returns the per-observation failures alongside the new estimate.
	Update(obs []Observation) (Estimate, []ObservationError, error)
}

// NormAngle wraps angle a into the interval (-pi, pi].
// The result is invariant to adding integer multiples of 2*pi to a.
func NormAngle(a float64) float64 {
	a = math.Mod(a, 2*math.Pi)
	if a <= -math.Pi {
		a += 2 * math.Pi
	} else if a > math.Pi {
		a -= 2 * math.Pi
	}

	return a
}
