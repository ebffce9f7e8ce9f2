// Package slam implements an Extended Kalman Filter for simultaneous
// localization and mapping: it jointly estimates the planar pose of a
// mobile robot and the positions of uniquely identified landmarks observed
// during navigation.
//
// The belief is a mean vector of length 3 + 2M and a matching covariance
// matrix, where M is the number of registered landmarks. Indices 0..2 hold
// the robot pose (x, y, theta); indices 3+2j, 4+2j hold the position of the
// j-th registered landmark. The state grows as new tag IDs are observed and
// never shrinks.
package slam

import (
	"fmt"
	"math"

	gomatrix "github.com/milosgajdos/matrix"
	"gonum.org/v1/gonum/mat"

	"github.com/rovercore/vslam"
	"github.com/rovercore/vslam/estimate"
	"github.com/rovercore/vslam/matrix"
)

// defaultLandmarkVar is the initial variance of a newly registered
// landmark's coordinates, reflecting total initial uncertainty.
const defaultLandmarkVar = 1e6

// Config holds the immutable noise parameters of the filter.
type Config struct {
	// ProcessNoise holds the motion model variances: the first entry is
	// shared by x and y, the second is the heading variance.
	ProcessNoise [2]float64
	// SensorNoise holds the measurement variances for range and bearing.
	SensorNoise [2]float64
	// LandmarkVar is the initial variance of a new landmark's coordinates.
	// Zero selects the default of 1e6.
	LandmarkVar float64
}

// EKF is an EKF-SLAM filter. It exclusively owns its belief and landmark
// registry: Predict and Update are synchronous and perform no internal
// locking, so they must be driven from a single logical thread of control.
type EKF struct {
	// c holds the filter noise parameters
	c Config
	// mu is the belief mean: robot pose followed by landmark positions
	mu *mat.VecDense
	// cov is the belief covariance
	cov *mat.Dense
	// reg maps tag IDs to state indices
	reg *Registry
	// predicted records whether Predict has run at least once
	predicted bool
}

// New creates a new EKF-SLAM filter from the initial robot pose condition
// and the noise configuration.
// It returns error if the initial condition is not a 3-dimensional pose
// with a matching covariance, or if any configured variance is invalid.
func New(init vslam.InitCond, c Config) (*EKF, error) {
	if init == nil {
		return nil, fmt.Errorf("invalid init condition: %v", init)
	}

	if init.State().Len() != 3 {
		return nil, fmt.Errorf("invalid initial pose dimension: %d", init.State().Len())
	}

	if init.Cov().SymmetricDim() != 3 {
		return nil, fmt.Errorf("invalid initial covariance dimension: %d", init.Cov().SymmetricDim())
	}

	for _, v := range []float64{c.ProcessNoise[0], c.ProcessNoise[1], c.SensorNoise[0], c.SensorNoise[1], c.LandmarkVar} {
		if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("invalid noise variance: %f", v)
		}
	}

	if c.LandmarkVar == 0 {
		c.LandmarkVar = defaultLandmarkVar
	}

	mu := &mat.VecDense{}
	mu.CloneFromVec(init.State())

	cov := mat.NewDense(3, 3, nil)
	cov.Copy(init.Cov())

	return &EKF{
		c:   c,
		mu:  mu,
		cov: cov,
		reg: NewRegistry(),
	}, nil
}

// Predict propagates the belief with control input u, a 3-vector of linear
// and angular velocities. The motion model is additive-direct: u is added
// straight into the pose block without an explicit time step, the effective
// step duration being folded into the tuned process-noise variances. With an
// identity transition matrix the covariance propagation reduces to injecting
// the process noise into the pose block; landmark entries are unaffected.
// It returns error if u is not a finite 3-vector.
func (f *EKF) Predict(u mat.Vector) (vslam.Estimate, error) {
	if u == nil || u.Len() != 3 {
		return nil, fmt.Errorf("invalid control dimension")
	}

	for i := 0; i < 3; i++ {
		if !isFinite(u.AtVec(i)) {
			return nil, &DomainError{Reason: fmt.Sprintf("non-finite control component %d", i)}
		}
	}

	for i := 0; i < 3; i++ {
		f.mu.SetVec(i, f.mu.AtVec(i)+u.AtVec(i))
	}

	// Qt is zero outside the pose block: landmarks are static.
	f.cov.Set(0, 0, f.cov.At(0, 0)+f.c.ProcessNoise[0])
	f.cov.Set(1, 1, f.cov.At(1, 1)+f.c.ProcessNoise[0])
	f.cov.Set(2, 2, f.cov.At(2, 2)+f.c.ProcessNoise[1])

	f.predicted = true
	f.checkDims()

	return f.estimate()
}

// Update corrects the belief with a batch of landmark observations, one at
// a time in the order given, each correction using the belief left by the
// previous one. Unseen tag IDs are registered and the state grown before
// the affected correction. Observations that fail with a DomainError or
// NumericError are skipped and reported in the returned slice; corrections
// already applied stay applied.
// The whole call is rejected with a PreconditionError if the batch carries
// a duplicate tag ID or if Update is called before any Predict.
func (f *EKF) Update(obs []vslam.Observation) (vslam.Estimate, []vslam.ObservationError, error) {
	if !f.predicted {
		return nil, nil, &PreconditionError{Reason: "update before any predict"}
	}

	seen := make(map[int]struct{}, len(obs))
	for _, o := range obs {
		if _, ok := seen[o.ID]; ok {
			return nil, nil, &PreconditionError{Reason: fmt.Sprintf("duplicate tag ID %d in batch", o.ID)}
		}
		seen[o.ID] = struct{}{}
	}

	var failed []vslam.ObservationError
	for _, o := range obs {
		if err := f.fuse(o); err != nil {
			failed = append(failed, vslam.ObservationError{ID: o.ID, Err: err})
		}
		f.checkDims()
	}

	est, err := f.estimate()

	return est, failed, err
}

// fuse registers the observed landmark if needed and applies the EKF
// correction for a single observation.
func (f *EKF) fuse(o vslam.Observation) error {
	if !isFinite(o.DX) || !isFinite(o.DZ) {
		return &DomainError{Reason: "non-finite observation offset"}
	}

	r := o.Range()
	phi := o.Bearing()

	j := f.register(o.ID, r, phi)
	idx := 3 + 2*j

	x := f.mu.AtVec(0)
	y := f.mu.AtVec(1)
	theta := f.mu.AtVec(2)

	// delta is the offset from the pose estimate to the landmark estimate
	dx := f.mu.AtVec(idx) - x
	dy := f.mu.AtVec(idx+1) - y
	q := dx*dx + dy*dy

	if q == 0 {
		return &DomainError{Reason: "landmark estimate coincides with robot position"}
	}

	sq := math.Sqrt(q)
	n := f.mu.Len()

	// Fxj maps the pose block and the landmark's two coordinates into a
	// 5-dimensional sub-state.
	Fxj := mat.NewDense(5, n, nil)
	Fxj.Set(0, 0, 1)
	Fxj.Set(1, 1, 1)
	Fxj.Set(2, 2, 1)
	Fxj.Set(3, idx, 1)
	Fxj.Set(4, idx+1, 1)

	// J is the measurement Jacobian on the 5-dimensional sub-state.
	J := mat.NewDense(2, 5, []float64{
		-sq * dx / q, -sq * dy / q, 0, sq * dx / q, sq * dy / q,
		dy / q, -dx / q, -1, -dy / q, dx / q,
	})

	// H = J * Fxj is the full measurement Jacobian
	H := &mat.Dense{}
	H.Mul(J, Fxj)

	// P*H'
	pht := &mat.Dense{}
	pht.Mul(f.cov, H.T())

	// S = H*P*H' + Rt
	S := &mat.Dense{}
	S.Mul(H, pht)
	S.Set(0, 0, S.At(0, 0)+f.c.SensorNoise[0])
	S.Set(1, 1, S.At(1, 1)+f.c.SensorNoise[1])

	sInv := &mat.Dense{}
	if err := sInv.Inverse(S); err != nil {
		return &NumericError{Reason: "singular innovation covariance", Cause: err}
	}

	// K = P*H'*inv(S)
	K := &mat.Dense{}
	K.Mul(pht, sInv)

	// innovation with the bearing residual wrapped into (-pi, pi]
	inn := mat.NewVecDense(2, []float64{
		r - sq,
		vslam.NormAngle(phi - (math.Atan2(dy, dx) - theta)),
	})

	corr := &mat.VecDense{}
	corr.MulVec(K, inn)
	f.mu.AddVec(f.mu, corr)

	// cov = (I - K*H) * cov
	kh := &mat.Dense{}
	kh.Mul(K, H)
	eye, err := gomatrix.NewDenseValIdentity(n, 1.0)
	if err != nil {
		return &NumericError{Reason: "identity allocation failed", Cause: err}
	}
	kh.Sub(eye, kh)

	cov := &mat.Dense{}
	cov.Mul(kh, f.cov)
	matrix.Symmetrize(cov)
	f.cov = cov

	return nil
}

// register resolves the registration index of id, growing the belief when
// the tag has not been seen before: the landmark's initial position is
// derived from the current pose estimate and the observation's range and
// bearing, its covariance block is set to the configured initial variance
// and all cross-covariance terms start at zero.
func (f *EKF) register(id int, r, phi float64) int {
	if j, ok := f.reg.Index(id); ok {
		return j
	}

	x := f.mu.AtVec(0)
	y := f.mu.AtVec(1)
	theta := f.mu.AtVec(2)

	lx := x + r*math.Cos(phi+theta)
	ly := y + r*math.Sin(phi+theta)

	j := f.reg.Add(id)

	n := f.mu.Len()
	grown := mat.NewVecDense(n+2, nil)
	grown.CopyVec(f.mu)
	grown.SetVec(n, lx)
	grown.SetVec(n+1, ly)
	f.mu = grown

	f.cov = matrix.GrowSquare(f.cov, 2)
	f.cov.Set(n, n, f.c.LandmarkVar)
	f.cov.Set(n+1, n+1, f.c.LandmarkVar)

	f.checkDims()

	return j
}

// estimate snapshots the current belief.
func (f *EKF) estimate() (vslam.Estimate, error) {
	n := f.mu.Len()

	sym := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			sym.SetSym(i, j, f.cov.At(i, j))
		}
	}

	return estimate.New(f.mu, sym)
}

// checkDims enforces the belief dimension invariant at every mutation site.
func (f *EKF) checkDims() {
	n := f.mu.Len()
	r, c := f.cov.Dims()
	if n != 3+2*f.reg.Len() || r != n || c != n {
		panic(fmt.Sprintf("slam: belief dimension drift: mu %d, cov %dx%d, %d landmarks",
			n, r, c, f.reg.Len()))
	}
}

// Pose returns the current robot pose estimate (x, y, theta).
func (f *EKF) Pose() mat.Vector {
	pose := mat.NewVecDense(3, nil)
	for i := 0; i < 3; i++ {
		pose.SetVec(i, f.mu.AtVec(i))
	}

	return pose
}

// Cov returns a copy of the current belief covariance.
func (f *EKF) Cov() mat.Symmetric {
	n := f.mu.Len()
	cov := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			cov.SetSym(i, j, f.cov.At(i, j))
		}
	}

	return cov
}

// Dim returns the current belief dimension, 3 + 2M.
func (f *EKF) Dim() int {
	return f.mu.Len()
}

// Landmarks returns the registered tag IDs in first-seen order.
func (f *EKF) Landmarks() []int {
	return f.reg.IDs()
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
