package slam

import (
	"errors"
	"math"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"gonum.org/v1/gonum/mat"

	"github.com/rovercore/vslam"
	"github.com/rovercore/vslam/matrix"
	"github.com/rovercore/vslam/sim"
)

var (
	// noiseless filter configuration
	quiet Config
	// realistic tuning from the field runs
	tuned Config
)

func setup() {
	quiet = Config{}
	tuned = Config{
		ProcessNoise: [2]float64{0.1, 0.01},
		SensorNoise:  [2]float64{0.01, 0.01},
	}
}

func TestMain(m *testing.M) {
	setup()
	os.Exit(m.Run())
}

func newFilter(t *testing.T, x, y, theta float64, c Config) *EKF {
	t.Helper()

	f, err := New(sim.NewPoseInitCond(x, y, theta), c)
	if err != nil {
		t.Fatalf("failed to create filter: %v", err)
	}

	return f
}

func zeroControl() mat.Vector {
	return mat.NewVecDense(3, nil)
}

func TestNew(t *testing.T) {
	assert := assert.New(t)

	f, err := New(sim.NewPoseInitCond(0.61, 0.61, 0.0), tuned)
	assert.NotNil(f)
	assert.NoError(err)

	// nil init condition
	f, err = New(nil, tuned)
	assert.Nil(f)
	assert.Error(err)

	// wrong pose dimension
	ic := sim.NewInitCond(mat.NewVecDense(2, nil), mat.NewSymDense(2, nil))
	f, err = New(ic, tuned)
	assert.Nil(f)
	assert.Error(err)

	// negative variance
	f, err = New(sim.NewPoseInitCond(0, 0, 0), Config{ProcessNoise: [2]float64{-1, 0}})
	assert.Nil(f)
	assert.Error(err)

	// default landmark variance
	f, err = New(sim.NewPoseInitCond(0, 0, 0), Config{})
	assert.NoError(err)
	assert.Equal(defaultLandmarkVar, f.c.LandmarkVar)
}

func TestInitialization(t *testing.T) {
	assert := assert.New(t)

	f := newFilter(t, 0.61, 0.61, 0.0, quiet)

	est, err := f.Predict(zeroControl())
	assert.NoError(err)

	assert.Equal(3, est.Val().Len())
	assert.InDelta(0.61, est.Val().AtVec(0), 1e-12)
	assert.InDelta(0.61, est.Val().AtVec(1), 1e-12)
	assert.InDelta(0.0, est.Val().AtVec(2), 1e-12)

	assert.Equal(3, est.Cov().SymmetricDim())
	assert.Equal(0.0, mat.Sum(est.Cov()))
}

func TestPredict(t *testing.T) {
	assert := assert.New(t)

	f := newFilter(t, 0, 0, 0, tuned)

	u := mat.NewVecDense(3, []float64{0.5, -0.25, 0.1})
	est, err := f.Predict(u)
	assert.NoError(err)

	assert.InDelta(0.5, est.Val().AtVec(0), 1e-12)
	assert.InDelta(-0.25, est.Val().AtVec(1), 1e-12)
	assert.InDelta(0.1, est.Val().AtVec(2), 1e-12)

	// process noise injected into the pose block only
	assert.InDelta(0.1, est.Cov().At(0, 0), 1e-12)
	assert.InDelta(0.1, est.Cov().At(1, 1), 1e-12)
	assert.InDelta(0.01, est.Cov().At(2, 2), 1e-12)
	assert.InDelta(0.0, est.Cov().At(0, 1), 1e-12)

	// control is added directly: no implicit time-step scaling
	est, err = f.Predict(u)
	assert.NoError(err)
	assert.InDelta(1.0, est.Val().AtVec(0), 1e-12)
	assert.InDelta(0.2, est.Cov().At(0, 0), 1e-12)

	// wrong dimension
	_, err = f.Predict(mat.NewVecDense(2, nil))
	assert.Error(err)

	// non-finite control
	_, err = f.Predict(mat.NewVecDense(3, []float64{math.NaN(), 0, 0}))
	assert.Error(err)
	var domErr *DomainError
	assert.True(errors.As(err, &domErr))
}

func TestPredictLeavesLandmarksAlone(t *testing.T) {
	assert := assert.New(t)

	f := newFilter(t, 0, 0, 0, tuned)
	_, err := f.Predict(zeroControl())
	assert.NoError(err)

	_, failed, err := f.Update([]vslam.Observation{{DX: 1.0, DZ: 1.0, ID: 4}})
	assert.NoError(err)
	assert.Empty(failed)

	lmX := f.mu.AtVec(3)
	lmY := f.mu.AtVec(4)
	lmVar := f.cov.At(3, 3)

	est, err := f.Predict(mat.NewVecDense(3, []float64{1, 1, 0.5}))
	assert.NoError(err)

	assert.InDelta(lmX, est.Val().AtVec(3), 1e-12)
	assert.InDelta(lmY, est.Val().AtVec(4), 1e-12)
	assert.InDelta(lmVar, est.Cov().At(3, 3), 1e-12)
}

func TestFirstLandmarkRegistration(t *testing.T) {
	assert := assert.New(t)

	f := newFilter(t, 0, 0, 0, quiet)

	// dx=1, dz=0 resolves to r=1, phi=pi/2
	o := vslam.Observation{DX: 1.0, DZ: 0.0, ID: 7}
	assert.InDelta(1.0, o.Range(), 1e-12)
	assert.InDelta(math.Pi/2, o.Bearing(), 1e-12)

	j := f.register(o.ID, o.Range(), o.Bearing())
	assert.Equal(0, j)

	idx, ok := f.reg.Index(7)
	assert.True(ok)
	assert.Equal(0, idx)

	assert.Equal(5, f.Dim())
	assert.InDelta(math.Cos(math.Pi/2), f.mu.AtVec(3), 1e-12)
	assert.InDelta(math.Sin(math.Pi/2), f.mu.AtVec(4), 1e-12)

	// new block is the large-uncertainty diagonal, cross terms zero
	assert.Equal(defaultLandmarkVar, f.cov.At(3, 3))
	assert.Equal(defaultLandmarkVar, f.cov.At(4, 4))
	assert.Equal(0.0, f.cov.At(3, 4))
	for i := 0; i < 3; i++ {
		assert.Equal(0.0, f.cov.At(i, 3))
		assert.Equal(0.0, f.cov.At(i, 4))
		assert.Equal(0.0, f.cov.At(3, i))
		assert.Equal(0.0, f.cov.At(4, i))
	}
}

func TestRegisterIdempotent(t *testing.T) {
	assert := assert.New(t)

	f := newFilter(t, 0, 0, 0, tuned)
	_, err := f.Predict(zeroControl())
	assert.NoError(err)

	obs := []vslam.Observation{{DX: 1.0, DZ: 0.0, ID: 7}}

	_, failed, err := f.Update(obs)
	assert.NoError(err)
	assert.Empty(failed)
	assert.Equal(5, f.Dim())

	// a second sighting of the same tag must not grow the state again
	_, err = f.Predict(zeroControl())
	assert.NoError(err)
	_, failed, err = f.Update(obs)
	assert.NoError(err)
	assert.Empty(failed)
	assert.Equal(5, f.Dim())
	assert.Equal([]int{7}, f.Landmarks())

	j := f.register(7, 1.0, math.Pi/2)
	assert.Equal(0, j)
	assert.Equal(5, f.Dim())
}

func TestDimsAndSymmetry(t *testing.T) {
	assert := assert.New(t)

	f := newFilter(t, 0.61, 0.61, 0.0, tuned)

	batches := [][]vslam.Observation{
		{{DX: 1.0, DZ: 0.5, ID: 1}},
		{{DX: 0.9, DZ: 0.6, ID: 1}, {DX: -0.5, DZ: 1.5, ID: 2}},
		{{DX: -0.4, DZ: 1.4, ID: 2}, {DX: 0.1, DZ: 2.0, ID: 3}},
		{{DX: 1.1, DZ: 0.4, ID: 1}, {DX: 0.2, DZ: 1.9, ID: 3}},
	}
	u := mat.NewVecDense(3, []float64{0.05, 0.02, 0.01})

	for _, batch := range batches {
		est, err := f.Predict(u)
		assert.NoError(err)
		assert.Equal(f.Dim(), est.Cov().SymmetricDim())

		est, failed, err := f.Update(batch)
		assert.NoError(err)
		assert.Empty(failed)

		assert.Equal(3+2*len(f.Landmarks()), f.Dim())
		assert.Equal(f.Dim(), est.Val().Len())
		assert.Equal(f.Dim(), est.Cov().SymmetricDim())
		assert.True(matrix.IsSymmetric(f.cov, 1e-9))
	}

	assert.Equal([]int{1, 2, 3}, f.Landmarks())
}

func TestRepeatedIdenticalMeasurement(t *testing.T) {
	assert := assert.New(t)

	f := newFilter(t, 0, 0, 0, Config{SensorNoise: [2]float64{0.01, 0.01}})
	_, err := f.Predict(zeroControl())
	assert.NoError(err)

	o := vslam.Observation{DX: 1.0, DZ: 1.0, ID: 9}

	// the value implied by the first observation
	r := o.Range()
	phi := o.Bearing()
	wantX := r * math.Cos(phi)
	wantY := r * math.Sin(phi)

	prevVar := math.Inf(1)
	for i := 0; i < 10; i++ {
		_, failed, err := f.Update([]vslam.Observation{o})
		assert.NoError(err)
		assert.Empty(failed)

		// estimate stays pinned to the implied value
		assert.InDelta(wantX, f.mu.AtVec(3), 1e-9)
		assert.InDelta(wantY, f.mu.AtVec(4), 1e-9)

		// landmark uncertainty shrinks monotonically
		v := f.cov.At(3, 3)
		assert.LessOrEqual(v, prevVar+1e-12)
		prevVar = v
	}
}

func TestSingularInnovationCovariance(t *testing.T) {
	assert := assert.New(t)

	// zero sensor noise: the first correction collapses the landmark
	// block, so the next innovation covariance is exactly singular
	f := newFilter(t, 0, 0, 0, quiet)
	_, err := f.Predict(zeroControl())
	assert.NoError(err)

	o := vslam.Observation{DX: 1.0, DZ: 0.0, ID: 7}

	_, failed, err := f.Update([]vslam.Observation{o})
	assert.NoError(err)
	assert.Empty(failed)

	est, failed, err := f.Update([]vslam.Observation{o})
	assert.NoError(err)
	assert.Len(failed, 1)
	assert.Equal(7, failed[0].ID)

	var numErr *NumericError
	assert.True(errors.As(failed[0].Err, &numErr))

	// the belief must remain finite, not NaN-filled
	for i := 0; i < est.Val().Len(); i++ {
		assert.False(math.IsNaN(est.Val().AtVec(i)))
	}
}

func TestDuplicateIDInBatch(t *testing.T) {
	assert := assert.New(t)

	f := newFilter(t, 0, 0, 0, tuned)
	_, err := f.Predict(zeroControl())
	assert.NoError(err)

	dim := f.Dim()
	batch := []vslam.Observation{
		{DX: 1.0, DZ: 0.0, ID: 3},
		{DX: 0.5, DZ: 0.5, ID: 3},
	}

	est, failed, err := f.Update(batch)
	assert.Nil(est)
	assert.Nil(failed)
	assert.Error(err)

	var preErr *PreconditionError
	assert.True(errors.As(err, &preErr))

	// the whole call is rejected: belief untouched
	assert.Equal(dim, f.Dim())
	assert.Empty(f.Landmarks())
}

func TestUpdateBeforePredict(t *testing.T) {
	assert := assert.New(t)

	f := newFilter(t, 0, 0, 0, tuned)

	est, failed, err := f.Update([]vslam.Observation{{DX: 1.0, DZ: 0.0, ID: 1}})
	assert.Nil(est)
	assert.Nil(failed)
	assert.Error(err)

	var preErr *PreconditionError
	assert.True(errors.As(err, &preErr))
}

func TestSkipAndReport(t *testing.T) {
	assert := assert.New(t)

	f := newFilter(t, 0, 0, 0, tuned)
	_, err := f.Predict(zeroControl())
	assert.NoError(err)

	batch := []vslam.Observation{
		{DX: 1.0, DZ: 0.5, ID: 1},
		{DX: math.NaN(), DZ: 0.0, ID: 2},
		// zero offset: landmark registered at the robot position, q = 0
		{DX: 0.0, DZ: 0.0, ID: 5},
		{DX: -0.5, DZ: 1.0, ID: 6},
	}

	est, failed, err := f.Update(batch)
	assert.NoError(err)
	assert.NotNil(est)
	assert.Len(failed, 2)

	assert.Equal(2, failed[0].ID)
	var domErr *DomainError
	assert.True(errors.As(failed[0].Err, &domErr))

	assert.Equal(5, failed[1].ID)
	assert.True(errors.As(failed[1].Err, &domErr))

	// observations 1 and 6 were fused, 5 stayed registered at its
	// initial estimate despite the failed correction
	assert.Equal([]int{1, 5, 6}, f.Landmarks())
	assert.Equal(3+2*3, f.Dim())
}

func TestEstimatePoseExtraction(t *testing.T) {
	assert := assert.New(t)

	f := newFilter(t, 0.61, 0.61, 0.0, tuned)
	_, err := f.Predict(mat.NewVecDense(3, []float64{0.1, 0.0, 0.05}))
	assert.NoError(err)

	pose := f.Pose()
	assert.Equal(3, pose.Len())
	assert.InDelta(0.71, pose.AtVec(0), 1e-12)
	assert.InDelta(0.61, pose.AtVec(1), 1e-12)
	assert.InDelta(0.05, pose.AtVec(2), 1e-12)
}
