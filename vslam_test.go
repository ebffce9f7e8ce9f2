package vslam

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormAngle(t *testing.T) {
	assert := assert.New(t)

	for _, test := range []struct {
		in   float64
		want float64
	}{
		{in: 0, want: 0},
		{in: math.Pi, want: math.Pi},
		{in: -math.Pi, want: math.Pi},
		{in: 2 * math.Pi, want: 0},
		{in: 3 * math.Pi / 2, want: -math.Pi / 2},
		{in: -3 * math.Pi / 2, want: math.Pi / 2},
		{in: 5 * math.Pi, want: math.Pi},
	} {
		assert.InDelta(test.want, NormAngle(test.in), 1e-12, "NormAngle(%f)", test.in)
	}
}

func TestNormAngleRange(t *testing.T) {
	assert := assert.New(t)

	// for any two bearings the normalized difference lies in (-pi, pi]
	// and is invariant to adding multiples of 2*pi to either input
	bearings := []float64{-math.Pi + 1e-9, -2.5, -1.0, -1e-9, 0, 1e-9, 1.0, 2.5, math.Pi}

	for _, a := range bearings {
		for _, b := range bearings {
			d := NormAngle(a - b)
			assert.True(d > -math.Pi && d <= math.Pi, "diff of %f and %f: %f", a, b, d)

			for _, k := range []float64{-2, -1, 1, 3} {
				shifted := NormAngle((a + k*2*math.Pi) - b)
				assert.InDelta(d, shifted, 1e-9)
			}
		}
	}
}

func TestObservationRangeBearing(t *testing.T) {
	assert := assert.New(t)

	o := Observation{DX: 1.0, DZ: 0.0, ID: 7}
	assert.InDelta(1.0, o.Range(), 1e-12)
	assert.InDelta(math.Pi/2, o.Bearing(), 1e-12)

	o = Observation{DX: 0.0, DZ: 2.0}
	assert.InDelta(2.0, o.Range(), 1e-12)
	assert.InDelta(0.0, o.Bearing(), 1e-12)

	o = Observation{DX: 1.0, DZ: 1.0}
	assert.InDelta(math.Sqrt2, o.Range(), 1e-12)
	assert.InDelta(math.Pi/4, o.Bearing(), 1e-12)
}

func TestObservationError(t *testing.T) {
	assert := assert.New(t)

	cause := errors.New("singular innovation covariance")
	e := ObservationError{ID: 7, Err: cause}
	assert.Contains(e.Error(), "7")
	assert.Equal(cause, e.Unwrap())
}
