// Package control provides the waypoint-tracking feedback controller that
// turns a pose error into a velocity command. It is a collaborator of the
// estimator, not part of it: the control loop feeds the controller the
// current pose estimate and hands the resulting command to both the
// actuators and the filter's predict step.
package control

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/rovercore/vslam"
)

// PID is a proportional-integral-derivative controller on the planar pose
// error (x, y, theta), with the heading error wrapped into (-pi, pi] and
// the output speed clamped.
type PID struct {
	kp, ki, kd float64
	target     [3]float64
	integral   [3]float64
	lastErr    [3]float64
	hasLast    bool
	// maxSpeed caps the norm of the output twist
	maxSpeed float64
}

// NewPID creates a PID controller with the given gains.
// It returns error if any gain is negative.
func NewPID(kp, ki, kd float64) (*PID, error) {
	if kp < 0 || ki < 0 || kd < 0 {
		return nil, fmt.Errorf("invalid PID gains: %f, %f, %f", kp, ki, kd)
	}

	return &PID{
		kp:       kp,
		ki:       ki,
		kd:       kd,
		maxSpeed: 0.3,
	}, nil
}

// SetMaxSpeed caps the norm of the controller output.
func (c *PID) SetMaxSpeed(v float64) {
	c.maxSpeed = v
}

// SetTarget sets the target waypoint (x, y, theta) and resets the
// integral and derivative history.
func (c *PID) SetTarget(x, y, theta float64) {
	c.target = [3]float64{x, y, theta}
	c.integral = [3]float64{}
	c.lastErr = [3]float64{}
	c.hasLast = false
}

// Error returns the pose error between state and the current target, with
// the heading component wrapped into (-pi, pi].
func (c *PID) Error(state mat.Vector) mat.Vector {
	e := mat.NewVecDense(3, nil)
	for i := 0; i < 3; i++ {
		e.SetVec(i, c.target[i]-state.AtVec(i))
	}
	e.SetVec(2, vslam.NormAngle(e.AtVec(2)))

	return e
}

// Update computes the next world-frame twist for the current pose estimate.
func (c *PID) Update(state mat.Vector) mat.Vector {
	e := c.Error(state)

	out := mat.NewVecDense(3, nil)
	for i := 0; i < 3; i++ {
		ei := e.AtVec(i)
		c.integral[i] += ei

		d := 0.0
		if c.hasLast {
			d = ei - c.lastErr[i]
		}
		c.lastErr[i] = ei

		out.SetVec(i, c.kp*ei+c.ki*c.integral[i]+c.kd*d)
	}
	c.hasLast = true

	// clamp the command so the additive motion model stays valid
	if norm := mat.Norm(out, 2); norm > c.maxSpeed && norm > 0 {
		out.ScaleVec(c.maxSpeed/norm, out)
	}

	return out
}

// Arrived reports whether state is within tol of the current target.
func (c *PID) Arrived(state mat.Vector, tol float64) bool {
	return mat.Norm(c.Error(state), 2) <= tol
}

// BodyFrame rotates the world-frame twist into the robot frame of the
// given pose, which is what the actuators consume.
func BodyFrame(twist, state mat.Vector) mat.Vector {
	theta := state.AtVec(2)

	cos := math.Cos(theta)
	sin := math.Sin(theta)

	return mat.NewVecDense(3, []float64{
		cos*twist.AtVec(0) + sin*twist.AtVec(1),
		-sin*twist.AtVec(0) + cos*twist.AtVec(1),
		twist.AtVec(2),
	})
}
