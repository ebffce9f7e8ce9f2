package sim

import (
	"fmt"
	"math"
	"sort"
	"sync"

	"gonum.org/v1/gonum/mat"

	"github.com/rovercore/vslam"
	"github.com/rovercore/vslam/noise"
)

// Landmark is a static, uniquely tagged point in the world.
type Landmark struct {
	// ID is the unique tag identifier
	ID int
	// X, Y is the landmark position in the world frame
	X, Y float64
}

// World is the ground truth the estimator never sees directly: the true
// robot pose and the true landmark positions. The true pose follows the
// same additive kinematics the filter's motion model assumes.
// World is safe for a detector goroutine to sample while the control loop
// drives the pose.
type World struct {
	mu        sync.RWMutex
	pose      [3]float64
	landmarks []Landmark
	motion    noise.Noise
	sensor    noise.Noise
}

// NewWorld creates a world with the robot at pose (x, y, theta) and the
// given landmark map. Motion and detections are noiseless until noise
// sources are configured.
// It returns error if two landmarks share a tag ID.
func NewWorld(x, y, theta float64, landmarks []Landmark) (*World, error) {
	seen := make(map[int]struct{}, len(landmarks))
	for _, lm := range landmarks {
		if _, ok := seen[lm.ID]; ok {
			return nil, fmt.Errorf("duplicate landmark tag ID: %d", lm.ID)
		}
		seen[lm.ID] = struct{}{}
	}

	lms := make([]Landmark, len(landmarks))
	copy(lms, landmarks)
	// detection order is deterministic
	sort.Slice(lms, func(i, j int) bool { return lms[i].ID < lms[j].ID })

	return &World{
		pose:      [3]float64{x, y, theta},
		landmarks: lms,
	}, nil
}

// SetMotionNoise configures 3-dimensional noise added to every Apply.
func (w *World) SetMotionNoise(n noise.Noise) {
	w.motion = n
}

// SetSensorNoise configures 2-dimensional (range, bearing) noise added to
// every detection.
func (w *World) SetSensorNoise(n noise.Noise) {
	w.sensor = n
}

// Apply moves the true pose by control u, plus motion noise if configured.
// It returns error if u is not a 3-vector.
func (w *World) Apply(u mat.Vector) error {
	if u == nil || u.Len() != 3 {
		return fmt.Errorf("invalid control dimension")
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	for i := 0; i < 3; i++ {
		w.pose[i] += u.AtVec(i)
	}

	if w.motion != nil {
		s := w.motion.Sample()
		for i := 0; i < 3; i++ {
			w.pose[i] += s.AtVec(i)
		}
	}

	return nil
}

// Pose returns the true robot pose.
func (w *World) Pose() mat.Vector {
	w.mu.RLock()
	defer w.mu.RUnlock()

	return mat.NewVecDense(3, []float64{w.pose[0], w.pose[1], w.pose[2]})
}

// Landmarks returns the true landmark map ordered by tag ID.
func (w *World) Landmarks() []Landmark {
	lms := make([]Landmark, len(w.landmarks))
	copy(lms, w.landmarks)

	return lms
}

// Detect returns the landmarks within maxRange of the true pose as
// observations in the sensor's local frame, corrupted by the configured
// sensor noise. Observations are ordered by tag ID.
func (w *World) Detect(maxRange float64) []vslam.Observation {
	w.mu.RLock()
	x, y, theta := w.pose[0], w.pose[1], w.pose[2]
	w.mu.RUnlock()

	var obs []vslam.Observation
	for _, lm := range w.landmarks {
		dx := lm.X - x
		dy := lm.Y - y

		r := math.Hypot(dx, dy)
		if r > maxRange {
			continue
		}

		phi := vslam.NormAngle(math.Atan2(dy, dx) - theta)

		if w.sensor != nil {
			s := w.sensor.Sample()
			r += s.AtVec(0)
			phi = vslam.NormAngle(phi + s.AtVec(1))
		}
		if r < 0 {
			r = 0
		}

		// the sensor frame encodes bearing as atan2(dx, dz)
		obs = append(obs, vslam.Observation{
			DX: r * math.Sin(phi),
			DZ: r * math.Cos(phi),
			ID: lm.ID,
		})
	}

	return obs
}
