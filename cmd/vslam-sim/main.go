// Command vslam-sim drives the EKF-SLAM estimator through a waypoint run:
// a PID controller issues velocity commands against the estimated pose, a
// simulated tag detector feeds landmark observations through a mailbox, and
// the belief is persisted as CSV telemetry.
package main

import (
	"flag"
	"math"
	"os"
	"time"

	log "github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/plot/vg"

	"github.com/rovercore/vslam"
	"github.com/rovercore/vslam/control"
	"github.com/rovercore/vslam/noise"
	"github.com/rovercore/vslam/sim"
	"github.com/rovercore/vslam/slam"
	"github.com/rovercore/vslam/telemetry"
)

var (
	telemetryPath string
	plotPath      string
	maxRange      float64
	maxCycles     int
	cyclePeriod   time.Duration
	detectPeriod  time.Duration
	seed          uint64
)

func init() {
	flag.StringVar(&telemetryPath, "telemetry", "telemetry.csv", "telemetry CSV output path")
	flag.StringVar(&plotPath, "plot", "", "trajectory plot output path (PNG), empty to skip")
	flag.Float64Var(&maxRange, "max-range", 2.0, "tag detector range limit")
	flag.IntVar(&maxCycles, "max-cycles", 5000, "control cycle cap")
	flag.DurationVar(&cyclePeriod, "cycle", 50*time.Millisecond, "control cycle period")
	flag.DurationVar(&detectPeriod, "detect", 30*time.Millisecond, "detector period")
	flag.Uint64Var(&seed, "seed", 42, "simulation noise seed")
}

// wallLandmarks is the tag layout along the arena walls.
var wallLandmarks = []sim.Landmark{
	{ID: 1, X: 3.05, Y: 2.44},
	{ID: 2, X: 0.61, Y: 3.05},
	{ID: 3, X: 2.44, Y: 0.0},
	{ID: 4, X: 3.05, Y: 0.61},
	{ID: 5, X: 0.61, Y: 0.0},
	{ID: 6, X: 0.0, Y: 0.61},
	{ID: 7, X: 0.0, Y: 2.44},
	{ID: 8, X: 2.44, Y: 3.05},
	{ID: 9, X: 3.05, Y: 1.525},
	{ID: 10, X: 1.525, Y: 3.05},
	{ID: 11, X: 1.525, Y: 0.0},
	{ID: 12, X: 0.0, Y: 1.525},
}

// waypoints is the precomputed route from start to goal.
var waypoints = [][3]float64{
	{0.61, 0.61, 0.0},
	{2.20, 0.60, 0.0},
	{2.40, 0.80, 0.0},
	{2.40, 2.40, math.Pi / 2},
}

func main() {
	flag.Parse()

	if err := run(); err != nil {
		log.WithError(err).Fatal("simulation failed")
	}
}

func run() error {
	start := waypoints[0]

	world, err := sim.NewWorld(start[0], start[1], start[2], wallLandmarks)
	if err != nil {
		return err
	}

	motionNoise, err := noise.NewGaussianSeeded(
		make([]float64, 3),
		mat.NewSymDense(3, []float64{1e-4, 0, 0, 0, 1e-4, 0, 0, 0, 1e-5}),
		seed,
	)
	if err != nil {
		return err
	}
	world.SetMotionNoise(motionNoise)

	sensorNoise, err := noise.NewGaussianSeeded(
		make([]float64, 2),
		mat.NewSymDense(2, []float64{1e-4, 0, 0, 1e-4}),
		seed+1,
	)
	if err != nil {
		return err
	}
	world.SetSensorNoise(sensorNoise)

	filter, err := slam.New(sim.NewPoseInitCond(start[0], start[1], start[2]), slam.Config{
		ProcessNoise: [2]float64{0.1, 0.01},
		SensorNoise:  [2]float64{0.01, 0.01},
	})
	if err != nil {
		return err
	}

	pid, err := control.NewPID(0.04, 0.0005, 0.00005)
	if err != nil {
		return err
	}

	out, err := os.Create(telemetryPath)
	if err != nil {
		return err
	}
	defer out.Close()
	recorder := telemetry.NewRecorder(out, telemetry.DefaultInterval)

	// the detector pushes observations asynchronously; the mailbox hands
	// the control loop a consistent snapshot each cycle
	mailbox := slam.NewMailbox()
	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(detectPeriod)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				mailbox.Put(world.Detect(maxRange)...)
			}
		}
	}()
	defer close(done)

	var truthPath, estPath []float64
	pose := filter.Pose()
	fused, dropped := 0, 0

	ticker := time.NewTicker(cyclePeriod)
	defer ticker.Stop()

	wp := 0
	pid.SetTarget(waypoints[wp][0], waypoints[wp][1], waypoints[wp][2])
	log.WithField("waypoint", waypoints[wp]).Info("moving to waypoint")

	for cycle := 0; cycle < maxCycles && wp < len(waypoints); cycle++ {
		<-ticker.C

		u := pid.Update(pose)

		// the actuators consume the command in the robot frame; the
		// simulated truth integrates the world-frame command directly
		actuate := control.BodyFrame(u, pose)
		log.WithField("twist", mat.Formatted(actuate.T())).Debug("command issued")
		if err := world.Apply(u); err != nil {
			return err
		}

		est, err := filter.Predict(u)
		if err != nil {
			return err
		}

		if batch := mailbox.Swap(); len(batch) > 0 {
			var failed []vslam.ObservationError
			est, failed, err = filter.Update(batch)
			if err != nil {
				return err
			}

			fused += len(batch) - len(failed)
			dropped += len(failed)
			for _, oe := range failed {
				log.WithField("tag", oe.ID).WithError(oe.Err).Warn("observation skipped")
			}
		}

		pose = filter.Pose()
		truth := world.Pose()
		truthPath = append(truthPath, truth.AtVec(0), truth.AtVec(1))
		estPath = append(estPath, pose.AtVec(0), pose.AtVec(1))

		if _, err := recorder.Sample(est, filter.Landmarks()); err != nil {
			return err
		}

		if pid.Arrived(pose, 0.13) {
			wp++
			if wp < len(waypoints) {
				pid.SetTarget(waypoints[wp][0], waypoints[wp][1], waypoints[wp][2])
				log.WithField("waypoint", waypoints[wp]).Info("moving to waypoint")
			}
		}
	}

	log.WithFields(log.Fields{
		"landmarks": len(filter.Landmarks()),
		"fused":     fused,
		"dropped":   dropped,
		"dim":       filter.Dim(),
	}).Info("run finished")

	if plotPath != "" {
		return savePlot(world, truthPath, estPath)
	}

	return nil
}

func savePlot(world *sim.World, truthPath, estPath []float64) error {
	if len(truthPath) == 0 || len(estPath) == 0 {
		return nil
	}

	truth := mat.NewDense(len(truthPath)/2, 2, truthPath)
	est := mat.NewDense(len(estPath)/2, 2, estPath)

	p, err := sim.NewTrajectoryPlot(truth, est, world.Landmarks())
	if err != nil {
		return err
	}

	return p.Save(6*vg.Inch, 6*vg.Inch, plotPath)
}
