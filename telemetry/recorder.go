// Package telemetry persists belief samples for offline analysis. Each
// sample is two CSV rows: the first holds the elapsed time, the flattened
// mean vector and the ordered list of registered landmark tag IDs; the
// second holds the full covariance matrix flattened in row-major order.
// The layout matches the existing field logs exactly.
package telemetry

import (
	"encoding/csv"
	"io"
	"strconv"
	"time"

	"github.com/rovercore/vslam"
	"github.com/rovercore/vslam/matrix"
)

// DefaultInterval is the wall-clock spacing between samples.
const DefaultInterval = 200 * time.Millisecond

// Recorder writes interval-gated belief samples to a CSV stream.
type Recorder struct {
	w        *csv.Writer
	interval time.Duration
	// elapsed accumulates the time covered by written samples
	elapsed time.Duration
	last    time.Time
	now     func() time.Time
}

// NewRecorder creates a recorder writing to w, emitting at most one sample
// per interval. A non-positive interval selects DefaultInterval.
func NewRecorder(w io.Writer, interval time.Duration) *Recorder {
	if interval <= 0 {
		interval = DefaultInterval
	}

	r := &Recorder{
		w:        csv.NewWriter(w),
		interval: interval,
		now:      time.Now,
	}
	r.last = r.now()

	return r
}

// Record writes one sample unconditionally.
func (r *Recorder) Record(est vslam.Estimate, ids []int) error {
	mu := est.Val()

	row := make([]string, 0, 1+mu.Len()+len(ids))
	row = append(row, formatFloat(r.elapsed.Seconds()))
	for i := 0; i < mu.Len(); i++ {
		row = append(row, formatFloat(mu.AtVec(i)))
	}
	for _, id := range ids {
		row = append(row, strconv.Itoa(id))
	}

	if err := r.w.Write(row); err != nil {
		return err
	}

	cov := matrix.Flatten(est.Cov())
	row = make([]string, 0, len(cov))
	for _, v := range cov {
		row = append(row, formatFloat(v))
	}

	if err := r.w.Write(row); err != nil {
		return err
	}
	r.w.Flush()

	return r.w.Error()
}

// Sample writes one sample if at least one interval elapsed since the last
// written sample. It reports whether a sample was written.
func (r *Recorder) Sample(est vslam.Estimate, ids []int) (bool, error) {
	now := r.now()
	since := now.Sub(r.last)
	if since < r.interval {
		return false, nil
	}

	r.elapsed += since
	r.last = now

	if err := r.Record(est, ids); err != nil {
		return false, err
	}

	return true, nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
