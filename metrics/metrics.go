// Package metrics holds the moving-average timing helpers shared by the
// block builder's OCC scheduler and the consensus driver (§5 "commit
// latency, round duration"). Counters that only ever go up (task counts,
// abort counts) stay as plain prometheus.Counter next to the code that
// increments them; this package exists for the handful of values where a
// running average, not a running total, is what an operator wants to read.
package metrics

import (
	"time"

	"github.com/luxfi/metric"
)

// Timing is a moving average over a stream of durations, backed by
// luxfi/metric's Averager (the same primitive the teacher's own consensus
// packages use for prisms/polls timing).
type Timing struct {
	avg metric.Averager
}

// NewTiming returns a Timing with no observations yet.
func NewTiming() *Timing {
	return &Timing{avg: metric.NewAverager()}
}

// Observe records one duration sample, in microseconds.
func (t *Timing) Observe(d time.Duration) {
	if t == nil {
		return
	}
	t.avg.Observe(float64(d.Microseconds()))
}

// AverageMicros returns the current moving average, in microseconds. Zero
// before the first observation.
func (t *Timing) AverageMicros() float64 {
	if t == nil {
		return 0
	}
	return t.avg.Read()
}
