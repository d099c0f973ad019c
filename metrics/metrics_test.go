package metrics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestTimingAveragesObservations(t *testing.T) {
	tm := NewTiming()
	require.Equal(t, float64(0), tm.AverageMicros())

	tm.Observe(10 * time.Microsecond)
	tm.Observe(20 * time.Microsecond)
	require.Equal(t, float64(15), tm.AverageMicros())
}

func TestNilTimingIsNoOp(t *testing.T) {
	var tm *Timing
	tm.Observe(time.Second)
	require.Equal(t, float64(0), tm.AverageMicros())
}
