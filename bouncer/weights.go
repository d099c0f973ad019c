// Package bouncer implements the block-capacity admission controller (§4.C):
// it tracks a 5-axis resource tuple per block and admits or rejects
// transactions against a configured maximum.
package bouncer

import (
	"errors"
	"fmt"
)

// ErrWeightOverflow is returned (never panics) when adding two weight
// tuples would overflow a counter (§3.3 "Addition is checked").
var ErrWeightOverflow = errors.New("bouncer: weight addition overflowed")

// Weights is the 5-tuple of non-negative resource counters the bouncer
// tracks (§3.3).
type Weights struct {
	L1Gas                 uint64
	MessageSegmentLength  uint64
	NEvents               uint64
	StateDiffSize         uint64
	SierraGas             uint64
}

// checkedAdd adds b to a, returning ErrWeightOverflow if any component
// overflows uint64.
func checkedAdd(a, b uint64) (uint64, error) {
	r := a + b
	if r < a {
		return 0, ErrWeightOverflow
	}
	return r, nil
}

// Add returns w+other, or an error if any component overflows.
func (w Weights) Add(other Weights) (Weights, error) {
	var out Weights
	var err error
	if out.L1Gas, err = checkedAdd(w.L1Gas, other.L1Gas); err != nil {
		return Weights{}, fmt.Errorf("%w: l1_gas", err)
	}
	if out.MessageSegmentLength, err = checkedAdd(w.MessageSegmentLength, other.MessageSegmentLength); err != nil {
		return Weights{}, fmt.Errorf("%w: message_segment_length", err)
	}
	if out.NEvents, err = checkedAdd(w.NEvents, other.NEvents); err != nil {
		return Weights{}, fmt.Errorf("%w: n_events", err)
	}
	if out.StateDiffSize, err = checkedAdd(w.StateDiffSize, other.StateDiffSize); err != nil {
		return Weights{}, fmt.Errorf("%w: state_diff_size", err)
	}
	if out.SierraGas, err = checkedAdd(w.SierraGas, other.SierraGas); err != nil {
		return Weights{}, fmt.Errorf("%w: sierra_gas", err)
	}
	return out, nil
}

// Dominates reports whether every component of max is >= the corresponding
// component of w (componentwise domination, §3.3).
func (w Weights) Dominates(max Weights) bool {
	return max.L1Gas >= w.L1Gas &&
		max.MessageSegmentLength >= w.MessageSegmentLength &&
		max.NEvents >= w.NEvents &&
		max.StateDiffSize >= w.StateDiffSize &&
		max.SierraGas >= w.SierraGas
}

// GasTable converts VM resource usage (steps + per-builtin counts) into a
// sierra_gas weight (§3.3, §4.C). Conversions are checked for overflow; per
// the spec, overflow here indicates a mis-sized block and is a programmer
// error, not a runtime condition, so it panics.
type GasTable struct {
	GasPerStep    uint64
	GasPerBuiltin map[string]uint64
}

// SierraGasCost converts nSteps and builtin usage counts into a sierra_gas
// weight. Panics on uint64 overflow (§3.3: "overflow must not occur in a
// correctly sized block").
func (t GasTable) SierraGasCost(nSteps uint64, builtins map[string]uint64) uint64 {
	total, overflow := mulOverflow(nSteps, t.GasPerStep)
	if overflow {
		panic("bouncer: sierra gas step conversion overflowed u64")
	}
	for name, count := range builtins {
		perUnit := t.GasPerBuiltin[name]
		cost, overflow := mulOverflow(count, perUnit)
		if overflow {
			panic(fmt.Sprintf("bouncer: sierra gas builtin %q conversion overflowed u64", name))
		}
		var sum uint64
		sum, overflow = addOverflow(total, cost)
		if overflow {
			panic("bouncer: sierra gas total overflowed u64")
		}
		total = sum
	}
	return total
}

func mulOverflow(a, b uint64) (uint64, bool) {
	if a == 0 || b == 0 {
		return 0, false
	}
	r := a * b
	if r/a != b {
		return 0, true
	}
	return r, false
}

func addOverflow(a, b uint64) (uint64, bool) {
	r := a + b
	return r, r < a
}
