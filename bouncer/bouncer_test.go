package bouncer

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTryUpdateAdmitsUntilBlockFull(t *testing.T) {
	// Mirrors §8.2 scenario 7: max 10 events, pre-loaded with 4, tx #0 adds
	// 1 (succeeds), tx #1 adds 8 (must fail with BlockFull), state must be
	// unchanged after the rejection.
	b := New(Weights{NEvents: 10}, nil, nil)
	require.NoError(t, b.TryUpdate(Summary{Weights: Weights{NEvents: 4}}))

	require.NoError(t, b.TryUpdate(Summary{Weights: Weights{NEvents: 1}}))
	require.Equal(t, uint64(5), b.Accumulated().NEvents)

	err := b.TryUpdate(Summary{Weights: Weights{NEvents: 8}})
	require.ErrorIs(t, err, ErrBlockFull)
	require.Equal(t, uint64(5), b.Accumulated().NEvents, "rejected update must not mutate accumulated weights")
}

func TestTryUpdateRejectsStandaloneTooLarge(t *testing.T) {
	b := New(Weights{NEvents: 10}, nil, nil)
	err := b.TryUpdate(Summary{Weights: Weights{NEvents: 11}})
	require.ErrorIs(t, err, ErrTransactionTooLarge)
	require.Equal(t, uint64(0), b.Accumulated().NEvents)
}

func TestWeightsAddOverflowIsChecked(t *testing.T) {
	w := Weights{L1Gas: ^uint64(0)}
	_, err := w.Add(Weights{L1Gas: 1})
	require.ErrorIs(t, err, ErrWeightOverflow)
}

func TestWeightsDominates(t *testing.T) {
	max := Weights{L1Gas: 10, NEvents: 10}
	require.True(t, (Weights{L1Gas: 10, NEvents: 10}).Dominates(max))
	require.False(t, (Weights{L1Gas: 11}).Dominates(max))
}

func TestGasTableOverflowPanics(t *testing.T) {
	table := GasTable{GasPerStep: ^uint64(0)}
	require.Panics(t, func() {
		table.SierraGasCost(2, nil)
	})
}
