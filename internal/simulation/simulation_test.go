package simulation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/starkware-libs/sequencer-sub006/config"
)

func fastTimeouts() config.ConsensusTimeouts {
	return config.ConsensusTimeouts{
		Proposal:  10 * time.Millisecond,
		Prevote:   10 * time.Millisecond,
		Precommit: 10 * time.Millisecond,
	}
}

func TestNetworkReachesAgreementWithNoFaults(t *testing.T) {
	net := NewNetwork(Params{
		NumValidators: 4,
		Heights:       3,
		RandomSeed:    1,
		Timeouts:      fastTimeouts(),
	}, nil)

	nodes, err := net.Run()
	require.NoError(t, err)
	require.Len(t, nodes, 4)

	for _, n := range nodes {
		require.Len(t, n.Decisions, 3)
	}
	for h := 0; h < 3; h++ {
		want := nodes[0].Decisions[h].Value
		for _, n := range nodes {
			require.Equal(t, want, n.Decisions[h].Value, "height %d must agree across nodes", h)
		}
	}
}

func TestNetworkConvergesWithDropsAndCorruption(t *testing.T) {
	net := NewNetwork(Params{
		NumValidators:      4,
		Heights:            2,
		RandomSeed:         7,
		DropProbability:    0.2,
		InvalidProbability: 0.2,
		Timeouts:           fastTimeouts(),
		MaxSteps:           200_000,
	}, nil)

	nodes, err := net.Run()
	require.NoError(t, err)
	for h := 0; h < 2; h++ {
		want := nodes[0].Decisions[h].Value
		for _, n := range nodes {
			require.Equal(t, want, n.Decisions[h].Value, "height %d must agree across nodes despite faults", h)
		}
	}
}

func TestNetworkStagnatesWhenStepsExhausted(t *testing.T) {
	net := NewNetwork(Params{
		NumValidators: 4,
		Heights:       10,
		RandomSeed:    3,
		Timeouts:      fastTimeouts(),
		MaxSteps:      1,
	}, nil)

	_, err := net.Run()
	require.ErrorIs(t, err, ErrStagnated)
}

func TestSplitmix64IsDeterministic(t *testing.T) {
	a := &splitmix64{state: 42}
	b := &splitmix64{state: 42}
	for i := 0; i < 10; i++ {
		require.Equal(t, a.next(), b.next())
	}
}
