package consensus

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/starkware-libs/sequencer-sub006/felt"
	"github.com/starkware-libs/sequencer-sub006/ids"
	"github.com/starkware-libs/sequencer-sub006/utils/set"
)

func commitment(v uint64) ids.Commitment {
	return ids.Commitment(felt.FromUint64(v))
}

func fourValidators() set.Set[ids.ValidatorId] {
	return set.Of[ids.ValidatorId]("v0", "v1", "v2", "v3")
}

func findOutput(outs []Output, pick func(Output) bool) (Output, bool) {
	for _, o := range outs {
		if pick(o) {
			return o, true
		}
	}
	return Output{}, false
}

func TestMachineHappyPathDecision(t *testing.T) {
	validators := fourValidators()
	selector := NewRoundRobinSelector(validators)
	m, outs := NewMachine("v0", 0, validators, selector)

	getProposal, ok := findOutput(outs, func(o Output) bool { return o.GetProposal != nil })
	require.True(t, ok, "proposer at height 0 round 0 should request a proposal")
	require.Equal(t, ids.BlockNumber(0), getProposal.GetProposal.Height)

	value := commitment(42)
	outs = m.Handle(Input{ProposalBuilt: &value})

	sendProposal, ok := findOutput(outs, func(o Output) bool { return o.SendProposal != nil })
	require.True(t, ok)
	require.True(t, sendProposal.SendProposal.Value.Equal(value))

	ownPrevote, ok := findOutput(outs, func(o Output) bool { return o.SendVote != nil && o.SendVote.Kind == KindPrevote })
	require.True(t, ok)
	require.NotNil(t, ownPrevote.SendVote.Value)
	require.True(t, ownPrevote.SendVote.Value.Equal(value))

	for _, voter := range []ids.ValidatorId{"v1", "v2"} {
		m.Handle(Input{Vote: &Vote{Kind: KindPrevote, Height: 0, Round: 0, Voter: voter, Value: &value}})
	}

	ownPrecommitFound := false
	for _, voter := range []ids.ValidatorId{"v1", "v2"} {
		outs = m.Handle(Input{Vote: &Vote{Kind: KindPrecommit, Height: 0, Round: 0, Voter: voter, Value: &value}})
		if _, ok := findOutput(outs, func(o Output) bool { return o.ArmTimeout != nil && o.ArmTimeout.Kind == TimeoutKindPrecommit }); ok {
			ownPrecommitFound = true
		}
	}
	require.True(t, ownPrecommitFound, "precommit quorum should arm the precommit timeout")

	_, decided := m.Decided()
	require.False(t, decided, "decision requires the precommit timeout to fire")

	outs = m.Handle(Input{Timeout: &Timeout{Kind: TimeoutKindPrecommit, Height: 0, Round: 0}})
	decision, ok := findOutput(outs, func(o Output) bool { return o.Decision != nil })
	require.True(t, ok)
	require.True(t, decision.Decision.Value.Equal(value))

	final, decided := m.Decided()
	require.True(t, decided)
	require.Equal(t, ids.Round(0), final.Round)
	require.True(t, final.Value.Equal(value))
}

func TestMachineAdvancesRoundOnNilPrecommitQuorum(t *testing.T) {
	validators := fourValidators()
	selector := NewRoundRobinSelector(validators)
	// height 1, round 0 proposer index = (1+0)%4 = 1 -> "v1"; self "v0" is not
	// the proposer, so the machine starts a TimeoutPropose instead of
	// requesting a proposal.
	m, outs := NewMachine("v0", 1, validators, selector)
	_, armedPropose := findOutput(outs, func(o Output) bool { return o.ArmTimeout != nil && o.ArmTimeout.Kind == TimeoutKindPropose })
	require.True(t, armedPropose)

	for _, voter := range []ids.ValidatorId{"v1", "v2", "v3"} {
		m.Handle(Input{Vote: &Vote{Kind: KindPrecommit, Height: 1, Round: 0, Voter: voter, Value: nil}})
	}

	outs = m.Handle(Input{Timeout: &Timeout{Kind: TimeoutKindPrecommit, Height: 1, Round: 0}})
	require.Equal(t, ids.Round(1), m.Round())
	_, decided := m.Decided()
	require.False(t, decided)
	_ = outs
}

func TestMachineSkipsToHigherRoundOnSkipThreshold(t *testing.T) {
	validators := fourValidators()
	selector := NewRoundRobinSelector(validators)
	m, _ := NewMachine("v0", 1, validators, selector)
	require.Equal(t, ids.Round(0), m.Round())

	m.Handle(Input{Vote: &Vote{Kind: KindPrevote, Height: 1, Round: 3, Voter: "v1"}})
	outs := m.Handle(Input{Vote: &Vote{Kind: KindPrecommit, Height: 1, Round: 3, Voter: "v2"}})

	require.Equal(t, ids.Round(3), m.Round())
	_ = outs
}

func TestMachineSkipRetainsTriggeringVotesTowardQuorum(t *testing.T) {
	validators := fourValidators()
	selector := NewRoundRobinSelector(validators)
	// height 0, round 3 proposer index = (0+3)%4 = 3 -> "v3"; self "v0" is
	// not the proposer at round 3.
	m, _ := NewMachine("v0", 0, validators, selector)
	require.Equal(t, ids.Round(0), m.Round())

	value := commitment(5)
	m.Handle(Input{Vote: &Vote{Kind: KindPrevote, Height: 0, Round: 3, Voter: "v1", Value: &value}})
	m.Handle(Input{Vote: &Vote{Kind: KindPrevote, Height: 0, Round: 3, Voter: "v2", Value: &value}})
	require.Equal(t, ids.Round(3), m.Round(), "two distinct voters at a higher round must trigger the skip")

	// Only one more prevote for the same value is needed to reach quorum
	// (3 of 4): the two votes that triggered the skip must already count.
	outs := m.Handle(Input{Vote: &Vote{Kind: KindPrevote, Height: 0, Round: 3, Voter: "v3", Value: &value}})
	_, armedPrevoteTimeout := findOutput(outs, func(o Output) bool {
		return o.ArmTimeout != nil && o.ArmTimeout.Kind == TimeoutKindPrevote
	})
	require.True(t, armedPrevoteTimeout, "prevote quorum must fire from the votes already seen plus one more")
}

func TestMachineObserverCastsNoVotes(t *testing.T) {
	validators := fourValidators()
	selector := NewRoundRobinSelector(validators)
	m, outs := NewMachine("observer", 0, validators, selector)
	_, armedPropose := findOutput(outs, func(o Output) bool { return o.ArmTimeout != nil && o.ArmTimeout.Kind == TimeoutKindPropose })
	require.True(t, armedPropose, "an observer is never a validator, so it is never the proposer")

	value := commitment(7)
	outs = m.Handle(Input{Proposal: &Proposal{Height: 0, Round: 0, Proposer: "v0", Value: value}})
	_, castVote := findOutput(outs, func(o Output) bool { return o.SendVote != nil })
	require.False(t, castVote, "observer mode must never emit its own vote")

	for _, voter := range []ids.ValidatorId{"v0", "v1", "v2"} {
		m.Handle(Input{Vote: &Vote{Kind: KindPrevote, Height: 0, Round: 0, Voter: voter, Value: &value}})
	}
	outs = m.Handle(Input{Vote: &Vote{Kind: KindPrecommit, Height: 0, Round: 0, Voter: "v0", Value: &value}})
	_, castPrecommit := findOutput(outs, func(o Output) bool { return o.SendVote != nil })
	require.False(t, castPrecommit)

	for _, voter := range []ids.ValidatorId{"v1", "v2"} {
		m.Handle(Input{Vote: &Vote{Kind: KindPrecommit, Height: 0, Round: 0, Voter: voter, Value: &value}})
	}
	outs = m.Handle(Input{Timeout: &Timeout{Kind: TimeoutKindPrecommit, Height: 0, Round: 0}})
	decision, ok := findOutput(outs, func(o Output) bool { return o.Decision != nil })
	require.True(t, ok, "an observer still tracks the decision reached by the real validators")
	require.True(t, decision.Decision.Value.Equal(value))
}
