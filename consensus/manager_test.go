package consensus

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/starkware-libs/sequencer-sub006/ids"
	"github.com/starkware-libs/sequencer-sub006/utils/set"
)

type fixedValidatorSet struct {
	validators set.Set[ids.ValidatorId]
}

func (f fixedValidatorSet) ValidatorsAt(ids.BlockNumber) set.Set[ids.ValidatorId] {
	return f.validators
}

func TestManagerCachesFutureHeightAndDrainsOnEntry(t *testing.T) {
	providers := fixedValidatorSet{validators: fourValidators()}
	m, _ := NewManager("v0", providers, 0, nil, nil)
	require.Equal(t, ids.BlockNumber(0), m.CurrentHeight())

	value := commitment(1)
	// height 1's proposal arrives early; must be cached, not dropped, and
	// must not be handed to height 0's machine.
	ev := m.HandleProposal(&Proposal{Height: 1, Round: 0, Proposer: "v1", Value: value})
	require.Empty(t, ev.Outputs)
	require.Contains(t, m.cache, ids.BlockNumber(1))

	// Drive height 0 to a decision so the manager advances to height 1,
	// which should immediately replay the cached proposal.
	out := m.HandleProposalBuilt(commitment(99))
	_ = out
	// height 0's own proposal value (99) differs from the cached height-1
	// proposal's value (1); drive height 0's own prevote/precommit quorum.
	self0 := commitment(99)
	m.HandleVote(&Vote{Kind: KindPrevote, Height: 0, Round: 0, Voter: "v1", Value: &self0})
	m.HandleVote(&Vote{Kind: KindPrevote, Height: 0, Round: 0, Voter: "v2", Value: &self0})
	ev = m.HandleVote(&Vote{Kind: KindPrecommit, Height: 0, Round: 0, Voter: "v1", Value: &self0})
	ev = m.HandleVote(&Vote{Kind: KindPrecommit, Height: 0, Round: 0, Voter: "v2", Value: &self0})
	_ = ev

	ev = m.HandleTimeout(&Timeout{Kind: TimeoutKindPrecommit, Height: 0, Round: 0})
	require.NotNil(t, ev.Decision)
	require.Equal(t, ids.BlockNumber(1), m.CurrentHeight())
	require.NotContains(t, m.cache, ids.BlockNumber(1), "cached height-1 proposal must be drained on entry")
}

func TestManagerSyncAbandonsCurrentHeight(t *testing.T) {
	providers := fixedValidatorSet{validators: fourValidators()}
	m, _ := NewManager("v0", providers, 3, nil, nil)
	require.Equal(t, ids.BlockNumber(3), m.CurrentHeight())

	ev := m.HandleSync(5)
	require.NotNil(t, ev.Sync)
	require.Equal(t, ids.BlockNumber(5), *ev.Sync)
	require.Equal(t, ids.BlockNumber(6), m.CurrentHeight())
}

func TestManagerIgnoresPastHeightMessages(t *testing.T) {
	providers := fixedValidatorSet{validators: fourValidators()}
	m, _ := NewManager("v0", providers, 5, nil, nil)

	value := commitment(1)
	ev := m.HandleProposal(&Proposal{Height: 2, Round: 0, Proposer: "v1", Value: value})
	require.Empty(t, ev.Outputs)
	require.Nil(t, ev.Decision)
	require.Equal(t, ids.BlockNumber(5), m.CurrentHeight())
}
