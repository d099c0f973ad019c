// Package consensus implements the Tendermint-style single-height state
// machine (§4.H) and the multi-height manager that drives it (§4.I).
package consensus

import (
	"github.com/starkware-libs/sequencer-sub006/ids"
)

// Step is the state machine's position within a round (§4.H).
type Step int

const (
	StepPropose Step = iota
	StepPrevote
	StepPrecommit
	StepCommit
	StepAwaitingGetProposal
)

func (s Step) String() string {
	switch s {
	case StepPropose:
		return "Propose"
	case StepPrevote:
		return "Prevote"
	case StepPrecommit:
		return "Precommit"
	case StepCommit:
		return "Commit"
	case StepAwaitingGetProposal:
		return "AwaitingGetProposal"
	default:
		return "Unknown"
	}
}

// VoteKind distinguishes prevotes from precommits.
type VoteKind int

const (
	KindPrevote VoteKind = iota
	KindPrecommit
)

// Vote is a signed vote from one validator for one (height, round) (§3.1).
// Value is nil for a NIL vote (vote to skip).
type Vote struct {
	Kind   VoteKind
	Height ids.BlockNumber
	Round  ids.Round
	Value  *ids.Commitment
	Voter  ids.ValidatorId
}

// voteKey identifies the tally bucket a vote's value is counted under;
// nil (NIL) and every distinct Commitment get their own bucket.
type voteKey struct {
	isNil bool
	value ids.Commitment
}

func keyFor(v *ids.Commitment) voteKey {
	if v == nil {
		return voteKey{isNil: true}
	}
	return voteKey{value: *v}
}

// Proposal is a proposer's claim for (height, round): the value, and the
// round at which that value was last known valid (nil if none) (§3.1).
type Proposal struct {
	Height     ids.BlockNumber
	Round      ids.Round
	Proposer   ids.ValidatorId
	Value      ids.Commitment
	ValidRound *ids.Round
}

// Input is anything the state machine consumes: a proposal, a vote, a
// timeout firing, or the builder answering a pending GetProposal.
type Input struct {
	Proposal        *Proposal
	Vote            *Vote
	Timeout         *Timeout
	ProposalBuilt   *ids.Commitment
}

// TimeoutKind distinguishes the three per-round timers (§4.H).
type TimeoutKind int

const (
	TimeoutKindPropose TimeoutKind = iota
	TimeoutKindPrevote
	TimeoutKindPrecommit
)

// Timeout identifies one scheduled timer's firing.
type Timeout struct {
	Kind   TimeoutKind
	Height ids.BlockNumber
	Round  ids.Round
}

// Output is an effect the state machine asks the caller to perform:
// network send, timer arm, or a call into the block builder (§4.H
// "Ordering of outputs").
type Output struct {
	SendProposal  *Proposal
	SendVote      *Vote
	ArmTimeout    *Timeout
	GetProposal   *GetProposalRequest
	Decision      *Decision
}

// GetProposalRequest asks the builder to produce a new block; the
// response re-enters the state machine as Input.ProposalBuilt.
type GetProposalRequest struct {
	Height ids.BlockNumber
	Round  ids.Round
}

// Decision is the state machine's terminal output for a height: the
// decided value and the round it was decided at.
type Decision struct {
	Height ids.BlockNumber
	Round  ids.Round
	Value  ids.Commitment
}
