package consensus

import (
	"github.com/starkware-libs/sequencer-sub006/ids"
	"github.com/starkware-libs/sequencer-sub006/utils/set"
)

// roundState is the per-round bookkeeping the height-level Machine keeps
// around indefinitely (an earlier round's prevote quorum is still
// consulted by §4.H's `On Proposal` rule after the round has advanced).
type roundState struct {
	proposal *Proposal

	prevotesByVoter   map[ids.ValidatorId]voteKey
	precommitsByVoter map[ids.ValidatorId]voteKey
	votersAnyKind     set.Set[ids.ValidatorId]

	prevoteTally   map[voteKey]int
	precommitTally map[voteKey]int

	prevoteQuorumFired   map[voteKey]bool
	precommitQuorumFired map[voteKey]bool
	prevoteQuorumValues  set.Set[ids.Commitment]

	timeoutProposeStarted   bool
	timeoutPrevoteStarted   bool
	timeoutPrecommitStarted bool
	precommitted            bool

	// pendingPrecommitValue records which precommit-quorum bucket's timer
	// is outstanding, so its expiry knows whether to decide or advance.
	pendingPrecommitValue  *ids.Commitment
	pendingPrecommitIsNone bool
}

func newRoundState() *roundState {
	return &roundState{
		prevotesByVoter:      make(map[ids.ValidatorId]voteKey),
		precommitsByVoter:    make(map[ids.ValidatorId]voteKey),
		votersAnyKind:        set.NewSet[ids.ValidatorId](0),
		prevoteTally:         make(map[voteKey]int),
		precommitTally:       make(map[voteKey]int),
		prevoteQuorumFired:   make(map[voteKey]bool),
		precommitQuorumFired: make(map[voteKey]bool),
		prevoteQuorumValues:  set.NewSet[ids.Commitment](0),
	}
}

// Machine is one height's Tendermint-style state machine (§4.H). It is
// otherwise stateless: every field here is per-(height) or per-(height,
// round); a new height gets a new Machine (the multi-height manager in
// manager.go owns that lifecycle).
type Machine struct {
	self      ids.ValidatorId
	height    ids.BlockNumber
	round     ids.Round
	step      Step
	n         int
	f         int
	selector  ProposerSelector
	validators set.Set[ids.ValidatorId]

	lockedValue *ids.Commitment
	lockedRound *ids.Round
	validValue  *ids.Commitment
	validRound  *ids.Round

	rounds map[ids.Round]*roundState

	decided  bool
	decision *Decision

	pending []Input // buffered while step == StepAwaitingGetProposal

	// observer is set when self is not a member of validators: it tracks
	// decisions like every other node but never casts votes or proposes
	// (§4.I "observer mode").
	observer bool
}

// NewMachine enters height h at round 0 and returns the machine plus the
// outputs produced by entering (§4.H "Enter height h, round 0"). If self
// is not a member of validators, the machine runs in observer mode.
func NewMachine(self ids.ValidatorId, height ids.BlockNumber, validators set.Set[ids.ValidatorId], selector ProposerSelector) (*Machine, []Output) {
	n := validators.Len()
	f := (n - 1) / 3
	m := &Machine{
		self:       self,
		height:     height,
		n:          n,
		f:          f,
		selector:   selector,
		validators: validators,
		rounds:     make(map[ids.Round]*roundState),
		observer:   !validators.Contains(self),
	}
	outs := m.enterRound(0)
	return m, outs
}

func (m *Machine) quorumSize() int { return 2*m.f + 1 }
func (m *Machine) skipThreshold() int { return m.f + 1 }

func (m *Machine) roundState(r ids.Round) *roundState {
	rs, ok := m.rounds[r]
	if !ok {
		rs = newRoundState()
		m.rounds[r] = rs
	}
	return rs
}

func (m *Machine) isProposer(r ids.Round) bool {
	return m.selector.Proposer(m.height, r) == m.self
}

// enterRound moves to round r, preserving locked/valid state (§4.H "Enter
// height h, round 0" generalizes to entering any round after a skip or a
// nil precommit quorum).
func (m *Machine) enterRound(r ids.Round) []Output {
	m.round = r
	rs := m.roundState(r)

	if m.decided {
		return nil
	}

	var outs []Output
	switch {
	case m.isProposer(r) && m.validValue != nil:
		m.step = StepPropose
		prop := &Proposal{Height: m.height, Round: r, Proposer: m.self, Value: *m.validValue, ValidRound: m.validRound}
		outs = append(outs, Output{SendProposal: prop})
		outs = append(outs, m.handleProposal(prop)...)
	case m.isProposer(r):
		m.step = StepAwaitingGetProposal
		outs = append(outs, Output{GetProposal: &GetProposalRequest{Height: m.height, Round: r}})
	default:
		m.step = StepPropose
		if !rs.timeoutProposeStarted {
			rs.timeoutProposeStarted = true
			outs = append(outs, Output{ArmTimeout: &Timeout{Kind: TimeoutKindPropose, Height: m.height, Round: r}})
		}
	}
	return outs
}

// Handle processes one input against the current round and returns the
// outputs it produces, in order (§4.H "Ordering of outputs"). While
// awaiting a built proposal, every input except the matching
// ProposalBuilt response is queued and replayed once it arrives.
func (m *Machine) Handle(input Input) []Output {
	if m.decided {
		return nil
	}

	if m.step == StepAwaitingGetProposal && input.ProposalBuilt == nil {
		m.pending = append(m.pending, input)
		return nil
	}

	outs := m.dispatch(input)

	if m.step != StepAwaitingGetProposal && len(m.pending) > 0 {
		queued := m.pending
		m.pending = nil
		for _, q := range queued {
			outs = append(outs, m.dispatch(q)...)
		}
	}
	return outs
}

func (m *Machine) dispatch(input Input) []Output {
	switch {
	case input.Proposal != nil:
		return m.onProposal(input.Proposal)
	case input.Vote != nil:
		return m.onVote(input.Vote)
	case input.Timeout != nil:
		return m.onTimeout(input.Timeout)
	case input.ProposalBuilt != nil:
		return m.onProposalBuilt(input.ProposalBuilt)
	}
	return nil
}

func (m *Machine) onProposalBuilt(value *ids.Commitment) []Output {
	prop := &Proposal{Height: m.height, Round: m.round, Proposer: m.self, Value: *value}
	outs := []Output{{SendProposal: prop}}
	return append(outs, m.handleProposal(prop)...)
}

// onProposal handles an externally received Proposal for the current
// round; if it belongs to a past or future round it is ignored. The
// multi-height manager caches only future-height messages (§4.I), so a
// future-round proposal within the current height is not replayed.
func (m *Machine) onProposal(p *Proposal) []Output {
	if p.Round != m.round {
		return nil
	}
	return m.handleProposal(p)
}

// handleProposal implements §4.H's `On Proposal(v, r, vr)` rule for both
// externally received proposals and our own (whether emitted from
// valid_value on round entry or from a freshly built block).
func (m *Machine) handleProposal(p *Proposal) []Output {
	rs := m.roundState(p.Round)
	rs.proposal = p

	castValue := false
	if p.ValidRound == nil {
		castValue = true
	} else if vrRS, ok := m.rounds[*p.ValidRound]; ok && vrRS.prevoteQuorumValues.Contains(p.Value) {
		lockOK := m.lockedRound == nil || *m.lockedRound <= *p.ValidRound || (m.lockedValue != nil && m.lockedValue.Equal(p.Value))
		castValue = lockOK
	}

	m.step = StepPrevote
	if m.observer {
		return nil
	}

	v := p.Value
	vote := &Vote{Kind: KindPrevote, Height: m.height, Round: p.Round, Voter: m.self}
	if castValue {
		vote.Value = &v
	}
	outs := []Output{{SendVote: vote}}
	return append(outs, m.onVote(vote)...)
}

func (m *Machine) onTimeout(t *Timeout) []Output {
	if t.Height != m.height || t.Round != m.round {
		return nil
	}
	rs := m.roundState(t.Round)
	switch t.Kind {
	case TimeoutKindPropose:
		m.step = StepPrevote
		if m.observer {
			return nil
		}
		vote := &Vote{Kind: KindPrevote, Height: m.height, Round: t.Round, Voter: m.self}
		return append([]Output{{SendVote: vote}}, m.onVote(vote)...)

	case TimeoutKindPrevote:
		if rs.precommitted {
			return nil
		}
		rs.precommitted = true
		m.step = StepPrecommit
		if m.observer {
			return nil
		}
		vote := &Vote{Kind: KindPrecommit, Height: m.height, Round: t.Round, Voter: m.self}
		return append([]Output{{SendVote: vote}}, m.onVote(vote)...)

	case TimeoutKindPrecommit:
		if rs.pendingPrecommitValue != nil {
			d := &Decision{Height: m.height, Round: t.Round, Value: *rs.pendingPrecommitValue}
			m.decided = true
			m.decision = d
			m.step = StepCommit
			return []Output{{Decision: d}}
		}
		if rs.pendingPrecommitIsNone {
			return m.enterRound(t.Round + 1)
		}
	}
	return nil
}

// onVote implements §4.H vote tallying, the higher-round skip rule, and
// the prevote/precommit quorum rules. A future-round vote is folded into
// that round's tally/byVoter maps the same as a current-round one, so the
// votes that trigger a skip are still counted toward quorum once
// enterRound makes that round current — they are not otherwise seen
// again (manager.go only caches future-*height* messages).
func (m *Machine) onVote(v *Vote) []Output {
	if v.Height != m.height {
		return nil
	}
	if v.Round < m.round {
		return nil
	}

	rs := m.roundState(v.Round)
	key := keyFor(v.Value)

	var byVoter map[ids.ValidatorId]voteKey
	var tally map[voteKey]int
	if v.Kind == KindPrevote {
		byVoter, tally = rs.prevotesByVoter, rs.prevoteTally
	} else {
		byVoter, tally = rs.precommitsByVoter, rs.precommitTally
	}
	if _, already := byVoter[v.Voter]; already {
		return nil
	}
	byVoter[v.Voter] = key
	tally[key]++
	rs.votersAnyKind.Add(v.Voter)

	var outs []Output
	if v.Round > m.round {
		if rs.votersAnyKind.Len() < m.skipThreshold() {
			return nil
		}
		outs = append(outs, m.enterRound(v.Round)...)
	}

	if v.Kind == KindPrevote {
		if tally[key] == m.quorumSize() && !rs.prevoteQuorumFired[key] {
			return append(outs, m.onPrevoteQuorum(v.Round, rs, key)...)
		}
		return outs
	}
	if tally[key] == m.quorumSize() && !rs.precommitQuorumFired[key] {
		return append(outs, m.onPrecommitQuorum(v.Round, rs, key)...)
	}
	return outs
}

func (m *Machine) onPrevoteQuorum(round ids.Round, rs *roundState, key voteKey) []Output {
	rs.prevoteQuorumFired[key] = true
	if !key.isNil {
		rs.prevoteQuorumValues.Add(key.value)
	}

	var outs []Output
	if !rs.timeoutPrevoteStarted {
		rs.timeoutPrevoteStarted = true
		outs = append(outs, Output{ArmTimeout: &Timeout{Kind: TimeoutKindPrevote, Height: m.height, Round: round}})
	}

	if key.isNil {
		return outs
	}

	value := key.value
	m.validValue = &value
	m.validRound = &round

	if rs.proposal != nil && rs.proposal.Value.Equal(value) && !rs.precommitted {
		rs.precommitted = true
		m.lockedValue = &value
		m.lockedRound = &round
		m.step = StepPrecommit
		if !m.observer {
			vote := &Vote{Kind: KindPrecommit, Height: m.height, Round: round, Voter: m.self, Value: &value}
			outs = append(outs, Output{SendVote: vote})
			outs = append(outs, m.onVote(vote)...)
		}
	}
	return outs
}

func (m *Machine) onPrecommitQuorum(round ids.Round, rs *roundState, key voteKey) []Output {
	rs.precommitQuorumFired[key] = true
	if rs.timeoutPrecommitStarted {
		return nil
	}
	rs.timeoutPrecommitStarted = true

	if key.isNil {
		rs.pendingPrecommitIsNone = true
	} else {
		value := key.value
		rs.pendingPrecommitValue = &value
	}
	return []Output{{ArmTimeout: &Timeout{Kind: TimeoutKindPrecommit, Height: m.height, Round: round}}}
}

// Decided reports whether this height has reached a decision.
func (m *Machine) Decided() (*Decision, bool) {
	return m.decision, m.decided
}

// Height returns the height this machine is driving.
func (m *Machine) Height() ids.BlockNumber { return m.height }

// Round returns the current round.
func (m *Machine) Round() ids.Round { return m.round }
