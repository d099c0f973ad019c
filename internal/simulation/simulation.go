// Package simulation is a deterministic in-process harness that drives N
// consensus.Managers to decide a run of consecutive heights over
// in-memory message delivery, standing in for the real network and block
// builder (§6 "Run-simulation harness", grounded in
// original_source/crates/apollo_consensus/src/bin/run_simulation.rs, which
// spawns and monitors real OS processes exchanging consensus messages
// over a libp2p network; this package keeps only the simulation's shape —
// N validators, a drop/invalid-message probability, a deterministic
// seed, a stagnation bound — and replaces process spawning and a real
// network with direct calls into consensus.Manager).
package simulation

import (
	"container/heap"
	"errors"
	"sort"
	"time"

	"github.com/starkware-libs/sequencer-sub006/config"
	"github.com/starkware-libs/sequencer-sub006/consensus"
	"github.com/starkware-libs/sequencer-sub006/felt"
	"github.com/starkware-libs/sequencer-sub006/ids"
	"github.com/starkware-libs/sequencer-sub006/log"
	"github.com/starkware-libs/sequencer-sub006/utils/set"
)

// ErrStagnated is returned when Run has processed Params.MaxSteps simulated
// events, counted over the whole run, before every node has decided
// Params.Heights heights, or when no event is left to process first. It
// mirrors run_simulation.rs's stagnation check (there, a wall-clock
// "stagnation_threshold"; here, an event-count bound, since the simulation
// has no wall clock of its own).
var ErrStagnated = errors.New("simulation: stagnated before reaching the target height")

// Params configures one run (§6 "Run-simulation harness"); the field
// names echo run_simulation.rs's PapyrusArgs where a direct analog
// exists (drop_probability, invalid_probability, random_seed).
type Params struct {
	NumValidators      int
	Heights            int // number of consecutive heights every node must decide
	RandomSeed         uint64
	DropProbability    float64 // chance an individual proposal/vote delivery is dropped
	InvalidProbability float64 // chance a delivered proposal/vote is corrupted instead
	Timeouts           config.ConsensusTimeouts
	MaxSteps           int // stagnation bound; 0 means a generous built-in default
}

const defaultMaxSteps = 100_000

// splitmix64 is the same deterministic generator propeller/treemanager.go
// uses to seed its participant shuffle; reused here so both packages'
// "deterministic from a seed" primitives are the identical one.
type splitmix64 struct{ state uint64 }

func (s *splitmix64) next() uint64 {
	s.state += 0x9e3779b97f4a7c15
	z := s.state
	z = (z ^ (z >> 30)) * 0xbf58476d1ce4e5b9
	z = (z ^ (z >> 27)) * 0x94d049bb133111eb
	return z ^ (z >> 31)
}

// float64 returns a value in [0, 1).
func (s *splitmix64) float64() float64 {
	return float64(s.next()>>11) / (1 << 53)
}

// fixedValidatorSet is the simulation's ValidatorSetProvider: the
// validator set never changes across heights, the same narrow
// collaborator shape consensus/manager_test.go uses for its own tests.
type fixedValidatorSet struct {
	validators set.Set[ids.ValidatorId]
}

func (f fixedValidatorSet) ValidatorsAt(ids.BlockNumber) set.Set[ids.ValidatorId] {
	return f.validators
}

// delivery is one message in flight between two nodes, processed in FIFO
// order within a simulated tick.
type delivery struct {
	to    int
	input consensus.Input
}

// timerEvent is a scheduled ArmTimeout, ordered by its virtual fire time.
type timerEvent struct {
	at   time.Duration
	node int
	t    consensus.Timeout
}

type timerHeap []timerEvent

func (h timerHeap) Len() int            { return len(h) }
func (h timerHeap) Less(i, j int) bool  { return h[i].at < h[j].at }
func (h timerHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *timerHeap) Push(x interface{}) { *h = append(*h, x.(timerEvent)) }
func (h *timerHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// Node is one simulated validator's final state after Run returns.
type Node struct {
	ID        ids.ValidatorId
	Decisions []consensus.Decision
}

// Network drives every validator's consensus.Manager in lockstep,
// delivering proposals and votes between them and firing armed timeouts
// in virtual-time order, until every node has decided Params.Heights
// heights or the stagnation bound is hit.
type Network struct {
	params     Params
	rng        *splitmix64
	log        log.Logger
	validators []ids.ValidatorId
	managers   []*consensus.Manager
	decisions  [][]consensus.Decision
	queue      []delivery
	timers     timerHeap
	now        time.Duration
	nextValue  uint64
}

// NewNetwork builds a Network with Params.NumValidators validators named
// by validatorName ("va", "vb", ...), each starting its own
// consensus.Manager at height 0.
func NewNetwork(params Params, logger log.Logger) *Network {
	if logger == nil {
		logger = log.NewNoOp()
	}
	if params.MaxSteps <= 0 {
		params.MaxSteps = defaultMaxSteps
	}
	validators := make([]ids.ValidatorId, params.NumValidators)
	vs := set.NewSet[ids.ValidatorId](params.NumValidators)
	for i := range validators {
		validators[i] = ids.ValidatorId(validatorName(i))
		vs.Add(validators[i])
	}
	sort.Slice(validators, func(i, j int) bool { return validators[i].Less(validators[j]) })

	n := &Network{
		params:     params,
		rng:        &splitmix64{state: params.RandomSeed + 1},
		log:        logger,
		validators: validators,
		managers:   make([]*consensus.Manager, len(validators)),
		decisions:  make([][]consensus.Decision, len(validators)),
		timers:     timerHeap{},
	}
	heap.Init(&n.timers)

	provider := fixedValidatorSet{validators: vs}
	for i, v := range validators {
		mgr, outs := consensus.NewManager(v, provider, 0, logger, nil)
		n.managers[i] = mgr
		n.handle(i, outs)
	}
	return n
}

func validatorName(i int) string {
	const letters = "abcdefghijklmnopqrstuvwxyz"
	if i < 26 {
		return "v" + string(letters[i])
	}
	return "v" + string(rune('a'+i/26)) + string(letters[i%26])
}

// Run drains the event queue until every node has decided Params.Heights
// heights, returning each node's decided values in height order.
func (n *Network) Run() ([]Node, error) {
	steps := 0
	for !n.allDone() {
		steps++
		if steps > n.params.MaxSteps {
			return nil, ErrStagnated
		}
		if len(n.queue) > 0 {
			d := n.queue[0]
			n.queue = n.queue[1:]
			n.deliver(d)
			continue
		}
		if n.timers.Len() == 0 {
			return nil, ErrStagnated
		}
		ev := heap.Pop(&n.timers).(timerEvent)
		n.now = ev.at
		t := ev.t
		n.handle(ev.node, n.managers[ev.node].HandleTimeout(&t).Outputs)
	}

	out := make([]Node, len(n.validators))
	for i, v := range n.validators {
		out[i] = Node{ID: v, Decisions: n.decisions[i]}
	}
	return out, nil
}

func (n *Network) allDone() bool {
	for _, d := range n.decisions {
		if len(d) < n.params.Heights {
			return false
		}
	}
	return true
}

// deliver routes one queued message into its destination node's machine
// via whichever Manager method matches the populated Input field, and
// folds the resulting outputs back into the simulation.
func (n *Network) deliver(d delivery) {
	switch {
	case d.input.Proposal != nil:
		n.handle(d.to, n.managers[d.to].HandleProposal(d.input.Proposal).Outputs)
	case d.input.Vote != nil:
		n.handle(d.to, n.managers[d.to].HandleVote(d.input.Vote).Outputs)
	}
}

// handle folds one node's outputs into the simulation: proposals and
// votes become deliveries to every other node, ArmTimeout becomes a
// scheduled timerEvent, GetProposal is answered immediately with a
// deterministic synthetic value, and a Decision is recorded.
func (n *Network) handle(from int, outs []consensus.Output) {
	for _, o := range outs {
		switch {
		case o.SendProposal != nil:
			n.broadcast(from, consensus.Input{Proposal: o.SendProposal})
		case o.SendVote != nil:
			n.broadcast(from, consensus.Input{Vote: o.SendVote})
		case o.ArmTimeout != nil:
			n.arm(from, *o.ArmTimeout)
		case o.GetProposal != nil:
			value := n.syntheticValue()
			n.handle(from, n.managers[from].HandleProposalBuilt(value).Outputs)
		case o.Decision != nil:
			n.decisions[from] = append(n.decisions[from], *o.Decision)
		}
	}
}

func (n *Network) syntheticValue() ids.Commitment {
	n.nextValue++
	return ids.Commitment(felt.FromUint64(n.nextValue))
}

// broadcast delivers input to every validator except from, independently
// dropping or corrupting each delivery per Params' probabilities (§6
// "drop_probability"/"invalid_probability" in run_simulation.rs, there a
// single network-wide roll per message; here a roll per recipient, a
// finer-grained analog of the same knob).
func (n *Network) broadcast(from int, input consensus.Input) {
	for i := range n.validators {
		if i == from {
			continue
		}
		if n.params.DropProbability > 0 && n.rng.float64() < n.params.DropProbability {
			continue
		}
		delivered := input
		if n.params.InvalidProbability > 0 && n.rng.float64() < n.params.InvalidProbability {
			delivered = corrupt(delivered, n.rng)
		}
		n.queue = append(n.queue, delivery{to: i, input: delivered})
	}
}

// corrupt mutates a copy of input's value so it no longer matches what
// the proposer actually sent, simulating a byzantine or bit-flipped
// message (§6 "invalid_probability").
func corrupt(input consensus.Input, rng *splitmix64) consensus.Input {
	garbage := ids.Commitment(felt.FromUint64(rng.next()))
	if input.Proposal != nil {
		p := *input.Proposal
		p.Value = garbage
		input.Proposal = &p
	}
	if input.Vote != nil && input.Vote.Value != nil {
		v := *input.Vote
		v.Value = &garbage
		input.Vote = &v
	}
	return input
}

func (n *Network) arm(node int, t consensus.Timeout) {
	d := n.timeoutDuration(t.Kind)
	heap.Push(&n.timers, timerEvent{at: n.now + d, node: node, t: t})
}

func (n *Network) timeoutDuration(kind consensus.TimeoutKind) time.Duration {
	switch kind {
	case consensus.TimeoutKindPropose:
		return n.params.Timeouts.Proposal
	case consensus.TimeoutKindPrevote:
		return n.params.Timeouts.Prevote
	default:
		return n.params.Timeouts.Precommit
	}
}
