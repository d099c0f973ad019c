package consensus

import (
	"sort"
	"time"

	"github.com/starkware-libs/sequencer-sub006/ids"
	"github.com/starkware-libs/sequencer-sub006/log"
	"github.com/starkware-libs/sequencer-sub006/metrics"
	"github.com/starkware-libs/sequencer-sub006/utils/set"
)

// ValidatorSetProvider resolves the validator set active at a height; a
// narrow collaborator boundary, since validator-set derivation (staking,
// epoch transitions) is out of scope here.
type ValidatorSetProvider interface {
	ValidatorsAt(height ids.BlockNumber) set.Set[ids.ValidatorId]
}

// heightCache holds messages received for a height that is not yet
// current (§4.I "Cache messages whose height > current").
type heightCache struct {
	proposals map[ids.Round]*Proposal // at most one per round
	votes     []*Vote
}

func newHeightCache() *heightCache {
	return &heightCache{proposals: make(map[ids.Round]*Proposal)}
}

// Event is what the manager's Handle* methods return to the outer
// driver: zero or more state-machine outputs, possibly a terminal
// decision, or a sync instruction to jump ahead.
type Event struct {
	Outputs  []Output
	Decision *Decision
	Sync     *ids.BlockNumber
}

// Manager drives the single-height Machine across consecutive heights,
// caching out-of-order input and handling sync jumps (§4.I).
type Manager struct {
	self      ids.ValidatorId
	providers ValidatorSetProvider
	log       log.Logger
	timing    *metrics.Timing

	current     *Machine
	heightStart time.Time
	cache       map[ids.BlockNumber]*heightCache
}

// NewManager starts the manager at startHeight. timing, if non-nil, tracks
// the moving average wall-clock duration of a decided height (§5 "round
// duration").
func NewManager(self ids.ValidatorId, providers ValidatorSetProvider, startHeight ids.BlockNumber, logger log.Logger, timing *metrics.Timing) (*Manager, []Output) {
	if logger == nil {
		logger = log.NewNoOp()
	}
	m := &Manager{
		self:      self,
		providers: providers,
		log:       logger,
		timing:    timing,
		cache:     make(map[ids.BlockNumber]*heightCache),
	}
	outs := m.enter(startHeight)
	return m, outs
}

func (m *Manager) enter(height ids.BlockNumber) []Output {
	validators := m.providers.ValidatorsAt(height)
	selector := NewRoundRobinSelector(validators)
	machine, outs := NewMachine(m.self, height, validators, selector)
	m.current = machine
	m.heightStart = time.Now()
	return append(outs, m.drainCacheLocked(height)...)
}

// drainCacheLocked replays a freshly entered height's cached messages:
// proposals first, then votes (§4.I "drain the cache for the new height
// (proposals first, then votes) before taking new input").
func (m *Manager) drainCacheLocked(height ids.BlockNumber) []Output {
	hc, ok := m.cache[height]
	if !ok {
		return nil
	}
	delete(m.cache, height)

	var outs []Output
	rounds := make([]ids.Round, 0, len(hc.proposals))
	for r := range hc.proposals {
		rounds = append(rounds, r)
	}
	sort.Slice(rounds, func(i, j int) bool { return rounds[i] < rounds[j] })
	for _, r := range rounds {
		outs = append(outs, m.current.Handle(Input{Proposal: hc.proposals[r]})...)
	}
	for _, v := range hc.votes {
		outs = append(outs, m.current.Handle(Input{Vote: v})...)
	}
	return outs
}

func (m *Manager) cacheFor(height ids.BlockNumber) *heightCache {
	hc, ok := m.cache[height]
	if !ok {
		hc = newHeightCache()
		m.cache[height] = hc
	}
	return hc
}

// HandleProposal routes an inbound proposal to the current height's
// machine, or caches it if it targets a future height (§4.I "Cache at
// most one future-height proposal per (height, round); later duplicates
// ignored").
func (m *Manager) HandleProposal(p *Proposal) Event {
	if p.Height < m.current.Height() {
		return Event{}
	}
	if p.Height > m.current.Height() {
		hc := m.cacheFor(p.Height)
		if _, exists := hc.proposals[p.Round]; !exists {
			hc.proposals[p.Round] = p
		}
		return Event{}
	}
	return m.finish(m.current.Handle(Input{Proposal: p}))
}

// HandleVote routes an inbound vote, or caches it for a future height.
func (m *Manager) HandleVote(v *Vote) Event {
	if v.Height < m.current.Height() {
		return Event{}
	}
	if v.Height > m.current.Height() {
		hc := m.cacheFor(v.Height)
		hc.votes = append(hc.votes, v)
		return Event{}
	}
	return m.finish(m.current.Handle(Input{Vote: v}))
}

// HandleTimeout routes a fired timer into the current height's machine.
func (m *Manager) HandleTimeout(t *Timeout) Event {
	if t.Height != m.current.Height() {
		return Event{}
	}
	return m.finish(m.current.Handle(Input{Timeout: t}))
}

// HandleProposalBuilt feeds the builder's response to a GetProposal
// request back into the current height's machine.
func (m *Manager) HandleProposalBuilt(value ids.Commitment) Event {
	return m.finish(m.current.Handle(Input{ProposalBuilt: &value}))
}

// HandleSync abandons the current height on a sync notification at or
// past it, moving straight to height+1 (§4.I "On a sync notification
// with height ≥ current: abandon the height and return Sync(height)").
func (m *Manager) HandleSync(height ids.BlockNumber) Event {
	if height < m.current.Height() {
		return Event{}
	}
	m.log.Info("abandoning height on sync notification", "height", height)
	outs := m.enter(height + 1)
	return Event{Outputs: outs, Sync: &height}
}

// finish checks whether the current height just decided and, if so,
// advances to the next height, appending the entry outputs for that new
// height after the decision (§4.I implicitly: a decided height's manager
// moves straight on, the outer driver persists the block in between).
func (m *Manager) finish(outs []Output) Event {
	if decision, ok := m.current.Decided(); ok {
		m.timing.Observe(time.Since(m.heightStart))
		next := m.current.Height() + 1
		more := m.enter(next)
		return Event{Outputs: append(outs, more...), Decision: decision}
	}
	return Event{Outputs: outs}
}

// CurrentHeight returns the height the manager is presently driving.
func (m *Manager) CurrentHeight() ids.BlockNumber { return m.current.Height() }
