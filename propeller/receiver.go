package propeller

import (
	"context"
	"time"

	"github.com/starkware-libs/sequencer-sub006/ids"
	"github.com/starkware-libs/sequencer-sub006/log"
)

// ReceivedEvent is emitted once enough participants hold the
// reconstructed message (§4.J step 5, the tree manager's access
// threshold).
type ReceivedEvent struct {
	Channel   ids.ChannelId
	Publisher ids.ValidatorId
	Root      ids.HashOutput
	Message   []byte
}

// FailedEvent is emitted when reconstruction or validation fails fatally
// for this message (§4.J "Errors").
type FailedEvent struct {
	Channel   ids.ChannelId
	Publisher ids.ValidatorId
	Root      ids.HashOutput
	Err       error
}

// Result is what StateManager.Run returns. On success only Received is
// set; on a fatal error only Failed is set; on a watchdog timeout Timeout
// is set together with a Failed carrying ErrMessageTimeout; on context
// cancellation no field is set.
type Result struct {
	Received *ReceivedEvent
	Failed   *FailedEvent
	Timeout  bool
}

type reconOutcome struct {
	message []byte
	err     error
}

// StateManager is the per-message receive-side task (§4.J "Receive side"):
// spawned on the first valid unit for a (channel, publisher, message_root)
// it has not seen before, it collects shards, reconstructs once the
// reconstruction threshold is met, rebroadcasts its own shard, and
// terminates once the access threshold is satisfied.
type StateManager struct {
	channel   ids.ChannelId
	self      ids.ValidatorId
	publisher ids.ValidatorId

	cfg      Config
	coder    ShardCoder
	hasher   MerkleHasher
	verifier Verifier
	tm       TreeManager
	transmit Transmit
	pool     *reconstructionPool
	log      log.Logger

	root          ids.HashOutput
	rootSet       bool
	shards        [][]byte
	present       int
	reconstructed bool
	rebroadcast   bool
	message       []byte
}

// NewStateManager builds a StateManager for one (channel, publisher)
// broadcast. publisher and the expected root are learned from the first
// valid unit Run processes.
func NewStateManager(
	channel ids.ChannelId,
	self ids.ValidatorId,
	cfg Config,
	coder ShardCoder,
	hasher MerkleHasher,
	verifier Verifier,
	tm TreeManager,
	transmit Transmit,
	logger log.Logger,
) *StateManager {
	if logger == nil {
		logger = log.NewNoOp()
	}
	return &StateManager{
		channel:  channel,
		self:     self,
		cfg:      cfg,
		coder:    coder,
		hasher:   hasher,
		verifier: verifier,
		tm:       tm,
		transmit: transmit,
		pool:     defaultReconstructionPool,
		log:      logger,
		shards:   make([][]byte, cfg.shardCount()),
	}
}

// Run drives the cooperative receive loop (§5 "naturally expressed as a
// single-task cooperative loop with a select over several channels and one
// timer"): inbound units, a reconstruction job's completion, a progress
// watchdog, and cancellation.
func (sm *StateManager) Run(ctx context.Context, units <-chan PropellerUnit, watchdog time.Duration) Result {
	recon := make(chan reconOutcome, 1)
	timer := time.NewTimer(watchdog)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return Result{}

		case <-timer.C:
			return Result{Timeout: true, Failed: &FailedEvent{Channel: sm.channel, Publisher: sm.publisher, Root: sm.root, Err: ErrMessageTimeout}}

		case out := <-recon:
			if out.err != nil {
				return Result{Failed: &FailedEvent{Channel: sm.channel, Publisher: sm.publisher, Root: sm.root, Err: out.err}}
			}
			sm.onReconstructed(out.message)
			if res, done := sm.checkAccessThreshold(); done {
				return res
			}

		case unit, ok := <-units:
			if !ok {
				units = nil
				continue
			}
			if done, res := sm.handleUnit(unit, recon); done {
				return res
			}
			resetTimer(timer, watchdog)
		}
	}
}

func resetTimer(t *time.Timer, d time.Duration) {
	if !t.Stop() {
		select {
		case <-t.C:
		default:
		}
	}
	t.Reset(d)
}

// handleUnit validates one inbound unit and folds it into the collected
// shard set (§4.J "Receive side" steps 1-2).
func (sm *StateManager) handleUnit(unit PropellerUnit, recon chan reconOutcome) (done bool, res Result) {
	if sm.rootSet && unit.Publisher != sm.publisher {
		sm.log.Debug("dropping unit from unexpected publisher", "publisher", unit.Publisher)
		return false, Result{}
	}
	if sm.rootSet && !unit.MessageRoot.Equal(sm.root) {
		sm.log.Debug("dropping unit with mismatched message_root")
		return false, Result{}
	}
	if !sm.verifier.Verify(unit.Publisher, unitSignaturePayload(unit), unit.Signature) {
		sm.log.Debug("dropping unit with invalid signature")
		return false, Result{}
	}
	if !VerifyMerkleProof(unit.Shard, unit.Proof, unit.MessageRoot, sm.hasher) {
		sm.log.Debug("dropping unit with invalid merkle proof")
		return false, Result{}
	}
	// This is now the first unit this state manager has accepted as valid
	// (§4.J "spawned on first valid unit"): anchor the publisher and root.
	if !sm.rootSet {
		sm.publisher = unit.Publisher
		sm.root = unit.MessageRoot
		sm.rootSet = true
	}
	if unit.Index < 0 || unit.Index >= len(sm.shards) {
		sm.log.Debug("dropping unit with out-of-range index", "index", unit.Index)
		return false, Result{}
	}
	if sm.shards[unit.Index] != nil {
		return false, Result{} // duplicate
	}
	sm.shards[unit.Index] = unit.Shard
	sm.present++

	if res, d := sm.checkAccessThreshold(); d {
		return true, res
	}
	if !sm.reconstructed && sm.present >= sm.tm.ReconstructionThreshold() {
		sm.spawnReconstruction(recon)
	}
	return false, Result{}
}

func (sm *StateManager) spawnReconstruction(recon chan reconOutcome) {
	cfg := sm.cfg
	coder := sm.coder
	shards := make([][]byte, len(sm.shards))
	copy(shards, sm.shards)

	sm.pool.submit(func() {
		if err := coder.Reconstruct(shards, cfg); err != nil {
			recon <- reconOutcome{err: err}
			return
		}
		var full []byte
		for _, s := range shards[:cfg.DataCount] {
			full = append(full, s...)
		}
		if cfg.Pad {
			msg, err := unpadMessage(full)
			if err != nil {
				recon <- reconOutcome{err: err}
				return
			}
			recon <- reconOutcome{message: msg}
			return
		}
		recon <- reconOutcome{message: full}
	})
}

// onReconstructed folds a completed reconstruction into the state manager,
// regenerates this node's own shard if it had not been observed directly,
// and, the first time it runs, rebroadcasts that shard to the tree-manager
// fanout so propagation continues past the publisher's immediate
// recipients (§4.J step 3).
func (sm *StateManager) onReconstructed(message []byte) {
	sm.reconstructed = true
	sm.message = message

	participants := sm.tm.Participants(sm.channel, sm.publisher)
	selfIdx := indexOf(participants, sm.self)
	if selfIdx < 0 {
		return
	}
	if sm.shards[selfIdx] == nil {
		shards, err := sm.coder.Encode(sm.repadForEncode(), sm.cfg)
		if err == nil && selfIdx < len(shards) {
			sm.shards[selfIdx] = shards[selfIdx]
			sm.present++
		}
	}
	if sm.rebroadcast {
		return
	}
	sm.rebroadcast = true
	if sm.shards[selfIdx] == nil {
		return
	}
	unit := PropellerUnit{
		Channel:     sm.channel,
		Publisher:   sm.publisher,
		MessageRoot: sm.root,
		Index:       selfIdx,
		Shard:       sm.shards[selfIdx],
	}
	signer := NewPlaceholderSigner(sm.self)
	unit.Signature = signer.Sign(unitSignaturePayload(unit))
	_, proofs := BuildMerkleTree(sm.shards, sm.hasher)
	if selfIdx < len(proofs) {
		unit.Proof = proofs[selfIdx]
	}
	for _, peer := range sm.tm.Fanout(sm.channel, sm.publisher, sm.self) {
		if peer == sm.publisher || peer == sm.self {
			continue
		}
		if err := sm.transmit(peer, unit); err != nil {
			sm.log.Debug("rebroadcast failed", "peer", peer, "err", err)
		}
	}
}

// repadForEncode reproduces the padded payload from the reconstructed
// message so Encode can regenerate this node's own shard deterministically
// (re-encoding is cheaper than threading the padded buffer separately
// through onReconstructed).
func (sm *StateManager) repadForEncode() []byte {
	if sm.cfg.Pad {
		return padMessage(sm.message, sm.cfg.DataCount)
	}
	return sm.message
}

// checkAccessThreshold reports whether enough shards (directly received
// plus our own reconstructed one) have arrived to emit MessageReceived
// (§4.J step 5).
func (sm *StateManager) checkAccessThreshold() (Result, bool) {
	if sm.present < sm.tm.AccessThreshold() || !sm.reconstructed {
		return Result{}, false
	}
	return Result{Received: &ReceivedEvent{
		Channel:   sm.channel,
		Publisher: sm.publisher,
		Root:      sm.root,
		Message:   sm.message,
	}}, true
}
