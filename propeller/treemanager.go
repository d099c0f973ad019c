package propeller

import (
	"sort"

	"github.com/cespare/xxhash/v2"

	"github.com/starkware-libs/sequencer-sub006/ids"
)

// TreeManager yields, for a (channel, publisher) pair, the ordered
// participant list, a node's fanout subset, and the two thresholds used by
// the receive-side state manager (§3.6 "TreeManager").
type TreeManager interface {
	// Participants returns the deterministic, publisher-excluded ordering
	// of receivers for this (channel, publisher); a unit's Index is that
	// validator's position in this list.
	Participants(channel ids.ChannelId, publisher ids.ValidatorId) []ids.ValidatorId
	// Fanout returns the peers self forwards shards to: the publisher's
	// fanout is the root of the overlay tree; any other participant's
	// fanout is its children in that tree.
	Fanout(channel ids.ChannelId, publisher, self ids.ValidatorId) []ids.ValidatorId
	ReconstructionThreshold() int
	AccessThreshold() int
}

// treeManager is the default TreeManager: a k-ary forwarding tree over a
// deterministic shuffle of the validator set, seeded by xxhash over
// (channel, publisher) — the fast non-cryptographic hash the example pack
// otherwise left unused (luxfi-consensus pulls in cespare/xxhash/v2 only
// indirectly via prometheus/client_golang).
type treeManager struct {
	validators []ids.ValidatorId // sorted, canonical order before shuffling
	cfg        Config
}

// NewTreeManager builds the default TreeManager over validators.
func NewTreeManager(validators []ids.ValidatorId, cfg Config) TreeManager {
	sorted := append([]ids.ValidatorId(nil), validators...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Less(sorted[j]) })
	return &treeManager{validators: sorted, cfg: cfg}
}

func seedFor(channel ids.ChannelId, publisher ids.ValidatorId) uint64 {
	d := xxhash.New()
	_, _ = d.Write([]byte(channel))
	_, _ = d.Write([]byte{0})
	_, _ = d.Write([]byte(publisher))
	return d.Sum64()
}

// splitmix64 is a tiny deterministic PRNG used only to drive the
// Fisher-Yates shuffle below; its output need not be cryptographically
// unpredictable, only reproducible from the same seed on every node.
type splitmix64 struct{ state uint64 }

func (s *splitmix64) next() uint64 {
	s.state += 0x9E3779B97F4A7C15
	z := s.state
	z = (z ^ (z >> 30)) * 0xBF58476D1CE4E5B9
	z = (z ^ (z >> 27)) * 0x94D049BB133111EB
	return z ^ (z >> 31)
}

func (tm *treeManager) participantsExcluding(publisher ids.ValidatorId) []ids.ValidatorId {
	out := make([]ids.ValidatorId, 0, len(tm.validators))
	for _, v := range tm.validators {
		if v != publisher {
			out = append(out, v)
		}
	}
	return out
}

func (tm *treeManager) Participants(channel ids.ChannelId, publisher ids.ValidatorId) []ids.ValidatorId {
	list := tm.participantsExcluding(publisher)
	rng := &splitmix64{state: seedFor(channel, publisher)}
	for i := len(list) - 1; i > 0; i-- {
		j := int(rng.next() % uint64(i+1))
		list[i], list[j] = list[j], list[i]
	}
	return list
}

// Fanout implements a 0-indexed k-ary forwarding tree over Participants,
// where the publisher is the virtual node at position -1: node i's
// children occupy [(i+1)*k, (i+1)*k+k-1], which for i=-1 naturally yields
// [0, k-1] — the publisher's own direct fanout — with no special case.
func (tm *treeManager) Fanout(channel ids.ChannelId, publisher, self ids.ValidatorId) []ids.ValidatorId {
	list := tm.Participants(channel, publisher)
	k := tm.cfg.Fanout

	pos := -1
	if self != publisher {
		pos = indexOf(list, self)
		if pos < 0 {
			return nil
		}
	}

	start := (pos + 1) * k
	var out []ids.ValidatorId
	for i := start; i < start+k && i < len(list); i++ {
		out = append(out, list[i])
	}
	return out
}

func indexOf(list []ids.ValidatorId, v ids.ValidatorId) int {
	for i, e := range list {
		if e == v {
			return i
		}
	}
	return -1
}

func (tm *treeManager) ReconstructionThreshold() int { return tm.cfg.DataCount }
func (tm *treeManager) AccessThreshold() int          { return tm.cfg.AccessThreshold }
