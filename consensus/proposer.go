package consensus

import (
	"sort"

	"github.com/starkware-libs/sequencer-sub006/ids"
	"github.com/starkware-libs/sequencer-sub006/utils/set"
)

// ProposerSelector picks the proposer for a given (height, round). The
// real selection weighting (stake, VRF, whatever) is an external concern;
// the state machine only needs a deterministic function every validator
// agrees on.
type ProposerSelector interface {
	Proposer(height ids.BlockNumber, round ids.Round) ids.ValidatorId
}

// roundRobinSelector cycles through the validator set in sorted order,
// offset by height+round. A placeholder selector: production proposer
// weighting is out of scope here, same as the Pedersen/Poseidon
// placeholders in patricia/hash.go.
type roundRobinSelector struct {
	validators []ids.ValidatorId
}

// NewRoundRobinSelector builds the default ProposerSelector from a
// validator set.
func NewRoundRobinSelector(validators set.Set[ids.ValidatorId]) ProposerSelector {
	list := validators.List()
	sort.Slice(list, func(i, j int) bool { return list[i].Less(list[j]) })
	return &roundRobinSelector{validators: list}
}

func (s *roundRobinSelector) Proposer(height ids.BlockNumber, round ids.Round) ids.ValidatorId {
	if len(s.validators) == 0 {
		return ""
	}
	idx := (uint64(height) + uint64(round)) % uint64(len(s.validators))
	return s.validators[idx]
}
