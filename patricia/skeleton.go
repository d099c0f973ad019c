package patricia

import (
	"fmt"

	"github.com/starkware-libs/sequencer-sub006/ids"
	"github.com/starkware-libs/sequencer-sub006/log"
)

// OriginalSkeleton is the minimal set of nodes needed to recompute every
// ancestor hash on the paths from the root to the modified leaves (§3.5,
// §4.F.1).
type OriginalSkeleton struct {
	Empty          bool
	RootHash       ids.HashOutput
	Nodes          map[string]SkeletonNode
	PreviousLeaves map[string]ids.Felt
}

func newOriginalSkeleton() *OriginalSkeleton {
	return &OriginalSkeleton{
		Nodes:          make(map[string]SkeletonNode),
		PreviousLeaves: make(map[string]ids.Felt),
	}
}

type frontierEntry struct {
	index    ids.NodeIndex
	modified []ids.NodeIndex
}

// FetchOriginalSkeleton walks previousRoot's tree level by level, issuing
// one batched multi-get per level, accumulating only the nodes on paths to
// modifiedIndices plus their immediate siblings (§4.F.1).
func FetchOriginalSkeleton(
	previousRoot ids.HashOutput,
	modifiedIndices ids.SortedLeafIndices,
	storage Storage,
	logger log.Logger,
) (*OriginalSkeleton, error) {
	if logger == nil {
		logger = log.NewNoOp()
	}
	skeleton := newOriginalSkeleton()
	skeleton.RootHash = previousRoot

	if previousRoot.Equal(ids.RootOfEmptyTree) {
		skeleton.Empty = true
		return skeleton, nil
	}
	if len(modifiedIndices) == 0 {
		root := ids.Root()
		skeleton.Nodes[root.Key()] = SkeletonNode{Index: root, Kind: KindUnmodifiedSubTree, Hash: previousRoot}
		return skeleton, nil
	}

	frontier := []frontierEntry{{index: ids.Root(), modified: []ids.NodeIndex(modifiedIndices)}}

	for len(frontier) > 0 {
		keys := make([]DbKey, len(frontier))
		for i, e := range frontier {
			keys[i] = NodeKey(e.index)
		}
		records, err := storage.MGet(keys)
		if err != nil {
			return nil, fmt.Errorf("patricia: original skeleton fetch: %w", err)
		}
		if len(records) != len(frontier) {
			return nil, fmt.Errorf("patricia: storage returned %d records for %d keys", len(records), len(frontier))
		}

		var next []frontierEntry
		for i, e := range frontier {
			rec := records[i]
			if rec == nil {
				continue
			}
			switch rec.Kind {
			case KindLeaf:
				skeleton.Nodes[e.index.Key()] = SkeletonNode{Index: e.index, Kind: KindLeaf}
				skeleton.PreviousLeaves[e.index.Key()] = rec.LeafValue
				if _, modified := findModification(e.index, e.modified); modified {
					logger.Debug("leaf modification against existing leaf", "index", e.index.String())
				}

			case KindBinary:
				skeleton.Nodes[e.index.Key()] = SkeletonNode{Index: e.index, Kind: KindBinary}
				left, right := e.index.LeftChild(), e.index.RightChild()
				leftMod, rightMod := splitModifications(e.modified, e.index)
				if len(leftMod) > 0 {
					next = append(next, frontierEntry{index: left, modified: leftMod})
				} else {
					skeleton.Nodes[left.Key()] = SkeletonNode{Index: left, Kind: KindUnmodifiedSubTree, Hash: rec.LeftHash}
				}
				if len(rightMod) > 0 {
					next = append(next, frontierEntry{index: right, modified: rightMod})
				} else {
					skeleton.Nodes[right.Key()] = SkeletonNode{Index: right, Kind: KindUnmodifiedSubTree, Hash: rec.RightHash}
				}

			case KindEdge:
				skeleton.Nodes[e.index.Key()] = SkeletonNode{Index: e.index, Kind: KindEdge, Path: rec.Path}
				bottom := rec.Path.BottomIndex(e.index)
				next = append(next, frontierEntry{index: bottom, modified: e.modified})

			default:
				return nil, fmt.Errorf("patricia: unexpected skeleton kind %v at %s", rec.Kind, e.index)
			}
		}
		frontier = next
	}

	return skeleton, nil
}

func findModification(idx ids.NodeIndex, set []ids.NodeIndex) (ids.NodeIndex, bool) {
	for _, m := range set {
		if m.Equal(idx) {
			return m, true
		}
	}
	return idx, false
}

// splitModifications partitions modified (all descendants of parent) into
// the subsets descending from parent's left and right children.
func splitModifications(modified []ids.NodeIndex, parent ids.NodeIndex) (left, right []ids.NodeIndex) {
	for _, idx := range modified {
		if descendsLeft(idx, parent) {
			left = append(left, idx)
		} else {
			right = append(right, idx)
		}
	}
	return left, right
}
