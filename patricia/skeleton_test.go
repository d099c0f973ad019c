package patricia

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/starkware-libs/sequencer-sub006/ids"
)

// memStorage is an in-memory Storage fake keyed by DbKey, used by tests to
// stand in for the persisted tree.
type memStorage map[DbKey]*NodeRecord

func (m memStorage) MGet(keys []DbKey) ([]*NodeRecord, error) {
	out := make([]*NodeRecord, len(keys))
	for i, k := range keys {
		out[i] = m[k]
	}
	return out, nil
}

func TestFetchOriginalSkeletonEmptyRoot(t *testing.T) {
	skeleton, err := FetchOriginalSkeleton(ids.RootOfEmptyTree, nil, memStorage{}, nil)
	require.NoError(t, err)
	require.True(t, skeleton.Empty)
}

func TestFetchOriginalSkeletonNoModifications(t *testing.T) {
	root := ids.HashOutput(feltFromSum(42))
	skeleton, err := FetchOriginalSkeleton(root, nil, memStorage{}, nil)
	require.NoError(t, err)
	require.False(t, skeleton.Empty)
	node, ok := skeleton.Nodes[ids.Root().Key()]
	require.True(t, ok)
	require.Equal(t, KindUnmodifiedSubTree, node.Kind)
	require.True(t, node.Hash.Equal(root))
}

func TestFetchOriginalSkeletonSingleLeaf(t *testing.T) {
	root := ids.Root()
	left, right := root.LeftChild(), root.RightChild()
	leftHash := ids.HashOutput(feltFromSum(1))
	rightHash := ids.HashOutput(feltFromSum(2))

	storage := memStorage{
		NodeKey(root): {Kind: KindBinary, LeftHash: leftHash, RightHash: rightHash},
		NodeKey(left): {Kind: KindLeaf, LeafValue: feltFromSum(100)},
	}

	previousRoot := ids.HashOutput(feltFromSum(999))
	modified := ids.SortedLeafIndices{left}
	skeleton, err := FetchOriginalSkeleton(previousRoot, modified, storage, nil)
	require.NoError(t, err)
	require.False(t, skeleton.Empty)

	rootNode, ok := skeleton.Nodes[root.Key()]
	require.True(t, ok)
	require.Equal(t, KindBinary, rootNode.Kind)

	leftNode, ok := skeleton.Nodes[left.Key()]
	require.True(t, ok)
	require.Equal(t, KindLeaf, leftNode.Kind)
	require.Equal(t, feltFromSum(100), skeleton.PreviousLeaves[left.Key()])

	rightNode, ok := skeleton.Nodes[right.Key()]
	require.True(t, ok)
	require.Equal(t, KindUnmodifiedSubTree, rightNode.Kind)
	require.True(t, rightNode.Hash.Equal(rightHash))
}
