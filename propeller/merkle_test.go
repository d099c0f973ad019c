package propeller

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMerkleRoundTripVariousShardCounts(t *testing.T) {
	hasher := NewBlake2sPlaceholder()
	for _, n := range []int{1, 2, 3, 5, 6, 7, 8} {
		t.Run(fmt.Sprintf("n=%d", n), func(t *testing.T) {
			shards := make([][]byte, n)
			for i := range shards {
				shards[i] = []byte(fmt.Sprintf("shard-%d", i))
			}
			root, proofs := BuildMerkleTree(shards, hasher)
			require.Len(t, proofs, n)
			for i, s := range shards {
				require.True(t, VerifyMerkleProof(s, proofs[i], root, hasher), "shard %d failed to verify", i)
			}
		})
	}
}

func TestMerkleProofRejectsTamperedShard(t *testing.T) {
	hasher := NewBlake2sPlaceholder()
	shards := [][]byte{[]byte("a"), []byte("b"), []byte("c"), []byte("d"), []byte("e")}
	root, proofs := BuildMerkleTree(shards, hasher)

	require.False(t, VerifyMerkleProof([]byte("tampered"), proofs[2], root, hasher))
}
