package propeller

import (
	"github.com/cespare/xxhash/v2"

	"github.com/starkware-libs/sequencer-sub006/felt"
	"github.com/starkware-libs/sequencer-sub006/ids"
)

// MerkleHasher is the hash collaborator for the shard Merkle tree (§4.J
// "builds a Merkle tree over all n shards"). Like patricia.HashFunc, its
// cryptographic construction (Blake2s per §6) is external; this package
// consumes it through this narrow interface only.
type MerkleHasher interface {
	HashLeaf(shard []byte) ids.HashOutput
	HashNode(left, right ids.HashOutput) ids.HashOutput
}

// blake2sPlaceholder is a deterministic, non-cryptographic stand-in for
// the real Blake2s hasher (§6), in the same spirit as
// patricia.NewPedersenPlaceholder.
type blake2sPlaceholder struct{}

// NewBlake2sPlaceholder returns the placeholder MerkleHasher.
func NewBlake2sPlaceholder() MerkleHasher { return blake2sPlaceholder{} }

func (blake2sPlaceholder) HashLeaf(shard []byte) ids.HashOutput {
	d := xxhash.New()
	_, _ = d.Write([]byte{0x00})
	_, _ = d.Write(shard)
	return ids.HashOutput(felt.FromUint64(d.Sum64()))
}

func (blake2sPlaceholder) HashNode(left, right ids.HashOutput) ids.HashOutput {
	d := xxhash.New()
	_, _ = d.Write([]byte{0x01})
	lb := felt.Felt(left).Bytes()
	rb := felt.Felt(right).Bytes()
	_, _ = d.Write(lb[:])
	_, _ = d.Write(rb[:])
	return ids.HashOutput(felt.FromUint64(d.Sum64()))
}

// MerkleStep is one level of a membership proof: the sibling hash and
// which side it sits on relative to the node being proven.
type MerkleStep struct {
	Sibling        ids.HashOutput
	SiblingOnRight bool
}

// MerkleProof is a shard's membership proof against a message_root.
type MerkleProof struct {
	Steps []MerkleStep
}

// BuildMerkleTree hashes every shard and folds the leaves bottom-up,
// carrying an unpaired node up to the next level unchanged when a level
// has an odd count (the same scheme RFC 6962 uses for certificate
// transparency logs), and records each leaf's membership proof.
func BuildMerkleTree(shards [][]byte, hasher MerkleHasher) (root ids.HashOutput, proofs []MerkleProof) {
	n := len(shards)
	level := make([]ids.HashOutput, n)
	for i, s := range shards {
		level[i] = hasher.HashLeaf(s)
	}
	proofs = make([]MerkleProof, n)
	// index[i] tracks shard i's current position within `level`.
	index := make([]int, n)
	for i := range index {
		index[i] = i
	}

	for len(level) > 1 {
		next := make([]ids.HashOutput, 0, (len(level)+1)/2)
		for pos := 0; pos+1 < len(level); pos += 2 {
			parent := hasher.HashNode(level[pos], level[pos+1])
			next = append(next, parent)
		}
		if len(level)%2 == 1 {
			next = append(next, level[len(level)-1])
		}

		for shard, pos := range index {
			if pos%2 == 0 && pos+1 < len(level) {
				proofs[shard].Steps = append(proofs[shard].Steps, MerkleStep{Sibling: level[pos+1], SiblingOnRight: true})
			} else if pos%2 == 1 {
				proofs[shard].Steps = append(proofs[shard].Steps, MerkleStep{Sibling: level[pos-1], SiblingOnRight: false})
			}
			// pos%2==0 && pos+1==len(level): unpaired node carried up
			// unchanged, no sibling added at this level.
			index[shard] = pos / 2
		}
		level = next
	}
	if len(level) == 1 {
		root = level[0]
	}
	return root, proofs
}

// VerifyMerkleProof recomputes a shard's path to the root and checks it
// against root.
func VerifyMerkleProof(shard []byte, proof MerkleProof, root ids.HashOutput, hasher MerkleHasher) bool {
	current := hasher.HashLeaf(shard)
	for _, step := range proof.Steps {
		if step.SiblingOnRight {
			current = hasher.HashNode(current, step.Sibling)
		} else {
			current = hasher.HashNode(step.Sibling, current)
		}
	}
	return current.Equal(root)
}
