// Package patricia implements the three-trie Starknet state commitment
// (§4.F): original-skeleton fetch from storage, leaf-modification
// application, and parallel recomputation of node hashes up to a new root.
package patricia

import (
	"math/big"

	"github.com/starkware-libs/sequencer-sub006/ids"
)

// PathToBottom is the bit-path an edge node compresses (§3.5): Length bits
// below the edge's top node, read most-significant-bit first. Path holds
// those bits right-aligned in a non-negative integer less than 2^Length.
type PathToBottom struct {
	Path   *big.Int
	Length uint8
}

// NewPathToBottom copies path into a new PathToBottom. It does not check
// that path fits within length bits.
func NewPathToBottom(path *big.Int, length uint8) PathToBottom {
	return PathToBottom{Path: new(big.Int).Set(path), Length: length}
}

// BottomIndex derives the edge's bottom NodeIndex given the index of its
// top node: shift top left by Length bits and OR in Path.
func (p PathToBottom) BottomIndex(top ids.NodeIndex) ids.NodeIndex {
	shifted := new(big.Int).Lsh(top.BigInt(), uint(p.Length))
	shifted.Or(shifted, p.Path)
	return ids.NodeIndexFromBigInt(shifted)
}

// Equal reports whether two paths compress the same bits.
func (p PathToBottom) Equal(other PathToBottom) bool {
	return p.Length == other.Length && p.Path.Cmp(other.Path) == 0
}

// ancestorAtBitLen walks idx up toward the root until its bit length equals
// target, used to decide which child of an ancestor a deeper index
// descends from.
func ancestorAtBitLen(idx ids.NodeIndex, target int) ids.NodeIndex {
	cur := idx
	for cur.BitLen() > target {
		cur = cur.Parent()
	}
	return cur
}

// descendsLeft reports whether idx descends from parent's left child
// (2*parent) rather than its right child (2*parent+1).
func descendsLeft(idx, parent ids.NodeIndex) bool {
	ancestor := ancestorAtBitLen(idx, parent.BitLen()+1)
	return ancestor.Equal(parent.LeftChild())
}
