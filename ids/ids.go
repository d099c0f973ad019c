// Package ids defines the node's identifier newtypes (§3.1): distinct felt
// or integer wrappers that the type system keeps from being accidentally
// interchanged (a StorageKey is not a ContractAddress, even though both are
// felts under the hood).
package ids

import (
	"fmt"
	"math/big"

	"github.com/starkware-libs/sequencer-sub006/felt"
)

// Felt re-exports felt.Felt for packages that only need the bare field
// element (e.g. a storage value, which carries no identifier semantics of
// its own).
type Felt = felt.Felt

// BlockNumber is a monotonically increasing 64-bit height.
type BlockNumber uint64

// Round is non-negative and restarts at 0 per height.
type Round uint32

// ValidatorId is an opaque, totally ordered validator identifier. Unlike
// the teacher's PKI-derived ids.NodeID (a [20]byte tied to a certificate
// and BLS key), nothing in this domain authenticates a validator by
// certificate, so ValidatorId stays a bare string with its own order.
type ValidatorId string

// StreamId identifies one logical content stream multiplexed over the
// unordered, possibly-lossy transport (§4.G).
type StreamId uint64

// MessageId is a per-stream, zero-based, contiguous sequence number (§3.1
// "StreamMessage").
type MessageId uint64

// ChannelId names one propeller broadcast channel; a (channel, publisher)
// pair identifies a single erasure-coded message stream (§3.6).
type ChannelId string

// Less gives ValidatorId a total order for deterministic iteration (e.g.
// proposer selection, sorted participant lists).
func (v ValidatorId) Less(other ValidatorId) bool { return v < other }

// TxHash identifies a transaction.
type TxHash felt.Felt

// ClassHash identifies a declared Cairo class.
type ClassHash felt.Felt

// CompiledClassHash identifies a compiled (Sierra/CASM) class.
type CompiledClassHash felt.Felt

// ContractAddress identifies a deployed contract instance.
type ContractAddress felt.Felt

// StorageKey identifies a single storage slot within a contract.
type StorageKey felt.Felt

// Nonce is a contract's transaction counter.
type Nonce felt.Felt

// Commitment is the opaque value consensus agrees on at a height: a
// proposal's block commitment. There is no NIL Commitment value; "vote to
// skip" is represented by the absence of a Commitment (a nil
// *Commitment), not a distinguished zero value (§3.1 "Vote").
type Commitment felt.Felt

func (c Commitment) Equal(other Commitment) bool {
	return felt.Felt(c).Equal(felt.Felt(other))
}

func (c Commitment) String() string { return felt.Felt(c).String() }

// HashOutput is a 252-bit felt produced by a tree hash function.
type HashOutput felt.Felt

// RootOfEmptyTree is the designated sentinel for an empty Patricia tree.
var RootOfEmptyTree = HashOutput(felt.RootOfEmptyTree)

func (h HashOutput) Equal(other HashOutput) bool {
	return felt.Felt(h).Equal(felt.Felt(other))
}

func (h HashOutput) String() string { return felt.Felt(h).String() }

// NodeIndex is an unbounded Patricia-tree node index (§3.1). The root is 1;
// children of i are 2i and 2i+1. Because tree height can reach the full
// field width (251), indices do not fit in a machine word, so NodeIndex is
// backed by math/big.
type NodeIndex struct {
	v big.Int
}

// Root returns the NodeIndex of the tree root (1).
func Root() NodeIndex {
	var n NodeIndex
	n.v.SetInt64(1)
	return n
}

// NewNodeIndex builds a NodeIndex from a small non-negative integer.
func NewNodeIndex(v uint64) NodeIndex {
	var n NodeIndex
	n.v.SetUint64(v)
	return n
}

// NodeIndexFromBigInt takes ownership-by-copy of v.
func NodeIndexFromBigInt(v *big.Int) NodeIndex {
	var n NodeIndex
	n.v.Set(v)
	return n
}

// LeftChild returns 2*i.
func (n NodeIndex) LeftChild() NodeIndex {
	var r NodeIndex
	r.v.Lsh(&n.v, 1)
	return r
}

// RightChild returns 2*i+1.
func (n NodeIndex) RightChild() NodeIndex {
	var r NodeIndex
	r.v.Lsh(&n.v, 1)
	r.v.SetBit(&r.v, 0, 1)
	return r
}

// Parent returns i/2; callers must not call this on the root.
func (n NodeIndex) Parent() NodeIndex {
	var r NodeIndex
	r.v.Rsh(&n.v, 1)
	return r
}

// IsLeftChild reports whether n is the left child of its parent (even index).
func (n NodeIndex) IsLeftChild() bool { return n.v.Bit(0) == 0 }

// BitLen returns the index's bit length; a leaf at tree height h satisfies
// BitLen() == h+1 (the leading 1 bit plus h path bits).
func (n NodeIndex) BitLen() int { return n.v.BitLen() }

// IsLeafAtHeight reports whether n is a leaf index for a tree of the given
// height (index >= 2^height, per §3.1).
func (n NodeIndex) IsLeafAtHeight(height int) bool {
	threshold := new(big.Int).Lsh(big.NewInt(1), uint(height))
	return n.v.Cmp(threshold) >= 0
}

// Cmp orders NodeIndex by integer value.
func (n NodeIndex) Cmp(other NodeIndex) int { return n.v.Cmp(&other.v) }

func (n NodeIndex) Equal(other NodeIndex) bool { return n.v.Cmp(&other.v) == 0 }

func (n NodeIndex) String() string { return n.v.String() }

// Key returns a value usable as a Go map key (big.Int is not comparable).
func (n NodeIndex) Key() string { return n.v.Text(16) }

// BigInt returns a defensive copy of the underlying integer.
func (n NodeIndex) BigInt() *big.Int { return new(big.Int).Set(&n.v) }

// SortedLeafIndices is a deduplicated, ascending-sorted list of leaf
// NodeIndex values — the modification set's index domain (§4.F.1).
type SortedLeafIndices []NodeIndex

func (s SortedLeafIndices) Len() int           { return len(s) }
func (s SortedLeafIndices) Less(i, j int) bool { return s[i].Cmp(s[j]) < 0 }
func (s SortedLeafIndices) Swap(i, j int)      { s[i], s[j] = s[j], s[i] }

func (n NodeIndex) GoString() string { return fmt.Sprintf("NodeIndex(%s)", n.v.String()) }
