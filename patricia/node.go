package patricia

import "github.com/starkware-libs/sequencer-sub006/ids"

// SkeletonKind distinguishes the skeleton node variants (§3.5).
type SkeletonKind int

const (
	KindBinary SkeletonKind = iota
	KindEdge
	KindUnmodifiedSubTree
	KindLeaf
)

func (k SkeletonKind) String() string {
	switch k {
	case KindBinary:
		return "Binary"
	case KindEdge:
		return "Edge"
	case KindUnmodifiedSubTree:
		return "UnmodifiedSubTree"
	case KindLeaf:
		return "Leaf"
	default:
		return "Unknown"
	}
}

// SkeletonNode is a node in the minimal original skeleton (§3.5): the
// nodes on paths from the root to modified leaves, plus their immediate
// siblings.
type SkeletonNode struct {
	Index ids.NodeIndex
	Kind  SkeletonKind
	Path  PathToBottom    // set when Kind == KindEdge
	Hash  ids.HashOutput  // set when Kind == KindUnmodifiedSubTree
}

// FilledNode is a skeleton node with its computed hash and (for internal
// nodes) its children's hashes materialized (§3.5).
type FilledNode struct {
	Index      ids.NodeIndex
	Hash       ids.HashOutput
	LeftHash   ids.HashOutput // Binary only
	RightHash  ids.HashOutput // Binary only
	Path       PathToBottom   // Edge only
	BottomHash ids.HashOutput // Edge only
}

// NodeRole distinguishes which trie a node belongs to, determining both
// its hash function (§6 "Hash functions") and its persisted-key prefix
// (§6 "Storage KV").
type NodeRole int

const (
	RoleContractsTrie NodeRole = iota
	RoleStorageTrie
	RoleClassesTrie
)

// KeyPrefix returns this role's persisted-key prefix.
func (r NodeRole) KeyPrefix() string {
	switch r {
	case RoleContractsTrie:
		return "contract_state:"
	case RoleStorageTrie:
		return "starknet_storage_leaf:"
	case RoleClassesTrie:
		return "contract_class_leaf:"
	default:
		return "patricia_node:"
	}
}

// DbKey is a persisted-storage key: a role prefix plus a node index or
// leaf identifier (§6 "Storage KV").
type DbKey string

// NodeKey builds the patricia_node: key for an internal tree node.
func NodeKey(index ids.NodeIndex) DbKey {
	return DbKey("patricia_node:" + index.Key())
}

// NodeRecord is the persisted representation of one tree node. Since the
// KV store's physical layout is an external concern, records are kept as
// plain Go values rather than a specified byte encoding (§6 "Persisted
// state layout" only fixes the logical shape per role).
type NodeRecord struct {
	Kind      SkeletonKind // Binary, Edge or Leaf; never UnmodifiedSubTree
	LeftHash  ids.HashOutput
	RightHash ids.HashOutput
	Path      PathToBottom
	BottomHash ids.HashOutput
	LeafValue ids.Felt
}

// Storage is the read-through KV collaborator original-skeleton fetch
// reads from (§6 "Storage KV"): a batched multi-get over DbKeys. A nil
// entry in the result means the key was absent.
type Storage interface {
	MGet(keys []DbKey) ([]*NodeRecord, error)
}

// LeafModifications is a NodeIndex -> new leaf value map (§3.5). The
// leaf type's zero value denotes deletion.
type LeafModifications[L any] map[string]leafModEntry[L]

type leafModEntry[L any] struct {
	Index ids.NodeIndex
	Value L
}

// NewLeafModifications builds an empty modification map.
func NewLeafModifications[L any]() LeafModifications[L] {
	return make(LeafModifications[L])
}

// Set records a modification at index.
func (m LeafModifications[L]) Set(index ids.NodeIndex, value L) {
	m[index.Key()] = leafModEntry[L]{Index: index, Value: value}
}

// Get looks up the modification at index.
func (m LeafModifications[L]) Get(index ids.NodeIndex) (L, bool) {
	e, ok := m[index.Key()]
	return e.Value, ok
}

// Indices returns the modified indices in no particular order.
func (m LeafModifications[L]) Indices() []ids.NodeIndex {
	out := make([]ids.NodeIndex, 0, len(m))
	for _, e := range m {
		out = append(out, e.Index)
	}
	return out
}
