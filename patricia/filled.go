package patricia

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/starkware-libs/sequencer-sub006/ids"
)

// UpdatedSkeleton is the original skeleton after leaf modifications have
// been applied: new leaves are materialized along a freshly built path to
// the root, and deleted leaves are removed (§4.F.2).
type UpdatedSkeleton struct {
	Nodes map[string]SkeletonNode
}

// ApplyModifications folds mods into original, producing the skeleton the
// filled-tree pass recomputes against. zero is the leaf type's empty
// value; modifying a node to zero is a deletion (§3.5).
//
// Edge-path compression for newly inserted leaves is not attempted here:
// a fresh insertion materializes a full binary path up to the nearest
// already-present ancestor rather than re-compressing it into an edge.
// The resulting tree is structurally valid and hashes correctly; it is
// simply not as compact as a from-scratch rebuild would be.
func ApplyModifications[L comparable](original *OriginalSkeleton, mods LeafModifications[L], zero L) (*UpdatedSkeleton, error) {
	updated := &UpdatedSkeleton{Nodes: make(map[string]SkeletonNode, len(original.Nodes))}
	for k, v := range original.Nodes {
		updated.Nodes[k] = v
	}

	for _, idx := range mods.Indices() {
		val, _ := mods.Get(idx)
		key := idx.Key()
		if val == zero {
			delete(updated.Nodes, key)
			continue
		}
		if _, exists := updated.Nodes[key]; !exists {
			materializeBinaryPath(updated.Nodes, idx)
		}
		updated.Nodes[key] = SkeletonNode{Index: idx, Kind: KindLeaf}
	}
	return updated, nil
}

func materializeBinaryPath(nodes map[string]SkeletonNode, leaf ids.NodeIndex) {
	cur := leaf
	for cur.BitLen() > 1 {
		parent := cur.Parent()
		key := parent.Key()
		if _, ok := nodes[key]; ok {
			return
		}
		nodes[key] = SkeletonNode{Index: parent, Kind: KindBinary}
		cur = parent
	}
}

// CheckNoDeletedLeavesSurvive defensively verifies the invariant that no
// node deleted by mods still appears as a Leaf in updated (§4.F.2
// "DeletedLeafInSkeleton").
func CheckNoDeletedLeavesSurvive[L comparable](updated *UpdatedSkeleton, mods LeafModifications[L], zero L) error {
	for _, idx := range mods.Indices() {
		val, _ := mods.Get(idx)
		if val != zero {
			continue
		}
		if node, ok := updated.Nodes[idx.Key()]; ok && node.Kind == KindLeaf {
			return fmt.Errorf("%w: index %s", ErrDeletedLeafInSkeleton, idx)
		}
	}
	return nil
}

// LeafHasher turns a modified leaf value into the felt used as that
// leaf's hash contribution. For the storage trie this is the identity;
// for the contracts trie it is a function of the contract's nonce,
// storage root and class hash (§4.F.3's forest-driver composition); it
// may perform the "Leaf::create" collaborator work the spec allows to be
// asynchronous, expressed here as an ordinary (possibly blocking) call.
type LeafHasher[L any] func(index ids.NodeIndex, value L) (ids.Felt, error)

type fillCtx[L any] struct {
	nodes          map[string]SkeletonNode
	mods           LeafModifications[L]
	previousLeaves map[string]ids.Felt
	leafHash       LeafHasher[L]
	hashFunc       HashFunc

	results sync.Map // key string -> FilledNode
	locks   sync.Map // key string -> *sync.Mutex, one per placeholder index
}

func (c *fillCtx[L]) lockFor(key string) *sync.Mutex {
	actual, _ := c.locks.LoadOrStore(key, &sync.Mutex{})
	return actual.(*sync.Mutex)
}

func (c *fillCtx[L]) compute(ctx context.Context, index ids.NodeIndex) (ids.HashOutput, error) {
	key := index.Key()
	node, ok := c.nodes[key]
	if !ok {
		// No placeholder recorded for this index: it is an untouched
		// empty subtree.
		return ids.RootOfEmptyTree, nil
	}
	if existing, ok := c.results.Load(key); ok {
		return existing.(FilledNode).Hash, nil
	}

	lock := c.lockFor(key)
	lock.Lock()
	defer lock.Unlock()
	if existing, ok := c.results.Load(key); ok {
		return existing.(FilledNode).Hash, nil
	}

	switch node.Kind {
	case KindUnmodifiedSubTree:
		c.store(key, FilledNode{Index: index, Hash: node.Hash})
		return node.Hash, nil

	case KindLeaf:
		leafFelt, err := c.resolveLeaf(index, key)
		if err != nil {
			return ids.HashOutput{}, err
		}
		hash := ids.HashOutput(leafFelt)
		c.store(key, FilledNode{Index: index, Hash: hash})
		return hash, nil

	case KindBinary:
		left, right := index.LeftChild(), index.RightChild()
		g, gctx := errgroup.WithContext(ctx)
		var leftHash, rightHash ids.HashOutput
		g.Go(func() error {
			h, err := c.compute(gctx, left)
			leftHash = h
			return err
		})
		g.Go(func() error {
			h, err := c.compute(gctx, right)
			rightHash = h
			return err
		})
		if err := g.Wait(); err != nil {
			return ids.HashOutput{}, err
		}
		hash := c.hashFunc.HashBinary(leftHash, rightHash)
		c.store(key, FilledNode{Index: index, Hash: hash, LeftHash: leftHash, RightHash: rightHash})
		return hash, nil

	case KindEdge:
		bottom := node.Path.BottomIndex(index)
		bottomHash, err := c.compute(ctx, bottom)
		if err != nil {
			return ids.HashOutput{}, err
		}
		hash := c.hashFunc.HashEdge(bottomHash, node.Path)
		c.store(key, FilledNode{Index: index, Hash: hash, Path: node.Path, BottomHash: bottomHash})
		return hash, nil
	}
	return ids.HashOutput{}, fmt.Errorf("patricia: unknown skeleton kind at %s", index)
}

func (c *fillCtx[L]) resolveLeaf(index ids.NodeIndex, key string) (ids.Felt, error) {
	if val, ok := c.mods.Get(index); ok {
		return c.leafHash(index, val)
	}
	if prev, ok := c.previousLeaves[key]; ok {
		return prev, nil
	}
	return ids.Felt{}, fmt.Errorf("%w: index %s", ErrMissingLeafInput, index)
}

func (c *fillCtx[L]) store(key string, node FilledNode) {
	if _, loaded := c.results.LoadOrStore(key, node); loaded {
		panic(fmt.Sprintf("%v: index %s computed twice", ErrDoubleUpdate, node.Index))
	}
}

// FillTree recomputes every node hash on updated, concurrently, via a
// parallel recursive post-order walk (§4.F.2): children are hashed on
// separate goroutines before their parent composes them. Returns the new
// root hash and the full set of newly computed nodes.
func FillTree[L any](
	ctx context.Context,
	updated *UpdatedSkeleton,
	mods LeafModifications[L],
	previousLeaves map[string]ids.Felt,
	leafHash LeafHasher[L],
	hashFunc HashFunc,
) (ids.HashOutput, map[string]FilledNode, error) {
	c := &fillCtx[L]{
		nodes:          updated.Nodes,
		mods:           mods,
		previousLeaves: previousLeaves,
		leafHash:       leafHash,
		hashFunc:       hashFunc,
	}
	rootHash, err := c.compute(ctx, ids.Root())
	if err != nil {
		return ids.HashOutput{}, nil, err
	}
	out := make(map[string]FilledNode)
	c.results.Range(func(k, v any) bool {
		out[k.(string)] = v.(FilledNode)
		return true
	})
	return rootHash, out, nil
}
