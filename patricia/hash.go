package patricia

import (
	"encoding/binary"

	"github.com/cespare/xxhash/v2"

	"github.com/starkware-libs/sequencer-sub006/felt"
	"github.com/starkware-libs/sequencer-sub006/ids"
)

// HashFunc is the tree hash collaborator (§6 "Hash functions"): Pedersen
// for the contracts and storage tries, Poseidon (with a domain-separation
// constant folded into the leaf) for the classes trie. Their cryptographic
// internals are an external concern (§1): this package consumes them
// through this narrow interface only.
type HashFunc interface {
	HashBinary(left, right ids.HashOutput) ids.HashOutput
	HashEdge(bottom ids.HashOutput, path PathToBottom) ids.HashOutput
}

// xxhashFunc is a placeholder HashFunc: deterministic and collision-
// resistant enough for tests and local development, but not the real
// Pedersen/Poseidon algorithms, which are out of scope here (§1) and
// belong to a cryptography crate consumed through this interface in
// production.
type xxhashFunc struct {
	domain uint64
}

// NewPedersenPlaceholder returns the placeholder HashFunc used for the
// contracts and storage tries.
func NewPedersenPlaceholder() HashFunc { return xxhashFunc{domain: 0} }

// NewPoseidonPlaceholder returns the placeholder HashFunc used for the
// classes trie, with its own domain tag so it never collides with the
// Pedersen placeholder's output space.
func NewPoseidonPlaceholder() HashFunc { return xxhashFunc{domain: 1} }

func (h xxhashFunc) HashBinary(left, right ids.HashOutput) ids.HashOutput {
	d := xxhash.New()
	var domainBuf [8]byte
	binary.LittleEndian.PutUint64(domainBuf[:], h.domain)
	lb := felt.Felt(left).Bytes()
	rb := felt.Felt(right).Bytes()
	_, _ = d.Write(domainBuf[:])
	_, _ = d.Write(lb[:])
	_, _ = d.Write(rb[:])
	return ids.HashOutput(feltFromSum(d.Sum64()))
}

func (h xxhashFunc) HashEdge(bottom ids.HashOutput, path PathToBottom) ids.HashOutput {
	d := xxhash.New()
	var domainBuf [8]byte
	binary.LittleEndian.PutUint64(domainBuf[:], h.domain)
	bb := felt.Felt(bottom).Bytes()
	_, _ = d.Write(domainBuf[:])
	_, _ = d.Write(bb[:])
	_, _ = d.Write(path.Path.Bytes())
	_, _ = d.Write([]byte{path.Length})
	return ids.HashOutput(feltFromSum(d.Sum64()))
}

func feltFromSum(sum uint64) felt.Felt {
	return felt.FromUint64(sum)
}
