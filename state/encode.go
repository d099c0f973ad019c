package state

import (
	"bytes"
	"encoding/binary"
	"sort"

	"github.com/starkware-libs/sequencer-sub006/felt"
	"github.com/starkware-libs/sequencer-sub006/ids"
)

// Encode serializes m into a flat, deterministic byte slice suitable for
// compression or hashing: every map is sorted by its felt-encoded key
// before being written, since Go's map iteration order is randomized and
// a state diff fed to a compressor or written to storage must be stable
// across calls (§4.E step 6 "compressed_state_diff").
func (m StateMaps) Encode() []byte {
	var buf bytes.Buffer

	type storageEntry struct {
		key   kvPair
		value felt.Felt
	}
	storageEntries := make([]storageEntry, 0, len(m.Storage))
	for k, v := range m.Storage {
		var p kvPair
		c := felt.Felt(k.Contract).Bytes()
		s := felt.Felt(k.Key).Bytes()
		copy(p[0:32], c[:])
		copy(p[32:64], s[:])
		storageEntries = append(storageEntries, storageEntry{key: p, value: felt.Felt(v)})
	}
	sort.Slice(storageEntries, func(i, j int) bool {
		return bytes.Compare(storageEntries[i].key[:], storageEntries[j].key[:]) < 0
	})
	writeUint32(&buf, uint32(len(storageEntries)))
	for _, e := range storageEntries {
		buf.Write(e.key[:])
		vb := e.value.Bytes()
		buf.Write(vb[:])
	}

	writeNonces(&buf, m.Nonce)
	writeClassHashes(&buf, m.ClassHash)
	writeCompiledClassHashes(&buf, m.CompiledClassHash)

	return buf.Bytes()
}

func writeUint32(buf *bytes.Buffer, n uint32) {
	var tmp [4]byte
	binary.BigEndian.PutUint32(tmp[:], n)
	buf.Write(tmp[:])
}

type kvPair [64]byte

func sortedKVPairs(pairs []kvPair) []kvPair {
	sort.Slice(pairs, func(i, j int) bool { return bytes.Compare(pairs[i][:32], pairs[j][:32]) < 0 })
	return pairs
}

func writeKVPairs(buf *bytes.Buffer, pairs []kvPair) {
	pairs = sortedKVPairs(pairs)
	writeUint32(buf, uint32(len(pairs)))
	for _, p := range pairs {
		buf.Write(p[:])
	}
}

func writeNonces(buf *bytes.Buffer, m map[ids.ContractAddress]ids.Nonce) {
	pairs := make([]kvPair, 0, len(m))
	for k, v := range m {
		var p kvPair
		kb := felt.Felt(k).Bytes()
		vb := felt.Felt(v).Bytes()
		copy(p[0:32], kb[:])
		copy(p[32:64], vb[:])
		pairs = append(pairs, p)
	}
	writeKVPairs(buf, pairs)
}

func writeClassHashes(buf *bytes.Buffer, m map[ids.ContractAddress]ids.ClassHash) {
	pairs := make([]kvPair, 0, len(m))
	for k, v := range m {
		var p kvPair
		kb := felt.Felt(k).Bytes()
		vb := felt.Felt(v).Bytes()
		copy(p[0:32], kb[:])
		copy(p[32:64], vb[:])
		pairs = append(pairs, p)
	}
	writeKVPairs(buf, pairs)
}

func writeCompiledClassHashes(buf *bytes.Buffer, m map[ids.ClassHash]ids.CompiledClassHash) {
	pairs := make([]kvPair, 0, len(m))
	for k, v := range m {
		var p kvPair
		kb := felt.Felt(k).Bytes()
		vb := felt.Felt(v).Bytes()
		copy(p[0:32], kb[:])
		copy(p[32:64], vb[:])
		pairs = append(pairs, p)
	}
	writeKVPairs(buf, pairs)
}
