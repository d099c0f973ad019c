package state

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/starkware-libs/sequencer-sub006/felt"
	"github.com/starkware-libs/sequencer-sub006/ids"
)

func TestStateMapsEncodeIsDeterministic(t *testing.T) {
	m := NewStateMaps()
	contract := ids.ContractAddress(felt.FromUint64(1))
	m.Storage[StorageEntry{Contract: contract, Key: ids.StorageKey(felt.FromUint64(2))}] = ids.Felt(felt.FromUint64(3))
	m.Nonce[contract] = ids.Nonce(felt.FromUint64(4))
	m.ClassHash[contract] = ids.ClassHash(felt.FromUint64(5))
	m.CompiledClassHash[ids.ClassHash(felt.FromUint64(5))] = ids.CompiledClassHash(felt.FromUint64(6))

	require.Equal(t, m.Encode(), m.Encode(), "encoding the same diff twice must byte-for-byte match")
}

func TestStateMapsEncodeOrdersMultipleEntries(t *testing.T) {
	m := NewStateMaps()
	for i := uint64(0); i < 20; i++ {
		contract := ids.ContractAddress(felt.FromUint64(i))
		m.Nonce[contract] = ids.Nonce(felt.FromUint64(i + 100))
	}

	a := m.Encode()
	b := m.Encode()
	require.Equal(t, a, b, "map iteration order must not leak into the encoding")
}

func TestStateMapsEncodeEmptyIsShort(t *testing.T) {
	m := NewStateMaps()
	require.True(t, m.IsEmpty())
	// four empty maps, each a 4-byte length prefix of zero.
	require.Len(t, m.Encode(), 16)
}
