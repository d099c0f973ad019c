package state

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/starkware-libs/sequencer-sub006/felt"
	"github.com/starkware-libs/sequencer-sub006/ids"
)

type fakeReader struct {
	storage map[StorageEntry]ids.Felt
}

func (f *fakeReader) GetStorageAt(c ids.ContractAddress, k ids.StorageKey) (ids.Felt, error) {
	return f.storage[StorageEntry{Contract: c, Key: k}], nil
}
func (f *fakeReader) GetNonceAt(ids.ContractAddress) (ids.Nonce, error)                  { return ids.Nonce{}, nil }
func (f *fakeReader) GetClassHashAt(ids.ContractAddress) (ids.ClassHash, error)          { return ids.ClassHash{}, nil }
func (f *fakeReader) GetCompiledClassHash(ids.ClassHash) (ids.CompiledClassHash, error)  { return ids.CompiledClassHash{}, nil }
func (f *fakeReader) GetCompiledClass(ids.ClassHash) (CompiledClass, error)              { return nil, nil }

func addr(n uint64) ids.ContractAddress { return ids.ContractAddress(felt.FromUint64(n)) }
func key(n uint64) ids.StorageKey       { return ids.StorageKey(felt.FromUint64(n)) }
func val(n uint64) ids.Felt             { return felt.FromUint64(n) }

func TestVersionedStateReadsRespectVersionOrdering(t *testing.T) {
	r := &fakeReader{storage: map[StorageEntry]ids.Felt{{Contract: addr(1), Key: key(1)}: val(100)}}
	vs := NewVersionedState(r)

	v0 := vs.PinVersion(0)
	got, err := v0.GetStorageAt(nil, addr(1), key(1))
	require.NoError(t, err)
	require.True(t, got.Equal(val(100)), "initial read should hit the underlying reader")

	v5 := vs.PinVersion(5)
	v5.ApplyWrites(StateMaps{Storage: map[StorageEntry]ids.Felt{{Contract: addr(1), Key: key(1)}: val(200)}}, nil)

	v3 := vs.PinVersion(3)
	got, err = v3.GetStorageAt(nil, addr(1), key(1))
	require.NoError(t, err)
	require.True(t, got.Equal(val(100)), "a read at version 3 must not observe a write from version 5 (invariant i)")

	v7 := vs.PinVersion(7)
	got, err = v7.GetStorageAt(nil, addr(1), key(1))
	require.NoError(t, err)
	require.True(t, got.Equal(val(200)), "a read at version 7 must observe the committed write from version 5")
}

func TestVersionedStateValidateReadsDetectsStaleness(t *testing.T) {
	r := &fakeReader{storage: map[StorageEntry]ids.Felt{{Contract: addr(1), Key: key(1)}: val(1)}}
	vs := NewVersionedState(r)

	v1 := vs.PinVersion(1)
	rs := newReadSet()
	_, err := v1.GetStorageAt(&rs, addr(1), key(1))
	require.NoError(t, err)

	ok, err := v1.ValidateReads(rs)
	require.NoError(t, err)
	require.True(t, ok)

	v0 := vs.PinVersion(0)
	v0.ApplyWrites(StateMaps{Storage: map[StorageEntry]ids.Felt{{Contract: addr(1), Key: key(1)}: val(999)}}, nil)

	ok, err = v1.ValidateReads(rs)
	require.NoError(t, err)
	require.False(t, ok, "a concurrent lower-index write must invalidate the read set")
}

func TestTransactionalStateReadsOwnPendingWrites(t *testing.T) {
	r := &fakeReader{storage: map[StorageEntry]ids.Felt{}}
	vs := NewVersionedState(r)
	v := vs.PinVersion(0)
	txState := NewTransactionalState(v)

	txState.SetStorageAt(addr(1), key(1), val(42))
	got, err := txState.GetStorageAt(addr(1), key(1))
	require.NoError(t, err)
	require.True(t, got.Equal(val(42)))
	require.Empty(t, txState.ReadSet().Storage, "a read of the tx's own uncommitted write must not appear in the read set")
}

func TestTransactionalStateCommitIsPermanent(t *testing.T) {
	r := &fakeReader{storage: map[StorageEntry]ids.Felt{}}
	vs := NewVersionedState(r)
	v2 := vs.PinVersion(2)
	txState := NewTransactionalState(v2)
	txState.SetStorageAt(addr(1), key(1), val(7))
	txState.Commit()

	v9 := vs.PinVersion(9)
	got, err := v9.GetStorageAt(nil, addr(1), key(1))
	require.NoError(t, err)
	require.True(t, got.Equal(val(7)))
}
